package ssair

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// Payload carries the opcode-specific fixed data that isn't itself an
// operand slot (e.g. Icmp's Cond, Alloca's alignment, Switch's case
// table). Every instruction family gets its own Payload variant, mirroring
// the teacher's per-opcode struct + marker-method idiom.
type Payload interface {
	implPayload()
}

// BinOpPayload covers every arithmetic family (Add..FDiv): no extra data
// beyond the two operands already on Inst.Operands.
type BinOpPayload struct{}

func (BinOpPayload) implPayload() {}

// CastPayload covers Zext/Sext/Trunc/Fpext/Fptrunc/Bitcast/PtrToInt/
// IntToPtr/Sitofp/Uitofp/Fptosi/Fptoui; the concrete opcode on Inst already
// disambiguates which cast this is, so no extra field is required beyond
// the single Operands[0] source and Inst.ResultType as destination.
type CastPayload struct{}

func (CastPayload) implPayload() {}

// CmpPayload carries Icmp/Fcmp's condition and signed/ordered flags.
type CmpPayload struct {
	Cond  CmpCond
	Flags CmpFlags
}

func (CmpPayload) implPayload() {}

// AllocaPayload: the element type being allocated and its alignment.
type AllocaPayload struct {
	ElemType  types.ID
	AlignLog2 uint8
}

func (AllocaPayload) implPayload() {}

// LoadPayload/StorePayload carry the memory access alignment.
type LoadPayload struct{ AlignLog2 uint8 }

func (LoadPayload) implPayload() {}

type StorePayload struct{ AlignLog2 uint8 }

func (StorePayload) implPayload() {}

// GepPayload: the type the base pointer addresses (indices are operands).
type GepPayload struct {
	BaseType types.ID
}

func (GepPayload) implPayload() {}

// IndexExtractPayload/IndexInsertPayload: dynamic-index aggregate access;
// the index is an operand, the aggregate type is Operands[0]'s type.
type IndexExtractPayload struct{}

func (IndexExtractPayload) implPayload() {}

type IndexInsertPayload struct{}

func (IndexInsertPayload) implPayload() {}

// FieldExtractPayload/FieldInsertPayload: static nested-field access path.
type FieldExtractPayload struct{ Fields []uint32 }

func (FieldExtractPayload) implPayload() {}

type FieldInsertPayload struct{ Fields []uint32 }

func (FieldInsertPayload) implPayload() {}

// PhiPayload: Operands holds (value,block) pairs in order; PhiPayload
// itself carries no extra data, but its presence disambiguates the
// even/odd operand pairing from a plain variadic instruction.
type PhiPayload struct{}

func (PhiPayload) implPayload() {}

// PhiInstEndPayload marks the PhiInstEnd sentinel.
type PhiInstEndPayload struct{}

func (PhiInstEndPayload) implPayload() {}

// SelectPayload: Operands = [cond, ifTrue, ifFalse].
type SelectPayload struct{}

func (SelectPayload) implPayload() {}

// CallPayload: Operands = [callee, args...].
type CallPayload struct {
	CalleeType types.ID
	IsTail     bool
}

func (CallPayload) implPayload() {}

// RetPayload: Operands = [] or [value].
type RetPayload struct{}

func (RetPayload) implPayload() {}

// JumpPayload: unconditional branch, one JumpTarget.
type JumpPayload struct {
	Target value.JumpTargetRef
}

func (JumpPayload) implPayload() {}

// BrPayload: conditional branch, Operands = [cond], two JumpTargets.
type BrPayload struct {
	Then, Else value.JumpTargetRef
}

func (BrPayload) implPayload() {}

// SwitchCase pairs a case constant with its JumpTarget.
type SwitchCase struct {
	Value  int64
	Target value.JumpTargetRef
}

// SwitchPayload: Operands = [value], plus a default target and case table.
type SwitchPayload struct {
	Default value.JumpTargetRef
	Cases   []SwitchCase
}

func (SwitchPayload) implPayload() {}

// UnreachablePayload: no operands, no targets.
type UnreachablePayload struct{}

func (UnreachablePayload) implPayload() {}

// AmoRmwPayload: Operands = [ptr, val].
type AmoRmwPayload struct {
	Op        AmoOp
	Ordering  Ordering
	Scope     Scope
	AlignLog2 uint8
}

func (AmoRmwPayload) implPayload() {}

// Inst is the common instruction header plus opcode-specific Payload.
// Operands are stored as UseRefs into the module's use arena; dereference
// through Module.Uses to read/mutate the live operand Value.
type Inst struct {
	link arena.ListNode // block instruction chain link

	Opcode     Opcode
	ResultType types.ID
	Attrs      AttrSet
	Parent     value.BlockRef
	Operands   []value.UseRef
	Payload    Payload

	Users value.UserList // users of this instruction's SSA result
}

// InstAccessors binds the block-instruction-chain List to the Insts arena.
func InstAccessors(insts *arena.Arena[Inst]) arena.Accessors[Inst] {
	return arena.Accessors[Inst]{
		Arena: insts,
		Get:   func(i Inst) arena.ListNode { return i.link },
		Set:   func(i Inst, ln arena.ListNode) Inst { i.link = ln; return i },
	}
}
