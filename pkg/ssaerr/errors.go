// Package ssaerr collects the discriminated error kinds spec.md §7
// requires: every fallible IR/MIR operation returns one of these as a Go
// error, never a panic or hidden exception. Each kind is its own type so
// callers can errors.As a specific variant; wrapping elsewhere in the
// pipeline uses fmt.Errorf("...: %w", err) to preserve that.
package ssaerr

import "fmt"

// --- Type errors ---

type TypeMismatch struct {
	Want, Got fmt.Stringer
}

func (e *TypeMismatch) Error() string {
	return fmt.Sprintf("type mismatch: want %s, got %s", e.Want, e.Got)
}

type TypeNotClass struct {
	Type  fmt.Stringer
	Class string
}

func (e *TypeNotClass) Error() string {
	return fmt.Sprintf("type %s is not of class %s", e.Type, e.Class)
}

type TypeNotSized struct {
	Type fmt.Stringer
}

func (e *TypeNotSized) Error() string {
	return fmt.Sprintf("type %s has no size", e.Type)
}

// --- Operand errors ---

type OpTypeMismatch struct {
	Inst      fmt.Stringer
	Kind      string
	Want, Got fmt.Stringer
}

func (e *OpTypeMismatch) Error() string {
	return fmt.Sprintf("inst %s: operand %s type mismatch: want %s, got %s", e.Inst, e.Kind, e.Want, e.Got)
}

type OperandPosNone struct {
	Inst fmt.Stringer
	Kind string
}

func (e *OperandPosNone) Error() string {
	return fmt.Sprintf("inst %s: operand %s is None", e.Inst, e.Kind)
}

type InvalidZeroOp struct {
	Value fmt.Stringer
	Op    string
	Kind  string
}

func (e *InvalidZeroOp) Error() string {
	return fmt.Sprintf("%s %s: zero operand %s is invalid", e.Op, e.Kind, e.Value)
}

// --- Instruction errors ---

type FalseOpcodeKind struct {
	Kind, Op string
}

func (e *FalseOpcodeKind) Error() string {
	return fmt.Sprintf("opcode kind %s does not admit operation %s", e.Kind, e.Op)
}

type CallArgCountUnmatch struct {
	Inst      fmt.Stringer
	Want, Got int
}

func (e *CallArgCountUnmatch) Error() string {
	return fmt.Sprintf("inst %s: call argument count mismatch: want %d, got %d", e.Inst, e.Want, e.Got)
}

type CastUnmatch struct {
	Inst     fmt.Stringer
	Op       string
	From, To fmt.Stringer
}

func (e *CastUnmatch) Error() string {
	return fmt.Sprintf("inst %s: cast %s from %s to %s is invalid", e.Inst, e.Op, e.From, e.To)
}

type CmpOpcodeErr struct {
	Inst fmt.Stringer
	Op   string
	Type fmt.Stringer
}

func (e *CmpOpcodeErr) Error() string {
	return fmt.Sprintf("inst %s: compare op %s invalid on type %s", e.Inst, e.Op, e.Type)
}

type DuplicatedSwitchCase struct {
	Inst       fmt.Stringer
	JumpTarget fmt.Stringer
}

func (e *DuplicatedSwitchCase) Error() string {
	return fmt.Sprintf("inst %s: duplicated switch case %s", e.Inst, e.JumpTarget)
}

type PhiIncomeSetUnmatch struct {
	Inst           fmt.Stringer
	Expected, Got  []string
}

func (e *PhiIncomeSetUnmatch) Error() string {
	return fmt.Sprintf("inst %s: phi incoming set mismatch: expected %v, got %v", e.Inst, e.Expected, e.Got)
}

// --- Layout errors ---

type PhiNotInHead struct {
	Phi fmt.Stringer
}

func (e *PhiNotInHead) Error() string {
	return fmt.Sprintf("phi %s is not in the block's phi head run", e.Phi)
}

type DirtyPhiSection struct {
	Inst fmt.Stringer
}

func (e *DirtyPhiSection) Error() string {
	return fmt.Sprintf("non-phi instruction %s found before PhiInstEnd", e.Inst)
}

type MultipleTerminator struct {
	Inst fmt.Stringer
}

func (e *MultipleTerminator) Error() string {
	return fmt.Sprintf("block already terminated before inserting %s", e.Inst)
}

type EntryNotInFront struct {
	Func fmt.Stringer
}

func (e *EntryNotInFront) Error() string {
	return fmt.Sprintf("function %s's entry block is not first in its block list", e.Func)
}

// --- Dominance ---

type NotDominated struct {
	Operand, User fmt.Stringer
}

func (e *NotDominated) Error() string {
	return fmt.Sprintf("definition %s does not dominate use %s", e.Operand, e.User)
}

// --- Arena/list ---

type ReplicatedTerminator struct{}

func (e *ReplicatedTerminator) Error() string { return "block already has a terminator" }

type NodeNotFound struct {
	What string
}

func (e *NodeNotFound) Error() string { return fmt.Sprintf("node not found: %s", e.What) }

type NodeAlreadyLinked struct {
	What string
}

func (e *NodeAlreadyLinked) Error() string { return fmt.Sprintf("node already linked: %s", e.What) }

// --- Transform / LLVM-compat ---

// UnsupportedSparseDefault is returned by the LLVM-compat adapter when a
// KVArrayAdapt expression carries a default value anywhere but trailing
// position; only trailing defaults can be rewritten into a splat or
// zero-initializer without inventing a packed-union encoding.
type UnsupportedSparseDefault struct {
	Expr fmt.Stringer
}

func (e *UnsupportedSparseDefault) Error() string {
	return fmt.Sprintf("llvm-compat: sparse expr %s has a non-trailing default value", e.Expr)
}

// --- Translation ---

type ShouldNotTranslate struct {
	Inst fmt.Stringer
	Kind string
}

func (e *ShouldNotTranslate) Error() string {
	return fmt.Sprintf("instruction %s (%s) should not reach translation", e.Inst, e.Kind)
}

type OperandMapErrorKind int

const (
	OpMapIsUnsupported OperandMapErrorKind = iota
	OpMapIsNotFound
	OpMapOperandUndefined
	OpMapIsConstData
	OpMapIsNone
)

type OperandMapError struct {
	Kind  OperandMapErrorKind
	Value fmt.Stringer
}

func (e *OperandMapError) Error() string {
	switch e.Kind {
	case OpMapIsUnsupported:
		return fmt.Sprintf("operand map: value %s is unsupported", e.Value)
	case OpMapIsNotFound:
		return fmt.Sprintf("operand map: value %s not found", e.Value)
	case OpMapOperandUndefined:
		return "operand map: operand undefined"
	case OpMapIsConstData:
		return fmt.Sprintf("operand map: unexpected raw ConstData %s", e.Value)
	case OpMapIsNone:
		return "operand map: operand is None"
	}
	return "operand map: unknown error"
}

// StringerString adapts a plain string to fmt.Stringer for call sites that
// only have a name/label, not a structured value.
type StringerString string

func (s StringerString) String() string { return string(s) }

// --- Textual IR reader errors ---

// ParseError reports a malformed line of the textual IR form pkg/irreader
// parses, with the 1-based source line number for diagnostics.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// UnresolvedName reports a textual-IR operand that never resolved: a vN
// forward reference with no matching definition anywhere in its function,
// or a name not of any recognized form.
type UnresolvedName struct {
	Name string
}

func (e *UnresolvedName) Error() string {
	return fmt.Sprintf("unresolved name %q", e.Name)
}

// UnsupportedConstruct reports a textual-IR construct the reader
// deliberately does not reconstruct (e.g. constexpr(N), a struct-alias
// type reference, an aggregate field-path opcode) because the writer's
// text form does not carry enough information to rebuild it, or because
// no builder support exists for it yet.
type UnsupportedConstruct struct {
	What string
}

func (e *UnsupportedConstruct) Error() string {
	return fmt.Sprintf("unsupported in textual IR: %s", e.What)
}
