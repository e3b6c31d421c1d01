// Package mir defines the AArch64 machine IR: the target-specific
// instruction set translate.go lowers SSA into, regalloc.go rewrites
// virtual registers away from, and asmemit.go prints as GAS text. It
// mirrors the teacher's pkg/asm (final instruction set) and pkg/ltl
// (locations/physical registers), generalized to an explicit vreg class
// and a handful of ABI-driven pseudo-ops the teacher's backend never
// needed (MirCall, MirCopy*, MirStImm, MirGEP, MirRestoreHostRegs).
package mir

// PReg is a physical AArch64 register: an integer X-register or a
// floating-point D-register, numbered the way the teacher's ltl.MReg does.
type PReg int

const (
	X0 PReg = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29 // FP
	X30 // LR
)

// SP is the AArch64 stack pointer: a distinct register from the X0-X30
// general-purpose file (unlike X30/LR it is never a GEP or regalloc temp
// target), given its own numbering so IsInt/String don't misclassify it.
const SP PReg = 31

const (
	D0 PReg = iota + 64
	D1
	D2
	D3
	D4
	D5
	D6
	D7
	D8
	D9
	D10
	D11
	D12
	D13
	D14
	D15
)

// IsInt reports whether r names an X register (SP included: it is a
// general-purpose-width register, just not part of the GEP/regalloc temp
// file).
func (r PReg) IsInt() bool { return r <= X30 || r == SP }

// IsFloat reports whether r names a D register.
func (r PReg) IsFloat() bool { return r >= D0 && r <= D15 }

func (r PReg) String() string {
	if r == SP {
		return "sp"
	}
	if r <= X30 {
		names := []string{
			"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
			"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15",
			"x16", "x17", "x18", "x19", "x20", "x21", "x22", "x23",
			"x24", "x25", "x26", "x27", "x28", "x29", "x30",
		}
		return names[r]
	}
	if r.IsFloat() {
		names := []string{"d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7", "d8", "d9", "d10", "d11", "d12", "d13", "d14", "d15"}
		return names[r-D0]
	}
	return "?"
}

// CalleeSavedInts is the integer callee-saved set stacking.go draws the
// prologue/epilogue set from, per spec §4.11.
var CalleeSavedInts = []PReg{X19, X20, X21, X22, X23, X24, X25, X26, X27, X28}

// CalleeSavedFloats is the floating-point callee-saved set.
var CalleeSavedFloats = []PReg{D8, D9, D10, D11, D12, D13, D14, D15}

// TempPool is the fixed temp-register pool regalloc.go draws from when
// materializing spilled vregs around an instruction, per spec §4.10.
var TempPool = struct {
	Ints   []PReg
	Floats []PReg
}{
	Ints:   []PReg{X8, X9, X10, X11, X12, X13, X14, X15},
	Floats: []PReg{D8, D9, D10, D11, D12, D13, D14, D15},
}

// Class is the dispatched register class of a virtual register: 32- or
// 64-bit general purpose, or single/double precision floating point.
type Class int

const (
	G32 Class = iota
	G64
	F32
	F64
	Wasted // zero-sized / void-typed: never materializes into a real register
)

func (c Class) String() string {
	switch c {
	case G32:
		return "G32"
	case G64:
		return "G64"
	case F32:
		return "F32"
	case F64:
		return "F64"
	case Wasted:
		return "Wasted"
	}
	return "?"
}

// Size reports the class's slot size in bytes, used to size stack-slot
// allocation in both regalloc.go (spill slots) and stacking.go (locals).
func (c Class) Size() int64 {
	switch c {
	case G32, F32:
		return 4
	case G64, F64:
		return 8
	}
	return 0
}

// VReg is a virtual register: an opaque identity assigned one per SSA
// definition (instruction result or function argument), scoped to a single
// mir.Function. Register allocation replaces every VReg with a StackPos
// plus a temp PReg materialized around each use.
type VReg struct {
	ID    int
	Class Class

	// IsAddress marks a vreg whose value is itself the address of a local
	// variable (the destination of an Alloca's GEP lowering), rather than
	// a spillable computed value. Register allocation leaves these vregs
	// as a StackPos operand directly instead of inserting load/store
	// scaffolding, per spec §4.10's "skip stack-position vregs" rule.
	IsAddress bool
}

// StackPos names a spill slot's position for a single vreg, assigned by
// regalloc.go and rewritten to an SP-relative address by stacking.go.
type StackPos struct {
	VReg VReg
}

// Operand is anything a mir.Instruction can read from or write to: a
// virtual register (pre-regalloc), a physical register (post-regalloc
// temp or ABI-fixed location), a stack position (a vreg's spill slot
// address), or an immediate.
type Operand interface {
	implOperand()
}

func (VReg) implOperand()     {}
func (PReg) implOperand()     {}
func (StackPos) implOperand() {}
func (GlobalAddr) implOperand() {}

// GlobalAddr names the address of a module-level symbol: the operand form
// translate.go's GEP/load/store lowering produces when the base resolves to
// a global rather than a stack slot (the teacher's cminorsel Aglobal
// addressing mode, pkg/selection/addressing.go). asmemit.go prints it as
// `adrp`+`add` (or a GOT-indirect load for an extern symbol).
type GlobalAddr struct {
	Symbol string
	Offset int64
}

// Imm is a constant integer operand, used directly when AArch64's
// encoding range permits and via LoadConst64 otherwise.
type Imm struct {
	Value int64
}

func (Imm) implOperand() {}

// FImm is a constant floating-point operand; only values encodable as an
// 8-bit AArch64 FP immediate may appear directly on FMOVi — anything else
// must route through a GPR staging sequence per spec §4.9 step 5.
type FImm struct {
	Value    float64
	IsDouble bool
}

func (FImm) implOperand() {}
