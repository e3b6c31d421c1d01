package mir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCondCodeString(t *testing.T) {
	tests := []struct {
		cond CondCode
		want string
	}{
		{CondEQ, "eq"},
		{CondNE, "ne"},
		{CondGE, "ge"},
		{CondLT, "lt"},
		{CondAL, "al"},
		{CondCode(100), "?"},
	}
	for _, tt := range tests {
		if got := tt.cond.String(); got != tt.want {
			t.Errorf("CondCode(%d).String() = %q, want %q", tt.cond, got, tt.want)
		}
	}
}

func TestPRegString(t *testing.T) {
	if X0.String() != "x0" {
		t.Errorf("X0.String() = %q, want x0", X0.String())
	}
	if X30.String() != "x30" {
		t.Errorf("X30.String() = %q, want x30", X30.String())
	}
	if D0.String() != "d0" {
		t.Errorf("D0.String() = %q, want d0", D0.String())
	}
	if !X19.IsInt() || X19.IsFloat() {
		t.Error("X19 should be an integer register only")
	}
	if !D8.IsFloat() || D8.IsInt() {
		t.Error("D8 should be a float register only")
	}
}

func TestClassSize(t *testing.T) {
	tests := []struct {
		c    Class
		want int64
	}{
		{G32, 4},
		{F32, 4},
		{G64, 8},
		{F64, 8},
		{Wasted, 0},
	}
	for _, tt := range tests {
		if got := tt.c.Size(); got != tt.want {
			t.Errorf("%s.Size() = %d, want %d", tt.c, got, tt.want)
		}
	}
}

func TestFrameLayoutTotalSizeAligns16(t *testing.T) {
	f := FrameLayout{VarsSize: 20, SavedRegsSize: 8}
	if got := f.TotalSize(); got != 32 {
		t.Errorf("TotalSize() = %d, want 32", got)
	}
}

func TestInstructionInterface(t *testing.T) {
	var _ Instruction = ADD{}
	var _ Instruction = Bin32RC{}
	var _ Instruction = Bin64RC{}
	var _ Instruction = MirCall{}
	var _ Instruction = MirGEP{}
	var _ Instruction = MirStImm{}
	var _ Instruction = MirCopy32{}
	var _ Instruction = MirRestoreHostRegs{}
	var _ Instruction = LoadConst64{}
	var _ Instruction = Jtable{}
	var _ Instruction = RET{}
}

func TestOperandInterface(t *testing.T) {
	var _ Operand = VReg{ID: 1, Class: G64}
	var _ Operand = X0
	var _ Operand = StackPos{VReg: VReg{ID: 2, Class: F32}}
	var _ Operand = Imm{Value: 42}
	var _ Operand = FImm{Value: 1.5, IsDouble: true}
}

func TestOperandsRoundTrip(t *testing.T) {
	v1 := VReg{ID: 1, Class: G64}
	v2 := VReg{ID: 2, Class: G64}
	v3 := VReg{ID: 3, Class: G64}
	add := ADD{Rd: v3, Rn: v1, Rm: v2, Is64: true}

	uses, defs := Operands(add)
	if len(uses) != 2 || len(defs) != 1 {
		t.Fatalf("Operands(ADD) = %d uses, %d defs, want 2 and 1", len(uses), len(defs))
	}
	if uses[0] != Operand(v1) || uses[1] != Operand(v2) || defs[0] != Operand(v3) {
		t.Fatalf("Operands(ADD) returned wrong operands: %+v %+v", uses, defs)
	}

	rewritten := WithOperands(add, []Operand{X0, X1}, []Operand{X2})
	got, ok := rewritten.(ADD)
	if !ok {
		t.Fatalf("WithOperands(ADD) returned %T, want ADD", rewritten)
	}
	if got.Rn != Operand(X0) || got.Rm != Operand(X1) || got.Rd != Operand(X2) {
		t.Errorf("WithOperands(ADD) = %+v, registers not substituted", got)
	}
	if !got.Is64 {
		t.Error("WithOperands should preserve non-operand fields like Is64")
	}
}

// TestWithOperandsMirCallGolden exercises the uses/defs round trip for a
// MirCall, whose field count makes a diff-on-failure worth more than a
// chain of individual field comparisons: ArgRegs comes from Operands' use
// slice, CalleeReg is left untouched when nil, and Ret comes from the def
// slice, while Callee/CallerSaved/IsTail pass through unchanged.
func TestWithOperandsMirCallGolden(t *testing.T) {
	v1 := VReg{ID: 1, Class: G64}
	v2 := VReg{ID: 2, Class: G64}
	call := MirCall{
		Callee:      "memcpy",
		ArgRegs:     []Operand{X0, X1},
		Ret:         v1,
		CallerSaved: []PReg{X0, X1, X2},
		IsTail:      true,
	}

	uses, defs := Operands(call)
	wantUses := []Operand{X0, X1}
	wantDefs := []Operand{v1}
	if diff := cmp.Diff(wantUses, uses); diff != "" {
		t.Errorf("Operands(MirCall) uses mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantDefs, defs); diff != "" {
		t.Errorf("Operands(MirCall) defs mismatch (-want +got):\n%s", diff)
	}

	rewritten := WithOperands(call, []Operand{X3, X4}, []Operand{v2})
	want := MirCall{
		Callee:      "memcpy",
		ArgRegs:     []Operand{X3, X4},
		Ret:         v2,
		CallerSaved: []PReg{X0, X1, X2},
		IsTail:      true,
	}
	if diff := cmp.Diff(want, rewritten); diff != "" {
		t.Errorf("WithOperands(MirCall) mismatch (-want +got):\n%s", diff)
	}
}

// TestModuleStructureGolden builds a small mir.Module by hand and checks
// its shape with cmp.Diff rather than field-by-field assertions, the way a
// printer/lowering golden test wants to report a failure: one readable
// diff instead of a wall of "got X want Y" lines across nested slices.
func TestModuleStructureGolden(t *testing.T) {
	got := Module{
		Globals: []Global{
			{Name: "msg", Section: SectROData, Size: 4, Directives: []Directive{
				{Kind: DByte, Bytes: []byte{'h', 'i', 0}},
			}},
		},
		Functions: []Function{
			{
				Name: "main",
				Blocks: []Block{
					{Name: "main", Code: []Instruction{
						ADD{Rd: X0, Rn: X0, Rm: X1, Is64: true},
						RET{},
					}},
				},
				Frame: FrameLayout{VarsSize: 0, SavedRegsSize: 0},
			},
		},
	}

	want := Module{
		Globals: []Global{
			{Name: "msg", Section: SectROData, Size: 4, Directives: []Directive{
				{Kind: DByte, Bytes: []byte{'h', 'i', 0}},
			}},
		},
		Functions: []Function{
			{
				Name: "main",
				Blocks: []Block{
					{Name: "main", Code: []Instruction{
						ADD{Rd: X0, Rn: X0, Rm: X1, Is64: true},
						RET{},
					}},
				},
				Frame: FrameLayout{VarsSize: 0, SavedRegsSize: 0},
			},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Module shape mismatch (-want +got):\n%s", diff)
	}
}
