package stacking

import (
	"testing"

	"github.com/ssair-lang/ssair/pkg/mir"
)

func TestAlign16(t *testing.T) {
	tests := []struct{ n, want int64 }{
		{0, 0},
		{1, 16},
		{15, 16},
		{16, 16},
		{17, 32},
	}
	for _, tt := range tests {
		if got := align16(tt.n); got != tt.want {
			t.Errorf("align16(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func fn(blocks ...mir.Block) *mir.Function {
	return &mir.Function{Name: "f", Blocks: blocks}
}

func block(code ...mir.Instruction) mir.Block {
	return mir.Block{Code: code}
}

func TestComputeLayoutEmpty(t *testing.T) {
	layout := ComputeLayout(fn(block(mir.RET{})))

	if layout.VarsSize != 0 {
		t.Errorf("VarsSize = %d, want 0", layout.VarsSize)
	}
	if layout.SavedRegsSize != 0 {
		t.Errorf("SavedRegsSize = %d, want 0", layout.SavedRegsSize)
	}
	if layout.FrameSize != 0 {
		t.Errorf("FrameSize = %d, want 0", layout.FrameSize)
	}
	if layout.UsesFramePtr {
		t.Error("leaf function should not need a frame pointer")
	}
}

func TestComputeLayoutWithSlots(t *testing.T) {
	v := mir.VReg{ID: 1, Class: mir.G64}
	code := block(
		mir.LDR{Rt: mir.X0, Rn: mir.StackPos{VReg: v}, Is64: true},
		mir.RET{},
	)
	layout := ComputeLayout(fn(code))

	if layout.VarsSize != 16 {
		t.Errorf("VarsSize = %d, want 16 (8-byte slot aligned up)", layout.VarsSize)
	}
}

func TestComputeLayoutWithCalleeSaved(t *testing.T) {
	code := block(
		mir.ADD{Rd: mir.X19, Rn: mir.X19, Rm: mir.X0, Is64: true},
		mir.RET{},
	)
	layout := ComputeLayout(fn(code))

	if len(layout.SavedInts) != 1 || layout.SavedInts[0] != mir.X19 {
		t.Errorf("SavedInts = %v, want [X19]", layout.SavedInts)
	}
	if layout.SavedRegsSize != 8 {
		t.Errorf("SavedRegsSize = %d, want 8", layout.SavedRegsSize)
	}
}

func TestComputeLayoutNonCalleeSavedRegNotSaved(t *testing.T) {
	code := block(
		mir.ADD{Rd: mir.X0, Rn: mir.X1, Rm: mir.X2, Is64: true},
		mir.RET{},
	)
	layout := ComputeLayout(fn(code))

	if len(layout.SavedInts) != 0 || len(layout.SavedFloats) != 0 {
		t.Errorf("SavedInts/Floats should be empty, got %v %v", layout.SavedInts, layout.SavedFloats)
	}
}

func TestComputeLayoutNeedsFramePointerOnCall(t *testing.T) {
	code := block(
		mir.MirCall{Callee: "g"},
		mir.RET{},
	)
	layout := ComputeLayout(fn(code))

	if !layout.UsesFramePtr {
		t.Error("a function containing a call should need a frame pointer")
	}
	if !layout.UsesLinkReg {
		t.Error("a function containing a call should save the link register")
	}
}

func TestComputeLayoutTotalSizeAlignment(t *testing.T) {
	v := mir.VReg{ID: 1, Class: mir.G32}
	code := block(
		mir.STR{Rt: mir.X0, Rn: mir.StackPos{VReg: v}, Is64: false},
		mir.ADD{Rd: mir.X19, Rn: mir.X19, Rm: mir.X0, Is64: true},
		mir.RET{},
	)
	layout := ComputeLayout(fn(code))

	if layout.FrameSize%16 != 0 {
		t.Errorf("FrameSize %d is not 16-byte aligned", layout.FrameSize)
	}
}

func TestCollectSlotsDeduplicatesAndOrders(t *testing.T) {
	v1 := mir.VReg{ID: 1, Class: mir.G64}
	v2 := mir.VReg{ID: 2, Class: mir.G32}
	code := block(
		mir.LDR{Rt: mir.X0, Rn: mir.StackPos{VReg: v1}, Is64: true},
		mir.STR{Rt: mir.X1, Rn: mir.StackPos{VReg: v2}, Is64: false},
		mir.LDR{Rt: mir.X2, Rn: mir.StackPos{VReg: v1}, Is64: true},
	)

	slots := collectSlots(fn(code))
	if len(slots) != 2 {
		t.Fatalf("collectSlots returned %d slots, want 2", len(slots))
	}
	if slots[0].ID != 1 || slots[1].ID != 2 {
		t.Errorf("collectSlots = %v, want first-seen order [1, 2]", slots)
	}
}
