package stacking

import (
	"testing"

	"github.com/ssair-lang/ssair/pkg/mir"
)

func TestLowerPrependsPrologue(t *testing.T) {
	v := mir.VReg{ID: 1, Class: mir.G64}
	f := fn(block(
		mir.LDR{Rt: mir.X0, Rn: mir.StackPos{VReg: v}, Is64: true},
		mir.RET{},
	))

	Lower(f)

	first := f.Blocks[0].Code[0]
	sub, ok := first.(mir.Bin64RC)
	if !ok || sub.Op != mir.RCSub {
		t.Fatalf("first instruction = %#v, want a sub-sp Bin64RC", first)
	}
	if sub.Rd != mir.Operand(mir.SP) || sub.Rn != mir.Operand(mir.SP) {
		t.Errorf("prologue should adjust sp, got %#v", sub)
	}
}

func TestLowerRewritesStackPosToFrameBase(t *testing.T) {
	v := mir.VReg{ID: 1, Class: mir.G64}
	f := fn(block(
		mir.LDR{Rt: mir.X0, Rn: mir.StackPos{VReg: v}, Is64: true},
		mir.RET{},
	))

	Lower(f)

	for _, inst := range f.Blocks[0].Code {
		if ldr, ok := inst.(mir.LDR); ok {
			if ldr.Rn != mir.Operand(mir.X29) {
				t.Errorf("LDR.Rn = %v, want X29", ldr.Rn)
			}
			return
		}
	}
	t.Fatal("no LDR found after lowering")
}

func TestLowerFoldsGEPBaseOffset(t *testing.T) {
	v := mir.VReg{ID: 1, Class: mir.G64}
	dst := mir.VReg{ID: 2, Class: mir.G64}
	f := fn(block(
		mir.MirGEP{Dst: dst, Base: mir.StackPos{VReg: v}, Offset: 4},
		mir.RET{},
	))

	Lower(f)

	for _, inst := range f.Blocks[0].Code {
		if gep, ok := inst.(mir.MirGEP); ok {
			if gep.Base != mir.Operand(mir.X29) {
				t.Errorf("MirGEP.Base = %v, want X29", gep.Base)
			}
			if gep.Offset != 4 {
				t.Errorf("MirGEP.Offset = %d, want the slot offset folded in (4 from an empty frame)", gep.Offset)
			}
			return
		}
	}
	t.Fatal("no MirGEP found after lowering")
}

func TestLowerExpandsRestoreHostRegs(t *testing.T) {
	f := fn(block(
		mir.ADD{Rd: mir.X19, Rn: mir.X19, Rm: mir.X0, Is64: true},
		mir.MirRestoreHostRegs{},
		mir.RET{},
	))

	Lower(f)

	for _, inst := range f.Blocks[0].Code {
		if _, ok := inst.(mir.MirRestoreHostRegs); ok {
			t.Fatal("MirRestoreHostRegs placeholder should have been expanded")
		}
	}

	foundRestore := false
	for _, inst := range f.Blocks[0].Code {
		if ldr, ok := inst.(mir.LDR); ok && ldr.Rt == mir.Operand(mir.X19) {
			foundRestore = true
		}
	}
	if !foundRestore {
		t.Error("expected a LDR restoring X19 in the expanded epilogue")
	}
}

func TestLowerLargeFrameUsesLoadConst64(t *testing.T) {
	v := mir.VReg{ID: 1, Class: mir.G64}
	code := []mir.Instruction{mir.LDR{Rt: mir.X0, Rn: mir.StackPos{VReg: v}, Is64: true}}
	// Manufacture a frame bigger than the 12-bit immediate range by forcing
	// FrameSize directly rather than padding with thousands of slots.
	f := fn(block(append(code, mir.RET{})...))
	f.Frame = mir.FrameLayout{FrameSize: 1 << 16}

	got := prologue(f.Frame, f.Frame.VarsSize)
	if _, ok := got[0].(mir.LoadConst64); !ok {
		t.Fatalf("prologue()[0] = %#v, want LoadConst64 for an out-of-range frame size", got[0])
	}
}
