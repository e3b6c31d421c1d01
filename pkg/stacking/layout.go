// Package stacking computes the final AArch64 stack frame once register
// allocation has replaced every vreg with either a temp physical register
// or a bare StackPos, and rewrites prologue/epilogue and every surviving
// StackPos operand into an X29-relative address (spec §4.11). It
// generalizes the teacher's pkg/stacking, which lays out an FP-relative
// frame for Linear/LTL; here the prologue saves the caller's X29/X30 pair
// and sets X29 to the just-lowered SP, so every slot is addressed from
// X29 as a fixed alias of SP for the rest of the body.
package stacking

import "github.com/ssair-lang/ssair/pkg/mir"

const stackAlignment = 16

// ComputeLayout collects every stack-slot vreg referenced in fn (both
// spilled values regalloc.go addressed via StackPos and address-of-local
// vregs GEP lowering produced) plus the callee-saved registers the body
// actually touches, and assigns each a concrete SP-relative offset.
func ComputeLayout(fn *mir.Function) mir.FrameLayout {
	_, varsSize := slotOffsets(fn)
	varsSize = align16(varsSize)

	usedInts, usedFloats := findUsedCalleeSaved(fn)
	savedRegsSize := int64(len(usedInts)+len(usedFloats)) * 8
	hasCall := containsCall(fn)

	layout := mir.FrameLayout{
		VarsSize:      varsSize,
		SavedRegsSize: savedRegsSize,
		SavedInts:     usedInts,
		SavedFloats:   usedFloats,
		// X29 is repurposed as the locals base by rewriteStackPositions
		// (prolog.go) the moment there's anything to address from it: a
		// local slot, a callee-saved save, or a call clobbering it
		// transitively. Any of those means the caller's X29 must be saved
		// and restored around the body.
		UsesFramePtr: hasCall || varsSize > 0 || len(usedInts) > 0 || len(usedFloats) > 0,
		UsesLinkReg:  hasCall,
	}
	layout.FrameSize = layout.TotalSize()
	return layout
}

func align16(n int64) int64 { return (n + stackAlignment - 1) &^ (stackAlignment - 1) }

// slotOffsets assigns each stack-slot vreg in fn a sequential, unaligned
// offset from the frame's locals area, in collectSlots' first-seen order.
// Shared by ComputeLayout (which only needs the total) and prolog.go's
// Lower (which needs the per-vreg offsets once the layout is final).
func slotOffsets(fn *mir.Function) (offsets map[int]int64, total int64) {
	slots := collectSlots(fn)
	offsets = make(map[int]int64, len(slots))
	for _, v := range slots {
		offsets[v.ID] = total
		total += v.Class.Size()
	}
	return offsets, total
}

// collectSlots returns every distinct VReg named by a StackPos operand in
// fn, in first-seen order so layout is deterministic across runs.
func collectSlots(fn *mir.Function) []mir.VReg {
	seen := map[int]bool{}
	var out []mir.VReg
	add := func(op mir.Operand) {
		sp, ok := op.(mir.StackPos)
		if !ok || seen[sp.VReg.ID] {
			return
		}
		seen[sp.VReg.ID] = true
		out = append(out, sp.VReg)
	}
	for _, blk := range fn.Blocks {
		for _, inst := range blk.Code {
			uses, defs := mir.Operands(inst)
			for _, op := range uses {
				add(op)
			}
			for _, op := range defs {
				add(op)
			}
		}
	}
	return out
}

func findUsedCalleeSaved(fn *mir.Function) (ints, floats []mir.PReg) {
	usedInt := map[mir.PReg]bool{}
	usedFloat := map[mir.PReg]bool{}
	mark := func(op mir.Operand) {
		pr, ok := op.(mir.PReg)
		if !ok {
			return
		}
		if pr.IsInt() {
			usedInt[pr] = true
		} else if pr.IsFloat() {
			usedFloat[pr] = true
		}
	}
	for _, blk := range fn.Blocks {
		for _, inst := range blk.Code {
			uses, defs := mir.Operands(inst)
			for _, op := range uses {
				mark(op)
			}
			for _, op := range defs {
				mark(op)
			}
		}
	}
	for _, r := range mir.CalleeSavedInts {
		if usedInt[r] {
			ints = append(ints, r)
		}
	}
	for _, r := range mir.CalleeSavedFloats {
		if usedFloat[r] {
			floats = append(floats, r)
		}
	}
	return ints, floats
}

func containsCall(fn *mir.Function) bool {
	for _, blk := range fn.Blocks {
		for _, inst := range blk.Code {
			if _, ok := inst.(mir.MirCall); ok {
				return true
			}
		}
	}
	return false
}
