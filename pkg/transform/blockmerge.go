package transform

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/value"
)

// MergeBlocks repeatedly applies three block-merge rules to fr's CFG until
// no further change is possible: delete an empty pass-through block, merge
// a block up into its sole single-predecessor successor, or merge a block
// down from its sole single-successor predecessor. The latter two are the
// same rewrite viewed from opposite ends of one edge.
func MergeBlocks(m *ssair.Module, fr value.FuncRef) {
	for mergeBlocksOnePass(m, fr) {
	}
}

func mergeBlocksOnePass(m *ssair.Module, fr value.FuncRef) bool {
	fn, ok := m.Funcs.Get(fr.Ref)
	if !ok {
		return false
	}
	bac := ssair.BlockAccessors(m.Blocks)
	var blocks []value.BlockRef
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		blocks = append(blocks, value.BlockRef{Ref: br})
	}

	changed := false
	for _, br := range blocks {
		if _, ok := m.Blocks.Get(br.Ref); !ok {
			continue // already removed earlier in this pass
		}
		if tryDeleteEmpty(m, fr, br) {
			changed = true
			continue
		}
		if tryMergeUp(m, fr, br) {
			changed = true
			continue
		}
		if tryMergeDown(m, fr, br) {
			changed = true
		}
	}
	return changed
}

// jumpSuccessor reports the sole successor of br's terminator if it is an
// unconditional jump.
func jumpSuccessor(m *ssair.Module, br value.BlockRef) (value.BlockRef, bool) {
	tr := m.Terminator(br)
	if !tr.Ref.Valid() {
		return value.BlockRef{}, false
	}
	inst, ok := m.Insts.Get(tr.Ref)
	if !ok || inst.Opcode != ssair.OpJump {
		return value.BlockRef{}, false
	}
	jp, ok := inst.Payload.(ssair.JumpPayload)
	if !ok {
		return value.BlockRef{}, false
	}
	jt, ok := m.JumpTargets.Get(jp.Target.Ref)
	if !ok {
		return value.BlockRef{}, false
	}
	return jt.To, true
}

// blockSuccessors collects every destination block of br's terminator.
func blockSuccessors(m *ssair.Module, br value.BlockRef) []value.BlockRef {
	tr := m.Terminator(br)
	if !tr.Ref.Valid() {
		return nil
	}
	inst, ok := m.Insts.Get(tr.Ref)
	if !ok {
		return nil
	}
	var out []value.BlockRef
	dest := func(jr value.JumpTargetRef) {
		jt, ok := m.JumpTargets.Get(jr.Ref)
		if ok {
			out = append(out, jt.To)
		}
	}
	switch p := inst.Payload.(type) {
	case ssair.JumpPayload:
		dest(p.Target)
	case ssair.BrPayload:
		dest(p.Then)
		dest(p.Else)
	case ssair.SwitchPayload:
		dest(p.Default)
		for _, c := range p.Cases {
			dest(c.Target)
		}
	}
	return out
}

// singlePred reports br's sole incoming JumpTarget, if it has exactly one.
func singlePred(m *ssair.Module, br value.BlockRef) (value.JumpTargetRef, bool) {
	blk, ok := m.Blocks.Get(br.Ref)
	if !ok || blk.Preds.Len() != 1 {
		return value.JumpTargetRef{}, false
	}
	return value.JumpTargetRef{Ref: blk.Preds.Head()}, true
}

// predBlockOf returns the block that owns jr's terminator.
func predBlockOf(m *ssair.Module, jr value.JumpTargetRef) (value.BlockRef, bool) {
	jt, ok := m.JumpTargets.Get(jr.Ref)
	if !ok {
		return value.BlockRef{}, false
	}
	inst, ok := m.Insts.Get(jt.From.Ref)
	if !ok {
		return value.BlockRef{}, false
	}
	return inst.Parent, true
}

// predHasEdgeTo reports whether pred already has a direct outgoing edge to
// succ (other than the one being collapsed away), which would make
// retargeting the collapsed edge onto succ create a duplicate.
func predHasEdgeTo(m *ssair.Module, pred, succ value.BlockRef, exclude value.JumpTargetRef) bool {
	succBlk, ok := m.Blocks.Get(succ.Ref)
	if !ok {
		return false
	}
	jac := ssair.JumpTargetAccessors(m.JumpTargets)
	for jr := succBlk.Preds.Head(); jr != arena.Nil; jr = succBlk.Preds.Next(jac, jr) {
		if jr == exclude.Ref {
			continue
		}
		if pb, ok := predBlockOf(m, value.JumpTargetRef{Ref: jr}); ok && pb == pred {
			return true
		}
	}
	return false
}

// rewritePhiIncomingBlock retargets every phi in succ whose incoming-block
// operand names oldB to name newB instead, since oldB is being removed or
// absorbed.
func rewritePhiIncomingBlock(m *ssair.Module, succ, oldB, newB value.BlockRef) {
	blk, ok := m.Blocks.Get(succ.Ref)
	if !ok {
		return
	}
	iac := ssair.InstAccessors(m.Insts)
	for ir := blk.Insts.Head(); ir != arena.Nil && ir != blk.PhiEnd.Ref; ir = blk.Insts.Next(iac, ir) {
		inst, ok := m.Insts.Get(ir)
		if !ok || !inst.Opcode.IsPhi() {
			continue
		}
		for _, ur := range inst.Operands {
			u, ok := m.Uses.Get(ur.Ref)
			if !ok || u.Kind.Role != value.RolePhiIncomingBlock {
				continue
			}
			bv, ok := u.Operand.(value.Block)
			if !ok || bv.Ref != oldB.Ref {
				continue
			}
			m.RetargetOperand(ur, value.Block{Ref: newB.Ref})
		}
	}
}

// retargetJumpTarget moves jr's destination from its current To to newTo,
// unlinking it from the old destination's Preds and relinking into the new
// one.
func retargetJumpTarget(m *ssair.Module, jr value.JumpTargetRef, newTo value.BlockRef) {
	jt, ok := m.JumpTargets.Get(jr.Ref)
	if !ok {
		return
	}
	oldBlk, ok := m.Blocks.Get(jt.To.Ref)
	jac := ssair.JumpTargetAccessors(m.JumpTargets)
	if ok {
		oldBlk.Preds.Remove(jac, jr.Ref)
		m.Blocks.Set(jt.To.Ref, oldBlk)
	}
	jt.To = newTo
	m.JumpTargets.Set(jr.Ref, jt)

	newBlk, ok := m.Blocks.Get(newTo.Ref)
	if !ok {
		return
	}
	newBlk.Preds.PushBack(jac, jr.Ref)
	m.Blocks.Set(newTo.Ref, newBlk)
}

func removeBlockFromFunc(m *ssair.Module, fr value.FuncRef, br value.BlockRef) {
	fn, ok := m.Funcs.Get(fr.Ref)
	if !ok {
		return
	}
	bac := ssair.BlockAccessors(m.Blocks)
	fn.Blocks.Remove(bac, br.Ref)
	m.Funcs.Set(fr.Ref, fn)
}

// tryDeleteEmpty removes br entirely when it is nothing but an
// unconditional jump with a single predecessor and a single successor,
// reusing the predecessor's edge to point directly at the successor.
func tryDeleteEmpty(m *ssair.Module, fr value.FuncRef, br value.BlockRef) bool {
	fn, ok := m.Funcs.Get(fr.Ref)
	if !ok || fn.Blocks.Head() == br.Ref {
		return false // never delete the entry block
	}
	blk, ok := m.Blocks.Get(br.Ref)
	if !ok || blk.Insts.Len() != 2 { // PhiInstEnd + terminator only
		return false
	}
	succ, ok := jumpSuccessor(m, br)
	if !ok || succ.Ref == br.Ref {
		return false
	}
	predJr, ok := singlePred(m, br)
	if !ok {
		return false
	}
	pred, ok := predBlockOf(m, predJr)
	if !ok || pred.Ref == br.Ref {
		return false
	}
	if predHasEdgeTo(m, pred, succ, predJr) {
		return false
	}

	rewritePhiIncomingBlock(m, succ, br, pred)
	retargetJumpTarget(m, predJr, succ)

	blk, _ = m.Blocks.Get(br.Ref)
	iac := ssair.InstAccessors(m.Insts)
	for ir := blk.Insts.Head(); ir != arena.Nil; {
		next := blk.Insts.Next(iac, ir)
		detachInst(m, ir)
		blk.Insts.Remove(iac, ir)
		m.Insts.Free(ir)
		ir = next
	}
	m.Blocks.Set(br.Ref, blk)

	removeBlockFromFunc(m, fr, br)
	m.Blocks.Free(br.Ref)
	return true
}

func tryMergeUp(m *ssair.Module, fr value.FuncRef, br value.BlockRef) bool {
	succ, ok := jumpSuccessor(m, br)
	if !ok || succ.Ref == br.Ref {
		return false
	}
	sblk, ok := m.Blocks.Get(succ.Ref)
	if !ok || sblk.Preds.Len() != 1 {
		return false
	}
	return mergeUp(m, fr, br, succ)
}

func tryMergeDown(m *ssair.Module, fr value.FuncRef, br value.BlockRef) bool {
	predJr, ok := singlePred(m, br)
	if !ok {
		return false
	}
	pred, ok := predBlockOf(m, predJr)
	if !ok || pred.Ref == br.Ref {
		return false
	}
	succ, ok := jumpSuccessor(m, pred)
	if !ok || succ.Ref != br.Ref {
		return false
	}
	return mergeUp(m, fr, pred, br)
}

// mergeUp absorbs src's body into dst, given that dst's only edge out is an
// unconditional jump to src and src's only predecessor is dst.
func mergeUp(m *ssair.Module, fr value.FuncRef, dst, src value.BlockRef) bool {
	fn, ok := m.Funcs.Get(fr.Ref)
	if !ok || fn.Blocks.Head() == src.Ref {
		return false // never absorb the entry block
	}

	succs := blockSuccessors(m, src)

	if !removeJumpTo(m, dst, src) {
		return false
	}
	resolvePhis(m, src)

	srcBlk, ok := m.Blocks.Get(src.Ref)
	if !ok {
		return false
	}
	iac := ssair.InstAccessors(m.Insts)
	detachInst(m, srcBlk.PhiEnd.Ref)
	srcBlk.Insts.Remove(iac, srcBlk.PhiEnd.Ref)
	m.Insts.Free(srcBlk.PhiEnd.Ref)
	m.Blocks.Set(src.Ref, srcBlk)

	dstBlk, ok := m.Blocks.Get(dst.Ref)
	if !ok {
		return false
	}
	srcBlk, _ = m.Blocks.Get(src.Ref)
	for ir := srcBlk.Insts.Head(); ir != arena.Nil; {
		next := srcBlk.Insts.Next(iac, ir)
		srcBlk.Insts.Remove(iac, ir)
		dstBlk.Insts.PushBack(iac, ir)
		inst, _ := m.Insts.Get(ir)
		inst.Parent = dst
		m.Insts.Set(ir, inst)
		ir = next
	}
	m.Blocks.Set(dst.Ref, dstBlk)
	m.Blocks.Set(src.Ref, srcBlk)

	for _, s := range succs {
		if s.Ref != src.Ref {
			rewritePhiIncomingBlock(m, s, src, dst)
		}
	}

	removeBlockFromFunc(m, fr, src)
	m.Blocks.Free(src.Ref)
	return true
}

// removeJumpTo verifies dst's terminator is an unconditional jump to src,
// then removes that edge (and dst's now-obsolete terminator instruction).
func removeJumpTo(m *ssair.Module, dst, src value.BlockRef) bool {
	tr := m.Terminator(dst)
	if !tr.Ref.Valid() {
		return false
	}
	inst, ok := m.Insts.Get(tr.Ref)
	if !ok || inst.Opcode != ssair.OpJump {
		return false
	}
	jp, ok := inst.Payload.(ssair.JumpPayload)
	if !ok {
		return false
	}
	jt, ok := m.JumpTargets.Get(jp.Target.Ref)
	if !ok || jt.To.Ref != src.Ref {
		return false
	}

	srcBlk, ok := m.Blocks.Get(src.Ref)
	if !ok {
		return false
	}
	jac := ssair.JumpTargetAccessors(m.JumpTargets)
	srcBlk.Preds.Remove(jac, jp.Target.Ref)
	m.Blocks.Set(src.Ref, srcBlk)
	m.JumpTargets.Free(jp.Target.Ref)

	dstBlk, ok := m.Blocks.Get(dst.Ref)
	if !ok {
		return false
	}
	iac := ssair.InstAccessors(m.Insts)
	detachInst(m, tr.Ref)
	dstBlk.Insts.Remove(iac, tr.Ref)
	m.Insts.Free(tr.Ref)
	m.Blocks.Set(dst.Ref, dstBlk)
	return true
}

// resolvePhis rewrites every phi at the head of src, whose sole incoming
// edge is now trivial, by replacing each of its users with the phi's one
// incoming value and removing the phi itself.
func resolvePhis(m *ssair.Module, src value.BlockRef) {
	blk, ok := m.Blocks.Get(src.Ref)
	if !ok {
		return
	}
	iac := ssair.InstAccessors(m.Insts)
	var phis []arena.Ref
	for ir := blk.Insts.Head(); ir != arena.Nil && ir != blk.PhiEnd.Ref; ir = blk.Insts.Next(iac, ir) {
		inst, ok := m.Insts.Get(ir)
		if ok && inst.Opcode.IsPhi() {
			phis = append(phis, ir)
		}
	}
	for _, ir := range phis {
		resolveTrivialPhi(m, src, ir)
	}
}

func resolveTrivialPhi(m *ssair.Module, src value.BlockRef, ir arena.Ref) {
	inst, ok := m.Insts.Get(ir)
	if !ok || len(inst.Operands) != 2 {
		return
	}
	valUse, ok := m.Uses.Get(inst.Operands[0].Ref)
	if !ok {
		return
	}
	incoming := valUse.Operand

	uac := value.Accessors(m.Uses)
	var users []value.UseRef
	inst.Users.Walk(uac, func(ur value.UseRef) bool {
		users = append(users, ur)
		return true
	})
	for _, ur := range users {
		m.RetargetOperand(ur, incoming)
	}

	for _, ur := range inst.Operands {
		m.ClearOperand(ur)
	}

	blk, ok := m.Blocks.Get(src.Ref)
	if !ok {
		return
	}
	iac := ssair.InstAccessors(m.Insts)
	blk.Insts.Remove(iac, ir)
	m.Blocks.Set(src.Ref, blk)
	m.Insts.Free(ir)
}
