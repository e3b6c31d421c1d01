// Package transform implements module-cleanup passes that run after IR
// construction or rewriting: dead-code elimination, CFG block-merge, and
// constant-expression deduplication, plus an LLVM-text compatibility
// adapter. Each pass stands alone; Run composes them in the order a fresh
// build typically wants, generalizing the teacher's pkg/regalloc/transform.go
// whole-function rewrite shape and pkg/linearize's cleanup/tunneling passes
// from RTL/Linear code to the SSA graph.
package transform

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/value"
)

// DCE removes every instruction in fn unreachable from a side-effect root:
// every terminator, every call, and every store whose pointer does not
// provably point to a locally-allocated slot used only as a store target.
// Reachability is the transitive closure over operand producers.
func DCE(m *ssair.Module, fn ssair.Function) {
	live := markLiveInsts(m, fn)

	bac := ssair.BlockAccessors(m.Blocks)
	iac := ssair.InstAccessors(m.Insts)
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		blk, ok := m.Blocks.Get(br)
		if !ok {
			continue
		}
		var dead []arena.Ref
		for ir := blk.Insts.Head(); ir != arena.Nil; ir = blk.Insts.Next(iac, ir) {
			if !live[ir] {
				dead = append(dead, ir)
			}
		}
		for _, ir := range dead {
			detachInst(m, ir)
			blk.Insts.Remove(iac, ir)
			m.Insts.Free(ir)
		}
		m.Blocks.Set(br, blk)
	}
}

// markLiveInsts computes the transitive closure of fn's side-effect roots
// over the operand producer chain, returning the set of instruction refs
// that must survive.
func markLiveInsts(m *ssair.Module, fn ssair.Function) map[arena.Ref]bool {
	live := map[arena.Ref]bool{}
	var worklist []arena.Ref

	bac := ssair.BlockAccessors(m.Blocks)
	iac := ssair.InstAccessors(m.Insts)
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		blk, ok := m.Blocks.Get(br)
		if !ok {
			continue
		}
		for ir := blk.Insts.Head(); ir != arena.Nil; ir = blk.Insts.Next(iac, ir) {
			inst, ok := m.Insts.Get(ir)
			if !ok {
				continue
			}
			if isRoot(m, inst) {
				live[ir] = true
				worklist = append(worklist, ir)
			}
		}
	}

	for len(worklist) > 0 {
		ir := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		inst, ok := m.Insts.Get(ir)
		if !ok {
			continue
		}
		for _, ur := range inst.Operands {
			u, ok := m.Uses.Get(ur.Ref)
			if !ok {
				continue
			}
			iv, ok := u.Operand.(value.Inst)
			if !ok {
				continue
			}
			if !live[iv.Ref.Ref] {
				live[iv.Ref.Ref] = true
				worklist = append(worklist, iv.Ref.Ref)
			}
		}
	}

	return live
}

// isRoot reports whether inst is an unconditional side-effect marker: a
// terminator, the phi-head sentinel (structural, never a DCE candidate), a
// call, or a store that cannot be proven dead.
func isRoot(m *ssair.Module, inst ssair.Inst) bool {
	switch {
	case inst.Opcode.IsTerminator():
		return true
	case inst.Opcode == ssair.OpPhiInstEnd:
		return true
	case inst.Opcode == ssair.OpCall:
		return true
	case inst.Opcode == ssair.OpStore:
		return !storesToLocalOnlySlot(m, inst)
	}
	return false
}

// storesToLocalOnlySlot reports whether inst (a Store) targets an Alloca
// whose every use is itself a StoreTarget: the slot is never read and its
// address never escapes, so nothing can ever observe the write.
func storesToLocalOnlySlot(m *ssair.Module, inst ssair.Inst) bool {
	var target value.Value
	for _, ur := range inst.Operands {
		u, ok := m.Uses.Get(ur.Ref)
		if !ok {
			continue
		}
		if u.Kind.Role == value.RoleStoreTarget {
			target = u.Operand
			break
		}
	}

	iv, ok := target.(value.Inst)
	if !ok {
		return false
	}
	alloca, ok := m.Insts.Get(iv.Ref.Ref)
	if !ok || alloca.Opcode != ssair.OpAlloca {
		return false
	}

	uac := value.Accessors(m.Uses)
	onlyStores := true
	alloca.Users.Walk(uac, func(ur value.UseRef) bool {
		u, ok := m.Uses.Get(ur.Ref)
		if !ok {
			return true
		}
		if u.Kind.Role != value.RoleStoreTarget {
			onlyStores = false
			return false
		}
		return true
	})
	return onlyStores
}

// detachInst clears every operand use owned by ir before it is removed from
// its block and freed, so each referenced producer's UserList loses the
// entry (ClearOperand both detaches and frees the Use's own arena slot).
func detachInst(m *ssair.Module, ir arena.Ref) {
	inst, ok := m.Insts.Get(ir)
	if !ok {
		return
	}
	for _, ur := range inst.Operands {
		m.ClearOperand(ur)
	}
}
