package ssair

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/value"
)

// liveSet accumulates every Ref reachable from the module's roots (named
// globals plus, transitively, everything a reachable function's blocks and
// instructions reference). It is a separate pass from sweeping, following
// the three-phase split of the original mark/sweep collector this package
// is grounded on: compute the live set first, then redirect any root
// tables that might point at a slot about to move, then sweep.
type liveSet struct {
	insts   map[arena.Ref]bool
	blocks  map[arena.Ref]bool
	funcs   map[arena.Ref]bool
	globals map[arena.Ref]bool
	exprs   map[arena.Ref]bool
	jumps   map[arena.Ref]bool
}

func newLiveSet() *liveSet {
	return &liveSet{
		insts:   map[arena.Ref]bool{},
		blocks:  map[arena.Ref]bool{},
		funcs:   map[arena.Ref]bool{},
		globals: map[arena.Ref]bool{},
		exprs:   map[arena.Ref]bool{},
		jumps:   map[arena.Ref]bool{},
	}
}

// computeLiveSet walks every named global to fixpoint, marking every node
// transitively reachable from it. Globals are always roots: unlike a
// language runtime, unreferenced-but-exported symbols (e.g. a function
// with external linkage nobody in this module calls) must survive GC.
func (m *Module) computeLiveSet() *liveSet {
	ls := newLiveSet()
	for _, gr := range m.order {
		m.markGlobal(ls, gr)
	}
	return ls
}

func (m *Module) markGlobal(ls *liveSet, gr value.GlobalRef) {
	if ls.globals[gr.Ref] {
		return
	}
	ls.globals[gr.Ref] = true
	g, ok := m.Globals.Get(gr.Ref)
	if !ok {
		return
	}
	switch gg := g.(type) {
	case FuncGlobal:
		if gg.Func.Ref.Valid() {
			m.markFunc(ls, gg.Func)
		}
	case VarGlobal:
		m.markValue(ls, gg.Init)
	case AliasGlobal:
		m.markGlobal(ls, gg.Target)
	}
}

func (m *Module) markFunc(ls *liveSet, fr value.FuncRef) {
	if ls.funcs[fr.Ref] {
		return
	}
	ls.funcs[fr.Ref] = true
	fn, ok := m.Funcs.Get(fr.Ref)
	if !ok {
		return
	}
	bac := BlockAccessors(m.Blocks)
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		m.markBlock(ls, value.BlockRef{Ref: br})
	}
}

func (m *Module) markBlock(ls *liveSet, br value.BlockRef) {
	if ls.blocks[br.Ref] {
		return
	}
	ls.blocks[br.Ref] = true
	blk, ok := m.Blocks.Get(br.Ref)
	if !ok {
		return
	}
	iac := InstAccessors(m.Insts)
	for ir := blk.Insts.Head(); ir != arena.Nil; ir = blk.Insts.Next(iac, ir) {
		m.markInst(ls, value.InstRef{Ref: ir})
	}
	jac := JumpTargetAccessors(m.JumpTargets)
	for jr := blk.Preds.Head(); jr != arena.Nil; jr = blk.Preds.Next(jac, jr) {
		ls.jumps[jr] = true
	}
}

func (m *Module) markInst(ls *liveSet, ir value.InstRef) {
	if ls.insts[ir.Ref] {
		return
	}
	ls.insts[ir.Ref] = true
	inst, ok := m.Insts.Get(ir.Ref)
	if !ok {
		return
	}
	for _, ur := range inst.Operands {
		u, ok := m.Uses.Get(ur.Ref)
		if !ok {
			continue
		}
		m.markValue(ls, u.Operand)
	}
	switch p := inst.Payload.(type) {
	case JumpPayload:
		ls.jumps[p.Target.Ref] = true
	case BrPayload:
		ls.jumps[p.Then.Ref] = true
		ls.jumps[p.Else.Ref] = true
	case SwitchPayload:
		ls.jumps[p.Default.Ref] = true
		for _, c := range p.Cases {
			ls.jumps[c.Target.Ref] = true
		}
	}
}

func (m *Module) markValue(ls *liveSet, v value.Value) {
	switch vv := v.(type) {
	case value.Inst:
		m.markInst(ls, vv.Ref)
	case value.Block:
		m.markBlock(ls, vv.Ref)
	case value.Global:
		m.markGlobal(ls, vv.Ref)
	case value.ConstExpr:
		if ls.exprs[vv.Expr.Ref] {
			return
		}
		ls.exprs[vv.Expr.Ref] = true
		e, ok := m.Exprs.Get(vv.Expr.Ref)
		if !ok {
			return
		}
		switch e.Kind {
		case ExprSplat:
			m.markValue(ls, e.Splat)
		case ExprSparse:
			for _, s := range e.Sparse {
				m.markValue(ls, s.Value)
			}
		default:
			for _, el := range e.Elems {
				m.markValue(ls, el)
			}
		}
	}
}

// Sweep frees every arena slot not reached by computeLiveSet: dead
// instructions/blocks/functions left behind by DCE or block-merging, and
// dead constant-expressions left behind after a value they anchored was
// itself swept. Globals are never swept (every named symbol survives,
// whether or not this module's own functions reference it).
func (m *Module) Sweep() {
	ls := m.computeLiveSet()

	m.Insts.Each(func(r arena.Ref, _ Inst) {
		if !ls.insts[r] {
			m.Insts.Free(r)
		}
	})
	m.Blocks.Each(func(r arena.Ref, _ Block) {
		if !ls.blocks[r] {
			m.Blocks.Free(r)
		}
	})
	m.Funcs.Each(func(r arena.Ref, _ Function) {
		if !ls.funcs[r] {
			m.Funcs.Free(r)
		}
	})
	m.Exprs.Each(func(r arena.Ref, _ Expr) {
		if !ls.exprs[r] {
			m.Exprs.Free(r)
		}
	})
	m.JumpTargets.Each(func(r arena.Ref, _ JumpTarget) {
		if !ls.jumps[r] {
			m.JumpTargets.Free(r)
		}
	})
}
