// Package domtree computes dominator and post-dominator trees over a
// ssair.Function's control-flow graph using the Semi-NCA algorithm (a
// DSU-based semidominator computation followed by a single pass in
// ascending pre-order that resolves immediate dominators), generalized from the teacher's pkg/rtl CFG-walk
// utilities to operate over Blocks linked by JumpTarget edges instead of
// RTL's successor-index arrays.
package domtree

import (
	"sort"

	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/value"
)

// Tree is a dominator (or post-dominator) tree: each node's immediate
// dominator, keyed by DFS pre-order index rather than arena.Ref directly
// so the Semi-NCA bookkeeping (ancestor links, DSU) can use plain int
// slices.
type Tree struct {
	nodes     []value.BlockRef // index -> block, pre-order of the DFS this tree was built from
	indexOf   map[value.BlockRef]int
	idom      []int // index -> idom index, -1 for the root
	isVirtual bool  // true for a post-dom tree's synthetic exit node
}

// IDom returns the immediate dominator of br, or (zero, false) if br is
// the tree's root or unreachable from it.
func (t *Tree) IDom(br value.BlockRef) (value.BlockRef, bool) {
	i, ok := t.indexOf[br]
	if !ok || t.idom[i] < 0 {
		return value.BlockRef{}, false
	}
	return t.nodes[t.idom[i]], true
}

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (t *Tree) Dominates(a, b value.BlockRef) bool {
	ai, aok := t.indexOf[a]
	bi, bok := t.indexOf[b]
	if !aok || !bok {
		return false
	}
	for bi != -1 {
		if bi == ai {
			return true
		}
		bi = t.idom[bi]
	}
	return false
}

// cfg is a snapshot of a function's successor/predecessor edges, read out
// once up front so the Semi-NCA numeric algorithm never has to dereference
// arena.Refs mid-computation.
type cfg struct {
	succs  [][]int
	preds  [][]int
	order  []value.BlockRef
	index  map[value.BlockRef]int
	parent []int // index -> DFS spanning-tree parent index, -1 for the root
}

// buildCFG renumbers fn's blocks into a DFS pre-order from entry and
// records successor/predecessor edges as indices into that order, so
// semiNCA never has to dereference an arena.Ref mid-computation.
func buildCFG(m *ssair.Module, fn ssair.Function, entry value.BlockRef) *cfg {
	bac := ssair.BlockAccessors(m.Blocks)

	rawSuccs := map[value.BlockRef][]value.BlockRef{}
	rawPreds := map[value.BlockRef][]value.BlockRef{}
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		b := value.BlockRef{Ref: br}
		rawSuccs[b] = successorsOf(m, b)
		for _, s := range rawSuccs[b] {
			rawPreds[s] = append(rawPreds[s], b)
		}
	}

	c := buildDFS(entry, func(b value.BlockRef) []value.BlockRef { return rawSuccs[b] })
	c.succs = make([][]int, len(c.order))
	c.preds = make([][]int, len(c.order))
	for i, b := range c.order {
		for _, s := range rawSuccs[b] {
			if si, ok := c.index[s]; ok {
				c.succs[i] = append(c.succs[i], si)
			}
		}
		for _, p := range rawPreds[b] {
			if pi, ok := c.index[p]; ok {
				c.preds[i] = append(c.preds[i], pi)
			}
		}
	}

	return c
}

// dfsFrame is a pending stack entry: b discovered via edge from parent (Nil
// for the root).
type dfsFrame struct {
	b      value.BlockRef
	parent value.BlockRef
}

// buildDFS runs an explicit-stack preorder DFS from root, recording each
// node's true spanning-tree parent as the discoverer that caused its first
// visit. semiNCA requires this exact parent relationship (not merely some
// predecessor) since the semidominator computation walks it directly.
func buildDFS(root value.BlockRef, succsOf func(value.BlockRef) []value.BlockRef) *cfg {
	c := &cfg{index: map[value.BlockRef]int{}}
	visited := map[value.BlockRef]bool{}
	stack := []dfsFrame{{b: root, parent: value.BlockRef{}}}
	first := true
	for len(stack) > 0 {
		fr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[fr.b] {
			continue
		}
		visited[fr.b] = true
		idx := len(c.order)
		c.index[fr.b] = idx
		c.order = append(c.order, fr.b)
		if first {
			c.parent = append(c.parent, -1)
			first = false
		} else {
			c.parent = append(c.parent, c.index[fr.parent])
		}
		succs := append([]value.BlockRef(nil), succsOf(fr.b)...)
		sort.Slice(succs, func(i, j int) bool { return succs[i].Ref.Index() < succs[j].Ref.Index() })
		for i := len(succs) - 1; i >= 0; i-- {
			if !visited[succs[i]] {
				stack = append(stack, dfsFrame{b: succs[i], parent: fr.b})
			}
		}
	}
	return c
}

func successorsOf(m *ssair.Module, br value.BlockRef) []value.BlockRef {
	term := m.Terminator(br)
	if !term.Ref.Valid() {
		return nil
	}
	inst, ok := m.Insts.Get(term.Ref)
	if !ok {
		return nil
	}
	var out []value.BlockRef
	addTarget := func(jr value.JumpTargetRef) {
		jt, ok := m.JumpTargets.Get(jr.Ref)
		if ok {
			out = append(out, jt.To)
		}
	}
	switch p := inst.Payload.(type) {
	case ssair.JumpPayload:
		addTarget(p.Target)
	case ssair.BrPayload:
		addTarget(p.Then)
		addTarget(p.Else)
	case ssair.SwitchPayload:
		addTarget(p.Default)
		for _, c := range p.Cases {
			addTarget(c.Target)
		}
	}
	return out
}

// Build computes the dominator tree of fn rooted at its entry block.
func Build(m *ssair.Module, fn ssair.Function) (*Tree, error) {
	entry := fn.Blocks.Head()
	if entry == arena.Nil {
		return nil, &ssaerr.NodeNotFound{What: "function has no blocks"}
	}
	c := buildCFG(m, fn, value.BlockRef{Ref: entry})
	return semiNCA(c), nil
}

// BuildPostDom computes the post-dominator tree of fn: a synthetic virtual
// exit node is predecessor-linked to every block lacking a successor (Ret/
// Unreachable-terminated blocks), then Semi-NCA runs over the
// predecessor-as-successor reversed graph from that virtual exit.
func BuildPostDom(m *ssair.Module, fn ssair.Function) (*Tree, error) {
	bac := ssair.BlockAccessors(m.Blocks)
	var exits []value.BlockRef
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		if len(successorsOf(m, value.BlockRef{Ref: br})) == 0 {
			exits = append(exits, value.BlockRef{Ref: br})
		}
	}
	if len(exits) == 0 {
		return nil, &ssaerr.NodeNotFound{What: "function has no exit block (infinite loop with no ret/unreachable)"}
	}

	virtualExit := value.BlockRef{} // Nil-ref sentinel standing for the synthetic node

	all := map[value.BlockRef]bool{}
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		all[value.BlockRef{Ref: br}] = true
	}
	rawPreds := map[value.BlockRef][]value.BlockRef{}
	for br := range all {
		for _, s := range successorsOf(m, br) {
			rawPreds[s] = append(rawPreds[s], br)
		}
	}
	// reversedSuccs(b) walks the original predecessor edges of b, which are
	// this post-dom graph's successor edges; the virtual exit's reversed
	// successors are the function's real exit blocks.
	reversedSuccs := func(b value.BlockRef) []value.BlockRef {
		if b == virtualExit {
			return exits
		}
		return rawPreds[b]
	}

	c := buildDFS(virtualExit, reversedSuccs)
	c.succs = make([][]int, len(c.order))
	c.preds = make([][]int, len(c.order))
	for i, b := range c.order {
		for _, s := range reversedSuccs(b) {
			if si, ok := c.index[s]; ok {
				c.succs[i] = append(c.succs[i], si)
				c.preds[si] = append(c.preds[si], i)
			}
		}
	}

	t := semiNCA(c)
	t.isVirtual = true
	return t, nil
}

// semiNCA runs the DSU-accelerated (Lengauer-Tarjan eval/link)
// semidominator computation in decreasing pre-order, followed by a single
// ascending sweep that converts the provisional dominators into immediate
// dominators by chasing already-finalized ancestors. There is no fixpoint
// iteration.
func semiNCA(c *cfg) *Tree {
	n := len(c.order)
	parent := c.parent
	semi := make([]int, n)
	label := make([]int, n)
	ancestor := make([]int, n)
	idom := make([]int, n)
	bucket := make([][]int, n)

	for i := range c.order {
		semi[i] = i
		label[i] = i
		ancestor[i] = -1
		idom[i] = -1
	}

	var compress func(v int)
	compress = func(v int) {
		if ancestor[ancestor[v]] != -1 {
			compress(ancestor[v])
			if semi[label[ancestor[v]]] < semi[label[v]] {
				label[v] = label[ancestor[v]]
			}
			ancestor[v] = ancestor[ancestor[v]]
		}
	}
	eval := func(v int) int {
		if ancestor[v] == -1 {
			return v
		}
		compress(v)
		return label[v]
	}

	for i := n - 1; i >= 1; i-- {
		for _, p := range c.preds[i] {
			u := eval(p)
			if semi[u] < semi[i] {
				semi[i] = semi[u]
			}
		}
		bucket[semi[i]] = append(bucket[semi[i]], i)
		ancestor[i] = parent[i]
		for _, v := range bucket[parent[i]] {
			u := eval(v)
			if semi[u] < semi[v] {
				idom[v] = u
			} else {
				idom[v] = parent[i]
			}
		}
		bucket[parent[i]] = nil
	}
	// idom currently holds, for each i, either the true immediate dominator
	// (when it was decided via the semi[u] < semi[v] branch above) or a
	// provisional value (parent[i]) that must be chased up the partially-
	// built tree until it reaches a node at or before semi[i] in pre-order.
	for i := 1; i < n; i++ {
		v := i
		for idom[v] > semi[i] {
			v = idom[v]
		}
		idom[i] = idom[v]
	}

	indexOf := make(map[value.BlockRef]int, n)
	for i, b := range c.order {
		indexOf[b] = i
	}
	idom[0] = -1

	return &Tree{nodes: c.order, indexOf: indexOf, idom: idom}
}

// AssertModuleDominance checks, for every function, that every SSA
// operand's definition dominates its use (a Phi incoming value need only
// dominate the corresponding predecessor block, not the phi's own block).
func AssertModuleDominance(m *ssair.Module) []error {
	var errs []error
	m.ForallFuncs(false, func(_ value.GlobalRef, fg ssair.FuncGlobal) {
		fn, ok := m.Funcs.Get(fg.Func.Ref)
		if !ok {
			return
		}
		tree, err := Build(m, fn)
		if err != nil {
			errs = append(errs, err)
			return
		}
		errs = append(errs, checkFunc(m, fn, tree)...)
	})
	return errs
}

func checkFunc(m *ssair.Module, fn ssair.Function, tree *Tree) []error {
	var errs []error
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
			errs = append(errs, checkInst(m, value.BlockRef{Ref: br}, inst, tree)...)
		}
	}
	return errs
}

func checkInst(m *ssair.Module, owner value.BlockRef, inst ssair.Inst, tree *Tree) []error {
	var errs []error
	isPhi := inst.Opcode.IsPhi()
	for idx, ur := range inst.Operands {
		u, ok := m.Uses.Get(ur.Ref)
		if !ok {
			continue
		}
		useSite := owner
		if isPhi && u.Kind.Role == value.RolePhiIncomingValue {
			pairIdx := idx + 1 // Phi operands are laid out as (value, block) pairs
			if pairIdx < len(inst.Operands) {
				if pu, ok := m.Uses.Get(inst.Operands[pairIdx].Ref); ok {
					if blkVal, ok := pu.Operand.(value.Block); ok {
						useSite = blkVal.Ref
					}
				}
			}
		}
		if instVal, ok := u.Operand.(value.Inst); ok {
			defInst, ok := m.Insts.Get(instVal.Ref.Ref)
			if !ok {
				continue
			}
			if !tree.Dominates(defInst.Parent, useSite) && defInst.Parent != useSite {
				errs = append(errs, &ssaerr.NotDominated{
					Operand: ssaerr.StringerString("inst"),
					User:    ssaerr.StringerString("inst"),
				})
			}
		}
	}
	return errs
}
