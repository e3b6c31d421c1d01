package domtree

import (
	"testing"

	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/irbuilder"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

func blockNames(m *ssair.Module, fn ssair.Function) map[string]value.BlockRef {
	bac := ssair.BlockAccessors(m.Blocks)
	out := map[string]value.BlockRef{}
	fn.Blocks.Walk(bac, func(r arena.Ref) bool {
		blk, ok := m.Blocks.Get(r)
		if ok {
			out[blk.Name] = value.BlockRef{Ref: r}
		}
		return true
	})
	return out
}

// buildDiamond constructs: entry -> {then, else} -> join -> ret, the
// textbook diamond CFG dominance tests are built around.
func buildDiamond(t *testing.T) (*ssair.Module, ssair.Function) {
	t.Helper()
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)

	i1 := types.Int(1)
	i32 := types.Int(32)
	fr, err := b.NewFunction("diamond", []types.ID{i1}, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := b.Block()

	thenBlk, err := b.NewBlock("then")
	if err != nil {
		t.Fatalf("NewBlock then: %v", err)
	}
	elseBlk, err := b.NewBlock("else")
	if err != nil {
		t.Fatalf("NewBlock else: %v", err)
	}
	joinBlk, err := b.NewBlock("join")
	if err != nil {
		t.Fatalf("NewBlock join: %v", err)
	}

	b.FocusBlock(entry)
	if err := b.SetBranchTo(value.FuncArg{Func: fr}, thenBlk, elseBlk); err != nil {
		t.Fatalf("SetBranchTo: %v", err)
	}

	b.FocusBlock(thenBlk)
	if err := b.SetJumpTo(joinBlk); err != nil {
		t.Fatalf("SetJumpTo then: %v", err)
	}

	b.FocusBlock(elseBlk)
	if err := b.SetJumpTo(joinBlk); err != nil {
		t.Fatalf("SetJumpTo else: %v", err)
	}

	b.FocusBlock(joinBlk)
	if err := b.SetRet(nil); err != nil {
		t.Fatalf("SetRet: %v", err)
	}

	fn, ok := m.Funcs.Get(fr.Ref)
	if !ok {
		t.Fatal("function not found after construction")
	}
	return m, fn
}

func TestDominatorTreeDiamond(t *testing.T) {
	m, fn := buildDiamond(t)

	tree, err := Build(m, fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	byName := blockNames(m, fn)
	entry, join := byName["entry"], byName["join"]
	then, els := byName["then"], byName["else"]

	if !tree.Dominates(entry, join) {
		t.Error("entry should dominate join")
	}
	if idom, ok := tree.IDom(join); !ok || idom != entry {
		t.Errorf("join's immediate dominator = %v, %v; want entry", idom, ok)
	}
	if tree.Dominates(then, join) {
		t.Error("then must not dominate join: else is a second path around it")
	}
	if tree.Dominates(els, join) {
		t.Error("else must not dominate join: then is a second path around it")
	}
}

// buildStraightLine constructs a -> b -> c, a trivial chain where every
// predecessor strictly dominates everything after it.
func buildStraightLine(t *testing.T) (*ssair.Module, ssair.Function) {
	t.Helper()
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)

	i32 := types.Int(32)
	fr, err := b.NewFunction("chain", nil, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := b.Block()

	mid, err := b.NewBlock("mid")
	if err != nil {
		t.Fatalf("NewBlock mid: %v", err)
	}
	tail, err := b.NewBlock("tail")
	if err != nil {
		t.Fatalf("NewBlock tail: %v", err)
	}

	b.FocusBlock(entry)
	if err := b.SetJumpTo(mid); err != nil {
		t.Fatalf("SetJumpTo mid: %v", err)
	}
	b.FocusBlock(mid)
	if err := b.SetJumpTo(tail); err != nil {
		t.Fatalf("SetJumpTo tail: %v", err)
	}
	b.FocusBlock(tail)
	if err := b.SetRet(nil); err != nil {
		t.Fatalf("SetRet: %v", err)
	}

	fn, ok := m.Funcs.Get(fr.Ref)
	if !ok {
		t.Fatal("function not found after construction")
	}
	return m, fn
}

func TestDominatorTreeStraightLine(t *testing.T) {
	m, fn := buildStraightLine(t)

	tree, err := Build(m, fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	byName := blockNames(m, fn)
	entry, mid, tail := byName["entry"], byName["mid"], byName["tail"]

	if !tree.Dominates(entry, tail) {
		t.Error("entry should dominate tail")
	}
	if idom, ok := tree.IDom(tail); !ok || idom != mid {
		t.Errorf("tail's immediate dominator = %v, %v; want mid", idom, ok)
	}
	if idom, ok := tree.IDom(mid); !ok || idom != entry {
		t.Errorf("mid's immediate dominator = %v, %v; want entry", idom, ok)
	}
}

// buildLoop constructs entry -> header -> body -> header (back edge), with
// header also exiting to tail once the loop condition is false.
func buildLoop(t *testing.T) (*ssair.Module, ssair.Function, map[string]value.BlockRef) {
	t.Helper()
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)

	i1 := types.Int(1)
	i32 := types.Int(32)
	fr, err := b.NewFunction("loop", nil, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := b.Block()

	header, err := b.NewBlock("header")
	if err != nil {
		t.Fatalf("NewBlock header: %v", err)
	}
	body, err := b.NewBlock("body")
	if err != nil {
		t.Fatalf("NewBlock body: %v", err)
	}
	tail, err := b.NewBlock("tail")
	if err != nil {
		t.Fatalf("NewBlock tail: %v", err)
	}

	b.FocusBlock(entry)
	if err := b.SetJumpTo(header); err != nil {
		t.Fatalf("SetJumpTo header: %v", err)
	}

	b.FocusBlock(header)
	cond, err := b.Cmp(ssair.OpIcmp, ssair.CmpNE, ssair.CmpSigned, value.ConstData{Kind: value.ConstZero, Type: i1}, value.ConstData{Kind: value.ConstZero, Type: i1})
	if err != nil {
		t.Fatalf("Cmp: %v", err)
	}
	if err := b.SetBranchTo(value.Inst{Ref: cond}, body, tail); err != nil {
		t.Fatalf("SetBranchTo: %v", err)
	}

	b.FocusBlock(body)
	if err := b.SetJumpTo(header); err != nil {
		t.Fatalf("SetJumpTo back-edge: %v", err)
	}

	b.FocusBlock(tail)
	if err := b.SetRet(nil); err != nil {
		t.Fatalf("SetRet: %v", err)
	}

	fn, ok := m.Funcs.Get(fr.Ref)
	if !ok {
		t.Fatal("function not found after construction")
	}
	return m, fn, blockNames(m, fn)
}

func TestDominatorTreeLoopHeaderDominatesBody(t *testing.T) {
	m, fn, byName := buildLoop(t)

	tree, err := Build(m, fn)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	header, body, tail := byName["header"], byName["body"], byName["tail"]

	if !tree.Dominates(header, body) {
		t.Error("loop header should dominate the loop body")
	}
	if idom, ok := tree.IDom(body); !ok || idom != header {
		t.Errorf("body's immediate dominator = %v, %v; want header", idom, ok)
	}
	if idom, ok := tree.IDom(tail); !ok || idom != header {
		t.Errorf("tail's immediate dominator = %v, %v; want header", idom, ok)
	}
}

func TestPostDominatorTreeDiamond(t *testing.T) {
	m, fn := buildDiamond(t)

	tree, err := BuildPostDom(m, fn)
	if err != nil {
		t.Fatalf("BuildPostDom: %v", err)
	}

	byName := blockNames(m, fn)
	entry, join, then, els := byName["entry"], byName["join"], byName["then"], byName["else"]

	if !tree.Dominates(join, entry) {
		t.Error("join should post-dominate entry: every path from entry reaches join")
	}
	if !tree.Dominates(join, then) {
		t.Error("join should post-dominate then")
	}
	if !tree.Dominates(join, els) {
		t.Error("join should post-dominate else")
	}
}
