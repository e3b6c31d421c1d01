package transform

import (
	"math/big"
	"testing"

	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/irbuilder"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

func blockCount(m *ssair.Module, fn ssair.Function) int {
	bac := ssair.BlockAccessors(m.Blocks)
	n := 0
	fn.Blocks.Walk(bac, func(arena.Ref) bool { n++; return true })
	return n
}

func constInt(ty types.ID, n int64) value.ConstData {
	return value.ConstData{Kind: value.ConstInt, Type: ty, Int: big.NewInt(n)}
}

func TestDCERemovesDeadArithmetic(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)
	i32 := types.Int(32)

	fr, err := b.NewFunction("f", nil, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}

	dead, err := b.BinOp(ssair.OpAdd, i32, constInt(i32, 1), constInt(i32, 2))
	if err != nil {
		t.Fatalf("BinOp: %v", err)
	}
	if err := b.SetRet(value.ConstData{Kind: value.ConstZero, Type: i32}); err != nil {
		t.Fatalf("SetRet: %v", err)
	}

	fn, _ := m.Funcs.Get(fr.Ref)
	DCE(m, fn)
	m.Sweep()

	if _, ok := m.Insts.Get(dead.Ref); ok {
		t.Error("dead add instruction should have been removed")
	}
}

func TestDCE_DeadStoreElimination(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)
	i32 := types.Int(32)

	fr, err := b.NewFunction("f", nil, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}

	ptr, err := b.Alloca(i32, 2)
	if err != nil {
		t.Fatalf("Alloca: %v", err)
	}
	store, err := b.Store(constInt(i32, 7), value.Inst{Ref: ptr}, 2)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := b.SetRet(value.ConstData{Kind: value.ConstZero, Type: i32}); err != nil {
		t.Fatalf("SetRet: %v", err)
	}

	fn, _ := m.Funcs.Get(fr.Ref)
	DCE(m, fn)
	m.Sweep()

	if _, ok := m.Insts.Get(store.Ref); ok {
		t.Error("store to a never-loaded local slot is not a side-effect root and should have been removed")
	}
	if _, ok := m.Insts.Get(ptr.Ref); ok {
		t.Error("alloca whose only user was the dead store should have been removed")
	}
}

func TestMergeBlocksDeletesEmptyPassthrough(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)
	i32 := types.Int(32)

	fr, err := b.NewFunction("f", nil, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := b.Block()

	empty, err := b.NewBlock("empty")
	if err != nil {
		t.Fatalf("NewBlock empty: %v", err)
	}
	tail, err := b.NewBlock("tail")
	if err != nil {
		t.Fatalf("NewBlock tail: %v", err)
	}

	b.FocusBlock(entry)
	if err := b.SetJumpTo(empty); err != nil {
		t.Fatalf("SetJumpTo empty: %v", err)
	}
	b.FocusBlock(empty)
	if err := b.SetJumpTo(tail); err != nil {
		t.Fatalf("SetJumpTo tail: %v", err)
	}
	b.FocusBlock(tail)
	if err := b.SetRet(nil); err != nil {
		t.Fatalf("SetRet: %v", err)
	}

	fn, _ := m.Funcs.Get(fr.Ref)
	MergeBlocks(m, fr)

	fn, _ = m.Funcs.Get(fr.Ref)
	// Merging runs to a fixpoint: once the empty passthrough is gone, tail
	// is entry's sole single-predecessor successor and is merged in too.
	if n := blockCount(m, fn); n != 1 {
		t.Fatalf("expected 1 block after deleting the empty passthrough and merging tail, got %d", n)
	}
	if _, ok := m.Blocks.Get(empty.Ref); ok {
		t.Error("empty passthrough block should have been deleted")
	}
	if _, ok := m.Blocks.Get(tail.Ref); ok {
		t.Error("tail should have been merged into entry")
	}

	entryTerm := m.Terminator(entry)
	inst, ok := m.Insts.Get(entryTerm.Ref)
	if !ok || inst.Opcode != ssair.OpRet {
		t.Fatal("entry should now end in tail's ret")
	}
}

func TestMergeBlocksMergesUpSingleSuccessor(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)
	i32 := types.Int(32)

	fr, err := b.NewFunction("f", nil, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := b.Block()

	next, err := b.NewBlock("next")
	if err != nil {
		t.Fatalf("NewBlock next: %v", err)
	}

	b.FocusBlock(entry)
	if err := b.SetJumpTo(next); err != nil {
		t.Fatalf("SetJumpTo next: %v", err)
	}

	b.FocusBlock(next)
	sum, err := b.BinOp(ssair.OpAdd, i32, constInt(i32, 3), constInt(i32, 4))
	if err != nil {
		t.Fatalf("BinOp: %v", err)
	}
	if err := b.SetRet(value.Inst{Ref: sum}); err != nil {
		t.Fatalf("SetRet: %v", err)
	}

	fn, _ := m.Funcs.Get(fr.Ref)
	MergeBlocks(m, fr)

	fn, _ = m.Funcs.Get(fr.Ref)
	if n := blockCount(m, fn); n != 1 {
		t.Fatalf("expected next's body to be absorbed into entry, got %d blocks", n)
	}
	if _, ok := m.Blocks.Get(next.Ref); ok {
		t.Error("next should have been absorbed and freed")
	}
	if _, ok := m.Insts.Get(sum.Ref); !ok {
		t.Error("the absorbed add instruction should survive, reparented into entry")
	}
	entryTerm := m.Terminator(entry)
	if inst, ok := m.Insts.Get(entryTerm.Ref); !ok || inst.Opcode != ssair.OpRet {
		t.Error("entry should now end in next's former return")
	}
}

func TestMergeBlocksResolvesTrivialPhi(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)
	i32 := types.Int(32)

	fr, err := b.NewFunction("f", nil, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := b.Block()

	next, err := b.NewBlock("next")
	if err != nil {
		t.Fatalf("NewBlock next: %v", err)
	}

	b.FocusBlock(entry)
	if err := b.SetJumpTo(next); err != nil {
		t.Fatalf("SetJumpTo next: %v", err)
	}

	b.FocusBlock(next)
	phi, err := b.Phi(i32, []irbuilder.PhiIncoming{{Value: constInt(i32, 9), Block: entry}})
	if err != nil {
		t.Fatalf("Phi: %v", err)
	}
	if err := b.SetRet(value.Inst{Ref: phi}); err != nil {
		t.Fatalf("SetRet: %v", err)
	}

	fr2 := fr
	fn, _ := m.Funcs.Get(fr2.Ref)
	MergeBlocks(m, fr2)

	if _, ok := m.Insts.Get(phi.Ref); ok {
		t.Error("the trivial single-incoming phi should be resolved away")
	}
	entryTerm := m.Terminator(entry)
	inst, ok := m.Insts.Get(entryTerm.Ref)
	if !ok || inst.Opcode != ssair.OpRet {
		t.Fatal("entry should now directly return the phi's sole incoming value")
	}
	if len(inst.Operands) != 1 {
		t.Fatal("ret should carry the resolved value")
	}
	u, _ := m.Uses.Get(inst.Operands[0].Ref)
	cd, ok := u.Operand.(value.ConstData)
	if !ok || cd.Kind != value.ConstInt {
		t.Error("ret's operand should be the phi's incoming constant, substituted directly")
	}
	_ = fn
}

func TestCompressConstExprsDedupsIdenticalArrays(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	i32 := types.Int(32)
	arrTy := m.Types.InternArray(i32, 2)

	elems := func() []value.Value {
		return []value.Value{
			constInt(i32, 5),
			constInt(i32, 6),
		}
	}
	r1 := m.Exprs.Alloc(ssair.Expr{Kind: ssair.ExprArray, Type: arrTy, Elems: elems()})
	r2 := m.Exprs.Alloc(ssair.Expr{Kind: ssair.ExprArray, Type: arrTy, Elems: elems()})

	g1, err := m.DeclareGlobal(ssair.VarGlobal{Name: "g1", Linkage: ssair.LinkagePrivate, Type: arrTy, Init: value.ConstExpr{Expr: value.ExprRef{Ref: r1}}, IsConstant: true})
	if err != nil {
		t.Fatalf("DeclareGlobal g1: %v", err)
	}
	g2, err := m.DeclareGlobal(ssair.VarGlobal{Name: "g2", Linkage: ssair.LinkagePrivate, Type: arrTy, Init: value.ConstExpr{Expr: value.ExprRef{Ref: r2}}, IsConstant: true})
	if err != nil {
		t.Fatalf("DeclareGlobal g2: %v", err)
	}

	CompressConstExprs(m)
	m.Sweep()

	gd1, _ := m.Globals.Get(g1.Ref)
	gd2, _ := m.Globals.Get(g2.Ref)
	vg1 := gd1.(ssair.VarGlobal)
	vg2 := gd2.(ssair.VarGlobal)
	ce1 := vg1.Init.(value.ConstExpr)
	ce2 := vg2.Init.(value.ConstExpr)

	if ce1.Expr.Ref != ce2.Expr.Ref {
		t.Error("identical array exprs referenced from two globals should collapse to one representative")
	}
	if ce1.Expr.Ref != r1 && ce1.Expr.Ref != r2 {
		t.Error("the representative should be one of the two original exprs, not a third allocation")
	}
}

func TestKVArrayAdaptTrailingRunBecomesSplat(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	i32 := types.Int(32)
	arrTy := m.Types.InternArray(i32, 4)

	fill := constInt(i32, 11)
	r := m.Exprs.Alloc(ssair.Expr{
		Kind: ssair.ExprSparse,
		Type: arrTy,
		Len:  4,
		Sparse: []ssair.SparseEntry{
			{Index: 2, Value: fill},
			{Index: 3, Value: fill},
		},
	})

	v, err := KVArrayAdapt(m, r)
	if err != nil {
		t.Fatalf("KVArrayAdapt: %v", err)
	}
	ce, ok := v.(value.ConstExpr)
	if !ok {
		t.Fatal("expected a ConstExpr result (a packed leading-zero/trailing-splat struct)")
	}
	e, ok := m.Exprs.Get(ce.Expr.Ref)
	if !ok || e.Kind != ssair.ExprStruct || len(e.Elems) != 2 {
		t.Fatalf("expected a 2-field packed struct, got %+v", e)
	}
	if _, ok := e.Elems[0].(value.AggrZero); !ok {
		t.Error("leading field should be zero-initialized")
	}
}

func TestKVArrayAdaptInteriorUniformRunIsUnsupported(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	i32 := types.Int(32)
	arrTy := m.Types.InternArray(i32, 4)

	fill := constInt(i32, 13)
	r := m.Exprs.Alloc(ssair.Expr{
		Kind: ssair.ExprSparse,
		Type: arrTy,
		Len:  4,
		Sparse: []ssair.SparseEntry{
			{Index: 1, Value: fill},
		},
	})

	if _, err := KVArrayAdapt(m, r); err == nil {
		t.Error("a non-trailing uniform run should return UnsupportedSparseDefault")
	}
}
