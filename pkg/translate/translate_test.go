package translate

import (
	"math/big"
	"testing"

	"github.com/ssair-lang/ssair/pkg/irbuilder"
	"github.com/ssair-lang/ssair/pkg/mir"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

func bigInt(v int64) *big.Int { return big.NewInt(v) }

// buildSwitchFunc builds a function of the form:
//
//	switch i32 v { case[0]: -> b0, case[1]: -> b1, ..., default -> bd }
//
// with one case per value in cases, every target block returning its own
// index so the dense/sparse lowering is easy to tell apart by inspection.
func buildSwitchFunc(t *testing.T, name string, cases []int64) *ssair.Module {
	t.Helper()
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)
	i32 := types.Int(32)

	fr, err := b.NewFunction(name, []types.ID{i32}, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := b.Block()

	def, err := b.NewBlock("default")
	if err != nil {
		t.Fatalf("NewBlock default: %v", err)
	}
	if err := b.SetRet(value.ConstData{Kind: value.ConstInt, Type: i32, Int: bigInt(-1)}); err != nil {
		t.Fatalf("SetRet default: %v", err)
	}

	targets := map[int64]value.BlockRef{}
	for i, c := range cases {
		blk, err := b.NewBlock("case")
		if err != nil {
			t.Fatalf("NewBlock case %d: %v", i, err)
		}
		if err := b.SetRet(value.ConstData{Kind: value.ConstInt, Type: i32, Int: bigInt(int64(i))}); err != nil {
			t.Fatalf("SetRet case %d: %v", i, err)
		}
		targets[c] = blk
	}

	b.FocusBlock(entry)
	if err := b.SetSwitch(value.FuncArg{Func: fr, Index: 0}, targets, def); err != nil {
		t.Fatalf("SetSwitch: %v", err)
	}

	return m
}

func entryBlock(mf *mir.Function) mir.Block {
	return mf.Blocks[0]
}

func hasJtable(code []mir.Instruction) bool {
	for _, inst := range code {
		if _, ok := inst.(mir.Jtable); ok {
			return true
		}
	}
	return false
}

func countBcond(code []mir.Instruction) int {
	n := 0
	for _, inst := range code {
		if _, ok := inst.(mir.Bcond); ok {
			n++
		}
	}
	return n
}

// TestTranslate_SwitchDenseJumpTable exercises dispatchSwitch's
// denseJumpTable threshold: a contiguous, tightly-packed case set (span <=
// 4*len(cases) and span <= 512) lowers to a bounds check plus a single
// indexed Jtable jump rather than a compare-and-branch chain.
func TestTranslate_SwitchDenseJumpTable(t *testing.T) {
	m := buildSwitchFunc(t, "dense", []int64{0, 1, 2, 3})

	mm, err := Translate(m)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(mm.Functions) != 1 {
		t.Fatalf("expected 1 function, got %d", len(mm.Functions))
	}
	entry := entryBlock(&mm.Functions[0])

	if !hasJtable(entry.Code) {
		t.Errorf("dense switch over a 4-wide contiguous range should lower to a Jtable, got: %#v", entry.Code)
	}
}

// TestTranslate_SwitchSparseCompareChain exercises the fallback path: case
// values spread far enough apart that a jump table would be mostly
// padding lower to a linear CMPi/Bcond chain instead.
func TestTranslate_SwitchSparseCompareChain(t *testing.T) {
	m := buildSwitchFunc(t, "sparse", []int64{0, 1000, 2000})

	mm, err := Translate(m)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	entry := entryBlock(&mm.Functions[0])

	if hasJtable(entry.Code) {
		t.Errorf("sparse switch should not lower to a Jtable, got: %#v", entry.Code)
	}
	if got, want := countBcond(entry.Code), 3; got != want {
		t.Errorf("expected one Bcond per case (%d), got %d in: %#v", want, got, entry.Code)
	}
}

// TestTranslate_BranchReusesCompareCondition exercises the PState-reuse
// short-circuit (dispatchCmp/reuseCmp): a Br consuming an Icmp's result
// directly (with no other instruction in between to clobber the flags)
// must reuse that comparison's condition code rather than re-materializing
// the i1 and comparing it against zero again.
func TestTranslate_BranchReusesCompareCondition(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)
	i32 := types.Int(32)

	fr, err := b.NewFunction("reuse", []types.ID{i32, i32}, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	entry := b.Block()

	thenBlk, err := b.NewBlock("then")
	if err != nil {
		t.Fatalf("NewBlock then: %v", err)
	}
	if err := b.SetRet(value.ConstData{Kind: value.ConstInt, Type: i32, Int: bigInt(1)}); err != nil {
		t.Fatalf("SetRet then: %v", err)
	}
	elseBlk, err := b.NewBlock("else")
	if err != nil {
		t.Fatalf("NewBlock else: %v", err)
	}
	if err := b.SetRet(value.ConstData{Kind: value.ConstInt, Type: i32, Int: bigInt(0)}); err != nil {
		t.Fatalf("SetRet else: %v", err)
	}

	b.FocusBlock(entry)
	cmp, err := b.Cmp(ssair.OpIcmp, ssair.CmpLT, ssair.CmpSigned,
		value.FuncArg{Func: fr, Index: 0}, value.FuncArg{Func: fr, Index: 1})
	if err != nil {
		t.Fatalf("Cmp: %v", err)
	}
	if err := b.SetBranchTo(value.Inst{Ref: cmp}, thenBlk, elseBlk); err != nil {
		t.Fatalf("SetBranchTo: %v", err)
	}

	mm, err := Translate(m)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	entryCode := entryBlock(&mm.Functions[0]).Code

	foundCmp, foundBcond, extraCompare := false, false, false
	for i, inst := range entryCode {
		switch v := inst.(type) {
		case mir.CMP:
			foundCmp = true
		case mir.Bcond:
			foundBcond = true
			if v.Cond != mir.CondLT {
				t.Errorf("Bcond should carry the reused CondLT from the signed icmp, got %v", v.Cond)
			}
		case mir.CMPi:
			// A re-materialized i1-vs-zero compare would show up as a
			// CMPi right before the Bcond; its presence means the reuse
			// short-circuit did not fire.
			extraCompare = true
			t.Errorf("unexpected re-compare at index %d: %#v", i, v)
		}
	}
	if !foundCmp {
		t.Error("expected the original CMP from the icmp lowering")
	}
	if !foundBcond {
		t.Error("expected a Bcond terminator")
	}
	if extraCompare {
		t.Error("branch should have reused the icmp's PState instead of re-comparing")
	}
}

// TestTranslate_NinthIntArgSpillsToStack exercises the AAPCS64 integer
// argument ABI: the first 8 int/ptr arguments land in X0..X7, and the 9th
// spills to the caller's outgoing stack area at [sp, #0].
func TestTranslate_NinthIntArgSpillsToStack(t *testing.T) {
	m := ssair.NewModule(types.DefaultConfig())
	b := irbuilder.New(m)
	i32 := types.Int(32)

	calleeType := m.Types.InternFunc(i32, []types.ID{
		i32, i32, i32, i32, i32, i32, i32, i32, i32,
	}, false)

	calleeRef, err := b.M.DeclareGlobal(ssair.FuncGlobal{Name: "callee9", Linkage: ssair.LinkageExternal})
	if err != nil {
		t.Fatalf("DeclareGlobal callee9: %v", err)
	}

	fr, err := b.NewFunction("caller", nil, i32, false, ssair.LinkageExternal)
	if err != nil {
		t.Fatalf("NewFunction caller: %v", err)
	}
	_ = fr

	args := make([]value.Value, 9)
	for i := range args {
		args[i] = value.ConstData{Kind: value.ConstInt, Type: i32, Int: bigInt(int64(i))}
	}
	call, err := b.Call(i32, calleeType, value.Global{Ref: calleeRef}, args, false)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if err := b.SetRet(value.Inst{Ref: call}); err != nil {
		t.Fatalf("SetRet: %v", err)
	}

	mm, err := Translate(m)
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	entryCode := entryBlock(&mm.Functions[0]).Code

	var found *mir.MirCall
	for _, inst := range entryCode {
		if c, ok := inst.(mir.MirCall); ok {
			c := c
			found = &c
		}
	}
	if found == nil {
		t.Fatal("expected a MirCall in the lowered entry block")
	}
	if len(found.ArgRegs) != 8 {
		t.Errorf("MirCall.ArgRegs should only carry the 8 register-resident args, got %d", len(found.ArgRegs))
	}

	sawSpillStore := false
	for _, inst := range entryCode {
		if s, ok := inst.(mir.STR); ok && s.Rn == mir.SP && s.Ofs == 0 {
			sawSpillStore = true
		}
	}
	if !sawSpillStore {
		t.Errorf("expected the 9th int argument to spill via STR to [sp, #0], got: %#v", entryCode)
	}
}
