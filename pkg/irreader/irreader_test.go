package irreader

import (
	"strings"
	"testing"

	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

func TestParse_SimpleFunctionRoundTrip(t *testing.T) {
	text := "define @add1 (i32) -> i32\n" +
		"entry:\n" +
		"  v1 = add arg0, 1 : i32\n" +
		"  ret v1\n"

	m, err := Parse(types.DefaultConfig(), text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if errs := m.Validate(); len(errs) != 0 {
		t.Fatalf("Validate: %v", errs)
	}

	gr, ok := m.LookupGlobal("add1")
	if !ok {
		t.Fatal("function add1 not declared")
	}
	g, _ := m.Globals.Get(gr.Ref)
	fg, ok := g.(ssair.FuncGlobal)
	if !ok || !fg.Func.Ref.Valid() {
		t.Fatal("add1 should be a defined function, not a declaration")
	}
	fn, _ := m.Funcs.Get(fg.Func.Ref)
	if len(fn.ArgTypes) != 1 || fn.ArgTypes[0] != types.Int(32) {
		t.Errorf("fn.ArgTypes = %v, want [i32]", fn.ArgTypes)
	}
	if fn.RetType != types.Int(32) {
		t.Errorf("fn.RetType = %v, want i32", fn.RetType)
	}
}

// TestParse_GlobalInitializerAndLoad exercises a global with a numeric
// initializer referenced by a function's load, tying together
// declareShells/fillBodies's two-pass global handling with resolveOperand's
// "@name" global-reference form.
func TestParse_GlobalInitializerAndLoad(t *testing.T) {
	text := "global g : i32 = 42\n" +
		"define @reader () -> i32\n" +
		"entry:\n" +
		"  v1 = load @g, align 4 : i32\n" +
		"  ret v1\n"

	m, err := Parse(types.DefaultConfig(), text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if errs := m.Validate(); len(errs) != 0 {
		t.Fatalf("Validate: %v", errs)
	}

	gr, ok := m.LookupGlobal("g")
	if !ok {
		t.Fatal("global g not declared")
	}
	g, _ := m.Globals.Get(gr.Ref)
	vg, ok := g.(ssair.VarGlobal)
	if !ok {
		t.Fatal("g should be a VarGlobal")
	}
	cd, ok := vg.Init.(value.ConstData)
	if !ok || cd.Kind != value.ConstInt || cd.Int == nil || cd.Int.Int64() != 42 {
		t.Errorf("g.Init = %+v, want ConstInt 42", vg.Init)
	}
}

// TestParse_PhiForwardReferencePatchesOperand exercises the pending/patch
// mechanism: a phi's incoming value (v2) is defined later in its own block
// (a loop back-edge), so fillFunction must wire it up as an unresolved
// forward reference and retarget it once v2 is actually built.
func TestParse_PhiForwardReferencePatchesOperand(t *testing.T) {
	text := "define @loop (i32) -> i32\n" +
		"entry:\n" +
		"  jump body\n" +
		"body:\n" +
		"  v1 = phi arg0, entry, v2, body : i32\n" +
		"  v2 = add v1, 1 : i32\n" +
		"  ret v2\n"

	m, err := Parse(types.DefaultConfig(), text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if errs := m.Validate(); len(errs) != 0 {
		t.Fatalf("Validate: %v", errs)
	}

	gr, _ := m.LookupGlobal("loop")
	g, _ := m.Globals.Get(gr.Ref)
	fg := g.(ssair.FuncGlobal)
	fn, _ := m.Funcs.Get(fg.Func.Ref)

	bac := ssair.BlockAccessors(m.Blocks)
	var bodyBr value.BlockRef
	for br := fn.Blocks.Head(); br.Valid(); br = fn.Blocks.Next(bac, br) {
		blk, _ := m.Blocks.Get(br)
		if blk.Name == "body" {
			bodyBr = value.BlockRef{Ref: br}
		}
	}
	if !bodyBr.Ref.Valid() {
		t.Fatal("body block not found")
	}

	iac := ssair.InstAccessors(m.Insts)
	blk, _ := m.Blocks.Get(bodyBr.Ref)
	var phiInst ssair.Inst
	found := false
	for ir := blk.Insts.Head(); ir.Valid(); ir = blk.Insts.Next(iac, ir) {
		inst, _ := m.Insts.Get(ir)
		if inst.Opcode == ssair.OpPhi {
			phiInst = inst
			found = true
			break
		}
	}
	if !found {
		t.Fatal("phi instruction not found in body block")
	}
	if len(phiInst.Operands) != 4 {
		t.Fatalf("expected 4 phi operands, got %d", len(phiInst.Operands))
	}
	secondIncoming, ok := m.Uses.Get(phiInst.Operands[2].Ref)
	if !ok {
		t.Fatal("phi operand 2 not found")
	}
	if _, stillPlaceholder := secondIncoming.Operand.(value.None); stillPlaceholder {
		t.Error("phi's forward-referenced incoming value was never patched in")
	}
	if _, ok := secondIncoming.Operand.(value.Inst); !ok {
		t.Errorf("phi operand 2 = %+v, want a patched value.Inst", secondIncoming.Operand)
	}
}

func TestParse_RejectsInstructionOutsideFunctionBody(t *testing.T) {
	_, err := Parse(types.DefaultConfig(), "  v1 = add arg0, 1 : i32\n")
	if err == nil {
		t.Fatal("expected an error for an instruction line with no enclosing function")
	}
	if !strings.Contains(err.Error(), "outside any function body") {
		t.Errorf("error = %v, want a mention of a missing function body", err)
	}
}

func TestParse_RejectsUnknownOpcode(t *testing.T) {
	text := "define @f () -> i32\n" +
		"entry:\n" +
		"  v1 = bogus arg0 : i32\n" +
		"  ret v1\n"

	_, err := Parse(types.DefaultConfig(), text)
	if err == nil {
		t.Fatal("expected an error for an unrecognized opcode")
	}
	if !strings.Contains(err.Error(), "unrecognized opcode") {
		t.Errorf("error = %v, want a mention of the unrecognized opcode", err)
	}
}

// TestParse_RejectsStructAliasType exercises parseType's explicit refusal
// of "%name" struct-alias references: the writer never emits the
// definition line a reader would need to re-intern the alias, so any text
// naming one is rejected rather than silently misparsed.
func TestParse_RejectsStructAliasType(t *testing.T) {
	text := "define @f () -> void\n" +
		"entry:\n" +
		"  v1 = alloca %foo, align 4 : ptr\n" +
		"  ret\n"

	_, err := Parse(types.DefaultConfig(), text)
	if err == nil {
		t.Fatal("expected an error for a struct-alias type reference")
	}
	if !strings.Contains(err.Error(), "struct-alias") {
		t.Errorf("error = %v, want a mention of the unsupported struct-alias type", err)
	}
}
