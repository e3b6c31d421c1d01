package main

import (
	"bytes"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

func TestVersionNotEmpty(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	for _, name := range []string{"emit-ir", "asm", "check"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c == nil {
			t.Errorf("expected subcommand %q to be registered", name)
		}
	}
}

func TestAsmFlagExists(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	asmCmd, _, err := cmd.Find([]string{"asm"})
	if err != nil {
		t.Fatalf("find asm: %v", err)
	}
	if asmCmd.Flags().Lookup("output") == nil {
		t.Error("expected --output flag on asm subcommand")
	}
}

// idModuleText builds a one-function module with pkg/ssair's own builder and
// printer, so the text fed to the CLI below is known-good IR text rather
// than a hand-typed guess at the grammar.
func idModuleText(t *testing.T) string {
	t.Helper()

	i32 := types.Int(32)
	m := ssair.NewModule(types.DefaultConfig())

	fn := ssair.Function{ArgTypes: []types.ID{i32}, RetType: i32, ArgUsers: make([]value.UserList, 1)}
	fr := value.FuncRef{Ref: m.Funcs.Alloc(fn)}

	blk := ssair.Block{Name: "entry", Parent: fr}
	br := value.BlockRef{Ref: m.Blocks.Alloc(blk)}

	phiEnd := ssair.Inst{Opcode: ssair.OpPhiInstEnd, Parent: br, Payload: ssair.PhiInstEndPayload{}}
	phiEndRef := value.InstRef{Ref: m.Insts.Alloc(phiEnd)}

	addInst := ssair.Inst{Opcode: ssair.OpAdd, ResultType: i32, Parent: br, Payload: ssair.BinOpPayload{}}
	addRef := value.InstRef{Ref: m.Insts.Alloc(addInst)}

	retInst := ssair.Inst{Opcode: ssair.OpRet, Parent: br, Payload: ssair.RetPayload{}}
	retRef := value.InstRef{Ref: m.Insts.Alloc(retInst)}

	lhsUse := m.SetOperand(value.Owner{Kind: value.OwnerInst, Inst: addRef}, value.UseKind{Role: value.RoleBinOpLhs}, value.FuncArg{Func: fr, Index: 0})
	rhsUse := m.SetOperand(value.Owner{Kind: value.OwnerInst, Inst: addRef}, value.UseKind{Role: value.RoleBinOpRhs}, value.ConstData{Kind: value.ConstInt, Type: i32, Int: big.NewInt(1)})
	addInst, _ = m.Insts.Get(addRef.Ref)
	addInst.Operands = []value.UseRef{lhsUse, rhsUse}
	m.Insts.Set(addRef.Ref, addInst)

	retUse := m.SetOperand(value.Owner{Kind: value.OwnerInst, Inst: retRef}, value.UseKind{Role: value.RoleRetVal}, value.Inst{Ref: addRef})
	retInst, _ = m.Insts.Get(retRef.Ref)
	retInst.Operands = []value.UseRef{retUse}
	m.Insts.Set(retRef.Ref, retInst)

	iac := ssair.InstAccessors(m.Insts)
	blk, _ = m.Blocks.Get(br.Ref)
	blk.Insts.PushBack(iac, phiEndRef.Ref)
	blk.Insts.PushBack(iac, addRef.Ref)
	blk.Insts.PushBack(iac, retRef.Ref)
	m.Blocks.Set(br.Ref, blk)

	fn, _ = m.Funcs.Get(fr.Ref)
	fn.Blocks.PushBack(ssair.BlockAccessors(m.Blocks), br.Ref)
	m.Funcs.Set(fr.Ref, fn)

	if _, err := m.DeclareGlobal(ssair.FuncGlobal{Name: "main", Linkage: ssair.LinkageExternal, Func: fr}); err != nil {
		t.Fatalf("DeclareGlobal: %v", err)
	}

	var buf bytes.Buffer
	if err := m.Print(&buf, ssair.PrintOptions{}); err != nil {
		t.Fatalf("Print: %v", err)
	}
	return buf.String()
}

func TestEmitIRRoundTrip(t *testing.T) {
	text := idModuleText(t)

	tmpDir := t.TempDir()
	inFile := filepath.Join(tmpDir, "in.ssair")
	if err := os.WriteFile(inFile, []byte(text), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"emit-ir", inFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("emit-ir failed: %v\nstderr: %s", err, errOut.String())
	}

	if !strings.Contains(out.String(), "define @main") {
		t.Errorf("expected re-printed output to contain function header, got:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "add") || !strings.Contains(out.String(), "ret") {
		t.Errorf("expected re-printed output to contain instructions, got:\n%s", out.String())
	}
}

func TestCheckAcceptsWellFormedModule(t *testing.T) {
	text := idModuleText(t)

	tmpDir := t.TempDir()
	inFile := filepath.Join(tmpDir, "in.ssair")
	if err := os.WriteFile(inFile, []byte(text), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"check", inFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("check failed: %v\nstderr: %s", err, errOut.String())
	}
	if out.Len() != 0 {
		t.Errorf("check should print nothing to stdout on success, got %q", out.String())
	}
}

func TestCheckRejectsMalformedText(t *testing.T) {
	tmpDir := t.TempDir()
	inFile := filepath.Join(tmpDir, "bad.ssair")
	if err := os.WriteFile(inFile, []byte("this is not ssair text\n"), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"check", inFile})
	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for malformed IR text")
	}
	if errOut.Len() == 0 {
		t.Error("expected a diagnostic on stderr")
	}
}

func TestAsmProducesAssembly(t *testing.T) {
	text := idModuleText(t)

	tmpDir := t.TempDir()
	inFile := filepath.Join(tmpDir, "in.ssair")
	if err := os.WriteFile(inFile, []byte(text), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"asm", inFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("asm failed: %v\nstderr: %s", err, errOut.String())
	}

	if !strings.Contains(out.String(), "main") {
		t.Errorf("expected assembly output to reference the function name, got:\n%s", out.String())
	}
}

func TestAsmWritesToOutputFile(t *testing.T) {
	text := idModuleText(t)

	tmpDir := t.TempDir()
	inFile := filepath.Join(tmpDir, "in.ssair")
	if err := os.WriteFile(inFile, []byte(text), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	outFile := filepath.Join(tmpDir, "out.s")

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"asm", "-o", outFile, inFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("asm failed: %v\nstderr: %s", err, errOut.String())
	}
	outPath = ""

	if _, err := os.Stat(outFile); err != nil {
		t.Errorf("expected output file %s to exist: %v", outFile, err)
	}
}

func TestCheckMultipleFilesReportsEachByName(t *testing.T) {
	good := idModuleText(t)

	tmpDir := t.TempDir()
	goodFile := filepath.Join(tmpDir, "good.ssair")
	badFile := filepath.Join(tmpDir, "bad.ssair")
	if err := os.WriteFile(goodFile, []byte(good), 0644); err != nil {
		t.Fatalf("write good: %v", err)
	}
	if err := os.WriteFile(badFile, []byte("not ssair text\n"), 0644); err != nil {
		t.Fatalf("write bad: %v", err)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"check", goodFile, badFile})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected an error since one of the two files is malformed")
	}
	if !strings.Contains(errOut.String(), badFile) {
		t.Errorf("expected stderr to name the failing file %s, got:\n%s", badFile, errOut.String())
	}
	if strings.Contains(errOut.String(), goodFile) {
		t.Errorf("well-formed file %s should not be reported as failing, got:\n%s", goodFile, errOut.String())
	}
}

func TestTargetFlagLoadsYAMLConfig(t *testing.T) {
	tmpDir := t.TempDir()
	targetFile := filepath.Join(tmpDir, "target.yaml")
	if err := os.WriteFile(targetFile, []byte("pointer_width_bits: 64\nendianness: little\n"), 0644); err != nil {
		t.Fatalf("write target config: %v", err)
	}

	text := idModuleText(t)
	inFile := filepath.Join(tmpDir, "in.ssair")
	if err := os.WriteFile(inFile, []byte(text), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--target", targetFile, "check", inFile})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("check with --target failed: %v\nstderr: %s", err, errOut.String())
	}
	targetPath = ""
}

func TestTargetFlagRejectsBadFile(t *testing.T) {
	tmpDir := t.TempDir()
	targetFile := filepath.Join(tmpDir, "target.yaml")
	if err := os.WriteFile(targetFile, []byte("pointer_width_bits: 17\n"), 0644); err != nil {
		t.Fatalf("write target config: %v", err)
	}
	text := idModuleText(t)
	inFile := filepath.Join(tmpDir, "in.ssair")
	if err := os.WriteFile(inFile, []byte(text), 0644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--target", targetFile, "check", inFile})
	if err := cmd.Execute(); err == nil {
		t.Error("expected an error for an invalid target config")
	}
	targetPath = ""
}

func TestReadInputFromFilePath(t *testing.T) {
	// readInput treats "-" and an empty args slice as "read stdin"; exercise
	// the file-path branch instead since redirecting os.Stdin in-process is
	// not worth the complexity here.
	tmpDir := t.TempDir()
	f := filepath.Join(tmpDir, "x.ssair")
	if err := os.WriteFile(f, []byte("hello"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readInput([]string{f})
	if err != nil {
		t.Fatalf("readInput: %v", err)
	}
	if got != "hello" {
		t.Errorf("readInput = %q, want %q", got, "hello")
	}
}
