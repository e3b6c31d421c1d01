package ssair

import (
	"fmt"
	"io"
	"math/big"
	"sort"

	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// PrintOptions configures Module.Print's textual rendering.
type PrintOptions struct {
	// LLVMCompatible names instruction results %N, as LLVM IR does, instead
	// of vN; every other part of the text, including the "define"/"declare"
	// keywords, is the same either way, and it never changes semantics.
	LLVMCompatible bool
}

// Print writes a human-readable rendering of every global in the module, in
// declaration order, to w.
func (m *Module) Print(w io.Writer, opts PrintOptions) error {
	p := &printer{m: m, w: w, opts: opts, names: map[arena.Ref]string{}}
	for _, gr := range m.order {
		g, ok := m.Globals.Get(gr.Ref)
		if !ok {
			continue
		}
		if err := p.printGlobal(g); err != nil {
			return err
		}
	}
	return nil
}

type printer struct {
	m     *Module
	w     io.Writer
	opts  PrintOptions
	names map[arena.Ref]string
}

func (p *printer) printf(format string, args ...interface{}) error {
	_, err := fmt.Fprintf(p.w, format, args...)
	return err
}

func (p *printer) printGlobal(g GlobalData) error {
	switch gg := g.(type) {
	case FuncGlobal:
		return p.printFuncGlobal(gg)
	case VarGlobal:
		return p.printVarGlobal(gg)
	case AliasGlobal:
		return p.printf("alias %s = %s\n", gg.Name, p.globalRefName(gg.Target))
	}
	return nil
}

func (p *printer) printVarGlobal(g VarGlobal) error {
	kw := "global"
	if g.IsConstant {
		kw = "constant"
	}
	if err := p.printf("%s %s : %s", kw, g.Name, p.typeName(g.Type)); err != nil {
		return err
	}
	if g.Init != nil {
		if err := p.printf(" = %s", p.valueText(g.Init)); err != nil {
			return err
		}
	}
	return p.printf("\n")
}

func (p *printer) printFuncGlobal(g FuncGlobal) error {
	if !g.Func.Ref.Valid() {
		return p.printf("declare @%s\n", g.Name)
	}
	fn, ok := p.m.Funcs.Get(g.Func.Ref)
	if !ok {
		return p.printf("declare @%s\n", g.Name)
	}

	args := make([]string, len(fn.ArgTypes))
	for i, t := range fn.ArgTypes {
		args[i] = p.typeName(t)
	}
	if fn.IsVararg {
		args = append(args, "...")
	}
	if err := p.printf("define @%s (%s) -> %s\n", g.Name, joinComma(args), p.typeName(fn.RetType)); err != nil {
		return err
	}
	p.assignBlockNames(fn)

	bac := BlockAccessors(p.m.Blocks)
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		blk, ok := p.m.Blocks.Get(br)
		if !ok {
			continue
		}
		if err := p.printf("%s:\n", p.blockName(br, blk)); err != nil {
			return err
		}
		if err := p.printBlockBody(blk); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) assignBlockNames(fn Function) {
	bac := BlockAccessors(p.m.Blocks)
	i := 0
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		blk, _ := p.m.Blocks.Get(br)
		name := blk.Name
		if name == "" {
			name = fmt.Sprintf("bb%d", i)
		}
		p.names[br] = name
		i++
	}
}

func (p *printer) blockName(r arena.Ref, blk Block) string {
	if n, ok := p.names[r]; ok {
		return n
	}
	return blk.Name
}

func (p *printer) printBlockBody(blk Block) error {
	iac := InstAccessors(p.m.Insts)
	for ir := blk.Insts.Head(); ir != arena.Nil; ir = blk.Insts.Next(iac, ir) {
		inst, ok := p.m.Insts.Get(ir)
		if !ok {
			continue
		}
		if inst.Opcode == OpPhiInstEnd {
			continue
		}
		if err := p.printInst(value.InstRef{Ref: ir}, inst); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) printInst(ref value.InstRef, inst Inst) error {
	name := p.instName(ref)
	operands := p.operandText(inst)

	if !inst.Opcode.HasResult() {
		return p.printf("  %s %s\n", inst.Opcode, operands)
	}
	return p.printf("  %s = %s %s : %s\n", name, inst.Opcode, operands, p.typeName(inst.ResultType))
}

func (p *printer) instName(ref value.InstRef) string {
	if p.opts.LLVMCompatible {
		return fmt.Sprintf("%%%d", ref.Ref.Index())
	}
	return fmt.Sprintf("v%d", ref.Ref.Index())
}

func (p *printer) operandText(inst Inst) string {
	switch payload := inst.Payload.(type) {
	case JumpPayload:
		return p.jumpTargetName(payload.Target)
	case BrPayload:
		return fmt.Sprintf("%s, %s, %s", p.operandAt(inst, 0), p.jumpTargetName(payload.Then), p.jumpTargetName(payload.Else))
	case SwitchPayload:
		cases := make([]string, 0, len(payload.Cases))
		for _, c := range payload.Cases {
			cases = append(cases, fmt.Sprintf("%d -> %s", c.Value, p.jumpTargetName(c.Target)))
		}
		sort.Strings(cases)
		return fmt.Sprintf("%s, default %s [%s]", p.operandAt(inst, 0), p.jumpTargetName(payload.Default), joinComma(cases))
	case CmpPayload:
		if payload.Flags == 0 {
			return fmt.Sprintf("%s %s, %s", payload.Cond, p.operandAt(inst, 0), p.operandAt(inst, 1))
		}
		return fmt.Sprintf("%s %s %s, %s", payload.Cond, payload.Flags, p.operandAt(inst, 0), p.operandAt(inst, 1))
	case AllocaPayload:
		return fmt.Sprintf("%s, align %d", p.typeName(payload.ElemType), uint32(1)<<payload.AlignLog2)
	case LoadPayload:
		return fmt.Sprintf("%s, align %d", p.operandAt(inst, 0), uint32(1)<<payload.AlignLog2)
	case StorePayload:
		return fmt.Sprintf("%s, %s, align %d", p.operandAt(inst, 0), p.operandAt(inst, 1), uint32(1)<<payload.AlignLog2)
	case GepPayload:
		parts := make([]string, len(inst.Operands))
		for i := range inst.Operands {
			parts[i] = p.operandAt(inst, i)
		}
		return fmt.Sprintf("%s, %s", p.typeName(payload.BaseType), joinComma(parts))
	case CallPayload:
		args := make([]string, 0, len(inst.Operands)-1)
		for i := 1; i < len(inst.Operands); i++ {
			args = append(args, p.operandAt(inst, i))
		}
		kw := ""
		if payload.IsTail {
			kw = "tail "
		}
		return fmt.Sprintf("%s[%s] %s(%s)", kw, p.typeName(payload.CalleeType), p.operandAt(inst, 0), joinComma(args))
	case AmoRmwPayload:
		return fmt.Sprintf("%s %s, %s, %s, %s, align %d",
			payload.Op, p.operandAt(inst, 0), p.operandAt(inst, 1), payload.Ordering, payload.Scope, uint32(1)<<payload.AlignLog2)
	default:
		parts := make([]string, len(inst.Operands))
		for i := range inst.Operands {
			parts[i] = p.operandAt(inst, i)
		}
		return joinComma(parts)
	}
}

func (p *printer) operandAt(inst Inst, i int) string {
	if i < 0 || i >= len(inst.Operands) {
		return "<oob>"
	}
	u, ok := p.m.Uses.Get(inst.Operands[i].Ref)
	if !ok {
		return "<dead-use>"
	}
	return p.valueText(u.Operand)
}

func (p *printer) valueText(v value.Value) string {
	switch vv := v.(type) {
	case value.None:
		return "none"
	case value.ConstData:
		return p.constDataText(vv)
	case value.ConstExpr:
		return fmt.Sprintf("constexpr(%d)", vv.Expr.Ref.Index())
	case value.AggrZero:
		return fmt.Sprintf("zeroinitializer : %s", p.typeName(vv.Type))
	case value.Global:
		return p.globalRefName(vv.Ref)
	case value.FuncArg:
		return fmt.Sprintf("arg%d", vv.Index)
	case value.Block:
		blk, _ := p.m.Blocks.Get(vv.Ref.Ref)
		return p.blockName(vv.Ref.Ref, blk)
	case value.Inst:
		return p.instName(vv.Ref)
	}
	return "<?value>"
}

func (p *printer) constDataText(c value.ConstData) string {
	switch c.Kind {
	case value.ConstUndef:
		return "undef"
	case value.ConstZero:
		return "zeroinitializer"
	case value.ConstNullPtr:
		return "null"
	case value.ConstInt:
		if c.Int == nil {
			return big.NewInt(0).String()
		}
		return c.Int.String()
	case value.ConstFloat:
		return fmt.Sprintf("%g", c.Float)
	}
	return "<?const>"
}

func (p *printer) jumpTargetName(jr value.JumpTargetRef) string {
	jt, ok := p.m.JumpTargets.Get(jr.Ref)
	if !ok {
		return "<dead-jump>"
	}
	blk, _ := p.m.Blocks.Get(jt.To.Ref)
	return p.blockName(jt.To.Ref, blk)
}

func (p *printer) globalRefName(gr value.GlobalRef) string {
	g, ok := p.m.Globals.Get(gr.Ref)
	if !ok {
		return "<dead-global>"
	}
	return "@" + g.globalName()
}

func (p *printer) typeName(t types.ID) string {
	switch t.Kind() {
	case types.KindVoid:
		return "void"
	case types.KindPtr:
		return "ptr"
	case types.KindInt:
		return fmt.Sprintf("i%d", t.IntBits())
	case types.KindFloat:
		if t.FloatKind() == types.IEEE32 {
			return "f32"
		}
		return "f64"
	case types.KindArray:
		return fmt.Sprintf("[%d x %s]", t.ArrayLen(p.m.Types), p.typeName(t.ArrayElem(p.m.Types)))
	case types.KindStruct:
		fields := t.StructFields(p.m.Types)
		parts := make([]string, len(fields))
		for i, f := range fields {
			parts[i] = p.typeName(f.Type)
		}
		if t.StructPacked(p.m.Types) {
			return fmt.Sprintf("<{%s}>", joinComma(parts))
		}
		return fmt.Sprintf("{%s}", joinComma(parts))
	case types.KindStructAlias:
		return "%" + t.AliasName(p.m.Types)
	case types.KindFunc:
		args := t.FuncArgs(p.m.Types)
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = p.typeName(a)
		}
		if t.FuncIsVararg(p.m.Types) {
			parts = append(parts, "...")
		}
		return fmt.Sprintf("%s (%s)", p.typeName(t.FuncRet(p.m.Types)), joinComma(parts))
	}
	return "?type"
}

func joinComma(parts []string) string {
	out := ""
	for i, s := range parts {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
