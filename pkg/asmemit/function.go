package asmemit

import (
	"fmt"
	"math"

	"github.com/ssair-lang/ssair/pkg/mir"
)

func (p *Printer) printFunction(fn mir.Function) {
	p.switchSection(mir.SectText)
	p.curFunc = fn.Name
	p.jtableIdx = 0

	fmt.Fprintf(p.w, "\t.align\t2\n")
	fmt.Fprintf(p.w, "\t.global\t%s\n", fn.Name)
	fmt.Fprintf(p.w, "\t.type\t%s, %%function\n", fn.Name)
	for _, blk := range fn.Blocks {
		fmt.Fprintf(p.w, "%s:\n", blk.Name)
		for _, inst := range blk.Code {
			p.printInstruction(fn, inst)
		}
	}
	fmt.Fprintf(p.w, "\t.size\t%s, .-%s\n\n", fn.Name, fn.Name)
	p.flushJumpTables()
}

func (p *Printer) flushJumpTables() {
	if len(p.pendingTables) == 0 {
		return
	}
	p.switchSection(mir.SectROData)
	for _, jt := range p.pendingTables {
		fmt.Fprintf(p.w, "%s:\n", jt.label)
		for _, e := range jt.entries {
			fmt.Fprintf(p.w, "\t.dword\t%s\n", e)
		}
	}
	p.pendingTables = nil
}

// lowerGlobalAddrs materializes any GlobalAddr appearing as a use operand
// of inst into a scratch register (adrp+add :lo12: for a local symbol,
// adrp :got: + ldr :got_lo12: for an extern one), so every type-
// specific printInstruction case below only ever sees PReg/Imm/FImm
// operands. Up to two distinct GlobalAddr uses in one instruction are
// supported (X16 then X17) — no lowering this project emits needs more
// than one.
func (p *Printer) lowerGlobalAddrs(inst mir.Instruction) mir.Instruction {
	uses, defs := mir.Operands(inst)
	scratch := [2]mir.PReg{mir.X16, mir.X17}
	si := 0
	changed := false
	newUses := make([]mir.Operand, len(uses))
	for i, u := range uses {
		ga, ok := u.(mir.GlobalAddr)
		if !ok {
			newUses[i] = u
			continue
		}
		r := scratch[si]
		si++
		p.printLoadAddress(r, ga)
		newUses[i] = r
		changed = true
	}
	if !changed {
		return inst
	}
	return mir.WithOperands(inst, newUses, defs)
}

func (p *Printer) printLoadAddress(r mir.PReg, ga mir.GlobalAddr) {
	p.printLoadAddressLabel(r, ga.Symbol)
	if ga.Offset != 0 {
		p.emitAddImm(r, r, ga.Offset)
	}
}

func (p *Printer) printLoadAddressLabel(r mir.PReg, label string) {
	if p.externs[label] {
		fmt.Fprintf(p.w, "\tadrp\t%s, :got:%s\n", regName64(r), label)
		fmt.Fprintf(p.w, "\tldr\t%s, [%s, :got_lo12:%s]\n", regName64(r), regName64(r), label)
		return
	}
	fmt.Fprintf(p.w, "\tadrp\t%s, %s\n", regName64(r), label)
	fmt.Fprintf(p.w, "\tadd\t%s, %s, :lo12:%s\n", regName64(r), regName64(r), label)
}

func (p *Printer) emitAddImm(dst, base mir.PReg, imm int64) {
	switch {
	case imm >= 0 && imm <= 4095:
		fmt.Fprintf(p.w, "\tadd\t%s, %s, #%d\n", regName64(dst), regName64(base), imm)
	case imm < 0 && -imm <= 4095:
		fmt.Fprintf(p.w, "\tsub\t%s, %s, #%d\n", regName64(dst), regName64(base), -imm)
	default:
		p.printLoadConst64(mir.X17, imm)
		fmt.Fprintf(p.w, "\tadd\t%s, %s, %s\n", regName64(dst), regName64(base), regName64(mir.X17))
	}
}

func (p *Printer) printLoadConst64(rd mir.PReg, value int64) {
	u := uint64(value)
	fmt.Fprintf(p.w, "\tmovz\t%s, #%d\n", regName64(rd), uint16(u))
	for shift := 16; shift < 64; shift += 16 {
		chunk := uint16(u >> uint(shift))
		if chunk != 0 {
			fmt.Fprintf(p.w, "\tmovk\t%s, #%d, lsl #%d\n", regName64(rd), chunk, shift)
		}
	}
}

// fmovEncodable reports whether v is one of the 256 values AArch64's
// FMOV-immediate form can encode directly: (-1)^s * n/16 * 2^r for
// n in [16,31] and r in [-3,4].
func fmovEncodable(v float64) bool {
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	for s := 0; s < 2; s++ {
		sign := 1.0
		if s == 1 {
			sign = -1.0
		}
		for n := 16; n <= 31; n++ {
			for r := -3; r <= 4; r++ {
				if sign*float64(n)/16*math.Pow(2, float64(r)) == v {
					return true
				}
			}
		}
	}
	return false
}

func floatBits(v float64, isDouble bool) int64 {
	if isDouble {
		return int64(math.Float64bits(v))
	}
	return int64(math.Float32bits(float32(v)))
}

func (p *Printer) emitFMovImm(dst mir.PReg, v float64, isDouble bool) {
	if fmovEncodable(v) {
		fmt.Fprintf(p.w, "\tfmov\t%s, #%g\n", floatRegName(dst, isDouble), v)
		return
	}
	p.printLoadConst64(mir.X16, floatBits(v, isDouble))
	if isDouble {
		fmt.Fprintf(p.w, "\tfmov\t%s, %s\n", floatRegName(dst, true), regName64(mir.X16))
	} else {
		fmt.Fprintf(p.w, "\tfmov\t%s, %s\n", floatRegName(dst, false), regName32(mir.X16))
	}
}

func (p *Printer) printMove(dst, src mir.Operand, is64 bool) {
	d, _ := dst.(mir.PReg)
	switch s := src.(type) {
	case mir.Imm:
		fmt.Fprintf(p.w, "\tmov\t%s, #%d\n", regName(d, is64), s.Value)
	case mir.PReg:
		if d != s {
			fmt.Fprintf(p.w, "\tmov\t%s, %s\n", regName(d, is64), regName(s, is64))
		}
	default:
		fmt.Fprintf(p.w, "\t// unsupported copy source %#v\n", src)
	}
}

func (p *Printer) printFMove(dst, src mir.Operand, isDouble bool) {
	d, _ := dst.(mir.PReg)
	switch s := src.(type) {
	case mir.FImm:
		p.emitFMovImm(d, s.Value, isDouble)
	case mir.PReg:
		if d != s {
			fmt.Fprintf(p.w, "\tfmov\t%s, %s\n", floatRegName(d, isDouble), floatRegName(s, isDouble))
		}
	default:
		fmt.Fprintf(p.w, "\t// unsupported float copy source %#v\n", src)
	}
}

var rcMnemonic = map[mir.RCOp]string{
	mir.RCAdd: "add",
	mir.RCSub: "sub",
	mir.RCAnd: "and",
	mir.RCOrr: "orr",
	mir.RCEor: "eor",
}

func (p *Printer) printRC(op mir.RCOp, dst, rn mir.Operand, imm int64, is64 bool) {
	d, _ := dst.(mir.PReg)
	n, _ := rn.(mir.PReg)
	fmt.Fprintf(p.w, "\t%s\t%s, %s, #%d\n", rcMnemonic[op], regName(d, is64), regName(n, is64), imm)
}

func (p *Printer) printGEP(i mir.MirGEP) {
	dst, ok := i.Dst.(mir.PReg)
	if !ok {
		// An address-only GEP (VReg.IsAddress) never reaches a register:
		// every use resolved straight to its StackPos at the use site, so
		// stacking.go left this Dst unrewritten — the instruction is dead.
		return
	}
	base, _ := i.Base.(mir.PReg)

	cur := base
	if i.Offset != 0 {
		p.emitAddImm(dst, base, i.Offset)
		cur = dst
	}
	for _, t := range i.Terms {
		idx, _ := t.Index.(mir.PReg)
		switch t.Stride {
		case 1:
			fmt.Fprintf(p.w, "\tadd\t%s, %s, %s\n", regName64(dst), regName64(cur), regName64(idx))
		case 2, 4, 8:
			fmt.Fprintf(p.w, "\tadd\t%s, %s, %s, lsl #%d\n", regName64(dst), regName64(cur), regName64(idx), log2(t.Stride))
		default:
			p.printLoadConst64(mir.X17, t.Stride)
			fmt.Fprintf(p.w, "\tmadd\t%s, %s, %s, %s\n", regName64(dst), regName64(idx), regName64(mir.X17), regName64(cur))
		}
		cur = dst
	}
	if i.Offset == 0 && len(i.Terms) == 0 && dst != base {
		fmt.Fprintf(p.w, "\tmov\t%s, %s\n", regName64(dst), regName64(base))
	}
}

func (p *Printer) printMirCall(i mir.MirCall) {
	if i.CalleeReg != nil {
		reg, _ := i.CalleeReg.(mir.PReg)
		if i.IsTail {
			fmt.Fprintf(p.w, "\tbr\t%s\n", regName64(reg))
		} else {
			fmt.Fprintf(p.w, "\tblr\t%s\n", regName64(reg))
		}
		return
	}
	if i.IsTail {
		fmt.Fprintf(p.w, "\tb\t%s\n", i.Callee)
	} else {
		fmt.Fprintf(p.w, "\tbl\t%s\n", i.Callee)
	}
}

func (p *Printer) printJtable(fn mir.Function, i mir.Jtable) {
	label := fmt.Sprintf(".%s.switch.%d", p.curFunc, p.jtableIdx)
	p.jtableIdx++

	idx, _ := i.Index.(mir.PReg)
	p.printLoadAddressLabel(mir.X16, label)
	fmt.Fprintf(p.w, "\tldr\t%s, [%s, %s, lsl #3]\n", regName64(mir.X17), regName64(mir.X16), regName64(idx))
	fmt.Fprintf(p.w, "\tbr\t%s\n", regName64(mir.X17))

	entries := make([]string, len(i.Targets))
	for j, t := range i.Targets {
		entries[j] = fn.Blocks[t].Name
	}
	p.pendingTables = append(p.pendingTables, jumpTable{label: label, entries: entries})
}

func (p *Printer) printInstruction(fn mir.Function, inst mir.Instruction) {
	inst = p.lowerGlobalAddrs(inst)

	switch i := inst.(type) {
	case mir.ADD:
		p.printBin3("add", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.SUB:
		p.printBin3("sub", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.MUL:
		p.printBin3("mul", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.MADD:
		d, _ := i.Rd.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		m, _ := i.Rm.(mir.PReg)
		a, _ := i.Ra.(mir.PReg)
		fmt.Fprintf(p.w, "\tmadd\t%s, %s, %s, %s\n", regName(d, i.Is64), regName(n, i.Is64), regName(m, i.Is64), regName(a, i.Is64))
	case mir.SDIV:
		p.printBin3("sdiv", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.UDIV:
		p.printBin3("udiv", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.AND:
		p.printBin3("and", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.ORR:
		p.printBin3("orr", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.EOR:
		p.printBin3("eor", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.LSL:
		p.printBin3("lsl", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.LSLi:
		d, _ := i.Rd.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tlsl\t%s, %s, #%d\n", regName(d, i.Is64), regName(n, i.Is64), i.Shift)
	case mir.LSR:
		p.printBin3("lsr", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.ASR:
		p.printBin3("asr", i.Rd, i.Rn, i.Rm, i.Is64)
	case mir.NEG:
		d, _ := i.Rd.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tneg\t%s, %s\n", regName(d, i.Is64), regName(n, i.Is64))
	case mir.FADD:
		p.printFBin3("fadd", i.Fd, i.Fn, i.Fm, i.IsDouble)
	case mir.FSUB:
		p.printFBin3("fsub", i.Fd, i.Fn, i.Fm, i.IsDouble)
	case mir.FMUL:
		p.printFBin3("fmul", i.Fd, i.Fn, i.Fm, i.IsDouble)
	case mir.FDIV:
		p.printFBin3("fdiv", i.Fd, i.Fn, i.Fm, i.IsDouble)
	case mir.Bin32RC:
		p.printRC(i.Op, i.Rd, i.Rn, i.Imm, false)
	case mir.Bin64RC:
		p.printRC(i.Op, i.Rd, i.Rn, i.Imm, true)
	case mir.CMP:
		n, _ := i.Rn.(mir.PReg)
		m, _ := i.Rm.(mir.PReg)
		fmt.Fprintf(p.w, "\tcmp\t%s, %s\n", regName(n, i.Is64), regName(m, i.Is64))
	case mir.CMPi:
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tcmp\t%s, #%d\n", regName(n, i.Is64), i.Imm)
	case mir.FCMPS:
		n, _ := i.Fn.(mir.PReg)
		m, _ := i.Fm.(mir.PReg)
		fmt.Fprintf(p.w, "\tfcmp\t%s, %s\n", floatRegName(n, i.IsDouble), floatRegName(m, i.IsDouble))
	case mir.CSEL:
		d, _ := i.Rd.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		m, _ := i.Rm.(mir.PReg)
		fmt.Fprintf(p.w, "\tcsel\t%s, %s, %s, %s\n", regName(d, i.Is64), regName(n, i.Is64), regName(m, i.Is64), i.Cond.String())
	case mir.CSET:
		d, _ := i.Rd.(mir.PReg)
		fmt.Fprintf(p.w, "\tcset\t%s, %s\n", regName(d, i.Is64), i.Cond.String())
	case mir.FCSEL:
		d, _ := i.Fd.(mir.PReg)
		n, _ := i.Fn.(mir.PReg)
		m, _ := i.Fm.(mir.PReg)
		fmt.Fprintf(p.w, "\tfcsel\t%s, %s, %s, %s\n", floatRegName(d, i.IsDouble), floatRegName(n, i.IsDouble), floatRegName(m, i.IsDouble), i.Cond.String())
	case mir.MOV:
		p.printMove(i.Rd, i.Rm, i.Is64)
	case mir.MOVi:
		d, _ := i.Rd.(mir.PReg)
		fmt.Fprintf(p.w, "\tmov\t%s, #%d\n", regName(d, i.Is64), i.Imm)
	case mir.FMOV:
		p.printFMove(i.Fd, i.Fn, i.IsDouble)
	case mir.FMOVi:
		d, _ := i.Fd.(mir.PReg)
		p.emitFMovImm(d, i.Imm, i.IsDouble)
	case mir.LoadConst64:
		d, _ := i.Rd.(mir.PReg)
		p.printLoadConst64(d, i.Value)
	case mir.LDR:
		t, _ := i.Rt.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tldr\t%s, [%s, #%d]\n", regName(t, i.Is64), regName64(n), i.Ofs)
	case mir.STR:
		t, _ := i.Rt.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tstr\t%s, [%s, #%d]\n", regName(t, i.Is64), regName64(n), i.Ofs)
	case mir.FLDR:
		t, _ := i.Ft.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tldr\t%s, [%s, #%d]\n", floatRegName(t, i.IsDouble), regName64(n), i.Ofs)
	case mir.FSTR:
		t, _ := i.Ft.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tstr\t%s, [%s, #%d]\n", floatRegName(t, i.IsDouble), regName64(n), i.Ofs)
	case mir.MirStImm:
		base, _ := i.Base.(mir.PReg)
		p.printLoadConst64(mir.X16, i.Imm)
		fmt.Fprintf(p.w, "\tstr\t%s, [%s, #%d]\n", regName(mir.X16, i.Is64), regName64(base), i.Ofs)
	case mir.MirCopy32:
		p.printMove(i.Dst, i.Src, false)
	case mir.MirCopy64:
		p.printMove(i.Dst, i.Src, true)
	case mir.MirFCopy32:
		p.printFMove(i.Dst, i.Src, false)
	case mir.MirFCopy64:
		p.printFMove(i.Dst, i.Src, true)
	case mir.MirGEP:
		p.printGEP(i)
	case mir.MirCall:
		p.printMirCall(i)
	case mir.SXTW:
		d, _ := i.Rd.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tsxtw\t%s, %s\n", regName64(d), regName32(n))
	case mir.UXTW:
		d, _ := i.Rd.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tand\t%s, %s, #0xffffffff\n", regName64(d), regName64(n))
	case mir.SCVTF:
		d, _ := i.Fd.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tscvtf\t%s, %s\n", floatRegName(d, i.IsDouble), regName(n, i.Is64Src))
	case mir.UCVTF:
		d, _ := i.Fd.(mir.PReg)
		n, _ := i.Rn.(mir.PReg)
		fmt.Fprintf(p.w, "\tucvtf\t%s, %s\n", floatRegName(d, i.IsDouble), regName(n, i.Is64Src))
	case mir.FCVTZS:
		d, _ := i.Rd.(mir.PReg)
		n, _ := i.Fn.(mir.PReg)
		fmt.Fprintf(p.w, "\tfcvtzs\t%s, %s\n", regName(d, i.Is64Dst), floatRegName(n, i.IsDouble))
	case mir.FCVTZU:
		d, _ := i.Rd.(mir.PReg)
		n, _ := i.Fn.(mir.PReg)
		fmt.Fprintf(p.w, "\tfcvtzu\t%s, %s\n", regName(d, i.Is64Dst), floatRegName(n, i.IsDouble))
	case mir.FCVT:
		d, _ := i.Fd.(mir.PReg)
		n, _ := i.Fn.(mir.PReg)
		if i.DstDouble {
			fmt.Fprintf(p.w, "\tfcvt\t%s, %s\n", floatRegName(d, true), floatRegName(n, false))
		} else {
			fmt.Fprintf(p.w, "\tfcvt\t%s, %s\n", floatRegName(d, false), floatRegName(n, true))
		}
	case mir.B:
		fmt.Fprintf(p.w, "\tb\t%s\n", fn.Blocks[i.Target].Name)
	case mir.Bcond:
		fmt.Fprintf(p.w, "\tb.%s\t%s\n", i.Cond.String(), fn.Blocks[i.Target].Name)
	case mir.RET:
		fmt.Fprintf(p.w, "\tret\n")
	case mir.Jtable:
		p.printJtable(fn, i)
	default:
		fmt.Fprintf(p.w, "\t// unknown instruction %#v\n", inst)
	}
}

func (p *Printer) printBin3(mnem string, dst, rn, rm mir.Operand, is64 bool) {
	d, _ := dst.(mir.PReg)
	n, _ := rn.(mir.PReg)
	m, _ := rm.(mir.PReg)
	fmt.Fprintf(p.w, "\t%s\t%s, %s, %s\n", mnem, regName(d, is64), regName(n, is64), regName(m, is64))
}

func (p *Printer) printFBin3(mnem string, dst, frn, frm mir.Operand, isDouble bool) {
	d, _ := dst.(mir.PReg)
	n, _ := frn.(mir.PReg)
	m, _ := frm.(mir.PReg)
	fmt.Fprintf(p.w, "\t%s\t%s, %s, %s\n", mnem, floatRegName(d, isDouble), floatRegName(n, isDouble), floatRegName(m, isDouble))
}
