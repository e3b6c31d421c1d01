// Package regalloc implements the spill-everywhere register allocator of
// spec §4.10: every virtual register gets its own stack slot, and every
// instruction referencing one is bracketed with a load-before-use and a
// store-after-def through a fixed temp-register pool. It generalizes the
// teacher's pkg/regalloc — which builds an interference graph and colors
// it (irc.go) — down to the simplicity the MIR backend asks for: no
// coloring, no coalescing, just a mechanical rewrite.
package regalloc

import "github.com/ssair-lang/ssair/pkg/mir"

// Allocate rewrites every virtual register operand in fn into temp
// physical registers, replacing fn.Blocks in place. Stack-position vregs
// (VReg.IsAddress) are left as a bare StackPos operand for stacking.go to
// finish lowering; every other vreg is spilled to its own slot.
func Allocate(fn *mir.Function) {
	pool := newTempPool()
	for bi := range fn.Blocks {
		fn.Blocks[bi].Code = allocateBlock(fn.Blocks[bi].Code, pool)
	}
}

type tempPool struct {
	ints   []mir.PReg
	floats []mir.PReg
}

func newTempPool() *tempPool {
	return &tempPool{
		ints:   append([]mir.PReg{}, mir.TempPool.Ints...),
		floats: append([]mir.PReg{}, mir.TempPool.Floats...),
	}
}

func (p *tempPool) take(class mir.Class) mir.PReg {
	switch class {
	case mir.F32, mir.F64:
		r := p.floats[0]
		p.floats = p.floats[1:]
		return r
	default:
		r := p.ints[0]
		p.ints = p.ints[1:]
		return r
	}
}

func allocateBlock(code []mir.Instruction, basePool *tempPool) []mir.Instruction {
	out := make([]mir.Instruction, 0, len(code))
	for _, inst := range code {
		uses, defs := mir.Operands(inst)
		pool := newTempPool() // fresh pool per instruction: every role gets a distinct temp

		var pre, post []mir.Instruction
		newUses := make([]mir.Operand, len(uses))
		for i, op := range uses {
			newUses[i], pre = loadIfSpilled(op, pool, pre)
		}
		newDefs := make([]mir.Operand, len(defs))
		for i, op := range defs {
			newDefs[i], post = storeIfSpilled(op, pool, post)
		}

		out = append(out, pre...)
		out = append(out, mir.WithOperands(inst, newUses, newDefs))
		out = append(out, post...)
	}
	return out
}

// loadIfSpilled replaces a VReg use with a freshly taken temp register and
// appends the load that materializes it from its spill slot. A
// stack-position vreg (VReg.IsAddress: it names the address of a local
// variable, not a spilled value) is instead rewritten directly into a
// StackPos operand — stacking.go turns that into concrete SP-relative
// addressing once the frame layout is final, per spec §4.10's "skip
// stack-position vregs" rule.
func loadIfSpilled(op mir.Operand, pool *tempPool, pre []mir.Instruction) (mir.Operand, []mir.Instruction) {
	v, ok := op.(mir.VReg)
	if !ok {
		return op, pre
	}
	if v.IsAddress {
		return mir.StackPos{VReg: v}, pre
	}
	tmp := pool.take(v.Class)
	pre = append(pre, loadInst(tmp, v))
	return tmp, pre
}

func storeIfSpilled(op mir.Operand, pool *tempPool, post []mir.Instruction) (mir.Operand, []mir.Instruction) {
	v, ok := op.(mir.VReg)
	if !ok {
		return op, post
	}
	if v.IsAddress {
		return mir.StackPos{VReg: v}, post
	}
	tmp := pool.take(v.Class)
	post = append(post, storeInst(tmp, v))
	return tmp, post
}

func loadInst(tmp mir.PReg, v mir.VReg) mir.Instruction {
	slot := mir.StackPos{VReg: v}
	switch v.Class {
	case mir.F32:
		return mir.FLDR{Ft: tmp, Rn: slot, IsDouble: false}
	case mir.F64:
		return mir.FLDR{Ft: tmp, Rn: slot, IsDouble: true}
	case mir.G32:
		return mir.LDR{Rt: tmp, Rn: slot, Is64: false}
	default:
		return mir.LDR{Rt: tmp, Rn: slot, Is64: true}
	}
}

func storeInst(tmp mir.PReg, v mir.VReg) mir.Instruction {
	slot := mir.StackPos{VReg: v}
	switch v.Class {
	case mir.F32:
		return mir.FSTR{Ft: tmp, Rn: slot, IsDouble: false}
	case mir.F64:
		return mir.FSTR{Ft: tmp, Rn: slot, IsDouble: true}
	case mir.G32:
		return mir.STR{Rt: tmp, Rn: slot, Is64: false}
	default:
		return mir.STR{Rt: tmp, Rn: slot, Is64: true}
	}
}
