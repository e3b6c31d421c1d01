package mir

// Operands reports every operand an instruction reads (uses) and writes
// (defs), in a stable per-type order. Regalloc.go uses this to discover
// every virtual register touched by a function without a type switch of
// its own, and to rebuild instructions with temp registers substituted
// via WithOperands.
func Operands(inst Instruction) (uses, defs []Operand) {
	switch i := inst.(type) {
	case ADD:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case SUB:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case MUL:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case MADD:
		return []Operand{i.Rn, i.Rm, i.Ra}, []Operand{i.Rd}
	case SDIV:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case UDIV:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case AND:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case ORR:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case EOR:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case LSL:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case LSLi:
		return []Operand{i.Rn}, []Operand{i.Rd}
	case LSR:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case ASR:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case NEG:
		return []Operand{i.Rn}, []Operand{i.Rd}
	case FADD:
		return []Operand{i.Fn, i.Fm}, []Operand{i.Fd}
	case FSUB:
		return []Operand{i.Fn, i.Fm}, []Operand{i.Fd}
	case FMUL:
		return []Operand{i.Fn, i.Fm}, []Operand{i.Fd}
	case FDIV:
		return []Operand{i.Fn, i.Fm}, []Operand{i.Fd}
	case Bin32RC:
		return []Operand{i.Rn}, []Operand{i.Rd}
	case Bin64RC:
		return []Operand{i.Rn}, []Operand{i.Rd}
	case CMP:
		return []Operand{i.Rn, i.Rm}, nil
	case CMPi:
		return []Operand{i.Rn}, nil
	case FCMPS:
		return []Operand{i.Fn, i.Fm}, nil
	case CSEL:
		return []Operand{i.Rn, i.Rm}, []Operand{i.Rd}
	case CSET:
		return nil, []Operand{i.Rd}
	case FCSEL:
		return []Operand{i.Fn, i.Fm}, []Operand{i.Fd}
	case MOV:
		return []Operand{i.Rm}, []Operand{i.Rd}
	case MOVi:
		return nil, []Operand{i.Rd}
	case FMOV:
		return []Operand{i.Fn}, []Operand{i.Fd}
	case FMOVi:
		return nil, []Operand{i.Fd}
	case LoadConst64:
		return nil, []Operand{i.Rd}
	case LDR:
		return []Operand{i.Rn}, []Operand{i.Rt}
	case STR:
		return []Operand{i.Rt, i.Rn}, nil
	case FLDR:
		return []Operand{i.Rn}, []Operand{i.Ft}
	case FSTR:
		return []Operand{i.Ft, i.Rn}, nil
	case MirStImm:
		return []Operand{i.Base}, nil
	case MirCopy32:
		return []Operand{i.Src}, []Operand{i.Dst}
	case MirCopy64:
		return []Operand{i.Src}, []Operand{i.Dst}
	case MirFCopy32:
		return []Operand{i.Src}, []Operand{i.Dst}
	case MirFCopy64:
		return []Operand{i.Src}, []Operand{i.Dst}
	case MirGEP:
		u := []Operand{i.Base}
		for _, t := range i.Terms {
			u = append(u, t.Index)
		}
		return u, []Operand{i.Dst}
	case MirCall:
		u := append([]Operand{}, i.ArgRegs...)
		if i.CalleeReg != nil {
			u = append(u, i.CalleeReg)
		}
		if i.Ret != nil {
			return u, []Operand{i.Ret}
		}
		return u, nil
	case SXTW:
		return []Operand{i.Rn}, []Operand{i.Rd}
	case UXTW:
		return []Operand{i.Rn}, []Operand{i.Rd}
	case SCVTF:
		return []Operand{i.Rn}, []Operand{i.Fd}
	case UCVTF:
		return []Operand{i.Rn}, []Operand{i.Fd}
	case FCVTZS:
		return []Operand{i.Fn}, []Operand{i.Rd}
	case FCVTZU:
		return []Operand{i.Fn}, []Operand{i.Rd}
	case FCVT:
		return []Operand{i.Fn}, []Operand{i.Fd}
	case Jtable:
		return []Operand{i.Index}, nil
	}
	return nil, nil
}

// WithOperands rebuilds inst with its use/def operand slots replaced, in
// the same order Operands reported them. It is a no-op (returns inst
// unchanged) for instructions Operands reports as having none of that
// kind, so callers can always pass both slices back unconditionally.
func WithOperands(inst Instruction, uses, defs []Operand) Instruction {
	switch i := inst.(type) {
	case ADD:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case SUB:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case MUL:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case MADD:
		i.Rn, i.Rm, i.Ra = uses[0], uses[1], uses[2]
		i.Rd = defs[0]
		return i
	case SDIV:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case UDIV:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case AND:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case ORR:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case EOR:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case LSL:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case LSLi:
		i.Rn = uses[0]
		i.Rd = defs[0]
		return i
	case LSR:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case ASR:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case NEG:
		i.Rn = uses[0]
		i.Rd = defs[0]
		return i
	case Bin32RC:
		i.Rn = uses[0]
		i.Rd = defs[0]
		return i
	case Bin64RC:
		i.Rn = uses[0]
		i.Rd = defs[0]
		return i
	case CMP:
		i.Rn, i.Rm = uses[0], uses[1]
		return i
	case CMPi:
		i.Rn = uses[0]
		return i
	case FCMPS:
		i.Fn, i.Fm = uses[0], uses[1]
		return i
	case CSEL:
		i.Rn, i.Rm = uses[0], uses[1]
		i.Rd = defs[0]
		return i
	case CSET:
		i.Rd = defs[0]
		return i
	case FCSEL:
		i.Fn, i.Fm = uses[0], uses[1]
		i.Fd = defs[0]
		return i
	case MOV:
		i.Rm = uses[0]
		i.Rd = defs[0]
		return i
	case MOVi:
		i.Rd = defs[0]
		return i
	case FMOV:
		i.Fn = uses[0]
		i.Fd = defs[0]
		return i
	case FMOVi:
		i.Fd = defs[0]
		return i
	case LoadConst64:
		i.Rd = defs[0]
		return i
	case LDR:
		i.Rn = uses[0]
		i.Rt = defs[0]
		return i
	case STR:
		i.Rt, i.Rn = uses[0], uses[1]
		return i
	case FLDR:
		i.Rn = uses[0]
		i.Ft = defs[0]
		return i
	case FSTR:
		i.Ft, i.Rn = uses[0], uses[1]
		return i
	case MirStImm:
		i.Base = uses[0]
		return i
	case MirCopy32:
		i.Src = uses[0]
		i.Dst = defs[0]
		return i
	case MirCopy64:
		i.Src = uses[0]
		i.Dst = defs[0]
		return i
	case MirFCopy32:
		i.Src = uses[0]
		i.Dst = defs[0]
		return i
	case MirFCopy64:
		i.Src = uses[0]
		i.Dst = defs[0]
		return i
	case MirGEP:
		i.Base = uses[0]
		terms := make([]GepTerm, len(i.Terms))
		copy(terms, i.Terms)
		for j := range terms {
			terms[j].Index = uses[j+1]
		}
		i.Terms = terms
		i.Dst = defs[0]
		return i
	case MirCall:
		n := len(i.ArgRegs)
		args := make([]Operand, n)
		copy(args, uses[:n])
		i.ArgRegs = args
		if i.CalleeReg != nil {
			i.CalleeReg = uses[n]
		}
		if i.Ret != nil {
			i.Ret = defs[0]
		}
		return i
	case SXTW:
		i.Rn = uses[0]
		i.Rd = defs[0]
		return i
	case UXTW:
		i.Rn = uses[0]
		i.Rd = defs[0]
		return i
	case SCVTF:
		i.Rn = uses[0]
		i.Fd = defs[0]
		return i
	case UCVTF:
		i.Rn = uses[0]
		i.Fd = defs[0]
		return i
	case FCVTZS:
		i.Fn = uses[0]
		i.Rd = defs[0]
		return i
	case FCVTZU:
		i.Fn = uses[0]
		i.Rd = defs[0]
		return i
	case FCVT:
		i.Fn = uses[0]
		i.Fd = defs[0]
		return i
	case Jtable:
		i.Index = uses[0]
		return i
	}
	return inst
}
