package stacking

import "github.com/ssair-lang/ssair/pkg/mir"

// Lower finalizes fn's frame: computes the layout, rewrites every
// StackPos operand into an X29-relative LDR/STR/FLDR/FSTR/MirGEP/MirStImm
// form, expands each MirRestoreHostRegs placeholder into the actual
// callee-saved reload sequence, and prepends the prologue to the entry
// block (spec §4.11).
func Lower(fn *mir.Function) {
	layout := ComputeLayout(fn)
	fn.Frame = layout

	savedBase := layout.VarsSize
	offsets, _ := slotOffsets(fn)
	offsetOf := func(v mir.VReg) int64 { return offsets[v.ID] }

	for bi := range fn.Blocks {
		fn.Blocks[bi].Code = rewriteStackPositions(fn.Blocks[bi].Code, offsetOf)
		fn.Blocks[bi].Code = expandRestoreHostRegs(fn.Blocks[bi].Code, layout, savedBase)
	}

	if len(fn.Blocks) > 0 {
		fn.Blocks[0].Code = append(prologue(layout, savedBase), fn.Blocks[0].Code...)
	}
}

// rewriteStackPositions replaces every StackPos{v} operand with X29 (equal
// to SP once the prologue has run) plus v's assigned offset. The offset is
// written into the instruction's offset field as is; no LoadConst64
// scratch-register sequence is produced for an offset beyond the immediate
// load/store range.
func rewriteStackPositions(code []mir.Instruction, offsetOf func(mir.VReg) int64) []mir.Instruction {
	out := make([]mir.Instruction, 0, len(code))
	for _, inst := range code {
		switch i := inst.(type) {
		case mir.LDR:
			if sp, ok := i.Rn.(mir.StackPos); ok {
				i.Rn, i.Ofs = mir.X29, offsetOf(sp.VReg)
			}
			out = append(out, i)
		case mir.STR:
			if sp, ok := i.Rn.(mir.StackPos); ok {
				i.Rn, i.Ofs = mir.X29, offsetOf(sp.VReg)
			}
			out = append(out, i)
		case mir.FLDR:
			if sp, ok := i.Rn.(mir.StackPos); ok {
				i.Rn, i.Ofs = mir.X29, offsetOf(sp.VReg)
			}
			out = append(out, i)
		case mir.FSTR:
			if sp, ok := i.Rn.(mir.StackPos); ok {
				i.Rn, i.Ofs = mir.X29, offsetOf(sp.VReg)
			}
			out = append(out, i)
		case mir.MirStImm:
			if sp, ok := i.Base.(mir.StackPos); ok {
				i.Base, i.Ofs = mir.X29, offsetOf(sp.VReg)
			}
			out = append(out, i)
		case mir.MirGEP:
			// A StackPos Dst means this GEP only ever feeds further
			// addressing (translate.go marks it IsAddress precisely when
			// every use is itself a base register, never a materialized
			// value) — its own Base/Terms/Offset are dead, since each
			// later use resolves straight to X29 plus that use's own
			// offset via this same rewrite. Only a StackPos Base, feeding
			// a real computed value, needs folding in here.
			if sp, ok := i.Base.(mir.StackPos); ok {
				i.Base, i.Offset = mir.X29, i.Offset+offsetOf(sp.VReg)
			}
			out = append(out, i)
		default:
			out = append(out, inst)
		}
	}
	return out
}

func prologue(layout mir.FrameLayout, savedBase int64) []mir.Instruction {
	var code []mir.Instruction
	if layout.FrameSize == 0 {
		return code
	}
	if layout.FrameSize <= 4095 {
		code = append(code, mir.Bin64RC{Op: mir.RCSub, Rd: mir.SP, Rn: mir.SP, Imm: layout.FrameSize})
	} else {
		code = append(code, mir.LoadConst64{Rd: mir.X16, Value: layout.FrameSize})
		code = append(code, mir.SUB{Rd: mir.SP, Rn: mir.SP, Rm: mir.X16, Is64: true})
	}

	// The caller's X29/X30 live at the top of the frame, saved off SP
	// before X29 gets repurposed as this function's locals base — every
	// StackPos this function addresses is relative to X29, not SP.
	if layout.UsesFramePtr {
		fplrOff := layout.VarsSize + layout.SavedRegsSize
		code = append(code, mir.STR{Rt: mir.X29, Rn: mir.SP, Ofs: fplrOff, Is64: true})
		code = append(code, mir.STR{Rt: mir.X30, Rn: mir.SP, Ofs: fplrOff + 8, Is64: true})
		code = append(code, mir.MOV{Rd: mir.X29, Rm: mir.SP, Is64: true})
	}

	off := savedBase
	for _, r := range layout.SavedInts {
		code = append(code, mir.STR{Rt: r, Rn: mir.X29, Ofs: off, Is64: true})
		off += 8
	}
	for _, r := range layout.SavedFloats {
		code = append(code, mir.FSTR{Ft: r, Rn: mir.X29, Ofs: off, IsDouble: true})
		off += 8
	}
	return code
}

// epilogue reverses the save sequence. Restoring every callee-saved
// register unconditionally is safe regardless of return type: X0/D0 (the
// AAPCS64 return registers) are never themselves callee-saved, so nothing
// here can clobber a return value in flight.
func epilogue(layout mir.FrameLayout, savedBase int64) []mir.Instruction {
	var code []mir.Instruction
	if layout.FrameSize == 0 {
		return code
	}

	off := savedBase
	for _, r := range layout.SavedInts {
		code = append(code, mir.LDR{Rt: r, Rn: mir.X29, Ofs: off, Is64: true})
		off += 8
	}
	for _, r := range layout.SavedFloats {
		code = append(code, mir.FLDR{Ft: r, Rn: mir.X29, Ofs: off, IsDouble: true})
		off += 8
	}

	if layout.UsesFramePtr {
		fplrOff := layout.VarsSize + layout.SavedRegsSize
		code = append(code, mir.LDR{Rt: mir.X29, Rn: mir.SP, Ofs: fplrOff, Is64: true})
		code = append(code, mir.LDR{Rt: mir.X30, Rn: mir.SP, Ofs: fplrOff + 8, Is64: true})
	}

	if layout.FrameSize <= 4095 {
		code = append(code, mir.Bin64RC{Op: mir.RCAdd, Rd: mir.SP, Rn: mir.SP, Imm: layout.FrameSize})
	} else {
		code = append(code, mir.LoadConst64{Rd: mir.X16, Value: layout.FrameSize})
		code = append(code, mir.ADD{Rd: mir.SP, Rn: mir.SP, Rm: mir.X16, Is64: true})
	}
	return code
}

// expandRestoreHostRegs replaces each MirRestoreHostRegs placeholder with
// the concrete epilogue sequence.
func expandRestoreHostRegs(code []mir.Instruction, layout mir.FrameLayout, savedBase int64) []mir.Instruction {
	out := make([]mir.Instruction, 0, len(code))
	for _, inst := range code {
		if _, ok := inst.(mir.MirRestoreHostRegs); !ok {
			out = append(out, inst)
			continue
		}
		out = append(out, epilogue(layout, savedBase)...)
	}
	return out
}
