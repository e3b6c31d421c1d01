package irbuilder

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/value"
)

// setTerminatorOn allocates a terminator instruction of the given opcode
// in block br, appends it, and lets wire attach its JumpTargets (done as a
// callback so Jump/Br/Switch can each wire their own edge shapes without
// duplicating the alloc/append/check boilerplate).
func (b *Builder) setTerminatorOn(br value.BlockRef, opcode ssair.Opcode, payload ssair.Payload, wire func(value.InstRef) error) error {
	blk, ok := b.M.Blocks.Get(br.Ref)
	if !ok {
		return &ssaerr.NodeNotFound{What: "block"}
	}
	if existing := b.M.Terminator(br); existing.Ref.Valid() {
		return &ssaerr.MultipleTerminator{Inst: ssaerr.StringerString(opcode.String())}
	}

	inst := ssair.Inst{Opcode: opcode, Parent: br, Payload: payload}
	ref := value.InstRef{Ref: b.M.Insts.Alloc(inst)}

	iac := b.instAccessors()
	blk.Insts.PushBack(iac, ref.Ref)
	b.M.Blocks.Set(br.Ref, blk)

	return wire(ref)
}

// linkJump allocates a JumpTarget edge from terminator to dst, links it
// into dst's Preds list, and returns its ref.
func (b *Builder) linkJump(term value.InstRef, kind ssair.JumpTargetKind, dst value.BlockRef) (value.JumpTargetRef, error) {
	jt := ssair.JumpTarget{Kind: kind, From: term, To: dst}
	jr := value.JumpTargetRef{Ref: b.M.JumpTargets.Alloc(jt)}

	dstBlk, ok := b.M.Blocks.Get(dst.Ref)
	if !ok {
		return value.JumpTargetRef{}, &ssaerr.NodeNotFound{What: "jump target block"}
	}
	jac := ssair.JumpTargetAccessors(b.M.JumpTargets)
	dstBlk.Preds.PushBack(jac, jr.Ref)
	b.M.Blocks.Set(dst.Ref, dstBlk)

	return jr, nil
}

// SetJumpTo terminates the focused block with an unconditional jump to
// dst.
func (b *Builder) SetJumpTo(dst value.BlockRef) error {
	br := b.curBlock
	var jr value.JumpTargetRef
	err := b.setTerminatorOn(br, ssair.OpJump, ssair.JumpPayload{}, func(term value.InstRef) error {
		var linkErr error
		jr, linkErr = b.linkJump(term, ssair.JTJump, dst)
		return linkErr
	})
	if err != nil {
		return err
	}
	return b.patchPayload(br, ssair.JumpPayload{Target: jr})
}

// SetBranchTo terminates the focused block with a conditional branch:
// cond selects between then and els.
func (b *Builder) SetBranchTo(cond value.Value, then, els value.BlockRef) error {
	br := b.curBlock
	var thenJr, elseJr value.JumpTargetRef
	err := b.setTerminatorOn(br, ssair.OpBr, ssair.BrPayload{}, func(term value.InstRef) error {
		var linkErr error
		if thenJr, linkErr = b.linkJump(term, ssair.JTBrThen, then); linkErr != nil {
			return linkErr
		}
		elseJr, linkErr = b.linkJump(term, ssair.JTBrElse, els)
		if linkErr != nil {
			return linkErr
		}
		use := b.M.SetOperand(value.Owner{Kind: value.OwnerInst, Inst: term}, value.UseKind{Role: value.RoleSelectCond}, cond)
		inst, _ := b.M.Insts.Get(term.Ref)
		inst.Operands = []value.UseRef{use}
		b.M.Insts.Set(term.Ref, inst)
		return nil
	})
	if err != nil {
		return err
	}
	return b.patchPayload(br, ssair.BrPayload{Then: thenJr, Else: elseJr})
}

// SetSwitch terminates the focused block with a multiway switch on val.
func (b *Builder) SetSwitch(val value.Value, cases map[int64]value.BlockRef, defaultDst value.BlockRef) error {
	br := b.curBlock
	var defaultJr value.JumpTargetRef
	var caseList []ssair.SwitchCase
	err := b.setTerminatorOn(br, ssair.OpSwitch, ssair.SwitchPayload{}, func(term value.InstRef) error {
		var linkErr error
		if defaultJr, linkErr = b.linkJump(term, ssair.JTSwitchDefault, defaultDst); linkErr != nil {
			return linkErr
		}
		seen := map[int64]bool{}
		for v, dst := range cases {
			if seen[v] {
				return &ssaerr.DuplicatedSwitchCase{Inst: ssaerr.StringerString("switch"), JumpTarget: ssaerr.StringerString("case")}
			}
			seen[v] = true
			jr, err := b.linkJump(term, ssair.JTSwitchCase, dst)
			if err != nil {
				return err
			}
			caseList = append(caseList, ssair.SwitchCase{Value: v, Target: jr})
		}
		use := b.M.SetOperand(value.Owner{Kind: value.OwnerInst, Inst: term}, value.UseKind{Role: value.RoleSwitchVal}, val)
		inst, _ := b.M.Insts.Get(term.Ref)
		inst.Operands = []value.UseRef{use}
		b.M.Insts.Set(term.Ref, inst)
		return nil
	})
	if err != nil {
		return err
	}
	return b.patchPayload(br, ssair.SwitchPayload{Default: defaultJr, Cases: caseList})
}

// SetRet terminates the focused block with a return; val may be nil for a
// void-returning function.
func (b *Builder) SetRet(val value.Value) error {
	br := b.curBlock
	return b.setTerminatorOn(br, ssair.OpRet, ssair.RetPayload{}, func(term value.InstRef) error {
		if val == nil {
			return nil
		}
		use := b.M.SetOperand(value.Owner{Kind: value.OwnerInst, Inst: term}, value.UseKind{Role: value.RoleRetVal}, val)
		inst, _ := b.M.Insts.Get(term.Ref)
		inst.Operands = []value.UseRef{use}
		b.M.Insts.Set(term.Ref, inst)
		return nil
	})
}

// SetUnreachable terminates the focused block with an unreachable marker.
func (b *Builder) SetUnreachable() error {
	br := b.curBlock
	return b.setTerminatorOn(br, ssair.OpUnreachable, ssair.UnreachablePayload{}, func(value.InstRef) error { return nil })
}

// patchPayload rewrites the most recent instruction in br (expected to be
// the terminator just appended by setTerminatorOn) with its final payload
// once JumpTarget refs are known, since the payload embeds them and the
// instruction had to exist first for linkJump's From back-pointer.
func (b *Builder) patchPayload(br value.BlockRef, payload ssair.Payload) error {
	blk, ok := b.M.Blocks.Get(br.Ref)
	if !ok {
		return &ssaerr.NodeNotFound{What: "block"}
	}
	tail := blk.Insts.Tail()
	if tail == arena.Nil {
		return &ssaerr.NodeNotFound{What: "terminator"}
	}
	inst, ok := b.M.Insts.Get(tail)
	if !ok {
		return &ssaerr.NodeNotFound{What: "terminator"}
	}
	inst.Payload = payload
	b.M.Insts.Set(tail, inst)
	return nil
}
