package ssair

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/value"
)

// JumpTarget is an edge from a terminator to a successor block. It is its
// own arena-allocated node (not a bare BlockRef) because a Phi's incoming
// edges, and the predecessor list a Block keeps for dominance/GC walks,
// both need a stable identity to attach Uses to (the JumpTargetRef owner
// kind in pkg/value) — mirroring how the teacher's RTL keeps explicit CFG
// edge objects rather than raw successor slices.
type JumpTarget struct {
	link arena.ListNode // linked into the destination Block's Preds list

	Kind JumpTargetKind
	From value.InstRef  // the terminator instruction owning this edge
	To   value.BlockRef // destination block
}

func JumpTargetAccessors(jts *arena.Arena[JumpTarget]) arena.Accessors[JumpTarget] {
	return arena.Accessors[JumpTarget]{
		Arena: jts,
		Get:   func(j JumpTarget) arena.ListNode { return j.link },
		Set:   func(j JumpTarget, ln arena.ListNode) JumpTarget { j.link = ln; return j },
	}
}

// Block is a basic block: a straight-line run of instructions ending in
// exactly one terminator, plus the bookkeeping spec.md §4.1 requires for
// phi placement (PhiEnd marks the boundary between the leading phi run and
// the rest) and dominance/GC traversal (Preds, the reverse-edge list).
type Block struct {
	link arena.ListNode // block chain link within the owning Function

	Name string

	Insts  arena.List[Inst]   // instruction chain, phis first then PhiInstEnd then the rest
	PhiEnd value.InstRef      // ref to the PhiInstEnd sentinel inst in Insts
	Preds  arena.List[JumpTarget]

	Parent value.FuncRef

	Users value.UserList // uses of this block as a Phi incoming-block / blockaddress value
}

func BlockAccessors(blocks *arena.Arena[Block]) arena.Accessors[Block] {
	return arena.Accessors[Block]{
		Arena: blocks,
		Get:   func(b Block) arena.ListNode { return b.link },
		Set:   func(b Block, ln arena.ListNode) Block { b.link = ln; return b },
	}
}

// Terminator returns the block's terminator instruction ref, or arena.Nil
// if the block is not yet terminated (under construction).
func (m *Module) Terminator(b value.BlockRef) value.InstRef {
	blk, ok := m.Blocks.Get(b.Ref)
	if !ok {
		return value.InstRef{}
	}
	tail := blk.Insts.Tail()
	if tail == arena.Nil {
		return value.InstRef{}
	}
	inst, ok := m.Insts.Get(tail)
	if !ok || !inst.Opcode.IsTerminator() {
		return value.InstRef{}
	}
	return value.InstRef{Ref: tail}
}
