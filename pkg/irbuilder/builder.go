// Package irbuilder implements a focus-based cursor over a ssair.Module:
// a single mutable position (which global, which function, which block)
// that every insertion call implicitly targets, generalizing the
// teacher's rtlgen incremental build-up style (pkg/rtlgen translates one
// Cminor statement at a time into the current RTL function under
// construction) from RTL's flat numbered-register form to the SSA graph.
package irbuilder

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// Builder holds the focus position. The zero Builder is not usable;
// construct with New.
type Builder struct {
	M *ssair.Module

	curFunc  value.FuncRef
	curBlock value.BlockRef
}

// New creates a Builder over an existing module, with no function focused.
func New(m *ssair.Module) *Builder {
	return &Builder{M: m}
}

// NewFunction declares a function global and focuses it, with a single
// empty entry block (already focused) ready for instructions.
func (b *Builder) NewFunction(name string, argTypes []types.ID, retType types.ID, isVararg bool, linkage ssair.Linkage) (value.FuncRef, error) {
	fn := ssair.Function{
		ArgTypes: argTypes,
		RetType:  retType,
		IsVararg: isVararg,
		ArgUsers: make([]value.UserList, len(argTypes)),
	}
	fr := value.FuncRef{Ref: b.M.Funcs.Alloc(fn)}

	if _, err := b.M.DeclareGlobal(ssair.FuncGlobal{Name: name, Linkage: linkage, Func: fr}); err != nil {
		return value.FuncRef{}, err
	}

	b.curFunc = fr
	entry, err := b.appendBlock(fr, "entry")
	if err != nil {
		return value.FuncRef{}, err
	}
	b.curBlock = entry
	return fr, nil
}

// FocusFunc moves the cursor to an existing function without creating a
// block; callers that resume building an existing function must
// FocusBlock afterward.
func (b *Builder) FocusFunc(fr value.FuncRef) {
	b.curFunc = fr
}

// Func returns the currently focused function.
func (b *Builder) Func() value.FuncRef { return b.curFunc }

// Block returns the currently focused block.
func (b *Builder) Block() value.BlockRef { return b.curBlock }

// FocusBlock moves the cursor to an existing block within the focused
// function.
func (b *Builder) FocusBlock(br value.BlockRef) {
	b.curBlock = br
}

// NewBlock appends a fresh, empty block (already carrying its
// PhiInstEnd sentinel) to the focused function and focuses it.
func (b *Builder) NewBlock(name string) (value.BlockRef, error) {
	if !b.curFunc.Ref.Valid() {
		return value.BlockRef{}, &ssaerr.NodeNotFound{What: "no function focused"}
	}
	br, err := b.appendBlock(b.curFunc, name)
	if err != nil {
		return value.BlockRef{}, err
	}
	b.curBlock = br
	return br, nil
}

func (b *Builder) appendBlock(fr value.FuncRef, name string) (value.BlockRef, error) {
	fn, ok := b.M.Funcs.Get(fr.Ref)
	if !ok {
		return value.BlockRef{}, &ssaerr.NodeNotFound{What: "function"}
	}
	blk := ssair.Block{Name: name, Parent: fr}
	br := value.BlockRef{Ref: b.M.Blocks.Alloc(blk)}

	phiEnd := ssair.Inst{Opcode: ssair.OpPhiInstEnd, Parent: br, Payload: ssair.PhiInstEndPayload{}}
	phiEndRef := value.InstRef{Ref: b.M.Insts.Alloc(phiEnd)}

	iac := b.instAccessors()
	blk, _ = b.M.Blocks.Get(br.Ref)
	blk.Insts.PushBack(iac, phiEndRef.Ref)
	blk.PhiEnd = phiEndRef
	b.M.Blocks.Set(br.Ref, blk)

	fn.Blocks.PushBack(b.blockAccessors(), br.Ref)
	b.M.Funcs.Set(fr.Ref, fn)

	return br, nil
}

// SplitBlock divides the focused block immediately before splitPoint
// (exclusive of the phi run, which never moves): instructions from
// splitPoint onward are relocated into a brand-new successor block, and
// the original block falls through into it via an inserted unconditional
// jump. Returns the new successor block, now focused.
func (b *Builder) SplitBlock(splitPoint value.InstRef) (value.BlockRef, error) {
	if !b.curBlock.Ref.Valid() {
		return value.BlockRef{}, &ssaerr.NodeNotFound{What: "no block focused"}
	}
	oldBlk, ok := b.M.Blocks.Get(b.curBlock.Ref)
	if !ok {
		return value.BlockRef{}, &ssaerr.NodeNotFound{What: "block"}
	}

	newBr, err := b.appendBlock(oldBlk.Parent, oldBlk.Name+".split")
	if err != nil {
		return value.BlockRef{}, err
	}
	newBlk, _ := b.M.Blocks.Get(newBr.Ref)

	iac := b.instAccessors()
	for ir := splitPoint.Ref; ir != arena.Nil; {
		next := oldBlk.Insts.Next(iac, ir)
		oldBlk.Insts.Remove(iac, ir)
		newBlk.Insts.PushBack(iac, ir)
		inst, _ := b.M.Insts.Get(ir)
		inst.Parent = newBr
		b.M.Insts.Set(ir, inst)
		ir = next
	}
	b.M.Blocks.Set(b.curBlock.Ref, oldBlk)
	b.M.Blocks.Set(newBr.Ref, newBlk)

	if err := b.SetJumpTo(newBr); err != nil {
		return value.BlockRef{}, err
	}

	b.curBlock = newBr
	return newBr, nil
}

func (b *Builder) instAccessors() arena.Accessors[ssair.Inst] {
	return ssair.InstAccessors(b.M.Insts)
}

func (b *Builder) blockAccessors() arena.Accessors[ssair.Block] {
	return ssair.BlockAccessors(b.M.Blocks)
}
