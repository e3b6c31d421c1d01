package irbuilder

import (
	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// InsertInst appends a fully-formed instruction (opcode, result type,
// payload) to the focused block immediately before its terminator (if one
// has already been set), links operands into their producers' UserLists,
// and returns its InstRef. Terminator-class opcodes are always rejected
// with FalseOpcodeKind, whether or not the block already has a terminator;
// install terminators with SetJumpTo/SetBranchTo/SetSwitch/SetRet/
// SetUnreachable, which also establish the CFG edges.
func (b *Builder) InsertInst(opcode ssair.Opcode, resultType types.ID, payload ssair.Payload, operands ...operand) (value.InstRef, error) {
	if !b.curBlock.Ref.Valid() {
		return value.InstRef{}, &ssaerr.NodeNotFound{What: "no block focused"}
	}
	if opcode.IsTerminator() {
		return value.InstRef{}, &ssaerr.FalseOpcodeKind{Kind: "terminator", Op: "InsertInst"}
	}

	inst := ssair.Inst{Opcode: opcode, ResultType: resultType, Parent: b.curBlock, Payload: payload}
	ref := value.InstRef{Ref: b.M.Insts.Alloc(inst)}

	uses := make([]value.UseRef, len(operands))
	for i, op := range operands {
		uses[i] = b.M.SetOperand(value.Owner{Kind: value.OwnerInst, Inst: ref}, op.kind, op.val)
	}
	inst.Operands = uses
	b.M.Insts.Set(ref.Ref, inst)

	blk, _ := b.M.Blocks.Get(b.curBlock.Ref)
	iac := b.instAccessors()
	term := b.M.Terminator(b.curBlock)
	if term.Ref.Valid() {
		blk.Insts.InsertBefore(iac, ref.Ref, term.Ref)
	} else {
		blk.Insts.PushBack(iac, ref.Ref)
	}
	b.M.Blocks.Set(b.curBlock.Ref, blk)

	return ref, nil
}

// operand pairs a positional role with the value it carries, the unit
// InsertInst's variadic operand list is built from.
type operand struct {
	kind value.UseKind
	val  value.Value
}

func Operand(role value.Role, v value.Value) operand          { return operand{kind: value.UseKind{Role: role}, val: v} }
func IndexedOperand(role value.Role, idx int, v value.Value) operand {
	return operand{kind: value.UseKind{Role: role, Index: idx}, val: v}
}

// BinOp inserts an Add/Sub/Mul/... instruction.
func (b *Builder) BinOp(opcode ssair.Opcode, resultType types.ID, lhs, rhs value.Value) (value.InstRef, error) {
	return b.InsertInst(opcode, resultType, ssair.BinOpPayload{},
		Operand(value.RoleBinOpLhs, lhs), Operand(value.RoleBinOpRhs, rhs))
}

// Icmp/Fcmp inserts a compare instruction yielding i1.
func (b *Builder) Cmp(opcode ssair.Opcode, cond ssair.CmpCond, flags ssair.CmpFlags, lhs, rhs value.Value) (value.InstRef, error) {
	return b.InsertInst(opcode, types.Int(1), ssair.CmpPayload{Cond: cond, Flags: flags},
		Operand(value.RoleCmpLhs, lhs), Operand(value.RoleCmpRhs, rhs))
}

// Cast inserts a width/representation conversion instruction.
func (b *Builder) Cast(opcode ssair.Opcode, resultType types.ID, src value.Value) (value.InstRef, error) {
	return b.InsertInst(opcode, resultType, ssair.CastPayload{}, Operand(value.RoleCastSrc, src))
}

// Alloca inserts a stack allocation of elemType, yielding a pointer.
func (b *Builder) Alloca(elemType types.ID, alignLog2 uint8) (value.InstRef, error) {
	return b.InsertInst(ssair.OpAlloca, types.Ptr, ssair.AllocaPayload{ElemType: elemType, AlignLog2: alignLog2})
}

// Load inserts a memory load of resultType through ptr.
func (b *Builder) Load(resultType types.ID, ptr value.Value, alignLog2 uint8) (value.InstRef, error) {
	return b.InsertInst(ssair.OpLoad, resultType, ssair.LoadPayload{AlignLog2: alignLog2}, Operand(value.RoleLoadPtr, ptr))
}

// Store inserts a memory store of val through ptr.
func (b *Builder) Store(val, ptr value.Value, alignLog2 uint8) (value.InstRef, error) {
	return b.InsertInst(ssair.OpStore, types.Void, ssair.StorePayload{AlignLog2: alignLog2},
		Operand(value.RoleStoreVal, val), Operand(value.RoleStoreTarget, ptr))
}

// Gep inserts a getelementptr-style address computation over baseType.
func (b *Builder) Gep(baseType types.ID, base value.Value, indices []value.Value) (value.InstRef, error) {
	ops := make([]operand, 0, len(indices)+1)
	ops = append(ops, Operand(value.RoleGepBase, base))
	for i, idx := range indices {
		ops = append(ops, IndexedOperand(value.RoleGepIndex, i, idx))
	}
	return b.InsertInst(ssair.OpGep, types.Ptr, ssair.GepPayload{BaseType: baseType}, ops...)
}

// Select inserts a ternary select.
func (b *Builder) Select(resultType types.ID, cond, ifTrue, ifFalse value.Value) (value.InstRef, error) {
	return b.InsertInst(ssair.OpSelect, resultType, ssair.SelectPayload{},
		Operand(value.RoleSelectCond, cond), Operand(value.RoleSelectTrue, ifTrue), Operand(value.RoleSelectFalse, ifFalse))
}

// Call inserts a call instruction; callee is typically a value.Global
// referencing a FuncGlobal, resultType is Void for statement-position
// calls to a void function.
func (b *Builder) Call(resultType types.ID, calleeType types.ID, callee value.Value, args []value.Value, isTail bool) (value.InstRef, error) {
	ops := make([]operand, 0, len(args)+1)
	ops = append(ops, Operand(value.RoleCallCallee, callee))
	for i, a := range args {
		ops = append(ops, IndexedOperand(value.RoleCallArg, i, a))
	}
	return b.InsertInst(ssair.OpCall, resultType, ssair.CallPayload{CalleeType: calleeType, IsTail: isTail}, ops...)
}

// AmoRmw inserts an atomic read-modify-write.
func (b *Builder) AmoRmw(resultType types.ID, op ssair.AmoOp, ordering ssair.Ordering, scope ssair.Scope, alignLog2 uint8, ptr, val value.Value) (value.InstRef, error) {
	return b.InsertInst(ssair.OpAmoRmw, resultType, ssair.AmoRmwPayload{Op: op, Ordering: ordering, Scope: scope, AlignLog2: alignLog2},
		Operand(value.RoleAmoPtr, ptr), Operand(value.RoleAmoVal, val))
}

// Phi inserts a phi into the focused block's leading phi run (immediately
// before its PhiInstEnd sentinel), rather than at the block's general
// insertion point.
func (b *Builder) Phi(resultType types.ID, incoming []PhiIncoming) (value.InstRef, error) {
	if !b.curBlock.Ref.Valid() {
		return value.InstRef{}, &ssaerr.NodeNotFound{What: "no block focused"}
	}
	blk, ok := b.M.Blocks.Get(b.curBlock.Ref)
	if !ok {
		return value.InstRef{}, &ssaerr.NodeNotFound{What: "block"}
	}
	if !blk.PhiEnd.Ref.Valid() {
		return value.InstRef{}, &ssaerr.PhiNotInHead{Phi: ssaerr.StringerString("phi")}
	}

	inst := ssair.Inst{Opcode: ssair.OpPhi, ResultType: resultType, Parent: b.curBlock, Payload: ssair.PhiPayload{}}
	ref := value.InstRef{Ref: b.M.Insts.Alloc(inst)}

	ops := make([]value.UseRef, 0, len(incoming)*2)
	for i, inc := range incoming {
		ops = append(ops,
			b.M.SetOperand(value.Owner{Kind: value.OwnerInst, Inst: ref}, value.UseKind{Role: value.RolePhiIncomingValue, Index: i}, inc.Value),
			b.M.SetOperand(value.Owner{Kind: value.OwnerInst, Inst: ref}, value.UseKind{Role: value.RolePhiIncomingBlock, Index: i}, value.Block{Ref: inc.Block}),
		)
	}
	inst.Operands = ops
	b.M.Insts.Set(ref.Ref, inst)

	iac := b.instAccessors()
	blk.Insts.InsertBefore(iac, ref.Ref, blk.PhiEnd.Ref)
	b.M.Blocks.Set(b.curBlock.Ref, blk)

	return ref, nil
}

// PhiIncoming is one (value, predecessor block) pair of a Phi.
type PhiIncoming struct {
	Value value.Value
	Block value.BlockRef
}
