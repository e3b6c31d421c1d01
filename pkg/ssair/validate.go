package ssair

import (
	"fmt"
	"sort"

	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// intArithOps/floatArithOps classify the BinOp family by the operand class
// spec.md §4.3 requires: the bitwise/integer-arithmetic opcodes operate on
// KindInt, the F-prefixed ones on KindFloat.
var intArithOps = map[Opcode]bool{
	OpAdd: true, OpSub: true, OpMul: true, OpSdiv: true, OpUdiv: true,
	OpSrem: true, OpUrem: true, OpShl: true, OpLshr: true, OpAshr: true,
	OpBitAnd: true, OpBitOr: true, OpBitXor: true,
}

var floatArithOps = map[Opcode]bool{
	OpFAdd: true, OpFSub: true, OpFMul: true, OpFDiv: true,
}

// divRemOps are the BinOp opcodes whose rhs is a divisor a constant zero
// makes undefined.
var divRemOps = map[Opcode]bool{
	OpSdiv: true, OpUdiv: true, OpSrem: true, OpUrem: true,
}

var castOps = map[Opcode]bool{
	OpZext: true, OpSext: true, OpTrunc: true, OpFpext: true, OpFptrunc: true,
	OpBitcast: true, OpPtrToInt: true, OpIntToPtr: true, OpSitofp: true,
	OpUitofp: true, OpFptosi: true, OpFptoui: true,
}

// Validate runs the structural checks spec.md §8 calls basic_check: entry
// block placement, terminator uniqueness, phi-section layout, and operand
// type/arity agreement. Dominance (every operand's definition must
// dominate its use) is a separate, heavier check — pkg/domtree's
// AssertModuleDominance — kept out of this package so ssair never has to
// import its own downstream analysis.
func (m *Module) Validate() []error {
	var errs []error
	m.ForallFuncs(true, func(_ value.GlobalRef, fg FuncGlobal) {
		if !fg.Func.Ref.Valid() {
			return
		}
		fn, ok := m.Funcs.Get(fg.Func.Ref)
		if !ok {
			return
		}
		errs = append(errs, m.validateFunc(fg.Name, fn)...)
	})
	return errs
}

func (m *Module) validateFunc(name string, fn Function) []error {
	var errs []error
	bac := BlockAccessors(m.Blocks)
	entry := fn.Blocks.Head()
	first := true
	for br := fn.Blocks.Head(); br != arena.Nil; br = fn.Blocks.Next(bac, br) {
		blk, ok := m.Blocks.Get(br)
		if !ok {
			continue
		}
		if first && br != entry {
			errs = append(errs, &ssaerr.EntryNotInFront{Func: ssaerr.StringerString(name)})
		}
		first = false
		errs = append(errs, m.validateBlock(blk)...)
	}
	return errs
}

func (m *Module) validateBlock(blk Block) []error {
	var errs []error
	iac := InstAccessors(m.Insts)

	inPhiSection := true
	sawTerminator := false

	for ir := blk.Insts.Head(); ir != arena.Nil; ir = blk.Insts.Next(iac, ir) {
		inst, ok := m.Insts.Get(ir)
		if !ok {
			continue
		}

		if sawTerminator {
			errs = append(errs, &ssaerr.MultipleTerminator{Inst: ssaerr.StringerString(inst.Opcode.String())})
		}

		switch {
		case inst.Opcode == OpPhiInstEnd:
			inPhiSection = false
		case inst.Opcode.IsPhi():
			if !inPhiSection {
				errs = append(errs, &ssaerr.PhiNotInHead{Phi: ssaerr.StringerString(inst.Opcode.String())})
			}
		default:
			if inPhiSection && inst.Opcode != OpPhiInstEnd {
				errs = append(errs, &ssaerr.DirtyPhiSection{Inst: ssaerr.StringerString(inst.Opcode.String())})
			}
		}

		if inst.Opcode.IsTerminator() {
			sawTerminator = true
		}

		errs = append(errs, m.validateInst(inst)...)
	}

	return errs
}

func (m *Module) validateInst(inst Inst) []error {
	var errs []error
	for _, ur := range inst.Operands {
		u, ok := m.Uses.Get(ur.Ref)
		if !ok {
			continue
		}
		if _, isNone := u.Operand.(value.None); isNone {
			errs = append(errs, &ssaerr.OperandPosNone{
				Inst: ssaerr.StringerString(inst.Opcode.String()),
				Kind: roleName(u.Kind.Role),
			})
		}
	}

	switch {
	case intArithOps[inst.Opcode]:
		errs = append(errs, m.checkBinOp(inst, types.KindInt)...)
	case floatArithOps[inst.Opcode]:
		errs = append(errs, m.checkBinOp(inst, types.KindFloat)...)
	case castOps[inst.Opcode]:
		errs = append(errs, m.checkCast(inst)...)
	case inst.Opcode == OpIcmp || inst.Opcode == OpFcmp:
		errs = append(errs, m.checkCmp(inst)...)
	case inst.Opcode.IsPhi():
		errs = append(errs, m.checkPhiIncoming(inst)...)
	}
	if divRemOps[inst.Opcode] {
		errs = append(errs, m.checkZeroDivisor(inst)...)
	}

	switch p := inst.Payload.(type) {
	case CallPayload:
		if p.CalleeType.Kind() == 0 { // types.KindVoid zero value: untyped callee, nothing to check
			break
		}
		want := len(p.CalleeType.FuncArgs(m.Types))
		got := len(inst.Operands) - 1 // operand 0 is the callee
		if p.CalleeType.FuncIsVararg(m.Types) {
			if got < want {
				errs = append(errs, &ssaerr.CallArgCountUnmatch{
					Inst: ssaerr.StringerString("call"), Want: want, Got: got,
				})
			}
		} else if got != want {
			errs = append(errs, &ssaerr.CallArgCountUnmatch{
				Inst: ssaerr.StringerString("call"), Want: want, Got: got,
			})
		}
	case SwitchPayload:
		seen := map[int64]bool{}
		for _, c := range p.Cases {
			if seen[c.Value] {
				errs = append(errs, &ssaerr.DuplicatedSwitchCase{
					Inst:       ssaerr.StringerString("switch"),
					JumpTarget: ssaerr.StringerString("case"),
				})
			}
			seen[c.Value] = true
		}
	}

	return errs
}

// operandValue resolves inst's i'th operand to the Value it holds, or false
// if the slot is out of range or its Use has already been torn down.
func (m *Module) operandValue(inst Inst, i int) (value.Value, bool) {
	if i < 0 || i >= len(inst.Operands) {
		return nil, false
	}
	u, ok := m.Uses.Get(inst.Operands[i].Ref)
	if !ok {
		return nil, false
	}
	return u.Operand, true
}

// valueType resolves v's static type, where that is knowable without a
// full dataflow pass: every Value kind except None and Block carries or
// leads straight to a types.ID.
func (m *Module) valueType(v value.Value) (types.ID, bool) {
	switch vv := v.(type) {
	case value.ConstData:
		return vv.Type, true
	case value.AggrZero:
		return vv.Type, true
	case value.ConstExpr:
		e, ok := m.Exprs.Get(vv.Expr.Ref)
		if !ok {
			return types.Void, false
		}
		return e.Type, true
	case value.Global:
		return types.Ptr, true
	case value.FuncArg:
		fn, ok := m.Funcs.Get(vv.Func.Ref)
		if !ok || int(vv.Index) >= len(fn.ArgTypes) {
			return types.Void, false
		}
		return fn.ArgTypes[vv.Index], true
	case value.Inst:
		inst, ok := m.Insts.Get(vv.Ref.Ref)
		if !ok {
			return types.Void, false
		}
		return inst.ResultType, true
	}
	return types.Void, false
}

// typeStringer adapts a types.ID to fmt.Stringer for ssaerr's error
// structs, reusing the printer's own type-name rendering so a validation
// error reads the same notation the IR is written in.
func (m *Module) typeStringer(t types.ID) fmt.Stringer {
	return ssaerr.StringerString((&printer{m: m}).typeName(t))
}

// checkBinOp enforces spec.md §4.3's arithmetic rule: both operands and the
// result share one type, and that type belongs to wantClass (KindInt for
// the bitwise/integer family, KindFloat for the F-prefixed family).
func (m *Module) checkBinOp(inst Inst, wantClass types.Kind) []error {
	var errs []error
	roles := [2]value.Role{value.RoleBinOpLhs, value.RoleBinOpRhs}
	for i, role := range roles {
		v, ok := m.operandValue(inst, i)
		if !ok {
			continue
		}
		t, ok := m.valueType(v)
		if !ok {
			continue
		}
		if t.Kind() != wantClass {
			errs = append(errs, &ssaerr.TypeNotClass{Type: m.typeStringer(t), Class: wantClass.String()})
			continue
		}
		if t != inst.ResultType {
			errs = append(errs, &ssaerr.OpTypeMismatch{
				Inst: ssaerr.StringerString(inst.Opcode.String()),
				Kind: roleName(role),
				Want: m.typeStringer(inst.ResultType),
				Got:  m.typeStringer(t),
			})
		}
	}
	return errs
}

// checkCast enforces each cast opcode's source/destination class and, for
// the same-class widening/narrowing casts, the width direction spec.md
// §4.3 names: Zext/Sext require a strictly wider destination, Trunc a
// strictly narrower one, Fpext/Fptrunc the float analogue, Bitcast an
// equal-size reinterpretation across classes.
func (m *Module) checkCast(inst Inst) []error {
	src, ok := m.operandValue(inst, 0)
	if !ok {
		return nil
	}
	from, ok := m.valueType(src)
	if !ok {
		return nil
	}
	to := inst.ResultType
	op := inst.Opcode.String()

	classErr := func(t types.ID, class string) error {
		return &ssaerr.TypeNotClass{Type: m.typeStringer(t), Class: class}
	}
	unmatch := func() error {
		return &ssaerr.CastUnmatch{Inst: ssaerr.StringerString(op), Op: op, From: m.typeStringer(from), To: m.typeStringer(to)}
	}

	switch inst.Opcode {
	case OpZext, OpSext:
		if from.Kind() != types.KindInt {
			return []error{classErr(from, "int")}
		}
		if to.Kind() != types.KindInt {
			return []error{classErr(to, "int")}
		}
		if to.IntBits() <= from.IntBits() {
			return []error{unmatch()}
		}
	case OpTrunc:
		if from.Kind() != types.KindInt {
			return []error{classErr(from, "int")}
		}
		if to.Kind() != types.KindInt {
			return []error{classErr(to, "int")}
		}
		if to.IntBits() >= from.IntBits() {
			return []error{unmatch()}
		}
	case OpFpext:
		if from.Kind() != types.KindFloat {
			return []error{classErr(from, "float")}
		}
		if to.Kind() != types.KindFloat {
			return []error{classErr(to, "float")}
		}
		if !(from.FloatKind() == types.IEEE32 && to.FloatKind() == types.IEEE64) {
			return []error{unmatch()}
		}
	case OpFptrunc:
		if from.Kind() != types.KindFloat {
			return []error{classErr(from, "float")}
		}
		if to.Kind() != types.KindFloat {
			return []error{classErr(to, "float")}
		}
		if !(from.FloatKind() == types.IEEE64 && to.FloatKind() == types.IEEE32) {
			return []error{unmatch()}
		}
	case OpBitcast:
		fromSize, errF := m.Types.SizeOf(from)
		toSize, errT := m.Types.SizeOf(to)
		if errF == nil && errT == nil && fromSize != toSize {
			return []error{unmatch()}
		}
	case OpPtrToInt:
		if from.Kind() != types.KindPtr {
			return []error{classErr(from, "ptr")}
		}
		if to.Kind() != types.KindInt {
			return []error{classErr(to, "int")}
		}
	case OpIntToPtr:
		if from.Kind() != types.KindInt {
			return []error{classErr(from, "int")}
		}
		if to.Kind() != types.KindPtr {
			return []error{classErr(to, "ptr")}
		}
	case OpSitofp, OpUitofp:
		if from.Kind() != types.KindInt {
			return []error{classErr(from, "int")}
		}
		if to.Kind() != types.KindFloat {
			return []error{classErr(to, "float")}
		}
	case OpFptosi, OpFptoui:
		if from.Kind() != types.KindFloat {
			return []error{classErr(from, "float")}
		}
		if to.Kind() != types.KindInt {
			return []error{classErr(to, "int")}
		}
	}
	return nil
}

// checkCmp enforces Icmp/Fcmp's result type (always i1) and operand
// agreement (both int-class for Icmp, both float-class for Fcmp, and
// identical to each other).
func (m *Module) checkCmp(inst Inst) []error {
	var errs []error
	if inst.ResultType != types.Int(1) {
		errs = append(errs, &ssaerr.CmpOpcodeErr{
			Inst: ssaerr.StringerString(inst.Opcode.String()),
			Op:   inst.Opcode.String(),
			Type: m.typeStringer(inst.ResultType),
		})
	}

	wantClass, className := types.KindInt, "int"
	if inst.Opcode == OpFcmp {
		wantClass, className = types.KindFloat, "float"
	}

	var lhs types.ID
	haveLhs := false
	roles := [2]value.Role{value.RoleCmpLhs, value.RoleCmpRhs}
	for i, role := range roles {
		v, ok := m.operandValue(inst, i)
		if !ok {
			continue
		}
		t, ok := m.valueType(v)
		if !ok {
			continue
		}
		if t.Kind() != wantClass {
			errs = append(errs, &ssaerr.TypeNotClass{Type: m.typeStringer(t), Class: className})
			continue
		}
		if i == 0 {
			lhs, haveLhs = t, true
			continue
		}
		if haveLhs && t != lhs {
			errs = append(errs, &ssaerr.OpTypeMismatch{
				Inst: ssaerr.StringerString(inst.Opcode.String()),
				Kind: roleName(role),
				Want: m.typeStringer(lhs),
				Got:  m.typeStringer(t),
			})
		}
	}
	return errs
}

// checkZeroDivisor rejects a Sdiv/Udiv/Srem/Urem whose rhs is a constant
// zero, per spec.md §4.3's "division by a constant zero is invalid" rule.
func (m *Module) checkZeroDivisor(inst Inst) []error {
	v, ok := m.operandValue(inst, 1)
	if !ok {
		return nil
	}
	cd, ok := v.(value.ConstData)
	if !ok || cd.Kind != value.ConstInt || cd.Int == nil || cd.Int.Sign() != 0 {
		return nil
	}
	return []error{&ssaerr.InvalidZeroOp{
		Value: ssaerr.StringerString(cd.Int.String()),
		Op:    inst.Opcode.String(),
		Kind:  "divisor",
	}}
}

// checkPhiIncoming enforces spec.md §8's property that a Phi's set of
// incoming blocks equals its block's actual predecessor set, read off the
// terminators recorded in Block.Preds rather than trusted from the Phi
// itself.
func (m *Module) checkPhiIncoming(inst Inst) []error {
	actual := map[value.BlockRef]bool{}
	if blk, ok := m.Blocks.Get(inst.Parent.Ref); ok {
		jac := JumpTargetAccessors(m.JumpTargets)
		for jr := blk.Preds.Head(); jr != arena.Nil; jr = blk.Preds.Next(jac, jr) {
			jt, ok := m.JumpTargets.Get(jr)
			if !ok {
				continue
			}
			predInst, ok := m.Insts.Get(jt.From.Ref)
			if !ok {
				continue
			}
			actual[predInst.Parent] = true
		}
	}

	incoming := map[value.BlockRef]bool{}
	for i := 1; i < len(inst.Operands); i += 2 {
		v, ok := m.operandValue(inst, i)
		if !ok {
			continue
		}
		if bv, ok := v.(value.Block); ok {
			incoming[bv.Ref] = true
		}
	}

	if blockSetsEqual(actual, incoming) {
		return nil
	}
	return []error{&ssaerr.PhiIncomeSetUnmatch{
		Inst:     ssaerr.StringerString(inst.Opcode.String()),
		Expected: m.blockLabels(actual),
		Got:      m.blockLabels(incoming),
	}}
}

func blockSetsEqual(a, b map[value.BlockRef]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func (m *Module) blockLabels(set map[value.BlockRef]bool) []string {
	names := make([]string, 0, len(set))
	for r := range set {
		blk, ok := m.Blocks.Get(r.Ref)
		if !ok {
			continue
		}
		name := blk.Name
		if name == "" {
			name = fmt.Sprintf("bb@%d", r.Ref.Index())
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func roleName(r value.Role) string {
	switch r {
	case value.RoleBinOpLhs:
		return "lhs"
	case value.RoleBinOpRhs:
		return "rhs"
	case value.RoleCastSrc:
		return "cast-src"
	case value.RoleCmpLhs:
		return "cmp-lhs"
	case value.RoleCmpRhs:
		return "cmp-rhs"
	case value.RoleLoadPtr:
		return "load-ptr"
	case value.RoleStoreVal:
		return "store-val"
	case value.RoleStoreTarget:
		return "store-target"
	case value.RoleGepBase:
		return "gep-base"
	case value.RoleGepIndex:
		return "gep-index"
	case value.RoleSelectCond:
		return "select-cond"
	case value.RoleSelectTrue:
		return "select-true"
	case value.RoleSelectFalse:
		return "select-false"
	case value.RolePhiIncomingValue:
		return "phi-value"
	case value.RolePhiIncomingBlock:
		return "phi-block"
	case value.RoleCallCallee:
		return "call-callee"
	case value.RoleCallArg:
		return "call-arg"
	case value.RoleRetVal:
		return "ret-val"
	case value.RoleAmoPtr:
		return "amo-ptr"
	case value.RoleAmoVal:
		return "amo-val"
	case value.RoleSwitchVal:
		return "switch-val"
	case value.RoleAggrBase:
		return "aggr-base"
	case value.RoleAggrInsertedVal:
		return "aggr-inserted"
	case value.RoleJumpTargetDest:
		return "jump-target"
	}
	return "unknown"
}
