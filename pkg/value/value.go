// Package value implements the Value Graph: the closed ValueSSA union and
// the use-def edge types (Use, UserList) that thread it together. Ref
// types are thin, arena.Ref-backed handles tagged by node kind so that an
// InstRef can never be silently passed where a BlockRef is expected — the
// same discipline the teacher applies with distinct rtl.Node/rtl.Reg int
// types, generalized here to wrap arena.Ref instead of plain int.
package value

import (
	"math/big"

	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/types"
)

// --- Tagged handles ---

type InstRef struct{ arena.Ref }
type BlockRef struct{ arena.Ref }
type ExprRef struct{ arena.Ref }
type GlobalRef struct{ arena.Ref }
type FuncRef struct{ arena.Ref }
type UseRef struct{ arena.Ref }
type JumpTargetRef struct{ arena.Ref }

// --- ValueSSA closed union (spec.md §3) ---

// Value is the closed ValueSSA union. Every concrete variant below
// implements it via a marker method, following the teacher's
// Operation/Instruction interface-per-variant idiom (pkg/rtl/ast.go).
type Value interface {
	implValue()
}

// None represents absence of a value (e.g. a cleared operand slot).
type None struct{}

func (None) implValue() {}

// ConstKind distinguishes the inline-valued constant forms.
type ConstKind int

const (
	ConstUndef ConstKind = iota
	ConstZero
	ConstNullPtr
	ConstInt
	ConstFloat
)

// ConstData is an inline-valued constant: undef, zero, null-pointer, a
// fixed-width integer up to 128 bits (stored as big.Int to accommodate the
// full width), or an IEEE-32/64 float.
type ConstData struct {
	Kind  ConstKind
	Type  types.ID
	Int   *big.Int // valid when Kind == ConstInt
	Float float64  // valid when Kind == ConstFloat (for f32, truncate on use)
}

func (ConstData) implValue() {}

// ConstExpr refers to an aggregate constant (array/struct/vector/splat/
// sparse key-value array) living in the module's expr arena. Per spec
// §4.2, multiple distinct ConstExpr values may exist for the same
// structural content until compress_const_exprs runs.
type ConstExpr struct {
	Expr ExprRef
}

func (ConstExpr) implValue() {}

// AggrZero is a zero-initialised aggregate stored without materialised
// elements, to avoid quadratic memory for large zero-init arrays/structs.
type AggrZero struct {
	Type types.ID
}

func (AggrZero) implValue() {}

// Global refers to a function, variable, or alias in the module's symbol
// table.
type Global struct {
	Ref GlobalRef
}

func (Global) implValue() {}

// FuncArg identifies the Index'th argument of Func; argument identity is
// per-function, not per-call.
type FuncArg struct {
	Func  FuncRef
	Index uint32
}

func (FuncArg) implValue() {}

// Block is a jump-target identity: the value a Phi incoming-block slot, or
// a blockaddress-style reference, refers to.
type Block struct {
	Ref BlockRef
}

func (Block) implValue() {}

// Inst is the SSA definition produced by an instruction with a result.
type Inst struct {
	Ref InstRef
}

func (Inst) implValue() {}

// IsZero reports whether v is a zero value under the ValueSSA predicate in
// spec.md §3's invariant list: ConstZero, AggrZero, a ConstInt of 0, a
// ConstFloat of 0.0, or a ConstExpr whose every leaf is zero (that last
// case needs module context and is implemented in pkg/ssair as
// Module.IsZeroValue, since it must recurse into expr arena contents).
func IsZero(v Value) bool {
	switch c := v.(type) {
	case ConstData:
		switch c.Kind {
		case ConstZero, ConstNullPtr:
			return true
		case ConstInt:
			return c.Int != nil && c.Int.Sign() == 0
		case ConstFloat:
			return c.Float == 0
		}
		return false
	case AggrZero:
		return true
	}
	return false
}

// --- Use-def edges (spec.md §3/§4.2) ---

// Role enumerates the positional operand roles a Use can occupy. Index-
// parameterized roles (CallArg, PhiIncomingValue, PhiIncomingBlock) carry
// their index in Use.Index rather than as distinct Role values, per
// spec.md's "CallArg(i)" notation.
type Role int

const (
	RoleUnknown Role = iota
	RoleBinOpLhs
	RoleBinOpRhs
	RoleCastSrc
	RoleCmpLhs
	RoleCmpRhs
	RoleLoadPtr
	RoleStoreVal
	RoleStoreTarget
	RoleGepBase
	RoleGepIndex
	RoleSelectCond
	RoleSelectTrue
	RoleSelectFalse
	RolePhiIncomingValue
	RolePhiIncomingBlock
	RoleCallCallee
	RoleCallArg
	RoleRetVal
	RoleAmoPtr
	RoleAmoVal
	RoleSwitchVal
	RoleAggrBase
	RoleAggrInsertedVal
	RoleJumpTargetDest
)

// UseKind is the (Role, Index) pair identifying a use's positional role.
type UseKind struct {
	Role  Role
	Index int
}

// OwnerKind tags which arena Use.Owner's payload lives in.
type OwnerKind int

const (
	OwnerNone OwnerKind = iota
	OwnerInst
	OwnerExpr
	OwnerGlobal
	OwnerJumpTarget
)

// Owner is the back-pointer from a Use to whatever holds it.
type Owner struct {
	Kind   OwnerKind
	Inst   InstRef
	Expr   ExprRef
	Global GlobalRef
	Jump   JumpTargetRef
}

// Use is a reference-counted-by-list-membership record: it is linked into
// the using-list anchored at Operand's producer via the embedded
// arena.ListNode, carries its positional Kind, a back-pointer to its
// Owner, and the live operand Value.
type Use struct {
	link    arena.ListNode
	Kind    UseKind
	Owner   Owner
	Operand Value
}

// Accessors returns the arena.Accessors binding needed to manipulate
// UserList instances of Use records stored in uses.
func Accessors(uses *arena.Arena[Use]) arena.Accessors[Use] {
	return arena.Accessors[Use]{
		Arena: uses,
		Get:   func(u Use) arena.ListNode { return u.link },
		Set:   func(u Use, ln arena.ListNode) Use { u.link = ln; return u },
	}
}

// UserList is the intrusive list of Uses referencing one producer value.
// It is embedded in whatever pkg/ssair struct models that producer
// (Inst, Global, FuncArg-bearing Function, Block) and manipulated through
// Accessors bound to the owning Module's use arena.
type UserList struct {
	list arena.List[Use]
}

// Len returns the number of uses currently in the list.
func (ul *UserList) Len() int { return ul.list.Len() }

// PushBack appends u (already allocated in the arena backing ac) to the
// list.
func (ul *UserList) PushBack(ac arena.Accessors[Use], u UseRef) {
	ul.list.PushBack(ac, u.Ref)
}

// Remove detaches u from the list.
func (ul *UserList) Remove(ac arena.Accessors[Use], u UseRef) {
	ul.list.Remove(ac, u.Ref)
}

// Walk calls f for every UseRef in the list, head to tail.
func (ul *UserList) Walk(ac arena.Accessors[Use], f func(UseRef) bool) {
	ul.list.Walk(ac, func(r arena.Ref) bool { return f(UseRef{r}) })
}

// HasMultipleUsers reports whether more than one distinct *instruction*
// uses the value anchoring ul — a single instruction using a value twice
// (e.g. add %x, %x) counts once, per spec.md §4.2.
func HasMultipleUsers(uses *arena.Arena[Use], ul *UserList) bool {
	ac := Accessors(uses)
	seen := map[InstRef]bool{}
	seenOther := false
	distinct := false
	ul.Walk(ac, func(ur UseRef) bool {
		u, ok := uses.Get(ur.Ref)
		if !ok {
			return true
		}
		if u.Owner.Kind == OwnerInst {
			if !seen[u.Owner.Inst] {
				seen[u.Owner.Inst] = true
			}
		} else {
			seenOther = true
		}
		if len(seen) > 1 || (len(seen) == 1 && seenOther) {
			distinct = true
			return false
		}
		return true
	})
	return distinct
}
