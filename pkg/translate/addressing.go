package translate

import (
	"github.com/ssair-lang/ssair/pkg/mir"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// gepPlan is the result of walking a Gep's base type against its index
// list: a base operand, a set of (index, stride) terms for indices that
// aren't compile-time constants, and a folded constant offset — the
// input MirGEP lowering needs directly (spec step 4's "base + Σ(index_i ×
// stride_i)"). Grounded on the teacher's SelectAddressing (pkg/selection/
// addressing.go), generalized from its fixed Aindexed2/Aindexed pattern
// set to an arbitrary LLVM-GEP-style index chain.
type gepPlan struct {
	terms  []mir.GepTerm
	offset int64
}

// planGep walks baseType against indices, descending into struct fields
// (which must be constant-indexed) and array elements, folding every
// constant index into offset and leaving only dynamic indices as terms.
func planGep(tc *types.Context, baseType types.ID, indices []value.Value, resolve func(value.Value) mir.Operand) gepPlan {
	var plan gepPlan
	cur := baseType
	for i, idx := range indices {
		if i == 0 {
			// The first index is pointer arithmetic over the base type
			// itself (LLVM GEP semantics), not a descent into it.
			stride, _ := tc.SizeOf(cur)
			addTerm(&plan, idx, stride, resolve)
			continue
		}
		switch cur.Kind() {
		case types.KindStruct, types.KindStructAlias:
			fieldIdx, ok := constIndex(idx)
			if !ok {
				// A struct field index must be constant; an IR producer
				// violating that is a malformed module this translator
				// doesn't validate against (pkg/ssair's own checker does).
				continue
			}
			fields := resolvedStructFields(tc, cur)
			if int(fieldIdx) >= len(fields) {
				continue
			}
			plan.offset += fields[fieldIdx].Offset
			cur = fields[fieldIdx].Type
		case types.KindArray:
			elem := cur.ArrayElem(tc)
			stride, _ := tc.SizeOf(elem)
			addTerm(&plan, idx, stride, resolve)
			cur = elem
		default:
			stride, _ := tc.SizeOf(cur)
			addTerm(&plan, idx, stride, resolve)
		}
	}
	return plan
}

func resolvedStructFields(tc *types.Context, t types.ID) []types.Field {
	if t.Kind() == types.KindStructAlias {
		t = t.AliasTarget(tc)
	}
	return t.StructFields(tc)
}

func addTerm(plan *gepPlan, idx value.Value, stride int64, resolve func(value.Value) mir.Operand) {
	if c, ok := constIndex(idx); ok {
		plan.offset += c * stride
		return
	}
	plan.terms = append(plan.terms, mir.GepTerm{Index: resolve(idx), Stride: stride})
}

func constIndex(v value.Value) (int64, bool) {
	cd, ok := v.(value.ConstData)
	if !ok || cd.Kind != value.ConstInt || cd.Int == nil {
		return 0, false
	}
	return cd.Int.Int64(), true
}

// isAddressOnlyUse reports whether every use of ir's result resolves its
// own addressing directly (a load/store pointer operand, or another Gep's
// base) rather than materializing the address as an ordinary value. A Gep
// or Alloca satisfying this needs no real register: stacking.go's
// rewriteStackPositions folds it straight into the consuming instruction's
// offset, per the design recorded in pkg/stacking's DESIGN.md entry.
func isAddressOnlyUse(m *ssair.Module, ir value.InstRef) bool {
	inst, ok := m.Insts.Get(ir.Ref)
	if !ok {
		return false
	}
	ac := value.Accessors(m.Uses)
	allAddress := true
	inst.Users.Walk(ac, func(ur value.UseRef) bool {
		u, ok := m.Uses.Get(ur.Ref)
		if !ok {
			return true
		}
		switch u.Kind.Role {
		case value.RoleLoadPtr, value.RoleStoreTarget, value.RoleGepBase:
		default:
			allAddress = false
			return false
		}
		return true
	})
	return allAddress
}
