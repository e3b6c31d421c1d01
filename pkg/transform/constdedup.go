package transform

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// CompressConstExprs structurally deduplicates the module's constant
// expressions: distinct ExprRefs that build the same array/struct/vector/
// splat/sparse content (possibly recursively, through nested ConstExprs)
// are collapsed to a single representative, and every reference to a
// non-representative expr is rewritten to point at it instead. A final
// Sweep then reclaims the now-unreferenced exprs.
func CompressConstExprs(m *ssair.Module) {
	hashes := computeExprHashes(m)

	buckets := map[uint64][]arena.Ref{}
	m.Exprs.Each(func(r arena.Ref, _ ssair.Expr) {
		buckets[hashes[r]] = append(buckets[hashes[r]], r)
	})

	rep := map[arena.Ref]arena.Ref{}
	for _, refs := range buckets {
		sort.Slice(refs, func(i, j int) bool { return refs[i].Index() < refs[j].Index() })
		assigned := make([]bool, len(refs))
		for i, ri := range refs {
			if assigned[i] {
				continue
			}
			for j := i + 1; j < len(refs); j++ {
				if assigned[j] {
					continue
				}
				if exprsEqual(m, ri, refs[j]) {
					rep[refs[j]] = ri
					assigned[j] = true
				}
			}
		}
	}
	if len(rep) == 0 {
		return
	}

	resolve := func(r arena.Ref) arena.Ref {
		for {
			next, ok := rep[r]
			if !ok {
				return r
			}
			r = next
		}
	}

	rewriteOperands(m, rep, resolve)
	rewriteGlobalInits(m, rep, resolve)
	rewriteExprFields(m, rep, resolve)
}

// computeExprHashes returns a memoized structural hash for every live expr,
// recursing into nested ConstExprs through hashValue.
func computeExprHashes(m *ssair.Module) map[arena.Ref]uint64 {
	hashes := map[arena.Ref]uint64{}

	var hashOf func(r arena.Ref) uint64
	var hashValue func(v value.Value) uint64

	hashOf = func(r arena.Ref) uint64 {
		if hv, ok := hashes[r]; ok {
			return hv
		}
		hashes[r] = 0 // breaks any accidental cycle before it recurses further
		e, ok := m.Exprs.Get(r)
		if !ok {
			return 0
		}
		hv := e.StructHash(func(vs ...interface{}) uint64 { return hashParts(hashValue, vs) })
		hashes[r] = hv
		return hv
	}

	hashValue = func(v value.Value) uint64 {
		if ce, ok := v.(value.ConstExpr); ok {
			return hashOf(ce.Expr.Ref)
		}
		return hashLeaf(v)
	}

	m.Exprs.Each(func(r arena.Ref, _ ssair.Expr) {
		hashOf(r)
	})
	return hashes
}

func hashParts(hashValue func(value.Value) uint64, parts []interface{}) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	putUint64 := func(n uint64) {
		for i := 0; i < 8; i++ {
			buf[i] = byte(n >> (8 * i))
		}
		h.Write(buf[:])
	}
	for _, p := range parts {
		switch pv := p.(type) {
		case value.Value:
			putUint64(hashValue(pv))
		case int:
			putUint64(uint64(pv))
		case int64:
			putUint64(uint64(pv))
		case string:
			h.Write([]byte(pv))
		default:
			fmt.Fprintf(h, "%v", pv)
		}
	}
	return h.Sum64()
}

func hashLeaf(v value.Value) uint64 {
	h := fnv.New64a()
	switch vv := v.(type) {
	case value.ConstData:
		fmt.Fprintf(h, "cd|%d|%d", vv.Kind, vv.Type.RawIndex())
		if vv.Int != nil {
			fmt.Fprintf(h, "|%s", vv.Int.String())
		}
		fmt.Fprintf(h, "|%v", vv.Float)
	case value.AggrZero:
		fmt.Fprintf(h, "az|%d", vv.Type.RawIndex())
	case value.Global:
		fmt.Fprintf(h, "g|%d", vv.Ref.Index())
	case value.Inst:
		fmt.Fprintf(h, "i|%d", vv.Ref.Index())
	case value.Block:
		fmt.Fprintf(h, "b|%d", vv.Ref.Index())
	case value.FuncArg:
		fmt.Fprintf(h, "a|%d|%d", vv.Func.Index(), vv.Index)
	case value.None:
		fmt.Fprint(h, "none")
	default:
		fmt.Fprint(h, "?")
	}
	return h.Sum64()
}

// exprsEqual reports whether the two exprs have identical structural
// content: same kind, same type, and pairwise-equal operands (recursing
// into nested ConstExprs).
func exprsEqual(m *ssair.Module, ra, rb arena.Ref) bool {
	if ra == rb {
		return true
	}
	ea, ok := m.Exprs.Get(ra)
	if !ok {
		return false
	}
	eb, ok := m.Exprs.Get(rb)
	if !ok {
		return false
	}
	if ea.Kind != eb.Kind || ea.Type != eb.Type {
		return false
	}
	switch ea.Kind {
	case ssair.ExprSplat:
		return ea.Len == eb.Len && valuesEqual(m, ea.Splat, eb.Splat)
	case ssair.ExprSparse:
		if ea.Len != eb.Len || len(ea.Sparse) != len(eb.Sparse) {
			return false
		}
		for i := range ea.Sparse {
			if ea.Sparse[i].Index != eb.Sparse[i].Index || !valuesEqual(m, ea.Sparse[i].Value, eb.Sparse[i].Value) {
				return false
			}
		}
		return true
	default:
		if len(ea.Elems) != len(eb.Elems) {
			return false
		}
		for i := range ea.Elems {
			if !valuesEqual(m, ea.Elems[i], eb.Elems[i]) {
				return false
			}
		}
		return true
	}
}

// valuesEqual compares two ValueSSA leaves/expr-references for equality,
// with the spec's special case that an AggrZero(T) equals any ConstExpr of
// type T whose every leaf is zero.
func valuesEqual(m *ssair.Module, a, b value.Value) bool {
	if ace, ok := a.(value.ConstExpr); ok {
		if bce, ok := b.(value.ConstExpr); ok {
			return exprsEqual(m, ace.Expr.Ref, bce.Expr.Ref)
		}
		if az, ok := b.(value.AggrZero); ok {
			return exprIsAllZeroOfType(m, ace.Expr.Ref, az.Type)
		}
		return false
	}
	if az, ok := a.(value.AggrZero); ok {
		if bce, ok := b.(value.ConstExpr); ok {
			return exprIsAllZeroOfType(m, bce.Expr.Ref, az.Type)
		}
	}
	return leafEqual(a, b)
}

func exprIsAllZeroOfType(m *ssair.Module, r arena.Ref, t types.ID) bool {
	e, ok := m.Exprs.Get(r)
	if !ok || e.Type != t {
		return false
	}
	return m.IsZeroValue(value.ConstExpr{Expr: value.ExprRef{Ref: r}})
}

func leafEqual(a, b value.Value) bool {
	switch av := a.(type) {
	case value.ConstData:
		bv, ok := b.(value.ConstData)
		if !ok || av.Kind != bv.Kind || av.Type != bv.Type {
			return false
		}
		switch av.Kind {
		case value.ConstInt:
			return av.Int != nil && bv.Int != nil && av.Int.Cmp(bv.Int) == 0
		case value.ConstFloat:
			return av.Float == bv.Float
		default:
			return true
		}
	case value.AggrZero:
		bv, ok := b.(value.AggrZero)
		return ok && av.Type == bv.Type
	case value.Global:
		bv, ok := b.(value.Global)
		return ok && av.Ref == bv.Ref
	case value.Inst:
		bv, ok := b.(value.Inst)
		return ok && av.Ref == bv.Ref
	case value.Block:
		bv, ok := b.(value.Block)
		return ok && av.Ref == bv.Ref
	case value.FuncArg:
		bv, ok := b.(value.FuncArg)
		return ok && av.Func == bv.Func && av.Index == bv.Index
	case value.None:
		_, ok := b.(value.None)
		return ok
	}
	return false
}

// rewriteOperands redirects every Use-tracked instruction/terminator/phi
// operand referencing a non-representative ConstExpr to its representative.
func rewriteOperands(m *ssair.Module, rep map[arena.Ref]arena.Ref, resolve func(arena.Ref) arena.Ref) {
	var stale []value.UseRef
	m.Uses.Each(func(r arena.Ref, u value.Use) {
		if ce, ok := u.Operand.(value.ConstExpr); ok {
			if _, dup := rep[ce.Expr.Ref]; dup {
				stale = append(stale, value.UseRef{Ref: r})
			}
		}
	})
	for _, ur := range stale {
		u, ok := m.Uses.Get(ur.Ref)
		if !ok {
			continue
		}
		ce, ok := u.Operand.(value.ConstExpr)
		if !ok {
			continue
		}
		m.RetargetOperand(ur, value.ConstExpr{Expr: value.ExprRef{Ref: resolve(ce.Expr.Ref)}})
	}
}

// rewriteGlobalInits redirects VarGlobal.Init fields, which are plain
// fields rather than Use-tracked operands (global initializers are walked
// directly by gc.go's markGlobal, not through the Uses arena).
func rewriteGlobalInits(m *ssair.Module, rep map[arena.Ref]arena.Ref, resolve func(arena.Ref) arena.Ref) {
	var stale []value.GlobalRef
	m.Globals.Each(func(r arena.Ref, g ssair.GlobalData) {
		vg, ok := g.(ssair.VarGlobal)
		if !ok {
			return
		}
		if ce, ok := vg.Init.(value.ConstExpr); ok {
			if _, dup := rep[ce.Expr.Ref]; dup {
				stale = append(stale, value.GlobalRef{Ref: r})
			}
		}
	})
	for _, gr := range stale {
		g, ok := m.Globals.Get(gr.Ref)
		if !ok {
			continue
		}
		vg, ok := g.(ssair.VarGlobal)
		if !ok {
			continue
		}
		ce, ok := vg.Init.(value.ConstExpr)
		if !ok {
			continue
		}
		vg.Init = value.ConstExpr{Expr: value.ExprRef{Ref: resolve(ce.Expr.Ref)}}
		m.Globals.Set(gr.Ref, vg)
	}
}

// rewriteExprFields redirects Elems/Splat/Sparse[i].Value fields of other
// exprs referencing a non-representative ConstExpr: these, like global
// initializers, are plain fields rather than Use-tracked operands.
func rewriteExprFields(m *ssair.Module, rep map[arena.Ref]arena.Ref, resolve func(arena.Ref) arena.Ref) {
	refsStale := func(v value.Value) bool {
		ce, ok := v.(value.ConstExpr)
		if !ok {
			return false
		}
		_, dup := rep[ce.Expr.Ref]
		return dup
	}

	var stale []arena.Ref
	m.Exprs.Each(func(r arena.Ref, e ssair.Expr) {
		switch e.Kind {
		case ssair.ExprSplat:
			if refsStale(e.Splat) {
				stale = append(stale, r)
			}
		case ssair.ExprSparse:
			for _, s := range e.Sparse {
				if refsStale(s.Value) {
					stale = append(stale, r)
					break
				}
			}
		default:
			for _, v := range e.Elems {
				if refsStale(v) {
					stale = append(stale, r)
					break
				}
			}
		}
	})

	rewriteValue := func(v value.Value) value.Value {
		if !refsStale(v) {
			return v
		}
		ce := v.(value.ConstExpr)
		return value.ConstExpr{Expr: value.ExprRef{Ref: resolve(ce.Expr.Ref)}}
	}

	for _, r := range stale {
		e, ok := m.Exprs.Get(r)
		if !ok {
			continue
		}
		switch e.Kind {
		case ssair.ExprSplat:
			e.Splat = rewriteValue(e.Splat)
		case ssair.ExprSparse:
			for i := range e.Sparse {
				e.Sparse[i].Value = rewriteValue(e.Sparse[i].Value)
			}
		default:
			for i := range e.Elems {
				e.Elems[i] = rewriteValue(e.Elems[i])
			}
		}
		m.Exprs.Set(r, e)
	}
}
