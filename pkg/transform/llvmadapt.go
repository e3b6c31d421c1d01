package transform

import (
	"fmt"

	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// AdaptForLLVM rewrites every key-value sparse array expr in the module
// into a form the LLVM-text printer can emit directly (zero-initializer,
// splat, or a packed zero/splat struct), per spec.md §6's llvm_compatible
// writer flag. It returns the first UnsupportedSparseDefault encountered,
// leaving the module unmodified in that case.
func AdaptForLLVM(m *ssair.Module) error {
	adapted := map[arena.Ref]value.Value{}
	var adaptErr error
	m.Exprs.Each(func(r arena.Ref, e ssair.Expr) {
		if adaptErr != nil || e.Kind != ssair.ExprSparse {
			return
		}
		v, err := KVArrayAdapt(m, r)
		if err != nil {
			adaptErr = err
			return
		}
		adapted[r] = v
	})
	if adaptErr != nil {
		return adaptErr
	}
	if len(adapted) == 0 {
		return nil
	}

	adaptRewriteOperands(m, adapted)
	adaptRewriteGlobalInits(m, adapted)
	adaptRewriteExprFields(m, adapted)
	m.Sweep()
	return nil
}

// KVArrayAdapt rewrites a sparse key-value array expr into one of the three
// forms llvm-compatible text can print directly: a zero-initializer (no
// entries at all), a splat (the whole backing array, including the
// implicit zero background, reduces to one repeated value), or a packed
// two-field struct pairing a zero-initialized leading run with a splat
// trailing run. Only a uniform trailing run is supported; anything else —
// non-uniform entries, or a uniform run that isn't trailing — returns
// UnsupportedSparseDefault, the documented limitation in spec.md §9.
func KVArrayAdapt(m *ssair.Module, r arena.Ref) (value.Value, error) {
	e, ok := m.Exprs.Get(r)
	if !ok || e.Kind != ssair.ExprSparse {
		return value.ConstExpr{Expr: value.ExprRef{Ref: r}}, nil
	}
	if len(e.Sparse) == 0 {
		return value.AggrZero{Type: e.Type}, nil
	}

	fill := e.Sparse[0].Value
	for _, s := range e.Sparse[1:] {
		if !valuesEqual(m, s.Value, fill) {
			return nil, unsupportedSparse(r)
		}
	}

	start := e.Len - int64(len(e.Sparse))
	if start < 0 {
		return nil, unsupportedSparse(r)
	}
	for i, s := range e.Sparse {
		if s.Index != start+int64(i) {
			return nil, unsupportedSparse(r)
		}
	}

	elemType := e.Type.ArrayElem(m.Types)
	if start == 0 {
		splatRef := m.Exprs.Alloc(ssair.Expr{Kind: ssair.ExprSplat, Type: e.Type, Splat: fill, Len: e.Len})
		return value.ConstExpr{Expr: value.ExprRef{Ref: splatRef}}, nil
	}

	leadType := m.Types.InternArray(elemType, start)
	trailType := m.Types.InternArray(elemType, int64(len(e.Sparse)))
	packedType := m.Types.InternStruct([]types.ID{leadType, trailType}, true)

	trailRef := m.Exprs.Alloc(ssair.Expr{Kind: ssair.ExprSplat, Type: trailType, Splat: fill, Len: int64(len(e.Sparse))})
	structRef := m.Exprs.Alloc(ssair.Expr{
		Kind: ssair.ExprStruct,
		Type: packedType,
		Elems: []value.Value{
			value.AggrZero{Type: leadType},
			value.ConstExpr{Expr: value.ExprRef{Ref: trailRef}},
		},
	})
	return value.ConstExpr{Expr: value.ExprRef{Ref: structRef}}, nil
}

func unsupportedSparse(r arena.Ref) error {
	return &ssaerr.UnsupportedSparseDefault{Expr: ssaerr.StringerString(fmt.Sprintf("expr#%d", r.Index()))}
}

func adaptedValue(adapted map[arena.Ref]value.Value, v value.Value) (value.Value, bool) {
	ce, ok := v.(value.ConstExpr)
	if !ok {
		return nil, false
	}
	nv, ok := adapted[ce.Expr.Ref]
	return nv, ok
}

func adaptRewriteOperands(m *ssair.Module, adapted map[arena.Ref]value.Value) {
	var stale []value.UseRef
	m.Uses.Each(func(r arena.Ref, u value.Use) {
		if _, ok := adaptedValue(adapted, u.Operand); ok {
			stale = append(stale, value.UseRef{Ref: r})
		}
	})
	for _, ur := range stale {
		u, ok := m.Uses.Get(ur.Ref)
		if !ok {
			continue
		}
		if nv, ok := adaptedValue(adapted, u.Operand); ok {
			m.RetargetOperand(ur, nv)
		}
	}
}

func adaptRewriteGlobalInits(m *ssair.Module, adapted map[arena.Ref]value.Value) {
	var stale []value.GlobalRef
	m.Globals.Each(func(r arena.Ref, g ssair.GlobalData) {
		vg, ok := g.(ssair.VarGlobal)
		if !ok {
			return
		}
		if _, ok := adaptedValue(adapted, vg.Init); ok {
			stale = append(stale, value.GlobalRef{Ref: r})
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
		if nv, ok := adaptedValue(adapted, vg.Init); ok {
			vg.Init = nv
			m.Globals.Set(gr.Ref, vg)
		}
	}
}

func adaptRewriteExprFields(m *ssair.Module, adapted map[arena.Ref]value.Value) {
	fieldStale := func(v value.Value) bool {
		_, ok := adaptedValue(adapted, v)
		return ok
	}

	var stale []arena.Ref
	m.Exprs.Each(func(r arena.Ref, e ssair.Expr) {
		switch e.Kind {
		case ssair.ExprSplat:
			if fieldStale(e.Splat) {
				stale = append(stale, r)
			}
		case ssair.ExprSparse:
			for _, s := range e.Sparse {
				if fieldStale(s.Value) {
					stale = append(stale, r)
					break
				}
			}
		default:
			for _, v := range e.Elems {
				if fieldStale(v) {
					stale = append(stale, r)
					break
				}
			}
		}
	})

	rewrite := func(v value.Value) value.Value {
		if nv, ok := adaptedValue(adapted, v); ok {
			return nv
		}
		return v
	}

	for _, r := range stale {
		e, ok := m.Exprs.Get(r)
		if !ok {
			continue
		}
		switch e.Kind {
		case ssair.ExprSplat:
			e.Splat = rewrite(e.Splat)
		case ssair.ExprSparse:
			for i := range e.Sparse {
				e.Sparse[i].Value = rewrite(e.Sparse[i].Value)
			}
		default:
			for i := range e.Elems {
				e.Elems[i] = rewrite(e.Elems[i])
			}
		}
		m.Exprs.Set(r, e)
	}
}
