package ssair

import (
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// ExprKind distinguishes the aggregate-constant shapes spec.md §4.2 lists.
type ExprKind int

const (
	ExprArray ExprKind = iota
	ExprStruct
	ExprVector
	ExprSplat   // one element repeated Len times
	ExprSparse  // key->value pairs over an otherwise-zero backing array
)

// SparseEntry is one (index, value) pair of an ExprSparse expression.
type SparseEntry struct {
	Index int64
	Value value.Value
}

// Expr is an aggregate constant living in the module's expr arena. Two
// Exprs with identical Kind/Type/content are distinct ExprRefs until
// compress_const_exprs structurally dedups them (pkg/transform) — spec.md
// §4.2 explicitly allows this duplication to exist transiently.
type Expr struct {
	Kind ExprKind
	Type types.ID

	Elems  []value.Value // ExprArray / ExprStruct / ExprVector
	Splat  value.Value   // ExprSplat
	Len    int64         // ExprSplat / ExprSparse backing length
	Sparse []SparseEntry // ExprSparse, sorted by Index

	Users value.UserList
}

// StructHash computes a stable hash of e's structural content, used by
// pkg/transform's compress_const_exprs to bucket candidate duplicates before
// a full equality check. It intentionally ignores Users (identity, not
// content).
func (e Expr) StructHash(h func(vs ...interface{}) uint64) uint64 {
	switch e.Kind {
	case ExprSplat:
		return h("splat", int64(e.Type.RawIndex()), e.Len, e.Splat)
	case ExprSparse:
		parts := []interface{}{"sparse", int64(e.Type.RawIndex()), e.Len}
		for _, s := range e.Sparse {
			parts = append(parts, s.Index, s.Value)
		}
		return h(parts...)
	default:
		parts := []interface{}{"elems", int(e.Kind), int64(e.Type.RawIndex())}
		for _, v := range e.Elems {
			parts = append(parts, v)
		}
		return h(parts...)
	}
}
