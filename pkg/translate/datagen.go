package translate

import (
	"math"

	"github.com/ssair-lang/ssair/pkg/mir"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// DataGen renders a constant initializer as a sequence of GAS data
// directives in the smallest compatible unit, per spec step 1. It
// recurses through ConstExpr's array/struct/splat/sparse shapes the way
// m.IsZeroValue recurses through them, rather than materializing an
// intermediate byte buffer.
func DataGen(m *ssair.Module, v value.Value, t types.ID) []mir.Directive {
	switch vv := v.(type) {
	case value.ConstData:
		return dataGenConst(vv)
	case value.AggrZero:
		size, _ := m.Types.SizeOf(vv.Type)
		return []mir.Directive{{Kind: mir.DZero, Count: size}}
	case value.ConstExpr:
		e, ok := m.Exprs.Get(vv.Expr.Ref)
		if !ok {
			return nil
		}
		return dataGenExpr(m, e)
	default:
		// A Global/FuncArg/Inst/Block/None value can never reach here: IR
		// construction only ever places those as instruction operands, not
		// as a global's initializer.
		size, _ := m.Types.SizeOf(t)
		return []mir.Directive{{Kind: mir.DZero, Count: size}}
	}
}

func dataGenConst(c value.ConstData) []mir.Directive {
	switch c.Kind {
	case value.ConstUndef, value.ConstZero, value.ConstNullPtr:
		size := intWidthBytes(c)
		return []mir.Directive{{Kind: mir.DZero, Count: size}}
	case value.ConstInt:
		width := c.Type.IntBits()
		if c.Type.Kind() == types.KindPtr {
			width = 64
		}
		return intDirectives(c.Int.Int64(), (width+7)/8)
	case value.ConstFloat:
		if c.Type.Kind() == types.KindFloat && c.Type.FloatKind() == types.IEEE32 {
			bits := math.Float32bits(float32(c.Float))
			return []mir.Directive{{Kind: mir.DWord, Bytes: le32(bits)}}
		}
		bits := math.Float64bits(c.Float)
		return []mir.Directive{{Kind: mir.DDword, Bytes: le64(bits)}}
	}
	return nil
}

// intWidthBytes guesses a zero-value's byte count from its declared type;
// Void/Func never reach here since they can't be a variable's storage type.
func intWidthBytes(c value.ConstData) int64 {
	if c.Type.Kind() == types.KindPtr {
		return 8
	}
	if c.Type.Kind() == types.KindInt {
		return int64((c.Type.IntBits() + 7) / 8)
	}
	if c.Type.Kind() == types.KindFloat {
		if c.Type.FloatKind() == types.IEEE32 {
			return 4
		}
		return 8
	}
	return 8
}

// intDirectives picks the smallest compatible directive for an integer of
// the given byte width, per spec step 1.
func intDirectives(val int64, width int64) []mir.Directive {
	switch width {
	case 1:
		return []mir.Directive{{Kind: mir.DByte, Bytes: []byte{byte(val)}}}
	case 2:
		return []mir.Directive{{Kind: mir.DHalf, Bytes: le16(uint16(val))}}
	case 4:
		return []mir.Directive{{Kind: mir.DWord, Bytes: le32(uint32(val))}}
	case 8:
		return []mir.Directive{{Kind: mir.DDword, Bytes: le64(uint64(val))}}
	default:
		// Odd widths (e.g. i128 truncated, or a packed sub-byte field) fall
		// back to a run of individual bytes, little-endian.
		out := make([]mir.Directive, 0, width)
		u := uint64(val)
		for i := int64(0); i < width; i++ {
			out = append(out, mir.Directive{Kind: mir.DByte, Bytes: []byte{byte(u >> (8 * uint(i)))}})
		}
		return out
	}
}

func dataGenExpr(m *ssair.Module, e ssair.Expr) []mir.Directive {
	switch e.Kind {
	case ssair.ExprSplat:
		var out []mir.Directive
		elemType := e.Type.ArrayElem(m.Types)
		for i := int64(0); i < e.Len; i++ {
			out = append(out, DataGen(m, e.Splat, elemType)...)
		}
		return out
	case ssair.ExprSparse:
		// A sparse const array is a mostly-zero backing store with a few
		// explicit (index, value) overrides; emit zero-fill and patch in
		// the explicit entries in index order (Sparse is kept sorted).
		elemType := e.Type.ArrayElem(m.Types)
		elemSize, _ := m.Types.SizeOf(elemType)
		var out []mir.Directive
		var cursor int64
		for _, s := range e.Sparse {
			if s.Index > cursor {
				out = append(out, mir.Directive{Kind: mir.DZero, Count: (s.Index - cursor) * elemSize})
			}
			out = append(out, DataGen(m, s.Value, elemType)...)
			cursor = s.Index + 1
		}
		if cursor < e.Len {
			out = append(out, mir.Directive{Kind: mir.DZero, Count: (e.Len - cursor) * elemSize})
		}
		return out
	case ssair.ExprStruct:
		fields := e.Type.StructFields(m.Types)
		var out []mir.Directive
		var cursor int64
		for i, el := range e.Elems {
			if i < len(fields) {
				if fields[i].Offset > cursor {
					out = append(out, mir.Directive{Kind: mir.DZero, Count: fields[i].Offset - cursor})
				}
				out = append(out, DataGen(m, el, fields[i].Type)...)
				sz, _ := m.Types.SizeOf(fields[i].Type)
				cursor = fields[i].Offset + sz
			}
		}
		return out
	default: // ExprArray, ExprVector
		elemType := e.Type.ArrayElem(m.Types)
		var out []mir.Directive
		for _, el := range e.Elems {
			out = append(out, DataGen(m, el, elemType)...)
		}
		return out
	}
}

func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func le32(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }
func le64(v uint64) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = byte(v >> (8 * uint(i)))
	}
	return b
}
