// Package types implements the IR's type system: a process-lifetime
// Context that interns array/struct/function/struct-alias types by
// structural hash and answers O(1) size/align layout queries once a type
// has been interned. The tagged-interface-per-kind idiom mirrors the
// teacher's pkg/ctypes Type/implType() pattern; Typ is carried forward
// from the teacher's register-class enum (Tint/Tfloat/Tlong/Tsingle/
// Tany32/Tany64) for use by pkg/translate's operand dispatch.
package types

import (
	"fmt"
	"hash/maphash"
)

// Kind enumerates the closed set of type constructors.
type Kind int

const (
	KindVoid Kind = iota
	KindPtr
	KindInt
	KindFloat
	KindArray
	KindStruct
	KindStructAlias
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindVoid:
		return "void"
	case KindPtr:
		return "ptr"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindStructAlias:
		return "struct-alias"
	case KindFunc:
		return "func"
	}
	return "?"
}

// FloatKind distinguishes IEEE-32 from IEEE-64 float types.
type FloatKind int

const (
	IEEE32 FloatKind = iota
	IEEE64
)

// ID identifies an interned type. Structural equality on two types built
// through the same Context implies ID equality and vice versa, per the
// spec's interning invariant.
type ID struct {
	kind Kind
	// idx indexes into the Context's per-kind table for Array/Struct/
	// StructAlias/Func kinds; for Int it holds the bit width; for Float it
	// holds the FloatKind. Void and Ptr need no payload.
	idx int32
}

func (t ID) Kind() Kind { return t.kind }

// RawIndex exposes the interning index backing a non-singleton ID, for
// callers outside this package that need a stable hash/map key for a type
// (e.g. pkg/ssair's constant-expression structural hashing) without
// reaching into Context internals.
func (t ID) RawIndex() int32 { return t.idx }

// Void, Ptr are the two payload-free singleton types.
var (
	Void = ID{kind: KindVoid}
	Ptr  = ID{kind: KindPtr}
)

// Int returns the (interned-free, since ints need no structural sharing
// beyond bit width) integer type of the given bit width, up to 128.
func Int(bits int) ID { return ID{kind: KindInt, idx: int32(bits)} }

// IntBits returns the bit width of an Int-kind ID.
func (t ID) IntBits() int { return int(t.idx) }

// Float returns the float type of the given IEEE kind.
func Float(fk FloatKind) ID { return ID{kind: KindFloat, idx: int32(fk)} }

func (t ID) FloatKind() FloatKind { return FloatKind(t.idx) }

// Field describes one struct field: its type and, once interned, its
// computed byte offset.
type Field struct {
	Type   ID
	Offset int64
}

type structDef struct {
	fields []Field
	packed bool
	size   int64
	align  int64
}

type arrayDef struct {
	elem ID
	len  int64
}

type funcDef struct {
	ret      ID
	args     []ID
	isVararg bool
}

type aliasDef struct {
	name string
	ty   ID // must be KindStruct
}

// Config mirrors spec.md §4.1's recognised configuration knobs.
type Config struct {
	PointerWidthBits           int // 32 or 64
	LittleEndian               bool
	DefaultStructAlignmentLog2 uint8
}

// DefaultConfig is AArch64/little-endian/8-byte default alignment.
func DefaultConfig() Config {
	return Config{PointerWidthBits: 64, LittleEndian: true, DefaultStructAlignmentLog2: 3}
}

// Context interns aggregate/function/alias types and answers layout
// queries. The zero Context is not usable; construct with NewContext.
type Context struct {
	cfg Config

	arrays  []arrayDef
	structs []structDef
	funcs   []funcDef
	aliases []aliasDef

	arrayIndex  map[uint64][]int32
	structIndex map[uint64][]int32
	funcIndex   map[uint64][]int32
	aliasByName map[string]int32

	seed maphash.Seed
}

func NewContext(cfg Config) *Context {
	return &Context{
		cfg:         cfg,
		arrayIndex:  make(map[uint64][]int32),
		structIndex: make(map[uint64][]int32),
		funcIndex:   make(map[uint64][]int32),
		aliasByName: make(map[string]int32),
		seed:        maphash.MakeSeed(),
	}
}

func (c *Context) hashInts(tag byte, parts ...int64) uint64 {
	var h maphash.Hash
	h.SetSeed(c.seed)
	h.WriteByte(tag)
	for _, p := range parts {
		var buf [8]byte
		for i := 0; i < 8; i++ {
			buf[i] = byte(p >> (8 * i))
		}
		h.Write(buf[:])
	}
	return h.Sum64()
}

// InternArray interns an array type of elem repeated len times.
func (c *Context) InternArray(elem ID, length int64) ID {
	key := c.hashInts('A', int64(elem.kind), int64(elem.idx), length)
	for _, i := range c.arrayIndex[key] {
		d := c.arrays[i]
		if d.elem == elem && d.len == length {
			return ID{kind: KindArray, idx: i}
		}
	}
	idx := int32(len(c.arrays))
	c.arrays = append(c.arrays, arrayDef{elem: elem, len: length})
	c.arrayIndex[key] = append(c.arrayIndex[key], idx)
	return ID{kind: KindArray, idx: idx}
}

func (t ID) ArrayElem(c *Context) ID    { return c.arrays[t.idx].elem }
func (t ID) ArrayLen(c *Context) int64  { return c.arrays[t.idx].len }

// InternStruct interns a struct type. Field offsets are computed eagerly:
// packed structs place each field at the running byte offset; unpacked
// structs pad each field up to its own alignment, and pad the struct's
// total size up to the struct's own alignment (the max field alignment).
func (c *Context) InternStruct(fieldTypes []ID, packed bool) ID {
	hashParts := []int64{boolToInt64(packed)}
	for _, f := range fieldTypes {
		hashParts = append(hashParts, int64(f.kind), int64(f.idx))
	}
	key := c.hashInts('S', hashParts...)

	laidOut, size, align := c.layoutStruct(fieldTypes, packed)

	for _, i := range c.structIndex[key] {
		d := c.structs[i]
		if structFieldsEqual(d.fields, laidOut) && d.packed == packed {
			return ID{kind: KindStruct, idx: i}
		}
	}
	idx := int32(len(c.structs))
	c.structs = append(c.structs, structDef{fields: laidOut, packed: packed, size: size, align: align})
	c.structIndex[key] = append(c.structIndex[key], idx)
	return ID{kind: KindStruct, idx: idx}
}

func structFieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].Offset != b[i].Offset {
			return false
		}
	}
	return true
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (c *Context) layoutStruct(fieldTypes []ID, packed bool) ([]Field, int64, int64) {
	fields := make([]Field, len(fieldTypes))
	var offset int64
	maxAlign := int64(1)
	for i, ft := range fieldTypes {
		if packed {
			fields[i] = Field{Type: ft, Offset: offset}
			offset += c.sizeOfUnsafe(ft)
			continue
		}
		align := c.alignOfUnsafe(ft)
		if align > maxAlign {
			maxAlign = align
		}
		offset = alignUp(offset, align)
		fields[i] = Field{Type: ft, Offset: offset}
		offset += c.sizeOfUnsafe(ft)
	}
	size := offset
	if !packed {
		size = alignUp(size, maxAlign)
	} else {
		maxAlign = 1
	}
	return fields, size, maxAlign
}

func alignUp(n, align int64) int64 {
	if align <= 1 {
		return n
	}
	return (n + align - 1) / align * align
}

// InternFunc interns a function type.
func (c *Context) InternFunc(ret ID, args []ID, isVararg bool) ID {
	hashParts := []int64{int64(ret.kind), int64(ret.idx), boolToInt64(isVararg)}
	for _, a := range args {
		hashParts = append(hashParts, int64(a.kind), int64(a.idx))
	}
	key := c.hashInts('F', hashParts...)
	for _, i := range c.funcIndex[key] {
		d := c.funcs[i]
		if d.ret == ret && d.isVararg == isVararg && idsEqual(d.args, args) {
			return ID{kind: KindFunc, idx: i}
		}
	}
	idx := int32(len(c.funcs))
	argsCopy := append([]ID(nil), args...)
	c.funcs = append(c.funcs, funcDef{ret: ret, args: argsCopy, isVararg: isVararg})
	c.funcIndex[key] = append(c.funcIndex[key], idx)
	return ID{kind: KindFunc, idx: idx}
}

func idsEqual(a, b []ID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// InternAlias interns a name-keyed struct alias. Two aliases sharing a
// name must refer to the same struct; calling InternAlias a second time
// with the same name but a different struct is a programmer error and
// panics (this is a build-time consistency contract, not a run-time
// validation case the spec models with a ValueCheckError).
func (c *Context) InternAlias(name string, aliasee ID) ID {
	if aliasee.kind != KindStruct {
		panic("types: alias target must be a struct type")
	}
	if idx, ok := c.aliasByName[name]; ok {
		if c.aliases[idx].ty != aliasee {
			panic(fmt.Sprintf("types: alias %q redefined with a different struct", name))
		}
		return ID{kind: KindStructAlias, idx: idx}
	}
	idx := int32(len(c.aliases))
	c.aliases = append(c.aliases, aliasDef{name: name, ty: aliasee})
	c.aliasByName[name] = idx
	return ID{kind: KindStructAlias, idx: idx}
}

func (t ID) AliasName(c *Context) string { return c.aliases[t.idx].name }
func (t ID) AliasTarget(c *Context) ID   { return c.aliases[t.idx].ty }

func (t ID) FuncRet(c *Context) ID    { return c.funcs[t.idx].ret }
func (t ID) FuncArgs(c *Context) []ID { return c.funcs[t.idx].args }
func (t ID) FuncIsVararg(c *Context) bool { return c.funcs[t.idx].isVararg }

func (t ID) StructFields(c *Context) []Field { return c.structs[t.idx].fields }
func (t ID) StructPacked(c *Context) bool    { return c.structs[t.idx].packed }

// resolved follows a StructAlias down to its underlying struct.
func (t ID) resolved(c *Context) ID {
	for t.kind == KindStructAlias {
		t = c.aliases[t.idx].ty
	}
	return t
}

// SizeOf returns the size in bytes, or an error for Void/Func which have
// no size (spec §4.1 "Failure" clause).
func (c *Context) SizeOf(t ID) (int64, error) {
	t = t.resolved(c)
	switch t.kind {
	case KindVoid, KindFunc:
		return 0, &NotSizedError{Type: t}
	case KindPtr:
		return int64(c.cfg.PointerWidthBits / 8), nil
	case KindInt:
		return int64((t.idx + 7) / 8), nil
	case KindFloat:
		if t.FloatKind() == IEEE32 {
			return 4, nil
		}
		return 8, nil
	case KindArray:
		elemSize, err := c.SizeOf(c.arrays[t.idx].elem)
		if err != nil {
			return 0, err
		}
		return elemSize * c.arrays[t.idx].len, nil
	case KindStruct:
		return c.structs[t.idx].size, nil
	}
	return 0, &NotSizedError{Type: t}
}

// sizeOfUnsafe is used internally during layout, where the element type is
// already known to be sized (callers never pass Void/Func as a field or
// element type; IR construction rejects that earlier).
func (c *Context) sizeOfUnsafe(t ID) int64 {
	sz, err := c.SizeOf(t)
	if err != nil {
		return 0
	}
	return sz
}

// AlignOf returns the byte alignment of t, always a power of two.
func (c *Context) AlignOf(t ID) (int64, error) {
	t = t.resolved(c)
	switch t.kind {
	case KindVoid, KindFunc:
		return 0, &NotSizedError{Type: t}
	case KindPtr:
		return int64(c.cfg.PointerWidthBits / 8), nil
	case KindInt:
		sz, _ := c.SizeOf(t)
		return nextPow2(sz), nil
	case KindFloat:
		sz, _ := c.SizeOf(t)
		return sz, nil
	case KindArray:
		return c.AlignOf(c.arrays[t.idx].elem)
	case KindStruct:
		return c.structs[t.idx].align, nil
	}
	return 0, &NotSizedError{Type: t}
}

func (c *Context) alignOfUnsafe(t ID) int64 {
	a, err := c.AlignOf(t)
	if err != nil {
		return 1
	}
	return a
}

// AlignLog2Of returns log2 of AlignOf(t); it is always exact because
// alignment is always a power of two.
func (c *Context) AlignLog2Of(t ID) (uint8, error) {
	a, err := c.AlignOf(t)
	if err != nil {
		return 0, err
	}
	log2, ok := log2Exact(a)
	if !ok {
		return 0, &NonPow2AlignError{Type: t, Align: a}
	}
	return log2, nil
}

func log2Exact(n int64) (uint8, bool) {
	if n <= 0 || n&(n-1) != 0 {
		return 0, false
	}
	var log2 uint8
	for n > 1 {
		n >>= 1
		log2++
	}
	return log2, true
}

func nextPow2(n int64) int64 {
	if n <= 1 {
		return 1
	}
	p := int64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// NotSizedError reports a size/align query against Void or Func.
type NotSizedError struct{ Type ID }

func (e *NotSizedError) Error() string {
	return fmt.Sprintf("types: %s type has no size", e.Type.Kind())
}

// NonPow2AlignError reports that a cached alignment wasn't a power of two;
// the library never produces one, so this only fires on a caller-supplied
// Config with inconsistent sizes, surfaced rather than silently rounded.
type NonPow2AlignError struct {
	Type  ID
	Align int64
}

func (e *NonPow2AlignError) Error() string {
	return fmt.Sprintf("types: computed alignment %d for %s is not a power of two", e.Align, e.Type.Kind())
}

// --- Register dispatch classes (mach/asm value-class vocabulary) ---

// Typ classifies a value for register-class dispatch during translation:
// 32/64-bit integer, single/double float, or the CompCert-style "any"
// classes used for values whose width is not yet pinned down.
type Typ int

const (
	Tint Typ = iota
	Tlong
	Tsingle
	Tfloat
	Tany32
	Tany64
)

func (t Typ) String() string {
	switch t {
	case Tint:
		return "int"
	case Tlong:
		return "long"
	case Tsingle:
		return "single"
	case Tfloat:
		return "float"
	case Tany32:
		return "any32"
	case Tany64:
		return "any64"
	}
	return "?"
}

// DispatchClass returns the register-class Typ for an interned ID, used
// by pkg/translate to decide G32/G64/F32/F64 vreg class (spec §4.9.3).
func (c *Context) DispatchClass(t ID) Typ {
	t = t.resolved(c)
	switch t.kind {
	case KindFloat:
		if t.FloatKind() == IEEE32 {
			return Tsingle
		}
		return Tfloat
	case KindPtr:
		return Tlong
	case KindInt:
		if t.idx > 32 {
			return Tlong
		}
		return Tint
	default:
		return Tlong
	}
}
