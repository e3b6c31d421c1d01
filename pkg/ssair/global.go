package ssair

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// Linkage mirrors the handful of visibility states the printer and the
// translator both need to distinguish (whether a symbol needs a .global
// directive, whether a function body is expected).
type Linkage int

const (
	LinkagePrivate Linkage = iota
	LinkageExternal
	LinkageExternalWeak
)

// Function is the body of a FuncGlobal: its argument types, entry/other
// blocks (Blocks' head is required to be the entry block per spec.md
// §4.1's EntryNotInFront invariant), and the per-argument Users list so
// FuncArg values can be found from their producer side.
type Function struct {
	Blocks arena.List[Block]

	ArgTypes []types.ID
	RetType  types.ID
	IsVararg bool

	ArgUsers []value.UserList // one per ArgTypes slot
}

// GlobalData is the closed union of symbol-table entries a GlobalRef can
// resolve to, following the teacher's per-kind-struct/marker-method idiom
// (pkg/rtl's FunRef-style tagging) rather than one flat struct with a kind
// tag and unused fields.
type GlobalData interface {
	implGlobalData()
	globalName() string
	globalLinkage() Linkage
}

// FuncGlobal is a function definition or external declaration (Func ==
// arena.Nil marks "declaration only", matching an extern function prototype
// with no body).
type FuncGlobal struct {
	Name    string
	Linkage Linkage
	Func    value.FuncRef // resolves into Module.Funcs; Nil for a declaration

	Users value.UserList
}

func (FuncGlobal) implGlobalData()       {}
func (g FuncGlobal) globalName() string  { return g.Name }
func (g FuncGlobal) globalLinkage() Linkage { return g.Linkage }

// VarGlobal is a global variable: its storage type and optional
// initializer (None means zero-initialised / BSS).
type VarGlobal struct {
	Name        string
	Linkage     Linkage
	Type        types.ID
	Init        value.Value
	AlignLog2   uint8
	IsConstant  bool // placed in .rodata rather than .data/.bss

	Users value.UserList
}

func (VarGlobal) implGlobalData()        {}
func (g VarGlobal) globalName() string   { return g.Name }
func (g VarGlobal) globalLinkage() Linkage { return g.Linkage }

// AliasGlobal renames another global without allocating new storage
// (spec.md's alias symbol kind).
type AliasGlobal struct {
	Name    string
	Linkage Linkage
	Target  value.GlobalRef

	Users value.UserList
}

func (AliasGlobal) implGlobalData()        {}
func (g AliasGlobal) globalName() string   { return g.Name }
func (g AliasGlobal) globalLinkage() Linkage { return g.Linkage }
