package ssair

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// Module owns every arena the IR graph is built from and is the only type
// able to dereference a Ref into a live node. This mirrors the teacher's
// single Program-owns-everything layout (pkg/rtl's Program holding all
// function bodies) generalized to the SSA graph's six node kinds plus
// their shared Use arena.
type Module struct {
	Types *types.Context

	Insts       *arena.Arena[Inst]
	Blocks      *arena.Arena[Block]
	Funcs       *arena.Arena[Function]
	JumpTargets *arena.Arena[JumpTarget]
	Globals     *arena.Arena[GlobalData]
	Exprs       *arena.Arena[Expr]
	Uses        *arena.Arena[value.Use]

	// order preserves insertion order for forall_funcs-style iteration,
	// which arena.Each cannot guarantee once a freed slot is reused.
	order      []value.GlobalRef
	byName     map[string]value.GlobalRef
}

// NewModule creates an empty module over a fresh type context.
func NewModule(cfg types.Config) *Module {
	return &Module{
		Types:       types.NewContext(cfg),
		Insts:       arena.New[Inst](),
		Blocks:      arena.New[Block](),
		Funcs:       arena.New[Function](),
		JumpTargets: arena.New[JumpTarget](),
		Globals:     arena.New[GlobalData](),
		Exprs:       arena.New[Expr](),
		Uses:        arena.New[value.Use](),
		byName:      make(map[string]value.GlobalRef),
	}
}

func (m *Module) useAccessors() arena.Accessors[value.Use] { return value.Accessors(m.Uses) }

// --- Symbol table ---

// DeclareGlobal inserts data under its own name, returning the new
// GlobalRef, or an error if the name is already taken.
func (m *Module) DeclareGlobal(data GlobalData) (value.GlobalRef, error) {
	name := data.globalName()
	if _, exists := m.byName[name]; exists {
		return value.GlobalRef{}, &ssaerr.NodeAlreadyLinked{What: "global " + name}
	}
	r := value.GlobalRef{Ref: m.Globals.Alloc(data)}
	m.byName[name] = r
	m.order = append(m.order, r)
	return r, nil
}

// LookupGlobal resolves a global by name.
func (m *Module) LookupGlobal(name string) (value.GlobalRef, bool) {
	r, ok := m.byName[name]
	return r, ok
}

// ForallFuncs walks every FuncGlobal in declaration order, skipping
// declarations (Func == arena.Nil) unless includeDecls is set.
func (m *Module) ForallFuncs(includeDecls bool, f func(value.GlobalRef, FuncGlobal)) {
	for _, gr := range m.order {
		g, ok := m.Globals.Get(gr.Ref)
		if !ok {
			continue
		}
		fg, ok := g.(FuncGlobal)
		if !ok {
			continue
		}
		if !includeDecls && !fg.Func.Ref.Valid() {
			continue
		}
		f(gr, fg)
	}
}

// ForallGlobals walks every global (function, variable, or alias) in
// declaration order, the same traversal Print uses, so an out-of-package
// pass like pkg/translate can bucket globals into sections without its own
// copy of the order-preserving symbol table.
func (m *Module) ForallGlobals(f func(value.GlobalRef, GlobalData)) {
	for _, gr := range m.order {
		g, ok := m.Globals.Get(gr.Ref)
		if !ok {
			continue
		}
		f(gr, g)
	}
}

// --- Use/operand manipulation ---

// SetOperand allocates a new Use recording that owner
// references operand under the given positional kind, and links it into
// operand's producer-side UserList so dominance/GC/printing can find every
// reader of a value without scanning the whole module.
func (m *Module) SetOperand(owner value.Owner, kind value.UseKind, operand value.Value) value.UseRef {
	u := value.Use{Kind: kind, Owner: owner, Operand: operand}
	ur := value.UseRef{Ref: m.Uses.Alloc(u)}
	m.attachUser(ur, operand)
	return ur
}

// ClearOperand detaches use from its producer's UserList and frees its
// arena slot. The owner's own Operands slice entry must be cleared by the
// caller (pkg/irbuilder, pkg/transform) since Module does not know which
// instruction/expr slice element pointed at use.
func (m *Module) ClearOperand(use value.UseRef) {
	u, ok := m.Uses.Get(use.Ref)
	if !ok {
		return
	}
	m.detachUser(use, u.Operand)
	m.Uses.Free(use.Ref)
}

// RetargetOperand rewrites a live use's referenced Value in place (e.g. a
// replace-all-uses-with rewrite), moving its UserList membership from the
// old producer to the new one.
func (m *Module) RetargetOperand(use value.UseRef, newOperand value.Value) {
	u, ok := m.Uses.Get(use.Ref)
	if !ok {
		return
	}
	m.detachUser(use, u.Operand)
	u.Operand = newOperand
	m.Uses.Set(use.Ref, u)
	m.attachUser(use, newOperand)
}

// attachUser and detachUser mutate the producer's embedded UserList and
// write the node back into its owning arena: arena.Get/Set hand back and
// take values, not pointers, so a UserList read off an arena slot must be
// mutated and stored back explicitly rather than through a borrowed
// pointer (no trackable producer for constants/None is a silent no-op).
func (m *Module) attachUser(use value.UseRef, v value.Value) {
	m.editUserList(v, func(ul *value.UserList) { ul.PushBack(m.useAccessors(), use) })
}

func (m *Module) detachUser(use value.UseRef, v value.Value) {
	m.editUserList(v, func(ul *value.UserList) { ul.Remove(m.useAccessors(), use) })
}

func (m *Module) editUserList(v value.Value, edit func(*value.UserList)) {
	switch vv := v.(type) {
	case value.Inst:
		inst, ok := m.Insts.Get(vv.Ref.Ref)
		if !ok {
			return
		}
		edit(&inst.Users)
		m.Insts.Set(vv.Ref.Ref, inst)
	case value.Block:
		blk, ok := m.Blocks.Get(vv.Ref.Ref)
		if !ok {
			return
		}
		edit(&blk.Users)
		m.Blocks.Set(vv.Ref.Ref, blk)
	case value.Global:
		g, ok := m.Globals.Get(vv.Ref.Ref)
		if !ok {
			return
		}
		switch gg := g.(type) {
		case FuncGlobal:
			edit(&gg.Users)
			m.Globals.Set(vv.Ref.Ref, gg)
		case VarGlobal:
			edit(&gg.Users)
			m.Globals.Set(vv.Ref.Ref, gg)
		case AliasGlobal:
			edit(&gg.Users)
			m.Globals.Set(vv.Ref.Ref, gg)
		}
	case value.ConstExpr:
		e, ok := m.Exprs.Get(vv.Expr.Ref)
		if !ok {
			return
		}
		edit(&e.Users)
		m.Exprs.Set(vv.Expr.Ref, e)
	}
}

// --- Zero-value predicate (needs module context to recurse into Exprs) ---

// IsZeroValue extends value.IsZero to ConstExpr, whose leaves must all be
// (recursively) zero for the whole aggregate to qualify.
func (m *Module) IsZeroValue(v value.Value) bool {
	if value.IsZero(v) {
		return true
	}
	ce, ok := v.(value.ConstExpr)
	if !ok {
		return false
	}
	e, ok := m.Exprs.Get(ce.Expr.Ref)
	if !ok {
		return false
	}
	switch e.Kind {
	case ExprSplat:
		return m.IsZeroValue(e.Splat)
	case ExprSparse:
		return len(e.Sparse) == 0
	default:
		for _, el := range e.Elems {
			if !m.IsZeroValue(el) {
				return false
			}
		}
		return true
	}
}
