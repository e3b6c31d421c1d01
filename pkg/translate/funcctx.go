package translate

import (
	"github.com/ssair-lang/ssair/pkg/arena"
	"github.com/ssair-lang/ssair/pkg/mir"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// ctx carries the per-function state threaded through dispatch.go and
// addressing.go: the operand map (step 3), the argument registers (step
// 2), and the last-PState-modifying instruction (step 4's compare-reuse
// rule) — the generalized analogue of the teacher's SelectionContext
// (pkg/selection/expr.go), which threads Globals/StackVars through an
// expression-tree rewrite instead of a flat instruction-by-instruction one.
type ctx struct {
	m   *ssair.Module
	fn  ssair.Function

	vregs   map[arena.Ref]mir.VReg // ssair Inst ref -> its MIR vreg
	argRegs []mir.Operand          // one per ssair.Function.ArgTypes slot
	nextID  int

	blockIndex map[arena.Ref]mir.BlockRef

	// lastCmp records the most recently dispatched Icmp/Fcmp, so a Br/
	// Select/Zext consuming it directly can reuse its condition code
	// instead of re-comparing (spec step 4).
	lastCmpRef   arena.Ref
	lastCmpValid bool
	lastCmpCond  mir.CondCode
}

func newCtx(m *ssair.Module, fn ssair.Function) *ctx {
	return &ctx{m: m, fn: fn, vregs: map[arena.Ref]mir.VReg{}, blockIndex: map[arena.Ref]mir.BlockRef{}}
}

// allocVReg mints a fresh virtual register of the class t dispatches to.
func (c *ctx) allocVReg(t types.ID) mir.VReg {
	v := mir.VReg{ID: c.nextID, Class: classOf(c.m.Types, t)}
	c.nextID++
	return v
}

// allocVRegClass mints a fresh virtual register of an already-known class,
// for temps dispatch.go introduces that have no corresponding IR type (a
// materialized constant, a remainder's quotient/product scratch).
func (c *ctx) allocVRegClass(class mir.Class) mir.VReg {
	v := mir.VReg{ID: c.nextID, Class: class}
	c.nextID++
	return v
}

// classOf maps a type to its dispatched vreg class (spec step 3).
func classOf(tc *types.Context, t types.ID) mir.Class {
	if t == types.Void {
		return mir.Wasted
	}
	switch tc.DispatchClass(t) {
	case types.Tsingle:
		return mir.F32
	case types.Tfloat:
		return mir.F64
	case types.Tlong, types.Tany64:
		return mir.G64
	default: // Tint, Tany32
		return mir.G32
	}
}

// vregForInst returns (allocating on first use) the vreg holding ir's SSA
// result.
func (c *ctx) vregForInst(ir value.InstRef) mir.VReg {
	if v, ok := c.vregs[ir.Ref]; ok {
		return v
	}
	inst := c.m.Insts.MustGet(ir.Ref)
	v := c.allocVReg(inst.ResultType)
	c.vregs[ir.Ref] = v
	return v
}

// markAddress flags ir's vreg as an address-of-local-variable, per
// regalloc.go's IsAddress rule: it is left as a StackPos instead of
// getting load/store scaffolding.
func (c *ctx) markAddress(ir value.InstRef) mir.VReg {
	v := c.vregForInst(ir)
	v.IsAddress = true
	c.vregs[ir.Ref] = v
	return v
}

// operand reads inst's i'th use and resolves it to a MIR operand.
func (c *ctx) operand(inst ssair.Inst, i int) mir.Operand {
	if i < 0 || i >= len(inst.Operands) {
		return mir.Imm{}
	}
	u, ok := c.m.Uses.Get(inst.Operands[i].Ref)
	if !ok {
		return mir.Imm{}
	}
	return c.resolveValue(u.Operand)
}

// operandValue is operand's counterpart returning the raw ValueSSA, needed
// where dispatch must inspect the producer (e.g. the compare-reuse rule,
// which cares whether operand 0 is exactly an Inst{lastCmpRef}).
func (c *ctx) operandValue(inst ssair.Inst, i int) value.Value {
	if i < 0 || i >= len(inst.Operands) {
		return value.None{}
	}
	u, ok := c.m.Uses.Get(inst.Operands[i].Ref)
	if !ok {
		return value.None{}
	}
	return u.Operand
}

func (c *ctx) resolveValue(v value.Value) mir.Operand {
	switch vv := v.(type) {
	case value.ConstData:
		return c.resolveConst(vv)
	case value.AggrZero:
		return mir.Imm{}
	case value.ConstExpr:
		// Inline aggregate constants only ever appear as a global's
		// initializer (DataGen handles those); an instruction operand
		// referencing one directly is outside this translator's scope.
		return mir.Imm{}
	case value.Global:
		g, _ := c.m.Globals.Get(vv.Ref.Ref)
		return mir.GlobalAddr{Symbol: globalSymbolName(g)}
	case value.FuncArg:
		if int(vv.Index) < len(c.argRegs) {
			return c.argRegs[vv.Index]
		}
		return mir.Imm{}
	case value.Inst:
		return c.vregForInst(vv.Ref)
	case value.Block:
		// Only meaningful inside a Phi's incoming-block slot, read
		// directly by the phi-resolution pass rather than through
		// resolveValue.
		return mir.Imm{}
	default: // value.None
		return mir.Imm{}
	}
}

func (c *ctx) resolveConst(cd value.ConstData) mir.Operand {
	switch cd.Kind {
	case value.ConstInt:
		if cd.Int == nil {
			return mir.Imm{}
		}
		return mir.Imm{Value: cd.Int.Int64()}
	case value.ConstFloat:
		return mir.FImm{Value: cd.Float, IsDouble: isDoubleType(cd.Type)}
	default: // ConstUndef, ConstZero, ConstNullPtr
		return mir.Imm{}
	}
}

func isDoubleType(t types.ID) bool {
	return t.Kind() == types.KindFloat && t.FloatKind() == types.IEEE64
}

func globalSymbolName(g ssair.GlobalData) string {
	switch gg := g.(type) {
	case ssair.FuncGlobal:
		return gg.Name
	case ssair.VarGlobal:
		return gg.Name
	case ssair.AliasGlobal:
		return gg.Name
	}
	return ""
}

// setLastCmp records ir as the most recent PState-modifying instruction.
func (c *ctx) setLastCmp(ir value.InstRef, cond mir.CondCode) {
	c.lastCmpRef = ir.Ref
	c.lastCmpValid = true
	c.lastCmpCond = cond
}

// reuseCmp reports whether v is exactly the last compare this ctx
// recorded, returning its condition code if so.
func (c *ctx) reuseCmp(v value.Value) (mir.CondCode, bool) {
	iv, ok := v.(value.Inst)
	if !ok || !c.lastCmpValid || iv.Ref.Ref != c.lastCmpRef {
		return 0, false
	}
	return c.lastCmpCond, true
}
