// Package translate lowers a built, cleaned-up ssair.Module into an
// AArch64 mir.Module: one pass over every global bucketing it into a MIR
// section plus, for each defined function, a straight-line walk of its
// blocks dispatching each SSA instruction to one or more MIR instructions.
// It mirrors the teacher's pkg/selection (expression/addressing-mode
// selection from Cminor to CminorSel) generalized from an expression-tree
// rewrite to a flat arena-graph-to-slice lowering, since pkg/ssair already
// exposes instructions as a linear per-block chain rather than a tree.
package translate

import (
	"fmt"

	"github.com/ssair-lang/ssair/pkg/mir"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/value"
)

// Translate lowers every global in m into mm, in declaration order.
func Translate(m *ssair.Module) (*mir.Module, error) {
	mm := &mir.Module{}
	var err error
	m.ForallGlobals(func(gr value.GlobalRef, g ssair.GlobalData) {
		if err != nil {
			return
		}
		switch gg := g.(type) {
		case ssair.VarGlobal:
			mm.Globals = append(mm.Globals, translateVarGlobal(m, gg))
		case ssair.FuncGlobal:
			if !gg.Func.Ref.Valid() {
				// declaration only: asmemit.go emits `.extern NAME` for it,
				// there is no body to lower.
				return
			}
			fn, ferr := translateFunc(m, gg)
			if ferr != nil {
				err = fmt.Errorf("translate %s: %w", gg.Name, ferr)
				return
			}
			mm.Functions = append(mm.Functions, *fn)
		case ssair.AliasGlobal:
			// Aliases are resolved by the assembler/linker against the
			// target's own symbol; translate.go has nothing to lower.
		}
	})
	if err != nil {
		return nil, err
	}
	return mm, nil
}

// translateVarGlobal buckets one variable global into its MIR section and
// generates its data directives, per spec step 1's six-way bucketing.
//
// VarGlobal carries no explicit IsExtern flag (unlike FuncGlobal's
// Func == arena.Nil trick); a nil Init is the chosen stand-in for "declared
// but not defined in this module", symmetric with FuncGlobal's convention.
func translateVarGlobal(m *ssair.Module, g ssair.VarGlobal) mir.Global {
	size, _ := m.Types.SizeOf(g.Type)
	align := int64(1) << g.AlignLog2
	if align < 1 {
		align = 1
	}

	if g.Init == nil {
		return mir.Global{Name: g.Name, Section: mir.SectGOT, Align: align, Size: size, IsExtern: true}
	}

	if m.IsZeroValue(g.Init) {
		return mir.Global{Name: g.Name, Section: mir.SectBSS, Align: align, Size: size,
			Directives: []mir.Directive{{Kind: mir.DZero, Count: size}}}
	}

	sect := mir.SectData
	if g.IsConstant {
		sect = mir.SectROData
	}
	return mir.Global{Name: g.Name, Section: sect, Align: align, Size: size,
		Directives: DataGen(m, g.Init, g.Type)}
}
