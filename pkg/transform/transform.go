package transform

import (
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/value"
)

// Run applies the whole module-cleanup pipeline: DCE and block-merge on
// every defined function, then whole-module constant-expression dedup,
// then a final sweep to reclaim everything the passes detached.
func Run(m *ssair.Module) {
	m.ForallFuncs(false, func(_ value.GlobalRef, fg ssair.FuncGlobal) {
		RunFunc(m, fg.Func)
	})
	CompressConstExprs(m)
	m.Sweep()
}

// RunFunc applies DCE followed by block-merge to a single function body.
func RunFunc(m *ssair.Module, fr value.FuncRef) {
	fn, ok := m.Funcs.Get(fr.Ref)
	if !ok {
		return
	}
	DCE(m, fn)
	MergeBlocks(m, fr)
}
