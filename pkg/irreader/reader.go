// Package irreader implements a best-effort recursive-descent reader over
// the textual IR form pkg/ssair's printer.go emits: enough to round-trip
// what that writer actually produces for golden-file tests and for
// cmd/ssairc's text-input subcommands. It is not a general parser for
// arbitrary hand-written IR and does not attempt to reconstruct every
// construct the writer can lose in translation to text (see the
// UnsupportedConstruct cases below) — mirroring the teacher's own
// pkg/lexer+pkg/parser split as a separate package from the AST it builds,
// since pkg/irbuilder (which this reader drives) already imports
// pkg/ssair and a reader living in pkg/ssair itself would import back.
package irreader

import (
	"strconv"
	"strings"

	"github.com/ssair-lang/ssair/pkg/irbuilder"
	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// Parse reads the textual IR form of a module under cfg's type-layout
// rules.
func Parse(cfg types.Config, text string) (*ssair.Module, error) {
	m := ssair.NewModule(cfg)
	b := irbuilder.New(m)

	units, err := splitUnits(text)
	if err != nil {
		return nil, err
	}

	r := &reader{b: b, m: m}
	if err := r.declareShells(units); err != nil {
		return nil, err
	}
	if err := r.fillBodies(units); err != nil {
		return nil, err
	}
	return m, nil
}

type reader struct {
	b *irbuilder.Builder
	m *ssair.Module

	// per-function state, reset by fillFunction
	blocks  map[string]value.BlockRef
	values  map[string]value.Value
	patches []patch
	curFunc value.FuncRef
}

// patch records an operand wired to value.None{} because its vN target
// hadn't been built yet (a phi incoming value from a not-yet-parsed
// block), to be retargeted once the whole function is built.
type patch struct {
	use  value.UseRef
	name string
	line int
}

// --- Unit splitting: top-level lines into one unit per global ---

type blockUnit struct {
	name  string
	insts []lineText
}

type lineText struct {
	text string
	line int
}

type unit struct {
	kind     string // global, constant, alias, define, declare
	line     int
	name     string
	typeText string
	initText string
	hasInit  bool
	target   string // alias only

	argTypeTexts []string
	vararg       bool
	retTypeText  string
	blocks       []blockUnit
}

func splitUnits(text string) ([]unit, error) {
	rawLines := strings.Split(text, "\n")
	var units []unit
	i := 0
	for i < len(rawLines) {
		ln := i + 1
		line := rawLines[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		if strings.HasPrefix(line, " ") {
			return nil, parseErr(ln, "instruction line outside any function body: %q", line)
		}
		u, err := parseHeader(ln, line)
		if err != nil {
			return nil, err
		}
		i++
		if u.kind == "define" {
			for i < len(rawLines) {
				l := rawLines[i]
				if strings.TrimSpace(l) == "" {
					i++
					continue
				}
				if !strings.HasPrefix(l, " ") && isHeaderLine(l) {
					break
				}
				if !strings.HasPrefix(l, " ") {
					name := strings.TrimSuffix(strings.TrimSpace(l), ":")
					u.blocks = append(u.blocks, blockUnit{name: name})
					i++
					continue
				}
				if len(u.blocks) == 0 {
					return nil, parseErr(i+1, "instruction before any block label: %q", l)
				}
				last := &u.blocks[len(u.blocks)-1]
				last.insts = append(last.insts, lineText{text: strings.TrimPrefix(l, "  "), line: i + 1})
				i++
			}
		}
		units = append(units, u)
	}
	return units, nil
}

func isHeaderLine(l string) bool {
	for _, kw := range []string{"global ", "constant ", "alias ", "define ", "declare "} {
		if strings.HasPrefix(l, kw) {
			return true
		}
	}
	return false
}

func parseHeader(ln int, line string) (unit, error) {
	switch {
	case strings.HasPrefix(line, "global "):
		return parseVarHeader(ln, line, "global", strings.TrimPrefix(line, "global "))
	case strings.HasPrefix(line, "constant "):
		return parseVarHeader(ln, line, "constant", strings.TrimPrefix(line, "constant "))
	case strings.HasPrefix(line, "alias "):
		rest := strings.TrimPrefix(line, "alias ")
		parts := strings.SplitN(rest, " = ", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[1], "@") {
			return unit{}, parseErr(ln, "malformed alias line: %q", line)
		}
		return unit{kind: "alias", line: ln, name: strings.TrimSpace(parts[0]), target: strings.TrimPrefix(strings.TrimSpace(parts[1]), "@")}, nil
	case strings.HasPrefix(line, "declare @"):
		return unit{kind: "declare", line: ln, name: strings.TrimPrefix(line, "declare @")}, nil
	case strings.HasPrefix(line, "define @"):
		return parseDefineHeader(ln, line)
	}
	return unit{}, parseErr(ln, "unrecognized top-level line: %q", line)
}

func parseVarHeader(ln int, line, kind, rest string) (unit, error) {
	parts := strings.SplitN(rest, " : ", 2)
	if len(parts) != 2 {
		return unit{}, parseErr(ln, "malformed %s line: %q", kind, line)
	}
	u := unit{kind: kind, line: ln, name: strings.TrimSpace(parts[0])}
	typeAndInit := strings.SplitN(parts[1], " = ", 2)
	u.typeText = strings.TrimSpace(typeAndInit[0])
	if len(typeAndInit) == 2 {
		u.hasInit = true
		u.initText = strings.TrimSpace(typeAndInit[1])
	}
	return u, nil
}

func parseDefineHeader(ln int, line string) (unit, error) {
	rest := strings.TrimPrefix(line, "define @")
	open := strings.Index(rest, "(")
	if open < 0 {
		return unit{}, parseErr(ln, "malformed define line: %q", line)
	}
	name := strings.TrimSpace(rest[:open])
	close, ok := findBalancedClose(rest, open, '(', ')')
	if !ok {
		return unit{}, parseErr(ln, "unbalanced parens in define line: %q", line)
	}
	argsText := rest[open+1 : close]
	tail := strings.TrimSpace(rest[close+1:])
	tail = strings.TrimPrefix(tail, "->")
	u := unit{kind: "define", line: ln, name: name, retTypeText: strings.TrimSpace(tail)}
	for _, a := range splitTopLevel(argsText, ',') {
		if a == "" {
			continue
		}
		if a == "..." {
			u.vararg = true
			continue
		}
		u.argTypeTexts = append(u.argTypeTexts, a)
	}
	return u, nil
}

// --- Pass 1: declare every global's shell, so every name resolves ---

func (r *reader) declareShells(units []unit) error {
	for _, u := range units {
		switch u.kind {
		case "define", "declare":
			if err := r.declareFuncShell(u); err != nil {
				return err
			}
		case "global", "constant":
			t, err := parseType(r.m.Types, u.typeText)
			if err != nil {
				return err
			}
			_, err = r.m.DeclareGlobal(ssair.VarGlobal{
				Name: u.name, Linkage: ssair.LinkageExternal,
				Type: t, Init: value.None{}, IsConstant: u.kind == "constant",
			})
			if err != nil {
				return parseErr(u.line, "%s", err)
			}
		case "alias":
			// Target may not be declared yet; filled in pass 2.
			_, err := r.m.DeclareGlobal(ssair.AliasGlobal{Name: u.name, Linkage: ssair.LinkageExternal})
			if err != nil {
				return parseErr(u.line, "%s", err)
			}
		}
	}
	return nil
}

func (r *reader) declareFuncShell(u unit) error {
	if u.kind == "declare" {
		_, err := r.m.DeclareGlobal(ssair.FuncGlobal{Name: u.name, Linkage: ssair.LinkageExternal})
		if err != nil {
			return parseErr(u.line, "%s", err)
		}
		return nil
	}
	argTypes := make([]types.ID, len(u.argTypeTexts))
	for i, t := range u.argTypeTexts {
		pt, err := parseType(r.m.Types, t)
		if err != nil {
			return err
		}
		argTypes[i] = pt
	}
	retType, err := parseType(r.m.Types, u.retTypeText)
	if err != nil {
		return err
	}
	fr, err := r.b.NewFunction(u.name, argTypes, retType, u.vararg, ssair.LinkageExternal)
	if err != nil {
		return parseErr(u.line, "%s", err)
	}
	// NewFunction names its entry block "entry"; rename it, and append the
	// rest of this function's blocks now so later forward references (a
	// jump to a block defined further down in the text, a phi incoming
	// from a loop back-edge) always resolve against a complete block map.
	if len(u.blocks) == 0 {
		return parseErr(u.line, "define %s has no blocks", u.name)
	}
	entry, _ := r.m.Funcs.Get(fr.Ref)
	entryBr := entry.Blocks.Head()
	blk, _ := r.m.Blocks.Get(entryBr)
	blk.Name = u.blocks[0].name
	r.m.Blocks.Set(entryBr, blk)
	for _, bu := range u.blocks[1:] {
		if _, err := r.b.NewBlock(bu.name); err != nil {
			return parseErr(u.line, "%s", err)
		}
	}
	return nil
}

// --- Pass 2: fill in initializers, alias targets, and function bodies ---

func (r *reader) fillBodies(units []unit) error {
	for _, u := range units {
		switch u.kind {
		case "global", "constant":
			if !u.hasInit {
				continue
			}
			gr, _ := r.m.LookupGlobal(u.name)
			g, _ := r.m.Globals.Get(gr.Ref)
			vg := g.(ssair.VarGlobal)
			v, _, err := r.resolveGlobalValue(u.initText, vg.Type)
			if err != nil {
				return parseErr(u.line, "%s", err)
			}
			vg.Init = v
			r.m.Globals.Set(gr.Ref, vg)
		case "alias":
			gr, _ := r.m.LookupGlobal(u.name)
			g, _ := r.m.Globals.Get(gr.Ref)
			ag := g.(ssair.AliasGlobal)
			tgt, ok := r.m.LookupGlobal(u.target)
			if !ok {
				return parseErr(u.line, "alias target @%s not declared", u.target)
			}
			ag.Target = tgt
			r.m.Globals.Set(gr.Ref, ag)
		case "define":
			if err := r.fillFunction(u); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *reader) fillFunction(u unit) error {
	gr, _ := r.m.LookupGlobal(u.name)
	g, _ := r.m.Globals.Get(gr.Ref)
	fg := g.(ssair.FuncGlobal)
	r.curFunc = fg.Func
	r.b.FocusFunc(fg.Func)

	fn, _ := r.m.Funcs.Get(fg.Func.Ref)
	r.blocks = map[string]value.BlockRef{}
	i := 0
	for br := fn.Blocks.Head(); br.Valid(); br = fn.Blocks.Next(ssair.BlockAccessors(r.m.Blocks), br) {
		blk, _ := r.m.Blocks.Get(br)
		r.blocks[blk.Name] = value.BlockRef{Ref: br}
		i++
	}
	r.values = map[string]value.Value{}
	r.patches = nil

	for _, bu := range u.blocks {
		br := r.blocks[bu.name]
		r.b.FocusBlock(br)
		for _, lt := range bu.insts {
			if err := r.buildInst(lt); err != nil {
				return err
			}
		}
	}

	for _, p := range r.patches {
		v, ok := r.values[p.name]
		if !ok {
			return parseErr(p.line, "%s", &ssaerr.UnresolvedName{Name: p.name})
		}
		r.m.RetargetOperand(p.use, v)
	}
	return nil
}

// patchOperands registers any pending (forward-referenced) operand slots
// of the just-built instruction ref for retargeting once the whole
// function has been parsed, by reading back the slot's real UseRef.
func (r *reader) patchOperands(ref value.InstRef, pending map[int]string, line int) {
	if len(pending) == 0 {
		return
	}
	inst, ok := r.m.Insts.Get(ref.Ref)
	if !ok {
		return
	}
	for idx, name := range pending {
		if idx < 0 || idx >= len(inst.Operands) {
			continue
		}
		r.patches = append(r.patches, patch{use: inst.Operands[idx], name: name, line: line})
	}
}

func parseAlign(s string) (uint8, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "align"))
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, &ssaerr.ParseError{Msg: "malformed align clause"}
	}
	log2 := uint8(0)
	for (1 << log2) < n {
		log2++
	}
	return log2, nil
}
