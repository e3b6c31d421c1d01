// Package asmemit renders a final, fully-lowered mir.Module as AArch64
// GAS-syntax text (spec §4.12): section/alignment directives on change,
// globals with their data directives, functions with one label per block,
// switch jump tables, and `.extern` for every symbol the module references
// but never defines. It generalizes the teacher's pkg/asm.Printer, which
// prints a fixed MReg/Instruction set produced directly by instruction
// selection, to this project's own mir package and its ABI-driven
// pseudo-ops (MirCall, MirCopy*, MirStImm, MirGEP, Jtable) that still need
// expanding into real AArch64 mnemonics at print time.
package asmemit

import (
	"fmt"
	"io"
	"sort"

	"github.com/ssair-lang/ssair/pkg/mir"
)

// Printer writes one mir.Module to w.
type Printer struct {
	w io.Writer

	haveSection bool
	curSection  mir.Section

	curFunc       string
	jtableIdx     int
	pendingTables []jumpTable

	// externs holds every symbol name printed as `.extern`: addresses of
	// these route through a GOT-indirect load rather than a direct
	// adrp+add, since the linker can only fix up a GOT slot for a symbol
	// with no known local address.
	externs map[string]bool
}

type jumpTable struct {
	label   string
	entries []string
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintModule writes m in full. It errors without writing anything if m
// has no defined "main" function, per spec §4.12.
func (p *Printer) PrintModule(m *mir.Module) error {
	if !hasMain(m) {
		return fmt.Errorf("asmemit: module has no defined main function")
	}

	externs := externSymbols(m)
	p.externs = make(map[string]bool, len(externs))
	for _, sym := range externs {
		p.externs[sym] = true
		fmt.Fprintf(p.w, "\t.extern\t%s\n", sym)
	}

	for _, g := range m.Globals {
		if g.IsExtern {
			continue
		}
		p.switchSection(g.Section)
		p.printGlobal(g)
	}

	for _, fn := range m.Functions {
		p.printFunction(fn)
	}
	return nil
}

func hasMain(m *mir.Module) bool {
	for _, fn := range m.Functions {
		if fn.Name == "main" {
			return true
		}
	}
	return false
}

// externSymbols collects every symbol a MirCall or a GlobalAddr operand
// names that this module never defines: the direct-declaration globals
// translate.go already flagged IsExtern, plus any function or global
// symbol referenced only through a call target or an address operand.
func externSymbols(m *mir.Module) []string {
	defined := map[string]bool{}
	for _, fn := range m.Functions {
		defined[fn.Name] = true
	}
	for _, g := range m.Globals {
		if !g.IsExtern {
			defined[g.Name] = true
		}
	}

	seen := map[string]bool{}
	var out []string
	add := func(name string) {
		if name == "" || defined[name] || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	for _, g := range m.Globals {
		if g.IsExtern {
			add(g.Name)
		}
	}
	for _, fn := range m.Functions {
		for _, blk := range fn.Blocks {
			for _, inst := range blk.Code {
				uses, defs := mir.Operands(inst)
				for _, op := range uses {
					if ga, ok := op.(mir.GlobalAddr); ok {
						add(ga.Symbol)
					}
				}
				for _, op := range defs {
					if ga, ok := op.(mir.GlobalAddr); ok {
						add(ga.Symbol)
					}
				}
				if call, ok := inst.(mir.MirCall); ok && call.CalleeReg == nil {
					add(call.Callee)
				}
			}
		}
	}
	sort.Strings(out)
	return out
}

func (p *Printer) switchSection(s mir.Section) {
	if p.haveSection && p.curSection == s {
		return
	}
	p.haveSection = true
	p.curSection = s
	fmt.Fprintf(p.w, "\t%s\n", s.String())
}

// log2 returns n's base-2 logarithm, assuming n is a power of two.
func log2(n int64) int {
	r := 0
	for n > 1 {
		n >>= 1
		r++
	}
	return r
}

func (p *Printer) printGlobal(g mir.Global) {
	if g.Align > 1 {
		fmt.Fprintf(p.w, "\t.p2align\t%d\n", log2(g.Align))
	}
	fmt.Fprintf(p.w, "\t.global\t%s\n", g.Name)
	fmt.Fprintf(p.w, "\t.type\t%s, @object\n", g.Name)
	fmt.Fprintf(p.w, "%s:\n", g.Name)
	p.printDirectives(g.Directives)
	fmt.Fprintf(p.w, "\t.size\t%s, %d\n", g.Name, g.Size)
}

// printDirectives renders g's data directives, opportunistically folding
// a run of single-byte directives into one `.asciz` when it is NUL-
// terminated and otherwise printable (spec §4.12).
func (p *Printer) printDirectives(dirs []mir.Directive) {
	i := 0
	for i < len(dirs) {
		if text, count, ok := asciizRun(dirs[i:]); ok {
			fmt.Fprintf(p.w, "\t.asciz\t%q\n", text)
			i += count
			continue
		}
		d := dirs[i]
		switch d.Kind {
		case mir.DByte:
			fmt.Fprintf(p.w, "\t.byte\t%d\n", d.Bytes[0])
		case mir.DHalf:
			fmt.Fprintf(p.w, "\t.half\t%d\n", leToUint(d.Bytes))
		case mir.DWord:
			fmt.Fprintf(p.w, "\t.word\t%d\n", leToUint(d.Bytes))
		case mir.DDword:
			fmt.Fprintf(p.w, "\t.dword\t%d\n", leToUint(d.Bytes))
		case mir.DZero:
			fmt.Fprintf(p.w, "\t.zero\t%d\n", d.Count)
		case mir.DAsciz:
			fmt.Fprintf(p.w, "\t.asciz\t%q\n", string(d.Bytes))
		}
		i++
	}
}

// asciizRun reports whether dirs starts with a run of DByte directives
// that is NUL-terminated and otherwise printable ASCII, returning the
// string (NUL excluded) and how many directives the run consumed.
func asciizRun(dirs []mir.Directive) (string, int, bool) {
	var bytes []byte
	for _, d := range dirs {
		if d.Kind != mir.DByte {
			break
		}
		bytes = append(bytes, d.Bytes[0])
		if d.Bytes[0] == 0 {
			break
		}
	}
	if len(bytes) < 2 || bytes[len(bytes)-1] != 0 {
		return "", 0, false
	}
	for _, b := range bytes[:len(bytes)-1] {
		if b < 0x20 || b > 0x7e {
			return "", 0, false
		}
	}
	return string(bytes[:len(bytes)-1]), len(bytes), true
}

func leToUint(b []byte) uint64 {
	var v uint64
	for i, x := range b {
		v |= uint64(x) << (8 * uint(i))
	}
	return v
}
