package irreader

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/ssair"
	"github.com/ssair-lang/ssair/pkg/types"
	"github.com/ssair-lang/ssair/pkg/value"
)

// resolveGlobalValue resolves a global initializer's value text. Globals
// never forward-reference a not-yet-built instruction, so this never
// needs the patch mechanism function bodies use; it does still need
// inferredType for a bare numeric literal, since ConstData carries its own
// Type and the literal's text alone doesn't encode width/float-kind.
func (r *reader) resolveGlobalValue(text string, inferredType types.ID) (value.Value, bool, error) {
	return r.resolveValueText(text, inferredType, nil)
}

// resolveOperand resolves one function-body operand. If text names a vN
// not yet built (a phi incoming value from a later block), it returns a
// value.None{} placeholder and records the pending name in pending[slot]
// for the caller to register with patchOperands once the real
// instruction exists.
func (r *reader) resolveOperand(text string, inferredType types.ID, slot int, pending map[int]string) (value.Value, error) {
	v, fwd, err := r.resolveValueText(text, inferredType, r.blocks)
	if err != nil {
		return nil, err
	}
	if fwd != "" {
		pending[slot] = fwd
		return value.None{}, nil
	}
	return v, nil
}

// resolveValueText implements every valueText form printer.go emits
// except constexpr(N), which the writer itself cannot reconstruct from
// (the arena index it prints has no re-readable structural content) and
// is therefore explicitly out of scope here too. blocks is nil when
// resolving a global initializer, where a bare block-name value can never
// legally occur.
func (r *reader) resolveValueText(text string, inferredType types.ID, blocks map[string]value.BlockRef) (value.Value, string, error) {
	text = strings.TrimSpace(text)
	switch {
	case text == "none":
		return value.None{}, "", nil
	case text == "undef":
		return value.ConstData{Kind: value.ConstUndef, Type: inferredType}, "", nil
	case text == "null":
		return value.ConstData{Kind: value.ConstNullPtr, Type: inferredType}, "", nil
	case text == "zeroinitializer":
		return value.ConstData{Kind: value.ConstZero, Type: inferredType}, "", nil
	case strings.HasPrefix(text, "zeroinitializer : "):
		t, err := parseType(r.m.Types, strings.TrimPrefix(text, "zeroinitializer : "))
		if err != nil {
			return nil, "", err
		}
		return value.AggrZero{Type: t}, "", nil
	case strings.HasPrefix(text, "constexpr("):
		return nil, "", &ssaerr.UnsupportedConstruct{What: "constant expression " + text}
	case strings.HasPrefix(text, "@"):
		name := strings.TrimPrefix(text, "@")
		gr, ok := r.m.LookupGlobal(name)
		if !ok {
			return nil, "", &ssaerr.UnresolvedName{Name: text}
		}
		return value.Global{Ref: gr}, "", nil
	case strings.HasPrefix(text, "arg") && isAllDigits(text[3:]):
		idx, _ := strconv.Atoi(text[3:])
		return value.FuncArg{Func: r.curFunc, Index: uint32(idx)}, "", nil
	case strings.HasPrefix(text, "v") && isAllDigits(text[1:]):
		if v, ok := r.values[text]; ok {
			return v, "", nil
		}
		return value.None{}, text, nil
	default:
		if br, ok := blocks[text]; ok {
			return value.Block{Ref: br}, "", nil
		}
		return parseLiteral(text, inferredType)
	}
}

func parseLiteral(text string, inferredType types.ID) (value.Value, string, error) {
	if isIntLiteral(text) {
		n := new(big.Int)
		if _, ok := n.SetString(text, 10); !ok {
			return nil, "", &ssaerr.ParseError{Msg: "malformed integer literal " + text}
		}
		t := inferredType
		if t.Kind() != types.KindInt {
			t = types.Int(64)
		}
		return value.ConstData{Kind: value.ConstInt, Type: t, Int: n}, "", nil
	}
	if isFloatLiteral(text) {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, "", &ssaerr.ParseError{Msg: "malformed float literal " + text}
		}
		t := inferredType
		if t.Kind() != types.KindFloat {
			t = types.Float(types.IEEE64)
		}
		return value.ConstData{Kind: value.ConstFloat, Type: t, Float: f}, "", nil
	}
	return nil, "", &ssaerr.UnresolvedName{Name: text}
}

func isIntLiteral(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	return isAllDigits(s)
}

func isFloatLiteral(s string) bool {
	if s == "" {
		return false
	}
	if s[0] == '-' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	dot := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c == '.' && !dot:
			dot = true
		case (c == 'e' || c == 'E') && i > 0:
		case c == '+' || c == '-':
		default:
			return false
		}
	}
	return dot
}

// cmpFlagWords is the set of words operandText's CmpPayload case can emit
// for CmpFlags, used to tell a flags token apart from the start of a
// value operand when parsing an icmp/fcmp line.
var cmpFlagWords = map[string]bool{"signed": true, "unsigned": true, "ordered": true, "unordered": true}

func looksLikeFlags(tok string) bool {
	for _, w := range strings.Split(tok, "|") {
		if !cmpFlagWords[w] {
			return false
		}
	}
	return true
}

func parseCmpFlags(tok string) (flags ssair.CmpFlags) {
	for _, w := range strings.Split(tok, "|") {
		switch w {
		case "signed":
			flags |= ssair.CmpSigned
		case "unsigned":
			flags |= ssair.CmpUnsigned
		case "ordered":
			flags |= ssair.CmpOrdered
		case "unordered":
			flags |= ssair.CmpUnordered
		}
	}
	return flags
}
