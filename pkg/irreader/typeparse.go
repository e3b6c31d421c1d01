package irreader

import (
	"strconv"
	"strings"

	"github.com/ssair-lang/ssair/pkg/ssaerr"
	"github.com/ssair-lang/ssair/pkg/types"
)

// parseType parses one of printer.go's typeName forms. Struct-alias types
// ("%name") are not accepted: the writer never emits a definition line for
// the name's target structure, so no text this reader sees carries enough
// information to re-intern the alias.
func parseType(ctx *types.Context, s string) (types.ID, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "void":
		return types.Void, nil
	case s == "ptr":
		return types.Ptr, nil
	case s == "f32":
		return types.Float(types.IEEE32), nil
	case s == "f64":
		return types.Float(types.IEEE64), nil
	case strings.HasPrefix(s, "i") && isAllDigits(s[1:]):
		bits, err := strconv.Atoi(s[1:])
		if err != nil {
			return types.ID{}, &ssaerr.ParseError{Msg: "bad integer type " + s}
		}
		return types.Int(bits), nil
	case strings.HasPrefix(s, "%"):
		return types.ID{}, &ssaerr.UnsupportedConstruct{What: "struct-alias type reference " + s}
	case strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]"):
		return parseArrayType(ctx, s)
	case strings.HasPrefix(s, "<{") && strings.HasSuffix(s, "}>"):
		return parseStructType(ctx, s[1:len(s)-1], true)
	case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
		return parseStructType(ctx, s, false)
	case strings.Contains(s, "("):
		return parseFuncType(ctx, s)
	}
	return types.ID{}, &ssaerr.ParseError{Msg: "unrecognized type " + s}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseArrayType parses "[N x T]".
func parseArrayType(ctx *types.Context, s string) (types.ID, error) {
	inner := s[1 : len(s)-1]
	i := strings.Index(inner, " x ")
	if i < 0 {
		return types.ID{}, &ssaerr.ParseError{Msg: "malformed array type " + s}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(inner[:i]), 10, 64)
	if err != nil {
		return types.ID{}, &ssaerr.ParseError{Msg: "malformed array length in " + s}
	}
	elem, err := parseType(ctx, inner[i+3:])
	if err != nil {
		return types.ID{}, err
	}
	return ctx.InternArray(elem, n), nil
}

// parseStructType parses "{T1, T2, ...}" (braces already present in s for
// the unpacked form, stripped by the caller for the packed "<{...}>" form).
func parseStructType(ctx *types.Context, s string, packed bool) (types.ID, error) {
	inner := strings.TrimSuffix(strings.TrimPrefix(s, "{"), "}")
	parts := splitTopLevel(inner, ',')
	fields := make([]types.ID, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		t, err := parseType(ctx, p)
		if err != nil {
			return types.ID{}, err
		}
		fields = append(fields, t)
	}
	return ctx.InternStruct(fields, packed), nil
}

// parseFuncType parses "RET (ARG, ARG, ...)": typeName's rendering of a
// KindFunc type, distinct from a `define` header line's own
// "(ARGS) -> RET" syntax.
func parseFuncType(ctx *types.Context, s string) (types.ID, error) {
	open := strings.Index(s, "(")
	if open < 0 {
		return types.ID{}, &ssaerr.ParseError{Msg: "malformed func type " + s}
	}
	close, ok := findBalancedClose(s, open, '(', ')')
	if !ok {
		return types.ID{}, &ssaerr.ParseError{Msg: "unbalanced parens in func type " + s}
	}
	ret, err := parseType(ctx, s[:open])
	if err != nil {
		return types.ID{}, err
	}
	argParts := splitTopLevel(s[open+1:close], ',')
	args := make([]types.ID, 0, len(argParts))
	vararg := false
	for _, a := range argParts {
		if a == "" {
			continue
		}
		if a == "..." {
			vararg = true
			continue
		}
		t, err := parseType(ctx, a)
		if err != nil {
			return types.ID{}, err
		}
		args = append(args, t)
	}
	return ctx.InternFunc(ret, args, vararg), nil
}
