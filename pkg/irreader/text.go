package irreader

import (
	"fmt"
	"strings"

	"github.com/ssair-lang/ssair/pkg/ssaerr"
)

// splitTopLevel splits s on every occurrence of sep that is not nested
// inside (), [], {}, or <>, mirroring the nesting printer.go's own
// joinComma-based operand/type lists can produce (a struct type's fields,
// an array's element type, a switch's case list). An empty s yields nil,
// matching joinComma's own "no parts" behavior.
func splitTopLevel(s string, sep byte) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if s[i] == '>' && i > 0 && s[i-1] == '-' {
				continue // the "->" arrow of a switch case, not a bracket
			}
			depth--
		default:
			if s[i] == sep && depth == 0 {
				parts = append(parts, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(s[start:]))
	return parts
}

// findBalancedClose returns the index (within s) of the close byte that
// matches the open byte at s[openIdx], counting only that bracket pair's
// nesting depth.
func findBalancedClose(s string, openIdx int, open, close byte) (int, bool) {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}

// lastTopLevelIndex finds the last occurrence of sep not nested inside a
// bracket pair, used to split an instruction line's trailing " : TYPE"
// from its operand text.
func lastTopLevelIndex(s, sep string) int {
	depth := 0
	last := -1
	for i := 0; i+len(sep) <= len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			depth--
		}
		if depth == 0 && s[i:i+len(sep)] == sep {
			last = i
		}
	}
	return last
}

func parseErr(line int, format string, args ...interface{}) error {
	return &ssaerr.ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
