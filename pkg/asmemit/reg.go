package asmemit

import (
	"fmt"

	"github.com/ssair-lang/ssair/pkg/mir"
)

// regName64 is r's 64-bit GAS name (xN, or sp).
func regName64(r mir.PReg) string {
	return r.String()
}

// regName32 is r's 32-bit GAS name (wN, or wsp), derived from the
// 64-bit name PReg.String() already produces.
func regName32(r mir.PReg) string {
	if r == mir.SP {
		return "wsp"
	}
	return "w" + r.String()[1:]
}

func regName(r mir.PReg, is64 bool) string {
	if is64 {
		return regName64(r)
	}
	return regName32(r)
}

// floatRegName is r's GAS name in the requested width (dN or sN); r is
// always a D-register identity, since this backend never allocates a
// separate S-register file.
func floatRegName(r mir.PReg, isDouble bool) string {
	idx := int(r - mir.D0)
	if isDouble {
		return fmt.Sprintf("d%d", idx)
	}
	return fmt.Sprintf("s%d", idx)
}
