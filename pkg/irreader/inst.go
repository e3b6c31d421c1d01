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

var binOpOpcodes = map[string]ssair.Opcode{
	"add": ssair.OpAdd, "sub": ssair.OpSub, "mul": ssair.OpMul,
	"sdiv": ssair.OpSdiv, "udiv": ssair.OpUdiv, "srem": ssair.OpSrem, "urem": ssair.OpUrem,
	"shl": ssair.OpShl, "lshr": ssair.OpLshr, "ashr": ssair.OpAshr,
	"and": ssair.OpBitAnd, "or": ssair.OpBitOr, "xor": ssair.OpBitXor,
	"fadd": ssair.OpFAdd, "fsub": ssair.OpFSub, "fmul": ssair.OpFMul, "fdiv": ssair.OpFDiv,
}

var castOpcodes = map[string]ssair.Opcode{
	"zext": ssair.OpZext, "sext": ssair.OpSext, "trunc": ssair.OpTrunc,
	"fpext": ssair.OpFpext, "fptrunc": ssair.OpFptrunc, "bitcast": ssair.OpBitcast,
	"ptrtoint": ssair.OpPtrToInt, "inttoptr": ssair.OpIntToPtr,
	"sitofp": ssair.OpSitofp, "uitofp": ssair.OpUitofp,
	"fptosi": ssair.OpFptosi, "fptoui": ssair.OpFptoui,
}

// buildInst parses and inserts one instruction or terminator line into the
// currently focused block.
func (r *reader) buildInst(lt lineText) error {
	text, line := lt.text, lt.line

	resultName := ""
	rest := text
	if eq := vEqPrefix(text); eq != "" {
		resultName = eq
		rest = strings.TrimSpace(text[len(eq)+3:])
	}

	sp := strings.IndexByte(rest, ' ')
	var opWord, afterOp string
	if sp < 0 {
		opWord, afterOp = rest, ""
	} else {
		opWord, afterOp = rest[:sp], strings.TrimSpace(rest[sp+1:])
	}

	hasResult := resultName != ""
	operandsText := afterOp
	var typeText string
	if hasResult {
		idx := lastTopLevelIndex(afterOp, " : ")
		if idx < 0 {
			return parseErr(line, "missing result type on %q", text)
		}
		operandsText = strings.TrimSpace(afterOp[:idx])
		typeText = strings.TrimSpace(afterOp[idx+len(" : "):])
	}

	var resultType types.ID
	if hasResult {
		t, err := parseType(r.m.Types, typeText)
		if err != nil {
			return parseErr(line, "%s", err)
		}
		resultType = t
	}

	pending := map[int]string{}
	var ref value.InstRef
	var err error

	binOp, isBinOp := binOpOpcodes[opWord]
	castOp, isCastOp := castOpcodes[opWord]

	switch {
	case opWord == "ret" || opWord == "jump" || opWord == "br" || opWord == "switch" || opWord == "unreachable":
		return r.buildTerminator(line, opWord, operandsText, pending)
	case isBinOp:
		ref, err = r.buildBinOp(line, binOp, resultType, operandsText, pending)
	case isCastOp:
		ref, err = r.buildCast(line, castOp, resultType, operandsText, pending)
	case opWord == "icmp" || opWord == "fcmp":
		op := ssair.OpIcmp
		if opWord == "fcmp" {
			op = ssair.OpFcmp
		}
		ref, err = r.buildCmp(line, op, operandsText, pending)
	case opWord == "alloca":
		ref, err = r.buildAlloca(line, operandsText)
	case opWord == "load":
		ref, err = r.buildLoad(line, resultType, operandsText, pending)
	case opWord == "store":
		ref, err = r.buildStore(line, operandsText, pending)
	case opWord == "gep":
		ref, err = r.buildGep(line, operandsText, pending)
	case opWord == "select":
		ref, err = r.buildSelect(line, resultType, operandsText, pending)
	case opWord == "call":
		ref, err = r.buildCall(line, resultType, operandsText, pending)
	case opWord == "amormw":
		ref, err = r.buildAmoRmw(line, resultType, operandsText, pending)
	case opWord == "phi":
		ref, err = r.buildPhi(line, resultType, operandsText, pending)
	case opWord == "indexextract" || opWord == "indexinsert" || opWord == "fieldextract" || opWord == "fieldinsert":
		return &ssaerr.UnsupportedConstruct{What: "aggregate opcode " + opWord + " (no builder support exists for it)"}
	default:
		return parseErr(line, "unrecognized opcode %q", opWord)
	}
	if err != nil {
		return err
	}

	r.patchOperands(ref, pending, line)
	if resultName != "" {
		r.values[resultName] = value.Inst{Ref: ref}
	}
	return nil
}

// vEqPrefix reports the vN name if text starts with "vN = ", else "".
func vEqPrefix(text string) string {
	sp := strings.IndexByte(text, ' ')
	if sp < 0 || text[0] != 'v' || !isAllDigits(text[1:sp]) {
		return ""
	}
	if !strings.HasPrefix(text[sp:], " = ") {
		return ""
	}
	return text[:sp]
}

func (r *reader) buildBinOp(line int, opcode ssair.Opcode, resultType types.ID, operandsText string, pending map[int]string) (value.InstRef, error) {
	parts := splitTopLevel(operandsText, ',')
	if len(parts) != 2 {
		return value.InstRef{}, parseErr(line, "binop expects 2 operands, got %d", len(parts))
	}
	lhs, err := r.resolveOperand(parts[0], resultType, 0, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	rhs, err := r.resolveOperand(parts[1], resultType, 1, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ref, err := r.b.BinOp(opcode, resultType, lhs, rhs)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func (r *reader) buildCast(line int, opcode ssair.Opcode, resultType types.ID, operandsText string, pending map[int]string) (value.InstRef, error) {
	src, err := r.resolveOperand(operandsText, resultType, 0, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ref, err := r.b.Cast(opcode, resultType, src)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func parseCmpCond(tok string) (ssair.CmpCond, bool) {
	switch tok {
	case "lt":
		return ssair.CmpLT, true
	case "eq":
		return ssair.CmpEQ, true
	case "gt":
		return ssair.CmpGT, true
	case "le":
		return ssair.CmpLE, true
	case "ne":
		return ssair.CmpNE, true
	case "ge":
		return ssair.CmpGE, true
	case "always":
		return ssair.CmpALWAYS, true
	case "never":
		return ssair.CmpNEVER, true
	}
	return 0, false
}

func (r *reader) buildCmp(line int, opcode ssair.Opcode, operandsText string, pending map[int]string) (value.InstRef, error) {
	sp := strings.IndexByte(operandsText, ' ')
	if sp < 0 {
		return value.InstRef{}, parseErr(line, "malformed compare operands %q", operandsText)
	}
	condTok, remainder := operandsText[:sp], strings.TrimSpace(operandsText[sp+1:])
	cond, ok := parseCmpCond(condTok)
	if !ok {
		return value.InstRef{}, parseErr(line, "unknown compare condition %q", condTok)
	}
	var flags ssair.CmpFlags
	if sp2 := strings.IndexByte(remainder, ' '); sp2 > 0 {
		tok2 := remainder[:sp2]
		if looksLikeFlags(tok2) {
			flags = parseCmpFlags(tok2)
			remainder = strings.TrimSpace(remainder[sp2+1:])
		}
	}
	parts := splitTopLevel(remainder, ',')
	if len(parts) != 2 {
		return value.InstRef{}, parseErr(line, "compare expects 2 operands, got %d", len(parts))
	}
	lhs, err := r.resolveOperand(parts[0], types.ID{}, 0, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	rhs, err := r.resolveOperand(parts[1], types.ID{}, 1, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ref, err := r.b.Cmp(opcode, cond, flags, lhs, rhs)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func (r *reader) buildAlloca(line int, operandsText string) (value.InstRef, error) {
	parts := splitTopLevel(operandsText, ',')
	if len(parts) != 2 {
		return value.InstRef{}, parseErr(line, "alloca expects \"TYPE, align N\", got %q", operandsText)
	}
	elemType, err := parseType(r.m.Types, parts[0])
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	align, err := parseAlign(parts[1])
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ref, err := r.b.Alloca(elemType, align)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func (r *reader) buildLoad(line int, resultType types.ID, operandsText string, pending map[int]string) (value.InstRef, error) {
	parts := splitTopLevel(operandsText, ',')
	if len(parts) != 2 {
		return value.InstRef{}, parseErr(line, "load expects \"PTR, align N\", got %q", operandsText)
	}
	ptr, err := r.resolveOperand(parts[0], types.Ptr, 0, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	align, err := parseAlign(parts[1])
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ref, err := r.b.Load(resultType, ptr, align)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func (r *reader) buildStore(line int, operandsText string, pending map[int]string) (value.InstRef, error) {
	parts := splitTopLevel(operandsText, ',')
	if len(parts) != 3 {
		return value.InstRef{}, parseErr(line, "store expects \"VAL, PTR, align N\", got %q", operandsText)
	}
	val, err := r.resolveOperand(parts[0], types.ID{}, 0, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ptr, err := r.resolveOperand(parts[1], types.Ptr, 1, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	align, err := parseAlign(parts[2])
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ref, err := r.b.Store(val, ptr, align)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func (r *reader) buildGep(line int, operandsText string, pending map[int]string) (value.InstRef, error) {
	parts := splitTopLevel(operandsText, ',')
	if len(parts) < 2 {
		return value.InstRef{}, parseErr(line, "gep expects \"BASETYPE, BASE, ...\", got %q", operandsText)
	}
	baseType, err := parseType(r.m.Types, parts[0])
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	base, err := r.resolveOperand(parts[1], types.Ptr, 0, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	indices := make([]value.Value, len(parts)-2)
	for i, p := range parts[2:] {
		v, err := r.resolveOperand(p, types.ID{}, 1+i, pending)
		if err != nil {
			return value.InstRef{}, parseErr(line, "%s", err)
		}
		indices[i] = v
	}
	ref, err := r.b.Gep(baseType, base, indices)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func (r *reader) buildSelect(line int, resultType types.ID, operandsText string, pending map[int]string) (value.InstRef, error) {
	parts := splitTopLevel(operandsText, ',')
	if len(parts) != 3 {
		return value.InstRef{}, parseErr(line, "select expects 3 operands, got %d", len(parts))
	}
	cond, err := r.resolveOperand(parts[0], types.Int(1), 0, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	t, err := r.resolveOperand(parts[1], resultType, 1, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	f, err := r.resolveOperand(parts[2], resultType, 2, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ref, err := r.b.Select(resultType, cond, t, f)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func (r *reader) buildCall(line int, resultType types.ID, operandsText string, pending map[int]string) (value.InstRef, error) {
	isTail := false
	if strings.HasPrefix(operandsText, "tail ") {
		isTail = true
		operandsText = strings.TrimPrefix(operandsText, "tail ")
	}
	if !strings.HasPrefix(operandsText, "[") {
		return value.InstRef{}, parseErr(line, "malformed call, expected [CALLEETYPE]: %q", operandsText)
	}
	close, ok := findBalancedClose(operandsText, 0, '[', ']')
	if !ok {
		return value.InstRef{}, parseErr(line, "unbalanced [] in call: %q", operandsText)
	}
	calleeType, err := parseType(r.m.Types, operandsText[1:close])
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	remainder := strings.TrimSpace(operandsText[close+1:])
	popen := strings.IndexByte(remainder, '(')
	if popen < 0 {
		return value.InstRef{}, parseErr(line, "malformed call, missing arg list: %q", remainder)
	}
	calleeText := strings.TrimSpace(remainder[:popen])
	pclose, ok := findBalancedClose(remainder, popen, '(', ')')
	if !ok {
		return value.InstRef{}, parseErr(line, "unbalanced () in call: %q", remainder)
	}
	callee, err := r.resolveOperand(calleeText, types.Ptr, 0, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	argTexts := splitTopLevel(remainder[popen+1:pclose], ',')
	args := make([]value.Value, 0, len(argTexts))
	for i, a := range argTexts {
		if a == "" {
			continue
		}
		v, err := r.resolveOperand(a, types.ID{}, 1+i, pending)
		if err != nil {
			return value.InstRef{}, parseErr(line, "%s", err)
		}
		args = append(args, v)
	}
	ref, err := r.b.Call(resultType, calleeType, callee, args, isTail)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func parseAmoOp(tok string) (ssair.AmoOp, bool) {
	names := map[string]ssair.AmoOp{
		"xchg": ssair.AmoXchg, "add": ssair.AmoAdd, "sub": ssair.AmoSub, "and": ssair.AmoAnd,
		"nand": ssair.AmoNand, "or": ssair.AmoOr, "xor": ssair.AmoXor,
		"smax": ssair.AmoSmax, "smin": ssair.AmoSmin, "umax": ssair.AmoUmax, "umin": ssair.AmoUmin,
		"fadd": ssair.AmoFAdd, "fsub": ssair.AmoFSub, "fmax": ssair.AmoFMax, "fmin": ssair.AmoFMin,
		"uinc_wrap": ssair.AmoUincWrap, "udec_wrap": ssair.AmoUdecWrap,
		"usub_cond": ssair.AmoUsubCond, "usub_stat": ssair.AmoUsubStat,
	}
	op, ok := names[tok]
	return op, ok
}

func parseOrdering(tok string) (ssair.Ordering, bool) {
	switch tok {
	case "relaxed":
		return ssair.OrderRelaxed, true
	case "acquire":
		return ssair.OrderAcquire, true
	case "release":
		return ssair.OrderRelease, true
	case "acq_rel":
		return ssair.OrderAcqRel, true
	case "seq_cst":
		return ssair.OrderSeqCst, true
	}
	return 0, false
}

func parseScope(tok string) (ssair.Scope, bool) {
	switch tok {
	case "system":
		return ssair.ScopeSystem, true
	case "device":
		return ssair.ScopeDevice, true
	case "workgroup":
		return ssair.ScopeWorkgroup, true
	}
	return 0, false
}

func (r *reader) buildAmoRmw(line int, resultType types.ID, operandsText string, pending map[int]string) (value.InstRef, error) {
	sp := strings.IndexByte(operandsText, ' ')
	if sp < 0 {
		return value.InstRef{}, parseErr(line, "malformed amormw operands %q", operandsText)
	}
	opTok, rest := operandsText[:sp], strings.TrimSpace(operandsText[sp+1:])
	op, ok := parseAmoOp(opTok)
	if !ok {
		return value.InstRef{}, parseErr(line, "unknown atomic op %q", opTok)
	}
	parts := splitTopLevel(rest, ',')
	if len(parts) != 5 {
		return value.InstRef{}, parseErr(line, "amormw expects 5 fields, got %d", len(parts))
	}
	ptr, err := r.resolveOperand(parts[0], types.Ptr, 0, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	val, err := r.resolveOperand(parts[1], resultType, 1, pending)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ordering, ok := parseOrdering(parts[2])
	if !ok {
		return value.InstRef{}, parseErr(line, "unknown memory ordering %q", parts[2])
	}
	scope, ok := parseScope(parts[3])
	if !ok {
		return value.InstRef{}, parseErr(line, "unknown scope %q", parts[3])
	}
	align, err := parseAlign(parts[4])
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	ref, err := r.b.AmoRmw(resultType, op, ordering, scope, align, ptr, val)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

func (r *reader) buildPhi(line int, resultType types.ID, operandsText string, pending map[int]string) (value.InstRef, error) {
	parts := splitTopLevel(operandsText, ',')
	if len(parts) == 0 || len(parts)%2 != 0 {
		return value.InstRef{}, parseErr(line, "phi expects (value, block) pairs, got %d fields", len(parts))
	}
	incoming := make([]irbuilder.PhiIncoming, len(parts)/2)
	for k := 0; k < len(parts); k += 2 {
		v, err := r.resolveOperand(parts[k], resultType, k, pending)
		if err != nil {
			return value.InstRef{}, parseErr(line, "%s", err)
		}
		br, ok := r.blocks[parts[k+1]]
		if !ok {
			return value.InstRef{}, parseErr(line, "phi incoming block %q not found", parts[k+1])
		}
		incoming[k/2] = irbuilder.PhiIncoming{Value: v, Block: br}
	}
	ref, err := r.b.Phi(resultType, incoming)
	if err != nil {
		return value.InstRef{}, parseErr(line, "%s", err)
	}
	return ref, nil
}

// buildTerminator handles ret/jump/br/switch/unreachable, which never
// carry a result name and whose InstRef must be recovered from the
// block's Terminator accessor since their Set* builder calls return only
// an error.
func (r *reader) buildTerminator(line int, opWord, operandsText string, pending map[int]string) error {
	var err error
	switch opWord {
	case "ret":
		if operandsText == "" {
			err = r.b.SetRet(nil)
		} else {
			var v value.Value
			v, err = r.resolveOperand(operandsText, types.ID{}, 0, pending)
			if err == nil {
				err = r.b.SetRet(v)
			}
		}
	case "unreachable":
		err = r.b.SetUnreachable()
	case "jump":
		br, ok := r.blocks[operandsText]
		if !ok {
			return parseErr(line, "jump target block %q not found", operandsText)
		}
		err = r.b.SetJumpTo(br)
	case "br":
		parts := splitTopLevel(operandsText, ',')
		if len(parts) != 3 {
			return parseErr(line, "br expects \"COND, THEN, ELSE\", got %q", operandsText)
		}
		var cond value.Value
		cond, err = r.resolveOperand(parts[0], types.Int(1), 0, pending)
		if err != nil {
			break
		}
		thenBr, ok := r.blocks[parts[1]]
		elseBr, ok2 := r.blocks[parts[2]]
		if !ok || !ok2 {
			return parseErr(line, "br target block not found in %q", operandsText)
		}
		err = r.b.SetBranchTo(cond, thenBr, elseBr)
	case "switch":
		err = r.buildSwitch(line, operandsText, pending)
	}
	if err != nil {
		return parseErr(line, "%s", err)
	}

	br := r.b.Block()
	term := r.m.Terminator(br)
	if term.Ref.Valid() {
		r.patchOperands(term, pending, line)
	}
	return nil
}

func (r *reader) buildSwitch(line int, operandsText string, pending map[int]string) error {
	parts := splitTopLevel(operandsText, ',')
	if len(parts) != 2 {
		return parseErr(line, "malformed switch: %q", operandsText)
	}
	val, err := r.resolveOperand(parts[0], types.ID{}, 0, pending)
	if err != nil {
		return err
	}
	rest := strings.TrimPrefix(parts[1], "default ")
	bopen := strings.IndexByte(rest, '[')
	if bopen < 0 {
		return parseErr(line, "malformed switch default clause: %q", parts[1])
	}
	defaultLabel := strings.TrimSpace(rest[:bopen])
	bclose, ok := findBalancedClose(rest, bopen, '[', ']')
	if !ok {
		return parseErr(line, "unbalanced [] in switch: %q", rest)
	}
	defaultBr, ok := r.blocks[defaultLabel]
	if !ok {
		return parseErr(line, "switch default block %q not found", defaultLabel)
	}
	cases := map[int64]value.BlockRef{}
	for _, ct := range splitTopLevel(rest[bopen+1:bclose], ',') {
		if ct == "" {
			continue
		}
		arrow := strings.Index(ct, " -> ")
		if arrow < 0 {
			return parseErr(line, "malformed switch case %q", ct)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(ct[:arrow]), 10, 64)
		if err != nil {
			return parseErr(line, "malformed switch case value in %q", ct)
		}
		label := strings.TrimSpace(ct[arrow+4:])
		br, ok := r.blocks[label]
		if !ok {
			return parseErr(line, "switch case target block %q not found", label)
		}
		cases[n] = br
	}
	return r.b.SetSwitch(val, cases, defaultBr)
}
