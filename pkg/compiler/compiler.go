package compiler

import (
	"strings"
	"sync"
)

// MaxWords bounds the number of word definitions produced by one
// compilation.
const MaxWords = 256

// MaxWordNameLen bounds a word name in bytes.
const MaxWordNameLen = 64

// WordDef is one named, callable subroutine: a `: name ... ;` body, whose
// code always ends in RET.
type WordDef struct {
	Name string
	Code []byte
}

// Output is the result of a successful compilation: the main bytecode and
// any word definitions produced along the way. Either may be empty.
type Output struct {
	Main  []byte
	Words []WordDef
}

// Context is the optional, caller-owned mapping from case-insensitive word
// name to VM-assigned index. It lets incremental
// compilations — a REPL session — resolve calls to words a previous
// compilation already handed to the VM. The compiler only reads it;
// Register and Reset are the sole mutators, and neither is invoked during
// compilation, so a caller sharing one Context across compiler goroutines
// only needs to serialize its own Register/Reset/Find calls against each
// other, which the embedded mutex does.
type Context struct {
	mu    sync.Mutex
	order []string
	idx   map[string]int
}

// NewContext returns an empty Context.
func NewContext() *Context {
	return &Context{idx: make(map[string]int)}
}

// Register records name (case-insensitively) as bound to vmIdx. A second
// Register for a name already present overwrites its index but keeps the
// name's original position for NameAt.
func (c *Context) Register(name string, vmIdx int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := upperASCII(name)
	if _, exists := c.idx[key]; !exists {
		c.order = append(c.order, name)
	}
	c.idx[key] = vmIdx
}

// Find looks up name case-insensitively.
func (c *Context) Find(name string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.idx[upperASCII(name)]
	return v, ok
}

// Count returns the number of distinct registered names.
func (c *Context) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// NameAt returns the name registered at position idx (insertion order).
func (c *Context) NameAt(idx int) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx < 0 || idx >= len(c.order) {
		return "", false
	}
	return c.order[idx], true
}

// Reset discards all registered names.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = c.order[:0]
	clear(c.idx)
}

// Compile compiles source with no external context.
func Compile(source string) (*Output, error) {
	return CompileWithContext(nil, source)
}

// classifyUnclosed maps the frame left open at end-of-input (or at an
// illegal `:`/`;` boundary) to the matching Unclosed* error.
func classifyUnclosed(f frame) ErrCode {
	switch f.(type) {
	case *ifFrame:
		return ErrUnclosedIf
	case *doFrame:
		return ErrUnclosedDo
	default:
		return ErrUnclosedBegin
	}
}

func findLocalWord(words []WordDef, name string) (int, bool) {
	for i, w := range words {
		if strings.EqualFold(w.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// readOperandByte consumes the next raw token as an unsigned byte operand
// for SYS/L@/L!/L>!/L++/L--, bypassing the main dispatch loop for exactly
// one token. keywordOffset is reported for a missing operand;
// the operand token's own offset is reported for one that fails to parse.
func readOperandByte(cur *cursor, source string, missingCode, invalidCode ErrCode, keywordOffset int) (byte, *CompileError) {
	next, ok := cur.next()
	if !ok {
		return 0, compileErrAt(missingCode, source, keywordOffset)
	}
	v, ok2 := parseInt32(next.text)
	if !ok2 || v < 0 || v > 255 {
		return 0, compileErrAt(invalidCode, source, next.offset)
	}
	return byte(v), nil
}

// CompileWithContext runs the full tokenize-dispatch-emit pipeline.
// Dispatch order per token, first match wins: `:`/`;`, structural
// keywords, operand-taking keywords, RECURSE, local word table then
// external context, integer literal, composite pseudo-words, primitive
// dispatch table. An unmatched token fails with ErrUnknownToken.
func CompileWithContext(ctx *Context, source string) (*Output, error) {
	cur := newCursor(source)
	main := newEmitter()
	active := main

	inDef := false
	defName := ""
	var words []WordDef
	frames := newFrameStack()

	for {
		tok, ok := cur.next()
		if !ok {
			break
		}
		text := tok.text

		switch text {
		case ":":
			if inDef {
				return nil, compileErrAt(ErrNestedColon, source, tok.offset)
			}
			if !frames.empty() {
				return nil, compileErrAt(classifyUnclosed(frames.top()), source, tok.offset)
			}
			nameTok, ok := cur.next()
			if !ok {
				return nil, compileErrAt(ErrColonWithoutName, source, cur.eofOffset())
			}
			name := nameTok.text
			if name == "" || len(name) >= MaxWordNameLen {
				return nil, compileErrAt(ErrColonWithoutName, source, nameTok.offset)
			}
			if _, dup := findLocalWord(words, name); dup {
				return nil, compileErrAt(ErrDuplicateWord, source, nameTok.offset)
			}
			if len(words) >= MaxWords {
				return nil, compileErrAt(ErrDictionaryFull, source, nameTok.offset)
			}
			inDef = true
			defName = name
			active = newEmitter()
			continue

		case ";":
			if !inDef {
				return nil, compileErrAt(ErrSemicolonWithoutColon, source, tok.offset)
			}
			if !frames.empty() {
				return nil, compileErrAt(classifyUnclosed(frames.top()), source, tok.offset)
			}
			active.appendU8(RET)
			words = append(words, WordDef{Name: defName, Code: active.buf})
			inDef = false
			defName = ""
			active = main
			continue
		}

		upper := upperASCII(text)

		switch upper {
		case "BEGIN":
			if !frames.push(&beginFrame{beginAddr: active.len()}) {
				return nil, compileErrAt(ErrControlDepthExceeded, source, tok.offset)
			}
			continue

		case "DO":
			if frames.depth() >= MaxControlDepth {
				return nil, compileErrAt(ErrControlDepthExceeded, source, tok.offset)
			}
			active.appendU8(SWAP)
			active.appendU8(TOR)
			active.appendU8(TOR)
			frames.push(&doFrame{doAddr: active.len()})
			continue

		case "UNTIL":
			f, ok := frames.top().(*beginFrame)
			if !ok {
				return nil, compileErrAt(ErrUntilWithoutBegin, source, tok.offset)
			}
			if f.hasWhile {
				return nil, compileErrAt(ErrUntilAfterWhile, source, tok.offset)
			}
			active.appendU8(JZ)
			patch := active.len()
			off, ok2 := rel16(f.beginAddr, patch)
			if !ok2 {
				return nil, compileErrAt(ErrJumpOverflow, source, tok.offset)
			}
			active.appendI16LE(off)
			frames.pop()
			continue

		case "WHILE":
			f, ok := frames.top().(*beginFrame)
			if !ok {
				return nil, compileErrAt(ErrWhileWithoutBegin, source, tok.offset)
			}
			if f.hasWhile {
				return nil, compileErrAt(ErrDuplicateWhile, source, tok.offset)
			}
			active.appendU8(JZ)
			f.whilePatch = active.len()
			active.appendI16LE(0)
			f.hasWhile = true
			continue

		case "REPEAT":
			f, ok := frames.top().(*beginFrame)
			if !ok {
				return nil, compileErrAt(ErrRepeatWithoutBegin, source, tok.offset)
			}
			if !f.hasWhile {
				return nil, compileErrAt(ErrRepeatWithoutWhile, source, tok.offset)
			}
			active.appendU8(JMP)
			patch := active.len()
			off, ok2 := rel16(f.beginAddr, patch)
			if !ok2 {
				return nil, compileErrAt(ErrJumpOverflow, source, tok.offset)
			}
			active.appendI16LE(off)
			offW, ok3 := rel16(active.len(), f.whilePatch)
			if !ok3 {
				return nil, compileErrAt(ErrJumpOverflow, source, tok.offset)
			}
			active.patchI16LE(f.whilePatch, offW)
			frames.pop()
			continue

		case "AGAIN":
			f, ok := frames.top().(*beginFrame)
			if !ok {
				return nil, compileErrAt(ErrAgainWithoutBegin, source, tok.offset)
			}
			if f.hasWhile {
				return nil, compileErrAt(ErrAgainAfterWhile, source, tok.offset)
			}
			active.appendU8(JMP)
			patch := active.len()
			off, ok2 := rel16(f.beginAddr, patch)
			if !ok2 {
				return nil, compileErrAt(ErrJumpOverflow, source, tok.offset)
			}
			active.appendI16LE(off)
			frames.pop()
			continue

		case "LEAVE":
			df := frames.innermostDo()
			if df == nil {
				return nil, compileErrAt(ErrLeaveWithoutDo, source, tok.offset)
			}
			if df.leaveCount >= MaxLeaveDepth {
				return nil, compileErrAt(ErrLeaveDepthExceeded, source, tok.offset)
			}
			active.appendU8(FROMR)
			active.appendU8(FROMR)
			active.appendU8(DROP)
			active.appendU8(DROP)
			active.appendU8(JMP)
			df.leavePatches[df.leaveCount] = active.len()
			active.appendI16LE(0)
			df.leaveCount++
			continue

		case "LOOP", "+LOOP":
			f, ok := frames.top().(*doFrame)
			if !ok {
				if upper == "LOOP" {
					return nil, compileErrAt(ErrLoopWithoutDo, source, tok.offset)
				}
				return nil, compileErrAt(ErrPLoopWithoutDo, source, tok.offset)
			}
			active.appendU8(FROMR)
			if upper == "LOOP" {
				active.appendU8(LIT)
				active.appendI32LE(1)
			}
			active.appendU8(ADD)
			active.appendU8(FROMR)
			active.appendU8(OVER)
			active.appendU8(OVER)
			active.appendU8(LT)
			active.appendU8(JZ)
			jzPatch := active.len()
			active.appendI16LE(0)
			active.appendU8(SWAP)
			active.appendU8(TOR)
			active.appendU8(TOR)
			active.appendU8(JMP)
			jmpPatch := active.len()
			offBack, ok2 := rel16(f.doAddr, jmpPatch)
			if !ok2 {
				return nil, compileErrAt(ErrJumpOverflow, source, tok.offset)
			}
			active.appendI16LE(offBack)
			offExit, ok3 := rel16(active.len(), jzPatch)
			if !ok3 {
				return nil, compileErrAt(ErrJumpOverflow, source, tok.offset)
			}
			active.patchI16LE(jzPatch, offExit)
			active.appendU8(DROP)
			active.appendU8(DROP)
			for i := 0; i < f.leaveCount; i++ {
				offL, okL := rel16(active.len(), f.leavePatches[i])
				if !okL {
					return nil, compileErrAt(ErrJumpOverflow, source, tok.offset)
				}
				active.patchI16LE(f.leavePatches[i], offL)
			}
			frames.pop()
			continue

		case "IF":
			if frames.depth() >= MaxControlDepth {
				return nil, compileErrAt(ErrControlDepthExceeded, source, tok.offset)
			}
			active.appendU8(JZ)
			patch := active.len()
			active.appendI16LE(0)
			frames.push(&ifFrame{jzPatch: patch})
			continue

		case "ELSE":
			f, ok := frames.top().(*ifFrame)
			if !ok {
				return nil, compileErrAt(ErrElseWithoutIf, source, tok.offset)
			}
			if f.hasElse {
				return nil, compileErrAt(ErrDuplicateElse, source, tok.offset)
			}
			active.appendU8(JMP)
			f.jmpPatch = active.len()
			active.appendI16LE(0)
			offZ, ok2 := rel16(active.len(), f.jzPatch)
			if !ok2 {
				return nil, compileErrAt(ErrJumpOverflow, source, tok.offset)
			}
			active.patchI16LE(f.jzPatch, offZ)
			f.hasElse = true
			continue

		case "THEN":
			f, ok := frames.top().(*ifFrame)
			if !ok {
				return nil, compileErrAt(ErrThenWithoutIf, source, tok.offset)
			}
			frames.pop()
			patchAt := f.jzPatch
			if f.hasElse {
				patchAt = f.jmpPatch
			}
			off, ok2 := rel16(active.len(), patchAt)
			if !ok2 {
				return nil, compileErrAt(ErrJumpOverflow, source, tok.offset)
			}
			active.patchI16LE(patchAt, off)
			continue

		case "EXIT":
			active.appendU8(RET)
			continue

		case "SYS":
			b, cerr := readOperandByte(cur, source, ErrMissingSysId, ErrInvalidSysId, tok.offset)
			if cerr != nil {
				return nil, cerr
			}
			active.appendU8(SYS)
			active.appendU8(b)
			continue

		case "EMIT":
			active.appendU8(SYS)
			active.appendU8(0x30)
			continue

		case "KEY":
			active.appendU8(SYS)
			active.appendU8(0x31)
			continue

		case "L++":
			b, cerr := readOperandByte(cur, source, ErrMissingLocalIdx, ErrInvalidLocalIdx, tok.offset)
			if cerr != nil {
				return nil, cerr
			}
			active.appendU8(LINC)
			active.appendU8(b)
			continue

		case "L--":
			b, cerr := readOperandByte(cur, source, ErrMissingLocalIdx, ErrInvalidLocalIdx, tok.offset)
			if cerr != nil {
				return nil, cerr
			}
			active.appendU8(LDEC)
			active.appendU8(b)
			continue

		case "L@":
			b, cerr := readOperandByte(cur, source, ErrMissingLocalIdx, ErrInvalidLocalIdx, tok.offset)
			if cerr != nil {
				return nil, cerr
			}
			active.appendU8(LGET)
			active.appendU8(b)
			continue

		case "L!":
			b, cerr := readOperandByte(cur, source, ErrMissingLocalIdx, ErrInvalidLocalIdx, tok.offset)
			if cerr != nil {
				return nil, cerr
			}
			active.appendU8(LSET)
			active.appendU8(b)
			continue

		case "L>!":
			b, cerr := readOperandByte(cur, source, ErrMissingLocalIdx, ErrInvalidLocalIdx, tok.offset)
			if cerr != nil {
				return nil, cerr
			}
			active.appendU8(LTEE)
			active.appendU8(b)
			continue

		case "RECURSE":
			if !inDef {
				return nil, compileErrAt(ErrRecurseOutsideWord, source, tok.offset)
			}
			active.appendU8(CALL)
			active.appendIdx16LE(int16(len(words)))
			continue
		}

		if idx, ok := findLocalWord(words, text); ok {
			active.appendU8(CALL)
			active.appendIdx16LE(int16(idx))
			continue
		}
		if ctx != nil {
			if idx, ok := ctx.Find(text); ok {
				active.appendU8(CALL)
				active.appendIdx16LE(int16(idx))
				continue
			}
		}

		if v, ok := parseInt32(text); ok {
			active.appendU8(LIT)
			active.appendI32LE(v)
			continue
		}

		if f := lookupComposite(text); f != nil {
			f(active)
			continue
		}

		if op, ok := lookupPrimitive(text); ok {
			active.appendU8(op)
			continue
		}

		return nil, compileErrAt(ErrUnknownToken, source, tok.offset)
	}

	if !frames.empty() {
		return nil, compileErrAt(classifyUnclosed(frames.top()), source, cur.eofOffset())
	}
	if inDef {
		return nil, compileErrAt(ErrUnclosedColon, source, cur.eofOffset())
	}

	// Walk main instruction by instruction so that a 0x40 byte inside an
	// immediate is not mistaken for a trailing JMP.
	lastOp := -1
	for ip := 0; ip < main.len(); ip += 1 + ImmKindOf(main.buf[ip]).Width() {
		lastOp = ip
	}
	needsRet := lastOp < 0 || main.buf[lastOp] != JMP
	if needsRet {
		main.appendU8(RET)
	}

	return &Output{Main: main.buf, Words: words}, nil
}
