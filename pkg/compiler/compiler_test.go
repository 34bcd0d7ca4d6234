package compiler

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestCompileWordDefinitionBody(t *testing.T) {
	out, err := Compile(": DOUBLE DUP + ; 5 DOUBLE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Words) != 1 {
		t.Fatalf("expected 1 word definition, got %d", len(out.Words))
	}
	w := out.Words[0]
	if w.Name != "DOUBLE" {
		t.Errorf("word name: got %q, want DOUBLE", w.Name)
	}
	wantBody := []byte{DUP, ADD, RET}
	if !bytes.Equal(w.Code, wantBody) {
		t.Errorf("word body: got % X, want % X", w.Code, wantBody)
	}
	wantMain := []byte{LIT, 0x05, 0x00, 0x00, 0x00, CALL, 0x00, 0x00, RET}
	if !bytes.Equal(out.Main, wantMain) {
		t.Errorf("main: got % X, want % X", out.Main, wantMain)
	}
}

func TestCompileNestedColonRejected(t *testing.T) {
	_, err := Compile(": A : B ; ;")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrNestedColon {
		t.Fatalf("expected ErrNestedColon, got %v", err)
	}
}

func TestCompileDuplicateWordAtSecondName(t *testing.T) {
	_, err := Compile(": SQUARE DUP * ; : SQUARE DUP * ;")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrDuplicateWord {
		t.Fatalf("expected ErrDuplicateWord, got %v", err)
	}
	if ce.Token != "SQUARE" {
		t.Errorf("token: got %q, want SQUARE", ce.Token)
	}
}

func TestCompileUnclosedIfInsideDefinitionBlocksSemicolon(t *testing.T) {
	_, err := Compile(": F 1 IF 2 ;")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrUnclosedIf {
		t.Fatalf("expected ErrUnclosedIf, got %v", err)
	}
}

func TestCompileColonInsideOpenStructureBlocked(t *testing.T) {
	_, err := Compile("BEGIN : F ;")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrUnclosedBegin {
		t.Fatalf("expected ErrUnclosedBegin, got %v", err)
	}
}

func TestCompileRecurse(t *testing.T) {
	out, err := Compile(": LOOPER 1 - DUP IF RECURSE THEN ;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := out.Words[0]
	// RECURSE must CALL index 0, the word currently being defined.
	if !bytes.Contains(w.Code, []byte{CALL, 0x00, 0x00}) {
		t.Errorf("expected a self-call to index 0 in %X", w.Code)
	}
}

func TestCompileRecurseOutsideWord(t *testing.T) {
	_, err := Compile("RECURSE")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrRecurseOutsideWord {
		t.Fatalf("expected ErrRecurseOutsideWord, got %v", err)
	}
}

func TestCompileDoLoop(t *testing.T) {
	out, err := Compile("10 0 DO I LOOP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Contains(out.Main, []byte{RFETCH}) {
		t.Error("expected I to compile to RFETCH somewhere in the loop body")
	}
}

func TestCompileLoopWithoutDo(t *testing.T) {
	_, err := Compile("LOOP")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrLoopWithoutDo {
		t.Fatalf("expected ErrLoopWithoutDo, got %v", err)
	}
}

func TestCompilePlusLoopWithoutDo(t *testing.T) {
	_, err := Compile("+LOOP")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrPLoopWithoutDo {
		t.Fatalf("expected ErrPLoopWithoutDo, got %v", err)
	}
}

func TestCompileLeaveWithoutDo(t *testing.T) {
	_, err := Compile("LEAVE")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrLeaveWithoutDo {
		t.Fatalf("expected ErrLeaveWithoutDo, got %v", err)
	}
}

func TestCompileLeaveInsideIfInsideDo(t *testing.T) {
	_, err := Compile("10 0 DO DUP IF LEAVE THEN LOOP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompileElseWithoutIf(t *testing.T) {
	_, err := Compile("ELSE")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrElseWithoutIf {
		t.Fatalf("expected ErrElseWithoutIf, got %v", err)
	}
}

func TestCompileDuplicateElse(t *testing.T) {
	_, err := Compile("1 IF 2 ELSE 3 ELSE 4 THEN")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrDuplicateElse {
		t.Fatalf("expected ErrDuplicateElse, got %v", err)
	}
}

func TestCompileWhileRepeat(t *testing.T) {
	out, err := Compile("BEGIN DUP WHILE 1 - REPEAT")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// REPEAT's back-jump is the last instruction emitted, so the trailing-RET
	// peephole suppresses RET here exactly as it does for BEGIN/AGAIN.
	want := []byte{DUP, JZ, 0x09, 0x00, LIT, 0x01, 0x00, 0x00, 0x00, SUB, JMP, 0xF3, 0xFF}
	if !bytes.Equal(out.Main, want) {
		t.Errorf("got % X, want % X", out.Main, want)
	}
}

func TestCompileUntilAfterWhile(t *testing.T) {
	_, err := Compile("BEGIN DUP WHILE 1 - UNTIL")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrUntilAfterWhile {
		t.Fatalf("expected ErrUntilAfterWhile, got %v", err)
	}
}

func TestCompileAgainAfterWhile(t *testing.T) {
	_, err := Compile("BEGIN DUP WHILE 1 - AGAIN")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrAgainAfterWhile {
		t.Fatalf("expected ErrAgainAfterWhile, got %v", err)
	}
}

func TestCompileUnclosedColonAtEOF(t *testing.T) {
	_, err := Compile(": F DUP")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrUnclosedColon {
		t.Fatalf("expected ErrUnclosedColon, got %v", err)
	}
}

func TestCompileWithContextResolvesRegisteredWords(t *testing.T) {
	ctx := NewContext()
	ctx.Register("GREET", 7)
	out, err := CompileWithContext(ctx, "GREET")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{CALL, 0x07, 0x00, RET}
	if !bytes.Equal(out.Main, want) {
		t.Errorf("got % X, want % X", out.Main, want)
	}
}

func TestContextRegisterFindCountNameAt(t *testing.T) {
	ctx := NewContext()
	if ctx.Count() != 0 {
		t.Fatal("new context should be empty")
	}
	ctx.Register("Foo", 1)
	ctx.Register("Bar", 2)
	if ctx.Count() != 2 {
		t.Fatalf("count: got %d, want 2", ctx.Count())
	}
	if idx, ok := ctx.Find("foo"); !ok || idx != 1 {
		t.Errorf("Find(foo): got %d, %v, want 1, true", idx, ok)
	}
	if name, ok := ctx.NameAt(0); !ok || name != "Foo" {
		t.Errorf("NameAt(0): got %q, %v, want Foo, true", name, ok)
	}
	ctx.Register("Foo", 9)
	if ctx.Count() != 2 {
		t.Error("re-registering an existing name should not grow Count")
	}
	if idx, _ := ctx.Find("FOO"); idx != 9 {
		t.Errorf("re-register should overwrite the index: got %d, want 9", idx)
	}
	ctx.Reset()
	if ctx.Count() != 0 {
		t.Error("Reset should clear the context")
	}
}

func TestCompileMissingSysId(t *testing.T) {
	_, err := Compile("SYS")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrMissingSysId {
		t.Fatalf("expected ErrMissingSysId, got %v", err)
	}
}

func TestCompileInvalidSysId(t *testing.T) {
	_, err := Compile("SYS 256")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrInvalidSysId {
		t.Fatalf("expected ErrInvalidSysId, got %v", err)
	}
}

func TestCompileEmitAndKey(t *testing.T) {
	out, err := Compile("EMIT KEY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{SYS, 0x30, SYS, 0x31, RET}
	if !bytes.Equal(out.Main, want) {
		t.Errorf("got % X, want % X", out.Main, want)
	}
}

func TestCompileLocalSlotOps(t *testing.T) {
	out, err := Compile("L@ 0 L! 1 L>! 2 L++ 3 L-- 4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{
		LGET, 0x00,
		LSET, 0x01,
		LTEE, 0x02,
		LINC, 0x03,
		LDEC, 0x04,
		RET,
	}
	if !bytes.Equal(out.Main, want) {
		t.Errorf("got % X, want % X", out.Main, want)
	}
}

func TestCompileUnknownToken(t *testing.T) {
	_, err := Compile("1 2 UNKNOWN +")
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrUnknownToken {
		t.Fatalf("expected ErrUnknownToken, got %v", err)
	}
	if ce.Line != 1 || ce.Column != 5 {
		t.Errorf("position: got line=%d col=%d, want line=1 col=5", ce.Line, ce.Column)
	}
}

func TestCompileEmptyAndWhitespaceOnly(t *testing.T) {
	for _, src := range []string{"", "   \t\n  "} {
		out, err := Compile(src)
		if err != nil {
			t.Fatalf("source %q: unexpected error: %v", src, err)
		}
		want := []byte{RET}
		if !bytes.Equal(out.Main, want) {
			t.Errorf("source %q: got % X, want % X", src, out.Main, want)
		}
	}
}

func TestCompileDeterministic(t *testing.T) {
	src := ": SQ DUP * ; 10 0 DO I SQ EMIT LOOP BEGIN DUP WHILE 1 - REPEAT"
	a, err := Compile(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Compile(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(a.Main, b.Main) {
		t.Error("two compilations of the same source should be byte-identical")
	}
	for i := range a.Words {
		if !bytes.Equal(a.Words[i].Code, b.Words[i].Code) {
			t.Errorf("word %s: bodies differ between compilations", a.Words[i].Name)
		}
	}
}

func TestCompileControlDepthBoundary(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxControlDepth; i++ {
		b.WriteString("1 IF ")
	}
	for i := 0; i < MaxControlDepth; i++ {
		b.WriteString("THEN ")
	}
	if _, err := Compile(b.String()); err != nil {
		t.Fatalf("nesting exactly at MaxControlDepth should succeed: %v", err)
	}

	b.Reset()
	for i := 0; i < MaxControlDepth+1; i++ {
		b.WriteString("1 IF ")
	}
	_, err := Compile(b.String())
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrControlDepthExceeded {
		t.Fatalf("expected ErrControlDepthExceeded, got %v", err)
	}
}

func TestCompileWordCountBoundary(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxWords; i++ {
		fmt.Fprintf(&b, ": W%d DUP ; ", i)
	}
	out, err := Compile(b.String())
	if err != nil {
		t.Fatalf("exactly MaxWords definitions should succeed: %v", err)
	}
	if len(out.Words) != MaxWords {
		t.Fatalf("got %d words, want %d", len(out.Words), MaxWords)
	}

	b.WriteString(": OVERFLOW DUP ; ")
	_, err = Compile(b.String())
	ce, ok := err.(*CompileError)
	if !ok || ce.Code != ErrDictionaryFull {
		t.Fatalf("expected ErrDictionaryFull, got %v", err)
	}
}

func TestCompileIntegerLiteralBounds(t *testing.T) {
	out, err := Compile("2147483647 -2147483648")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{
		LIT, 0xFF, 0xFF, 0xFF, 0x7F,
		LIT, 0x00, 0x00, 0x00, 0x80,
		RET,
	}
	if !bytes.Equal(out.Main, want) {
		t.Errorf("got % X, want % X", out.Main, want)
	}
}

func TestCompileSinglePrimitiveRoundTrip(t *testing.T) {
	for _, e := range primitiveTable {
		out, err := Compile(e.token)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", e.token, err)
			continue
		}
		want := []byte{e.op, RET}
		if !bytes.Equal(out.Main, want) {
			t.Errorf("%q: got % X, want % X", e.token, out.Main, want)
		}
	}
}

// instructionBoundaries walks code with the opcode catalog and returns the
// set of offsets that start an instruction.
func instructionBoundaries(t *testing.T, code []byte) map[int]bool {
	t.Helper()
	starts := make(map[int]bool)
	for ip := 0; ip < len(code); {
		starts[ip] = true
		entry, ok := catalogByOp[code[ip]]
		if !ok {
			t.Fatalf("unknown opcode %#02x at %d", code[ip], ip)
		}
		ip += 1 + entry.Imm.Width()
	}
	starts[len(code)] = true
	return starts
}

func TestCompileJumpSelfConsistency(t *testing.T) {
	sources := []string{
		"1 IF 42 ELSE 7 THEN",
		"BEGIN DUP WHILE 1 - REPEAT",
		"10 0 DO DUP IF LEAVE THEN I EMIT LOOP",
		"BEGIN DUP UNTIL",
		"?DUP ABS MIN MAX",
	}
	for _, src := range sources {
		out, err := Compile(src)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", src, err)
		}
		starts := instructionBoundaries(t, out.Main)
		for ip := 0; ip < len(out.Main); {
			entry := catalogByOp[out.Main[ip]]
			if entry.Imm == ImmRel16 {
				off := int16(uint16(out.Main[ip+1]) | uint16(out.Main[ip+2])<<8)
				target := ip + 3 + int(off)
				if target < 0 || target > len(out.Main) {
					t.Errorf("%q: branch at %d targets %d, outside [0, %d]", src, ip, target, len(out.Main))
				} else if !starts[target] {
					t.Errorf("%q: branch at %d targets %d, inside an immediate", src, ip, target)
				}
			}
			ip += 1 + entry.Imm.Width()
		}
	}
}

func TestWordBodyEndingInAgainStillGetsRet(t *testing.T) {
	out, err := Compile(": SPIN BEGIN DUP AGAIN ;")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The trailing-RET peephole applies to the main buffer only; the
	// semicolon always terminates a word body with RET, even after an
	// unconditional backward JMP.
	body := out.Words[0].Code
	if body[len(body)-1] != RET {
		t.Errorf("word body should end in RET, got % X", body)
	}
	if !bytes.Equal(out.Main, []byte{RET}) {
		t.Errorf("main: got % X, want just RET", out.Main)
	}
}
