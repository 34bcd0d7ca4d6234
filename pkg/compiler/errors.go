package compiler

import (
	"fmt"
	"strings"
)

// ErrCode identifies a distinct compilation failure. The numeric values
// are part of the external contract and are frozen once assigned: new
// codes are appended at the end, never renumbered.
type ErrCode int

const (
	ErrUnknownToken ErrCode = -(iota + 1)
	ErrInvalidInteger
	ErrOutOfMemory
	ErrBufferTooSmall
	ErrElseWithoutIf
	ErrThenWithoutIf
	ErrDuplicateElse
	ErrUnclosedIf
	ErrUntilWithoutBegin
	ErrWhileWithoutBegin
	ErrRepeatWithoutBegin
	ErrRepeatWithoutWhile
	ErrDuplicateWhile
	ErrUntilAfterWhile
	ErrAgainWithoutBegin
	ErrAgainAfterWhile
	ErrUnclosedBegin
	ErrLoopWithoutDo
	ErrPLoopWithoutDo
	ErrLeaveWithoutDo
	ErrLeaveDepthExceeded
	ErrUnclosedDo
	ErrNestedColon
	ErrColonWithoutName
	ErrSemicolonWithoutColon
	ErrDuplicateWord
	ErrDictionaryFull
	ErrUnclosedColon
	ErrRecurseOutsideWord
	ErrControlDepthExceeded
	ErrMissingSysId
	ErrInvalidSysId
	ErrMissingLocalIdx
	ErrInvalidLocalIdx
	ErrJumpOverflow
	ErrContainerWriteFailed
	ErrContainerOpenFailed
	ErrContainerBadMagic
	ErrContainerReadFailed
)

var errMessages = map[ErrCode]string{
	ErrUnknownToken:          "unknown token",
	ErrInvalidInteger:        "invalid integer literal",
	ErrOutOfMemory:           "out of memory",
	ErrBufferTooSmall:        "buffer too small",
	ErrElseWithoutIf:         "ELSE without matching IF",
	ErrThenWithoutIf:         "THEN without matching IF",
	ErrDuplicateElse:         "duplicate ELSE",
	ErrUnclosedIf:            "unclosed IF",
	ErrUntilWithoutBegin:     "UNTIL without matching BEGIN",
	ErrWhileWithoutBegin:     "WHILE without matching BEGIN",
	ErrRepeatWithoutBegin:    "REPEAT without matching BEGIN",
	ErrRepeatWithoutWhile:    "REPEAT without WHILE",
	ErrDuplicateWhile:        "duplicate WHILE",
	ErrUntilAfterWhile:       "UNTIL after WHILE",
	ErrAgainWithoutBegin:     "AGAIN without matching BEGIN",
	ErrAgainAfterWhile:       "AGAIN after WHILE",
	ErrUnclosedBegin:         "unclosed BEGIN",
	ErrLoopWithoutDo:         "LOOP without matching DO",
	ErrPLoopWithoutDo:        "+LOOP without matching DO",
	ErrLeaveWithoutDo:        "LEAVE without matching DO",
	ErrLeaveDepthExceeded:    "LEAVE depth exceeded",
	ErrUnclosedDo:            "unclosed DO",
	ErrNestedColon:           "nested colon definition",
	ErrColonWithoutName:      "colon definition without a name",
	ErrSemicolonWithoutColon: "semicolon without matching colon",
	ErrDuplicateWord:         "duplicate word definition",
	ErrDictionaryFull:        "word dictionary full",
	ErrUnclosedColon:         "unclosed colon definition",
	ErrRecurseOutsideWord:    "RECURSE outside a word definition",
	ErrControlDepthExceeded:  "control-frame stack depth exceeded",
	ErrMissingSysId:          "missing SYS id operand",
	ErrInvalidSysId:          "invalid SYS id operand",
	ErrMissingLocalIdx:       "missing local slot operand",
	ErrInvalidLocalIdx:       "invalid local slot operand",
	ErrJumpOverflow:          "jump offset does not fit in 16 bits",
	ErrContainerWriteFailed:  "failed to write bytecode container",
	ErrContainerOpenFailed:   "failed to open bytecode container",
	ErrContainerBadMagic:     "bad bytecode container magic",
	ErrContainerReadFailed:   "failed to read bytecode container",
}

func (c ErrCode) String() string {
	if m, ok := errMessages[c]; ok {
		return m
	}
	return "unknown error"
}

// CompileError is the structured diagnostic record for one compilation
// failure. ByteOffset, Line, and Column are -1 when no position is known.
type CompileError struct {
	Code       ErrCode
	Message    string
	ByteOffset int
	Line       int
	Column     int
	Token      string
	Context    string
}

func (e *CompileError) Error() string {
	if e.Line < 0 {
		return fmt.Sprintf("Error: %s", e.Message)
	}
	return fmt.Sprintf("Error: %s at line %d, column %d", e.Message, e.Line, e.Column)
}

func newErr(code ErrCode) *CompileError {
	return &CompileError{Code: code, Message: code.String(), ByteOffset: -1, Line: -1, Column: -1}
}

// compileErrAt builds a CompileError with a full position record. offset
// must be a valid index into source, or len(source) for an end-of-input
// error.
func compileErrAt(code ErrCode, source string, offset int) *CompileError {
	e := newErr(code)
	if offset < 0 || offset > len(source) {
		return e
	}
	line, col, tok, ctx := positionInfo(source, offset)
	e.ByteOffset = offset
	e.Line = line
	e.Column = col
	e.Token = tok
	e.Context = ctx
	return e
}

// positionInfo computes the line, column, offending token, and containing
// source line for a byte offset: line by counting newlines before offset,
// column as bytes since the last newline (1-based), token as the longest
// non-whitespace run around offset (capped at 63 bytes), context as the
// current source line (capped at 127 bytes).
func positionInfo(source string, offset int) (line, col int, tok, ctx string) {
	line = 1
	lastNL := -1
	for i := 0; i < offset; i++ {
		if source[i] == '\n' {
			line++
			lastNL = i
		}
	}
	col = offset - lastNL

	start := offset
	for start > 0 && !isSpace(source[start-1]) {
		start--
	}
	end := offset
	for end < len(source) && !isSpace(source[end]) {
		end++
	}
	tok = source[start:end]
	if len(tok) > 63 {
		tok = tok[:63]
	}

	ctxStart := lastNL + 1
	ctxEnd := len(source)
	if nl := strings.IndexByte(source[offset:], '\n'); nl >= 0 {
		ctxEnd = offset + nl
	}
	ctx = source[ctxStart:ctxEnd]
	if len(ctx) > 127 {
		ctx = ctx[:127]
	}
	return
}

// FormatError renders a CompileError as a multi-line diagnostic: the
// message with line and column, the offending source line, and a caret
// under the first character of the token with tildes under the remainder.
// When no position is known, only the first line is produced.
func FormatError(err *CompileError, source string) string {
	if err.Line < 0 {
		return fmt.Sprintf("Error: %s", err.Message)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Error: %s at line %d, column %d\n", err.Message, err.Line, err.Column)
	fmt.Fprintf(&b, "  %s\n", err.Context)
	marker := "^"
	if len(err.Token) > 1 {
		marker += strings.Repeat("~", len(err.Token)-1)
	}
	fmt.Fprintf(&b, "  %s%s", strings.Repeat(" ", err.Column-1), marker)
	return b.String()
}
