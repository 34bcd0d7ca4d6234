package compiler

// MaxTokenLen bounds the token length used for local comparisons; longer
// tokens still advance the cursor to their real end.
const MaxTokenLen = 256

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	default:
		return false
	}
}

// token is a lexical token: its text (possibly truncated to MaxTokenLen for
// comparison purposes) and its byte offset in the original source.
type token struct {
	text   string
	offset int
}

// cursor splits source into whitespace-delimited tokens, remembering each
// token's byte offset so the driver can map any failing token back to a
// precise source position.
type cursor struct {
	src string
	pos int
}

func newCursor(src string) *cursor {
	return &cursor{src: src}
}

// next returns the next token, or ok=false at end of input.
func (c *cursor) next() (token, bool) {
	for c.pos < len(c.src) && isSpace(c.src[c.pos]) {
		c.pos++
	}
	if c.pos >= len(c.src) {
		return token{}, false
	}
	start := c.pos
	for c.pos < len(c.src) && !isSpace(c.src[c.pos]) {
		c.pos++
	}
	text := c.src[start:c.pos]
	if len(text) > MaxTokenLen {
		text = text[:MaxTokenLen]
	}
	return token{text: text, offset: start}, true
}

// atEnd reports whether the cursor has no more tokens without consuming.
func (c *cursor) atEnd() bool {
	p := c.pos
	for p < len(c.src) && isSpace(c.src[p]) {
		p++
	}
	return p >= len(c.src)
}

// eofOffset returns the offset to report for an end-of-input error.
func (c *cursor) eofOffset() int {
	return len(c.src)
}
