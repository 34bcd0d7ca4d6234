package compiler

import "strconv"

// parseInt32 attempts to parse tok as a signed 32-bit integer. It accepts
// an optional leading '-', auto-detects hex via a "0x"/"0X" prefix, and
// otherwise reads decimal. It succeeds only if the entire token is
// consumed and the value fits in int32. There is no octal: a leading zero
// is still decimal.
func parseInt32(tok string) (int32, bool) {
	if tok == "" {
		return 0, false
	}
	neg := false
	body := tok
	if body[0] == '-' {
		neg = true
		body = body[1:]
		if body == "" {
			return 0, false
		}
	}
	base := 10
	if len(body) > 2 && body[0] == '0' && (body[1] == 'x' || body[1] == 'X') {
		base = 16
		body = body[2:]
		if body == "" {
			return 0, false
		}
	}
	v, err := strconv.ParseUint(body, base, 32)
	if err != nil {
		return 0, false
	}
	n := int64(v)
	if neg {
		n = -n
	}
	if n < -(1<<31) || n > (1<<31-1) {
		return 0, false
	}
	return int32(n), true
}
