package kat

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadTextFile loads known-answer cases from the plain-text KAT format:
//
//	## Test: name
//	SOURCE: forth source code
//	BYTECODE: 00 0A 00 00 00
//
// Blank lines and lines starting with "#" (other than a "## Test:" header)
// are ignored. A BYTECODE line may be omitted for an error-only case.
func LoadTextFile(path string) ([]LoadedCase, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var out []LoadedCase
	var current *Case
	inTest := false

	flush := func() {
		if inTest && current != nil && current.Name != "" {
			out = append(out, LoadedCase{File: path, Case: *current})
		}
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") && !strings.HasPrefix(line, "## Test:") {
			continue
		}
		if strings.HasPrefix(line, "## Test:") {
			flush()
			current = &Case{Name: strings.TrimSpace(line[len("## Test:"):])}
			inTest = true
			continue
		}
		if strings.HasPrefix(line, "SOURCE:") {
			if !inTest {
				continue
			}
			current.Source = strings.TrimSpace(line[len("SOURCE:"):])
			continue
		}
		if strings.HasPrefix(line, "BYTECODE:") {
			if !inTest {
				continue
			}
			current.Bytecode = strings.TrimSpace(line[len("BYTECODE:"):])
			continue
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	flush()
	return out, nil
}

// ParseHexByte parses a one- or two-digit hex byte, rejecting anything
// that does not consume the whole token.
func ParseHexByte(s string) (byte, bool) {
	if s == "" || len(s) > 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}

// ParseHexBytes parses a whitespace-separated sequence of hex bytes,
// stopping at a "#" comment token. It returns ok=false if any token
// before the comment fails to parse.
func ParseHexBytes(s string) ([]byte, bool) {
	var out []byte
	for _, tok := range strings.Fields(s) {
		if strings.HasPrefix(tok, "#") {
			break
		}
		b, ok := ParseHexByte(tok)
		if !ok {
			return nil, false
		}
		out = append(out, b)
	}
	return out, true
}
