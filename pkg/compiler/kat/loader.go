package kat

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadedCase pairs a Case with the file it came from, for readable test
// names and failure messages.
type LoadedCase struct {
	File string
	Case Case
}

// LoadDir walks dir for *.yaml fixtures and returns every case across all
// suites, in file-then-declaration order.
func LoadDir(dir string) ([]LoadedCase, error) {
	var out []LoadedCase
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		var suite Suite
		if err := yaml.Unmarshal(raw, &suite); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		rel, _ := filepath.Rel(dir, path)
		for _, c := range suite.Cases {
			out = append(out, LoadedCase{File: rel, Case: c})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeBytecode parses a Case's Bytecode field (whitespace-separated hex
// byte pairs) into raw bytes.
func DecodeBytecode(s string) ([]byte, error) {
	fields := strings.Fields(s)
	out := make([]byte, 0, len(fields))
	for _, f := range fields {
		b, err := hex.DecodeString(f)
		if err != nil || len(b) != 1 {
			return nil, fmt.Errorf("invalid hex byte %q", f)
		}
		out = append(out, b[0])
	}
	return out, nil
}
