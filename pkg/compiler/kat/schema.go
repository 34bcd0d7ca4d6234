// Package kat loads the known-answer test fixtures that pin the compiler's
// byte-exact output contract: for a given source string, the exact bytes
// the compiler must produce (or the exact error it must fail with).
package kat

// Suite is one YAML fixture file: a named group of related cases.
type Suite struct {
	Name  string `yaml:"name"`
	Cases []Case `yaml:"cases"`
}

// Case is a single known-answer test. Exactly one of Bytecode or
// ErrorCode should be set: a case either names the expected output bytes
// (hex, whitespace-separated) or the expected failure.
type Case struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`

	// Bytecode is the expected main bytecode, as whitespace-separated hex
	// byte pairs (e.g. "00 2A 00 00 00 51").
	Bytecode string `yaml:"bytecode,omitempty"`

	// ErrorCode names the expected failure by its ErrCode constant name
	// (e.g. "ErrUnknownToken"); omitting the "Err" prefix is not allowed —
	// names must match compiler.ErrXxx exactly so a typo fails loudly.
	ErrorCode string `yaml:"error,omitempty"`

	// ErrorToken, when set, is checked against the CompileError's Token
	// field in addition to ErrorCode.
	ErrorToken string `yaml:"error_token,omitempty"`
}
