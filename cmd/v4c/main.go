// v4c is a command-line front end over github.com/v4front/v4c/pkg/compiler:
// compile a source file, disassemble a container or source file, save/load
// the on-disk bytecode container, or drive an interactive REPL.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/v4front/v4c/pkg/compiler"
)

// config holds the optional -config YAML file's contents. MaxWords and
// MaxControlDepth are parsed but not applied: those bounds are fixed
// compiler invariants, not runtime knobs, so a config file naming them
// only produces a warning.
type config struct {
	OutDir          string `yaml:"out_dir"`
	MaxWords        int    `yaml:"max_words"`
	MaxControlDepth int    `yaml:"max_control_depth"`
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var c config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &c, nil
}

func main() {
	outPath := flag.String("o", "", "output path for compile/save")
	disasmFlag := flag.Bool("disasm", false, "print disassembly alongside the requested action")
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	var cfg *config
	if *configPath != "" {
		c, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = c
		if cfg.MaxWords != 0 || cfg.MaxControlDepth != 0 {
			fmt.Fprintln(os.Stderr, "warning: max_words/max_control_depth in config are informational only; the compiler's bounds are fixed")
		}
	}

	args := flag.Args()
	if len(args) == 0 {
		repl()
		return
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "compile":
		err = runCompile(rest, *outPath, *disasmFlag, cfg)
	case "disasm":
		err = runDisasm(rest)
	case "save":
		err = runSave(rest, *outPath)
	case "load":
		err = runLoad(rest)
	case "repl":
		repl()
		return
	case "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`v4c - Forth-style bytecode compiler

Usage:
  v4c [-o out.v4bc] [-disasm] [-config cfg.yaml] compile <source.v4f>
  v4c disasm <source.v4f | bytecode.v4bc>
  v4c -o out.v4bc save <source.v4f>
  v4c load <bytecode.v4bc>
  v4c repl
  v4c help

With no arguments, v4c starts the REPL.
`)
}

func readSource(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func runCompile(args []string, outPath string, showDisasm bool, cfg *config) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: v4c [-o out.v4bc] compile <source.v4f>")
	}
	source, err := readSource(args[0])
	if err != nil {
		return err
	}
	out, err := compiler.Compile(source)
	if err != nil {
		return err
	}

	fmt.Printf("main: %d bytes\n", len(out.Main))
	for _, w := range out.Words {
		fmt.Printf("word %s: %d bytes\n", w.Name, len(w.Code))
	}
	if showDisasm {
		fmt.Println("=== main ===")
		fmt.Print(compiler.Disassemble(out.Main))
		for _, w := range out.Words {
			fmt.Printf("=== %s ===\n", w.Name)
			fmt.Print(compiler.Disassemble(w.Code))
		}
	}

	if outPath == "" && cfg != nil && cfg.OutDir != "" {
		base := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		outPath = filepath.Join(cfg.OutDir, base+".v4bc")
	}
	if outPath != "" {
		if err := compiler.SaveBytecode(out, outPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", outPath)
	}
	return nil
}

func runSave(args []string, outPath string) error {
	if len(args) == 0 || outPath == "" {
		return fmt.Errorf("usage: v4c -o out.v4bc save <source.v4f>")
	}
	source, err := readSource(args[0])
	if err != nil {
		return err
	}
	out, err := compiler.Compile(source)
	if err != nil {
		return err
	}
	if err := compiler.SaveBytecode(out, outPath); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%d bytes)\n", outPath, len(out.Main))
	return nil
}

func runLoad(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: v4c load <bytecode.v4bc>")
	}
	out, err := compiler.LoadBytecode(args[0])
	if err != nil {
		return err
	}
	fmt.Printf("loaded %d bytes\n", len(out.Main))
	fmt.Print(compiler.Disassemble(out.Main))
	return nil
}

func runDisasm(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: v4c disasm <source.v4f | bytecode.v4bc>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	if isContainer(data) {
		out, err := compiler.LoadBytecode(args[0])
		if err != nil {
			return err
		}
		fmt.Print(compiler.Disassemble(out.Main))
		return nil
	}

	out, err := compiler.Compile(string(data))
	if err != nil {
		return err
	}
	fmt.Println("=== main ===")
	fmt.Print(compiler.Disassemble(out.Main))
	for _, w := range out.Words {
		fmt.Printf("=== %s ===\n", w.Name)
		fmt.Print(compiler.Disassemble(w.Code))
	}
	return nil
}

// isContainer reports whether data starts with the "V4BC" container magic.
func isContainer(data []byte) bool {
	return len(data) >= 4 && string(data[0:4]) == "V4BC"
}

func repl() {
	fmt.Println("v4c REPL")
	fmt.Println("Type 'help' for commands, 'quit' to exit")
	fmt.Println()

	ctx := compiler.NewContext()
	nextVMIdx := 0
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("v4c> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "quit", "exit":
			return
		case "help":
			printReplHelp()
			continue
		case "words":
			for i := 0; i < ctx.Count(); i++ {
				name, _ := ctx.NameAt(i)
				fmt.Println(name)
			}
			continue
		case "reset":
			ctx.Reset()
			nextVMIdx = 0
			fmt.Println("cleared")
			continue
		}

		out, err := compiler.CompileWithContext(ctx, line)
		if err != nil {
			if ce, ok := err.(*compiler.CompileError); ok {
				fmt.Println(compiler.FormatError(ce, line))
			} else {
				fmt.Println("Error:", err)
			}
			continue
		}

		for _, w := range out.Words {
			ctx.Register(w.Name, nextVMIdx)
			nextVMIdx++
		}

		fmt.Print(compiler.Disassemble(out.Main))
		for _, w := range out.Words {
			fmt.Printf("=== %s ===\n", w.Name)
			fmt.Print(compiler.Disassemble(w.Code))
		}
	}
}

func printReplHelp() {
	fmt.Print(`Commands:
  quit, exit - leave the REPL
  help       - show this help
  words      - list word names registered so far
  reset      - forget all registered words

Anything else is compiled as one line of source and disassembled. Word
definitions (": NAME ... ;") register NAME for later lines to call.
`)
}
