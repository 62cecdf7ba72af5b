// Command weft is the CLI front end for the language: compile one
// source file, optionally dump its bytecode, and run it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/weftlang/weft/internal/builtins"
	"github.com/weftlang/weft/internal/vm"

	"github.com/mattn/go-isatty"
)

const (
	exitOK      = 0
	exitCompile = 1
	exitRuntime = 2
)

func main() {
	disasm := flag.Bool("disasm", true, "print a hex dump and disassembly before running")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-disasm=false] <source-file>\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(exitCompile)
	}

	path := flag.Arg(0)
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		os.Exit(exitCompile)
	}

	globals := vm.NewGlobals(builtins.Default())

	fn, err := vm.Compile(string(src), globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: compile error: %v\n", path, err)
		os.Exit(exitCompile)
	}

	if *disasm {
		printDisassembly(path, fn)
	}

	machine := vm.NewMachine(globals)
	if _, err := machine.Run(fn); err != nil {
		fmt.Fprintf(os.Stderr, "%s: runtime error: %v\n", path, err)
		os.Exit(exitRuntime)
	}

	os.Exit(exitOK)
}

// printDisassembly prints a hex dump of the emitted bytecode followed by
// its disassembly. The banner is bolded only when stdout is a terminal.
func printDisassembly(name string, fn *vm.FunctionObj) {
	banner := "== %s: bytecode ==\n"
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		banner = "\x1b[1m== %s: bytecode ==\x1b[0m\n"
	}
	fmt.Printf(banner, name)

	for i, b := range fn.Chunk.Code {
		if i > 0 && i%16 == 0 {
			fmt.Println()
		}
		fmt.Printf("%02x ", b)
	}
	fmt.Println()
	fmt.Print(vm.Disassemble(fn.Chunk, name))
}
