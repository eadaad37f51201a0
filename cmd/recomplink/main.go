package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "elf":
		err = cmdELF(os.Args[2:])
	case "syms":
		err = cmdSyms(os.Args[2:])
	case "pack":
		err = cmdPack(os.Args[2:])
	case "unpack":
		err = cmdUnpack(os.Args[2:])
	case "graph":
		err = cmdGraph(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `recomplink — MIPS recompilation context and mod symbol tool

Usage:
  recomplink elf    --in <mod.elf> [--ref <base.toml> --rom <base.z64>]  Load an ELF object, print the context
  recomplink syms   --in <syms.toml> --rom <prog.z64>                    Load a symbol document, print the context
  recomplink pack   --in <mod.elf> --out <mod.rsym>                      Load an ELF object, write mod symbols
  recomplink unpack --in <mod.rsym> --rom <mod.bin> [--json]             Parse mod symbols, print the context
  recomplink graph  --in <mod.rsym> --rom <mod.bin> --out <graph.dot>    Export the dependency graph as DOT

Flags:
  --in <path>            Input file
  --rom <path>           Raw binary image the symbols describe
  --out <path>           Output file
  --ref <path>           Reference symbol document for the base program
  --bss-suffix <s>       Section name suffix pairing bss sections
  --reloc-sections <a,b> Comma-separated section names to mark relocatable
  --all-relocatable      Mark every section relocatable
  --entrypoint <addr>    Expected entry point address
  --with-relocs          Parse relocation tables from the symbol document
  --strict               Fail on the first structural error
  --json                 Output as JSON
`)
}
