package main

import (
	"flag"
	"fmt"
	"os"

	"recomplink/internal/symfile"
)

func cmdSyms(args []string) error {
	fs := flag.NewFlagSet("syms", flag.ExitOnError)
	in := fs.String("in", "", "path to the symbol document")
	romPath := fs.String("rom", "", "raw binary image the symbols describe")
	dataSyms := fs.String("data-syms", "", "data-reference symbol document")
	withRelocs := fs.Bool("with-relocs", false, "parse relocation tables")
	jsonOut := fs.Bool("json", false, "output as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *romPath == "" {
		return fmt.Errorf("--in and --rom are required")
	}

	rom, err := os.ReadFile(*romPath)
	if err != nil {
		return fmt.Errorf("read rom: %w", err)
	}
	ctx, err := symfile.Load(*in, rom, symfile.Options{WithRelocs: *withRelocs})
	if err != nil {
		return err
	}
	if *dataSyms != "" {
		if err := symfile.ReadDataReferenceSyms(*dataSyms, ctx); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "reference symbols: %d\n", ctx.RegularReferenceSymbolCount())
	}
	return printContext(ctx, *jsonOut)
}
