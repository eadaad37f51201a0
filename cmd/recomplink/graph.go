package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/zboralski/lattice/render"

	"recomplink/internal/depgraph"
)

func cmdGraph(args []string) error {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	in := fs.String("in", "", "mod symbol file")
	romPath := fs.String("rom", "", "binary image the symbols describe")
	out := fs.String("out", "", "output DOT file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *romPath == "" || *out == "" {
		return fmt.Errorf("--in, --rom and --out are required")
	}

	ctx, err := parseModSyms(*in, *romPath)
	if err != nil {
		return err
	}

	g := depgraph.Build(ctx)
	dot := render.DOT(g, "depgraph")
	if err := os.WriteFile(*out, []byte(dot), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s: %d nodes, %d edges\n", *out, len(g.Nodes), len(g.Edges))
	return nil
}
