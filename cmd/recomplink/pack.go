package main

import (
	"flag"
	"fmt"
	"os"

	"recomplink/internal/elfload"
	"recomplink/internal/modsym"
)

func cmdPack(args []string) error {
	fs := flag.NewFlagSet("pack", flag.ExitOnError)
	ef := addELFFlags(fs)
	out := fs.String("out", "", "output mod symbol file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ef.in == "" || *out == "" {
		return fmt.Errorf("--in and --out are required")
	}

	cfg, err := ef.config()
	if err != nil {
		return err
	}
	ctx, res, err := elfload.Load(*ef.in, cfg)
	if err != nil {
		return err
	}
	for _, d := range res.Diags {
		fmt.Fprintf(os.Stderr, "warning: %s\n", d)
	}

	data := modsym.EncodeV1(ctx)
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", *out, err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s: %d bytes, %d sections, %d functions\n",
		*out, len(data), len(ctx.Sections), len(ctx.Functions))
	return nil
}
