package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"recomplink/internal/diag"
	"recomplink/internal/elfload"
	"recomplink/internal/recomp"
	"recomplink/internal/symfile"
)

// elfFlags registers the ELF front-end options shared by elf and pack.
type elfFlags struct {
	in         *string
	ref        *string
	rom        *string
	bssSuffix  *string
	relocSecs  *string
	allReloc   *bool
	entrypoint *string
	strict     *bool
}

func addELFFlags(fs *flag.FlagSet) *elfFlags {
	return &elfFlags{
		in:         fs.String("in", "", "path to the mod ELF object"),
		ref:        fs.String("ref", "", "reference symbol document for the base program"),
		rom:        fs.String("rom", "", "base program binary (used with --ref)"),
		bssSuffix:  fs.String("bss-suffix", "", "section name suffix pairing bss sections"),
		relocSecs:  fs.String("reloc-sections", "", "comma-separated section names to mark relocatable"),
		allReloc:   fs.Bool("all-relocatable", false, "mark every section relocatable"),
		entrypoint: fs.String("entrypoint", "", "expected entry point address"),
		strict:     fs.Bool("strict", false, "fail on the first structural error"),
	}
}

func (ef *elfFlags) config() (elfload.Config, error) {
	cfg := elfload.Config{
		BSSSectionSuffix:       *ef.bssSuffix,
		AllSectionsRelocatable: *ef.allReloc,
		UnpairedLO16Warnings:   true,
		Mode:                   diag.ModeBestEffort,
	}
	if *ef.strict {
		cfg.Mode = diag.ModeStrict
	}
	if *ef.relocSecs != "" {
		cfg.RelocatableSections = make(map[string]bool)
		for _, name := range strings.Split(*ef.relocSecs, ",") {
			cfg.RelocatableSections[name] = true
		}
	}
	if *ef.entrypoint != "" {
		addr, err := strconv.ParseUint(*ef.entrypoint, 0, 32)
		if err != nil {
			return cfg, fmt.Errorf("--entrypoint: %w", err)
		}
		entry := uint32(addr)
		cfg.Entrypoint = &entry
	}
	if *ef.ref != "" {
		refCtx, err := loadReference(*ef.ref, *ef.rom)
		if err != nil {
			return cfg, err
		}
		cfg.Reference = refCtx
	}
	return cfg, nil
}

// loadReference builds the base-program context the mod's patches and hooks
// resolve against.
func loadReference(refPath, romPath string) (*recomp.Context, error) {
	if romPath == "" {
		return nil, fmt.Errorf("--ref requires --rom")
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return nil, fmt.Errorf("read rom: %w", err)
	}
	ctx, err := symfile.Load(refPath, rom, symfile.Options{})
	if err != nil {
		return nil, fmt.Errorf("reference context: %w", err)
	}
	return ctx, nil
}

func cmdELF(args []string) error {
	fs := flag.NewFlagSet("elf", flag.ExitOnError)
	ef := addELFFlags(fs)
	jsonOut := fs.Bool("json", false, "output as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *ef.in == "" {
		return fmt.Errorf("--in is required")
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
	if cfg.Entrypoint != nil && !res.FoundEntrypoint {
		fmt.Fprintf(os.Stderr, "warning: entry point 0x%08x not found\n", *cfg.Entrypoint)
	}
	return printContext(ctx, *jsonOut)
}
