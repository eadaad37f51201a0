package main

import (
	"flag"
	"fmt"
	"os"

	"recomplink/internal/modsym"
	"recomplink/internal/recomp"
)

// parseModSyms reads a mod symbol file plus the binary it describes and
// decodes the full context. The section map is taken from the stream header
// in file order.
func parseModSyms(inPath, romPath string) (*recomp.Context, error) {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", inPath, err)
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		return nil, fmt.Errorf("read rom: %w", err)
	}

	vroms, err := modsym.SectionVROMs(data)
	if err != nil {
		return nil, err
	}
	byVROM := make(map[uint32]recomp.SectionIndex, len(vroms))
	for i, vrom := range vroms {
		byVROM[vrom] = recomp.SectionIndex(i)
	}

	return modsym.Parse(data, rom, byVROM)
}

func cmdUnpack(args []string) error {
	fs := flag.NewFlagSet("unpack", flag.ExitOnError)
	in := fs.String("in", "", "mod symbol file")
	romPath := fs.String("rom", "", "binary image the symbols describe")
	jsonOut := fs.Bool("json", false, "output as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" || *romPath == "" {
		return fmt.Errorf("--in and --rom are required")
	}

	ctx, err := parseModSyms(*in, *romPath)
	if err != nil {
		return err
	}
	return printContext(ctx, *jsonOut)
}
