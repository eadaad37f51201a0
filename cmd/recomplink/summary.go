package main

import (
	"encoding/json"
	"fmt"
	"os"

	"recomplink/internal/recomp"
)

type sectionSummary struct {
	Name      string `json:"name"`
	VROM      uint32 `json:"vrom"`
	VRAM      uint32 `json:"vram"`
	Size      uint32 `json:"size"`
	BSSSize   uint32 `json:"bss_size,omitempty"`
	Functions int    `json:"functions"`
	Relocs    int    `json:"relocs"`
}

type importSummary struct {
	Name       string `json:"name"`
	Dependency string `json:"dependency"`
}

type contextSummary struct {
	Sections     []sectionSummary `json:"sections"`
	Functions    int              `json:"functions"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Imports      []importSummary  `json:"imports,omitempty"`
	Events       []string         `json:"events,omitempty"`
	Exports      []string         `json:"exports,omitempty"`
	Replacements int              `json:"replacements"`
	Hooks        int              `json:"hooks"`
	Callbacks    int              `json:"callbacks"`
}

func summarize(ctx *recomp.Context) contextSummary {
	s := contextSummary{
		Functions:    len(ctx.Functions),
		Dependencies: ctx.Dependencies,
		Replacements: len(ctx.Replacements),
		Hooks:        len(ctx.Hooks),
		Callbacks:    len(ctx.Callbacks),
	}
	for i := range ctx.Sections {
		sec := &ctx.Sections[i]
		s.Sections = append(s.Sections, sectionSummary{
			Name:      sec.Name,
			VROM:      sec.ROMAddr,
			VRAM:      sec.RAMAddr,
			Size:      sec.Size,
			BSSSize:   sec.BSSSize,
			Functions: len(ctx.SectionFunctions[i]),
			Relocs:    len(sec.Relocs),
		})
	}
	for _, imp := range ctx.ImportSymbols {
		s.Imports = append(s.Imports, importSummary{
			Name:       imp.Name,
			Dependency: ctx.Dependencies[imp.DependencyIndex],
		})
	}
	for _, ev := range ctx.EventSymbols {
		s.Events = append(s.Events, ev.Name)
	}
	for _, fi := range ctx.ExportedFuncs {
		s.Exports = append(s.Exports, ctx.Functions[fi].Name)
	}
	return s
}

func printContext(ctx *recomp.Context, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summarize(ctx))
	}

	s := summarize(ctx)
	fmt.Printf("sections: %d\n", len(s.Sections))
	for _, sec := range s.Sections {
		fmt.Printf("  %-24s VROM=0x%08x VRAM=0x%08x size=0x%x funcs=%d relocs=%d\n",
			sec.Name, sec.VROM, sec.VRAM, sec.Size, sec.Functions, sec.Relocs)
	}
	fmt.Printf("functions: %d\n", s.Functions)
	if len(s.Dependencies) > 0 {
		fmt.Printf("dependencies: %v\n", s.Dependencies)
	}
	for _, imp := range s.Imports {
		fmt.Printf("  import %s from %s\n", imp.Name, imp.Dependency)
	}
	if len(s.Events) > 0 {
		fmt.Printf("events: %v\n", s.Events)
	}
	if len(s.Exports) > 0 {
		fmt.Printf("exports: %v\n", s.Exports)
	}
	fmt.Printf("replacements=%d hooks=%d callbacks=%d\n",
		s.Replacements, s.Hooks, s.Callbacks)
	return nil
}
