// Package elfload populates a recomp.Context from a MIPS ELF object.
package elfload

import (
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"strings"

	"recomplink/internal/diag"
	"recomplink/internal/recomp"
)

var (
	ErrNotELF       = errors.New("elfload: not an ELF file")
	ErrNotMIPS      = errors.New("elfload: not MIPS (EM_MIPS)")
	ErrNot32Bit     = errors.New("elfload: not 32-bit ELF")
	ErrNotBigEndian = errors.New("elfload: not big-endian ELF")
	ErrNoSymbols    = errors.New("elfload: no symbol table")
	ErrBadSymbol    = errors.New("elfload: unresolvable symbol")
)

// Config controls ELF ingestion. The function classification sets are scoped
// to one Load call; there is no process-wide registry.
type Config struct {
	// BSSSectionSuffix pairs a bss section (e.g. ".main.bss") with the data
	// section it extends.
	BSSSectionSuffix string
	// ManuallySizedFuncs gives byte sizes for functions whose size cannot be
	// inferred from the next symbol.
	ManuallySizedFuncs map[string]uint32
	// RelocatableSections force-marks sections by name.
	RelocatableSections    map[string]bool
	AllSectionsRelocatable bool
	// Entrypoint, when non-nil, is the fixed entry-point vram to look for.
	Entrypoint *uint32
	// UseAbsoluteSymbols registers symbols outside loadable sections as
	// absolute reference symbols instead of dropping them.
	UseAbsoluteSymbols bool
	// UnpairedLO16Warnings reports LO16 relocations with no preceding HI16.
	UnpairedLO16Warnings bool

	// Function classification by name.
	ReimplementedFuncs map[string]bool
	IgnoredFuncs       map[string]bool
	RenamedFuncs       map[string]bool

	// Reference, when non-nil, is an already-built base Context whose
	// sections and function symbols resolve this mod's patch, hook and
	// reference targets.
	Reference *recomp.Context

	Mode diag.Mode
}

// Result carries the non-Context outputs of a Load.
type Result struct {
	DataSyms        recomp.DataSymbolMap
	FoundEntrypoint bool
	Diags           []diag.Diag
}

// Load reads a 32-bit big-endian MIPS ELF and builds a Context from it. Both
// executables (base program) and relocatable objects (mods) are accepted.
func Load(path string, cfg Config) (*recomp.Context, Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Result{}, fmt.Errorf("elfload: open: %w", err)
	}
	defer f.Close()

	ef, err := elf.NewFile(f)
	if err != nil {
		return nil, Result{}, fmt.Errorf("%w: %v", ErrNotELF, err)
	}
	return Read(ef, cfg)
}

// Read builds a Context from an already-opened ELF file.
func Read(ef *elf.File, cfg Config) (*recomp.Context, Result, error) {
	if ef.Class != elf.ELFCLASS32 {
		return nil, Result{}, ErrNot32Bit
	}
	if ef.Data != elf.ELFDATA2MSB {
		return nil, Result{}, ErrNotBigEndian
	}
	if ef.Machine != elf.EM_MIPS {
		return nil, Result{}, ErrNotMIPS
	}

	p := &populator{ef: ef, cfg: cfg, ctx: recomp.NewContext()}
	if cfg.Reference != nil {
		if err := p.ctx.ImportReferenceContext(cfg.Reference); err != nil {
			return nil, Result{}, fmt.Errorf("elfload: import reference context: %w", err)
		}
		if cfg.AllSectionsRelocatable {
			p.ctx.SetAllReferenceSectionsRelocatable()
		}
	}

	if err := p.run(); err != nil {
		return nil, Result{}, err
	}
	return p.ctx, Result{
		DataSyms:        p.dataSyms,
		FoundEntrypoint: p.foundEntrypoint,
		Diags:           p.diags.Items(),
	}, nil
}

// specialKind classifies a section name against the reserved mod section
// names.
type specialKind int

const (
	specialNone specialKind = iota
	specialPatch
	specialForcedPatch
	specialExport
	specialEvent
	specialImport
	specialCallback
	specialHook
	specialHookReturn
)

// classifySection maps a section name to its extension-registry meaning. The
// arg carries the dependency name for imports, the "dep.event" pair for
// callbacks, and the hooked function name for hooks.
func classifySection(name string) (specialKind, string) {
	switch name {
	case recomp.PatchSectionName:
		return specialPatch, ""
	case recomp.ForcedPatchSectionName:
		return specialForcedPatch, ""
	case recomp.ExportSectionName:
		return specialExport, ""
	case recomp.EventSectionName:
		return specialEvent, ""
	}
	switch {
	case strings.HasPrefix(name, recomp.ImportSectionPrefix):
		return specialImport, name[len(recomp.ImportSectionPrefix):]
	case strings.HasPrefix(name, recomp.CallbackSectionPrefix):
		return specialCallback, name[len(recomp.CallbackSectionPrefix):]
	case strings.HasPrefix(name, recomp.HookReturnSectionPrefix):
		return specialHookReturn, name[len(recomp.HookReturnSectionPrefix):]
	case strings.HasPrefix(name, recomp.HookSectionPrefix):
		return specialHook, name[len(recomp.HookSectionPrefix):]
	}
	return specialNone, ""
}

// splitCallbackArg splits the "<dependency>.<event>" tail of a callback
// section name. The event name never contains a dot, so the split is at the
// last one; the dependency part may itself be the reserved "." name.
func splitCallbackArg(arg string) (dep, event string, ok bool) {
	i := strings.LastIndexByte(arg, '.')
	if i < 0 || i == len(arg)-1 {
		return "", "", false
	}
	return arg[:i], arg[i+1:], true
}
