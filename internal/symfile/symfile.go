// Package symfile builds a recomp.Context from a TOML symbol document plus
// the raw target binary, for binaries that ship symbol listings instead of
// relocatable ELF objects. Instruction words are not stored in the document;
// they are recovered from the supplied rom image.
package symfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"recomplink/internal/recomp"
)

var (
	ErrBadDocument         = errors.New("symfile: malformed symbol document")
	ErrFunctionOutOfBounds = errors.New("symfile: function outside the rom image")
	ErrBadRelocType        = errors.New("symfile: unknown relocation type")
	ErrUnresolvedReloc     = errors.New("symfile: relocation target outside every section")
)

// Options selects optional parts of the document.
type Options struct {
	// WithRelocs parses the per-section relocation tables. When false any
	// reloc entries present in the document are ignored.
	WithRelocs bool
}

type document struct {
	Sections []sectionDoc `toml:"sections"`
}

type sectionDoc struct {
	Name        string     `toml:"name"`
	ROM         int64      `toml:"rom"`
	VRAM        int64      `toml:"vram"`
	Size        int64      `toml:"size"`
	Relocatable bool       `toml:"relocatable"`
	Functions   []funcDoc  `toml:"functions"`
	Relocs      []relocDoc `toml:"relocs"`
}

type funcDoc struct {
	Name string `toml:"name"`
	VRAM int64  `toml:"vram"`
	Size int64  `toml:"size"`
}

type relocDoc struct {
	VRAM       int64  `toml:"vram"`
	TargetVRAM int64  `toml:"target_vram"`
	Type       string `toml:"type"`
}

// Load reads a symbol document from path and populates a Context against the
// supplied rom image.
func Load(path string, rom []byte, opts Options) (*recomp.Context, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("symfile: open: %w", err)
	}
	defer f.Close()
	return Read(f, rom, opts)
}

// Read is Load for an already-open document.
func Read(r io.Reader, rom []byte, opts Options) (*recomp.Context, error) {
	var doc document
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDocument, err)
	}
	if len(doc.Sections) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrBadDocument)
	}

	ctx := recomp.NewContext()
	ctx.ROM = rom

	for i := range doc.Sections {
		if err := addSection(ctx, &doc.Sections[i], rom); err != nil {
			return nil, err
		}
	}
	if opts.WithRelocs {
		for i := range doc.Sections {
			if err := addRelocs(ctx, recomp.SectionIndex(i), &doc.Sections[i]); err != nil {
				return nil, err
			}
		}
	}
	return ctx, nil
}

func addSection(ctx *recomp.Context, sd *sectionDoc, rom []byte) error {
	if sd.Name == "" || sd.Size <= 0 {
		return fmt.Errorf("%w: section %q", ErrBadDocument, sd.Name)
	}

	idx := ctx.AddSection(recomp.Section{
		ROMAddr:         uint32(sd.ROM),
		RAMAddr:         uint32(sd.VRAM),
		Size:            uint32(sd.Size),
		Name:            sd.Name,
		BSSSectionIndex: recomp.NoSection,
		Executable:      len(sd.Functions) > 0,
		Relocatable:     sd.Relocatable,
	})
	sec := &ctx.Sections[idx]

	for _, fd := range sd.Functions {
		if err := addFunction(ctx, idx, sec, &fd, rom); err != nil {
			return err
		}
	}
	return nil
}

func addFunction(ctx *recomp.Context, idx recomp.SectionIndex, sec *recomp.Section, fd *funcDoc, rom []byte) error {
	vram := uint32(fd.VRAM)
	size := uint32(fd.Size)
	if fd.Name == "" || size%4 != 0 ||
		vram < sec.RAMAddr || uint64(vram)+uint64(size) > uint64(sec.RAMAddr)+uint64(sec.Size) {
		return fmt.Errorf("%w: function %q in %s", ErrBadDocument, fd.Name, sec.Name)
	}

	off := vram - sec.RAMAddr
	start := uint64(sec.ROMAddr) + uint64(off)
	if start+uint64(size) > uint64(len(rom)) {
		return fmt.Errorf("%w: %s at rom %#x+%#x", ErrFunctionOutOfBounds, fd.Name, start, size)
	}

	words := make([]uint32, size/4)
	for wi := range words {
		words[wi] = binary.BigEndian.Uint32(rom[start+uint64(wi)*4:])
	}

	ctx.AddFunction(recomp.Function{
		VRAM:         vram,
		ROM:          sec.ROMAddr + off,
		Words:        words,
		Name:         fd.Name,
		SectionIndex: idx,
	})
	sec.FunctionAddrs = append(sec.FunctionAddrs, vram)
	return nil
}

func addRelocs(ctx *recomp.Context, idx recomp.SectionIndex, sd *sectionDoc) error {
	sec := &ctx.Sections[idx]
	for _, rd := range sd.Relocs {
		typ, ok := parseRelocType(rd.Type)
		if !ok {
			return fmt.Errorf("%w: %q in %s", ErrBadRelocType, rd.Type, sec.Name)
		}
		target, off, ok := sectionFor(ctx, uint32(rd.TargetVRAM))
		if !ok {
			return fmt.Errorf("%w: %#x in %s", ErrUnresolvedReloc, rd.TargetVRAM, sec.Name)
		}
		if typ == recomp.Reloc32 {
			sec.HasMIPS32Relocs = true
		}
		sec.Relocs = append(sec.Relocs, recomp.Reloc{
			Address:             uint32(rd.VRAM),
			TargetSectionOffset: off,
			TargetSection:       recomp.RegularSection(target),
			Type:                typ,
		})
	}
	return nil
}

// sectionFor finds the section whose vram range contains addr.
func sectionFor(ctx *recomp.Context, addr uint32) (recomp.SectionIndex, uint32, bool) {
	for i := range ctx.Sections {
		s := &ctx.Sections[i]
		if addr >= s.RAMAddr && addr < s.RAMAddr+s.Size {
			return recomp.SectionIndex(i), addr - s.RAMAddr, true
		}
	}
	return recomp.NoSection, 0, false
}

func parseRelocType(name string) (recomp.RelocType, bool) {
	for t := recomp.RelocNone; t <= recomp.RelocGpRel16; t++ {
		if t.String() == name {
			return t, true
		}
	}
	return recomp.RelocNone, false
}
