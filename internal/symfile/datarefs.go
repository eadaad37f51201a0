package symfile

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"recomplink/internal/recomp"
)

type dataRefsDoc struct {
	Symbols []dataSymDoc `toml:"symbols"`
}

type dataSymDoc struct {
	Name string `toml:"name"`
	VRAM int64  `toml:"vram"`
}

// ReadDataReferenceSyms ingests a data-reference symbol document, adding each
// entry to ctx's reference symbol table. Symbols landing inside a known
// reference section are recorded section-relative; anything else becomes an
// absolute symbol.
func ReadDataReferenceSyms(path string, ctx *recomp.Context) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("symfile: open: %w", err)
	}
	defer f.Close()
	return ReadDataReferenceSymsFrom(f, ctx)
}

// ReadDataReferenceSymsFrom is ReadDataReferenceSyms for an open document.
func ReadDataReferenceSymsFrom(r io.Reader, ctx *recomp.Context) error {
	var doc dataRefsDoc
	if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrBadDocument, err)
	}

	for _, sd := range doc.Symbols {
		if sd.Name == "" {
			return fmt.Errorf("%w: unnamed data symbol at %#x", ErrBadDocument, sd.VRAM)
		}
		vram := uint32(sd.VRAM)
		section := recomp.AbsoluteSectionRef
		if idx, ok := referenceSectionFor(ctx, vram); ok {
			section = recomp.RegularSection(idx)
		}
		if err := ctx.AddReferenceSymbol(sd.Name, section, vram, false); err != nil {
			return fmt.Errorf("symfile: data symbol %s: %w", sd.Name, err)
		}
	}
	return nil
}

func referenceSectionFor(ctx *recomp.Context, addr uint32) (recomp.SectionIndex, bool) {
	for i := 0; i < ctx.ReferenceSectionCount(); i++ {
		rs := ctx.ReferenceSectionAt(recomp.SectionIndex(i))
		if addr >= rs.RAMAddr && addr < rs.RAMAddr+rs.Size {
			return recomp.SectionIndex(i), true
		}
	}
	return recomp.NoSection, false
}
