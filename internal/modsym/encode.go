// Package modsym encodes and decodes the versioned binary interchange format
// that carries a mod's linkage graph: sections, functions, relocations,
// dependencies, imports, events, and the extension registry.
package modsym

import (
	"encoding/binary"

	"recomplink/internal/recomp"
)

// Wire layout constants. All multi-byte fields are little-endian; the code
// bytes the format points into remain big-endian MIPS words.
var magic = [4]byte{'R', 'S', 'Y', 'M'}

const (
	// FormatVersion1 is the only version with a writer.
	FormatVersion1 = 1

	sectionFlagFixedAddress   = 1 << 0
	sectionFlagGloballyLoaded = 1 << 1
	sectionFlagExecutable     = 1 << 2
	sectionFlagRelocatable    = 1 << 3

	targetKindRegular  = 0
	targetKindAbsolute = 1
	targetKindImport   = 2
	targetKindEvent    = 3
)

type writer struct {
	buf []byte
}

func (w *writer) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

func sectionRefWire(ref recomp.SectionRef) (kind uint8, index uint16) {
	switch ref.Kind {
	case recomp.SectionAbsolute:
		return targetKindAbsolute, 0
	case recomp.SectionImport:
		return targetKindImport, 0
	case recomp.SectionEvent:
		return targetKindEvent, 0
	default:
		return targetKindRegular, uint16(ref.Index)
	}
}

// EncodeV1 serializes a mod Context to the version 1 interchange format.
// Function positions are stored section-relative, so decoding needs the
// target binary's VROM/section map to recover addresses.
func EncodeV1(ctx *recomp.Context) []byte {
	w := &writer{buf: make([]byte, 0, 4096)}

	w.buf = append(w.buf, magic[:]...)
	w.u32(FormatVersion1)

	// Section table, with nested function and reloc tables.
	w.u32(uint32(len(ctx.Sections)))
	for si := range ctx.Sections {
		sec := &ctx.Sections[si]
		w.u32(sec.ROMAddr)
		w.u32(sec.RAMAddr)
		w.u32(sec.Size)
		w.u32(sec.BSSSize)

		var flags uint32
		if sec.FixedAddress {
			flags |= sectionFlagFixedAddress
		}
		if sec.GloballyLoaded {
			flags |= sectionFlagGloballyLoaded
		}
		if sec.Executable {
			flags |= sectionFlagExecutable
		}
		if sec.Relocatable {
			flags |= sectionFlagRelocatable
		}
		w.u32(flags)

		funcs := ctx.SectionFunctions[si]
		w.u32(uint32(len(funcs)))
		for _, fi := range funcs {
			fn := &ctx.Functions[fi]
			w.u32(fn.VRAM - sec.RAMAddr)
			w.u32(uint32(len(fn.Words)) * 4)
			w.str(fn.Name)
		}

		w.u32(uint32(len(sec.Relocs)))
		for _, r := range sec.Relocs {
			w.u32(r.Address)
			w.u8(uint8(r.Type))
			kind, index := sectionRefWire(r.TargetSection)
			if r.ReferenceSymbol {
				kind |= 1 << 7
			}
			w.u8(kind)
			w.u16(index)
			w.u32(r.SymbolIndex)
			w.u32(r.TargetSectionOffset)
		}
	}

	w.u32(uint32(len(ctx.Dependencies)))
	for _, dep := range ctx.Dependencies {
		w.str(dep)
	}

	w.u32(uint32(len(ctx.ImportSymbols)))
	for _, imp := range ctx.ImportSymbols {
		w.u32(uint32(imp.DependencyIndex))
		w.str(imp.Name)
	}

	w.u32(uint32(len(ctx.DependencyEvents)))
	for _, ev := range ctx.DependencyEvents {
		w.u32(uint32(ev.DependencyIndex))
		w.str(ev.EventName)
	}

	w.u32(uint32(len(ctx.Replacements)))
	for _, rep := range ctx.Replacements {
		w.u32(uint32(rep.FunctionIndex))
		w.u32(rep.OriginalSectionVROM)
		w.u32(rep.OriginalVRAM)
		w.u32(uint32(rep.Flags))
	}

	w.u32(uint32(len(ctx.ExportedFuncs)))
	for _, fi := range ctx.ExportedFuncs {
		w.u32(uint32(fi))
	}

	w.u32(uint32(len(ctx.Callbacks)))
	for _, cb := range ctx.Callbacks {
		w.u32(uint32(cb.DependencyEventIndex))
		w.u32(uint32(cb.FunctionIndex))
	}

	w.u32(uint32(len(ctx.EventSymbols)))
	for _, ev := range ctx.EventSymbols {
		w.str(ev.Name)
	}

	w.u32(uint32(len(ctx.Hooks)))
	for _, h := range ctx.Hooks {
		w.u32(uint32(h.FunctionIndex))
		w.u32(h.OriginalSectionVROM)
		w.u32(h.OriginalVRAM)
		w.u32(uint32(h.Flags))
	}

	return w.buf
}
