package elfload

import (
	"debug/elf"
	"encoding/binary"
	"fmt"

	"recomplink/internal/diag"
	"recomplink/internal/recomp"
)

// maxRelocType is the highest MIPS relocation this model carries; the ELF
// numbering of R_MIPS_NONE..R_MIPS_GPREL16 matches RelocType directly.
const maxRelocType = uint32(elf.R_MIPS_GPREL16)

// addRelocs parses each SHT_REL section targeting a kept section. MIPS REL
// records are two big-endian words: the site offset and (sym << 8 | type).
func (p *populator) addRelocs() error {
	for _, s := range p.ef.Sections {
		if s.Type != elf.SHT_REL {
			continue
		}
		target, kept := p.sectionMap[elf.SectionIndex(s.Info)]
		if !kept {
			continue
		}

		data, err := s.Data()
		if err != nil {
			return fmt.Errorf("elfload: reloc section %s: %w", s.Name, err)
		}
		if len(data)%8 != 0 {
			return fmt.Errorf("elfload: reloc section %s: odd size %d", s.Name, len(data))
		}

		if err := p.parseRelSection(target, data); err != nil {
			return err
		}
	}
	return nil
}

func (p *populator) parseRelSection(target recomp.SectionIndex, data []byte) error {
	sec := &p.ctx.Sections[target]
	seenHi := false

	for off := 0; off < len(data); off += 8 {
		site := binary.BigEndian.Uint32(data[off:])
		info := binary.BigEndian.Uint32(data[off+4:])
		relType := info & 0xff
		symNo := info >> 8

		if relType > maxRelocType {
			if err := p.fail(uint64(site), diag.KindInvalid, "unsupported reloc type %d in %s", relType, sec.Name); err != nil {
				return err
			}
			continue
		}
		typ := recomp.RelocType(relType)

		switch typ {
		case recomp.RelocHi16:
			seenHi = true
		case recomp.RelocLo16:
			if !seenHi && p.cfg.UnpairedLO16Warnings {
				p.diags.Addf(uint64(site), diag.KindUnpairedLo16, "LO16 with no preceding HI16 in %s", sec.Name)
			}
		}

		rel := recomp.Reloc{
			Address: sec.RAMAddr + site,
			Type:    typ,
		}
		if typ == recomp.Reloc32 {
			sec.HasMIPS32Relocs = true
		}

		// Symbol number 0 is the null symbol; debug/elf strips it from the
		// table, so entry n lives at syms[n-1].
		if symNo == 0 || int(symNo) > len(p.syms) {
			if err := p.fail(uint64(site), diag.KindInvalid, "reloc symbol %d out of range in %s", symNo, sec.Name); err != nil {
				return err
			}
			continue
		}
		sym := p.syms[symNo-1]

		ok, err := p.resolveRelocTarget(&rel, sym)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		sec.Relocs = append(sec.Relocs, rel)
	}
	return nil
}

// resolveRelocTarget fills in the reloc's target from its ELF symbol:
// absolute symbols carry their value directly, symbols in kept sections
// target those sections (imports and events through their namespaces), and
// anything else must resolve through the reference symbol table.
func (p *populator) resolveRelocTarget(rel *recomp.Reloc, sym elf.Symbol) (bool, error) {
	if sym.Section == elf.SHN_ABS {
		rel.TargetSection = recomp.AbsoluteSectionRef
		rel.TargetSectionOffset = uint32(sym.Value)
		return true, nil
	}

	if ctxIdx, kept := p.sectionMap[sym.Section]; kept {
		special, arg := classifySection(p.ctx.Sections[ctxIdx].Name)
		switch special {
		case specialImport:
			depIdx, ok := p.ctx.FindDependency(arg)
			if !ok {
				return false, p.fail(sym.Value, diag.KindUnknownSym, "import reloc %s: unknown dependency %s", sym.Name, arg)
			}
			ref, ok := p.ctx.FindImportSymbol(sym.Name, depIdx)
			if !ok {
				return false, p.fail(sym.Value, diag.KindUnknownSym, "import reloc %s: not registered for %s", sym.Name, arg)
			}
			rel.TargetSection = recomp.ImportSectionRef
			rel.SymbolIndex = uint32(ref.Symbol)
			rel.ReferenceSymbol = true
			return true, nil
		case specialEvent:
			ref, ok := p.ctx.FindEventSymbol(sym.Name)
			if !ok {
				return false, p.fail(sym.Value, diag.KindUnknownSym, "event reloc %s: not declared", sym.Name)
			}
			rel.TargetSection = recomp.EventSectionRef
			rel.SymbolIndex = uint32(ref.Symbol)
			rel.ReferenceSymbol = true
			return true, nil
		}

		sec := &p.ctx.Sections[ctxIdx]
		rel.TargetSection = recomp.RegularSection(ctxIdx)
		rel.TargetSectionOffset = uint32(sym.Value) - sec.RAMAddr
		return true, nil
	}

	// Undefined or non-loadable: resolve by name against the reference
	// symbols imported from the base context.
	if ref, ok := p.ctx.FindReferenceSymbol(sym.Name); ok {
		rsym := p.ctx.ResolveSymbol(ref)
		rel.TargetSection = rsym.Section
		rel.TargetSectionOffset = rsym.SectionOffset
		rel.SymbolIndex = uint32(ref.Symbol)
		rel.ReferenceSymbol = true
		return true, nil
	}

	if p.cfg.UseAbsoluteSymbols {
		rel.TargetSection = recomp.AbsoluteSectionRef
		rel.TargetSectionOffset = uint32(sym.Value)
		return true, nil
	}

	return false, p.fail(sym.Value, diag.KindUnknownSym, "reloc target %s: %v", sym.Name, ErrBadSymbol)
}
