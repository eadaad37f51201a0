package elfload

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"recomplink/internal/diag"
	"recomplink/internal/recomp"
)

type populator struct {
	ef  *elf.File
	cfg Config
	ctx *recomp.Context

	diags           diag.Diags
	dataSyms        recomp.DataSymbolMap
	foundEntrypoint bool

	// sectionMap translates ELF section indices into Context indices; only
	// SHF_ALLOC sections are kept.
	sectionMap  map[elf.SectionIndex]recomp.SectionIndex
	sectionData map[recomp.SectionIndex][]byte
	syms        []elf.Symbol
}

func (p *populator) run() error {
	if err := p.addSections(); err != nil {
		return err
	}

	syms, err := p.ef.Symbols()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoSymbols, err)
	}
	p.syms = syms

	if err := p.addSymbols(); err != nil {
		return err
	}
	if err := p.addRelocs(); err != nil {
		return err
	}

	if p.cfg.Entrypoint != nil {
		p.foundEntrypoint = len(p.ctx.FunctionsByVRAM[*p.cfg.Entrypoint]) > 0
	}

	for _, syms := range p.dataSyms {
		sort.Slice(syms, func(i, j int) bool { return syms[i].VRAM < syms[j].VRAM })
	}
	return nil
}

func (p *populator) fail(address uint64, kind diag.Kind, format string, args ...any) error {
	if p.cfg.Mode == diag.ModeStrict {
		return fmt.Errorf("elfload: %s", fmt.Sprintf(format, args...))
	}
	p.diags.Addf(address, kind, format, args...)
	return nil
}

func (p *populator) addSections() error {
	p.sectionMap = make(map[elf.SectionIndex]recomp.SectionIndex)
	p.sectionData = make(map[recomp.SectionIndex][]byte)

	for ei, s := range p.ef.Sections {
		if s.Flags&elf.SHF_ALLOC == 0 {
			continue
		}

		sec := recomp.Section{
			ROMAddr:         uint32(s.Offset),
			RAMAddr:         uint32(s.Addr),
			Size:            uint32(s.Size),
			Name:            s.Name,
			BSSSectionIndex: recomp.NoSection,
			Executable:      s.Flags&elf.SHF_EXECINSTR != 0,
			Relocatable:     p.cfg.AllSectionsRelocatable || p.cfg.RelocatableSections[s.Name],
		}
		idx := p.ctx.AddSection(sec)
		p.sectionMap[elf.SectionIndex(ei)] = idx

		if s.Type != elf.SHT_NOBITS {
			data, err := s.Data()
			if err != nil {
				return fmt.Errorf("elfload: section %s data: %w", s.Name, err)
			}
			p.sectionData[idx] = data
		}
	}

	p.pairBSSSections()
	return nil
}

// pairBSSSections links each data section to its bss extension, matched by
// the configured name suffix.
func (p *populator) pairBSSSections() {
	if p.cfg.BSSSectionSuffix == "" {
		return
	}
	byName := make(map[string]recomp.SectionIndex, len(p.ctx.Sections))
	for i := range p.ctx.Sections {
		byName[p.ctx.Sections[i].Name] = recomp.SectionIndex(i)
	}
	for i := range p.ctx.Sections {
		sec := &p.ctx.Sections[i]
		if strings.HasSuffix(sec.Name, p.cfg.BSSSectionSuffix) {
			continue
		}
		bss, ok := byName[sec.Name+p.cfg.BSSSectionSuffix]
		if !ok {
			continue
		}
		sec.BSSSectionIndex = bss
		sec.BSSSize = p.ctx.Sections[bss].Size
		p.ctx.BSSSectionToSection[bss] = recomp.SectionIndex(i)
	}
}

// funcSym is a function symbol pending size inference.
type funcSym struct {
	sym     elf.Symbol
	section recomp.SectionIndex
	size    uint32
	special specialKind
	arg     string
}

func (p *populator) addSymbols() error {
	var funcs []funcSym

	for _, sym := range p.syms {
		st := elf.ST_TYPE(sym.Info)
		if st == elf.STT_SECTION || st == elf.STT_FILE || sym.Name == "" {
			continue
		}

		if sym.Section == elf.SHN_UNDEF {
			continue
		}
		// SHN_ABS never appears in the section map, so absolute symbols take
		// the absolute-reference path below.
		ctxIdx, kept := p.sectionMap[sym.Section]
		if !kept {
			if p.cfg.UseAbsoluteSymbols && !p.ctx.ReferenceSymbolExists(sym.Name) {
				if err := p.ctx.AddReferenceSymbol(sym.Name, recomp.AbsoluteSectionRef, uint32(sym.Value), st == elf.STT_FUNC); err != nil {
					return fmt.Errorf("elfload: %w", err)
				}
			}
			continue
		}

		special, arg := classifySection(p.ctx.Sections[ctxIdx].Name)
		switch special {
		case specialEvent:
			if err := p.ctx.AddEventSymbol(sym.Name); err != nil {
				if err2 := p.fail(sym.Value, diag.KindInvalid, "event %s: %v", sym.Name, err); err2 != nil {
					return err2
				}
			}
			continue
		case specialImport:
			if err := p.addImport(sym.Name, arg); err != nil {
				return err
			}
			continue
		}

		vram := uint32(sym.Value)
		if st == elf.STT_FUNC && sym.Size == 0 && recomp.IsManualPatchSymbol(vram) {
			// Zero-sized symbols in the manual patch window name addresses
			// for patches instead of real functions.
			if !p.ctx.ReferenceSymbolExists(sym.Name) {
				if err := p.ctx.AddReferenceSymbol(sym.Name, recomp.AbsoluteSectionRef, vram, true); err != nil {
					return fmt.Errorf("elfload: %w", err)
				}
			}
			continue
		}

		if st == elf.STT_FUNC {
			funcs = append(funcs, funcSym{sym: sym, section: ctxIdx, special: special, arg: arg})
			continue
		}

		if p.dataSyms == nil {
			p.dataSyms = make(recomp.DataSymbolMap)
		}
		p.dataSyms[ctxIdx] = append(p.dataSyms[ctxIdx], recomp.DataSymbol{VRAM: vram, Name: sym.Name})
	}

	p.sizeFunctions(funcs)

	for i := range funcs {
		if err := p.addFunction(&funcs[i]); err != nil {
			return err
		}
	}
	return nil
}

// sizeFunctions fills in sizes for zero-sized function symbols: a manual
// override when configured, otherwise the gap to the next function in the
// same section, otherwise the section end.
func (p *populator) sizeFunctions(funcs []funcSym) {
	sort.Slice(funcs, func(i, j int) bool {
		if funcs[i].section != funcs[j].section {
			return funcs[i].section < funcs[j].section
		}
		return funcs[i].sym.Value < funcs[j].sym.Value
	})

	for i := range funcs {
		f := &funcs[i]
		switch {
		case f.sym.Size > 0:
			f.size = uint32(f.sym.Size)
		case p.cfg.ManuallySizedFuncs[f.sym.Name] > 0:
			f.size = p.cfg.ManuallySizedFuncs[f.sym.Name]
		case i+1 < len(funcs) && funcs[i+1].section == f.section:
			f.size = uint32(funcs[i+1].sym.Value - f.sym.Value)
		default:
			sec := &p.ctx.Sections[f.section]
			f.size = sec.RAMAddr + sec.Size - uint32(f.sym.Value)
		}
	}
}

func (p *populator) addFunction(f *funcSym) error {
	sec := &p.ctx.Sections[f.section]
	vram := uint32(f.sym.Value)
	off := vram - sec.RAMAddr

	data := p.sectionData[f.section]
	if uint64(off)+uint64(f.size) > uint64(len(data)) {
		return fmt.Errorf("elfload: function %s: %#x+%#x escapes section %s", f.sym.Name, off, f.size, sec.Name)
	}
	words := make([]uint32, f.size/4)
	for wi := range words {
		words[wi] = binary.BigEndian.Uint32(data[off+uint32(wi)*4:])
	}

	name := f.sym.Name
	if p.cfg.RenamedFuncs[name] {
		name += "_recomp"
	}

	fn := recomp.Function{
		VRAM:          vram,
		ROM:           sec.ROMAddr + off,
		Words:         words,
		Name:          name,
		SectionIndex:  f.section,
		Ignored:       p.cfg.IgnoredFuncs[f.sym.Name],
		Reimplemented: p.cfg.ReimplementedFuncs[f.sym.Name],
	}
	idx := p.ctx.AddFunction(fn)
	sec.FunctionAddrs = append(sec.FunctionAddrs, vram)

	return p.attachExtension(idx, f)
}

// attachExtension registers the extension-registry record a function's
// special section calls for.
func (p *populator) attachExtension(idx recomp.FuncIndex, f *funcSym) error {
	switch f.special {
	case specialPatch:
		return p.addReplacement(idx, f, 0)
	case specialForcedPatch:
		return p.addReplacement(idx, f, recomp.ReplacementForce)
	case specialExport:
		p.ctx.AddExportedFunction(idx)
	case specialHook:
		return p.addHook(idx, f, 0)
	case specialHookReturn:
		return p.addHook(idx, f, recomp.HookAtReturn)
	case specialCallback:
		return p.addCallback(idx, f)
	}
	return nil
}

// resolveOriginal finds the (section vrom, vram) of a base-program function
// by name in the reference symbol table.
func (p *populator) resolveOriginal(name string) (vrom, vram uint32, ok bool) {
	ref, found := p.ctx.FindRegularReferenceSymbol(name)
	if !found {
		return 0, 0, false
	}
	sym := p.ctx.ResolveSymbol(ref)
	vrom = p.ctx.ReferenceSectionROM(sym.Section)
	vram = p.ctx.ReferenceSectionVRAM(sym.Section) + sym.SectionOffset
	return vrom, vram, true
}

func (p *populator) addReplacement(idx recomp.FuncIndex, f *funcSym, flags recomp.ReplacementFlags) error {
	vrom, vram, ok := p.resolveOriginal(f.sym.Name)
	if !ok {
		return p.fail(f.sym.Value, diag.KindUnknownSym, "patch %s: no such function in the reference context", f.sym.Name)
	}
	p.ctx.AddFunctionReplacement(idx, vrom, vram, flags)
	return nil
}

func (p *populator) addHook(idx recomp.FuncIndex, f *funcSym, flags recomp.HookFlags) error {
	vrom, vram, ok := p.resolveOriginal(f.arg)
	if !ok {
		return p.fail(f.sym.Value, diag.KindUnknownSym, "hook target %s: no such function in the reference context", f.arg)
	}
	p.ctx.AddFunctionHook(idx, vrom, vram, flags)
	return nil
}

func (p *populator) addCallback(idx recomp.FuncIndex, f *funcSym) error {
	dep, event, ok := splitCallbackArg(f.arg)
	if !ok {
		return p.fail(f.sym.Value, diag.KindInvalid, "callback section arg %q", f.arg)
	}
	depIdx, err := p.dependencyFor(dep)
	if err != nil {
		return err
	}
	if depIdx < 0 {
		return nil // diagnosed in best-effort mode
	}
	eventIdx, ok := p.ctx.AddDependencyEvent(event, depIdx)
	if !ok {
		return p.fail(f.sym.Value, diag.KindInvalid, "callback %s: bad dependency index", f.sym.Name)
	}
	p.ctx.AddCallback(eventIdx, idx)
	return nil
}

func (p *populator) addImport(name, dep string) error {
	depIdx, err := p.dependencyFor(dep)
	if err != nil || depIdx < 0 {
		return err
	}
	if err := p.ctx.AddImportSymbol(name, depIdx); err != nil {
		return p.fail(0, diag.KindInvalid, "import %s from %s: %v", name, dep, err)
	}
	return nil
}

// dependencyFor validates and resolves a dependency name from a special
// section, registering it on first use. A best-effort skip returns -1.
func (p *populator) dependencyFor(dep string) (recomp.DepIndex, error) {
	if !recomp.ValidateModID(dep) {
		return -1, p.fail(0, diag.KindInvalid, "invalid dependency id %q", dep)
	}
	if idx, ok := p.ctx.ResolveDependency(dep); ok {
		return idx, nil
	}
	p.ctx.AddDependency(dep)
	idx, _ := p.ctx.FindDependency(dep)
	return idx, nil
}
