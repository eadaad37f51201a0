package recomp

import "fmt"

// AddReferenceSection appends a read-only mirror of another binary's section
// and returns its index in the reference section table.
func (c *Context) AddReferenceSection(rs ReferenceSection) SectionIndex {
	idx := SectionIndex(len(c.referenceSections))
	c.referenceSections = append(c.referenceSections, rs)
	return idx
}

// ReferenceSectionCount returns the number of reference sections.
func (c *Context) ReferenceSectionCount() int { return len(c.referenceSections) }

// ReferenceSectionAt returns the reference section at index i.
func (c *Context) ReferenceSectionAt(i SectionIndex) ReferenceSection {
	return c.referenceSections[i]
}

// AddReferenceSymbol registers a named address in a regular reference section
// or the absolute namespace. Import and event symbols have their own adders.
// A name already present in the table is rejected rather than silently
// overwritten, unless SkipValidatingReferenceSymbols is set.
func (c *Context) AddReferenceSymbol(name string, section SectionRef, vram uint32, isFunction bool) error {
	var sectionVRAM uint32
	switch section.Kind {
	case SectionAbsolute:
		sectionVRAM = 0
	case SectionRegular:
		if int(section.Index) < 0 || int(section.Index) >= len(c.referenceSections) {
			return fmt.Errorf("%w: reference section %d of %d", ErrBadSection, section.Index, len(c.referenceSections))
		}
		sectionVRAM = c.referenceSections[section.Index].RAMAddr
	default:
		return fmt.Errorf("%w: %s", ErrBadSection, section.Kind)
	}

	if c.referenceSymbolsByName == nil {
		c.referenceSymbolsByName = make(map[string]SymbolRef)
	}
	if _, exists := c.referenceSymbolsByName[name]; exists && !c.SkipValidatingReferenceSymbols {
		return fmt.Errorf("%w: %s", ErrDuplicateSymbol, name)
	}

	c.referenceSymbolsByName[name] = SymbolRef{
		Section: section,
		Symbol:  len(c.referenceSymbols),
	}
	c.referenceSymbols = append(c.referenceSymbols, ReferenceSymbol{
		Name:          name,
		Section:       section,
		SectionOffset: vram - sectionVRAM,
		IsFunction:    isFunction,
	})
	return nil
}

// FindReferenceSymbol looks a symbol up by name across the regular reference
// and event namespaces. Import symbols are scoped per dependency and are not
// found here; use FindImportSymbol.
func (c *Context) FindReferenceSymbol(name string) (SymbolRef, bool) {
	ref, ok := c.referenceSymbolsByName[name]
	return ref, ok
}

// ReferenceSymbolExists reports whether a name resolves to any reference or
// event symbol.
func (c *Context) ReferenceSymbolExists(name string) bool {
	_, ok := c.referenceSymbolsByName[name]
	return ok
}

// FindRegularReferenceSymbol is FindReferenceSymbol restricted to symbols in
// real sections or the absolute namespace; event hits are rejected.
func (c *Context) FindRegularReferenceSymbol(name string) (SymbolRef, bool) {
	ref, ok := c.referenceSymbolsByName[name]
	if !ok {
		return SymbolRef{}, false
	}
	if ref.Section.Kind == SectionImport || ref.Section.Kind == SectionEvent {
		return SymbolRef{}, false
	}
	return ref, true
}

// ResolveSymbol returns the ReferenceSymbol a SymbolRef names, dispatching on
// the section kind to pick the import, event, or regular table. The ref must
// be in range; callers guarantee validity.
func (c *Context) ResolveSymbol(ref SymbolRef) ReferenceSymbol {
	switch ref.Section.Kind {
	case SectionImport:
		return c.ImportSymbols[ref.Symbol].ReferenceSymbol
	case SectionEvent:
		return c.EventSymbols[ref.Symbol].ReferenceSymbol
	default:
		return c.referenceSymbols[ref.Symbol]
	}
}

// RegularReferenceSymbolCount returns the number of symbols in the regular
// reference table.
func (c *Context) RegularReferenceSymbolCount() int { return len(c.referenceSymbols) }

// RegularReferenceSymbol returns the i-th regular reference symbol.
func (c *Context) RegularReferenceSymbol(i int) ReferenceSymbol { return c.referenceSymbols[i] }

// HasReferenceSymbols reports whether any reference, import or event symbols
// are registered.
func (c *Context) HasReferenceSymbols() bool {
	return len(c.referenceSymbols) > 0 || len(c.ImportSymbols) > 0 || len(c.EventSymbols) > 0
}

// ReferenceSectionRelocatable reports whether a reference section may move at
// load time. The absolute namespace never moves; import and event targets
// always resolve indirectly at mod load, so they are always relocatable,
// regardless of the live-recompilation override.
func (c *Context) ReferenceSectionRelocatable(section SectionRef) bool {
	switch section.Kind {
	case SectionAbsolute:
		return false
	case SectionImport, SectionEvent:
		return true
	}
	if c.allReferenceSectionsRelocatable {
		return true
	}
	return c.referenceSections[section.Index].Relocatable
}

// ReferenceSectionVRAM returns the load address of a regular reference
// section, and 0 for the absolute/import/event namespaces, which have no
// fixed address.
func (c *Context) ReferenceSectionVRAM(section SectionRef) uint32 {
	if !section.Regular() {
		return 0
	}
	return c.referenceSections[section.Index].RAMAddr
}

// NoROMAddr is returned by ReferenceSectionROM for namespaces with no file
// image position.
const NoROMAddr = ^uint32(0)

// ReferenceSectionROM returns the file image position of a regular reference
// section, and NoROMAddr for the absolute/import/event namespaces.
func (c *Context) ReferenceSectionROM(section SectionRef) uint32 {
	if !section.Regular() {
		return NoROMAddr
	}
	return c.referenceSections[section.Index].ROMAddr
}
