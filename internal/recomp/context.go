// Package recomp models the address space of a MIPS binary being statically
// recompiled: sections, functions, relocations, jump tables, and the
// dependency/import/export graph that binds a mod build to a base program.
//
// A Context is built serially by a front-end (ELF or symbol file), then
// treated as read-only while code generation and serialization query it.
// All cross-entity links are integer indices into Context-owned slices, so a
// Context can be copied or serialized by value. None of the mutating methods
// are safe for concurrent callers.
package recomp

import "errors"

var (
	ErrDuplicateSymbol = errors.New("recomp: symbol name already registered")
	ErrBadSection      = errors.New("recomp: invalid section for symbol")
	ErrBadDependency   = errors.New("recomp: dependency index out of range")
)

// Context is the whole linkage model for one binary: the base program or a
// single mod.
type Context struct {
	// Reference symbol state, used to populate relocations for patches.
	referenceSections      []ReferenceSection
	referenceSymbols       []ReferenceSymbol
	referenceSymbolsByName map[string]SymbolRef
	// Treat every reference section as relocatable (live recompilation).
	allReferenceSectionsRelocatable bool

	Sections  []Section
	Functions []Function
	// SectionFunctions lists the functions of each section, parallel to
	// Sections, in insertion order.
	SectionFunctions [][]FuncIndex
	// FunctionsByVRAM maps a vram to every function at that address;
	// overlaid sections make this legitimately multi-valued.
	FunctionsByVRAM map[uint32][]FuncIndex
	// FunctionsByName maps a function name to its index. Front-end use only.
	FunctionsByName map[string]FuncIndex
	// BSSSectionToSection maps a bss section to its paired data section.
	BSSSectionToSection map[SectionIndex]SectionIndex

	// ROM is the image of the target binary being recompiled, used to read
	// instruction words and relocation sites.
	ROM []byte

	JumpTables       []JumpTable
	jumpTablesByVRAM map[uint32]int

	// Mod dependency graph.
	Dependencies            []string
	dependenciesByName      map[string]DepIndex
	ImportSymbols           []ImportSymbol
	DependencyEvents        []DependencyEvent
	dependencyEventsByName  []map[string]DepEventIndex
	dependencyImportsByName []map[string]int

	// Extension registry.
	Replacements  []FunctionReplacement
	ExportedFuncs []FuncIndex
	Callbacks     []Callback
	EventSymbols  []EventSymbol
	Hooks         []FunctionHook

	// SkipValidatingReferenceSymbols disables call-target validation when
	// emitting function calls.
	SkipValidatingReferenceSymbols bool
	// UseLookupForAllFunctionCalls routes every non-reference call through
	// runtime lookup.
	UseLookupForAllFunctionCalls bool
	// TraceMode makes generated functions report their first invocation.
	TraceMode bool
}

// NewContext returns an empty Context ready for front-end population.
func NewContext() *Context {
	return &Context{
		referenceSymbolsByName: make(map[string]SymbolRef),
		FunctionsByVRAM:        make(map[uint32][]FuncIndex),
		FunctionsByName:        make(map[string]FuncIndex),
		BSSSectionToSection:    make(map[SectionIndex]SectionIndex),
		dependenciesByName:     make(map[string]DepIndex),
	}
}

// AddSection appends a section and grows the per-section function lists.
func (c *Context) AddSection(s Section) SectionIndex {
	idx := SectionIndex(len(c.Sections))
	c.Sections = append(c.Sections, s)
	c.SectionFunctions = append(c.SectionFunctions, nil)
	if s.BSSSectionIndex != NoSection {
		if c.BSSSectionToSection == nil {
			c.BSSSectionToSection = make(map[SectionIndex]SectionIndex)
		}
		c.BSSSectionToSection[s.BSSSectionIndex] = idx
	}
	return idx
}

// AddFunction appends a function and maintains the vram, name and section
// indices. The function's section index must already be valid.
func (c *Context) AddFunction(fn Function) FuncIndex {
	idx := FuncIndex(len(c.Functions))
	c.Functions = append(c.Functions, fn)

	if c.FunctionsByVRAM == nil {
		c.FunctionsByVRAM = make(map[uint32][]FuncIndex)
	}
	c.FunctionsByVRAM[fn.VRAM] = append(c.FunctionsByVRAM[fn.VRAM], idx)

	if fn.Name != "" {
		if c.FunctionsByName == nil {
			c.FunctionsByName = make(map[string]FuncIndex)
		}
		c.FunctionsByName[fn.Name] = idx
	}

	if int(fn.SectionIndex) >= 0 && int(fn.SectionIndex) < len(c.SectionFunctions) {
		c.SectionFunctions[fn.SectionIndex] = append(c.SectionFunctions[fn.SectionIndex], idx)
	}
	return idx
}

// FindFunctionByVRAMSection returns the function at a vram within a specific
// section, or NoFunc. The same vram may host distinct functions in distinct
// overlaid sections, so the vram index alone is not enough.
func (c *Context) FindFunctionByVRAMSection(vram uint32, section SectionIndex) FuncIndex {
	for _, fi := range c.FunctionsByVRAM[vram] {
		if c.Functions[fi].SectionIndex == section {
			return fi
		}
	}
	return NoFunc
}

// CopyReferenceSectionsFrom value-copies another Context's reference sections
// into this one. It must run before any relocation resolution that depends on
// them.
func (c *Context) CopyReferenceSectionsFrom(other *Context) {
	c.referenceSections = append([]ReferenceSection(nil), other.referenceSections...)
}

// ImportReferenceContext imports another Context's sections and function
// symbols as this Context's reference sections and reference symbols, so a
// mod's relocations resolve against the base program's addressing scheme.
func (c *Context) ImportReferenceContext(ref *Context) error {
	base := SectionIndex(len(c.referenceSections))
	for _, s := range ref.Sections {
		c.referenceSections = append(c.referenceSections, ReferenceSection{
			ROMAddr:     s.ROMAddr,
			RAMAddr:     s.RAMAddr,
			Size:        s.Size,
			Relocatable: s.Relocatable,
		})
	}
	for i := range ref.Functions {
		fn := &ref.Functions[i]
		if fn.Name == "" {
			continue
		}
		err := c.AddReferenceSymbol(fn.Name, RegularSection(base+fn.SectionIndex), fn.VRAM, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// SetAllReferenceSectionsRelocatable configures the Context for live
// recompilation, where every reference section is treated as relocatable.
func (c *Context) SetAllReferenceSectionsRelocatable() {
	c.allReferenceSectionsRelocatable = true
}
