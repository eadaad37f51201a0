package recomp

// Special section names recognized during mod ingestion. A function placed in
// one of these sections (or in a section carrying one of the prefixes) is
// classified into the extension registry by the front-end.
const (
	PatchSectionName        = ".recomp_patch"
	ForcedPatchSectionName  = ".recomp_force_patch"
	ExportSectionName       = ".recomp_export"
	EventSectionName        = ".recomp_event"
	ImportSectionPrefix     = ".recomp_import."
	CallbackSectionPrefix   = ".recomp_callback."
	HookSectionPrefix       = ".recomp_hook."
	HookReturnSectionPrefix = ".recomp_hook_return."
)

// SectionIndex identifies a section within a Context's section table.
type SectionIndex int

// NoSection marks the absence of a section, e.g. an unpaired bss link.
const NoSection SectionIndex = -1

// SectionKind says how the section part of a symbol or relocation target is
// resolved.
type SectionKind uint8

const (
	// SectionRegular targets a real section by index.
	SectionRegular SectionKind = iota
	// SectionAbsolute carries a bare numeric value with no section base.
	SectionAbsolute
	// SectionImport resolves through the import symbol table at mod load.
	SectionImport
	// SectionEvent resolves through the event symbol table at mod load.
	SectionEvent
)

func (k SectionKind) String() string {
	switch k {
	case SectionRegular:
		return "regular"
	case SectionAbsolute:
		return "absolute"
	case SectionImport:
		return "import"
	case SectionEvent:
		return "event"
	default:
		return "invalid"
	}
}

// SectionRef names either a regular section (by index) or one of the three
// indirect namespaces. It replaces the out-of-range sentinel indices the
// interchange format uses on the wire.
type SectionRef struct {
	Kind  SectionKind
	Index SectionIndex // meaningful only when Kind == SectionRegular
}

// RegularSection builds a SectionRef for a real section index.
func RegularSection(i SectionIndex) SectionRef {
	return SectionRef{Kind: SectionRegular, Index: i}
}

// Refs for the three special namespaces.
var (
	AbsoluteSectionRef = SectionRef{Kind: SectionAbsolute, Index: NoSection}
	ImportSectionRef   = SectionRef{Kind: SectionImport, Index: NoSection}
	EventSectionRef    = SectionRef{Kind: SectionEvent, Index: NoSection}
)

// Regular reports whether the ref names a real section rather than one of the
// absolute/import/event namespaces.
func (r SectionRef) Regular() bool { return r.Kind == SectionRegular }

// Section is one contiguous loadable region of the target binary being
// recompiled. It is owned by its Context and lives as long as it.
type Section struct {
	ROMAddr         uint32
	RAMAddr         uint32
	Size            uint32
	BSSSize         uint32 // not populated by the symbol-file front-end
	FunctionAddrs   []uint32
	Relocs          []Reloc
	Name            string
	BSSSectionIndex SectionIndex

	Executable      bool
	Relocatable     bool
	HasMIPS32Relocs bool
	// FixedAddress marks a mod section that must not be relocated or placed
	// into mod memory.
	FixedAddress bool
	// GloballyLoaded marks a mod section whose functions are globally loaded.
	// It does not load the section contents into ram.
	GloballyLoaded bool

	GOTRAMAddr uint32
	HasGOT     bool
}

// ReferenceSection is a reduced read-only mirror of another Context's section,
// used purely to resolve names to addresses. It carries no code bytes.
type ReferenceSection struct {
	ROMAddr     uint32
	RAMAddr     uint32
	Size        uint32
	Relocatable bool
}

// ReferenceSymbol is a named address used to resolve relocations without
// embedding the referenced code or data.
type ReferenceSymbol struct {
	Name          string
	Section       SectionRef
	SectionOffset uint32
	IsFunction    bool
}

// SymbolRef is the uniform handle for "where is this symbol": a section ref
// plus an index into the table that ref's kind selects.
type SymbolRef struct {
	Section SectionRef
	Symbol  int
}

// DataSymbol is a named data address found by the ELF front-end.
type DataSymbol struct {
	VRAM uint32
	Name string
}

// DataSymbolMap groups data symbols by owning section, ordered by address.
type DataSymbolMap map[SectionIndex][]DataSymbol
