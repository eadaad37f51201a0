package recomp

import "fmt"

// RelocType is the MIPS relocation kind applied at a site.
type RelocType uint8

const (
	RelocNone RelocType = iota
	Reloc16
	Reloc32
	RelocRel32
	Reloc26
	RelocHi16
	RelocLo16
	RelocGpRel16
)

var relocNames = [...]string{
	RelocNone:    "R_MIPS_NONE",
	Reloc16:      "R_MIPS_16",
	Reloc32:      "R_MIPS_32",
	RelocRel32:   "R_MIPS_REL32",
	Reloc26:      "R_MIPS_26",
	RelocHi16:    "R_MIPS_HI16",
	RelocLo16:    "R_MIPS_LO16",
	RelocGpRel16: "R_MIPS_GPREL16",
}

func (t RelocType) String() string {
	if int(t) < len(relocNames) {
		return relocNames[t]
	}
	return fmt.Sprintf("R_MIPS_UNKNOWN(%d)", uint8(t))
}

// Valid reports whether the type is one of the modeled MIPS relocations.
func (t RelocType) Valid() bool { return int(t) < len(relocNames) }

// Reloc is one typed relocation record. When TargetSection is one of the
// absolute/import/event refs the target must be resolved through the symbol
// tables rather than the section list.
type Reloc struct {
	// Address is the vram of the relocation site.
	Address uint32
	// TargetSectionOffset locates the target within its section.
	TargetSectionOffset uint32
	// SymbolIndex is meaningful only when ReferenceSymbol is set or the
	// target section is one of the special namespaces.
	SymbolIndex   uint32
	TargetSection SectionRef
	Type          RelocType
	// ReferenceSymbol marks the target as a named reference symbol rather
	// than a raw section offset.
	ReferenceSymbol bool
}
