package modsym

import (
	"encoding/binary"
	"errors"
	"fmt"

	"recomplink/internal/recomp"
)

var (
	// ErrNotASymbolFile means the magic did not match.
	ErrNotASymbolFile = errors.New("modsym: not a symbol file")
	// ErrUnknownVersion means the version tag is unsupported.
	ErrUnknownVersion = errors.New("modsym: unknown symbol file version")
	// ErrCorruptFile means the stream is truncated or self-inconsistent.
	ErrCorruptFile = errors.New("modsym: corrupt symbol file")
	// ErrFunctionOutOfBounds means a decoded function escapes the supplied
	// binary image.
	ErrFunctionOutOfBounds = errors.New("modsym: function out of binary bounds")
)

type reader struct {
	data []byte
	off  int
}

func (r *reader) remaining() int { return len(r.data) - r.off }

func (r *reader) u8() (uint8, bool) {
	if r.remaining() < 1 {
		return 0, false
	}
	v := r.data[r.off]
	r.off++
	return v, true
}

func (r *reader) u16() (uint16, bool) {
	if r.remaining() < 2 {
		return 0, false
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, true
}

func (r *reader) u32() (uint32, bool) {
	if r.remaining() < 4 {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, true
}

func (r *reader) str() (string, bool) {
	n, ok := r.u32()
	if !ok || int(n) > r.remaining() {
		return "", false
	}
	s := string(r.data[r.off : r.off+int(n)])
	r.off += int(n)
	return s, true
}

// count reads a table length and bounds it by the minimum serialized record
// size, so a corrupt length cannot force a huge allocation.
func (r *reader) count(minRecordSize int) (int, bool) {
	n, ok := r.u32()
	if !ok {
		return 0, false
	}
	if minRecordSize > 0 && int(n) > r.remaining()/minRecordSize {
		return 0, false
	}
	return int(n), true
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptFile, fmt.Sprintf(format, args...))
}

// SectionVROMs reads just the section table header of a symbol file and
// returns the VROM of each serialized section, in stream order. It lets a
// caller build the VROM/section map Parse needs when the target binary's
// layout is not known from elsewhere.
func SectionVROMs(data []byte) ([]uint32, error) {
	r := &reader{data: data}
	if err := readHeader(r); err != nil {
		return nil, err
	}

	count, ok := r.count(28)
	if !ok {
		return nil, corrupt("section count")
	}
	vroms := make([]uint32, 0, count)
	for i := 0; i < count; i++ {
		vrom, ok := r.u32()
		if !ok {
			return nil, corrupt("section %d truncated", i)
		}
		vroms = append(vroms, vrom)
		if err := skipSectionBody(r, i); err != nil {
			return nil, err
		}
	}
	return vroms, nil
}

func readHeader(r *reader) error {
	var m [4]byte
	if r.remaining() < len(m) {
		return ErrNotASymbolFile
	}
	copy(m[:], r.data[r.off:])
	r.off += len(m)
	if m != magic {
		return ErrNotASymbolFile
	}

	version, ok := r.u32()
	if !ok {
		return ErrNotASymbolFile
	}
	if version != FormatVersion1 {
		return fmt.Errorf("%w: %d", ErrUnknownVersion, version)
	}
	return nil
}

func skipSectionBody(r *reader, si int) error {
	// vram, size, bss size, flags
	for j := 0; j < 4; j++ {
		if _, ok := r.u32(); !ok {
			return corrupt("section %d truncated", si)
		}
	}
	nfuncs, ok := r.count(12)
	if !ok {
		return corrupt("section %d function count", si)
	}
	for j := 0; j < nfuncs; j++ {
		if _, ok := r.u32(); !ok {
			return corrupt("section %d function %d", si, j)
		}
		if _, ok := r.u32(); !ok {
			return corrupt("section %d function %d", si, j)
		}
		if _, ok := r.str(); !ok {
			return corrupt("section %d function %d name", si, j)
		}
	}
	nrelocs, ok := r.count(16)
	if !ok {
		return corrupt("section %d reloc count", si)
	}
	if r.remaining() < nrelocs*16 {
		return corrupt("section %d reloc table truncated", si)
	}
	r.off += nrelocs * 16
	return nil
}

// Parse decodes a symbol file into a fresh Context. binary is the mod's code
// image; sectionsByVROM maps each section's VROM to its index in that image.
// Function words are sliced out of binary big-endian. Any structural
// violation aborts the decode: no partially populated Context is returned.
func Parse(data []byte, bin []byte, sectionsByVROM map[uint32]recomp.SectionIndex) (*recomp.Context, error) {
	r := &reader{data: data}
	if err := readHeader(r); err != nil {
		return nil, err
	}

	ctx := recomp.NewContext()
	ctx.ROM = bin

	nsections, ok := r.count(28)
	if !ok {
		return nil, corrupt("section count")
	}
	for si := 0; si < nsections; si++ {
		if err := parseSection(r, ctx, bin, sectionsByVROM, si, nsections); err != nil {
			return nil, err
		}
	}

	if err := parseDependencies(r, ctx); err != nil {
		return nil, err
	}
	if err := parseImports(r, ctx); err != nil {
		return nil, err
	}
	if err := parseDependencyEvents(r, ctx); err != nil {
		return nil, err
	}
	if err := parseReplacements(r, ctx); err != nil {
		return nil, err
	}
	if err := parseExports(r, ctx); err != nil {
		return nil, err
	}
	if err := parseCallbacks(r, ctx); err != nil {
		return nil, err
	}
	if err := parseEvents(r, ctx); err != nil {
		return nil, err
	}
	if err := parseHooks(r, ctx); err != nil {
		return nil, err
	}

	if r.remaining() != 0 {
		return nil, corrupt("%d trailing bytes", r.remaining())
	}
	return ctx, nil
}

func parseSection(r *reader, ctx *recomp.Context, bin []byte, sectionsByVROM map[uint32]recomp.SectionIndex, si, nsections int) error {
	vrom, ok1 := r.u32()
	vram, ok2 := r.u32()
	size, ok3 := r.u32()
	bssSize, ok4 := r.u32()
	flags, ok5 := r.u32()
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return corrupt("section %d truncated", si)
	}
	if _, known := sectionsByVROM[vrom]; !known {
		return corrupt("section %d: vrom %#x not in the supplied binary map", si, vrom)
	}

	sec := recomp.Section{
		ROMAddr:         vrom,
		RAMAddr:         vram,
		Size:            size,
		BSSSize:         bssSize,
		BSSSectionIndex: recomp.NoSection,
		Executable:      flags&sectionFlagExecutable != 0,
		Relocatable:     flags&sectionFlagRelocatable != 0,
		FixedAddress:    flags&sectionFlagFixedAddress != 0,
		GloballyLoaded:  flags&sectionFlagGloballyLoaded != 0,
	}

	nfuncs, ok := r.count(12)
	if !ok {
		return corrupt("section %d function count", si)
	}

	type pendingFunc struct {
		offset uint32
		size   uint32
		name   string
	}
	funcs := make([]pendingFunc, 0, nfuncs)
	for fi := 0; fi < nfuncs; fi++ {
		offset, ok1 := r.u32()
		fsize, ok2 := r.u32()
		name, ok3 := r.str()
		if !ok1 || !ok2 || !ok3 {
			return corrupt("section %d function %d truncated", si, fi)
		}
		if fsize%4 != 0 {
			return corrupt("section %d function %d: size %#x not word aligned", si, fi, fsize)
		}
		if uint64(offset)+uint64(fsize) > uint64(size) {
			return corrupt("section %d function %d: %#x+%#x escapes section size %#x", si, fi, offset, fsize, size)
		}
		funcs = append(funcs, pendingFunc{offset: offset, size: fsize, name: name})
	}

	nrelocs, ok := r.count(16)
	if !ok {
		return corrupt("section %d reloc count", si)
	}
	for ri := 0; ri < nrelocs; ri++ {
		rel, err := parseReloc(r, nsections, si, ri)
		if err != nil {
			return err
		}
		sec.Relocs = append(sec.Relocs, rel)
	}

	secIdx := ctx.AddSection(sec)
	for _, pf := range funcs {
		start := uint64(vrom) + uint64(pf.offset)
		end := start + uint64(pf.size)
		if end > uint64(len(bin)) {
			return fmt.Errorf("%w: %s at vrom %#x", ErrFunctionOutOfBounds, pf.name, start)
		}
		words := make([]uint32, pf.size/4)
		for wi := range words {
			words[wi] = binary.BigEndian.Uint32(bin[start+uint64(wi)*4:])
		}
		ctx.AddFunction(recomp.Function{
			VRAM:         vram + pf.offset,
			ROM:          vrom + pf.offset,
			Words:        words,
			Name:         pf.name,
			SectionIndex: secIdx,
		})
	}
	return nil
}

func parseReloc(r *reader, nsections, si, ri int) (recomp.Reloc, error) {
	address, ok1 := r.u32()
	relType, ok2 := r.u8()
	kind, ok3 := r.u8()
	index, ok4 := r.u16()
	symIndex, ok5 := r.u32()
	targetOffset, ok6 := r.u32()
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 {
		return recomp.Reloc{}, corrupt("section %d reloc %d truncated", si, ri)
	}

	rel := recomp.Reloc{
		Address:             address,
		TargetSectionOffset: targetOffset,
		SymbolIndex:         symIndex,
		Type:                recomp.RelocType(relType),
		ReferenceSymbol:     kind&(1<<7) != 0,
	}
	if !rel.Type.Valid() {
		return recomp.Reloc{}, corrupt("section %d reloc %d: reloc type %d", si, ri, relType)
	}

	switch kind &^ (1 << 7) {
	case targetKindRegular:
		// A local target must name one of the serialized sections;
		// reference targets resolve against the base context's table.
		if !rel.ReferenceSymbol && int(index) >= nsections {
			return recomp.Reloc{}, corrupt("section %d reloc %d: target section %d of %d", si, ri, index, nsections)
		}
		rel.TargetSection = recomp.RegularSection(recomp.SectionIndex(index))
	case targetKindAbsolute:
		rel.TargetSection = recomp.AbsoluteSectionRef
	case targetKindImport:
		rel.TargetSection = recomp.ImportSectionRef
	case targetKindEvent:
		rel.TargetSection = recomp.EventSectionRef
	default:
		return recomp.Reloc{}, corrupt("section %d reloc %d: target kind %d", si, ri, kind)
	}
	return rel, nil
}

func parseDependencies(r *reader, ctx *recomp.Context) error {
	count, ok := r.count(4)
	if !ok {
		return corrupt("dependency count")
	}
	for i := 0; i < count; i++ {
		name, ok := r.str()
		if !ok {
			return corrupt("dependency %d truncated", i)
		}
		if !recomp.ValidateModID(name) {
			return corrupt("dependency %d: invalid id %q", i, name)
		}
		if !ctx.AddDependency(name) {
			return corrupt("dependency %d: duplicate id %q", i, name)
		}
	}
	return nil
}

func parseImports(r *reader, ctx *recomp.Context) error {
	count, ok := r.count(8)
	if !ok {
		return corrupt("import count")
	}
	for i := 0; i < count; i++ {
		dep, ok1 := r.u32()
		name, ok2 := r.str()
		if !ok1 || !ok2 {
			return corrupt("import %d truncated", i)
		}
		if int(dep) >= len(ctx.Dependencies) {
			return corrupt("import %d: dependency %d of %d", i, dep, len(ctx.Dependencies))
		}
		if err := ctx.AddImportSymbol(name, recomp.DepIndex(dep)); err != nil {
			return corrupt("import %d: %v", i, err)
		}
	}
	return nil
}

func parseDependencyEvents(r *reader, ctx *recomp.Context) error {
	count, ok := r.count(8)
	if !ok {
		return corrupt("dependency event count")
	}
	for i := 0; i < count; i++ {
		dep, ok1 := r.u32()
		name, ok2 := r.str()
		if !ok1 || !ok2 {
			return corrupt("dependency event %d truncated", i)
		}
		if _, ok := ctx.AddDependencyEvent(name, recomp.DepIndex(dep)); !ok {
			return corrupt("dependency event %d: dependency %d of %d", i, dep, len(ctx.Dependencies))
		}
	}
	return nil
}

func parseReplacements(r *reader, ctx *recomp.Context) error {
	count, ok := r.count(16)
	if !ok {
		return corrupt("replacement count")
	}
	for i := 0; i < count; i++ {
		fn, ok1 := r.u32()
		vrom, ok2 := r.u32()
		vram, ok3 := r.u32()
		flags, ok4 := r.u32()
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return corrupt("replacement %d truncated", i)
		}
		if int(fn) >= len(ctx.Functions) {
			return corrupt("replacement %d: function %d of %d", i, fn, len(ctx.Functions))
		}
		ctx.AddFunctionReplacement(recomp.FuncIndex(fn), vrom, vram, recomp.ReplacementFlags(flags))
	}
	return nil
}

func parseExports(r *reader, ctx *recomp.Context) error {
	count, ok := r.count(4)
	if !ok {
		return corrupt("export count")
	}
	for i := 0; i < count; i++ {
		fn, ok := r.u32()
		if !ok {
			return corrupt("export %d truncated", i)
		}
		if int(fn) >= len(ctx.Functions) {
			return corrupt("export %d: function %d of %d", i, fn, len(ctx.Functions))
		}
		ctx.AddExportedFunction(recomp.FuncIndex(fn))
	}
	return nil
}

func parseCallbacks(r *reader, ctx *recomp.Context) error {
	count, ok := r.count(8)
	if !ok {
		return corrupt("callback count")
	}
	for i := 0; i < count; i++ {
		event, ok1 := r.u32()
		fn, ok2 := r.u32()
		if !ok1 || !ok2 {
			return corrupt("callback %d truncated", i)
		}
		if int(event) >= len(ctx.DependencyEvents) {
			return corrupt("callback %d: event %d of %d", i, event, len(ctx.DependencyEvents))
		}
		if int(fn) >= len(ctx.Functions) {
			return corrupt("callback %d: function %d of %d", i, fn, len(ctx.Functions))
		}
		ctx.AddCallback(recomp.DepEventIndex(event), recomp.FuncIndex(fn))
	}
	return nil
}

func parseEvents(r *reader, ctx *recomp.Context) error {
	count, ok := r.count(4)
	if !ok {
		return corrupt("event count")
	}
	for i := 0; i < count; i++ {
		name, ok := r.str()
		if !ok {
			return corrupt("event %d truncated", i)
		}
		if err := ctx.AddEventSymbol(name); err != nil {
			return corrupt("event %d: %v", i, err)
		}
	}
	return nil
}

func parseHooks(r *reader, ctx *recomp.Context) error {
	count, ok := r.count(16)
	if !ok {
		return corrupt("hook count")
	}
	for i := 0; i < count; i++ {
		fn, ok1 := r.u32()
		vrom, ok2 := r.u32()
		vram, ok3 := r.u32()
		flags, ok4 := r.u32()
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return corrupt("hook %d truncated", i)
		}
		if int(fn) >= len(ctx.Functions) {
			return corrupt("hook %d: function %d of %d", i, fn, len(ctx.Functions))
		}
		ctx.AddFunctionHook(recomp.FuncIndex(fn), vrom, vram, recomp.HookFlags(flags))
	}
	return nil
}
