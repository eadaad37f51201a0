package recomp

// FuncIndex identifies a function within a Context's function table.
type FuncIndex int

// NoFunc is the not-found sentinel for function lookups.
const NoFunc FuncIndex = -1

// Function is one decoded function of the target binary. Identity is the
// (vram, section index) pair: overlaid sections may legally host distinct
// functions at the same vram. Immutable once the Context is built, except for
// hook attachment.
type Function struct {
	VRAM         uint32
	ROM          uint32
	Words        []uint32
	Name         string
	SectionIndex SectionIndex

	Ignored       bool
	Reimplemented bool
	Stubbed       bool

	// hookedWords maps an instruction-word offset to the name of the mod
	// function hooked in at that word.
	hookedWords map[int32]string
}

// SetHook records a hook target name at an instruction-word offset.
func (f *Function) SetHook(wordOffset int32, target string) {
	if f.hookedWords == nil {
		f.hookedWords = make(map[int32]string)
	}
	f.hookedWords[wordOffset] = target
}

// HookAt returns the hook target attached at an instruction-word offset.
func (f *Function) HookAt(wordOffset int32) (string, bool) {
	target, ok := f.hookedWords[wordOffset]
	return target, ok
}

// Hooked reports whether any hook is attached to the function.
func (f *Function) Hooked() bool { return len(f.hookedWords) > 0 }

// Manual patch symbols are zero-sized symbols in a reserved vram window used
// by patches.
const (
	manualPatchSymbolBase = 0x8F000000
	manualPatchSymbolEnd  = 0x90000000
)

// IsManualPatchSymbol reports whether a vram falls in the reserved window for
// manually specified patch symbols.
func IsManualPatchSymbol(vram uint32) bool {
	return vram >= manualPatchSymbolBase && vram < manualPatchSymbolEnd
}
