package recomp

import "fmt"

// ReplacementFlags qualify a function replacement.
type ReplacementFlags uint32

const (
	// ReplacementForce overrides a conflicting replacement of the same
	// original function.
	ReplacementForce ReplacementFlags = 1 << 0
)

// FunctionReplacement swaps one of this module's functions in for an original
// function of the base program. The original is identified by its section
// vrom and vram rather than an index, because it does not exist in this
// Context's own function list; resolution happens downstream at mod load.
type FunctionReplacement struct {
	FunctionIndex       FuncIndex
	OriginalSectionVROM uint32
	OriginalVRAM        uint32
	Flags               ReplacementFlags
}

// HookFlags qualify a function hook.
type HookFlags uint32

const (
	// HookAtReturn places the hook after the original body instead of
	// before it.
	HookAtReturn HookFlags = 1 << 0
)

// FunctionHook calls one of this module's functions before or after an
// original function of the base program, identified like a replacement by
// (section vrom, vram).
type FunctionHook struct {
	FunctionIndex       FuncIndex
	OriginalSectionVROM uint32
	OriginalVRAM        uint32
	Flags               HookFlags
}

// EventSymbol declares a named event this module exposes for others to
// subscribe to.
type EventSymbol struct {
	ReferenceSymbol
}

// AddFunctionReplacement records that fn replaces the original function at
// (originalVROM, originalVRAM).
func (c *Context) AddFunctionReplacement(fn FuncIndex, originalVROM, originalVRAM uint32, flags ReplacementFlags) {
	c.Replacements = append(c.Replacements, FunctionReplacement{
		FunctionIndex:       fn,
		OriginalSectionVROM: originalVROM,
		OriginalVRAM:        originalVRAM,
		Flags:               flags,
	})
}

// AddFunctionHook records that fn hooks the original function at
// (originalVROM, originalVRAM). When the hooked function is present in this
// Context, the hook is also attached to its per-word map so code generation
// can test "is there a hook at this instruction word" without scanning the
// hook list. Function identity is the (vram, section) pair, so the vrom
// disambiguates between overlaid functions sharing a vram.
func (c *Context) AddFunctionHook(fn FuncIndex, originalVROM, originalVRAM uint32, flags HookFlags) {
	c.Hooks = append(c.Hooks, FunctionHook{
		FunctionIndex:       fn,
		OriginalSectionVROM: originalVROM,
		OriginalVRAM:        originalVRAM,
		Flags:               flags,
	})

	for _, ti := range c.FunctionsByVRAM[originalVRAM] {
		target := &c.Functions[ti]
		if int(target.SectionIndex) < 0 || int(target.SectionIndex) >= len(c.Sections) ||
			c.Sections[target.SectionIndex].ROMAddr != originalVROM {
			continue
		}
		offset := int32(0)
		if flags&HookAtReturn != 0 && len(target.Words) > 0 {
			offset = int32(len(target.Words) - 1)
		}
		target.SetHook(offset, c.Functions[fn].Name)
	}
}

// AddExportedFunction marks a function as importable by name from other
// modules.
func (c *Context) AddExportedFunction(fn FuncIndex) {
	c.ExportedFuncs = append(c.ExportedFuncs, fn)
}

// AddEventSymbol declares an event this module provides. Event symbols share
// the reference symbol name table, so the name must not collide with any
// reference symbol.
func (c *Context) AddEventSymbol(name string) error {
	if c.referenceSymbolsByName == nil {
		c.referenceSymbolsByName = make(map[string]SymbolRef)
	}
	if _, exists := c.referenceSymbolsByName[name]; exists {
		return fmt.Errorf("%w: event %s", ErrDuplicateSymbol, name)
	}

	c.referenceSymbolsByName[name] = SymbolRef{
		Section: EventSectionRef,
		Symbol:  len(c.EventSymbols),
	}
	c.EventSymbols = append(c.EventSymbols, EventSymbol{
		ReferenceSymbol: ReferenceSymbol{
			Name:       name,
			Section:    EventSectionRef,
			IsFunction: true,
		},
	})
	return nil
}

// FindEventSymbol looks up a declared event by name.
func (c *Context) FindEventSymbol(name string) (SymbolRef, bool) {
	ref, ok := c.referenceSymbolsByName[name]
	if !ok || ref.Section.Kind != SectionEvent {
		return SymbolRef{}, false
	}
	return ref, true
}
