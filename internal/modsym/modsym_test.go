package modsym

import (
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"recomplink/internal/recomp"
)

// buildModContext assembles a small mod context plus the binary image its
// function words live in.
func buildModContext(t *testing.T) (*recomp.Context, []byte, map[uint32]recomp.SectionIndex) {
	t.Helper()

	bin := make([]byte, 0x100)
	for i := 0; i < len(bin); i += 4 {
		binary.BigEndian.PutUint32(bin[i:], 0x24000000|uint32(i))
	}

	ctx := recomp.NewContext()
	text := ctx.AddSection(recomp.Section{
		ROMAddr:         0x40,
		RAMAddr:         0x80400000,
		Size:            0x60,
		BSSSize:         0x10,
		BSSSectionIndex: recomp.NoSection,
		Executable:      true,
		Relocatable:     true,
		GloballyLoaded:  true,
		Relocs: []recomp.Reloc{
			{
				Address:             0x80400004,
				TargetSectionOffset: 0x20,
				Type:                recomp.RelocHi16,
				TargetSection:       recomp.RegularSection(0),
			},
			{
				Address:         0x80400008,
				SymbolIndex:     0,
				Type:            recomp.Reloc26,
				TargetSection:   recomp.ImportSectionRef,
				ReferenceSymbol: true,
			},
			{
				Address:             0x8040000c,
				TargetSectionOffset: 0xdeadbeef,
				Type:                recomp.Reloc32,
				TargetSection:       recomp.AbsoluteSectionRef,
			},
		},
	})

	mkWords := func(rom, size uint32) []uint32 {
		words := make([]uint32, size/4)
		for i := range words {
			words[i] = binary.BigEndian.Uint32(bin[rom+uint32(i)*4:])
		}
		return words
	}
	main := ctx.AddFunction(recomp.Function{
		VRAM: 0x80400000, ROM: 0x40, Words: mkWords(0x40, 0x20),
		Name: "mod_main", SectionIndex: text,
	})
	tick := ctx.AddFunction(recomp.Function{
		VRAM: 0x80400020, ROM: 0x60, Words: mkWords(0x60, 0x10),
		Name: "mod_tick", SectionIndex: text,
	})

	ctx.AddDependency(recomp.DependencyBaseRecomp)
	ctx.AddDependency("modA")
	depA, _ := ctx.FindDependency("modA")
	if err := ctx.AddImportSymbol("draw_sprite", depA); err != nil {
		t.Fatal(err)
	}
	event, _ := ctx.AddDependencyEvent("OnTick", depA)
	ctx.AddCallback(event, tick)
	ctx.AddFunctionReplacement(main, 0x1000, 0x80023440, recomp.ReplacementForce)
	ctx.AddFunctionHook(tick, 0x1000, 0x80023500, recomp.HookAtReturn)
	ctx.AddExportedFunction(main)
	if err := ctx.AddEventSymbol("OnModReady"); err != nil {
		t.Fatal(err)
	}

	return ctx, bin, map[uint32]recomp.SectionIndex{0x40: text}
}

func TestRoundTripV1(t *testing.T) {
	ctx, bin, vroms := buildModContext(t)

	data := EncodeV1(ctx)
	got, err := Parse(data, bin, vroms)
	if err != nil {
		t.Fatal(err)
	}

	if len(got.Sections) != len(ctx.Sections) {
		t.Fatalf("sections = %d, want %d", len(got.Sections), len(ctx.Sections))
	}
	sec, want := got.Sections[0], ctx.Sections[0]
	if sec.ROMAddr != want.ROMAddr || sec.RAMAddr != want.RAMAddr || sec.Size != want.Size || sec.BSSSize != want.BSSSize {
		t.Errorf("section = %+v, want %+v", sec, want)
	}
	if sec.GloballyLoaded != want.GloballyLoaded || sec.FixedAddress != want.FixedAddress ||
		sec.Executable != want.Executable || sec.Relocatable != want.Relocatable {
		t.Errorf("section flags = %+v", sec)
	}
	if !reflect.DeepEqual(got.ROM, bin) {
		t.Error("decoded context does not carry the binary image")
	}
	if !reflect.DeepEqual(sec.Relocs, want.Relocs) {
		t.Errorf("relocs = %+v, want %+v", sec.Relocs, want.Relocs)
	}

	if len(got.Functions) != len(ctx.Functions) {
		t.Fatalf("functions = %d, want %d", len(got.Functions), len(ctx.Functions))
	}
	for i := range ctx.Functions {
		g, w := got.Functions[i], ctx.Functions[i]
		if g.Name != w.Name || g.VRAM != w.VRAM || g.ROM != w.ROM || g.SectionIndex != w.SectionIndex {
			t.Errorf("function %d = %+v, want %+v", i, g, w)
		}
		if !reflect.DeepEqual(g.Words, w.Words) {
			t.Errorf("function %d words differ", i)
		}
	}

	if !reflect.DeepEqual(got.Dependencies, ctx.Dependencies) {
		t.Errorf("dependencies = %v, want %v", got.Dependencies, ctx.Dependencies)
	}
	if len(got.ImportSymbols) != 1 ||
		got.ImportSymbols[0].Name != "draw_sprite" ||
		got.ImportSymbols[0].DependencyIndex != ctx.ImportSymbols[0].DependencyIndex {
		t.Errorf("imports = %+v", got.ImportSymbols)
	}
	if !reflect.DeepEqual(got.DependencyEvents, ctx.DependencyEvents) {
		t.Errorf("dependency events = %+v", got.DependencyEvents)
	}
	if !reflect.DeepEqual(got.Replacements, ctx.Replacements) {
		t.Errorf("replacements = %+v", got.Replacements)
	}
	if !reflect.DeepEqual(got.Hooks, ctx.Hooks) {
		t.Errorf("hooks = %+v", got.Hooks)
	}
	if !reflect.DeepEqual(got.Callbacks, ctx.Callbacks) {
		t.Errorf("callbacks = %+v", got.Callbacks)
	}
	if !reflect.DeepEqual(got.ExportedFuncs, ctx.ExportedFuncs) {
		t.Errorf("exports = %+v", got.ExportedFuncs)
	}
	if len(got.EventSymbols) != 1 || got.EventSymbols[0].Name != "OnModReady" {
		t.Errorf("events = %+v", got.EventSymbols)
	}

	// Scoped lookups survive the round trip.
	depA, ok := got.FindDependency("modA")
	if !ok {
		t.Fatal("modA lost")
	}
	if _, ok := got.FindImportSymbol("draw_sprite", depA); !ok {
		t.Error("import lookup lost")
	}
	if _, ok := got.FindEventSymbol("OnModReady"); !ok {
		t.Error("event lookup lost")
	}
}

func TestRoundTripSectionFlags(t *testing.T) {
	bin := make([]byte, 0x40)
	ctx := recomp.NewContext()
	ctx.AddSection(recomp.Section{
		ROMAddr: 0x0, RAMAddr: 0x80400000, Size: 0x20,
		BSSSectionIndex: recomp.NoSection,
		Executable:      true, Relocatable: true,
	})
	ctx.AddSection(recomp.Section{
		ROMAddr: 0x20, RAMAddr: 0x80400020, Size: 0x20,
		BSSSectionIndex: recomp.NoSection,
	})
	vroms := map[uint32]recomp.SectionIndex{0x0: 0, 0x20: 1}

	got, err := Parse(EncodeV1(ctx), bin, vroms)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Sections[0].Executable || !got.Sections[0].Relocatable {
		t.Errorf("text flags lost: %+v", got.Sections[0])
	}
	// A plain data section must not come back executable or relocatable.
	if got.Sections[1].Executable || got.Sections[1].Relocatable {
		t.Errorf("data section gained flags: %+v", got.Sections[1])
	}
}

func TestSectionVROMs(t *testing.T) {
	ctx, _, _ := buildModContext(t)
	data := EncodeV1(ctx)

	vroms, err := SectionVROMs(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(vroms) != 1 || vroms[0] != 0x40 {
		t.Errorf("vroms = %#x, want [0x40]", vroms)
	}
}

func TestParseBadMagic(t *testing.T) {
	_, err := Parse([]byte("NOPE\x01\x00\x00\x00"), nil, nil)
	if !errors.Is(err, ErrNotASymbolFile) {
		t.Errorf("err = %v, want ErrNotASymbolFile", err)
	}
}

func TestParseShortHeader(t *testing.T) {
	for _, n := range []int{0, 3, 4, 7} {
		data := append([]byte{}, []byte("RSYM\x01\x00\x00\x00")[:n]...)
		if _, err := Parse(data, nil, nil); !errors.Is(err, ErrNotASymbolFile) {
			t.Errorf("len %d: err = %v, want ErrNotASymbolFile", n, err)
		}
	}
}

func TestParseUnknownVersion(t *testing.T) {
	data := []byte{'R', 'S', 'Y', 'M', 2, 0, 0, 0}
	_, err := Parse(data, nil, nil)
	if !errors.Is(err, ErrUnknownVersion) {
		t.Errorf("err = %v, want ErrUnknownVersion", err)
	}
}

func TestParseTruncated(t *testing.T) {
	ctx, bin, vroms := buildModContext(t)
	data := EncodeV1(ctx)

	for n := 8; n < len(data); n += 7 {
		got, err := Parse(data[:n], bin, vroms)
		if err == nil {
			t.Fatalf("truncation at %d accepted", n)
		}
		if got != nil {
			t.Fatalf("truncation at %d returned a partial context", n)
		}
		if !errors.Is(err, ErrCorruptFile) && !errors.Is(err, ErrFunctionOutOfBounds) {
			t.Errorf("truncation at %d: err = %v", n, err)
		}
	}
}

func TestParseTrailingGarbage(t *testing.T) {
	ctx, bin, vroms := buildModContext(t)
	data := append(EncodeV1(ctx), 0xcc)

	if _, err := Parse(data, bin, vroms); !errors.Is(err, ErrCorruptFile) {
		t.Errorf("err = %v, want ErrCorruptFile", err)
	}
}

func TestParseFunctionOutOfBounds(t *testing.T) {
	ctx, bin, vroms := buildModContext(t)
	data := EncodeV1(ctx)

	_, err := Parse(data, bin[:0x50], vroms)
	if !errors.Is(err, ErrFunctionOutOfBounds) {
		t.Errorf("err = %v, want ErrFunctionOutOfBounds", err)
	}
}

func TestParseUnknownSectionVROM(t *testing.T) {
	ctx, bin, _ := buildModContext(t)
	data := EncodeV1(ctx)

	_, err := Parse(data, bin, map[uint32]recomp.SectionIndex{0x9999: 0})
	if !errors.Is(err, ErrCorruptFile) {
		t.Errorf("err = %v, want ErrCorruptFile", err)
	}
}

func FuzzParse(f *testing.F) {
	ctx := recomp.NewContext()
	ctx.AddSection(recomp.Section{ROMAddr: 0, RAMAddr: 0x80400000, Size: 8, BSSSectionIndex: recomp.NoSection})
	ctx.AddFunction(recomp.Function{VRAM: 0x80400000, Name: "f", Words: []uint32{0, 0}})
	f.Add(EncodeV1(ctx))
	f.Add([]byte("RSYM"))
	f.Add([]byte{})

	bin := make([]byte, 64)
	vroms := map[uint32]recomp.SectionIndex{0: 0}
	f.Fuzz(func(t *testing.T, data []byte) {
		got, err := Parse(data, bin, vroms)
		if (got == nil) == (err == nil) {
			t.Fatalf("parse returned (%v, %v)", got, err)
		}
	})
}
