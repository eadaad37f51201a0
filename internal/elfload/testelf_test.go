package elfload

// Minimal 32-bit big-endian ELF writer used to build in-memory MIPS objects
// for tests. Only what debug/elf needs to parse sections, symbols and REL
// records is emitted.

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"
)

type secSpec struct {
	name  string
	typ   elf.SectionType
	flags elf.SectionFlag
	addr  uint32
	data  []byte
	size  uint32 // overrides len(data) for SHT_NOBITS
	link  uint32
	info  uint32
}

type symSpec struct {
	name  string
	value uint32
	size  uint32
	typ   elf.SymType
	shndx uint16 // final section header index; userSection() helps
}

// userSection converts a secSpec slice position into the section header
// index it will occupy (index 0 is the null section).
func userSection(i int) uint16 { return uint16(i + 1) }

type strtab struct {
	buf []byte
}

func newStrtab() *strtab { return &strtab{buf: []byte{0}} }

func (s *strtab) add(name string) uint32 {
	if name == "" {
		return 0
	}
	off := uint32(len(s.buf))
	s.buf = append(s.buf, name...)
	s.buf = append(s.buf, 0)
	return off
}

// rel encodes one big-endian MIPS REL record. symNo counts from 1 in the
// final symbol table (0 is the null symbol).
func rel(offset uint32, symNo uint32, typ elf.R_MIPS) []byte {
	var b [8]byte
	binary.BigEndian.PutUint32(b[0:], offset)
	binary.BigEndian.PutUint32(b[4:], symNo<<8|uint32(typ))
	return b[:]
}

func words(ws ...uint32) []byte {
	out := make([]byte, 0, len(ws)*4)
	for _, w := range ws {
		out = binary.BigEndian.AppendUint32(out, w)
	}
	return out
}

func buildELF(t *testing.T, machine elf.Machine, secs []secSpec, syms []symSpec) *elf.File {
	t.Helper()

	const (
		ehsize  = 52
		shsize  = 40
		symsize = 16
	)

	shstr := newStrtab()
	str := newStrtab()

	// Symbol table: null entry plus the specs.
	symtab := make([]byte, symsize) // null symbol
	for _, s := range syms {
		var b [symsize]byte
		binary.BigEndian.PutUint32(b[0:], str.add(s.name))
		binary.BigEndian.PutUint32(b[4:], s.value)
		binary.BigEndian.PutUint32(b[8:], s.size)
		b[12] = byte(elf.STB_GLOBAL)<<4 | byte(s.typ)
		binary.BigEndian.PutUint16(b[14:], s.shndx)
		symtab = append(symtab, b[:]...)
	}

	symtabIdx := uint32(len(secs) + 1)
	strtabIdx := symtabIdx + 1
	shstrtabIdx := strtabIdx + 1

	all := make([]secSpec, 0, len(secs)+3)
	all = append(all, secs...)
	all = append(all,
		secSpec{name: ".symtab", typ: elf.SHT_SYMTAB, data: symtab, link: strtabIdx, info: 1},
		secSpec{name: ".strtab", typ: elf.SHT_STRTAB, data: str.buf},
	)
	// .shstrtab names must be interned before the headers are written, and
	// its own bytes depend on them, so register every name first.
	nameOffs := make([]uint32, 0, len(all)+1)
	for _, s := range all {
		nameOffs = append(nameOffs, shstr.add(s.name))
	}
	nameOffs = append(nameOffs, shstr.add(".shstrtab"))
	all = append(all, secSpec{name: ".shstrtab", typ: elf.SHT_STRTAB, data: shstr.buf})

	nsec := len(all) + 1 // plus null section
	shoff := uint32(ehsize)
	dataOff := shoff + uint32(nsec*shsize)

	var buf bytes.Buffer

	// ELF header.
	ident := [16]byte{0x7f, 'E', 'L', 'F', byte(elf.ELFCLASS32), byte(elf.ELFDATA2MSB), 1}
	buf.Write(ident[:])
	hdr := []any{
		uint16(elf.ET_REL), uint16(machine), uint32(elf.EV_CURRENT),
		uint32(0),      // entry
		uint32(0),      // phoff
		uint32(shoff),  // shoff
		uint32(0),      // flags
		uint16(ehsize), // ehsize
		uint16(0),      // phentsize
		uint16(0),      // phnum
		uint16(shsize), // shentsize
		uint16(nsec),   // shnum
		uint16(shstrtabIdx),
	}
	for _, v := range hdr {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			t.Fatal(err)
		}
	}

	// Section headers: null first.
	writeShdr := func(name, typ, flags, addr, off, size, link, info, align, entsize uint32) {
		for _, v := range []uint32{name, typ, flags, addr, off, size, link, info, align, entsize} {
			if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
				t.Fatal(err)
			}
		}
	}
	writeShdr(0, 0, 0, 0, 0, 0, 0, 0, 0, 0)

	off := dataOff
	offs := make([]uint32, len(all))
	for i, s := range all {
		offs[i] = off
		if s.typ != elf.SHT_NOBITS {
			off += uint32(len(s.data))
		}
	}
	for i, s := range all {
		size := uint32(len(s.data))
		if s.typ == elf.SHT_NOBITS {
			size = s.size
		}
		var entsize uint32
		switch s.typ {
		case elf.SHT_SYMTAB:
			entsize = symsize
		case elf.SHT_REL:
			entsize = 8
		}
		link := s.link
		if s.typ == elf.SHT_REL {
			link = symtabIdx
		}
		writeShdr(nameOffs[i], uint32(s.typ), uint32(s.flags), s.addr, offs[i], size, link, s.info, 4, entsize)
	}

	// Section payloads.
	for _, s := range all {
		if s.typ != elf.SHT_NOBITS {
			buf.Write(s.data)
		}
	}

	ef, err := elf.NewFile(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("built ELF does not parse: %v", err)
	}
	return ef
}
