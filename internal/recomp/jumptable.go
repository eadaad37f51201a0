package recomp

// JumpTable is one statically reconstructed switch table, recovered from the
// lw/addu/jr instruction idiom by analysis outside this package but stored
// and queried here.
type JumpTable struct {
	// VRAM of the indirect jump instruction.
	VRAM uint32
	// AddendReg holds the table-entry addend at the jump.
	AddendReg uint32
	// ROM location of the table data.
	ROM uint32
	// The three instructions forming the recognized idiom.
	LWVRAM   uint32
	AdduVRAM uint32
	JRVRAM   uint32

	SectionIndex SectionIndex

	GOTOffset    uint32
	HasGOTOffset bool

	// Entries are the resolved destination vrams.
	Entries []uint32
}

// AddJumpTable stores a reconstructed jump table and indexes it by the vram
// of its jump instruction.
func (c *Context) AddJumpTable(jt JumpTable) {
	if c.jumpTablesByVRAM == nil {
		c.jumpTablesByVRAM = make(map[uint32]int)
	}
	c.jumpTablesByVRAM[jt.VRAM] = len(c.JumpTables)
	c.JumpTables = append(c.JumpTables, jt)
}

// FindJumpTableByVRAM returns the jump table whose jump instruction sits at
// the given vram.
func (c *Context) FindJumpTableByVRAM(vram uint32) (*JumpTable, bool) {
	i, ok := c.jumpTablesByVRAM[vram]
	if !ok {
		return nil, false
	}
	return &c.JumpTables[i], true
}

// JumpTablesInSection returns the jump tables owned by one section, in
// insertion order.
func (c *Context) JumpTablesInSection(section SectionIndex) []*JumpTable {
	var out []*JumpTable
	for i := range c.JumpTables {
		if c.JumpTables[i].SectionIndex == section {
			out = append(out, &c.JumpTables[i])
		}
	}
	return out
}
