package grid

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// StorageKind says how a chunk keeps its cells.
type StorageKind uint8

const (
	// Uniform stores a single tile id for every cell in the chunk.
	Uniform StorageKind = iota
	// Dense stores one tile id per cell.
	Dense
)

func (k StorageKind) String() string {
	switch k {
	case Uniform:
		return "UNIFORM"
	case Dense:
		return "DENSE"
	default:
		return fmt.Sprintf("StorageKind(%d)", uint8(k))
	}
}

// Chunk is one size x size block of tiles. It starts Uniform and
// materializes a dense cell array only when a second tile id appears.
// Demotion back to Uniform is a gated scan, see Set.
type Chunk struct {
	size    int
	kind    StorageKind
	uniform uint16
	cells   []uint16 // nil while Uniform, len size*size once Dense

	// demotion gate
	demoteEvery int
	denseWrites int

	dirty bool
	hash  [32]byte
}

// NewChunk returns a Uniform chunk filled with id. demoteEvery bounds how
// often a Dense write may trigger the homogeneity rescan; 0 disables
// demotion entirely.
func NewChunk(size int, id uint16, demoteEvery int) *Chunk {
	return &Chunk{
		size:        size,
		kind:        Uniform,
		uniform:     id,
		demoteEvery: demoteEvery,
		dirty:       true,
	}
}

func (c *Chunk) Size() int { return c.size }

func (c *Chunk) Kind() StorageKind { return c.kind }

func (c *Chunk) index(lx, ly int) int {
	if lx < 0 || lx >= c.size || ly < 0 || ly >= c.size {
		panic(fmt.Sprintf("grid: local coord (%d,%d) outside chunk size %d", lx, ly, c.size))
	}
	return lx + ly*c.size
}

// Get reads one cell. Local coordinates outside [0,size) are a contract
// violation upstream and panic.
func (c *Chunk) Get(lx, ly int) uint16 {
	i := c.index(lx, ly)
	if c.kind == Uniform {
		return c.uniform
	}
	return c.cells[i]
}

// Set writes one cell and reports what happened: the previous id, whether
// the stored value changed, and whether the storage representation switched.
func (c *Chunk) Set(lx, ly int, id uint16) (old uint16, changed, kindChanged bool, newKind StorageKind) {
	i := c.index(lx, ly)

	if c.kind == Uniform {
		old = c.uniform
		if id == c.uniform {
			return old, false, false, Uniform
		}
		// First heterogeneous write: materialize the dense array.
		c.cells = make([]uint16, c.size*c.size)
		for j := range c.cells {
			c.cells[j] = c.uniform
		}
		c.cells[i] = id
		c.kind = Dense
		c.denseWrites = 0
		c.dirty = true
		return old, true, true, Dense
	}

	old = c.cells[i]
	if old == id {
		return old, false, false, Dense
	}
	c.cells[i] = id
	c.dirty = true
	c.denseWrites++

	// Demotion is opportunistic: only worth scanning when the written id
	// matches cell (0,0) (necessary for homogeneity) and at most once per
	// demoteEvery dense writes, so a pathological paint loop cannot turn
	// every write into an O(size^2) scan.
	if c.demoteEvery > 0 && id == c.cells[0] && c.denseWrites >= c.demoteEvery {
		c.denseWrites = 0
		if c.homogeneous() {
			c.demote(id)
			return old, true, true, Uniform
		}
	}
	return old, true, false, Dense
}

// Fill forces the whole chunk to Uniform(id), reporting whether the
// representation switched. Used for chunk initialization and erase-to-default.
func (c *Chunk) Fill(id uint16) (kindChanged bool) {
	kindChanged = c.kind == Dense
	c.demote(id)
	return kindChanged
}

func (c *Chunk) homogeneous() bool {
	first := c.cells[0]
	for _, v := range c.cells[1:] {
		if v != first {
			return false
		}
	}
	return true
}

func (c *Chunk) demote(id uint16) {
	c.kind = Uniform
	c.uniform = id
	c.cells = nil
	c.denseWrites = 0
	c.dirty = true
}

// Digest hashes the chunk contents deterministically, independent of the
// storage representation: a Uniform chunk digests the same as a Dense chunk
// holding the same cells.
func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		h := sha256.New()
		var tmp [2]byte
		n := c.size * c.size
		for i := 0; i < n; i++ {
			v := c.uniform
			if c.kind == Dense {
				v = c.cells[i]
			}
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

// Cells returns a copy of the chunk contents as a dense slice, regardless of
// the current representation. Snapshot export uses this; it never exposes
// the backing array.
func (c *Chunk) Cells() []uint16 {
	out := make([]uint16, c.size*c.size)
	if c.kind == Uniform {
		for i := range out {
			out[i] = c.uniform
		}
		return out
	}
	copy(out, c.cells)
	return out
}

// UniformID returns the fill id of a Uniform chunk. Calling it on a Dense
// chunk is a contract violation.
func (c *Chunk) UniformID() uint16 {
	if c.kind != Uniform {
		panic("grid: UniformID on a Dense chunk")
	}
	return c.uniform
}
