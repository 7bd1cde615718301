package grid

import (
	"fmt"

	"tileworld.gg/internal/mathx"
)

// CellCoord is an absolute tile address in the infinite 2D grid.
type CellCoord struct {
	X int
	Y int
}

func (c CellCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// ChunkCoord identifies one chunk in the chunk grid. It is the floor
// division of a cell coordinate by the chunk size, so negative cells map
// to negative chunks (cell -1 with size 16 lives in chunk -1, local 15).
type ChunkCoord struct {
	CX int
	CY int
}

func (c ChunkCoord) String() string {
	return fmt.Sprintf("[%d,%d]", c.CX, c.CY)
}

// ToChunkCoord splits an absolute cell into its chunk coordinate and the
// local offset inside that chunk. size must be positive; the world validates
// it once at construction so this stays branch-free on the hot path.
func ToChunkCoord(cell CellCoord, size int) (cc ChunkCoord, lx, ly int) {
	cc = ChunkCoord{
		CX: mathx.FloorDiv(cell.X, size),
		CY: mathx.FloorDiv(cell.Y, size),
	}
	lx = mathx.Mod(cell.X, size)
	ly = mathx.Mod(cell.Y, size)
	return cc, lx, ly
}

// Origin returns the absolute cell at the chunk's minimum corner.
func (c ChunkCoord) Origin(size int) CellCoord {
	return CellCoord{X: c.CX * size, Y: c.CY * size}
}
