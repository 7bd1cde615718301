package grid

import (
	"fmt"
	"sort"
)

// TileUpdateResult reports the outcome of a SetTile call. A NoChange result
// is a normal, frequent outcome (re-painting the same tile), not an error.
type TileUpdateResult uint8

const (
	NoChange TileUpdateResult = iota
	Updated
)

func (r TileUpdateResult) String() string {
	if r == Updated {
		return "UPDATED"
	}
	return "NO_CHANGE"
}

// TileUpdate is delivered to OnTileUpdated subscribers for every SetTile
// that reached a chunk, including no-op writes (so a tool can distinguish
// "write attempted, nothing changed" from "write changed the world").
type TileUpdate struct {
	Chunk  ChunkCoord
	Cell   CellCoord
	Old    uint16
	New    uint16
	Result TileUpdateResult
}

// KindChange is delivered when a chunk switches storage representation.
type KindChange struct {
	Chunk ChunkCoord
	Old   StorageKind
	New   StorageKind
}

// World is the authoritative sparse map of chunks. Absent chunks read as
// DefaultTile everywhere. It is owned by a single goroutine; see
// internal/sim for the loop that serializes access.
type World struct {
	chunkSize   int
	defaultTile uint16
	demoteEvery int

	chunks map[ChunkCoord]*Chunk

	onChunkCreated []func(ChunkCoord)
	onChunkRemoved []func(ChunkCoord)
	onKindChanged  []func(KindChange)
	onTileUpdated  []func(TileUpdate)
}

// Options tunes world construction. The zero value is not valid; use
// DefaultOptions as a base.
type Options struct {
	ChunkSize   int
	DefaultTile uint16
	// DemoteCheckEvery bounds the Dense->Uniform rescan to at most one per
	// N changing dense writes per chunk. 0 disables demotion.
	DemoteCheckEvery int
}

func DefaultOptions() Options {
	return Options{
		ChunkSize:        16,
		DefaultTile:      0,
		DemoteCheckEvery: 64,
	}
}

func NewWorld(opts Options) (*World, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("grid: chunk size must be positive, got %d", opts.ChunkSize)
	}
	if opts.DemoteCheckEvery < 0 {
		return nil, fmt.Errorf("grid: demote check interval must be >= 0, got %d", opts.DemoteCheckEvery)
	}
	return &World{
		chunkSize:   opts.ChunkSize,
		defaultTile: opts.DefaultTile,
		demoteEvery: opts.DemoteCheckEvery,
		chunks:      map[ChunkCoord]*Chunk{},
	}, nil
}

func (w *World) ChunkSize() int      { return w.chunkSize }
func (w *World) DefaultTile() uint16 { return w.defaultTile }
func (w *World) ChunkCount() int     { return len(w.chunks) }

// OnChunkCreated registers a callback fired synchronously inside the SetTile
// call that allocates a chunk, strictly before that chunk's first TileUpdated.
func (w *World) OnChunkCreated(fn func(ChunkCoord)) {
	w.onChunkCreated = append(w.onChunkCreated, fn)
}

func (w *World) OnChunkRemoved(fn func(ChunkCoord)) {
	w.onChunkRemoved = append(w.onChunkRemoved, fn)
}

func (w *World) OnStorageKindChanged(fn func(KindChange)) {
	w.onKindChanged = append(w.onKindChanged, fn)
}

func (w *World) OnTileUpdated(fn func(TileUpdate)) {
	w.onTileUpdated = append(w.onTileUpdated, fn)
}

// GetTile reads one cell. Absent chunks read as DefaultTile without
// allocating anything.
func (w *World) GetTile(x, y int) uint16 {
	cc, lx, ly := ToChunkCoord(CellCoord{X: x, Y: y}, w.chunkSize)
	ch, ok := w.chunks[cc]
	if !ok {
		return w.defaultTile
	}
	return ch.Get(lx, ly)
}

// SetTile writes one cell, lazily allocating the covering chunk. Writing the
// default tile into empty space is a no-op and allocates nothing.
func (w *World) SetTile(x, y int, id uint16) TileUpdateResult {
	cell := CellCoord{X: x, Y: y}
	cc, lx, ly := ToChunkCoord(cell, w.chunkSize)

	ch, ok := w.chunks[cc]
	if !ok {
		if id == w.defaultTile {
			return NoChange
		}
		ch = NewChunk(w.chunkSize, w.defaultTile, w.demoteEvery)
		w.chunks[cc] = ch
		for _, fn := range w.onChunkCreated {
			fn(cc)
		}
	}

	old, changed, kindChanged, newKind := ch.Set(lx, ly, id)
	if kindChanged {
		oldKind := Uniform
		if newKind == Uniform {
			oldKind = Dense
		}
		kc := KindChange{Chunk: cc, Old: oldKind, New: newKind}
		for _, fn := range w.onKindChanged {
			fn(kc)
		}
	}

	result := NoChange
	if changed {
		result = Updated
	}
	tu := TileUpdate{Chunk: cc, Cell: cell, Old: old, New: id, Result: result}
	for _, fn := range w.onTileUpdated {
		fn(tu)
	}
	return result
}

// Chunk exposes the raw chunk for bulk read-heavy consumers. Callers must
// treat it as read-only: mutating it directly bypasses the event pipeline.
func (w *World) Chunk(cc ChunkCoord) (*Chunk, bool) {
	ch, ok := w.chunks[cc]
	return ch, ok
}

// ChunkCoords returns the allocated chunk coordinates in deterministic
// (CX, then CY) order, for diagnostics and snapshot export.
func (w *World) ChunkCoords() []ChunkCoord {
	keys := make([]ChunkCoord, 0, len(w.chunks))
	for k := range w.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CY < keys[j].CY
	})
	return keys
}

// RemoveChunk unloads one chunk explicitly. Writes reverting a chunk to the
// default tile never remove it implicitly; only this call does.
func (w *World) RemoveChunk(cc ChunkCoord) bool {
	if _, ok := w.chunks[cc]; !ok {
		return false
	}
	delete(w.chunks, cc)
	for _, fn := range w.onChunkRemoved {
		fn(cc)
	}
	return true
}

// Compact removes every Uniform chunk whose fill equals the default tile.
// Such chunks are indistinguishable from unallocated space. Invoked by the
// owner on a schedule, never implicitly by SetTile. Returns the number of
// chunks removed.
func (w *World) Compact() int {
	removed := 0
	for _, cc := range w.ChunkCoords() {
		ch := w.chunks[cc]
		if ch.Kind() == Uniform && ch.UniformID() == w.defaultTile {
			w.RemoveChunk(cc)
			removed++
		}
	}
	return removed
}

// RestoreChunk installs a chunk directly from persisted state. It fires no
// events: restore runs before observers attach. cells is required for Dense
// kind and must have length ChunkSize*ChunkSize.
func (w *World) RestoreChunk(cc ChunkCoord, kind StorageKind, uniform uint16, cells []uint16) error {
	if _, ok := w.chunks[cc]; ok {
		return fmt.Errorf("grid: chunk %v already present", cc)
	}
	ch := NewChunk(w.chunkSize, uniform, w.demoteEvery)
	if kind == Dense {
		want := w.chunkSize * w.chunkSize
		if len(cells) != want {
			return fmt.Errorf("grid: chunk %v cells length mismatch: got %d want %d", cc, len(cells), want)
		}
		ch.kind = Dense
		ch.cells = make([]uint16, want)
		copy(ch.cells, cells)
	}
	_ = ch.Digest()
	w.chunks[cc] = ch
	return nil
}
