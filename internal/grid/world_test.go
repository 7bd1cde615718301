package grid

import "testing"

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := NewWorld(DefaultOptions())
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w
}

func TestNewWorldRejectsBadChunkSize(t *testing.T) {
	opts := DefaultOptions()
	opts.ChunkSize = 0
	if _, err := NewWorld(opts); err == nil {
		t.Fatalf("expected error for chunk size 0")
	}
}

func TestFreshWorldReadsDefaultEverywhere(t *testing.T) {
	w := newTestWorld(t)
	for _, p := range [][2]int{{0, 0}, {100, -100}, {-1, -1}, {12345, 67890}} {
		if got := w.GetTile(p[0], p[1]); got != 0 {
			t.Fatalf("GetTile(%d,%d) on fresh world: got %d want 0", p[0], p[1], got)
		}
	}
	if w.ChunkCount() != 0 {
		t.Fatalf("fresh world allocated %d chunks", w.ChunkCount())
	}
}

func TestSetTileWriteReadIdempotent(t *testing.T) {
	w := newTestWorld(t)
	if res := w.SetTile(2, 3, 5); res != Updated {
		t.Fatalf("first write: got %v want UPDATED", res)
	}
	if got := w.GetTile(2, 3); got != 5 {
		t.Fatalf("read back: got %d want 5", got)
	}
	if res := w.SetTile(2, 3, 5); res != NoChange {
		t.Fatalf("repeat write: got %v want NO_CHANGE", res)
	}
	if got := w.GetTile(2, 3); got != 5 {
		t.Fatalf("read after repeat: got %d want 5", got)
	}
}

func TestDefaultWriteIntoEmptySpaceAllocatesNothing(t *testing.T) {
	w := newTestWorld(t)
	created := 0
	w.OnChunkCreated(func(ChunkCoord) { created++ })
	if res := w.SetTile(40, 40, 0); res != NoChange {
		t.Fatalf("default write: got %v want NO_CHANGE", res)
	}
	if w.ChunkCount() != 0 || created != 0 {
		t.Fatalf("default write allocated: chunks=%d created=%d", w.ChunkCount(), created)
	}
}

func TestLazyChunkCreationFiresOnce(t *testing.T) {
	w := newTestWorld(t)
	var created []ChunkCoord
	w.OnChunkCreated(func(cc ChunkCoord) { created = append(created, cc) })

	w.SetTile(17, 17, 3)
	w.SetTile(18, 18, 3) // same chunk, no second creation
	if w.ChunkCount() != 1 {
		t.Fatalf("chunk count: got %d want 1", w.ChunkCount())
	}
	if len(created) != 1 || created[0] != (ChunkCoord{CX: 1, CY: 1}) {
		t.Fatalf("created events: got %v want one [1,1]", created)
	}
}

func TestEventOrderingOnFirstWrite(t *testing.T) {
	w := newTestWorld(t)
	var order []string
	w.OnChunkCreated(func(cc ChunkCoord) {
		order = append(order, "created "+cc.String())
	})
	w.OnStorageKindChanged(func(kc KindChange) {
		order = append(order, "kind "+kc.Old.String()+"->"+kc.New.String())
	})
	w.OnTileUpdated(func(tu TileUpdate) {
		order = append(order, "tile "+tu.Result.String())
	})

	w.SetTile(0, 0, 3)

	want := []string{"created [0,0]", "kind UNIFORM->DENSE", "tile UPDATED"}
	if len(order) != len(want) {
		t.Fatalf("event order: got %v want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("event order[%d]: got %q want %q", i, order[i], want[i])
		}
	}
}

func TestTileUpdatedCarriesNoChange(t *testing.T) {
	w := newTestWorld(t)
	w.SetTile(1, 1, 4)
	var last TileUpdate
	w.OnTileUpdated(func(tu TileUpdate) { last = tu })
	w.SetTile(1, 1, 4)
	if last.Result != NoChange || last.Old != 4 || last.New != 4 {
		t.Fatalf("no-op update event: got %+v", last)
	}
}

func TestNegativeCoordinateSymmetry(t *testing.T) {
	w := newTestWorld(t)
	w.SetTile(-5, -5, 9)
	if got := w.GetTile(-5, -5); got != 9 {
		t.Fatalf("read back at (-5,-5): got %d want 9", got)
	}
	if _, ok := w.Chunk(ChunkCoord{CX: -1, CY: -1}); !ok {
		t.Fatalf("chunk [-1,-1] missing after write at (-5,-5)")
	}
}

func TestRemoveChunk(t *testing.T) {
	w := newTestWorld(t)
	w.SetTile(0, 0, 2)
	var removed []ChunkCoord
	w.OnChunkRemoved(func(cc ChunkCoord) { removed = append(removed, cc) })

	if !w.RemoveChunk(ChunkCoord{}) {
		t.Fatalf("RemoveChunk returned false for a present chunk")
	}
	if w.RemoveChunk(ChunkCoord{}) {
		t.Fatalf("RemoveChunk returned true for an absent chunk")
	}
	if len(removed) != 1 {
		t.Fatalf("removed events: got %d want 1", len(removed))
	}
	if got := w.GetTile(0, 0); got != 0 {
		t.Fatalf("read after removal: got %d want default 0", got)
	}
}

func TestCompactRemovesDefaultUniformChunksOnly(t *testing.T) {
	opts := DefaultOptions()
	opts.DemoteCheckEvery = 1
	w, err := NewWorld(opts)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}

	w.SetTile(0, 0, 3)
	w.SetTile(0, 0, 0) // demotes back to Uniform(0): compactable
	w.SetTile(100, 100, 7)

	if w.ChunkCount() != 2 {
		t.Fatalf("setup chunk count: got %d want 2", w.ChunkCount())
	}
	if got := w.Compact(); got != 1 {
		t.Fatalf("compact removed %d chunks, want 1", got)
	}
	if got := w.GetTile(100, 100); got != 7 {
		t.Fatalf("surviving tile: got %d want 7", got)
	}
}

func TestChunkCoordsDeterministicOrder(t *testing.T) {
	w := newTestWorld(t)
	w.SetTile(100, 0, 1)
	w.SetTile(-100, 0, 1)
	w.SetTile(0, 100, 1)
	keys := w.ChunkCoords()
	for i := 1; i < len(keys); i++ {
		a, b := keys[i-1], keys[i]
		if a.CX > b.CX || (a.CX == b.CX && a.CY >= b.CY) {
			t.Fatalf("chunk coords not sorted: %v before %v", a, b)
		}
	}
}

func TestRestoreChunkRejectsBadShape(t *testing.T) {
	w := newTestWorld(t)
	if err := w.RestoreChunk(ChunkCoord{}, Dense, 0, make([]uint16, 4)); err == nil {
		t.Fatalf("expected error for short cell slice")
	}
	if err := w.RestoreChunk(ChunkCoord{}, Dense, 0, make([]uint16, 16*16)); err != nil {
		t.Fatalf("RestoreChunk: %v", err)
	}
	if err := w.RestoreChunk(ChunkCoord{}, Uniform, 0, nil); err == nil {
		t.Fatalf("expected error for duplicate chunk")
	}
}
