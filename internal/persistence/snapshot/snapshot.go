// Package snapshot converts a live tile world to and from its persisted
// form: a zstd-compressed gob body carried as one record inside the generic
// save container.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"tileworld.gg/internal/grid"
	"tileworld.gg/internal/persistence/container"
)

// RecordKey is the container record key holding the world body.
const RecordKey = "tile_world"

// RecordVersion is the version of the gob body layout.
const RecordVersion int32 = 1

const (
	KindUniform uint8 = 0
	KindDense   uint8 = 1
)

type Header struct {
	WorldID  string
	Revision uint64
}

type WorldV1 struct {
	Header Header

	ChunkSize     int
	DefaultTile   uint16
	PaletteDigest string

	Chunks []ChunkV1
}

// ChunkV1 preserves the storage representation: Uniform chunks carry a
// single id, Dense chunks carry the full cell slice.
type ChunkV1 struct {
	CX, CY  int
	Kind    uint8
	Uniform uint16
	Cells   []uint16
}

// Export captures a world into its persisted form. Chunk order follows
// grid.World.ChunkCoords, so identical worlds export identical bodies.
func Export(w *grid.World, hdr Header, paletteDigest string) WorldV1 {
	snap := WorldV1{
		Header:        hdr,
		ChunkSize:     w.ChunkSize(),
		DefaultTile:   w.DefaultTile(),
		PaletteDigest: paletteDigest,
	}
	for _, cc := range w.ChunkCoords() {
		ch, ok := w.Chunk(cc)
		if !ok {
			continue
		}
		cv := ChunkV1{CX: cc.CX, CY: cc.CY}
		if ch.Kind() == grid.Uniform {
			cv.Kind = KindUniform
			cv.Uniform = ch.UniformID()
		} else {
			cv.Kind = KindDense
			cv.Cells = ch.Cells()
		}
		snap.Chunks = append(snap.Chunks, cv)
	}
	return snap
}

// Import rebuilds a world from a snapshot, validating chunk shapes.
func Import(snap WorldV1, demoteCheckEvery int) (*grid.World, error) {
	w, err := grid.NewWorld(grid.Options{
		ChunkSize:        snap.ChunkSize,
		DefaultTile:      snap.DefaultTile,
		DemoteCheckEvery: demoteCheckEvery,
	})
	if err != nil {
		return nil, err
	}
	for _, cv := range snap.Chunks {
		cc := grid.ChunkCoord{CX: cv.CX, CY: cv.CY}
		switch cv.Kind {
		case KindUniform:
			if err := w.RestoreChunk(cc, grid.Uniform, cv.Uniform, nil); err != nil {
				return nil, err
			}
		case KindDense:
			if err := w.RestoreChunk(cc, grid.Dense, snap.DefaultTile, cv.Cells); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("snapshot: chunk (%d,%d) unknown storage kind %d", cv.CX, cv.CY, cv.Kind)
		}
	}
	return w, nil
}

// Encode serializes the snapshot as a container record: gob body behind zstd.
func Encode(snap WorldV1) (container.Record, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return container.Record{}, err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return container.Record{}, fmt.Errorf("snapshot: gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return container.Record{}, err
	}
	if err := enc.Close(); err != nil {
		return container.Record{}, err
	}
	return container.Record{Key: RecordKey, Version: RecordVersion, Body: buf.Bytes()}, nil
}

// Decode parses a container record produced by Encode.
func Decode(rec container.Record) (WorldV1, error) {
	var snap WorldV1
	if rec.Key != RecordKey {
		return snap, fmt.Errorf("snapshot: wrong record key %q", rec.Key)
	}
	if rec.Version != RecordVersion {
		return snap, fmt.Errorf("snapshot: unsupported record version %d (want %d)", rec.Version, RecordVersion)
	}
	dec, err := zstd.NewReader(bytes.NewReader(rec.Body))
	if err != nil {
		return snap, err
	}
	defer dec.Close()
	br := bufio.NewReaderSize(dec, 256*1024)
	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("snapshot: gob decode: %w", err)
	}
	return snap, nil
}

// WriteFile saves the snapshot as a standalone container file.
func WriteFile(path string, snap WorldV1) error {
	rec, err := Encode(snap)
	if err != nil {
		return err
	}
	return container.WriteFile(path, []container.Record{rec})
}

// ReadFile loads a snapshot from a container file, ignoring any other
// records the file carries.
func ReadFile(path string) (WorldV1, error) {
	records, err := container.ReadFile(path)
	if err != nil {
		return WorldV1{}, err
	}
	rec, ok := container.Find(records, RecordKey)
	if !ok {
		return WorldV1{}, fmt.Errorf("snapshot: %s has no %q record", path, RecordKey)
	}
	return Decode(rec)
}
