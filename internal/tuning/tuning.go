package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	WorldID string `yaml:"world_id"`

	ChunkSize   int    `yaml:"chunk_size"`
	DefaultTile string `yaml:"default_tile"`

	// Dense->Uniform rescan gate, per chunk; 0 disables demotion.
	DemoteCheckEvery int `yaml:"demote_check_every"`

	AutosaveEverySec int `yaml:"autosave_every_sec"`
	CompactEverySec  int `yaml:"compact_every_sec"`

	BrushMaxRadius int `yaml:"brush_max_radius"`
}

func Defaults() Tuning {
	return Tuning{
		WorldID:          "world_1",
		ChunkSize:        16,
		DefaultTile:      "GROUND",
		DemoteCheckEvery: 64,
		AutosaveEverySec: 60,
		CompactEverySec:  300,
		BrushMaxRadius:   16,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.WorldID == "" {
		return fmt.Errorf("world_id must not be empty")
	}
	if t.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", t.ChunkSize)
	}
	if t.DefaultTile == "" {
		return fmt.Errorf("default_tile must not be empty")
	}
	if t.DemoteCheckEvery < 0 {
		return fmt.Errorf("demote_check_every must be >= 0, got %d", t.DemoteCheckEvery)
	}
	if t.BrushMaxRadius < 0 {
		return fmt.Errorf("brush_max_radius must be >= 0, got %d", t.BrushMaxRadius)
	}
	return nil
}
