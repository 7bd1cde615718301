package tuning

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
world_id: scratchpad
chunk_size: 32
demote_check_every: 0
brush_max_radius: 4
`)
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.WorldID != "scratchpad" || got.ChunkSize != 32 || got.DemoteCheckEvery != 0 || got.BrushMaxRadius != 4 {
		t.Fatalf("loaded tuning: %+v", got)
	}
	// Untouched keys keep their defaults.
	if got.DefaultTile != "GROUND" || got.AutosaveEverySec != 60 {
		t.Fatalf("defaults clobbered: %+v", got)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []string{
		`chunk_size: 0`,
		`chunk_size: -4`,
		`world_id: ""`,
		`default_tile: ""`,
		`demote_check_every: -1`,
		`brush_max_radius: -1`,
	}
	for _, body := range cases {
		path := writeConfig(t, body)
		if _, err := Load(path); err == nil {
			t.Fatalf("config %q: expected validation error", body)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestDefaultsValidate(t *testing.T) {
	if err := Defaults().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}
