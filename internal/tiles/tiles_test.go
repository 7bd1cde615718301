package tiles

import "testing"

const sampleTiles = `{
  "atlas": "atlas/tiles.png",
  "tile_size": 16,
  "tiles": [
    {"id": "GROUND", "name": "Ground", "atlas": {"x": 0, "y": 0, "w": 16, "h": 16}},
    {"id": "STONE", "name": "Stone", "tags": ["solid"], "atlas": {"x": 16, "y": 0, "w": 16, "h": 16},
     "props": [
       {"name": "hardness", "value": 3},
       {"name": "friction", "value": 0.8},
       {"name": "walkable", "value": false},
       {"name": "footstep", "value": "rock"}
     ]},
    {"id": "WATER", "tags": ["liquid"], "atlas": {"x": 32, "y": 0, "w": 16, "h": 16}}
  ]
}`

func TestParseBuildsPaletteWithGroundFirst(t *testing.T) {
	lib, err := Parse([]byte(sampleTiles))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if lib.Palette[0] != GroundID {
		t.Fatalf("palette[0]: got %q want %q", lib.Palette[0], GroundID)
	}
	if n, ok := lib.NumericID("GROUND"); !ok || n != 0 {
		t.Fatalf("GROUND numeric id: got %d ok=%v", n, ok)
	}
	if lib.Count() != 3 {
		t.Fatalf("count: got %d want 3", lib.Count())
	}
	if lib.PaletteDigest == "" || lib.DefsDigest == "" {
		t.Fatalf("missing digests")
	}
}

func TestParseTypedProps(t *testing.T) {
	lib, err := Parse([]byte(sampleTiles))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	id, _ := lib.NumericID("STONE")
	def, ok := lib.Def(id)
	if !ok {
		t.Fatalf("missing STONE def")
	}
	byName := map[string]PropValue{}
	for _, p := range def.Props {
		byName[p.Name] = p.Value
	}
	if v := byName["hardness"]; v.Kind != PropInt || v.Int != 3 {
		t.Fatalf("hardness: got %+v", v)
	}
	if v := byName["friction"]; v.Kind != PropFloat || v.Flt != 0.8 {
		t.Fatalf("friction: got %+v", v)
	}
	if v := byName["walkable"]; v.Kind != PropBool || v.Bool {
		t.Fatalf("walkable: got %+v", v)
	}
	if v := byName["footstep"]; v.Kind != PropString || v.Str != "rock" {
		t.Fatalf("footstep: got %+v", v)
	}
}

func TestParseRejectsMissingGround(t *testing.T) {
	_, err := Parse([]byte(`{
	  "atlas": "a.png", "tile_size": 16,
	  "tiles": [{"id": "STONE", "atlas": {"x":0,"y":0,"w":16,"h":16}}]
	}`))
	if err == nil {
		t.Fatalf("expected error for missing GROUND")
	}
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	cases := []string{
		`{"tile_size": 16, "tiles": []}`,
		`{"atlas": "a.png", "tile_size": 0, "tiles": [{"id":"GROUND","atlas":{"x":0,"y":0,"w":16,"h":16}}]}`,
		`{"atlas": "a.png", "tile_size": 16, "tiles": [{"id":"ground","atlas":{"x":0,"y":0,"w":16,"h":16}}]}`,
		`{"atlas": "a.png", "tile_size": 16, "tiles": [{"id":"GROUND"}]}`,
	}
	for i, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("case %d: expected schema validation error", i)
		}
	}
}

func TestDefOutOfRange(t *testing.T) {
	lib, err := Parse([]byte(sampleTiles))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := lib.Def(999); ok {
		t.Fatalf("Def(999) should miss")
	}
}
