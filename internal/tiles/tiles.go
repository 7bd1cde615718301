// Package tiles is the read-only tile metadata registry. The world treats
// tile ids as opaque uint16 palette indices; this package owns what they
// mean (name, tags, typed properties, atlas rectangle).
package tiles

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// GroundID is the conventional "empty/ground" tile. The loader forces it to
// palette index 0 so it can double as a world's default tile id.
const GroundID = "GROUND"

type TileDef struct {
	ID    string    `json:"id"`
	Name  string    `json:"name,omitempty"`
	Tags  []string  `json:"tags,omitempty"`
	Props []Prop    `json:"props,omitempty"`
	Atlas AtlasRect `json:"atlas"`
}

// AtlasRect locates a tile's sprite inside the atlas texture, in pixels.
type AtlasRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Prop is one typed property on a tile definition.
type Prop struct {
	Name  string    `json:"name"`
	Value PropValue `json:"value"`
}

// PropKind discriminates PropValue.
type PropKind uint8

const (
	PropBool PropKind = iota
	PropInt
	PropFloat
	PropString
)

// PropValue holds one of bool/int/float/string, typed from the JSON value.
type PropValue struct {
	Kind PropKind
	Bool bool
	Int  int64
	Flt  float64
	Str  string
}

func (v *PropValue) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case bool:
		*v = PropValue{Kind: PropBool, Bool: t}
	case string:
		*v = PropValue{Kind: PropString, Str: t}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			*v = PropValue{Kind: PropInt, Int: i}
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return fmt.Errorf("tiles: bad numeric property %q", t.String())
		}
		*v = PropValue{Kind: PropFloat, Flt: f}
	default:
		return fmt.Errorf("tiles: unsupported property value %s", string(b))
	}
	return nil
}

func (v PropValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case PropBool:
		return json.Marshal(v.Bool)
	case PropInt:
		return json.Marshal(v.Int)
	case PropFloat:
		return json.Marshal(v.Flt)
	default:
		return json.Marshal(v.Str)
	}
}

// Library maps between string tile ids and the numeric palette indices the
// world stores. Palette index 0 is always GROUND.
type Library struct {
	AtlasPath  string
	TileSizePx int

	Palette []string
	Index   map[string]uint16
	Defs    map[string]TileDef

	PaletteDigest string
	DefsDigest    string
}

// View is the narrow surface renderers and transports get: typed lookups
// instead of name-based reflection into the library.
type View interface {
	Def(id uint16) (TileDef, bool)
	Count() int
	Digest() string
	Atlas() string
}

func (l *Library) Def(id uint16) (TileDef, bool) {
	if int(id) >= len(l.Palette) {
		return TileDef{}, false
	}
	d, ok := l.Defs[l.Palette[id]]
	return d, ok
}

func (l *Library) Count() int     { return len(l.Palette) }
func (l *Library) Digest() string { return l.PaletteDigest }
func (l *Library) Atlas() string  { return l.AtlasPath }

// NumericID resolves a string tile id to its palette index.
func (l *Library) NumericID(id string) (uint16, bool) {
	n, ok := l.Index[id]
	return n, ok
}

type tilesFile struct {
	Atlas    string    `json:"atlas"`
	TileSize int       `json:"tile_size"`
	Tiles    []TileDef `json:"tiles"`
}

// Load reads and validates <configDir>/tiles.json.
func Load(configDir string) (*Library, error) {
	path := filepath.Join(configDir, "tiles.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse builds a library from raw tiles.json bytes. The document is checked
// against the embedded JSON Schema before decoding, so shape errors surface
// with schema paths instead of zero-valued structs.
func Parse(raw []byte) (*Library, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tiles.json: %w", err)
	}
	if err := schema().Validate(doc); err != nil {
		return nil, fmt.Errorf("tiles.json: %w", err)
	}

	var f tilesFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("tiles.json: %w", err)
	}

	lib := &Library{
		AtlasPath:  f.Atlas,
		TileSizePx: f.TileSize,
		Defs:       map[string]TileDef{},
		DefsDigest: sha256Hex(raw),
	}
	for _, d := range f.Tiles {
		if _, dup := lib.Defs[d.ID]; dup {
			return nil, fmt.Errorf("tiles.json: duplicate tile id %q", d.ID)
		}
		lib.Defs[d.ID] = d
	}
	if _, ok := lib.Defs[GroundID]; !ok {
		return nil, fmt.Errorf("tiles.json: missing %s", GroundID)
	}

	ids := make([]string, 0, len(lib.Defs))
	for id := range lib.Defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	ids = append([]string{GroundID}, filterOut(ids, GroundID)...)

	lib.Palette = ids
	lib.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		lib.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	lib.PaletteDigest = sha256Hex(palJSON)
	return lib, nil
}

func filterOut(ids []string, drop string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["atlas", "tile_size", "tiles"],
  "properties": {
    "atlas": {"type": "string", "minLength": 1},
    "tile_size": {"type": "integer", "minimum": 1},
    "tiles": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["id", "atlas"],
        "properties": {
          "id": {"type": "string", "pattern": "^[A-Z][A-Z0-9_]*$"},
          "name": {"type": "string"},
          "tags": {"type": "array", "items": {"type": "string"}},
          "props": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["name", "value"],
              "properties": {
                "name": {"type": "string", "minLength": 1},
                "value": {"type": ["boolean", "number", "string"]}
              }
            }
          },
          "atlas": {
            "type": "object",
            "required": ["x", "y", "w", "h"],
            "properties": {
              "x": {"type": "integer", "minimum": 0},
              "y": {"type": "integer", "minimum": 0},
              "w": {"type": "integer", "minimum": 1},
              "h": {"type": "integer", "minimum": 1}
            }
          }
        }
      }
    }
  }
}`

var compiledSchema *jsonschema.Schema

func schema() *jsonschema.Schema {
	if compiledSchema == nil {
		compiledSchema = jsonschema.MustCompileString("tiles.schema.json", schemaJSON)
	}
	return compiledSchema
}
