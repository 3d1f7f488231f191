package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

//go:embed default.yaml
var defaultYAML []byte

const schemaURL = "manifest.schema.json"

// ErrInvalid is wrapped by every manifest validation failure.
var ErrInvalid = errors.New("invalid manifest")

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString(schemaURL, schemaJSON)
	})
	return schema, schemaErr
}

// Default returns the built-in manifest.
func Default() (*Manifest, error) {
	return Parse(defaultYAML)
}

// Load reads and validates a manifest file. An empty path loads the built-in manifest.
func Load(path string) (*Manifest, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse validates raw YAML against the manifest schema, decodes it, and checks
// cross references between tables.
func Parse(raw []byte) (*Manifest, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if m.Recipes == nil {
		m.Recipes = make(map[RecipeID]RecipeData)
	}
	if m.Structures == nil {
		m.Structures = make(map[StructureID]StructureData)
	}

	if err := m.checkReferences(); err != nil {
		return nil, err
	}
	return &m, nil
}

// validateSchema runs the JSON schema over the YAML document. The document is
// round-tripped through encoding/json so the validator sees plain JSON values.
func validateSchema(raw []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile manifest schema: %w", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var plain any
	if err := json.Unmarshal(b, &plain); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := s.Validate(plain); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (m *Manifest) checkReferences() error {
	var errs []error
	item := func(ctx string, id ItemID) {
		if _, ok := m.Items[id]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s references unknown item %q", ErrInvalid, ctx, id))
		}
	}

	for id, r := range m.Recipes {
		for _, in := range r.Inputs {
			item("recipe "+string(id), in.Item)
		}
		for _, out := range r.Outputs {
			item("recipe "+string(id), out.Item)
		}
	}
	for _, id := range m.StructureIDs() {
		s := m.Structures[id]
		ctx := "structure " + string(id)
		switch s.Kind {
		case KindCrafting:
			if s.Recipe != "" {
				if _, ok := m.Recipes[s.Recipe]; !ok {
					errs = append(errs, fmt.Errorf("%w: %s references unknown recipe %q", ErrInvalid, ctx, s.Recipe))
				}
			}
		case KindStorage:
			if s.Storage.MaxSlotCount <= 0 {
				errs = append(errs, fmt.Errorf("%w: %s needs storage.max_slot_count", ErrInvalid, ctx))
			}
			if s.Storage.ReservedFor != "" {
				item(ctx, s.Storage.ReservedFor)
			}
		}
		for _, mat := range s.Construction.Materials {
			item(ctx, mat.Item)
		}
		for _, t := range s.Construction.AllowedTerrain {
			if _, ok := m.Terrain[t]; !ok {
				errs = append(errs, fmt.Errorf("%w: %s references unknown terrain %q", ErrInvalid, ctx, t))
			}
		}
	}
	for kind, u := range m.Units {
		item("unit "+string(kind), u.Diet.Item)
	}
	return errors.Join(errs...)
}
