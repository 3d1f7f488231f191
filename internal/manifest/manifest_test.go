package manifest_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/emergence/internal/manifest"
)

func TestDefaultManifest(t *testing.T) {
	m, err := manifest.Default()
	require.NoError(t, err)

	assert.Equal(t, 10, m.StackSize("acacia_leaf"))
	assert.Equal(t, 0, m.StackSize("no_such_item"))
	assert.Equal(t, 0.5, m.WalkingSpeed("muddy"))
	assert.Equal(t, 1.0, m.WalkingSpeed("no_such_terrain"))

	leuco, ok := m.Structure("leuco")
	require.True(t, ok)
	assert.Equal(t, manifest.KindCrafting, leuco.Kind)
	assert.Equal(t, 3*time.Second, leuco.Construction.Work)
	assert.True(t, leuco.AllowedOn("loam"))
	assert.False(t, leuco.AllowedOn("rocky"))

	storage, ok := m.Structure("storage")
	require.True(t, ok)
	assert.True(t, storage.AllowedOn("rocky"), "no allowed_terrain list means anywhere")

	recipe, ok := m.Recipe("leuco_chunk_production")
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, recipe.CraftTime)
	assert.Equal(t, 1, recipe.WorkersRequired)

	ant, ok := m.Unit("ant")
	require.True(t, ok)
	assert.Equal(t, manifest.ItemID("leuco_chunk"), ant.Diet.Item)
	assert.Equal(t, 10, ant.MaxImpatience)

	assert.Equal(t, []manifest.TerrainID{"loam", "muddy", "rocky"}, m.TerrainIDs())
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing units",
			doc: `
items: {a: {stack_size: 1}}
terrain: {loam: {walking_speed: 1}}
structures: {}
`,
		},
		{
			name: "zero walking speed",
			doc: `
items: {a: {stack_size: 1}}
terrain: {loam: {walking_speed: 0}}
structures: {}
units: {ant: {diet: {item: a, energy: 1}, energy: {max: 1, regen: 0}, max_impatience: 1}}
`,
		},
		{
			name: "unknown structure kind",
			doc: `
items: {a: {stack_size: 1}}
terrain: {loam: {walking_speed: 1}}
structures: {hut: {kind: house, max_workers: 1}}
units: {ant: {diet: {item: a, energy: 1}, energy: {max: 1, regen: 0}, max_impatience: 1}}
`,
		},
		{
			name: "bad duration",
			doc: `
items: {a: {stack_size: 1}}
terrain: {loam: {walking_speed: 1}}
structures: {}
recipes: {r: {craft_time: soon}}
units: {ant: {diet: {item: a, energy: 1}, energy: {max: 1, regen: 0}, max_impatience: 1}}
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manifest.Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, manifest.ErrInvalid)
		})
	}
}

func TestParseRejectsDanglingReferences(t *testing.T) {
	doc := `
items: {a: {stack_size: 1}}
terrain: {loam: {walking_speed: 1}}
structures:
  mill: {kind: crafting, max_workers: 1, recipe: missing}
  shed: {kind: storage, max_workers: 1, storage: {max_slot_count: 1, reserved_for: b}}
units: {ant: {diet: {item: c, energy: 1}, energy: {max: 1, regen: 0}, max_impatience: 1}}
`
	_, err := manifest.Parse([]byte(doc))
	require.Error(t, err)
	assert.ErrorIs(t, err, manifest.ErrInvalid)
	assert.Contains(t, err.Error(), `unknown recipe "missing"`)
	assert.Contains(t, err.Error(), `unknown item "b"`)
	assert.Contains(t, err.Error(), `unknown item "c"`)
}

func TestLoadFromFile(t *testing.T) {
	doc := `
items: {grain: {stack_size: 4}}
terrain: {plain: {walking_speed: 1.5}}
structures: {}
units: {mouse: {diet: {item: grain, energy: 5}, energy: {max: 20, regen: -0.5}, max_impatience: 3}}
`
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	m, err := manifest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, m.StackSize("grain"))
	assert.Equal(t, 1.5, m.WalkingSpeed("plain"))
	assert.NotNil(t, m.Recipes)

	_, err = manifest.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
