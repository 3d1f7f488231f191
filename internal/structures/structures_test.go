package structures_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/emergence/internal/inventory"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/structures"
	"github.com/talgya/emergence/internal/world"
)

func testWorld(t *testing.T) (*world.Map, *manifest.Manifest, *structures.Registry) {
	t.Helper()
	man, err := manifest.Default()
	require.NoError(t, err)

	m := world.NewMap(2)
	for q := -2; q <= 2; q++ {
		for r := -2; r <= 2; r++ {
			c := world.HexCoord{Q: q, R: r}
			if m.InBounds(c) {
				m.Set(&world.Tile{Coord: c, Terrain: "loam"})
			}
		}
	}
	return m, man, structures.NewRegistry(m, man)
}

func TestWorkersPresent(t *testing.T) {
	w := structures.NewWorkersPresent(2)
	assert.True(t, w.NeedsMore())
	require.NoError(t, w.AddWorker())
	require.NoError(t, w.AddWorker())
	assert.False(t, w.NeedsMore())

	err := w.AddWorker()
	assert.ErrorIs(t, err, structures.ErrSeatUnavailable)
	assert.Equal(t, 2, w.Current, "failed add must not mutate")

	w.RemoveWorker()
	w.RemoveWorker()
	w.RemoveWorker()
	assert.Equal(t, 0, w.Current, "remove saturates at zero")

	none := structures.NewWorkersPresent(0)
	assert.False(t, none.NeedsMore())
	assert.ErrorIs(t, none.AddWorker(), structures.ErrSeatUnavailable)
}

// Seats stay within bounds under any interleaving of adds and removes.
func TestSeatInvariant(t *testing.T) {
	w := structures.NewWorkersPresent(3)
	ops := "aaaaraarrrrraaaarar"
	for _, op := range ops {
		if op == 'a' {
			_ = w.AddWorker()
		} else {
			w.RemoveWorker()
		}
		assert.GreaterOrEqual(t, w.Current, 0)
		assert.LessOrEqual(t, w.Current, w.Max)
	}
}

func TestSpawnAndDespawn(t *testing.T) {
	m, _, reg := testWorld(t)
	tile := world.HexCoord{Q: 1, R: 0}

	s, err := reg.SpawnStructure("storage", tile)
	require.NoError(t, err)
	assert.NotNil(t, s.Storage)
	assert.Nil(t, s.Input)
	assert.False(t, m.IsPassable(tile))

	_, err = reg.SpawnStructure("storage", tile)
	assert.ErrorIs(t, err, structures.ErrCannotPlace)
	_, err = reg.SpawnStructure("castle", world.HexCoord{})
	assert.ErrorIs(t, err, structures.ErrCannotPlace)

	inv, ok := reg.Inventories(s.ID)
	require.True(t, ok)
	assert.Same(t, s.Storage, inv.Source())
	assert.Nil(t, inv.Receptacle(false), "storage is not a delivery target")
	assert.Same(t, s.Storage, inv.Receptacle(true))

	assert.True(t, reg.DespawnStructure(tile))
	assert.False(t, reg.DespawnStructure(tile))
	_, ok = reg.Structure(s.ID)
	assert.False(t, ok)
	assert.True(t, m.IsPassable(tile))
}

func TestTerrainRestriction(t *testing.T) {
	m, _, reg := testWorld(t)
	m.Get(world.HexCoord{}).Terrain = "rocky"
	_, err := reg.SpawnStructure("acacia", world.HexCoord{})
	assert.ErrorIs(t, err, structures.ErrCannotPlace)
}

func TestCraftingWithoutWorkers(t *testing.T) {
	_, _, reg := testWorld(t)
	s, err := reg.SpawnStructure("acacia", world.HexCoord{})
	require.NoError(t, err)
	assert.Equal(t, structures.CraftingNeedsInput, s.Crafting)

	reg.Craft(time.Second)
	assert.Equal(t, structures.CraftingInProgress, s.Crafting)
	_, needsWork := reg.NeedsWork(s.Tile, "acacia")
	assert.False(t, needsWork, "recipes needing no workers are never workplaces")

	reg.Craft(2 * time.Second)
	reg.Craft(time.Second)
	assert.Equal(t, 1, s.Output.ItemCount("acacia_leaf"))
	assert.Equal(t, structures.CraftingNeedsInput, s.Crafting)
}

func TestCraftingNeedsWorkers(t *testing.T) {
	_, _, reg := testWorld(t)
	s, err := reg.SpawnStructure("leuco", world.HexCoord{})
	require.NoError(t, err)

	require.NoError(t, s.Input.AddAllOrNothing(manifest.ItemCount{Item: "acacia_leaf", Count: 1}, testStacks{}))
	reg.Craft(time.Second)
	assert.Equal(t, structures.CraftingInProgress, s.Crafting)
	assert.Equal(t, 0, s.Input.ItemCount("acacia_leaf"))

	id, ok := reg.NeedsWork(s.Tile, "leuco")
	require.True(t, ok)
	assert.Equal(t, s.ID, id)
	_, ok = reg.NeedsWork(s.Tile, "acacia")
	assert.False(t, ok, "kind must match")

	reg.Craft(5 * time.Second)
	assert.Equal(t, time.Duration(0), s.Progress, "no progress without workers")

	require.NoError(t, s.Workers.AddWorker())
	reg.Craft(2 * time.Second)
	assert.Equal(t, 1, s.Output.ItemCount("leuco_chunk"))
}

type testStacks struct{}

func (testStacks) StackSize(manifest.ItemID) int { return 10 }

func TestGhostConstruction(t *testing.T) {
	m, man, reg := testWorld(t)
	tile := world.HexCoord{Q: 0, R: 1}

	g, err := reg.SpawnGhost("leuco", tile)
	require.NoError(t, err)
	assert.True(t, m.IsPassable(tile))

	inv, ok := reg.Inventories(g.ID)
	require.True(t, ok)
	assert.True(t, inv.Ghost)
	assert.Equal(t, 2, inv.Input.RemainingReservedSpaceFor("acacia_leaf"))

	_, ok = reg.NeedsWork(tile, "leuco")
	assert.False(t, ok, "no work before materials arrive")

	require.NoError(t, g.Input.AddAllOrNothing(manifest.ItemCount{Item: "acacia_leaf", Count: 2}, man))
	_, ok = reg.NeedsWork(tile, "leuco")
	assert.True(t, ok)

	assert.Empty(t, reg.Construct(time.Second), "no workers, no progress")

	require.NoError(t, g.Workers.AddWorker())
	require.NoError(t, g.Workers.AddWorker())
	built := reg.Construct(2 * time.Second)
	require.Len(t, built, 1)
	assert.Equal(t, manifest.StructureID("leuco"), built[0].Kind)
	_, ok = reg.Ghost(g.ID)
	assert.False(t, ok)
	_, ok = m.GhostAt(tile)
	assert.False(t, ok)
	assert.False(t, m.IsPassable(tile))
}

func TestGhostReplacement(t *testing.T) {
	_, _, reg := testWorld(t)
	first, err := reg.SpawnGhost("storage", world.HexCoord{})
	require.NoError(t, err)
	second, err := reg.SpawnGhost("leuco", world.HexCoord{})
	require.NoError(t, err)

	_, ok := reg.Ghost(first.ID)
	assert.False(t, ok)
	assert.Len(t, reg.Ghosts(), 1)
	assert.Equal(t, second.ID, reg.Ghosts()[0].ID)
	assert.True(t, reg.DespawnGhost(world.HexCoord{}))
	assert.Empty(t, reg.Ghosts())
}

func TestDemolition(t *testing.T) {
	_, _, reg := testWorld(t)
	s, err := reg.SpawnStructure("storage", world.HexCoord{})
	require.NoError(t, err)

	_, ok := reg.NeedsDemolition(s.Tile, "storage")
	assert.False(t, ok)

	assert.True(t, reg.MarkForDemolition(s.Tile))
	id, ok := reg.NeedsDemolition(s.Tile, "storage")
	require.True(t, ok)
	assert.Equal(t, s.ID, id)

	inv, _ := reg.Inventories(s.ID)
	assert.True(t, inv.MarkedForDemolition)

	require.NoError(t, s.Workers.AddWorker())
	require.NoError(t, s.Workers.AddWorker())
	_, ok = reg.NeedsDemolition(s.Tile, "storage")
	assert.False(t, ok, "full of demolishers")
}

var _ inventory.StackSizer = testStacks{}
