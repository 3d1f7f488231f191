package world_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/world"
)

func TestRotation(t *testing.T) {
	for d := world.Direction(0); d < world.NumDirections; d++ {
		assert.Equal(t, d, d.Left().Right(), "left then right is identity for %s", d)
		assert.Equal(t, d, d.Right().Left(), "right then left is identity for %s", d)
	}
	assert.Equal(t, world.DirNorthEast, world.DirEast.Left())
	assert.Equal(t, world.DirSouthEast, world.DirEast.Right())

	f := world.Facing{Direction: world.DirWest}
	f.Rotate(world.RotateLeft)
	assert.Equal(t, world.DirSouthWest, f.Direction)
	f.Rotate(world.RotateRight)
	f.Rotate(world.RotateRight)
	assert.Equal(t, world.DirNorthWest, f.Direction)
}

func TestDirectionTo(t *testing.T) {
	origin := world.HexCoord{}
	for d := world.Direction(0); d < world.NumDirections; d++ {
		n := origin.Neighbor(d)
		assert.Equal(t, d, origin.DirectionTo(n))
		assert.Equal(t, 1, world.Distance(origin, n))
	}
	// Two steps east is still east.
	assert.Equal(t, world.DirEast, origin.DirectionTo(world.HexCoord{Q: 2, R: 0}))
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, world.Distance(world.HexCoord{Q: 1, R: 1}, world.HexCoord{Q: 1, R: 1}))
	assert.Equal(t, 3, world.Distance(world.HexCoord{}, world.HexCoord{Q: 3, R: -3}))
	assert.Equal(t, 4, world.Distance(world.HexCoord{Q: -2, R: 0}, world.HexCoord{Q: 2, R: 0}))
}

func flatMap(radius int) *world.Map {
	m := world.NewMap(radius)
	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			c := world.HexCoord{Q: q, R: r}
			if m.InBounds(c) {
				m.Set(&world.Tile{Coord: c, Terrain: "loam"})
			}
		}
	}
	return m
}

func TestSpatialIndex(t *testing.T) {
	m := flatMap(1)
	assert.Equal(t, 7, m.HexCount())

	origin := world.HexCoord{}
	assert.Len(t, m.AllNeighbors(origin), 6)
	edge := world.HexCoord{Q: 1, R: 0}
	neighbors := m.AllNeighbors(edge)
	assert.Len(t, neighbors, 3)
	// Fixed enumeration order is preserved after filtering.
	assert.Equal(t, []world.HexCoord{{Q: 1, R: -1}, {Q: 0, R: 0}, {Q: 0, R: 1}}, neighbors)

	assert.False(t, m.IsValid(world.HexCoord{Q: 2, R: 0}))
	assert.False(t, m.IsPassable(world.HexCoord{Q: 2, R: 0}))

	require.NoError(t, m.AddStructure(5, []world.HexCoord{edge}))
	assert.False(t, m.IsPassable(edge))
	id, ok := m.StructureAt(edge)
	assert.True(t, ok)
	assert.Equal(t, world.EntityID(5), id)
	assert.Error(t, m.AddStructure(6, []world.HexCoord{edge}))

	replaced, err := m.AddGhost(9, origin)
	require.NoError(t, err)
	assert.Equal(t, world.NoEntity, replaced)
	assert.True(t, m.IsPassable(origin), "ghosts do not block movement")

	m.RemoveStructure(5)
	assert.True(t, m.IsPassable(edge))
	gid, ok := m.RemoveGhost(origin)
	assert.True(t, ok)
	assert.Equal(t, world.EntityID(9), gid)

	terrain, ok := m.TerrainAt(origin)
	assert.True(t, ok)
	assert.Equal(t, manifest.TerrainID("loam"), terrain)
}

func TestGenerateIsDeterministic(t *testing.T) {
	man, err := manifest.Default()
	require.NoError(t, err)

	cfg := world.SmallTestConfig()
	a := world.Generate(cfg, man)
	b := world.Generate(cfg, man)

	// Radius 3 hexagon: 3*3*(3+1)+1 tiles.
	assert.Equal(t, 37, a.HexCount())
	for c, tile := range a.Tiles {
		other := b.Get(c)
		require.NotNil(t, other)
		assert.Equal(t, tile.Terrain, other.Terrain)
		_, known := man.Terrain[tile.Terrain]
		assert.True(t, known, "terrain %q comes from the manifest", tile.Terrain)
	}

	total := 0
	counts := world.TerrainCounts(a)
	for i, tc := range counts {
		total += tc.Count
		if i > 0 {
			assert.Less(t, counts[i-1].Terrain, tc.Terrain, "counts are ordered by terrain")
		}
	}
	assert.Equal(t, a.HexCount(), total)
	assert.Equal(t, counts, world.TerrainCounts(b))
}

func TestTerrainCountsOrder(t *testing.T) {
	m := world.NewMap(1)
	terrains := []manifest.TerrainID{"sand", "loam", "rock", "loam", "grass", "sand", "loam"}
	i := 0
	for q := -1; q <= 1; q++ {
		for r := -1; r <= 1; r++ {
			if c := (world.HexCoord{Q: q, R: r}); m.InBounds(c) {
				m.Set(&world.Tile{Coord: c, Terrain: terrains[i]})
				i++
			}
		}
	}
	require.Equal(t, 7, i)
	for run := 0; run < 10; run++ {
		assert.Equal(t, []world.TerrainCount{
			{Terrain: "grass", Count: 1},
			{Terrain: "loam", Count: 3},
			{Terrain: "rock", Count: 1},
			{Terrain: "sand", Count: 2},
		}, world.TerrainCounts(m))
	}
}
