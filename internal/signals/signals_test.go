package signals_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/emergence/internal/signals"
	"github.com/talgya/emergence/internal/world"
)

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

func TestUpstream(t *testing.T) {
	f := signals.NewField(flatMap(2))
	origin := world.HexCoord{}
	leaf := signals.Push("leaf")

	_, ok := f.Upstream(origin, leaf)
	assert.False(t, ok, "empty layer has no gradient")

	f.Add(leaf, origin.Neighbor(world.DirWest), 2)
	f.Add(leaf, origin.Neighbor(world.DirSouthEast), 3)
	up, ok := f.Upstream(origin, leaf)
	require.True(t, ok)
	assert.Equal(t, origin.Neighbor(world.DirSouthEast), up)

	_, ok = f.Upstream(origin, signals.Pull("leaf"))
	assert.False(t, ok, "layers are independent")

	f.Add(leaf, origin, 5)
	_, ok = f.Upstream(origin, leaf)
	assert.False(t, ok, "already at the local peak")
}

func TestUpstreamTieBreaksByDirectionOrder(t *testing.T) {
	f := signals.NewField(flatMap(2))
	origin := world.HexCoord{}
	work := signals.Work("mill")

	f.Add(work, origin.Neighbor(world.DirSouthWest), 1)
	f.Add(work, origin.Neighbor(world.DirNorthEast), 1)
	up, ok := f.Upstream(origin, work)
	require.True(t, ok)
	assert.Equal(t, origin.Neighbor(world.DirNorthEast), up)
}

func TestDiffuseAndDecay(t *testing.T) {
	f := signals.NewField(flatMap(3))
	origin := world.HexCoord{}
	pull := signals.Pull("chunk")

	f.Add(pull, origin, 6)
	f.Add(pull, origin, -1)
	assert.Equal(t, 6.0, f.Strength(pull, origin))

	f.Diffuse(0.5)
	assert.InDelta(t, 3.0, f.Strength(pull, origin), 1e-9)
	for _, n := range origin.Neighbors() {
		assert.InDelta(t, 0.5, f.Strength(pull, n), 1e-9)
	}

	// Neighbors now point back toward the source.
	up, ok := f.Upstream(origin.Neighbor(world.DirEast), pull)
	require.True(t, ok)
	assert.Equal(t, origin, up)

	f.Decay(0.5, 0.3)
	assert.InDelta(t, 1.5, f.Strength(pull, origin), 1e-9)
	assert.Equal(t, 0.0, f.Strength(pull, origin.Neighbor(world.DirEast)), "below floor is dropped")

	f.Decay(0.9, 1)
	assert.Empty(t, f.Types())
}

func TestAt(t *testing.T) {
	f := signals.NewField(flatMap(1))
	origin := world.HexCoord{}
	f.Add(signals.Push("leaf"), origin, 1)
	f.Add(signals.Work("mill"), origin, 4)
	f.Add(signals.Demolish("shed"), origin.Neighbor(world.DirEast), 9)

	readings := f.At(origin)
	require.Len(t, readings, 2)
	assert.Equal(t, signals.Work("mill"), readings[0].Type)
	assert.Equal(t, "push(leaf)", readings[1].Type.String())
	assert.Len(t, f.Types(), 3)
}
