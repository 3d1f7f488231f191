package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/emergence/internal/config"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/signals"
	"github.com/talgya/emergence/internal/units"
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

func testConfig() config.Config {
	cfg := config.Default()
	cfg.World.Radius = 4
	cfg.Sim.Units = 10
	cfg.Structures = []config.Placement{
		{Kind: "acacia", Q: -2, R: 0},
		{Kind: "storage", Q: 2, R: 0},
		{Kind: "leuco", Q: 0, R: 2, Ghost: true},
		{Kind: "storage", Q: 0, R: -2, Demolish: true},
	}
	return cfg
}

func newTestSim(t *testing.T, cfg config.Config, man *manifest.Manifest) *Simulation {
	t.Helper()
	if man == nil {
		var err error
		man, err = manifest.Default()
		require.NoError(t, err)
	}
	sim, err := New(cfg, man, flatMap(cfg.World.Radius))
	require.NoError(t, err)
	return sim
}

func run(t *testing.T, sim *Simulation, ticks int) {
	t.Helper()
	for tick := uint64(1); tick <= uint64(ticks); tick++ {
		_, err := sim.Step(context.Background(), tick)
		require.NoError(t, err)
	}
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "0:00:00.0", SimTime(0, 100*time.Millisecond))
	assert.Equal(t, "0:01:00.0", SimTime(600, 100*time.Millisecond))
	assert.Equal(t, "1:00:01.5", SimTime(36015, 100*time.Millisecond))
}

func TestEngineRunsToMaxTicks(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	e.MaxTicks = 5
	e.ReportEvery = 2

	var ticks, reports int
	e.OnTick = func(uint64) { ticks++ }
	e.OnReport = func(uint64) { reports++ }
	e.Run(context.Background())

	assert.Equal(t, 5, ticks)
	assert.Equal(t, 2, reports)
	assert.Equal(t, uint64(5), e.Tick)
	assert.False(t, e.Running())
}

func TestEngineStopsOnCancel(t *testing.T) {
	e := NewEngine()
	require.NoError(t, e.SetSpeed(0))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	e.Run(ctx)
	assert.Zero(t, e.Tick, "paused engine never steps")
	assert.Error(t, e.SetSpeed(-1))
}

func TestNewPlacesStructuresAndUnits(t *testing.T) {
	sim := newTestSim(t, testConfig(), nil)
	st := sim.Status()
	assert.Equal(t, 10, st.Stats.Population)
	assert.Equal(t, 3, st.Stats.Structures)
	assert.Equal(t, 1, st.Stats.Ghosts)

	for _, d := range sim.UnitDisplays() {
		assert.True(t, sim.WorldMap.IsPassable(d.Tile), "unit %d spawned on a blocked tile", d.ID)
	}

	cfg := testConfig()
	cfg.Sim.UnitKind = "beetle"
	_, err := New(cfg, sim.Manifest, flatMap(2))
	assert.Error(t, err)
}

func TestEmitSignals(t *testing.T) {
	sim := newTestSim(t, testConfig(), nil)
	acacia := world.HexCoord{Q: -2}
	ghost := world.HexCoord{R: 2}
	marked := world.HexCoord{R: -2}

	id, ok := sim.WorldMap.StructureAt(acacia)
	require.True(t, ok)
	st, _ := sim.Sites.Structure(id)
	require.NoError(t, st.Output.AddAllOrNothing(manifest.ItemCount{Item: "acacia_leaf", Count: 2}, sim.Manifest))

	sim.emitSignals()
	assert.Equal(t, 2.0, sim.Field.Strength(signals.Push("acacia_leaf"), acacia))
	assert.Equal(t, 2.0, sim.Field.Strength(signals.Pull("acacia_leaf"), ghost), "two materials still missing")
	assert.Equal(t, 1.0, sim.Field.Strength(signals.Demolish("storage"), marked))
	assert.Zero(t, sim.Field.Strength(signals.Work("leuco"), ghost), "no work before materials arrive")
}

// Invariants hold for every tick of a busy colony.
func TestStepKeepsInvariants(t *testing.T) {
	sim := newTestSim(t, testConfig(), nil)
	for tick := uint64(1); tick <= 400; tick++ {
		summary, err := sim.Step(context.Background(), tick)
		require.NoError(t, err)
		assert.Equal(t, len(sim.Units), summary.Population)

		for _, st := range sim.Sites.Structures() {
			require.GreaterOrEqual(t, st.Workers.Current, 0)
			require.LessOrEqual(t, st.Workers.Current, st.Workers.Max)
		}
		for _, g := range sim.Sites.Ghosts() {
			require.LessOrEqual(t, g.Workers.Current, g.Workers.Max)
		}
		for _, u := range sim.Units {
			require.True(t, sim.WorldMap.IsValid(u.Tile))
		}
	}
	assert.NotEmpty(t, sim.Field.Types())
	assert.Equal(t, uint64(400), sim.CurrentTick())

	events := sim.RecentEvents(0)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i-1].Tick, events[i].Tick, "newest first")
	}
}

func TestStepIsDeterministic(t *testing.T) {
	snapshot := func(workers int) []units.Display {
		cfg := testConfig()
		cfg.Sim.Workers = workers
		sim := newTestSim(t, cfg, nil)
		run(t, sim, 150)
		return sim.UnitDisplays()
	}
	assert.Equal(t, snapshot(1), snapshot(8))
}

func TestStarvation(t *testing.T) {
	man, err := manifest.Default()
	require.NoError(t, err)
	ant := man.Units["ant"]
	ant.Energy = manifest.EnergyData{Max: 1, Regen: -5}
	man.Units["ant"] = ant

	cfg := testConfig()
	cfg.Structures = nil
	sim := newTestSim(t, cfg, man)
	run(t, sim, 3)

	st := sim.Status()
	assert.Zero(t, st.Stats.Population)
	assert.Equal(t, 10, st.Stats.Deaths)
	assert.Len(t, sim.EventsSince(0), 10)
	for _, e := range sim.RecentEvents(0) {
		assert.Equal(t, "death", e.Category)
	}
	_, err = sim.UnitDisplay(1)
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestSetGoal(t *testing.T) {
	sim := newTestSim(t, testConfig(), nil)
	require.NoError(t, sim.SetGoal(3, units.WorkGoal("leuco")))
	d, err := sim.UnitDisplay(3)
	require.NoError(t, err)
	assert.Equal(t, "work leuco", d.Goal)

	assert.ErrorIs(t, sim.SetGoal(999, units.WanderGoal()), ErrUnknownUnit)
}

func TestStructureViews(t *testing.T) {
	sim := newTestSim(t, testConfig(), nil)
	views := sim.StructureViews()
	require.Len(t, views, 4)
	last := views[len(views)-1]
	assert.True(t, last.Ghost)
	assert.Equal(t, manifest.StructureID("leuco"), last.Kind)
	assert.Equal(t, 3.0, last.WorkRemaining)

	var marked int
	for _, v := range views {
		if v.MarkedForDemolition {
			marked++
		}
	}
	assert.Equal(t, 1, marked)
}
