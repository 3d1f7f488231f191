// Simulation ties together the world, its structures, the signal field and
// the unit population, and advances them each tick.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/emergence/internal/config"
	"github.com/talgya/emergence/internal/entropy"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/signals"
	"github.com/talgya/emergence/internal/structures"
	"github.com/talgya/emergence/internal/units"
	"github.com/talgya/emergence/internal/world"
)

// maxEvents bounds the in-memory event buffer.
const maxEvents = 1000

// Simulation holds the complete world state and wires systems together.
// All exported methods are safe to call while the engine is running.
type Simulation struct {
	mu sync.RWMutex

	Config   config.Config
	Manifest *manifest.Manifest
	WorldMap *world.Map
	Sites    *structures.Registry
	Field    *signals.Field
	Units    []*units.Unit

	unitIndex map[units.ID]*units.Unit
	driver    *units.Driver
	nextID    units.ID

	Events   []Event // Recent events, oldest first
	LastTick uint64  // Most recent tick processed

	// Statistics, refreshed every tick.
	Stats SimStats

	// OnSummary receives every tick's summary, for the tick log.
	OnSummary func(TickSummary)
}

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64 `json:"tick" db:"tick"`
	Description string `json:"description" db:"description"`
	Category    string `json:"category" db:"category"` // An outcome name, "built", "death", ...
}

// SimStats tracks aggregate world statistics.
type SimStats struct {
	Population   int            `json:"population"`
	Holding      int            `json:"holding"`
	Structures   int            `json:"structures"`
	Ghosts       int            `json:"ghosts"`
	Deaths       int            `json:"deaths"`
	Built        int            `json:"built"`
	Demolished   int            `json:"demolished"`
	Transfers    int            `json:"transfers"`
	AvgEnergy    float64        `json:"avg_energy"`
	Goals        map[string]int `json:"goals"`
	SignalLayers int            `json:"signal_layers"`
}

// TickSummary is what one tick did, as written to the tick log.
type TickSummary struct {
	Tick       uint64         `json:"tick"`
	Population int            `json:"population"`
	Resolved   int            `json:"resolved"`
	Actions    map[string]int `json:"actions"`
	Idled      map[string]int `json:"idled,omitempty"`
	Events     []Event        `json:"events,omitempty"`
}

// NewSimulation generates a world from cfg and populates it.
func NewSimulation(cfg config.Config, man *manifest.Manifest) (*Simulation, error) {
	m := world.Generate(world.GenConfig{Radius: cfg.World.Radius, Seed: cfg.Seed}, man)
	return New(cfg, man, m)
}

// New builds a simulation on an existing map: it places the configured
// structures and spawns the unit population on passable tiles.
func New(cfg config.Config, man *manifest.Manifest, m *world.Map) (*Simulation, error) {
	kind := manifest.UnitKind(cfg.Sim.UnitKind)
	if _, ok := man.Unit(kind); !ok {
		return nil, fmt.Errorf("unit kind %q is not in the manifest", kind)
	}

	reg := structures.NewRegistry(m, man)
	field := signals.NewField(m)
	s := &Simulation{
		Config:    cfg,
		Manifest:  man,
		WorldMap:  m,
		Sites:     reg,
		Field:     field,
		unitIndex: make(map[units.ID]*units.Unit),
		nextID:    1,
	}
	s.driver = &units.Driver{
		Env:     units.Env{Space: m, Sites: reg, Signals: field, Manifest: man},
		Seed:    cfg.Seed,
		Workers: cfg.Sim.Workers,
	}

	for _, p := range cfg.Structures {
		if err := s.place(p); err != nil {
			slog.Warn("structure not placed", "kind", p.Kind, "q", p.Q, "r", p.R, "error", err)
		}
	}

	rng := entropy.Seeded(cfg.Seed + 1)
	tiles := s.passableTiles()
	rng.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })
	for i := 0; i < cfg.Sim.Units && i < len(tiles); i++ {
		s.spawnUnit(kind, tiles[i], world.Direction(rng.Intn(world.NumDirections)))
	}
	if len(s.Units) < cfg.Sim.Units {
		slog.Warn("not enough room for every unit", "wanted", cfg.Sim.Units, "spawned", len(s.Units))
	}

	s.updateStats()
	return s, nil
}

func (s *Simulation) place(p config.Placement) error {
	tile := world.HexCoord{Q: p.Q, R: p.R}
	kind := manifest.StructureID(p.Kind)
	if p.Ghost {
		_, err := s.Sites.SpawnGhost(kind, tile)
		return err
	}
	if _, err := s.Sites.SpawnStructure(kind, tile); err != nil {
		return err
	}
	if p.Demolish {
		s.Sites.MarkForDemolition(tile)
	}
	return nil
}

// passableTiles lists the free tiles in a stable order.
func (s *Simulation) passableTiles() []world.HexCoord {
	out := make([]world.HexCoord, 0, len(s.WorldMap.Tiles))
	for c := range s.WorldMap.Tiles {
		if s.WorldMap.IsPassable(c) {
			out = append(out, c)
		}
	}
	sortCoords(out)
	return out
}

func sortCoords(cs []world.HexCoord) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Q != cs[j].Q {
			return cs[i].Q < cs[j].Q
		}
		return cs[i].R < cs[j].R
	})
}

func (s *Simulation) spawnUnit(kind manifest.UnitKind, tile world.HexCoord, facing world.Direction) *units.Unit {
	data, _ := s.Manifest.Unit(kind)
	u := units.New(s.nextID, kind, data, tile, facing)
	s.nextID++
	s.Units = append(s.Units, u)
	s.unitIndex[u.ID] = u
	return u
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// TickStep is the engine callback for every tick.
func (s *Simulation) TickStep(tick uint64) {
	summary, err := s.Step(context.Background(), tick)
	if err != nil {
		slog.Error("tick failed", "tick", tick, "error", err)
		return
	}
	if s.OnSummary != nil {
		s.OnSummary(summary)
	}
}

// Step advances the world by one fixed step: unit phases, then crafting and
// construction, then the signal field, then hunger.
func (s *Simulation) Step(ctx context.Context, tick uint64) (TickSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := s.Config.Sim.Step
	s.LastTick = tick
	res, err := s.driver.Step(ctx, s.Units, tick, dt)
	if err != nil {
		return TickSummary{}, fmt.Errorf("tick %d: %w", tick, err)
	}

	var events []Event
	for _, r := range res.Reports {
		switch r.Outcome {
		case units.OutcomePickedUp, units.OutcomeDroppedOff:
			s.Stats.Transfers++
			continue
		case units.OutcomeAte:
			continue
		case units.OutcomeDemolished:
			s.Stats.Demolished++
		}
		events = append(events, Event{Tick: tick, Description: r.String(), Category: string(r.Outcome)})
	}

	s.Sites.Craft(dt)
	for _, built := range s.Sites.Construct(dt) {
		s.Stats.Built++
		events = append(events, Event{
			Tick:        tick,
			Description: fmt.Sprintf("%s #%d completed at %s", built.Kind, built.ID, built.Tile),
			Category:    "built",
		})
	}

	s.emitSignals()
	s.Field.Diffuse(s.Config.Signals.Diffusion)
	s.Field.Decay(s.Config.Signals.Decay, s.Config.Signals.Floor)

	events = append(events, s.starve(tick, dt)...)
	s.record(events)
	s.updateStats()

	actions := make(map[string]int)
	for _, u := range s.Units {
		actions[u.Action.Action().Kind.String()]++
	}
	return TickSummary{
		Tick:       tick,
		Population: len(s.Units),
		Resolved:   res.Resolved,
		Actions:    actions,
		Idled:      res.Idled,
		Events:     events,
	}, nil
}

// starve drains energy and removes units that have run out.
func (s *Simulation) starve(tick uint64, dt time.Duration) []Event {
	var events []Event
	alive := s.Units[:0]
	for _, u := range s.Units {
		u.Energy.Regenerate(dt)
		if !u.Energy.Empty() {
			alive = append(alive, u)
			continue
		}
		units.Remove(u, s.driver.Env)
		delete(s.unitIndex, u.ID)
		s.Stats.Deaths++
		events = append(events, Event{
			Tick:        tick,
			Description: fmt.Sprintf("unit %d starved at %s after %s", u.ID, u.Tile, u.Lifecycle.Age),
			Category:    "death",
		})
	}
	for i := len(alive); i < len(s.Units); i++ {
		s.Units[i] = nil
	}
	s.Units = alive
	return events
}

func (s *Simulation) record(events []Event) {
	s.Events = append(s.Events, events...)
	if len(s.Events) > maxEvents {
		s.Events = append([]Event(nil), s.Events[len(s.Events)-maxEvents:]...)
	}
}

func (s *Simulation) updateStats() {
	s.Stats.Population = len(s.Units)
	s.Stats.Holding = 0
	s.Stats.Goals = make(map[string]int)
	var energy float64
	for _, u := range s.Units {
		if _, ok := u.Holding(); ok {
			s.Stats.Holding++
		}
		s.Stats.Goals[u.Goal.Kind.String()]++
		energy += u.Energy.Current
	}
	s.Stats.AvgEnergy = 0
	if len(s.Units) > 0 {
		s.Stats.AvgEnergy = energy / float64(len(s.Units))
	}
	s.Stats.Structures = len(s.Sites.Structures())
	s.Stats.Ghosts = len(s.Sites.Ghosts())
	s.Stats.SignalLayers = len(s.Field.Types())
}

// Report logs a summary of the world, every few hundred ticks.
func (s *Simulation) Report(tick uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, e := range s.Events {
		counts[e.Category]++
	}
	slog.Info("colony report",
		"tick", humanize.Comma(int64(tick)),
		"time", SimTime(tick, s.Config.Sim.Step),
		"alive", s.Stats.Population,
		"holding", s.Stats.Holding,
		"deaths", s.Stats.Deaths,
		"transfers", humanize.Comma(int64(s.Stats.Transfers)),
		"built", s.Stats.Built,
		"demolished", s.Stats.Demolished,
		"avg_energy", fmt.Sprintf("%.1f", s.Stats.AvgEnergy),
		"signal_layers", s.Stats.SignalLayers,
		"seat_refusals", counts[string(units.OutcomeSeatUnavailable)],
		"transfers_rejected", counts[string(units.OutcomeTransferRejected)],
	)
}
