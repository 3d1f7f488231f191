package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/emergence/internal/inventory"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/signals"
	"github.com/talgya/emergence/internal/units"
	"github.com/talgya/emergence/internal/world"
)

// ErrUnknownUnit is returned for unit IDs that are not alive.
var ErrUnknownUnit = errors.New("unknown unit")

// Status is a point-in-time overview of the simulation.
type Status struct {
	Tick  uint64   `json:"tick"`
	Time  string   `json:"sim_time"`
	Seed  int64    `json:"seed"`
	Stats SimStats `json:"stats"`
}

// StructureView describes a structure or ghost for observers.
type StructureView struct {
	ID                  world.EntityID       `json:"id"`
	Kind                manifest.StructureID `json:"kind"`
	Tile                world.HexCoord       `json:"tile"`
	Ghost               bool                 `json:"ghost,omitempty"`
	MarkedForDemolition bool                 `json:"marked_for_demolition,omitempty"`
	Crafting            string               `json:"crafting,omitempty"`
	Workers             int                  `json:"workers"`
	MaxWorkers          int                  `json:"max_workers"`
	Input               []inventory.Slot     `json:"input,omitempty"`
	Output              []inventory.Slot     `json:"output,omitempty"`
	Storage             []inventory.Slot     `json:"storage,omitempty"`
	WorkRemaining       float64              `json:"work_remaining_s,omitempty"`
}

// SignalView is one tile's readings.
type SignalView struct {
	Tile     world.HexCoord    `json:"tile"`
	Readings []signals.Reading `json:"readings"`
}

// Status summarizes the simulation.
func (s *Simulation) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := s.Stats
	stats.Goals = make(map[string]int, len(s.Stats.Goals))
	for k, v := range s.Stats.Goals {
		stats.Goals[k] = v
	}
	return Status{
		Tick:  s.LastTick,
		Time:  SimTime(s.LastTick, s.Config.Sim.Step),
		Seed:  s.Config.Seed,
		Stats: stats,
	}
}

// UnitDisplays snapshots every living unit, ordered by ID.
func (s *Simulation) UnitDisplays() []units.Display {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]units.Display, len(s.Units))
	for i, u := range s.Units {
		out[i] = u.Display()
	}
	return out
}

// UnitDisplay snapshots one unit.
func (s *Simulation) UnitDisplay(id units.ID) (units.Display, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.unitIndex[id]
	if !ok {
		return units.Display{}, fmt.Errorf("%w: %d", ErrUnknownUnit, id)
	}
	return u.Display(), nil
}

// SetGoal overrides a unit's goal, the way an outside priority system would.
// The unit acts on it once its current action is over.
func (s *Simulation) SetGoal(id units.ID, g units.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.unitIndex[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownUnit, id)
	}
	u.Goal = g
	u.Impatience.Reset()
	return nil
}

// StructureViews lists structures and then ghosts.
func (s *Simulation) StructureViews() []StructureView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []StructureView
	for _, st := range s.Sites.Structures() {
		v := StructureView{
			ID:                  st.ID,
			Kind:                st.Kind,
			Tile:                st.Tile,
			MarkedForDemolition: st.MarkedForDemolition,
			Workers:             st.Workers.Current,
			MaxWorkers:          st.Workers.Max,
		}
		if st.Recipe != "" {
			v.Crafting = st.Crafting.String()
		}
		if st.Input != nil {
			v.Input = st.Input.Slots()
		}
		if st.Output != nil {
			v.Output = st.Output.Slots()
		}
		if st.Storage != nil {
			v.Storage = st.Storage.Slots()
		}
		out = append(out, v)
	}
	for _, g := range s.Sites.Ghosts() {
		out = append(out, StructureView{
			ID:            g.ID,
			Kind:          g.Kind,
			Tile:          g.Tile,
			Ghost:         true,
			Workers:       g.Workers.Current,
			MaxWorkers:    g.Workers.Max,
			Input:         g.Input.Slots(),
			WorkRemaining: g.WorkRemaining.Seconds(),
		})
	}
	return out
}

// SignalViews lists the readings of every tile with any signal.
func (s *Simulation) SignalViews() []SignalView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []SignalView
	for _, c := range sortedCoords(s.WorldMap) {
		if r := s.Field.At(c); len(r) > 0 {
			out = append(out, SignalView{Tile: c, Readings: r})
		}
	}
	return out
}

// RecentEvents returns up to limit of the newest events, newest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.Events) {
		limit = len(s.Events)
	}
	out := make([]Event, 0, limit)
	for i := len(s.Events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.Events[i])
	}
	return out
}

// EventsSince returns buffered events newer than tick, oldest first.
func (s *Simulation) EventsSince(tick uint64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.Events {
		if e.Tick > tick {
			out = append(out, e)
		}
	}
	return out
}

func sortedCoords(m *world.Map) []world.HexCoord {
	out := make([]world.HexCoord, 0, len(m.Tiles))
	for c := range m.Tiles {
		out = append(out, c)
	}
	sortCoords(out)
	return out
}
