package engine

import (
	"github.com/talgya/emergence/internal/signals"
	"github.com/talgya/emergence/internal/structures"
)

// emitSignals lets every structure and ghost advertise on its own tile:
// stock as Push, free input room as Pull, open seats as Work, and pending
// demolition as Demolish.
func (s *Simulation) emitSignals() {
	rate := s.Config.Signals.Emission
	if rate <= 0 {
		return
	}
	for _, st := range s.Sites.Structures() {
		if st.MarkedForDemolition {
			if st.Workers.NeedsMore() {
				s.Field.Add(signals.Demolish(st.Kind), st.Tile, rate)
			}
			continue
		}
		if src := (structures.Inventories{Output: st.Output, Storage: st.Storage}).Source(); src != nil {
			for _, slot := range src.Slots() {
				s.Field.Add(signals.Push(slot.Item), st.Tile, rate*float64(slot.Count))
			}
		}
		if st.Input != nil {
			for _, slot := range st.Input.Slots() {
				s.Field.Add(signals.Pull(slot.Item), st.Tile, rate*float64(slot.Max-slot.Count))
			}
		}
		if _, ok := s.Sites.NeedsWork(st.Tile, st.Kind); ok {
			s.Field.Add(signals.Work(st.Kind), st.Tile, rate)
		}
	}
	for _, g := range s.Sites.Ghosts() {
		for _, slot := range g.Input.Slots() {
			s.Field.Add(signals.Pull(slot.Item), g.Tile, rate*float64(slot.Max-slot.Count))
		}
		if _, ok := s.Sites.NeedsWork(g.Tile, g.Kind); ok {
			s.Field.Add(signals.Work(g.Kind), g.Tile, rate)
		}
	}
}
