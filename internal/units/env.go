// Package units implements the unit decision and action engine: goals, the
// timed action state machine, the goal resolver, and the per-step phases
// that advance, start and finish actions for the whole population.
package units

import (
	"errors"

	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/signals"
	"github.com/talgya/emergence/internal/structures"
	"github.com/talgya/emergence/internal/world"
)

var (
	// ErrTargetGone means the entity or tile an action referred to no longer
	// exists or is no longer usable when the action finishes.
	ErrTargetGone = errors.New("target gone")
	// ErrNoPathSignal means a unit had neither a local candidate nor a
	// gradient to follow.
	ErrNoPathSignal = errors.New("no path signal")
)

// Space is the read side of the spatial index.
type Space interface {
	IsValid(coord world.HexCoord) bool
	IsPassable(coord world.HexCoord) bool
	AllNeighbors(coord world.HexCoord) []world.HexCoord
	StructureAt(coord world.HexCoord) (world.EntityID, bool)
	GhostAt(coord world.HexCoord) (world.EntityID, bool)
	TerrainAt(coord world.HexCoord) (manifest.TerrainID, bool)
}

// Sites exposes containers and workplaces.
type Sites interface {
	Inventories(id world.EntityID) (structures.Inventories, bool)
	Workers(id world.EntityID) (*structures.WorkersPresent, bool)
	Tile(id world.EntityID) (world.HexCoord, bool)
	NeedsWork(tile world.HexCoord, kind manifest.StructureID) (world.EntityID, bool)
	StillNeedsWork(id world.EntityID) bool
	NeedsDemolition(tile world.HexCoord, kind manifest.StructureID) (world.EntityID, bool)
	DespawnStructure(tile world.HexCoord) bool
}

// Signals is the read side of the signal field.
type Signals interface {
	Strength(t signals.Type, tile world.HexCoord) float64
	Upstream(tile world.HexCoord, t signals.Type) (world.HexCoord, bool)
	At(tile world.HexCoord) []signals.Reading
}

// Env bundles everything units consult. The resolver only reads from it;
// the Start and Finish phases mutate inventories and seats through Sites.
type Env struct {
	Space    Space
	Sites    Sites
	Signals  Signals
	Manifest *manifest.Manifest
}
