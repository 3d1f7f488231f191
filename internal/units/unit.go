package units

import (
	"time"

	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/world"
)

// ID identifies a unit.
type ID uint64

// EnergyPool tracks how fed a unit is.
type EnergyPool struct {
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
	// Regen is applied per second; negative values drain the pool.
	Regen float64 `json:"regen"`
}

// Add changes the pool by amount, clamped to [0, Max].
func (p *EnergyPool) Add(amount float64) {
	p.Current += amount
	if p.Current > p.Max {
		p.Current = p.Max
	}
	if p.Current < 0 {
		p.Current = 0
	}
}

// Regenerate applies Regen over dt.
func (p *EnergyPool) Regenerate(dt time.Duration) {
	p.Add(p.Regen * dt.Seconds())
}

// Empty reports whether the unit has starved.
func (p EnergyPool) Empty() bool { return p.Max > 0 && p.Current <= 0 }

// Fraction is Current/Max, or 1 for a unit that needs no energy.
func (p EnergyPool) Fraction() float64 {
	if p.Max <= 0 {
		return 1
	}
	return p.Current / p.Max
}

// ImpatiencePool counts consecutive fruitless waits.
type ImpatiencePool struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// Increment adds one wait and reports whether patience has run out.
func (p *ImpatiencePool) Increment() bool {
	p.Current++
	return p.Max > 0 && p.Current >= p.Max
}

// Reset clears the pool.
func (p *ImpatiencePool) Reset() { p.Current = 0 }

// Lifecycle records what a unit has done over its life.
type Lifecycle struct {
	Age          time.Duration `json:"age"`
	EnergyGained float64       `json:"energy_gained"`
	ItemsMoved   int           `json:"items_moved"`
}

// Unit is one autonomous agent.
type Unit struct {
	ID     ID
	Kind   manifest.UnitKind
	Tile   world.HexCoord
	Facing world.Facing
	Goal   Goal
	Action CurrentAction

	Energy     EnergyPool
	Impatience ImpatiencePool
	Lifecycle  Lifecycle

	// Held is the single carried item, empty when the unit's hands are free.
	Held manifest.ItemID
}

// New creates a unit of kind with pools taken from the manifest.
func New(id ID, kind manifest.UnitKind, data manifest.UnitData, tile world.HexCoord, facing world.Direction) *Unit {
	return &Unit{
		ID:         id,
		Kind:       kind,
		Tile:       tile,
		Facing:     world.Facing{Direction: facing},
		Goal:       WanderGoal(),
		Action:     Idle(),
		Energy:     EnergyPool{Current: data.Energy.Max, Max: data.Energy.Max, Regen: data.Energy.Regen},
		Impatience: ImpatiencePool{Max: data.MaxImpatience},
	}
}

// Holding returns the carried item.
func (u *Unit) Holding() (manifest.ItemID, bool) {
	return u.Held, u.Held != ""
}

// Display is the read-only view of a unit handed to observers.
type Display struct {
	ID         ID                `json:"id"`
	Kind       manifest.UnitKind `json:"kind"`
	Tile       world.HexCoord    `json:"tile"`
	Facing     string            `json:"facing"`
	Goal       string            `json:"goal"`
	Action     string            `json:"action"`
	Remaining  float64           `json:"remaining_s"`
	Held       manifest.ItemID   `json:"held,omitempty"`
	Energy     float64           `json:"energy"`
	Impatience int               `json:"impatience"`
	Age        float64           `json:"age_s"`
}

// Display snapshots the unit for rendering or the API.
func (u *Unit) Display() Display {
	return Display{
		ID:         u.ID,
		Kind:       u.Kind,
		Tile:       u.Tile,
		Facing:     u.Facing.Direction.String(),
		Goal:       u.Goal.String(),
		Action:     u.Action.Action().String(),
		Remaining:  u.Action.Remaining().Seconds(),
		Held:       u.Held,
		Energy:     u.Energy.Current,
		Impatience: u.Impatience.Current,
		Age:        u.Lifecycle.Age.Seconds(),
	}
}
