// Package structures tracks buildings and construction ghosts: their
// inventories, workplace seats, crafting progress and lifecycle commands.
package structures

import (
	"time"

	"github.com/talgya/emergence/internal/inventory"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/world"
)

// CraftingState is where a crafting structure is in its recipe cycle.
type CraftingState uint8

const (
	CraftingNone       CraftingState = iota // No recipe
	CraftingNeedsInput                      // Waiting on recipe inputs
	CraftingInProgress                      // Inputs consumed, accumulating craft time
	CraftingFullOutput                      // Finished but the output inventory has no room
)

var craftingNames = [...]string{"none", "needs_input", "in_progress", "full_output"}

func (c CraftingState) String() string {
	if int(c) < len(craftingNames) {
		return craftingNames[c]
	}
	return "unknown"
}

// Structure is a completed building on the map.
type Structure struct {
	ID   world.EntityID       `json:"id"`
	Kind manifest.StructureID `json:"kind"`
	Tile world.HexCoord       `json:"tile"`

	Input   *inventory.Inventory `json:"-"`
	Output  *inventory.Inventory `json:"-"`
	Storage *inventory.Inventory `json:"-"`
	Workers *WorkersPresent      `json:"workers"`

	Recipe   manifest.RecipeID `json:"recipe,omitempty"`
	Crafting CraftingState     `json:"crafting"`
	Progress time.Duration     `json:"progress"`

	MarkedForDemolition bool `json:"marked_for_demolition"`
}

// Ghost is a placeholder for a structure queued for construction.
// Its input inventory reserves the construction materials.
type Ghost struct {
	ID   world.EntityID       `json:"id"`
	Kind manifest.StructureID `json:"kind"`
	Tile world.HexCoord       `json:"tile"`

	Input         *inventory.Inventory `json:"-"`
	Workers       *WorkersPresent      `json:"workers"`
	WorkRemaining time.Duration        `json:"work_remaining"`
}

// MaterialsDelivered reports whether every reserved material has arrived.
func (g *Ghost) MaterialsDelivered() bool {
	return g.Input.Full()
}

// Inventories is the container view of an entity that units interact with.
type Inventories struct {
	Input   *inventory.Inventory
	Output  *inventory.Inventory
	Storage *inventory.Inventory

	Ghost               bool
	MarkedForDemolition bool
}

// Source returns the inventory items may be taken from: the output
// inventory, or for storage structures the storage inventory.
func (inv Inventories) Source() *inventory.Inventory {
	if inv.Output != nil {
		return inv.Output
	}
	return inv.Storage
}

// Receptacle returns the inventory items may be placed into: the input
// inventory, or, when allowStorage is set, the storage inventory.
func (inv Inventories) Receptacle(allowStorage bool) *inventory.Inventory {
	if inv.Input != nil {
		return inv.Input
	}
	if allowStorage {
		return inv.Storage
	}
	return nil
}
