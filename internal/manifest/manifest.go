// Package manifest holds the read-only lookup tables that describe items, terrain,
// structures, recipes and unit varieties. Manifests are loaded once at startup.
package manifest

import (
	"sort"
	"time"
)

// ItemID names an item variety.
type ItemID string

// TerrainID names a terrain variety.
type TerrainID string

// StructureID names a structure variety.
type StructureID string

// RecipeID names a crafting recipe.
type RecipeID string

// UnitKind names a unit variety.
type UnitKind string

// ItemData describes a single item variety.
type ItemData struct {
	StackSize int `yaml:"stack_size" json:"stack_size"`
}

// TerrainData describes a single terrain variety.
type TerrainData struct {
	// Multiplier on how fast units cross a tile; 1.0 is normal.
	WalkingSpeed float64 `yaml:"walking_speed" json:"walking_speed"`
	// Relative weight used by world generation.
	Weight float64 `yaml:"weight" json:"weight"`
}

// ItemCount is a specific amount of a given item.
type ItemCount struct {
	Item  ItemID `yaml:"item" json:"item"`
	Count int    `yaml:"count" json:"count"`
}

// StructureKind selects the set of inventories a structure gets.
type StructureKind string

const (
	KindStorage  StructureKind = "storage"
	KindCrafting StructureKind = "crafting"
)

// StorageData configures a storage structure.
type StorageData struct {
	MaxSlotCount int    `yaml:"max_slot_count" json:"max_slot_count"`
	ReservedFor  ItemID `yaml:"reserved_for,omitempty" json:"reserved_for,omitempty"`
}

// ConstructionData describes how a new copy of a structure is built.
type ConstructionData struct {
	// Work required after materials arrive. Zero means no work is needed.
	Work           time.Duration `yaml:"work" json:"work"`
	Materials      []ItemCount   `yaml:"materials" json:"materials"`
	AllowedTerrain []TerrainID   `yaml:"allowed_terrain" json:"allowed_terrain"`
}

// StructureData describes a single structure variety.
type StructureData struct {
	Kind         StructureKind    `yaml:"kind" json:"kind"`
	MaxWorkers   int              `yaml:"max_workers" json:"max_workers"`
	Storage      StorageData      `yaml:"storage,omitempty" json:"storage,omitempty"`
	Recipe       RecipeID         `yaml:"recipe,omitempty" json:"recipe,omitempty"`
	Construction ConstructionData `yaml:"construction" json:"construction"`
}

// AllowedOn reports whether the structure can be built on the given terrain.
// An empty list allows any terrain.
func (s StructureData) AllowedOn(t TerrainID) bool {
	if len(s.Construction.AllowedTerrain) == 0 {
		return true
	}
	for _, allowed := range s.Construction.AllowedTerrain {
		if allowed == t {
			return true
		}
	}
	return false
}

// RecipeData describes a crafting recipe.
type RecipeData struct {
	Inputs          []ItemCount   `yaml:"inputs" json:"inputs"`
	Outputs         []ItemCount   `yaml:"outputs" json:"outputs"`
	CraftTime       time.Duration `yaml:"craft_time" json:"craft_time"`
	WorkersRequired int           `yaml:"workers_required" json:"workers_required"`
}

// Diet is what a unit variety eats and how much energy it yields.
type Diet struct {
	Item   ItemID  `yaml:"item" json:"item"`
	Energy float64 `yaml:"energy" json:"energy"`
}

// EnergyData configures a unit's energy pool.
type EnergyData struct {
	Max float64 `yaml:"max" json:"max"`
	// Energy change per second; negative values drain the pool.
	Regen float64 `yaml:"regen" json:"regen"`
}

// UnitData describes a single unit variety.
type UnitData struct {
	Diet          Diet       `yaml:"diet" json:"diet"`
	Energy        EnergyData `yaml:"energy" json:"energy"`
	MaxImpatience int        `yaml:"max_impatience" json:"max_impatience"`
}

// Manifest is the complete set of lookup tables.
type Manifest struct {
	Items      map[ItemID]ItemData           `yaml:"items"`
	Terrain    map[TerrainID]TerrainData     `yaml:"terrain"`
	Structures map[StructureID]StructureData `yaml:"structures"`
	Recipes    map[RecipeID]RecipeData       `yaml:"recipes"`
	Units      map[UnitKind]UnitData         `yaml:"units"`
}

// StackSize returns the stack size of an item, or 0 for unknown items.
func (m *Manifest) StackSize(item ItemID) int {
	return m.Items[item].StackSize
}

// WalkingSpeed returns the walking speed of a terrain type.
// Unknown terrain walks at normal speed.
func (m *Manifest) WalkingSpeed(t TerrainID) float64 {
	data, ok := m.Terrain[t]
	if !ok || data.WalkingSpeed <= 0 {
		return 1.0
	}
	return data.WalkingSpeed
}

// Structure looks up a structure variety.
func (m *Manifest) Structure(id StructureID) (StructureData, bool) {
	s, ok := m.Structures[id]
	return s, ok
}

// Recipe looks up a recipe.
func (m *Manifest) Recipe(id RecipeID) (RecipeData, bool) {
	r, ok := m.Recipes[id]
	return r, ok
}

// Unit looks up a unit variety.
func (m *Manifest) Unit(kind UnitKind) (UnitData, bool) {
	u, ok := m.Units[kind]
	return u, ok
}

// TerrainIDs returns all terrain ids in a stable order.
func (m *Manifest) TerrainIDs() []TerrainID {
	ids := make([]TerrainID, 0, len(m.Terrain))
	for id := range m.Terrain {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// StructureIDs returns all structure ids in a stable order.
func (m *Manifest) StructureIDs() []StructureID {
	ids := make([]StructureID, 0, len(m.Structures))
	for id := range m.Structures {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
