package world

import (
	"fmt"

	"github.com/talgya/emergence/internal/manifest"
)

// EntityID identifies a structure or ghost occupying tiles.
type EntityID uint64

// NoEntity is the zero EntityID, never assigned to a live entity.
const NoEntity EntityID = 0

// Tile represents a single cell of the world map.
type Tile struct {
	Coord   HexCoord           `json:"coord"`
	Terrain manifest.TerrainID `json:"terrain"`
	// Height is used by generation and rendering only; 0.0 (low) to 1.0 (high).
	Height float64 `json:"height"`
}

// Map holds the hex grid and its occupancy index.
// It is the spatial index consumed by units: validity, passability,
// neighbor enumeration and occupant lookup.
type Map struct {
	Tiles  map[HexCoord]*Tile `json:"-"`
	Radius int                `json:"radius"`

	structures map[HexCoord]EntityID
	ghosts     map[HexCoord]EntityID
}

// NewMap creates an empty map with the given radius.
// A hex grid of radius R contains hexes where max(|q|, |r|, |s|) <= R.
func NewMap(radius int) *Map {
	return &Map{
		Tiles:      make(map[HexCoord]*Tile),
		Radius:     radius,
		structures: make(map[HexCoord]EntityID),
		ghosts:     make(map[HexCoord]EntityID),
	}
}

// Get returns the tile at the given coordinate, or nil if absent.
func (m *Map) Get(coord HexCoord) *Tile {
	return m.Tiles[coord]
}

// Set places a tile at the given coordinate.
func (m *Map) Set(tile *Tile) {
	m.Tiles[tile.Coord] = tile
}

// InBounds returns true if the coordinate is within the map radius.
func (m *Map) InBounds(coord HexCoord) bool {
	return Distance(coord, HexCoord{}) <= m.Radius
}

// IsValid reports whether the coordinate is a tile of this map.
func (m *Map) IsValid(coord HexCoord) bool {
	return m.InBounds(coord) && m.Tiles[coord] != nil
}

// IsPassable reports whether a unit may step onto the coordinate.
// Structures block movement; ghosts do not.
func (m *Map) IsPassable(coord HexCoord) bool {
	if !m.IsValid(coord) {
		return false
	}
	_, blocked := m.structures[coord]
	return !blocked
}

// AllNeighbors returns the valid neighbors of coord in the fixed direction order.
func (m *Map) AllNeighbors(coord HexCoord) []HexCoord {
	out := make([]HexCoord, 0, NumDirections)
	for _, n := range coord.Neighbors() {
		if m.IsValid(n) {
			out = append(out, n)
		}
	}
	return out
}

// TerrainAt returns the terrain type of a tile.
func (m *Map) TerrainAt(coord HexCoord) (manifest.TerrainID, bool) {
	t := m.Tiles[coord]
	if t == nil {
		return "", false
	}
	return t.Terrain, true
}

// StructureAt returns the structure occupying a tile, if any.
func (m *Map) StructureAt(coord HexCoord) (EntityID, bool) {
	id, ok := m.structures[coord]
	return id, ok
}

// GhostAt returns the ghost occupying a tile, if any.
func (m *Map) GhostAt(coord HexCoord) (EntityID, bool) {
	id, ok := m.ghosts[coord]
	return id, ok
}

// AddStructure records a structure on its footprint. It fails if any tile is
// invalid or already holds a structure.
func (m *Map) AddStructure(id EntityID, footprint []HexCoord) error {
	for _, c := range footprint {
		if !m.IsValid(c) {
			return fmt.Errorf("tile %s is not on the map", c)
		}
		if other, ok := m.structures[c]; ok {
			return fmt.Errorf("tile %s already holds structure %d", c, other)
		}
	}
	for _, c := range footprint {
		m.structures[c] = id
	}
	return nil
}

// RemoveStructure clears every tile that references the structure.
func (m *Map) RemoveStructure(id EntityID) {
	for c, occupant := range m.structures {
		if occupant == id {
			delete(m.structures, c)
		}
	}
}

// AddGhost records a ghost on a tile, returning any ghost it replaced.
func (m *Map) AddGhost(id EntityID, coord HexCoord) (replaced EntityID, err error) {
	if !m.IsValid(coord) {
		return NoEntity, fmt.Errorf("tile %s is not on the map", coord)
	}
	replaced = m.ghosts[coord]
	m.ghosts[coord] = id
	return replaced, nil
}

// RemoveGhost clears the ghost at a tile, returning it.
func (m *Map) RemoveGhost(coord HexCoord) (EntityID, bool) {
	id, ok := m.ghosts[coord]
	if ok {
		delete(m.ghosts, coord)
	}
	return id, ok
}

// HexCount returns the total number of tiles in the map.
func (m *Map) HexCount() int {
	return len(m.Tiles)
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(radius=%d, hexes=%d, structures=%d, ghosts=%d)",
		m.Radius, m.HexCount(), len(m.structures), len(m.ghosts))
}
