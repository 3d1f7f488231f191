// Package world provides the hex grid, terrain, and the spatial index units navigate.
// Uses axial coordinates (q, r) for the hex grid.
package world

import "fmt"

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

func (h HexCoord) String() string {
	return fmt.Sprintf("(%d,%d)", h.Q, h.R)
}

// Direction is one of the six hex headings, indexing HexNeighborDirections.
// Increasing values turn counter-clockwise.
type Direction uint8

const (
	DirEast Direction = iota
	DirNorthEast
	DirNorthWest
	DirWest
	DirSouthWest
	DirSouthEast
)

// NumDirections is the number of hex headings.
const NumDirections = 6

// HexNeighborDirections defines the six neighbor offsets in axial coordinates.
// This order is the fixed enumeration order used everywhere neighbors are scanned.
var HexNeighborDirections = [NumDirections]HexCoord{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

var directionNames = [NumDirections]string{"E", "NE", "NW", "W", "SW", "SE"}

func (d Direction) String() string {
	if int(d) >= NumDirections {
		return fmt.Sprintf("Direction(%d)", d)
	}
	return directionNames[d]
}

// Left returns the heading 60 degrees counter-clockwise.
func (d Direction) Left() Direction {
	return (d + 1) % NumDirections
}

// Right returns the heading 60 degrees clockwise.
func (d Direction) Right() Direction {
	return (d + NumDirections - 1) % NumDirections
}

// RotationDirection is the sense of a single 60 degree turn.
type RotationDirection uint8

const (
	RotateLeft RotationDirection = iota
	RotateRight
)

func (r RotationDirection) String() string {
	if r == RotateRight {
		return "right"
	}
	return "left"
}

// Facing is the heading a unit is currently looking toward.
type Facing struct {
	Direction Direction `json:"direction"`
}

// Rotate turns the facing by 60 degrees in the given sense.
func (f *Facing) Rotate(r RotationDirection) {
	if r == RotateRight {
		f.Direction = f.Direction.Right()
		return
	}
	f.Direction = f.Direction.Left()
}

// Neighbor returns the adjacent coordinate in the given direction.
func (h HexCoord) Neighbor(dir Direction) HexCoord {
	off := HexNeighborDirections[dir%NumDirections]
	return HexCoord{Q: h.Q + off.Q, R: h.R + off.R}
}

// Neighbors returns the six adjacent hex coordinates.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// DirectionTo returns the heading that best points from h toward other.
// For adjacent tiles this is exact. For distant tiles the first direction
// (in enumeration order) whose neighbor is closest to other wins.
func (h HexCoord) DirectionTo(other HexCoord) Direction {
	best := DirEast
	bestDist := -1
	for i := range HexNeighborDirections {
		d := Distance(h.Neighbor(Direction(i)), other)
		if bestDist < 0 || d < bestDist {
			best = Direction(i)
			bestDist = d
		}
	}
	return best
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	// Max of the three absolute differences in cube coordinates.
	return max(dq, dr, ds)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
