// Package signals implements the stigmergic signal field units navigate by.
// Structures emit signals onto their tiles; the field spreads to neighbors and
// fades over time; units climb the gradient toward whatever their goal needs.
package signals

import (
	"fmt"
	"sort"

	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/world"
)

// Kind is the broad category of a signal.
type Kind uint8

const (
	KindPush     Kind = iota // Supply: an item is available here
	KindPull                 // Demand: an item is wanted here
	KindWork                 // A workplace of some structure type needs workers
	KindDemolish             // A structure of some type is marked for demolition
)

var kindNames = [...]string{"push", "pull", "work", "demolish"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Type identifies one layer of the field: a kind plus its item or structure target.
type Type struct {
	Kind      Kind                 `json:"kind"`
	Item      manifest.ItemID      `json:"item,omitempty"`
	Structure manifest.StructureID `json:"structure,omitempty"`
}

func (t Type) String() string {
	switch t.Kind {
	case KindPush, KindPull:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Item)
	default:
		return fmt.Sprintf("%s(%s)", t.Kind, t.Structure)
	}
}

// Push is the supply signal for item.
func Push(item manifest.ItemID) Type { return Type{Kind: KindPush, Item: item} }

// Pull is the demand signal for item.
func Pull(item manifest.ItemID) Type { return Type{Kind: KindPull, Item: item} }

// Work is the signal of a workplace of the given structure type.
func Work(s manifest.StructureID) Type { return Type{Kind: KindWork, Structure: s} }

// Demolish is the signal of a structure of the given type awaiting demolition.
func Demolish(s manifest.StructureID) Type { return Type{Kind: KindDemolish, Structure: s} }

// Neighborer enumerates the valid neighbors of a tile in a fixed order.
type Neighborer interface {
	AllNeighbors(coord world.HexCoord) []world.HexCoord
}

// Field maps (signal type, tile) to a non-negative strength.
type Field struct {
	space     Neighborer
	strengths map[Type]map[world.HexCoord]float64
}

// NewField creates an empty field over the given spatial index.
func NewField(space Neighborer) *Field {
	return &Field{
		space:     space,
		strengths: make(map[Type]map[world.HexCoord]float64),
	}
}

// Strength returns the strength of t at tile. Absent entries are zero.
func (f *Field) Strength(t Type, tile world.HexCoord) float64 {
	return f.strengths[t][tile]
}

// Add increases the strength of t at tile. Negative amounts are ignored.
func (f *Field) Add(t Type, tile world.HexCoord, amount float64) {
	if amount <= 0 {
		return
	}
	layer := f.strengths[t]
	if layer == nil {
		layer = make(map[world.HexCoord]float64)
		f.strengths[t] = layer
	}
	layer[tile] += amount
}

// Upstream returns the neighbor of tile with the strongest t signal, provided
// it is stronger than tile itself. Ties go to the first neighbor in
// enumeration order. It reports false when there is no gradient to climb.
func (f *Field) Upstream(tile world.HexCoord, t Type) (world.HexCoord, bool) {
	layer := f.strengths[t]
	if layer == nil {
		return world.HexCoord{}, false
	}
	best := tile
	bestStrength := layer[tile]
	found := false
	for _, n := range f.space.AllNeighbors(tile) {
		if s := layer[n]; s > bestStrength {
			best = n
			bestStrength = s
			found = true
		}
	}
	return best, found
}

// Reading is one signal's strength at a tile.
type Reading struct {
	Type     Type    `json:"type"`
	Strength float64 `json:"strength"`
}

// At returns every non-zero signal at tile, strongest first.
func (f *Field) At(tile world.HexCoord) []Reading {
	var out []Reading
	for t, layer := range f.strengths {
		if s := layer[tile]; s > 0 {
			out = append(out, Reading{Type: t, Strength: s})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Strength != out[j].Strength {
			return out[i].Strength > out[j].Strength
		}
		return out[i].Type.String() < out[j].Type.String()
	})
	return out
}

// Diffuse spreads a fraction rate of every tile's strength evenly to its
// valid neighbors. Strength flowing off the map edge is lost. Tiles are
// visited in coordinate order so the float sums are reproducible.
func (f *Field) Diffuse(rate float64) {
	if rate <= 0 {
		return
	}
	for t, layer := range f.strengths {
		tiles := make([]world.HexCoord, 0, len(layer))
		for tile := range layer {
			tiles = append(tiles, tile)
		}
		sort.Slice(tiles, func(i, j int) bool {
			if tiles[i].Q != tiles[j].Q {
				return tiles[i].Q < tiles[j].Q
			}
			return tiles[i].R < tiles[j].R
		})
		next := make(map[world.HexCoord]float64, len(layer))
		for _, tile := range tiles {
			s := layer[tile]
			next[tile] += s * (1 - rate)
			share := s * rate / world.NumDirections
			for _, n := range f.space.AllNeighbors(tile) {
				next[n] += share
			}
		}
		f.strengths[t] = next
	}
}

// Decay scales every strength by (1 - rate) and drops values below floor.
func (f *Field) Decay(rate, floor float64) {
	for t, layer := range f.strengths {
		for tile, s := range layer {
			s *= 1 - rate
			if s < floor {
				delete(layer, tile)
				continue
			}
			layer[tile] = s
		}
		if len(layer) == 0 {
			delete(f.strengths, t)
		}
	}
}

// Types returns every signal type with any strength, in a stable order.
func (f *Field) Types() []Type {
	out := make([]Type, 0, len(f.strengths))
	for t := range f.strengths {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
