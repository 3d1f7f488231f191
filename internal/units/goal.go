package units

import (
	"fmt"

	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/signals"
)

// GoalKind enumerates what a unit is trying to accomplish.
type GoalKind uint8

const (
	GoalWander   GoalKind = iota // Explore at random
	GoalPickup                   // Fetch an item
	GoalStore                    // Put a held item anywhere that takes it
	GoalDeliver                  // Put a held item into a true input, never a warehouse
	GoalEat                      // Find and eat an item
	GoalWork                     // Work at a structure of some type
	GoalDemolish                 // Tear down a structure of some type
)

var goalNames = [...]string{"wander", "pickup", "store", "deliver", "eat", "work", "demolish"}

func (k GoalKind) String() string {
	if int(k) < len(goalNames) {
		return goalNames[k]
	}
	return fmt.Sprintf("goal(%d)", k)
}

// Goal is a tagged variant: Item is set for pickup, store, deliver and eat;
// Structure is set for work and demolish.
type Goal struct {
	Kind      GoalKind             `json:"kind"`
	Item      manifest.ItemID      `json:"item,omitempty"`
	Structure manifest.StructureID `json:"structure,omitempty"`
}

// WanderGoal is the default goal.
func WanderGoal() Goal { return Goal{Kind: GoalWander} }

func PickupGoal(item manifest.ItemID) Goal  { return Goal{Kind: GoalPickup, Item: item} }
func StoreGoal(item manifest.ItemID) Goal   { return Goal{Kind: GoalStore, Item: item} }
func DeliverGoal(item manifest.ItemID) Goal { return Goal{Kind: GoalDeliver, Item: item} }
func EatGoal(item manifest.ItemID) Goal     { return Goal{Kind: GoalEat, Item: item} }

func WorkGoal(s manifest.StructureID) Goal     { return Goal{Kind: GoalWork, Structure: s} }
func DemolishGoal(s manifest.StructureID) Goal { return Goal{Kind: GoalDemolish, Structure: s} }

func (g Goal) String() string {
	switch g.Kind {
	case GoalWander:
		return "wander"
	case GoalWork, GoalDemolish:
		return fmt.Sprintf("%s %s", g.Kind, g.Structure)
	default:
		return fmt.Sprintf("%s %s", g.Kind, g.Item)
	}
}

// Signal returns the signal a unit with this goal climbs when nothing
// useful is adjacent.
func (g Goal) Signal() (signals.Type, bool) {
	switch g.Kind {
	case GoalPickup, GoalEat:
		return signals.Push(g.Item), true
	case GoalStore, GoalDeliver:
		return signals.Pull(g.Item), true
	case GoalWork:
		return signals.Work(g.Structure), true
	case GoalDemolish:
		return signals.Demolish(g.Structure), true
	default:
		return signals.Type{}, false
	}
}

// ParseGoal builds a goal from its kind name and target, as accepted by the
// admin API. Targets must name an item or structure known to man.
func ParseGoal(kind, target string, man *manifest.Manifest) (Goal, error) {
	for i, name := range goalNames {
		if name != kind {
			continue
		}
		g := Goal{Kind: GoalKind(i)}
		if g.Kind == GoalWander {
			return g, nil
		}
		if target == "" {
			return Goal{}, fmt.Errorf("goal %q needs a target", kind)
		}
		switch g.Kind {
		case GoalWork, GoalDemolish:
			g.Structure = manifest.StructureID(target)
			if _, ok := man.Structure(g.Structure); !ok {
				return Goal{}, fmt.Errorf("goal %q: unknown structure %q", kind, target)
			}
		default:
			g.Item = manifest.ItemID(target)
			if man.StackSize(g.Item) <= 0 {
				return Goal{}, fmt.Errorf("goal %q: unknown item %q", kind, target)
			}
		}
		return g, nil
	}
	return Goal{}, fmt.Errorf("unknown goal %q", kind)
}
