package units

import (
	"github.com/talgya/emergence/internal/entropy"
	"github.com/talgya/emergence/internal/signals"
)

// HungerThreshold is the energy fraction below which a unit goes looking for food.
const HungerThreshold = 0.5

// ChooseGoal is the priority system: it runs before Resolve and may replace
// the goal of a unit that has no pressing business. Hungry units look for
// food; units with full hands and nothing to do store what they carry;
// wandering units take up the strongest nearby signal, drawn in proportion
// to strength.
func ChooseGoal(u *Unit, env Env, rng entropy.Source) {
	data, ok := env.Manifest.Unit(u.Kind)
	if ok && data.Diet.Item != "" && u.Energy.Fraction() < HungerThreshold && u.Goal.Kind != GoalEat {
		if held, holding := u.Holding(); !holding || held == data.Diet.Item {
			u.Goal = EatGoal(data.Diet.Item)
			return
		}
	}
	if u.Goal.Kind != GoalWander {
		return
	}
	if held, ok := u.Holding(); ok {
		u.Goal = StoreGoal(held)
		return
	}
	readings := env.Signals.At(u.Tile)
	if len(readings) == 0 {
		return
	}
	u.Goal = goalFor(weighted(readings, rng).Type)
}

func weighted(readings []signals.Reading, rng entropy.Source) signals.Reading {
	var total float64
	for _, r := range readings {
		total += r.Strength
	}
	// Resolution of a thousandth of the total strength is plenty.
	draw := float64(rng.Intn(1000)) / 1000 * total
	for _, r := range readings {
		if draw < r.Strength {
			return r
		}
		draw -= r.Strength
	}
	return readings[len(readings)-1]
}

func goalFor(t signals.Type) Goal {
	switch t.Kind {
	case signals.KindWork:
		return WorkGoal(t.Structure)
	case signals.KindDemolish:
		return DemolishGoal(t.Structure)
	default:
		// Supply and demand both mean an item needs moving.
		return PickupGoal(t.Item)
	}
}
