package units

import (
	"github.com/talgya/emergence/internal/entropy"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/world"
)

// Resolve chooses the next action for u from its goal and surroundings. It
// only reads env. Randomness is drawn from rng alone, so a seeded source
// makes the result reproducible.
func Resolve(u *Unit, env Env, rng entropy.Source) CurrentAction {
	switch u.Goal.Kind {
	case GoalPickup:
		if held, ok := u.Holding(); ok && held != u.Goal.Item {
			return Abandon()
		}
		return fetch(u, env, rng)
	case GoalEat:
		if held, ok := u.Holding(); ok {
			if held == u.Goal.Item {
				return Eat()
			}
			return Abandon()
		}
		return fetch(u, env, rng)
	case GoalStore:
		if held, ok := u.Holding(); ok && held != u.Goal.Item {
			return Abandon()
		}
		return place(u, env, rng, true)
	case GoalDeliver:
		if held, ok := u.Holding(); ok && held != u.Goal.Item {
			return Abandon()
		}
		return place(u, env, rng, false)
	case GoalWork:
		return seek(u, env, rng, func(tile world.HexCoord) (world.EntityID, bool) {
			return env.Sites.NeedsWork(tile, u.Goal.Structure)
		}, Work)
	case GoalDemolish:
		return seek(u, env, rng, func(tile world.HexCoord) (world.EntityID, bool) {
			return env.Sites.NeedsDemolition(tile, u.Goal.Structure)
		}, Demolish)
	default:
		if u.Action.Action().Kind == ActionSpin {
			return MoveForward(u.Tile, u.Facing, env)
		}
		return RandomSpin(rng)
	}
}

type candidate struct {
	id   world.EntityID
	tile world.HexCoord
}

func pick(cands []candidate, rng entropy.Source) candidate {
	if len(cands) == 1 {
		return cands[0]
	}
	return cands[rng.Intn(len(cands))]
}

// fetch resolves Pickup and Eat for a unit with free hands.
func fetch(u *Unit, env Env, rng entropy.Source) CurrentAction {
	item := u.Goal.Item
	var cands []candidate
	for _, n := range env.Space.AllNeighbors(u.Tile) {
		id, ok := env.Space.StructureAt(n)
		if !ok {
			continue
		}
		inv, ok := env.Sites.Inventories(id)
		if !ok {
			continue
		}
		if src := inv.Source(); src != nil && src.ItemCount(item) > 0 {
			cands = append(cands, candidate{id: id, tile: n})
		}
	}
	if len(cands) > 0 {
		c := pick(cands, rng)
		return faceThen(u, c.tile, PickUp(item, c.id))
	}
	return climb(u, env)
}

// place resolves Store and Deliver. Generic storage only counts when
// allowStorage is set.
func place(u *Unit, env Env, rng entropy.Source, allowStorage bool) CurrentAction {
	item := u.Goal.Item
	var cands []candidate
	for _, n := range env.Space.AllNeighbors(u.Tile) {
		if id, ok := env.Space.GhostAt(n); ok {
			if inv, ok := env.Sites.Inventories(id); ok && inv.Input != nil &&
				inv.Input.RemainingReservedSpaceFor(item) > 0 {
				cands = append(cands, candidate{id: id, tile: n})
			}
		}
		if id, ok := env.Space.StructureAt(n); ok {
			if hasRoom(env, id, item, allowStorage) {
				cands = append(cands, candidate{id: id, tile: n})
			}
		}
	}
	if len(cands) > 0 {
		c := pick(cands, rng)
		return faceThen(u, c.tile, DropOff(item, c.id))
	}
	return climb(u, env)
}

func hasRoom(env Env, id world.EntityID, item manifest.ItemID, allowStorage bool) bool {
	inv, ok := env.Sites.Inventories(id)
	if !ok || inv.MarkedForDemolition {
		return false
	}
	if inv.Input != nil {
		return inv.Input.RemainingReservedSpaceFor(item) > 0
	}
	if allowStorage && inv.Storage != nil {
		return inv.Storage.RemainingSpaceFor(item, env.Manifest) > 0
	}
	return false
}

// seek resolves Work and Demolish: the tile ahead, then the unit's own
// tile, then any neighbor, then the gradient.
func seek(u *Unit, env Env, rng entropy.Source, find func(world.HexCoord) (world.EntityID, bool),
	act func(world.EntityID) CurrentAction) CurrentAction {
	ahead := u.Tile.Neighbor(u.Facing.Direction)
	if env.Space.IsValid(ahead) {
		if id, ok := find(ahead); ok {
			return act(id)
		}
	}
	if id, ok := find(u.Tile); ok {
		return act(id)
	}
	var cands []candidate
	for _, n := range env.Space.AllNeighbors(u.Tile) {
		if id, ok := find(n); ok {
			cands = append(cands, candidate{id: id, tile: n})
		}
	}
	if len(cands) > 0 {
		c := pick(cands, rng)
		return MoveOrSpin(u.Tile, c.tile, u.Facing, env)
	}
	return climb(u, env)
}

// faceThen returns action if the unit already faces target, and a turn toward it otherwise.
func faceThen(u *Unit, target world.HexCoord, action CurrentAction) CurrentAction {
	required := u.Tile.DirectionTo(target)
	if required == u.Facing.Direction {
		return action
	}
	return SpinTowards(u.Facing, required)
}

// climb follows the goal's signal gradient, or idles when there is none.
func climb(u *Unit, env Env) CurrentAction {
	t, ok := u.Goal.Signal()
	if !ok {
		return idleBecause(ErrNoPathSignal)
	}
	up, ok := env.Signals.Upstream(u.Tile, t)
	if !ok {
		return idleBecause(ErrNoPathSignal)
	}
	return MoveOrSpin(u.Tile, up, u.Facing, env)
}
