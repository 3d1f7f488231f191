package units

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/emergence/internal/entropy"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/signals"
	"github.com/talgya/emergence/internal/world"
)

// Outcome is a notable result of the Start or Finish phase.
type Outcome string

const (
	OutcomeTransferRejected Outcome = "transfer_rejected"
	OutcomeSeatUnavailable  Outcome = "seat_unavailable"
	OutcomeTargetGone       Outcome = "target_gone"
	OutcomePickedUp         Outcome = "picked_up"
	OutcomeDroppedOff       Outcome = "dropped_off"
	OutcomeDemolished       Outcome = "demolished"
	OutcomeAte              Outcome = "ate"
	OutcomeAbandoned        Outcome = "abandoned"
)

// Report records an Outcome for the journal.
type Report struct {
	Unit    ID
	Tile    world.HexCoord
	Action  UnitAction
	Outcome Outcome
	Err     error
}

func (r Report) String() string {
	if r.Err != nil {
		return fmt.Sprintf("unit %d %s: %s: %v", r.Unit, r.Action, r.Outcome, r.Err)
	}
	return fmt.Sprintf("unit %d %s: %s", r.Unit, r.Action, r.Outcome)
}

// Driver runs the per-step phases over a unit population.
type Driver struct {
	Env  Env
	Seed int64
	// Workers bounds the parallel Resolve phase; zero means GOMAXPROCS.
	Workers int
}

// StepResult summarizes one step.
type StepResult struct {
	Resolved int
	// Idled counts Idle actions substituted by cause.
	Idled   map[string]int
	Reports []Report
}

// Step runs Advance, Resolve, Start and Finish in that order. units must be
// sorted by ID; Start and Finish visit them in that order.
func (d *Driver) Step(ctx context.Context, units []*Unit, tick uint64, dt time.Duration) (StepResult, error) {
	Advance(units, dt)
	resolved, err := d.ResolveAll(ctx, units, tick)
	if err != nil {
		return StepResult{}, err
	}
	res := StepResult{Resolved: resolved, Idled: make(map[string]int)}
	res.Reports = append(res.Reports, Start(units, d.Env)...)
	for _, u := range units {
		if u.Action.cause != nil && u.Action.remaining == u.Action.duration {
			res.Idled[u.Action.cause.Error()]++
		}
	}
	res.Reports = append(res.Reports, Finish(units, d.Env)...)
	return res, nil
}

// Advance counts every unit's action timer down by dt.
func Advance(units []*Unit, dt time.Duration) {
	for _, u := range units {
		u.Action.Tick(dt)
		u.Lifecycle.Age += dt
	}
}

// NeedsAction reports whether u's current action is over and its exit
// effects have been applied.
func NeedsAction(u *Unit) bool {
	return u.Action.Finished() && u.Action.Completed()
}

// ResolveAll picks a goal and a new action for every unit whose action is
// done. The phase only reads shared state and each goroutine writes to its
// own units, so it runs in parallel. It returns the number of units resolved.
func (d *Driver) ResolveAll(ctx context.Context, units []*Unit, tick uint64) (int, error) {
	var ready []*Unit
	for _, u := range units {
		if NeedsAction(u) {
			ready = append(ready, u)
		}
	}
	if len(ready) == 0 {
		return 0, nil
	}

	workers := d.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	chunk := (len(ready) + workers - 1) / workers
	for start := 0; start < len(ready); start += chunk {
		batch := ready[start:min(start+chunk, len(ready))]
		g.Go(func() error {
			for _, u := range batch {
				if err := ctx.Err(); err != nil {
					return err
				}
				rng := entropy.ForUnit(d.Seed, tick, uint64(u.ID))
				ChooseGoal(u, d.Env, rng)
				u.Action = Resolve(u, d.Env, rng)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(ready), nil
}

// Start applies entry effects to freshly resolved actions. Work and Demolish
// claim a seat at their workplace; a refused claim turns the action into Idle.
func Start(units []*Unit, env Env) []Report {
	var reports []Report
	for _, u := range units {
		if !u.Action.justStarted {
			continue
		}
		u.Action.justStarted = false
		id, ok := u.Action.Action().Workplace()
		if !ok {
			continue
		}
		w, ok := env.Sites.Workers(id)
		if !ok {
			reports = append(reports, report(u, OutcomeTargetGone, ErrTargetGone))
			u.Action = idleBecause(ErrTargetGone)
			u.Action.justStarted = false
			continue
		}
		if err := w.AddWorker(); err != nil {
			slog.Debug("seat refused", "unit", u.ID, "workplace", id, "workers", w.Current)
			reports = append(reports, report(u, OutcomeSeatUnavailable, err))
			u.Action = idleBecause(err)
			u.Action.justStarted = false
			continue
		}
		u.Action.seated = true
	}
	return reports
}

// Finish applies exit effects to every action whose timer has run out and
// that has not been completed yet, then marks it completed.
func Finish(units []*Unit, env Env) []Report {
	var reports []Report
	for _, u := range units {
		if !u.Action.Finished() || u.Action.completed {
			continue
		}
		if r, ok := finish(u, env); ok {
			reports = append(reports, r)
		}
		u.Action.completed = true
	}
	return reports
}

func report(u *Unit, o Outcome, err error) Report {
	return Report{Unit: u.ID, Tile: u.Tile, Action: u.Action.Action(), Outcome: o, Err: err}
}

func finish(u *Unit, env Env) (Report, bool) {
	a := u.Action.Action()
	switch a.Kind {
	case ActionIdle:
		if u.Impatience.Increment() {
			u.Goal = WanderGoal()
			u.Impatience.Reset()
		}
	case ActionSpin:
		u.Facing.Rotate(a.Rotation)
	case ActionMoveForward:
		target := u.Tile.Neighbor(u.Facing.Direction)
		if !env.Space.IsPassable(target) {
			return report(u, OutcomeTargetGone, ErrTargetGone), true
		}
		u.Tile = target
	case ActionPickUp:
		return finishPickUp(u, env, a)
	case ActionDropOff:
		return finishDropOff(u, env, a)
	case ActionWork:
		release(u, env)
		if !env.Sites.StillNeedsWork(a.Target) {
			u.Goal = WanderGoal()
		}
	case ActionDemolish:
		release(u, env)
		u.Goal = WanderGoal()
		tile, ok := env.Sites.Tile(a.Target)
		if id, here := env.Space.StructureAt(tile); !ok || !here || id != a.Target {
			return report(u, OutcomeTargetGone, ErrTargetGone), true
		}
		env.Sites.DespawnStructure(tile)
		return report(u, OutcomeDemolished, nil), true
	case ActionEat:
		held, ok := u.Holding()
		u.Held = ""
		if data, known := env.Manifest.Unit(u.Kind); ok && known && held == data.Diet.Item {
			before := u.Energy.Current
			u.Energy.Add(data.Diet.Energy)
			u.Lifecycle.EnergyGained += u.Energy.Current - before
		}
		u.Goal = WanderGoal()
		return report(u, OutcomeAte, nil), true
	case ActionAbandon:
		u.Held = ""
		return report(u, OutcomeAbandoned, nil), true
	}
	return Report{}, false
}

func finishPickUp(u *Unit, env Env, a UnitAction) (Report, bool) {
	inv, ok := env.Sites.Inventories(a.Target)
	if !ok {
		u.Goal = WanderGoal()
		return report(u, OutcomeTargetGone, ErrTargetGone), true
	}
	if held, holding := u.Holding(); holding {
		u.Goal = StoreGoal(held)
		return Report{}, false
	}
	src := inv.Source()
	if src == nil {
		u.Goal = WanderGoal()
		return report(u, OutcomeTargetGone, ErrTargetGone), true
	}
	if err := src.RemoveAllOrNothing(manifest.ItemCount{Item: a.Item, Count: 1}); err != nil {
		return report(u, OutcomeTransferRejected, err), true
	}
	u.Held = a.Item
	u.Lifecycle.ItemsMoved++
	if env.Signals.Strength(signals.Pull(a.Item), u.Tile) > 0 {
		u.Goal = DeliverGoal(a.Item)
	} else {
		u.Goal = StoreGoal(a.Item)
	}
	return report(u, OutcomePickedUp, nil), true
}

func finishDropOff(u *Unit, env Env, a UnitAction) (Report, bool) {
	inv, ok := env.Sites.Inventories(a.Target)
	held, holding := u.Holding()
	if !ok || !holding {
		u.Goal = WanderGoal()
		if !ok {
			return report(u, OutcomeTargetGone, ErrTargetGone), true
		}
		return Report{}, false
	}
	if held != a.Item {
		u.Goal = StoreGoal(held)
		return Report{}, false
	}
	dst := inv.Receptacle(true)
	if dst == nil {
		u.Goal = StoreGoal(held)
		return report(u, OutcomeTargetGone, ErrTargetGone), true
	}
	if err := dst.AddAllOrNothing(manifest.ItemCount{Item: held, Count: 1}, env.Manifest); err != nil {
		u.Goal = StoreGoal(held)
		return report(u, OutcomeTransferRejected, err), true
	}
	u.Held = ""
	u.Lifecycle.ItemsMoved++
	u.Goal = WanderGoal()
	return report(u, OutcomeDroppedOff, nil), true
}

// release gives back the seat held by u's action, if any.
func release(u *Unit, env Env) {
	if !u.Action.seated {
		return
	}
	u.Action.seated = false
	id, _ := u.Action.Action().Workplace()
	if w, ok := env.Sites.Workers(id); ok {
		w.RemoveWorker()
	}
}

// Remove releases whatever u holds in the world before it is deleted.
func Remove(u *Unit, env Env) {
	release(u, env)
}

// SortByID orders a population the way the phases expect.
func SortByID(units []*Unit) {
	sort.Slice(units, func(i, j int) bool { return units[i].ID < units[j].ID })
}
