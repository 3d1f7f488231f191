package units

import (
	"fmt"
	"time"

	"github.com/talgya/emergence/internal/entropy"
	"github.com/talgya/emergence/internal/manifest"
	"github.com/talgya/emergence/internal/world"
)

// Action durations.
const (
	IdleDuration        = 100 * time.Millisecond
	SpinDuration        = 100 * time.Millisecond
	AbandonDuration     = 100 * time.Millisecond
	DropOffDuration     = 200 * time.Millisecond
	PickUpDuration      = 500 * time.Millisecond
	EatDuration         = 500 * time.Millisecond
	WorkDuration        = 1 * time.Second
	DemolishDuration    = 1 * time.Second
	BaseWalkingDuration = 500 * time.Millisecond
)

// ActionKind enumerates the primitive things a unit can do.
type ActionKind uint8

const (
	ActionIdle ActionKind = iota
	ActionPickUp
	ActionDropOff
	ActionWork
	ActionDemolish
	ActionSpin
	ActionMoveForward
	ActionEat
	ActionAbandon
)

var actionNames = [...]string{
	"idle", "pick_up", "drop_off", "work", "demolish", "spin", "move_forward", "eat", "abandon",
}

func (k ActionKind) String() string {
	if int(k) < len(actionNames) {
		return actionNames[k]
	}
	return fmt.Sprintf("action(%d)", k)
}

// UnitAction is a tagged variant. Item is set for PickUp and DropOff, Target
// for PickUp (source), DropOff (receptacle), Work (workplace) and Demolish,
// and Rotation for Spin.
type UnitAction struct {
	Kind     ActionKind
	Item     manifest.ItemID
	Target   world.EntityID
	Rotation world.RotationDirection
}

// Workplace returns the entity whose seat this action occupies.
func (a UnitAction) Workplace() (world.EntityID, bool) {
	switch a.Kind {
	case ActionWork, ActionDemolish:
		return a.Target, true
	}
	return world.NoEntity, false
}

func (a UnitAction) String() string {
	switch a.Kind {
	case ActionPickUp:
		return fmt.Sprintf("picking up %s from #%d", a.Item, a.Target)
	case ActionDropOff:
		return fmt.Sprintf("dropping off %s at #%d", a.Item, a.Target)
	case ActionWork:
		return fmt.Sprintf("working at #%d", a.Target)
	case ActionDemolish:
		return fmt.Sprintf("demolishing #%d", a.Target)
	case ActionSpin:
		return fmt.Sprintf("spinning %s", a.Rotation)
	case ActionMoveForward:
		return "moving forward"
	case ActionEat:
		return "eating"
	case ActionAbandon:
		return "abandoning held item"
	default:
		return "idling"
	}
}

// CurrentAction is a timed action. The Start phase consumes justStarted;
// the Finish phase sets completed once exit effects have been applied.
type CurrentAction struct {
	action      UnitAction
	duration    time.Duration
	remaining   time.Duration
	justStarted bool
	completed   bool
	seated      bool
	cause       error
}

func newAction(a UnitAction, d time.Duration) CurrentAction {
	return CurrentAction{action: a, duration: d, remaining: d, justStarted: true}
}

// Action returns the action being performed.
func (c CurrentAction) Action() UnitAction { return c.action }

// Duration is the full length of the action.
func (c CurrentAction) Duration() time.Duration { return c.duration }

// Remaining is the time left before the action finishes.
func (c CurrentAction) Remaining() time.Duration { return c.remaining }

// Finished reports whether the timer has run out. Once true it stays true.
func (c CurrentAction) Finished() bool { return c.remaining <= 0 }

// JustStarted reports whether entry effects are still pending.
func (c CurrentAction) JustStarted() bool { return c.justStarted }

// Completed reports whether exit effects have been applied.
func (c CurrentAction) Completed() bool { return c.completed }

// Cause explains why an Idle was substituted for a planned action, if it was.
func (c CurrentAction) Cause() error { return c.cause }

// Tick counts the timer down by dt, stopping at zero.
func (c *CurrentAction) Tick(dt time.Duration) {
	c.remaining -= dt
	if c.remaining < 0 {
		c.remaining = 0
	}
}

// Idle waits a short while.
func Idle() CurrentAction {
	return newAction(UnitAction{Kind: ActionIdle}, IdleDuration)
}

func idleBecause(err error) CurrentAction {
	c := Idle()
	c.cause = err
	return c
}

// Spin turns the unit 60 degrees.
func Spin(r world.RotationDirection) CurrentAction {
	return newAction(UnitAction{Kind: ActionSpin, Rotation: r}, SpinDuration)
}

// RandomSpin spins left or right with equal probability.
func RandomSpin(rng entropy.Source) CurrentAction {
	if entropy.Coin(rng) {
		return Spin(world.RotateLeft)
	}
	return Spin(world.RotateRight)
}

// SpinTowards makes a single turn toward required, whichever way is shorter.
// Left is checked first each step, so it wins ties.
func SpinTowards(facing world.Facing, required world.Direction) CurrentAction {
	left, right := facing.Direction, facing.Direction
	for i := 0; i < world.NumDirections; i++ {
		left = left.Left()
		if left == required {
			return Spin(world.RotateLeft)
		}
		right = right.Right()
		if right == required {
			return Spin(world.RotateRight)
		}
	}
	return Spin(world.RotateLeft)
}

// MoveForward steps onto the faced tile. Its duration depends on the terrain
// the unit is leaving; if the destination is impassable it idles instead.
func MoveForward(tile world.HexCoord, facing world.Facing, env Env) CurrentAction {
	target := tile.Neighbor(facing.Direction)
	if !env.Space.IsPassable(target) {
		return idleBecause(ErrTargetGone)
	}
	speed := 1.0
	if terrain, ok := env.Space.TerrainAt(tile); ok {
		speed = env.Manifest.WalkingSpeed(terrain)
	}
	return newAction(UnitAction{Kind: ActionMoveForward}, time.Duration(float64(BaseWalkingDuration)/speed))
}

// MoveOrSpin moves toward target when already facing it, and turns toward it otherwise.
func MoveOrSpin(tile, target world.HexCoord, facing world.Facing, env Env) CurrentAction {
	required := tile.DirectionTo(target)
	if required == facing.Direction {
		return MoveForward(tile, facing, env)
	}
	return SpinTowards(facing, required)
}

// PickUp takes one item from source.
func PickUp(item manifest.ItemID, source world.EntityID) CurrentAction {
	return newAction(UnitAction{Kind: ActionPickUp, Item: item, Target: source}, PickUpDuration)
}

// DropOff puts one item into target.
func DropOff(item manifest.ItemID, target world.EntityID) CurrentAction {
	return newAction(UnitAction{Kind: ActionDropOff, Item: item, Target: target}, DropOffDuration)
}

// Work occupies a seat at workplace.
func Work(workplace world.EntityID) CurrentAction {
	return newAction(UnitAction{Kind: ActionWork, Target: workplace}, WorkDuration)
}

// Demolish occupies a seat at a structure marked for demolition.
func Demolish(target world.EntityID) CurrentAction {
	return newAction(UnitAction{Kind: ActionDemolish, Target: target}, DemolishDuration)
}

// Eat consumes the held item.
func Eat() CurrentAction {
	return newAction(UnitAction{Kind: ActionEat}, EatDuration)
}

// Abandon discards the held item.
func Abandon() CurrentAction {
	return newAction(UnitAction{Kind: ActionAbandon}, AbandonDuration)
}
