// Package inventory implements item containers with all-or-nothing transfers.
//
// Two shapes exist. Fixed inventories have one slot per item with a set
// capacity; structures use them for recipe inputs and outputs and ghosts use
// them for reserved construction materials. Storage inventories have a number
// of generic slots, each holding up to one stack of any item (or of a single
// reserved item).
package inventory

import (
	"errors"
	"fmt"

	"github.com/talgya/emergence/internal/manifest"
)

// ErrTransferRejected is wrapped by every failed add or remove.
var ErrTransferRejected = errors.New("transfer rejected")

// AddError reports an add that did not fit.
type AddError struct {
	Item      manifest.ItemID
	Requested int
	Space     int
}

func (e *AddError) Error() string {
	return fmt.Sprintf("cannot add %d %s: space for %d", e.Requested, e.Item, e.Space)
}

func (e *AddError) Unwrap() error { return ErrTransferRejected }

// RemoveError reports a remove that asked for more than was present.
type RemoveError struct {
	Item      manifest.ItemID
	Requested int
	Available int
}

func (e *RemoveError) Error() string {
	return fmt.Sprintf("cannot remove %d %s: %d available", e.Requested, e.Item, e.Available)
}

func (e *RemoveError) Unwrap() error { return ErrTransferRejected }

// StackSizer reports how many of an item fit in one storage slot.
type StackSizer interface {
	StackSize(item manifest.ItemID) int
}

// Slot holds some number of a single item.
type Slot struct {
	Item  manifest.ItemID `json:"item"`
	Count int             `json:"count"`
	Max   int             `json:"max"`
}

func (s Slot) space() int { return s.Max - s.Count }

// Inventory is an item container.
type Inventory struct {
	slots       []Slot
	maxSlots    int
	reservedFor manifest.ItemID
	fixed       bool
}

// NewFixed creates an inventory with one reserved slot per entry of capacities.
func NewFixed(capacities []manifest.ItemCount) *Inventory {
	inv := &Inventory{fixed: true, maxSlots: len(capacities)}
	for _, c := range capacities {
		inv.slots = append(inv.slots, Slot{Item: c.Item, Max: c.Count})
	}
	return inv
}

// NewStorage creates a generic inventory with maxSlots slots. If reservedFor is
// set, only that item is accepted.
func NewStorage(maxSlots int, reservedFor manifest.ItemID) *Inventory {
	return &Inventory{maxSlots: maxSlots, reservedFor: reservedFor}
}

// Slots returns a copy of the inventory's slots.
func (inv *Inventory) Slots() []Slot {
	out := make([]Slot, len(inv.slots))
	copy(out, inv.slots)
	return out
}

// Clone returns a deep copy.
func (inv *Inventory) Clone() *Inventory {
	c := *inv
	c.slots = inv.Slots()
	return &c
}

// ItemCount returns how many of item the inventory holds.
func (inv *Inventory) ItemCount(item manifest.ItemID) int {
	n := 0
	for _, s := range inv.slots {
		if s.Item == item {
			n += s.Count
		}
	}
	return n
}

// Total returns the number of items held across all slots.
func (inv *Inventory) Total() int {
	n := 0
	for _, s := range inv.slots {
		n += s.Count
	}
	return n
}

// IsEmpty reports whether no items are held.
func (inv *Inventory) IsEmpty() bool {
	return inv.Total() == 0
}

// Accepts reports whether the inventory could ever hold item.
func (inv *Inventory) Accepts(item manifest.ItemID) bool {
	if inv.fixed {
		for _, s := range inv.slots {
			if s.Item == item {
				return true
			}
		}
		return false
	}
	return inv.reservedFor == "" || inv.reservedFor == item
}

// RemainingReservedSpaceFor returns the free capacity of slots reserved for item.
// Storage inventories reserve no space ahead of time and report 0.
func (inv *Inventory) RemainingReservedSpaceFor(item manifest.ItemID) int {
	if !inv.fixed {
		return 0
	}
	n := 0
	for _, s := range inv.slots {
		if s.Item == item {
			n += s.space()
		}
	}
	return n
}

// RemainingSpaceFor returns how many more of item could be added.
func (inv *Inventory) RemainingSpaceFor(item manifest.ItemID, stacks StackSizer) int {
	if inv.fixed {
		return inv.RemainingReservedSpaceFor(item)
	}
	if !inv.Accepts(item) {
		return 0
	}
	stack := stacks.StackSize(item)
	if stack <= 0 {
		return 0
	}
	n := 0
	for _, s := range inv.slots {
		if s.Item == item {
			n += s.space()
		}
	}
	free := inv.maxSlots - len(inv.slots)
	if free > 0 {
		n += free * stack
	}
	return n
}

// Full reports whether every slot is at capacity.
func (inv *Inventory) Full() bool {
	if !inv.fixed && len(inv.slots) < inv.maxSlots {
		return false
	}
	for _, s := range inv.slots {
		if s.space() > 0 {
			return false
		}
	}
	return true
}

// AddAllOrNothing adds the full count or nothing at all.
func (inv *Inventory) AddAllOrNothing(ic manifest.ItemCount, stacks StackSizer) error {
	if ic.Count < 0 {
		return &AddError{Item: ic.Item, Requested: ic.Count}
	}
	space := inv.RemainingSpaceFor(ic.Item, stacks)
	if ic.Count > space {
		return &AddError{Item: ic.Item, Requested: ic.Count, Space: space}
	}

	remaining := ic.Count
	for i := range inv.slots {
		if remaining == 0 {
			break
		}
		s := &inv.slots[i]
		if s.Item != ic.Item {
			continue
		}
		n := min(remaining, s.space())
		s.Count += n
		remaining -= n
	}
	for remaining > 0 {
		// Only storage inventories reach here; space was checked above.
		stack := stacks.StackSize(ic.Item)
		n := min(remaining, stack)
		inv.slots = append(inv.slots, Slot{Item: ic.Item, Count: n, Max: stack})
		remaining -= n
	}
	return nil
}

// RemoveAllOrNothing removes the full count or nothing at all.
func (inv *Inventory) RemoveAllOrNothing(ic manifest.ItemCount) error {
	available := inv.ItemCount(ic.Item)
	if ic.Count < 0 || ic.Count > available {
		return &RemoveError{Item: ic.Item, Requested: ic.Count, Available: available}
	}

	remaining := ic.Count
	// Drain from the back so partially filled trailing stacks empty first.
	for i := len(inv.slots) - 1; i >= 0 && remaining > 0; i-- {
		s := &inv.slots[i]
		if s.Item != ic.Item {
			continue
		}
		n := min(remaining, s.Count)
		s.Count -= n
		remaining -= n
	}
	if !inv.fixed {
		inv.compact()
	}
	return nil
}

// compact drops empty storage slots so they can hold other items.
func (inv *Inventory) compact() {
	kept := inv.slots[:0]
	for _, s := range inv.slots {
		if s.Count > 0 {
			kept = append(kept, s)
		}
	}
	inv.slots = kept
}
