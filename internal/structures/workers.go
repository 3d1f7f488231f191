package structures

import (
	"errors"
	"fmt"
)

// ErrSeatUnavailable is returned when a workplace has no free seat.
var ErrSeatUnavailable = errors.New("seat unavailable")

// WorkersPresent counts the units currently working at a structure.
// Invariant: 0 <= Current <= Max.
type WorkersPresent struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// NewWorkersPresent creates an empty workplace with max seats.
func NewWorkersPresent(max int) *WorkersPresent {
	if max < 0 {
		max = 0
	}
	return &WorkersPresent{Max: max}
}

// AddWorker claims a seat. It fails without mutating when the workplace is full.
func (w *WorkersPresent) AddWorker() error {
	if w.Current >= w.Max {
		return fmt.Errorf("%w: %d/%d workers", ErrSeatUnavailable, w.Current, w.Max)
	}
	w.Current++
	return nil
}

// RemoveWorker releases a seat. It saturates at zero, since a unit may vanish
// mid-action without a matching add having been observed.
func (w *WorkersPresent) RemoveWorker() {
	if w.Current > 0 {
		w.Current--
	}
}

// NeedsMore reports whether there is a free seat.
func (w *WorkersPresent) NeedsMore() bool {
	return w.Current < w.Max
}
