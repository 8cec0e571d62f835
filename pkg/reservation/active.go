package reservation

import "sync/atomic"

// ActiveCell holds the currently active reservation, if any, as an
// atomically swapped pointer so dispatch can read it without blocking on
// the engine's tick transaction.
type ActiveCell struct {
	v atomic.Pointer[Active]
}

// NewActiveCell creates an empty cell.
func NewActiveCell() *ActiveCell {
	return &ActiveCell{}
}

// Get returns the active reservation, or (Active{}, false) if none.
func (c *ActiveCell) Get() (Active, bool) {
	p := c.v.Load()
	if p == nil {
		return Active{}, false
	}
	return *p, true
}

// Set installs a, or clears the cell when a is nil.
func (c *ActiveCell) Set(a *Active) {
	c.v.Store(a)
}
