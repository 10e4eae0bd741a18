package cell

import (
	"sync"
	"sync/atomic"
)

// Cell is a lazily initialized, lock-protected holder of a record value.
type Cell[R any] struct {
	name string
	init func() R
	once sync.Once

	mu       sync.RWMutex
	cur      *R
	poisoned atomic.Pointer[PoisonedError]
}

// New returns a cell that calls init exactly once, on first access.
func New[R any](name string, init func() R) *Cell[R] {
	return &Cell[R]{name: name, init: init}
}

// Name returns the name the cell was created with.
func (c *Cell[R]) Name() string {
	return c.name
}

func (c *Cell[R]) ensure() {
	c.once.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				c.cur = new(R)
				c.poison(r)
				panic(r)
			}
		}()
		v := c.init()
		c.cur = &v
	})
}

func (c *Cell[R]) poison(cause any) {
	c.poisoned.CompareAndSwap(nil, &PoisonedError{Cell: c.name, Cause: cause})
}

func (c *Cell[R]) check() error {
	if p := c.poisoned.Load(); p != nil {
		return p
	}
	return nil
}

// Load returns the current snapshot. The snapshot is shared with every other
// reader and must be treated as read-only.
func (c *Cell[R]) Load() (*R, error) {
	c.ensure()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.cur, nil
}

// View calls fn with the current snapshot while holding the shared lock.
// fn must not call Store or Modify on the same cell.
func (c *Cell[R]) View(fn func(r *R)) error {
	c.ensure()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.check(); err != nil {
		return err
	}
	fn(c.cur)
	return nil
}

// Store publishes v as the new snapshot.
func (c *Cell[R]) Store(v *R) error {
	c.ensure()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	c.cur = v
	return nil
}

// Modify copies the current record, applies fn to the copy and publishes it,
// all under the exclusive lock. The copy is shallow. If fn panics the cell is
// poisoned, the previous snapshot stays published and the panic propagates.
func (c *Cell[R]) Modify(fn func(r *R)) error {
	c.ensure()
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.check(); err != nil {
		return err
	}
	next := *c.cur
	defer func() {
		if r := recover(); r != nil {
			c.poison(r)
			panic(r)
		}
	}()
	fn(&next)
	c.cur = &next
	return nil
}

// Poisoned reports whether a panic poisoned the cell.
func (c *Cell[R]) Poisoned() bool {
	return c.poisoned.Load() != nil
}

// Reset clears the poisoned state. The published snapshot is left as is.
func (c *Cell[R]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.poisoned.Store(nil)
}
