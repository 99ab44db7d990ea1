// Package observable provides a minimal observable state cell: a value
// with Get/Set and synchronous, in-order subscriber notification. It is
// the publish mechanism behind session changes, connection state, and
// the unread counter.
package observable

import "sync"

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Cell holds a value and notifies subscribers on every Set. Notification
// runs synchronously on the caller's goroutine, in subscription order,
// so an observer has always seen a published value before Set returns.
type Cell[T any] struct {
	mu     sync.Mutex
	value  T
	subs   []subscriber[T]
	nextID int
}

// NewCell creates a cell holding the initial value.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores the value and notifies all subscribers with it.
func (c *Cell[T]) Set(value T) {
	c.mu.Lock()
	c.value = value
	subs := make([]subscriber[T], len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	for _, s := range subs {
		s.fn(value)
	}
}

// Subscribe registers fn for future Set calls and returns a function
// that removes the subscription. Unsubscribing twice is a no-op.
func (c *Cell[T]) Subscribe(fn func(T)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs = append(c.subs, subscriber[T]{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}
