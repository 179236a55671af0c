package ident

import "sync/atomic"

// Clock is a monotonic logical clock.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Uint64
}

// NewClock creates a new clock starting at 0.
// The first call to Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start.
func NewClockAt(start uint64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() uint64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() uint64 {
	return c.seq.Load()
}

// Reset moves the clock back to 0. Only test harnesses should call this.
func (c *Clock) Reset() {
	c.seq.Store(0)
}
