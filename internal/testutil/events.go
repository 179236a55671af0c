// Package testutil holds helpers shared by the runtime's package tests.
package testutil

import (
	"fmt"
	"sync"
)

// Events is an ordered, thread-safe log of test events such as effect runs
// and cleanups.
//
// The zero value is ready to use.
type Events struct {
	mu    sync.Mutex
	items []string
}

// Add appends an event.
func (e *Events) Add(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, event)
}

// Addf appends a formatted event.
func (e *Events) Addf(format string, args ...any) {
	e.Add(fmt.Sprintf(format, args...))
}

// All returns a copy of the events recorded so far. It never returns nil.
func (e *Events) All() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.items))
	copy(out, e.items)
	return out
}

// Len returns the number of recorded events.
func (e *Events) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

// Reset drops every recorded event.
func (e *Events) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = nil
}
