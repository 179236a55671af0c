package ident

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// ErrDuplicateID is returned when an id is registered twice.
var ErrDuplicateID = errors.New("duplicate id")

// Registry hands out unique ids and remembers every id it has seen.
//
// Ids derived from the same hint are disambiguated with a per-hint counter:
// the first request keeps the bare hint, later ones get 1, 2, ... appended.
//
// Thread-safety: Registry is safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	seen     map[string]bool
	counters map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		seen:     make(map[string]bool),
		counters: make(map[string]int),
	}
}

// Unique returns an id built by format and registers it. The first request
// for a given base id (format(hint)) keeps the bare hint; later requests
// append a counter to the hint before formatting (counter, counter1, ...).
func (r *Registry) Unique(hint string, format func(hint string) string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	base := format(hint)
	for {
		n := r.counters[base]
		r.counters[base] = n + 1

		candidate := hint
		if n > 0 {
			candidate = hint + strconv.Itoa(n)
		}
		id := format(candidate)
		if !r.seen[id] {
			r.seen[id] = true
			return id
		}
	}
}

// Register records an explicit id. Returns ErrDuplicateID if the id was
// already handed out or registered.
func (r *Registry) Register(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seen[id] {
		return fmt.Errorf("register %q: %w", id, ErrDuplicateID)
	}
	r.seen[id] = true
	return nil
}

// Has reports whether id has been handed out or registered.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[id]
}

// Len returns the number of known ids.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

// Reset forgets every id and counter.
//
// Test harnesses only: resetting a registry that production slices were
// built from allows colliding ids.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = make(map[string]bool)
	r.counters = make(map[string]int)
}
