package state

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// derivedCacheSize bounds how many snapshot versions a derived value keeps
// memoized results for.
const derivedCacheSize = 16

// Derived is a memoized value computed from a snapshot.
//
// Results are memoized twice. Within one snapshot version the compute
// function runs at most once. Across versions, a freshly computed value that
// equal() considers unchanged is discarded and the previous value is
// returned instead, so Same checks downstream keep succeeding.
type Derived[V any] struct {
	slice   AnySlice
	name    string
	compute func(st *StoreState) V
	equal   func(a, b V) bool

	mu      sync.Mutex
	cache   *lru.Cache
	last    V
	hasLast bool
}

// NewDerived declares a derived value owned by s. compute may read s and
// any of s's dependencies. If equal is nil, Same is used.
func NewDerived[T, V any](s *Slice[T], name string, compute func(st *StoreState) V, equal func(a, b V) bool) *Derived[V] {
	cache, err := lru.New(derivedCacheSize)
	if err != nil {
		panic(err)
	}
	if equal == nil {
		equal = func(a, b V) bool { return Same(a, b) }
	}
	return &Derived[V]{
		slice:   s,
		name:    name,
		compute: compute,
		equal:   equal,
		cache:   cache,
	}
}

// Name returns the derived value's name.
func (d *Derived[V]) Name() string { return d.name }

// Get returns the derived value for st.
func (d *Derived[V]) Get(st *StoreState) V {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cached, ok := d.cache.Get(st.Version()); ok {
		v, _ := cached.(V)
		return v
	}

	v := d.compute(st)
	if d.hasLast && d.equal(d.last, v) {
		v = d.last
	}
	d.last = v
	d.hasLast = true
	d.cache.Add(st.Version(), v)
	return v
}

// Track returns the derived value from the tracker's snapshot and records
// the read against the owning slice.
func (d *Derived[V]) Track(tr Tracker) V {
	v := d.Get(tr.State())
	tr.TrackRead(Read{
		Slice: d.slice.ID(),
		Field: "derived:" + d.name,
		Value: v,
		Resolve: func(st *StoreState) any {
			return d.Get(st)
		},
	})
	return v
}
