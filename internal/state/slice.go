package state

import "fmt"

// SliceID identifies a slice. Ids are unique within a Registry.
type SliceID string

// AnySlice is the type-erased view of a Slice used by snapshots and stores.
type AnySlice interface {
	ID() SliceID
	Name() string
	Dependencies() []AnySlice
	InitialState() any
}

// Slice is a named container of state of type T.
//
// Slices are created once, typically at package initialization, and are
// immutable afterwards.
type Slice[T any] struct {
	id       SliceID
	name     string
	deps     []AnySlice
	initial  T
	registry *Registry
}

// NewSlice declares a slice on reg. The id is derived from name and
// disambiguated if another slice already uses the same name.
func NewSlice[T any](reg *Registry, name string, initial T, deps ...AnySlice) *Slice[T] {
	depsCopy := make([]AnySlice, len(deps))
	copy(depsCopy, deps)

	return &Slice[T]{
		id:       reg.newSliceID(name),
		name:     name,
		deps:     depsCopy,
		initial:  initial,
		registry: reg,
	}
}

// ID returns the slice's unique id.
func (s *Slice[T]) ID() SliceID { return s.id }

// Name returns the human-readable name the slice was declared with.
func (s *Slice[T]) Name() string { return s.name }

// Dependencies returns the slices this slice depends on, in declaration order.
func (s *Slice[T]) Dependencies() []AnySlice {
	out := make([]AnySlice, len(s.deps))
	copy(out, s.deps)
	return out
}

// InitialState returns the declared initial state.
func (s *Slice[T]) InitialState() any { return s.initial }

// Initial returns the declared initial state, typed.
func (s *Slice[T]) Initial() T { return s.initial }

// Registry returns the construction context the slice was declared on.
func (s *Slice[T]) Registry() *Registry { return s.registry }

// Lookup returns this slice's state in st.
func (s *Slice[T]) Lookup(st *StoreState) (T, error) {
	var zero T
	v, err := st.Resolve(s.id)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("slice %s holds %T, want %T", s.id, v, zero)
	}
	return typed, nil
}

// Get returns this slice's state in st.
//
// Panics if st was not created with this slice; use Lookup to get an error
// instead.
func (s *Slice[T]) Get(st *StoreState) T {
	v, err := s.Lookup(st)
	if err != nil {
		panic(err)
	}
	return v
}

// Update returns the result of applying updater to this slice's state in st.
// It does not modify st; wrap it in Tx to produce a step.
//
// Typed slices always replace: updater must return the complete new state.
// Merging a partial update into existing keys is only offered for record
// state, through declare.Merge and declare.Replace.
func (s *Slice[T]) Update(st *StoreState, updater func(T) T) T {
	return updater(s.Get(st))
}

// Track returns this slice's state from the tracker's snapshot and records a
// whole-state read.
func (s *Slice[T]) Track(tr Tracker) T {
	v := s.Get(tr.State())
	tr.TrackRead(Read{
		Slice: s.id,
		Field: WholeState,
		Value: v,
		Resolve: func(st *StoreState) any {
			return s.Get(st)
		},
	})
	return v
}

// Tx wraps fn as a single-step transaction targeting this slice.
// fn must be pure: it receives the snapshot produced by any earlier steps
// and returns the slice's new state.
func (s *Slice[T]) Tx(fn func(st *StoreState) T) *Transaction {
	step := Step{
		Target: s.id,
		Apply: func(st *StoreState) any {
			return fn(st)
		},
	}
	tx := s.registry.newTransaction([]Step{step})
	tx.sliceID = s.id
	tx.sliceName = s.name
	return tx
}

// Override replaces a slice's initial state when creating a snapshot.
type Override struct {
	Slice AnySlice
	Value any
}

// OverrideState builds a typed Override for s.
func OverrideState[T any](s *Slice[T], value T) Override {
	return Override{Slice: s, Value: value}
}
