package state

import (
	"errors"
	"fmt"

	iradix "github.com/hashicorp/go-immutable-radix"

	"github.com/bangle-io/nalanda-sub001/internal/graph"
	"github.com/bangle-io/nalanda-sub001/internal/ident"
)

// versions numbers every snapshot ever created in the process.
var versions = ident.NewClock()

// entry boxes a slice value so snapshots can be compared entry by entry
// with pointer identity.
type entry struct {
	value any
}

// Config is shared, read-only information about the slices a snapshot (and
// every snapshot derived from it) was created with.
type Config struct {
	slices      []AnySlice
	byID        map[SliceID]AnySlice
	reverseDeps map[SliceID][]SliceID
}

// Slices returns the slices in declaration order.
func (c *Config) Slices() []AnySlice {
	out := make([]AnySlice, len(c.slices))
	copy(out, c.slices)
	return out
}

// Lookup returns the slice with the given id.
func (c *Config) Lookup(id SliceID) (AnySlice, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// ReverseDependencies returns every slice that depends on id, directly or
// transitively.
func (c *Config) ReverseDependencies(id SliceID) []SliceID {
	deps := c.reverseDeps[id]
	out := make([]SliceID, len(deps))
	copy(out, deps)
	return out
}

// Affected returns changed plus every slice downstream of a changed slice.
func (c *Config) Affected(changed []SliceID) map[SliceID]bool {
	out := make(map[SliceID]bool, len(changed))
	for _, id := range changed {
		out[id] = true
		for _, dependent := range c.reverseDeps[id] {
			out[dependent] = true
		}
	}
	return out
}

// StoreState is an immutable snapshot of every slice's state.
type StoreState struct {
	version uint64
	entries *iradix.Tree
	config  *Config
}

// NewStoreState builds the initial snapshot for slices, applying overrides
// on top of each slice's initial state.
//
// Returns a *ConstructionError if a slice appears twice, a dependency is
// missing from slices, the dependencies form a cycle, or an override
// targets a slice that is not in slices.
func NewStoreState(slices []AnySlice, overrides ...Override) (*StoreState, error) {
	cfg := &Config{
		slices: make([]AnySlice, 0, len(slices)),
		byID:   make(map[SliceID]AnySlice, len(slices)),
	}

	nodes := make([]graph.Node, 0, len(slices))
	for _, s := range slices {
		if _, dup := cfg.byID[s.ID()]; dup {
			return nil, &ConstructionError{
				Code:    CodeDuplicateSlice,
				Message: "slice passed more than once",
				ID:      string(s.ID()),
				Err:     ErrDuplicateSlice,
			}
		}
		cfg.byID[s.ID()] = s
		cfg.slices = append(cfg.slices, s)

		node := graph.Node{ID: string(s.ID())}
		for _, dep := range s.Dependencies() {
			node.Deps = append(node.Deps, string(dep.ID()))
		}
		nodes = append(nodes, node)
	}

	if err := graph.Validate(nodes); err != nil {
		code := CodeMissingDependency
		if errors.Is(err, graph.ErrCycle) {
			code = CodeCyclicDependency
		}
		return nil, &ConstructionError{
			Code:    code,
			Message: err.Error(),
			Err:     err,
		}
	}

	cfg.reverseDeps = make(map[SliceID][]SliceID, len(slices))
	for id, dependents := range graph.ReverseDependencies(nodes) {
		ids := make([]SliceID, len(dependents))
		for i, d := range dependents {
			ids[i] = SliceID(d)
		}
		cfg.reverseDeps[SliceID(id)] = ids
	}

	values := make(map[SliceID]any, len(slices))
	for _, ov := range overrides {
		if ov.Slice == nil {
			return nil, &ConstructionError{
				Code:    CodeUnknownOverride,
				Message: "override has no slice",
				Err:     ErrUnknownOverride,
			}
		}
		if _, ok := cfg.byID[ov.Slice.ID()]; !ok {
			return nil, &ConstructionError{
				Code:    CodeUnknownOverride,
				Message: "override references a slice the store was not created with",
				ID:      string(ov.Slice.ID()),
				Err:     ErrUnknownOverride,
			}
		}
		values[ov.Slice.ID()] = ov.Value
	}

	txn := iradix.New().Txn()
	for _, s := range cfg.slices {
		v, ok := values[s.ID()]
		if !ok {
			v = s.InitialState()
		}
		txn.Insert([]byte(s.ID()), &entry{value: v})
	}

	return &StoreState{
		version: versions.Next(),
		entries: txn.Commit(),
		config:  cfg,
	}, nil
}

// Version returns the snapshot's process-unique version.
func (s *StoreState) Version() uint64 { return s.version }

// Config returns the shared slice configuration.
func (s *StoreState) Config() *Config { return s.config }

// Has reports whether the snapshot contains a slice with the given id.
func (s *StoreState) Has(id SliceID) bool {
	_, ok := s.entries.Get([]byte(id))
	return ok
}

// Resolve returns the current state of the slice with the given id.
// Asking for an unknown slice is a programmer error reported as
// ErrUnknownSlice.
func (s *StoreState) Resolve(id SliceID) (any, error) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("resolve %s: %w", id, ErrUnknownSlice)
	}
	return e.value, nil
}

func (s *StoreState) lookup(id SliceID) (*entry, bool) {
	raw, ok := s.entries.Get([]byte(id))
	if !ok {
		return nil, false
	}
	return raw.(*entry), true
}

// ChangedSlices returns the ids, in declaration order, whose entry differs
// between prev and s. Comparing a snapshot with itself returns nothing.
func (s *StoreState) ChangedSlices(prev *StoreState) []SliceID {
	if prev == s || prev == nil {
		return nil
	}

	var changed []SliceID
	for _, sl := range s.config.slices {
		cur, _ := s.lookup(sl.ID())
		old, ok := prev.lookup(sl.ID())
		if !ok || cur != old {
			changed = append(changed, sl.ID())
		}
	}
	return changed
}

// ApplyTransaction folds tx's steps over s and returns the resulting
// snapshot. Steps that produce a value Same as the slice's current value
// leave the snapshot untouched, so a transaction that changes nothing
// returns s itself.
//
// Returns ErrAlreadyApplied if tx (or anything it was composed from) has
// been applied before, and ErrUnknownSlice if a step targets a slice the
// snapshot does not contain.
//
// A transaction rejected for an unknown slice is not consumed.
func (s *StoreState) ApplyTransaction(tx *Transaction) (*StoreState, error) {
	for i, step := range tx.steps {
		if !s.Has(step.Target) {
			return nil, fmt.Errorf("apply %s step %d: step target %s: %w", tx.ID(), i, step.Target, ErrUnknownSlice)
		}
	}
	if !tx.markApplied() {
		return nil, fmt.Errorf("apply %s: %w", tx.ID(), ErrAlreadyApplied)
	}

	cur := s
	for i, step := range tx.steps {
		next, err := cur.applyStep(step)
		if err != nil {
			return nil, fmt.Errorf("apply %s step %d: %w", tx.ID(), i, err)
		}
		cur = next
	}
	return cur, nil
}

func (s *StoreState) applyStep(step Step) (*StoreState, error) {
	prev, ok := s.lookup(step.Target)
	if !ok {
		return nil, fmt.Errorf("step target %s: %w", step.Target, ErrUnknownSlice)
	}

	next := step.Apply(s)
	if Same(prev.value, next) {
		return s, nil
	}

	entries, _, _ := s.entries.Insert([]byte(step.Target), &entry{value: next})
	return &StoreState{
		version: versions.Next(),
		entries: entries,
		config:  s.config,
	}, nil
}
