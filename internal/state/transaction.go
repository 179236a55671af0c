package state

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Metadata keys set by the runtime.
const (
	MetaStoreName = "store"
	MetaActionID  = "action"
)

// Step is a single pure state transition targeting one slice.
type Step struct {
	Target SliceID
	Apply  func(st *StoreState) any
}

// Metadata is a small concurrent string map attached to a transaction for
// tracing. It never influences how the transaction is applied.
type Metadata struct {
	mu     sync.RWMutex
	values map[string]string
}

func newMetadata() *Metadata {
	return &Metadata{values: make(map[string]string)}
}

// Set stores value under key.
func (m *Metadata) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

// Map returns a copy of all entries.
func (m *Metadata) Map() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// Keys returns the keys in sorted order.
func (m *Metadata) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Transaction is an ordered, single-use sequence of steps.
type Transaction struct {
	id        string
	actionID  ActionID
	sliceID   SliceID
	sliceName string
	params    []any
	steps     []Step
	meta      *Metadata
	registry  *Registry

	applied atomic.Bool
	// parts are the transactions this one was composed from. Applying the
	// composite consumes them.
	parts []*Transaction
}

func (r *Registry) newTransaction(steps []Step) *Transaction {
	return &Transaction{
		id:       r.nextTxnID(),
		steps:    steps,
		meta:     newMetadata(),
		registry: r,
	}
}

// ID returns the transaction id.
func (t *Transaction) ID() string { return t.id }

// ActionID returns the id of the action that produced the transaction, or
// "" for transactions built directly with Slice.Tx.
func (t *Transaction) ActionID() ActionID { return t.actionID }

// SliceID returns the id of the slice that owns the producing action.
func (t *Transaction) SliceID() SliceID { return t.sliceID }

// SliceName returns the name of the slice that owns the producing action.
func (t *Transaction) SliceName() string { return t.sliceName }

// Params returns the parameters the producing action was called with.
func (t *Transaction) Params() []any {
	out := make([]any, len(t.params))
	copy(out, t.params)
	return out
}

// Steps returns the steps in application order.
func (t *Transaction) Steps() []Step {
	out := make([]Step, len(t.steps))
	copy(out, t.steps)
	return out
}

// Metadata returns the transaction's tracing metadata.
func (t *Transaction) Metadata() *Metadata { return t.meta }

// Applied reports whether the transaction has been applied.
func (t *Transaction) Applied() bool { return t.applied.Load() }

// Append returns a new transaction running t's steps followed by each of
// others' steps, in order. The composite inherits t's action tagging.
// Applying the composite consumes t and others: applying any of them
// afterwards fails with ErrAlreadyApplied, and vice versa.
func (t *Transaction) Append(others ...*Transaction) *Transaction {
	steps := make([]Step, 0, len(t.steps))
	steps = append(steps, t.steps...)
	for _, o := range others {
		steps = append(steps, o.steps...)
	}

	composite := t.registry.newTransaction(steps)
	composite.actionID = t.actionID
	composite.sliceID = t.sliceID
	composite.sliceName = t.sliceName
	composite.params = t.params
	for k, v := range t.meta.Map() {
		composite.meta.Set(k, v)
	}

	composite.parts = append(composite.parts, t.consumable()...)
	for _, o := range others {
		composite.parts = append(composite.parts, o.consumable()...)
	}
	return composite
}

// consumable returns t and everything it was composed from.
func (t *Transaction) consumable() []*Transaction {
	out := []*Transaction{t}
	return append(out, t.parts...)
}

// markApplied claims the transaction and all its parts. Returns false if
// any of them was already applied.
func (t *Transaction) markApplied() bool {
	for _, p := range t.parts {
		if p.applied.Load() {
			return false
		}
	}
	if !t.applied.CompareAndSwap(false, true) {
		return false
	}
	for _, p := range t.parts {
		p.applied.Store(true)
	}
	return true
}
