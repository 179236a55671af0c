package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"

	"github.com/bangle-io/nalanda-sub001/internal/effect"
	"github.com/bangle-io/nalanda-sub001/internal/ident"
	"github.com/bangle-io/nalanda-sub001/internal/schedule"
	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

// ChangeFunc is notified after the store swaps snapshots.
type ChangeFunc func(prev, next *state.StoreState)

// Store holds the current snapshot and runs the dispatch pipeline.
//
// Thread-safety model:
//   - every method is safe from any goroutine
//   - Dispatch calls are serialized; the DispatchFunc and debug sink run
//     while the dispatch lock is held and must not call Dispatch
type Store struct {
	id       string
	name     string
	sched    schedule.Scheduler
	logger   *slog.Logger
	debug    trace.Sink
	dispatch DispatchFunc
	engine   *effect.Engine
	metrics  *storeMetrics
	seq      *ident.Clock
	stopLoop context.CancelFunc

	dispatchMu sync.Mutex
	emitMu     sync.Mutex

	mu sync.RWMutex
	st *state.StoreState

	destroyed atomic.Bool

	hooksMu      sync.Mutex
	listeners    map[int]ChangeFunc
	nextListener int
	onDestroy    []func()
}

var _ effect.Host = (*Store)(nil)

// New creates a store holding slices.
//
// Returns a *state.ConstructionError if the slices or overrides are invalid
// (duplicate slice, missing or cyclic dependency, unknown override).
func New(slices []state.AnySlice, opts ...Option) (*Store, error) {
	cfg := &config{
		name:     DefaultName,
		dispatch: DefaultDispatch,
		logger:   slog.Default(),
		ids:      ident.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	st, err := state.NewStoreState(slices, cfg.overrides...)
	if err != nil {
		return nil, fmt.Errorf("create store %s: %w", cfg.name, err)
	}

	s := &Store{
		id:        cfg.ids.Generate(),
		name:      cfg.name,
		logger:    cfg.logger.With("store", cfg.name),
		debug:     cfg.debug,
		dispatch:  cfg.dispatch,
		metrics:   newStoreMetrics(cfg.name),
		seq:       ident.NewClock(),
		st:        st,
		listeners: make(map[int]ChangeFunc),
	}

	s.sched = cfg.sched
	if s.sched == nil {
		loop := schedule.NewLoop(schedule.WithLogger(s.logger))
		ctx, cancel := context.WithCancel(context.Background())
		s.stopLoop = cancel
		go func() {
			_ = loop.Run(ctx)
		}()
		s.sched = loop
	}

	s.engine = effect.NewEngine(s, s.sched,
		effect.WithLogger(s.logger),
		effect.WithTracer(s.Emit),
	)

	s.logger.Info("store created", "id", s.id, "slices", len(slices))
	return s, nil
}

// ID returns the store's instance id.
func (s *Store) ID() string { return s.id }

// Name returns the store's name.
func (s *Store) Name() string { return s.name }

// Scheduler returns the scheduler effects and operations run on.
func (s *Store) Scheduler() schedule.Scheduler { return s.sched }

// Logger returns the store's logger.
func (s *Store) Logger() *slog.Logger { return s.logger }

// Metrics returns the store's metric set, for WritePrometheus.
func (s *Store) Metrics() *metrics.Set { return s.metrics.set }

// Stats returns the store's counters.
func (s *Store) Stats() Stats { return s.metrics.stats() }

// State returns the current snapshot.
func (s *Store) State() *state.StoreState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// Destroyed reports whether Destroy has been called.
func (s *Store) Destroyed() bool { return s.destroyed.Load() }

// Dispatch runs tx through the dispatch pipeline. Dispatching on a
// destroyed store is a no-op.
func (s *Store) Dispatch(tx *state.Transaction) error {
	if tx == nil {
		return ErrNilTransaction
	}
	if s.destroyed.Load() {
		s.logger.Debug("dispatch on destroyed store ignored", "tx", tx.ID())
		return nil
	}
	tx.Metadata().Set(state.MetaStoreName, s.name)

	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	if err := s.dispatch(s, tx); err != nil {
		return fmt.Errorf("dispatch %s: %w", tx.ID(), err)
	}
	return nil
}

// DefaultDispatch applies tx to the current snapshot and installs the
// result.
func DefaultDispatch(s *Store, tx *state.Transaction) error {
	next, err := s.State().ApplyTransaction(tx)
	if err != nil {
		return err
	}
	return s.UpdateState(next, tx)
}

// UpdateState installs next as the current snapshot. tx is the transaction
// that produced it, for tracing, and may be nil.
//
// When next differs from the current snapshot, the effect engine is told
// which slices were affected and OnChange listeners are notified through
// the scheduler.
func (s *Store) UpdateState(next *state.StoreState, tx *state.Transaction) error {
	if s.destroyed.Load() {
		return nil
	}

	s.mu.Lock()
	prev := s.st
	if next.Config() != prev.Config() {
		s.mu.Unlock()
		return ErrForeignState
	}
	s.st = next
	s.mu.Unlock()

	changed := next.ChangedSlices(prev)
	s.metrics.dispatches.Inc()

	rec := trace.Record{Type: trace.TypeTx, Noop: len(changed) == 0}
	for _, id := range changed {
		rec.Changed = append(rec.Changed, string(id))
	}
	if tx != nil {
		rec.TxID = tx.ID()
		rec.ActionID = string(tx.ActionID())
		rec.Slice = string(tx.SliceID())
		rec.Meta = tx.Metadata().Map()
	}
	s.Emit(rec)

	if len(changed) == 0 {
		s.metrics.noops.Inc()
		s.logger.Debug("state unchanged", "tx", rec.TxID)
		return nil
	}

	s.logger.Debug("state updated", "tx", rec.TxID, "changed", rec.Changed)
	s.engine.OnStateChange(prev, next, next.Config().Affected(changed))
	s.notify(prev, next)
	return nil
}

// Effect registers fn as an effect of this store.
func (s *Store) Effect(fn effect.Func, opts effect.Options) *effect.Effect {
	return s.engine.Register(fn, opts)
}

// Effects returns the number of live effects.
func (s *Store) Effects() int { return s.engine.Len() }

// OnChange registers cb to be called, through the scheduler, after every
// snapshot swap. The returned function unsubscribes.
func (s *Store) OnChange(cb ChangeFunc) (unsubscribe func()) {
	s.hooksMu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = cb
	s.hooksMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.hooksMu.Lock()
			delete(s.listeners, id)
			s.hooksMu.Unlock()
		})
	}
}

func (s *Store) notify(prev, next *state.StoreState) {
	s.hooksMu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	cbs := make([]ChangeFunc, len(ids))
	for i, id := range ids {
		cbs[i] = s.listeners[id]
	}
	s.hooksMu.Unlock()

	for _, cb := range cbs {
		cb := cb
		s.sched.Immediate(func() error {
			if s.destroyed.Load() {
				return nil
			}
			cb(prev, next)
			return nil
		})
	}
}

// OnDestroy registers fn to run when the store is destroyed. On a store
// that is already destroyed, fn runs immediately.
func (s *Store) OnDestroy(fn func()) {
	s.hooksMu.Lock()
	if !s.destroyed.Load() {
		s.onDestroy = append(s.onDestroy, fn)
		s.hooksMu.Unlock()
		return
	}
	s.hooksMu.Unlock()
	s.runHook(fn)
}

// Destroy tears the store down: effects are destroyed (running their
// cleanups), OnDestroy hooks run, and an owned scheduler loop stops.
// Destroy is idempotent.
func (s *Store) Destroy() {
	s.hooksMu.Lock()
	if !s.destroyed.CompareAndSwap(false, true) {
		s.hooksMu.Unlock()
		return
	}
	hooks := s.onDestroy
	s.onDestroy = nil
	s.listeners = make(map[int]ChangeFunc)
	s.hooksMu.Unlock()

	s.engine.Destroy()
	for _, fn := range hooks {
		s.runHook(fn)
	}
	if s.stopLoop != nil {
		s.stopLoop()
	}
	s.logger.Info("store destroyed", "id", s.id)
}

func (s *Store) runHook(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("destroy hook panicked", "panic", r)
		}
	}()
	fn()
}

// Emit stamps r with the store's name and next sequence number and passes
// it to the debug sink. Sink panics are recovered and counted.
func (s *Store) Emit(r trace.Record) {
	switch r.Type {
	case trace.TypeEffect:
		s.metrics.effectRuns.Inc()
	case trace.TypeOperation:
		s.metrics.operationRuns.Inc()
	}

	if s.debug == nil {
		return
	}

	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	r.Store = s.name
	r.Seq = int64(s.seq.Next())

	defer func() {
		if p := recover(); p != nil {
			s.metrics.sinkFailures.Inc()
			s.logger.Warn("debug sink panicked", "seq", r.Seq, "panic", p)
		}
	}()
	s.debug.Record(r)
}
