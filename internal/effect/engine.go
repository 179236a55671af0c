package effect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bangle-io/nalanda-sub001/internal/ident"
	"github.com/bangle-io/nalanda-sub001/internal/schedule"
	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

// DefaultMaxWait bounds how long a deferred effect may wait for the
// scheduler to go idle.
const DefaultMaxWait = 15 * time.Millisecond

// DefaultName is used for effects registered without a name.
const DefaultName = "effect"

// Options controls how an effect is scheduled.
type Options struct {
	// Name identifies the effect in logs and traces. Names are made unique
	// per engine by appending a counter.
	Name string
	// Deferred runs the effect when the scheduler is idle instead of
	// immediately.
	Deferred bool
	// MaxWait caps how long a deferred run may be postponed.
	// Defaults to DefaultMaxWait.
	MaxWait time.Duration
}

// Func is an effect callback. ctx is cancelled when the run is superseded or
// the effect is torn down.
type Func func(ctx context.Context, s *Store) error

// Host is the store an Engine serves.
type Host interface {
	State() *state.StoreState
	Dispatch(tx *state.Transaction) error
	Name() string
	Destroyed() bool
}

// Engine owns a store's effects and decides which of them re-run after a
// state change.
//
// Thread-safety model:
//   - Register(), OnStateChange(), Destroy(): safe from any goroutine
//   - effect callbacks run on the scheduler; with schedule.Loop they never
//     overlap
type Engine struct {
	host   Host
	sched  schedule.Scheduler
	logger *slog.Logger
	tracer func(trace.Record)
	names  *ident.Registry

	mu        sync.Mutex
	effects   []*Effect
	destroyed bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(en *Engine) {
		en.logger = l
	}
}

// WithTracer sets a callback receiving one trace.Record (TypeEffect) per
// run. The host is expected to fill in Store and Seq.
func WithTracer(fn func(trace.Record)) EngineOption {
	return func(en *Engine) {
		en.tracer = fn
	}
}

// NewEngine creates an engine for host that schedules runs on sched.
func NewEngine(host Host, sched schedule.Scheduler, opts ...EngineOption) *Engine {
	en := &Engine{
		host:   host,
		sched:  sched,
		logger: slog.Default(),
		names:  ident.NewRegistry(),
	}
	for _, opt := range opts {
		opt(en)
	}
	return en
}

// Register adds an effect and schedules its first run. An effect always
// runs at least once; afterwards it re-runs only when a value it read
// changes.
//
// Registering on a destroyed engine returns an already destroyed effect
// that never runs.
func (en *Engine) Register(fn Func, opts Options) *Effect {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}

	e := &Effect{
		engine: en,
		name:   en.names.Unique(opts.Name, func(hint string) string { return hint }),
		fn:     fn,
		opts:   opts,
	}

	en.mu.Lock()
	if en.destroyed {
		en.mu.Unlock()
		e.destroyed = true
		en.logger.Debug("effect registered on destroyed store", "effect", e.name, "store", en.host.Name())
		return e
	}
	en.effects = append(en.effects, e)
	en.mu.Unlock()

	e.schedule()
	return e
}

// OnStateChange schedules every effect whose last run read a slice in
// affected and whose read values now differ in next.
func (en *Engine) OnStateChange(prev, next *state.StoreState, affected map[state.SliceID]bool) {
	if prev == next || len(affected) == 0 {
		return
	}

	for _, e := range en.snapshot() {
		if e.shouldRerun(next, affected) {
			e.schedule()
		}
	}
}

// Destroy destroys every effect. Runs in flight finish first and then tear
// down; idle effects tear down immediately.
func (en *Engine) Destroy() {
	en.mu.Lock()
	if en.destroyed {
		en.mu.Unlock()
		return
	}
	en.destroyed = true
	effects := en.effects
	en.effects = nil
	en.mu.Unlock()

	for _, e := range effects {
		e.Destroy()
	}
}

// Destroyed reports whether Destroy has been called.
func (en *Engine) Destroyed() bool {
	en.mu.Lock()
	defer en.mu.Unlock()
	return en.destroyed
}

// Len returns the number of live effects.
func (en *Engine) Len() int {
	en.mu.Lock()
	defer en.mu.Unlock()
	return len(en.effects)
}

func (en *Engine) snapshot() []*Effect {
	en.mu.Lock()
	defer en.mu.Unlock()
	if en.destroyed {
		return nil
	}
	out := make([]*Effect, len(en.effects))
	copy(out, en.effects)
	return out
}

func (en *Engine) remove(target *Effect) {
	en.mu.Lock()
	defer en.mu.Unlock()
	for i, e := range en.effects {
		if e == target {
			en.effects = append(en.effects[:i], en.effects[i+1:]...)
			return
		}
	}
}

func (en *Engine) trace(r trace.Record) {
	if en.tracer != nil {
		en.tracer(r)
	}
}

// Effect is one registered effect.
//
// State machine: idle -> scheduled -> running -> (idle | scheduled).
// At most one run is scheduled at a time.
type Effect struct {
	engine *Engine
	name   string
	fn     Func
	opts   Options

	mu        sync.Mutex
	run       *RunInstance
	runs      int64
	scheduled bool
	running   bool
	destroyed bool
}

// Name returns the effect's unique name.
func (e *Effect) Name() string { return e.name }

// Options returns the effect's options with defaults applied.
func (e *Effect) Options() Options { return e.opts }

// RunCount returns how many times the callback has started.
func (e *Effect) RunCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs
}

// Scheduled reports whether a run is queued.
func (e *Effect) Scheduled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scheduled
}

// Destroyed reports whether the effect has been destroyed.
func (e *Effect) Destroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

// LastRun returns the most recent run instance, or nil before the first run.
func (e *Effect) LastRun() *RunInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run
}

// Destroy stops future scheduling. A run in flight completes and then tears
// down; otherwise the last run's cleanups execute now.
func (e *Effect) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	running := e.running
	run := e.run
	e.mu.Unlock()

	e.engine.remove(e)
	if !running && run != nil {
		run.teardown()
	}
}

func (e *Effect) shouldRerun(next *state.StoreState, affected map[state.SliceID]bool) bool {
	e.mu.Lock()
	if e.destroyed || e.scheduled {
		e.mu.Unlock()
		return false
	}
	run := e.run
	e.mu.Unlock()

	if run == nil {
		return false
	}
	return run.IsDependency(affected) && run.DidDependenciesStateChange(next)
}

func (e *Effect) schedule() {
	e.mu.Lock()
	if e.scheduled || e.destroyed {
		e.mu.Unlock()
		return
	}
	e.scheduled = true
	e.mu.Unlock()

	e.engine.logger.Debug("effect scheduled", "effect", e.name, "deferred", e.opts.Deferred)
	if e.opts.Deferred {
		e.engine.sched.Deferred(e.execute, e.opts.MaxWait)
		return
	}
	e.engine.sched.Immediate(e.execute)
}

// execute is the scheduled task for one run.
func (e *Effect) execute() error {
	en := e.engine

	e.mu.Lock()
	e.scheduled = false
	if e.destroyed || en.host.Destroyed() {
		e.mu.Unlock()
		return nil
	}
	prev := e.run
	e.runs++
	run := newRunInstance(en.host, e.name, e.runs, en.logger)
	e.run = run
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		destroyed := e.destroyed
		e.mu.Unlock()
		if destroyed {
			run.teardown()
		}
	}()

	if prev != nil {
		prev.teardown()
	}

	en.trace(trace.Record{Type: trace.TypeEffect, Effect: e.name, Run: run.number})
	en.logger.Debug("effect running", "effect", e.name, "run", run.number)

	err := e.fn(run.ctx, &Store{run: run, host: en.host, effect: e.name})

	// A dispatch landing between a read and its TrackRead is invisible to
	// OnStateChange, so compare the finished run against the live snapshot.
	if !e.Destroyed() && !en.host.Destroyed() && run.DidDependenciesStateChange(en.host.State()) {
		en.logger.Debug("effect read changed during run", "effect", e.name, "run", run.number)
		e.schedule()
	}

	if err != nil {
		return fmt.Errorf("effect %s: %w", e.name, err)
	}
	return nil
}
