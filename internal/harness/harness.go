package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/bangle-io/nalanda-sub001/internal/declare"
	"github.com/bangle-io/nalanda-sub001/internal/effect"
	"github.com/bangle-io/nalanda-sub001/internal/ident"
	"github.com/bangle-io/nalanda-sub001/internal/schedule"
	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/bangle-io/nalanda-sub001/internal/store"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

// Option configures a scenario run.
type Option func(*config)

type config struct {
	logger *slog.Logger
	sinks  []trace.Sink
}

// WithLogger sets the logger handed to the store and scheduler. Runs are
// silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithSink adds a sink that receives the store's trace next to the
// in-memory one the result is built from.
func WithSink(s trace.Sink) Option {
	return func(c *config) {
		c.sinks = append(c.sinks, s)
	}
}

// Harness executes one scenario against a fresh store.
type Harness struct {
	scenario *Scenario
	catalog  *declare.Catalog
	store    *store.Store
	sched    *schedule.Manual
	memory   *trace.Memory
	effects  map[string]*effect.Effect
	initial  *state.StoreState
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh registry, store and manual scheduler, so
// ids and trace sequence numbers are reproducible.
//
// Execution flow:
// 1. Compile the CUE slice declarations and build the catalog
// 2. Create the store and register effects
// 3. Execute steps, checking noop expectations
// 4. Flush the scheduler and evaluate assertions
//
// Errors returned are setup failures; step and assertion failures are
// reported through Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &config{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs by default
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if scenario == nil {
		return nil, fmt.Errorf("invalid scenario: nil")
	}
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	decls, err := compileSlices(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to compile slices: %w", err)
	}
	catalog, err := declare.Build(state.NewRegistry(), decls)
	if err != nil {
		return nil, fmt.Errorf("failed to build slices: %w", err)
	}

	result := NewResult()
	memory := trace.NewMemory()
	sink := trace.Multi(append([]trace.Sink{memory}, cfg.sinks...))

	var schedErrs []error
	sched := schedule.NewManual(
		schedule.WithLogger(cfg.logger),
		schedule.WithErrorHandler(func(err error) {
			schedErrs = append(schedErrs, err)
		}),
	)

	st, err := store.New(catalog.Slices(),
		store.WithName(scenario.Name),
		store.WithScheduler(sched),
		store.WithDebug(sink),
		store.WithLogger(cfg.logger),
		store.WithIDGenerator(ident.NewFixedGenerator(scenario.Name)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Destroy()

	h := &Harness{
		scenario: scenario,
		catalog:  catalog,
		store:    st,
		sched:    sched,
		memory:   memory,
		effects:  make(map[string]*effect.Effect, len(scenario.Effects)),
		initial:  st.State(),
		logger:   cfg.logger,
	}

	if err := h.registerEffects(); err != nil {
		return nil, fmt.Errorf("failed to register effects: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.executeStep(step, result); err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	// Errors are collected by the handler as well as returned.
	_ = sched.Flush()
	for _, err := range schedErrs {
		result.AddError(fmt.Sprintf("scheduled task failed: %v", err))
	}

	h.collect(result)
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, h) {
		result.AddError(msg)
	}
	return result, nil
}

func compileSlices(s *Scenario) ([]declare.SliceDecl, error) {
	if s.SlicesDir != "" {
		return declare.LoadDir(s.SlicesDir)
	}
	return declare.CompileString(s.Slices)
}

// registerEffects registers every scenario effect on the store.
func (h *Harness) registerEffects() error {
	for _, spec := range h.scenario.Effects {
		fn, err := h.effectFunc(spec)
		if err != nil {
			return fmt.Errorf("effect %s: %w", spec.Name, err)
		}
		eff := h.store.Effect(fn, effect.Options{Name: spec.Name, Deferred: spec.Deferred})
		h.effects[spec.Name] = eff
	}
	return nil
}

// effectFunc resolves spec's references once and returns the callback.
func (h *Harness) effectFunc(spec EffectSpec) (effect.Func, error) {
	readers := make([]func(tr state.Tracker) any, 0, len(spec.Reads))
	for _, ref := range spec.Reads {
		read, err := h.reader(ref)
		if err != nil {
			return nil, err
		}
		readers = append(readers, read)
	}

	var target *declare.Slice
	var targetKey string
	if spec.CopyTo != "" {
		name, key, _ := splitRef(spec.CopyTo)
		sl, err := h.catalog.Lookup(name)
		if err != nil {
			return nil, err
		}
		target, targetKey = sl, key
	}

	return func(_ context.Context, es *effect.Store) error {
		var first any
		for i, read := range readers {
			v := read(es)
			if i == 0 {
				first = v
			}
		}
		if target == nil {
			return nil
		}
		return es.Dispatch(target.Set.Call(declare.Update{
			Values: declare.Record{targetKey: first},
		}))
	}, nil
}

// reader returns a tracked read for "slice.key" or "slice".
func (h *Harness) reader(ref string) (func(tr state.Tracker) any, error) {
	name, key, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	sl, err := h.catalog.Lookup(name)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return func(tr state.Tracker) any { return sl.Slice.Track(tr) }, nil
	}
	field := sl.Field(key)
	return func(tr state.Tracker) any { return field.Track(tr) }, nil
}

// executeStep runs one step. Failed noop expectations are recorded on the
// result; errors are returned only for invalid references and dispatch
// failures.
func (h *Harness) executeStep(step Step, result *Result) error {
	if step.Flush {
		// Task errors reach the scheduler's error handler.
		_ = h.sched.Flush()
		return nil
	}

	calls := step.Batch
	if step.Dispatch != nil {
		calls = []SetCall{*step.Dispatch}
	}

	var tx *state.Transaction
	for _, call := range calls {
		next, err := h.transaction(call)
		if err != nil {
			return err
		}
		if tx == nil {
			tx = next
			continue
		}
		tx = tx.Append(next)
	}

	before := h.store.State()
	if err := h.store.Dispatch(tx); err != nil {
		return err
	}
	after := h.store.State()

	if step.Noop != nil {
		noop := before == after
		if noop != *step.Noop {
			result.AddError(fmt.Sprintf("dispatch %s: expected noop=%t, got noop=%t", tx.ID(), *step.Noop, noop))
		}
	}
	return nil
}

func (h *Harness) transaction(call SetCall) (*state.Transaction, error) {
	sl, err := h.catalog.Lookup(call.Slice)
	if err != nil {
		return nil, err
	}
	values := make(declare.Record, len(call.Set))
	for k, v := range call.Set {
		values[k] = normalize(v)
	}
	return sl.Set.Call(declare.Update{Values: values, Replace: call.Replace}), nil
}

// collect copies the final snapshot, effect run counts and trace into
// result.
func (h *Harness) collect(result *Result) {
	if snap, err := h.catalog.Snapshot(h.store.State()); err == nil {
		result.Snapshot = snap
	} else {
		result.AddError(fmt.Sprintf("snapshot: %v", err))
	}
	for name, eff := range h.effects {
		result.EffectRuns[name] = eff.RunCount()
	}
	result.Trace = h.memory.Records()
}

// normalize converts YAML-decoded values to the representation CUE
// declarations produce, so that equal values compare Same.
func normalize(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case uint64:
		return int64(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = normalize(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = normalize(e)
		}
		return out
	default:
		return v
	}
}
