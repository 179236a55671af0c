package store

import (
	"log/slog"

	"github.com/bangle-io/nalanda-sub001/internal/ident"
	"github.com/bangle-io/nalanda-sub001/internal/schedule"
	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

// DefaultName is the name of stores created without WithName.
const DefaultName = "store"

// DispatchFunc applies tx to s. Implementations must finish by calling
// s.UpdateState (or drop the transaction); they must not call s.Dispatch,
// which would deadlock.
type DispatchFunc func(s *Store, tx *state.Transaction) error

type config struct {
	name      string
	sched     schedule.Scheduler
	overrides []state.Override
	dispatch  DispatchFunc
	debug     trace.Sink
	logger    *slog.Logger
	ids       ident.IDGenerator
}

// Option configures a Store.
type Option func(*config)

// WithName names the store in logs, traces and transaction metadata.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

// WithScheduler sets the scheduler effects and operations run on. Without
// it the store starts its own schedule.Loop and stops it on Destroy.
func WithScheduler(s schedule.Scheduler) Option {
	return func(c *config) {
		c.sched = s
	}
}

// WithOverrides replaces slices' initial states.
func WithOverrides(overrides ...state.Override) Option {
	return func(c *config) {
		c.overrides = append(c.overrides, overrides...)
	}
}

// WithDispatch intercepts every dispatched transaction.
func WithDispatch(fn DispatchFunc) Option {
	return func(c *config) {
		c.dispatch = fn
	}
}

// WithDebug sets a sink receiving a trace record for every transaction,
// effect run and operation run. Sink panics are recovered.
func WithDebug(sink trace.Sink) Option {
	return func(c *config) {
		c.debug = sink
	}
}

// WithLogger sets the store's logger. It is shared with the effect engine
// and, when the store owns it, the scheduler loop.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithIDGenerator sets how the store's instance id is generated.
func WithIDGenerator(g ident.IDGenerator) Option {
	return func(c *config) {
		c.ids = g
	}
}
