package schedule

import (
	"fmt"
	"log/slog"
	"time"
)

// Task is one unit of scheduled work. A returned error is reported to the
// scheduler's error handler and does not stop the scheduler.
type Task func() error

// Scheduler runs tasks on behalf of a store.
type Scheduler interface {
	// Immediate queues task to run as soon as possible.
	Immediate(task Task)
	// Deferred queues task to run when the scheduler is idle, or after
	// maxWait at the latest.
	Deferred(task Task, maxWait time.Duration)
}

// ErrorHandler receives errors returned (or panics raised) by tasks.
type ErrorHandler func(err error)

// DefaultIdleDelay is how long a Loop must see no immediate work before it
// starts running deferred tasks.
const DefaultIdleDelay = 2 * time.Millisecond

type config struct {
	idleDelay time.Duration
	onError   ErrorHandler
	logger    *slog.Logger
}

// Option configures a Loop or Manual scheduler.
type Option func(*config)

// WithIdleDelay sets how long a Loop waits for immediate work before it
// runs a deferred task. Ignored by Manual.
func WithIdleDelay(d time.Duration) Option {
	return func(c *config) {
		c.idleDelay = d
	}
}

// WithErrorHandler sets the handler for task errors. The default logs them.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) {
		c.onError = h
	}
}

// WithLogger sets the logger used for scheduler diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

func newConfig(opts []Option) *config {
	c := &config{
		idleDelay: DefaultIdleDelay,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.onError == nil {
		logger := c.logger
		c.onError = func(err error) {
			logger.Error("scheduled task failed", "error", err)
		}
	}
	return c
}

// PanicError wraps a value recovered from a panicking task.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// runTask executes task, converting a panic into a *PanicError.
func runTask(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()
	return task()
}
