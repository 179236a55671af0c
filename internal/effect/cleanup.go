package effect

import (
	"log/slog"
	"sync"
)

// Cleanups is an ordered set of teardown callbacks that runs at most once.
//
// Callbacks added after Run has happened execute immediately, with a
// warning, so resources acquired late are still released.
//
// Thread-safety: Cleanups is safe for concurrent use.
type Cleanups struct {
	owner  string
	logger *slog.Logger

	mu  sync.Mutex
	fns []func()
	ran bool
}

// NewCleanups creates an empty set. owner names the effect or operation in
// log messages.
func NewCleanups(owner string, logger *slog.Logger) *Cleanups {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleanups{owner: owner, logger: logger}
}

// Add registers fn.
func (c *Cleanups) Add(fn func()) {
	c.mu.Lock()
	if !c.ran {
		c.fns = append(c.fns, fn)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Warn("cleanup registered after teardown, running immediately", "owner", c.owner)
	c.call(fn)
}

// Run executes every registered callback in registration order. Only the
// first call does anything.
func (c *Cleanups) Run() {
	c.mu.Lock()
	if c.ran {
		c.mu.Unlock()
		return
	}
	c.ran = true
	fns := c.fns
	c.fns = nil
	c.mu.Unlock()

	for _, fn := range fns {
		c.call(fn)
	}
}

// Ran reports whether Run has been called.
func (c *Cleanups) Ran() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ran
}

// Len returns the number of callbacks waiting to run.
func (c *Cleanups) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

func (c *Cleanups) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("cleanup panicked", "owner", c.owner, "panic", r)
		}
	}()
	fn()
}
