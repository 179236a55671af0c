package operation

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/bangle-io/nalanda-sub001/internal/store"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

// DefaultMaxWait bounds how long a deferred operation may wait for the
// scheduler to go idle.
const DefaultMaxWait = 15 * time.Millisecond

// DefaultName is used for operations defined without a name.
const DefaultName = "operation"

// Options controls how an operation is scheduled.
type Options struct {
	Name string
	// Deferred runs the operation when the scheduler is idle instead of
	// immediately.
	Deferred bool
	// MaxWait caps how long a deferred run may be postponed.
	// Defaults to DefaultMaxWait.
	MaxWait time.Duration
}

// Callback is an operation body.
type Callback[P any] func(ctx context.Context, s *Store, params P) error

// Definition is a reusable operation. It caches one executor per root
// store.
type Definition[P any] struct {
	opts      Options
	cb        Callback[P]
	executors *xsync.MapOf[*store.Store, *executor[P]]
}

// Define creates a Definition running cb.
func Define[P any](opts Options, cb Callback[P]) *Definition[P] {
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}
	return &Definition[P]{
		opts:      opts,
		cb:        cb,
		executors: xsync.NewMapOf[*store.Store, *executor[P]](),
	}
}

// Name returns the operation name.
func (d *Definition[P]) Name() string { return d.opts.Name }

// Options returns the options with defaults applied.
func (d *Definition[P]) Options() Options { return d.opts }

// New binds params, producing a runnable Operation.
func (d *Definition[P]) New(params P) Operation {
	return Operation{
		name: d.opts.Name,
		meta: map[string]string{
			"deferred": strconv.FormatBool(d.opts.Deferred),
		},
		run: func(root *store.Store) {
			d.executor(root).schedule(params)
		},
	}
}

// Executors returns the number of stores with a live executor.
func (d *Definition[P]) Executors() int {
	return d.executors.Size()
}

// executor returns root's executor, creating it on first use.
func (d *Definition[P]) executor(root *store.Store) *executor[P] {
	ex, loaded := d.executors.LoadOrCompute(root, func() *executor[P] {
		return &executor[P]{def: d, root: root}
	})
	if !loaded {
		root.OnDestroy(func() {
			d.executors.Delete(root)
			ex.destroy()
		})
	}
	return ex
}

// Operation is a parameterized, not yet scheduled invocation.
type Operation struct {
	name string
	meta map[string]string
	run  func(root *store.Store)
}

// Name returns the operation name.
func (o Operation) Name() string { return o.name }

// Meta returns descriptive metadata.
func (o Operation) Meta() map[string]string {
	out := make(map[string]string, len(o.meta))
	for k, v := range o.meta {
		out[k] = v
	}
	return out
}

// Run schedules the operation on root's scheduler. Running against a
// destroyed store is skipped.
func (o Operation) Run(root *store.Store) {
	if root.Destroyed() {
		root.Logger().Warn("operation skipped: store destroyed", "operation", o.name)
		return
	}
	o.run(root)
}

// executor runs one Definition against one root store.
type executor[P any] struct {
	def  *Definition[P]
	root *store.Store

	mu      sync.Mutex
	current *Store
	runs    int64
}

func (ex *executor[P]) schedule(params P) {
	task := func() error { return ex.execute(params) }
	if ex.def.opts.Deferred {
		ex.root.Scheduler().Deferred(task, ex.def.opts.MaxWait)
		return
	}
	ex.root.Scheduler().Immediate(task)
}

func (ex *executor[P]) execute(params P) error {
	name := ex.def.opts.Name
	logger := ex.root.Logger()

	if ex.root.Destroyed() {
		logger.Warn("operation skipped: store destroyed", "operation", name)
		return nil
	}

	ex.mu.Lock()
	prev := ex.current
	ex.runs++
	opStore := newStore(ex.root, name, ex.runs, logger)
	ex.current = opStore
	ex.mu.Unlock()

	if prev != nil {
		prev.destroy()
	}

	ex.root.Emit(trace.Record{Type: trace.TypeOperation, Operation: name, Run: opStore.run})
	logger.Debug("operation running", "operation", name, "run", opStore.run)

	err := ex.def.cb(opStore.ctx, opStore, params)

	if opStore.Destroyed() {
		if err != nil {
			logger.Warn("operation failed during teardown", "operation", name, "error", err)
		} else {
			logger.Debug("operation result discarded: torn down", "operation", name)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("operation %s: %w", name, err)
	}
	return nil
}

// destroy tears down the in-flight invocation, if any.
func (ex *executor[P]) destroy() {
	ex.mu.Lock()
	current := ex.current
	ex.current = nil
	ex.mu.Unlock()

	if current != nil {
		current.destroy()
	}
}
