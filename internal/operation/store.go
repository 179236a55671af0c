package operation

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/bangle-io/nalanda-sub001/internal/effect"
	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/bangle-io/nalanda-sub001/internal/store"
)

// Store is the short-lived façade one operation invocation works through.
type Store struct {
	root     *store.Store
	name     string
	run      int64
	ctx      context.Context
	cancel   context.CancelFunc
	cleanups *effect.Cleanups
	logger   *slog.Logger

	destroyed atomic.Bool
}

func newStore(root *store.Store, name string, run int64, logger *slog.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		root:     root,
		name:     name,
		run:      run,
		ctx:      ctx,
		cancel:   cancel,
		cleanups: effect.NewCleanups(name, logger),
		logger:   logger,
	}
}

// Name returns the operation's name.
func (s *Store) Name() string { return s.name }

// Run returns the invocation number, starting at 1.
func (s *Store) Run() int64 { return s.run }

// Context returns the invocation's context, cancelled when the invocation
// is superseded or the root store is destroyed.
func (s *Store) Context() context.Context { return s.ctx }

// State returns the root store's current snapshot.
func (s *Store) State() *state.StoreState { return s.root.State() }

// Dispatch forwards tx to the root store. Dispatching from a torn-down
// invocation is a no-op.
func (s *Store) Dispatch(tx *state.Transaction) error {
	if s.Destroyed() {
		s.logger.Debug("dispatch from finished operation ignored", "operation", s.name, "tx", tx.ID())
		return nil
	}
	return s.root.Dispatch(tx)
}

// Cleanup registers fn to run before the next invocation starts or when the
// root store is destroyed. Registered after teardown, fn runs immediately.
func (s *Store) Cleanup(fn func()) {
	s.cleanups.Add(fn)
}

// Destroyed reports whether this invocation or the root store has been
// torn down.
func (s *Store) Destroyed() bool {
	return s.destroyed.Load() || s.root.Destroyed()
}

// destroy cancels the context and runs cleanups once.
func (s *Store) destroy() {
	s.destroyed.Store(true)
	s.cancel()
	s.cleanups.Run()
}
