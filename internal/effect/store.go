package effect

import (
	"context"

	"github.com/bangle-io/nalanda-sub001/internal/state"
)

// Store is the façade an effect callback receives. Reads made through
// Track methods on slices, fields and derived values (passing the Store as
// the state.Tracker) are recorded against the current run.
type Store struct {
	run    *RunInstance
	host   Host
	effect string
}

var _ state.Tracker = (*Store)(nil)

// State returns the current snapshot without tracking anything.
func (s *Store) State() *state.StoreState {
	return s.run.State()
}

// TrackRead records a read against the current run.
func (s *Store) TrackRead(read state.Read) {
	s.run.TrackRead(read)
}

// Dispatch forwards tx to the owning store.
func (s *Store) Dispatch(tx *state.Transaction) error {
	return s.host.Dispatch(tx)
}

// Cleanup registers fn to run before the next run of this effect, or when
// the effect or its store is destroyed.
func (s *Store) Cleanup(fn func()) {
	s.run.AddCleanup(fn)
}

// Context returns the run's context. It is cancelled when the run is
// superseded or torn down.
func (s *Store) Context() context.Context {
	return s.run.ctx
}

// Name returns the effect's name.
func (s *Store) Name() string { return s.effect }

// StoreName returns the owning store's name.
func (s *Store) StoreName() string { return s.host.Name() }

// Run returns the current run's number, starting at 1.
func (s *Store) Run() int64 { return s.run.number }
