package effect

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bangle-io/nalanda-sub001/internal/state"
)

// RunInstance is the bookkeeping for one invocation of an effect: the reads
// it tracked and the cleanups it registered.
type RunInstance struct {
	host     Host
	number   int64
	ctx      context.Context
	cancel   context.CancelFunc
	cleanups *Cleanups

	mu    sync.Mutex
	reads []state.Read
}

func newRunInstance(host Host, name string, number int64, logger *slog.Logger) *RunInstance {
	ctx, cancel := context.WithCancel(context.Background())
	return &RunInstance{
		host:     host,
		number:   number,
		ctx:      ctx,
		cancel:   cancel,
		cleanups: NewCleanups(name, logger),
	}
}

// Number returns which run of its effect this is, starting at 1.
func (r *RunInstance) Number() int64 { return r.number }

// State returns the host store's current snapshot.
func (r *RunInstance) State() *state.StoreState {
	return r.host.State()
}

// TrackRead records a read.
func (r *RunInstance) TrackRead(read state.Read) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, read)
}

// Reads returns the reads tracked so far.
func (r *RunInstance) Reads() []state.Read {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]state.Read, len(r.reads))
	copy(out, r.reads)
	return out
}

// IsDependency reports whether any tracked read belongs to a slice in
// affected.
func (r *RunInstance) IsDependency(affected map[state.SliceID]bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, read := range r.reads {
		if affected[read.Slice] {
			return true
		}
	}
	return false
}

// DidDependenciesStateChange reports whether any tracked read resolves to a
// different value in st.
func (r *RunInstance) DidDependenciesStateChange(st *state.StoreState) bool {
	for _, read := range r.Reads() {
		if read.Changed(st) {
			return true
		}
	}
	return false
}

// AddCleanup registers fn to run when the instance is torn down.
func (r *RunInstance) AddCleanup(fn func()) {
	r.cleanups.Add(fn)
}

// teardown cancels the run's context and runs its cleanups once.
func (r *RunInstance) teardown() {
	r.cancel()
	r.cleanups.Run()
}
