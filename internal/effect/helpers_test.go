package effect

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bangle-io/nalanda-sub001/internal/schedule"
	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/bangle-io/nalanda-sub001/internal/testutil"
)

type pairState struct {
	Foo string
	Bar string
}

// fakeHost is a minimal store: it applies transactions and feeds the engine.
type fakeHost struct {
	mu        sync.Mutex
	st        *state.StoreState
	engine    *Engine
	destroyed bool
}

func (h *fakeHost) State() *state.StoreState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.st
}

func (h *fakeHost) Dispatch(tx *state.Transaction) error {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return nil
	}
	prev := h.st
	next, err := prev.ApplyTransaction(tx)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.st = next
	h.mu.Unlock()

	affected := next.Config().Affected(next.ChangedSlices(prev))
	h.engine.OnStateChange(prev, next, affected)
	return nil
}

func (h *fakeHost) Name() string { return "test" }

func (h *fakeHost) Destroyed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.destroyed
}

func (h *fakeHost) destroy() {
	h.mu.Lock()
	h.destroyed = true
	h.mu.Unlock()
	h.engine.Destroy()
}

type fixture struct {
	host  *fakeHost
	sched *schedule.Manual
	en    *Engine
	x     *state.Slice[pairState]
	y     *state.Slice[pairState]
	xFoo  *state.Field[pairState, string]
}

func newFixture(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	reg := state.NewRegistry()
	x := state.NewSlice(reg, "x", pairState{Foo: "foo", Bar: "bar"})
	y := state.NewSlice(reg, "y", pairState{Foo: "yfoo"})

	st, err := state.NewStoreState([]state.AnySlice{x, y})
	require.NoError(t, err)

	host := &fakeHost{st: st}
	sched := schedule.NewManual(schedule.WithLogger(testutil.QuietLogger()), schedule.WithErrorHandler(func(error) {}))
	en := NewEngine(host, sched, append([]EngineOption{WithLogger(testutil.QuietLogger())}, opts...)...)
	host.engine = en

	return &fixture{
		host:  host,
		sched: sched,
		en:    en,
		x:     x,
		y:     y,
		xFoo:  state.NewField(x, "foo", func(p pairState) string { return p.Foo }),
	}
}

func (f *fixture) setX(t *testing.T, update func(p pairState) pairState) {
	t.Helper()
	require.NoError(t, f.host.Dispatch(f.x.Tx(func(st *state.StoreState) pairState {
		return update(f.x.Get(st))
	})))
}

func (f *fixture) setY(t *testing.T, update func(p pairState) pairState) {
	t.Helper()
	require.NoError(t, f.host.Dispatch(f.y.Tx(func(st *state.StoreState) pairState {
		return update(f.y.Get(st))
	})))
}
