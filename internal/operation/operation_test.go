package operation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bangle-io/nalanda-sub001/internal/schedule"
	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/bangle-io/nalanda-sub001/internal/store"
	"github.com/bangle-io/nalanda-sub001/internal/testutil"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

type fixture struct {
	root    *store.Store
	sched   *schedule.Manual
	sink    *trace.Memory
	counter *state.Slice[int]
	set     *state.Action[int]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := testutil.QuietLogger()
	reg := state.NewRegistry()
	counter := state.NewSlice(reg, "counter", 0)
	f := &fixture{
		sched:   schedule.NewManual(schedule.WithLogger(logger), schedule.WithErrorHandler(func(error) {})),
		sink:    trace.NewMemory(),
		counter: counter,
		set: state.NewAction(counter, "set", func(v int) *state.Transaction {
			return counter.Tx(func(*state.StoreState) int { return v })
		}),
	}

	root, err := store.New([]state.AnySlice{counter},
		store.WithName("root"),
		store.WithScheduler(f.sched),
		store.WithDebug(f.sink),
		store.WithLogger(logger),
	)
	require.NoError(t, err)
	t.Cleanup(root.Destroy)
	f.root = root
	return f
}

func TestOperation_RunDispatchesThroughRoot(t *testing.T) {
	f := newFixture(t)
	setTo := Define(Options{Name: "set-to"}, func(ctx context.Context, s *Store, v int) error {
		return s.Dispatch(f.set.Call(v))
	})

	op := setTo.New(7)
	assert.Equal(t, "set-to", op.Name())
	assert.Equal(t, "false", op.Meta()["deferred"])

	op.Run(f.root)
	assert.Equal(t, 0, f.counter.Get(f.root.State()), "run is scheduled, not synchronous")

	require.NoError(t, f.sched.Flush())
	assert.Equal(t, 7, f.counter.Get(f.root.State()))

	ops := f.sink.Filter(trace.TypeOperation)
	require.Len(t, ops, 1)
	assert.Equal(t, "set-to", ops[0].Operation)
	assert.Equal(t, int64(1), ops[0].Run)
	assert.Equal(t, uint64(1), f.root.Stats().OperationRuns)
}

func TestOperation_ExecutorCachedPerStore(t *testing.T) {
	f := newFixture(t)
	def := Define(Options{}, func(ctx context.Context, s *Store, _ struct{}) error { return nil })

	def.New(struct{}{}).Run(f.root)
	def.New(struct{}{}).Run(f.root)
	assert.Equal(t, 1, def.Executors())

	other := newFixture(t)
	def.New(struct{}{}).Run(other.root)
	assert.Equal(t, 2, def.Executors())

	other.root.Destroy()
	assert.Equal(t, 1, def.Executors(), "destroying a store drops its executor")
}

func TestOperation_PreviousCleanupsRunOnceBeforeNext(t *testing.T) {
	f := newFixture(t)
	var events testutil.Events
	def := Define(Options{Name: "load"}, func(ctx context.Context, s *Store, id string) error {
		events.Add("start:"+id)
		s.Cleanup(func() { events.Add("cleanup:"+id) })
		return nil
	})

	def.New("a").Run(f.root)
	require.NoError(t, f.sched.Flush())
	def.New("b").Run(f.root)
	require.NoError(t, f.sched.Flush())

	assert.Equal(t, []string{"start:a", "cleanup:a", "start:b"}, events.All())

	f.root.Destroy()
	assert.Equal(t, []string{"start:a", "cleanup:a", "start:b", "cleanup:b"}, events.All())
}

func TestOperation_SupersededContextCancelled(t *testing.T) {
	f := newFixture(t)
	var stores []*Store
	def := Define(Options{}, func(ctx context.Context, s *Store, _ int) error {
		stores = append(stores, s)
		return nil
	})

	def.New(1).Run(f.root)
	def.New(2).Run(f.root)
	require.NoError(t, f.sched.Flush())

	require.Len(t, stores, 2)
	assert.ErrorIs(t, stores[0].Context().Err(), context.Canceled)
	assert.True(t, stores[0].Destroyed())
	assert.NoError(t, stores[1].Context().Err())
	assert.Equal(t, int64(2), stores[1].Run())

	// A superseded invocation can no longer dispatch.
	require.NoError(t, stores[0].Dispatch(f.set.Call(99)))
	assert.Equal(t, 0, f.counter.Get(f.root.State()))
}

func TestOperation_SkippedWhenStoreDestroyed(t *testing.T) {
	f := newFixture(t)
	runs := 0
	def := Define(Options{}, func(ctx context.Context, s *Store, _ int) error {
		runs++
		return nil
	})

	// Destroyed after scheduling, before running.
	def.New(1).Run(f.root)
	f.root.Destroy()
	require.NoError(t, f.sched.Flush())
	assert.Equal(t, 0, runs)

	// Destroyed before scheduling.
	def.New(2).Run(f.root)
	require.NoError(t, f.sched.Flush())
	assert.Equal(t, 0, runs)
}

func TestOperation_ResultDiscardedWhenDestroyedMidRun(t *testing.T) {
	f := newFixture(t)
	def := Define(Options{}, func(ctx context.Context, s *Store, _ int) error {
		f.root.Destroy()
		assert.ErrorIs(t, ctx.Err(), context.Canceled)
		return errors.New("failed while tearing down")
	})

	def.New(1).Run(f.root)

	assert.NoError(t, f.sched.Flush(), "failures during teardown are logged, not surfaced")
}

func TestOperation_MainCallbackErrorSurfaces(t *testing.T) {
	f := newFixture(t)
	errLoad := errors.New("load failed")
	def := Define(Options{Name: "load"}, func(ctx context.Context, s *Store, _ int) error {
		return errLoad
	})

	def.New(1).Run(f.root)

	err := f.sched.Flush()
	assert.ErrorIs(t, err, errLoad)
	assert.Contains(t, err.Error(), "operation load")
}

func TestOperation_LateCleanupRunsImmediately(t *testing.T) {
	f := newFixture(t)
	var first *Store
	def := Define(Options{}, func(ctx context.Context, s *Store, _ int) error {
		if first == nil {
			first = s
		}
		return nil
	})
	def.New(1).Run(f.root)
	def.New(2).Run(f.root)
	require.NoError(t, f.sched.Flush())

	ran := false
	first.Cleanup(func() { ran = true })
	assert.True(t, ran)
}

func TestOperation_Deferred(t *testing.T) {
	f := newFixture(t)
	var order []string
	low := Define(Options{Name: "low", Deferred: true}, func(ctx context.Context, s *Store, _ int) error {
		order = append(order, "low")
		return nil
	})
	high := Define(Options{Name: "high"}, func(ctx context.Context, s *Store, _ int) error {
		order = append(order, "high")
		return nil
	})

	assert.Equal(t, DefaultMaxWait, low.Options().MaxWait)

	low.New(0).Run(f.root)
	high.New(0).Run(f.root)
	require.NoError(t, f.sched.FlushImmediate())
	assert.Equal(t, []string{"high"}, order)

	require.NoError(t, f.sched.Flush())
	assert.Equal(t, []string{"high", "low"}, order)
}

func TestDefine_Defaults(t *testing.T) {
	def := Define(Options{}, func(ctx context.Context, s *Store, _ int) error { return nil })

	assert.Equal(t, DefaultName, def.Name())
	assert.Equal(t, DefaultMaxWait, def.Options().MaxWait)
}
