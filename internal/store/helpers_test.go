package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bangle-io/nalanda-sub001/internal/ident"
	"github.com/bangle-io/nalanda-sub001/internal/schedule"
	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/bangle-io/nalanda-sub001/internal/testutil"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

type oneState struct {
	KeyOne string
}

type twoState struct {
	KeyTwo string
}

// fixture is the sliceOne/sliceTwo store most tests use.
type fixture struct {
	store    *Store
	sched    *schedule.Manual
	sink     *trace.Memory
	reg      *state.Registry
	sliceOne *state.Slice[*oneState]
	sliceTwo *state.Slice[*twoState]
	setOne   *state.Action[string]
	setTwo   *state.Action[string]
	keepOne  *state.Action[struct{}]
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg := state.NewRegistry()
	sliceOne := state.NewSlice(reg, "sliceOne", &oneState{KeyOne: "valueOne"})
	sliceTwo := state.NewSlice(reg, "sliceTwo", &twoState{KeyTwo: "valueTwo"})

	f := &fixture{
		sched:    schedule.NewManual(schedule.WithLogger(testutil.QuietLogger()), schedule.WithErrorHandler(func(error) {})),
		sink:     trace.NewMemory(),
		reg:      reg,
		sliceOne: sliceOne,
		sliceTwo: sliceTwo,
	}
	f.setOne = state.NewAction(sliceOne, "setOne", func(v string) *state.Transaction {
		return sliceOne.Tx(func(st *state.StoreState) *oneState { return &oneState{KeyOne: v} })
	})
	f.setTwo = state.NewAction(sliceTwo, "setTwo", func(v string) *state.Transaction {
		return sliceTwo.Tx(func(st *state.StoreState) *twoState { return &twoState{KeyTwo: v} })
	})
	f.keepOne = state.NewAction(sliceOne, "keepOne", func(struct{}) *state.Transaction {
		return sliceOne.Tx(func(st *state.StoreState) *oneState { return sliceOne.Get(st) })
	})

	base := []Option{
		WithName("main"),
		WithScheduler(f.sched),
		WithDebug(f.sink),
		WithLogger(testutil.QuietLogger()),
		WithIDGenerator(ident.NewFixedGenerator("store-1")),
	}
	s, err := New([]state.AnySlice{sliceOne, sliceTwo}, append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	f.store = s
	return f
}
