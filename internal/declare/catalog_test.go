package declare

import (
	"errors"
	"testing"

	"github.com/bangle-io/nalanda-sub001/internal/graph"
	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, src string) *Catalog {
	t.Helper()
	decls, err := CompileString(src)
	require.NoError(t, err)
	c, err := Build(state.NewRegistry(), decls)
	require.NoError(t, err)
	return c
}

func TestMerge(t *testing.T) {
	cur := Record{"a": int64(1), "b": "x"}

	t.Run("same values return cur", func(t *testing.T) {
		got := Merge(cur, Record{"a": int64(1)})
		assert.True(t, state.Same(cur, got))
	})

	t.Run("changed value copies", func(t *testing.T) {
		got := Merge(cur, Record{"a": int64(2)})
		assert.False(t, state.Same(cur, got))
		assert.Equal(t, Record{"a": int64(2), "b": "x"}, got)
		assert.Equal(t, int64(1), cur["a"])
	})

	t.Run("new key copies", func(t *testing.T) {
		got := Merge(cur, Record{"c": true})
		assert.Equal(t, Record{"a": int64(1), "b": "x", "c": true}, got)
	})
}

func TestReplace(t *testing.T) {
	cur := Record{"a": int64(1)}

	assert.True(t, state.Same(cur, Replace(cur, Record{"a": int64(1)})))
	assert.Equal(t, Record{"b": int64(1)}, Replace(cur, Record{"b": int64(1)}))
	assert.Equal(t, Record{}, Replace(cur, Record{}))
}

func TestBuildDependencyOrder(t *testing.T) {
	// Dependents may be declared before their dependencies.
	c := mustBuild(t, `
		slice: total: {state: {sum: 0}, deps: ["counter"]}
		slice: counter: state: {count: 0}
	`)

	assert.Equal(t, []string{"total", "counter"}, c.Names())

	total, ok := c.Get("total")
	require.True(t, ok)
	deps := total.Slice.Dependencies()
	require.Len(t, deps, 1)
	assert.Equal(t, state.SliceID("sl_counter$"), deps[0].ID())

	assert.Equal(t, map[string][]string{
		"total":   {},
		"counter": {"total"},
	}, c.ReverseDependencies())
}

func TestBuildErrors(t *testing.T) {
	t.Run("duplicate", func(t *testing.T) {
		_, err := Build(state.NewRegistry(), []SliceDecl{
			{Name: "a", State: Record{}},
			{Name: "a", State: Record{}},
		})
		assert.True(t, state.IsConstructionErrorCode(err, state.CodeDuplicateSlice))
	})

	t.Run("missing dependency", func(t *testing.T) {
		_, err := Build(state.NewRegistry(), []SliceDecl{
			{Name: "a", State: Record{}, Deps: []string{"ghost"}},
		})
		assert.True(t, state.IsConstructionErrorCode(err, state.CodeMissingDependency))
		assert.True(t, errors.Is(err, graph.ErrMissingDependency))
	})

	t.Run("cycle", func(t *testing.T) {
		_, err := Build(state.NewRegistry(), []SliceDecl{
			{Name: "a", State: Record{}, Deps: []string{"b"}},
			{Name: "b", State: Record{}, Deps: []string{"a"}},
		})
		assert.True(t, state.IsConstructionErrorCode(err, state.CodeCyclicDependency))
		assert.True(t, errors.Is(err, graph.ErrCycle))
	})
}

func TestSetAction(t *testing.T) {
	c := mustBuild(t, `slice: counter: state: {count: 0, label: "c"}`)
	counter, _ := c.Get("counter")
	assert.Equal(t, state.ActionID("a_set[sl_counter$]"), counter.Set.ID())

	st, err := state.NewStoreState(c.Slices())
	require.NoError(t, err)

	next, err := st.ApplyTransaction(counter.Set.Call(Update{Values: Record{"count": int64(5)}}))
	require.NoError(t, err)
	assert.Equal(t, Record{"count": int64(5), "label": "c"}, counter.Slice.Get(next))
	assert.Equal(t, []state.SliceID{"sl_counter$"}, next.ChangedSlices(st))

	replaced, err := next.ApplyTransaction(counter.Set.Call(Update{Values: Record{"count": int64(1)}, Replace: true}))
	require.NoError(t, err)
	assert.Equal(t, Record{"count": int64(1)}, counter.Slice.Get(replaced))
}

func TestSetActionNoop(t *testing.T) {
	c := mustBuild(t, `slice: counter: state: {count: 0}`)
	counter, _ := c.Get("counter")

	st, err := state.NewStoreState(c.Slices())
	require.NoError(t, err)

	next, err := st.ApplyTransaction(counter.Set.Call(Update{Values: Record{"count": int64(0)}}))
	require.NoError(t, err)
	assert.Same(t, st, next)
}

func TestFieldCached(t *testing.T) {
	c := mustBuild(t, `slice: counter: state: {count: 3}`)
	counter, _ := c.Get("counter")

	f := counter.Field("count")
	assert.Same(t, f, counter.Field("count"))

	st, err := state.NewStoreState(c.Slices())
	require.NoError(t, err)
	assert.Equal(t, int64(3), f.Get(st))
	assert.Nil(t, counter.Field("missing").Get(st))
}

func TestLookupAndSnapshot(t *testing.T) {
	c := mustBuild(t, `
		slice: b: state: {y: 2}
		slice: a: state: {x: 1}
	`)

	_, err := c.Lookup("zzz")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"zzz"`)
	assert.Contains(t, err.Error(), "[a b]")

	st, err := state.NewStoreState(c.Slices())
	require.NoError(t, err)
	snap, err := c.Snapshot(st)
	require.NoError(t, err)
	assert.Equal(t, map[string]Record{
		"a": {"x": int64(1)},
		"b": {"y": int64(2)},
	}, snap)
}
