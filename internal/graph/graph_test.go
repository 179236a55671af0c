package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseDependencies_Empty(t *testing.T) {
	assert.Empty(t, ReverseDependencies(nil))
}

func TestReverseDependencies_Chain(t *testing.T) {
	// C depends on B depends on A.
	nodes := []Node{
		{ID: "A"},
		{ID: "B", Deps: []string{"A"}},
		{ID: "C", Deps: []string{"B"}},
	}

	rev := ReverseDependencies(nodes)

	assert.Equal(t, []string{"B", "C"}, rev["A"], "A's closure must include transitive dependent C")
	assert.Equal(t, []string{"C"}, rev["B"])
	assert.Empty(t, rev["C"])
}

func TestReverseDependencies_Diamond(t *testing.T) {
	//     A
	//    / \
	//   B   C
	//    \ /
	//     D
	nodes := []Node{
		{ID: "A"},
		{ID: "B", Deps: []string{"A"}},
		{ID: "C", Deps: []string{"A"}},
		{ID: "D", Deps: []string{"B", "C"}},
	}

	rev := ReverseDependencies(nodes)

	assert.Equal(t, []string{"B", "C", "D"}, rev["A"], "shared descendant listed once")
	assert.Equal(t, []string{"D"}, rev["B"])
	assert.Equal(t, []string{"D"}, rev["C"])
	assert.Empty(t, rev["D"])
}

func TestReverseDependencies_DisconnectedNodes(t *testing.T) {
	nodes := []Node{{ID: "A"}, {ID: "B"}}

	rev := ReverseDependencies(nodes)

	require.Contains(t, rev, "A")
	require.Contains(t, rev, "B")
	assert.Empty(t, rev["A"])
	assert.Empty(t, rev["B"])
}

func TestReverseDependencies_TerminatesOnCycle(t *testing.T) {
	nodes := []Node{
		{ID: "A", Deps: []string{"B"}},
		{ID: "B", Deps: []string{"A"}},
	}

	rev := ReverseDependencies(nodes)
	assert.Contains(t, rev["A"], "B")
}

func TestValidate_DAG(t *testing.T) {
	nodes := []Node{
		{ID: "A"},
		{ID: "B", Deps: []string{"A"}},
		{ID: "C", Deps: []string{"A", "B"}},
	}
	assert.NoError(t, Validate(nodes))
}

func TestValidate_MissingDependency(t *testing.T) {
	nodes := []Node{{ID: "B", Deps: []string{"A"}}}

	err := Validate(nodes)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingDependency))
}

func TestValidate_SelfLoop(t *testing.T) {
	err := Validate([]Node{{ID: "A", Deps: []string{"A"}}})

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"A", "A"}, cycle.Path)
	assert.True(t, errors.Is(err, ErrCycle))
}

func TestValidate_ThreeNodeCycle(t *testing.T) {
	nodes := []Node{
		{ID: "A", Deps: []string{"B"}},
		{ID: "B", Deps: []string{"C"}},
		{ID: "C", Deps: []string{"A"}},
	}

	err := Validate(nodes)

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	require.Len(t, cycle.Path, 4)
	assert.Equal(t, cycle.Path[0], cycle.Path[3], "path should close the loop")
	assert.Contains(t, err.Error(), "->")
}
