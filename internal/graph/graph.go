package graph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCycle indicates the dependency declarations contain a cycle.
	ErrCycle = errors.New("cyclic dependency")

	// ErrMissingDependency indicates a node depends on an id that is not part
	// of the node set.
	ErrMissingDependency = errors.New("missing dependency")
)

// Node is one vertex of the dependency graph: an id and the ids it depends on.
type Node struct {
	ID   string
	Deps []string
}

// CycleError describes one cycle found by Validate.
type CycleError struct {
	// Path is the cycle traversal, first element repeated at the end:
	// ["a", "b", "a"].
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// ReverseDependencies maps every node id to the full transitive set of ids
// that depend on it. Nodes nobody depends on map to an empty slice.
//
// Result slices are ordered by the nodes' position in the input, so the
// output is deterministic for a given declaration order.
func ReverseDependencies(nodes []Node) map[string][]string {
	order := make(map[string]int, len(nodes))
	for i, n := range nodes {
		order[n.ID] = i
	}

	direct := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		for _, dep := range n.Deps {
			direct[dep] = append(direct[dep], n.ID)
		}
	}

	memo := make(map[string]map[string]bool, len(nodes))
	var closure func(id string) map[string]bool
	closure = func(id string) map[string]bool {
		if set, ok := memo[id]; ok {
			return set
		}
		set := make(map[string]bool)
		// Seed before recursing so malformed (cyclic) input terminates.
		memo[id] = set
		for _, dependent := range direct[id] {
			set[dependent] = true
			for transitive := range closure(dependent) {
				set[transitive] = true
			}
		}
		return set
	}

	result := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		set := closure(n.ID)
		ids := make([]string, 0, len(set))
		for id := range set {
			if id == n.ID {
				continue
			}
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			return order[ids[i]] < order[ids[j]]
		})
		result[n.ID] = ids
	}
	return result
}

// Validate checks that every dependency refers to a known node and that the
// graph is acyclic. The first problem found is returned; cycles are reported
// as *CycleError.
func Validate(nodes []Node) error {
	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.ID] = true
	}

	g := make(dependencyGraph, len(nodes))
	var ids []string
	for _, n := range nodes {
		ids = append(ids, n.ID)
		g[n.ID] = []string{}
		for _, dep := range n.Deps {
			if !known[dep] {
				return fmt.Errorf("%s depends on %s: %w", n.ID, dep, ErrMissingDependency)
			}
			g[n.ID] = append(g[n.ID], dep)
		}
	}

	for _, scc := range tarjanSCC(g, ids) {
		if len(scc) > 1 || hasSelfLoop(scc[0], g) {
			return &CycleError{Path: reconstructCyclePath(scc, g)}
		}
	}
	return nil
}

// dependencyGraph maps node id -> ids it depends on.
type dependencyGraph map[string][]string

func hasSelfLoop(node string, g dependencyGraph) bool {
	for _, neighbor := range g[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in the given order so results are deterministic.
func tarjanSCC(g dependencyGraph, order []string) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside an SCC from its first member until
// it returns to the start.
func reconstructCyclePath(scc []string, g dependencyGraph) []string {
	if len(scc) == 1 {
		return []string{scc[0], scc[0]}
	}

	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range g[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
