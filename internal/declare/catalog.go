package declare

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bangle-io/nalanda-sub001/internal/graph"
	"github.com/bangle-io/nalanda-sub001/internal/state"
)

// Slice is a runtime slice built from a declaration.
type Slice struct {
	Decl  SliceDecl
	Slice *state.Slice[Record]
	// Set merges (or, with Update.Replace, replaces) the slice's record.
	Set *state.Action[Update]

	mu     sync.Mutex
	fields map[string]*state.Field[Record, any]
}

// Field returns the field reading key from the slice's record.
func (s *Slice) Field(key string) *state.Field[Record, any] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fields[key]; ok {
		return f
	}
	f := state.NewField(s.Slice, key, func(r Record) any { return r[key] })
	s.fields[key] = f
	return f
}

// Catalog is the set of slices built from one group of declarations.
type Catalog struct {
	registry *state.Registry
	ordered  []*Slice
	byName   map[string]*Slice
	nodes    []graph.Node
}

// Build creates runtime slices for decls on reg. Dependencies may be
// declared in any order.
//
// Returns a *state.ConstructionError for duplicate names, unknown
// dependencies or dependency cycles.
func Build(reg *state.Registry, decls []SliceDecl) (*Catalog, error) {
	c := &Catalog{
		registry: reg,
		byName:   make(map[string]*Slice, len(decls)),
	}

	declByName := make(map[string]SliceDecl, len(decls))
	for _, d := range decls {
		if _, dup := declByName[d.Name]; dup {
			return nil, &state.ConstructionError{
				Code:    state.CodeDuplicateSlice,
				Message: "slice declared more than once",
				ID:      d.Name,
				Err:     state.ErrDuplicateSlice,
			}
		}
		declByName[d.Name] = d
		c.nodes = append(c.nodes, graph.Node{ID: d.Name, Deps: d.Deps})
	}

	if err := graph.Validate(c.nodes); err != nil {
		code := state.CodeMissingDependency
		if errors.Is(err, graph.ErrCycle) {
			code = state.CodeCyclicDependency
		}
		return nil, &state.ConstructionError{Code: code, Message: err.Error(), Err: err}
	}

	// Dependencies must exist before their dependents are constructed.
	var create func(name string) *Slice
	create = func(name string) *Slice {
		if s, ok := c.byName[name]; ok {
			return s
		}
		d := declByName[name]
		deps := make([]state.AnySlice, 0, len(d.Deps))
		for _, dep := range d.Deps {
			deps = append(deps, create(dep).Slice)
		}

		sl := state.NewSlice(reg, d.Name, d.State, deps...)
		s := &Slice{
			Decl:   d,
			Slice:  sl,
			fields: make(map[string]*state.Field[Record, any]),
		}
		s.Set = state.NewAction(sl, "set", func(u Update) *state.Transaction {
			return sl.Tx(func(st *state.StoreState) Record {
				if u.Replace {
					return Replace(sl.Get(st), u.Values)
				}
				return Merge(sl.Get(st), u.Values)
			})
		})
		c.byName[name] = s
		return s
	}

	for _, d := range decls {
		c.ordered = append(c.ordered, create(d.Name))
	}
	return c, nil
}

// Registry returns the registry the slices were built on.
func (c *Catalog) Registry() *state.Registry { return c.registry }

// Slices returns the runtime slices in declaration order.
func (c *Catalog) Slices() []state.AnySlice {
	out := make([]state.AnySlice, len(c.ordered))
	for i, s := range c.ordered {
		out[i] = s.Slice
	}
	return out
}

// Names returns the slice names in declaration order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.ordered))
	for i, s := range c.ordered {
		out[i] = s.Decl.Name
	}
	return out
}

// Get returns the slice declared as name.
func (c *Catalog) Get(name string) (*Slice, bool) {
	s, ok := c.byName[name]
	return s, ok
}

// Lookup is Get that returns an error naming the missing slice.
func (c *Catalog) Lookup(name string) (*Slice, error) {
	s, ok := c.byName[name]
	if !ok {
		known := c.Names()
		sort.Strings(known)
		return nil, fmt.Errorf("unknown slice %q (known: %v)", name, known)
	}
	return s, nil
}

// ReverseDependencies maps each slice name to every slice that depends on
// it, directly or transitively.
func (c *Catalog) ReverseDependencies() map[string][]string {
	return graph.ReverseDependencies(c.nodes)
}

// Snapshot returns every slice's record in st, keyed by slice name.
func (c *Catalog) Snapshot(st *state.StoreState) (map[string]Record, error) {
	out := make(map[string]Record, len(c.ordered))
	for _, s := range c.ordered {
		r, err := s.Slice.Lookup(st)
		if err != nil {
			return nil, err
		}
		out[s.Decl.Name] = r
	}
	return out, nil
}
