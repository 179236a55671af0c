package declare

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// SliceDecl is one compiled slice declaration.
type SliceDecl struct {
	Name  string
	State Record
	Deps  []string
	Pos   token.Pos
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileString compiles CUE source text.
func CompileString(src string) ([]SliceDecl, error) {
	v := cuecontext.New().CompileString(src)
	return Compile(v)
}

// LoadDir loads every .cue file in dir as one CUE instance and compiles it.
func LoadDir(dir string) ([]SliceDecl, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", ErrNotFound, dir)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.cue"))
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no CUE files found in %s", ErrNotFound, dir)
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, formatCUEError(inst.Err)
	}

	v := cuecontext.New().BuildInstance(inst)
	return Compile(v)
}

// Compile extracts slice declarations from the "slice" struct of v, in
// declaration order.
func Compile(v cue.Value) ([]SliceDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	slicesVal := v.LookupPath(cue.ParsePath("slice"))
	if !slicesVal.Exists() {
		return nil, &CompileError{Field: "slice", Message: "no slices declared", Pos: v.Pos()}
	}

	iter, err := slicesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []SliceDecl
	for iter.Next() {
		decl, err := CompileSlice(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		decls = append(decls, *decl)
	}
	return decls, nil
}

// CompileSlice compiles one slice declaration named name.
func CompileSlice(name string, v cue.Value) (*SliceDecl, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	decl := &SliceDecl{Name: name, Pos: v.Pos()}

	stateVal := v.LookupPath(cue.ParsePath("state"))
	if !stateVal.Exists() {
		return nil, &CompileError{
			Field:   "slice." + name + ".state",
			Message: "state is required",
			Pos:     v.Pos(),
		}
	}
	if err := stateVal.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}
	if stateVal.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{
			Field:   "slice." + name + ".state",
			Message: "state must be a struct",
			Pos:     stateVal.Pos(),
		}
	}
	raw, err := toGo(stateVal)
	if err != nil {
		return nil, err
	}
	decl.State = Record(raw.(map[string]any))

	depsVal := v.LookupPath(cue.ParsePath("deps"))
	if depsVal.Exists() {
		list, err := depsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			dep, err := list.Value().String()
			if err != nil {
				return nil, &CompileError{
					Field:   "slice." + name + ".deps",
					Message: "dependencies must be slice names",
					Pos:     list.Value().Pos(),
				}
			}
			decl.Deps = append(decl.Deps, dep)
		}
	}

	return decl, nil
}

// toGo converts a concrete CUE value into plain Go values: string, int64,
// float64, bool, nil, []any and map[string]any.
func toGo(v cue.Value) (any, error) {
	switch v.IncompleteKind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		return v.Bool()
	case cue.StringKind:
		return v.String()
	case cue.IntKind:
		return v.Int64()
	case cue.FloatKind, cue.NumberKind:
		return v.Float64()
	case cue.ListKind:
		list, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for list.Next() {
			elem, err := toGo(list.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, elem)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			elem, err := toGo(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = elem
		}
		return out, nil
	default:
		return nil, &CompileError{
			Field:   "state",
			Message: fmt.Sprintf("unsupported value kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
