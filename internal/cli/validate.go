package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bangle-io/nalanda-sub001/internal/declare"
	"github.com/bangle-io/nalanda-sub001/internal/state"
)

// SliceInfo describes one validated slice.
type SliceInfo struct {
	Name       string   `json:"name"`
	ID         string   `json:"id"`
	Deps       []string `json:"deps,omitempty"`
	Dependents []string `json:"dependents,omitempty"`
	Line       int      `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Slices []SliceInfo `json:"slices"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <slices-dir>",
		Short: "Validate CUE slice declarations",
		Long: `Compile the CUE slice declarations in a directory and build them into
runtime slices, reporting missing dependencies and dependency cycles.

On success every slice is listed with its id, its direct dependencies and
the full set of slices that depend on it.

Exit codes:
  0 - All declarations valid
  1 - Declarations invalid
  2 - Command error (directory missing, no CUE files)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	catalog, err := loadCatalog(dir)
	if err != nil {
		return failLoad(f, err)
	}
	f.VerboseLog("Built %d slice(s) from %s", len(catalog.Names()), dir)

	result := ValidationResult{Valid: true}
	reverse := catalog.ReverseDependencies()
	for _, name := range catalog.Names() {
		sl, _ := catalog.Get(name)
		info := SliceInfo{
			Name:       name,
			ID:         string(sl.Slice.ID()),
			Deps:       sl.Decl.Deps,
			Dependents: reverse[name],
		}
		if sl.Decl.Pos.IsValid() {
			info.Line = sl.Decl.Pos.Line()
		}
		result.Slices = append(result.Slices, info)
	}

	if f.JSON() {
		return f.Success(result)
	}

	fmt.Fprintf(f.Writer, "✓ %d slice(s) valid\n", len(result.Slices))
	for _, s := range result.Slices {
		fmt.Fprintf(f.Writer, "  %s (%s)\n", s.Name, s.ID)
		if len(s.Deps) > 0 {
			fmt.Fprintf(f.Writer, "    deps: %v\n", s.Deps)
		}
		if len(s.Dependents) > 0 {
			fmt.Fprintf(f.Writer, "    dependents: %v\n", s.Dependents)
		}
	}
	return nil
}

// loadError distinguishes unreadable input from invalid declarations.
type loadError struct {
	notFound bool
	err      error
}

func (e *loadError) Error() string { return e.err.Error() }
func (e *loadError) Unwrap() error { return e.err }

// loadCatalog compiles and builds the declarations in dir on a fresh
// registry.
func loadCatalog(dir string) (*declare.Catalog, error) {
	decls, err := declare.LoadDir(dir)
	if err != nil {
		return nil, &loadError{notFound: errors.Is(err, declare.ErrNotFound), err: err}
	}
	return declare.Build(state.NewRegistry(), decls)
}

// failLoad reports an error from loadCatalog with the matching exit code.
func failLoad(f *OutputFormatter, err error) error {
	var le *loadError
	if errors.As(err, &le) && le.notFound {
		return f.Fail(ExitCommandError, CodeNotFound, "cannot load declarations", err)
	}
	if state.IsConstructionError(err) {
		return f.Fail(ExitFailure, CodeConstruction, "invalid slice graph", err)
	}
	return f.Fail(ExitFailure, CodeCompile, "invalid declarations", err)
}
