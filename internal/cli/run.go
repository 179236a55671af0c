package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bangle-io/nalanda-sub001/internal/harness"
	"github.com/bangle-io/nalanda-sub001/internal/tracelog"
)

// RunResult is the outcome of one scenario run.
type RunResult struct {
	Name       string           `json:"name"`
	Pass       bool             `json:"pass"`
	Errors     []string         `json:"errors,omitempty"`
	Records    int              `json:"records"`
	EffectRuns map[string]int64 `json:"effect_runs,omitempty"`
	Snapshot   map[string]any   `json:"snapshot"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run one scenario against a fresh store",
		Long: `Run a scenario file: declare its slices, register its effects,
execute its steps on a manual scheduler and evaluate its assertions.

With --trace-db the store's trace is also written to a SQLite database,
readable with "nalanda trace".

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (unreadable scenario, invalid slices, database error)

Examples:
  nalanda run ./scenarios/counter.yaml
  nalanda run ./scenarios/counter.yaml --trace-db ./trace.db
  NALANDA_TRACE_DB=./trace.db nalanda run ./scenarios/counter.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioFile(rootOpts, args[0], cmd)
		},
	}

	cmd.Flags().String("trace-db", "", "write the trace to this SQLite database")
	return cmd
}

func runScenarioFile(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	logger := opts.Logger(cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		return f.Fail(ExitCommandError, CodeScenario, "cannot load scenario", err)
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if dbPath := opts.String("trace-db"); dbPath != "" {
		tl, err := tracelog.Open(dbPath, tracelog.WithLogger(logger))
		if err != nil {
			return f.Fail(ExitCommandError, CodeTraceDB, "cannot open trace database", err)
		}
		defer tl.Close()
		runOpts = append(runOpts, harness.WithSink(tl))
		f.VerboseLog("Writing trace to %s", dbPath)
	}

	result, err := harness.Run(scenario, runOpts...)
	if err != nil {
		return f.Fail(ExitCommandError, CodeScenario, "cannot run scenario", err)
	}

	out := RunResult{
		Name:       scenario.Name,
		Pass:       result.Pass,
		Errors:     result.Errors,
		Records:    len(result.Trace),
		EffectRuns: result.EffectRuns,
		Snapshot:   make(map[string]any, len(result.Snapshot)),
	}
	for name, rec := range result.Snapshot {
		out.Snapshot[name] = map[string]any(rec)
	}

	if f.JSON() {
		if err := f.Success(out); err != nil {
			return err
		}
	} else {
		printRunResult(f, out)
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed with %d error(s)", out.Name, len(out.Errors)))
	}
	return nil
}

func printRunResult(f *OutputFormatter, r RunResult) {
	if r.Pass {
		fmt.Fprintf(f.Writer, "✓ %s (%d trace records)\n", r.Name, r.Records)
		return
	}
	fmt.Fprintf(f.Writer, "✗ %s\n", r.Name)
	for _, e := range r.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e)
	}
}
