package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bangle-io/nalanda-sub001/internal/harness"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run every scenario in a directory",
		Long: `Run every .yaml/.yml scenario under a directory and compare each
trace against golden/<name>.golden next to the scenario, when present.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  nalanda test ./scenarios
  nalanda test ./scenarios --filter "counter*"
  nalanda test ./scenarios --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(rootOpts, args[0], cmd)
		},
	}

	cmd.Flags().Bool("update", false, "regenerate golden files")
	cmd.Flags().String("filter", "", "filter scenarios by glob pattern on the file name")
	return cmd
}

func runTests(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return f.Fail(ExitCommandError, CodeNotFound, fmt.Sprintf("scenarios directory not found: %s", dir), err)
	}

	files, err := findScenarioFiles(dir, opts.String("filter"))
	if err != nil {
		return f.Fail(ExitCommandError, CodeGeneric, "failed to find scenarios", err)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	update := opts.Bool("update")
	for _, file := range files {
		sr := runOne(opts, file, update, cmd)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if f.JSON() {
		if err := f.Success(result); err != nil {
			return err
		}
	} else {
		if len(files) == 0 {
			fmt.Fprintln(f.Writer, "No scenarios found.")
		}
		for _, sr := range result.Scenarios {
			if sr.Pass {
				fmt.Fprintf(f.Writer, "✓ %s\n", sr.Name)
				continue
			}
			fmt.Fprintf(f.Writer, "✗ %s\n", sr.Name)
			for _, e := range sr.Errors {
				fmt.Fprintf(f.Writer, "  %s\n", e)
			}
		}
		if len(files) > 0 {
			fmt.Fprintf(f.Writer, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
		}
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// runOne executes a single scenario and checks its golden trace.
func runOne(opts *RootOptions, file string, update bool, cmd *cobra.Command) ScenarioResult {
	name := filepath.Base(file)
	fail := func(format string, args ...any) ScenarioResult {
		return ScenarioResult{Name: name, Errors: []string{fmt.Sprintf(format, args...)}}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	name = scenario.Name

	result, err := harness.Run(scenario, harness.WithLogger(opts.Logger(cmd.ErrOrStderr())))
	if err != nil {
		return fail("execution failed: %v", err)
	}

	got, err := trace.MarshalLines(result.Trace)
	if err != nil {
		return fail("encode trace: %v", err)
	}

	goldenPath := goldenFilePath(file, scenario.Name)
	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return fail("failed to update golden file: %v", err)
		}
		if err := os.WriteFile(goldenPath, got, 0644); err != nil {
			return fail("failed to update golden file: %v", err)
		}
	} else if want, err := os.ReadFile(goldenPath); err == nil {
		if !bytes.Equal(want, got) {
			result.AddError("trace does not match golden file (run with --update to regenerate)")
		}
	} else if !os.IsNotExist(err) {
		return fail("golden comparison failed: %v", err)
	}

	return ScenarioResult{Name: name, Pass: result.Pass, Errors: result.Errors}
}

// goldenFilePath returns golden/<name>.golden next to the scenario file.
func goldenFilePath(scenarioFile, name string) string {
	return filepath.Join(filepath.Dir(scenarioFile), "golden", name+".golden")
}
