package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It is also the store name and
	// the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Slices is inline CUE declaring the scenario's slices.
	Slices string `yaml:"slices,omitempty"`

	// SlicesDir is a directory of CUE files declaring the slices, relative
	// to the scenario file. Exactly one of Slices and SlicesDir is set.
	SlicesDir string `yaml:"slices_dir,omitempty"`

	// Effects are registered, in order, before the first step.
	Effects []EffectSpec `yaml:"effects,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated after the steps and a final flush.
	Assertions []Assertion `yaml:"assertions"`
}

// EffectSpec declares an effect that tracks reads of slice fields.
type EffectSpec struct {
	Name string `yaml:"name"`

	// Reads lists "slice.key" field reads, or "slice" for a whole-state read.
	Reads []string `yaml:"reads"`

	// Deferred schedules re-runs on the deferred class.
	Deferred bool `yaml:"deferred,omitempty"`

	// CopyTo is an optional "slice.key" target: each run sets it to the
	// value of the first read.
	CopyTo string `yaml:"copy_to,omitempty"`
}

// Step is one scenario step. Exactly one of Dispatch, Batch and Flush is set.
type Step struct {
	// Dispatch dispatches one set action.
	Dispatch *SetCall `yaml:"dispatch,omitempty"`

	// Batch appends several set actions into one transaction.
	Batch []SetCall `yaml:"batch,omitempty"`

	// Flush runs the scheduler until it is idle.
	Flush bool `yaml:"flush,omitempty"`

	// Noop, when set, asserts whether the dispatch left the snapshot
	// unchanged.
	Noop *bool `yaml:"noop,omitempty"`
}

// SetCall is a call of a slice's set action.
type SetCall struct {
	Slice   string         `yaml:"slice"`
	Set     map[string]any `yaml:"set"`
	Replace bool           `yaml:"replace,omitempty"`
}

// Assertion validates the outcome of a scenario.
type Assertion struct {
	// Type specifies the assertion type:
	// - "expr": Expr evaluates to true over the final snapshot
	// - "effect_runs": effect Effect ran exactly Count times
	// - "unchanged": slice Slice holds the same state it started with
	// - "snapshot_same": the final snapshot is the initial snapshot
	// - "trace_count": the trace holds Count records of type Record
	Type string `yaml:"type"`

	Expr   string `yaml:"expr,omitempty"`
	Effect string `yaml:"effect,omitempty"`
	Slice  string `yaml:"slice,omitempty"`
	Record string `yaml:"record,omitempty"`
	Count  *int   `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertExpr         = "expr"
	AssertEffectRuns   = "effect_runs"
	AssertUnchanged    = "unchanged"
	AssertSnapshotSame = "snapshot_same"
	AssertTraceCount   = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. SlicesDir is resolved
// relative to the file's directory.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields, or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.SlicesDir != "" && !filepath.IsAbs(scenario.SlicesDir) {
		scenario.SlicesDir = filepath.Join(filepath.Dir(path), scenario.SlicesDir)
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if (s.Slices == "") == (s.SlicesDir == "") {
		return fmt.Errorf("exactly one of slices and slices_dir is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(s.Effects))
	for i, e := range s.Effects {
		if e.Name == "" {
			return fmt.Errorf("effects[%d]: name is required", i)
		}
		if seen[e.Name] {
			return fmt.Errorf("effects[%d]: duplicate effect name %q", i, e.Name)
		}
		seen[e.Name] = true
		for j, r := range e.Reads {
			if _, _, err := splitRef(r); err != nil {
				return fmt.Errorf("effects[%d].reads[%d]: %w", i, j, err)
			}
		}
		if e.CopyTo != "" {
			if len(e.Reads) == 0 {
				return fmt.Errorf("effects[%d]: copy_to requires at least one read", i)
			}
			if _, key, err := splitRef(e.CopyTo); err != nil || key == "" {
				return fmt.Errorf("effects[%d]: copy_to must be slice.key", i)
			}
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	kinds := 0
	if s.Dispatch != nil {
		kinds++
	}
	if len(s.Batch) > 0 {
		kinds++
	}
	if s.Flush {
		kinds++
	}
	if kinds != 1 {
		return fmt.Errorf("steps[%d]: exactly one of dispatch, batch and flush is required", index)
	}
	if s.Noop != nil && s.Flush {
		return fmt.Errorf("steps[%d]: noop applies to dispatch and batch steps", index)
	}

	calls := s.Batch
	if s.Dispatch != nil {
		calls = []SetCall{*s.Dispatch}
	}
	for j, c := range calls {
		if c.Slice == "" {
			return fmt.Errorf("steps[%d]: call %d: slice is required", index, j)
		}
		if c.Set == nil {
			return fmt.Errorf("steps[%d]: call %d: set is required (use empty map to clear with replace)", index, j)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertExpr:
		if a.Expr == "" {
			return fmt.Errorf("assertions[%d]: expr is required for expr", index)
		}
	case AssertEffectRuns:
		if a.Effect == "" {
			return fmt.Errorf("assertions[%d]: effect is required for effect_runs", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for effect_runs", index)
		}
	case AssertUnchanged:
		if a.Slice == "" {
			return fmt.Errorf("assertions[%d]: slice is required for unchanged", index)
		}
	case AssertSnapshotSame:
	case AssertTraceCount:
		switch a.Record {
		case "TX", "EFFECT", "OPERATION":
		default:
			return fmt.Errorf("assertions[%d]: record must be TX, EFFECT or OPERATION for trace_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// splitRef splits "slice.key" into its parts. A bare "slice" has an empty
// key.
func splitRef(ref string) (slice, key string, err error) {
	slice, key, _ = strings.Cut(ref, ".")
	if slice == "" {
		return "", "", fmt.Errorf("invalid reference %q", ref)
	}
	return slice, key, nil
}
