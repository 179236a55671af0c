package harness

import (
	"github.com/bangle-io/nalanda-sub001/internal/declare"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every record the store emitted, in order.
	Trace []trace.Record `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the final state of every slice, keyed by slice name.
	Snapshot map[string]declare.Record `json:"snapshot,omitempty"`

	// EffectRuns is the number of runs of each effect, keyed by name.
	EffectRuns map[string]int64 `json:"effect_runs,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:       true,
		Trace:      []trace.Record{},
		Errors:     []string{},
		Snapshot:   make(map[string]declare.Record),
		EffectRuns: make(map[string]int64),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
