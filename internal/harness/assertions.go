package harness

import (
	"fmt"
	"strings"

	exprlang "github.com/expr-lang/expr"

	"github.com/bangle-io/nalanda-sub001/internal/state"
	"github.com/bangle-io/nalanda-sub001/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Trace    []trace.Record // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, r := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s%s\n", r.Seq, r.Type, describe(r))
		}
	}
	return buf.String()
}

func describe(r trace.Record) string {
	switch r.Type {
	case trace.TypeTx:
		if r.Noop {
			return fmt.Sprintf(" %s %s (noop)", r.TxID, r.ActionID)
		}
		return fmt.Sprintf(" %s %s changed=%v", r.TxID, r.ActionID, r.Changed)
	case trace.TypeEffect:
		return fmt.Sprintf(" %s run=%d", r.Effect, r.Run)
	case trace.TypeOperation:
		return fmt.Sprintf(" %s run=%d", r.Operation, r.Run)
	}
	return ""
}

// EvaluateAssertions runs every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, h *Harness) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(result, a, h); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(result *Result, a Assertion, h *Harness) error {
	switch a.Type {
	case AssertExpr:
		return assertExpr(result, a)
	case AssertEffectRuns:
		return assertEffectRuns(result, a)
	case AssertUnchanged:
		return assertUnchanged(result, a, h)
	case AssertSnapshotSame:
		return assertSnapshotSame(result, h)
	case AssertTraceCount:
		return assertTraceCount(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertExpr evaluates a boolean expression with every slice's final
// record bound to its name.
func assertExpr(result *Result, a Assertion) error {
	env := make(map[string]any, len(result.Snapshot))
	for name, rec := range result.Snapshot {
		env[name] = map[string]any(rec)
	}

	program, err := exprlang.Compile(a.Expr,
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
		exprlang.AsBool(),
	)
	if err != nil {
		return fmt.Errorf("compile %q: %w", a.Expr, err)
	}
	out, err := exprlang.Run(program, env)
	if err != nil {
		return fmt.Errorf("evaluate %q: %w", a.Expr, err)
	}
	if ok, _ := out.(bool); !ok {
		return &AssertionError{
			Type:     AssertExpr,
			Expected: a.Expr,
			Actual:   fmt.Sprintf("false with snapshot %v", result.Snapshot),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertEffectRuns(result *Result, a Assertion) error {
	runs, ok := result.EffectRuns[a.Effect]
	if !ok {
		return fmt.Errorf("unknown effect %q", a.Effect)
	}
	if runs != int64(*a.Count) {
		return &AssertionError{
			Type:     AssertEffectRuns,
			Expected: fmt.Sprintf("effect %s ran %d times", a.Effect, *a.Count),
			Actual:   fmt.Sprintf("ran %d times", runs),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertUnchanged checks the slice still holds its initial state by
// reference.
func assertUnchanged(result *Result, a Assertion, h *Harness) error {
	sl, err := h.catalog.Lookup(a.Slice)
	if err != nil {
		return err
	}
	before := sl.Slice.Get(h.initial)
	after := sl.Slice.Get(h.store.State())
	if !state.Same(before, after) {
		return &AssertionError{
			Type:     AssertUnchanged,
			Expected: fmt.Sprintf("slice %s keeps its initial state %v", a.Slice, before),
			Actual:   fmt.Sprintf("%v", after),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertSnapshotSame(result *Result, h *Harness) error {
	if h.store.State() != h.initial {
		return &AssertionError{
			Type:     AssertSnapshotSame,
			Expected: fmt.Sprintf("snapshot version %d", h.initial.Version()),
			Actual:   fmt.Sprintf("snapshot version %d", h.store.State().Version()),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertTraceCount(result *Result, a Assertion) error {
	count := 0
	for _, r := range result.Trace {
		if string(r.Type) == a.Record {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s records", *a.Count, a.Record),
			Actual:   fmt.Sprintf("%d records", count),
			Trace:    result.Trace,
		}
	}
	return nil
}
