// Package harness runs conformance scenarios against a real store.
//
// A scenario declares slices in CUE, registers effects that read declared
// fields, dispatches set actions, flushes the scheduler and then asserts on
// the final snapshot, effect run counts and the store's trace:
//
//	name: counter
//	description: effect re-runs only when its field changes
//	slices: |
//	  slice: counter: state: {count: 0}
//	  slice: other: state: {x: 0}
//	effects:
//	  - name: watch
//	    reads: [counter.count]
//	steps:
//	  - flush: true
//	  - dispatch: {slice: counter, set: {count: 1}}
//	  - dispatch: {slice: other, set: {x: 1}}
//	  - flush: true
//	assertions:
//	  - type: expr
//	    expr: counter.count == 1
//	  - type: effect_runs
//	    effect: watch
//	    count: 2
//
// Scenarios run on schedule.Manual so execution is deterministic; the
// trace of every run can be compared against a golden file with
// RunWithGolden.
package harness
