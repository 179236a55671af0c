// Package effect runs side-effecting callbacks that re-run when the state
// they read changes.
//
// Each time an effect runs, a RunInstance records every slice field the
// callback reads through its Store façade. When the owning store swaps
// snapshots, the Engine asks each effect's latest RunInstance two questions:
// did it read any slice in the affected set, and does any of those reads now
// resolve to a different value (compared with state.Same)? Only effects
// answering yes to both are scheduled again.
//
// Before a re-run, cleanups registered by the previous run execute. Cleanup
// panics are recovered and logged so one failing cleanup never blocks the
// others. Errors returned by the main callback are not swallowed: they are
// returned from the scheduled task and reach the scheduler's error handler.
package effect
