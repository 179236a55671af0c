// Package schedule decides when effect and operation callbacks run.
//
// A Scheduler accepts two classes of work. Immediate tasks run as soon as
// the scheduler gets to them, in FIFO order. Deferred tasks run once the
// scheduler has been idle for a short while, and in any case no later than
// their maxWait.
//
// Two implementations are provided:
//
//   - Loop is the production scheduler: a single goroutine started with
//     Run(ctx) executes every task, so callbacks never run concurrently with
//     one another.
//   - Manual queues tasks until Flush is called. Tests and the scenario
//     harness use it for deterministic ordering.
package schedule
