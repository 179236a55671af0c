// Package operation runs cancellable, store-scoped tasks.
//
// Define turns a callback into a Definition. Calling New on it with
// parameters yields an Operation value; Run(root) schedules the callback on
// the root store's scheduler. Each (root store, Definition) pair owns one
// executor, cached in a concurrent map and dropped when the store is
// destroyed.
//
// Every invocation receives a fresh Store façade with its own cleanup set
// and context. Before the next invocation starts, the previous façade is
// torn down: its context is cancelled and its cleanups run exactly once. If
// the root store is destroyed before the callback starts, the run is
// skipped; if it is destroyed while the callback is running, the callback's
// result is discarded.
package operation
