// Package state implements slices, immutable store snapshots and the
// transaction pipeline that moves a store from one snapshot to the next.
//
// # Slices
//
// A Slice[T] is a named, independently addressable unit of state with an
// initial value and a list of slices it depends on. Slices are built once
// against a Registry and never change afterwards. Fields and Derived values
// hang off a slice and give effects something fine-grained to track.
//
// # Snapshots
//
// StoreState maps slice ids to their current value. It is immutable: the
// only way to get a new snapshot is ApplyTransaction. Entries live in a
// persistent radix tree, so a step that changes one slice allocates a new
// root path and shares every other entry with the previous snapshot. A step
// whose result is Same as the previous value allocates nothing and the same
// *StoreState is returned.
//
// Every snapshot carries a Version drawn from a process-wide monotonic
// clock. Memoization caches key on the version, never on pointer identity.
//
// # Transactions
//
// A Transaction is an ordered list of steps, each targeting one slice. Steps
// see the snapshot produced by the previous step. A transaction can be
// applied exactly once; composing transactions with Append consumes the
// originals too.
package state
