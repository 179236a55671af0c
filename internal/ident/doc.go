// Package ident produces collision-free identifiers for slices, actions,
// transactions and stores.
//
// Identifiers come from two sources:
//
//   - Registry hands out human-readable ids derived from a name or hint and
//     disambiguated by a per-hint counter (sl_counter$, sl_counter$1, ...).
//     A registry is an explicit object owned by the construction context;
//     there is no package-level registry. Reset exists for test harnesses.
//   - IDGenerator produces opaque ids (UUIDv7 in production, a fixed
//     sequence in tests) used for store instances and trace correlation.
//
// Clock is the monotonic logical counter used for snapshot versions and
// transaction sequence numbers. Ordering never depends on wall-clock time.
package ident
