// Package store is the composition root of the runtime.
//
// A Store owns the current snapshot, the dispatch pipeline and the effect
// engine. Dispatch stamps a transaction with the store's name, hands it to
// the dispatch function (DefaultDispatch unless overridden with
// WithDispatch) which applies it and calls UpdateState. UpdateState swaps
// the snapshot, emits a TX trace record, lets the effect engine schedule
// the effects whose reads changed and notifies OnChange listeners.
//
// Snapshot changes are strictly sequential: concurrent Dispatch calls are
// serialized. Destroy is terminal: later dispatches are silent no-ops and no
// effect is scheduled again.
package store
