// Package tracelog persists store trace records to SQLite.
//
// A Log implements trace.Sink, so it can be passed straight to
// store.WithDebug. Records are stored as canonical JSON alongside indexed
// columns for the store name, sequence number and record type, and read back
// in emission order.
//
// The database uses WAL mode and a single connection, so one process writes
// while other readers (nalanda trace) query the same file.
package tracelog
