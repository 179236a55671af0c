// Package trace defines the structured records a store emits to its debug
// sink: one record per dispatched transaction, effect run and operation run.
//
// Sinks are purely observational. A store calls them synchronously and
// recovers any panic they raise, so a faulty sink can never change what the
// store does.
//
// Records serialize to canonical JSON (sorted keys, NFC-normalized strings,
// no HTML escaping) so traces can be compared byte for byte in golden files.
package trace
