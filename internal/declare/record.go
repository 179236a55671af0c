package declare

import "github.com/bangle-io/nalanda-sub001/internal/state"

// Record is the state of a declared slice.
type Record map[string]any

// Update is the parameter of a declared slice's set action.
type Update struct {
	Values Record
	// Replace discards keys missing from Values instead of keeping them.
	Replace bool
}

// Merge returns cur with values layered on top. If every value is already
// Same as cur's, cur itself is returned so the step is a no-op.
func Merge(cur, values Record) Record {
	changed := false
	for k, v := range values {
		old, ok := cur[k]
		if !ok || !state.Same(old, v) {
			changed = true
			break
		}
	}
	if !changed {
		return cur
	}

	out := make(Record, len(cur)+len(values))
	for k, v := range cur {
		out[k] = v
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}

// Replace returns values as the new record, or cur if both hold the same
// keys with Same values.
func Replace(cur, values Record) Record {
	if len(cur) != len(values) {
		return copyRecord(values)
	}
	for k, v := range values {
		old, ok := cur[k]
		if !ok || !state.Same(old, v) {
			return copyRecord(values)
		}
	}
	return cur
}

func copyRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
