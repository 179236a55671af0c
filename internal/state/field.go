package state

// WholeState is the field name recorded when an entire slice state is read.
const WholeState = "*"

// Read is one tracked read: which slice and field were read, the value that
// was observed, and how to read the same field from another snapshot.
type Read struct {
	Slice   SliceID
	Field   string
	Value   any
	Resolve func(st *StoreState) any
}

// Changed reports whether the field now resolves to something other than
// the observed value. A slice missing from st counts as changed.
func (r Read) Changed(st *StoreState) bool {
	if !st.Has(r.Slice) {
		return true
	}
	return !Same(r.Value, r.Resolve(st))
}

// Tracker receives reads made through Track methods. Effect run instances
// implement it.
type Tracker interface {
	// State returns the snapshot reads should be served from.
	State() *StoreState
	// TrackRead records a read.
	TrackRead(r Read)
}

// Field names one field of a slice's state.
type Field[T, V any] struct {
	slice *Slice[T]
	name  string
	get   func(T) V
}

// NewField declares a field of s called name, read with get.
func NewField[T, V any](s *Slice[T], name string, get func(T) V) *Field[T, V] {
	return &Field[T, V]{slice: s, name: name, get: get}
}

// Name returns the field name.
func (f *Field[T, V]) Name() string { return f.name }

// Slice returns the slice the field belongs to.
func (f *Field[T, V]) Slice() *Slice[T] { return f.slice }

// Get returns the field's value in st.
func (f *Field[T, V]) Get(st *StoreState) V {
	return f.get(f.slice.Get(st))
}

// Track returns the field's value from the tracker's snapshot and records
// the read.
func (f *Field[T, V]) Track(tr Tracker) V {
	v := f.Get(tr.State())
	tr.TrackRead(Read{
		Slice: f.slice.id,
		Field: f.name,
		Value: v,
		Resolve: func(st *StoreState) any {
			return f.Get(st)
		},
	})
	return v
}
