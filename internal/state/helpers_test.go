package state

type oneState struct {
	KeyOne string
}

type twoState struct {
	KeyTwo string
}

type counterState struct {
	Count int
}

// testSlices declares sliceOne and sliceTwo on a fresh registry.
func testSlices() (*Registry, *Slice[*oneState], *Slice[*twoState]) {
	reg := NewRegistry()
	one := NewSlice(reg, "sliceOne", &oneState{KeyOne: "valueOne"})
	two := NewSlice(reg, "sliceTwo", &twoState{KeyTwo: "valueTwo"})
	return reg, one, two
}

// recordingTracker is a Tracker that serves a fixed snapshot.
type recordingTracker struct {
	st    *StoreState
	reads []Read
}

func (r *recordingTracker) State() *StoreState { return r.st }

func (r *recordingTracker) TrackRead(read Read) { r.reads = append(r.reads, read) }
