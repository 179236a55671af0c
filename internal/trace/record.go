package trace

import "sync"

// Type classifies a Record.
type Type string

const (
	// TypeTx is emitted for every transaction a store dispatches.
	TypeTx Type = "TX"
	// TypeEffect is emitted each time an effect callback starts.
	TypeEffect Type = "EFFECT"
	// TypeOperation is emitted each time an operation callback starts.
	TypeOperation Type = "OPERATION"
)

// Record is one entry in a store's trace.
type Record struct {
	Type  Type   `json:"type"`
	Store string `json:"store"`
	// Seq orders records emitted by one store, starting at 1.
	Seq int64 `json:"seq"`

	TxID     string `json:"tx_id,omitempty"`
	ActionID string `json:"action_id,omitempty"`
	Slice    string `json:"slice,omitempty"`
	// Changed lists the slices whose state changed, for TX records.
	Changed []string `json:"changed,omitempty"`
	// Noop marks a TX record whose transaction left the snapshot unchanged.
	Noop bool `json:"noop,omitempty"`

	Effect    string `json:"effect,omitempty"`
	Operation string `json:"operation,omitempty"`
	Run       int64  `json:"run,omitempty"`

	Meta map[string]string `json:"meta,omitempty"`
}

// Sink receives trace records.
type Sink interface {
	Record(r Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Record)

// Record calls f(r).
func (f SinkFunc) Record(r Record) { f(r) }

// Multi fans a record out to every sink in order.
type Multi []Sink

// Record forwards r to each sink.
func (m Multi) Record(r Record) {
	for _, s := range m {
		s.Record(r)
	}
}

// Memory is a Sink that keeps records in memory.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	records []Record
}

// NewMemory creates an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Record appends r.
func (m *Memory) Record(r Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
}

// Records returns a copy of everything recorded so far.
func (m *Memory) Records() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

// Filter returns the records of type t.
func (m *Memory) Filter(t Type) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Reset discards all records.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = nil
}
