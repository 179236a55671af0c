package store

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// Stats is a point-in-time copy of a store's counters.
type Stats struct {
	Dispatches    uint64
	NoopUpdates   uint64
	EffectRuns    uint64
	OperationRuns uint64
	SinkFailures  uint64
}

type storeMetrics struct {
	set           *metrics.Set
	dispatches    *metrics.Counter
	noops         *metrics.Counter
	effectRuns    *metrics.Counter
	operationRuns *metrics.Counter
	sinkFailures  *metrics.Counter
}

func newStoreMetrics(name string) *storeMetrics {
	set := metrics.NewSet()
	counter := func(metric string) *metrics.Counter {
		return set.GetOrCreateCounter(fmt.Sprintf(`%s{store=%q}`, metric, name))
	}
	return &storeMetrics{
		set:           set,
		dispatches:    counter("nalanda_dispatches_total"),
		noops:         counter("nalanda_noop_updates_total"),
		effectRuns:    counter("nalanda_effect_runs_total"),
		operationRuns: counter("nalanda_operation_runs_total"),
		sinkFailures:  counter("nalanda_debug_sink_failures_total"),
	}
}

func (m *storeMetrics) stats() Stats {
	return Stats{
		Dispatches:    m.dispatches.Get(),
		NoopUpdates:   m.noops.Get(),
		EffectRuns:    m.effectRuns.Get(),
		OperationRuns: m.operationRuns.Get(),
		SinkFailures:  m.sinkFailures.Get(),
	}
}
