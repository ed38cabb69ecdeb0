// Package metrics exposes prometheus counters for session activity.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "blocktree"

// Metrics is the set of collectors one session updates. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Mutations           *prometheus.CounterVec
	Resyncs             *prometheus.CounterVec
	Rollbacks           prometheus.Counter
	StaleResponses      *prometheus.CounterVec
	HistoryInconsistent prometheus.Counter
	Fetches             *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg when it is non-nil.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "Optimistic mutations by action and final state.",
		}, []string{"action", "state"}),
		Resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resyncs_total",
			Help:      "Full page refetches by reason.",
		}, []string{"reason"}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Snapshot rollbacks after a rejected patch.",
		}),
		StaleResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer token was issued.",
		}, []string{"scope"}),
		HistoryInconsistent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_inconsistent_total",
			Help:      "Undo or redo replays that skipped ops.",
		}),
		Fetches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "page_fetch_seconds",
			Help:      "Page fetch latency by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.Mutations, m.Resyncs, m.Rollbacks, m.StaleResponses, m.HistoryInconsistent, m.Fetches,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) Mutation(action, state string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(action, state).Inc()
}

func (m *Metrics) Resync(reason string) {
	if m == nil {
		return
	}
	m.Resyncs.WithLabelValues(reason).Inc()
}

func (m *Metrics) Rollback() {
	if m == nil {
		return
	}
	m.Rollbacks.Inc()
}

func (m *Metrics) Stale(scope string) {
	if m == nil {
		return
	}
	m.StaleResponses.WithLabelValues(scope).Inc()
}

func (m *Metrics) Inconsistent() {
	if m == nil {
		return
	}
	m.HistoryInconsistent.Inc()
}

func (m *Metrics) ObserveFetch(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Fetches.WithLabelValues(outcome).Observe(seconds)
}
