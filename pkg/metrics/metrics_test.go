package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Mutation("create", "Committed")
	m.Mutation("create", "Committed")
	m.Resync("batch")
	m.Rollback()
	m.Stale("page")
	m.Inconsistent()
	m.ObserveFetch("ok", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Mutations.WithLabelValues("create", "Committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resyncs.WithLabelValues("batch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rollbacks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleResponses.WithLabelValues("page")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryInconsistent))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Fetches))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Mutation("move", "Resynced")
		m.Resync("move")
		m.Rollback()
		m.Stale("block")
		m.Inconsistent()
		m.ObserveFetch("error", 1)
	})
}
