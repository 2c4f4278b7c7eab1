package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *DuelMetrics
	assert.NotPanics(t, func() {
		m.ObserveTransition("BTC_100", "joined")
		m.ObserveRejection("join", "")
		m.ObserveSettlement("BTC", "draw")
		m.ObserveEviction("BTC_100")
		m.ObserveOverdue("BTC_100")
		m.IncHistoryFailure()
		m.ObserveOracleRefresh("ok")
		m.SetPrice("BTC", 1, 1)
		m.ObserveTick("timeout_sweep", true)
	})
}

func TestMetricsCount(t *testing.T) {
	m := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(m.transitions))

	m.ObserveTransition("BTC_100", "joined")
	m.ObserveTransition("BTC_100", "joined")
	m.ObserveRejection("join", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("BTC_100", "joined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("join", "unknown")))
}
