// Package metrics exposes Prometheus instrumentation for pools and the price oracle.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DuelMetrics groups every collector the service registers. All methods are
// safe on a nil receiver so components can run without instrumentation.
type DuelMetrics struct {
	transitions    *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	settlements    *prometheus.CounterVec
	evictions      *prometheus.CounterVec
	overdue        *prometheus.CounterVec
	historyFailed  prometheus.Counter
	oracleRefresh  *prometheus.CounterVec
	oraclePrice    *prometheus.GaugeVec
	oracleUpdated  *prometheus.GaugeVec
	schedulerTicks *prometheus.CounterVec
}

var (
	duelOnce     sync.Once
	duelRegistry *DuelMetrics
)

// Duel returns the process-wide metrics, registering them on first use.
func Duel() *DuelMetrics {
	duelOnce.Do(func() {
		duelRegistry = New()
		prometheus.MustRegister(duelRegistry.Collectors()...)
	})
	return duelRegistry
}

// New builds an unregistered set of collectors. Tests use it with a private
// registry.
func New() *DuelMetrics {
	return &DuelMetrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duel_pool_transitions_total",
			Help: "Committed pool transitions by pool and event type.",
		}, []string{"pool", "event"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duel_pool_rejections_total",
			Help: "Rejected pool operations by operation and reason code.",
		}, []string{"op", "code"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duel_settlements_total",
			Help: "Settled rounds by asset and outcome (winner or draw).",
		}, []string{"asset", "outcome"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duel_waiting_evictions_total",
			Help: "Lone players evicted by the waiting-room timeout.",
		}, []string{"pool"}),
		overdue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duel_overdue_matches_total",
			Help: "Active matches flagged past their end time without a settlement.",
		}, []string{"pool"}),
		historyFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "duel_history_write_failures_total",
			Help: "Settlements whose history records could not be fully written.",
		}),
		oracleRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duel_oracle_refresh_total",
			Help: "Oracle refresh attempts by result (ok, partial, failed).",
		}, []string{"result"}),
		oraclePrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "duel_oracle_price",
			Help: "Latest cached price per asset.",
		}, []string{"asset"}),
		oracleUpdated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "duel_oracle_updated_timestamp_seconds",
			Help: "Unix time of the last successful price per asset.",
		}, []string{"asset"}),
		schedulerTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "duel_scheduler_ticks_total",
			Help: "Scheduler task runs by task and result.",
		}, []string{"task", "result"}),
	}
}

// Collectors returns every collector for registration.
func (m *DuelMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.transitions, m.rejections, m.settlements, m.evictions, m.overdue,
		m.historyFailed, m.oracleRefresh, m.oraclePrice, m.oracleUpdated, m.schedulerTicks,
	}
}

func (m *DuelMetrics) ObserveTransition(pool, event string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(pool, event).Inc()
}

func (m *DuelMetrics) ObserveRejection(op, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.rejections.WithLabelValues(op, code).Inc()
}

func (m *DuelMetrics) ObserveSettlement(asset, outcome string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(asset, outcome).Inc()
}

func (m *DuelMetrics) ObserveEviction(pool string) {
	if m == nil {
		return
	}
	m.evictions.WithLabelValues(pool).Inc()
}

func (m *DuelMetrics) ObserveOverdue(pool string) {
	if m == nil {
		return
	}
	m.overdue.WithLabelValues(pool).Inc()
}

func (m *DuelMetrics) IncHistoryFailure() {
	if m == nil {
		return
	}
	m.historyFailed.Inc()
}

func (m *DuelMetrics) ObserveOracleRefresh(result string) {
	if m == nil {
		return
	}
	m.oracleRefresh.WithLabelValues(result).Inc()
}

func (m *DuelMetrics) SetPrice(asset string, price float64, unix float64) {
	if m == nil {
		return
	}
	m.oraclePrice.WithLabelValues(asset).Set(price)
	m.oracleUpdated.WithLabelValues(asset).Set(unix)
}

func (m *DuelMetrics) ObserveTick(task string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.schedulerTicks.WithLabelValues(task, result).Inc()
}
