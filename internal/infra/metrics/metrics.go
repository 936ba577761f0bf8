package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	Registry *prometheus.Registry

	ledgerTransactions *prometheus.CounterVec
	bids               *prometheus.CounterVec
	redeemAttempts     *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	batchItems         *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ledgerTransactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzz_ledger_transactions_total",
				Help: "Ledger transaction attempts by type and result.",
			},
			[]string{"type", "result"},
		),
		bids: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzz_bids_total",
				Help: "Bid operations by action and result.",
			},
			[]string{"action", "result"},
		),
		redeemAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzz_redeem_attempts_total",
				Help: "Redeemable code consume attempts by result.",
			},
			[]string{"result"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "buzz_request_duration_seconds",
				Help:    "HTTP request duration by route pattern.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzz_balance_cache_lookups_total",
				Help: "Balance cache lookups by outcome.",
			},
			[]string{"outcome"},
		),
		batchItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "buzz_ledger_batch_items_total",
				Help: "Batch transaction items by result.",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) IncTransaction(txType, result string) {
	m.ledgerTransactions.WithLabelValues(txType, result).Inc()
}

func (m *Metrics) IncBid(action, result string) {
	m.bids.WithLabelValues(action, result).Inc()
}

func (m *Metrics) IncRedeemAttempt(result string) {
	m.redeemAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}

	m.cacheLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddBatchItems(result string, n int) {
	m.batchItems.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) ObserveRequest(route string, d time.Duration) {
	m.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the private registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
