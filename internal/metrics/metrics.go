// Package metrics exposes Prometheus instrumentation for the ledger, the market feed and
// trade event publishing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/simaogato/cryptotrade-backend/internal/domain"
	"github.com/simaogato/cryptotrade-backend/internal/usecase/marketdata"
)

const namespace = "cryptotrade"

// Metrics holds every collector on its own registry
type Metrics struct {
	Registry *prometheus.Registry

	TradesTotal     *prometheus.CounterVec
	TradeDuration   *prometheus.HistogramVec
	EventsPublished *prometheus.CounterVec

	FeedMessages   *prometheus.CounterVec
	FeedReconnects prometheus.Counter
	FeedState      prometheus.Gauge
}

// New creates and registers the collectors
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trades_total",
			Help:      "Trades by kind and result",
		}, []string{"kind", "result"}),
		TradeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "trade_duration_seconds",
			Help:      "Trade latency including lock wait and commit",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Trade events handed to the broker by result",
		}, []string{"result"}),
		FeedMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "messages_total",
			Help:      "Feed messages by handling result (applied, ignored, malformed)",
		}, []string{"result"}),
		FeedReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_total",
			Help:      "Feed reconnect attempts",
		}),
		FeedState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "state",
			Help:      "Feed connection state: 0 disconnected, 1 connecting, 2 subscribed",
		}),
	}

	m.Registry.MustRegister(
		m.TradesTotal,
		m.TradeDuration,
		m.EventsPublished,
		m.FeedMessages,
		m.FeedReconnects,
		m.FeedState,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// TradeCompleted implements ledger.Observer
func (m *Metrics) TradeCompleted(kind domain.TransactionType, result string, elapsed time.Duration) {
	m.TradesTotal.WithLabelValues(string(kind), result).Inc()
	m.TradeDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// EventPublished implements ledger.Observer
func (m *Metrics) EventPublished(result string) {
	m.EventsPublished.WithLabelValues(result).Inc()
}

// MessageHandled implements marketdata.FeedObserver
func (m *Metrics) MessageHandled(result string) {
	m.FeedMessages.WithLabelValues(result).Inc()
}

// Reconnecting implements marketdata.FeedObserver
func (m *Metrics) Reconnecting() {
	m.FeedReconnects.Inc()
}

// StateChanged implements marketdata.FeedObserver
func (m *Metrics) StateChanged(state marketdata.State) {
	m.FeedState.Set(float64(state))
}
