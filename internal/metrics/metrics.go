// Package metrics exposes engine and relay activity to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/efreitasn/matchbook/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "matchbook"

// Metrics owns a private registry so tests can create as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	commands       *prometheus.CounterVec
	commandLatency *prometheus.HistogramVec
	queueRejected  *prometheus.CounterVec
	bookLevels     *prometheus.GaugeVec
	halted         *prometheus.GaugeVec
	events         *prometheus.CounterVec
	tradedVolume   *prometheus.CounterVec
	sinkFailures   *prometheus.CounterVec
	eventsDropped  prometheus.Counter
}

// New creates Metrics with Go runtime and process collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,

		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands applied by market sequencers, by outcome",
		}, []string{"market", "op", "outcome"}),

		commandLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent applying one command to a book",
			Buckets:   []float64{1e-6, 2.5e-6, 5e-6, 1e-5, 2.5e-5, 5e-5, 1e-4, 2.5e-4, 1e-3, 1e-2},
		}, []string{"op"}),

		queueRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_rejections_total",
			Help:      "Commands refused because the market queue was full",
		}, []string{"market", "op"}),

		bookLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_levels",
			Help:      "Price levels currently on the book by side",
		}, []string{"market", "side"}),

		halted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "market_halted",
			Help:      "1 when a market stopped after an invariant violation",
		}, []string{"market"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Engine events by type",
		}, []string{"market", "event"}),

		tradedVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traded_quantity_total",
			Help:      "Quantity executed in trades",
		}, []string{"market"}),

		sinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Failed event publications by sink",
		}, []string{"sink"}),

		eventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_events_dropped_total",
			Help:      "Events dropped because the relay queue was full",
		}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.commands,
		m.commandLatency,
		m.queueRejected,
		m.bookLevels,
		m.halted,
		m.events,
		m.tradedVolume,
		m.sinkFailures,
		m.eventsDropped,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveCommand records a command's outcome and latency.
func (m *Metrics) ObserveCommand(market, op string, elapsed time.Duration, err error) {
	m.commands.WithLabelValues(market, op, outcome(err)).Inc()
	m.commandLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveDepth records the level count of each side.
func (m *Metrics) ObserveDepth(market string, bidLevels, askLevels int) {
	m.bookLevels.WithLabelValues(market, string(domain.OrderSideBuy)).Set(float64(bidLevels))
	m.bookLevels.WithLabelValues(market, string(domain.OrderSideSell)).Set(float64(askLevels))
}

// QueueRejected counts a command refused by a full queue.
func (m *Metrics) QueueRejected(market, op string) {
	m.queueRejected.WithLabelValues(market, op).Inc()
}

// Halted marks market as halted.
func (m *Metrics) Halted(market string) {
	m.halted.WithLabelValues(market).Set(1)
}

// SinkFailed counts a failed publication.
func (m *Metrics) SinkFailed(sink string) {
	m.sinkFailures.WithLabelValues(sink).Inc()
}

// EventsDropped counts events the relay could not queue.
func (m *Metrics) EventsDropped(n int) {
	m.eventsDropped.Add(float64(n))
}

// Record counts events and traded quantity. It is chained into the
// engine's event handler.
func (m *Metrics) Record(events []domain.Event) {
	for _, ev := range events {
		m.events.WithLabelValues(ev.Market, string(ev.Type)).Inc()
		if ev.Trade != nil {
			m.tradedVolume.WithLabelValues(ev.Market).Add(float64(ev.Trade.Quantity))
		}
	}
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
