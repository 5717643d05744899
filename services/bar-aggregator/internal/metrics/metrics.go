package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "bar_aggregator"

// Metrics holds the pipeline's collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	framesTotal          prometheus.Counter
	malformedFramesTotal prometheus.Counter
	ticksTotal           *prometheus.CounterVec
	anomaliesTotal       *prometheus.CounterVec
	ignoredEventsTotal   prometheus.Counter
	controlsTotal        *prometheus.CounterVec
	queueDroppedTotal    prometheus.Counter
	queueDepth           prometheus.Gauge
	barsPublishedTotal   prometheus.Counter
	publishFailuresTotal *prometheus.CounterVec
	publishLatency       prometheus.Histogram
}

// New creates and registers every collector. symbol is attached as a constant label.
func New(symbol string) *Metrics {
	labels := prometheus.Labels{"symbol": symbol}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_total",
			Help: "Text frames received from the feed.", ConstLabels: labels,
		}),
		malformedFramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "malformed_frames_total",
			Help: "Frames that were not valid structured data.", ConstLabels: labels,
		}),
		ticksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_total",
			Help: "Ticks decoded, by source event kind.", ConstLabels: labels,
		}, []string{"kind"}),
		anomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "anomalies_total",
			Help: "Recognized events with a missing numeric field.", ConstLabels: labels,
		}, []string{"kind", "field"}),
		ignoredEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "ignored_events_total",
			Help: "Events with an unrecognized tag, stream, or symbol.", ConstLabels: labels,
		}),
		controlsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "control_messages_total",
			Help: "Feed status messages, by kind.", ConstLabels: labels,
		}, []string{"kind"}),
		queueDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "queue_dropped_total",
			Help: "Ticks discarded by the queue overflow policy.", ConstLabels: labels,
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_depth",
			Help: "Ticks waiting for the aggregator.", ConstLabels: labels,
		}),
		barsPublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "bars_published_total",
			Help: "Bars handed to the sink successfully.", ConstLabels: labels,
		}),
		publishFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "publish_failures_total",
			Help: "Failed publish attempts, by sink.", ConstLabels: labels,
		}, []string{"sink"}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "publish_latency_seconds",
			Help:        "Time spent publishing one bar, retries included.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.framesTotal,
		m.malformedFramesTotal,
		m.ticksTotal,
		m.anomaliesTotal,
		m.ignoredEventsTotal,
		m.controlsTotal,
		m.queueDroppedTotal,
		m.queueDepth,
		m.barsPublishedTotal,
		m.publishFailuresTotal,
		m.publishLatency,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.framesTotal.Inc()
}

func (m *Metrics) MalformedFrame() {
	if m == nil {
		return
	}
	m.malformedFramesTotal.Inc()
}

func (m *Metrics) TickDecoded(kind string) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) Anomaly(kind, field string) {
	if m == nil {
		return
	}
	m.anomaliesTotal.WithLabelValues(kind, field).Inc()
}

func (m *Metrics) EventsIgnored(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ignoredEventsTotal.Add(float64(n))
}

func (m *Metrics) ControlMessage(kind string) {
	if m == nil {
		return
	}
	m.controlsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) QueueDropped() {
	if m == nil {
		return
	}
	m.queueDroppedTotal.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) BarPublished(seconds float64) {
	if m == nil {
		return
	}
	m.barsPublishedTotal.Inc()
	m.publishLatency.Observe(seconds)
}

func (m *Metrics) PublishFailed(sink string) {
	if m == nil {
		return
	}
	m.publishFailuresTotal.WithLabelValues(sink).Inc()
}
