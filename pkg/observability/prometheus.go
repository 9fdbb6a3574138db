package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "talentreach"

// Metric names. Prometheus adds the talentreach_ namespace.
const (
	MetricWebhookEvents         = "webhook_events_total"
	MetricOrchestratorOutcomes  = "orchestrator_outcomes_total"
	MetricFollowUpsSent         = "followups_sent_total"
	MetricResourceAssignments   = "resource_assignments_total"
	MetricBookingsConfirmed     = "bookings_confirmed_total"
	MetricExternalCalls         = "external_calls_total"
	MetricExternalCallDuration  = "external_call_duration_seconds"
	MetricOutboxPublished       = "outbox_published_total"
	MetricPendingRepliesCreated = "pending_replies_total"
	MetricEventsConsumed        = "events_consumed_total"
	MetricOutboxLag             = "outbox_lag_seconds"
)

type metricKind int

const (
	kindCounter metricKind = iota
	kindGauge
	kindHistogram
)

// definition declares one exported metric.
type definition struct {
	name   string
	kind   metricKind
	help   string
	labels []string
}

var definitions = []definition{
	{MetricWebhookEvents, kindCounter, "Webhook events received, by source and outcome.", []string{"source", "outcome"}},
	{MetricOrchestratorOutcomes, kindCounter, "Orchestrator decisions, by action.", []string{"action"}},
	{MetricFollowUpsSent, kindCounter, "Follow-up messages sent.", nil},
	{MetricResourceAssignments, kindCounter, "Scheduling resources handed out.", nil},
	{MetricBookingsConfirmed, kindCounter, "Bookings matched to an assignment.", nil},
	{MetricExternalCalls, kindCounter, "Calls to external capabilities, by operation and error kind.", []string{"op", "kind"}},
	{MetricExternalCallDuration, kindHistogram, "Duration of calls to external capabilities.", []string{"op"}},
	{MetricOutboxPublished, kindCounter, "Outbox messages published.", nil},
	{MetricPendingRepliesCreated, kindCounter, "Replies that could not be delivered and await retry.", nil},
	{MetricEventsConsumed, kindCounter, "Domain events delivered to consumers, by routing key.", []string{"routing_key"}},
	{MetricOutboxLag, kindGauge, "Age of the oldest unpublished outbox message.", nil},
}

// collector is the registered vector for one definition.
type collector struct {
	labels    []string
	counter   *prometheus.CounterVec
	gauge     *prometheus.GaugeVec
	histogram *prometheus.HistogramVec
}

// PrometheusMetrics implements Metrics on a private registry. Names missing
// from definitions are dropped, as are mismatched kinds.
type PrometheusMetrics struct {
	registry   *prometheus.Registry
	collectors map[string]collector
}

// NewPrometheusMetrics registers every definition plus the Go and process
// collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &PrometheusMetrics{registry: reg, collectors: make(map[string]collector, len(definitions))}
	for _, d := range definitions {
		c := collector{labels: d.labels}
		switch d.kind {
		case kindCounter:
			c.counter = factory.NewCounterVec(prometheus.CounterOpts{
				Namespace: promNamespace,
				Name:      d.name,
				Help:      d.help,
			}, d.labels)
		case kindGauge:
			c.gauge = factory.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: promNamespace,
				Name:      d.name,
				Help:      d.help,
			}, d.labels)
		case kindHistogram:
			c.histogram = factory.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: promNamespace,
				Name:      d.name,
				Help:      d.help,
				Buckets:   prometheus.DefBuckets,
			}, d.labels)
		}
		m.collectors[d.name] = c
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *PrometheusMetrics) Counter(name string, value int64, tags ...Tag) {
	if c, ok := m.collectors[name]; ok && c.counter != nil {
		c.counter.WithLabelValues(labelValues(c.labels, tags)...).Add(float64(value))
	}
}

func (m *PrometheusMetrics) Gauge(name string, value float64, tags ...Tag) {
	if c, ok := m.collectors[name]; ok && c.gauge != nil {
		c.gauge.WithLabelValues(labelValues(c.labels, tags)...).Set(value)
	}
}

func (m *PrometheusMetrics) Histogram(name string, value float64, tags ...Tag) {
	if c, ok := m.collectors[name]; ok && c.histogram != nil {
		c.histogram.WithLabelValues(labelValues(c.labels, tags)...).Observe(value)
	}
}

func (m *PrometheusMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.Histogram(name, duration.Seconds(), tags...)
}

// labelValues orders tag values by the declared label names. Missing labels
// become empty strings and unknown tags are ignored.
func labelValues(labels []string, tags []Tag) []string {
	values := make([]string, len(labels))
	for i, label := range labels {
		for _, tag := range tags {
			if tag.Key == label {
				values[i] = tag.Value
				break
			}
		}
	}
	return values
}
