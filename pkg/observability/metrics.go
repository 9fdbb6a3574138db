package observability

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Metrics records application metrics. Implementations may drop names they
// do not declare.
type Metrics interface {
	Counter(name string, value int64, tags ...Tag)
	Gauge(name string, value float64, tags ...Tag)
	Histogram(name string, value float64, tags ...Tag)
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag is one label on a metric observation.
type Tag struct {
	Key   string
	Value string
}

// T creates a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) Counter(string, int64, ...Tag)        {}
func (NoopMetrics) Gauge(string, float64, ...Tag)        {}
func (NoopMetrics) Histogram(string, float64, ...Tag)    {}
func (NoopMetrics) Timing(string, time.Duration, ...Tag) {}

// InMemoryMetrics keeps one series per name and tag set. Tag order does not
// matter. Tests assert against it.
type InMemoryMetrics struct {
	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	count   int64
	gauge   float64
	samples []float64
	timings []time.Duration
}

// NewInMemoryMetrics creates an empty recorder.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{series: map[string]*series{}}
}

func (m *InMemoryMetrics) update(name string, tags []Tag, fn func(*series)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := formatKey(name, tags)
	s, ok := m.series[key]
	if !ok {
		s = &series{}
		m.series[key] = s
	}
	fn(s)
}

func (m *InMemoryMetrics) snapshot(name string, tags []Tag) series {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.series[formatKey(name, tags)]
	if !ok {
		return series{}
	}
	return series{
		count:   s.count,
		gauge:   s.gauge,
		samples: slices.Clone(s.samples),
		timings: slices.Clone(s.timings),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.count += value })
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.gauge = value })
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.samples = append(s.samples, value) })
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.update(name, tags, func(s *series) { s.timings = append(s.timings, duration) })
}

// GetCounter returns the summed counter value.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	return m.snapshot(name, tags).count
}

// GetGauge returns the last gauge value.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	return m.snapshot(name, tags).gauge
}

// GetHistogram returns the observed values in order.
func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	return m.snapshot(name, tags).samples
}

// GetTimings returns the recorded durations in order.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	return m.snapshot(name, tags).timings
}

// formatKey renders name:key=value pairs with tags sorted by key.
func formatKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	sorted := slices.Clone(tags)
	slices.SortStableFunc(sorted, func(a, b Tag) int { return strings.Compare(a.Key, b.Key) })

	var b strings.Builder
	b.WriteString(name)
	for _, t := range sorted {
		b.WriteByte(':')
		b.WriteString(t.Key)
		b.WriteByte('=')
		b.WriteString(t.Value)
	}
	return b.String()
}
