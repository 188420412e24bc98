package hyperrelay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"
)

// MetricsExporter exposes relay metrics via a Prometheus-style HTTP handler.
// Register the Observe method using RegisterMetricsHandler to begin collecting data.
// Each relay is exported under its own sink and id labels.
type MetricsExporter struct {
	mu     sync.RWMutex
	latest map[string]Metrics
}

// NewMetricsExporter creates a new exporter instance.
func NewMetricsExporter() *MetricsExporter {
	return &MetricsExporter{latest: make(map[string]Metrics)}
}

// Observe can be registered with RegisterMetricsHandler to record relay metrics snapshots.
func (e *MetricsExporter) Observe(_ context.Context, metrics Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.latest[metrics.Name+"/"+metrics.ID] = metrics
}

// Forget removes the relay identified by name and id from the export.
func (e *MetricsExporter) Forget(name, id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.latest, name+"/"+id)
}

// Snapshot returns the latest metrics per relay, ordered by name then id.
func (e *MetricsExporter) Snapshot() []Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]Metrics, 0, len(e.latest))
	for _, metrics := range e.latest {
		result = append(result, metrics)
	}

	slices.SortFunc(result, func(a, b Metrics) int {
		if a.Name != b.Name {
			if a.Name < b.Name {
				return -1
			}

			return 1
		}

		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return result
}

type metricFamily struct {
	name  string
	help  string
	kind  string
	value func(Metrics) uint64
}

//nolint:gochecknoglobals // static exposition layout.
var metricFamilies = []metricFamily{
	{"hyperrelay_submitted_total", "Total records submitted", "counter", func(m Metrics) uint64 { return m.Submitted }},
	{"hyperrelay_admitted_total", "Total records admitted into the buffer", "counter", func(m Metrics) uint64 { return m.Admitted }},
	{"hyperrelay_consumed_total", "Total records handled by the consumer", "counter", func(m Metrics) uint64 { return m.Consumed }},
	{"hyperrelay_failed_total", "Total records the consumer failed on", "counter", func(m Metrics) uint64 { return m.Failed }},
	{"hyperrelay_dropped_total", "Total records dropped because the buffer was full", "counter", func(m Metrics) uint64 { return m.Dropped }},
	{"hyperrelay_rejected_total", "Total records rejected after disposal, cancellation or fault", "counter", func(m Metrics) uint64 { return m.Rejected }},
	{"hyperrelay_queue_depth", "Current number of buffered records", "gauge", func(m Metrics) uint64 { return uint64(max(m.QueueDepth, 0)) }},
	{"hyperrelay_queue_capacity", "Maximum number of buffered records", "gauge", func(m Metrics) uint64 { return uint64(max(m.Capacity, 0)) }},
}

// ServeHTTP renders the metrics using Prometheus exposition format.
func (e *MetricsExporter) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	e.Render(w)
}

// Render renders the metrics onto w.
func (e *MetricsExporter) Render(w io.Writer) {
	snapshot := e.Snapshot()

	for _, family := range metricFamilies {
		fmt.Fprintf(w, "# HELP %s %s\n", family.name, family.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", family.name, family.kind)

		for _, metrics := range snapshot {
			fmt.Fprintf(w, "%s{sink=%q,id=%q} %d\n", family.name, metrics.Name, metrics.ID, family.value(metrics))
		}
	}
}
