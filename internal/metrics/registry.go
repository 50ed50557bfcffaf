package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the service's Prometheus collectors and implements the
// archiver's metrics contract. Everything hangs off a private registry so
// tests can run many registries side by side.
type Registry struct {
	registry *prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	archivedTotal prometheus.Counter

	overlapsTotal  *prometheus.CounterVec
	categoryIssues prometheus.Counter

	reversalsTotal *prometheus.CounterVec
}

// Overlap outcomes recorded per run.
const (
	OverlapDetected     = "detected"
	OverlapAutoResolved = "auto_resolved"
	OverlapConflict     = "conflict"
)

// NewRegistry creates all collectors under namespace, along with the stock
// Go runtime and process collectors.
func NewRegistry(namespace string) *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		registry: reg,
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "runs_total",
			Help:      "Archival runs by pipeline type and outcome.",
		}, []string{"archive_type", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of archival runs.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"archive_type"}),
		archivedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "appointments_archived_total",
			Help:      "Appointments written to archive calendars.",
		}),
		overlapsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "overlaps_total",
			Help:      "Overlap groups by resolution outcome.",
		}, []string{"outcome"}),
		categoryIssues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "archive",
			Name:      "category_issues_total",
			Help:      "Appointments with malformed or missing categories.",
		}),
		reversalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recovery",
			Name:      "reversals_total",
			Help:      "Reversal attempts by outcome.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		r.runsTotal,
		r.runDuration,
		r.archivedTotal,
		r.overlapsTotal,
		r.categoryIssues,
		r.reversalsTotal,
	)
	return r
}

// RecordRun counts one archival run and its archived appointments.
func (r *Registry) RecordRun(archiveType, status string, archived int, duration time.Duration) {
	r.runsTotal.WithLabelValues(archiveType, status).Inc()
	r.runDuration.WithLabelValues(archiveType).Observe(duration.Seconds())
	if archived > 0 {
		r.archivedTotal.Add(float64(archived))
	}
}

// RecordOverlaps counts one run's overlap groups by outcome.
func (r *Registry) RecordOverlaps(detected, autoResolved, conflicts int) {
	if detected > 0 {
		r.overlapsTotal.WithLabelValues(OverlapDetected).Add(float64(detected))
	}
	if autoResolved > 0 {
		r.overlapsTotal.WithLabelValues(OverlapAutoResolved).Add(float64(autoResolved))
	}
	if conflicts > 0 {
		r.overlapsTotal.WithLabelValues(OverlapConflict).Add(float64(conflicts))
	}
}

// RecordCategoryIssues counts appointments flagged by category validation.
func (r *Registry) RecordCategoryIssues(count int) {
	if count > 0 {
		r.categoryIssues.Add(float64(count))
	}
}

// RecordReversal counts one reversal attempt by outcome.
func (r *Registry) RecordReversal(status string) {
	r.reversalsTotal.WithLabelValues(status).Inc()
}

// Handler serves the scrape endpoint for this registry only.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
