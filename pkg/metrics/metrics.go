// Package metrics holds the prometheus collectors of an ETL run. Batch runs
// have no scrape endpoint, so the registry is written to a node-exporter
// textfile at the end of each run.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "notas_etl"

// Metrics groups the collectors updated by the pipeline.
type Metrics struct {
	registry *prometheus.Registry

	documents *prometheus.CounterVec
	rows      *prometheus.CounterVec
	dbFailure *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	lastRun   *prometheus.GaugeVec
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Documents processed, by brokerage and outcome.",
		}, []string{"brokerage", "status"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_extracted_total",
			Help:      "Rows extracted, by brokerage and section.",
		}, []string{"brokerage", "section"}),
		dbFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_append_failures_total",
			Help:      "Failed database appends, by table.",
		}, []string{"table"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_duration_seconds",
			Help:      "Time spent processing one document.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"brokerage"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last completed run.",
		}, []string{"brokerage"}),
	}

	m.registry.MustRegister(m.documents, m.rows, m.dbFailure, m.duration, m.lastRun)
	return m
}

// ObserveDocument records one processed document.
func (m *Metrics) ObserveDocument(brokerage, status string, d time.Duration) {
	m.documents.WithLabelValues(brokerage, status).Inc()
	m.duration.WithLabelValues(brokerage).Observe(d.Seconds())
}

// AddRows counts extracted rows of one section.
func (m *Metrics) AddRows(brokerage, section string, n int) {
	m.rows.WithLabelValues(brokerage, section).Add(float64(n))
}

// IncDBFailure counts one failed append.
func (m *Metrics) IncDBFailure(table string) {
	m.dbFailure.WithLabelValues(table).Inc()
}

// RunFinished stamps the completion time of a run.
func (m *Metrics) RunFinished(brokerage string, at time.Time) {
	m.lastRun.WithLabelValues(brokerage).Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
