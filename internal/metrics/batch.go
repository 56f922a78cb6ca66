// Package metrics exposes Prometheus counters for organize runs. A batch is
// short-lived, so the registry is written to a node-exporter textfile rather
// than served over HTTP.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Document outcomes used as the status label
const (
	StatusPlaced      = "placed"
	StatusPlanned     = "planned"
	StatusFailed      = "failed"
	StatusUnextracted = "unextracted"
)

type BatchMetrics struct {
	registry *prometheus.Registry

	documentsTotal    *prometheus.CounterVec
	resolutionsTotal  *prometheus.CounterVec
	extractionSeconds prometheus.Histogram
	copiedBytesTotal  prometheus.Counter
	lastRunTimestamp  prometheus.Gauge
}

func NewBatchMetrics() *BatchMetrics {
	registry := prometheus.NewRegistry()

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctd",
			Subsystem: "organizer",
			Name:      "documents_total",
			Help:      "Documents handled by status.",
		},
		[]string{"status"},
	)
	resolutionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ctd",
			Subsystem: "organizer",
			Name:      "resolutions_total",
			Help:      "Destination resolutions by strategy.",
		},
		[]string{"strategy"},
	)
	extractionSeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ctd",
			Subsystem: "organizer",
			Name:      "extraction_seconds",
			Help:      "Time spent extracting text per document.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
	copiedBytesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ctd",
			Subsystem: "organizer",
			Name:      "copied_bytes_total",
			Help:      "Bytes copied into the output tree.",
		},
	)
	lastRunTimestamp := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ctd",
			Subsystem: "organizer",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		},
	)

	registry.MustRegister(documentsTotal, resolutionsTotal, extractionSeconds, copiedBytesTotal, lastRunTimestamp)

	return &BatchMetrics{
		registry:          registry,
		documentsTotal:    documentsTotal,
		resolutionsTotal:  resolutionsTotal,
		extractionSeconds: extractionSeconds,
		copiedBytesTotal:  copiedBytesTotal,
		lastRunTimestamp:  lastRunTimestamp,
	}
}

// Registry returns the underlying registry
func (m *BatchMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *BatchMetrics) ObserveExtraction(d time.Duration, ok bool) {
	m.extractionSeconds.Observe(d.Seconds())
	if !ok {
		m.documentsTotal.WithLabelValues(StatusUnextracted).Inc()
	}
}

func (m *BatchMetrics) ObserveResolution(strategy string) {
	m.resolutionsTotal.WithLabelValues(strategy).Inc()
}

// ObservePlacement counts a placed (or, in dry-run, planned) document
func (m *BatchMetrics) ObservePlacement(bytes int64, dryRun bool, err error) {
	switch {
	case err != nil:
		m.documentsTotal.WithLabelValues(StatusFailed).Inc()
	case dryRun:
		m.documentsTotal.WithLabelValues(StatusPlanned).Inc()
	default:
		m.documentsTotal.WithLabelValues(StatusPlaced).Inc()
		if bytes > 0 {
			m.copiedBytesTotal.Add(float64(bytes))
		}
	}
}

// Finish stamps the completion time
func (m *BatchMetrics) Finish(at time.Time) {
	m.lastRunTimestamp.Set(float64(at.Unix()))
}

// WriteTextfile writes the registry in the text exposition format. Empty
// path is a no-op.
func (m *BatchMetrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
