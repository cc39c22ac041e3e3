package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// WorkerMetrics covers chunk and index processing of single works.
type WorkerMetrics struct {
	registry *prometheus.Registry

	documentsTotal   *prometheus.CounterVec
	documentDuration *prometheus.HistogramVec
	documentInFlight prometheus.Gauge
	chunksEmitted    *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "documents_total",
			Help:      "Total processed works by status.",
		},
		[]string{"service", "status"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "document_duration_seconds",
			Help:      "Work processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	documentInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "documents_in_flight",
			Help:      "Number of works being processed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	chunksEmitted := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "chunks_emitted_total",
			Help:      "Total chunks written by level.",
		},
		[]string{"service", "level"},
	)

	registry.MustRegister(documentsTotal, documentDuration, documentInFlight, chunksEmitted)

	return &WorkerMetrics{
		registry:         registry,
		documentsTotal:   documentsTotal,
		documentDuration: documentDuration,
		documentInFlight: documentInFlight,
		chunksEmitted:    chunksEmitted,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartDocument() {
	m.documentInFlight.Inc()
}

// FinishDocument records one work. status is the run log status; an error
// overrides it.
func (m *WorkerMetrics) FinishDocument(service, status string, parents, children int, duration time.Duration, err error) {
	m.documentInFlight.Dec()

	if err != nil {
		status = "error"
	}
	if status == "" {
		status = "unknown"
	}

	m.documentsTotal.WithLabelValues(service, status).Inc()
	m.documentDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if parents > 0 {
		m.chunksEmitted.WithLabelValues(service, "parent").Add(float64(parents))
	}
	if children > 0 {
		m.chunksEmitted.WithLabelValues(service, "child").Add(float64(children))
	}
}
