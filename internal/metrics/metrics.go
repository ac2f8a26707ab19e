// Package metrics exposes Prometheus collectors for the harvesting
// pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	queriesTotal        *prometheus.CounterVec
	workItemsTotal      *prometheus.CounterVec
	fragmentsTotal      *prometheus.CounterVec
	failuresTotal       *prometheus.CounterVec
	paceDelaySeconds    prometheus.Histogram
	sessionsOutstanding prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		queriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_queries_total",
				Help: "Stage-1 discovery queries issued, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		workItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_work_items_total",
				Help: "Stage-2 work items scheduled, labeled by source.",
			},
			[]string{"source"},
		)

		fragmentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_fragments_total",
				Help: "Fragments stored, labeled by source.",
			},
			[]string{"source"},
		)

		failuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "prospector_failures_total",
				Help: "Per-item harvest failures, labeled by source and stage.",
			},
			[]string{"source", "stage"},
		)

		paceDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "prospector_pace_delay_seconds",
				Help:    "Histogram of rate-limit wait durations before query calls.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
		)

		sessionsOutstanding = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "prospector_sessions_outstanding",
				Help: "Browser sessions currently lent out of the pool.",
			},
		)
	})
}

// Handler returns an http.Handler exposing the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveQuery records one Stage-1 query attempt.
func ObserveQuery(source string, ok bool) {
	if queriesTotal == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	queriesTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveWorkItems records the Stage-2 batch size for a source.
func ObserveWorkItems(source string, n int) {
	if workItemsTotal == nil || n <= 0 {
		return
	}
	workItemsTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveFragments records stored fragments for a source.
func ObserveFragments(source string, n int) {
	if fragmentsTotal == nil || n <= 0 {
		return
	}
	fragmentsTotal.WithLabelValues(source).Add(float64(n))
}

// ObserveFailure records one per-item failure at a stage.
func ObserveFailure(source, stage string) {
	if failuresTotal == nil {
		return
	}
	failuresTotal.WithLabelValues(source, stage).Inc()
}

// ObservePaceDelay records a wait introduced by the query pacer.
func ObservePaceDelay(d time.Duration) {
	if paceDelaySeconds == nil || d <= 0 {
		return
	}
	paceDelaySeconds.Observe(d.Seconds())
}

// SessionBorrowed adjusts the outstanding-session gauge.
func SessionBorrowed(delta int) {
	if sessionsOutstanding == nil {
		return
	}
	sessionsOutstanding.Add(float64(delta))
}
