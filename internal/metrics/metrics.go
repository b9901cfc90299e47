// Package metrics holds the prometheus instruments of the announcement
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics.
type Metrics struct {
	JobsEnqueued      *prometheus.CounterVec
	JobsRejected      *prometheus.CounterVec
	Playbacks         *prometheus.CounterVec
	PlaybackDuration  prometheus.Histogram
	QueueDepth        prometheus.Gauge
	SnapshotsIngested *prometheus.CounterVec
	TrackedFlights    prometheus.Gauge
	Syntheses         *prometheus.CounterVec
}

// New registers the metrics with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		JobsEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Announcement jobs accepted by the playback queue",
		}, []string{"call"}),
		JobsRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rejected_total",
			Help:      "Announcement jobs rejected as duplicates",
		}, []string{"call"}),
		Playbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playbacks_total",
			Help:      "Playback attempts by outcome",
		}, []string{"call", "status"}),
		PlaybackDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "playback_duration_seconds",
			Help:      "Wall time spent playing one announcement",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120},
		}),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Jobs waiting in the playback queue",
		}),
		SnapshotsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_ingested_total",
			Help:      "Flight snapshots seen by the monitor by outcome",
		}, []string{"status"}),
		TrackedFlights: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_flights",
			Help:      "Flights held in the monitor's snapshot table",
		}),
		Syntheses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "syntheses_total",
			Help:      "TTS pipeline runs by outcome",
		}, []string{"status"}),
	}
}

// Nop returns metrics bound to a private registry. Handy for tests and for
// components constructed without instrumentation.
func Nop() *Metrics {
	return New("gatecaller", prometheus.NewRegistry())
}
