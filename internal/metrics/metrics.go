// Package metrics defines the Prometheus collectors seedprune updates while
// sweeping. They are served on /metrics by the watch daemon.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SweepsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "seedprune",
		Name:      "sweeps_total",
		Help:      "Total number of sweeps started.",
	})

	SweepFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "seedprune",
		Name:      "sweep_failures_total",
		Help:      "Total number of sweeps aborted because the torrent list could not be fetched.",
	})

	SweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "seedprune",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of a complete sweep in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	LastSweepTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "seedprune",
		Name:      "last_sweep_timestamp_seconds",
		Help:      "Unix time at which the most recent sweep finished.",
	})

	TorrentsExamined = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "seedprune",
		Name:      "torrents_examined",
		Help:      "Number of torrents examined by the most recent sweep.",
	})

	RetirementsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seedprune",
		Name:      "retirements_total",
		Help:      "Total torrents retired by reason and dry-run mode.",
	}, []string{"reason", "dry_run"})

	RetirementFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "seedprune",
		Name:      "retirement_failures_total",
		Help:      "Total failed stop or remove calls by action.",
	}, []string{"action"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		SweepsTotal,
		SweepFailuresTotal,
		SweepDuration,
		LastSweepTimestamp,
		TorrentsExamined,
		RetirementsTotal,
		RetirementFailuresTotal,
	)
}
