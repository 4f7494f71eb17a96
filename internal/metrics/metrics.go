// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the lifecycle pipeline:
// - run outcomes and durations per action
// - archive creation, restore, and prune housekeeping
// - seed import/export activity

var (
	// Run Metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutela_runs_total",
			Help: "Total lifecycle runs by decided action and outcome",
		},
		[]string{"action", "outcome"}, // action: backup|restore, outcome: success|failure
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutela_run_duration_seconds",
			Help:    "Duration of lifecycle runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"action"},
	)

	LastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tutela_last_run_timestamp_seconds",
			Help: "Unix timestamp of the most recent lifecycle run",
		},
	)

	// Repository Metrics
	ArchivesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutela_archives_created_total",
			Help: "Total archives created in the snapshot repository",
		},
	)

	RestoresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutela_restores_total",
			Help: "Total volumes restored from the snapshot repository",
		},
	)

	PruneWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutela_prune_warnings_total",
			Help: "Total non-fatal retention housekeeping failures",
		},
	)

	// Seed Metrics
	SeedImports = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutela_seed_imports_total",
			Help: "Total seed dumps imported into the database",
		},
	)

	SeedExports = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutela_seed_exports_total",
			Help: "Total database exports into the canonical seed slot",
		},
	)

	// Scheduler Metrics
	ScheduledSkips = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutela_scheduled_skips_total",
			Help: "Total scheduler ticks skipped because the volumes were not in a backup state",
		},
	)
)

// RecordRun records one lifecycle run's outcome and duration.
func RecordRun(action string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	RunsTotal.WithLabelValues(action, outcome).Inc()
	RunDuration.WithLabelValues(action).Observe(duration.Seconds())
	LastRunTimestamp.SetToCurrentTime()
}

// RecordPruneWarning counts one non-fatal housekeeping failure.
func RecordPruneWarning() {
	PruneWarnings.Inc()
}
