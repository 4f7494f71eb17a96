// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/decision"
	"github.com/tomtom215/tutela/internal/journal"
	"github.com/tomtom215/tutela/internal/metrics"
	"github.com/tomtom215/tutela/internal/volume"
)

// BackupRunner executes one journaled lifecycle run. Satisfied by
// *lifecycle.Runner.
type BackupRunner interface {
	Run(ctx context.Context) (*journal.RunRecord, error)
}

// IntervalRunnerService triggers a backup run on a fixed cadence.
//
// Each tick re-detects the volume states. A tick is only acted on when
// the decision engine would back up; any other state means the stack is
// mid-restore or freshly installed, and a scheduled run would be the
// wrong tool, so the tick is logged and skipped.
type IntervalRunnerService struct {
	runner   BackupRunner
	volumes  config.VolumesConfig
	interval time.Duration
	logger   zerolog.Logger
	name     string
}

// NewIntervalRunnerService creates the scheduler service. Config
// validation enforces the one-minute floor on the interval; a
// non-positive value here falls back to daily.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewIntervalRunnerService(runner BackupRunner, volumes config.VolumesConfig, interval time.Duration, logger zerolog.Logger) *IntervalRunnerService {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &IntervalRunnerService{
		runner:   runner,
		volumes:  volumes,
		interval: interval,
		logger:   logger.With().Str("service", "interval-runner").Logger(),
		name:     "interval-runner",
	}
}

// Serve implements suture.Service. It ticks at the configured interval
// until the context is canceled.
func (s *IntervalRunnerService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Msg("backup scheduler starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("backup scheduler shutting down")
			return ctx.Err()

		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one scheduled cycle. Run failures are logged, not returned:
// a failed backup must not crash the scheduler out of its cadence.
func (s *IntervalRunnerService) tick(ctx context.Context) {
	dbState, appState := volume.DetectAll(s.volumes)
	d := decision.Decide(dbState.HasData, appState.HasData)

	if d.Action != decision.ActionBackup {
		s.logger.Warn().
			Str("decided_action", string(d.Action)).
			Str("reason", d.Reason).
			Msg("volumes not in a backup state, skipping scheduled run")
		metrics.ScheduledSkips.Inc()
		return
	}

	start := time.Now()
	s.logger.Info().Msg("scheduled backup run starting")

	rec, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error().Err(err).
			Dur("duration", time.Since(start)).
			Msg("scheduled backup run failed")
		return
	}

	s.logger.Info().
		Str("run_id", rec.ID).
		Str("outcome", string(rec.Outcome)).
		Dur("duration", time.Since(start)).
		Msg("scheduled backup run complete")
}

// String identifies the service in supervisor logs.
func (s *IntervalRunnerService) String() string {
	return s.name
}
