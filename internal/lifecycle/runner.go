// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/decision"
	"github.com/tomtom215/tutela/internal/fault"
	"github.com/tomtom215/tutela/internal/journal"
	"github.com/tomtom215/tutela/internal/logging"
	"github.com/tomtom215/tutela/internal/metrics"
	"github.com/tomtom215/tutela/internal/seed"
	"github.com/tomtom215/tutela/internal/volume"
)

// Recorder persists run records. *journal.Journal implements it. A nil
// Recorder disables persistence.
type Recorder interface {
	Record(rec *journal.RunRecord) error
}

// Runner is the full lifecycle pipeline: detect volume states, decide
// the action, execute it, and record the outcome.
type Runner struct {
	exec    *Executor
	cfg     *config.Config
	seeder  *seed.Seeder
	journal Recorder
}

// NewRunner builds a runner. seeder and journal may be nil when those
// phases are disabled.
func NewRunner(exec *Executor, cfg *config.Config, seeder *seed.Seeder, journal Recorder) *Runner {
	return &Runner{exec: exec, cfg: cfg, seeder: seeder, journal: journal}
}

// Run executes one lifecycle pass with the decided action.
func (r *Runner) Run(ctx context.Context) (*journal.RunRecord, error) {
	return r.run(ctx, "")
}

// RunAction executes one lifecycle pass with the given action instead
// of the decided one. Restores still never overwrite populated volumes.
func (r *Runner) RunAction(ctx context.Context, action decision.Action) (*journal.RunRecord, error) {
	return r.run(ctx, action)
}

func (r *Runner) run(ctx context.Context, forced decision.Action) (*journal.RunRecord, error) {
	started := time.Now()
	rec := &journal.RunRecord{
		ID:        uuid.NewString(),
		StartedAt: started.UTC(),
	}

	dbState, appState := volume.DetectAll(r.cfg.Volumes)
	d := decision.Decide(dbState.HasData, appState.HasData)
	if forced != "" && forced != d.Action {
		logging.Warn().
			Str("decided", string(d.Action)).
			Str("forced", string(forced)).
			Msg("overriding decided action")
		d.Action = forced
		d.Reason = "operator forced " + string(forced)
	}

	rec.Action = string(d.Action)
	rec.Reason = d.Reason
	rec.DBHasData = d.DBHasData
	rec.AppHasData = d.AppHasData

	logging.Info().
		Str("run_id", rec.ID).
		Str("action", rec.Action).
		Str("reason", rec.Reason).
		Bool("db_has_data", rec.DBHasData).
		Bool("app_has_data", rec.AppHasData).
		Msg("lifecycle run starting")

	var runErr error
	switch d.Action {
	case decision.ActionBackup:
		runErr = r.runBackup(ctx, rec)
	case decision.ActionRestore:
		runErr = r.runRestore(ctx, rec, dbState, appState)
	}

	r.finish(rec, started, runErr)
	return rec, runErr
}

// RunSeed executes the seed phase as a recorded run. An empty mode
// uses the configured one.
func (r *Runner) RunSeed(ctx context.Context, mode string) (*journal.RunRecord, error) {
	started := time.Now()
	if mode == "" {
		mode = r.cfg.Seed.Mode
	}
	rec := &journal.RunRecord{
		ID:        uuid.NewString(),
		StartedAt: started.UTC(),
		Action:    "seed",
		Reason:    "seed mode " + mode,
	}

	if r.seeder == nil {
		rec.FinishedAt = time.Now().UTC()
		rec.Outcome = journal.OutcomeNoop
		logging.Info().Str("run_id", rec.ID).Msg("seed phase disabled")
		return rec, nil
	}

	rep, err := r.seeder.Run(ctx, mode)
	rec.SeedImported = rep.Imported
	rec.SeedExported = rep.Exported

	r.finish(rec, started, err)
	return rec, err
}

func (r *Runner) runBackup(ctx context.Context, rec *journal.RunRecord) error {
	res, err := r.exec.Backup(ctx)
	if err != nil {
		return err
	}
	rec.Archives = res.Archives
	rec.PruneWarnings = res.PruneWarnings
	rec.SeedExported = res.SeedExported
	return nil
}

func (r *Runner) runRestore(ctx context.Context, rec *journal.RunRecord, dbState, appState volume.State) error {
	res, err := r.exec.Restore(ctx, dbState, appState)
	if err != nil {
		// A partial failure still restored something; the record keeps it.
		var partial *fault.PartialFailure
		if errors.As(err, &partial) {
			rec.Restored = partial.Succeeded
		}
		return err
	}
	rec.Restored = res.Restored
	return nil
}

// finish closes out the record, updates metrics, and persists the
// record. Journal write failures never fail the run.
func (r *Runner) finish(rec *journal.RunRecord, started time.Time, runErr error) {
	rec.FinishedAt = time.Now().UTC()
	rec.Outcome = classify(rec, runErr)
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	metrics.RecordRun(rec.Action, time.Since(started), runErr)

	if r.journal != nil {
		if err := r.journal.Record(rec); err != nil {
			logging.Warn().Err(err).Str("run_id", rec.ID).Msg("journal write failed")
		}
	}

	evt := logging.Info()
	if runErr != nil {
		evt = logging.Error().Err(runErr)
	}
	evt.
		Str("run_id", rec.ID).
		Str("action", rec.Action).
		Str("outcome", string(rec.Outcome)).
		Dur("duration", rec.FinishedAt.Sub(rec.StartedAt)).
		Msg("lifecycle run finished")
}

// classify maps a finished run onto its journal outcome. A restore or
// seed run that legitimately did nothing is a no-op, not a success.
func classify(rec *journal.RunRecord, runErr error) journal.Outcome {
	if runErr != nil {
		return journal.OutcomeFailed
	}
	switch rec.Action {
	case string(decision.ActionRestore):
		if len(rec.Restored) == 0 {
			return journal.OutcomeNoop
		}
	case "seed":
		if !rec.SeedImported && !rec.SeedExported {
			return journal.OutcomeNoop
		}
	}
	return journal.OutcomeOK
}
