// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/tutela/internal/borg"
	"github.com/tomtom215/tutela/internal/fault"
	"github.com/tomtom215/tutela/internal/logging"
	"github.com/tomtom215/tutela/internal/metrics"
	"github.com/tomtom215/tutela/internal/volume"
)

// Backup archives both volumes under one shared run timestamp, then
// applies retention and the optional chained seed export.
//
// The two creations are all-or-nothing for the run: if either fails,
// the run fails and no pruning happens. Retention failures after a
// successful pair are warnings, never run failures. A chained seed
// export failure fails the run, but the archives already created
// remain valid.
func (e *Executor) Backup(ctx context.Context) (*BackupResult, error) {
	ts := borg.RunTimestamp(e.now())

	// A chained export needs a database name; catch a missing one
	// before any repository work instead of after the archives land.
	if e.cfg.Seed.ExportAfterBackup && e.seeder != nil {
		if err := e.cfg.RequireSeedTarget(); err != nil {
			return nil, err
		}
	}

	if err := e.repo.EnsureRepository(ctx); err != nil {
		return nil, &fault.ConnectivityError{Target: "repository", Err: err}
	}

	res := &BackupResult{Timestamp: ts}
	for _, tag := range volume.Tags {
		name := borg.BuildArchiveName(tag, ts)
		src := e.volumePath(tag)

		logging.Info().
			Str("archive", name).
			Str("source", src).
			Msg("creating archive")

		if err := e.repo.Create(ctx, name, src); err != nil {
			if errors.Is(err, borg.ErrArchiveExists) {
				return nil, &fault.ConflictError{
					Op:     "backup",
					Reason: fmt.Sprintf("archive %s already exists", name),
					Err:    err,
				}
			}
			return nil, fmt.Errorf("create archive %s: %w", name, err)
		}

		res.Archives = append(res.Archives, name)
		metrics.ArchivesCreated.Inc()
	}

	e.applyRetention(ctx, res)

	if e.cfg.Seed.ExportAfterBackup && e.seeder != nil {
		if err := e.seeder.Export(ctx); err != nil {
			return nil, fmt.Errorf("archives [%s] created, but the chained seed export failed: %w",
				strings.Join(res.Archives, ", "), err)
		}
		res.SeedExported = true
	}

	logging.Info().
		Str("timestamp", ts).
		Strs("archives", res.Archives).
		Int("prune_warnings", len(res.PruneWarnings)).
		Msg("backup complete")

	return res, nil
}

// applyRetention prunes each volume tag's archive group and compacts
// the repository. Failures are collected as warnings on the result;
// the backup already succeeded.
func (e *Executor) applyRetention(ctx context.Context, res *BackupResult) {
	policy := e.retentionPolicy()
	if !policy.Enabled() {
		logging.Debug().Msg("retention disabled, skipping prune")
		return
	}

	for _, tag := range volume.Tags {
		if err := e.repo.Prune(ctx, tag.ArchivePrefix(), policy); err != nil {
			e.recordRetentionWarning(res, &fault.PolicyWarning{
				Op:  "prune " + string(tag),
				Err: err,
			})
		}
	}

	if err := e.repo.Compact(ctx); err != nil {
		e.recordRetentionWarning(res, &fault.PolicyWarning{Op: "compact", Err: err})
	}
}

func (e *Executor) recordRetentionWarning(res *BackupResult, warn *fault.PolicyWarning) {
	logging.Warn().Err(warn.Err).Str("op", warn.Op).Msg("retention step failed")
	metrics.RecordPruneWarning()
	res.PruneWarnings = append(res.PruneWarnings, warn.Error())
}
