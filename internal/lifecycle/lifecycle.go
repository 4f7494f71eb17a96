// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package lifecycle executes the decided action against the snapshot
// repository: archiving both volumes as a matched pair, or recovering
// empty volumes from the latest archives. It never overwrites a
// populated volume and never half-applies a pair silently.
package lifecycle

import (
	"time"

	"github.com/tomtom215/tutela/internal/borg"
	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/seed"
	"github.com/tomtom215/tutela/internal/volume"
)

// Executor runs backup and restore operations against one repository.
type Executor struct {
	repo   borg.Client
	cfg    *config.Config
	seeder *seed.Seeder

	// now supplies the run timestamp; fixed in tests.
	now func() time.Time
}

// NewExecutor builds an executor. seeder may be nil when the seed
// phase is disabled; only export-after-backup uses it.
func NewExecutor(repo borg.Client, cfg *config.Config, seeder *seed.Seeder) *Executor {
	return &Executor{repo: repo, cfg: cfg, seeder: seeder, now: time.Now}
}

// BackupResult reports what a backup run produced.
type BackupResult struct {
	// Timestamp is the shared run timestamp embedded in both archive names.
	Timestamp string

	// Archives are the archive names created, in backup order.
	Archives []string

	// PruneWarnings are retention failures that did not fail the run.
	PruneWarnings []string

	// SeedExported reports whether the chained seed export ran.
	SeedExported bool
}

// RestoreResult reports what a restore run did.
type RestoreResult struct {
	// Restored are the archive names extracted, in restore order.
	Restored []string

	// Skipped are the volume tags left untouched and why.
	Skipped []string

	// FreshInstall is set when both volumes were empty and the
	// repository held no usable pair: a new deployment, not a failure.
	FreshInstall bool
}

// volumePath returns the configured mount path for a volume tag.
func (e *Executor) volumePath(tag volume.Tag) string {
	if tag == volume.TagDB {
		return e.cfg.Volumes.DB.Path
	}
	return e.cfg.Volumes.App.Path
}

// retentionPolicy maps the configured tiers onto the repository policy.
func (e *Executor) retentionPolicy() borg.RetentionPolicy {
	return borg.RetentionPolicy{
		KeepDaily:   e.cfg.Retention.KeepDaily,
		KeepWeekly:  e.cfg.Retention.KeepWeekly,
		KeepMonthly: e.cfg.Retention.KeepMonthly,
	}
}
