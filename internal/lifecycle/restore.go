// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/tutela/internal/borg"
	"github.com/tomtom215/tutela/internal/fault"
	"github.com/tomtom215/tutela/internal/logging"
	"github.com/tomtom215/tutela/internal/metrics"
	"github.com/tomtom215/tutela/internal/volume"
)

// restoreStep is one planned extraction.
type restoreStep struct {
	tag     volume.Tag
	archive string
	dest    string
}

// Restore recovers empty volumes from the latest archive of each tag.
//
// A populated volume is never extracted over. When both volumes are
// empty, recovery requires a complete pair: if either tag has no
// archive, nothing is restored and the run is the fresh-install no-op.
// When exactly one volume is empty, it is restored alone from the
// latest archive of its tag.
//
// Extractions that were planned all get attempted. A mix of success
// and failure surfaces as a PartialFailure naming both sides.
func (e *Executor) Restore(ctx context.Context, dbState, appState volume.State) (*RestoreResult, error) {
	archives, err := e.repo.List(ctx)
	if err != nil {
		return nil, &fault.ConnectivityError{Target: "repository", Err: err}
	}

	res := &RestoreResult{}
	plan := e.planRestore(dbState, appState, latestByTag(archives), res)
	if len(plan) == 0 {
		logging.Info().
			Bool("fresh_install", res.FreshInstall).
			Strs("skipped", res.Skipped).
			Msg("nothing to restore")
		return res, nil
	}

	var failed []string
	var errs []error
	for _, step := range plan {
		logging.Info().
			Str("archive", step.archive).
			Str("dest", step.dest).
			Msg("restoring archive")

		if err := e.repo.Extract(ctx, step.archive, step.dest); err != nil {
			failed = append(failed, step.archive)
			errs = append(errs, fmt.Errorf("extract %s into %s: %w", step.archive, step.dest, err))
			continue
		}

		res.Restored = append(res.Restored, step.archive)
		metrics.RestoresTotal.Inc()
	}

	if len(errs) > 0 {
		if len(res.Restored) > 0 {
			return nil, &fault.PartialFailure{
				Op:        "restore",
				Succeeded: res.Restored,
				Failed:    failed,
				Errs:      errs,
			}
		}
		return nil, errors.Join(errs...)
	}

	logging.Info().Strs("restored", res.Restored).Msg("restore complete")
	return res, nil
}

// planRestore maps the volume states and available archives to the
// extractions to perform, recording skips on the result.
func (e *Executor) planRestore(dbState, appState volume.State, latest map[volume.Tag]borg.Archive, res *RestoreResult) []restoreStep {
	// A pairless repository cannot recover a fully empty stack; that
	// is a fresh install, not a failure.
	if !dbState.HasData && !appState.HasData {
		_, haveDB := latest[volume.TagDB]
		_, haveApp := latest[volume.TagApp]
		if !haveDB || !haveApp {
			res.FreshInstall = true
			for _, tag := range volume.Tags {
				res.Skipped = append(res.Skipped, string(tag)+" (fresh install)")
			}
			logging.Info().
				Bool("db_archive", haveDB).
				Bool("app_archive", haveApp).
				Msg("both volumes empty without a complete archive pair, fresh install")
			return nil
		}
	}

	var plan []restoreStep
	for _, st := range []volume.State{dbState, appState} {
		if st.HasData {
			res.Skipped = append(res.Skipped, string(st.Tag)+" (holds data)")
			logging.Info().
				Str("volume", string(st.Tag)).
				Msg("volume holds data, left untouched")
			continue
		}

		arc, ok := latest[st.Tag]
		if !ok {
			res.Skipped = append(res.Skipped, string(st.Tag)+" (no archive)")
			logging.Warn().
				Str("volume", string(st.Tag)).
				Msg("volume is empty but the repository has no archive for it")
			continue
		}

		plan = append(plan, restoreStep{tag: st.Tag, archive: arc.Name, dest: e.volumePath(st.Tag)})
	}
	return plan
}

// latestByTag picks the newest archive per volume tag: newest embedded
// run timestamp, archive creation time as tiebreak. Archives whose
// names do not follow the naming convention are not ours and are
// ignored.
func latestByTag(archives []borg.Archive) map[volume.Tag]borg.Archive {
	latest := make(map[volume.Tag]borg.Archive, len(volume.Tags))
	for _, arc := range archives {
		tag, ts, ok := borg.ParseArchiveName(arc.Name)
		if !ok {
			logging.Debug().Str("archive", arc.Name).Msg("ignoring foreign archive")
			continue
		}

		cur, exists := latest[tag]
		if !exists {
			latest[tag] = arc
			continue
		}

		// The run timestamp layout is fixed width, so the lexical
		// comparison is chronological.
		curTS, _ := cur.RunTimestamp()
		if ts > curTS || (ts == curTS && arc.Time.After(cur.Time)) {
			latest[tag] = arc
		}
	}
	return latest
}
