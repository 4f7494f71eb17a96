// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/tomtom215/tutela/internal/fault"
	"github.com/tomtom215/tutela/internal/logging"
	"github.com/tomtom215/tutela/internal/metrics"
)

const (
	tempPattern       = "seed-*.tmp"
	historyTimeLayout = "20060102_150405"
)

// Export dumps the database into the canonical seed slot. The dump
// streams through a temp file in the seed directory and lands with an
// atomic rename, so a crashed export leaves the previous seed intact.
// After a successful export exactly one canonical seed file exists.
func (s *Seeder) Export(ctx context.Context) error {
	if err := s.waitReady(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return fmt.Errorf("seed: create %s: %w", s.cfg.Dir, err)
	}
	s.cleanDebris()

	canonical := s.canonicalName()
	target := filepath.Join(s.cfg.Dir, canonical)

	tmpPath, err := s.dumpToTemp(ctx)
	if err != nil {
		return err
	}

	if s.cfg.HistoryKeep > 0 {
		s.rotateHistory()
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("seed: install %s: %w", canonical, err)
	}
	if err := s.removeStale(canonical); err != nil {
		return err
	}
	if s.cfg.HistoryKeep > 0 {
		s.pruneHistory()
	}

	metrics.SeedExports.Inc()
	logging.Info().Str("seed", target).Msg("database exported to canonical seed slot")
	return nil
}

func (s *Seeder) canonicalName() string {
	if s.cfg.Compress {
		return CanonicalGz
	}
	return CanonicalSQL
}

// dumpToTemp streams the dump into a fresh temp file in the seed
// directory (same filesystem as the slot, so the rename is atomic) and
// returns its path.
func (s *Seeder) dumpToTemp(ctx context.Context) (path string, retErr error) {
	tmp, err := os.CreateTemp(s.cfg.Dir, tempPattern)
	if err != nil {
		return "", fmt.Errorf("seed: create temp dump: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if retErr != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if s.cfg.Compress {
		gz := pgzip.NewWriter(tmp)
		if err := s.db.Dump(ctx, gz); err != nil {
			return "", fmt.Errorf("seed: dump database: %w", err)
		}
		if err := gz.Close(); err != nil {
			return "", fmt.Errorf("seed: finish gzip stream: %w", err)
		}
	} else {
		if err := s.db.Dump(ctx, tmp); err != nil {
			return "", fmt.Errorf("seed: dump database: %w", err)
		}
	}

	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("seed: close temp dump: %w", err)
	}
	return tmpPath, nil
}

// removeStale deletes the other-extension canonical file so the
// single-canonical invariant holds.
func (s *Seeder) removeStale(installed string) error {
	for _, name := range []string{CanonicalSQL, CanonicalGz} {
		if name == installed {
			continue
		}
		path := filepath.Join(s.cfg.Dir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("seed: remove stale %s: %w", name, err)
		}
	}
	return nil
}

// rotateHistory renames the current canonical seed, if any, to a
// timestamped history copy before the new one lands. Failures are
// warnings: history is best-effort, the export is not.
func (s *Seeder) rotateHistory() {
	for _, name := range []string{CanonicalSQL, CanonicalGz} {
		path := filepath.Join(s.cfg.Dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		ts := info.ModTime().UTC().Format(historyTimeLayout)
		historyName := "seed_" + ts + name[len("seed"):]
		if err := os.Rename(path, filepath.Join(s.cfg.Dir, historyName)); err != nil {
			warn := &fault.PolicyWarning{Op: "seed history rotate", Err: err}
			logging.Warn().Err(warn).Msg("could not keep previous seed as history")
			metrics.RecordPruneWarning()
		}
	}
}

// pruneHistory trims timestamped history copies to the configured
// keep count. Failures are warnings.
func (s *Seeder) pruneHistory() {
	history := s.historyFiles()
	if len(history) <= s.cfg.HistoryKeep {
		return
	}

	// Timestamped names sort chronologically; newest last.
	sort.Strings(history)
	for _, path := range history[:len(history)-s.cfg.HistoryKeep] {
		if err := os.Remove(path); err != nil {
			warn := &fault.PolicyWarning{Op: "seed history prune", Err: err}
			logging.Warn().Err(warn).Msg("could not prune seed history")
			metrics.RecordPruneWarning()
		}
	}
}

func (s *Seeder) historyFiles() []string {
	var history []string
	for _, pattern := range []string{"seed_*.sql", "seed_*.sql.gz"} {
		matches, err := filepath.Glob(filepath.Join(s.cfg.Dir, pattern))
		if err != nil {
			continue
		}
		history = append(history, matches...)
	}
	return history
}

// cleanDebris removes temp files a crashed export left behind.
func (s *Seeder) cleanDebris() {
	matches, err := filepath.Glob(filepath.Join(s.cfg.Dir, tempPattern))
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-time.Minute)
	for _, path := range matches {
		info, statErr := os.Stat(path)
		if statErr != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			logging.Warn().Str("path", path).Err(err).Msg("could not remove stale temp dump")
		}
	}
}
