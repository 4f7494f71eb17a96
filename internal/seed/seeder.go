// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package seed

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/pgzip"

	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/database"
	"github.com/tomtom215/tutela/internal/fault"
	"github.com/tomtom215/tutela/internal/logging"
	"github.com/tomtom215/tutela/internal/metrics"
)

// Seeder runs the seed phase against one database.
type Seeder struct {
	cfg config.SeedConfig
	db  database.Client
}

// New creates a Seeder.
func New(cfg config.SeedConfig, db database.Client) *Seeder {
	return &Seeder{cfg: cfg, db: db}
}

// Report says what a seed phase actually did. Modes that legitimately
// do nothing (auto against a populated database, a non-strict missing
// seed, prep dry runs) return a zero Report with a nil error.
type Report struct {
	Imported bool
	Exported bool
}

// Run dispatches one seed phase by mode.
func (s *Seeder) Run(ctx context.Context, mode string) (Report, error) {
	switch mode {
	case ModeImport:
		imported, err := s.runImport(ctx, true)
		return Report{Imported: imported}, err
	case ModeExport:
		if err := s.Export(ctx); err != nil {
			return Report{}, err
		}
		return Report{Exported: true}, nil
	case ModePrep:
		_, err := s.Prep(ctx)
		return Report{}, err
	case ModeAuto, "":
		imported, err := s.runImport(ctx, false)
		return Report{Imported: imported}, err
	default:
		return Report{}, &fault.ConfigurationError{Setting: "SEED_MODE", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
}

// runImport is the shared import flow. With demandEmpty a populated
// database is fatal; without it (auto mode) it is an ordinary skip.
func (s *Seeder) runImport(ctx context.Context, demandEmpty bool) (bool, error) {
	if err := s.waitReady(ctx); err != nil {
		return false, err
	}

	empty, err := s.db.IsEmpty(ctx)
	if err != nil {
		return false, fmt.Errorf("seed: check database: %w", err)
	}
	if !empty {
		if demandEmpty {
			return false, &fault.ConflictError{Op: "seed import", Reason: "database is not empty"}
		}
		logging.Info().Msg("database already populated, nothing to seed")
		return false, nil
	}

	cand, err := s.selectSeed()
	if err != nil {
		return false, err
	}
	if cand == nil {
		return false, nil
	}
	if err := s.stream(ctx, cand); err != nil {
		return false, err
	}
	return true, nil
}

// Prep selects and validates the seed without touching the database.
// A nil candidate with a nil error means nothing to import (non-strict
// skip).
func (s *Seeder) Prep(ctx context.Context) (*Candidate, error) {
	cand, err := s.selectSeed()
	if err != nil || cand == nil {
		return nil, err
	}
	if err := s.validate(cand); err != nil {
		return nil, err
	}
	logging.Info().
		Str("seed", cand.Path).
		Bool("compressed", cand.Compressed).
		Int64("bytes", cand.Size).
		Time("modified", cand.ModTime).
		Msg("seed candidate selected")
	return cand, nil
}

// selectSeed scans the directory and applies the priority chain.
// Missing seed is fatal only in strict mode.
func (s *Seeder) selectSeed() (*Candidate, error) {
	candidates, err := ListCandidates(s.cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("seed: scan %s: %w", s.cfg.Dir, err)
	}
	cand, ok := Select(candidates)
	if !ok {
		if s.cfg.Strict {
			return nil, &fault.ConfigurationError{
				Setting: "SEED_DIR",
				Reason:  fmt.Sprintf("no seed candidate in %s and strict mode is set", s.cfg.Dir),
			}
		}
		logging.Warn().Str("dir", s.cfg.Dir).Msg("no seed candidate found, skipping")
		return nil, nil
	}
	return cand, nil
}

// validate checks the candidate opens, and for compressed seeds that
// the gzip header parses.
func (s *Seeder) validate(cand *Candidate) error {
	f, err := os.Open(cand.Path)
	if err != nil {
		return fmt.Errorf("seed: open %s: %w", cand.Name, err)
	}
	defer f.Close()

	if cand.Compressed {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("seed: %s is not valid gzip: %w", cand.Name, err)
		}
		gz.Close()
	}
	return nil
}

// stream feeds the candidate into the database, decompressing on the
// fly when needed. The dump never lands on disk or in memory whole.
func (s *Seeder) stream(ctx context.Context, cand *Candidate) error {
	f, err := os.Open(cand.Path)
	if err != nil {
		return fmt.Errorf("seed: open %s: %w", cand.Name, err)
	}
	defer f.Close()

	var r io.Reader = f
	if cand.Compressed {
		gz, gzErr := pgzip.NewReader(f)
		if gzErr != nil {
			return fmt.Errorf("seed: %s is not valid gzip: %w", cand.Name, gzErr)
		}
		defer gz.Close()
		r = gz
	}

	if err := s.db.ImportStream(ctx, r); err != nil {
		logging.Error().Str("seed", cand.Path).Err(err).Msg("seed import failed")
		return fmt.Errorf("seed: import %s: %w", cand.Name, err)
	}

	metrics.SeedImports.Inc()
	logging.Info().Str("seed", cand.Path).Int64("bytes", cand.Size).Msg("seed imported")
	return nil
}

// waitReady blocks for the database within the configured bound.
func (s *Seeder) waitReady(ctx context.Context) error {
	if err := s.db.WaitReady(ctx); err != nil {
		return &fault.ConnectivityError{Target: "database", Err: err}
	}
	return nil
}
