// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package seed bootstraps the database from SQL dump files and
// maintains the canonical seed slot. A seed directory may hold several
// dumps dropped in out of band; selection follows a strict priority
// chain so the same directory always yields the same choice.
package seed

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/tutela/internal/logging"
)

// Seed modes.
const (
	ModeAuto   = "auto"   // import when the database is empty, otherwise skip
	ModeImport = "import" // import; a populated database is a conflict
	ModeExport = "export" // export the database into the canonical slot
	ModePrep   = "prep"   // select and validate only, no import
)

// Canonical seed slot names. After any successful export exactly one
// of these exists.
const (
	CanonicalSQL = "seed.sql"
	CanonicalGz  = "seed.sql.gz"
)

// Recognized stale-tolerant symlink names, in preference order.
const (
	latestSQL = "latest.sql"
	latestGz  = "latest.sql.gz"
)

// Candidate is one discoverable seed file. Candidates are read-only
// observations of the seed directory; selection never mutates the set.
type Candidate struct {
	Path       string
	Name       string
	Symlink    bool
	Compressed bool
	Size       int64
	ModTime    time.Time
}

// ListCandidates reads the seed directory and returns its importable
// entries sorted by name. A missing directory yields an empty list; a
// broken symlink is skipped with a warning.
func ListCandidates(dir string) ([]Candidate, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isSeedName(name) {
			continue
		}
		path := filepath.Join(dir, name)
		info, statErr := os.Stat(path)
		if statErr != nil {
			logging.Warn().Str("path", path).Err(statErr).Msg("skipping unreadable seed candidate")
			continue
		}
		candidates = append(candidates, Candidate{
			Path:       path,
			Name:       name,
			Symlink:    entry.Type()&fs.ModeSymlink != 0,
			Compressed: strings.HasSuffix(name, ".sql.gz"),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return candidates, nil
}

func isSeedName(name string) bool {
	return strings.HasSuffix(name, ".sql") || strings.HasSuffix(name, ".sql.gz")
}

// Select picks exactly one candidate, or reports none found. The
// priority chain, first matching rule wins:
//
//  1. No candidates: none found.
//  2. Exactly one candidate: that one.
//  3. Any regular files present: among them prefer .sql over .sql.gz,
//     first in name order within the winning group.
//  4. Only symlinks: latest.sql, then latest.sql.gz.
//  5. Otherwise the first .sql symlink in name order, then the first
//     .sql.gz symlink.
//
// Pure given the candidate list: the same set in any order yields the
// same selection.
func Select(candidates []Candidate) (*Candidate, bool) {
	if len(candidates) == 0 {
		return nil, false
	}

	sorted := make([]Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	if len(sorted) == 1 {
		return &sorted[0], true
	}

	if c := firstMatch(sorted, func(c Candidate) bool { return !c.Symlink && !c.Compressed }); c != nil {
		return c, true
	}
	if c := firstMatch(sorted, func(c Candidate) bool { return !c.Symlink }); c != nil {
		return c, true
	}
	if c := firstMatch(sorted, func(c Candidate) bool { return c.Name == latestSQL }); c != nil {
		return c, true
	}
	if c := firstMatch(sorted, func(c Candidate) bool { return c.Name == latestGz }); c != nil {
		return c, true
	}
	if c := firstMatch(sorted, func(c Candidate) bool { return !c.Compressed }); c != nil {
		return c, true
	}
	return &sorted[0], true
}

func firstMatch(candidates []Candidate, pred func(Candidate) bool) *Candidate {
	for i := range candidates {
		if pred(candidates[i]) {
			return &candidates[i]
		}
	}
	return nil
}
