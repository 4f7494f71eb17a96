// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package seed

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/tomtom215/tutela/internal/database"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func readGzip(t *testing.T, path string) string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := pgzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader for %s: %v", path, err)
	}
	defer gz.Close()
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestExportCompressedCanonical(t *testing.T) {
	ctx := context.Background()
	db := database.NewFake()
	db.DumpData = []byte("-- dump\nCREATE TABLE t (id INT);\n")
	s, dir := testSeeder(t, db)

	if err := s.Export(ctx); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	if got := listDir(t, dir); len(got) != 1 || got[0] != CanonicalGz {
		t.Fatalf("seed dir = %v, want exactly [%s]", got, CanonicalGz)
	}
	if got := readGzip(t, filepath.Join(dir, CanonicalGz)); got != string(db.DumpData) {
		t.Errorf("canonical content = %q, want the dump", got)
	}
}

func TestExportUncompressedCanonical(t *testing.T) {
	ctx := context.Background()
	db := database.NewFake()
	db.DumpData = []byte("-- dump\n")
	s, dir := testSeeder(t, db)
	s.cfg.Compress = false

	if err := s.Export(ctx); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, CanonicalSQL))
	if err != nil {
		t.Fatalf("read canonical: %v", err)
	}
	if string(data) != "-- dump\n" {
		t.Errorf("canonical content = %q, want the dump", data)
	}
}

func TestExportRemovesStaleCanonical(t *testing.T) {
	ctx := context.Background()
	db := database.NewFake()
	db.DumpData = []byte("-- new dump\n")
	s, dir := testSeeder(t, db)

	// A leftover uncompressed canonical from an earlier configuration.
	writeSeed(t, dir, CanonicalSQL, "-- old dump\n")

	if err := s.Export(ctx); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if got := listDir(t, dir); len(got) != 1 || got[0] != CanonicalGz {
		t.Errorf("seed dir = %v, want exactly [%s] after export", got, CanonicalGz)
	}
}

func TestExportOverwritesPreviousCanonical(t *testing.T) {
	ctx := context.Background()
	db := database.NewFake()
	db.DumpData = []byte("-- first\n")
	s, dir := testSeeder(t, db)

	if err := s.Export(ctx); err != nil {
		t.Fatalf("first Export() error = %v", err)
	}
	db.DumpData = []byte("-- second\n")
	if err := s.Export(ctx); err != nil {
		t.Fatalf("second Export() error = %v", err)
	}

	if got := readGzip(t, filepath.Join(dir, CanonicalGz)); got != "-- second\n" {
		t.Errorf("canonical content = %q, want the newest dump", got)
	}
	if got := listDir(t, dir); len(got) != 1 {
		t.Errorf("seed dir = %v, want single canonical with history disabled", got)
	}
}

func TestExportKeepsHistory(t *testing.T) {
	ctx := context.Background()
	db := database.NewFake()
	s, dir := testSeeder(t, db)
	s.cfg.HistoryKeep = 2

	base := time.Date(2026, 1, 10, 2, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		db.DumpData = []byte("-- dump " + string(rune('a'+i)) + "\n")
		if err := s.Export(ctx); err != nil {
			t.Fatalf("Export() #%d error = %v", i, err)
		}
		// Distinct mtimes so each rotation gets its own history name.
		at := base.AddDate(0, 0, i)
		if err := os.Chtimes(filepath.Join(dir, CanonicalGz), at, at); err != nil {
			t.Fatal(err)
		}
	}

	names := listDir(t, dir)
	var history []string
	var canonical int
	for _, name := range names {
		switch {
		case name == CanonicalGz:
			canonical++
		case len(name) > 5 && name[:5] == "seed_":
			history = append(history, name)
		default:
			t.Errorf("unexpected file %q in seed dir", name)
		}
	}
	if canonical != 1 {
		t.Errorf("canonical count = %d, want 1", canonical)
	}
	if len(history) != 2 {
		t.Errorf("history files = %v, want 2 kept", history)
	}
}

func TestExportFailureLeavesPreviousSeed(t *testing.T) {
	ctx := context.Background()
	db := database.NewFake()
	db.DumpData = []byte("-- good\n")
	s, dir := testSeeder(t, db)

	if err := s.Export(ctx); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	db.DumpErr = os.ErrDeadlineExceeded
	if err := s.Export(ctx); err == nil {
		t.Fatal("Export() error = nil with failing dump, want error")
	}

	if got := readGzip(t, filepath.Join(dir, CanonicalGz)); got != "-- good\n" {
		t.Errorf("canonical content = %q, want previous dump intact", got)
	}
	if got := listDir(t, dir); len(got) != 1 {
		t.Errorf("seed dir = %v, want no temp debris after failed export", got)
	}
}

func TestExportCleansStaleTempFiles(t *testing.T) {
	ctx := context.Background()
	db := database.NewFake()
	db.DumpData = []byte("-- dump\n")
	s, dir := testSeeder(t, db)

	stale := filepath.Join(dir, "seed-99999.tmp")
	writeSeed(t, dir, "seed-99999.tmp", "debris")
	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}

	if err := s.Export(ctx); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale temp dump survived export")
	}
}
