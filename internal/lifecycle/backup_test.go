// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/tutela/internal/borg"
	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/database"
	"github.com/tomtom215/tutela/internal/fault"
	"github.com/tomtom215/tutela/internal/seed"
	"github.com/tomtom215/tutela/internal/volume"
)

// testConfig builds a config whose volume paths live under a fresh
// temp dir. Both volumes start empty.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	cfg.Volumes.DB.Path = filepath.Join(root, "db")
	cfg.Volumes.App.Path = filepath.Join(root, "app")
	for _, path := range []string{cfg.Volumes.DB.Path, cfg.Volumes.App.Path} {
		if err := os.MkdirAll(path, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return cfg
}

func populateVolume(t *testing.T, path string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(path, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func populateBoth(t *testing.T, cfg *config.Config) {
	t.Helper()
	populateVolume(t, cfg.Volumes.DB.Path, map[string]string{"ibdata1": "db bytes"})
	populateVolume(t, cfg.Volumes.App.Path, map[string]string{"index.php": "<?php"})
}

func wipeDir(t *testing.T, path string) {
	t.Helper()
	if err := os.RemoveAll(path); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
}

func testExecutor(t *testing.T, repo borg.Client) (*Executor, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	return NewExecutor(repo, cfg, nil), cfg
}

func TestBackupCreatesMatchingPair(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	e, cfg := testExecutor(t, repo)
	populateBoth(t, cfg)

	res, err := e.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	if len(res.Archives) != 2 {
		t.Fatalf("Backup() created %d archives, want 2: %v", len(res.Archives), res.Archives)
	}
	wantDB := borg.BuildArchiveName(volume.TagDB, res.Timestamp)
	wantApp := borg.BuildArchiveName(volume.TagApp, res.Timestamp)
	if res.Archives[0] != wantDB || res.Archives[1] != wantApp {
		t.Errorf("Backup() archives = %v, want [%s %s]", res.Archives, wantDB, wantApp)
	}

	names := repo.ArchiveNames()
	if len(names) != 2 {
		t.Errorf("repository holds %v, want the pair", names)
	}
}

func TestBackupSharesOneTimestamp(t *testing.T) {
	ctx := context.Background()
	e, cfg := testExecutor(t, borg.NewFake())
	populateBoth(t, cfg)

	res, err := e.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	for _, name := range res.Archives {
		_, ts, ok := borg.ParseArchiveName(name)
		if !ok {
			t.Fatalf("archive %s does not parse", name)
		}
		if ts != res.Timestamp {
			t.Errorf("archive %s timestamp = %s, want shared %s", name, ts, res.Timestamp)
		}
	}
}

func TestBackupInitializesMissingRepository(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewUninitializedFake()
	e, cfg := testExecutor(t, repo)
	populateBoth(t, cfg)

	if _, err := e.Backup(ctx); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	var initialized bool
	for _, call := range repo.Calls {
		if call == "init" {
			initialized = true
		}
	}
	if !initialized {
		t.Errorf("repository was never initialized: calls %v", repo.Calls)
	}
}

func TestBackupAbortsWhenCreateFails(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	repo.CreateErr = errors.New("connection reset")
	e, cfg := testExecutor(t, repo)
	populateBoth(t, cfg)

	if _, err := e.Backup(ctx); err == nil {
		t.Fatal("Backup() error = nil, want failure")
	}

	if names := repo.ArchiveNames(); len(names) != 0 {
		t.Errorf("failed backup left archives %v", names)
	}
	for _, call := range repo.Calls {
		if strings.HasPrefix(call, "prune") {
			t.Errorf("failed backup still pruned: calls %v", repo.Calls)
		}
	}
}

func TestBackupDuplicateArchiveIsConflict(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	e, cfg := testExecutor(t, repo)
	populateBoth(t, cfg)
	e.now = func() time.Time {
		return time.Date(2026, 1, 14, 22, 15, 0, 0, time.UTC)
	}

	if _, err := e.Backup(ctx); err != nil {
		t.Fatalf("first Backup() error = %v", err)
	}

	_, err := e.Backup(ctx)
	var conflict *fault.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second Backup() error = %v, want ConflictError", err)
	}
	if !errors.Is(err, borg.ErrArchiveExists) {
		t.Errorf("conflict does not wrap ErrArchiveExists: %v", err)
	}
}

func TestBackupRepositoryUnreachable(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	repo.ProbeErr = errors.New("connection refused")
	e, cfg := testExecutor(t, repo)
	populateBoth(t, cfg)

	_, err := e.Backup(ctx)
	var connErr *fault.ConnectivityError
	if !errors.As(err, &connErr) {
		t.Fatalf("Backup() error = %v, want ConnectivityError", err)
	}
	if connErr.Target != "repository" {
		t.Errorf("ConnectivityError target = %s, want repository", connErr.Target)
	}
}

func TestBackupPruneFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	repo.PruneErr = errors.New("lock contention")
	e, cfg := testExecutor(t, repo)
	populateBoth(t, cfg)
	cfg.Retention.KeepDaily = 7

	res, err := e.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v, prune failure must not fail the run", err)
	}

	if len(res.PruneWarnings) != 2 {
		t.Errorf("PruneWarnings = %v, want one per volume tag", res.PruneWarnings)
	}
	if len(res.Archives) != 2 {
		t.Errorf("archives = %v, want the pair despite prune failure", res.Archives)
	}
}

func TestBackupCompactFailureIsWarning(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	repo.CompactErr = errors.New("no space on device")
	e, cfg := testExecutor(t, repo)
	populateBoth(t, cfg)
	cfg.Retention.KeepDaily = 7

	res, err := e.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v, compact failure must not fail the run", err)
	}
	if len(res.PruneWarnings) != 1 || !strings.Contains(res.PruneWarnings[0], "compact") {
		t.Errorf("PruneWarnings = %v, want a single compact warning", res.PruneWarnings)
	}
}

func TestBackupSkipsRetentionWhenUnconfigured(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	e, cfg := testExecutor(t, repo)
	populateBoth(t, cfg)

	if _, err := e.Backup(ctx); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	for _, call := range repo.Calls {
		if strings.HasPrefix(call, "prune") || call == "compact" {
			t.Errorf("retention ran without configured tiers: calls %v", repo.Calls)
		}
	}
}

func TestBackupChainedSeedExport(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	cfg := testConfig(t)
	populateBoth(t, cfg)
	cfg.Seed.Dir = t.TempDir()
	cfg.Seed.Compress = true
	cfg.Seed.ExportAfterBackup = true
	cfg.Database.Name = "wordpress"

	db := database.NewFake()
	db.DumpData = []byte("-- dump\nCREATE TABLE t (id INT);\n")
	seeder := seed.New(cfg.Seed, db)
	e := NewExecutor(repo, cfg, seeder)

	res, err := e.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if !res.SeedExported {
		t.Error("SeedExported = false with export-after-backup enabled")
	}
	if _, err := os.Stat(filepath.Join(cfg.Seed.Dir, seed.CanonicalGz)); err != nil {
		t.Errorf("canonical seed missing after chained export: %v", err)
	}
}

func TestBackupChainedSeedExportFailure(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	cfg := testConfig(t)
	populateBoth(t, cfg)
	cfg.Seed.Dir = t.TempDir()
	cfg.Seed.ExportAfterBackup = true
	cfg.Database.Name = "wordpress"

	db := database.NewFake()
	db.DumpErr = errors.New("mysqldump: connection lost")
	seeder := seed.New(cfg.Seed, db)
	e := NewExecutor(repo, cfg, seeder)

	_, err := e.Backup(ctx)
	if err == nil {
		t.Fatal("Backup() error = nil, want the chained export failure")
	}
	if !strings.Contains(err.Error(), "db_volume_") {
		t.Errorf("error %q does not name the archives that remain valid", err)
	}
	if names := repo.ArchiveNames(); len(names) != 2 {
		t.Errorf("archives = %v, want the pair to survive the export failure", names)
	}
}

func TestBackupChainedSeedExportMissingTarget(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	cfg := testConfig(t)
	populateBoth(t, cfg)
	cfg.Seed.Dir = t.TempDir()
	cfg.Seed.ExportAfterBackup = true

	seeder := seed.New(cfg.Seed, database.NewFake())
	e := NewExecutor(repo, cfg, seeder)

	_, err := e.Backup(ctx)
	if err == nil {
		t.Fatal("Backup() error = nil, want a missing database name error")
	}
	if !strings.Contains(err.Error(), "MYSQL_DATABASE") {
		t.Errorf("error %q does not name the missing setting", err)
	}
	if names := repo.ArchiveNames(); len(names) != 0 {
		t.Errorf("archives = %v, want none before the misconfiguration is caught", names)
	}
}

func TestBackupPrunesPerVolumeTag(t *testing.T) {
	ctx := context.Background()
	repo := borg.NewFake()
	e, cfg := testExecutor(t, repo)
	populateBoth(t, cfg)
	cfg.Retention.KeepDaily = 7

	if _, err := e.Backup(ctx); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	var prunes []string
	var compacted bool
	for _, call := range repo.Calls {
		if strings.HasPrefix(call, "prune ") {
			prunes = append(prunes, call)
		}
		if call == "compact" {
			compacted = true
		}
	}
	want := []string{"prune db_volume_", "prune app_volume_"}
	if len(prunes) != 2 || prunes[0] != want[0] || prunes[1] != want[1] {
		t.Errorf("prune calls = %v, want %v", prunes, want)
	}
	if !compacted {
		t.Error("compact never ran after pruning")
	}
}
