// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/journal"
	"github.com/tomtom215/tutela/internal/logging"
)

// fakeBackupRunner counts invocations and returns a canned record.
type fakeBackupRunner struct {
	runCount atomic.Int32
	runErr   error
}

func (f *fakeBackupRunner) Run(ctx context.Context) (*journal.RunRecord, error) {
	f.runCount.Add(1)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &journal.RunRecord{ID: "run-1", Action: "backup", Outcome: journal.OutcomeOK}, nil
}

// testVolumes lays out db and app volume roots under a temp dir.
// Each name in populated gets a sentinel file so detection sees data.
func testVolumes(t *testing.T, populated ...string) config.VolumesConfig {
	t.Helper()
	root := t.TempDir()
	cfg := config.VolumesConfig{
		DB:  config.VolumeConfig{Path: filepath.Join(root, "db")},
		App: config.VolumeConfig{Path: filepath.Join(root, "app")},
	}
	for _, dir := range []string{cfg.DB.Path, cfg.App.Path} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	for _, name := range populated {
		path := cfg.DB.Path
		if name == "app" {
			path = cfg.App.Path
		}
		if err := os.WriteFile(filepath.Join(path, "data.bin"), []byte("x"), 0o644); err != nil {
			t.Fatalf("populate %s: %v", name, err)
		}
	}
	return cfg
}

// serveBriefly runs the service for the given duration, then cancels.
func serveBriefly(t *testing.T, svc *IntervalRunnerService, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.Serve(ctx)
	}()

	time.Sleep(d)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancellation")
	}
}

func TestIntervalRunnerServiceInterface(t *testing.T) {
	var _ suture.Service = (*IntervalRunnerService)(nil)
}

func TestNewIntervalRunnerServiceDefaults(t *testing.T) {
	runner := &fakeBackupRunner{}
	svc := NewIntervalRunnerService(runner, config.VolumesConfig{}, 0, logging.NewTestLogger(io.Discard))

	if svc.interval != 24*time.Hour {
		t.Errorf("interval = %v, want default 24h", svc.interval)
	}
	if svc.String() != "interval-runner" {
		t.Errorf("String() = %q, want %q", svc.String(), "interval-runner")
	}
}

func TestIntervalRunnerRunsOnTick(t *testing.T) {
	runner := &fakeBackupRunner{}
	volumes := testVolumes(t, "db", "app")
	svc := NewIntervalRunnerService(runner, volumes, 20*time.Millisecond, logging.NewTestLogger(io.Discard))

	serveBriefly(t, svc, 150*time.Millisecond)

	if got := runner.runCount.Load(); got < 2 {
		t.Errorf("runner ran %d times, want at least 2", got)
	}
}

func TestIntervalRunnerSkipsWhenVolumeEmpty(t *testing.T) {
	runner := &fakeBackupRunner{}
	volumes := testVolumes(t, "db") // app volume stays empty
	svc := NewIntervalRunnerService(runner, volumes, 20*time.Millisecond, logging.NewTestLogger(io.Discard))

	serveBriefly(t, svc, 100*time.Millisecond)

	if got := runner.runCount.Load(); got != 0 {
		t.Errorf("runner ran %d times on a non-backup state, want 0", got)
	}
}

func TestIntervalRunnerSurvivesRunFailure(t *testing.T) {
	runner := &fakeBackupRunner{runErr: errors.New("repository unreachable")}
	volumes := testVolumes(t, "db", "app")
	svc := NewIntervalRunnerService(runner, volumes, 20*time.Millisecond, logging.NewTestLogger(io.Discard))

	serveBriefly(t, svc, 150*time.Millisecond)

	// The scheduler keeps its cadence through failed runs.
	if got := runner.runCount.Load(); got < 2 {
		t.Errorf("runner ran %d times, want at least 2 despite failures", got)
	}
}
