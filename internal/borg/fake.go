// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package borg

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Fake is an in-memory Client for tests. Archives snapshot a source
// directory's files and are materialized back on extract, so backup
// and restore flows can round-trip real directory trees without a
// borg binary.
type Fake struct {
	mu          sync.Mutex
	initialized bool
	archives    map[string]*fakeArchive

	// Now supplies archive creation times; defaults to time.Now.
	Now func() time.Time

	// Per-operation scripted failures. A non-nil error is returned
	// by the matching method instead of performing the operation.
	ProbeErr     error
	InitErr      error
	CreateErr    error
	ListErr      error
	ExtractErr   error
	PruneErr     error
	CompactErr   error
	BreakLockErr error

	// Calls records operations in invocation order, e.g. "create db_volume_...".
	Calls []string
}

type fakeArchive struct {
	time  time.Time
	files map[string][]byte
	dirs  map[string]bool
}

// NewFake returns an initialized in-memory repository.
func NewFake() *Fake {
	return &Fake{
		initialized: true,
		archives:    make(map[string]*fakeArchive),
		Now:         time.Now,
	}
}

// NewUninitializedFake returns a Fake whose repository does not exist
// yet; Probe fails until EnsureRepository runs.
func NewUninitializedFake() *Fake {
	f := NewFake()
	f.initialized = false
	return f
}

func (f *Fake) record(op string) {
	f.Calls = append(f.Calls, op)
}

// Probe implements Client.
func (f *Fake) Probe(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("probe")
	if f.ProbeErr != nil {
		return f.ProbeErr
	}
	if !f.initialized {
		return fmt.Errorf("borg: probe repository: repository does not exist")
	}
	return nil
}

// EnsureRepository implements Client.
func (f *Fake) EnsureRepository(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ensure")
	if f.ProbeErr != nil {
		return f.ProbeErr
	}
	if !f.initialized {
		if f.InitErr != nil {
			return f.InitErr
		}
		f.record("init")
		f.initialized = true
	}
	return nil
}

// Create implements Client by snapshotting sourceDir.
func (f *Fake) Create(ctx context.Context, name, sourceDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create " + name)
	if f.CreateErr != nil {
		return f.CreateErr
	}
	if _, taken := f.archives[name]; taken {
		return fmt.Errorf("borg: create %s: %w", name, ErrArchiveExists)
	}

	arch := &fakeArchive{
		time:  f.Now(),
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
	err := filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(sourceDir, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			arch.dirs[rel] = true
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return readErr
		}
		arch.files[rel] = data
		return nil
	})
	if err != nil {
		return fmt.Errorf("borg: create %s: %w", name, err)
	}

	f.archives[name] = arch
	return nil
}

// List implements Client.
func (f *Fake) List(ctx context.Context) ([]Archive, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	archives := make([]Archive, 0, len(f.archives))
	for name, arch := range f.archives {
		archives = append(archives, Archive{Name: name, Time: arch.time})
	}
	sort.Slice(archives, func(i, j int) bool {
		if archives[i].Time.Equal(archives[j].Time) {
			return archives[i].Name < archives[j].Name
		}
		return archives[i].Time.Before(archives[j].Time)
	})
	return archives, nil
}

// Extract implements Client by materializing the snapshot into destDir.
func (f *Fake) Extract(ctx context.Context, name, destDir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("extract " + name)
	if f.ExtractErr != nil {
		return f.ExtractErr
	}
	arch, ok := f.archives[name]
	if !ok {
		return fmt.Errorf("borg: extract %s: archive not found", name)
	}

	for dir := range arch.dirs {
		if err := os.MkdirAll(filepath.Join(destDir, dir), 0o755); err != nil {
			return fmt.Errorf("borg: extract %s: %w", name, err)
		}
	}
	for rel, data := range arch.files {
		path := filepath.Join(destDir, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("borg: extract %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("borg: extract %s: %w", name, err)
		}
	}
	return nil
}

// Prune implements Client with borg's keep semantics: per rule, the
// newest archive of each of the N most recent distinct periods
// survives, and the rules union. Only archives matching prefix are
// considered or removed.
func (f *Fake) Prune(ctx context.Context, prefix string, policy RetentionPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("prune " + prefix)
	if f.PruneErr != nil {
		return f.PruneErr
	}
	if !policy.Enabled() {
		return nil
	}

	matching := make([]Archive, 0, len(f.archives))
	for name, arch := range f.archives {
		if strings.HasPrefix(name, prefix) {
			matching = append(matching, Archive{Name: name, Time: arch.time})
		}
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].Time.After(matching[j].Time) })

	keepSet := make(map[string]bool)
	addPeriodKeepsToSet(keepSet, matching, policy.KeepDaily, func(t time.Time) string {
		return t.Format("2006-01-02")
	})
	addPeriodKeepsToSet(keepSet, matching, policy.KeepWeekly, func(t time.Time) string {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-%02d", year, week)
	})
	addPeriodKeepsToSet(keepSet, matching, policy.KeepMonthly, func(t time.Time) string {
		return t.Format("2006-01")
	})

	for _, a := range matching {
		if !keepSet[a.Name] {
			delete(f.archives, a.Name)
		}
	}
	return nil
}

// addPeriodKeepsToSet marks the newest archive of each of the n most
// recent distinct periods. Archives must be sorted newest first.
func addPeriodKeepsToSet(keepSet map[string]bool, archives []Archive, n int, periodKey func(time.Time) string) {
	if n <= 0 {
		return
	}
	seen := make(map[string]bool)
	for _, a := range archives {
		key := periodKey(a.Time)
		if seen[key] {
			continue
		}
		seen[key] = true
		keepSet[a.Name] = true
		if len(seen) == n {
			return
		}
	}
}

// Compact implements Client as a recorded no-op.
func (f *Fake) Compact(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("compact")
	return f.CompactErr
}

// BreakLock implements Client as a recorded no-op.
func (f *Fake) BreakLock(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("break-lock")
	return f.BreakLockErr
}

// ArchiveNames returns the stored archive names sorted lexically.
func (f *Fake) ArchiveNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.archives))
	for name := range f.archives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SeedArchive injects an archive with explicit content, bypassing Create.
func (f *Fake) SeedArchive(name string, at time.Time, files map[string][]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	arch := &fakeArchive{time: at, files: make(map[string][]byte), dirs: make(map[string]bool)}
	for rel, data := range files {
		arch.files[rel] = data
		if dir := filepath.Dir(rel); dir != "." {
			arch.dirs[dir] = true
		}
	}
	f.archives[name] = arch
}
