// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package borg wraps the borg CLI behind a typed client.
//
// The repository location and credentials travel via the environment
// (BORG_REPO, BORG_PASSPHRASE), never argv. Every invocation carries a
// bounded --lock-wait, so competing invocations queue on the
// repository's own exclusive lock instead of failing immediately.
//
// Archives follow the <tag>_volume_<timestamp> naming convention, e.g.
// db_volume_20240131_041500; both archives of one backup run share the
// timestamp.
package borg

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/tutela/internal/volume"
)

// TimestampLayout is the run timestamp embedded in archive names (UTC).
const TimestampLayout = "20060102_150405"

// Sentinel errors surfaced by clients for conditions callers branch on.
var (
	// ErrArchiveExists means the repository refused to create an archive
	// because the name is already taken. Never auto-resolved.
	ErrArchiveExists = errors.New("archive already exists")

	// ErrLockTimeout means the repository's exclusive lock could not be
	// acquired within the configured --lock-wait bound.
	ErrLockTimeout = errors.New("repository lock wait timed out")
)

// Archive is one archive in the repository.
type Archive struct {
	// Name is the full archive name, <tag>_volume_<timestamp>.
	Name string

	// Time is the archive creation time reported by the repository.
	Time time.Time
}

// Tag returns the volume tag encoded in the archive name.
func (a Archive) Tag() (volume.Tag, bool) {
	tag, _, ok := ParseArchiveName(a.Name)
	return tag, ok
}

// RunTimestamp returns the run timestamp encoded in the archive name.
func (a Archive) RunTimestamp() (string, bool) {
	_, ts, ok := ParseArchiveName(a.Name)
	return ts, ok
}

// BuildArchiveName composes an archive name from a volume tag and a run
// timestamp in TimestampLayout.
func BuildArchiveName(tag volume.Tag, ts string) string {
	return tag.ArchivePrefix() + ts
}

// ParseArchiveName splits an archive name into its volume tag and run
// timestamp. Names that do not follow the <tag>_volume_<timestamp>
// convention report ok=false.
func ParseArchiveName(name string) (volume.Tag, string, bool) {
	for _, tag := range volume.Tags {
		ts, found := strings.CutPrefix(name, tag.ArchivePrefix())
		if !found {
			continue
		}
		if _, err := time.Parse(TimestampLayout, ts); err != nil {
			return "", "", false
		}
		return tag, ts, true
	}
	return "", "", false
}

// RunTimestamp formats a run timestamp for archive names.
func RunTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// RetentionPolicy holds the pruning tiers passed to the repository.
// Zero-valued tiers are omitted from the invocation.
type RetentionPolicy struct {
	KeepDaily   int
	KeepWeekly  int
	KeepMonthly int
}

// Enabled reports whether any tier is configured.
func (p RetentionPolicy) Enabled() bool {
	return p.KeepDaily > 0 || p.KeepWeekly > 0 || p.KeepMonthly > 0
}

// Args renders the configured tiers as borg prune arguments.
func (p RetentionPolicy) Args() []string {
	var args []string
	if p.KeepDaily > 0 {
		args = append(args, "--keep-daily", strconv.Itoa(p.KeepDaily))
	}
	if p.KeepWeekly > 0 {
		args = append(args, "--keep-weekly", strconv.Itoa(p.KeepWeekly))
	}
	if p.KeepMonthly > 0 {
		args = append(args, "--keep-monthly", strconv.Itoa(p.KeepMonthly))
	}
	return args
}

// String renders the policy for logs.
func (p RetentionPolicy) String() string {
	return fmt.Sprintf("daily=%d weekly=%d monthly=%d", p.KeepDaily, p.KeepWeekly, p.KeepMonthly)
}

// Client is the repository operations surface the executors run against.
// ExecClient implements it against the borg CLI; Fake implements it
// in-memory for tests.
type Client interface {
	// Probe checks that the repository exists and is reachable.
	Probe(ctx context.Context) error

	// EnsureRepository probes the repository and initializes it when
	// the probe reports that none exists yet.
	EnsureRepository(ctx context.Context) error

	// Create archives the contents of sourceDir under the given name.
	// An existing name surfaces ErrArchiveExists.
	Create(ctx context.Context, name, sourceDir string) error

	// List returns all archives sorted by creation time ascending.
	List(ctx context.Context) ([]Archive, error)

	// Extract unpacks the named archive into destDir.
	Extract(ctx context.Context, name, destDir string) error

	// Prune applies the retention policy to archives whose names start
	// with prefix. A policy with no tiers is a no-op.
	Prune(ctx context.Context, prefix string, policy RetentionPolicy) error

	// Compact reclaims repository space freed by pruning.
	Compact(ctx context.Context) error

	// BreakLock force-releases a stale repository lock. Operator escape
	// hatch; never invoked automatically.
	BreakLock(ctx context.Context) error
}
