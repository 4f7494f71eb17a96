// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package borg

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tutela/internal/logging"
)

// Options configures an ExecClient.
type Options struct {
	// Binary is the borg executable to invoke.
	Binary string

	// Repository is the repo location, exported as BORG_REPO.
	Repository string

	// Passphrase is exported as BORG_PASSPHRASE when non-empty.
	Passphrase string

	// RSH is exported as BORG_RSH when non-empty (remote repositories).
	RSH string

	// Encryption is the mode passed to borg init.
	Encryption string

	// Compression is passed to every borg create.
	Compression string

	// LockWait bounds the wait for the repository's exclusive lock.
	LockWait time.Duration
}

// ExecClient drives a borg binary. It implements Client.
type ExecClient struct {
	opts Options
}

// NewExecClient creates a Client backed by the borg CLI.
func NewExecClient(opts Options) *ExecClient {
	if opts.Binary == "" {
		opts.Binary = "borg"
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 120 * time.Second
	}
	return &ExecClient{opts: opts}
}

// Probe checks that the repository exists and is reachable.
func (c *ExecClient) Probe(ctx context.Context) error {
	if _, stderr, err := c.run(ctx, "", c.infoArgs()); err != nil {
		return c.wrap("probe repository", err, stderr)
	}
	return nil
}

// EnsureRepository probes the repository and initializes it when the
// probe reports that none exists yet. Any other probe failure is
// surfaced unchanged.
func (c *ExecClient) EnsureRepository(ctx context.Context) error {
	_, stderr, err := c.run(ctx, "", c.infoArgs())
	if err == nil {
		return nil
	}
	if !isNotRepository(stderr) {
		return c.wrap("probe repository", err, stderr)
	}

	logging.Info().Str("repo", c.opts.Repository).Msg("repository not found, initializing")
	if _, initStderr, initErr := c.run(ctx, "", c.initArgs()); initErr != nil {
		return c.wrap("init repository", initErr, initStderr)
	}
	return nil
}

// Create archives the contents of sourceDir under the given name.
// borg runs with sourceDir as working directory and archives ".", so
// extraction reproduces the volume's own layout without leading path
// components.
func (c *ExecClient) Create(ctx context.Context, name, sourceDir string) error {
	_, stderr, err := c.run(ctx, sourceDir, c.createArgs(name))
	if err != nil {
		if isArchiveExists(stderr) {
			return fmt.Errorf("borg: create %s: %w", name, ErrArchiveExists)
		}
		return c.wrap("create "+name, err, stderr)
	}
	return nil
}

// List returns all archives sorted by creation time ascending.
func (c *ExecClient) List(ctx context.Context) ([]Archive, error) {
	stdout, stderr, err := c.run(ctx, "", c.listArgs())
	if err != nil {
		return nil, c.wrap("list archives", err, stderr)
	}

	archives, err := decodeArchiveList([]byte(stdout))
	if err != nil {
		return nil, fmt.Errorf("borg: parse archive list: %w", err)
	}

	sort.Slice(archives, func(i, j int) bool { return archives[i].Time.Before(archives[j].Time) })
	return archives, nil
}

// Extract unpacks the named archive into destDir, which must exist.
// borg extracts into its working directory.
func (c *ExecClient) Extract(ctx context.Context, name, destDir string) error {
	if _, stderr, err := c.run(ctx, destDir, c.extractArgs(name)); err != nil {
		return c.wrap("extract "+name, err, stderr)
	}
	return nil
}

// Prune applies the retention policy to archives matching prefix.
func (c *ExecClient) Prune(ctx context.Context, prefix string, policy RetentionPolicy) error {
	if !policy.Enabled() {
		return nil
	}
	if _, stderr, err := c.run(ctx, "", c.pruneArgs(prefix, policy)); err != nil {
		return c.wrap("prune "+prefix, err, stderr)
	}
	return nil
}

// Compact reclaims repository space freed by pruning.
func (c *ExecClient) Compact(ctx context.Context) error {
	if _, stderr, err := c.run(ctx, "", c.compactArgs()); err != nil {
		return c.wrap("compact repository", err, stderr)
	}
	return nil
}

// BreakLock force-releases a stale repository lock.
func (c *ExecClient) BreakLock(ctx context.Context) error {
	if _, stderr, err := c.run(ctx, "", []string{"break-lock"}); err != nil {
		return c.wrap("break lock", err, stderr)
	}
	return nil
}

// lockWaitSeconds renders the bounded lock wait for --lock-wait.
func (c *ExecClient) lockWaitSeconds() string {
	secs := int(c.opts.LockWait.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// common prepends the subcommand and the bounded lock wait.
func (c *ExecClient) common(sub string, rest ...string) []string {
	args := []string{sub, "--lock-wait", c.lockWaitSeconds()}
	return append(args, rest...)
}

func (c *ExecClient) infoArgs() []string {
	return c.common("info")
}

func (c *ExecClient) initArgs() []string {
	return c.common("init", "--encryption", c.opts.Encryption)
}

func (c *ExecClient) createArgs(name string) []string {
	args := c.common("create")
	if c.opts.Compression != "" {
		args = append(args, "--compression", c.opts.Compression)
	}
	return append(args, "::"+name, ".")
}

func (c *ExecClient) listArgs() []string {
	return c.common("list", "--json")
}

func (c *ExecClient) extractArgs(name string) []string {
	return c.common("extract", "::"+name)
}

func (c *ExecClient) pruneArgs(prefix string, policy RetentionPolicy) []string {
	args := c.common("prune", "--glob-archives", prefix+"*")
	return append(args, policy.Args()...)
}

func (c *ExecClient) compactArgs() []string {
	return c.common("compact")
}

// environ builds the process environment for a borg invocation. The
// access-is-ok variables keep borg from prompting when the repository
// moved or is unencrypted; this tool always runs non-interactively.
func (c *ExecClient) environ() []string {
	env := append(os.Environ(),
		"BORG_REPO="+c.opts.Repository,
		"BORG_UNKNOWN_UNENCRYPTED_REPO_ACCESS_IS_OK=yes",
		"BORG_RELOCATED_REPO_ACCESS_IS_OK=yes",
	)
	if c.opts.Passphrase != "" {
		env = append(env, "BORG_PASSPHRASE="+c.opts.Passphrase)
	}
	if c.opts.RSH != "" {
		env = append(env, "BORG_RSH="+c.opts.RSH)
	}
	return env
}

// run executes one borg invocation and returns captured stdout/stderr.
func (c *ExecClient) run(ctx context.Context, workDir string, args []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, c.opts.Binary, args...)
	cmd.Env = c.environ()
	if workDir != "" {
		cmd.Dir = workDir
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	return stdoutBuf.String(), stderrBuf.String(), err
}

// wrap annotates a failed invocation with the operation and trailing stderr.
// Lock-wait expiry is mapped onto ErrLockTimeout so callers can classify it.
func (c *ExecClient) wrap(op string, err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if isLockTimeout(stderr) {
		return fmt.Errorf("borg: %s: %w: %s", op, ErrLockTimeout, stderr)
	}
	return fmt.Errorf("borg: %s: %w: %s", op, err, stderr)
}

// isNotRepository detects the probe answers that mean "run borg init".
func isNotRepository(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "does not exist") || strings.Contains(s, "is not a valid repository")
}

// isArchiveExists detects the create refusal for a taken archive name.
func isArchiveExists(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "already exists")
}

// isLockTimeout detects lock-wait expiry.
func isLockTimeout(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "failed to create/acquire the lock") ||
		strings.Contains(s, "lock timeout")
}

// listResponse mirrors the borg list --json envelope.
type listResponse struct {
	Archives []listArchive `json:"archives"`
}

// listArchive mirrors one archive entry. borg 1.x names the archive
// under "archive"; newer repo listings use "name".
type listArchive struct {
	Archive string `json:"archive"`
	Name    string `json:"name"`
	Time    string `json:"time"`
	Start   string `json:"start"`
}

// archiveTimeLayouts are the archive timestamp renderings borg emits:
// local time, without zone, with or without fractional seconds.
var archiveTimeLayouts = []string{
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05",
}

// decodeArchiveList parses borg list --json output.
func decodeArchiveList(data []byte) ([]Archive, error) {
	var resp listResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}

	archives := make([]Archive, 0, len(resp.Archives))
	for _, la := range resp.Archives {
		name := la.Archive
		if name == "" {
			name = la.Name
		}
		archives = append(archives, Archive{
			Name: name,
			Time: parseArchiveTime(la.Time, la.Start),
		})
	}
	return archives, nil
}

// parseArchiveTime parses the first parseable of the given renderings.
// An unparseable time yields the zero time; the run timestamp embedded
// in the archive name remains authoritative for ordering.
func parseArchiveTime(values ...string) time.Time {
	for _, v := range values {
		if v == "" {
			continue
		}
		for _, layout := range archiveTimeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
