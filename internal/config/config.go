// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration loaded from environment variables
// and an optional YAML config file.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent read access.
type Config struct {
	Repo      RepoConfig      `koanf:"repo"`
	Volumes   VolumesConfig   `koanf:"volumes"`
	Retention RetentionConfig `koanf:"retention"`
	Database  DatabaseConfig  `koanf:"database"`
	Seed      SeedConfig      `koanf:"seed"`
	Journal   JournalConfig   `koanf:"journal"`
	Schedule  ScheduleConfig  `koanf:"schedule"`
	Admin     AdminConfig     `koanf:"admin"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// RepoConfig describes the Borg repository and how to reach it.
type RepoConfig struct {
	// Path is the repository location: a filesystem path or an ssh:// URL.
	Path string `koanf:"path"`

	// Passphrase is handed to borg via BORG_PASSPHRASE, never via argv.
	Passphrase string `koanf:"passphrase"`

	// RSH overrides the ssh command for remote repositories (BORG_RSH).
	RSH string `koanf:"rsh"`

	// Encryption is the mode used when the repository is first initialized.
	Encryption string `koanf:"encryption"`

	// Compression is passed to every archive creation.
	Compression string `koanf:"compression"`

	// LockWait bounds how long an invocation waits for the repository's
	// exclusive lock before giving up.
	LockWait time.Duration `koanf:"lock_wait"`

	// Binary is the borg executable to invoke.
	Binary string `koanf:"binary"`
}

// VolumeConfig describes one protected volume.
type VolumeConfig struct {
	// Path is the volume root as mounted in this container.
	Path string `koanf:"path"`

	// Marker is the subdirectory whose non-emptiness means "has data".
	// Empty means the volume root itself is the marker.
	Marker string `koanf:"marker"`
}

// VolumesConfig holds both protected volumes.
type VolumesConfig struct {
	DB  VolumeConfig `koanf:"db"`
	App VolumeConfig `koanf:"app"`
}

// RetentionConfig holds the pruning tiers applied after each backup.
// A zero tier is omitted from the prune invocation.
type RetentionConfig struct {
	KeepDaily   int `koanf:"keep_daily"`
	KeepWeekly  int `koanf:"keep_weekly"`
	KeepMonthly int `koanf:"keep_monthly"`
}

// DatabaseConfig describes the MySQL/MariaDB server the seed phase talks to.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`

	// Name is the target database for seed import/export. Required only
	// when a seed operation actually runs.
	Name string `koanf:"name"`

	// WaitTimeout bounds the readiness wait before seed operations.
	WaitTimeout time.Duration `koanf:"wait_timeout"`

	// ClientBinary and DumpBinary are the CLI tools used for streaming
	// import and export.
	ClientBinary string `koanf:"client_binary"`
	DumpBinary   string `koanf:"dump_binary"`
}

// SeedConfig controls the seed-dump bootstrap path.
type SeedConfig struct {
	// Dir is the directory scanned for seed candidates and written to on export.
	Dir string `koanf:"dir"`

	// Mode selects the seed behavior: auto, import, export, or prep (dry run).
	Mode string `koanf:"mode"`

	// Strict makes a missing seed fatal instead of a logged skip.
	Strict bool `koanf:"strict"`

	// Compress selects seed.sql.gz over seed.sql for the canonical slot.
	Compress bool `koanf:"compress"`

	// ExportAfterBackup chains a seed export onto successful backup runs.
	ExportAfterBackup bool `koanf:"export_after_backup"`

	// HistoryKeep is how many timestamped dump copies to retain (0 = none).
	HistoryKeep int `koanf:"history_keep"`
}

// JournalConfig controls the run-history journal.
type JournalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// ScheduleConfig controls daemon mode.
type ScheduleConfig struct {
	// Interval is the backup cadence when running as a scheduler daemon.
	Interval time.Duration `koanf:"interval"`
}

// AdminConfig controls the read-only admin HTTP surface (daemon mode).
type AdminConfig struct {
	Enabled bool          `koanf:"enabled"`
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the admin listen address in host:port form.
func (a AdminConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// DSN returns the go-sql-driver DSN for the configured server without
// selecting a database, so readiness checks work before the target
// database exists.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/", d.User, d.Password, d.Host, d.Port)
}

// Addr returns the server address in host:port form for logs.
func (d DatabaseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", d.Host, d.Port)
}

// Enabled reports whether any retention tier is configured.
func (r RetentionConfig) Enabled() bool {
	return r.KeepDaily > 0 || r.KeepWeekly > 0 || r.KeepMonthly > 0
}

// Load loads, layers, and validates the full configuration.
func Load() (*Config, error) {
	return LoadWithKoanf()
}
