// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/tutela/config.yaml",
	"/etc/tutela/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Repo: RepoConfig{
			Path:        "",
			Passphrase:  "",
			RSH:         "",
			Encryption:  "repokey-blake2",
			Compression: "zstd,3",
			LockWait:    120 * time.Second,
			Binary:      "borg",
		},
		Volumes: VolumesConfig{
			DB: VolumeConfig{
				Path: "",
				// A MariaDB/MySQL datadir always grows a mysql/ system
				// schema directory once initialized.
				Marker: "mysql",
			},
			App: VolumeConfig{
				Path:   "",
				Marker: "",
			},
		},
		Retention: RetentionConfig{
			KeepDaily:   7,
			KeepWeekly:  4,
			KeepMonthly: 6,
		},
		Database: DatabaseConfig{
			Host:         "db",
			Port:         3306,
			User:         "root",
			Password:     "",
			Name:         "",
			WaitTimeout:  60 * time.Second,
			ClientBinary: "mysql",
			DumpBinary:   "mysqldump",
		},
		Seed: SeedConfig{
			Dir:               "/seed",
			Mode:              "auto",
			Strict:            false,
			Compress:          true,
			ExportAfterBackup: true,
			HistoryKeep:       0,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "/var/lib/tutela/journal",
		},
		Schedule: ScheduleConfig{
			Interval: 24 * time.Hour,
		},
		Admin: AdminConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8310,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence: ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// BORG_REPO -> repo.path
	// KEEP_DAILY -> retention.keep_daily
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc transforms environment variable names to koanf config paths.
// The names follow the conventions of the stacks this tool sits beside: the
// BORG_* variables mirror what borg itself reads, the MYSQL_* variables mirror
// the official database container images.
//
// Examples:
//   - BORG_REPO -> repo.path
//   - DB_VOLUME_PATH -> volumes.db.path
//   - KEEP_WEEKLY -> retention.keep_weekly
//   - MYSQL_DATABASE -> database.name
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Repository mappings (BORG_* pass through to borg itself)
		"borg_repo":        "repo.path",
		"borg_passphrase":  "repo.passphrase",
		"borg_rsh":         "repo.rsh",
		"borg_encryption":  "repo.encryption",
		"borg_compression": "repo.compression",
		"borg_lock_wait":   "repo.lock_wait",
		"borg_binary":      "repo.binary",

		// Volume mappings
		"db_volume_path":    "volumes.db.path",
		"db_volume_marker":  "volumes.db.marker",
		"app_volume_path":   "volumes.app.path",
		"app_volume_marker": "volumes.app.marker",

		// Retention mappings
		"keep_daily":   "retention.keep_daily",
		"keep_weekly":  "retention.keep_weekly",
		"keep_monthly": "retention.keep_monthly",

		// Database mappings (MYSQL_* mirrors the official container images)
		"mysql_host":       "database.host",
		"mysql_port":       "database.port",
		"mysql_user":       "database.user",
		"mysql_password":   "database.password",
		"mysql_database":   "database.name",
		"db_wait_timeout":  "database.wait_timeout",
		"mysql_binary":     "database.client_binary",
		"mysqldump_binary": "database.dump_binary",

		// Seed mappings
		"seed_dir":                 "seed.dir",
		"seed_mode":                "seed.mode",
		"seed_strict":              "seed.strict",
		"seed_compress":            "seed.compress",
		"seed_export_after_backup": "seed.export_after_backup",
		"seed_history_keep":        "seed.history_keep",

		// Journal mappings
		"journal_enabled": "journal.enabled",
		"journal_path":    "journal.path",

		// Scheduler mappings
		"schedule_interval": "schedule.interval",

		// Admin server mappings
		"admin_enabled": "admin.enabled",
		"admin_host":    "admin.host",
		"admin_port":    "admin.port",
		"admin_timeout": "admin.timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
