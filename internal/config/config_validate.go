// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package config

import (
	"fmt"
	"time"
)

// Validate checks that required configuration is present and valid.
// Error messages name the environment variable an operator would set.
func (c *Config) Validate() error {
	if err := c.validateRepo(); err != nil {
		return err
	}

	if err := c.validateVolumes(); err != nil {
		return err
	}

	if err := c.validateRetention(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateSeed(); err != nil {
		return err
	}

	if err := c.validateSchedule(); err != nil {
		return err
	}

	if err := c.validateAdmin(); err != nil {
		return err
	}

	return c.validateLogging()
}

// validEncryptionModes are the repository encryption modes borg init accepts.
var validEncryptionModes = map[string]bool{
	"none":                 true,
	"authenticated":        true,
	"authenticated-blake2": true,
	"repokey":              true,
	"repokey-blake2":       true,
	"keyfile":              true,
	"keyfile-blake2":       true,
}

// validateRepo validates the repository configuration.
func (c *Config) validateRepo() error {
	if c.Repo.Path == "" {
		return fmt.Errorf("BORG_REPO is required")
	}
	if !validEncryptionModes[c.Repo.Encryption] {
		return fmt.Errorf("BORG_ENCRYPTION %q is not a valid encryption mode", c.Repo.Encryption)
	}
	if c.Repo.LockWait <= 0 {
		return fmt.Errorf("BORG_LOCK_WAIT must be a positive duration")
	}
	if c.Repo.Binary == "" {
		return fmt.Errorf("BORG_BINARY must not be empty")
	}
	return nil
}

// validateVolumes validates both protected volume configurations.
func (c *Config) validateVolumes() error {
	if c.Volumes.DB.Path == "" {
		return fmt.Errorf("DB_VOLUME_PATH is required")
	}
	if c.Volumes.App.Path == "" {
		return fmt.Errorf("APP_VOLUME_PATH is required")
	}
	if c.Volumes.DB.Path == c.Volumes.App.Path {
		return fmt.Errorf("DB_VOLUME_PATH and APP_VOLUME_PATH must differ")
	}
	return nil
}

// validateRetention validates the pruning tiers.
func (c *Config) validateRetention() error {
	if c.Retention.KeepDaily < 0 {
		return fmt.Errorf("KEEP_DAILY must not be negative")
	}
	if c.Retention.KeepWeekly < 0 {
		return fmt.Errorf("KEEP_WEEKLY must not be negative")
	}
	if c.Retention.KeepMonthly < 0 {
		return fmt.Errorf("KEEP_MONTHLY must not be negative")
	}
	return nil
}

// validateDatabase validates database connection settings.
// The database name is validated lazily by RequireSeedTarget because it is
// only needed when a seed operation runs.
func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("MYSQL_HOST must not be empty")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("MYSQL_PORT must be between 1 and 65535")
	}
	if c.Database.User == "" {
		return fmt.Errorf("MYSQL_USER must not be empty")
	}
	if c.Database.WaitTimeout <= 0 {
		return fmt.Errorf("DB_WAIT_TIMEOUT must be a positive duration")
	}
	return nil
}

// validSeedModes are the accepted values for SEED_MODE.
var validSeedModes = map[string]bool{
	"auto":   true,
	"import": true,
	"export": true,
	"prep":   true,
}

// validateSeed validates the seed configuration.
func (c *Config) validateSeed() error {
	if c.Seed.Dir == "" {
		return fmt.Errorf("SEED_DIR must not be empty")
	}
	if !validSeedModes[c.Seed.Mode] {
		return fmt.Errorf("SEED_MODE %q is not one of auto, import, export, prep", c.Seed.Mode)
	}
	if c.Seed.HistoryKeep < 0 {
		return fmt.Errorf("SEED_HISTORY_KEEP must not be negative")
	}
	return nil
}

// validateSchedule validates daemon scheduling.
func (c *Config) validateSchedule() error {
	if c.Schedule.Interval < time.Minute {
		return fmt.Errorf("SCHEDULE_INTERVAL must be at least 1m")
	}
	return nil
}

// validateAdmin validates the admin HTTP surface settings.
func (c *Config) validateAdmin() error {
	if !c.Admin.Enabled {
		return nil
	}
	if c.Admin.Port < 1 || c.Admin.Port > 65535 {
		return fmt.Errorf("ADMIN_PORT must be between 1 and 65535")
	}
	if c.Admin.Timeout <= 0 {
		return fmt.Errorf("ADMIN_TIMEOUT must be a positive duration")
	}
	return nil
}

// validLogLevels are the accepted values for LOG_LEVEL.
var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
}

// validateLogging validates logging settings.
func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL %q is not one of trace, debug, info, warn, error, fatal", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT %q is not one of json, console", c.Logging.Format)
	}
	return nil
}

// RequireSeedTarget checks the settings only seed operations need.
// Called by the seed flow rather than Validate so lifecycle runs do not
// demand a database name they never use.
func (c *Config) RequireSeedTarget() error {
	if c.Database.Name == "" {
		return fmt.Errorf("MYSQL_DATABASE is required for seed operations")
	}
	return nil
}
