// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package cli assembles the tutela command tree. Each verb wires the
// configured components (repository client, seeder, journal, runner)
// and maps errors to a non-zero exit.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tutela/internal/borg"
	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/database"
	"github.com/tomtom215/tutela/internal/journal"
	"github.com/tomtom215/tutela/internal/lifecycle"
	"github.com/tomtom215/tutela/internal/logging"
	"github.com/tomtom215/tutela/internal/seed"
)

// app carries the parsed root flags and the loaded configuration, and
// builds components on demand for the verbs.
type app struct {
	configPath string
	logLevel   string

	cfg *config.Config
}

// load resolves configuration and initializes logging. Called from the
// root PersistentPreRunE for every verb that needs configuration.
func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}

	if a.configPath != "" {
		if _, err := os.Stat(a.configPath); err != nil {
			return fmt.Errorf("config file %s: %w", a.configPath, err)
		}
		os.Setenv(config.ConfigPathEnvVar, a.configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	if a.logLevel != "" {
		logging.SetLevelString(a.logLevel)
	}
	return nil
}

// repo builds the repository client from configuration.
func (a *app) repo() borg.Client {
	return borg.NewExecClient(borg.Options{
		Binary:      a.cfg.Repo.Binary,
		Repository:  a.cfg.Repo.Path,
		Passphrase:  a.cfg.Repo.Passphrase,
		RSH:         a.cfg.Repo.RSH,
		Encryption:  a.cfg.Repo.Encryption,
		Compression: a.cfg.Repo.Compression,
		LockWait:    a.cfg.Repo.LockWait,
	})
}

// seeder builds the seed phase runner. The closer releases the
// database pool.
func (a *app) seeder() (*seed.Seeder, func(), error) {
	db, err := database.NewExecClient(a.cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("closing database client")
		}
	}
	return seed.New(a.cfg.Seed, db), closer, nil
}

// openJournal opens the run journal, or returns nil when journaling is
// disabled.
func (a *app) openJournal() (*journal.Journal, func(), error) {
	if !a.cfg.Journal.Enabled {
		return nil, func() {}, nil
	}

	j, err := journal.Open(a.cfg.Journal.Path)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := j.Close(); err != nil {
			logging.Error().Err(err).Msg("closing journal")
		}
	}
	return j, closer, nil
}

// runner assembles the full lifecycle pipeline. The closer releases
// the journal and database handles.
func (a *app) runner() (*lifecycle.Runner, func(), error) {
	seeder, closeSeed, err := a.seeder()
	if err != nil {
		return nil, nil, err
	}

	j, closeJournal, err := a.openJournal()
	if err != nil {
		closeSeed()
		return nil, nil, err
	}

	var rec lifecycle.Recorder
	if j != nil {
		rec = j
	}

	exec := lifecycle.NewExecutor(a.repo(), a.cfg, seeder)
	runner := lifecycle.NewRunner(exec, a.cfg, seeder, rec)
	closer := func() {
		closeJournal()
		closeSeed()
	}
	return runner, closer, nil
}

// skipLoad lists verbs that run without configuration.
var skipLoad = map[string]bool{
	"version": true,
	"help":    true,
}

// NewRootCmd returns the root cobra command for the tutela CLI.
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "tutela",
		Short:         "Volume lifecycle guardian for two-volume self-hosted stacks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipLoad[cmd.Name()] {
				return nil
			}
			return a.load()
		},
	}

	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	cmd.AddCommand(newPrepCmd(a, stdout))
	cmd.AddCommand(newBackupCmd(a, stdout))
	cmd.AddCommand(newRestoreCmd(a, stdout))
	cmd.AddCommand(newSeedCmd(a, stdout))
	cmd.AddCommand(newInitCmd(a, stdout))
	cmd.AddCommand(newListCmd(a, stdout))
	cmd.AddCommand(newBreakLockCmd(a, stdout))
	cmd.AddCommand(newHistoryCmd(a, stdout))
	cmd.AddCommand(newScheduleCmd(a))
	cmd.AddCommand(newVersionCmd(stdout))

	return cmd
}

// Execute runs the CLI with the process stdio and returns the exit
// code. SIGINT and SIGTERM cancel the command context, which shuts the
// scheduler daemon down gracefully and interrupts one-shot runs.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd(os.Stdout, os.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
