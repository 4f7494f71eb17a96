// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tutela/internal/lifecycle"
	"github.com/tomtom215/tutela/internal/logging"
	"github.com/tomtom215/tutela/internal/server"
	"github.com/tomtom215/tutela/internal/supervisor"
	"github.com/tomtom215/tutela/internal/supervisor/services"
)

func newScheduleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run as a daemon: periodic backups plus the admin server",
		Long: `Run tutela as a long-lived scheduler daemon for hosts without cron.

A supervision tree keeps two services alive: the interval runner, which
triggers a backup run every schedule.interval, and the admin HTTP
server when admin.enabled is set. SIGINT or SIGTERM shuts both down
gracefully.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seeder, closeSeed, err := a.seeder()
			if err != nil {
				return err
			}
			defer closeSeed()

			j, closeJournal, err := a.openJournal()
			if err != nil {
				return err
			}
			defer closeJournal()

			var rec lifecycle.Recorder
			var hist server.History
			if j != nil {
				rec = j
				hist = j
			}

			repo := a.repo()
			exec := lifecycle.NewExecutor(repo, a.cfg, seeder)
			runner := lifecycle.NewRunner(exec, a.cfg, seeder, rec)

			treeCfg := supervisor.DefaultTreeConfig()
			tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
			tree.AddSchedulerService(services.NewIntervalRunnerService(
				runner, a.cfg.Volumes, a.cfg.Schedule.Interval, logging.Logger()))

			if a.cfg.Admin.Enabled {
				srv := server.New(a.cfg.Admin, a.cfg.Volumes, repo, hist)
				tree.AddAdminService(services.NewHTTPServerService(srv.HTTPServer(), treeCfg.ShutdownTimeout))
				logging.Info().Str("addr", a.cfg.Admin.Addr()).Msg("admin server enabled")
			}

			ctx := cmd.Context()
			logging.Info().
				Dur("interval", a.cfg.Schedule.Interval).
				Msg("starting scheduler daemon")
			errCh := tree.ServeBackground(ctx)

			select {
			case <-ctx.Done():
				logging.Info().Msg("shutdown signal received, stopping services")
			case err := <-errCh:
				if err != nil && !errors.Is(err, context.Canceled) {
					return fmt.Errorf("supervision tree failed: %w", err)
				}
				return nil
			}

			// Wait for the tree to finish shutting down.
			for err := range errCh {
				if err != nil && !errors.Is(err, context.Canceled) {
					logging.Error().Err(err).Msg("supervisor shutdown error")
				}
			}

			unstopped, _ := tree.UnstoppedServiceReport()
			for _, svc := range unstopped {
				logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
			}

			logging.Info().Msg("scheduler daemon stopped")
			return nil
		},
	}
}
