// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tutela/internal/decision"
)

func newBackupCmd(a *app, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Force a backup run now, regardless of the decided action",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, closer, err := a.runner()
			if err != nil {
				return err
			}
			defer closer()

			rec, err := runner.RunAction(cmd.Context(), decision.ActionBackup)
			if err != nil {
				return err
			}
			printRunResult(stdout, rec)
			return nil
		},
	}
}
