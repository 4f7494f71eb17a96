// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newBreakLockCmd(a *app, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "break-lock",
		Short: "Force-release a stale repository lock",
		Long: `Force-release a stale repository lock.

Only use this when no other tutela or borg process is running against
the repository; breaking a live lock corrupts in-flight operations.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.repo().BreakLock(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(stdout, "repository lock released")
			return nil
		},
	}
}
