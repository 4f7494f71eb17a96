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

func newInitCmd(a *app, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Ensure the snapshot repository exists, initializing it if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.repo().EnsureRepository(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "repository ready at %s\n", a.cfg.Repo.Path)
			return nil
		},
	}
}
