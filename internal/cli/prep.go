// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tutela/internal/journal"
)

func newPrepCmd(a *app, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "prep",
		Short: "Detect volume states, decide, and run the backup or restore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, closer, err := a.runner()
			if err != nil {
				return err
			}
			defer closer()

			rec, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			printRunResult(stdout, rec)
			return nil
		},
	}
}

// printRunResult writes a one-line human summary of a finished run.
func printRunResult(w io.Writer, rec *journal.RunRecord) {
	switch {
	case rec.Outcome == journal.OutcomeNoop:
		fmt.Fprintf(w, "%s: nothing to do (%s)\n", rec.Action, rec.Reason)
	case rec.Action == "backup":
		fmt.Fprintf(w, "backup complete: %s\n", strings.Join(rec.Archives, ", "))
		for _, warn := range rec.PruneWarnings {
			fmt.Fprintf(w, "warning: %s\n", warn)
		}
		if rec.SeedExported {
			fmt.Fprintln(w, "seed exported")
		}
	case rec.Action == "restore":
		fmt.Fprintf(w, "restore complete: %s\n", strings.Join(rec.Restored, ", "))
	case rec.Action == "seed":
		switch {
		case rec.SeedImported:
			fmt.Fprintln(w, "seed imported")
		case rec.SeedExported:
			fmt.Fprintln(w, "seed exported")
		default:
			fmt.Fprintln(w, "seed phase complete")
		}
	default:
		fmt.Fprintf(w, "%s: %s\n", rec.Action, rec.Outcome)
	}
}
