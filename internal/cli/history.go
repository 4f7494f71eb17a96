// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/tutela/internal/fault"
	"github.com/tomtom215/tutela/internal/journal"
	"github.com/tomtom215/tutela/internal/validation"
)

// historyLimitFlag bounds --limit to the same range the admin API uses.
type historyLimitFlag struct {
	Limit int `validate:"min=1,max=500"`
}

func newHistoryCmd(a *app, stdout io.Writer) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the journal, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verr := validation.ValidateStruct(historyLimitFlag{Limit: limit}); verr != nil {
				return verr
			}
			if !a.cfg.Journal.Enabled {
				return &fault.ConfigurationError{Setting: "JOURNAL_ENABLED", Reason: "the journal is disabled"}
			}

			j, closer, err := a.openJournal()
			if err != nil {
				return err
			}
			defer closer()

			records, err := j.Recent(limit)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			return renderHistoryTable(stdout, records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum records to show (1-500)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func renderHistoryTable(w io.Writer, records []*journal.RunRecord) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tACTION\tOUTCOME\tDURATION\tDETAILS")
	for _, rec := range records {
		started := rec.StartedAt.UTC().Format(time.RFC3339)
		duration := rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", started, rec.Action, rec.Outcome, duration, historyDetails(rec))
	}
	return tw.Flush()
}

// historyDetails compresses one record into a single table cell.
func historyDetails(rec *journal.RunRecord) string {
	switch {
	case rec.Error != "":
		return rec.Error
	case len(rec.Archives) > 0:
		return "archived " + strings.Join(rec.Archives, ", ")
	case len(rec.Restored) > 0:
		return "restored " + strings.Join(rec.Restored, ", ")
	case rec.SeedImported:
		return "seed imported"
	case rec.SeedExported:
		return "seed exported"
	default:
		return rec.Reason
	}
}
