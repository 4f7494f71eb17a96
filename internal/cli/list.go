// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/tutela/internal/borg"
)

// archiveEntry is the list output shape for one archive.
type archiveEntry struct {
	Name      string    `json:"name"`
	Tag       string    `json:"tag"`
	Timestamp string    `json:"timestamp"`
	Created   time.Time `json:"created"`
}

func newListCmd(a *app, stdout io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archives in the snapshot repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			archives, err := a.repo().List(cmd.Context())
			if err != nil {
				return err
			}

			entries := archiveEntries(archives)
			if asJSON {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			return renderArchiveTable(stdout, entries)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

// archiveEntries converts repository archives into list entries.
// Foreign archives that do not follow the naming convention keep their
// name with empty tag and timestamp columns.
func archiveEntries(archives []borg.Archive) []archiveEntry {
	entries := make([]archiveEntry, 0, len(archives))
	for _, arc := range archives {
		entry := archiveEntry{Name: arc.Name, Created: arc.Time}
		if tag, ok := arc.Tag(); ok {
			entry.Tag = string(tag)
		}
		if ts, ok := arc.RunTimestamp(); ok {
			entry.Timestamp = ts
		}
		entries = append(entries, entry)
	}
	return entries
}

func renderArchiveTable(w io.Writer, entries []archiveEntry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tTIMESTAMP\tNAME\tCREATED")
	for _, e := range entries {
		created := e.Created.UTC().Format(time.RFC3339)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Tag, e.Timestamp, e.Name, created)
	}
	return tw.Flush()
}
