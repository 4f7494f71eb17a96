// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/tomtom215/tutela/internal/seed"
	"github.com/tomtom215/tutela/internal/validation"
)

// seedModeFlag validates the --mode value before any wiring happens.
type seedModeFlag struct {
	Mode string `validate:"omitempty,oneof=auto import export prep"`
}

func newSeedCmd(a *app, stdout io.Writer) *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Run the database seed phase",
		Long: `Run the database seed phase against the configured seed directory.

Modes:
  auto    import only when the database is empty, otherwise skip (default)
  import  import; a populated database is an error
  export  export the database into the canonical seed slot
  prep    select and validate the seed without importing (dry run)

Without --mode the configured seed.mode applies.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if verr := validation.ValidateStruct(seedModeFlag{Mode: mode}); verr != nil {
				return verr
			}

			// Prep only inspects the seed directory; every other
			// mode touches the database and needs a target name.
			effective := mode
			if effective == "" {
				effective = a.cfg.Seed.Mode
			}
			if effective != seed.ModePrep {
				if err := a.cfg.RequireSeedTarget(); err != nil {
					return err
				}
			}

			runner, closer, err := a.runner()
			if err != nil {
				return err
			}
			defer closer()

			rec, err := runner.RunSeed(cmd.Context(), mode)
			if err != nil {
				return err
			}
			printRunResult(stdout, rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "Seed mode: auto|import|export|prep (defaults to the configured mode)")
	return cmd
}
