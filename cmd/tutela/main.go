// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package main is the entry point for the tutela CLI.
//
// Tutela guards the persistent volumes of a two-volume self-hosted
// stack (database data plus application files). On every run it
// inspects both volumes, decides between backup, restore, and no-op,
// and drives a Borg repository accordingly; an independent seed phase
// bootstraps an empty database from a SQL dump directory or exports
// the current database back into the canonical seed slot.
//
// # Verbs
//
//	tutela prep        inspect volumes, decide, and execute the decision
//	tutela backup      force a backup pair regardless of volume state
//	tutela restore     force a restore attempt regardless of volume state
//	tutela seed        run the seed phase (auto, import, export, or prep)
//	tutela init        initialize the Borg repository
//	tutela list        list archives in the repository
//	tutela break-lock  remove a stale repository lock
//	tutela history     show recent run records from the journal
//	tutela schedule    run as a daemon: periodic backups plus the admin server
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, an optional YAML config file
// (--config or TUTELA_CONFIG), and built-in defaults. The recognized
// environment variables are listed in internal/config.
//
// # Exit Codes
//
// Zero on success and on legitimate no-ops (fresh install with nothing
// to restore, seed skip on a populated database); non-zero on any
// unrecoverable failure.
package main

import (
	"os"

	"github.com/tomtom215/tutela/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
