// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package database talks to the stack's MySQL-compatible server for
// seed imports and exports. Readiness and emptiness checks go over the
// wire protocol; bulk data moves through the mysql and mysqldump
// client binaries so dumps stream instead of accumulating in memory.
package database

import (
	"context"
	"io"
)

// Client is the database surface the seed importer and exporter run
// against. ExecClient implements it against a live server; Fake
// implements it in-memory for tests.
type Client interface {
	// WaitReady blocks until the server accepts connections or the
	// configured wait timeout elapses.
	WaitReady(ctx context.Context) error

	// IsEmpty reports whether the target database holds no tables.
	// A database that does not exist yet counts as empty.
	IsEmpty(ctx context.Context) (bool, error)

	// ImportStream feeds the SQL statements read from r into the
	// target database inside a single transactional statement stream.
	ImportStream(ctx context.Context, r io.Reader) error

	// Dump writes a transactionally consistent dump of the target
	// database to w.
	Dump(ctx context.Context, w io.Writer) error
}
