// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package database

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/go-sql-driver/mysql"

	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/logging"
)

// Import statements run under one explicit transaction so a failed
// import leaves no partial commit behind.
const (
	importPrelude = "SET autocommit=0;\nSTART TRANSACTION;\n"
	importTrailer = "\nCOMMIT;\n"
)

const pingInterval = 2 * time.Second

// ExecClient drives a MySQL-compatible server. It implements Client.
type ExecClient struct {
	cfg config.DatabaseConfig
	db  *sql.DB
}

// NewExecClient creates a Client for the configured server. The
// underlying connection pool dials lazily; Close releases it.
func NewExecClient(cfg config.DatabaseConfig) (*ExecClient, error) {
	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: open %s: %w", cfg.Addr(), err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(time.Minute)
	return &ExecClient{cfg: cfg, db: db}, nil
}

// Close releases the connection pool.
func (c *ExecClient) Close() error {
	return c.db.Close()
}

// WaitReady implements Client with a bounded retry loop: the server
// gets pinged until it answers or the configured wait timeout elapses.
func (c *ExecClient) WaitReady(ctx context.Context) error {
	attempt := 0
	operation := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingInterval)
		defer cancel()
		if err := c.db.PingContext(pingCtx); err != nil {
			logging.Debug().
				Str("addr", c.cfg.Addr()).
				Int("attempt", attempt).
				Err(err).
				Msg("database not ready yet")
			return err
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = pingInterval
	policy.MaxElapsedTime = c.cfg.WaitTimeout

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("database: not ready within %s: %w", c.cfg.WaitTimeout, err)
	}
	return nil
}

// IsEmpty implements Client. Emptiness means the target database has
// no tables or views; an absent database is empty too, which keeps the
// check valid before the server's first-boot provisioning ran.
func (c *ExecClient) IsEmpty(ctx context.Context) (bool, error) {
	const query = "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = ?"
	var count int
	if err := c.db.QueryRowContext(ctx, query, c.cfg.Name).Scan(&count); err != nil {
		return false, fmt.Errorf("database: count tables in %s: %w", c.cfg.Name, err)
	}
	return count == 0, nil
}

// ImportStream implements Client by piping the statement stream into
// the mysql binary's stdin, wrapped in one explicit transaction.
func (c *ExecClient) ImportStream(ctx context.Context, r io.Reader) error {
	cmd := exec.CommandContext(ctx, c.cfg.ClientBinary, c.mysqlArgs()...)
	cmd.Env = c.environ()
	cmd.Stdin = transactionalStream(r)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("database: import into %s: %w: %s", c.cfg.Name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Dump implements Client by streaming mysqldump's stdout into w.
// --single-transaction gives a consistent point-in-time dump without
// locking; --quick streams rows instead of buffering each table.
func (c *ExecClient) Dump(ctx context.Context, w io.Writer) error {
	cmd := exec.CommandContext(ctx, c.cfg.DumpBinary, c.dumpArgs()...)
	cmd.Env = c.environ()
	cmd.Stdout = w

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("database: dump %s: %w: %s", c.cfg.Name, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// mysqlArgs builds the client invocation for imports.
func (c *ExecClient) mysqlArgs() []string {
	return append(c.connArgs(), c.cfg.Name)
}

// dumpArgs builds the mysqldump invocation for exports.
func (c *ExecClient) dumpArgs() []string {
	args := []string{"--single-transaction", "--quick", "--lock-tables=false"}
	args = append(args, c.connArgs()...)
	return append(args, c.cfg.Name)
}

func (c *ExecClient) connArgs() []string {
	return []string{
		"-h", c.cfg.Host,
		"-P", strconv.Itoa(c.cfg.Port),
		"-u", c.cfg.User,
	}
}

// environ passes the password via MYSQL_PWD so it never shows up in
// the process list.
func (c *ExecClient) environ() []string {
	env := os.Environ()
	if c.cfg.Password != "" {
		env = append(env, "MYSQL_PWD="+c.cfg.Password)
	}
	return env
}

// transactionalStream wraps r in the explicit-transaction prelude and
// trailer.
func transactionalStream(r io.Reader) io.Reader {
	return io.MultiReader(
		strings.NewReader(importPrelude),
		r,
		strings.NewReader(importTrailer),
	)
}
