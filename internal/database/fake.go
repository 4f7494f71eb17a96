// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package database

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Fake is an in-memory Client for tests.
type Fake struct {
	mu sync.Mutex

	// Ready controls WaitReady; when false it fails immediately
	// instead of burning the retry budget.
	Ready bool

	// Tables is the table count reported through IsEmpty.
	Tables int

	// DumpData is what Dump writes.
	DumpData []byte

	// Imported captures the statement stream of the last ImportStream.
	Imported []byte

	// Per-operation scripted failures.
	WaitErr    error
	IsEmptyErr error
	ImportErr  error
	DumpErr    error

	// Calls records operations in invocation order.
	Calls []string
}

// NewFake returns a ready, empty in-memory database.
func NewFake() *Fake {
	return &Fake{Ready: true}
}

func (f *Fake) record(op string) {
	f.Calls = append(f.Calls, op)
}

// WaitReady implements Client.
func (f *Fake) WaitReady(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("wait-ready")
	if f.WaitErr != nil {
		return f.WaitErr
	}
	if !f.Ready {
		return fmt.Errorf("database: not ready within test budget")
	}
	return nil
}

// IsEmpty implements Client.
func (f *Fake) IsEmpty(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("is-empty")
	if f.IsEmptyErr != nil {
		return false, f.IsEmptyErr
	}
	return f.Tables == 0, nil
}

// ImportStream implements Client by capturing the statement stream.
// A successful import leaves the database non-empty.
func (f *Fake) ImportStream(ctx context.Context, r io.Reader) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("import")
	if f.ImportErr != nil {
		return f.ImportErr
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return fmt.Errorf("database: import: %w", err)
	}
	f.Imported = buf.Bytes()
	f.Tables++
	return nil
}

// Dump implements Client by writing DumpData.
func (f *Fake) Dump(ctx context.Context, w io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("dump")
	if f.DumpErr != nil {
		return f.DumpErr
	}
	if _, err := w.Write(f.DumpData); err != nil {
		return fmt.Errorf("database: dump: %w", err)
	}
	return nil
}
