// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package database

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestFakeWaitReady(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	if err := f.WaitReady(ctx); err != nil {
		t.Errorf("WaitReady() error = %v, want nil", err)
	}

	f.Ready = false
	if err := f.WaitReady(ctx); err == nil {
		t.Error("WaitReady() error = nil for unready database, want error")
	}
}

func TestFakeIsEmpty(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	empty, err := f.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty() error = %v", err)
	}
	if !empty {
		t.Error("IsEmpty() = false for fresh fake, want true")
	}

	f.Tables = 12
	empty, err = f.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty() error = %v", err)
	}
	if empty {
		t.Error("IsEmpty() = true with tables present, want false")
	}
}

func TestFakeImportCapturesStream(t *testing.T) {
	ctx := context.Background()
	f := NewFake()

	if err := f.ImportStream(ctx, strings.NewReader("INSERT INTO t VALUES (1);")); err != nil {
		t.Fatalf("ImportStream() error = %v", err)
	}
	if got := string(f.Imported); got != "INSERT INTO t VALUES (1);" {
		t.Errorf("Imported = %q, want the statement stream", got)
	}

	empty, err := f.IsEmpty(ctx)
	if err != nil {
		t.Fatalf("IsEmpty() error = %v", err)
	}
	if empty {
		t.Error("IsEmpty() = true after import, want false")
	}
}

func TestFakeDump(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	f.DumpData = []byte("-- dump\nCREATE TABLE t (id INT);\n")

	var buf bytes.Buffer
	if err := f.Dump(ctx, &buf); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if buf.String() != string(f.DumpData) {
		t.Errorf("Dump() wrote %q, want %q", buf.String(), f.DumpData)
	}
}

func TestFakeScriptedFailures(t *testing.T) {
	ctx := context.Background()
	f := NewFake()
	boom := errors.New("boom")
	f.ImportErr = boom

	err := f.ImportStream(ctx, strings.NewReader("INSERT INTO t VALUES (1);"))
	if !errors.Is(err, boom) {
		t.Errorf("ImportStream() error = %v, want scripted failure", err)
	}
	if f.Imported != nil {
		t.Error("Imported captured despite scripted failure")
	}
}
