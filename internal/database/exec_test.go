// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package database

import (
	"io"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/tutela/internal/config"
)

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:         "db",
		Port:         3306,
		User:         "root",
		Password:     "secret",
		Name:         "wordpress",
		WaitTimeout:  60 * time.Second,
		ClientBinary: "mysql",
		DumpBinary:   "mysqldump",
	}
}

func TestMysqlArgs(t *testing.T) {
	c, err := NewExecClient(testDatabaseConfig())
	if err != nil {
		t.Fatalf("NewExecClient() error = %v", err)
	}
	defer c.Close()

	want := []string{"-h", "db", "-P", "3306", "-u", "root", "wordpress"}
	if got := c.mysqlArgs(); !reflect.DeepEqual(got, want) {
		t.Errorf("mysqlArgs() = %v, want %v", got, want)
	}
}

func TestDumpArgs(t *testing.T) {
	c, err := NewExecClient(testDatabaseConfig())
	if err != nil {
		t.Fatalf("NewExecClient() error = %v", err)
	}
	defer c.Close()

	want := []string{
		"--single-transaction", "--quick", "--lock-tables=false",
		"-h", "db", "-P", "3306", "-u", "root", "wordpress",
	}
	if got := c.dumpArgs(); !reflect.DeepEqual(got, want) {
		t.Errorf("dumpArgs() = %v, want %v", got, want)
	}
}

func TestEnvironPassword(t *testing.T) {
	c, err := NewExecClient(testDatabaseConfig())
	if err != nil {
		t.Fatalf("NewExecClient() error = %v", err)
	}
	defer c.Close()

	var found bool
	for _, kv := range c.environ() {
		if kv == "MYSQL_PWD=secret" {
			found = true
		}
	}
	if !found {
		t.Error("environ() missing MYSQL_PWD")
	}
}

func TestEnvironOmitsEmptyPassword(t *testing.T) {
	cfg := testDatabaseConfig()
	cfg.Password = ""
	c, err := NewExecClient(cfg)
	if err != nil {
		t.Fatalf("NewExecClient() error = %v", err)
	}
	defer c.Close()

	for _, kv := range c.environ() {
		if strings.HasPrefix(kv, "MYSQL_PWD=") {
			t.Error("environ() contains MYSQL_PWD for password-less server")
		}
	}
}

func TestTransactionalStream(t *testing.T) {
	payload := "CREATE TABLE t (id INT);\nINSERT INTO t VALUES (1);"
	got, err := io.ReadAll(transactionalStream(strings.NewReader(payload)))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}

	s := string(got)
	if !strings.HasPrefix(s, "SET autocommit=0;\nSTART TRANSACTION;\n") {
		t.Errorf("stream missing transaction prelude: %q", s[:min(len(s), 60)])
	}
	if !strings.HasSuffix(s, "\nCOMMIT;\n") {
		t.Errorf("stream missing commit trailer: %q", s[max(0, len(s)-20):])
	}
	if !strings.Contains(s, payload) {
		t.Error("stream lost the payload")
	}
}

func TestTransactionalStreamEmptyPayload(t *testing.T) {
	got, err := io.ReadAll(transactionalStream(strings.NewReader("")))
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	want := importPrelude + importTrailer
	if string(got) != want {
		t.Errorf("stream = %q, want %q", got, want)
	}
}
