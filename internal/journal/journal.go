// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package journal keeps the history of lifecycle runs in an embedded
// BadgerDB store. The journal is observability, not source of truth:
// every write failure is survivable and the lifecycle itself never
// reads it back.
package journal

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const runKeyPrefix = "run:"

// keyTimeLayout is fixed-width so lexical key order is chronological
// (RFC3339Nano trims trailing zeros, which breaks ordering at whole
// seconds).
const keyTimeLayout = "2006-01-02T15:04:05.000000000Z"

// Outcome classifies how a run ended.
type Outcome string

const (
	OutcomeOK     Outcome = "ok"     // the decided action completed
	OutcomeNoop   Outcome = "noop"   // legitimate nothing-to-do (fresh install, all skipped)
	OutcomeFailed Outcome = "failed" // the run returned an error
)

// RunRecord is the persisted account of one lifecycle run.
type RunRecord struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Action        string    `json:"action"`
	Reason        string    `json:"reason"`
	DBHasData     bool      `json:"db_has_data"`
	AppHasData    bool      `json:"app_has_data"`
	Archives      []string  `json:"archives,omitempty"`
	Restored      []string  `json:"restored,omitempty"`
	PruneWarnings []string  `json:"prune_warnings,omitempty"`
	SeedImported  bool      `json:"seed_imported,omitempty"`
	SeedExported  bool      `json:"seed_exported,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	Error         string    `json:"error,omitempty"`
}

// Journal is a BadgerDB-backed run history.
type Journal struct {
	db *badger.DB
}

// Open opens (or creates) the journal at path.
func Open(path string) (*Journal, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// Close releases the underlying store.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record persists one run record.
func (j *Journal) Record(rec *RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("journal: marshal run %s: %w", rec.ID, err)
	}

	key := []byte(runKeyPrefix + rec.StartedAt.UTC().Format(keyTimeLayout) + ":" + rec.ID)
	err = j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("journal: record run %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns up to n run records, newest first.
func (j *Journal) Recent(n int) ([]*RunRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	prefix := []byte(runKeyPrefix)
	records := make([]*RunRecord, 0, n)

	err := j.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the last possible run key.
		for it.Seek(append(prefix, 0xFF)); it.ValidForPrefix(prefix) && len(records) < n; it.Next() {
			rec := new(RunRecord)
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, rec)
			})
			if err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: recent runs: %w", err)
	}
	return records, nil
}

// Latest returns the most recent run record, or nil when the journal
// is empty.
func (j *Journal) Latest() (*RunRecord, error) {
	records, err := j.Recent(1)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}
