// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package fault defines the error classes lifecycle and seed runs
// report. Ordinary outcomes — an empty volume, an empty repository, a
// missing optional seed — are not faults; they are valid results and
// never appear here.
package fault

import (
	"fmt"
	"strings"
)

// ConfigurationError means a required setting is missing or invalid.
// Fatal, never retried.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}

// ConnectivityError means the snapshot store or database stayed
// unreachable past its bounded wait. Fatal after the wait expires.
type ConnectivityError struct {
	Target string
	Err    error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity error: %s unreachable: %v", e.Target, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// ConflictError means an operation would collide with existing state:
// an archive name already taken, or an import aimed at a non-empty
// database. Fatal; auto-resolution risks data loss.
type ConflictError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conflict: %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("conflict: %s: %s", e.Op, e.Reason)
}

func (e *ConflictError) Unwrap() error { return e.Err }

// PartialFailure means one of a pair of volume operations succeeded
// and the other did not. Surfaced distinctly from total failure so the
// operator sees exactly which half needs attention.
type PartialFailure struct {
	Op        string
	Succeeded []string
	Failed    []string
	Errs      []error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("partial failure: %s: succeeded [%s], failed [%s]: %v",
		e.Op, strings.Join(e.Succeeded, ", "), strings.Join(e.Failed, ", "), joinErrs(e.Errs))
}

func (e *PartialFailure) Unwrap() []error { return e.Errs }

// PolicyWarning means a post-success housekeeping step failed, such
// as pruning, compaction, or seed-history trimming. Logged and
// counted, never fatal: the primary action already succeeded.
type PolicyWarning struct {
	Op  string
	Err error
}

func (e *PolicyWarning) Error() string {
	return fmt.Sprintf("policy warning: %s: %v", e.Op, e.Err)
}

func (e *PolicyWarning) Unwrap() error { return e.Err }

func joinErrs(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
