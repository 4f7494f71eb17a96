// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package decision maps observed volume states to the lifecycle action.
// It is pure: no I/O, total over its inputs, and the same inputs always
// produce the same decision.
package decision

// Action is the lifecycle action chosen for a run.
type Action string

const (
	// ActionBackup archives both volumes into the repository.
	ActionBackup Action = "backup"

	// ActionRestore attempts to recover missing volume data from the
	// repository. With an empty repository and empty volumes it
	// degenerates to the fresh-install no-op.
	ActionRestore Action = "restore"
)

// Decision is the outcome of examining both volume states.
type Decision struct {
	// Action is the chosen lifecycle action.
	Action Action

	// Reason is a human-readable sentence for logs and run records.
	Reason string

	// DBHasData and AppHasData are the inputs the decision was made from.
	DBHasData  bool
	AppHasData bool
}

// Decide maps the two volume states to a lifecycle action.
//
// Only a fully populated stack is safe to archive; every other state
// means at least one volume lost its data and recovery must be
// attempted before the stack starts:
//
//	DB    App   -> Action
//	true  true  -> backup
//	true  false -> restore
//	false true  -> restore
//	false false -> restore (fresh install when the repository is empty)
func Decide(dbHasData, appHasData bool) Decision {
	d := Decision{DBHasData: dbHasData, AppHasData: appHasData}

	switch {
	case dbHasData && appHasData:
		d.Action = ActionBackup
		d.Reason = "both volumes hold data"
	case dbHasData && !appHasData:
		d.Action = ActionRestore
		d.Reason = "app volume is empty while db volume holds data"
	case !dbHasData && appHasData:
		d.Action = ActionRestore
		d.Reason = "db volume is empty while app volume holds data"
	default:
		d.Action = ActionRestore
		d.Reason = "both volumes are empty"
	}

	return d
}
