// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

// Package volume probes the protected volumes for the presence of data.
//
// A volume "has data" when its designated marker subdirectory exists and
// contains at least one entry. The probe is read-only and fails open: any
// error is reported as "no data" so stack prep keeps going; the restore
// path never overwrites a populated volume, so a wrong "empty" answer
// cannot destroy data.
package volume

import (
	"os"
	"path/filepath"

	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/logging"
)

// Tag identifies a protected volume's role within the stack.
type Tag string

const (
	// TagDB is the database volume (MariaDB/MySQL datadir).
	TagDB Tag = "db"

	// TagApp is the application volume.
	TagApp Tag = "app"
)

// Tags lists all protected volume tags in backup order.
var Tags = []Tag{TagDB, TagApp}

// ArchivePrefix returns the archive-name prefix for this volume tag,
// e.g. "db_volume_" for TagDB.
func (t Tag) ArchivePrefix() string {
	return string(t) + "_volume_"
}

// State describes the observed condition of one volume.
type State struct {
	// Tag is the volume's role.
	Tag Tag

	// Path is the volume root that was probed.
	Path string

	// Marker is the subdirectory (relative to Path) whose non-emptiness
	// means the volume holds data. Empty means the volume root itself.
	Marker string

	// HasData reports whether the marker subdirectory exists and is
	// non-empty.
	HasData bool
}

// Detect probes one volume and reports whether it holds data.
// Probe errors (missing path, unreadable directory) are logged at warn
// level and reported as HasData=false; Detect never fails.
func Detect(tag Tag, path, marker string) State {
	st := State{Tag: tag, Path: path, Marker: marker}

	probe := path
	if marker != "" {
		probe = filepath.Join(path, marker)
	}

	entries, err := os.ReadDir(probe)
	if err != nil {
		logging.Warn().
			Err(err).
			Str("volume", string(tag)).
			Str("path", probe).
			Msg("volume probe failed, treating volume as empty")
		return st
	}

	st.HasData = countDataEntries(entries) > 0
	return st
}

// DetectAll probes both configured volumes.
func DetectAll(cfg config.VolumesConfig) (db State, app State) {
	db = Detect(TagDB, cfg.DB.Path, cfg.DB.Marker)
	app = Detect(TagApp, cfg.App.Path, cfg.App.Marker)
	return db, app
}

// countDataEntries counts directory entries that represent real data.
// ext-family volumes carry a lost+found directory even when otherwise
// empty, so it is not counted.
func countDataEntries(entries []os.DirEntry) int {
	n := 0
	for _, e := range entries {
		if e.Name() == "lost+found" {
			continue
		}
		n++
	}
	return n
}
