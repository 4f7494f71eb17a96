// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tutela/internal/journal"
	"github.com/tomtom215/tutela/internal/logging"
	"github.com/tomtom215/tutela/internal/validation"
	"github.com/tomtom215/tutela/internal/volume"
)

const defaultHistoryLimit = 20

// apiResponse is the envelope every endpoint responds with.
type apiResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// volumeStatus is one volume's observed state.
type volumeStatus struct {
	Path    string `json:"path"`
	Marker  string `json:"marker,omitempty"`
	HasData bool   `json:"has_data"`
}

// statusData is the /api/v1/status payload.
type statusData struct {
	DB      volumeStatus       `json:"db"`
	App     volumeStatus       `json:"app"`
	LastRun *journal.RunRecord `json:"last_run,omitempty"`
}

// historyQuery validates the history limit parameter.
type historyQuery struct {
	Limit int `validate:"min=1,max=500"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.probeReady(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "REPOSITORY_UNREACHABLE", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, nil)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	dbState, appState := volume.DetectAll(s.volumes)
	data := statusData{
		DB:  volumeStatus{Path: dbState.Path, Marker: dbState.Marker, HasData: dbState.HasData},
		App: volumeStatus{Path: appState.Path, Marker: appState.Marker, HasData: appState.HasData},
	}

	if s.history != nil {
		last, err := s.history.Latest()
		if err != nil {
			respondError(w, http.StatusInternalServerError, "JOURNAL_READ_FAILED", err.Error())
			return
		}
		data.LastRun = last
	}

	respondJSON(w, http.StatusOK, data)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "JOURNAL_DISABLED", "run history is not enabled")
		return
	}

	limit := intParam(r, "limit", defaultHistoryLimit)
	if err := validation.ValidateStruct(&historyQuery{Limit: limit}); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	records, err := s.history.Recent(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "JOURNAL_READ_FAILED", err.Error())
		return
	}
	if records == nil {
		records = []*journal.RunRecord{}
	}

	respondJSON(w, http.StatusOK, records)
}

// intParam reads an integer query parameter, falling back to def for
// absent or unparseable values. Range checking is the validator's job.
func intParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(&apiResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		logging.Error().Err(err).Msg("marshal admin response failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("write admin response failed")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(&apiResponse{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     &apiError{Code: code, Message: message},
	})
	if err != nil {
		logging.Error().Err(err).Msg("marshal admin error failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("write admin response failed")
	}
}
