// Tutela - Volume Lifecycle Guardian for Self-Hosted Stacks
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tutela

package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tutela/internal/borg"
	"github.com/tomtom215/tutela/internal/config"
	"github.com/tomtom215/tutela/internal/journal"
	"github.com/tomtom215/tutela/internal/metrics"
)

// mockHistory is a func-field journal double.
type mockHistory struct {
	recentFunc func(n int) ([]*journal.RunRecord, error)
	latestFunc func() (*journal.RunRecord, error)
}

func (m *mockHistory) Recent(n int) ([]*journal.RunRecord, error) {
	if m.recentFunc != nil {
		return m.recentFunc(n)
	}
	return nil, nil
}

func (m *mockHistory) Latest() (*journal.RunRecord, error) {
	if m.latestFunc != nil {
		return m.latestFunc()
	}
	return nil, nil
}

func testVolumes(t *testing.T) config.VolumesConfig {
	t.Helper()
	root := t.TempDir()
	dbPath := filepath.Join(root, "db")
	appPath := filepath.Join(root, "app")
	for _, p := range []string{dbPath, appPath} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dbPath, "ibdata1"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	return config.VolumesConfig{
		DB:  config.VolumeConfig{Path: dbPath},
		App: config.VolumeConfig{Path: appPath},
	}
}

func testServer(t *testing.T, repo borg.Client, history History) *Server {
	t.Helper()
	cfg := config.AdminConfig{Host: "127.0.0.1", Port: 9309, Timeout: 10 * time.Second}
	return New(cfg, testVolumes(t), repo, history)
}

func doRequest(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.Routes().ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	s := testServer(t, borg.NewFake(), nil)

	w := doRequest(t, s, http.MethodGet, "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", w.Code)
	}
	if resp := decodeResponse(t, w); resp.Status != "ok" {
		t.Errorf("status = %q, want ok", resp.Status)
	}
}

func TestReadyz(t *testing.T) {
	s := testServer(t, borg.NewFake(), nil)

	if w := doRequest(t, s, http.MethodGet, "/readyz"); w.Code != http.StatusOK {
		t.Errorf("GET /readyz = %d, want 200", w.Code)
	}
}

func TestReadyzRepositoryUnreachable(t *testing.T) {
	repo := borg.NewFake()
	repo.ProbeErr = errors.New("connection refused")
	s := testServer(t, repo, nil)

	w := doRequest(t, s, http.MethodGet, "/readyz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /readyz = %d, want 503", w.Code)
	}
	resp := decodeResponse(t, w)
	if resp.Error == nil || resp.Error.Code != "REPOSITORY_UNREACHABLE" {
		t.Errorf("error = %+v, want REPOSITORY_UNREACHABLE", resp.Error)
	}
}

func TestReadyzCachesProbe(t *testing.T) {
	repo := borg.NewFake()
	s := testServer(t, repo, nil)

	doRequest(t, s, http.MethodGet, "/readyz")
	doRequest(t, s, http.MethodGet, "/readyz")
	doRequest(t, s, http.MethodGet, "/readyz")

	probes := 0
	for _, call := range repo.Calls {
		if call == "probe" {
			probes++
		}
	}
	if probes != 1 {
		t.Errorf("repository probed %d times within the cache window, want 1", probes)
	}
}

func TestStatus(t *testing.T) {
	latest := &journal.RunRecord{
		ID:      "run-1",
		Action:  "backup",
		Outcome: journal.OutcomeOK,
	}
	history := &mockHistory{latestFunc: func() (*journal.RunRecord, error) { return latest, nil }}
	s := testServer(t, borg.NewFake(), history)

	w := doRequest(t, s, http.MethodGet, "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/status = %d, want 200", w.Code)
	}

	var resp struct {
		Data statusData `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Data.DB.HasData {
		t.Error("db.has_data = false, want true for populated volume")
	}
	if resp.Data.App.HasData {
		t.Error("app.has_data = true, want false for empty volume")
	}
	if resp.Data.LastRun == nil || resp.Data.LastRun.ID != "run-1" {
		t.Errorf("last_run = %+v, want run-1", resp.Data.LastRun)
	}
}

func TestStatusWithoutJournal(t *testing.T) {
	s := testServer(t, borg.NewFake(), nil)

	w := doRequest(t, s, http.MethodGet, "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/status = %d, want 200 with journal disabled", w.Code)
	}
	if strings.Contains(w.Body.String(), "last_run") {
		t.Errorf("response %q carries last_run without a journal", w.Body.String())
	}
}

func TestHistory(t *testing.T) {
	var gotLimit int
	history := &mockHistory{recentFunc: func(n int) ([]*journal.RunRecord, error) {
		gotLimit = n
		return []*journal.RunRecord{
			{ID: "newer", Action: "backup"},
			{ID: "older", Action: "restore"},
		}, nil
	}}
	s := testServer(t, borg.NewFake(), history)

	w := doRequest(t, s, http.MethodGet, "/api/v1/history?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/history = %d, want 200", w.Code)
	}
	if gotLimit != 2 {
		t.Errorf("journal queried with limit %d, want 2", gotLimit)
	}

	var resp struct {
		Data []*journal.RunRecord `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 2 || resp.Data[0].ID != "newer" {
		t.Errorf("history = %+v, want two records newest first", resp.Data)
	}
}

func TestHistoryDefaultLimit(t *testing.T) {
	var gotLimit int
	history := &mockHistory{recentFunc: func(n int) ([]*journal.RunRecord, error) {
		gotLimit = n
		return nil, nil
	}}
	s := testServer(t, borg.NewFake(), history)

	w := doRequest(t, s, http.MethodGet, "/api/v1/history")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/v1/history = %d, want 200", w.Code)
	}
	if gotLimit != defaultHistoryLimit {
		t.Errorf("journal queried with limit %d, want default %d", gotLimit, defaultHistoryLimit)
	}

	var resp struct {
		Data []*journal.RunRecord `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data == nil {
		t.Error("empty history serialized as null, want []")
	}
}

func TestHistoryLimitValidation(t *testing.T) {
	s := testServer(t, borg.NewFake(), &mockHistory{})

	for _, limit := range []string{"0", "501", "-3"} {
		w := doRequest(t, s, http.MethodGet, "/api/v1/history?limit="+limit)
		if w.Code != http.StatusBadRequest {
			t.Errorf("limit=%s -> %d, want 400", limit, w.Code)
		}
		resp := decodeResponse(t, w)
		if resp.Error == nil || resp.Error.Code != "VALIDATION_ERROR" {
			t.Errorf("limit=%s error = %+v, want VALIDATION_ERROR", limit, resp.Error)
		}
	}
}

func TestHistoryDisabled(t *testing.T) {
	s := testServer(t, borg.NewFake(), nil)

	w := doRequest(t, s, http.MethodGet, "/api/v1/history")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /api/v1/history = %d, want 503 with journal disabled", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := testServer(t, borg.NewFake(), nil)
	metrics.RecordRun("backup", time.Second, nil)

	w := doRequest(t, s, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tutela_runs_total") {
		t.Error("metrics exposition carries no tutela_runs_total series")
	}
}

func TestHTTPServerTimeouts(t *testing.T) {
	s := testServer(t, borg.NewFake(), nil)

	srv := s.HTTPServer()
	if srv.Addr != "127.0.0.1:9309" {
		t.Errorf("Addr = %s, want configured host:port", srv.Addr)
	}
	if srv.ReadTimeout != 10*time.Second || srv.WriteTimeout != 10*time.Second {
		t.Errorf("timeouts = %v/%v, want the configured admin timeout", srv.ReadTimeout, srv.WriteTimeout)
	}
	if srv.ReadHeaderTimeout == 0 {
		t.Error("ReadHeaderTimeout not set")
	}
}
