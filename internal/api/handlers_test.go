package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/lifexp/internal/store"
	"github.com/hyperengineering/lifexp/internal/types"
)

const testAPIKey = "test-api-key"

func newTestRouter(t *testing.T) (http.Handler, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewRouter(NewHandler(s, testAPIKey, "1.2.3")), s
}

func doRequest(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func snapshotBody(t *testing.T, name string, at time.Time) []byte {
	t.Helper()
	p := types.NewProfile(at)
	p.PlayerName = name
	p.Global.TotalXP = 77
	data, err := json.Marshal(types.RemoteSnapshot{UpdatedAt: at, State: p})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) ProblemWithErrors {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("Content-Type = %q, want application/problem+json", ct)
	}
	var p ProblemWithErrors
	if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	return p
}

func TestHealth(t *testing.T) {
	h, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" || resp.Version != "1.2.3" {
		t.Errorf("health = %+v", resp)
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/users/ada/snapshot", nil)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	p := decodeProblem(t, rec)
	if p.Status != http.StatusNotFound || p.Instance != "/api/v1/users/ada/snapshot" {
		t.Errorf("problem = %+v", p)
	}
}

func TestPutThenGetSnapshot(t *testing.T) {
	h, s := newTestRouter(t)
	at := time.Date(2024, 5, 8, 9, 30, 0, 0, time.UTC)

	rec := doRequest(t, h, http.MethodPut, "/api/v1/users/ada/snapshot", snapshotBody(t, "Ada", at))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("PUT status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/v1/users/ada/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rec.Code)
	}
	var got types.RemoteSnapshot
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if !got.UpdatedAt.Equal(at) || got.State.PlayerName != "Ada" || got.State.Global.TotalXP != 77 {
		t.Errorf("snapshot = %+v / %+v", got.UpdatedAt, got.State)
	}

	// other users are isolated
	if _, err := s.GetSnapshot(context.Background(), "bob"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("bob snapshot: %v", err)
	}
}

func TestPutSnapshot_Overwrites(t *testing.T) {
	h, s := newTestRouter(t)
	at := time.Date(2024, 5, 8, 9, 30, 0, 0, time.UTC)

	doRequest(t, h, http.MethodPut, "/api/v1/users/ada/snapshot", snapshotBody(t, "first", at))
	doRequest(t, h, http.MethodPut, "/api/v1/users/ada/snapshot", snapshotBody(t, "second", at.Add(-time.Hour)))

	got, err := s.GetSnapshot(context.Background(), "ada")
	if err != nil {
		t.Fatal(err)
	}
	if got.State.PlayerName != "second" {
		t.Errorf("PlayerName = %q, want the last write", got.State.PlayerName)
	}
}

func TestPutSnapshot_Validation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"invalid json", `{"state":`, http.StatusBadRequest, ""},
		{"missing state", `{"updated_at":"2024-05-08T09:00:00Z"}`, http.StatusUnprocessableEntity, "state"},
		{"missing updated_at", `{"state":{"player_name":"Ada"}}`, http.StatusUnprocessableEntity, "updated_at"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestRouter(t)
			rec := doRequest(t, h, http.MethodPut, "/api/v1/users/ada/snapshot", []byte(tt.body))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			p := decodeProblem(t, rec)
			if tt.wantField == "" {
				return
			}
			if len(p.Errors) != 1 || p.Errors[0].Field != tt.wantField {
				t.Errorf("errors = %+v, want field %s", p.Errors, tt.wantField)
			}
		})
	}
}

func TestPutSnapshot_TooLarge(t *testing.T) {
	h, _ := newTestRouter(t)
	body := `{"updated_at":"2024-05-08T09:00:00Z","state":{"player_name":"` + strings.Repeat("a", MaxSnapshotBytes) + `"}}`
	rec := doRequest(t, h, http.MethodPut, "/api/v1/users/ada/snapshot", []byte(body))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestSnapshot_InvalidUserID(t *testing.T) {
	h, _ := newTestRouter(t)
	rec := doRequest(t, h, http.MethodGet, "/api/v1/users/Not%20Valid/snapshot", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	p := decodeProblem(t, rec)
	if len(p.Errors) != 1 || p.Errors[0].Field != "user_id" {
		t.Errorf("errors = %+v", p.Errors)
	}
}

func TestSnapshot_RequiresAuth(t *testing.T) {
	h, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/ada/snapshot", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
