package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/lifexp/internal/store"
	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/validation"
)

// MaxSnapshotBytes bounds a pushed snapshot document.
const MaxSnapshotBytes = 16 << 20

// HealthResponse is returned by GET /api/v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// Handler implements the API handlers
type Handler struct {
	store   store.SnapshotStore
	apiKey  string
	version string
}

// NewHandler creates a new Handler backed by a SnapshotStore.
func NewHandler(s store.SnapshotStore, apiKey, version string) *Handler {
	return &Handler{
		store:   s,
		apiKey:  apiKey,
		version: version,
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy", Version: h.version})
}

// GetSnapshot handles GET /api/v1/users/{userID}/snapshot
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	snap, err := h.store.GetSnapshot(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("get snapshot failed", "component", "api", "user_id", userID, "error", err)
		}
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PutSnapshot handles PUT /api/v1/users/{userID}/snapshot. The document
// replaces whatever was stored; ordering is decided by the clients.
func (h *Handler) PutSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	var snap types.RemoteSnapshot
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxSnapshotBytes)).Decode(&snap); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge, "Snapshot exceeds the size limit")
			return
		}
		WriteProblem(w, r, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	var c validation.Collector
	if snap.State == nil {
		c.Add(&validation.ValidationError{Field: "state", Message: "is required"})
	}
	if snap.UpdatedAt.IsZero() {
		c.Add(&validation.ValidationError{Field: "updated_at", Message: "is required"})
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Snapshot contains invalid fields", c.Errors())
		return
	}
	snap.State.Normalize()

	if err := h.store.PutSnapshot(r.Context(), userID, &snap); err != nil {
		slog.Error("put snapshot failed", "component", "api", "user_id", userID, "error", err)
		MapStoreError(w, r, err)
		return
	}

	slog.Info("snapshot stored",
		"component", "api",
		"action", "put_snapshot",
		"user_id", userID,
		"updated_at", snap.UpdatedAt,
	)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}
