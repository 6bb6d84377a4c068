// Package remote moves profile snapshots to and from a sync backend. When
// no backend is configured the Noop remote is used and the CLI stays
// local-only.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/lifexp/internal/config"
	"github.com/hyperengineering/lifexp/internal/types"
)

var (
	// ErrNotFound is returned by Pull when the backend holds no snapshot
	// for the user yet.
	ErrNotFound = errors.New("remote snapshot not found")

	// ErrNotConfigured is returned by the Noop remote.
	ErrNotConfigured = errors.New("sync remote not configured")
)

// Remote stores one snapshot document per user.
type Remote interface {
	Pull(ctx context.Context, userID string) (*types.RemoteSnapshot, error)
	Push(ctx context.Context, userID string, snap *types.RemoteSnapshot) error
}

// Noop is used when sync is disabled.
type Noop struct{}

// Pull returns ErrNotConfigured.
func (Noop) Pull(context.Context, string) (*types.RemoteSnapshot, error) {
	return nil, ErrNotConfigured
}

// Push is a no-op.
func (Noop) Push(context.Context, string, *types.RemoteSnapshot) error {
	return nil
}

// New creates the Remote selected by cfg.Backend.
func New(cfg config.SyncConfig) (Remote, error) {
	timeout := time.Duration(cfg.Timeout)
	switch cfg.Backend {
	case "", config.BackendNone:
		return Noop{}, nil
	case config.BackendHTTP:
		return NewHTTP(cfg.HTTP.URL, cfg.HTTP.APIKey, timeout), nil
	case config.BackendRedis:
		return NewRedis(cfg.Redis), nil
	case config.BackendS3:
		return NewS3(cfg.S3)
	}
	return nil, fmt.Errorf("unknown sync backend %q", cfg.Backend)
}

// decode validates a snapshot document read from a backend.
func decode(data []byte) (*types.RemoteSnapshot, error) {
	var snap types.RemoteSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode remote snapshot: %w", err)
	}
	if snap.State == nil {
		return nil, errors.New("decode remote snapshot: missing state")
	}
	snap.State.Normalize()
	return &snap, nil
}

func encode(snap *types.RemoteSnapshot) ([]byte, error) {
	if snap == nil || snap.State == nil {
		return nil, errors.New("encode remote snapshot: missing state")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode remote snapshot: %w", err)
	}
	return data, nil
}
