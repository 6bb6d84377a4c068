package store

import (
	"context"

	"github.com/hyperengineering/lifexp/internal/types"
)

// ProfileStore persists the local player profile, its activity journal and
// sync bookkeeping.
type ProfileStore interface {
	LoadProfile(ctx context.Context) (*types.Profile, error)
	SaveProfile(ctx context.Context, p *types.Profile, activity ...types.Activity) error
	ListActivity(ctx context.Context, limit int) ([]types.Activity, error)
	GetSyncMeta(ctx context.Context, key string) (string, error)
	SetSyncMeta(ctx context.Context, key, value string) error
	Close() error
}

// SnapshotStore persists per-user remote snapshots on the sync server.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, userID string) (*types.RemoteSnapshot, error)
	PutSnapshot(ctx context.Context, userID string, snap *types.RemoteSnapshot) error
	Close() error
}

var (
	_ ProfileStore  = (*SQLiteStore)(nil)
	_ SnapshotStore = (*SQLiteStore)(nil)
)
