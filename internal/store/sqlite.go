package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/lifexp/internal/types"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the SQLite-backed persistence layer for both the local
// profile and the sync server's snapshots.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens dbPath, applies pragmas and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// LoadProfile returns the stored profile, or ErrNotFound on first run.
func (s *SQLiteStore) LoadProfile(ctx context.Context) (*types.Profile, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM profile WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	var p types.Profile
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("%w: profile: %v", ErrCorrupt, err)
	}
	return &p, nil
}

// SaveProfile replaces the stored profile and appends activity rows in a
// single transaction.
func (s *SQLiteStore) SaveProfile(ctx context.Context, p *types.Profile, activity ...types.Activity) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO profile (id, body, updated_at, saved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at,
			saved_at = excluded.saved_at
	`, string(body), formatTime(p.Meta.UpdatedAt), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}

	for i := range activity {
		a := &activity[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO activity_log (action, world_id, entity_id, xp_delta, detail, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, a.Action, a.WorldID, a.EntityID, a.XPDelta, a.Detail, formatTime(a.CreatedAt))
		if err != nil {
			return fmt.Errorf("append activity %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ListActivity returns up to limit journal rows, newest first.
func (s *SQLiteStore) ListActivity(ctx context.Context, limit int) ([]types.Activity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, action, world_id, entity_id, xp_delta, detail, created_at
		FROM activity_log
		ORDER BY sequence DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity: %w", err)
	}
	defer rows.Close()

	out := make([]types.Activity, 0)
	for rows.Next() {
		var a types.Activity
		var createdAt string
		if err := rows.Scan(&a.Sequence, &a.Action, &a.WorldID, &a.EntityID, &a.XPDelta, &a.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		a.CreatedAt = parseTime("activity_log.created_at", createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetSyncMeta retrieves a sync metadata value by key.
func (s *SQLiteStore) GetSyncMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM sync_meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("sync meta key %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get sync meta: %w", err)
	}
	return value, nil
}

// SetSyncMeta sets a sync metadata value.
func (s *SQLiteStore) SetSyncMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO sync_meta (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set sync meta: %w", err)
	}
	return nil
}

// GetSnapshot returns the snapshot stored for userID, or ErrNotFound.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, userID string) (*types.RemoteSnapshot, error) {
	var body, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT body, updated_at FROM remote_snapshots WHERE user_id = ?
	`, userID).Scan(&body, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}

	var state types.Profile
	if err := json.Unmarshal([]byte(body), &state); err != nil {
		return nil, fmt.Errorf("%w: snapshot for %s: %v", ErrCorrupt, userID, err)
	}
	return &types.RemoteSnapshot{
		UpdatedAt: parseTime("remote_snapshots.updated_at", updatedAt),
		State:     &state,
	}, nil
}

// PutSnapshot stores snap for userID, replacing any previous snapshot.
func (s *SQLiteStore) PutSnapshot(ctx context.Context, userID string, snap *types.RemoteSnapshot) error {
	if snap == nil || snap.State == nil {
		return fmt.Errorf("put snapshot: missing state")
	}
	body, err := json.Marshal(snap.State)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO remote_snapshots (user_id, body, updated_at, received_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at,
			received_at = excluded.received_at
	`, userID, string(body), formatTime(snap.UpdatedAt), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(column, value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		slog.Warn("store: failed to parse timestamp", "column", column, "value", value, "error", err)
	}
	return t
}

// Backup writes a consistent copy of the database to destPath with VACUUM
// INTO. destPath must not exist yet.
func (s *SQLiteStore) Backup(ctx context.Context, destPath string) error {
	if _, err := os.Stat(destPath); err == nil {
		return fmt.Errorf("backup: %s already exists", destPath)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `VACUUM INTO ?`, destPath); err != nil {
		return fmt.Errorf("backup: %w", err)
	}
	return nil
}
