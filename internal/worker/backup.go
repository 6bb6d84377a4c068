package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// BackupStore defines the store operations needed by the backup worker.
type BackupStore interface {
	Backup(ctx context.Context, destPath string) error
}

const (
	backupPrefix = "lifexp-"
	backupSuffix = ".db"
)

// BackupWorker writes periodic database backups into a directory and keeps
// only the newest ones.
type BackupWorker struct {
	store    BackupStore
	dir      string
	interval time.Duration
	keep     int
}

// NewBackupWorker creates a worker. keep <= 0 keeps every backup.
func NewBackupWorker(store BackupStore, dir string, interval time.Duration, keep int) *BackupWorker {
	return &BackupWorker{
		store:    store,
		dir:      dir,
		interval: interval,
		keep:     keep,
	}
}

// Run backs up immediately on start, then on each interval, until ctx is
// cancelled.
func (w *BackupWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "backup",
		"dir", w.dir,
		"interval", w.interval,
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "backup",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce writes one backup and prunes old ones. Failures are logged.
func (w *BackupWorker) RunOnce(ctx context.Context) {
	name := backupPrefix + ulid.Make().String() + backupSuffix
	path := filepath.Join(w.dir, name)

	if err := w.store.Backup(ctx, path); err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("backup failed",
			"component", "worker",
			"worker", "backup",
			"action", "backup_failed",
			"error", err,
		)
		return
	}
	slog.Info("backup written",
		"component", "worker",
		"worker", "backup",
		"action", "backup",
		"path", path,
	)

	if err := w.prune(); err != nil {
		slog.Warn("backup pruning failed",
			"component", "worker",
			"worker", "backup",
			"action", "prune_failed",
			"error", err,
		)
	}
}

// prune removes all but the newest keep backups. ULID names sort by time.
func (w *BackupWorker) prune() error {
	if w.keep <= 0 {
		return nil
	}
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("read backup dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), backupSuffix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= w.keep {
		return nil
	}
	sort.Strings(names)
	for _, name := range names[:len(names)-w.keep] {
		if err := os.Remove(filepath.Join(w.dir, name)); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}
	return nil
}
