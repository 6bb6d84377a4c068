package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/lifexp/internal/merge"
	"github.com/hyperengineering/lifexp/internal/remote"
	"github.com/hyperengineering/lifexp/internal/types"
)

// Sync metadata keys written after successful transfers.
const (
	MetaLastPush = "last_push"
	MetaLastPull = "last_pull"
)

// Source is the local side of sync. *engine.Service satisfies it.
type Source interface {
	Snapshot() (*types.Profile, error)
	ReplaceProfile(ctx context.Context, p *types.Profile) error
	MarkSynced(ctx context.Context) error
}

// MetaStore records sync bookkeeping. Optional.
type MetaStore interface {
	SetSyncMeta(ctx context.Context, key, value string) error
}

// SyncerOptions configures a Syncer. Zero values select the defaults.
type SyncerOptions struct {
	UserID string
	// Debounce is the quiet period after the last notification before a
	// push starts. Defaults to 800ms.
	Debounce time.Duration
	// PullInterval enables a periodic reconcile while Run is active.
	PullInterval time.Duration
	// FlushTimeout bounds the final push on shutdown. Defaults to 10s.
	FlushTimeout time.Duration
	Meta         MetaStore
	// OnWarning receives every sync failure. Failures never roll back
	// local state.
	OnWarning func(error)
}

// ReconcileResult reports what Reconcile did.
type ReconcileResult struct {
	Decision merge.Decision
	// Created is true when the remote had no snapshot and one was pushed.
	Created bool
}

// Syncer pushes local changes to a remote on a debounce and reconciles
// with it on start. At most one transfer runs at a time and at most one
// push is pending behind it.
type Syncer struct {
	source Source
	remote remote.Remote
	opts   SyncerOptions

	// notify holds at most one pending signal.
	notify chan struct{}
	// xfer serializes pushes and reconciles.
	xfer sync.Mutex
}

// NewSyncer creates a syncer between src and rem.
func NewSyncer(src Source, rem remote.Remote, opts SyncerOptions) *Syncer {
	if opts.Debounce <= 0 {
		opts.Debounce = 800 * time.Millisecond
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = 10 * time.Second
	}
	if opts.UserID == "" {
		opts.UserID = "default"
	}
	return &Syncer{
		source: src,
		remote: rem,
		opts:   opts,
		notify: make(chan struct{}, 1),
	}
}

// Notify schedules a debounced push. It never blocks.
func (s *Syncer) Notify() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Run drives debounced pushes until ctx is cancelled, then flushes any
// pending push.
func (s *Syncer) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "syncer",
		"action", "worker_started",
		"debounce", s.opts.Debounce,
	)

	var pullC <-chan time.Time
	if s.opts.PullInterval > 0 {
		ticker := time.NewTicker(s.opts.PullInterval)
		defer ticker.Stop()
		pullC = ticker.C
	}

	// fire is non-nil while a push is scheduled
	var timer *time.Timer
	var fire <-chan time.Time
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
		timer, fire = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			pending := fire != nil
			select {
			case <-s.notify:
				pending = true
			default:
			}
			stop()
			if pending {
				s.flush(ctx)
			}
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "syncer",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-s.notify:
			// a newer change cancels the scheduled push and restarts the wait
			stop()
			timer = time.NewTimer(s.opts.Debounce)
			fire = timer.C
		case <-fire:
			timer, fire = nil, nil
			s.PushNow(ctx)
		case <-pullC:
			if fire == nil {
				s.Reconcile(ctx)
			}
		}
	}
}

func (s *Syncer) flush(ctx context.Context) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.FlushTimeout)
	defer cancel()
	slog.Info("flushing pending push",
		"component", "worker",
		"worker", "syncer",
		"action", "flush",
	)
	s.PushNow(fctx)
}

// PushNow uploads the current local profile immediately.
func (s *Syncer) PushNow(ctx context.Context) error {
	s.xfer.Lock()
	defer s.xfer.Unlock()
	return s.push(ctx)
}

func (s *Syncer) push(ctx context.Context) error {
	p, err := s.source.Snapshot()
	if err != nil {
		return s.warn("push", fmt.Errorf("snapshot local profile: %w", err))
	}
	p.Meta.FreshInstall = false
	snap := &types.RemoteSnapshot{UpdatedAt: p.Meta.UpdatedAt, State: p}

	if err := s.remote.Push(ctx, s.opts.UserID, snap); err != nil {
		return s.warn("push", fmt.Errorf("cloud save failed: %w", err))
	}
	s.recordMeta(ctx, MetaLastPush)
	slog.Info("snapshot pushed",
		"component", "worker",
		"worker", "syncer",
		"action", "push",
		"user_id", s.opts.UserID,
		"updated_at", snap.UpdatedAt,
	)
	return nil
}

// Reconcile pulls the remote snapshot and applies last-writer-wins. A
// missing remote snapshot is created from the local profile. On success the
// local fresh-install flag is cleared.
func (s *Syncer) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	s.xfer.Lock()
	defer s.xfer.Unlock()

	res := &ReconcileResult{Decision: merge.PushLocal}
	snap, err := s.remote.Pull(ctx, s.opts.UserID)
	switch {
	case errors.Is(err, remote.ErrNotConfigured):
		return nil, err
	case errors.Is(err, remote.ErrNotFound):
		if err := s.push(ctx); err != nil {
			return nil, err
		}
		res.Created = true
		slog.Info("cloud save created",
			"component", "worker",
			"worker", "syncer",
			"action", "reconcile",
			"user_id", s.opts.UserID,
		)
	case err != nil:
		return nil, s.warn("pull", fmt.Errorf("cloud load failed: %w", err))
	default:
		local, err := s.source.Snapshot()
		if err != nil {
			return nil, s.warn("pull", fmt.Errorf("snapshot local profile: %w", err))
		}
		res.Decision = merge.Resolve(local, snap)
		if res.Decision == merge.UseRemote {
			if err := s.source.ReplaceProfile(ctx, snap.State); err != nil {
				return nil, s.warn("pull", fmt.Errorf("apply remote profile: %w", err))
			}
		} else if err := s.push(ctx); err != nil {
			return nil, err
		}
		s.recordMeta(ctx, MetaLastPull)
		slog.Info("reconciled with remote",
			"component", "worker",
			"worker", "syncer",
			"action", "reconcile",
			"user_id", s.opts.UserID,
			"decision", res.Decision.String(),
		)
	}

	if err := s.source.MarkSynced(ctx); err != nil {
		return nil, s.warn("reconcile", fmt.Errorf("mark synced: %w", err))
	}
	return res, nil
}

func (s *Syncer) recordMeta(ctx context.Context, key string) {
	if s.opts.Meta == nil {
		return
	}
	if err := s.opts.Meta.SetSyncMeta(ctx, key, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		slog.Warn("failed to record sync metadata",
			"component", "worker",
			"worker", "syncer",
			"action", "record_meta",
			"key", key,
			"error", err,
		)
	}
}

// warn reports err through the warning callback and the log, and returns it.
func (s *Syncer) warn(action string, err error) error {
	slog.Warn("sync failed",
		"component", "worker",
		"worker", "syncer",
		"action", action,
		"user_id", s.opts.UserID,
		"error", err,
	)
	if s.opts.OnWarning != nil {
		s.opts.OnWarning(err)
	}
	return err
}
