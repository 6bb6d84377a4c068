// Package engine owns the player profile and exposes every mutation as a
// confirmed-then-apply operation that persists before notifying sync.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hyperengineering/lifexp/internal/period"
	"github.com/hyperengineering/lifexp/internal/store"
	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/oklog/ulid/v2"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrCancelled = errors.New("cancelled")
	ErrArchived  = errors.New("world is archived")
)

// Clock supplies the current time for every timestamp the engine writes.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Persister loads and saves the profile. LoadProfile returns
// store.ErrNotFound on first run.
type Persister interface {
	LoadProfile(ctx context.Context) (*types.Profile, error)
	SaveProfile(ctx context.Context, p *types.Profile, activity ...types.Activity) error
}

// Notifier is told after every successful local mutation.
type Notifier interface {
	Notify()
}

// Options configures a Service. Zero values select the defaults.
type Options struct {
	Clock     Clock
	Confirmer Confirmer
	Notifier  Notifier
	Logger    *slog.Logger
	// NewID generates entity ids; defaults to a ULID at the given time.
	NewID func(now time.Time) string
}

// Service is the single mutator of the player profile.
type Service struct {
	mu      sync.Mutex
	profile *types.Profile
	store   Persister

	clock    Clock
	confirm  Confirmer
	notifier Notifier
	newID    func(time.Time) string
	logger   *slog.Logger
}

// New loads the profile from st, creating a fresh one on first run, and
// applies any pending period rollover.
func New(ctx context.Context, st Persister, opts Options) (*Service, error) {
	s := &Service{
		store:    st,
		clock:    opts.Clock,
		confirm:  opts.Confirmer,
		notifier: opts.Notifier,
		newID:    opts.NewID,
		logger:   opts.Logger,
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	if s.confirm == nil {
		s.confirm = AutoConfirm{}
	}
	if s.newID == nil {
		s.newID = func(now time.Time) string {
			return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "engine")

	now := s.clock.Now()
	p, err := st.LoadProfile(ctx)
	created := false
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = types.NewProfile(now)
		created = true
	case err != nil:
		return nil, fmt.Errorf("load profile: %w", err)
	}
	p.Normalize()

	res := period.Rollover(p, now)
	if created || res.Changed() {
		var acts []types.Activity
		if res.Archived() {
			acts = append(acts, rolloverActivity(res, now))
		}
		if err := st.SaveProfile(ctx, p, acts...); err != nil {
			return nil, fmt.Errorf("save profile: %w", err)
		}
	}
	if res.Archived() {
		s.logger.Info("period rollover",
			"action", "rollover",
			"archived_week", res.ArchivedWeek,
			"archived_month", res.ArchivedMonth,
		)
	}

	s.profile = p
	return s, nil
}

// SetNotifier installs the sync notifier after construction.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// Snapshot returns a deep copy of the current profile.
func (s *Service) Snapshot() (*types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile.Clone()
}

// Now returns the engine clock's current time.
func (s *Service) Now() time.Time {
	return s.clock.Now()
}

// view runs fn against the live profile under the lock. fn must not retain
// or modify p.
func (s *Service) view(fn func(p *types.Profile, now time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.profile, s.clock.Now())
}

// mutation applies a change to a working copy of the profile and returns the
// journal rows describing it.
type mutation func(p *types.Profile, now time.Time) ([]types.Activity, error)

// mutate runs fn on a clone, bumps updatedAt, persists, and only then swaps
// the clone in. Any error leaves the live profile untouched.
func (s *Service) mutate(ctx context.Context, fn mutation) error {
	s.mu.Lock()
	now := s.clock.Now()
	work, err := s.profile.Clone()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	acts := []types.Activity(nil)
	if res := period.Rollover(work, now); res.Archived() {
		acts = append(acts, rolloverActivity(res, now))
	}

	more, err := fn(work, now)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	acts = append(acts, more...)
	work.Meta.UpdatedAt = now

	if err := s.store.SaveProfile(ctx, work, acts...); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("save profile: %w", err)
	}
	s.profile = work
	n := s.notifier
	s.mu.Unlock()

	if n != nil {
		n.Notify()
	}
	return nil
}

// replaceLocal persists p without bumping updatedAt or notifying sync.
func (s *Service) replaceLocal(ctx context.Context, p *types.Profile, acts ...types.Activity) error {
	if err := s.store.SaveProfile(ctx, p, acts...); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	s.profile = p
	return nil
}

// ReplaceProfile installs a profile pulled from a remote. Its updatedAt is
// kept so the next comparison sees both sides as equal.
func (s *Service) ReplaceProfile(ctx context.Context, p *types.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := p.Clone()
	if err != nil {
		return err
	}
	now := s.clock.Now()
	next.Normalize()
	next.Meta.FreshInstall = false
	acts := []types.Activity{{Action: "sync.pull", CreatedAt: now}}
	if res := period.Rollover(next, now); res.Archived() {
		acts = append(acts, rolloverActivity(res, now))
	}
	if err := s.replaceLocal(ctx, next, acts...); err != nil {
		return err
	}
	s.logger.Info("profile replaced from remote", "action", "sync_pull", "updated_at", next.Meta.UpdatedAt)
	return nil
}

// MarkSynced clears the fresh-install flag after a successful reconcile.
func (s *Service) MarkSynced(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.profile.Meta.FreshInstall {
		return nil
	}
	next, err := s.profile.Clone()
	if err != nil {
		return err
	}
	next.Meta.FreshInstall = false
	return s.replaceLocal(ctx, next)
}

// gate asks the confirmer and maps a decline to ErrCancelled.
func (s *Service) gate(ctx context.Context, prompt string) error {
	ok, err := s.confirm.Confirm(ctx, prompt)
	if err != nil {
		return fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

func findWorld(p *types.Profile, id string) (*types.World, error) {
	w, ok := p.Worlds[id]
	if !ok {
		return nil, fmt.Errorf("world %s: %w", id, ErrNotFound)
	}
	return w, nil
}

func findObjective(p *types.Profile, worldID, objectiveID string) (*types.World, *types.Objective, error) {
	w, err := findWorld(p, worldID)
	if err != nil {
		return nil, nil, err
	}
	o := w.FindObjective(objectiveID)
	if o == nil {
		return nil, nil, fmt.Errorf("objective %s: %w", objectiveID, ErrNotFound)
	}
	return w, o, nil
}

func rolloverActivity(res period.Result, now time.Time) types.Activity {
	detail := ""
	if res.ArchivedWeek != "" {
		detail = "week " + res.ArchivedWeek
	}
	if res.ArchivedMonth != "" {
		if detail != "" {
			detail += ", "
		}
		detail += "month " + res.ArchivedMonth
	}
	return types.Activity{Action: "period.rollover", Detail: detail, CreatedAt: now}
}
