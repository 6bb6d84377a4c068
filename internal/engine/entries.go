package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/lifexp/internal/ledger"
	"github.com/hyperengineering/lifexp/internal/objective"
	"github.com/hyperengineering/lifexp/internal/timelog"
	"github.com/hyperengineering/lifexp/internal/types"
)

// EntryResult is the outcome of logging or deleting time.
type EntryResult struct {
	Entry  types.TimeEntry
	Ledger ledger.Result
}

// LogTime records minutes in worldID and awards the converted XP toward
// total, week and month.
func (s *Service) LogTime(ctx context.Context, worldID string, minutes int) (*EntryResult, error) {
	var res EntryResult
	err := s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w, err := findWorld(p, worldID)
		if err != nil {
			return nil, err
		}
		if !w.Active {
			return nil, fmt.Errorf("world %s: %w", worldID, ErrArchived)
		}
		entry, err := timelog.Add(w, s.newID(now), minutes, now)
		if err != nil {
			return nil, err
		}
		res.Entry = *entry
		res.Ledger = ledger.Apply(p, w, entry.XP, ledger.FullAward)
		return []types.Activity{{
			Action: "time.log", WorldID: worldID, EntityID: entry.ID,
			XPDelta: entry.XP, Detail: fmt.Sprintf("%d min", minutes), CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logLedger("log_time", worldID, res.Entry.ID, res.Ledger)
	return &res, nil
}

// DeleteEntry removes a time entry created within the last 24 hours and
// reverses its minutes and XP everywhere, after confirmation.
func (s *Service) DeleteEntry(ctx context.Context, worldID, entryID string) (*EntryResult, error) {
	var entry types.TimeEntry
	err := s.view(func(p *types.Profile, now time.Time) error {
		w, err := findWorld(p, worldID)
		if err != nil {
			return err
		}
		e := w.FindEntry(entryID)
		if e == nil {
			return fmt.Errorf("entry %s: %w", entryID, ErrNotFound)
		}
		if !timelog.Deletable(e, now) {
			return timelog.ErrDeleteExpired
		}
		entry = *e
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := s.gate(ctx, fmt.Sprintf("Delete %d min (%d XP) logged %s?", entry.Minutes, entry.XP, entry.CreatedAt.Format("Jan 2 15:04"))); err != nil {
		return nil, err
	}

	var res EntryResult
	err = s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		w, err := findWorld(p, worldID)
		if err != nil {
			return nil, err
		}
		e, err := timelog.Delete(w, entryID, now)
		if errors.Is(err, timelog.ErrNotFound) {
			return nil, fmt.Errorf("entry %s: %w", entryID, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}
		res.Entry = *e
		res.Ledger = ledger.Remove(p, w, e.XP, ledger.FullAward)
		return []types.Activity{{
			Action: "time.delete", WorldID: worldID, EntityID: entryID,
			XPDelta: -e.XP, Detail: fmt.Sprintf("%d min", e.Minutes), CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logLedger("delete_entry", worldID, entryID, res.Ledger)
	return &res, nil
}

// EntryView is a time entry with its deletion eligibility.
type EntryView struct {
	types.TimeEntry
	Deletable bool `json:"deletable"`
}

// Entries lists worldID's time entries, newest first.
func (s *Service) Entries(worldID string) ([]EntryView, error) {
	w, err := s.World(worldID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	out := make([]EntryView, 0, len(w.Entries))
	for _, e := range w.Entries {
		out = append(out, EntryView{TimeEntry: *e, Deletable: timelog.Deletable(e, now)})
	}
	return out, nil
}

// ResolveEntry maps an id or unique id prefix to an entry id in worldID.
func (s *Service) ResolveEntry(worldID, ref string) (string, error) {
	w, err := s.World(worldID)
	if err != nil {
		return "", err
	}
	ref = strings.ToUpper(strings.TrimSpace(ref))
	var matches []string
	for _, e := range w.Entries {
		if strings.ToUpper(e.ID) == ref {
			return e.ID, nil
		}
		if strings.HasPrefix(strings.ToUpper(e.ID), ref) {
			matches = append(matches, e.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("entry %q: %w", ref, ErrNotFound)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("entry %q is ambiguous (%d matches)", ref, len(matches))
}

// IsEligibilityError reports whether err is an undo or deletion window
// refusal.
func IsEligibilityError(err error) bool {
	return errors.Is(err, objective.ErrUndoExpired) ||
		errors.Is(err, objective.ErrNothingToUndo) ||
		errors.Is(err, timelog.ErrDeleteExpired)
}
