// Package timelog converts logged minutes into XP and keeps a world's
// newest-first entry log.
package timelog

import (
	"errors"
	"math"
	"time"

	"github.com/hyperengineering/lifexp/internal/objective"
	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/validation"
)

var (
	ErrNotFound      = errors.New("time entry not found")
	ErrDeleteExpired = errors.New("time entry is older than the deletion window")
)

// ComputeXP converts minutes using rules, awarding at least 1 XP for any
// positive duration. Non-positive rule values fall back to the defaults.
func ComputeXP(rules types.Rules, minutes int) int {
	base := rules.MinutesBase
	if base <= 0 {
		base = types.DefaultMinutesBase
	}
	xp := rules.XPBase
	if xp <= 0 {
		xp = types.DefaultXPBase
	}
	return max(1, int(math.Round(float64(minutes)/float64(base)*float64(xp))))
}

// Add prepends a new entry to w, freezing its XP from the world's current
// rule, and bumps w's logged minutes. The caller applies entry.XP to the
// ledger with the full-award policy.
func Add(w *types.World, id string, minutes int, now time.Time) (*types.TimeEntry, error) {
	var c validation.Collector
	c.Add(validation.ValidatePositive("minutes", minutes))
	if err := c.Err(); err != nil {
		return nil, err
	}

	entry := &types.TimeEntry{
		ID:        id,
		CreatedAt: now,
		Minutes:   minutes,
		XP:        ComputeXP(w.Rules, minutes),
	}
	w.Entries = append([]*types.TimeEntry{entry}, w.Entries...)
	w.Stats.TimeTotal += minutes
	return entry, nil
}

// Delete removes the entry with id from w if it was created within the
// deletion window, and reduces w's logged minutes. The caller removes the
// returned entry's XP from the ledger with the full-award policy.
func Delete(w *types.World, id string, now time.Time) (*types.TimeEntry, error) {
	idx := -1
	for i, e := range w.Entries {
		if e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}

	entry := w.Entries[idx]
	if !objective.CanUndo(entry.CreatedAt, now) {
		return nil, ErrDeleteExpired
	}

	w.Entries = append(w.Entries[:idx:idx], w.Entries[idx+1:]...)
	w.Stats.TimeTotal = max(0, w.Stats.TimeTotal-entry.Minutes)
	return entry, nil
}

// Deletable reports whether entry can still be deleted at now.
func Deletable(entry *types.TimeEntry, now time.Time) bool {
	return objective.CanUndo(entry.CreatedAt, now)
}
