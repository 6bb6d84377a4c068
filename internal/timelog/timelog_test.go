package timelog

import (
	"errors"
	"testing"
	"time"

	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/validation"
)

var t0 = time.Date(2024, time.May, 8, 9, 0, 0, 0, time.UTC)

func TestComputeXP(t *testing.T) {
	rules := types.Rules{MinutesBase: 30, XPBase: 10}
	tests := []struct {
		minutes int
		want    int
	}{
		{15, 5},
		{1, 1},
		{30, 10},
		{44, 15}, // 14.67
		{2, 1},   // 0.67 rounds to 1
		{120, 40},
	}
	for _, tt := range tests {
		if got := ComputeXP(rules, tt.minutes); got != tt.want {
			t.Errorf("ComputeXP(%d) = %d, want %d", tt.minutes, got, tt.want)
		}
	}
}

func TestComputeXP_FallbackRules(t *testing.T) {
	if got := ComputeXP(types.Rules{}, 60); got != 20 {
		t.Errorf("ComputeXP with zero rules = %d, want 20", got)
	}
}

func TestAdd_NewestFirst(t *testing.T) {
	w := &types.World{ID: "w1", Rules: types.Rules{MinutesBase: 30, XPBase: 10}}

	first, err := Add(w, "e1", 30, t0)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Add(w, "e2", 15, t0.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	if first.XP != 10 || second.XP != 5 {
		t.Errorf("XP = %d/%d, want 10/5", first.XP, second.XP)
	}
	if w.Entries[0].ID != "e2" || w.Entries[1].ID != "e1" {
		t.Errorf("entries not newest first: %s, %s", w.Entries[0].ID, w.Entries[1].ID)
	}
	if w.Stats.TimeTotal != 45 {
		t.Errorf("TimeTotal = %d, want 45", w.Stats.TimeTotal)
	}
}

func TestAdd_FreezesXP(t *testing.T) {
	w := &types.World{ID: "w1", Rules: types.Rules{MinutesBase: 30, XPBase: 10}}
	e, _ := Add(w, "e1", 30, t0)
	w.Rules = types.Rules{MinutesBase: 10, XPBase: 100}
	if e.XP != 10 || w.FindEntry("e1").XP != 10 {
		t.Errorf("entry XP changed with rule: %d", e.XP)
	}
}

func TestAdd_RejectsNonPositive(t *testing.T) {
	w := &types.World{ID: "w1"}
	for _, m := range []int{0, -5} {
		_, err := Add(w, "e", m, t0)
		var verr *validation.Error
		if !errors.As(err, &verr) {
			t.Errorf("Add(%d) error = %v, want validation error", m, err)
		}
	}
	if len(w.Entries) != 0 || w.Stats.TimeTotal != 0 {
		t.Error("rejected entry must not change the world")
	}
}

func TestDelete_Window(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{"23h ago", 23 * time.Hour, nil},
		{"25h ago", 25 * time.Hour, ErrDeleteExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &types.World{ID: "w1", Rules: types.Rules{MinutesBase: 30, XPBase: 10}}
			Add(w, "e1", 60, t0)
			Add(w, "e2", 15, t0)

			entry, err := Delete(w, "e1", t0.Add(tt.age))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Delete error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if len(w.Entries) != 2 || w.Stats.TimeTotal != 75 {
					t.Errorf("refused delete changed world: entries=%d time=%d", len(w.Entries), w.Stats.TimeTotal)
				}
				return
			}
			if entry.XP != 20 || entry.Minutes != 60 {
				t.Errorf("deleted entry = %+v", entry)
			}
			if len(w.Entries) != 1 || w.Entries[0].ID != "e2" {
				t.Errorf("remaining entries = %+v", w.Entries)
			}
			if w.Stats.TimeTotal != 15 {
				t.Errorf("TimeTotal = %d, want 15", w.Stats.TimeTotal)
			}
		})
	}
}

func TestDelete_FloorsTimeTotal(t *testing.T) {
	w := &types.World{ID: "w1"}
	Add(w, "e1", 60, t0)
	w.Stats.TimeTotal = 10

	if _, err := Delete(w, "e1", t0); err != nil {
		t.Fatal(err)
	}
	if w.Stats.TimeTotal != 0 {
		t.Errorf("TimeTotal = %d, want 0", w.Stats.TimeTotal)
	}
}

func TestDelete_NotFound(t *testing.T) {
	w := &types.World{ID: "w1"}
	if _, err := Delete(w, "missing", t0); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
