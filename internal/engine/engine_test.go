package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/lifexp/internal/objective"
	"github.com/hyperengineering/lifexp/internal/period"
	"github.com/hyperengineering/lifexp/internal/store"
	"github.com/hyperengineering/lifexp/internal/timelog"
	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/validation"
)

// --- test doubles ---

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memStore struct {
	mu       sync.Mutex
	body     []byte
	saves    int
	activity []types.Activity
	saveErr  error
}

func (m *memStore) LoadProfile(context.Context) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.body == nil {
		return nil, store.ErrNotFound
	}
	var p types.Profile
	if err := json.Unmarshal(m.body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (m *memStore) SaveProfile(_ context.Context, p *types.Profile, acts ...types.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	m.body = body
	m.saves++
	m.activity = append(m.activity, acts...)
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type scriptedConfirmer struct {
	answers []bool
	prompts []string
}

func (c *scriptedConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	c.prompts = append(c.prompts, prompt)
	if len(c.answers) == 0 {
		return true, nil
	}
	a := c.answers[0]
	c.answers = c.answers[1:]
	return a, nil
}

type countingNotifier struct {
	mu sync.Mutex
	n  int
}

func (c *countingNotifier) Notify() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type harness struct {
	svc      *Service
	clock    *fakeClock
	store    *memStore
	confirm  *scriptedConfirmer
	notifier *countingNotifier
}

var start = time.Date(2024, time.May, 8, 9, 0, 0, 0, time.UTC) // Wednesday

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    &fakeClock{now: start},
		store:    &memStore{},
		confirm:  &scriptedConfirmer{},
		notifier: &countingNotifier{},
	}
	seq := 0
	svc, err := New(context.Background(), h.store, Options{
		Clock:     h.clock,
		Confirmer: h.confirm,
		Notifier:  h.notifier,
		NewID: func(time.Time) string {
			seq++
			return fmt.Sprintf("ID%04d", seq)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.svc = svc
	return h
}

func (h *harness) world(t *testing.T) string {
	t.Helper()
	w, err := h.svc.CreateWorld(context.Background(), WorldInput{Name: "Guitar", Icon: "🎸", MinutesBase: 30, XPBase: 10})
	if err != nil {
		t.Fatalf("CreateWorld: %v", err)
	}
	return w.ID
}

func (h *harness) snapshotJSON(t *testing.T) string {
	t.Helper()
	p, err := h.svc.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func (h *harness) global(t *testing.T) types.Counters {
	t.Helper()
	return h.svc.Status().Global
}

func (h *harness) worldStats(t *testing.T, id string) types.WorldStats {
	t.Helper()
	w, err := h.svc.World(id)
	if err != nil {
		t.Fatal(err)
	}
	return w.Stats
}

// --- lifecycle ---

func TestNew_CreatesFreshProfile(t *testing.T) {
	h := newHarness(t)

	st := h.svc.Status()
	if !st.FreshInstall {
		t.Error("first run should be a fresh install")
	}
	if st.WeekKey != period.WeekKey(start) || st.MonthKey != period.MonthKey(start) {
		t.Errorf("period keys = %s / %s", st.WeekKey, st.MonthKey)
	}
	if st.WeekGoal != 250 || st.MonthGoal != 1000 || st.Level.Level != 1 {
		t.Errorf("status = %+v", st)
	}
	if h.store.saveCount() != 1 {
		t.Errorf("saves = %d, want 1", h.store.saveCount())
	}
}

func TestNew_RollsOverStoredProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	if _, err := h.svc.LogTime(ctx, wid, 60); err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(7 * 24 * time.Hour)
	svc, err := New(ctx, h.store, Options{Clock: h.clock})
	if err != nil {
		t.Fatal(err)
	}

	st := svc.Status()
	if st.Global.WeekXP != 0 || st.Global.MonthXP != 20 || st.Global.TotalXP != 20 {
		t.Errorf("global after rollover = %+v", st.Global)
	}
	hist := svc.History()
	if len(hist.Weeks) != 2 || hist.Weeks[1].Key != period.WeekKey(start) || hist.Weeks[1].XP != 20 {
		t.Errorf("week history = %+v", hist.Weeks)
	}
}

func TestNew_FirstRunRecordsNoRollover(t *testing.T) {
	var logs bytes.Buffer
	st := &memStore{}
	clock := &fakeClock{now: start}
	opts := Options{Clock: clock, Logger: slog.New(slog.NewTextHandler(&logs, nil))}
	if _, err := New(context.Background(), st, opts); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(logs.String(), "period rollover") {
		t.Errorf("first run logged a rollover: %s", logs.String())
	}
	for _, a := range st.activity {
		if a.Action == "period.rollover" {
			t.Errorf("first run recorded %+v", a)
		}
	}

	clock.Advance(7 * 24 * time.Hour)
	if _, err := New(context.Background(), st, opts); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "archived_week="+period.WeekKey(start)) {
		t.Errorf("rollover log = %q", logs.String())
	}
}

func TestNew_PropagatesLoadError(t *testing.T) {
	st := &memStore{body: []byte("{broken")}
	if _, err := New(context.Background(), st, Options{}); err == nil {
		t.Fatal("expected load error")
	}
}

func TestInit_Validation(t *testing.T) {
	h := newHarness(t)
	var verr *validation.Error
	if err := h.svc.Init(context.Background(), "   "); !errors.As(err, &verr) {
		t.Fatalf("got %v, want validation error", err)
	}
	if err := h.svc.Init(context.Background(), " Ada "); err != nil {
		t.Fatal(err)
	}
	if got := h.svc.Status().PlayerName; got != "Ada" {
		t.Errorf("PlayerName = %q", got)
	}
}

func TestMutation_BumpsUpdatedAtAndNotifies(t *testing.T) {
	h := newHarness(t)
	h.clock.Advance(time.Minute)
	h.world(t)

	if got := h.svc.Status().UpdatedAt; !got.Equal(start.Add(time.Minute)) {
		t.Errorf("UpdatedAt = %v", got)
	}
	if h.notifier.count() != 1 {
		t.Errorf("notifications = %d, want 1", h.notifier.count())
	}
}

func TestMutation_SaveFailureLeavesProfile(t *testing.T) {
	h := newHarness(t)
	wid := h.world(t)
	before := h.snapshotJSON(t)

	h.store.saveErr = errors.New("disk full")
	if _, err := h.svc.LogTime(context.Background(), wid, 30); err == nil {
		t.Fatal("expected save error")
	}
	if after := h.snapshotJSON(t); after != before {
		t.Error("failed save modified the live profile")
	}
	if h.notifier.count() != 1 {
		t.Errorf("failed mutation must not notify, got %d", h.notifier.count())
	}
}

// --- time entries ---

func TestLogTime_FullAward(t *testing.T) {
	h := newHarness(t)
	wid := h.world(t)

	res, err := h.svc.LogTime(context.Background(), wid, 15)
	if err != nil {
		t.Fatal(err)
	}
	if res.Entry.XP != 5 {
		t.Errorf("XP = %d, want 5", res.Entry.XP)
	}
	want := types.Counters{TotalXP: 5, WeekXP: 5, MonthXP: 5}
	if g := h.global(t); g != want {
		t.Errorf("global = %+v, want %+v", g, want)
	}
	ws := h.worldStats(t, wid)
	if ws.Counters != want || ws.TimeTotal != 15 {
		t.Errorf("world stats = %+v", ws)
	}
	if h.svc.Status().TotalMinutes != 15 {
		t.Errorf("TotalMinutes = %d", h.svc.Status().TotalMinutes)
	}
}

func TestLogTime_GoalReachedOnce(t *testing.T) {
	h := newHarness(t)
	wid := h.world(t)
	ctx := context.Background()

	res, err := h.svc.LogTime(ctx, wid, 750) // 250 XP
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Ledger.Goals) != 1 {
		t.Fatalf("goals = %+v", res.Ledger.Goals)
	}
	res, _ = h.svc.LogTime(ctx, wid, 30)
	if len(res.Ledger.Goals) != 0 {
		t.Errorf("goal celebrated twice: %+v", res.Ledger.Goals)
	}
}

func TestLogTime_ArchivedWorld(t *testing.T) {
	h := newHarness(t)
	wid := h.world(t)
	if err := h.svc.ArchiveWorld(context.Background(), wid); err != nil {
		t.Fatal(err)
	}
	if _, err := h.svc.LogTime(context.Background(), wid, 30); !errors.Is(err, ErrArchived) {
		t.Errorf("got %v, want ErrArchived", err)
	}
}

func TestDeleteEntry_Window(t *testing.T) {
	tests := []struct {
		name    string
		age     time.Duration
		wantErr error
	}{
		{"23h", 23 * time.Hour, nil},
		{"25h", 25 * time.Hour, timelog.ErrDeleteExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			wid := h.world(t)
			logged, err := h.svc.LogTime(ctx, wid, 60)
			if err != nil {
				t.Fatal(err)
			}
			h.clock.Advance(tt.age)
			before := h.snapshotJSON(t)
			prompts := len(h.confirm.prompts)

			_, err = h.svc.DeleteEntry(ctx, wid, logged.Entry.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("DeleteEntry error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if h.snapshotJSON(t) != before {
					t.Error("refused delete changed the profile")
				}
				if len(h.confirm.prompts) != prompts {
					t.Error("refused delete should not prompt")
				}
				return
			}
			if g := h.global(t); g != (types.Counters{}) {
				t.Errorf("global = %+v, want zero", g)
			}
			if ws := h.worldStats(t, wid); ws != (types.WorldStats{}) {
				t.Errorf("world stats = %+v, want zero", ws)
			}
		})
	}
}

func TestDeleteEntry_NotFound(t *testing.T) {
	h := newHarness(t)
	wid := h.world(t)
	if _, err := h.svc.DeleteEntry(context.Background(), wid, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
	if _, err := h.svc.DeleteEntry(context.Background(), "nope", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

// --- objectives ---

func TestRepeatable_ObjectiveOnlyAward(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	o, err := h.svc.AddRepeatable(ctx, wid, "Scales", 10)
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := h.svc.ValidateObjective(ctx, wid, o.ID); err != nil {
			t.Fatal(err)
		}
	}

	want := types.Counters{TotalXP: 30}
	if g := h.global(t); g != want {
		t.Errorf("global = %+v, want %+v", g, want)
	}
	if ws := h.worldStats(t, wid); ws.Counters != want {
		t.Errorf("world = %+v, want %+v", ws.Counters, want)
	}
	got, _ := h.svc.Objective(wid, o.ID)
	if got.Body.(*types.Repeatable).DoneCount() != 3 {
		t.Errorf("DoneCount = %d", got.Body.(*types.Repeatable).DoneCount())
	}
}

func TestValidate_DeclinedLeavesProfileUnchanged(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	o, _ := h.svc.AddUnique(ctx, wid, "Play a song", 40)
	before := h.snapshotJSON(t)
	saves := h.store.saveCount()

	h.confirm.answers = []bool{false}
	if _, err := h.svc.ValidateObjective(ctx, wid, o.ID); !errors.Is(err, ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
	if h.snapshotJSON(t) != before {
		t.Error("declined validation changed the profile")
	}
	if h.store.saveCount() != saves {
		t.Error("declined validation persisted")
	}
}

func TestUnique_ValidateTwiceAndUndo(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	o, _ := h.svc.AddUnique(ctx, wid, "Play a song", 40)

	if _, err := h.svc.ValidateObjective(ctx, wid, o.ID); err != nil {
		t.Fatal(err)
	}
	prompts := len(h.confirm.prompts)
	res, err := h.svc.ValidateObjective(ctx, wid, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome.Changed || len(h.confirm.prompts) != prompts {
		t.Error("second validation should be a silent no-op")
	}
	if g := h.global(t); g.TotalXP != 40 {
		t.Errorf("TotalXP = %d, want 40", g.TotalXP)
	}

	h.clock.Advance(23 * time.Hour)
	if _, err := h.svc.UndoObjective(ctx, wid, o.ID); err != nil {
		t.Fatal(err)
	}
	if g := h.global(t); g.TotalXP != 0 {
		t.Errorf("TotalXP after undo = %d, want 0", g.TotalXP)
	}
	lists, _ := h.svc.Objectives(wid)
	if len(lists.Uniques) != 1 {
		t.Errorf("unique should be pending again, lists = %+v", lists)
	}
}

func TestUndo_ExpiredDoesNotPrompt(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	o, _ := h.svc.AddRepeatable(ctx, wid, "Scales", 10)
	h.svc.ValidateObjective(ctx, wid, o.ID)
	h.clock.Advance(25 * time.Hour)
	prompts := len(h.confirm.prompts)

	_, err := h.svc.UndoObjective(ctx, wid, o.ID)
	if !errors.Is(err, objective.ErrUndoExpired) {
		t.Fatalf("got %v, want ErrUndoExpired", err)
	}
	if !IsEligibilityError(err) {
		t.Error("expired undo should be an eligibility error")
	}
	if len(h.confirm.prompts) != prompts {
		t.Error("ineligible undo should not prompt")
	}
	if h.global(t).TotalXP != 10 {
		t.Error("expired undo changed XP")
	}
}

func TestMilestone_Scenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	o, err := h.svc.AddMilestone(ctx, wid, "Learn", "songs", []objective.StepSpec{{Count: 5, XP: 10}, {Count: 10, XP: 20}})
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 4; i++ {
		h.svc.ValidateObjective(ctx, wid, o.ID)
	}
	if h.global(t).TotalXP != 0 {
		t.Fatalf("XP after 4 = %d, want 0", h.global(t).TotalXP)
	}
	res, _ := h.svc.ValidateObjective(ctx, wid, o.ID)
	if res.Outcome.XP != 10 || h.global(t).TotalXP != 10 {
		t.Fatalf("5th validation = %+v, total %d", res.Outcome, h.global(t).TotalXP)
	}
	for i := 0; i < 9; i++ {
		h.svc.ValidateObjective(ctx, wid, o.ID)
	}
	if g := h.global(t); g.TotalXP != 30 || g.WeekXP != 0 {
		t.Errorf("global = %+v, want total 30 and no week XP", g)
	}
	got, _ := h.svc.Objective(wid, o.ID)
	if m := got.Body.(*types.Milestone); m.Progress != 14 || m.DoneSteps() != 2 {
		t.Errorf("milestone = progress %d, done %d", m.Progress, m.DoneSteps())
	}
}

func TestSoftDelete_KeepsXPAndArchive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	o, _ := h.svc.AddRepeatable(ctx, wid, "Scales", 10)
	h.svc.ValidateObjective(ctx, wid, o.ID)

	if err := h.svc.SoftDeleteObjective(ctx, wid, o.ID); err != nil {
		t.Fatal(err)
	}
	if h.global(t).TotalXP != 10 {
		t.Error("soft delete must keep XP")
	}
	lists, _ := h.svc.Objectives(wid)
	if len(lists.Repeatables) != 0 {
		t.Error("soft-deleted objective still listed as active")
	}
	if len(lists.Archived) != 1 || !lists.Archived[0].Deleted || !lists.Archived[0].Undoable {
		t.Errorf("archive = %+v", lists.Archived)
	}
	if _, err := h.svc.ValidateObjective(ctx, wid, o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("validating a deleted objective: got %v, want ErrNotFound", err)
	}
	if _, err := h.svc.UndoObjective(ctx, wid, o.ID); err != nil {
		t.Errorf("undo on soft-deleted objective should work: %v", err)
	}
}

func TestHardDelete_ReversesAllXP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	if _, err := h.svc.LogTime(ctx, wid, 30); err != nil {
		t.Fatal(err)
	}
	o, _ := h.svc.AddRepeatable(ctx, wid, "Scales", 10)
	for i := 0; i < 3; i++ {
		h.svc.ValidateObjective(ctx, wid, o.ID)
	}

	reversed, err := h.svc.HardDeleteObjective(ctx, wid, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reversed != 30 {
		t.Errorf("reversed = %d, want 30", reversed)
	}
	want := types.Counters{TotalXP: 10, WeekXP: 10, MonthXP: 10}
	if g := h.global(t); g != want {
		t.Errorf("global = %+v, want %+v", g, want)
	}
	if ws := h.worldStats(t, wid); ws.Counters != want {
		t.Errorf("world = %+v, want %+v", ws.Counters, want)
	}
	lists, _ := h.svc.Objectives(wid)
	if len(lists.Archived) != 0 {
		t.Errorf("archived rows remain: %+v", lists.Archived)
	}
	if _, err := h.svc.Objective(wid, o.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("objective still present: %v", err)
	}
}

func TestEditObjective_TypeChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	o, _ := h.svc.AddUnique(ctx, wid, "Song", 10)

	err := h.svc.EditObjective(ctx, wid, o.ID, objective.Edit{Kind: types.KindRepeatable})
	if !errors.Is(err, objective.ErrTypeChange) {
		t.Fatalf("got %v, want ErrTypeChange", err)
	}
	name := "Two songs"
	if err := h.svc.EditObjective(ctx, wid, o.ID, objective.Edit{Name: &name}); err != nil {
		t.Fatal(err)
	}
	got, _ := h.svc.Objective(wid, o.ID)
	if got.Title() != "Two songs" {
		t.Errorf("Title = %q", got.Title())
	}
}

func TestEditObjective_UndoReversesAwardedXP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	if _, err := h.svc.LogTime(ctx, wid, 300); err != nil {
		t.Fatal(err)
	}
	o, _ := h.svc.AddUnique(ctx, wid, "Song", 10)
	if _, err := h.svc.ValidateObjective(ctx, wid, o.ID); err != nil {
		t.Fatal(err)
	}

	xp := 100
	if err := h.svc.EditObjective(ctx, wid, o.ID, objective.Edit{XP: &xp}); err != nil {
		t.Fatal(err)
	}
	res, err := h.svc.UndoObjective(ctx, wid, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome.XP != 10 {
		t.Errorf("undo reversed %d XP, want 10", res.Outcome.XP)
	}
	want := types.Counters{TotalXP: 100, WeekXP: 100, MonthXP: 100}
	if g := h.global(t); g != want {
		t.Errorf("global = %+v, want %+v", g, want)
	}
	if ws := h.worldStats(t, wid); ws.Counters != want {
		t.Errorf("world = %+v, want %+v", ws.Counters, want)
	}
}

func TestEditObjective_HardDeleteReversesAwardedXP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	if _, err := h.svc.LogTime(ctx, wid, 300); err != nil {
		t.Fatal(err)
	}
	o, _ := h.svc.AddMilestone(ctx, wid, "Learn", "songs", []objective.StepSpec{{Count: 5, XP: 10}, {Count: 10, XP: 20}})
	for i := 0; i < 10; i++ {
		if _, err := h.svc.ValidateObjective(ctx, wid, o.ID); err != nil {
			t.Fatal(err)
		}
	}

	// raising the XP of completed steps only changes future completions
	err := h.svc.EditObjective(ctx, wid, o.ID, objective.Edit{
		Steps: []objective.StepSpec{{Count: 5, XP: 999}, {Count: 10, XP: 20}, {Count: 20, XP: 50}},
	})
	if err != nil {
		t.Fatal(err)
	}

	reversed, err := h.svc.HardDeleteObjective(ctx, wid, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if reversed != 30 {
		t.Errorf("reversed = %d, want 30", reversed)
	}
	if g := h.global(t); g.TotalXP != 100 {
		t.Errorf("global total = %d, want 100", g.TotalXP)
	}
}

func TestEditObjective_RejectsStepBeforeCompletedSteps(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	o, _ := h.svc.AddMilestone(ctx, wid, "Learn", "songs", []objective.StepSpec{{Count: 5, XP: 10}, {Count: 10, XP: 20}})
	for i := 0; i < 10; i++ {
		h.svc.ValidateObjective(ctx, wid, o.ID)
	}
	before := h.snapshotJSON(t)

	err := h.svc.EditObjective(ctx, wid, o.ID, objective.Edit{
		Steps: []objective.StepSpec{{Count: 3, XP: 5}, {Count: 5, XP: 10}, {Count: 10, XP: 20}},
	})
	if !errors.Is(err, objective.ErrDoneStepChanged) {
		t.Fatalf("got %v, want ErrDoneStepChanged", err)
	}
	if after := h.snapshotJSON(t); after != before {
		t.Error("rejected edit changed the profile")
	}

	// validating again keeps completing in ascending order
	res, err := h.svc.ValidateObjective(ctx, wid, o.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome.XP != 0 {
		t.Errorf("validation awarded %d XP with every step done", res.Outcome.XP)
	}
}

// --- worlds & settings ---

func TestWorlds_ArchiveRestore(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	if h.svc.CurrentWorldID() != wid {
		t.Fatal("first world should become current")
	}

	if err := h.svc.ArchiveWorld(ctx, wid); err != nil {
		t.Fatal(err)
	}
	if h.svc.CurrentWorldID() != "" {
		t.Error("archiving the current world should clear the selection")
	}
	if len(h.svc.Worlds(false)) != 0 || len(h.svc.Worlds(true)) != 1 {
		t.Error("world should be listed as archived")
	}
	if err := h.svc.SetActiveWorld(ctx, wid); !errors.Is(err, ErrArchived) {
		t.Errorf("selecting archived world: got %v", err)
	}

	if err := h.svc.RestoreWorld(ctx, wid); err != nil {
		t.Fatal(err)
	}
	if len(h.svc.Worlds(false)) != 1 {
		t.Error("world should be active again")
	}
}

func TestWorlds_CreateValidation(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.CreateWorld(context.Background(), WorldInput{Name: "X", Icon: "", MinutesBase: 0, XPBase: 10})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("got %v, want validation error", err)
	}
	if len(verr.Fields) != 2 {
		t.Errorf("fields = %+v, want icon and minutes_base", verr.Fields)
	}
}

func TestWorlds_RuleChangeKeepsEntryXP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	h.svc.LogTime(ctx, wid, 30)

	if err := h.svc.UpdateWorldRule(ctx, wid, 10, 100); err != nil {
		t.Fatal(err)
	}
	entries, _ := h.svc.Entries(wid)
	if len(entries) != 1 || entries[0].XP != 10 || !entries[0].Deletable {
		t.Errorf("entries = %+v", entries)
	}
	res, _ := h.svc.LogTime(ctx, wid, 10)
	if res.Entry.XP != 100 {
		t.Errorf("new entry XP = %d, want 100", res.Entry.XP)
	}
}

func TestResolveWorld(t *testing.T) {
	h := newHarness(t)
	wid := h.world(t)

	for _, ref := range []string{wid, "guitar", "id0001", ""} {
		got, err := h.svc.ResolveWorld(ref)
		if err != nil || got != wid {
			t.Errorf("ResolveWorld(%q) = %q, %v", ref, got, err)
		}
	}
	if _, err := h.svc.ResolveWorld("piano"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestSetWeekLoad(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	changed, err := h.svc.SetWeekLoad(ctx, types.WeekLoadNormal)
	if err != nil || changed || len(h.confirm.prompts) != 0 {
		t.Fatalf("unchanged mode: changed=%v err=%v prompts=%d", changed, err, len(h.confirm.prompts))
	}
	changed, err = h.svc.SetWeekLoad(ctx, types.WeekLoadLight)
	if err != nil || !changed {
		t.Fatalf("changed=%v err=%v", changed, err)
	}
	if h.svc.Status().WeekGoal != 400 {
		t.Errorf("WeekGoal = %d, want 400", h.svc.Status().WeekGoal)
	}
	var verr *validation.Error
	if _, err := h.svc.SetWeekLoad(ctx, "chill"); !errors.As(err, &verr) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestUpdateGoalsAndCurve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.svc.UpdateGoals(ctx, Goals{Month: 2000, Busy: 100, Normal: 200, Light: 0}); err == nil {
		t.Error("expected validation error for zero goal")
	}
	if err := h.svc.UpdateGoals(ctx, Goals{Month: 2000, Busy: 100, Normal: 200, Light: 300}); err != nil {
		t.Fatal(err)
	}
	if st := h.svc.Status(); st.WeekGoal != 200 || st.MonthGoal != 2000 {
		t.Errorf("goals = %d / %d", st.WeekGoal, st.MonthGoal)
	}

	if err := h.svc.UpdateLevelCurve(ctx, 100, 0.5); err == nil {
		t.Error("expected error for shrinking growth")
	}
	if err := h.svc.UpdateLevelCurve(ctx, 10, 1); err != nil {
		t.Fatal(err)
	}
	wid := h.world(t)
	h.svc.LogTime(ctx, wid, 60) // 20 XP
	if lvl := h.svc.Status().Level; lvl.Level != 3 || lvl.Into != 0 || lvl.Need != 10 {
		t.Errorf("level = %+v", lvl)
	}
}

func TestReset_RequiresTwoConfirmations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	h.svc.LogTime(ctx, wid, 60)
	before := h.snapshotJSON(t)

	h.confirm.answers = []bool{true, false}
	if err := h.svc.Reset(ctx); !errors.Is(err, ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
	if h.snapshotJSON(t) != before {
		t.Error("declined reset changed the profile")
	}

	if err := h.svc.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	st := h.svc.Status()
	if st.Global != (types.Counters{}) || len(st.Worlds) != 0 || st.FreshInstall {
		t.Errorf("status after reset = %+v", st)
	}
	if st.WeekKey == "" {
		t.Error("reset profile should carry the current period keys")
	}
}

// --- rollover & history ---

func TestMutation_RollsOverInLongRunningService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	wid := h.world(t)
	h.svc.LogTime(ctx, wid, 300) // 100 XP

	h.clock.Advance(30 * 24 * time.Hour)
	h.svc.LogTime(ctx, wid, 30)

	g := h.global(t)
	if g.WeekXP != 10 || g.MonthXP != 10 || g.TotalXP != 110 {
		t.Errorf("global = %+v", g)
	}
	hist := h.svc.History()
	if len(hist.Months) != 2 || !hist.Months[0].Current || hist.Months[1].XP != 100 {
		t.Errorf("months = %+v", hist.Months)
	}
	if hist.Months[1].Percent != 0.1 {
		t.Errorf("percent = %v, want 0.1", hist.Months[1].Percent)
	}
}

func TestHistory_PercentClamped(t *testing.T) {
	h := newHarness(t)
	wid := h.world(t)
	h.svc.LogTime(context.Background(), wid, 3000) // 1000 XP vs 250 goal

	hist := h.svc.History()
	if len(hist.Weeks) != 1 || hist.Weeks[0].Percent != 1 {
		t.Errorf("weeks = %+v", hist.Weeks)
	}
}

// --- sync hooks ---

func TestReplaceProfile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	remoteAt := start.Add(-time.Hour)
	remote := types.NewProfile(remoteAt)
	remote.PlayerName = "Remote"
	remote.Meta.FreshInstall = true
	notified := h.notifier.count()

	if err := h.svc.ReplaceProfile(ctx, remote); err != nil {
		t.Fatal(err)
	}
	st := h.svc.Status()
	if st.PlayerName != "Remote" || st.FreshInstall {
		t.Errorf("status = %+v", st)
	}
	if !st.UpdatedAt.Equal(remoteAt) {
		t.Errorf("UpdatedAt = %v, want remote %v", st.UpdatedAt, remoteAt)
	}
	if st.WeekKey != period.WeekKey(start) {
		t.Error("replaced profile should be rolled over to now")
	}
	if h.notifier.count() != notified {
		t.Error("replacing from remote must not schedule a push")
	}
	remote.PlayerName = "mutated"
	if h.svc.Status().PlayerName != "Remote" {
		t.Error("engine must not alias the caller's profile")
	}
}

func TestMarkSynced(t *testing.T) {
	h := newHarness(t)
	before := h.svc.Status().UpdatedAt

	if err := h.svc.MarkSynced(context.Background()); err != nil {
		t.Fatal(err)
	}
	st := h.svc.Status()
	if st.FreshInstall {
		t.Error("fresh install flag should be cleared")
	}
	if !st.UpdatedAt.Equal(before) {
		t.Error("MarkSynced must not bump updatedAt")
	}
}
