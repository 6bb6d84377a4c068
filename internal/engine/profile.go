package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hyperengineering/lifexp/internal/ledger"
	"github.com/hyperengineering/lifexp/internal/level"
	"github.com/hyperengineering/lifexp/internal/period"
	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/validation"
)

// Init sets the player's name.
func (s *Service) Init(ctx context.Context, playerName string) error {
	name := strings.TrimSpace(playerName)
	var c validation.Collector
	c.Add(validation.ValidateName("player_name", name))
	if err := c.Err(); err != nil {
		return err
	}
	return s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		p.PlayerName = name
		return []types.Activity{{Action: "profile.init", Detail: name, CreatedAt: now}}, nil
	})
}

// SetWeekLoad switches the active weekly goal. It reports false without
// prompting when mode is already active.
func (s *Service) SetWeekLoad(ctx context.Context, mode types.WeekLoad) (bool, error) {
	var c validation.Collector
	c.Add(validation.ValidateEnum("week_load", string(mode), []string{
		string(types.WeekLoadBusy), string(types.WeekLoadNormal), string(types.WeekLoadLight),
	}))
	if err := c.Err(); err != nil {
		return false, err
	}

	var current types.WeekLoad
	var goal int
	s.view(func(p *types.Profile, _ time.Time) error {
		current = p.Settings.WeekLoad
		goal = p.Settings.WeekGoals[mode]
		return nil
	})
	if current == mode {
		return false, nil
	}
	if err := s.gate(ctx, fmt.Sprintf("Switch this week to %s (goal %d XP)?", mode, goal)); err != nil {
		return false, err
	}

	err := s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		p.Settings.WeekLoad = mode
		return []types.Activity{{Action: "settings.week_load", Detail: string(mode), CreatedAt: now}}, nil
	})
	return err == nil, err
}

// Goals is the editable goal table.
type Goals struct {
	Month  int
	Busy   int
	Normal int
	Light  int
}

// UpdateGoals replaces the monthly goal and the weekly goal table.
func (s *Service) UpdateGoals(ctx context.Context, g Goals) error {
	var c validation.Collector
	c.Add(validation.ValidatePositive("month", g.Month))
	c.Add(validation.ValidatePositive("busy", g.Busy))
	c.Add(validation.ValidatePositive("normal", g.Normal))
	c.Add(validation.ValidatePositive("light", g.Light))
	if err := c.Err(); err != nil {
		return err
	}
	return s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		p.Settings.MonthGoal = g.Month
		p.Settings.WeekGoals = map[types.WeekLoad]int{
			types.WeekLoadBusy:   g.Busy,
			types.WeekLoadNormal: g.Normal,
			types.WeekLoadLight:  g.Light,
		}
		return []types.Activity{{
			Action:    "settings.goals",
			Detail:    fmt.Sprintf("month=%d busy=%d normal=%d light=%d", g.Month, g.Busy, g.Normal, g.Light),
			CreatedAt: now,
		}}, nil
	})
}

// UpdateLevelCurve changes the level cost constants.
func (s *Service) UpdateLevelCurve(ctx context.Context, base, growth float64) error {
	var c validation.Collector
	if base <= 0 {
		c.Add(&validation.ValidationError{Field: "base", Message: "must be greater than 0"})
	}
	c.Add(validation.ValidateAtLeast("growth", growth, 1))
	if err := c.Err(); err != nil {
		return err
	}
	if err := (level.Curve{Base: base, Growth: growth}).Validate(); err != nil {
		return err
	}
	return s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		p.Settings.LevelBase = base
		p.Settings.LevelGrowth = growth
		return []types.Activity{{
			Action:    "settings.level_curve",
			Detail:    fmt.Sprintf("base=%g growth=%g", base, growth),
			CreatedAt: now,
		}}, nil
	})
}

// Reset replaces the profile with defaults after two confirmations. The
// result is not a fresh install, so it overwrites the remote on next sync.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.gate(ctx, "Reset all progress? Worlds, objectives and history will be erased."); err != nil {
		return err
	}
	if err := s.gate(ctx, "This cannot be undone. Really reset?"); err != nil {
		return err
	}
	return s.mutate(ctx, func(p *types.Profile, now time.Time) ([]types.Activity, error) {
		fresh := types.NewProfile(now)
		fresh.Meta.FreshInstall = false
		period.Rollover(fresh, now)
		*p = *fresh
		return []types.Activity{{Action: "profile.reset", CreatedAt: now}}, nil
	})
}

// LevelStatus is a level with progress toward the next one.
type LevelStatus struct {
	Level int `json:"level"`
	Into  int `json:"into"`
	Need  int `json:"need"`
}

// WorldStatus summarizes one world.
type WorldStatus struct {
	ID      string           `json:"id"`
	Name    string           `json:"name"`
	Icon    string           `json:"icon"`
	Active  bool             `json:"active"`
	Current bool             `json:"current"`
	Level   LevelStatus      `json:"level"`
	Stats   types.WorldStats `json:"stats"`
	Rules   types.Rules      `json:"rules"`
}

// Status is the dashboard view of the profile.
type Status struct {
	PlayerName   string         `json:"player_name"`
	Level        LevelStatus    `json:"level"`
	Global       types.Counters `json:"global"`
	WeekLoad     types.WeekLoad `json:"week_load"`
	WeekGoal     int            `json:"week_goal"`
	MonthGoal    int            `json:"month_goal"`
	WeekKey      string         `json:"week_key"`
	MonthKey     string         `json:"month_key"`
	TotalMinutes int            `json:"total_minutes"`
	Worlds       []WorldStatus  `json:"worlds"`
	UpdatedAt    time.Time      `json:"updated_at"`
	FreshInstall bool           `json:"fresh_install"`
}

// Status returns the dashboard view. Active worlds are listed by name.
func (s *Service) Status() Status {
	var st Status
	s.view(func(p *types.Profile, _ time.Time) error {
		curve := ledger.Curve(p)
		st = Status{
			PlayerName:   p.PlayerName,
			Level:        levelStatus(curve, p.Global.TotalXP),
			Global:       p.Global,
			WeekLoad:     p.Settings.WeekLoad,
			WeekGoal:     p.WeekGoal(),
			MonthGoal:    p.MonthGoal(),
			WeekKey:      p.Periods.WeekKey,
			MonthKey:     p.Periods.MonthKey,
			TotalMinutes: p.TotalMinutes(),
			UpdatedAt:    p.Meta.UpdatedAt,
			FreshInstall: p.Meta.FreshInstall,
		}
		for _, w := range sortedWorlds(p, true) {
			st.Worlds = append(st.Worlds, worldStatus(p, curve, w))
		}
		return nil
	})
	return st
}

func levelStatus(curve level.Curve, xp int) LevelStatus {
	into, need := curve.Progress(xp)
	return LevelStatus{Level: curve.FromXP(xp), Into: into, Need: need}
}

func worldStatus(p *types.Profile, curve level.Curve, w *types.World) WorldStatus {
	return WorldStatus{
		ID:      w.ID,
		Name:    w.Name,
		Icon:    w.Icon,
		Active:  w.Active,
		Current: w.ID == p.ActiveWorldID,
		Level:   levelStatus(curve, w.Stats.TotalXP),
		Stats:   w.Stats,
		Rules:   w.Rules,
	}
}

// HistoryRow is one period in the performance history.
type HistoryRow struct {
	Key     string  `json:"key"`
	XP      int     `json:"xp"`
	Goal    int     `json:"goal"`
	Percent float64 `json:"percent"`
	Current bool    `json:"current"`
}

// HistoryView lists week and month rows, newest first.
type HistoryView struct {
	Weeks  []HistoryRow `json:"weeks"`
	Months []HistoryRow `json:"months"`
}

// History returns archived periods plus the live current ones.
func (s *Service) History() HistoryView {
	var hv HistoryView
	s.view(func(p *types.Profile, _ time.Time) error {
		hv.Weeks = historyRows(p.History.Weeks, p.Periods.WeekKey, p.Global.WeekXP, p.WeekGoal())
		hv.Months = historyRows(p.History.Months, p.Periods.MonthKey, p.Global.MonthXP, p.MonthGoal())
		return nil
	})
	return hv
}

func historyRows(archived map[string]types.PeriodRecord, currentKey string, currentXP, currentGoal int) []HistoryRow {
	rows := make([]HistoryRow, 0, len(archived)+1)
	for key, rec := range archived {
		if key == currentKey {
			continue
		}
		rows = append(rows, HistoryRow{Key: key, XP: rec.XP, Goal: rec.Goal, Percent: percent(rec.XP, rec.Goal)})
	}
	if currentKey != "" {
		rows = append(rows, HistoryRow{
			Key: currentKey, XP: currentXP, Goal: currentGoal,
			Percent: percent(currentXP, currentGoal), Current: true,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Key > rows[j].Key })
	return rows
}

func percent(xp, goal int) float64 {
	if goal <= 0 {
		return 0
	}
	return min(1, max(0, float64(xp)/float64(goal)))
}
