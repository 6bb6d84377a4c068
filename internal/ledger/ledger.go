// Package ledger applies and reverses XP on the global and per-world
// counters of a profile, reporting level changes and goal celebrations.
package ledger

import (
	"github.com/hyperengineering/lifexp/internal/level"
	"github.com/hyperengineering/lifexp/internal/types"
)

// Policy selects which counters an award touches.
type Policy int

const (
	// FullAward counts toward total, week and month (time entries).
	FullAward Policy = iota
	// ObjectiveOnly counts toward total only (objective validations).
	ObjectiveOnly
)

func (p Policy) String() string {
	switch p {
	case FullAward:
		return "full"
	case ObjectiveOnly:
		return "objective_only"
	}
	return "unknown"
}

// PeriodKind names the period a goal belongs to.
type PeriodKind string

const (
	PeriodWeek  PeriodKind = "week"
	PeriodMonth PeriodKind = "month"
)

// GoalReached is emitted the first time a period's goal is met.
type GoalReached struct {
	Period PeriodKind `json:"period"`
	Key    string     `json:"key"`
	XP     int        `json:"xp"`
	Goal   int        `json:"goal"`
}

// Result describes the effect of an Apply or Remove call.
type Result struct {
	Amount int
	Policy Policy
	Global level.Change
	World  level.Change
	Goals  []GoalReached
}

// LeveledUp reports whether either scope gained a level.
func (r Result) LeveledUp() bool {
	return r.Global.LeveledUp() || r.World.LeveledUp()
}

// Curve returns the level curve configured on p.
func Curve(p *types.Profile) level.Curve {
	return level.Curve{Base: p.Settings.LevelBase, Growth: p.Settings.LevelGrowth}
}

// Apply adds amount to p's global counters and w's stats under policy.
// Non-positive amounts leave the counters untouched. w may be nil to update
// the global scope only.
func Apply(p *types.Profile, w *types.World, amount int, policy Policy) Result {
	if amount <= 0 {
		return unchanged(p, w, policy)
	}
	return adjust(p, w, amount, policy)
}

// Remove subtracts amount under policy, flooring every counter at zero.
func Remove(p *types.Profile, w *types.World, amount int, policy Policy) Result {
	if amount <= 0 {
		return unchanged(p, w, policy)
	}
	return adjust(p, w, -amount, policy)
}

func unchanged(p *types.Profile, w *types.World, policy Policy) Result {
	curve := Curve(p)
	g := curve.FromXP(p.Global.TotalXP)
	res := Result{Policy: policy, Global: level.Change{Prev: g, Now: g}}
	if w != nil {
		l := curve.FromXP(w.Stats.TotalXP)
		res.World = level.Change{Prev: l, Now: l}
	}
	return res
}

func adjust(p *types.Profile, w *types.World, delta int, policy Policy) Result {
	curve := Curve(p)
	res := Result{Amount: abs(delta), Policy: policy}

	prevGlobal := p.Global.TotalXP
	add(&p.Global, delta, policy)
	res.Global = curve.Gained(prevGlobal, p.Global.TotalXP)

	if w != nil {
		prevWorld := w.Stats.TotalXP
		add(&w.Stats.Counters, delta, policy)
		res.World = curve.Gained(prevWorld, w.Stats.TotalXP)
	}

	if delta > 0 && policy == FullAward {
		res.Goals = checkGoals(p)
	}
	return res
}

func add(c *types.Counters, delta int, policy Policy) {
	c.TotalXP = floor(c.TotalXP + delta)
	if policy == FullAward {
		c.WeekXP = floor(c.WeekXP + delta)
		c.MonthXP = floor(c.MonthXP + delta)
	}
}

// checkGoals records and returns goals newly reached in the current periods.
func checkGoals(p *types.Profile) []GoalReached {
	var goals []GoalReached
	if goal := p.WeekGoal(); p.Global.WeekXP >= goal && p.Celebrations.WeekKey != p.Periods.WeekKey {
		p.Celebrations.WeekKey = p.Periods.WeekKey
		goals = append(goals, GoalReached{Period: PeriodWeek, Key: p.Periods.WeekKey, XP: p.Global.WeekXP, Goal: goal})
	}
	if goal := p.MonthGoal(); p.Global.MonthXP >= goal && p.Celebrations.MonthKey != p.Periods.MonthKey {
		p.Celebrations.MonthKey = p.Periods.MonthKey
		goals = append(goals, GoalReached{Period: PeriodMonth, Key: p.Periods.MonthKey, XP: p.Global.MonthXP, Goal: goal})
	}
	return goals
}

func floor(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
