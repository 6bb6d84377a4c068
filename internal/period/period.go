// Package period derives week and month keys and rolls live counters over
// into history when the calendar moves on.
package period

import (
	"fmt"
	"time"

	"github.com/hyperengineering/lifexp/internal/types"
)

// WeekKey returns the ISO-8601 week identifier (YYYY-Www) of t in t's location.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// MonthKey returns the calendar month identifier (YYYY-MM) of t in t's location.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// Result reports which periods were rolled over.
type Result struct {
	WeekRolled  bool
	MonthRolled bool
	// Archived keys, empty when nothing was archived.
	ArchivedWeek  string
	ArchivedMonth string
}

// Changed reports whether Rollover modified the profile.
func (r Result) Changed() bool { return r.WeekRolled || r.MonthRolled }

// Archived reports whether a previous week or month was moved into history.
// The first rollover of a new profile only sets keys.
func (r Result) Archived() bool { return r.ArchivedWeek != "" || r.ArchivedMonth != "" }

// Rollover archives and resets the live week/month counters of p when the
// keys computed from now differ from the stored ones. Calling it again with
// the same now is a no-op.
func Rollover(p *types.Profile, now time.Time) Result {
	var res Result

	if wk := WeekKey(now); p.Periods.WeekKey != wk {
		if old := p.Periods.WeekKey; old != "" {
			p.History.Weeks[old] = types.PeriodRecord{XP: p.Global.WeekXP, Goal: p.WeekGoal()}
			res.ArchivedWeek = old
		}
		p.Global.WeekXP = 0
		for _, w := range p.Worlds {
			w.Stats.WeekXP = 0
		}
		p.Periods.WeekKey = wk
		p.Celebrations.WeekKey = ""
		res.WeekRolled = true
	}

	if mk := MonthKey(now); p.Periods.MonthKey != mk {
		if old := p.Periods.MonthKey; old != "" {
			p.History.Months[old] = types.PeriodRecord{XP: p.Global.MonthXP, Goal: p.MonthGoal()}
			res.ArchivedMonth = old
		}
		p.Global.MonthXP = 0
		for _, w := range p.Worlds {
			w.Stats.MonthXP = 0
		}
		p.Periods.MonthKey = mk
		p.Celebrations.MonthKey = ""
		res.MonthRolled = true
	}

	return res
}
