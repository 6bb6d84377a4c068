package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the current shape of a persisted Profile.
const SchemaVersion = 1

// WeekLoad selects which weekly goal is active.
type WeekLoad string

const (
	WeekLoadBusy   WeekLoad = "busy"
	WeekLoadNormal WeekLoad = "normal"
	WeekLoadLight  WeekLoad = "light"
)

// Valid reports whether w is one of the known week load modes.
func (w WeekLoad) Valid() bool {
	switch w {
	case WeekLoadBusy, WeekLoadNormal, WeekLoadLight:
		return true
	}
	return false
}

// Defaults substituted for missing or invalid settings.
const (
	DefaultWeekGoal    = 250
	DefaultMonthGoal   = 1000
	DefaultLevelBase   = 120.0
	DefaultLevelGrowth = 1.18
	DefaultMinutesBase = 30
	DefaultXPBase      = 10
)

// DefaultWeekGoals returns the weekly goal table used for new profiles.
func DefaultWeekGoals() map[WeekLoad]int {
	return map[WeekLoad]int{
		WeekLoadBusy:   150,
		WeekLoadNormal: 250,
		WeekLoadLight:  400,
	}
}

// Settings holds the player's goal table and level curve constants.
type Settings struct {
	WeekLoad    WeekLoad         `json:"week_load"`
	WeekGoals   map[WeekLoad]int `json:"week_goals"`
	MonthGoal   int              `json:"month_goal"`
	LevelBase   float64          `json:"level_base"`
	LevelGrowth float64          `json:"level_growth"`
}

// Periods records the week and month keys the live counters belong to.
type Periods struct {
	WeekKey  string `json:"week_key"`
	MonthKey string `json:"month_key"`
}

// PeriodRecord is an archived period total.
type PeriodRecord struct {
	XP   int `json:"xp"`
	Goal int `json:"goal"`
}

// History holds archived week and month records keyed by period key.
type History struct {
	Weeks  map[string]PeriodRecord `json:"weeks"`
	Months map[string]PeriodRecord `json:"months"`
}

// Counters are the XP totals tracked both globally and per world.
type Counters struct {
	TotalXP int `json:"total_xp"`
	WeekXP  int `json:"week_xp"`
	MonthXP int `json:"month_xp"`
}

// WorldStats extends Counters with logged minutes.
type WorldStats struct {
	Counters
	TimeTotal int `json:"time_total"`
}

// Celebrations records the period keys whose goal has already been celebrated.
type Celebrations struct {
	WeekKey  string `json:"week_key"`
	MonthKey string `json:"month_key"`
}

// Meta carries sync bookkeeping.
type Meta struct {
	UpdatedAt    time.Time `json:"updated_at"`
	FreshInstall bool      `json:"fresh_install"`
}

// Rules convert logged minutes into XP: xpBase XP per minutesBase minutes.
type Rules struct {
	MinutesBase int `json:"minutes_base"`
	XPBase      int `json:"xp_base"`
}

// Profile is the whole persisted player state.
type Profile struct {
	Version       int               `json:"version"`
	PlayerName    string            `json:"player_name"`
	Settings      Settings          `json:"settings"`
	Periods       Periods           `json:"periods"`
	History       History           `json:"history"`
	Global        Counters          `json:"global"`
	Worlds        map[string]*World `json:"worlds"`
	ActiveWorldID string            `json:"active_world_id,omitempty"`
	Meta          Meta              `json:"meta"`
	Celebrations  Celebrations      `json:"celebrations"`
}

// World is a user-defined activity category.
type World struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Icon       string       `json:"icon"`
	Active     bool         `json:"active"`
	Rules      Rules        `json:"rules"`
	Stats      WorldStats   `json:"stats"`
	Objectives []*Objective `json:"objectives"`
	Entries    []*TimeEntry `json:"entries"` // newest first
	CreatedAt  time.Time    `json:"created_at"`
}

// TimeEntry is a logged block of minutes. XP is frozen at creation.
type TimeEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Minutes   int       `json:"minutes"`
	XP        int       `json:"xp"`
}

// RemoteSnapshot is the document exchanged with a sync remote.
type RemoteSnapshot struct {
	UpdatedAt time.Time `json:"updated_at"`
	State     *Profile  `json:"state"`
}

// NewProfile returns a profile with zeroed counters and default settings.
func NewProfile(now time.Time) *Profile {
	p := &Profile{
		Version: SchemaVersion,
		Meta:    Meta{UpdatedAt: now, FreshInstall: true},
	}
	p.Normalize()
	return p
}

// Normalize fills missing optional fields with their defaults so that older
// or partial snapshots load without error.
func (p *Profile) Normalize() {
	if p.Version == 0 {
		p.Version = SchemaVersion
	}
	if !p.Settings.WeekLoad.Valid() {
		p.Settings.WeekLoad = WeekLoadNormal
	}
	defaults := DefaultWeekGoals()
	if p.Settings.WeekGoals == nil {
		p.Settings.WeekGoals = defaults
	}
	for load, goal := range defaults {
		if p.Settings.WeekGoals[load] <= 0 {
			p.Settings.WeekGoals[load] = goal
		}
	}
	if p.Settings.MonthGoal <= 0 {
		p.Settings.MonthGoal = DefaultMonthGoal
	}
	if p.Settings.LevelBase <= 0 {
		p.Settings.LevelBase = DefaultLevelBase
	}
	if p.Settings.LevelGrowth <= 0 {
		p.Settings.LevelGrowth = DefaultLevelGrowth
	}
	if p.History.Weeks == nil {
		p.History.Weeks = map[string]PeriodRecord{}
	}
	if p.History.Months == nil {
		p.History.Months = map[string]PeriodRecord{}
	}
	if p.Worlds == nil {
		p.Worlds = map[string]*World{}
	}
	for id, w := range p.Worlds {
		if w == nil {
			delete(p.Worlds, id)
			continue
		}
		if w.ID == "" {
			w.ID = id
		}
		if w.Rules.MinutesBase <= 0 {
			w.Rules.MinutesBase = DefaultMinutesBase
		}
		if w.Rules.XPBase <= 0 {
			w.Rules.XPBase = DefaultXPBase
		}
	}
	if p.ActiveWorldID != "" {
		if w, ok := p.Worlds[p.ActiveWorldID]; !ok || !w.Active {
			p.ActiveWorldID = ""
		}
	}
}

// WeekGoal returns the weekly goal for the current week load.
func (p *Profile) WeekGoal() int {
	if goal, ok := p.Settings.WeekGoals[p.Settings.WeekLoad]; ok && goal > 0 {
		return goal
	}
	return DefaultWeekGoal
}

// MonthGoal returns the monthly goal.
func (p *Profile) MonthGoal() int {
	if p.Settings.MonthGoal > 0 {
		return p.Settings.MonthGoal
	}
	return DefaultMonthGoal
}

// TotalMinutes sums logged minutes over every world, archived ones included.
func (p *Profile) TotalMinutes() int {
	total := 0
	for _, w := range p.Worlds {
		total += w.Stats.TimeTotal
	}
	return total
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() (*Profile, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}
	var out Profile
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("unmarshal profile: %w", err)
	}
	return &out, nil
}

// FindObjective returns the objective with the given id, or nil.
func (w *World) FindObjective(id string) *Objective {
	for _, o := range w.Objectives {
		if o.ID == id {
			return o
		}
	}
	return nil
}

// FindEntry returns the time entry with the given id, or nil.
func (w *World) FindEntry(id string) *TimeEntry {
	for _, e := range w.Entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// MarshalJSON ensures nil slices in World marshal as [] not null.
func (w World) MarshalJSON() ([]byte, error) {
	if w.Objectives == nil {
		w.Objectives = []*Objective{}
	}
	if w.Entries == nil {
		w.Entries = []*TimeEntry{}
	}
	type Alias World
	return json.Marshal(Alias(w))
}

// Activity is one journal row recorded alongside a profile save.
type Activity struct {
	Sequence  int64     `json:"sequence"`
	Action    string    `json:"action"`
	WorldID   string    `json:"world_id,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	XPDelta   int       `json:"xp_delta"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
