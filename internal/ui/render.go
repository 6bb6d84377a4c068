package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/hyperengineering/lifexp/internal/engine"
	"github.com/hyperengineering/lifexp/internal/ledger"
	"github.com/hyperengineering/lifexp/internal/objective"
	"github.com/hyperengineering/lifexp/internal/types"
)

const barWidth = 20

// DateTime is the layout used for timestamps in listings.
const DateTime = "2006-01-02 15:04"

// WriteStatus prints the dashboard.
func WriteStatus(w io.Writer, st engine.Status) {
	name := st.PlayerName
	if name == "" {
		name = "Player"
	}
	fmt.Fprintln(w, Heading(IconSparkle, name))
	fmt.Fprintln(w, LabelValue("Level", st.Level.Level))
	fmt.Fprintf(w, "%s %s %s\n", Key.Render("Next:"), levelBar(st.Level), Muted.Render(fmt.Sprintf("%d/%d", st.Level.Into, st.Level.Need)))
	fmt.Fprintln(w, LabelValue("Total XP", st.Global.TotalXP))
	fmt.Fprintln(w, LabelValue("Time logged", Minutes(st.TotalMinutes)))
	fmt.Fprintln(w)

	fmt.Fprintln(w, H2.Render(IconTarget+" Goals"))
	fmt.Fprintf(w, "- %s %s %s\n", Key.Render("Week "+st.WeekKey+":"), goalLine(st.Global.WeekXP, st.WeekGoal), Muted.Render("("+string(st.WeekLoad)+")"))
	fmt.Fprintf(w, "- %s %s\n", Key.Render("Month "+st.MonthKey+":"), goalLine(st.Global.MonthXP, st.MonthGoal))
	fmt.Fprintln(w)

	fmt.Fprintln(w, H2.Render(IconWorld+" Worlds"))
	if len(st.Worlds) == 0 {
		fmt.Fprintln(w, Muted.Render("No worlds yet. Create one with `lifexp world create`."))
		return
	}
	for _, ws := range st.Worlds {
		marker := "  "
		if ws.Current {
			marker = Gold.Render("▶ ")
		}
		fmt.Fprintf(w, "%s%s %s %s %s\n", marker, ws.Icon, H2.Render(ws.Name),
			LabelValue("lvl", ws.Level.Level),
			Muted.Render(fmt.Sprintf("%d XP, %d this week, %s", ws.Stats.TotalXP, ws.Stats.WeekXP, Minutes(ws.Stats.TimeTotal))))
	}
}

func levelBar(ls engine.LevelStatus) string {
	if ls.Need <= 0 {
		return ProgressBar(1, barWidth)
	}
	return ProgressBar(float64(ls.Into)/float64(ls.Need), barWidth)
}

func goalLine(xp, goal int) string {
	ratio := 0.0
	if goal > 0 {
		ratio = float64(xp) / float64(goal)
	}
	line := fmt.Sprintf("%s %d/%d XP %s", ProgressBar(ratio, barWidth), xp, goal, Percent(ratio))
	if goal > 0 && xp >= goal {
		line += " " + Good.Render(IconTrophy)
	}
	return line
}

// WriteHistory prints week and month history rows. limit <= 0 prints all.
func WriteHistory(w io.Writer, hv engine.HistoryView, limit int) {
	fmt.Fprintln(w, Heading(IconScroll, "History"))
	writeHistoryRows(w, "Weeks", hv.Weeks, limit)
	fmt.Fprintln(w)
	writeHistoryRows(w, "Months", hv.Months, limit)
}

func writeHistoryRows(w io.Writer, title string, rows []engine.HistoryRow, limit int) {
	fmt.Fprintln(w, H2.Render(title))
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	if len(rows) == 0 {
		fmt.Fprintln(w, Muted.Render("  nothing recorded"))
		return
	}
	for _, r := range rows {
		key := r.Key
		if r.Current {
			key += "*"
		}
		pct := Percent(r.Percent)
		if r.Percent >= 1 {
			pct = Good.Render(pct)
		}
		fmt.Fprintf(w, "  %-9s %s %5d/%-5d %s\n", key, ProgressBar(r.Percent, barWidth), r.XP, r.Goal, pct)
	}
}

// WriteWorlds lists worlds with their ids.
func WriteWorlds(w io.Writer, worlds []*types.World, currentID string) {
	if len(worlds) == 0 {
		fmt.Fprintln(w, Muted.Render("No worlds."))
		return
	}
	for _, wd := range worlds {
		marker := "  "
		if wd.ID == currentID {
			marker = Gold.Render("▶ ")
		}
		state := ""
		if !wd.Active {
			state = " " + Warn.Render("archived")
		}
		fmt.Fprintf(w, "%s%s %s%s %s\n", marker, wd.Icon, H2.Render(wd.Name), state, Muted.Render(wd.ID))
		fmt.Fprintf(w, "    %s %s %s\n",
			LabelValue("XP", wd.Stats.TotalXP),
			LabelValue("time", Minutes(wd.Stats.TimeTotal)),
			LabelValue("rule", fmt.Sprintf("%d XP / %d min", wd.Rules.XPBase, wd.Rules.MinutesBase)))
	}
}

// WriteObjectives prints the objective lists of one world.
func WriteObjectives(w io.Writer, lists *engine.ObjectiveLists, showArchived bool) {
	fmt.Fprintln(w, H2.Render(IconLoop+" Repeatable"))
	if len(lists.Repeatables) == 0 {
		fmt.Fprintln(w, Muted.Render("  none"))
	}
	for _, o := range lists.Repeatables {
		r := o.Body.(*types.Repeatable)
		fmt.Fprintf(w, "  %s %s %s\n", r.Name, Gold.Render(fmt.Sprintf("+%d", r.XP)),
			Muted.Render(fmt.Sprintf("x%d %s", r.DoneCount(), o.ID)))
	}

	fmt.Fprintln(w, H2.Render(IconTarget+" Unique"))
	if len(lists.Uniques) == 0 {
		fmt.Fprintln(w, Muted.Render("  none"))
	}
	for _, o := range lists.Uniques {
		u := o.Body.(*types.Unique)
		fmt.Fprintf(w, "  %s %s %s\n", u.Name, Gold.Render(fmt.Sprintf("+%d", u.XP)), Muted.Render(o.ID))
	}

	fmt.Fprintln(w, H2.Render(IconLadder+" Milestones"))
	if len(lists.Milestones) == 0 {
		fmt.Fprintln(w, Muted.Render("  none"))
	}
	for _, o := range lists.Milestones {
		m := o.Body.(*types.Milestone)
		next := m.NextStep()
		target, xp := 0, 0
		if next >= 0 {
			target, xp = m.Steps[next].Count, m.Steps[next].XP
		}
		fmt.Fprintf(w, "  %s %s %s %s\n", m.Title(), Gold.Render(fmt.Sprintf("+%d", xp)),
			Muted.Render(fmt.Sprintf("%d/%d, step %d of %d", m.Progress, target, m.DoneSteps()+1, len(m.Steps))),
			Muted.Render(o.ID))
	}

	if !showArchived {
		return
	}
	fmt.Fprintln(w, H2.Render(IconArchived+" Completed"))
	if len(lists.Archived) == 0 {
		fmt.Fprintln(w, Muted.Render("  none"))
	}
	for _, it := range lists.Archived {
		fmt.Fprintln(w, "  "+archivedLine(it))
	}
}

func archivedLine(it objective.ArchivedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s %s", Muted.Render(it.At.Local().Format(DateTime)), it.Title,
		Gold.Render(fmt.Sprintf("+%d", it.XP)), Muted.Render(it.ObjectiveID))
	if it.Deleted {
		b.WriteString(" " + Warn.Render("deleted"))
	}
	if it.Undoable {
		b.WriteString(" " + Good.Render("undo available"))
	}
	return b.String()
}

// WriteEntries lists time entries, newest first.
func WriteEntries(w io.Writer, entries []engine.EntryView) {
	if len(entries) == 0 {
		fmt.Fprintln(w, Muted.Render("No time logged."))
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %s %6s %s %s", Muted.Render(e.CreatedAt.Local().Format(DateTime)),
			Minutes(e.Minutes), Gold.Render(fmt.Sprintf("+%d XP", e.XP)), Muted.Render(e.ID))
		if e.Deletable {
			line += " " + Good.Render("deletable")
		}
		fmt.Fprintln(w, line)
	}
}

// WriteActivity prints journal rows.
func WriteActivity(w io.Writer, acts []types.Activity) {
	if len(acts) == 0 {
		fmt.Fprintln(w, Muted.Render("No activity recorded."))
		return
	}
	for _, a := range acts {
		delta := ""
		switch {
		case a.XPDelta > 0:
			delta = Good.Render(fmt.Sprintf("+%d", a.XPDelta))
		case a.XPDelta < 0:
			delta = Bad.Render(fmt.Sprintf("%d", a.XPDelta))
		}
		fmt.Fprintf(w, "  %s %-20s %s %s\n", Muted.Render(a.CreatedAt.Local().Format(DateTime)), a.Action, delta, a.Detail)
	}
}

// WriteAward reports XP gained, including level ups and goal celebrations.
func WriteAward(w io.Writer, res ledger.Result) {
	if res.Amount > 0 {
		fmt.Fprintf(w, "%s %s\n", IconBolt, Gold.Render(fmt.Sprintf("+%d XP", res.Amount)))
	}
	if res.Global.LeveledUp() {
		fmt.Fprintln(w, Gold.Render(fmt.Sprintf("%s LEVEL UP! Level %d", IconTrophy, res.Global.Now)))
	}
	if res.World.LeveledUp() {
		fmt.Fprintln(w, Gold.Render(fmt.Sprintf("%s World level %d", IconSparkle, res.World.Now)))
	}
	for _, g := range res.Goals {
		fmt.Fprintln(w, Good.Render(fmt.Sprintf("%s %s goal reached for %s (%d/%d XP)", IconDone, g.Period, g.Key, g.XP, g.Goal)))
	}
}

// WriteReversal reports XP taken back by an undo or deletion.
func WriteReversal(w io.Writer, res ledger.Result) {
	if res.Amount > 0 {
		fmt.Fprintln(w, Bad.Render(fmt.Sprintf("-%d XP", res.Amount)))
	}
	if res.Global.Now < res.Global.Prev {
		fmt.Fprintln(w, Warn.Render(fmt.Sprintf("%s Back to level %d", IconWarn, res.Global.Now)))
	}
}

// Minutes formats a minute count as "1h05" or "45m".
func Minutes(m int) string {
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh%02d", m/60, m%60)
}
