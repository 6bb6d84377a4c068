package main

import (
	"fmt"
	"strconv"

	"github.com/hyperengineering/lifexp/internal/engine"
	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/ui"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init <player-name>",
	Short: "Set your player name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.svc.Init(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Welcome, %s!\n", ui.IconSparkle, args[0])
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show level, goals and worlds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		st := s.svc.Status()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st)
		}
		ui.WriteStatus(cmd.OutOrStdout(), st)
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show weekly and monthly performance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		hv := s.svc.History()
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), hv)
		}
		ui.WriteHistory(cmd.OutOrStdout(), hv, historyLimit)
		return nil
	},
}

var goalsMonth, goalsBusy, goalsNormal, goalsLight int

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Show or change the monthly goal and the weekly goal table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		p, err := s.svc.Snapshot()
		if err != nil {
			return err
		}
		g := engine.Goals{
			Month:  p.Settings.MonthGoal,
			Busy:   p.Settings.WeekGoals[types.WeekLoadBusy],
			Normal: p.Settings.WeekGoals[types.WeekLoadNormal],
			Light:  p.Settings.WeekGoals[types.WeekLoadLight],
		}
		flags := cmd.Flags()
		if flags.Changed("month") || flags.Changed("busy") || flags.Changed("normal") || flags.Changed("light") {
			if flags.Changed("month") {
				g.Month = goalsMonth
			}
			if flags.Changed("busy") {
				g.Busy = goalsBusy
			}
			if flags.Changed("normal") {
				g.Normal = goalsNormal
			}
			if flags.Changed("light") {
				g.Light = goalsLight
			}
			if err := s.svc.UpdateGoals(cmd.Context(), g); err != nil {
				return err
			}
		}

		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"month":     g.Month,
				"busy":      g.Busy,
				"normal":    g.Normal,
				"light":     g.Light,
				"week_load": p.Settings.WeekLoad,
			})
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.Heading(ui.IconTarget, "Goals"))
		fmt.Fprintln(out, ui.LabelValue("Month", g.Month))
		fmt.Fprintln(out, ui.LabelValue("Week (busy)", g.Busy))
		fmt.Fprintln(out, ui.LabelValue("Week (normal)", g.Normal))
		fmt.Fprintln(out, ui.LabelValue("Week (light)", g.Light))
		fmt.Fprintln(out, ui.LabelValue("This week", p.Settings.WeekLoad))
		return nil
	},
}

var weekLoadCmd = &cobra.Command{
	Use:       "week-load <busy|normal|light>",
	Short:     "Choose which weekly goal applies",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"busy", "normal", "light"},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		changed, err := s.svc.SetWeekLoad(cmd.Context(), types.WeekLoad(args[0]))
		if err != nil {
			return finish(cmd, err)
		}
		if !changed {
			fmt.Fprintf(cmd.OutOrStdout(), "Week load is already %s.\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Week load set to %s.\n", args[0])
		return nil
	},
}

var curveCmd = &cobra.Command{
	Use:   "curve <base> <growth>",
	Short: "Change the XP cost of levels",
	Long:  "Level n costs round(base * growth^(n-1)) XP. Base must be positive and growth at least 1.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("base must be a number: %w", err)
		}
		growth, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("growth must be a number: %w", err)
		}

		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.svc.UpdateLevelCurve(cmd.Context(), base, growth); err != nil {
			return err
		}
		st := s.svc.Status()
		fmt.Fprintf(cmd.OutOrStdout(), "Level curve updated. You are level %d.\n", st.Level.Level)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase all progress",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.svc.Reset(cmd.Context()); err != nil {
			return finish(cmd, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Progress reset.")
		return nil
	},
}

var journalLimit int

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recent activity",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		acts, err := s.store.ListActivity(cmd.Context(), journalLimit)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"activity": acts, "total": len(acts)})
		}
		ui.WriteActivity(cmd.OutOrStdout(), acts)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 8, "Rows per table (0 for all)")

	goalsCmd.Flags().IntVar(&goalsMonth, "month", 0, "Monthly goal in XP")
	goalsCmd.Flags().IntVar(&goalsBusy, "busy", 0, "Weekly goal for busy weeks")
	goalsCmd.Flags().IntVar(&goalsNormal, "normal", 0, "Weekly goal for normal weeks")
	goalsCmd.Flags().IntVar(&goalsLight, "light", 0, "Weekly goal for light weeks")

	journalCmd.Flags().IntVar(&journalLimit, "limit", 20, "Number of rows")
}
