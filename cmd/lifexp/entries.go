package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/hyperengineering/lifexp/internal/ui"
	"github.com/spf13/cobra"
)

var entryWorld string

var logCmd = &cobra.Command{
	Use:   "log <minutes|duration>",
	Short: "Log time in a world",
	Long:  "Log time in the current world (or --world). Accepts minutes (45) or a duration (1h30m).",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := parseMinutes(args[0])
		if err != nil {
			return err
		}

		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		worldID, err := s.worldID(entryWorld)
		if err != nil {
			return err
		}
		res, err := s.svc.LogTime(cmd.Context(), worldID, minutes)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), res)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Logged %s (%s)\n", ui.IconClock, ui.Minutes(res.Entry.Minutes), res.Entry.ID)
		ui.WriteAward(cmd.OutOrStdout(), res.Ledger)
		return nil
	},
}

var entryCmd = &cobra.Command{
	Use:   "entry",
	Short: "Inspect or delete logged time",
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries of a world",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		worldID, err := s.worldID(entryWorld)
		if err != nil {
			return err
		}
		entries, err := s.svc.Entries(worldID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{"entries": entries, "total": len(entries)})
		}
		ui.WriteEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

var entryDeleteCmd = &cobra.Command{
	Use:   "delete <entry>",
	Short: "Delete an entry logged in the last 24 hours",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		worldID, err := s.worldID(entryWorld)
		if err != nil {
			return err
		}
		id, err := s.svc.ResolveEntry(worldID, args[0])
		if err != nil {
			return err
		}
		res, err := s.svc.DeleteEntry(cmd.Context(), worldID, id)
		if err != nil {
			return finish(cmd, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s entry.\n", ui.Minutes(res.Entry.Minutes))
		ui.WriteReversal(cmd.OutOrStdout(), res.Ledger)
		return nil
	},
}

// parseMinutes accepts a whole number of minutes or a Go duration.
func parseMinutes(arg string) (int, error) {
	if n, err := strconv.Atoi(arg); err == nil {
		return n, nil
	}
	d, err := time.ParseDuration(arg)
	if err != nil {
		return 0, fmt.Errorf("%q is neither minutes nor a duration", arg)
	}
	return int(d / time.Minute), nil
}

func init() {
	logCmd.Flags().StringVarP(&entryWorld, "world", "w", "", "World name or id (defaults to the current world)")
	entryCmd.PersistentFlags().StringVarP(&entryWorld, "world", "w", "", "World name or id (defaults to the current world)")
	entryCmd.AddCommand(entryListCmd, entryDeleteCmd)
}
