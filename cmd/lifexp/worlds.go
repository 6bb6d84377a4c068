package main

import (
	"fmt"
	"strconv"

	"github.com/hyperengineering/lifexp/internal/engine"
	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/ui"
	"github.com/spf13/cobra"
)

var worldCmd = &cobra.Command{
	Use:   "world",
	Short: "Manage worlds",
	Long:  "Create, list, archive and restore worlds, and change how time converts to XP.",
}

var (
	worldIcon        string
	worldMinutesBase int
	worldXPBase      int
	worldArchived    bool
)

var worldCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a world",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		w, err := s.svc.CreateWorld(cmd.Context(), engine.WorldInput{
			Name:        args[0],
			Icon:        worldIcon,
			MinutesBase: worldMinutesBase,
			XPBase:      worldXPBase,
		})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), w)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created world %s %q (%s)\n", w.Icon, w.Name, w.ID)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", ui.LabelValue("Rule", fmt.Sprintf("%d XP per %d min", w.Rules.XPBase, w.Rules.MinutesBase)))
		return nil
	},
}

var worldListCmd = &cobra.Command{
	Use:   "list",
	Short: "List worlds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		worlds := s.svc.Worlds(worldArchived)
		if jsonOutput {
			if worlds == nil {
				worlds = []*types.World{}
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"worlds": worlds, "total": len(worlds)})
		}
		ui.WriteWorlds(cmd.OutOrStdout(), worlds, s.svc.CurrentWorldID())
		return nil
	},
}

var worldArchiveCmd = &cobra.Command{
	Use:   "archive <world>",
	Short: "Archive a world, keeping its XP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorld(cmd, args[0], func(s *session, id string) error {
			if err := s.svc.ArchiveWorld(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "World archived.")
			return nil
		})
	},
}

var worldRestoreCmd = &cobra.Command{
	Use:   "restore <world>",
	Short: "Restore an archived world",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorld(cmd, args[0], func(s *session, id string) error {
			if err := s.svc.RestoreWorld(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "World restored.")
			return nil
		})
	},
}

var worldRuleCmd = &cobra.Command{
	Use:   "rule <world> <minutes> <xp>",
	Short: "Change how many XP a block of minutes earns",
	Long:  "Existing time entries keep the XP they were logged with.",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		minutes, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("minutes must be an integer")
		}
		xp, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("xp must be an integer")
		}
		return withWorld(cmd, args[0], func(s *session, id string) error {
			if err := s.svc.UpdateWorldRule(cmd.Context(), id, minutes, xp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rule set to %d XP per %d min.\n", xp, minutes)
			return nil
		})
	},
}

var worldUseCmd = &cobra.Command{
	Use:   "use <world>",
	Short: "Select the current world",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withWorld(cmd, args[0], func(s *session, id string) error {
			if err := s.svc.SetActiveWorld(cmd.Context(), id); err != nil {
				return err
			}
			w, err := s.svc.World(id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Now in %s %s.\n", w.Icon, w.Name)
			return nil
		})
	},
}

// withWorld opens a session, resolves ref and runs fn. Declined
// confirmations end the command cleanly.
func withWorld(cmd *cobra.Command, ref string, fn func(s *session, id string) error) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	id, err := s.worldID(ref)
	if err != nil {
		return err
	}
	return finish(cmd, fn(s, id))
}

func init() {
	worldCreateCmd.Flags().StringVar(&worldIcon, "icon", "🌍", "Icon shown next to the world")
	worldCreateCmd.Flags().IntVar(&worldMinutesBase, "minutes", types.DefaultMinutesBase, "Minutes per XP block")
	worldCreateCmd.Flags().IntVar(&worldXPBase, "xp", types.DefaultXPBase, "XP per block of minutes")
	worldListCmd.Flags().BoolVar(&worldArchived, "archived", false, "List archived worlds instead")

	worldCmd.AddCommand(worldCreateCmd, worldListCmd, worldArchiveCmd, worldRestoreCmd, worldRuleCmd, worldUseCmd)
}
