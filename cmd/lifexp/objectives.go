package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hyperengineering/lifexp/internal/objective"
	"github.com/hyperengineering/lifexp/internal/types"
	"github.com/hyperengineering/lifexp/internal/ui"
	"github.com/spf13/cobra"
)

var objectiveCmd = &cobra.Command{
	Use:     "objective",
	Aliases: []string{"obj"},
	Short:   "Manage objectives in a world",
	Long:    "Repeatable, unique and milestone objectives award XP toward your total when validated.",
}

var (
	objWorld        string
	objListArchived bool

	editType   string
	editName   string
	editXP     int
	editPrefix string
	editSuffix string
	editSteps  string
)

var objAddRepeatableCmd = &cobra.Command{
	Use:   "add-repeatable <name> <xp>",
	Short: "Add an objective that can be validated any number of times",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		xp, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("xp must be an integer")
		}
		return addObjective(cmd, func(s *session, worldID string) (*types.Objective, error) {
			return s.svc.AddRepeatable(cmd.Context(), worldID, args[0], xp)
		})
	},
}

var objAddUniqueCmd = &cobra.Command{
	Use:   "add-unique <name> <xp>",
	Short: "Add an objective that is validated once",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		xp, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("xp must be an integer")
		}
		return addObjective(cmd, func(s *session, worldID string) (*types.Objective, error) {
			return s.svc.AddUnique(cmd.Context(), worldID, args[0], xp)
		})
	},
}

var objAddMilestoneCmd = &cobra.Command{
	Use:     "add-milestone <prefix> <suffix> <count:xp>...",
	Short:   "Add a counted objective with ascending steps",
	Example: `  lifexp objective add-milestone "Read" "books" 5:10 10:20 25:50`,
	Args:    cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := parseSteps(args[2:])
		if err != nil {
			return err
		}
		return addObjective(cmd, func(s *session, worldID string) (*types.Objective, error) {
			return s.svc.AddMilestone(cmd.Context(), worldID, args[0], args[1], steps)
		})
	},
}

var objEditCmd = &cobra.Command{
	Use:   "edit <objective>",
	Short: "Change an objective's name, XP or steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := objective.Edit{Kind: types.ObjectiveKind(editType)}
		flags := cmd.Flags()
		if flags.Changed("name") {
			e.Name = &editName
		}
		if flags.Changed("xp") {
			e.XP = &editXP
		}
		if flags.Changed("prefix") {
			e.Prefix = &editPrefix
		}
		if flags.Changed("suffix") {
			e.Suffix = &editSuffix
		}
		if flags.Changed("steps") {
			steps, err := parseSteps(strings.Split(editSteps, ","))
			if err != nil {
				return err
			}
			e.Steps = steps
		}
		return withObjective(cmd, args[0], func(s *session, worldID, id string) error {
			if err := s.svc.EditObjective(cmd.Context(), worldID, id, e); err != nil {
				return err
			}
			o, err := s.svc.Objective(worldID, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %q.\n", o.Title())
			return nil
		})
	},
}

var objValidateCmd = &cobra.Command{
	Use:     "validate <objective>",
	Aliases: []string{"done"},
	Short:   "Record a completion and earn its XP",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withObjective(cmd, args[0], func(s *session, worldID, id string) error {
			res, err := s.svc.ValidateObjective(cmd.Context(), worldID, id)
			if err != nil {
				return err
			}
			if !res.Outcome.Changed {
				fmt.Fprintln(cmd.OutOrStdout(), "Already done.")
				return nil
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			ui.WriteAward(cmd.OutOrStdout(), res.Ledger)
			return nil
		})
	},
}

var objUndoCmd = &cobra.Command{
	Use:   "undo <objective>",
	Short: "Reverse the last completion (within 24 hours)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withObjective(cmd, args[0], func(s *session, worldID, id string) error {
			res, err := s.svc.UndoObjective(cmd.Context(), worldID, id)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), res)
			}
			ui.WriteReversal(cmd.OutOrStdout(), res.Ledger)
			return nil
		})
	},
}

var objDeleteCmd = &cobra.Command{
	Use:   "delete <objective>",
	Short: "Hide an objective, keeping its XP and history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withObjective(cmd, args[0], func(s *session, worldID, id string) error {
			if err := s.svc.SoftDeleteObjective(cmd.Context(), worldID, id); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Objective deleted. Its XP is kept.")
			return nil
		})
	},
}

var objPurgeCmd = &cobra.Command{
	Use:   "purge <objective>",
	Short: "Remove an objective and every XP it awarded",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withObjective(cmd, args[0], func(s *session, worldID, id string) error {
			reversed, err := s.svc.HardDeleteObjective(cmd.Context(), worldID, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Objective purged, %d XP removed.\n", reversed)
			return nil
		})
	},
}

var objListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a world's objectives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		worldID, err := s.worldID(objWorld)
		if err != nil {
			return err
		}
		lists, err := s.svc.Objectives(worldID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), lists)
		}
		ui.WriteObjectives(cmd.OutOrStdout(), lists, objListArchived)
		return nil
	},
}

func addObjective(cmd *cobra.Command, add func(s *session, worldID string) (*types.Objective, error)) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	worldID, err := s.worldID(objWorld)
	if err != nil {
		return err
	}
	o, err := add(s, worldID)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), o)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s objective %q (%s)\n", o.Kind(), o.Title(), o.ID)
	return nil
}

// withObjective resolves the --world flag and an objective reference, then
// runs fn. Declined confirmations end the command cleanly.
func withObjective(cmd *cobra.Command, ref string, fn func(s *session, worldID, id string) error) error {
	s, err := openSession(cmd, true)
	if err != nil {
		return err
	}
	defer s.Close()

	worldID, err := s.worldID(objWorld)
	if err != nil {
		return err
	}
	id, err := s.svc.ResolveObjective(worldID, ref)
	if err != nil {
		return err
	}
	return finish(cmd, fn(s, worldID, id))
}

// parseSteps reads "count:xp" pairs.
func parseSteps(args []string) ([]objective.StepSpec, error) {
	steps := make([]objective.StepSpec, 0, len(args))
	for _, a := range args {
		count, xp, ok := strings.Cut(strings.TrimSpace(a), ":")
		if !ok {
			return nil, fmt.Errorf("step %q must be count:xp", a)
		}
		c, err := strconv.Atoi(count)
		if err != nil {
			return nil, fmt.Errorf("step %q: count must be an integer", a)
		}
		x, err := strconv.Atoi(xp)
		if err != nil {
			return nil, fmt.Errorf("step %q: xp must be an integer", a)
		}
		steps = append(steps, objective.StepSpec{Count: c, XP: x})
	}
	return steps, nil
}

func init() {
	objectiveCmd.PersistentFlags().StringVarP(&objWorld, "world", "w", "", "World name or id (defaults to the current world)")
	objListCmd.Flags().BoolVar(&objListArchived, "archived", false, "Include completed items")

	objEditCmd.Flags().StringVar(&editType, "type", "", "Expected objective type (repeatable, unique, milestone)")
	objEditCmd.Flags().StringVar(&editName, "name", "", "New name")
	objEditCmd.Flags().IntVar(&editXP, "xp", 0, "New XP")
	objEditCmd.Flags().StringVar(&editPrefix, "prefix", "", "New milestone prefix")
	objEditCmd.Flags().StringVar(&editSuffix, "suffix", "", "New milestone suffix")
	objEditCmd.Flags().StringVar(&editSteps, "steps", "", "New milestone steps as count:xp,count:xp")

	objectiveCmd.AddCommand(objAddRepeatableCmd, objAddUniqueCmd, objAddMilestoneCmd, objEditCmd,
		objValidateCmd, objUndoCmd, objDeleteCmd, objPurgeCmd, objListCmd)
}
