package main

import (
	"fmt"

	"github.com/hyperengineering/lifexp/internal/config"
	"github.com/hyperengineering/lifexp/internal/ui"
	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup <path>",
	Short: "Write a copy of the local database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := config.ExpandPath(args[0])
		if err != nil {
			return err
		}
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.store.Backup(cmd.Context(), dest); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]string{"path": dest})
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render(ui.IconDone+" Backup written to "+dest+"."))
		return nil
	},
}
