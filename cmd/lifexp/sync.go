package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/lifexp/internal/merge"
	"github.com/hyperengineering/lifexp/internal/store"
	"github.com/hyperengineering/lifexp/internal/ui"
	"github.com/hyperengineering/lifexp/internal/worker"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the local profile with the cloud save",
	Long:  "Pull the cloud save and keep whichever side was updated last. A missing cloud save is created from the local profile.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if offline {
			return errors.New("sync is disabled by --offline")
		}
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if s.syncer == nil {
			return errors.New("sync is not configured: set sync.backend or LIFEXP_SYNC_BACKEND")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(s.cfg.Sync.Timeout))
		defer cancel()
		res, err := s.syncer.Reconcile(ctx)
		if err != nil {
			return err
		}

		lastPush := syncMeta(cmd.Context(), s.store, worker.MetaLastPush)
		lastPull := syncMeta(cmd.Context(), s.store, worker.MetaLastPull)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"backend":   s.cfg.Sync.Backend,
				"user_id":   s.cfg.Sync.UserID,
				"decision":  res.Decision.String(),
				"created":   res.Created,
				"last_push": lastPush,
				"last_pull": lastPull,
			})
		}

		out := cmd.OutOrStdout()
		switch {
		case res.Created:
			fmt.Fprintln(out, ui.Good.Render(ui.IconDone+" Cloud save created."))
		case res.Decision == merge.UseRemote:
			fmt.Fprintln(out, ui.Good.Render(ui.IconDone+" Loaded the newer cloud save."))
		default:
			fmt.Fprintln(out, ui.Good.Render(ui.IconDone+" Cloud save updated from this device."))
		}
		fmt.Fprintln(out, ui.LabelValue("Backend", s.cfg.Sync.Backend))
		fmt.Fprintln(out, ui.LabelValue("Last push", orDash(lastPush)))
		fmt.Fprintln(out, ui.LabelValue("Last pull", orDash(lastPull)))
		return nil
	},
}

func syncMeta(ctx context.Context, st *store.SQLiteStore, key string) string {
	v, err := st.GetSyncMeta(ctx, key)
	if err != nil {
		return ""
	}
	return v
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
