package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperengineering/lifexp/internal/api"
	"github.com/hyperengineering/lifexp/internal/config"
	"github.com/hyperengineering/lifexp/internal/store"
	"github.com/hyperengineering/lifexp/internal/worker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync server",
	Long:  "Serve per-user profile snapshots over HTTP for the http sync backend.",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	// 1. Signal handling
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// 2. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	// 3. Initialize logger
	setupLogger(cfg, os.Stdout, true)
	slog.Info("configuration loaded", "component", "server", "level", cfg.Log.Level)

	// 4. Initialize store (migrations, WAL mode)
	path, err := cfg.DatabasePath()
	if err != nil {
		return err
	}
	db, err := store.NewSQLiteStore(path)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("store close error", "component", "server", "error", err)
		}
	}()
	slog.Info("store initialized", "component", "server", "path", path)

	// 5. HTTP router and server
	router := api.NewRouter(api.NewHandler(db, cfg.Auth.APIKey, Version))
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout),
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout),
	}

	// 6. Background backups, built before anything starts
	backups, err := newBackupWorker(cfg, db)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if backups != nil {
		g.Go(func() error {
			backups.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		slog.Info("server starting", "component", "server", "address", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// a server failure cancels gctx too
		<-gctx.Done()
		slog.Info("shutdown initiated", "component", "server")

		shutdownCtx, shutdownCancel := context.WithTimeout(
			context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout))
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	slog.Info("shutdown complete", "component", "server")
	return err
}

// newBackupWorker returns nil when backups are disabled.
func newBackupWorker(cfg *config.Config, st worker.BackupStore) (*worker.BackupWorker, error) {
	if !cfg.BackupsEnabled() {
		return nil, nil
	}
	dir, err := config.ExpandPath(cfg.Server.BackupDir)
	if err != nil {
		return nil, fmt.Errorf("backup dir: %w", err)
	}
	return worker.NewBackupWorker(st, dir, time.Duration(cfg.Server.BackupInterval), cfg.Server.BackupKeep), nil
}
