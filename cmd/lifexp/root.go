package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hyperengineering/lifexp/internal/config"
	"github.com/hyperengineering/lifexp/internal/engine"
	"github.com/hyperengineering/lifexp/internal/ui"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags: -ldflags "-X main.Version=1.0.0"
var Version = "dev"

var (
	assumeYes  bool
	jsonOutput bool
	offline    bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "lifexp",
	Short:        "lifexp - personal XP and progress tracker",
	Long:         "Track time and objectives across worlds, earn XP, level up and hit weekly and monthly goals.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Answer yes to every confirmation")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Skip cloud sync for this command")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of errors only")

	rootCmd.SetErrPrefix(ui.IconWarn + " ")
	rootCmd.AddCommand(serveCmd, initCmd, statusCmd, historyCmd, goalsCmd, weekLoadCmd, curveCmd,
		resetCmd, journalCmd, syncCmd, backupCmd, worldCmd, objectiveCmd, logCmd, entryCmd)
}

// setupLogger installs the default slog logger. Interactive commands log to
// stderr in text unless configured otherwise; the server logs JSON to stdout.
func setupLogger(cfg *config.Config, out io.Writer, server bool) {
	level := parseLogLevel(cfg.Log.Level)
	if !server && !verbose {
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}

	format := strings.ToLower(cfg.Log.Format)
	if format == "auto" || format == "" {
		format = "text"
		if server {
			format = "json"
		}
	}
	var h slog.Handler
	if format == "json" {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	slog.SetDefault(slog.New(h))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printJSON marshals v to JSON and writes to the given writer.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// finish turns a declined confirmation into a clean exit.
func finish(cmd *cobra.Command, err error) error {
	if errors.Is(err, engine.ErrCancelled) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Aborted.")
		return nil
	}
	return err
}
