package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperengineering/lifexp/internal/config"
	"github.com/hyperengineering/lifexp/internal/engine"
	"github.com/hyperengineering/lifexp/internal/remote"
	"github.com/hyperengineering/lifexp/internal/store"
	"github.com/hyperengineering/lifexp/internal/ui"
	"github.com/hyperengineering/lifexp/internal/worker"
	"github.com/spf13/cobra"
)

// session is one command's view of the local profile: the store, the engine
// over it and, when a backend is configured, a running sync worker.
type session struct {
	cfg    *config.Config
	store  *store.SQLiteStore
	svc    *engine.Service
	syncer *worker.Syncer
	remote remote.Remote

	cancel context.CancelFunc
	done   chan struct{}
}

// openSession loads config, opens the local database and starts sync. When
// reconcile is set and sync is enabled, the profile is reconciled with the
// remote first. Sync failures are reported as warnings and never fail the
// command.
func openSession(cmd *cobra.Command, reconcile bool) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	setupLogger(cfg, cmd.ErrOrStderr(), false)

	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}

	var confirmer engine.Confirmer = engine.AutoConfirm{}
	if !assumeYes {
		confirmer = newPromptConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
	}
	svc, err := engine.New(cmd.Context(), st, engine.Options{Confirmer: confirmer})
	if err != nil {
		st.Close()
		return nil, err
	}

	s := &session{cfg: cfg, store: st, svc: svc, done: make(chan struct{})}
	if offline || cfg.Sync.Backend == config.BackendNone {
		close(s.done)
		return s, nil
	}

	rem, err := remote.New(cfg.Sync)
	if err != nil {
		st.Close()
		return nil, err
	}
	s.remote = rem
	errOut := cmd.ErrOrStderr()
	s.syncer = worker.NewSyncer(svc, rem, worker.SyncerOptions{
		UserID:       cfg.Sync.UserID,
		Debounce:     time.Duration(cfg.Sync.Debounce),
		PullInterval: time.Duration(cfg.Sync.PullInterval),
		FlushTimeout: time.Duration(cfg.Sync.Timeout),
		Meta:         st,
		OnWarning: func(err error) {
			fmt.Fprintln(errOut, ui.Warn.Render(ui.IconWarn+" "+err.Error()))
		},
	})
	svc.SetNotifier(s.syncer)

	if reconcile {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Sync.Timeout))
		// failures already went through OnWarning
		s.syncer.Reconcile(ctx)
		cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		s.syncer.Run(ctx)
	}()
	return s, nil
}

// Close stops the sync worker, which flushes a pending push, then releases
// the remote and the database.
func (s *session) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
	var errs []error
	if c, ok := s.remote.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.store.Close())
	return errors.Join(errs...)
}

// worldID resolves a --world flag value, falling back to the current world.
func (s *session) worldID(ref string) (string, error) {
	return s.svc.ResolveWorld(ref)
}

// promptConfirmer asks y/N questions on a terminal. Anything but y or yes,
// including end of input, declines.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: bufio.NewReader(in), out: out}
}

func (c *promptConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
