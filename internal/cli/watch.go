package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/testloop/internal/clock"
	"github.com/danieljhkim/testloop/internal/config"
	"github.com/danieljhkim/testloop/internal/console"
	"github.com/danieljhkim/testloop/internal/fswatch"
	"github.com/danieljhkim/testloop/internal/loop"
	"github.com/danieljhkim/testloop/internal/metrics"
	"github.com/danieljhkim/testloop/internal/status"
)

var (
	watchMetricsAddr string
	watchNoConsole   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the workspace and run tests on change",
	Long: `Watch the workspace and run tests whenever a source or test file changes.

Tests run once when watching starts. Changes are debounced, runs never overlap,
and a short cooldown follows every run. Runs are skipped while the diagnostics
command reports errors.

Interactive commands (one per line on stdin):
  t, toggle   start or stop watching
  r, run      run tests now
  q, quit     exit`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	watchCmd.Flags().BoolVar(&watchNoConsole, "no-console", false, "Do not read interactive commands from stdin")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.log.Sync() }()

	out := cmd.OutOrStdout()
	reg := prometheus.NewRegistry()
	commands := console.NewRegistry()
	root := s.paths.Workspace

	ctrl, err := loop.New(ctx, root, loop.Deps{
		Clock:       &clock.RealClock{},
		Config:      s.store,
		Watcher:     fswatch.NewNotifyWatcher(s.log),
		Diagnostics: &configuredDiagnostics{store: s.store, dir: root},
		Runner:      &configuredRunner{store: s.store, dir: root, stdout: out, stderr: cmd.ErrOrStderr()},
		Indicator:   status.NewTerminalIndicator(out),
		Notifier:    status.NewTerminalNotifier(cmd.ErrOrStderr()),
		Commands:    commands,
		WatchConfig: func(onChange func()) (loop.Releaser, error) {
			sub, err := config.Watch(s.store.Path(), s.log, onChange)
			if err != nil {
				return nil, err
			}
			return sub, nil
		},
		Metrics: metrics.New(reg),
		Logger:  s.log,
	})
	if err != nil {
		return err
	}
	defer ctrl.DisposeAll()

	printWatchBanner(cmd, s)

	if err := ctrl.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	if !watchNoConsole {
		g.Go(func() error {
			err := commands.Serve(gctx, cmd.InOrStdin(), out)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	if watchMetricsAddr != "" {
		g.Go(func() error {
			s.log.Info("serving metrics", zap.String("addr", watchMetricsAddr))
			if err := metrics.Serve(gctx, watchMetricsAddr, reg); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	if errors.Is(err, console.ErrQuit) {
		return nil
	}
	return err
}

func printWatchBanner(cmd *cobra.Command, s *session) {
	out := cmd.OutOrStdout()
	snap := s.store.Snapshot()

	PrintSection(out, "Test Loop")
	PrintLabelValue(out, "Workspace", s.paths.Workspace)
	if branch, err := s.repo.Branch(s.paths.Workspace); err == nil && branch != "" {
		PrintLabelValue(out, "Branch", branch)
	}
	PrintLabelValue(out, "Config", configSource(s))
	PrintLabelValue(out, "Debounce", snap.Debounce().String())
	PrintLabelValue(out, "Cooldown", snap.Cooldown().String())
	if !watchNoConsole {
		PrintEmptyState(out, "t: toggle   r: run now   q: quit")
	}
	_, _ = fmt.Fprintln(out)
}

// configSource describes where the effective configuration came from.
func configSource(s *session) string {
	if src := s.store.Snapshot().Source; src != "" {
		return src
	}
	return "defaults"
}
