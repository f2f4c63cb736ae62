package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/testloop/internal/clock"
	"github.com/danieljhkim/testloop/internal/fswatch"
	"github.com/danieljhkim/testloop/internal/loop"
	"github.com/danieljhkim/testloop/internal/metrics"
	"github.com/danieljhkim/testloop/internal/status"
)

// ErrRunFailed is returned by the run command when tests did not pass.
var ErrRunFailed = errors.New("test run failed")

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run tests once",
	Long: `Run tests once, the same way the watch loop does.

The run is skipped when the diagnostics command reports errors. If the
runAll command cannot be started the run command is tried instead.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

type runResult struct {
	Workspace string `json:"workspace"`
	Outcome   string `json:"outcome"`
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer func() { _ = s.log.Sync() }()

	out := cmd.OutOrStdout()
	root := s.paths.Workspace
	notifier := status.NewTerminalNotifier(cmd.ErrOrStderr())

	ctrl, err := loop.New(cmd.Context(), root, loop.Deps{
		Clock:       &clock.RealClock{},
		Config:      s.store,
		Watcher:     fswatch.NewNotifyWatcher(s.log),
		Diagnostics: &configuredDiagnostics{store: s.store, dir: root},
		Runner:      &configuredRunner{store: s.store, dir: root, stdout: out, stderr: cmd.ErrOrStderr()},
		Indicator:   &status.NopIndicator{},
		Notifier:    notifier,
		Logger:      s.log,
	})
	if err != nil {
		return err
	}
	defer ctrl.DisposeAll()

	outcome := ctrl.Attempt(loop.ReasonManual)

	if jsonOutput {
		if err := outputJSON(out, runResult{Workspace: root, Outcome: outcome}); err != nil {
			return err
		}
	} else {
		printOutcome(cmd, outcome)
	}

	switch outcome {
	case metrics.OutcomePassed, metrics.OutcomeFallback:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrRunFailed, outcome)
	}
}

func printOutcome(cmd *cobra.Command, outcome string) {
	out := cmd.OutOrStdout()
	switch outcome {
	case metrics.OutcomePassed:
		PrintSuccess(out, "Tests passed")
	case metrics.OutcomeFallback:
		PrintSuccess(out, "Tests passed (fallback command)")
	case metrics.OutcomeTestsFailed:
		PrintError(cmd.ErrOrStderr(), "Tests failed")
	case metrics.OutcomeSkippedErrors:
		PrintWarning(out, "Skipped: the workspace has errors")
	}
}
