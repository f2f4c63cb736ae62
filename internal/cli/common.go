package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/danieljhkim/testloop/internal/config"
	"github.com/danieljhkim/testloop/internal/diagnostics"
	"github.com/danieljhkim/testloop/internal/gitx"
	"github.com/danieljhkim/testloop/internal/logging"
	"github.com/danieljhkim/testloop/internal/testrun"
)

// session is the resolved workspace, configuration and logger shared by
// every command.
type session struct {
	paths *config.Paths
	store *config.Store
	repo  gitx.GitRepo
	log   *zap.Logger

	// loadErr is set when the configuration file could not be used and
	// defaults are in effect.
	loadErr error
}

// newSession resolves the workspace from --dir or the current directory and
// loads its configuration.
func newSession() (*session, error) {
	log, err := logging.New(logging.Options{Verbosity: verbosity, File: logFile, JSON: logJSON})
	if err != nil {
		return nil, err
	}

	dir := workDir
	if dir == "" {
		if dir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
	}

	repo := gitx.NewRealGitRepo()
	root, err := gitx.WorkspaceRoot(repo, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace: %w", err)
	}

	paths, err := config.DefaultPaths(root, configFlag)
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}

	store, loadErr := config.NewStore(paths.Config)
	if loadErr != nil {
		log.Debug("using default configuration", zap.String("path", paths.Config), zap.Error(loadErr))
	}

	return &session{paths: paths, store: store, repo: repo, log: log, loadErr: loadErr}, nil
}

// configuredRunner runs the test commands of the current configuration
// snapshot, so reloads apply to the next run.
type configuredRunner struct {
	store  *config.Store
	dir    string
	stdout io.Writer
	stderr io.Writer
}

func (r *configuredRunner) current() *testrun.CommandRunner {
	c := r.store.Snapshot().Commands
	return testrun.NewCommandRunner(testrun.Commands{
		RunAll:       c.RunAll,
		Run:          c.Run,
		ClearResults: c.ClearResults,
	}, r.dir, r.stdout, r.stderr)
}

func (r *configuredRunner) RunAll(ctx context.Context) error { return r.current().RunAll(ctx) }

func (r *configuredRunner) Run(ctx context.Context) error { return r.current().Run(ctx) }

func (r *configuredRunner) ClearResults(ctx context.Context) error {
	return r.current().ClearResults(ctx)
}

// configuredDiagnostics runs the diagnostics command of the current
// configuration snapshot.
type configuredDiagnostics struct {
	store *config.Store
	dir   string
}

func (d *configuredDiagnostics) All(ctx context.Context) ([]diagnostics.Resource, error) {
	return diagnostics.NewCommandSource(d.store.Snapshot().Commands.Diagnostics, d.dir).All(ctx)
}

// FormatError formats an error for display.
func FormatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON writes a value as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
