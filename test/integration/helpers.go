package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/danieljhkim/testloop/internal/clock"
	"github.com/danieljhkim/testloop/internal/config"
	"github.com/danieljhkim/testloop/internal/diagnostics"
	"github.com/danieljhkim/testloop/internal/fswatch"
	"github.com/danieljhkim/testloop/internal/loop"
	"github.com/danieljhkim/testloop/internal/status"
	"github.com/danieljhkim/testloop/internal/testrun"
)

// testLoop is a controller wired to a real filesystem watcher and clock,
// with fake test commands.
type testLoop struct {
	ctrl      *loop.Controller
	root      string
	store     *config.Store
	runner    *testrun.FakeRunner
	diags     *diagnostics.FakeSource
	indicator *status.FakeIndicator
	notifier  *status.FakeNotifier
}

// setupLoop creates a workspace with the given directories and a
// controller over it. The configuration file is watched for changes.
func setupLoop(t *testing.T, dirs ...string) *testLoop {
	t.Helper()

	root := t.TempDir()
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", d, err)
		}
	}

	cfgPath := filepath.Join(root, config.FileName)
	writeFile(t, cfgPath, "test-loop:\n  debounceMs: 50\n  cooldownMs: 20\n")
	store, err := config.NewStore(cfgPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	log := zap.NewNop()
	tl := &testLoop{
		root:      root,
		store:     store,
		runner:    testrun.NewFakeRunner(),
		diags:     diagnostics.NewFakeSource(),
		indicator: status.NewFakeIndicator(),
		notifier:  &status.FakeNotifier{},
	}
	ctrl, err := loop.New(context.Background(), root, loop.Deps{
		Clock:       &clock.RealClock{},
		Config:      store,
		Watcher:     fswatch.NewNotifyWatcher(log),
		Diagnostics: tl.diags,
		Runner:      tl.runner,
		Indicator:   tl.indicator,
		Notifier:    tl.notifier,
		WatchConfig: func(onChange func()) (loop.Releaser, error) {
			sub, err := config.Watch(cfgPath, log, onChange)
			if err != nil {
				return nil, err
			}
			return sub, nil
		},
		Logger: log,
	})
	if err != nil {
		t.Fatalf("failed to create controller: %v", err)
	}
	tl.ctrl = ctrl
	t.Cleanup(ctrl.DisposeAll)
	return tl
}

func (tl *testLoop) runs() int {
	n, _, _ := tl.runner.Calls()
	return n
}

func (tl *testLoop) write(t *testing.T, rel, content string) {
	t.Helper()
	writeFile(t, filepath.Join(tl.root, rel), content)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func mkdir(root, rel string) error {
	return os.MkdirAll(filepath.Join(root, rel), 0755)
}
