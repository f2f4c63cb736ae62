package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danieljhkim/testloop/internal/diagnostics"
	"github.com/danieljhkim/testloop/internal/loop"
	"github.com/danieljhkim/testloop/internal/status"
)

const (
	waitFor = 5 * time.Second
	tick    = 10 * time.Millisecond

	// settle is comfortably longer than debounce + cooldown.
	settle = 300 * time.Millisecond
)

func startAndWaitForFirstRun(t *testing.T, tl *testLoop) {
	t.Helper()
	require.NoError(t, tl.ctrl.Start())
	require.Eventually(t, func() bool { return tl.runs() == 1 }, waitFor, tick, "start run")
	time.Sleep(settle)
}

func TestWatch_EditBurstRunsOnce(t *testing.T) {
	tl := setupLoop(t, "src")
	startAndWaitForFirstRun(t, tl)

	for i := 0; i < 3; i++ {
		tl.write(t, "src/app.go", "package src\n")
	}

	require.Eventually(t, func() bool { return tl.runs() == 2 }, waitFor, tick)
	time.Sleep(settle)
	assert.Equal(t, 2, tl.runs())
	assert.Equal(t, status.TextOn, tl.indicator.Text())
}

func TestWatch_NewFileInNewDirectory(t *testing.T) {
	tl := setupLoop(t)
	startAndWaitForFirstRun(t, tl)

	require.NoError(t, mkdir(tl.root, "pkg"))
	// Give the watcher time to register the new directory.
	time.Sleep(settle)
	tl.write(t, "pkg/handler.go", "package pkg\n")

	require.Eventually(t, func() bool { return tl.runs() == 2 }, waitFor, tick)
}

func TestWatch_IgnoredAndNonSourcePaths(t *testing.T) {
	tl := setupLoop(t, "node_modules/lib", "docs")
	startAndWaitForFirstRun(t, tl)

	tl.write(t, "node_modules/lib/index.js", "module.exports = {}\n")
	tl.write(t, "docs/README.md", "# docs\n")

	time.Sleep(settle)
	assert.Equal(t, 1, tl.runs())
}

func TestWatch_DiagnosticsErrorsClearResults(t *testing.T) {
	tl := setupLoop(t, "src")
	tl.diags.Set(diagnostics.Resource{
		ID:          "src/app.go",
		Diagnostics: []diagnostics.Diagnostic{{Severity: diagnostics.SeverityError, Message: "syntax error"}},
	})
	require.NoError(t, tl.ctrl.Start())

	require.Eventually(t, func() bool {
		_, _, cleared := tl.runner.Calls()
		return cleared == 1
	}, waitFor, tick)
	assert.Equal(t, 0, tl.runs())
}

func TestWatch_StopSilencesEvents(t *testing.T) {
	tl := setupLoop(t, "src")
	startAndWaitForFirstRun(t, tl)

	tl.ctrl.Stop()
	assert.Equal(t, loop.StateIdle, tl.ctrl.State())
	tl.write(t, "src/app.go", "package src\n")

	time.Sleep(settle)
	assert.Equal(t, 1, tl.runs())
	assert.Equal(t, status.TextOff, tl.indicator.Text())
}

func TestWatch_ConfigReloadAppliesIgnorePatterns(t *testing.T) {
	tl := setupLoop(t, "src", "gen")
	startAndWaitForFirstRun(t, tl)

	tl.write(t, ".testloop.yaml", "test-loop:\n  debounceMs: 50\n  cooldownMs: 20\n  ignorePatterns: [gen]\n")
	require.Eventually(t, func() bool {
		rules := tl.ctrl.Classifier().Rules()
		return len(rules) == 1 && rules[0] == "gen"
	}, waitFor, tick)

	tl.write(t, "gen/models.go", "package gen\n")
	time.Sleep(settle)
	assert.Equal(t, 1, tl.runs(), "gen is ignored after reload")

	tl.write(t, "src/app.go", "package src\n")
	require.Eventually(t, func() bool { return tl.runs() == 2 }, waitFor, tick)
}
