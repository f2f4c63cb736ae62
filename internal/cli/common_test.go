package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/danieljhkim/testloop/internal/config"
	"github.com/danieljhkim/testloop/internal/testrun"
)

// execute runs the root command with fresh flag values and captured output.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

// executeWithInput is execute with stdin reading from input.
func executeWithInput(t *testing.T, input string, args ...string) (string, string, error) {
	t.Helper()

	jsonOutput, workDir, configFlag, verbosity, logFile, logJSON = false, "", "", 0, "", false
	initForce, watchMetricsAddr, watchNoConsole = false, "", false
	color.NoColor = true
	for _, c := range append(rootCmd.Commands(), rootCmd) {
		for _, name := range []string{"help", "version"} {
			if f := c.Flags().Lookup(name); f != nil {
				_ = f.Value.Set("false")
				f.Changed = false
			}
		}
	}

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

// writeConfig writes a test-loop section to the workspace configuration file.
func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte("test-loop:\n"+body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestFormatError(t *testing.T) {
	got := FormatError(os.ErrNotExist)
	if !strings.Contains(got, "Error:") {
		t.Errorf("FormatError() = %q, expected to contain 'Error:'", got)
	}
}

func TestOutputJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := outputJSON(&buf, map[string]string{"test": "value"}); err != nil {
		t.Fatalf("outputJSON() error = %v", err)
	}

	var v map[string]string
	if err := json.Unmarshal(buf.Bytes(), &v); err != nil {
		t.Errorf("outputJSON() produced invalid JSON: %v", err)
	}
	if v["test"] != "value" {
		t.Errorf("outputJSON() = %v", v)
	}
}

func TestPrintFunctions(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer

	PrintSuccess(&buf, "Success message")
	PrintWarning(&buf, "Warning message")
	PrintError(&buf, "Error message")
	PrintInfo(&buf, "Info message")
	PrintLabelValue(&buf, "Label", "value")
	PrintTable(&buf, []string{"A", "B"}, [][]string{{"1", "2"}})

	want := []string{"✓ Success message", "⚠ Warning message", "✗ Error message", "Info message", "Label: value", "-"}
	for _, w := range want {
		if !strings.Contains(buf.String(), w) {
			t.Errorf("output missing %q:\n%s", w, buf.String())
		}
	}
}

func TestPrintCount(t *testing.T) {
	if got := PrintCount(1, "pattern", "patterns"); got != "1 pattern" {
		t.Errorf("PrintCount(1) = %q", got)
	}
	if got := PrintCount(3, "pattern", "patterns"); got != "3 patterns" {
		t.Errorf("PrintCount(3) = %q", got)
	}
}

func TestConfiguredRunner_FollowsReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "  commands:\n    runAll: [sh, -c, 'exit 0']\n")
	store, err := config.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	r := &configuredRunner{store: store, dir: dir}
	ctx := context.Background()

	if err := r.RunAll(ctx); err != nil {
		t.Fatalf("RunAll() error = %v", err)
	}

	writeConfig(t, dir, "  commands:\n    runAll: [sh, -c, 'exit 2']\n")
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if err := r.RunAll(ctx); !errors.Is(err, testrun.ErrTestsFailed) {
		t.Errorf("RunAll() after reload = %v, want ErrTestsFailed", err)
	}
}

func TestConfiguredDiagnostics(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "  commands:\n    diagnostics: [sh, -c, 'echo \"main.go:3:1: undefined: x\"; exit 1']\n")
	store, err := config.NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}

	resources, err := (&configuredDiagnostics{store: store, dir: dir}).All(context.Background())
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(resources) != 1 || resources[0].ID != "main.go" {
		t.Errorf("All() = %+v", resources)
	}
}
