package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfig,
}

type configView struct {
	Workspace      string   `json:"workspace"`
	Path           string   `json:"path"`
	Source         string   `json:"source"`
	Error          string   `json:"error,omitempty"`
	Glob           string   `json:"glob"`
	DebounceMs     int      `json:"debounceMs"`
	CooldownMs     int      `json:"cooldownMs"`
	IgnorePatterns []string `json:"ignorePatterns"`
	RunAll         []string `json:"runAll"`
	Run            []string `json:"run"`
	ClearResults   []string `json:"clearResults"`
	Diagnostics    []string `json:"diagnostics"`
}

func runConfig(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	snap := s.store.Snapshot()
	view := configView{
		Workspace:      s.paths.Workspace,
		Path:           s.paths.Config,
		Source:         configSource(s),
		Glob:           snap.Glob,
		DebounceMs:     snap.DebounceMs,
		CooldownMs:     snap.CooldownMs,
		IgnorePatterns: snap.IgnorePatterns,
		RunAll:         snap.Commands.RunAll,
		Run:            snap.Commands.Run,
		ClearResults:   snap.Commands.ClearResults,
		Diagnostics:    snap.Commands.Diagnostics,
	}
	if s.loadErr != nil {
		view.Error = s.loadErr.Error()
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return outputJSON(out, view)
	}

	PrintSection(out, "Configuration")
	PrintLabelValue(out, "Workspace", view.Workspace)
	PrintLabelValue(out, "Source", view.Source)
	if view.Error != "" {
		PrintWarning(out, view.Error)
	}
	PrintLabelValue(out, "Glob", view.Glob)
	PrintLabelValue(out, "Debounce", fmt.Sprintf("%dms", view.DebounceMs))
	PrintLabelValue(out, "Cooldown", fmt.Sprintf("%dms", view.CooldownMs))
	PrintLabelValue(out, "Run all", commandLine(view.RunAll))
	PrintLabelValue(out, "Run", commandLine(view.Run))
	PrintLabelValue(out, "Clear results", commandLine(view.ClearResults))
	PrintLabelValue(out, "Diagnostics", commandLine(view.Diagnostics))

	PrintSection(out, "Ignore Patterns ("+PrintCount(len(view.IgnorePatterns), "pattern", "patterns")+")")
	if len(view.IgnorePatterns) == 0 {
		PrintEmptyState(out, "No ignore patterns")
		return nil
	}
	PrintList(out, view.IgnorePatterns, 1)
	return nil
}

func commandLine(argv []string) string {
	if len(argv) == 0 {
		return "(none)"
	}
	return strings.Join(argv, " ")
}
