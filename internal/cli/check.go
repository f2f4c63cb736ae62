package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/testloop/internal/classify"
)

var checkCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Show how paths are classified",
	Long: `Show how each path is classified by the current ignore patterns.

A path triggers a run when it is a test or source file and no ignore pattern
matches it. Relative paths are resolved against the workspace, and paths
inside the workspace are shown relative to it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

type checkResult struct {
	Path      string        `json:"path"`
	Kind      classify.Kind `json:"kind"`
	Rule      string        `json:"rule,omitempty"`
	Qualifies bool          `json:"qualifies"`
}

func runCheck(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	c := classify.New(s.store.Snapshot().IgnorePatterns)
	results := make([]checkResult, 0, len(args))
	for _, arg := range args {
		p := arg
		if !filepath.IsAbs(p) {
			p = filepath.Join(s.paths.Workspace, p)
		}
		display := arg
		if rel, err := s.repo.RelPath(s.paths.Workspace, p); err == nil {
			display = filepath.ToSlash(rel)
		}
		r := c.Classify(p)
		results = append(results, checkResult{
			Path:      display,
			Kind:      r.Kind,
			Rule:      r.Rule,
			Qualifies: r.Qualifies(),
		})
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return outputJSON(out, results)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		runs := "no"
		if r.Qualifies {
			runs = "yes"
		}
		rows = append(rows, []string{r.Path, string(r.Kind), runs, r.Rule})
	}
	PrintTable(out, []string{"PATH", "KIND", "RUNS", "RULE"}, rows)
	return nil
}
