package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/testloop/internal/config"
	"github.com/danieljhkim/testloop/internal/fsops"
)

var (
	initForce bool

	initFS fsops.FS = fsops.NewRealFS()
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	Long: `Write a configuration file with the default settings at the workspace root
(or at the path given by --config / TESTLOOP_CONFIG).

The file is only overwritten with --force.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false,
		"Overwrite an existing configuration file")
}

func runInit(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}

	data, err := config.Marshal(config.Defaults())
	if err != nil {
		return err
	}

	if err := initFS.WriteNew(s.paths.Config, data, 0644, initForce); err != nil {
		if errors.Is(err, fsops.ErrExists) {
			return fmt.Errorf("%s already exists\nUse --force to overwrite", s.paths.Config)
		}
		return fmt.Errorf("failed to write configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	PrintSuccess(out, fmt.Sprintf("Wrote %s", s.paths.Config))
	_, _ = fmt.Fprintln(out)
	PrintInfo(out, "Next steps:")
	_, _ = fmt.Fprintln(out, "  1. Adjust commands and ignorePatterns under test-loop:")
	_, _ = fmt.Fprintln(out, "  2. Start watching:   testloop watch")
	return nil
}
