package commands

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gocut/internal/cli"
	"gocut/internal/cli/exitcodes"
	"gocut/internal/config"
	"gocut/internal/execution"
	"gocut/internal/logging"
	"gocut/internal/storage"
	"gocut/internal/ui"
)

// ListCommand handles the list command
type ListCommand struct {
	config *config.Config
	flags  *cli.Flags
}

// NewListCommand creates a new ListCommand
func NewListCommand(cfg *config.Config, flags *cli.Flags) *ListCommand {
	return &ListCommand{
		config: cfg,
		flags:  flags,
	}
}

// Execute runs the command
func (lc *ListCommand) Execute(cmd *cobra.Command, args []string) error {
	opts, err := lc.config.RunOptions()
	if err != nil {
		return exitcodes.Usage(err)
	}
	suite, err := execution.NewRunContext(opts).LoadSuite()
	if err != nil {
		return exitcodes.Usage(err)
	}

	if len(suite.Cases) == 0 {
		color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "No tests found")
		return nil
	}

	// Cases that failed last time are marked.
	last, err := lastRunStorage(lc.config).Load()
	if err != nil && !errors.Is(err, storage.ErrNoRuns) {
		logging.Warn("List", "ignoring last run: %v", err)
	}

	ui.NewFormatter(cmd.OutOrStdout()).PrintTestList(suite, lc.flags.ShowTests, ui.FailedKeys(last))
	return nil
}
