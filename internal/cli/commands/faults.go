package commands

import (
	"errors"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gocut/internal/cli"
	"gocut/internal/config"
	"gocut/internal/storage"
	"gocut/internal/ui"
)

// FaultsCommand handles the faults command
type FaultsCommand struct {
	config *config.Config
	flags  *cli.Flags
	viewer ui.Viewer
}

// NewFaultsCommand creates a new FaultsCommand
func NewFaultsCommand(cfg *config.Config, flags *cli.Flags) *FaultsCommand {
	return &FaultsCommand{
		config: cfg,
		flags:  flags,
		viewer: ui.NewFaultViewer(),
	}
}

// Execute runs the command
func (fc *FaultsCommand) Execute(cmd *cobra.Command, args []string) error {
	report, err := lastRunStorage(fc.config).Load()
	if errors.Is(err, storage.ErrNoRuns) {
		color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "No stored run; use gocut run first")
		return nil
	}
	if err != nil {
		return err
	}
	if fc.flags.Stats {
		ui.NewFormatter(cmd.OutOrStdout()).PrintReport(*report)
		return nil
	}
	return fc.viewer.View(report)
}
