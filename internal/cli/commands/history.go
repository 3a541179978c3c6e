package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"gocut/internal/cli"
	"gocut/internal/cli/exitcodes"
	"gocut/internal/config"
	"gocut/internal/storage"
	"gocut/internal/ui"
)

// HistoryCommand handles the history command
type HistoryCommand struct {
	config *config.Config
	flags  *cli.Flags
}

// NewHistoryCommand creates a new HistoryCommand
func NewHistoryCommand(cfg *config.Config, flags *cli.Flags) *HistoryCommand {
	return &HistoryCommand{
		config: cfg,
		flags:  flags,
	}
}

// Execute runs the command
func (hc *HistoryCommand) Execute(cmd *cobra.Command, args []string) error {
	if hc.config.HistoryDSN == "" {
		return exitcodes.Usage(errors.New("no history database configured; set history_dsn or GOCUT_HISTORY_DSN"))
	}
	st, err := storage.OpenMySQL(cmd.Context(), hc.config.HistoryDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Recent(cmd.Context(), hc.flags.Limit)
	if err != nil {
		return err
	}
	ui.NewFormatter(cmd.OutOrStdout()).PrintHistory(records)
	return nil
}
