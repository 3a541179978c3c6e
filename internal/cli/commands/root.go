package commands

import (
	"github.com/spf13/cobra"

	"gocut/internal/cli"
	"gocut/internal/cli/exitcodes"
	"gocut/internal/config"
)

// NewRootCommand builds the gocut command tree.
func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "gocut",
		Short:   "Unit testing framework for Go plugin modules",
		Long:    `gocut loads test cases from Go plugin modules, runs them in process, on worker goroutines or in child processes, and reports successes, failures, errors, pendings, notifications, omissions and crashes.`,
		Version: version,
		// Failed runs are reported by the run itself.
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitcodes.Usage(err)
	})
	rootCmd.SetVersionTemplate(`{{printf "gocut version %s\n" .Version}}`)

	cfg := config.New()
	var flags cli.Flags
	NewCommands(cfg, &flags).Register(rootCmd, &flags, cfg)
	return rootCmd
}
