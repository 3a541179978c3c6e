package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"gocut/internal/cli"
	"gocut/internal/cli/exitcodes"
	"gocut/internal/config"
	"gocut/internal/logging"
	"gocut/internal/storage"
)

// Commands holds all CLI commands
type Commands struct {
	Run     *RunCommand
	List    *ListCommand
	Faults  *FaultsCommand
	History *HistoryCommand
}

// NewCommands creates all commands sharing cfg. The configuration is
// filled in from files, environment and flags before each command runs.
func NewCommands(cfg *config.Config, flags *cli.Flags) *Commands {
	return &Commands{
		Run:     NewRunCommand(cfg, flags),
		List:    NewListCommand(cfg, flags),
		Faults:  NewFaultsCommand(cfg, flags),
		History: NewHistoryCommand(cfg, flags),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags, cfg *config.Config) {
	loadConfig := func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			flags.TestPath = args[0]
		}
		loaded, err := config.Load(flags.ToConfigFlags())
		if err != nil {
			return exitcodes.Usage(err)
		}
		*cfg = *loaded

		level, err := logging.ParseLevel(cfg.LogLevel)
		if err != nil {
			return exitcodes.Usage(err)
		}
		logging.InitForCLI(level, cmd.ErrOrStderr())
		return nil
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.ConfigFile, "config", "c", "", "Path to the YAML config file (default ./"+config.DefaultConfigFile+")")
	pf.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Print every test and debug logs")

	selection := func(cmd *cobra.Command) {
		cmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Directory holding the test modules")
		cmd.Flags().StringVarP(&flags.SuiteName, "name", "n", "", "Suite name (default: test directory name)")
		cmd.Flags().StringSliceVar(&flags.CaseNames, "case", nil, "Run only test cases matching name, wildcard or /regexp/ (repeatable)")
		cmd.Flags().StringSliceVar(&flags.TestNames, "test", nil, "Run only tests matching name, wildcard or /regexp/ (repeatable)")
		cmd.Flags().StringSliceVar(&flags.ExcludeDirs, "exclude", nil, "Additional directories to skip while scanning")
	}

	runCmd := &cobra.Command{
		Use:     "run [dir]",
		Short:   "Run the tests in a directory",
		Long:    "Load test modules from a directory and run them, in process, in worker goroutines or in child processes",
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		PreRunE: loadConfig,
		RunE:    c.Run.Execute,
	}
	selection(runCmd)
	runCmd.Flags().StringVarP(&flags.SourcePath, "source-dir", "s", "", "Source directory shown in failure locations")
	runCmd.Flags().StringVar(&flags.Order, "order", "", "Test order: none, name or name-desc")
	runCmd.Flags().IntVarP(&flags.MaxThreads, "threads", "j", 0, "Number of test cases run concurrently")
	runCmd.Flags().IntVarP(&flags.Processes, "processes", "p", 0, "Split the suite over this many child processes")
	runCmd.Flags().StringVar(&flags.Isolation, "isolation", "", "Test isolation: none or fork")
	runCmd.Flags().DurationVar(&flags.ForkTimeout, "fork-timeout", 0, "Maximum time a forked test may run")
	runCmd.Flags().BoolVar(&flags.FailFast, "fail-fast", false, "Stop on first test failure")
	runCmd.Flags().BoolVar(&flags.NoProgress, "no-progress", false, "Print result marks instead of a progress bar")
	runCmd.Flags().StringArrayVar(&flags.Listeners, "listener", nil, "Load a listener from a factory module, as path:type (repeatable)")
	runCmd.Flags().BoolVar(&flags.OpenFaults, "open-faults", false, "Open the faults viewer when the run finishes with faults")
	rootCmd.AddCommand(runCmd)

	listCmd := &cobra.Command{
		Use:     "list [dir]",
		Short:   "List discovered test cases",
		Long:    "Load test modules from a directory and list their test cases without running them",
		Args:    usageArgs(cobra.MaximumNArgs(1)),
		PreRunE: loadConfig,
		RunE:    c.List.Execute,
	}
	selection(listCmd)
	listCmd.Flags().BoolVarP(&flags.ShowTests, "tests", "T", false, "List the tests of every case")
	rootCmd.AddCommand(listCmd)

	faultsCmd := &cobra.Command{
		Use:     "faults",
		Short:   "View the faults of the last run interactively",
		Long:    "Display failures, errors, pendings, omissions and crashes of the last stored run in an interactive viewer",
		Args:    usageArgs(cobra.NoArgs),
		PreRunE: loadConfig,
		RunE:    c.Faults.Execute,
	}
	faultsCmd.Flags().BoolVar(&flags.Stats, "stats", false, "Print the statistics table and fault tree instead of opening the viewer")
	rootCmd.AddCommand(faultsCmd)

	historyCmd := &cobra.Command{
		Use:     "history",
		Short:   "List recent runs from the history database",
		Long:    "List the most recent runs stored in the MySQL history database configured by history_dsn",
		Args:    usageArgs(cobra.NoArgs),
		PreRunE: loadConfig,
		RunE:    c.History.Execute,
	}
	historyCmd.Flags().IntVar(&flags.Limit, "limit", 20, "Number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		return exitcodes.Usage(validate(cmd, args))
	}
}

func lastRunStorage(cfg *config.Config) *storage.JSONStorage {
	return storage.NewJSONStorage(cfg.GetOutputPath())
}

// parseListener splits a path:type listener argument. The type is taken
// after the last colon so Windows drive letters survive.
func parseListener(arg string) (path, typ string, err error) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 || i == len(arg)-1 {
		return "", "", fmt.Errorf("invalid listener %q, want path:type", arg)
	}
	return arg[:i], arg[i+1:], nil
}
