package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"gocut/internal/cli"
	"gocut/internal/cli/exitcodes"
	"gocut/internal/config"
	"gocut/internal/domain"
	"gocut/internal/execution"
	"gocut/internal/logging"
	"gocut/internal/metrics"
	"gocut/internal/storage"
	"gocut/internal/ui"
)

// RunCommand handles the run command
type RunCommand struct {
	config *config.Config
	flags  *cli.Flags
	viewer ui.Viewer
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(cfg *config.Config, flags *cli.Flags) *RunCommand {
	return &RunCommand{
		config: cfg,
		flags:  flags,
		viewer: ui.NewFaultViewer(),
	}
}

// Execute runs the command
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	opts, err := rc.config.RunOptions()
	if err != nil {
		return exitcodes.Usage(err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	run := execution.NewRunContext(opts)
	logging.Debug("Run", "run %s of %s in %s", run.ID(), opts.SuiteName, opts.TestDirectory)

	console := ui.NewConsole(cmd.OutOrStdout(), rc.flags.Verbose)
	if !rc.flags.NoProgress && !rc.flags.Verbose {
		console.HideMarks()
		run.Subscribe(ui.NewProgressBar(cmd.ErrOrStderr()).Observe)
	}
	run.Subscribe(console.Observe)

	var collector *metrics.Collector
	if rc.config.MetricsFile != "" {
		collector = metrics.NewCollector()
		run.Subscribe(collector.Observe)
	}

	for _, arg := range rc.flags.Listeners {
		path, typ, err := parseListener(arg)
		if err != nil {
			return exitcodes.Usage(err)
		}
		l, err := ui.LoadFactoryListener(run.Loader(), path, typ, map[string]any{"run_id": run.ID()})
		if err != nil {
			return exitcodes.Usage(fmt.Errorf("loading listener %s: %w", arg, err))
		}
		defer l.Close()
		run.Subscribe(l.Observe)
	}

	executor, err := execution.NewExecutor(run)
	if err != nil {
		return exitcodes.Usage(fmt.Errorf("loading suite: %w", err))
	}
	success, err := executor.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	report := run.Report()
	console.PrintSummary(report.Summary, report.Crashed)

	if err := lastRunStorage(rc.config).Save(report); err != nil {
		return fmt.Errorf("failed to save test results: %w", err)
	}
	if rc.config.HistoryDSN != "" {
		rc.saveHistory(ctx, report)
	}
	if collector != nil {
		if err := collector.WriteTextfile(rc.config.MetricsFile); err != nil {
			logging.Warn("Run", "writing metrics to %s: %v", rc.config.MetricsFile, err)
		}
	}

	if ctx.Err() != nil {
		color.New(color.FgYellow).Fprintln(cmd.OutOrStdout(), "Run interrupted")
	}
	if rc.flags.OpenFaults && len(report.Faults()) > 0 {
		if err := rc.viewer.View(&report); err != nil {
			return err
		}
	}

	if code := exitcodes.ForRun(success, report.Crashed); code != exitcodes.Success {
		return exitcodes.New(code, nil)
	}
	return nil
}

// saveHistory stores the run in MySQL. History is best effort: the run
// result does not depend on it.
func (rc *RunCommand) saveHistory(ctx context.Context, report domain.RunReport) {
	st, err := storage.OpenMySQL(context.WithoutCancel(ctx), rc.config.HistoryDSN)
	if err != nil {
		logging.Error("History", err, "opening history database")
		return
	}
	defer st.Close()
	if err := st.SaveContext(context.WithoutCancel(ctx), report); err != nil {
		logging.Error("History", err, "saving run %s", report.RunID)
	}
}
