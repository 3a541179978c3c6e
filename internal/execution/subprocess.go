package execution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/errgroup"

	"gocut/internal/domain"
	"gocut/internal/event"
	"gocut/internal/logging"
	"gocut/internal/parser"
	"gocut/internal/process"
)

// suiteEntry is the child entry that runs a whole suite.
const suiteEntry = "gocut.suite"

// Exit statuses of a suite process.
const (
	exitSuiteOK     = 0
	exitSuiteFailed = 1
	exitSuiteLoad   = 2
)

func init() {
	process.Register(suiteEntry, runSuiteProcess)
}

// SubProcess runs a suite in a child process. Its events are decoded from
// the child's result stream and re-emitted on a mirror RunContext whose
// parent is the caller's context.
type SubProcess struct {
	opts        Options
	mirror      *RunContext
	suiteEvents bool
	proc        *process.Process
}

// NewSubProcess creates a child run of opts reporting into parent, which
// may be nil.
func NewSubProcess(parent *RunContext, opts Options) *SubProcess {
	opts.Processes = 0
	mirror := NewRunContext(opts)
	if parent != nil {
		mirror.SetParent(parent)
	}
	return &SubProcess{opts: opts, mirror: mirror, suiteEvents: true}
}

// RunContext is the mirror of the child's run.
func (s *SubProcess) RunContext() *RunContext { return s.mirror }

// ForwardSuiteEvents controls whether the child's ready-suite, start-suite
// and complete-suite events are re-emitted. A pipeline turns them off and
// reports its own.
func (s *SubProcess) ForwardSuiteEvents(on bool) {
	s.suiteEvents = on
}

func (s *SubProcess) Pid() int {
	if s.proc == nil {
		return 0
	}
	return s.proc.Pid()
}

// RunAsync starts the child and returns without waiting for it.
func (s *SubProcess) RunAsync(ctx context.Context) error {
	payload, err := json.Marshal(s.opts)
	if err != nil {
		return fmt.Errorf("encoding sub process options: %w", err)
	}
	p, err := process.Spawn(ctx, suiteEntry, []string{"-options", string(payload)}, process.Options{ResultPipe: true})
	if err != nil {
		return err
	}
	s.proc = p
	s.mirror.setState(StateRunning)
	return nil
}

// Wait blocks until the child exits, replays its events and reports
// whether its run succeeded.
func (s *SubProcess) Wait() (bool, error) {
	if s.proc == nil {
		return false, errors.New("sub process was not started")
	}
	code, err := s.proc.Wait(0)
	if err != nil {
		logging.Warn("SubProcess", "waiting for suite process %d: %v", s.proc.Pid(), err)
	}

	perr := parser.NewStreamParser(nil).Parse(bytes.NewReader(s.proc.Results()), func(e event.Event) {
		if !s.suiteEvents && isSuiteEvent(e.Kind) {
			return
		}
		s.mirror.Emit(e)
	})
	if perr != nil {
		perr = fmt.Errorf("reading events of suite process %d: %w", s.proc.Pid(), perr)
	}

	switch {
	case code == exitSuiteOK || code == exitSuiteFailed:
	case code == exitSuiteLoad:
		s.emitProcessResult(domain.StatusError, fmt.Sprintf("suite process %d could not load its suite", s.proc.Pid()))
	default:
		s.emitProcessResult(domain.StatusCrash, fmt.Sprintf("suite process %d crashed: %s", s.proc.Pid(), s.proc.State()))
	}
	s.mirror.finish()
	return code == exitSuiteOK && s.mirror.Success(), perr
}

func (s *SubProcess) emitProcessResult(status domain.Status, msg string) {
	res := domain.NewTestResult(domain.ResultSpec{
		Status:    status,
		SuiteName: s.opts.SuiteName,
		Message:   msg,
		Stdout:    s.proc.Stdout(),
		Stderr:    s.proc.Stderr(),
	})
	s.mirror.Emit(event.Event{Kind: event.KindForStatus(status), Result: &res})
}

// Run starts the child and waits for it.
func (s *SubProcess) Run(ctx context.Context) (bool, error) {
	if err := s.RunAsync(ctx); err != nil {
		return false, err
	}
	return s.Wait()
}

func isSuiteEvent(k event.Kind) bool {
	return k == event.ReadySuite || k == event.StartSuite || k == event.CompleteSuite
}

// SubProcessGroup runs several sub processes concurrently. Results are
// collected from every member whatever order they finish in.
type SubProcessGroup struct {
	parent  *RunContext
	members []*SubProcess
	eg      *errgroup.Group
	success []bool
}

func NewSubProcessGroup(parent *RunContext) *SubProcessGroup {
	return &SubProcessGroup{parent: parent}
}

// Add creates a member running opts.
func (g *SubProcessGroup) Add(opts Options) *SubProcess {
	sp := NewSubProcess(g.parent, opts)
	g.members = append(g.members, sp)
	return sp
}

func (g *SubProcessGroup) Members() []*SubProcess { return g.members }

// RunAsync starts every member. Members started before a failing one keep
// running and are still collected by Wait.
func (g *SubProcessGroup) RunAsync(ctx context.Context) error {
	g.eg = new(errgroup.Group)
	g.success = make([]bool, len(g.members))
	for i, sp := range g.members {
		if err := sp.RunAsync(ctx); err != nil {
			return fmt.Errorf("starting sub process %d of %d: %w", i+1, len(g.members), err)
		}
		g.eg.Go(func() error {
			ok, err := sp.Wait()
			g.success[i] = ok
			return err
		})
	}
	return nil
}

// Wait blocks until every started member finished and reports whether all
// of them succeeded.
func (g *SubProcessGroup) Wait() (bool, error) {
	if g.eg == nil {
		return len(g.members) == 0, nil
	}
	err := g.eg.Wait()
	for i, sp := range g.members {
		if sp.proc == nil || !g.success[i] {
			return false, err
		}
	}
	return true, err
}

func (g *SubProcessGroup) Run(ctx context.Context) (bool, error) {
	if err := g.RunAsync(ctx); err != nil {
		g.Wait()
		return false, err
	}
	return g.Wait()
}

// runSuiteProcess is the child side of SubProcess.
func runSuiteProcess(args []string) int {
	fs := flag.NewFlagSet(suiteEntry, flag.ContinueOnError)
	raw := fs.String("options", "", "JSON encoded run options")
	if err := fs.Parse(args); err != nil {
		return exitSuiteLoad
	}
	var opts Options
	if err := json.Unmarshal([]byte(*raw), &opts); err != nil {
		fmt.Fprintf(os.Stderr, "gocut: bad run options: %v\n", err)
		return exitSuiteLoad
	}

	var out io.Writer = io.Discard
	if w := process.ResultPipe(); w != nil {
		defer w.Close()
		out = w
	}

	rc := NewRunContext(opts)
	enc := parser.NewEncoder(out)
	rc.Subscribe(func(e event.Event) {
		if err := enc.Encode(e); err != nil {
			fmt.Fprintf(os.Stderr, "gocut: writing event: %v\n", err)
		}
	})

	exec, err := NewExecutor(rc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gocut: %v\n", err)
		return exitSuiteLoad
	}
	if ok, _ := exec.Run(context.Background()); !ok {
		return exitSuiteFailed
	}
	return exitSuiteOK
}
