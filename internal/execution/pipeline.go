package execution

import (
	"context"

	"gocut/internal/discovery"
	"gocut/internal/domain"
	"gocut/internal/event"
	"gocut/internal/logging"
	"gocut/internal/process"
)

// Pipeline splits a suite's test cases over Options.Processes child
// processes and merges their events into one run. Every child runs the
// suite's warmup and cooldown for its own share of cases.
type Pipeline struct {
	rc        *RunContext
	scheduler Scheduler
}

// NewPipeline creates a new Pipeline
func NewPipeline(rc *RunContext) *Pipeline {
	return &Pipeline{rc: rc, scheduler: NewRoundRobinScheduler()}
}

func (p *Pipeline) SetScheduler(s Scheduler) {
	p.scheduler = s
}

func (p *Pipeline) Run(ctx context.Context) (bool, error) {
	rc := p.rc
	if !process.Supported() {
		logging.Warn("Pipeline", "%v, running %d processes' worth of cases in this one", process.ErrForkUnsupported, rc.opts.Processes)
		suite, err := rc.LoadSuite()
		if err != nil {
			return false, err
		}
		return NewTestRunner(rc, suite).Run(ctx)
	}

	names, tests, err := p.caseNames()
	if err != nil {
		return false, err
	}

	rc.setState(StateRunning)
	suite := domain.NewTestSuite(rc.opts.SuiteName)
	rc.Emit(event.Event{Kind: event.ReadySuite, Suite: suite, TotalCases: len(names), TotalTests: tests})
	rc.Emit(event.Event{Kind: event.StartSuite, Suite: suite})

	group := NewSubProcessGroup(rc)
	for _, shard := range p.scheduler.Schedule(names, rc.opts.Processes) {
		opts := rc.opts
		opts.TargetTestCaseNames = nil
		opts.ShardTestCaseNames = shard
		group.Add(opts).ForwardSuiteEvents(false)
	}
	logging.Info("Pipeline", "running %d cases in %d processes", len(names), len(group.Members()))

	ok, err := group.Run(ctx)
	rc.Emit(event.Event{Kind: event.CompleteSuite, Suite: suite, Success: ok && rc.Success()})
	rc.finish()
	return rc.Success(), err
}

// caseNames lists the selected test cases without loading any module. The
// test count is known only for suites built in process and is zero for
// module directories.
func (p *Pipeline) caseNames() (names []string, tests int, err error) {
	rc := p.rc
	if rc.opts.SuiteSource != "" && rc.opts.SuiteSource != ModuleSource {
		suite, err := rc.LoadSuite()
		if err != nil {
			return nil, 0, err
		}
		names = make([]string, 0, len(suite.Cases))
		for _, tc := range suite.Cases {
			names = append(names, tc.Name)
		}
		return SortNames(names, rc.opts.Order), suite.TestCount(), nil
	}

	rc.setState(StateLoading)
	cases, _, err := rc.opts.filters()
	if err != nil {
		return nil, 0, err
	}
	suffix := rc.loader.Suffix()
	paths, err := discovery.NewScanner(suffix, rc.opts.ExcludeDirectories).Scan(rc.opts.TestDirectory)
	if err != nil {
		return nil, 0, err
	}
	for _, path := range paths {
		if _, ok := discovery.SuitePrefix(path, suffix); ok {
			continue
		}
		if name := discovery.CaseName(path, suffix); cases.Match(name) {
			names = append(names, name)
		}
	}
	return SortNames(names, rc.opts.Order), 0, nil
}
