package execution

import (
	"fmt"
	"sort"
	"sync"

	"gocut/internal/discovery"
	"gocut/internal/domain"
)

// SuiteSource builds the suite a run executes. Sources are looked up by
// name so child processes can rebuild the same suite from Options alone.
type SuiteSource func(rc *RunContext) (*domain.TestSuite, error)

// ModuleSource loads test cases from modules under Options.TestDirectory.
const ModuleSource = "modules"

var (
	sourcesMu sync.RWMutex
	sources   = map[string]SuiteSource{}
)

func init() {
	RegisterSuiteSource(ModuleSource, loadModules)
}

// RegisterSuiteSource makes src available under name. It is meant to be
// called from init functions; registering a name twice panics.
func RegisterSuiteSource(name string, src SuiteSource) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	if _, dup := sources[name]; dup {
		panic(fmt.Sprintf("execution: suite source %q registered twice", name))
	}
	sources[name] = src
}

// SuiteSources lists the registered source names.
func SuiteSources() []string {
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupSource(name string) (SuiteSource, error) {
	if name == "" {
		name = ModuleSource
	}
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()
	src, ok := sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown suite source %q", name)
	}
	return src, nil
}

func (o Options) filters() (cases, tests *discovery.Filter, err error) {
	if o.ShardTestCaseNames != nil {
		cases = discovery.ExactFilter(o.ShardTestCaseNames)
	} else if cases, err = discovery.NewFilter(o.TargetTestCaseNames); err != nil {
		return nil, nil, fmt.Errorf("test case filter: %w", err)
	}
	if tests, err = discovery.NewFilter(o.TargetTestNames); err != nil {
		return nil, nil, fmt.Errorf("test filter: %w", err)
	}
	return cases, tests, nil
}

func loadModules(rc *RunContext) (*domain.TestSuite, error) {
	cases, tests, err := rc.opts.filters()
	if err != nil {
		return nil, err
	}
	return rc.loader.LoadSuite(rc.opts.TestDirectory, discovery.SuiteOptions{
		Name:        rc.opts.SuiteName,
		ExcludeDirs: rc.opts.ExcludeDirectories,
		Cases:       cases,
		Tests:       tests,
	})
}

// LoadSuite builds the suite from the configured source and applies the
// name filters.
func (rc *RunContext) LoadSuite() (*domain.TestSuite, error) {
	rc.setState(StateLoading)
	src, err := lookupSource(rc.opts.SuiteSource)
	if err != nil {
		return nil, err
	}
	suite, err := src(rc)
	if err != nil {
		return nil, err
	}
	if suite.Name == "" {
		suite.Name = rc.opts.SuiteName
	}

	cases, tests, err := rc.opts.filters()
	if err != nil {
		return nil, err
	}
	return filterSuite(suite, cases, tests), nil
}

// filterSuite returns a copy of suite holding only the selected cases and
// tests. Cases left without tests are dropped.
func filterSuite(suite *domain.TestSuite, cases, tests *discovery.Filter) *domain.TestSuite {
	if cases.Empty() && tests.Empty() {
		return suite
	}
	out := domain.NewTestSuite(suite.Name)
	out.Warmup, out.Cooldown = suite.Warmup, suite.Cooldown
	for _, tc := range suite.Cases {
		if !cases.Match(tc.Name) {
			continue
		}
		kept := &domain.TestCase{
			Name:     tc.Name,
			Setup:    tc.Setup,
			Teardown: tc.Teardown,
			Startup:  tc.Startup,
			Shutdown: tc.Shutdown,
		}
		for _, t := range tc.Tests {
			if tests.Match(t.Name) {
				kept.AddTest(t)
			}
		}
		if len(kept.Tests) > 0 {
			out.AddCase(kept)
		}
	}
	return out
}
