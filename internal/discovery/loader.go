// Package discovery finds test modules on disk, opens them and turns their
// exported symbols into a test tree.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gocut/internal/domain"
	"gocut/internal/logging"
)

var (
	ErrNotFound      = errors.New("module not found")
	ErrInvalidFormat = errors.New("invalid module format")
)

// Opener opens the module at path.
type Opener func(path string) (SymbolSource, error)

// Module is a loaded module and its symbol table.
type Module struct {
	Path   string
	Source SymbolSource

	refs int
}

// Loader opens modules and caches them by cleaned absolute path. Loading a
// cached path returns the same *Module and takes another reference.
type Loader struct {
	mu     sync.Mutex
	open   Opener
	suffix string
	cache  map[string]*Module
}

type LoaderOption func(*Loader)

// WithOpener replaces OpenModule.
func WithOpener(o Opener) LoaderOption {
	return func(l *Loader) { l.open = o }
}

// WithSuffix sets the module file suffix used to derive case names.
func WithSuffix(suffix string) LoaderOption {
	return func(l *Loader) { l.suffix = suffix }
}

func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		open:   OpenModule,
		suffix: DefaultModuleSuffix,
		cache:  make(map[string]*Module),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Suffix is the module file suffix.
func (l *Loader) Suffix() string { return l.suffix }

// Load opens the module at path, or returns the cached one.
func (l *Loader) Load(path string) (*Module, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, path, err)
	}
	abs = filepath.Clean(abs)

	l.mu.Lock()
	defer l.mu.Unlock()

	if m, ok := l.cache[abs]; ok {
		m.refs++
		return m, nil
	}

	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, abs, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidFormat, abs)
	}

	src, err := l.open(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFormat, abs, err)
	}
	m := &Module{Path: abs, Source: src, refs: 1}
	l.cache[abs] = m
	logging.Debug("Loader", "loaded module %s", abs)
	return m, nil
}

// Unload drops one reference. The module leaves the cache when none are
// left.
func (l *Loader) Unload(m *Module) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if m.refs > 0 {
		m.refs--
	}
	if m.refs == 0 && l.cache[m.Path] == m {
		delete(l.cache, m.Path)
	}
}

// Loaded lists the cached module paths.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	paths := make([]string, 0, len(l.cache))
	for p := range l.cache {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// LoadTestCase loads a module and builds its test case.
func (l *Loader) LoadTestCase(path string) (*domain.TestCase, error) {
	m, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	return BuildTestCase(CaseName(path, l.suffix), m.Source)
}

// SuiteOptions select which modules and tests LoadSuite keeps.
type SuiteOptions struct {
	Name        string
	ExcludeDirs []string
	Cases       *Filter
	Tests       *Filter
}

// LoadSuite scans dir for modules and builds a suite. Modules named
// suite_<prefix> supply the warmup and cooldown hooks; every other module
// becomes a test case. Modules that fail to load are logged and skipped,
// as are cases left without tests after filtering.
func (l *Loader) LoadSuite(dir string, opts SuiteOptions) (*domain.TestSuite, error) {
	paths, err := NewScanner(l.suffix, opts.ExcludeDirs).Scan(dir)
	if err != nil {
		return nil, err
	}

	suite := domain.NewTestSuite(opts.Name)
	for _, path := range paths {
		if prefix, ok := SuitePrefix(path, l.suffix); ok {
			m, err := l.Load(path)
			if err != nil {
				logging.Warn("Loader", "skipping suite module %s: %v", path, err)
				continue
			}
			suite.Warmup, suite.Cooldown = SuiteHooks(prefix, m.Source)
			continue
		}

		name := CaseName(path, l.suffix)
		if !opts.Cases.Match(name) {
			continue
		}
		tc, err := l.LoadTestCase(path)
		if err != nil {
			logging.Warn("Loader", "skipping %s: %v", path, err)
			continue
		}
		if !opts.Tests.Empty() {
			kept := tc.Tests[:0]
			for _, t := range tc.Tests {
				if opts.Tests.Match(t.Name) {
					kept = append(kept, t)
				}
			}
			tc.Tests = kept
		}
		if len(tc.Tests) == 0 {
			logging.Debug("Loader", "no tests selected in %s", path)
			continue
		}
		suite.AddCase(tc)
	}
	return suite, nil
}
