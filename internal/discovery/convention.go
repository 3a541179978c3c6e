package discovery

import (
	"fmt"
	"strings"

	"gocut/internal/domain"
	"gocut/internal/logging"
)

const (
	testPrefix       = "test_"
	dataPrefix       = "data_"
	attributesPrefix = "attributes_"
)

var hookNames = map[string]bool{
	"setup": true, "cut_setup": true,
	"teardown": true, "cut_teardown": true,
	"cut_startup": true, "cut_shutdown": true,
}

// BuildTestCase turns the symbols of a module into a test case. Symbols are
// matched by exact, case-sensitive prefix; a symbol with a known prefix but
// the wrong function type is skipped.
func BuildTestCase(name string, src SymbolSource) (*domain.TestCase, error) {
	symbols, err := src.Symbols()
	if err != nil {
		return nil, fmt.Errorf("listing symbols of %s: %w", name, err)
	}

	tc := domain.NewTestCase(name)
	tc.Setup = hook(src, "cut_setup", "setup")
	tc.Teardown = hook(src, "cut_teardown", "teardown")
	tc.Startup = hook(src, "cut_startup")
	tc.Shutdown = hook(src, "cut_shutdown")

	for _, sym := range symbols {
		if !strings.HasPrefix(sym, testPrefix) || len(sym) == len(testPrefix) {
			continue
		}
		test := buildTest(src, sym)
		if test == nil {
			continue
		}
		test.Attributes = collectAttributes(src, symbols, sym)
		tc.AddTest(test)
	}
	return tc, nil
}

func buildTest(src SymbolSource, name string) *domain.Test {
	v, err := src.Lookup(name)
	if err != nil {
		logging.Debug("Loader", "skipping %s: %v", name, err)
		return nil
	}
	switch fn := v.(type) {
	case func():
		return domain.NewTest(name, fn)
	case func(any):
		dataName := dataPrefix + strings.TrimPrefix(name, testPrefix)
		setup, ok := lookupFunc(src, dataName)
		if !ok {
			logging.Debug("Loader", "skipping iterated test %s: no %s", name, dataName)
			return nil
		}
		return domain.NewIteratedTest(name, fn, setup)
	default:
		logging.Debug("Loader", "skipping %s: unsupported signature %T", name, v)
		return nil
	}
}

// hook resolves the first of names that is a func(). The cut_ forms are
// passed first so they win over the plain names.
func hook(src SymbolSource, names ...string) domain.HookFunc {
	for _, n := range names {
		if fn, ok := lookupFunc(src, n); ok {
			return fn
		}
	}
	return nil
}

func lookupFunc(src SymbolSource, name string) (func(), bool) {
	v, err := src.Lookup(name)
	if err != nil {
		return nil, false
	}
	fn, ok := v.(func())
	if !ok {
		logging.Debug("Loader", "ignoring %s: unsupported signature %T", name, v)
	}
	return fn, ok
}

// collectAttributes gathers attributes_<suffix> (a func returning a map)
// and <attr>_<suffix> (a func returning the value) for a test.
func collectAttributes(src SymbolSource, symbols []string, testName string) domain.Attributes {
	suffix := "_" + strings.TrimPrefix(testName, testPrefix)
	attrs := domain.Attributes{}
	for _, sym := range symbols {
		if !strings.HasSuffix(sym, suffix) || len(sym) == len(suffix) {
			continue
		}
		if strings.HasPrefix(sym, testPrefix) || strings.HasPrefix(sym, dataPrefix) || hookNames[sym] {
			continue
		}
		v, err := src.Lookup(sym)
		if err != nil {
			continue
		}
		if sym == strings.TrimSuffix(attributesPrefix, "_")+suffix {
			if fn, ok := v.(func() map[string]string); ok {
				for k, val := range fn() {
					attrs[k] = val
				}
			}
			continue
		}
		if fn, ok := v.(func() string); ok {
			attrs[strings.TrimSuffix(sym, suffix)] = fn()
		}
	}
	return attrs
}

// SuiteHooks resolves <prefix>_warmup and <prefix>_cooldown.
func SuiteHooks(prefix string, src SymbolSource) (warmup, cooldown domain.HookFunc) {
	warmup = hook(src, prefix+"_warmup")
	cooldown = hook(src, prefix+"_cooldown")
	return warmup, cooldown
}
