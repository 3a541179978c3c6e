package discovery

import "fmt"

// Factory is a module implementing the factory contract: it registers a
// set of type names, creates instances of them from a property list and
// unregisters them on shutdown.
type Factory struct {
	Module *Module

	registerTypes   func() []string
	unregisterTypes func()
	instantiate     func(name string, props map[string]any) (any, error)
	logDomain       func() string

	types []string
}

// LoadFactory loads a factory module. register_types, unregister_types and
// instantiate are required; log_domain is optional.
func (l *Loader) LoadFactory(path string) (*Factory, error) {
	m, err := l.Load(path)
	if err != nil {
		return nil, err
	}
	f := &Factory{Module: m}

	var ok bool
	if f.registerTypes, ok = resolve[func() []string](m, "register_types"); !ok {
		l.Unload(m)
		return nil, fmt.Errorf("%w: %s: missing register_types", ErrInvalidFormat, path)
	}
	if f.unregisterTypes, ok = resolve[func()](m, "unregister_types"); !ok {
		l.Unload(m)
		return nil, fmt.Errorf("%w: %s: missing unregister_types", ErrInvalidFormat, path)
	}
	if f.instantiate, ok = resolve[func(string, map[string]any) (any, error)](m, "instantiate"); !ok {
		l.Unload(m)
		return nil, fmt.Errorf("%w: %s: missing instantiate", ErrInvalidFormat, path)
	}
	f.logDomain, _ = resolve[func() string](m, "log_domain")

	f.types = f.registerTypes()
	return f, nil
}

func resolve[T any](m *Module, name string) (T, bool) {
	var zero T
	v, err := m.Source.Lookup(name)
	if err != nil {
		return zero, false
	}
	fn, ok := v.(T)
	return fn, ok
}

// Types are the names registered when the factory was loaded.
func (f *Factory) Types() []string {
	return append([]string(nil), f.types...)
}

// LogDomain is the module's log domain, or "" if it declares none.
func (f *Factory) LogDomain() string {
	if f.logDomain == nil {
		return ""
	}
	return f.logDomain()
}

// Instantiate creates an instance of a registered type.
func (f *Factory) Instantiate(name string, props map[string]any) (any, error) {
	for _, t := range f.types {
		if t == name {
			return f.instantiate(name, props)
		}
	}
	return nil, fmt.Errorf("factory %s does not provide type %q", f.Module.Path, name)
}

// Close unregisters the factory's types and releases the module.
func (f *Factory) Close(l *Loader) {
	f.unregisterTypes()
	l.Unload(f.Module)
}
