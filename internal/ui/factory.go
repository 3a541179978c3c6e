package ui

import (
	"fmt"
	"strconv"

	"gocut/internal/discovery"
	"gocut/internal/event"
	"gocut/internal/logging"
)

// ListenerFunc is what a listener factory type must instantiate: a
// function receiving the event kind name and its flattened fields.
type ListenerFunc func(kind string, fields map[string]string)

// FactoryListener forwards run events to a listener created by a factory
// module.
type FactoryListener struct {
	loader  *discovery.Loader
	factory *discovery.Factory
	typ     string
	fn      ListenerFunc
}

// LoadFactoryListener loads the factory module at path and instantiates
// typ with props.
func LoadFactoryListener(loader *discovery.Loader, path, typ string, props map[string]any) (*FactoryListener, error) {
	f, err := loader.LoadFactory(path)
	if err != nil {
		return nil, err
	}
	v, err := f.Instantiate(typ, props)
	if err != nil {
		f.Close(loader)
		return nil, fmt.Errorf("instantiating listener %s: %w", typ, err)
	}

	var fn ListenerFunc
	switch l := v.(type) {
	case ListenerFunc:
		fn = l
	case func(string, map[string]string):
		fn = l
	default:
		f.Close(loader)
		return nil, fmt.Errorf("%w: %s: type %s is not a listener (%T)", discovery.ErrInvalidFormat, path, typ, v)
	}

	domain := f.LogDomain()
	if domain == "" {
		domain = "Listener"
	}
	logging.Debug(domain, "loaded listener %s from %s", typ, path)
	return &FactoryListener{loader: loader, factory: f, typ: typ, fn: fn}, nil
}

// Observe forwards e to the listener.
func (l *FactoryListener) Observe(e event.Event) {
	l.fn(e.Kind.String(), EventFields(e))
}

// Close releases the factory module.
func (l *FactoryListener) Close() {
	l.factory.Close(l.loader)
}

// EventFields flattens an event into string fields.
func EventFields(e event.Event) map[string]string {
	fields := map[string]string{"run_id": e.RunID}
	if e.Source != "" {
		fields["source"] = e.Source
	}
	if e.Suite != nil {
		fields["suite"] = e.Suite.Name
	}
	if e.Case != nil {
		fields["case"] = e.Case.Name
	}
	if e.Test != nil {
		fields["test"] = e.Test.Name
	}
	if e.Data != nil {
		fields["data"] = e.Data.Name
	}
	if e.Result != nil {
		fields["status"] = e.Result.Status().String()
		fields["name"] = e.Result.FullName()
		if msg := e.Result.Message(); msg != "" {
			fields["message"] = msg
		}
		if loc := e.Result.Location(); loc.File != "" {
			fields["location"] = loc.String()
		}
	}
	switch e.Kind {
	case event.CompleteTest, event.CompleteIteratedTest, event.CompleteCase, event.CompleteSuite:
		fields["success"] = strconv.FormatBool(e.Success)
	case event.ReadySuite:
		fields["cases"] = strconv.Itoa(e.TotalCases)
		fields["tests"] = strconv.Itoa(e.TotalTests)
	}
	return fields
}
