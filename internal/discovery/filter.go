package discovery

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Filter selects names by a list of patterns. A pattern is either
// "/regexp/", a shell wildcard using * ? or [...], or an exact name. An
// empty filter matches everything.
type Filter struct {
	exact    map[string]bool
	globs    []string
	patterns []*regexp.Regexp
	// closed filters match only their exact names, even when empty.
	closed bool
}

// NewFilter compiles the given patterns.
func NewFilter(patterns []string) (*Filter, error) {
	f := &Filter{exact: make(map[string]bool)}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		switch {
		case p == "":
			continue
		case len(p) > 1 && strings.HasPrefix(p, "/") && strings.HasSuffix(p, "/"):
			re, err := regexp.Compile(p[1 : len(p)-1])
			if err != nil {
				return nil, fmt.Errorf("invalid name pattern %q: %w", p, err)
			}
			f.patterns = append(f.patterns, re)
		case strings.ContainsAny(p, "*?["):
			if _, err := filepath.Match(p, ""); err != nil {
				return nil, fmt.Errorf("invalid name pattern %q: %w", p, err)
			}
			f.globs = append(f.globs, p)
		default:
			f.exact[p] = true
		}
	}
	return f, nil
}

// ExactFilter matches the given names literally, without reading them as
// wildcards or regular expressions. An ExactFilter with no names matches
// nothing.
func ExactFilter(names []string) *Filter {
	f := &Filter{exact: make(map[string]bool, len(names)), closed: true}
	for _, n := range names {
		f.exact[n] = true
	}
	return f
}

// MustFilter is NewFilter for patterns known to be valid.
func MustFilter(patterns ...string) *Filter {
	f, err := NewFilter(patterns)
	if err != nil {
		panic(err)
	}
	return f
}

// Empty reports whether the filter lets every name through.
func (f *Filter) Empty() bool {
	return f == nil || (!f.closed && len(f.exact) == 0 && len(f.globs) == 0 && len(f.patterns) == 0)
}

func (f *Filter) Match(name string) bool {
	if f.Empty() {
		return true
	}
	if f.exact[name] {
		return true
	}
	for _, g := range f.globs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	for _, re := range f.patterns {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Apply returns the names that match, keeping their order.
func (f *Filter) Apply(names []string) []string {
	if f.Empty() {
		return names
	}
	var filtered []string
	for _, n := range names {
		if f.Match(n) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}
