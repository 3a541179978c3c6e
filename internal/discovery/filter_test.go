package discovery

import (
	"testing"
)

func TestFilter_Match(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		names    []string
		expected []string
	}{
		{
			name:     "empty filter keeps all",
			patterns: nil,
			names:    []string{"test_a", "test_b"},
			expected: []string{"test_a", "test_b"},
		},
		{
			name:     "exact name",
			patterns: []string{"test_a"},
			names:    []string{"test_a", "test_ab", "test_b"},
			expected: []string{"test_a"},
		},
		{
			name:     "wildcard",
			patterns: []string{"test_user_*"},
			names:    []string{"test_user_login", "test_user_logout", "test_payment"},
			expected: []string{"test_user_login", "test_user_logout"},
		},
		{
			name:     "regexp",
			patterns: []string{"/^test_(add|sub)$/"},
			names:    []string{"test_add", "test_sub", "test_addition"},
			expected: []string{"test_add", "test_sub"},
		},
		{
			name:     "any of several patterns",
			patterns: []string{"test_a", "/b$/"},
			names:    []string{"test_a", "test_b", "test_c"},
			expected: []string{"test_a", "test_b"},
		},
		{
			name:     "matching is case sensitive",
			patterns: []string{"Test_A"},
			names:    []string{"test_a"},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFilter(tt.patterns)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			result := f.Apply(tt.names)
			if len(result) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, result)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("expected %v, got %v", tt.expected, result)
				}
			}
		})
	}
}

func TestFilter_InvalidPatterns(t *testing.T) {
	for _, p := range []string{"/(unclosed/", "[broken"} {
		if _, err := NewFilter([]string{p}); err == nil {
			t.Errorf("expected error for %q", p)
		}
	}
}

func TestFilter_NilIsEmpty(t *testing.T) {
	var f *Filter
	if !f.Empty() || !f.Match("anything") {
		t.Error("nil filter should match everything")
	}
}

func TestExactFilter(t *testing.T) {
	f := ExactFilter([]string{"a*", "/x/"})
	tests := []struct {
		name string
		want bool
	}{
		{"a*", true},
		{"/x/", true},
		{"ab", false},
		{"x", false},
	}
	for _, tt := range tests {
		if got := f.Match(tt.name); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}

	none := ExactFilter(nil)
	if none.Empty() || none.Match("anything") {
		t.Error("empty exact filter should match nothing")
	}
}
