package discovery

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanner_Scan(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "gocut-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	files := []string{
		"unit/libmath.so",
		"unit/test_strings.so",
		"integration/suite_db.so",
		"integration/notes.txt",
		"vendor/libdep.so",
		".cache/libhidden.so",
		"unit/.libtmp.so",
	}
	for _, file := range files {
		fullPath := filepath.Join(tmpDir, file)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", file, err)
		}
		if err := os.WriteFile(fullPath, []byte("module"), 0644); err != nil {
			t.Fatalf("failed to create file %s: %v", file, err)
		}
	}

	scanner := NewScanner("", []string{"vendor"})

	t.Run("finds modules outside skipped and hidden dirs", func(t *testing.T) {
		results, err := scanner.Scan(tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := []string{
			filepath.Join(tmpDir, "integration/suite_db.so"),
			filepath.Join(tmpDir, "unit/libmath.so"),
			filepath.Join(tmpDir, "unit/test_strings.so"),
		}
		if len(results) != len(want) {
			t.Fatalf("expected %d modules, got %d: %v", len(want), len(results), results)
		}
		for i := range want {
			if results[i] != want[i] {
				t.Errorf("result %d: expected %s, got %s", i, want[i], results[i])
			}
		}
	})

	t.Run("custom suffix", func(t *testing.T) {
		results, err := NewScanner(".txt", nil).Scan(tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 1 {
			t.Errorf("expected 1 match, got %d", len(results))
		}
	})

	t.Run("returns error for non-existent directory", func(t *testing.T) {
		_, err := scanner.Scan("/non/existent/path")
		if err == nil {
			t.Error("expected error for non-existent directory")
		}
	})

	t.Run("returns error for file instead of directory", func(t *testing.T) {
		_, err := scanner.Scan(filepath.Join(tmpDir, "unit/libmath.so"))
		if err == nil {
			t.Error("expected error for file path")
		}
	})
}

func TestCaseName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/tests/libmath.so", "math"},
		{"/tests/test_strings.so", "strings"},
		{"libtest_io.so", "io"},
		{"plain.so", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := CaseName(tt.path, ".so"); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestSuitePrefix(t *testing.T) {
	prefix, ok := SuitePrefix("/tests/suite_db.so", ".so")
	if !ok || prefix != "db" {
		t.Errorf("expected db, got %q (%v)", prefix, ok)
	}
	if _, ok := SuitePrefix("/tests/libdb.so", ".so"); ok {
		t.Error("expected non-suite module to be rejected")
	}
}
