package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultModuleSuffix is the file suffix of loadable test modules.
const DefaultModuleSuffix = ".so"

// Scanner scans for test modules in a directory
type Scanner struct {
	suffix   string
	skipDirs map[string]bool
}

// NewScanner creates a new Scanner matching files with suffix and skipping
// the given directory names
func NewScanner(suffix string, skipDirs []string) *Scanner {
	if suffix == "" {
		suffix = DefaultModuleSuffix
	}
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{suffix: suffix, skipDirs: skipMap}
}

func (s *Scanner) Suffix() string { return s.suffix }

// Scan finds all module files in the given root directory, in lexical
// order
func (s *Scanner) Scan(root string) ([]string, error) {
	var modules []string

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if s.skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasSuffix(d.Name(), s.suffix) && !strings.HasPrefix(d.Name(), ".") {
			modules = append(modules, path)
		}
		return nil
	})

	return modules, err
}

// CaseName derives a test case name from a module path: the base name
// without a leading "lib" or "test_" and without the suffix.
func CaseName(path, suffix string) string {
	name := strings.TrimSuffix(filepath.Base(path), suffix)
	name = strings.TrimPrefix(name, "lib")
	name = strings.TrimPrefix(name, "test_")
	return name
}

// SuitePrefix returns the hook prefix of a suite module ("suite_<prefix>"
// plus suffix) and whether path names one.
func SuitePrefix(path, suffix string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasPrefix(base, suitePrefix) || !strings.HasSuffix(base, suffix) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(base, suitePrefix), suffix), true
}

const suitePrefix = "suite_"
