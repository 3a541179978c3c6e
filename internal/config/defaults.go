package config

import "time"

const (
	// DefaultProjectPath is the default project path
	DefaultProjectPath = "."
	// DefaultTestPath is the default test directory, relative to the project
	DefaultTestPath = "test"
	// DefaultModuleSuffix is the file suffix of test modules
	DefaultModuleSuffix = ".so"
	// DefaultOutputJSONFile is the default output JSON file name
	DefaultOutputJSONFile = "last-run.json"
	// DefaultOutputJSONDir is the default output directory
	DefaultOutputJSONDir = ".gocut"
	// DefaultMaxThreads runs test cases one after another
	DefaultMaxThreads = 1
	// DefaultForkTimeout bounds a forked test
	DefaultForkTimeout = 5 * time.Minute
	// DefaultLogLevel is the level used when none is configured
	DefaultLogLevel = "warn"
	// DefaultConfigFile is looked up in the project directory
	DefaultConfigFile = "gocut.yaml"
	// DefaultEnvFile is looked up in the project directory
	DefaultEnvFile = ".env"
)

// DefaultPathsToIgnore are the default directories to ignore when scanning for tests
var DefaultPathsToIgnore = []string{
	"vendor",
	"node_modules",
	"testdata",
	".gocut",
}
