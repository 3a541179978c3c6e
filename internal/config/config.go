package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gocut/internal/execution"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "GOCUT_"

// Config holds all configuration for the application
type Config struct {
	// Project settings
	ProjectPath   string   `yaml:"project_path"`
	TestPath      string   `yaml:"test_path"`
	SourcePath    string   `yaml:"source_path"`
	SuiteName     string   `yaml:"suite_name"`
	ModuleSuffix  string   `yaml:"module_suffix"`
	SuiteSource   string   `yaml:"suite_source"`
	PathsToIgnore []string `yaml:"exclude_dirs"`

	// Execution settings
	Order       string        `yaml:"order"`
	MaxThreads  int           `yaml:"max_threads"`
	Processes   int           `yaml:"processes"`
	Isolation   string        `yaml:"isolation"`
	ForkTimeout time.Duration `yaml:"fork_timeout"`
	FailFast    bool          `yaml:"fail_fast"`

	// Output settings
	OutputJSONFile string `yaml:"output_file"`
	OutputJSONDir  string `yaml:"output_dir"`
	HistoryDSN     string `yaml:"history_dsn"`
	MetricsFile    string `yaml:"metrics_file"`
	LogLevel       string `yaml:"log_level"`

	// Command flags
	Flags Flags `yaml:"-"`
}

// Flags holds command-line flags. Zero values mean "not given".
type Flags struct {
	ConfigFile  string
	TestPath    string
	SourcePath  string
	SuiteName   string
	Order       string
	MaxThreads  int
	Processes   int
	Isolation   string
	ForkTimeout time.Duration
	FailFast    bool
	TestNames   []string
	CaseNames   []string
	ExcludeDirs []string
	LogLevel    string
	Verbose     bool
	NoProgress  bool
}

// New creates a new Config with defaults
func New() *Config {
	cfg := &Config{
		ProjectPath:    DefaultProjectPath,
		TestPath:       DefaultTestPath,
		ModuleSuffix:   DefaultModuleSuffix,
		MaxThreads:     DefaultMaxThreads,
		ForkTimeout:    DefaultForkTimeout,
		OutputJSONFile: DefaultOutputJSONFile,
		OutputJSONDir:  DefaultOutputJSONDir,
		LogLevel:       DefaultLogLevel,
	}
	// Copy default paths to ignore
	cfg.PathsToIgnore = make([]string, len(DefaultPathsToIgnore))
	copy(cfg.PathsToIgnore, DefaultPathsToIgnore)
	return cfg
}

// Load builds the configuration from, in increasing precedence: defaults,
// the YAML config file, the project's .env file, GOCUT_* environment
// variables and flags. A missing config or .env file is not an error
// unless the config file was named explicitly.
func Load(flags Flags) (*Config, error) {
	cfg := New()
	cfg.Flags = flags

	path := flags.ConfigFile
	if path == "" {
		path = filepath.Join(cfg.ProjectPath, DefaultConfigFile)
	}
	if err := cfg.LoadFile(path); err != nil {
		if flags.ConfigFile != "" || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := cfg.LoadEnv(filepath.Join(cfg.ProjectPath, DefaultEnvFile)); err != nil {
		return nil, err
	}

	cfg.applyFlags()
	return cfg, nil
}

// LoadFile merges the YAML file at path into c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// LoadEnv applies GOCUT_* variables from the dotenv file at path and then
// from the process environment, which wins. The process environment is not
// modified.
func (c *Config) LoadEnv(path string) error {
	vars := map[string]string{}
	if fileVars, err := godotenv.Read(path); err == nil {
		vars = fileVars
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			vars[k] = v
		}
	}
	return c.applyEnv(vars)
}

func (c *Config) applyEnv(vars map[string]string) error {
	for key, value := range vars {
		name, ok := strings.CutPrefix(key, EnvPrefix)
		if !ok {
			continue
		}
		var err error
		switch name {
		case "PROJECT_PATH":
			c.ProjectPath = value
		case "TEST_DIR":
			c.TestPath = value
		case "SOURCE_DIR":
			c.SourcePath = value
		case "SUITE":
			c.SuiteName = value
		case "MODULE_SUFFIX":
			c.ModuleSuffix = value
		case "EXCLUDE_DIRS":
			c.PathsToIgnore = splitList(value)
		case "ORDER":
			c.Order = value
		case "MAX_THREADS":
			c.MaxThreads, err = strconv.Atoi(value)
		case "PROCESSES":
			c.Processes, err = strconv.Atoi(value)
		case "ISOLATION":
			c.Isolation = value
		case "FORK_TIMEOUT":
			c.ForkTimeout, err = time.ParseDuration(value)
		case "FAIL_FAST":
			c.FailFast, err = strconv.ParseBool(value)
		case "OUTPUT_DIR":
			c.OutputJSONDir = value
		case "HISTORY_DSN":
			c.HistoryDSN = value
		case "METRICS_FILE":
			c.MetricsFile = value
		case "LOG_LEVEL":
			c.LogLevel = value
		}
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) applyFlags() {
	f := c.Flags
	if f.SourcePath != "" {
		c.SourcePath = f.SourcePath
	}
	if f.SuiteName != "" {
		c.SuiteName = f.SuiteName
	}
	if f.Order != "" {
		c.Order = f.Order
	}
	if f.MaxThreads > 0 {
		c.MaxThreads = f.MaxThreads
	}
	if f.Processes > 0 {
		c.Processes = f.Processes
	}
	if f.Isolation != "" {
		c.Isolation = f.Isolation
	}
	if f.ForkTimeout > 0 {
		c.ForkTimeout = f.ForkTimeout
	}
	if f.FailFast {
		c.FailFast = true
	}
	if len(f.ExcludeDirs) > 0 {
		c.PathsToIgnore = append(c.PathsToIgnore, f.ExcludeDirs...)
	}
	if f.Verbose {
		c.LogLevel = "debug"
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
}

// GetTestPath returns the test path, using flag if provided
func (c *Config) GetTestPath() string {
	if c.Flags.TestPath != "" {
		// If TestPath is provided, make it relative to ProjectPath if it's not absolute
		if filepath.IsAbs(c.Flags.TestPath) {
			return c.Flags.TestPath
		}
		return filepath.Join(c.ProjectPath, c.Flags.TestPath)
	}
	if filepath.IsAbs(c.TestPath) {
		return c.TestPath
	}
	return filepath.Join(c.ProjectPath, c.TestPath)
}

// GetOutputPath returns the absolute path of the stored run report, so run
// and faults agree on it regardless of the working directory.
func (c *Config) GetOutputPath() string {
	p := filepath.Join(c.ProjectPath, c.OutputJSONDir, c.OutputJSONFile)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// GetSuiteName defaults to the test directory's base name.
func (c *Config) GetSuiteName() string {
	if c.SuiteName != "" {
		return c.SuiteName
	}
	if abs, err := filepath.Abs(c.GetTestPath()); err == nil {
		return filepath.Base(abs)
	}
	return filepath.Base(c.GetTestPath())
}

// RunOptions converts the configuration into execution options.
func (c *Config) RunOptions() (execution.Options, error) {
	order, err := execution.ParseOrder(c.Order)
	if err != nil {
		return execution.Options{}, err
	}
	isolation, err := execution.ParseIsolation(c.Isolation)
	if err != nil {
		return execution.Options{}, err
	}
	testDir, err := filepath.Abs(c.GetTestPath())
	if err != nil {
		return execution.Options{}, err
	}
	return execution.Options{
		SuiteName:           c.GetSuiteName(),
		TestDirectory:       testDir,
		SourceDirectory:     c.SourcePath,
		ModuleSuffix:        c.ModuleSuffix,
		ExcludeDirectories:  append([]string(nil), c.PathsToIgnore...),
		TargetTestNames:     c.Flags.TestNames,
		TargetTestCaseNames: c.Flags.CaseNames,
		Order:               order,
		MaxThreads:          c.MaxThreads,
		Isolation:           isolation,
		ForkTimeout:         c.ForkTimeout,
		FailFast:            c.FailFast,
		Processes:           c.Processes,
		SuiteSource:         c.SuiteSource,
	}, nil
}
