package cli

import (
	"time"

	"gocut/internal/config"
)

// Flags holds command-line flags
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

	// Listeners are factory modules given as path:type.
	Listeners  []string
	ShowTests  bool
	OpenFaults bool
	Stats      bool
	Limit      int
}

// ToConfigFlags converts CLI flags to config flags
func (f *Flags) ToConfigFlags() config.Flags {
	return config.Flags{
		ConfigFile:  f.ConfigFile,
		TestPath:    f.TestPath,
		SourcePath:  f.SourcePath,
		SuiteName:   f.SuiteName,
		Order:       f.Order,
		MaxThreads:  f.MaxThreads,
		Processes:   f.Processes,
		Isolation:   f.Isolation,
		ForkTimeout: f.ForkTimeout,
		FailFast:    f.FailFast,
		TestNames:   f.TestNames,
		CaseNames:   f.CaseNames,
		ExcludeDirs: f.ExcludeDirs,
		LogLevel:    f.LogLevel,
		Verbose:     f.Verbose,
		NoProgress:  f.NoProgress,
	}
}
