package process

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
)

const (
	// EnvEntry names the entry a re-executed binary should run.
	EnvEntry = "GOCUT_CHILD_ENTRY"
	// EnvResultFD is the descriptor number of the result pipe in a child.
	EnvResultFD = "GOCUT_RESULT_FD"

	// ExitUnknownEntry is the exit status of a child asked to run an entry
	// that was never registered.
	ExitUnknownEntry = 125
)

// Entry is the body of a child process. The returned value is its exit
// status.
type Entry func(args []string) int

var (
	entriesMu sync.RWMutex
	entries   = map[string]Entry{}
)

// Register makes fn runnable as a child process under name. Registration
// must happen before Dispatch, typically from an init function.
func Register(name string, fn Entry) {
	entriesMu.Lock()
	defer entriesMu.Unlock()
	entries[name] = fn
}

func lookup(name string) (Entry, bool) {
	entriesMu.RLock()
	defer entriesMu.RUnlock()
	fn, ok := entries[name]
	return fn, ok
}

// Entries lists registered entry names.
func Entries() []string {
	entriesMu.RLock()
	defer entriesMu.RUnlock()
	names := make([]string, 0, len(entries))
	for n := range entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsChild reports whether this process was spawned to run an entry.
func IsChild() bool {
	return os.Getenv(EnvEntry) != ""
}

// Dispatch runs the requested entry and exits when the process is a
// spawned child; otherwise it returns immediately. Call it first thing in
// main and in TestMain.
func Dispatch() {
	name := os.Getenv(EnvEntry)
	if name == "" {
		return
	}
	os.Unsetenv(EnvEntry)

	fn, ok := lookup(name)
	if !ok {
		fmt.Fprintf(os.Stderr, "gocut: unknown child entry %q\n", name)
		os.Exit(ExitUnknownEntry)
	}
	os.Exit(fn(os.Args[1:]))
}

// ResultPipe returns the write end of the result pipe handed to this child,
// or nil when the parent did not request one.
func ResultPipe() *os.File {
	raw := os.Getenv(EnvResultFD)
	if raw == "" {
		return nil
	}
	fd, err := strconv.Atoi(raw)
	if err != nil || fd < 3 {
		return nil
	}
	return os.NewFile(uintptr(fd), "gocut-results")
}
