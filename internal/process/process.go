// Package process isolates work in child processes. A child is the current
// executable re-run with an entry name in its environment; Dispatch routes
// it to the registered Entry.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alessio/shellescape"

	"gocut/internal/logging"
)

var (
	ErrForkUnsupported = errors.New("process isolation is not supported on this platform")
	ErrTimeout         = errors.New("timed out waiting for child process")
	ErrUnknownProcess  = errors.New("unknown child process")
)

// Options tune a spawned child.
type Options struct {
	// ResultPipe hands the child a write-only pipe on descriptor 3 whose
	// contents are available from Results.
	ResultPipe bool
	// Env is appended to the parent environment.
	Env []string
	Dir string
	// TailBytes caps the captured stdout and stderr. Zero means 1 MiB.
	TailBytes int
}

// Process is a running or finished child.
type Process struct {
	cmd    *exec.Cmd
	stdout *TailBuffer
	stderr *TailBuffer

	resultsMu sync.Mutex
	results   bytes.Buffer

	done     chan struct{}
	exitCode int
	state    string
	err      error
}

var (
	supportedMu sync.RWMutex
	supported   = platformSupported
)

func platformSupported() bool {
	switch runtime.GOOS {
	case "js", "wasip1":
		return false
	}
	_, err := os.Executable()
	return err == nil
}

// Supported reports whether children can be spawned here.
func Supported() bool {
	supportedMu.RLock()
	defer supportedMu.RUnlock()
	return supported()
}

// SetSupported replaces the platform check used by Supported and Spawn and
// returns a function restoring the previous one.
func SetSupported(fn func() bool) (restore func()) {
	supportedMu.Lock()
	prev := supported
	supported = fn
	supportedMu.Unlock()
	return func() {
		supportedMu.Lock()
		supported = prev
		supportedMu.Unlock()
	}
}

// Spawn starts the current executable as a child running entry with args.
func Spawn(ctx context.Context, entry string, args []string, opts Options) (*Process, error) {
	if !Supported() {
		return nil, ErrForkUnsupported
	}
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrForkUnsupported, err)
	}

	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(childEnv(), EnvEntry+"="+entry)
	cmd.Env = append(cmd.Env, opts.Env...)

	p := &Process{
		cmd:    cmd,
		stdout: NewTailBuffer(opts.TailBytes),
		stderr: NewTailBuffer(opts.TailBytes),
		done:   make(chan struct{}),
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr

	var resultR, resultW *os.File
	if opts.ResultPipe {
		resultR, resultW, err = os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("creating result pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{resultW}
		cmd.Env = append(cmd.Env, EnvResultFD+"="+strconv.Itoa(3))
	}

	logging.Debug("Process", "spawning %s=%s %s", EnvEntry, entry, shellescape.QuoteCommand(append([]string{exe}, args...)))

	if err := cmd.Start(); err != nil {
		if resultR != nil {
			resultR.Close()
			resultW.Close()
		}
		return nil, fmt.Errorf("starting child %q: %w", entry, err)
	}

	var readers sync.WaitGroup
	if resultR != nil {
		resultW.Close()
		readers.Add(1)
		go func() {
			defer readers.Done()
			defer resultR.Close()
			io.Copy(lockedWriter{&p.resultsMu, &p.results}, resultR)
		}()
	}

	go func() {
		err := cmd.Wait()
		readers.Wait()
		p.finish(err)
		close(p.done)
	}()

	return p, nil
}

// childEnv is the parent environment minus the variables that only make
// sense for the process that received them.
func childEnv() []string {
	var env []string
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvEntry+"=") || strings.HasPrefix(kv, EnvResultFD+"=") {
			continue
		}
		env = append(env, kv)
	}
	return env
}

type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}

func (p *Process) finish(err error) {
	if st := p.cmd.ProcessState; st != nil {
		p.exitCode = st.ExitCode()
		p.state = st.String()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.err = err
	}
	logging.Debug("Process", "child %d finished: %s", p.Pid(), p.state)
}

func (p *Process) Pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Wait blocks until the child exits or timeout elapses and returns the exit
// status. A non-positive timeout waits forever. On timeout ErrTimeout is
// returned and the child keeps running.
func (p *Process) Wait(timeout time.Duration) (int, error) {
	if timeout <= 0 {
		<-p.done
		return p.exitCode, p.err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.exitCode, p.err
	case <-timer.C:
		return -1, ErrTimeout
	}
}

// Done is closed once the child has exited and all its output was read.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the child has finished.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Signaled reports whether the child was terminated by a signal rather than
// exiting on its own.
func (p *Process) Signaled() bool {
	return p.Exited() && p.exitCode == -1
}

// State describes how the child ended, e.g. "exit status 1" or
// "signal: killed". Empty while running.
func (p *Process) State() string {
	if !p.Exited() {
		return ""
	}
	return p.state
}

func (p *Process) Stdout() string { return p.stdout.String() }
func (p *Process) Stderr() string { return p.stderr.String() }

// Results returns what the child wrote to its result pipe so far.
func (p *Process) Results() []byte {
	p.resultsMu.Lock()
	defer p.resultsMu.Unlock()
	return bytes.Clone(p.results.Bytes())
}

// Kill terminates the child.
func (p *Process) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}
