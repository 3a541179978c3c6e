// Package exitcodes defines the exit codes gocut returns and the error type
// commands use to request one.
package exitcodes

import (
	"errors"
	"fmt"
)

// Exit code constants used by gocut
//
// * Success (0): every test passed
// * TestFailure (1): one or more tests failed or errored
// * Crashed (2): a test process crashed
// * UsageErr (3): bad flags, configuration or an unloadable suite
const (
	Success     = 0
	TestFailure = 1
	Crashed     = 2
	UsageErr    = 3
)

// Error carries the exit code a command wants the process to end with.
type Error struct {
	Code int
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with an exit code.
func New(code int, err error) *Error {
	return &Error{Code: code, Err: err}
}

// Usage wraps err as a usage or load error.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return New(UsageErr, err)
}

// ForRun maps the outcome of a run to its exit code.
func ForRun(success, crashed bool) int {
	switch {
	case crashed:
		return Crashed
	case !success:
		return TestFailure
	}
	return Success
}

// Code returns the exit code for err: Success for nil, the carried code
// for an *Error and TestFailure for anything else.
func Code(err error) int {
	if err == nil {
		return Success
	}
	var exitErr *Error
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return TestFailure
}
