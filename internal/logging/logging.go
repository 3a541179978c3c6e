// Package logging routes diagnostic entries from the core to a Logger.
// The core only produces Entry values; formatting and routing belong to the
// installed Logger, which by default is a log/slog text handler.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogLevel defines the severity of the log entry.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel accepts debug, info, warn/warning and error in any case.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Entry is one log record: the domain that raised it, its level, the
// source position, the time and the message.
type Entry struct {
	Domain   string
	Level    LogLevel
	File     string
	Line     int
	Function string
	Time     time.Time
	Message  string
	Err      error
}

// Logger consumes entries.
type Logger interface {
	Enabled(level LogLevel) bool
	Log(e Entry)
}

// SlogLogger hands entries to a slog.Logger.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: l}
}

func (s *SlogLogger) Enabled(level LogLevel) bool {
	return s.logger.Enabled(context.Background(), level.SlogLevel())
}

func (s *SlogLogger) Log(e Entry) {
	attrs := []slog.Attr{slog.String("subsystem", e.Domain)}
	if e.File != "" {
		attrs = append(attrs, slog.String("source", fmt.Sprintf("%s:%d", filepath.Base(e.File), e.Line)))
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("error", e.Err.Error()))
	}
	s.logger.LogAttrs(context.Background(), e.Level.SlogLevel(), e.Message, attrs...)
}

var (
	mu           sync.RWMutex
	activeLogger Logger = NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
)

// InitForCLI installs a text handler writing to output at the given level.
func InitForCLI(filterLevel LogLevel, output io.Writer) {
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: filterLevel.SlogLevel()})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	SetLogger(NewSlogLogger(logger))
}

// SetLogger replaces the active logger and returns the previous one.
func SetLogger(l Logger) Logger {
	mu.Lock()
	defer mu.Unlock()
	prev := activeLogger
	activeLogger = l
	return prev
}

func current() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return activeLogger
}

func logInternal(level LogLevel, subsystem string, err error, messageFmt string, args ...interface{}) {
	l := current()
	if l == nil || !l.Enabled(level) {
		return
	}

	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}
	e := Entry{Domain: subsystem, Level: level, Time: time.Now(), Message: msg, Err: err}
	if pc, file, line, ok := runtime.Caller(2); ok {
		e.File, e.Line = file, line
		if fn := runtime.FuncForPC(pc); fn != nil {
			e.Function = fn.Name()
		}
	}
	l.Log(e)
}

func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelDebug, subsystem, nil, messageFmt, args...)
}

func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelInfo, subsystem, nil, messageFmt, args...)
}

func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(LevelWarn, subsystem, nil, messageFmt, args...)
}

func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(LevelError, subsystem, err, messageFmt, args...)
}
