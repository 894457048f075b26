// Package logging provides the logger interface shared by the scheduler
// core and its collaborators.
package logging

import (
	"fmt"
	"log/slog"
)

// Logger is the interface used throughout the scheduler core for
// diagnostics. Components take a Logger via constructor injection rather
// than reaching for a package-global.
type Logger interface {
	ErrorPrintf(format string, args ...any)
	WarnPrintf(format string, args ...any)
	InfoPrintf(format string, args ...any)
	DebugPrintf(format string, args ...any)
	Errorf(format string, args ...any) error
}

type defaultLogger struct {
	prefix string
}

// Default returns a Logger backed by the standard library's slog, tagging
// every line with prefix (e.g. "scheduler", "enginedrv").
func Default(prefix string) Logger {
	return defaultLogger{prefix: prefix}
}

func (l defaultLogger) ErrorPrintf(format string, args ...any) {
	slog.Error(l.prefix + ": " + fmt.Sprintf(format, args...))
}

func (l defaultLogger) WarnPrintf(format string, args ...any) {
	slog.Warn(l.prefix + ": " + fmt.Sprintf(format, args...))
}

func (l defaultLogger) InfoPrintf(format string, args ...any) {
	slog.Info(l.prefix + ": " + fmt.Sprintf(format, args...))
}

func (l defaultLogger) DebugPrintf(format string, args ...any) {
	slog.Debug(l.prefix + ": " + fmt.Sprintf(format, args...))
}

func (l defaultLogger) Errorf(format string, args ...any) error {
	return fmt.Errorf(l.prefix+": "+format, args...)
}

// Slog wraps an existing *slog.Logger as a Logger.
func Slog(prefix string, l *slog.Logger) Logger {
	return &slogLogger{prefix: prefix, Logger: l}
}

type slogLogger struct {
	prefix string
	*slog.Logger
}

func (s *slogLogger) ErrorPrintf(format string, args ...any) {
	s.Logger.Error(s.prefix + ": " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) WarnPrintf(format string, args ...any) {
	s.Logger.Warn(s.prefix + ": " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) InfoPrintf(format string, args ...any) {
	s.Logger.Info(s.prefix + ": " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) DebugPrintf(format string, args ...any) {
	s.Logger.Debug(s.prefix + ": " + fmt.Sprintf(format, args...))
}

func (s *slogLogger) Errorf(format string, args ...any) error {
	return fmt.Errorf(s.prefix+": "+format, args...)
}

// Nop returns a Logger that discards everything, useful in tests that
// don't care about diagnostics.
func Nop() Logger { return nopLogger{} }

type nopLogger struct{}

func (nopLogger) ErrorPrintf(string, ...any)    {}
func (nopLogger) WarnPrintf(string, ...any)     {}
func (nopLogger) InfoPrintf(string, ...any)     {}
func (nopLogger) DebugPrintf(string, ...any)    {}
func (nopLogger) Errorf(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}
