// Package logger provides the level-prefixed console logging used across
// paperboy.
package logger

import (
	"fmt"
	"io"
	"log"
)

// Logger is the logging interface shared by every paperboy component.
type Logger interface {
	// Debug logs a message that is only shown in debug mode.
	Debug(format string, args ...any)

	// Info logs an informational message (e.g., "Already logged in.").
	Info(format string, args ...any)

	// Warning logs a recoverable problem (e.g., an issue that was skipped).
	Warning(format string, args ...any)

	// Error logs a failure that ends the run.
	Error(format string, args ...any)
}

// StandardLogger wraps the stdlib *log.Logger for console output.
type StandardLogger struct {
	logger *log.Logger
	debug  bool
}

// NewStandardLogger creates a logger that wraps the given *log.Logger. Debug
// messages are dropped unless debug is true.
func NewStandardLogger(l *log.Logger, debug bool) *StandardLogger {
	return &StandardLogger{logger: l, debug: debug}
}

// NewConsoleLogger creates a logger writing bare level-prefixed lines to w.
func NewConsoleLogger(w io.Writer, debug bool) *StandardLogger {
	return NewStandardLogger(log.New(w, "", 0), debug)
}

// Debug logs a message with DEBUG: prefix when debug output is enabled.
func (s *StandardLogger) Debug(format string, args ...any) {
	if !s.debug {
		return
	}
	s.logger.Printf("DEBUG: "+format, args...)
}

// Info logs an informational message with INFO: prefix.
func (s *StandardLogger) Info(format string, args ...any) {
	s.logger.Printf("INFO: "+format, args...)
}

// Warning logs a warning message with WARN: prefix.
func (s *StandardLogger) Warning(format string, args ...any) {
	s.logger.Printf("WARN: "+format, args...)
}

// Error logs an error message with ERROR: prefix.
func (s *StandardLogger) Error(format string, args ...any) {
	s.logger.Printf("ERROR: "+format, args...)
}

// NopLogger discards all messages.
type NopLogger struct{}

// NewNopLogger creates a logger that discards all messages.
func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (n *NopLogger) Debug(format string, args ...any)   {}
func (n *NopLogger) Info(format string, args ...any)    {}
func (n *NopLogger) Warning(format string, args ...any) {}
func (n *NopLogger) Error(format string, args ...any)   {}

// MockLogger records every call so tests can assert on what was logged.
type MockLogger struct {
	DebugCalls   []string
	InfoCalls    []string
	WarningCalls []string
	ErrorCalls   []string
}

// NewMockLogger creates a new MockLogger.
func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.DebugCalls = append(m.DebugCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Info(format string, args ...any) {
	m.InfoCalls = append(m.InfoCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Warning(format string, args ...any) {
	m.WarningCalls = append(m.WarningCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Error(format string, args ...any) {
	m.ErrorCalls = append(m.ErrorCalls, fmt.Sprintf(format, args...))
}

var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
	_ Logger = (*MockLogger)(nil)
)
