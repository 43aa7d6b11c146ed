package mocklogger

import (
	"strings"
	"testing"

	"github.com/hugolhafner/go-groupworker/logger"
)

func (m *MockLogger) AssertCalledWithMessage(tb testing.TB, message string) {
	tb.Helper()

	for _, entry := range m.Entries() {
		if entry.Message == message {
			return
		}
	}

	tb.Errorf("expected log message '%s' to be called", message)
}

// AssertMessageContains passes when any entry at the given level contains substr.
func (m *MockLogger) AssertMessageContains(tb testing.TB, level logger.LogLevel, substr string) {
	tb.Helper()

	for _, entry := range m.Entries() {
		if entry.Level == level && strings.Contains(entry.Message, substr) {
			return
		}
	}

	tb.Errorf("expected a '%s' log containing '%s'", level.String(), substr)
}

func (m *MockLogger) AssertCalledWithLevel(tb testing.TB, level logger.LogLevel) {
	tb.Helper()

	for _, entry := range m.Entries() {
		if entry.Level == level {
			return
		}
	}

	tb.Errorf("expected log level '%s' to be called", level.String())
}

func (m *MockLogger) AssertCalledWithLevelAndMessage(tb testing.TB, level logger.LogLevel, message string) {
	tb.Helper()

	for _, entry := range m.Entries() {
		if entry.Level == level && entry.Message == message {
			return
		}
	}

	tb.Errorf("expected log with level '%s' and message '%s' to be called", level.String(), message)
}

func (m *MockLogger) AssertNotCalledWithMessage(tb testing.TB, message string) {
	tb.Helper()

	for _, entry := range m.Entries() {
		if entry.Message == message {
			tb.Errorf("expected log message '%s' to NOT be called", message)
			return
		}
	}
}

func (m *MockLogger) AssertNotCalledWithLevel(tb testing.TB, level logger.LogLevel) {
	tb.Helper()

	for _, entry := range m.Entries() {
		if entry.Level == level {
			tb.Errorf("expected log level '%s' to NOT be called, got '%s'", level.String(), entry.Message)
			return
		}
	}
}

func (m *MockLogger) AssertCount(tb testing.TB, level logger.LogLevel, expected int) {
	tb.Helper()

	actual := 0
	for _, entry := range m.Entries() {
		if entry.Level == level {
			actual++
		}
	}

	if actual != expected {
		tb.Errorf("expected %d '%s' logs, got %d", expected, level.String(), actual)
	}
}
