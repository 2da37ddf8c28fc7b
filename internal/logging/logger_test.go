package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(level Level) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New()
	logger.SetLevel(level)
	logger.SetWriter(&buf)
	return logger, &buf
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		minLevel  Level
		logLevel  Level
		shouldLog bool
	}{
		{"debug allowed at debug", LevelDebug, LevelDebug, true},
		{"info allowed at debug", LevelDebug, LevelInfo, true},
		{"debug blocked at info", LevelInfo, LevelDebug, false},
		{"info allowed at info", LevelInfo, LevelInfo, true},
		{"info blocked at warn", LevelWarn, LevelInfo, false},
		{"warn allowed at warn", LevelWarn, LevelWarn, true},
		{"warn blocked at error", LevelError, LevelWarn, false},
		{"error allowed at error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buf := newTestLogger(tt.minLevel)

			switch tt.logLevel {
			case LevelDebug:
				logger.Debug("step finished")
			case LevelInfo:
				logger.Info("step finished")
			case LevelWarn:
				logger.Warn("step finished")
			case LevelError:
				logger.Error("step finished")
			}

			if tt.shouldLog {
				assert.Contains(t, buf.String(), "step finished")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestLoggerFieldsAreSorted(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	logger.WithFields(map[string]any{
		"test": "login",
		"step": 2,
	}).Info("step recorded", "status", "Pass")

	assert.Equal(t, "INFO: step recorded | status=Pass step=2 test=login\n", buf.String())
}

func TestLoggerWithLeavesParentUntouched(t *testing.T) {
	logger, buf := newTestLogger(LevelDebug)

	child := logger.With("run", "abc")
	logger.Info("parent")
	child.Info("child")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, "INFO: parent", string(lines[0]))
	assert.Equal(t, "INFO: child | run=abc", string(lines[1]))
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"simple string", "pass", "pass"},
		{"empty string", "", `""`},
		{"string with spaces", "No response from assistant", `"No response from assistant"`},
		{"error", errors.New("browser closed"), `"browser closed"`},
		{"integer", 3, "3"},
		{"stringer", LevelWarn, "WARN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatValue(tt.input))
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	SetWriter(&buf)
	SetLevel(LevelWarn)
	defer SetLevel(LevelInfo)

	Info("hidden")
	assert.Empty(t, buf.String())

	With("component", "recorder").Warn("screenshot skipped")
	assert.Equal(t, "WARN: screenshot skipped | component=recorder\n", buf.String())
}
