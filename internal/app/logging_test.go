package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level LogLevel
		want  string
	}{
		{LogLevelDebug, "DEBUG"},
		{LogLevelInfo, "INFO"},
		{LogLevelWarn, "WARN"},
		{LogLevelError, "ERROR"},
		{LogLevel(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"debug", LogLevelDebug},
		{"DEBUG", LogLevelDebug},
		{"info", LogLevelInfo},
		{"warn", LogLevelWarn},
		{"warning", LogLevelWarn},
		{"Error", LogLevelError},
		{"", LogLevelInfo},
		{"verbose", LogLevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LogLevelWarn, Output: &buf})

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info message should be filtered")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn message should be logged")
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggerConfig{Level: LogLevelInfo, Output: &buf, Format: "json"})
	WithComponent(logger, "session").Info("ready", "backend", "gdb")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v: %s", err, buf.String())
	}
	if rec["component"] != "session" || rec["backend"] != "gdb" || rec["msg"] != "ready" {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNewLogger_LevelVar(t *testing.T) {
	var buf bytes.Buffer
	lv := new(slog.LevelVar)
	logger := NewLogger(LoggerConfig{Level: LogLevelError, Output: &buf, LevelVar: lv})

	logger.Info("before")
	lv.Set(slog.LevelDebug)
	logger.Debug("after")

	out := buf.String()
	if strings.Contains(out, "before") {
		t.Error("info should be filtered at error level")
	}
	if !strings.Contains(out, "after") {
		t.Error("debug should pass after the level changed")
	}
}

func TestWithComponent_NilLogger(t *testing.T) {
	if WithComponent(nil, "config") == nil {
		t.Error("expected a logger")
	}
}
