package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected LogLevel
		ok       bool
	}{
		{name: "debug", input: "debug", expected: LevelDebug, ok: true},
		{name: "info", input: "info", expected: LevelInfo, ok: true},
		{name: "warn", input: "warn", expected: LevelWarn, ok: true},
		{name: "warning alias", input: "warning", expected: LevelWarn, ok: true},
		{name: "error", input: "error", expected: LevelError, ok: true},
		{name: "case insensitive", input: "DEBUG", expected: LevelDebug, ok: true},
		{name: "surrounding space", input: "  error ", expected: LevelError, ok: true},
		{name: "unknown", input: "verbose", expected: LevelInfo, ok: false},
		{name: "empty", input: "", expected: LevelInfo, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, ok := ParseLevel(tt.input)
			if level != tt.expected || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = (%v, %v), expected (%v, %v)", tt.input, level, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo {
		t.Error("LevelDebug should be less than LevelInfo")
	}
	if LevelInfo >= LevelWarn {
		t.Error("LevelInfo should be less than LevelWarn")
	}
	if LevelWarn >= LevelError {
		t.Error("LevelWarn should be less than LevelError")
	}
}

func TestLogLevelString(t *testing.T) {
	tests := map[LogLevel]string{
		LevelDebug:   "debug",
		LevelInfo:    "info",
		LevelWarn:    "warn",
		LevelError:   "error",
		LogLevel(42): "unknown(42)",
	}
	for level, expected := range tests {
		if got := level.String(); got != expected {
			t.Errorf("LogLevel(%d).String() = %q, expected %q", level, got, expected)
		}
	}
}

func captureOutput(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	original := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(original)
	fn()
	return buf.String()
}

func TestSetLevelFiltersOutput(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(LevelWarn)
	out := captureOutput(t, func() {
		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")
	})

	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("Expected debug and info to be filtered, got: %s", out)
	}
	if !strings.Contains(out, "[WARN] warn message") {
		t.Errorf("Expected warn line, got: %s", out)
	}
	if !strings.Contains(out, "[ERROR] error message") {
		t.Errorf("Expected error line, got: %s", out)
	}
}

func TestIsDebugEnabled(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)

	SetLevel(LevelDebug)
	if !IsDebugEnabled() {
		t.Error("Expected debug to be enabled at LevelDebug")
	}
	SetLevel(LevelInfo)
	if IsDebugEnabled() {
		t.Error("Expected debug to be disabled at LevelInfo")
	}
}

func TestFormatArguments(t *testing.T) {
	original := GetLevel()
	defer SetLevel(original)
	SetLevel(LevelInfo)

	out := captureOutput(t, func() {
		Info("rebuilt %s with %d files", "p1", 3)
	})
	if !strings.Contains(out, "[INFO] rebuilt p1 with 3 files") {
		t.Errorf("Unexpected output: %s", out)
	}
}
