package logger

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogLevelFiltering(t *testing.T) {
	originalLogger := Logger
	t.Cleanup(func() {
		Logger = originalLogger
		SetLogLevel(INFO)
	})

	var buf bytes.Buffer
	Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	SetLogLevel(WARN)
	Info("info message should be filtered")
	Warn("warn message should appear")
	Error("error message should appear")

	output := buf.String()
	if strings.Contains(output, "info message should be filtered") {
		t.Fatalf("info message was logged at WARN level:\n%s", output)
	}
	if !strings.Contains(output, "warn message should appear") {
		t.Fatalf("warn message was not logged:\n%s", output)
	}
	if !strings.Contains(output, "error message should appear") {
		t.Fatalf("error message was not logged:\n%s", output)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "debug", want: DEBUG},
		{in: " INFO ", want: INFO},
		{in: "warning", want: WARN},
		{in: "error", want: ERROR},
		{in: "loud", want: INFO, wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseLogLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("ParseLogLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestConfigureReportsInvalidLevelButInstallsLogger(t *testing.T) {
	originalLogger := Logger
	t.Cleanup(func() {
		Logger = originalLogger
		SetLogLevel(INFO)
	})

	file := filepath.Join(t.TempDir(), "logs", "sync.log")
	err := Configure(Options{Level: "nope", File: file, Format: "json"})
	if err == nil {
		t.Fatal("expected invalid level error")
	}
	if Logger == originalLogger {
		t.Fatal("expected logger to be replaced")
	}
	if !Enabled(INFO) || Enabled(DEBUG) {
		t.Fatal("expected fallback INFO level")
	}
}
