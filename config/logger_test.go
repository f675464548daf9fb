package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestMinLevel(t *testing.T) {
	tests := []struct {
		name string
		want zapcore.Level
		ok   bool
	}{
		{"debug", zapcore.DebugLevel, true},
		{"normal", zapcore.InfoLevel, true},
		{"none", zapcore.InvalidLevel, false},
		{"", zapcore.InvalidLevel, false},
	}
	for _, tt := range tests {
		got, ok := minLevel(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("minLevel(%q) = %v, %v, want %v, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLoggingConfig_Prepare_FileLog(t *testing.T) {
	dir := t.TempDir()
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "normal", Destination: filepath.Join(dir, "run.log"), Mode: "overwrite"},
	}

	log, err := conf.Prepare(nil)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	log.Debug("hidden message")
	log.Info("visible message")
	_ = log.Sync()

	data, err := os.ReadFile(conf.FileLogger.Destination)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), "visible message") || strings.Contains(string(data), "hidden message") {
		t.Errorf("unexpected log content:\n%s", data)
	}
}

func TestLoggingConfig_Prepare_ReportForcesDebug(t *testing.T) {
	dir := t.TempDir()
	conf := LoggingConfig{
		ConsoleLogger: LoggerConfig{Level: "none"},
		FileLogger:    LoggerConfig{Level: "none", Destination: filepath.Join(dir, "run.log")},
	}
	rpt := &Report{entries: make(map[string]entry)}

	log, err := conf.Prepare(rpt)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	log.Debug("debug message")
	_ = log.Sync()

	if _, ok := rpt.entries["final.log"]; !ok {
		t.Error("log file must be stored in report")
	}
	data, _ := os.ReadFile(conf.FileLogger.Destination)
	if !strings.Contains(string(data), "debug message") {
		t.Errorf("debug level was not forced:\n%s", data)
	}
}
