package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"camsampler/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    Level
		wantErr bool
	}{
		{"debug", DEBUG, false},
		{"INFO", INFO, false},
		{"", INFO, false},
		{"warn", WARNING, false},
		{"warning", WARNING, false},
		{" error ", ERROR, false},
		{"verbose", INFO, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.want)
		}
	}
}

func TestLogger_RespectsLevelAndClears(t *testing.T) {
	dir := t.TempDir()
	l := NewLogger(&config.Config{LogDirectory: dir, LogLevel: "info"})
	defer l.Close()

	l.Debug("hidden %d", 1)
	l.Info("visible %d", 2)

	data, err := os.ReadFile(filepath.Join(dir, "info.log"))
	if err != nil {
		t.Fatalf("Failed to read info.log: %v", err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("Debug entry written below the configured level")
	}
	if !strings.Contains(string(data), "visible 2") {
		t.Errorf("Info entry missing, got: %s", data)
	}

	if err := l.CleanLogs("info.log"); err != nil {
		t.Fatalf("CleanLogs failed: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "info.log"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("Expected empty info.log after clear, got %d bytes", info.Size())
	}
}
