package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer SetLogMode(InfoMode)

	SetLogMode(WarningMode)
	Debugf("debug %d", 1)
	Infof("info %d", 2)
	Warningf("warning %d", 3)
	Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("Expected debug and info to be suppressed, got %q", out)
	}
	if !strings.Contains(out, "WARNING warning 3") || !strings.Contains(out, "ERROR error 4") {
		t.Errorf("Expected warning and error output, got %q", out)
	}

	buf.Reset()
	SetLogMode(SilentMode)
	Errorf("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected no output in silent mode, got %q", buf.String())
	}
}

func TestParseMode(t *testing.T) {
	for level, want := range map[string]ModeFlag{
		"debug": DebugMode, "INFO": InfoMode, "warn": WarningMode, "error": ErrorMode, "off": SilentMode,
	} {
		got, err := ParseMode(level)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q): expected %v, got %v (%v)", level, want, got, err)
		}
	}
	if _, err := ParseMode("verbose"); err == nil {
		t.Errorf("Expected error for unknown level")
	}
}

func TestSetLoggerWritesFile(t *testing.T) {
	defer SetOutput(os.Stderr)
	defer SetLogMode(InfoMode)

	path := filepath.Join(t.TempDir(), "hsibatch.log")
	cfg := &LogConfig{Logfile: path, MaxSize: 1, MaxAge: 1, Level: "debug"}
	closer, err := cfg.SetLogger()
	if err != nil {
		t.Fatalf("SetLogger failed: %v", err)
	}
	Debugf("written to file")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("Expected message in log file, got %q", data)
	}

	bad := &LogConfig{Level: "loud"}
	if _, err := bad.SetLogger(); err == nil {
		t.Errorf("Expected error for an unknown level")
	}
}
