package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type testWriter struct {
	s []string
}

func (t *testWriter) Write(p []byte) (n int, err error) {
	t.s = append(t.s, string(p))
	return len(p), nil
}

func emitAll() {
	Error("bla")
	Errorf("bla")
	Warning("bla")
	Warningf("bla")
	Info("bla")
	Infof("bla")
	Debug("bla")
	Debugf("bla")
}

func TestLevelNone(t *testing.T) {
	tw := &testWriter{}
	Initialize(LevelNone, tw, tw)
	emitAll()

	if len(tw.s) != 0 {
		t.Fatalf("expected log to be empty, but it is '%v'", tw.s)
	}
}

func TestLevelError(t *testing.T) {
	tw := &testWriter{}
	Initialize(LevelError, tw, tw)
	emitAll()

	if len(tw.s) != 2 {
		t.Fatalf("expected log to contain 2 lines, but it is '%v'", tw.s)
	}
}

func TestLevelWarning(t *testing.T) {
	tw := &testWriter{}
	Initialize(LevelWarning, tw, tw)
	emitAll()

	if len(tw.s) != 4 {
		t.Fatalf("expected log to contain 4 lines, but it is '%v'", tw.s)
	}
}

func TestLevelInfo(t *testing.T) {
	tw := &testWriter{}
	Initialize(LevelInfo, tw, tw)
	emitAll()

	if len(tw.s) != 6 {
		t.Fatalf("expected log to contain 6 lines, but it is '%v'", tw.s)
	}
}

func TestLevelDebug(t *testing.T) {
	tw := &testWriter{}
	Initialize(LevelDebug, tw, tw)
	emitAll()

	if len(tw.s) != 8 {
		t.Fatalf("expected log to contain 8 lines, but it is '%v'", tw.s)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]LogLevel{
		"none":    LevelNone,
		"error":   LevelError,
		"warning": LevelWarning,
		"info":    LevelInfo,
		"debug":   LevelDebug,
		"bogus":   LevelWarning,
		"":        LevelWarning,
	}

	for in, expect := range tests {
		if got := ParseLevel(in); got != expect {
			t.Errorf("ParseLevel(%q): expected %v, got %v", in, expect, got)
		}
	}
}

func TestInitializeWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "keyforge.log")

	err := InitializeWithFile(LevelInfo, path)
	if err != nil {
		t.Fatalf("expected log file to be attached, got '%v'", err)
	}
	defer Close()

	Info("file test marker")

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected log file to exist, got '%v'", err)
	}

	if !strings.Contains(string(content), "file test marker") {
		t.Fatalf("expected log file to contain marker, but it is '%v'", string(content))
	}
}
