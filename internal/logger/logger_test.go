package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestInit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "starcrier.log")

	if err := Init("debug", logPath); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer func() {
		Log.SetOutput(os.Stderr)
		Log.SetLevel(logrus.InfoLevel)
	}()

	if Log.GetLevel() != logrus.DebugLevel {
		t.Errorf("level = %s, want debug", Log.GetLevel())
	}

	Log.Info("hello from test")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello from test") {
		t.Errorf("log file missing entry: %q", data)
	}
}

func TestInitBadLevelFallsBack(t *testing.T) {
	if err := Init("chatty", ""); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer func() {
		Log.SetOutput(os.Stderr)
		Log.SetLevel(logrus.InfoLevel)
	}()

	if Log.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %s, want info fallback", Log.GetLevel())
	}
}
