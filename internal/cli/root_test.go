package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"48h", 48 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"xd", 0, true},
		{"soon", 0, true},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseDuration(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseDuration(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}

func TestImportDryRun(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "generated_tweets.log")
	content := strings.Join([]string{
		"2025-06-01 10:00:00 Generated tweet for alice/widgets",
		"2025-06-01 10:00:05 Posted: https://github.com/alice/widgets",
		"some unrelated line",
		"2025-06-02 11:30:00 Posted: https://github.com/bob/parser",
		"Posted:    ",
	}, "\n")
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	rootCmd.SetArgs([]string{"import", "--dry-run", logPath})
	defer func() {
		rootCmd.SetArgs(nil)
		importDryRun = false
	}()

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
}
