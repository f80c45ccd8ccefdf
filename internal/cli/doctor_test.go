package cli

import (
	"io"
	"os"
	"strings"
	"testing"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()

	fn()
	_ = w.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read pipe: %v", err)
	}
	return string(out)
}

func TestCheckMarks(t *testing.T) {
	out := captureStdout(t, func() {
		printCheck(true, "config %s", "config.yaml")
		printCheck(false, "database: locked")
		printWarn("ollama unreachable (posts will use fallback text)")
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), out)
	}
	if lines[0] != "[ OK ] config config.yaml" {
		t.Errorf("ok mark = %q", lines[0])
	}
	if lines[1] != "[FAIL] database: locked" {
		t.Errorf("fail mark = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "[WARN] ") {
		t.Errorf("warn mark = %q", lines[2])
	}
	// Degraded collaborators must not print FAIL: doctor exits 0 for them.
	if strings.Contains(lines[2], "FAIL") {
		t.Errorf("warning rendered as failure: %q", lines[2])
	}
}
