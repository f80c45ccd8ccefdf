package snapshot

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	c, err := New(dir, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.timeout != 90*time.Second {
		t.Errorf("zero timeout should default, got %s", c.timeout)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("screenshot dir not created: %v", err)
	}

	if _, err := New("", time.Minute); err == nil {
		t.Error("expected error for empty dir")
	}
}

func TestFileName(t *testing.T) {
	ts := time.Unix(1750000000, 0)
	tests := []struct {
		url  string
		want string
	}{
		{"https://github.com/alice/widgets", "widgets_1750000000.png"},
		{"https://github.com/alice/widgets/", "repo_1750000000.png"},
		{"widgets", "widgets_1750000000.png"},
	}
	for _, tt := range tests {
		if got := FileName(tt.url, ts); got != tt.want {
			t.Errorf("FileName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	old := filepath.Join(dir, "old_1.png")
	fresh := filepath.Join(dir, "fresh_2.png")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", p, err)
		}
	}

	stale := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if err := os.Chtimes(other, stale, stale); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	n, err := c.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d files, want 1", n)
	}

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("stale screenshot survived")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("fresh screenshot was removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Error("non-png file was removed")
	}
}
