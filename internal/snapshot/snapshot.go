// Package snapshot captures README screenshots with headless Chrome.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

const (
	// readmeSelector matches the README container on a repository page.
	readmeSelector = "#readme, .markdown-body"

	viewportWidth  = 1280
	viewportHeight = 2000
	settleDelay    = 2 * time.Second
)

// Capturer renders repository pages and writes README screenshots as PNG
// files under its directory.
type Capturer struct {
	dir     string
	timeout time.Duration
}

// New creates a Capturer, ensuring the screenshot directory exists.
func New(dir string, timeout time.Duration) (*Capturer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("snapshot: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create screenshot dir: %w", err)
	}
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Capturer{dir: dir, timeout: timeout}, nil
}

// Capture renders the repository page and returns the path of the saved
// screenshot. The caller treats failure as "post without an image".
func (c *Capturer) Capture(ctx context.Context, repoURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var buf []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(viewportWidth, viewportHeight),
		chromedp.Navigate(repoURL),
		chromedp.WaitVisible(readmeSelector, chromedp.ByQuery),
		// let images and syntax highlighting finish rendering
		chromedp.Sleep(settleDelay),
		chromedp.Screenshot(readmeSelector, &buf, chromedp.NodeVisible, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("capture %s: %w", repoURL, err)
	}
	if len(buf) == 0 {
		return "", fmt.Errorf("capture %s: empty screenshot", repoURL)
	}

	path := filepath.Join(c.dir, FileName(repoURL, time.Now()))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("write screenshot: %w", err)
	}
	return path, nil
}

// Prune removes screenshots older than maxAge and returns how many were
// deleted.
func (c *Capturer) Prune(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, fmt.Errorf("read screenshot dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".png") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, entry.Name())); err == nil {
			deleted++
		}
	}
	return deleted, nil
}

// FileName builds a stable screenshot file name from the repository URL.
func FileName(repoURL string, ts time.Time) string {
	slug := repoURL
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	if slug == "" {
		slug = "repo"
	}
	return fmt.Sprintf("%s_%d.png", slug, ts.Unix())
}

// browserBinaries are the executables chromedp can drive, in preference
// order.
var browserBinaries = []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "headless-shell"}

// FindBrowser reports the first usable browser binary on PATH.
func FindBrowser() (string, error) {
	for _, name := range browserBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no Chrome or Chromium binary found on PATH")
}
