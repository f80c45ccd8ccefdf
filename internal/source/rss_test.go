package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmcdole/gofeed"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Trending Repositories</title>
  <item>
    <title>alice/widgets</title>
    <link>https://github.com/alice/widgets</link>
    <description>&lt;p&gt;A widget toolkit &amp;amp; more.&lt;/p&gt;</description>
  </item>
  <item>
    <title>Some blog post</title>
    <link>https://example.com/blog/42</link>
    <description>not a repository</description>
  </item>
  <item>
    <title>bob/parser release</title>
    <link>https://github.com/bob/parser/</link>
    <description></description>
  </item>
  <item>
    <title>deep link</title>
    <link>https://github.com/alice/widgets/issues/7</link>
  </item>
</channel>
</rss>`

func TestNewRSSRequiresFeeds(t *testing.T) {
	if _, err := NewRSS(nil); err == nil {
		t.Fatal("expected error for empty feed list")
	}
}

func TestRSSFetch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer ts.Close()

	rs, err := NewRSS([]string{ts.URL})
	if err != nil {
		t.Fatalf("NewRSS: %v", err)
	}
	if rs.Name() != "rss" {
		t.Errorf("name = %q", rs.Name())
	}

	candidates, err := rs.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}

	if candidates[0].FullName != "alice/widgets" {
		t.Errorf("first candidate = %q", candidates[0].FullName)
	}
	if candidates[0].Description != "A widget toolkit & more." {
		t.Errorf("description = %q, want tags stripped and entities decoded", candidates[0].Description)
	}
	if candidates[1].FullName != "bob/parser" {
		t.Errorf("second candidate = %q", candidates[1].FullName)
	}
	if candidates[1].URL != "https://github.com/bob/parser" {
		t.Errorf("url = %q", candidates[1].URL)
	}
}

func TestRSSFetchSkipsBrokenFeeds(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testFeed))
	}))
	defer good.Close()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	rs, err := NewRSS([]string{broken.URL, good.URL})
	if err != nil {
		t.Fatalf("NewRSS: %v", err)
	}

	candidates, err := rs.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates from the healthy feed, want 2", len(candidates))
	}
}

func TestRepoFullName(t *testing.T) {
	tests := []struct {
		link   string
		want   string
		wantOK bool
	}{
		{"https://github.com/alice/widgets", "alice/widgets", true},
		{"https://github.com/alice/widgets/", "alice/widgets", true},
		{"https://www.github.com/alice/widgets", "alice/widgets", true},
		{"https://github.com/alice", "", false},
		{"https://github.com/alice/widgets/issues/7", "", false},
		{"https://example.com/alice/widgets", "", false},
		{"://bad url", "", false},
	}
	for _, tt := range tests {
		got, ok := repoFullName(tt.link)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("repoFullName(%q) = %q, %v; want %q, %v", tt.link, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestItemDescriptionFallsBackToTitle(t *testing.T) {
	item := &gofeed.Item{Title: "bob/parser release"}
	if got := itemDescription(item); got != "bob/parser release" {
		t.Errorf("itemDescription = %q", got)
	}
}
