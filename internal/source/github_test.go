package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const trendingPage = `<!DOCTYPE html>
<html>
<body>
<main>
  <article class="Box-row">
    <h2 class="h3 lh-condensed">
      <a href="/alice/widgets">alice / widgets</a>
    </h2>
    <p class="col-9 color-fg-muted my-1 pr-4">
      A widget toolkit for terminals.
    </p>
    <span itemprop="programmingLanguage">Go</span>
    <a href="/alice/widgets/stargazers" class="Link Link--muted d-inline-block mr-3">
      12,345
    </a>
  </article>
  <article class="Box-row">
    <h2 class="h3 lh-condensed">
      <a href="/bob/parser">bob / parser</a>
    </h2>
    <p class="col-9 color-fg-muted my-1 pr-4">Streaming parser.</p>
    <a href="/bob/parser/stargazers">987</a>
  </article>
  <article class="Box-row">
    <h2 class="h3 lh-condensed"><a></a></h2>
  </article>
</main>
</body>
</html>`

func TestParseTrending(t *testing.T) {
	candidates, err := parseTrending(strings.NewReader(trendingPage))
	if err != nil {
		t.Fatalf("parseTrending: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}

	first := candidates[0]
	if first.FullName != "alice/widgets" {
		t.Errorf("full name = %q", first.FullName)
	}
	if first.URL != "https://github.com/alice/widgets" {
		t.Errorf("url = %q", first.URL)
	}
	if first.Description != "A widget toolkit for terminals." {
		t.Errorf("description = %q", first.Description)
	}
	if first.Language != "Go" {
		t.Errorf("language = %q", first.Language)
	}
	if first.Stars != 12345 {
		t.Errorf("stars = %d, want 12345", first.Stars)
	}

	second := candidates[1]
	if second.Language != "Unknown" {
		t.Errorf("missing language should map to Unknown, got %q", second.Language)
	}
	if second.Stars != 987 {
		t.Errorf("stars = %d, want 987", second.Stars)
	}
}

func TestParseStarCount(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"12,345", 12345},
		{" 987 ", 987},
		{"1,234,567", 1234567},
		{"", 0},
		{"n/a", 0},
	}
	for _, tt := range tests {
		if got := parseStarCount(tt.in); got != tt.want {
			t.Errorf("parseStarCount(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFetchUsesTrendingPage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "starcrier") {
			t.Errorf("missing user agent, got %q", ua)
		}
		_, _ = w.Write([]byte(trendingPage))
	}))
	defer ts.Close()

	oldURL := githubTrendingURL
	githubTrendingURL = ts.URL
	defer func() { githubTrendingURL = oldURL }()

	g := NewGitHub("")
	candidates, err := g.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if g.Name() != "github" {
		t.Errorf("name = %q", g.Name())
	}
}

func TestFetchFallsBackToSearch(t *testing.T) {
	trending := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer trending.Close()

	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/search/repositories") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		q := r.URL.Query()
		if !strings.HasPrefix(q.Get("q"), "created:>") {
			t.Errorf("query = %q", q.Get("q"))
		}
		if q.Get("sort") != "stars" || q.Get("order") != "desc" {
			t.Errorf("sort=%q order=%q", q.Get("sort"), q.Get("order"))
		}
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"items": [
			{"full_name": "carol/tool", "html_url": "https://github.com/carol/tool",
			 "description": "a tool", "language": "Rust", "stargazers_count": 410},
			{"full_name": "no/url", "html_url": ""}
		]}`))
	}))
	defer api.Close()

	oldTrending, oldAPI := githubTrendingURL, githubAPIBaseURL
	githubTrendingURL = trending.URL
	githubAPIBaseURL = api.URL
	defer func() {
		githubTrendingURL = oldTrending
		githubAPIBaseURL = oldAPI
	}()

	g := NewGitHub("ghp_testtoken")
	candidates, err := g.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	c := candidates[0]
	if c.FullName != "carol/tool" || c.Language != "Rust" || c.Stars != 410 {
		t.Errorf("unexpected candidate: %+v", c)
	}
	if gotAuth != "Bearer ghp_testtoken" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestFetchBothPathsFail(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	oldTrending, oldAPI := githubTrendingURL, githubAPIBaseURL
	githubTrendingURL = failing.URL
	githubAPIBaseURL = failing.URL
	defer func() {
		githubTrendingURL = oldTrending
		githubAPIBaseURL = oldAPI
	}()

	g := NewGitHub("")
	if _, err := g.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when both scrape and search fail")
	}
}

func TestCandidateID(t *testing.T) {
	c := Candidate{FullName: "alice/widgets", URL: "https://github.com/alice/widgets"}
	if c.ID() != c.URL {
		t.Errorf("ID() = %q, want the URL", c.ID())
	}
}
