package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	githubSourceName   = "github"
	githubTrendingPath = "https://github.com/trending"
	githubAPIBase      = "https://api.github.com"
	githubFetchTimeout = 60 * time.Second
	githubUserAgent    = "starcrier/1.0 (+https://github.com/dkarayel/starcrier)"
	searchWindowDays   = 7
	searchPageSize     = 25
)

// Overridable in tests.
var (
	githubTrendingURL = githubTrendingPath
	githubAPIBaseURL  = githubAPIBase
)

// GitHubSource discovers trending repositories by scraping the trending
// page, falling back to the search API when the scrape yields nothing.
type GitHubSource struct {
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGitHub creates a GitHub source. The token is optional; without it the
// search fallback runs unauthenticated against a much lower quota.
func NewGitHub(token string) *GitHubSource {
	return &GitHubSource{
		token:  token,
		client: &http.Client{Timeout: githubFetchTimeout},
		// Unauthenticated scraping gets throttled quickly; one request
		// every 2s keeps us under the radar.
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
	}
}

func (g *GitHubSource) Name() string {
	return githubSourceName
}

func (g *GitHubSource) Fetch(ctx context.Context) ([]Candidate, error) {
	candidates, err := g.fetchTrending(ctx)
	if err == nil && len(candidates) > 0 {
		return candidates, nil
	}
	if err != nil {
		err = fmt.Errorf("github: trending scrape: %w", err)
	} else {
		err = errors.New("github: trending page yielded no repositories")
	}

	fallback, ferr := g.searchRecent(ctx)
	if ferr != nil {
		return nil, fmt.Errorf("%w (search fallback: %v)", err, ferr)
	}
	return fallback, nil
}

func (g *GitHubSource) fetchTrending(ctx context.Context) ([]Candidate, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, githubTrendingURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", githubUserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trending: HTTP %d", resp.StatusCode)
	}

	return parseTrending(resp.Body)
}

// parseTrending extracts repository rows from the trending page markup.
func parseTrending(r io.Reader) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse trending page: %w", err)
	}

	var candidates []Candidate
	doc.Find("article.Box-row").Each(func(_ int, row *goquery.Selection) {
		href, ok := row.Find("h2 a").First().Attr("href")
		if !ok {
			return
		}
		fullName := strings.Trim(strings.TrimSpace(href), "/")
		if fullName == "" || !strings.Contains(fullName, "/") {
			return
		}

		lang := strings.TrimSpace(row.Find("[itemprop='programmingLanguage']").First().Text())
		if lang == "" {
			lang = "Unknown"
		}

		candidates = append(candidates, Candidate{
			FullName:    fullName,
			URL:         "https://github.com/" + fullName,
			Description: strings.TrimSpace(row.Find("p").First().Text()),
			Language:    lang,
			Stars:       parseStarCount(row.Find(`a[href$="/stargazers"]`).First().Text()),
		})
	})

	return candidates, nil
}

// parseStarCount handles the comma-grouped counts shown on the page,
// e.g. "12,345". Unparseable input counts as zero.
func parseStarCount(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

type searchItem struct {
	FullName    string `json:"full_name"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description"`
	Language    string `json:"language"`
	Stars       int    `json:"stargazers_count"`
}

// searchRecent queries the search API for the most-starred repositories
// created inside the search window.
func (g *GitHubSource) searchRecent(ctx context.Context) ([]Candidate, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	cutoff := time.Now().AddDate(0, 0, -searchWindowDays).Format("2006-01-02")
	url := fmt.Sprintf("%s/search/repositories?q=created:>%s&sort=stars&order=desc&per_page=%d",
		githubAPIBaseURL, cutoff, searchPageSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", githubUserAgent)
	req.Header.Set("Accept", "application/vnd.github+json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: HTTP %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]Candidate, 0, len(sr.Items))
	for _, item := range sr.Items {
		if item.HTMLURL == "" {
			continue
		}
		lang := item.Language
		if lang == "" {
			lang = "Unknown"
		}
		candidates = append(candidates, Candidate{
			FullName:    item.FullName,
			URL:         item.HTMLURL,
			Description: item.Description,
			Language:    lang,
			Stars:       item.Stars,
		})
	}
	return candidates, nil
}
