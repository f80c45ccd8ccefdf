package source

import (
	"context"
	"errors"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/dkarayel/starcrier/internal/logger"
)

const (
	rssSourceName   = "rss"
	rssFetchTimeout = 30 * time.Second
	rssUserAgent    = "Mozilla/5.0 (compatible; starcrier/1.0; +https://github.com/dkarayel/starcrier)"
)

var (
	rssHTMLTagRe = regexp.MustCompile(`<[^>]*>`)
	repoPathRe   = regexp.MustCompile(`^/([^/]+/[^/]+)/?$`)
)

// RSSSource pulls extra candidates from configured feeds, typically
// trending mirrors or release announcement feeds. Only items that link to
// a repository page become candidates.
type RSSSource struct {
	feeds []string
}

// NewRSS creates an RSS/Atom candidate source. At least one feed URL is
// required.
func NewRSS(feeds []string) (*RSSSource, error) {
	if len(feeds) == 0 {
		return nil, errors.New("rss: at least one feed URL is required")
	}
	return &RSSSource{feeds: feeds}, nil
}

func (rs *RSSSource) Name() string {
	return rssSourceName
}

func (rs *RSSSource) Fetch(ctx context.Context) ([]Candidate, error) {
	var candidates []Candidate
	for _, feedURL := range rs.feeds {
		items, err := fetchFeed(ctx, feedURL)
		if err != nil {
			logger.Log.WithField("feed", feedURL).Warnf("rss fetch failed: %v", err)
			continue
		}
		candidates = append(candidates, items...)
	}
	return candidates, nil
}

// rssTransport injects a User-Agent header into every request.
type rssTransport struct {
	base http.RoundTripper
}

func (t *rssTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", rssUserAgent)
	return t.base.RoundTrip(req)
}

func fetchFeed(ctx context.Context, feedURL string) ([]Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, rssFetchTimeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = &http.Client{
		Timeout:   rssFetchTimeout,
		Transport: &rssTransport{base: http.DefaultTransport},
	}
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, err
	}

	return candidatesFromFeed(feed), nil
}

func candidatesFromFeed(feed *gofeed.Feed) []Candidate {
	var candidates []Candidate
	for _, item := range feed.Items {
		fullName, ok := repoFullName(item.Link)
		if !ok {
			continue
		}
		candidates = append(candidates, Candidate{
			FullName:    fullName,
			URL:         "https://github.com/" + fullName,
			Description: itemDescription(item),
			Language:    "Unknown",
		})
	}
	return candidates
}

// repoFullName extracts "owner/repo" from links pointing at a repository
// page; other links are not candidates.
func repoFullName(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil || !strings.HasSuffix(u.Host, "github.com") {
		return "", false
	}
	m := repoPathRe.FindStringSubmatch(u.Path)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func itemDescription(item *gofeed.Item) string {
	raw := item.Description
	if raw == "" {
		raw = item.Content
	}
	text := strings.TrimSpace(html.UnescapeString(rssHTMLTagRe.ReplaceAllString(raw, " ")))
	if text == "" {
		text = item.Title
	}
	return text
}
