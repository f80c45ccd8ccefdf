// Package publisher posts composed content to the X API.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/dkarayel/starcrier/internal/logger"
)

const (
	defaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	defaultTweetURL  = "https://api.twitter.com/2/tweets"

	httpTimeout    = 60 * time.Second
	maxRetries     = 5
	baseRetryDelay = 15 * time.Second
)

// ErrRateLimited signals an HTTP 429 from the API.
var ErrRateLimited = errors.New("rate limited")

// rateLimitError records which endpoint returned the 429, so the retry
// wait uses that endpoint's reset time.
type rateLimitError struct {
	endpoint string
}

func (e *rateLimitError) Error() string { return "rate limited" }

func (e *rateLimitError) Unwrap() error { return ErrRateLimited }

// Credentials are the OAuth1 user-context keys for the posting account.
type Credentials struct {
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
}

// Post is the content handed to Publish. MediaPath and LinkReply are
// optional.
type Post struct {
	Text      string
	MediaPath string
	LinkReply string
}

// Result identifies what was created.
type Result struct {
	PostID  string
	MediaID string
}

// Client publishes posts with media via the v1.1 upload endpoint and the
// v2 tweet endpoint, sharing one OAuth1-signed HTTP client.
type Client struct {
	http    *http.Client
	tracker *RateLimitTracker

	uploadURL string
	tweetURL  string

	// Injectable for tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a publisher client. All four credentials are required;
// a missing one is a startup configuration error.
func New(creds Credentials) (*Client, error) {
	if creds.APIKey == "" || creds.APISecret == "" || creds.AccessToken == "" || creds.AccessSecret == "" {
		return nil, errors.New("publisher: missing API credentials")
	}

	cfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	httpClient := cfg.Client(oauth1.NoContext, token)
	httpClient.Timeout = httpTimeout

	return &Client{
		http:      httpClient,
		tracker:   NewRateLimitTracker(),
		uploadURL: defaultUploadURL,
		tweetURL:  defaultTweetURL,
		sleep:     time.Sleep,
		now:       time.Now,
	}, nil
}

// Publish uploads the media (if any), creates the main post, and replies
// with the repository link. Rate limits and transient API errors are
// retried with backoff up to maxRetries.
func (c *Client) Publish(ctx context.Context, post Post) (Result, error) {
	if post.Text == "" {
		return Result{}, errors.New("publish: text is required")
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		res, err := c.attempt(ctx, post)
		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}

		var rle *rateLimitError
		if errors.As(err, &rle) {
			wait := c.tracker.WaitTime(rle.endpoint, c.now())
			logger.Log.Warnf("rate limit exceeded on %s, waiting %s", rle.endpoint, wait)
			c.sleep(wait)
			continue
		}

		if attempt < maxRetries-1 {
			delay := baseRetryDelay * (1 << attempt)
			logger.Log.Warnf("publish attempt %d failed: %v, retrying in %s", attempt+1, err, delay)
			c.sleep(delay)
		}
	}

	return Result{}, fmt.Errorf("publish: %w", lastErr)
}

func (c *Client) attempt(ctx context.Context, post Post) (Result, error) {
	var mediaIDs []string
	var res Result

	if post.MediaPath != "" {
		if c.tracker.Exhausted(endpointMedia) {
			wait := c.tracker.WaitTime(endpointMedia, c.now())
			logger.Log.Warnf("media upload limit reached, waiting %s", wait)
			c.sleep(wait)
		}
		mediaID, err := c.uploadMedia(ctx, post.MediaPath)
		if err != nil {
			return Result{}, fmt.Errorf("upload media: %w", err)
		}
		mediaIDs = append(mediaIDs, mediaID)
		res.MediaID = mediaID
	}

	if c.tracker.Exhausted(endpointTweet) {
		wait := c.tracker.WaitTime(endpointTweet, c.now())
		logger.Log.Warnf("tweet creation limit reached, waiting %s", wait)
		c.sleep(wait)
	}

	postID, err := c.createTweet(ctx, post.Text, mediaIDs, "")
	if err != nil {
		return Result{}, fmt.Errorf("create post: %w", err)
	}
	res.PostID = postID

	if post.LinkReply != "" {
		// The main post is already out; a failed reply is not worth a
		// duplicate retry of the whole sequence.
		if _, err := c.createTweet(ctx, "🔗 "+post.LinkReply, nil, postID); err != nil {
			logger.Log.Warnf("link reply failed: %v", err)
		}
	}

	return res, nil
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

func (c *Client) uploadMedia(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer func() { _ = file.Close() }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy media: %w", err)
	}
	if err := mw.WriteField("media_category", "tweet_image"); err != nil {
		return "", fmt.Errorf("write media category: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.tracker.UpdateFromHeaders(resp.Header, endpointMedia)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &rateLimitError{endpoint: endpointMedia}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apiError(resp)
	}

	var mu mediaUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&mu); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if mu.MediaIDString == "" {
		return "", errors.New("no media id in response")
	}
	return mu.MediaIDString, nil
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
	Reply *tweetReply `json:"reply,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (c *Client) createTweet(ctx context.Context, text string, mediaIDs []string, inReplyTo string) (string, error) {
	reqBody := tweetRequest{Text: text}
	if len(mediaIDs) > 0 {
		reqBody.Media = &tweetMedia{MediaIDs: mediaIDs}
	}
	if inReplyTo != "" {
		reqBody.Reply = &tweetReply{InReplyToTweetID: inReplyTo}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tweetURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.tracker.UpdateFromHeaders(resp.Header, endpointTweet)

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", &rateLimitError{endpoint: endpointTweet}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apiError(resp)
	}

	var tr tweetResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if tr.Data.ID == "" {
		return "", errors.New("no post id in response")
	}
	return tr.Data.ID, nil
}

func apiError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("api returned status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
}
