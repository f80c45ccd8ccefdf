package publisher

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// API endpoints tracked separately, as each carries its own quota.
const (
	endpointTweet = "tweet_create"
	endpointMedia = "media_upload"
)

const resetSlack = 2 * time.Second

type endpointLimit struct {
	Limit     int
	Remaining int
	Reset     int64 // unix seconds
}

// RateLimitTracker mirrors the API's view of our quota, updated from
// x-rate-limit-* response headers.
type RateLimitTracker struct {
	mu     sync.Mutex
	limits map[string]endpointLimit
}

func NewRateLimitTracker() *RateLimitTracker {
	return &RateLimitTracker{
		limits: map[string]endpointLimit{
			endpointTweet: {Limit: 50, Remaining: 50},
			endpointMedia: {Limit: 50, Remaining: 50},
		},
	}
}

// UpdateFromHeaders refreshes the endpoint's quota from response headers.
// Missing headers leave the previous values in place.
func (t *RateLimitTracker) UpdateFromHeaders(h http.Header, endpoint string) {
	if h == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	lim := t.limits[endpoint]
	if v, err := strconv.Atoi(h.Get("x-rate-limit-limit")); err == nil {
		lim.Limit = v
	}
	if v, err := strconv.Atoi(h.Get("x-rate-limit-remaining")); err == nil {
		lim.Remaining = v
	}
	if v, err := strconv.ParseInt(h.Get("x-rate-limit-reset"), 10, 64); err == nil {
		lim.Reset = v
	}
	t.limits[endpoint] = lim
}

// Exhausted reports whether the endpoint's quota has run out.
func (t *RateLimitTracker) Exhausted(endpoint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.limits[endpoint].Remaining < 1
}

// WaitTime returns how long to wait until the endpoint's quota resets.
func (t *RateLimitTracker) WaitTime(endpoint string, now time.Time) time.Duration {
	t.mu.Lock()
	reset := t.limits[endpoint].Reset
	t.mu.Unlock()

	wait := time.Unix(reset, 0).Sub(now) + resetSlack
	if wait < 0 {
		return 0
	}
	return wait
}
