package source

import "context"

// Candidate represents a trending repository considered for promotion.
type Candidate struct {
	FullName    string // "owner/repo"
	URL         string // canonical repository page
	Description string
	Language    string
	Stars       int
}

// ID returns the identifier used for duplicate tracking.
func (c Candidate) ID() string {
	return c.URL
}

// Source produces promotion candidates from one discovery channel.
type Source interface {
	// Name returns the source identifier (e.g. "github").
	Name() string

	// Fetch returns the current candidates.
	Fetch(ctx context.Context) ([]Candidate, error)
}
