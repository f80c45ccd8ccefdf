// Package compose turns a candidate repository into post text, via a
// locally hosted Ollama model with a deterministic template fallback.
package compose

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkarayel/starcrier/internal/source"
)

// MaxPostRunes caps the body length to what the posting API accepts.
const MaxPostRunes = 280

// Composer produces the text body for a post. Implementations must always
// return a non-empty body.
type Composer interface {
	Compose(ctx context.Context, c source.Candidate) string
}

// TemplateComposer is the deterministic fallback used when no model is
// available or generation fails.
type TemplateComposer struct{}

func (TemplateComposer) Compose(_ context.Context, c source.Candidate) string {
	name := c.FullName
	if name == "" {
		name = "this project"
	}
	desc := strings.TrimSpace(c.Description)
	if desc == "" {
		desc = "A valuable open-source project"
	}
	desc = truncateRunes(desc, 100)

	text := fmt.Sprintf("🚀 Check out %s - %s\n\n⭐ %d stars | %s\n#OpenSource #GitHub",
		name, desc, c.Stars, c.Language)
	return truncateRunes(text, MaxPostRunes)
}

// Sanitize cleans model output: drops everything after a code fence,
// strips bold markers, and enforces the length cap.
func Sanitize(text string) string {
	text, _, _ = strings.Cut(text, "```")
	text = strings.ReplaceAll(text, "**", "")
	return truncateRunes(strings.TrimSpace(text), MaxPostRunes)
}

func truncateRunes(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return strings.TrimSpace(s[:i])
		}
		count++
	}
	return s
}
