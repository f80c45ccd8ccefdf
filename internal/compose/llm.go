package compose

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/dkarayel/starcrier/internal/logger"
	"github.com/dkarayel/starcrier/internal/source"
)

const (
	generateTimeout = 2 * time.Minute
	temperature     = 0.7
)

const promptTemplate = `Create an engaging technical tweet about this open-source project:
- Project: %s
- Language: %s
- Stars: %d
- Description: %s
- URL: %s

Guidelines:
- Keep under 250 characters
- Highlight technical merits
- Include relevant hashtags (max 3)
- Emphasize why developers should check it out
- Use emojis sparingly`

// LLMComposer generates post text with an Ollama model. Falls back to the
// provided composer on any error or empty output.
type LLMComposer struct {
	client    *api.Client
	model     string
	maxTokens int
	fallback  Composer
}

// NewLLM creates an Ollama-backed composer. An empty host selects the
// client's environment default (OLLAMA_HOST or localhost:11434).
func NewLLM(host, model string, maxTokens int, fallback Composer) (*LLMComposer, error) {
	if model == "" {
		return nil, errors.New("compose: model is required")
	}
	if fallback == nil {
		return nil, errors.New("compose: fallback composer is required")
	}

	var (
		client *api.Client
		err    error
	)
	if host == "" {
		client, err = api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("create ollama client: %w", err)
		}
	} else {
		u, perr := url.Parse(host)
		if perr != nil {
			return nil, fmt.Errorf("parse ollama host: %w", perr)
		}
		client = api.NewClient(u, &http.Client{Timeout: generateTimeout})
	}

	return &LLMComposer{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		fallback:  fallback,
	}, nil
}

func (l *LLMComposer) Compose(ctx context.Context, c source.Candidate) string {
	text, err := l.generate(ctx, c)
	if err != nil {
		logger.Log.WithField("repo", c.FullName).Warnf("llm generation failed: %v", err)
		return l.fallback.Compose(ctx, c)
	}
	if text == "" {
		return l.fallback.Compose(ctx, c)
	}
	return text
}

func (l *LLMComposer) generate(ctx context.Context, c source.Candidate) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	stream := false
	req := &api.GenerateRequest{
		Model:  l.model,
		Prompt: buildPrompt(c),
		Stream: &stream,
		Options: map[string]any{
			"temperature": temperature,
			"num_predict": l.maxTokens,
		},
	}

	var sb strings.Builder
	err := l.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	return Sanitize(sb.String()), nil
}

// Ping verifies the inference server is reachable.
func (l *LLMComposer) Ping(ctx context.Context) error {
	if _, err := l.client.List(ctx); err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	return nil
}

// CheckModel verifies the configured model has been pulled.
func (l *LLMComposer) CheckModel(ctx context.Context) error {
	resp, err := l.client.List(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range resp.Models {
		if m.Name == l.model || strings.TrimSuffix(m.Name, ":latest") == l.model {
			return nil
		}
	}
	return fmt.Errorf("model %q not found - run: ollama pull %s", l.model, l.model)
}

func buildPrompt(c source.Candidate) string {
	desc := c.Description
	if desc == "" {
		desc = "No description available."
	}
	return fmt.Sprintf(promptTemplate, c.FullName, c.Language, c.Stars, desc, c.URL)
}
