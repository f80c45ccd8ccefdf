package compose

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dkarayel/starcrier/internal/source"
)

// fakeOllama serves the generate and list endpoints the composer touches.
func fakeOllama(t *testing.T, response string, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
			Stream *bool  `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Model == "" || req.Prompt == "" {
			http.Error(w, "missing model or prompt", http.StatusBadRequest)
			return
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":    req.Model,
			"response": response,
			"done":     true,
		})
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{
				{"name": "deepseek-coder:latest"},
				{"name": "llama3:8b"},
			},
		})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func testCandidate() source.Candidate {
	return source.Candidate{
		FullName:    "alice/widgets",
		URL:         "https://github.com/alice/widgets",
		Description: "A widget toolkit.",
		Language:    "Go",
		Stars:       410,
	}
}

func TestLLMComposeUsesModelOutput(t *testing.T) {
	ts := fakeOllama(t, "**Neat** widget toolkit in Go 🚀 #OpenSource", http.StatusOK)

	l, err := NewLLM(ts.URL, "deepseek-coder", 280, TemplateComposer{})
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}

	got := l.Compose(context.Background(), testCandidate())
	want := "Neat widget toolkit in Go 🚀 #OpenSource"
	if got != want {
		t.Errorf("Compose = %q, want sanitized model output %q", got, want)
	}
}

func TestLLMComposeFallsBackOnError(t *testing.T) {
	ts := fakeOllama(t, "", http.StatusInternalServerError)

	l, err := NewLLM(ts.URL, "deepseek-coder", 280, TemplateComposer{})
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}

	got := l.Compose(context.Background(), testCandidate())
	if !strings.Contains(got, "Check out alice/widgets") {
		t.Errorf("expected template fallback, got %q", got)
	}
}

func TestLLMComposeFallsBackOnEmptyOutput(t *testing.T) {
	ts := fakeOllama(t, "   ", http.StatusOK)

	l, err := NewLLM(ts.URL, "deepseek-coder", 280, TemplateComposer{})
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}

	got := l.Compose(context.Background(), testCandidate())
	if !strings.Contains(got, "Check out alice/widgets") {
		t.Errorf("expected template fallback for empty output, got %q", got)
	}
}

func TestLLMPingAndCheckModel(t *testing.T) {
	ts := fakeOllama(t, "ok", http.StatusOK)

	l, err := NewLLM(ts.URL, "deepseek-coder", 280, TemplateComposer{})
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}

	ctx := context.Background()
	if err := l.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := l.CheckModel(ctx); err != nil {
		t.Errorf("CheckModel: %v", err)
	}

	missing, err := NewLLM(ts.URL, "mistral", 280, TemplateComposer{})
	if err != nil {
		t.Fatalf("NewLLM: %v", err)
	}
	if err := missing.CheckModel(ctx); err == nil {
		t.Error("expected error for unpulled model")
	}
}
