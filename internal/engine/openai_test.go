package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIClient_Defaults(t *testing.T) {
	c := NewOpenAIClient("sk-test")

	if c.apiKey != "sk-test" {
		t.Errorf("apiKey = %q, want %q", c.apiKey, "sk-test")
	}
	if c.model != "gpt-4o-mini" {
		t.Errorf("model = %q, want %q", c.model, "gpt-4o-mini")
	}
	if c.baseURL != "https://api.openai.com/v1" {
		t.Errorf("baseURL = %q, want default OpenAI URL", c.baseURL)
	}
}

func TestNewOpenAIClient_WithOptions(t *testing.T) {
	c := NewOpenAIClient("sk-test",
		WithModel("gpt-4o"),
		WithBaseURL("https://llm.internal/v1/"),
	)

	if c.model != "gpt-4o" {
		t.Errorf("model = %q, want %q", c.model, "gpt-4o")
	}
	if c.baseURL != "https://llm.internal/v1" {
		t.Errorf("baseURL = %q, trailing slash should be trimmed", c.baseURL)
	}
}

func TestOpenAIComplete_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-mock" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer sk-mock")
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("messages = %+v, want single user prompt", req.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "world"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     12,
				"completion_tokens": 3,
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-mock", WithBaseURL(srv.URL))
	got, err := c.Complete(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got.Text != "world" {
		t.Errorf("Text = %q, want %q", got.Text, "world")
	}
	if got.TokensIn != 12 || got.TokensOut != 3 {
		t.Errorf("usage = %d/%d, want 12/3", got.TokensIn, got.TokensOut)
	}
}

func TestOpenAIComplete_NonRetryableError(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, `{"error":{"message":"bad key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-bad", WithBaseURL(srv.URL))
	if _, err := c.Complete(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (401 must not be retried)", calls)
	}
}
