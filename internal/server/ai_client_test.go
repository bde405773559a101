package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newOpenRouterTestClient(baseURL string) *OpenRouterClient {
	cfg := baseTestConfig
	cfg.OpenRouterAPIKey = "test-key"
	cfg.OpenRouterBaseURL = baseURL
	cfg.OpenRouterModel = "google/gemini-2.0-flash-001"
	cfg.AIReferer = "http://localhost:3000"
	cfg.AIAppTitle = "Choti Companion"
	cfg.AIMaxOutputTokens = 256
	cfg.AITemperature = 0.5
	return NewOpenRouterClient(cfg)
}

func TestOpenRouterClientSendsAttributionAndSettings(t *testing.T) {
	t.Parallel()

	var (
		gotPath    string
		gotAuth    string
		gotReferer string
		gotTitle   string
		payload    map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReferer = r.Header.Get("HTTP-Referer")
		gotTitle = r.Header.Get("X-Title")
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode request payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"gen-1",
			"object":"chat.completion",
			"model":"google/gemini-2.0-flash-001",
			"choices":[{"index":0,"message":{"role":"assistant","content":"  I'm right here.  "},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}
		}`))
	}))
	defer server.Close()

	client := newOpenRouterTestClient(server.URL)
	resp, err := client.Query(context.Background(), AIModelRequest{
		SystemPrompt: "You are Choti's companion.",
		Conversation: []ChatTurn{
			{Role: "user", Content: "hey"},
			{Role: "model", Content: "hello there"},
			{Role: "system", Content: "ignored"},
			{Role: "user", Content: "   "},
			{Role: "user", Content: "rough day"},
		},
	})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if resp.Answer != "I'm right here." {
		t.Fatalf("unexpected answer %q", resp.Answer)
	}
	if resp.Usage.TotalTokens != 16 {
		t.Fatalf("expected total tokens 16, got %d", resp.Usage.TotalTokens)
	}

	if gotPath != "/chat/completions" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
	if gotReferer != "http://localhost:3000" || gotTitle != "Choti Companion" {
		t.Fatalf("missing attribution headers referer=%q title=%q", gotReferer, gotTitle)
	}
	if payload["model"] != "google/gemini-2.0-flash-001" {
		t.Fatalf("unexpected model %v", payload["model"])
	}
	if payload["max_tokens"] != float64(256) {
		t.Fatalf("unexpected max_tokens %v", payload["max_tokens"])
	}
	if payload["temperature"] != 0.5 {
		t.Fatalf("unexpected temperature %v", payload["temperature"])
	}

	messages, ok := payload["messages"].([]any)
	if !ok {
		t.Fatalf("expected messages array, got %T", payload["messages"])
	}
	wantRoles := []string{"system", "user", "assistant", "user"}
	if len(messages) != len(wantRoles) {
		t.Fatalf("expected %d messages, got %d: %v", len(wantRoles), len(messages), messages)
	}
	for i, raw := range messages {
		msg := raw.(map[string]any)
		if msg["role"] != wantRoles[i] {
			t.Fatalf("message %d: expected role %s, got %v", i, wantRoles[i], msg["role"])
		}
	}
}

func TestOpenRouterClientReturnsErrorOnUpstreamFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit","code":429}}`))
	}))
	defer server.Close()

	client := newOpenRouterTestClient(server.URL)
	_, err := client.Query(context.Background(), AIModelRequest{UserPrompt: "hello"})
	if err == nil {
		t.Fatalf("expected error on 429")
	}
}

func TestOpenRouterClientTreatsEmptyChoicesAsError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"gen-2","model":"m","choices":[],"usage":{"total_tokens":3}}`))
	}))
	defer server.Close()

	client := newOpenRouterTestClient(server.URL)
	_, err := client.Query(context.Background(), AIModelRequest{UserPrompt: "hello"})
	if !errors.Is(err, errEmptyCompletion) {
		t.Fatalf("expected errEmptyCompletion, got %v", err)
	}
}

func TestOpenRouterClientRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	client := newOpenRouterTestClient("http://127.0.0.1:1")
	if _, err := client.Query(context.Background(), AIModelRequest{}); err == nil {
		t.Fatalf("expected error for empty request")
	}
}
