package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewProvider(t *testing.T) {
	cases := []struct {
		provider string
		wantErr  bool
	}{
		{"ollama", false},
		{"openai", false},
		{"openrouter", false},
		{"custom", false},
		{"", true},
		{"bogus", true},
	}
	for _, tc := range cases {
		_, err := NewProvider(Config{Provider: tc.provider})
		if (err != nil) != tc.wantErr {
			t.Errorf("NewProvider(%q) err = %v, wantErr %v", tc.provider, err, tc.wantErr)
		}
	}
}

func TestChat(t *testing.T) {
	var gotReq chatCompletionRequest
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{"message": map[string]any{"content": "hello"}, "finish_reason": "stop"},
			},
			"usage": map[string]any{
				"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5,
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", Model: "test-model", BaseURL: srv.URL, APIKey: "secret"})
	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages:       []Message{{Role: "user", Content: "hi"}},
		ResponseFormat: "json_object",
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "hello" || resp.FinishReason != "stop" {
		t.Errorf("resp = %+v", resp)
	}
	if resp.TotalTokens != 5 {
		t.Errorf("usage not carried over: %+v", resp)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("config model not applied to request: %q", gotReq.Model)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("response format not forwarded: %+v", gotReq.ResponseFormat)
	}
}

func TestChatNonRetryableError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", BaseURL: srv.URL})
	if _, err := p.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestChatEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	p := NewOpenAICompat(Config{Provider: "custom", BaseURL: srv.URL})
	if _, err := p.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
