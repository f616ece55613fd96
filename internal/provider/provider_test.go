package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestOpenAIChat(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "resp-1",
			"model": "test-model",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "a fine morning"}, "finish_reason": "stop"},
			},
			"usage": map[string]int{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{ID: "oai", Endpoint: srv.URL, APIKey: "sk-test"}, zap.NewNop())
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Model:    "test-model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "a fine morning" {
		t.Errorf("content = %q, want %q", resp.Content, "a fine morning")
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q, want bearer token", gotAuth)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("path = %q, want /chat/completions", gotPath)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Errorf("total tokens = %d, want 15", resp.Usage.TotalTokens)
	}
}

func TestOpenAIPathModel(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "ok"}},
			},
		})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{
		ID: "gw", Endpoint: srv.URL, Extra: map[string]string{"path_model": "true"},
	}, zap.NewNop())
	if _, err := p.Chat(context.Background(), &ChatRequest{Model: "mx"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotPath != "/mx/chat/completions" {
		t.Errorf("path = %q, want model in path", gotPath)
	}
}

func TestOpenAIEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(ProviderConfig{ID: "oai", Endpoint: srv.URL}, zap.NewNop())
	if _, err := p.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Fatal("expected error on empty choices")
	}
}

func TestAnthropicChatMovesSystemMessage(t *testing.T) {
	var gotBody anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "msg-1",
			"model": "test-model",
			"content": []map[string]string{
				{"type": "text", "text": "first part, "},
				{"type": "text", "text": "second part"},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 20, "output_tokens": 7},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider(ProviderConfig{ID: "claude", Endpoint: srv.URL, APIKey: "key"}, zap.NewNop())
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Model: "test-model",
		Messages: []Message{
			{Role: "system", Content: "you are a villager"},
			{Role: "user", Content: "what now?"},
		},
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotBody.System != "you are a villager" {
		t.Errorf("system field = %q, want system message hoisted", gotBody.System)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want only the user turn", gotBody.Messages)
	}
	if resp.Content != "first part, second part" {
		t.Errorf("content = %q, want concatenated text blocks", resp.Content)
	}
	if resp.Usage.TotalTokens != 27 {
		t.Errorf("total tokens = %d, want 27", resp.Usage.TotalTokens)
	}
}

func TestAnthropicUsesItsOwnModel(t *testing.T) {
	var gotBody anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{{"type": "text", "text": "ok"}},
		})
	}))
	defer srv.Close()

	p := NewAnthropicProvider(ProviderConfig{
		ID: "claude", Endpoint: srv.URL, Model: "claude-3-5-haiku-latest",
	}, zap.NewNop())
	if _, err := p.Chat(context.Background(), &ChatRequest{Model: "gpt-4o-mini"}); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotBody.Model != "claude-3-5-haiku-latest" {
		t.Errorf("model = %q, want the provider's own", gotBody.Model)
	}
}

func TestAnthropicAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "overloaded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewAnthropicProvider(ProviderConfig{ID: "claude", Endpoint: srv.URL}, zap.NewNop())
	if _, err := p.Chat(context.Background(), &ChatRequest{}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
