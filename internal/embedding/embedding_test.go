package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRemoteEmbedderEmbed(t *testing.T) {
	// Mock OpenAI-compatible embedding server.
	// RemoteEmbedder posts to endpoint+"/embeddings", so we use a mux.
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		resp := remoteResponse{
			Data: []remoteEmbeddingData{
				{Embedding: []float32{0.1, 0.2, 0.3}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewRemoteEmbedder(Config{
		Endpoint: srv.URL,
		Model:    "test-model",
	})

	vectors, err := e.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 1 {
		t.Fatalf("got %d vectors, want 1", len(vectors))
	}
	if len(vectors[0]) != 3 {
		t.Fatalf("got dimension %d, want 3", len(vectors[0]))
	}
	if e.Dimension() != 3 {
		t.Errorf("got dimension %d, want 3", e.Dimension())
	}
}

func TestRemoteEmbedderEmbed_Empty(t *testing.T) {
	e := NewRemoteEmbedder(Config{
		Endpoint:  "http://unused",
		Model:     "test-model",
		Dimension: 128,
	})

	vectors, err := e.Embed(context.Background(), []string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors != nil {
		t.Errorf("expected nil for empty input, got %v", vectors)
	}
}

func TestRemoteEmbedderDimension_Fallback(t *testing.T) {
	e := NewRemoteEmbedder(Config{
		Endpoint:  "http://unused",
		Model:     "test-model",
		Dimension: 256,
	})

	// Before any Embed call, Dimension should return the configured default.
	if d := e.Dimension(); d != 256 {
		t.Errorf("got dimension %d, want configured default 256", d)
	}
}

func TestOllamaEmbedderEmbed(t *testing.T) {
	// Ollama embeds one prompt per request, so three texts mean three calls.
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/embeddings", func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(ollamaResponse{
			Embedding: []float32{0.5, 0.5},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := NewOllamaEmbedder(Config{
		Endpoint: srv.URL,
		Model:    "test-model",
	})

	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	if calls != 3 {
		t.Errorf("got %d requests, want 3", calls)
	}
	if e.Dimension() != 2 {
		t.Errorf("got dimension %d, want 2", e.Dimension())
	}
}

func TestNewSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantErr  bool
	}{
		{"api", false},
		{"", false},
		{"local", false},
		{"carrier-pigeon", true},
	}

	for _, tt := range tests {
		p, err := New(Config{Provider: tt.provider, Endpoint: "http://unused", Model: "m"})
		if tt.wantErr {
			if err == nil {
				t.Errorf("provider %q: expected error, got %T", tt.provider, p)
			}
			continue
		}
		if err != nil {
			t.Errorf("provider %q: unexpected error: %v", tt.provider, err)
		}
	}
}
