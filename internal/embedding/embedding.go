// Package embedding turns villager memories into vectors for semantic recall.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Provider generates vector embeddings from text.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider  string `json:"provider"` // "api" or "local"
	Endpoint  string `json:"endpoint"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	Dimension int    `json:"dimension"`
}

// New builds the Provider named by cfg.Provider. An empty provider
// defaults to "api" so a bare endpoint+model config works.
func New(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "api":
		return NewRemoteEmbedder(cfg), nil
	case "local":
		return NewOllamaEmbedder(cfg), nil
	default:
		return nil, fmt.Errorf("embedding: unknown provider %q", cfg.Provider)
	}
}

// dimCache remembers the vector width of the first successful call.
// Embedding models rarely report their dimension up front, so every
// embedder learns it lazily and falls back to the configured value
// before then.
type dimCache struct {
	once    sync.Once
	learned int
}

func (c *dimCache) learn(vectors [][]float32) {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return
	}
	c.once.Do(func() {
		c.learned = len(vectors[0])
	})
}

func (c *dimCache) value(fallback int) int {
	if c.learned > 0 {
		return c.learned
	}
	return fallback
}

// postJSON sends a JSON payload and decodes a JSON response. Both
// embedders speak plain HTTP, so the plumbing lives here once.
func postJSON(ctx context.Context, url, apiKey string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("embedding: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("embedding: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("embedding: API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("embedding: decode response: %w", err)
	}
	return nil
}
