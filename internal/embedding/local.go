package embedding

import "context"

// OllamaEmbedder implements Provider against an Ollama-compatible
// embeddings API. Ollama only embeds one prompt per request, so texts
// are sent sequentially.
type OllamaEmbedder struct {
	endpoint string
	model    string
	fallback int

	dims dimCache
}

// NewOllamaEmbedder creates an OllamaEmbedder from the given Config.
func NewOllamaEmbedder(cfg Config) *OllamaEmbedder {
	return &OllamaEmbedder{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		fallback: cfg.Dimension,
	}
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed embeds each text in turn and returns the vectors in input order.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		var result ollamaResponse
		err := postJSON(ctx, e.endpoint+"/api/embeddings", "", ollamaRequest{
			Model:  e.model,
			Prompt: text,
		}, &result)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, result.Embedding)
	}

	e.dims.learn(vectors)
	return vectors, nil
}

// Dimension returns the vector width learned from the first call, or
// the configured default before any call succeeds.
func (e *OllamaEmbedder) Dimension() int {
	return e.dims.value(e.fallback)
}
