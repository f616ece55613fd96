package embedding

import "context"

// RemoteEmbedder implements Provider against an OpenAI-compatible
// embeddings API. It batches all texts into a single call.
type RemoteEmbedder struct {
	endpoint string
	model    string
	apiKey   string
	fallback int

	dims dimCache
}

// NewRemoteEmbedder creates a RemoteEmbedder from the given Config.
func NewRemoteEmbedder(cfg Config) *RemoteEmbedder {
	return &RemoteEmbedder{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		fallback: cfg.Dimension,
	}
}

type remoteRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type remoteEmbeddingData struct {
	Embedding []float32 `json:"embedding"`
}

type remoteResponse struct {
	Data []remoteEmbeddingData `json:"data"`
}

// Embed sends texts to the endpoint in one batch and returns their vectors.
func (e *RemoteEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result remoteResponse
	err := postJSON(ctx, e.endpoint+"/embeddings", e.apiKey, remoteRequest{
		Model: e.model,
		Input: texts,
	}, &result)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(result.Data))
	for i, d := range result.Data {
		vectors[i] = d.Embedding
	}
	e.dims.learn(vectors)
	return vectors, nil
}

// Dimension returns the vector width learned from the first call, or
// the configured default before any call succeeds.
func (e *RemoteEmbedder) Dimension() int {
	return e.dims.value(e.fallback)
}
