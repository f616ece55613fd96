// Package recall gives villagers long-term memory. Every remembered
// moment is embedded and upserted into one Qdrant collection; at
// decision time an agent searches it for the moments nearest to the
// situation at hand. Payload filtering on agent_id keeps each
// villager's past private to them.
package recall

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/vectorstore"
)

// Collection is the single Qdrant collection holding villager memories.
const Collection = "memories"

const (
	defaultDimension = 1024
	defaultLimit     = 8
)

// VectorIndex is the slice of the vector store the archive needs.
// *vectorstore.Client satisfies it.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, name string, dimension uint64) error
	DropCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, id string, vector []float32, payload map[string]string) error
	Search(ctx context.Context, collection string, vector []float32, topK uint64, must map[string]string) ([]*vectorstore.SearchResult, error)
}

// DurableLog is the relational side of the archive. Vectors can always
// be rebuilt from it, so it is written first.
type DurableLog interface {
	SaveMemory(ctx context.Context, agentID string, mem agent.Memory) error
}

// Embedder mirrors embedding.Provider without importing it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Archive indexes and retrieves villager memories by meaning.
type Archive struct {
	embedder Embedder
	vectors  VectorIndex
	log      DurableLog
	logger   *zap.Logger
}

// New creates an Archive over the given embedder and vector index.
func New(embedder Embedder, vectors VectorIndex, logger *zap.Logger) *Archive {
	return &Archive{embedder: embedder, vectors: vectors, logger: logger}
}

// SetDurableLog attaches the relational memory log.
func (a *Archive) SetDurableLog(log DurableLog) { a.log = log }

// Init ensures the memory collection exists with the embedder's dimension.
func (a *Archive) Init(ctx context.Context) error {
	if err := a.vectors.EnsureCollection(ctx, Collection, a.dimension()); err != nil {
		return fmt.Errorf("init memory collection: %w", err)
	}
	return nil
}

func (a *Archive) dimension() uint64 {
	if d := a.embedder.Dimension(); d > 0 {
		return uint64(d)
	}
	return defaultDimension
}

// Wipe drops every indexed memory and recreates the empty collection.
// Called when the world resets.
func (a *Archive) Wipe(ctx context.Context) error {
	if err := a.vectors.DropCollection(ctx, Collection); err != nil {
		return fmt.Errorf("wipe memories: %w", err)
	}
	return a.Init(ctx)
}

// Index embeds one memory and stores it under the owning villager.
func (a *Archive) Index(ctx context.Context, agentID string, mem agent.Memory) error {
	if a.log != nil {
		if err := a.log.SaveMemory(ctx, agentID, mem); err != nil {
			return fmt.Errorf("log memory: %w", err)
		}
	}

	vectors, err := a.embedder.Embed(ctx, []string{mem.Content})
	if err != nil {
		return fmt.Errorf("embed memory: %w", err)
	}
	if len(vectors) == 0 {
		return fmt.Errorf("empty embedding result")
	}

	payload := map[string]string{
		"agent_id":   agentID,
		"content":    mem.Content,
		"importance": strconv.FormatFloat(mem.Importance, 'f', -1, 64),
		"tick":       strconv.Itoa(mem.Tick),
		"indexed_at": time.Now().UTC().Format(time.RFC3339),
	}
	return a.vectors.Upsert(ctx, Collection, uuid.New().String(), vectors[0], payload)
}

// Recall returns up to limit of the villager's memories nearest in
// meaning to the query, most relevant first.
func (a *Archive) Recall(ctx context.Context, agentID, query string, limit int) ([]agent.Memory, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	vectors, err := a.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, nil
	}

	hits, err := a.vectors.Search(ctx, Collection, vectors[0], uint64(limit), map[string]string{"agent_id": agentID})
	if err != nil {
		return nil, fmt.Errorf("recall for %s: %w", agentID, err)
	}

	memories := make([]agent.Memory, 0, len(hits))
	for _, h := range hits {
		memories = append(memories, memoryFromPayload(h.Payload))
	}
	return memories, nil
}

// memoryFromPayload rebuilds a Memory from the string payload Qdrant
// stores. Malformed numbers fall back to zero rather than failing the
// whole recall.
func memoryFromPayload(payload map[string]string) agent.Memory {
	importance, _ := strconv.ParseFloat(payload["importance"], 64)
	tick, _ := strconv.Atoi(payload["tick"])
	return agent.Memory{
		Content:    payload["content"],
		Importance: importance,
		Tick:       tick,
	}
}
