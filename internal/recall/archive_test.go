package recall

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/vectorstore"
)

type fakeEmbedder struct {
	dim      int
	err      error
	embedded []string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.embedded = append(f.embedded, texts...)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{0.1, 0.2, 0.3}
	}
	return vectors, nil
}

func (f *fakeEmbedder) Dimension() int { return f.dim }

type upsertCall struct {
	collection string
	payload    map[string]string
}

type fakeVectors struct {
	ensured   []string
	dropped   []string
	upserts   []upsertCall
	hits      []*vectorstore.SearchResult
	searchErr error
	lastMust  map[string]string
	lastTopK  uint64
	lastDim   uint64
}

func (f *fakeVectors) EnsureCollection(_ context.Context, name string, dimension uint64) error {
	f.ensured = append(f.ensured, name)
	f.lastDim = dimension
	return nil
}

func (f *fakeVectors) DropCollection(_ context.Context, name string) error {
	f.dropped = append(f.dropped, name)
	return nil
}

func (f *fakeVectors) Upsert(_ context.Context, collection, id string, _ []float32, payload map[string]string) error {
	f.upserts = append(f.upserts, upsertCall{collection: collection, payload: payload})
	return nil
}

func (f *fakeVectors) Search(_ context.Context, _ string, _ []float32, topK uint64, must map[string]string) ([]*vectorstore.SearchResult, error) {
	f.lastTopK = topK
	f.lastMust = must
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

type fakeLog struct {
	saved []agent.Memory
	err   error
}

func (f *fakeLog) SaveMemory(_ context.Context, _ string, mem agent.Memory) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, mem)
	return nil
}

func TestIndexUpsertsWithOwnerPayload(t *testing.T) {
	vectors := &fakeVectors{}
	a := New(&fakeEmbedder{}, vectors, zap.NewNop())

	mem := agent.Memory{Content: "Shared bread with Silas.", Importance: 0.6, Tick: 12}
	if err := a.Index(context.Background(), "agent-1", mem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vectors.upserts) != 1 {
		t.Fatalf("got %d upserts, want 1", len(vectors.upserts))
	}
	up := vectors.upserts[0]
	if up.collection != Collection {
		t.Errorf("got collection %q, want %q", up.collection, Collection)
	}
	if up.payload["agent_id"] != "agent-1" {
		t.Errorf("got agent_id %q, want agent-1", up.payload["agent_id"])
	}
	if up.payload["content"] != "Shared bread with Silas." {
		t.Errorf("got content %q", up.payload["content"])
	}
	if up.payload["importance"] != "0.6" {
		t.Errorf("got importance %q, want 0.6", up.payload["importance"])
	}
	if up.payload["tick"] != "12" {
		t.Errorf("got tick %q, want 12", up.payload["tick"])
	}
}

func TestIndexWritesDurableLogFirst(t *testing.T) {
	vectors := &fakeVectors{}
	log := &fakeLog{}
	a := New(&fakeEmbedder{}, vectors, zap.NewNop())
	a.SetDurableLog(log)

	mem := agent.Memory{Content: "Watched the rain.", Importance: 0.3, Tick: 4}
	if err := a.Index(context.Background(), "agent-1", mem); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(log.saved) != 1 || log.saved[0].Content != "Watched the rain." {
		t.Fatalf("durable log got %+v, want the memory", log.saved)
	}

	// A failing log stops the index before any vector write.
	failing := &fakeLog{err: errors.New("pg down")}
	vectors2 := &fakeVectors{}
	a2 := New(&fakeEmbedder{}, vectors2, zap.NewNop())
	a2.SetDurableLog(failing)
	if err := a2.Index(context.Background(), "agent-1", mem); err == nil {
		t.Fatal("expected error from failing log")
	}
	if len(vectors2.upserts) != 0 {
		t.Errorf("got %d upserts after log failure, want 0", len(vectors2.upserts))
	}
}

func TestIndexEmbedFailure(t *testing.T) {
	vectors := &fakeVectors{}
	a := New(&fakeEmbedder{err: errors.New("model offline")}, vectors, zap.NewNop())

	err := a.Index(context.Background(), "agent-1", agent.Memory{Content: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(vectors.upserts) != 0 {
		t.Errorf("got %d upserts, want 0", len(vectors.upserts))
	}
}

func TestRecallFiltersByOwner(t *testing.T) {
	vectors := &fakeVectors{
		hits: []*vectorstore.SearchResult{
			{ID: "m1", Score: 0.92, Payload: map[string]string{
				"content": "Planted beans in the garden.", "importance": "0.5", "tick": "30",
			}},
			{ID: "m2", Score: 0.71, Payload: map[string]string{
				"content": "Talked with Maren.", "importance": "0.6", "tick": "18",
			}},
		},
	}
	a := New(&fakeEmbedder{}, vectors, zap.NewNop())

	memories, err := a.Recall(context.Background(), "agent-7", "the garden", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if vectors.lastMust["agent_id"] != "agent-7" {
		t.Errorf("search filter agent_id = %q, want agent-7", vectors.lastMust["agent_id"])
	}
	if vectors.lastTopK != 5 {
		t.Errorf("got topK %d, want 5", vectors.lastTopK)
	}
	if len(memories) != 2 {
		t.Fatalf("got %d memories, want 2", len(memories))
	}
	if memories[0].Content != "Planted beans in the garden." {
		t.Errorf("got first memory %q", memories[0].Content)
	}
	if memories[0].Importance != 0.5 || memories[0].Tick != 30 {
		t.Errorf("got importance %.2f tick %d, want 0.5 and 30", memories[0].Importance, memories[0].Tick)
	}
}

func TestRecallDefaultsLimit(t *testing.T) {
	vectors := &fakeVectors{}
	a := New(&fakeEmbedder{}, vectors, zap.NewNop())

	if _, err := a.Recall(context.Background(), "agent-1", "anything", 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors.lastTopK != defaultLimit {
		t.Errorf("got topK %d, want default %d", vectors.lastTopK, defaultLimit)
	}
}

func TestRecallSearchFailure(t *testing.T) {
	vectors := &fakeVectors{searchErr: errors.New("qdrant down")}
	a := New(&fakeEmbedder{}, vectors, zap.NewNop())

	if _, err := a.Recall(context.Background(), "agent-1", "anything", 3); err == nil {
		t.Fatal("expected error")
	}
}

func TestInitUsesEmbedderDimension(t *testing.T) {
	vectors := &fakeVectors{}
	a := New(&fakeEmbedder{dim: 384}, vectors, zap.NewNop())

	if err := a.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors.lastDim != 384 {
		t.Errorf("got dimension %d, want 384", vectors.lastDim)
	}

	// Unknown dimension falls back to the default.
	vectors2 := &fakeVectors{}
	a2 := New(&fakeEmbedder{}, vectors2, zap.NewNop())
	if err := a2.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if vectors2.lastDim != defaultDimension {
		t.Errorf("got dimension %d, want fallback %d", vectors2.lastDim, defaultDimension)
	}
}

func TestWipeDropsAndRecreates(t *testing.T) {
	vectors := &fakeVectors{}
	a := New(&fakeEmbedder{dim: 256}, vectors, zap.NewNop())

	if err := a.Wipe(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors.dropped) != 1 || vectors.dropped[0] != Collection {
		t.Errorf("dropped %v, want [%s]", vectors.dropped, Collection)
	}
	if len(vectors.ensured) != 1 || vectors.ensured[0] != Collection {
		t.Errorf("ensured %v, want [%s]", vectors.ensured, Collection)
	}
}
