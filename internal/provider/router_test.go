package provider

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

type fakeProvider struct {
	id      string
	content string
	err     error
	calls   int
}

func (f *fakeProvider) ID() string   { return f.id }
func (f *fakeProvider) Name() string { return "fake " + f.id }

func (f *fakeProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &ChatResponse{Content: f.content}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return f.err }

func TestRouteUsesDefaultProvider(t *testing.T) {
	r := NewRouter(zap.NewNop())
	p := &fakeProvider{id: "main", content: "hello"}
	r.Register(p)

	resp, err := r.Route(context.Background(), "caller-1", &ChatRequest{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("content = %q, want %q", resp.Content, "hello")
	}
	if got := r.DefaultID(); got != "main" {
		t.Errorf("default = %q, want first registered %q", got, "main")
	}
}

func TestRouteFallbackChain(t *testing.T) {
	r := NewRouter(zap.NewNop())
	broken := &fakeProvider{id: "primary", err: errors.New("down")}
	backup := &fakeProvider{id: "backup", content: "from backup"}
	r.Register(broken)
	r.Register(backup)
	r.SetFallbacks("caller-1", []string{"backup"})

	resp, err := r.Route(context.Background(), "caller-1", &ChatRequest{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Content != "from backup" {
		t.Errorf("content = %q, want fallback answer", resp.Content)
	}
	if broken.calls != 1 || backup.calls != 1 {
		t.Errorf("calls = primary %d backup %d, want 1 and 1", broken.calls, backup.calls)
	}
}

func TestRouteSharedFallbacks(t *testing.T) {
	r := NewRouter(zap.NewNop())
	broken := &fakeProvider{id: "primary", err: errors.New("down")}
	backup := &fakeProvider{id: "backup", content: "from backup"}
	r.Register(broken)
	r.Register(backup)
	r.SetSharedFallbacks([]string{"backup"})

	// No per-caller chain configured; the shared one should carry the call.
	resp, err := r.Route(context.Background(), "anyone", &ChatRequest{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Content != "from backup" {
		t.Errorf("content = %q, want shared fallback answer", resp.Content)
	}
}

func TestRouteAllProvidersFail(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "primary", err: errors.New("down")})
	r.Register(&fakeProvider{id: "backup", err: errors.New("also down")})
	r.SetFallbacks("caller-1", []string{"backup"})

	if _, err := r.Route(context.Background(), "caller-1", &ChatRequest{}); err == nil {
		t.Fatal("expected error when every provider fails")
	}
}

func TestBindOverridesDefault(t *testing.T) {
	r := NewRouter(zap.NewNop())
	r.Register(&fakeProvider{id: "main", content: "from main"})
	special := &fakeProvider{id: "special", content: "from special"}
	r.Register(special)
	r.Bind("caller-2", "special")

	resp, err := r.Route(context.Background(), "caller-2", &ChatRequest{})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if resp.Content != "from special" {
		t.Errorf("content = %q, want bound provider's answer", resp.Content)
	}
}

func TestRouteNoProviders(t *testing.T) {
	r := NewRouter(zap.NewNop())
	if _, err := r.Route(context.Background(), "caller-1", &ChatRequest{}); err == nil {
		t.Fatal("expected error with no providers registered")
	}
}
