package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/feed"
)

type fakeAnnouncer struct {
	platform string
	err      error
	got      chan string
}

func newFakeAnnouncer(platform string) *fakeAnnouncer {
	return &fakeAnnouncer{platform: platform, got: make(chan string, 8)}
}

func (f *fakeAnnouncer) Platform() string { return f.platform }

func (f *fakeAnnouncer) Announce(_ context.Context, text string) error {
	if f.err != nil {
		return f.err
	}
	f.got <- text
	return nil
}

func (f *fakeAnnouncer) Close() error { return nil }

func waitFor(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no announcement arrived")
		return ""
	}
}

func TestAnnouncementSelection(t *testing.T) {
	tests := []struct {
		name string
		ev   feed.Event
		want string
	}{
		{
			name: "birth",
			ev:   feed.Event{Type: feed.EventBirth, Agent: "Wren"},
			want: "A newcomer named Wren just arrived in Embervale.",
		},
		{
			name: "death",
			ev: feed.Event{Type: feed.EventDeath, Agent: "Silas",
				Payload: map[string]interface{}{"cause": "old age"}},
			want: "Silas has died of old age. The village mourns.",
		},
		{
			name: "reward carries its own prose",
			ev: feed.Event{Type: feed.EventReward, Agent: "Maren",
				Payload: map[string]interface{}{"message": "Maren's kindness lifted every heart in the village."}},
			want: "Maren's kindness lifted every heart in the village.",
		},
		{
			name: "chronicle",
			ev: feed.Event{Type: feed.EventChronicle,
				Payload: map[string]interface{}{"entry": "Rain fell all day."}},
			want: "From the village chronicle: Rain fell all day.",
		},
		{
			name: "random event",
			ev: feed.Event{Type: feed.EventRandomEvent,
				Payload: map[string]interface{}{"text": "A cold wind swept the plaza."}},
			want: "A cold wind swept the plaza.",
		},
		{
			name: "thoughts stay private",
			ev:   feed.Event{Type: feed.EventAgentThought, Agent: "Maren"},
			want: "",
		},
		{
			name: "conversation lines stay off the air",
			ev:   feed.Event{Type: feed.EventConversationLine, Agent: "Maren"},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := announcementFor(tt.ev); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHeraldDeliversToAllPlatforms(t *testing.T) {
	h := NewHerald(zap.NewNop())
	discord := newFakeAnnouncer("discord")
	slack := newFakeAnnouncer("slack")
	h.Register(discord)
	h.Register(slack)

	h.Emit(feed.Event{Type: feed.EventBirth, Agent: "Wren"})

	want := "A newcomer named Wren just arrived in Embervale."
	if got := waitFor(t, discord.got); got != want {
		t.Errorf("discord got %q, want %q", got, want)
	}
	if got := waitFor(t, slack.got); got != want {
		t.Errorf("slack got %q, want %q", got, want)
	}
}

func TestHeraldSkipsQuietEvents(t *testing.T) {
	h := NewHerald(zap.NewNop())
	a := newFakeAnnouncer("discord")
	h.Register(a)

	h.Emit(feed.Event{Type: feed.EventAgentAction, Agent: "Maren"})
	h.Emit(feed.Event{Type: feed.EventWorldSnapshot})

	select {
	case got := <-a.got:
		t.Fatalf("unexpected announcement %q", got)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHeraldSurvivesFailingPlatform(t *testing.T) {
	h := NewHerald(zap.NewNop())
	broken := newFakeAnnouncer("discord")
	broken.err = errors.New("rate limited")
	healthy := newFakeAnnouncer("slack")
	h.Register(broken)
	h.Register(healthy)

	h.Emit(feed.Event{Type: feed.EventDeath, Agent: "Silas",
		Payload: map[string]interface{}{"cause": "health failure"}})

	if got := waitFor(t, healthy.got); got == "" {
		t.Error("healthy platform missed the announcement")
	}
}

func TestHeraldPlatforms(t *testing.T) {
	h := NewHerald(zap.NewNop())
	h.Register(newFakeAnnouncer("discord"))
	h.Register(newFakeAnnouncer("slack"))

	got := h.Platforms()
	if len(got) != 2 || got[0] != "discord" || got[1] != "slack" {
		t.Errorf("platforms = %v, want [discord slack]", got)
	}
}
