// Package gateway carries village milestones out to chat platforms.
// The herald sits on the event feed, keeps the noise (thoughts, moves,
// single conversation lines) to itself, and announces only what a
// distant spectator would want to hear about: births, deaths, communal
// rewards, oddities, and chronicle entries.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/feed"
)

// announceTimeout bounds one delivery round across all platforms.
const announceTimeout = 10 * time.Second

// Announcer posts one line of prose to a platform channel.
type Announcer interface {
	Platform() string
	Announce(ctx context.Context, text string) error
	Close() error
}

// Herald is a feed sink that forwards milestones to every registered
// announcer. Delivery runs off the scheduler's goroutine; a platform
// that is down costs the simulation nothing.
type Herald struct {
	mu         sync.RWMutex
	announcers []Announcer
	logger     *zap.Logger
}

// NewHerald creates a herald with no announcers yet.
func NewHerald(logger *zap.Logger) *Herald {
	return &Herald{logger: logger}
}

// Register adds a platform announcer.
func (h *Herald) Register(a Announcer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.announcers = append(h.announcers, a)
	h.logger.Info("registered announcer", zap.String("platform", a.Platform()))
}

// Platforms returns the registered platform names.
func (h *Herald) Platforms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.announcers))
	for _, a := range h.announcers {
		names = append(names, a.Platform())
	}
	return names
}

// Emit implements feed.Sink.
func (h *Herald) Emit(e feed.Event) {
	text := announcementFor(e)
	if text == "" {
		return
	}
	go h.deliver(text)
}

func (h *Herald) deliver(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()

	h.mu.RLock()
	announcers := make([]Announcer, len(h.announcers))
	copy(announcers, h.announcers)
	h.mu.RUnlock()

	for _, a := range announcers {
		if err := a.Announce(ctx, text); err != nil {
			h.logger.Warn("announcement failed",
				zap.String("platform", a.Platform()), zap.Error(err))
		}
	}
}

// Close shuts down every announcer.
func (h *Herald) Close() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, a := range h.announcers {
		if err := a.Close(); err != nil {
			h.logger.Error("announcer close failed",
				zap.String("platform", a.Platform()), zap.Error(err))
		}
	}
	return nil
}

// announcementFor renders a milestone as channel prose. Everything else
// returns empty and stays off the air.
func announcementFor(e feed.Event) string {
	payload, _ := e.Payload.(map[string]interface{})
	switch e.Type {
	case feed.EventBirth:
		return fmt.Sprintf("A newcomer named %s just arrived in Embervale.", e.Agent)
	case feed.EventDeath:
		cause, _ := payload["cause"].(string)
		if cause == "" {
			cause = "unknown causes"
		}
		return fmt.Sprintf("%s has died of %s. The village mourns.", e.Agent, cause)
	case feed.EventReward:
		message, _ := payload["message"].(string)
		return message
	case feed.EventRandomEvent:
		text, _ := payload["text"].(string)
		return text
	case feed.EventChronicle:
		entry, _ := payload["entry"].(string)
		if entry == "" {
			return ""
		}
		return "From the village chronicle: " + entry
	}
	return ""
}
