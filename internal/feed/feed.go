// Package feed broadcasts simulation events to spectators. Emission is
// one-way and fire-and-forget: a sink that fails logs and drops the event,
// it never pushes back on the simulation.
package feed

import (
	"sync"
	"time"
)

// EventType names a spectator-visible happening.
type EventType string

const (
	EventWorldSnapshot       EventType = "world_snapshot"
	EventAgentAction         EventType = "agent_action"
	EventAgentThought        EventType = "agent_thought"
	EventConversationStarted EventType = "conversation_started"
	EventConversationLine    EventType = "conversation_line"
	EventConversationEnded   EventType = "conversation_ended"
	EventBirth               EventType = "birth"
	EventDeath               EventType = "death"
	EventReward              EventType = "reward"
	EventRandomEvent         EventType = "random_event"
	EventChronicle           EventType = "chronicle"
)

// Event is one entry in the spectator feed.
type Event struct {
	Type    EventType   `json:"type"`
	Tick    int         `json:"tick"`
	At      time.Time   `json:"at"`
	Agent   string      `json:"agent,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Sink consumes events. Implementations must return quickly and swallow
// their own failures.
type Sink interface {
	Emit(e Event)
}

// Fanout forwards each event to every registered sink.
type Fanout struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewFanout creates a fanout over the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Add registers another sink.
func (f *Fanout) Add(s Sink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sinks = append(f.sinks, s)
}

// Emit stamps the event if needed and hands it to every sink.
func (f *Fanout) Emit(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	f.mu.RLock()
	sinks := make([]Sink, len(f.sinks))
	copy(sinks, f.sinks)
	f.mu.RUnlock()

	for _, s := range sinks {
		s.Emit(e)
	}
}
