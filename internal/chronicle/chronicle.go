// Package chronicle keeps the village's written history. Every so many
// ticks the scheduler hands it the world and the latest doings, and it
// asks the oracle to turn that digest into one short narrative entry.
package chronicle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/sim"
)

// Narrator is the slice of the oracle the chronicler speaks to.
type Narrator interface {
	Narrate(ctx context.Context, digest string) (string, error)
}

// EntryStore persists finished entries.
type EntryStore interface {
	SaveChronicleEntry(ctx context.Context, tick, day int, entry string) error
}

// Writer composes chronicle entries. The store is optional; an entry
// that cannot be saved is still returned and broadcast.
type Writer struct {
	narrator Narrator
	store    EntryStore
	logger   *zap.Logger
}

// New creates a Writer over the given narrator.
func New(narrator Narrator, logger *zap.Logger) *Writer {
	return &Writer{narrator: narrator, logger: logger}
}

// SetStore wires the durable entry store.
func (w *Writer) SetStore(s EntryStore) { w.store = s }

// Compose digests the current village into prose and returns the entry.
func (w *Writer) Compose(ctx context.Context, world sim.WorldState, roster []agent.Agent, recent []sim.ActionRecord) (string, error) {
	entry, err := w.narrator.Narrate(ctx, Digest(world, roster, recent))
	if err != nil {
		return "", fmt.Errorf("compose chronicle: %w", err)
	}

	if w.store != nil {
		if err := w.store.SaveChronicleEntry(ctx, world.Tick, world.Day, entry); err != nil {
			w.logger.Warn("chronicle entry not saved",
				zap.Int("tick", world.Tick), zap.Error(err))
		}
	}
	return entry, nil
}

// Digest renders the world into the plain-text summary the narrator
// works from: the date line, every living villager in a phrase, and
// whatever happened since the last entry.
func Digest(world sim.WorldState, roster []agent.Agent, recent []sim.ActionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Day %d in Embervale, %s, %s, %s weather. Population %d, %d born and %d dead so far.\n",
		world.Day, world.TimeOfDay(), world.Season, world.Weather, len(roster), world.Births, world.Deaths)

	if len(roster) > 0 {
		b.WriteString("Villagers: ")
		for i, a := range roster {
			if i > 0 {
				b.WriteString("; ")
			}
			fmt.Fprintf(&b, "%s at the %s, %s, feeling %s", a.Name, a.Location, a.Activity, a.Mind.Mood)
		}
		b.WriteString(".\n")
	}

	for _, r := range recent {
		line := fmt.Sprintf("Lately: %s chose to %s", r.AgentName, r.Kind)
		if r.Detail != "" {
			line += " (" + r.Detail + ")"
		}
		if r.Nuance != "" {
			line += ", " + r.Nuance
		}
		b.WriteString(line + ".\n")
	}

	return b.String()
}
