package agent

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

// GeneratedPersona is a personality bundle plus the name it was written for.
type GeneratedPersona struct {
	Name    string  `json:"name"`
	Persona Persona `json:"persona"`
}

// PersonaSource produces persona bundles for newcomers. A nil result with a
// nil error means the source declined.
type PersonaSource interface {
	GeneratePersona(ctx context.Context, existingNames []string, worldContext string) (*GeneratedPersona, error)
}

// Generator creates newcomers. It prefers the configured source and falls
// back to local pools, so a birth never fails.
type Generator struct {
	source PersonaSource
	rng    *rand.Rand
	logger *zap.Logger
}

// NewGenerator creates a generator. source may be nil, in which case every
// persona comes from the local pools.
func NewGenerator(source PersonaSource, rng *rand.Rand, logger *zap.Logger) *Generator {
	return &Generator{source: source, rng: rng, logger: logger}
}

// Generate returns a name and persona for a newcomer. Source failures are
// logged and absorbed by the fallback.
func (g *Generator) Generate(ctx context.Context, existingNames []string, worldContext string) (string, Persona) {
	if g.source != nil {
		gp, err := g.source.GeneratePersona(ctx, existingNames, worldContext)
		if err != nil {
			g.logger.Warn("persona source failed, synthesizing locally", zap.Error(err))
		} else if gp != nil && gp.Name != "" {
			return gp.Name, gp.Persona
		}
	}
	return g.fallback(existingNames)
}

var fallbackNames = []string{
	"Wren", "Sorrel", "Bram", "Isolde", "Fen", "Maren",
	"Tobin", "Linnea", "Cassia", "Edmund", "Petra", "Silas",
	"Oriel", "Hazel", "Rook", "Adelia",
}

var traitPool = []string{
	"curious", "stubborn", "gentle", "restless", "wry",
	"meticulous", "dreamy", "blunt", "patient", "superstitious",
}

var valuePool = []string{
	"honesty", "craftsmanship", "community", "quiet mornings",
	"fairness", "loyalty", "good bread",
}

var flawPool = []string{
	"avoids conflict", "holds grudges", "works past exhaustion",
	"gossips", "second-guesses everything", "forgets to eat",
}

var quirkPool = []string{
	"hums while working", "collects smooth stones", "names the garden birds",
	"quotes old almanacs", "never sits with their back to a door",
	"sketches strangers",
}

var speechPool = []string{
	"short, dry sentences", "warm and rambling", "careful, precise wording",
	"questions more than statements", "an old saying for every occasion",
}

func (g *Generator) fallback(existingNames []string) (string, Persona) {
	taken := make(map[string]bool, len(existingNames))
	for _, n := range existingNames {
		taken[n] = true
	}
	var free []string
	for _, n := range fallbackNames {
		if !taken[n] {
			free = append(free, n)
		}
	}
	var name string
	if len(free) > 0 {
		name = free[g.rng.Intn(len(free))]
	} else {
		name = fallbackNames[g.rng.Intn(len(fallbackNames))] + " the Younger"
	}

	p := Persona{
		Traits:      pickN(g.rng, traitPool, 3),
		Values:      pickN(g.rng, valuePool, 2),
		Flaws:       pickN(g.rng, flawPool, 1),
		Quirks:      pickN(g.rng, quirkPool, 1),
		SpeechStyle: speechPool[g.rng.Intn(len(speechPool))],
		Backstory:   fmt.Sprintf("%s wandered into Embervale with little more than a pack and a reason they keep to themselves.", name),
	}
	return name, p
}

// pickN samples n distinct entries from pool.
func pickN(rng *rand.Rand, pool []string, n int) []string {
	if n > len(pool) {
		n = len(pool)
	}
	idx := rng.Perm(len(pool))
	out := make([]string, 0, n)
	for _, i := range idx[:n] {
		out = append(out, pool[i])
	}
	return out
}
