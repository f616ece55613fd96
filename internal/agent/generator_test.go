package agent

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"go.uber.org/zap"
)

type stubSource struct {
	gp  *GeneratedPersona
	err error
}

func (s *stubSource) GeneratePersona(ctx context.Context, existingNames []string, worldContext string) (*GeneratedPersona, error) {
	return s.gp, s.err
}

func newTestGenerator(t *testing.T, source PersonaSource) *Generator {
	t.Helper()
	return NewGenerator(source, rand.New(rand.NewSource(1)), zap.NewNop())
}

func TestGeneratorUsesSource(t *testing.T) {
	want := &GeneratedPersona{
		Name:    "Odalys",
		Persona: Persona{Traits: []string{"fierce"}, SpeechStyle: "clipped"},
	}
	g := newTestGenerator(t, &stubSource{gp: want})

	name, persona := g.Generate(context.Background(), nil, "a quiet spring morning")
	if name != "Odalys" {
		t.Errorf("name = %q, want %q", name, "Odalys")
	}
	if persona.SpeechStyle != "clipped" {
		t.Errorf("speech style = %q, want %q", persona.SpeechStyle, "clipped")
	}
}

func TestGeneratorFallsBackOnError(t *testing.T) {
	g := newTestGenerator(t, &stubSource{err: errors.New("oracle unreachable")})

	name, persona := g.Generate(context.Background(), nil, "")
	if name == "" {
		t.Fatal("fallback produced empty name")
	}
	if len(persona.Traits) == 0 || persona.SpeechStyle == "" {
		t.Errorf("fallback persona incomplete: %+v", persona)
	}
}

func TestGeneratorFallsBackOnNilResult(t *testing.T) {
	g := newTestGenerator(t, &stubSource{})

	name, _ := g.Generate(context.Background(), nil, "")
	if name == "" {
		t.Fatal("declined source should still yield a fallback name")
	}
}

func TestGeneratorAvoidsTakenNames(t *testing.T) {
	taken := make([]string, 0, len(fallbackNames)-1)
	for _, n := range fallbackNames[1:] {
		taken = append(taken, n)
	}
	g := newTestGenerator(t, nil)

	name, _ := g.Generate(context.Background(), taken, "")
	if name != fallbackNames[0] {
		t.Errorf("name = %q, want the only free name %q", name, fallbackNames[0])
	}
}

func TestGeneratorExhaustedPoolStillNames(t *testing.T) {
	g := newTestGenerator(t, nil)

	name, _ := g.Generate(context.Background(), fallbackNames, "")
	if name == "" {
		t.Fatal("exhausted pool produced empty name")
	}
	for _, n := range fallbackNames {
		if name == n {
			t.Errorf("name %q collides with an existing villager", name)
		}
	}
}

func TestSeedRosterCast(t *testing.T) {
	roster := SeedRoster(0)
	if len(roster) != 6 {
		t.Fatalf("roster = %d villagers, want 6", len(roster))
	}
	seen := make(map[string]bool)
	for _, a := range roster {
		if seen[a.Name] {
			t.Errorf("duplicate name %q in roster", a.Name)
		}
		seen[a.Name] = true
		if !a.Alive {
			t.Errorf("%s not alive at bootstrap", a.Name)
		}
		if !ValidPlace(a.Location) {
			t.Errorf("%s at unknown place %q", a.Name, a.Location)
		}
		if got, want := a.Activity, AtPlace(a.Location); got != want {
			t.Errorf("%s activity = %q, want %q", a.Name, got, want)
		}
		if a.Persona.Backstory == "" {
			t.Errorf("%s has no backstory", a.Name)
		}
	}
}
