package agent

import (
	"github.com/google/uuid"
)

// Place is a named location in the village.
type Place string

const (
	PlaceHome     Place = "home"
	PlaceCafe     Place = "cafe"
	PlacePlaza    Place = "plaza"
	PlaceGarden   Place = "garden"
	PlaceWorkshop Place = "workshop"
	PlaceLibrary  Place = "library"
)

// Places lists every location a villager can move to.
var Places = []Place{PlaceHome, PlaceCafe, PlacePlaza, PlaceGarden, PlaceWorkshop, PlaceLibrary}

// ValidPlace reports whether p names a known location.
func ValidPlace(p Place) bool {
	for _, known := range Places {
		if p == known {
			return true
		}
	}
	return false
}

// Reserved activity markers. Everything else is a free-form display label.
const (
	ActivitySleeping     = "sleeping"
	ActivityEating       = "eating"
	ActivityConversation = "in conversation"
	ActivityIdle         = "idle"
)

// AtPlace returns the neutral activity label for a location.
func AtPlace(p Place) string { return "at " + string(p) }

// Mood display bands, from worst to best.
const (
	MoodDespairing = "despairing"
	MoodGloomy     = "gloomy"
	MoodSteady     = "steady"
	MoodContent    = "content"
	MoodJoyful     = "joyful"
)

// MoodLabel maps a mood score onto its display band.
func MoodLabel(score float64) string {
	switch {
	case score < -60:
		return MoodDespairing
	case score < -20:
		return MoodGloomy
	case score < 20:
		return MoodSteady
	case score < 60:
		return MoodContent
	default:
		return MoodJoyful
	}
}

// Bounds for vitals and mood score.
const (
	VitalMin = 0.0
	VitalMax = 100.0
	MoodMin  = -100.0
	MoodMax  = 100.0
)

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Vitals are the bounded physical scalars. Health, Hunger and Energy stay in
// [0,100]; Age counts ticks lived.
type Vitals struct {
	Health float64 `json:"health"`
	Hunger float64 `json:"hunger"`
	Energy float64 `json:"energy"`
	Age    int     `json:"age"`
}

// Mind is a villager's mental state. MoodScore stays in [-100,100] and Mood
// is the display band derived from it.
type Mind struct {
	Mood      string   `json:"mood"`
	MoodScore float64  `json:"mood_score"`
	Thought   string   `json:"thought,omitempty"`
	Worries   []string `json:"worries,omitempty"`
	Desires   []string `json:"desires,omitempty"`
	Secrets   []string `json:"secrets,omitempty"`
}

// Persona is the immutable personality bundle fed to the oracle. It is set
// at birth and never mutated by the simulation.
type Persona struct {
	Traits      []string `json:"traits"`
	Values      []string `json:"values"`
	Flaws       []string `json:"flaws"`
	Quirks      []string `json:"quirks"`
	SpeechStyle string   `json:"speech_style"`
	Backstory   string   `json:"backstory"`
}

// MemoryCap bounds the per-agent memory ring.
const MemoryCap = 50

// Memory is a single remembered moment.
type Memory struct {
	Content    string  `json:"content"`
	Importance float64 `json:"importance"`
	Tick       int     `json:"tick"`
}

// Agent is a villager of Embervale.
type Agent struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Vitals   Vitals  `json:"vitals"`
	Mind     Mind    `json:"mind"`
	Persona  Persona `json:"persona"`
	Location Place   `json:"location"`
	Activity string  `json:"activity"`

	Alive      bool   `json:"alive"`
	BornTick   int    `json:"born_tick"`
	DiedTick   int    `json:"died_tick,omitempty"`
	DeathCause string `json:"death_cause,omitempty"`

	Memories []Memory `json:"memories,omitempty"`
}

// New creates a live villager at the given place with full energy, a light
// appetite, and a calm starting mood.
func New(name string, persona Persona, location Place, tick int) *Agent {
	return &Agent{
		ID:       uuid.New().String(),
		Name:     name,
		Vitals:   Vitals{Health: 100, Hunger: 20, Energy: 100},
		Mind:     Mind{Mood: MoodSteady, MoodScore: 10},
		Persona:  persona,
		Location: location,
		Activity: ActivityIdle,
		Alive:    true,
		BornTick: tick,
	}
}

// Busy reports whether the villager is in a state that blocks decision
// rounds and incoming conversation requests.
func (a *Agent) Busy() bool {
	switch a.Activity {
	case ActivitySleeping, ActivityEating, ActivityConversation:
		return true
	}
	return false
}

// Remember appends a memory, dropping the oldest past MemoryCap.
func (a *Agent) Remember(content string, importance float64, tick int) {
	a.Memories = append(a.Memories, Memory{Content: content, Importance: importance, Tick: tick})
	if len(a.Memories) > MemoryCap {
		a.Memories = a.Memories[len(a.Memories)-MemoryCap:]
	}
}

// RecentMemories returns up to n of the newest memories, oldest first.
func (a *Agent) RecentMemories(n int) []Memory {
	if n <= 0 || len(a.Memories) == 0 {
		return nil
	}
	if n > len(a.Memories) {
		n = len(a.Memories)
	}
	out := make([]Memory, n)
	copy(out, a.Memories[len(a.Memories)-n:])
	return out
}

// SetMood updates the mood score (clamped) and rederives the display band.
func (a *Agent) SetMood(score float64) {
	a.Mind.MoodScore = Clamp(score, MoodMin, MoodMax)
	a.Mind.Mood = MoodLabel(a.Mind.MoodScore)
}
