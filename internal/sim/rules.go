package sim

import (
	"fmt"
	"math/rand"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/config"
	"github.com/ashgrove/embervale/internal/oracle"
)

// RewardField names the scalar a community bonus lands on.
type RewardField string

const (
	RewardHealth RewardField = "health"
	RewardEnergy RewardField = "energy"
	RewardMood   RewardField = "mood"
)

// DeathSentence is a death the rules want applied.
type DeathSentence struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Cause string `json:"cause"`
}

// RewardRule is one row of the reward table: when an action record matches
// and the roll passes, every living villager gains Delta on Field.
type RewardRule struct {
	Category    string
	Matches     func(ActionRecord) bool
	Probability float64
	Field       RewardField
	Delta       float64
	Template    string // fmt template taking the actor's name
}

// RewardEvent describes a community bonus for the feed. It is broadcast
// only, never stored as primary state.
type RewardEvent struct {
	Category string      `json:"category"`
	Actor    string      `json:"actor"`
	Field    RewardField `json:"field"`
	Delta    float64     `json:"delta"`
	Message  string      `json:"message"`
	Nuance   string      `json:"nuance,omitempty"`
}

// Verdict is everything one rules pass wants done. The scheduler applies it.
type Verdict struct {
	Deaths       []DeathSentence
	SpawnWanted  bool
	Rewards      []RewardEvent
	FlavorEvent  string
	ChronicleDue bool
}

// Rules evaluates the lifecycle, reward, and flavor tables over a stable
// snapshot. It never mutates anything.
type Rules struct {
	tun     config.Tuning
	rng     *rand.Rand
	rewards []RewardRule
	flavors []string
}

// NewRules creates the evaluator with the default reward table and flavor
// pool.
func NewRules(tun config.Tuning, rng *rand.Rand) *Rules {
	return &Rules{
		tun:     tun,
		rng:     rng,
		rewards: DefaultRewardTable(),
		flavors: flavorPool,
	}
}

// SetRewardTable replaces the reward rows.
func (ru *Rules) SetRewardTable(rows []RewardRule) {
	ru.rewards = rows
}

// Evaluate runs every table over the snapshot: death sentences first match
// wins per villager, one spawn check, reward scan over the previous pass's
// actions, a flavor roll, and the chronicle cadence check.
func (ru *Rules) Evaluate(snap []agent.Agent, world WorldState, recent []ActionRecord) Verdict {
	var v Verdict

	for _, a := range snap {
		if !a.Alive {
			continue
		}
		if a.Vitals.Health <= 0 {
			v.Deaths = append(v.Deaths, DeathSentence{ID: a.ID, Name: a.Name, Cause: "health failure"})
			continue
		}
		if a.Vitals.Age > ru.tun.AgeThreshold {
			hazard := float64(a.Vitals.Age-ru.tun.AgeThreshold) * ru.tun.OldAgeHazard
			if ru.rng.Float64() < hazard {
				v.Deaths = append(v.Deaths, DeathSentence{ID: a.ID, Name: a.Name, Cause: "old age"})
				continue
			}
		}
		// A neglect rule (long despair without company) has a slot here,
		// but no agreed thresholds yet.
	}

	v.SpawnWanted = ru.ShouldSpawn(len(snap))

	for _, rec := range recent {
		for _, rule := range ru.rewards {
			if !rule.Matches(rec) {
				continue
			}
			// First matching row claims the record; its roll decides.
			if ru.rng.Float64() < rule.Probability {
				v.Rewards = append(v.Rewards, RewardEvent{
					Category: rule.Category,
					Actor:    rec.AgentName,
					Field:    rule.Field,
					Delta:    rule.Delta,
					Message:  fmt.Sprintf(rule.Template, rec.AgentName),
					Nuance:   rec.Nuance,
				})
			}
			break
		}
	}

	if ru.rng.Float64() < ru.tun.FlavorChance {
		v.FlavorEvent = ru.flavors[ru.rng.Intn(len(ru.flavors))]
	}

	v.ChronicleDue = ru.tun.ChronicleInterval > 0 && world.Tick > 0 &&
		world.Tick%ru.tun.ChronicleInterval == 0

	return v
}

// ShouldSpawn applies the population gates and the spawn roll. The hard cap
// is absolute: no roll can beat it.
func (ru *Rules) ShouldSpawn(live int) bool {
	if live >= ru.tun.HardCap {
		return false
	}
	if live >= ru.tun.SoftCap {
		return false
	}
	return ru.rng.Float64() < ru.tun.SpawnChance
}

// DefaultRewardTable returns the standing reward rows. Moral categories come
// first so a judged act lands on its judgement, not its mechanics.
func DefaultRewardTable() []RewardRule {
	return []RewardRule{
		{
			Category:    "help",
			Matches:     func(r ActionRecord) bool { return r.MoralCategory == "help" },
			Probability: 0.9,
			Field:       RewardMood,
			Delta:       5,
			Template:    "%s's kindness lifted every heart in the village",
		},
		{
			Category:    "share",
			Matches:     func(r ActionRecord) bool { return r.MoralCategory == "share" },
			Probability: 0.9,
			Field:       RewardHealth,
			Delta:       2,
			Template:    "%s shared freely, and the whole village ate a little better",
		},
		{
			Category: "create",
			Matches: func(r ActionRecord) bool {
				switch r.Kind {
				case oracle.ActionCreate, oracle.ActionPost, oracle.ActionWriteDiary:
					return true
				}
				return false
			},
			Probability: 0.5,
			Field:       RewardMood,
			Delta:       3,
			Template:    "%s made something worth gathering around",
		},
		{
			Category:    "conversation",
			Matches:     func(r ActionRecord) bool { return r.Kind == oracle.ActionStartConversation },
			Probability: 0.4,
			Field:       RewardMood,
			Delta:       2,
			Template:    "warm words from %s drifted through Embervale",
		},
		{
			Category:    "work",
			Matches:     func(r ActionRecord) bool { return r.Kind == oracle.ActionWork },
			Probability: 0.3,
			Field:       RewardEnergy,
			Delta:       2,
			Template:    "%s's steady work kept the village humming",
		},
	}
}

// flavorPool holds the cosmetic happenings. They touch nothing.
var flavorPool = []string{
	"A kestrel circled the plaza for a long while before drifting east.",
	"The cafe's kettle sang a note nobody could place.",
	"Fog rolled off the river and pooled between the garden rows.",
	"Someone left a basket of plums on the library steps.",
	"The workshop's weathervane spun without any wind.",
	"Three crows argued on the fountain rim until dusk.",
	"A traveling tinker passed through without stopping.",
	"Rain hammered the rooftops for exactly one minute.",
}
