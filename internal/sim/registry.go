package sim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/config"
	"github.com/ashgrove/embervale/internal/oracle"
)

// ErrNotFound is reported for operations on unknown or dead villagers.
var ErrNotFound = errors.New("villager not found")

// Registry owns the canonical in-memory set of villagers. All mutation
// happens on the scheduler's goroutine; the internal lock exists so HTTP
// readers can take consistent copies while a tick is running.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*agent.Agent
	order  []string // insertion order, keeps every sweep deterministic
	tun    config.Tuning
}

// NewRegistry creates an empty registry.
func NewRegistry(tun config.Tuning) *Registry {
	return &Registry{
		agents: make(map[string]*agent.Agent),
		tun:    tun,
	}
}

// Add registers a villager. An existing id is replaced in place.
func (r *Registry) Add(a *agent.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[a.ID]; !ok {
		r.order = append(r.order, a.ID)
	}
	r.agents[a.ID] = a
}

// Get returns a copy of a villager by id.
func (r *Registry) Get(id string) (agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return agent.Agent{}, false
	}
	return *a, true
}

// Roster returns copies of every villager, living and dead, in arrival order.
func (r *Registry) Roster() []agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]agent.Agent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.agents[id])
	}
	return out
}

// LiveSnapshot returns copies of the living villagers in arrival order. Rule
// evaluation runs against this stable view.
func (r *Registry) LiveSnapshot() []agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []agent.Agent
	for _, id := range r.order {
		if a := r.agents[id]; a.Alive {
			out = append(out, *a)
		}
	}
	return out
}

// LiveCount returns the number of living villagers.
func (r *Registry) LiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, a := range r.agents {
		if a.Alive {
			n++
		}
	}
	return n
}

// Names returns the names of all living villagers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for _, id := range r.order {
		if a := r.agents[id]; a.Alive {
			names = append(names, a.Name)
		}
	}
	return names
}

// NeighborsOf returns the names of the other living villagers at the same
// place as id.
func (r *Registry) NeighborsOf(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil
	}
	var names []string
	for _, oid := range r.order {
		o := r.agents[oid]
		if oid != id && o.Alive && o.Location == a.Location {
			names = append(names, o.Name)
		}
	}
	return names
}

// get returns the live pointer for in-package use on the scheduler goroutine.
func (r *Registry) get(id string) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// byName finds a living villager by display name.
func (r *Registry) byName(name string) (*agent.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, id := range r.order {
		a := r.agents[id]
		if a.Alive && a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// Clear removes every villager. Used when the world is reset.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = make(map[string]*agent.Agent)
	r.order = nil
}

// Decay applies one tick of vitals drift to every living villager: hunger
// climbs, energy drains or recovers depending on sleep and the hour, health
// follows hunger and energy, mood lifts when all three are comfortable, and
// age advances. Every delta and threshold comes from the tuning table.
func (r *Registry) Decay(isNight bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.order {
		a := r.agents[id]
		if !a.Alive {
			continue
		}
		v := &a.Vitals

		v.Hunger = agent.Clamp(v.Hunger+r.tun.HungerPerTick, agent.VitalMin, agent.VitalMax)

		switch {
		case a.Activity == agent.ActivitySleeping:
			v.Energy = agent.Clamp(v.Energy+r.tun.SleepRecovery, agent.VitalMin, agent.VitalMax)
		case isNight:
			v.Energy = agent.Clamp(v.Energy-r.tun.NightDrain, agent.VitalMin, agent.VitalMax)
		default:
			v.Energy = agent.Clamp(v.Energy-r.tun.DayDrain, agent.VitalMin, agent.VitalMax)
		}

		if v.Hunger < r.tun.HungerComfort && v.Energy > r.tun.EnergyComfort {
			v.Health = agent.Clamp(v.Health+r.tun.HealthRegen, agent.VitalMin, agent.VitalMax)
		}
		// Starving or exhausted costs health once, not once per cause.
		if v.Hunger > r.tun.HungerDanger || v.Energy < r.tun.EnergyDanger {
			v.Health = agent.Clamp(v.Health-r.tun.HealthDecay, agent.VitalMin, agent.VitalMax)
		}

		if v.Hunger < r.tun.MoodHungerMax && v.Energy > r.tun.MoodEnergyMin && v.Health > r.tun.MoodHealthMin {
			a.SetMood(a.Mind.MoodScore + r.tun.MoodLift)
		}

		v.Age++
	}
}

// SelectEligibleAndAutoSleep returns the ids of living villagers free to
// make a decision this tick. As a deliberate side effect of the same scan,
// any living villager whose energy sits below the auto-sleep threshold is
// put to sleep and excluded. Callers depend on that mutation; do not split
// this into a pure query.
func (r *Registry) SelectEligibleAndAutoSleep() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var eligible []string
	for _, id := range r.order {
		a := r.agents[id]
		if !a.Alive {
			continue
		}
		if a.Vitals.Energy < r.tun.AutoSleepEnergy {
			a.Activity = agent.ActivitySleeping
			continue
		}
		if a.Busy() {
			continue
		}
		eligible = append(eligible, id)
	}
	return eligible
}

// WakeRested rouses sleeping villagers whose energy has recovered past the
// wake threshold, and lets villagers mid-meal finish eating. Both revert to
// loitering at their current place. Returns the names of the woken.
func (r *Registry) WakeRested() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var woken []string
	for _, id := range r.order {
		a := r.agents[id]
		if !a.Alive {
			continue
		}
		switch a.Activity {
		case agent.ActivitySleeping:
			if a.Vitals.Energy >= r.tun.WakeEnergy {
				a.Activity = agent.AtPlace(a.Location)
				woken = append(woken, a.Name)
			}
		case agent.ActivityEating:
			// A meal lasts one tick.
			a.Activity = agent.AtPlace(a.Location)
		}
	}
	return woken
}

// Apply mutates a villager per the effect's action semantics and returns the
// memory it appended, if any. Unknown or dead villagers report ErrNotFound.
func (r *Registry) Apply(id string, e Effect) (*agent.Memory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok || !a.Alive {
		return nil, fmt.Errorf("apply %s to %s: %w", e.Kind, id, ErrNotFound)
	}
	if e.Thought != "" {
		a.Mind.Thought = e.Thought
	}

	var remembered *agent.Memory
	remember := func(content string, importance float64) {
		a.Remember(content, importance, e.Tick)
		m := a.Memories[len(a.Memories)-1]
		remembered = &m
	}

	switch e.Kind {
	case oracle.ActionMove:
		if !agent.ValidPlace(e.Place) {
			// Nowhere real to go; stay put and watch.
			a.Activity = agent.AtPlace(a.Location)
			break
		}
		a.Location = e.Place
		a.Activity = agent.AtPlace(e.Place)
		remember(fmt.Sprintf("Went to the %s.", e.Place), 0.3)

	case oracle.ActionEat:
		v := &a.Vitals
		v.Hunger = agent.Clamp(v.Hunger-r.tun.EatNourishment, agent.VitalMin, agent.VitalMax)
		v.Health = agent.Clamp(v.Health+r.tun.EatHealthBonus, agent.VitalMin, agent.VitalMax)
		v.Energy = agent.Clamp(v.Energy-r.tun.EatEffort, agent.VitalMin, agent.VitalMax)
		a.SetMood(a.Mind.MoodScore + r.tun.EatMoodLift)
		a.Activity = agent.ActivityEating

	case oracle.ActionSleep:
		a.Activity = agent.ActivitySleeping

	case oracle.ActionPost:
		a.Activity = "writing to the village board"
		remember(fmt.Sprintf("Posted to the board: %s", snippet(e.Text)), 0.5)

	case oracle.ActionWriteDiary:
		a.Activity = "writing in a diary"
		remember("Wrote the day down before it got away.", 0.5)

	case oracle.ActionCreate:
		a.Activity = "making something new"
		remember(fmt.Sprintf("Made something: %s", snippet(e.Text)), 0.7)

	case oracle.ActionReflect:
		a.Activity = "lost in thought"
		remember("Sat a while with their own thoughts.", 0.7)

	case oracle.ActionWork:
		a.Activity = "working"
		remember("Put in honest work.", 0.7)

	default: // observe, and anything unrecognized
		a.Activity = agent.AtPlace(a.Location)
	}
	return remembered, nil
}

// SetActivity sets a villager's activity label.
func (r *Registry) SetActivity(id, activity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("set activity for %s: %w", id, ErrNotFound)
	}
	a.Activity = activity
	return nil
}

// AddMemory appends a memory to a villager's ring.
func (r *Registry) AddMemory(id, content string, importance float64, tick int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("add memory for %s: %w", id, ErrNotFound)
	}
	a.Remember(content, importance, tick)
	return nil
}

// MarkDead flags a villager dead with a cause. The body stays in the roster
// for the record; every sweep skips it from here on.
func (r *Registry) MarkDead(id, cause string, tick int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("mark dead %s: %w", id, ErrNotFound)
	}
	a.Alive = false
	a.DiedTick = tick
	a.DeathCause = cause
	return nil
}

// Remove deletes a villager entirely.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[id]; !ok {
		return fmt.Errorf("remove %s: %w", id, ErrNotFound)
	}
	delete(r.agents, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ApplyReward adds delta to one field for every living villager, clamped to
// bounds. Returns how many villagers it touched.
func (r *Registry) ApplyReward(field RewardField, delta float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.order {
		a := r.agents[id]
		if !a.Alive {
			continue
		}
		switch field {
		case RewardHealth:
			a.Vitals.Health = agent.Clamp(a.Vitals.Health+delta, agent.VitalMin, agent.VitalMax)
		case RewardEnergy:
			a.Vitals.Energy = agent.Clamp(a.Vitals.Energy+delta, agent.VitalMin, agent.VitalMax)
		case RewardMood:
			a.SetMood(a.Mind.MoodScore + delta)
		default:
			continue
		}
		n++
	}
	return n
}
