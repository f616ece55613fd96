package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ashgrove/embervale/internal/agent"
)

// SaveAgents upserts the whole roster, living and dead. Called on every
// flush, so it overwrites rather than appends.
func (s *Store) SaveAgents(ctx context.Context, roster []agent.Agent) error {
	now := time.Now()
	for i := range roster {
		a := &roster[i]
		personaJSON, err := json.Marshal(a.Persona)
		if err != nil {
			return fmt.Errorf("marshal persona for %s: %w", a.Name, err)
		}
		mindJSON, err := json.Marshal(a.Mind)
		if err != nil {
			return fmt.Errorf("marshal mind for %s: %w", a.Name, err)
		}
		memoriesJSON, err := json.Marshal(a.Memories)
		if err != nil {
			return fmt.Errorf("marshal memories for %s: %w", a.Name, err)
		}

		_, err = s.db.Exec(ctx, `
			INSERT INTO agents (id, name, persona, mind, memories, location, activity,
			                    health, hunger, energy, age,
			                    alive, born_tick, died_tick, death_cause, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				persona = EXCLUDED.persona,
				mind = EXCLUDED.mind,
				memories = EXCLUDED.memories,
				location = EXCLUDED.location,
				activity = EXCLUDED.activity,
				health = EXCLUDED.health,
				hunger = EXCLUDED.hunger,
				energy = EXCLUDED.energy,
				age = EXCLUDED.age,
				alive = EXCLUDED.alive,
				died_tick = EXCLUDED.died_tick,
				death_cause = EXCLUDED.death_cause,
				updated_at = EXCLUDED.updated_at`,
			a.ID, a.Name, personaJSON, mindJSON, memoriesJSON,
			string(a.Location), a.Activity,
			a.Vitals.Health, a.Vitals.Hunger, a.Vitals.Energy, a.Vitals.Age,
			a.Alive, a.BornTick, a.DiedTick, a.DeathCause, now,
		)
		if err != nil {
			return fmt.Errorf("save agent %s: %w", a.Name, err)
		}
	}
	return nil
}

// LoadLiveAgents returns the living villagers in birth order.
func (s *Store) LoadLiveAgents(ctx context.Context) ([]*agent.Agent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, persona, mind, memories, location, activity,
		       health, hunger, energy, age,
		       alive, born_tick, died_tick, COALESCE(death_cause, '')
		FROM agents
		WHERE alive
		ORDER BY born_tick, created_at`)
	if err != nil {
		return nil, fmt.Errorf("load agents: %w", err)
	}
	defer rows.Close()

	var roster []*agent.Agent
	for rows.Next() {
		var a agent.Agent
		var personaJSON, mindJSON, memoriesJSON []byte
		var location string
		if err := rows.Scan(
			&a.ID, &a.Name, &personaJSON, &mindJSON, &memoriesJSON,
			&location, &a.Activity,
			&a.Vitals.Health, &a.Vitals.Hunger, &a.Vitals.Energy, &a.Vitals.Age,
			&a.Alive, &a.BornTick, &a.DiedTick, &a.DeathCause,
		); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		if err := json.Unmarshal(personaJSON, &a.Persona); err != nil {
			return nil, fmt.Errorf("decode persona for %s: %w", a.Name, err)
		}
		if err := json.Unmarshal(mindJSON, &a.Mind); err != nil {
			return nil, fmt.Errorf("decode mind for %s: %w", a.Name, err)
		}
		if len(memoriesJSON) > 0 {
			if err := json.Unmarshal(memoriesJSON, &a.Memories); err != nil {
				return nil, fmt.Errorf("decode memories for %s: %w", a.Name, err)
			}
		}
		a.Location = agent.Place(location)
		roster = append(roster, &a)
	}
	return roster, rows.Err()
}

// SaveMemory appends one remembered moment to the durable log.
func (s *Store) SaveMemory(ctx context.Context, agentID string, mem agent.Memory) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO memories (id, agent_id, content, importance, tick)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`,
		agentID, mem.Content, mem.Importance, mem.Tick,
	)
	if err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}
