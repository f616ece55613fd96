package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashgrove/embervale/internal/agent"
	"github.com/ashgrove/embervale/internal/sim"
)

// SaveConversation appends a finished transcript.
func (s *Store) SaveConversation(ctx context.Context, rec sim.ConversationRecord) error {
	turnsJSON, err := json.Marshal(rec.Turns)
	if err != nil {
		return fmt.Errorf("marshal turns: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO conversations (id, initiator_id, initiator_name, partner_id, partner_name, location, tick, turns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.InitiatorID, rec.InitiatorName, rec.PartnerID, rec.PartnerName,
		string(rec.Location), rec.Tick, turnsJSON,
	)
	if err != nil {
		return fmt.Errorf("save conversation %s: %w", rec.ID, err)
	}
	return nil
}

// RecentConversations returns the newest transcripts, newest first.
func (s *Store) RecentConversations(ctx context.Context, limit int) ([]sim.ConversationRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, initiator_id, initiator_name, partner_id, partner_name, location, tick, turns
		FROM conversations
		ORDER BY tick DESC, created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var recs []sim.ConversationRecord
	for rows.Next() {
		var rec sim.ConversationRecord
		var location string
		var turnsJSON []byte
		if err := rows.Scan(&rec.ID, &rec.InitiatorID, &rec.InitiatorName,
			&rec.PartnerID, &rec.PartnerName, &location, &rec.Tick, &turnsJSON); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if err := json.Unmarshal(turnsJSON, &rec.Turns); err != nil {
			return nil, fmt.Errorf("decode turns for %s: %w", rec.ID, err)
		}
		rec.Location = agent.Place(location)
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
