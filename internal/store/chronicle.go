package store

import (
	"context"
	"fmt"
	"time"
)

// ChronicleEntry is one installment of the village history.
type ChronicleEntry struct {
	ID        string    `json:"id"`
	Tick      int       `json:"tick"`
	Day       int       `json:"day"`
	Entry     string    `json:"entry"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveChronicleEntry appends an installment.
func (s *Store) SaveChronicleEntry(ctx context.Context, tick, day int, entry string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO chronicle (id, tick, day, entry)
		VALUES (gen_random_uuid(), $1, $2, $3)`,
		tick, day, entry,
	)
	if err != nil {
		return fmt.Errorf("save chronicle entry: %w", err)
	}
	return nil
}

// RecentChronicle returns the newest installments, newest first.
func (s *Store) RecentChronicle(ctx context.Context, limit int) ([]ChronicleEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, tick, day, entry, created_at
		FROM chronicle
		ORDER BY tick DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list chronicle: %w", err)
	}
	defer rows.Close()

	var entries []ChronicleEntry
	for rows.Next() {
		var e ChronicleEntry
		if err := rows.Scan(&e.ID, &e.Tick, &e.Day, &e.Entry, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chronicle entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
