package store

import (
	"context"
	"fmt"
	"time"
)

// BoardPost is one entry on the village board.
type BoardPost struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	AgentName string    `json:"agent_name"`
	Content   string    `json:"content"`
	Tick      int       `json:"tick"`
	CreatedAt time.Time `json:"created_at"`
}

// DiaryEntry is one private diary entry.
type DiaryEntry struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agent_id"`
	AgentName string    `json:"agent_name"`
	Content   string    `json:"content"`
	Tick      int       `json:"tick"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveBoardPost appends a post to the village board.
func (s *Store) SaveBoardPost(ctx context.Context, agentID, agentName, content string, tick int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO board_posts (id, agent_id, agent_name, content, tick)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`,
		agentID, agentName, content, tick,
	)
	if err != nil {
		return fmt.Errorf("save board post: %w", err)
	}
	return nil
}

// SaveDiaryEntry appends a diary entry.
func (s *Store) SaveDiaryEntry(ctx context.Context, agentID, agentName, content string, tick int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO diary_entries (id, agent_id, agent_name, content, tick)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)`,
		agentID, agentName, content, tick,
	)
	if err != nil {
		return fmt.Errorf("save diary entry: %w", err)
	}
	return nil
}

// RecentBoardPosts returns the newest board posts, newest first.
func (s *Store) RecentBoardPosts(ctx context.Context, limit int) ([]BoardPost, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, agent_id, agent_name, content, tick, created_at
		FROM board_posts
		ORDER BY tick DESC, created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list board posts: %w", err)
	}
	defer rows.Close()

	var posts []BoardPost
	for rows.Next() {
		var p BoardPost
		if err := rows.Scan(&p.ID, &p.AgentID, &p.AgentName, &p.Content, &p.Tick, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan board post: %w", err)
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// DiaryFor returns one villager's diary, newest first.
func (s *Store) DiaryFor(ctx context.Context, agentID string, limit int) ([]DiaryEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, agent_id, agent_name, content, tick, created_at
		FROM diary_entries
		WHERE agent_id = $1
		ORDER BY tick DESC, created_at DESC
		LIMIT $2`, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list diary entries: %w", err)
	}
	defer rows.Close()

	var entries []DiaryEntry
	for rows.Next() {
		var e DiaryEntry
		if err := rows.Scan(&e.ID, &e.AgentID, &e.AgentName, &e.Content, &e.Tick, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan diary entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
