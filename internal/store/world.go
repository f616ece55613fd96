package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ashgrove/embervale/internal/sim"
)

// SaveWorld upserts the single world-state row.
func (s *Store) SaveWorld(ctx context.Context, w sim.WorldState) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO world_state (id, tick, day, minute_of_day, season, weather, births, deaths, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (id) DO UPDATE SET
			tick = EXCLUDED.tick,
			day = EXCLUDED.day,
			minute_of_day = EXCLUDED.minute_of_day,
			season = EXCLUDED.season,
			weather = EXCLUDED.weather,
			births = EXCLUDED.births,
			deaths = EXCLUDED.deaths,
			updated_at = EXCLUDED.updated_at`,
		w.Tick, w.Day, w.MinuteOfDay, string(w.Season), string(w.Weather), w.Births, w.Deaths,
	)
	if err != nil {
		return fmt.Errorf("save world state: %w", err)
	}
	return nil
}

// LoadWorld returns the saved world state, or nil when no save exists.
func (s *Store) LoadWorld(ctx context.Context) (*sim.WorldState, error) {
	var w sim.WorldState
	var season, weather string
	err := s.db.QueryRow(ctx, `
		SELECT tick, day, minute_of_day, season, weather, births, deaths
		FROM world_state WHERE id = 1`,
	).Scan(&w.Tick, &w.Day, &w.MinuteOfDay, &season, &weather, &w.Births, &w.Deaths)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load world state: %w", err)
	}
	w.Season = sim.Season(season)
	w.Weather = sim.Weather(weather)
	return &w, nil
}
