package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the Redis stream external spectator surfaces read from.
const DefaultStream = "embervale:feed"

// RedisSink publishes events to a capped Redis stream.
type RedisSink struct {
	rdb    *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisSink connects to Redis and verifies it responds.
func NewRedisSink(redisURL, stream string, logger *zap.Logger) (*RedisSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisSink{rdb: rdb, stream: stream, logger: logger}, nil
}

// Emit implements Sink. Publish failures are logged, never surfaced.
func (s *RedisSink) Emit(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Warn("feed event not serializable", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		s.logger.Warn("feed publish failed",
			zap.String("stream", s.stream),
			zap.String("type", string(e.Type)),
			zap.Error(err))
	}
}

// Close shuts down the Redis connection.
func (s *RedisSink) Close() error {
	return s.rdb.Close()
}
