package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPlayerPrefix   = "trust:player:"
	redisLeaderboardKey = "trust:leaderboard"
)

// redisStore keeps one hash per player (all fields text) plus a sorted set
// for the leaderboard. The client retries transient failures with backoff,
// so a short outage surfaces as a slow call rather than lost state.
type redisStore struct {
	rdb *redis.Client
}

func openRedisStore(addr string) (*redisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            addr,
		MaxRetries:      5,
		MinRetryBackoff: 50 * time.Millisecond,
		MaxRetryBackoff: 2 * time.Second,
		DialTimeout:     5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &redisStore{rdb: rdb}, nil
}

func (s *redisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *redisStore) Save(ctx context.Context, rec storedRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("player id is required")
	}

	score := parseIntField(rec.Score, 0)

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, redisPlayerPrefix+rec.ID, rec.fields())
	pipe.ZAdd(ctx, redisLeaderboardKey, redis.Z{
		Score:  float64(score),
		Member: rec.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save player %s: %w", rec.ID, err)
	}

	return nil
}

func (s *redisStore) Load(ctx context.Context, id string) (storedRecord, error) {
	if id == "" {
		return storedRecord{}, fmt.Errorf("player id is required")
	}

	fields, err := s.rdb.HGetAll(ctx, redisPlayerPrefix+id).Result()
	if err != nil {
		return storedRecord{}, fmt.Errorf("load player %s: %w", id, err)
	}
	if len(fields) == 0 {
		return storedRecord{}, errNotFound
	}

	return recordFromFields(fields), nil
}

func (s *redisStore) TopScores(ctx context.Context, n int) ([]storedRecord, error) {
	if n < 1 {
		return nil, nil
	}

	ids, err := s.rdb.ZRevRange(ctx, redisLeaderboardKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("load leaderboard: %w", err)
	}

	out := make([]storedRecord, 0, len(ids))
	for _, id := range ids {
		fields, err := s.rdb.HGetAll(ctx, redisPlayerPrefix+id).Result()
		if err != nil {
			return nil, fmt.Errorf("load player %s: %w", id, err)
		}
		if len(fields) == 0 {
			continue // zset member without a hash, skip
		}
		out = append(out, recordFromFields(fields))
	}

	return out, nil
}
