package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/wxfusion/wxfusion/internal/weather"
)

const (
	latestKeyPrefix  = "wx:latest:"
	historyKeyPrefix = "wx:hist:"
)

// RedisStore is a Redis-backed snapshot cache: the latest snapshot per
// location key plus a time-indexed history sorted set. Survives process
// restarts, so the coordinator's cache fallback works across them.
type RedisStore struct {
	rc     *redis.Client
	maxAge time.Duration // history retention; <=0 = unlimited
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rc *redis.Client, maxAge time.Duration) *RedisStore {
	return &RedisStore{rc: rc, maxAge: maxAge}
}

// Put stores the snapshot as the latest value for the key and appends it to
// the history index.
func (s *RedisStore) Put(ctx context.Context, key string, snap *weather.WeatherSnapshot) error {
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	pipe := s.rc.TxPipeline()
	pipe.Set(ctx, latestKeyPrefix+key, b, 0)
	pipe.ZAdd(ctx, historyKeyPrefix+key, &redis.Z{
		Score:  float64(snap.FetchedAt.Unix()),
		Member: string(b),
	})
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge).Unix()
		pipe.ZRemRangeByScore(ctx, historyKeyPrefix+key, "-inf", strconv.FormatInt(cutoff, 10))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put: %w", err)
	}
	return nil
}

// Get returns the latest snapshot for the key and its age, computed from the
// snapshot's own fetch time.
func (s *RedisStore) Get(ctx context.Context, key string) (*weather.WeatherSnapshot, time.Duration, error) {
	b, err := s.rc.Get(ctx, latestKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("redis get: %w", err)
	}

	var snap weather.WeatherSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, 0, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &snap, time.Since(snap.FetchedAt), nil
}

// History returns snapshots fetched between from and to, inclusive.
func (s *RedisStore) History(ctx context.Context, key string, from, to time.Time) ([]*weather.WeatherSnapshot, error) {
	members, err := s.rc.ZRangeByScore(ctx, historyKeyPrefix+key, &redis.ZRangeBy{
		Min: strconv.FormatInt(from.Unix(), 10),
		Max: strconv.FormatInt(to.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis history: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrNotFound
	}

	out := make([]*weather.WeatherSnapshot, 0, len(members))
	for _, m := range members {
		var snap weather.WeatherSnapshot
		if err := json.Unmarshal([]byte(m), &snap); err != nil {
			return nil, fmt.Errorf("unmarshal history snapshot: %w", err)
		}
		out = append(out, &snap)
	}
	return out, nil
}
