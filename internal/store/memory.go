package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wxfusion/wxfusion/internal/weather"
)

var (
	// ErrNotFound is returned when no snapshot is cached for a location key.
	ErrNotFound = errors.New("no cached snapshot for location")
)

type entry struct {
	snap    *weather.WeatherSnapshot
	savedAt time.Time
}

// MemoryStore is a concurrency-safe in-memory snapshot cache. Values are
// whole snapshots per key: readers see either the old or the new value,
// never a partial one.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: time-ordered history
	data map[string][]entry

	// retention configuration
	maxHistory int           // max snapshots per location (<=0 = unlimited)
	maxAge     time.Duration // max snapshot age (<=0 = unlimited)
}

// NewMemoryStore creates a MemoryStore with optional retention limits.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string][]entry),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// Put appends a snapshot for a key and enforces retention.
func (s *MemoryStore) Put(_ context.Context, key string, snap *weather.WeatherSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history := append(s.data[key], entry{snap: snap, savedAt: time.Now()})

	// Retention by count.
	if s.maxHistory > 0 && len(history) > s.maxHistory {
		history = history[len(history)-s.maxHistory:]
	}

	// Retention by age.
	if s.maxAge > 0 {
		cutoff := time.Now().Add(-s.maxAge)
		i := 0
		for ; i < len(history); i++ {
			if !history[i].savedAt.Before(cutoff) {
				break
			}
		}
		if i > 0 && i < len(history) {
			history = history[i:]
		}
	}

	s.data[key] = history
	return nil
}

// Get returns the most recent snapshot for a key and its age. The store
// never interprets staleness; the caller decides.
func (s *MemoryStore) Get(_ context.Context, key string) (*weather.WeatherSnapshot, time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[key]
	if len(history) == 0 {
		return nil, 0, ErrNotFound
	}
	latest := history[len(history)-1]
	return latest.snap, time.Since(latest.savedAt), nil
}

// History returns all snapshots for a key saved between from and to,
// inclusive.
func (s *MemoryStore) History(_ context.Context, key string, from, to time.Time) ([]*weather.WeatherSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.data[key]
	if len(history) == 0 {
		return nil, ErrNotFound
	}

	var result []*weather.WeatherSnapshot
	for _, e := range history {
		if !e.savedAt.Before(from) && !e.savedAt.After(to) {
			result = append(result, e.snap)
		}
	}
	if len(result) == 0 {
		return nil, ErrNotFound
	}
	return result, nil
}
