package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/wxfusion/wxfusion/internal/weather"
)

func snapWithRunID(id string) *weather.WeatherSnapshot {
	return &weather.WeatherSnapshot{RunID: id, FetchedAt: time.Now().UTC()}
}

func TestMemoryPutGet(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()

	want := snapWithRunID("run-1")
	if err := s.Put(ctx, "seattle", want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, age, err := s.Get(ctx, "seattle")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != want {
		t.Errorf("Get returned a different snapshot: %+v", got)
	}
	if age < 0 || age > time.Minute {
		t.Errorf("implausible age %v for a fresh snapshot", age)
	}
}

func TestMemoryGetReturnsLatest(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()

	s.Put(ctx, "seattle", snapWithRunID("run-1"))
	s.Put(ctx, "seattle", snapWithRunID("run-2"))

	got, _, err := s.Get(ctx, "seattle")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.RunID != "run-2" {
		t.Errorf("Get RunID = %q, want the latest run-2", got.RunID)
	}
}

func TestMemoryGetMissingKey(t *testing.T) {
	s := NewMemoryStore(0, 0)
	if _, _, err := s.Get(context.Background(), "nowhere"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRetentionByCount(t *testing.T) {
	s := NewMemoryStore(2, 0)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		s.Put(ctx, "seattle", snapWithRunID(fmt.Sprintf("run-%d", i)))
	}

	snaps, err := s.History(ctx, "seattle", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("retention kept %d snapshots, want 2", len(snaps))
	}
	if snaps[0].RunID != "run-2" || snaps[1].RunID != "run-3" {
		t.Errorf("oldest snapshot must be evicted first, got %q, %q", snaps[0].RunID, snaps[1].RunID)
	}
}

func TestMemoryHistoryRange(t *testing.T) {
	s := NewMemoryStore(0, 0)
	ctx := context.Background()
	s.Put(ctx, "seattle", snapWithRunID("run-1"))

	// Window entirely in the past excludes the just-saved snapshot.
	past := time.Now().Add(-2 * time.Hour)
	if _, err := s.History(ctx, "seattle", past, past.Add(time.Hour)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for an empty window, got %v", err)
	}

	snaps, err := s.History(ctx, "seattle", time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(snaps) != 1 {
		t.Errorf("History returned %d snapshots, want 1", len(snaps))
	}
}

func TestMemoryHistoryMissingKey(t *testing.T) {
	s := NewMemoryStore(0, 0)
	if _, err := s.History(context.Background(), "nowhere", time.Time{}, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
