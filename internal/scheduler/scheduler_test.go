package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wxfusion/wxfusion/internal/weather"
)

type countingProvider struct {
	calls int32
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) FetchCurrent(_ context.Context, _ weather.Location) (*weather.CurrentConditions, error) {
	atomic.AddInt32(&p.calls, 1)
	t := 60.0
	return &weather.CurrentConditions{TempF: &t}, nil
}

func (p *countingProvider) FetchForecast(_ context.Context, _ weather.Location) (*weather.Forecast, error) {
	return nil, weather.ErrKindUnsupported
}

func (p *countingProvider) FetchHourly(_ context.Context, _ weather.Location) (*weather.HourlyForecast, error) {
	return nil, weather.ErrKindUnsupported
}

func (p *countingProvider) FetchAlerts(_ context.Context, _ weather.Location) (*weather.AlertList, error) {
	return nil, weather.ErrKindUnsupported
}

// TestSubMinuteIntervalHonored verifies the configured interval is used
// as-is: a sub-minute interval must fire, not get truncated to a whole
// number of minutes.
func TestSubMinuteIntervalHonored(t *testing.T) {
	p := &countingProvider{}
	coord := weather.NewCoordinator(nil, []weather.Provider{p}, nil, weather.CoordinatorOptions{}, nil, nil)

	s := New([]weather.Location{{Name: "Seattle"}}, 50*time.Millisecond, coord, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&p.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if atomic.LoadInt32(&p.calls) == 0 {
		t.Fatal("expected at least one refresh within 3s of starting a 50ms schedule")
	}
}

func TestNoLocationsSchedulesNothing(t *testing.T) {
	coord := weather.NewCoordinator(nil, nil, nil, weather.CoordinatorOptions{}, nil, nil)
	s := New(nil, time.Minute, coord, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start with no locations must be a no-op, got %v", err)
	}
	s.Stop()
}
