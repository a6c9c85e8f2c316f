package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/wxfusion/wxfusion/internal/weather"
)

// Scheduler periodically refreshes snapshots for tracked locations. Refresh
// calls are non-force, so a scheduled run coalesces with any user request
// already in flight for the same key.
type Scheduler struct {
	scheduler *gocron.Scheduler
	coord     *weather.Coordinator
	locations []weather.Location
	interval  time.Duration
	log       *zap.SugaredLogger
}

// New creates a Scheduler.
func New(locations []weather.Location, interval time.Duration, coord *weather.Coordinator, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		coord:     coord,
		locations: locations,
		interval:  interval,
		log:       log,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.locations) == 0 {
		s.log.Info("scheduler: no tracked locations configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		s.log.Infof("scheduler: refreshing %d tracked locations", len(s.locations))

		var wg sync.WaitGroup
		for _, loc := range s.locations {
			loc := loc
			wg.Add(1)
			go func() {
				defer wg.Done()

				ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
				defer cancel()

				if _, err := s.coord.GetWeather(ctx, loc, false); err != nil {
					s.log.Warnf("scheduler: refresh failed for %s: %v", loc.Key(), err)
				}
			}()
		}
		wg.Wait()
		s.log.Info("scheduler: refresh cycle completed")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
