package weather

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrKindUnsupported is returned by a provider that has no feed for the
	// requested data kind. The coordinator skips it instead of counting the
	// provider as failed.
	ErrKindUnsupported = errors.New("data kind not supported by this source")

	// ErrNoData is the only total-failure error the coordinator surfaces:
	// every data kind absent and no cache fallback available.
	ErrNoData = errors.New("no weather data available from any source or cache")

	// ErrSourceUnavailable is returned before any network call when an
	// explicitly pinned source is disabled or unknown.
	ErrSourceUnavailable = errors.New("pinned source is not enabled")
)

// Provider is one external weather data source. Each call must resolve (the
// underlying client enforces timeouts) and must never panic past its
// boundary; failures are error returns.
type Provider interface {
	Name() string
	FetchCurrent(ctx context.Context, loc Location) (*CurrentConditions, error)
	FetchForecast(ctx context.Context, loc Location) (*Forecast, error)
	FetchHourly(ctx context.Context, loc Location) (*HourlyForecast, error)
	FetchAlerts(ctx context.Context, loc Location) (*AlertList, error)
}

// DiscussionProvider is an optional capability: a source that publishes a
// forecaster-written discussion text.
type DiscussionProvider interface {
	FetchDiscussion(ctx context.Context, loc Location) (string, error)
}

// SnapshotStore is the offline cache collaborator. It never interprets
// staleness; age is reported and the coordinator decides.
type SnapshotStore interface {
	Put(ctx context.Context, key string, snap *WeatherSnapshot) error
	Get(ctx context.Context, key string) (*WeatherSnapshot, time.Duration, error)
	History(ctx context.Context, key string, from, to time.Time) ([]*WeatherSnapshot, error)
}

// AlertSink receives the fused alert list after each successful run. It
// decides nothing here; escalation belongs to the notification subsystem.
type AlertSink interface {
	HandleAlerts(ctx context.Context, loc Location, alerts *AlertList, att FusionAttribution)
}
