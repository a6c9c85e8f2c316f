package config

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/wxfusion/wxfusion/internal/weather"
)

// AppConfig is the full construction-time configuration surface. Structured
// values (priority lists, field overrides, tracked locations) are parsed out
// of their raw env strings by Load.
type AppConfig struct {
	Port string `env:"PORT,default=8080"`

	// Outbound HTTP client timeout for provider calls.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT,default=10s"`

	// FetchTimeout bounds one coordinator fetch round end to end.
	FetchTimeout time.Duration `env:"FETCH_TIMEOUT,default=15s"`

	// SchedulerInterval controls how often tracked locations are refreshed.
	SchedulerInterval time.Duration `env:"FETCH_INTERVAL,default=15m"`

	// SourceMode is "auto" or a pinned provider id.
	SourceMode string `env:"SOURCE_MODE,default=auto"`

	// Per-provider enable flags and credentials.
	NWSEnabled            bool   `env:"NWS_ENABLED,default=true"`
	OpenMeteoEnabled      bool   `env:"OPENMETEO_ENABLED,default=true"`
	WeatherAPIEnabled     bool   `env:"WEATHERAPI_ENABLED,default=true"`
	WeatherAPIKey         string `env:"WEATHERAPI_API_KEY"`
	VisualCrossingEnabled bool   `env:"VISUALCROSSING_ENABLED,default=true"`
	VisualCrossingKey     string `env:"VISUALCROSSING_API_KEY"`
	GeocoderAPIKey        string `env:"GEOCODER_API_KEY"`

	// Priority policy inputs.
	DomesticPriority      []string `env:"DOMESTIC_PRIORITY"`
	InternationalPriority []string `env:"INTERNATIONAL_PRIORITY"`
	FieldPrioritiesRaw    string   `env:"FIELD_PRIORITIES"`    // "sunrise=openmeteo|visualcrossing;humidity=weatherapi"
	ConflictThresholdsRaw string   `env:"CONFLICT_THRESHOLDS"` // "temperature_f=5;pressure_mb=4"

	// Trend insight settings.
	TrendsEnabled bool          `env:"TRENDS_ENABLED,default=true"`
	TrendHorizon  time.Duration `env:"TREND_HORIZON,default=6h"`

	// Snapshot store selection and retention.
	StoreBackend    string        `env:"STORE_BACKEND,default=memory"` // memory | redis
	RedisAddr       string        `env:"REDIS_ADDR,default=localhost:6379"`
	StoreMaxHistory int           `env:"STORE_MAX_HISTORY,default=96"`
	StoreMaxAge     time.Duration `env:"STORE_MAX_AGE,default=72h"`

	// TrackedLocationsRaw lists scheduler targets:
	// "Seattle|47.6062|-122.3321|US;Tokyo|||JP". Empty lat/lon are geocoded
	// at startup when a geocoder key is configured.
	TrackedLocationsRaw string `env:"TRACKED_LOCATIONS"`

	// Parsed values, populated by Load.
	Priority  *weather.SourcePriorityConfig `env:"-"`
	Locations []weather.Location            `env:"-"`
}

// Load reads configuration from the environment (with a best-effort .env
// load first) and resolves the structured values.
func Load(ctx context.Context) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	cfg := &AppConfig{}
	if err := envconfig.Process(ctx, cfg); err != nil {
		return nil, fmt.Errorf("process config: %w", err)
	}

	priority := weather.DefaultSourcePriorityConfig()
	if len(cfg.DomesticPriority) > 0 {
		priority.DomesticPriority = cfg.DomesticPriority
	}
	if len(cfg.InternationalPriority) > 0 {
		priority.InternationalPriority = cfg.InternationalPriority
	}
	if cfg.FieldPrioritiesRaw != "" {
		fp, err := parseFieldPriorities(cfg.FieldPrioritiesRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid FIELD_PRIORITIES: %w", err)
		}
		priority.FieldPriorities = fp
	}
	if cfg.ConflictThresholdsRaw != "" {
		th, err := parseThresholds(cfg.ConflictThresholdsRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid CONFLICT_THRESHOLDS: %w", err)
		}
		for k, v := range th {
			priority.ConflictThresholds[k] = v
		}
	}
	cfg.Priority = priority

	if cfg.TrackedLocationsRaw != "" {
		locs, err := parseLocations(cfg.TrackedLocationsRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid TRACKED_LOCATIONS: %w", err)
		}
		cfg.Locations = locs
	}

	return cfg, nil
}

// parseFieldPriorities parses "field=prov1|prov2;field2=prov3".
func parseFieldPriorities(s string) (map[string][]string, error) {
	out := make(map[string][]string)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		field, list, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not field=providers", entry)
		}
		var provs []string
		for _, p := range strings.Split(list, "|") {
			if p = strings.TrimSpace(p); p != "" {
				provs = append(provs, p)
			}
		}
		if len(provs) == 0 {
			return nil, fmt.Errorf("entry %q lists no providers", entry)
		}
		out[strings.TrimSpace(field)] = provs
	}
	return out, nil
}

// parseThresholds parses "field=5;field2=4.5".
func parseThresholds(s string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		field, raw, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q is not field=threshold", entry)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		out[strings.TrimSpace(field)] = v
	}
	return out, nil
}

// parseLocations parses "Name|lat|lon|country;...". Lat/lon may be empty.
func parseLocations(s string) ([]weather.Location, error) {
	var locs []weather.Location
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) != 4 {
			return nil, fmt.Errorf("entry %q must be name|lat|lon|country", entry)
		}
		loc := weather.Location{
			Name:    strings.TrimSpace(parts[0]),
			Country: strings.TrimSpace(parts[3]),
		}
		if raw := strings.TrimSpace(parts[1]); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("entry %q: bad latitude: %w", entry, err)
			}
			loc.Lat = v
		}
		if raw := strings.TrimSpace(parts[2]); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("entry %q: bad longitude: %w", entry, err)
			}
			loc.Lon = v
		}
		if loc.Name == "" && loc.Lat == 0 && loc.Lon == 0 {
			return nil, fmt.Errorf("entry %q has neither name nor coordinates", entry)
		}
		locs = append(locs, loc)
	}
	return locs, nil
}
