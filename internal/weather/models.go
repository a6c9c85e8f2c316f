package weather

import (
	"fmt"
	"strings"
	"time"
)

// DataKind identifies one of the independently fetched weather record types.
type DataKind string

const (
	KindCurrent  DataKind = "current"
	KindForecast DataKind = "forecast"
	KindHourly   DataKind = "hourly"
	KindAlerts   DataKind = "alerts"
)

// AllKinds lists every data kind a fetch round covers, in fetch order.
var AllKinds = []DataKind{KindCurrent, KindForecast, KindHourly, KindAlerts}

// Location identifies a query target. Immutable once constructed; used both
// as fetch input and as the deduplication/cache key.
type Location struct {
	Name    string  `json:"name,omitempty"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country,omitempty"` // ISO code, optional
}

// Key returns a canonical string key for coalescing and cache indexing:
// the lowercased name when one is set, otherwise coordinates rounded to a
// stable precision.
func (l Location) Key() string {
	if l.Name != "" {
		return strings.ToLower(l.Name)
	}
	return fmt.Sprintf("%.4f,%.4f", l.Lat, l.Lon)
}

// Field names used in priority overrides, attributions and conflicts.
const (
	FieldTemperatureF = "temperature_f"
	FieldTemperatureC = "temperature_c"
	FieldFeelsLikeF   = "feels_like_f"
	FieldFeelsLikeC   = "feels_like_c"
	FieldHumidity     = "humidity"
	FieldWindMph      = "wind_mph"
	FieldWindGustMph  = "wind_gust_mph"
	FieldWindDir      = "wind_dir"
	FieldPressureMb   = "pressure_mb"
	FieldPressureInHg = "pressure_inhg"
	FieldVisibilityMi = "visibility_mi"
	FieldDewpointF    = "dewpoint_f"
	FieldUVIndex      = "uv_index"
	FieldCondition    = "condition"
	FieldSunrise      = "sunrise"
	FieldSunset       = "sunset"
	FieldObservedAt   = "observed_at"
	FieldDays         = "days"
	FieldHours        = "hours"
	FieldAlerts       = "alerts"
)

// CurrentConditions is a provider-agnostic observation record. A nil field
// means "this provider did not report it", distinct from a reported zero.
type CurrentConditions struct {
	TempF        *float64   `json:"temp_f,omitempty"`
	TempC        *float64   `json:"temp_c,omitempty"`
	FeelsLikeF   *float64   `json:"feels_like_f,omitempty"`
	FeelsLikeC   *float64   `json:"feels_like_c,omitempty"`
	Humidity     *float64   `json:"humidity,omitempty"`
	WindMph      *float64   `json:"wind_mph,omitempty"`
	WindGustMph  *float64   `json:"wind_gust_mph,omitempty"`
	WindDir      *string    `json:"wind_dir,omitempty"`
	PressureMb   *float64   `json:"pressure_mb,omitempty"`
	PressureInHg *float64   `json:"pressure_inhg,omitempty"`
	VisibilityMi *float64   `json:"visibility_mi,omitempty"`
	DewpointF    *float64   `json:"dewpoint_f,omitempty"`
	UVIndex      *float64   `json:"uv_index,omitempty"`
	Condition    *string    `json:"condition,omitempty"`
	Sunrise      *time.Time `json:"sunrise,omitempty"`
	Sunset       *time.Time `json:"sunset,omitempty"`
	ObservedAt   *time.Time `json:"observed_at,omitempty"`
}

// ForecastDay is one day of a daily forecast.
type ForecastDay struct {
	Date         time.Time `json:"date"`
	HighF        *float64  `json:"high_f,omitempty"`
	HighC        *float64  `json:"high_c,omitempty"`
	LowF         *float64  `json:"low_f,omitempty"`
	LowC         *float64  `json:"low_c,omitempty"`
	Condition    *string   `json:"condition,omitempty"`
	PrecipChance *float64  `json:"precip_chance,omitempty"`
	WindMph      *float64  `json:"wind_mph,omitempty"`
}

// Forecast is an ordered multi-day forecast. Fused as the series-valued
// field "days".
type Forecast struct {
	Days []ForecastDay `json:"days"`
}

// HourlyPoint is one hour of an hourly forecast series.
type HourlyPoint struct {
	Time         time.Time `json:"time"`
	TempF        *float64  `json:"temp_f,omitempty"`
	TempC        *float64  `json:"temp_c,omitempty"`
	PrecipChance *float64  `json:"precip_chance,omitempty"`
	WindMph      *float64  `json:"wind_mph,omitempty"`
	PressureMb   *float64  `json:"pressure_mb,omitempty"`
	Humidity     *float64  `json:"humidity,omitempty"`
	Condition    *string   `json:"condition,omitempty"`
}

// HourlyForecast is an ordered hourly series. Fused as the field "hours".
type HourlyForecast struct {
	Hours []HourlyPoint `json:"hours"`
}

// Alert is one weather alert as reported by a provider.
type Alert struct {
	Event       string     `json:"event"`
	Headline    string     `json:"headline,omitempty"`
	Description string     `json:"description,omitempty"`
	Severity    string     `json:"severity,omitempty"`
	Onset       *time.Time `json:"onset,omitempty"`
	Expires     *time.Time `json:"expires,omitempty"`
	Source      string     `json:"source,omitempty"`
}

// AlertList holds the alerts one provider reported, or the fused union.
type AlertList struct {
	Alerts []Alert `json:"alerts"`
}

// SourceResult is one provider's outcome for one data kind. Exactly one
// payload pointer is set on success, matching Kind. Created once per fetch
// attempt and never mutated.
type SourceResult struct {
	Source string
	Kind   DataKind
	Err    error

	Current  *CurrentConditions
	Forecast *Forecast
	Hourly   *HourlyForecast
	Alerts   *AlertList
}

// OK reports whether the fetch attempt succeeded.
func (r SourceResult) OK() bool { return r.Err == nil }

// Conflict records a numeric disagreement between providers on one field.
// Conflicts are informational only; they never change field selection.
type Conflict struct {
	Field          string             `json:"field"`
	Values         map[string]float64 `json:"values"`
	SelectedSource string             `json:"selected_source"`
	SelectedValue  float64            `json:"selected_value"`
	Reason         string             `json:"reason"`
}

// FusionAttribution is the provenance record of one fusion pass.
type FusionAttribution struct {
	ContributingSources []string          `json:"contributing_sources,omitempty"`
	FailedSources       []string          `json:"failed_sources,omitempty"`
	FieldSources        map[string]string `json:"field_sources,omitempty"`
	Conflicts           []Conflict        `json:"conflicts,omitempty"`
}

// TrendInsight is a derived short-horizon directional summary.
type TrendInsight struct {
	Metric    string `json:"metric"`
	Direction string `json:"direction"`
	Unit      string `json:"unit"`
	Summary   string `json:"summary"`
	Glyphs    string `json:"glyphs"`
}

// DailySummary is one day of stored history, derived from prior snapshots.
type DailySummary struct {
	Date      time.Time `json:"date"`
	HighF     *float64  `json:"high_f,omitempty"`
	LowF      *float64  `json:"low_f,omitempty"`
	Condition *string   `json:"condition,omitempty"`
}

// WeatherSnapshot is the final assembled artifact for a location.
// Constructed fresh per successful coordinator run, immutable once
// returned, superseded (not mutated) by the next successful run.
type WeatherSnapshot struct {
	Location  Location  `json:"location"`
	FetchedAt time.Time `json:"fetched_at"` // always UTC
	RunID     string    `json:"run_id,omitempty"`

	Current  *CurrentConditions `json:"current,omitempty"`
	Forecast *Forecast          `json:"forecast,omitempty"`
	Hourly   *HourlyForecast    `json:"hourly,omitempty"`
	Alerts   *AlertList         `json:"alerts,omitempty"`

	Discussion       string `json:"discussion,omitempty"`
	DiscussionSource string `json:"discussion_source,omitempty"`

	Trends  []TrendInsight `json:"trends,omitempty"`
	History []DailySummary `json:"history,omitempty"`

	Attributions map[DataKind]FusionAttribution `json:"attributions,omitempty"`

	// StaleKinds lists data kinds served from the offline cache after every
	// provider failed for that kind.
	StaleKinds []DataKind `json:"stale_kinds,omitempty"`
}
