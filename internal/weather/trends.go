package weather

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Trend directions for continuous series and day-over-day comparisons.
const (
	TrendRising  = "rising"
	TrendFalling = "falling"
	TrendSteady  = "steady"
	TrendWarmer  = "warmer"
	TrendCooler  = "cooler"
	TrendSimilar = "similar"
)

// Classification thresholds. The minor threshold separates steady from a
// direction; the major one upgrades the glyph.
const (
	tempMinorDeltaF   = 2.0
	tempMajorDeltaF   = 6.0
	pressureMinorMb   = 1.0
	pressureMajorMb   = 3.0
	dayOverDayDeltaF  = 3.0
	defaultTrendHours = 6
)

// TrendDeriver computes short-horizon directional trends from fused data.
// Insights are best-effort annotations: missing inputs yield no insight,
// never an error.
type TrendDeriver struct {
	horizon time.Duration
	now     func() time.Time
}

// NewTrendDeriver creates a deriver with the given look-ahead horizon.
// A non-positive horizon falls back to the default.
func NewTrendDeriver(horizon time.Duration) *TrendDeriver {
	if horizon <= 0 {
		horizon = defaultTrendHours * time.Hour
	}
	return &TrendDeriver{horizon: horizon, now: time.Now}
}

// Derive computes zero or more insights from the fused current conditions,
// hourly series, today's forecast and stored daily history.
func (d *TrendDeriver) Derive(cur *CurrentConditions, hourly *HourlyForecast, fc *Forecast, history []DailySummary) []TrendInsight {
	var out []TrendInsight
	if t := d.seriesTrend(cur, hourly, seriesSpec{
		metric: "temperature",
		unit:   "°F",
		minor:  tempMinorDeltaF,
		major:  tempMajorDeltaF,
		curVal: func(c *CurrentConditions) *float64 { return c.TempF },
		ptVal:  func(p HourlyPoint) *float64 { return p.TempF },
	}); t != nil {
		out = append(out, *t)
	}
	if t := d.seriesTrend(cur, hourly, seriesSpec{
		metric: "pressure",
		unit:   "mb",
		minor:  pressureMinorMb,
		major:  pressureMajorMb,
		curVal: func(c *CurrentConditions) *float64 { return c.PressureMb },
		ptVal:  func(p HourlyPoint) *float64 { return p.PressureMb },
	}); t != nil {
		out = append(out, *t)
	}
	if t := d.dayOverDay(fc, history); t != nil {
		out = append(out, *t)
	}
	return out
}

type seriesSpec struct {
	metric string
	unit   string
	minor  float64
	major  float64
	curVal func(*CurrentConditions) *float64
	ptVal  func(HourlyPoint) *float64
}

// seriesTrend compares the current value against the hourly point nearest
// the look-ahead horizon.
func (d *TrendDeriver) seriesTrend(cur *CurrentConditions, hourly *HourlyForecast, spec seriesSpec) *TrendInsight {
	if cur == nil || hourly == nil || len(hourly.Hours) == 0 {
		return nil
	}
	now := spec.curVal(cur)
	if now == nil {
		return nil
	}

	target := d.now().Add(d.horizon)
	pt := nearestPoint(hourly.Hours, target)
	future := spec.ptVal(pt)
	if future == nil {
		return nil
	}

	delta := *future - *now
	hours := int(d.horizon.Hours())

	switch {
	case math.Abs(delta) < spec.minor:
		return &TrendInsight{
			Metric:    spec.metric,
			Direction: TrendSteady,
			Unit:      spec.unit,
			Summary:   fmt.Sprintf("%s holding steady near %.0f%s over the next %dh", title(spec.metric), *now, spec.unit, hours),
			Glyphs:    "→",
		}
	case delta > 0:
		g := "↗"
		if delta >= spec.major {
			g = "↗↗"
		}
		return &TrendInsight{
			Metric:    spec.metric,
			Direction: TrendRising,
			Unit:      spec.unit,
			Summary:   fmt.Sprintf("%s rising from %.0f%s to %.0f%s over the next %dh", title(spec.metric), *now, spec.unit, *future, spec.unit, hours),
			Glyphs:    g,
		}
	default:
		g := "↘"
		if -delta >= spec.major {
			g = "↘↘"
		}
		return &TrendInsight{
			Metric:    spec.metric,
			Direction: TrendFalling,
			Unit:      spec.unit,
			Summary:   fmt.Sprintf("%s falling from %.0f%s to %.0f%s over the next %dh", title(spec.metric), *now, spec.unit, *future, spec.unit, hours),
			Glyphs:    g,
		}
	}
}

// dayOverDay compares today's forecast high with yesterday's from history.
// Missing either side yields no insight.
func (d *TrendDeriver) dayOverDay(fc *Forecast, history []DailySummary) *TrendInsight {
	if fc == nil || len(fc.Days) == 0 {
		return nil
	}
	today := dateOf(d.now().UTC())

	var todayHigh *float64
	for _, day := range fc.Days {
		if dateOf(day.Date) == today && day.HighF != nil {
			todayHigh = day.HighF
			break
		}
	}
	if todayHigh == nil {
		return nil
	}

	yesterday := dateOf(d.now().UTC().AddDate(0, 0, -1))
	var prevHigh *float64
	for _, h := range history {
		if dateOf(h.Date) == yesterday && h.HighF != nil {
			prevHigh = h.HighF
			break
		}
	}
	if prevHigh == nil {
		return nil
	}

	delta := *todayHigh - *prevHigh
	switch {
	case math.Abs(delta) < dayOverDayDeltaF:
		return &TrendInsight{
			Metric:    "day_over_day_temperature",
			Direction: TrendSimilar,
			Unit:      "°F",
			Summary:   fmt.Sprintf("About the same as yesterday (high near %.0f°F)", *todayHigh),
			Glyphs:    "≈",
		}
	case delta > 0:
		return &TrendInsight{
			Metric:    "day_over_day_temperature",
			Direction: TrendWarmer,
			Unit:      "°F",
			Summary:   fmt.Sprintf("Warmer than yesterday: high %.0f°F vs %.0f°F", *todayHigh, *prevHigh),
			Glyphs:    "▲",
		}
	default:
		return &TrendInsight{
			Metric:    "day_over_day_temperature",
			Direction: TrendCooler,
			Unit:      "°F",
			Summary:   fmt.Sprintf("Cooler than yesterday: high %.0f°F vs %.0f°F", *todayHigh, *prevHigh),
			Glyphs:    "▼",
		}
	}
}

func nearestPoint(hours []HourlyPoint, target time.Time) HourlyPoint {
	best := hours[0]
	bestDiff := absDuration(hours[0].Time.Sub(target))
	for _, h := range hours[1:] {
		if d := absDuration(h.Time.Sub(target)); d < bestDiff {
			best, bestDiff = h, d
		}
	}
	return best
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func dateOf(t time.Time) string { return t.UTC().Format("2006-01-02") }

func title(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

// dailySummaries condenses stored snapshots into one summary per calendar
// day, preferring the day's own forecast high/low and falling back to
// observed temperatures.
func dailySummaries(snaps []*WeatherSnapshot) []DailySummary {
	type agg struct {
		high, low *float64
		cond      *string
		date      time.Time
	}
	days := make(map[string]*agg)

	for _, s := range snaps {
		if s == nil {
			continue
		}
		key := dateOf(s.FetchedAt)
		a := days[key]
		if a == nil {
			a = &agg{date: s.FetchedAt.UTC().Truncate(24 * time.Hour)}
			days[key] = a
		}

		if s.Forecast != nil && len(s.Forecast.Days) > 0 && dateOf(s.Forecast.Days[0].Date) == key {
			d := s.Forecast.Days[0]
			if d.HighF != nil && (a.high == nil || *d.HighF > *a.high) {
				a.high = d.HighF
			}
			if d.LowF != nil && (a.low == nil || *d.LowF < *a.low) {
				a.low = d.LowF
			}
			if d.Condition != nil {
				a.cond = d.Condition
			}
		}
		if s.Current != nil && s.Current.TempF != nil {
			t := s.Current.TempF
			if a.high == nil || *t > *a.high {
				a.high = t
			}
			if a.low == nil || *t < *a.low {
				a.low = t
			}
			if a.cond == nil && s.Current.Condition != nil {
				a.cond = s.Current.Condition
			}
		}
	}

	out := make([]DailySummary, 0, len(days))
	for _, a := range days {
		out = append(out, DailySummary{Date: a.date, HighF: a.high, LowF: a.low, Condition: a.cond})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
