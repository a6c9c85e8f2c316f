package weather

import (
	"math"
	"sort"
	"strings"
	"time"
)

// conflictReason is the only reason fusion ever records: disagreement is
// surfaced, never arbitrated beyond priority order.
const conflictReason = "priority resolution"

// Fuser merges per-provider partial results of one data kind into a single
// record, field by field, honoring the priority policy and recording
// provenance and conflicts. It is stateless and safe for concurrent use.
type Fuser struct {
	cfg *SourcePriorityConfig
}

// NewFuser creates a Fuser. A nil config falls back to the default policy.
func NewFuser(cfg *SourcePriorityConfig) *Fuser {
	if cfg == nil {
		cfg = DefaultSourcePriorityConfig()
	}
	return &Fuser{cfg: cfg}
}

// field accessor tables for CurrentConditions. Fusion walks these in fixed
// order so repeated runs over the same inputs are identical.
type floatField struct {
	name string
	get  func(*CurrentConditions) *float64
	set  func(*CurrentConditions, float64)
}

type stringField struct {
	name string
	get  func(*CurrentConditions) *string
	set  func(*CurrentConditions, string)
}

type timeField struct {
	name string
	get  func(*CurrentConditions) *time.Time
	set  func(*CurrentConditions, time.Time)
}

var currentFloatFields = []floatField{
	{FieldTemperatureF, func(c *CurrentConditions) *float64 { return c.TempF }, func(c *CurrentConditions, v float64) { c.TempF = &v }},
	{FieldTemperatureC, func(c *CurrentConditions) *float64 { return c.TempC }, func(c *CurrentConditions, v float64) { c.TempC = &v }},
	{FieldFeelsLikeF, func(c *CurrentConditions) *float64 { return c.FeelsLikeF }, func(c *CurrentConditions, v float64) { c.FeelsLikeF = &v }},
	{FieldFeelsLikeC, func(c *CurrentConditions) *float64 { return c.FeelsLikeC }, func(c *CurrentConditions, v float64) { c.FeelsLikeC = &v }},
	{FieldHumidity, func(c *CurrentConditions) *float64 { return c.Humidity }, func(c *CurrentConditions, v float64) { c.Humidity = &v }},
	{FieldWindMph, func(c *CurrentConditions) *float64 { return c.WindMph }, func(c *CurrentConditions, v float64) { c.WindMph = &v }},
	{FieldWindGustMph, func(c *CurrentConditions) *float64 { return c.WindGustMph }, func(c *CurrentConditions, v float64) { c.WindGustMph = &v }},
	{FieldPressureMb, func(c *CurrentConditions) *float64 { return c.PressureMb }, func(c *CurrentConditions, v float64) { c.PressureMb = &v }},
	{FieldPressureInHg, func(c *CurrentConditions) *float64 { return c.PressureInHg }, func(c *CurrentConditions, v float64) { c.PressureInHg = &v }},
	{FieldVisibilityMi, func(c *CurrentConditions) *float64 { return c.VisibilityMi }, func(c *CurrentConditions, v float64) { c.VisibilityMi = &v }},
	{FieldDewpointF, func(c *CurrentConditions) *float64 { return c.DewpointF }, func(c *CurrentConditions, v float64) { c.DewpointF = &v }},
	{FieldUVIndex, func(c *CurrentConditions) *float64 { return c.UVIndex }, func(c *CurrentConditions, v float64) { c.UVIndex = &v }},
}

var currentStringFields = []stringField{
	{FieldWindDir, func(c *CurrentConditions) *string { return c.WindDir }, func(c *CurrentConditions, v string) { c.WindDir = &v }},
	{FieldCondition, func(c *CurrentConditions) *string { return c.Condition }, func(c *CurrentConditions, v string) { c.Condition = &v }},
}

var currentTimeFields = []timeField{
	{FieldSunrise, func(c *CurrentConditions) *time.Time { return c.Sunrise }, func(c *CurrentConditions, v time.Time) { c.Sunrise = &v }},
	{FieldSunset, func(c *CurrentConditions) *time.Time { return c.Sunset }, func(c *CurrentConditions, v time.Time) { c.Sunset = &v }},
	{FieldObservedAt, func(c *CurrentConditions) *time.Time { return c.ObservedAt }, func(c *CurrentConditions, v time.Time) { c.ObservedAt = &v }},
}

// MergeCurrent fuses successful current-condition results into one record.
// Priority is about preference, not exclusivity: a top-ranked provider loses
// an individual field when its value for that field is nil.
func (f *Fuser) MergeCurrent(loc Location, results []SourceResult) (*CurrentConditions, FusionAttribution) {
	ok, att := splitResults(results)

	// A success-tagged result may still carry no record; it contributes
	// nothing, and the field accessors must never see a nil payload.
	n := 0
	for _, r := range ok {
		if r.Current != nil {
			ok[n] = r
			n++
		}
	}
	ok = ok[:n]
	if len(ok) == 0 {
		return nil, att
	}

	merged := &CurrentConditions{}
	contributed := make(map[string]bool)

	for _, fd := range currentFloatFields {
		ranked := f.rank(loc, fd.name, ok)
		var selSrc string
		var selVal *float64
		for _, r := range ranked {
			if v := fd.get(r.Current); v != nil {
				selSrc, selVal = r.Source, v
				break
			}
		}
		if selVal == nil {
			continue
		}
		fd.set(merged, *selVal)
		att.FieldSources[fd.name] = selSrc
		contributed[selSrc] = true

		if th, sensitive := f.cfg.ThresholdFor(fd.name); sensitive {
			if conf, found := detectConflict(fd, ok, selSrc, *selVal, th); found {
				att.Conflicts = append(att.Conflicts, conf)
			}
		}
	}

	for _, fd := range currentStringFields {
		for _, r := range f.rank(loc, fd.name, ok) {
			if v := fd.get(r.Current); v != nil {
				fd.set(merged, *v)
				att.FieldSources[fd.name] = r.Source
				contributed[r.Source] = true
				break
			}
		}
	}

	for _, fd := range currentTimeFields {
		for _, r := range f.rank(loc, fd.name, ok) {
			if v := fd.get(r.Current); v != nil {
				fd.set(merged, *v)
				att.FieldSources[fd.name] = r.Source
				contributed[r.Source] = true
				break
			}
		}
	}

	att.ContributingSources = sortedKeys(contributed)
	return merged, att
}

// MergeForecast fuses daily forecasts. The forecast is series-valued, so the
// highest-priority provider with a non-empty series wins the whole field.
func (f *Fuser) MergeForecast(loc Location, results []SourceResult) (*Forecast, FusionAttribution) {
	ok, att := splitResults(results)
	for _, r := range f.rank(loc, FieldDays, ok) {
		if r.Forecast != nil && len(r.Forecast.Days) > 0 {
			att.FieldSources[FieldDays] = r.Source
			att.ContributingSources = []string{r.Source}
			return r.Forecast, att
		}
	}
	return nil, att
}

// MergeHourly fuses hourly series the same way MergeForecast fuses days.
func (f *Fuser) MergeHourly(loc Location, results []SourceResult) (*HourlyForecast, FusionAttribution) {
	ok, att := splitResults(results)
	for _, r := range f.rank(loc, FieldHours, ok) {
		if r.Hourly != nil && len(r.Hourly.Hours) > 0 {
			att.FieldSources[FieldHours] = r.Source
			att.ContributingSources = []string{r.Source}
			return r.Hourly, att
		}
	}
	return nil, att
}

// MergeAlerts fuses alert lists into a content-deduplicated union, walking
// providers in priority order so the higher-ranked wording of a duplicate
// alert is the one kept.
func (f *Fuser) MergeAlerts(loc Location, results []SourceResult) (*AlertList, FusionAttribution) {
	ok, att := splitResults(results)
	if len(ok) == 0 {
		return nil, att
	}

	merged := &AlertList{}
	seen := make(map[string]bool)
	contributed := make(map[string]bool)

	for _, r := range f.rank(loc, FieldAlerts, ok) {
		if r.Alerts == nil {
			continue
		}
		for _, a := range r.Alerts.Alerts {
			k := alertKey(a)
			if seen[k] {
				continue
			}
			seen[k] = true
			if a.Source == "" {
				a.Source = r.Source
			}
			merged.Alerts = append(merged.Alerts, a)
		}
		// An empty but successful list still counts as a contribution so
		// "no active alerts" is distinguishable from "nobody answered".
		contributed[r.Source] = true
	}

	att.ContributingSources = sortedKeys(contributed)
	if len(merged.Alerts) > 0 {
		att.FieldSources[FieldAlerts] = merged.Alerts[0].Source
	}
	return merged, att
}

// rank orders successful results by the policy's preference for one field.
func (f *Fuser) rank(loc Location, field string, ok []SourceResult) []SourceResult {
	names := make([]string, 0, len(ok))
	byName := make(map[string]SourceResult, len(ok))
	for _, r := range ok {
		names = append(names, r.Source)
		byName[r.Source] = r
	}
	order := f.cfg.PriorityFor(loc, field, names)

	out := make([]SourceResult, 0, len(ok))
	for _, id := range order {
		if r, present := byName[id]; present {
			out = append(out, r)
		}
	}
	return out
}

// splitResults discards failed results up front and seeds an attribution
// holding the failures.
func splitResults(results []SourceResult) ([]SourceResult, FusionAttribution) {
	att := FusionAttribution{FieldSources: make(map[string]string)}
	var ok []SourceResult
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r)
		} else {
			att.FailedSources = append(att.FailedSources, r.Source)
		}
	}
	sort.Strings(att.FailedSources)
	return ok, att
}

// detectConflict compares the selected value against every other successful
// provider's value for the same field. At least two reporting sources are
// required; exact agreement never conflicts.
func detectConflict(fd floatField, ok []SourceResult, selSrc string, selVal, threshold float64) (Conflict, bool) {
	values := make(map[string]float64)
	for _, r := range ok {
		if v := fd.get(r.Current); v != nil {
			values[r.Source] = *v
		}
	}
	if len(values) < 2 {
		return Conflict{}, false
	}

	conflicting := false
	for src, v := range values {
		if src == selSrc {
			continue
		}
		if math.Abs(v-selVal) > threshold {
			conflicting = true
			break
		}
	}
	if !conflicting {
		return Conflict{}, false
	}
	return Conflict{
		Field:          fd.name,
		Values:         values,
		SelectedSource: selSrc,
		SelectedValue:  selVal,
		Reason:         conflictReason,
	}, true
}

func alertKey(a Alert) string {
	return strings.ToLower(strings.TrimSpace(a.Event)) + "|" + strings.ToLower(strings.TrimSpace(a.Headline))
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
