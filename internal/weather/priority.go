package weather

import "strings"

// SourcePriorityConfig is the pure, stateless priority policy: it maps
// (location, field) to an ordered provider preference list and holds the
// per-field numeric conflict thresholds.
type SourcePriorityConfig struct {
	// DomesticPriority orders providers for US locations.
	DomesticPriority []string
	// InternationalPriority orders providers for everything else.
	InternationalPriority []string
	// FieldPriorities overrides the locale-based ordering for specific
	// fields. An override wins in full.
	FieldPriorities map[string][]string
	// ConflictThresholds flags numeric fields as conflict-sensitive: a
	// pairwise delta above the threshold between two providers' values is
	// reported as a Conflict.
	ConflictThresholds map[string]float64
}

// DefaultTemperatureConflictThreshold is the °F delta above which two
// providers' temperatures are flagged as conflicting.
const DefaultTemperatureConflictThreshold = 5.0

// DefaultSourcePriorityConfig returns the stock policy: NWS-led ordering for
// US locations, Open-Meteo-led for international ones, temperature as the
// only conflict-checked field.
func DefaultSourcePriorityConfig() *SourcePriorityConfig {
	return &SourcePriorityConfig{
		DomesticPriority:      []string{"nws", "weatherapi", "visualcrossing", "openmeteo"},
		InternationalPriority: []string{"openmeteo", "weatherapi", "visualcrossing", "nws"},
		FieldPriorities:       map[string][]string{},
		ConflictThresholds: map[string]float64{
			FieldTemperatureF: DefaultTemperatureConflictThreshold,
		},
	}
}

// PriorityFor returns the ordered provider preference for one field at one
// location. Providers in available that appear in no configured list are
// appended at the end in first-seen order, so an unconfigured provider is
// usable but never outranks a configured one.
func (c *SourcePriorityConfig) PriorityFor(loc Location, field string, available []string) []string {
	base := c.FieldPriorities[field]
	if base == nil {
		if IsDomestic(loc) {
			base = c.DomesticPriority
		} else {
			base = c.InternationalPriority
		}
	}

	out := make([]string, 0, len(base)+len(available))
	seen := make(map[string]bool, len(base))
	for _, id := range base {
		if !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	for _, id := range available {
		if !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	return out
}

// ThresholdFor returns the conflict threshold for a field, if the field is
// conflict-sensitive.
func (c *SourcePriorityConfig) ThresholdFor(field string) (float64, bool) {
	v, ok := c.ConflictThresholds[field]
	return v, ok
}

// US bounding boxes used when no country code is present: CONUS, Alaska,
// Hawaii.
var usBoxes = [][4]float64{
	{24.5, 49.5, -125.0, -66.9},
	{51.0, 72.0, -170.0, -129.0},
	{18.5, 22.5, -160.5, -154.5},
}

// IsDomestic classifies a location as US-domestic. An explicit country code
// decides when present; otherwise a geographic bounding-box test is used.
func IsDomestic(loc Location) bool {
	if loc.Country != "" {
		return strings.EqualFold(loc.Country, "US") || strings.EqualFold(loc.Country, "USA")
	}
	for _, b := range usBoxes {
		if loc.Lat >= b[0] && loc.Lat <= b[1] && loc.Lon >= b[2] && loc.Lon <= b[3] {
			return true
		}
	}
	return false
}
