package weather

import (
	"reflect"
	"testing"
)

func TestCountryCodeOverridesBoundingBox(t *testing.T) {
	// Coordinates well outside any US bounding box, but the explicit
	// country code decides.
	loc := Location{Name: "Pago Pago", Lat: -14.27, Lon: -170.70, Country: "US"}
	if !IsDomestic(loc) {
		t.Fatal("country_code=US must classify as domestic regardless of coordinates")
	}

	cfg := DefaultSourcePriorityConfig()
	order := cfg.PriorityFor(loc, FieldTemperatureF, nil)
	if order[0] != cfg.DomesticPriority[0] {
		t.Errorf("domestic ordering expected, got %v", order)
	}
}

func TestBoundingBoxClassification(t *testing.T) {
	cases := []struct {
		name     string
		loc      Location
		domestic bool
	}{
		{"seattle no country", Location{Lat: 47.6062, Lon: -122.3321}, true},
		{"anchorage no country", Location{Lat: 61.2181, Lon: -149.9003}, true},
		{"tokyo no country", Location{Lat: 35.6762, Lon: 139.6503}, false},
		{"london explicit", Location{Lat: 51.5072, Lon: -0.1276, Country: "GB"}, false},
	}
	for _, tc := range cases {
		if got := IsDomestic(tc.loc); got != tc.domestic {
			t.Errorf("%s: IsDomestic = %v, want %v", tc.name, got, tc.domestic)
		}
	}
}

func TestFieldOverrideWinsInFull(t *testing.T) {
	cfg := DefaultSourcePriorityConfig()
	cfg.FieldPriorities[FieldSunrise] = []string{"openmeteo", "visualcrossing"}

	// US location would normally lead with nws, but the override ignores
	// locale classification entirely.
	order := cfg.PriorityFor(testLocUS, FieldSunrise, nil)
	if order[0] != "openmeteo" || order[1] != "visualcrossing" {
		t.Errorf("field override should win in full, got %v", order)
	}

	// Other fields keep the locale ordering.
	order = cfg.PriorityFor(testLocUS, FieldTemperatureF, nil)
	if order[0] != "nws" {
		t.Errorf("non-overridden field should use domestic ordering, got %v", order)
	}
}

func TestUnconfiguredProviderAppendsLast(t *testing.T) {
	cfg := DefaultSourcePriorityConfig()
	available := []string{"newprov", "nws"}

	order := cfg.PriorityFor(testLocUS, FieldTemperatureF, available)
	if order[len(order)-1] != "newprov" {
		t.Errorf("unconfigured provider must rank last, got %v", order)
	}

	want := append(append([]string{}, cfg.DomesticPriority...), "newprov")
	if !reflect.DeepEqual(order, want) {
		t.Errorf("order = %v, want %v", order, want)
	}
}

func TestThresholdFor(t *testing.T) {
	cfg := DefaultSourcePriorityConfig()

	th, ok := cfg.ThresholdFor(FieldTemperatureF)
	if !ok || th != DefaultTemperatureConflictThreshold {
		t.Errorf("temperature_f threshold = %v,%v", th, ok)
	}
	if _, ok := cfg.ThresholdFor(FieldHumidity); ok {
		t.Error("humidity should not be conflict-sensitive by default")
	}

	// Additional fields are a configuration extension point.
	cfg.ConflictThresholds[FieldPressureMb] = 4
	if th, ok := cfg.ThresholdFor(FieldPressureMb); !ok || th != 4 {
		t.Errorf("pressure_mb threshold = %v,%v", th, ok)
	}
}
