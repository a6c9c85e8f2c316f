package config

import "testing"

func TestParseFieldPriorities(t *testing.T) {
	fp, err := parseFieldPriorities("sunrise=openmeteo|visualcrossing; humidity=weatherapi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := fp["sunrise"]; len(got) != 2 || got[0] != "openmeteo" || got[1] != "visualcrossing" {
		t.Errorf("sunrise priority = %v", got)
	}
	if got := fp["humidity"]; len(got) != 1 || got[0] != "weatherapi" {
		t.Errorf("humidity priority = %v", got)
	}

	if _, err := parseFieldPriorities("sunrise"); err == nil {
		t.Error("expected error for entry without providers")
	}
	if _, err := parseFieldPriorities("sunrise="); err == nil {
		t.Error("expected error for empty provider list")
	}
}

func TestParseThresholds(t *testing.T) {
	th, err := parseThresholds("temperature_f=5; pressure_mb=4.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if th["temperature_f"] != 5 || th["pressure_mb"] != 4.5 {
		t.Errorf("thresholds = %v", th)
	}

	if _, err := parseThresholds("temperature_f=hot"); err == nil {
		t.Error("expected error for non-numeric threshold")
	}
}

func TestParseLocations(t *testing.T) {
	locs, err := parseLocations("Seattle|47.6062|-122.3321|US; Tokyo|||JP")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locs) != 2 {
		t.Fatalf("got %d locations, want 2", len(locs))
	}
	if locs[0].Name != "Seattle" || locs[0].Lat != 47.6062 || locs[0].Country != "US" {
		t.Errorf("first location = %+v", locs[0])
	}
	// Coordinates may be omitted for geocoding at startup.
	if locs[1].Name != "Tokyo" || locs[1].Lat != 0 || locs[1].Lon != 0 {
		t.Errorf("second location = %+v", locs[1])
	}

	if _, err := parseLocations("Seattle|47.6|US"); err == nil {
		t.Error("expected error for wrong field count")
	}
	if _, err := parseLocations("|||"); err == nil {
		t.Error("expected error for entry with neither name nor coordinates")
	}
}
