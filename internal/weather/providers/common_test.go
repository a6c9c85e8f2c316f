package providers

import "testing"

func TestNormalizeSeverity(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Extreme", "extreme"},
		{"Severe", "severe"},
		{"Tornado Warning", "severe"},
		{"Moderate", "moderate"},
		{"Flood Watch", "moderate"},
		{"Minor", "minor"},
		{"Wind Advisory", "minor"},
		{"Special Weather Statement", "minor"},
		{"", "unknown"},
		{"whatever", "unknown"},
	}
	for _, tc := range cases {
		if got := normalizeSeverity(tc.in); got != tc.want {
			t.Errorf("normalizeSeverity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCompassDir(t *testing.T) {
	cases := []struct {
		deg  float64
		want string
	}{
		{0, "N"},
		{90, "E"},
		{180, "S"},
		{270, "W"},
		{45, "NE"},
		{337.5, "NNW"},
		{359.9, "N"},
		{720, "N"}, // wraps
	}
	for _, tc := range cases {
		if got := compassDir(tc.deg); got != tc.want {
			t.Errorf("compassDir(%v) = %q, want %q", tc.deg, got, tc.want)
		}
	}
}
