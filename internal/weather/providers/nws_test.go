package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/wxfusion/wxfusion/internal/weather"
)

// newNWSTestServer serves the points lookup plus hourly and daily forecast
// endpoints and counts points lookups to verify grid memoization.
func newNWSTestServer(t *testing.T, pointsCalls *int32) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc("/points/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(pointsCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"properties": {
			"forecast": "%s/gridpoints/SEW/124,67/forecast",
			"forecastHourly": "%s/gridpoints/SEW/124,67/forecast/hourly",
			"gridId": "SEW"
		}}`, srv.URL, srv.URL)
	})

	mux.HandleFunc("/gridpoints/SEW/124,67/forecast/hourly", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"properties": {"periods": [{
			"startTime": "2025-06-10T12:00:00-07:00",
			"isDaytime": true,
			"temperature": 15,
			"temperatureUnit": "C",
			"windSpeed": "10 mph",
			"windDirection": "SW",
			"shortForecast": "Mostly Sunny",
			"relativeHumidity": {"value": 62}
		}]}}`))
	})

	mux.HandleFunc("/gridpoints/SEW/124,67/forecast", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"properties": {"periods": [
			{
				"startTime": "2025-06-10T06:00:00-07:00",
				"isDaytime": true,
				"temperature": 70,
				"temperatureUnit": "F",
				"windSpeed": "5 to 10 mph",
				"shortForecast": "Sunny",
				"probabilityOfPrecipitation": {"value": 10}
			},
			{
				"startTime": "2025-06-10T18:00:00-07:00",
				"isDaytime": false,
				"temperature": 55,
				"temperatureUnit": "F",
				"windSpeed": "5 mph",
				"shortForecast": "Clear"
			}
		]}}`))
	})

	srv = httptest.NewServer(mux)
	return srv
}

func TestNWSFetchCurrent(t *testing.T) {
	var pointsCalls int32
	srv := newNWSTestServer(t, &pointsCalls)
	defer srv.Close()

	p := NewNWSProvider(srv.Client())
	p.baseURL = srv.URL

	loc := weather.Location{Lat: 47.6062, Lon: -122.3321}
	cur, err := p.FetchCurrent(context.Background(), loc)
	if err != nil {
		t.Fatalf("FetchCurrent: %v", err)
	}

	// Celsius periods convert to Fahrenheit.
	if cur.TempF == nil || *cur.TempF != weather.CToF(15) {
		t.Errorf("TempF = %v, want %v", cur.TempF, weather.CToF(15))
	}
	if cur.WindMph == nil || *cur.WindMph != 10 {
		t.Errorf("WindMph = %v, want 10", cur.WindMph)
	}
	if cur.Humidity == nil || *cur.Humidity != 62 {
		t.Errorf("Humidity = %v, want 62", cur.Humidity)
	}
	if cur.Condition == nil || *cur.Condition != "Mostly Sunny" {
		t.Errorf("Condition = %v, want Mostly Sunny", cur.Condition)
	}
}

func TestNWSGridMemoization(t *testing.T) {
	var pointsCalls int32
	srv := newNWSTestServer(t, &pointsCalls)
	defer srv.Close()

	p := NewNWSProvider(srv.Client())
	p.baseURL = srv.URL

	loc := weather.Location{Lat: 47.6062, Lon: -122.3321}
	ctx := context.Background()
	if _, err := p.FetchCurrent(ctx, loc); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if _, err := p.FetchHourly(ctx, loc); err != nil {
		t.Fatalf("second fetch: %v", err)
	}

	if got := atomic.LoadInt32(&pointsCalls); got != 1 {
		t.Errorf("points lookups = %d, want 1 (grid must be memoized per key)", got)
	}
}

func TestNWSForecastPairsDayAndNight(t *testing.T) {
	var pointsCalls int32
	srv := newNWSTestServer(t, &pointsCalls)
	defer srv.Close()

	p := NewNWSProvider(srv.Client())
	p.baseURL = srv.URL

	fc, err := p.FetchForecast(context.Background(), weather.Location{Lat: 47.6062, Lon: -122.3321})
	if err != nil {
		t.Fatalf("FetchForecast: %v", err)
	}
	// 06:00-07:00 and 18:00-07:00 land on different UTC dates (13:00Z and
	// 01:00Z next day), so two days come back; the first holds the high.
	if len(fc.Days) != 2 {
		t.Fatalf("got %d forecast days, want 2", len(fc.Days))
	}
	d := fc.Days[0]
	if d.HighF == nil || *d.HighF != 70 {
		t.Errorf("HighF = %v, want 70", d.HighF)
	}
	if d.Condition == nil || *d.Condition != "Sunny" {
		t.Errorf("Condition = %v, want Sunny", d.Condition)
	}
	if d.PrecipChance == nil || *d.PrecipChance != 10 {
		t.Errorf("PrecipChance = %v, want 10", d.PrecipChance)
	}
	if fc.Days[1].LowF == nil || *fc.Days[1].LowF != 55 {
		t.Errorf("LowF = %v, want 55", fc.Days[1].LowF)
	}
}

func TestNWSFetchAlerts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alerts/active" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("point"); got != "47.6062,-122.3321" {
			t.Errorf("point query param = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"features": [{"properties": {
			"event": "Wind Advisory",
			"headline": "Wind Advisory until 10 PM",
			"description": "Gusts up to 45 mph expected.",
			"severity": "Minor",
			"onset": "2025-06-10T14:00:00Z",
			"expires": "2025-06-11T05:00:00Z"
		}}]}`))
	}))
	defer srv.Close()

	p := NewNWSProvider(srv.Client())
	p.baseURL = srv.URL

	list, err := p.FetchAlerts(context.Background(), weather.Location{Lat: 47.6062, Lon: -122.3321})
	if err != nil {
		t.Fatalf("FetchAlerts: %v", err)
	}
	if len(list.Alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(list.Alerts))
	}
	a := list.Alerts[0]
	if a.Severity != "minor" {
		t.Errorf("Severity = %q, want minor", a.Severity)
	}
	if a.Source != "nws" {
		t.Errorf("Source = %q, want nws", a.Source)
	}
	if a.Expires == nil || a.Expires.Day() != 11 {
		t.Errorf("Expires = %v, want 2025-06-11T05:00:00Z", a.Expires)
	}
}

func TestParseWindSpeed(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"10 mph", 10, true},
		{"5 to 15 mph", 5, true},
		{"", 0, false},
		{"calm", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseWindSpeed(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("parseWindSpeed(%q) = (%v, %v), want (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
