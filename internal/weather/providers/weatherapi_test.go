package providers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wxfusion/wxfusion/internal/weather"
)

func TestWeatherAPIMissingKey(t *testing.T) {
	p := NewWeatherAPIProvider(http.DefaultClient, "")
	if _, err := p.FetchCurrent(context.Background(), weather.Location{Name: "Seattle"}); err == nil {
		t.Fatal("expected an error when the api key is not configured")
	}
}

func TestWeatherAPIFetchCurrent(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/current.json", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key query param = %q, want test-key", got)
		}
		if got := r.URL.Query().Get("q"); got == "" {
			t.Error("missing q query param")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"current": {
				"last_updated_epoch": 1749556800,
				"temp_c": 20.0, "temp_f": 68.0,
				"feelslike_c": 19.0, "feelslike_f": 66.2,
				"humidity": 55, "wind_mph": 8.1, "wind_dir": "WSW",
				"gust_mph": 12.3, "pressure_mb": 1015.0, "pressure_in": 29.97,
				"vis_miles": 10, "dewpoint_f": 50.2, "uv": 4,
				"condition": {"text": "Partly cloudy"}
			}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "test-key")
	p.baseURL = srv.URL

	cur, err := p.FetchCurrent(context.Background(), weather.Location{Name: "Seattle"})
	if err != nil {
		t.Fatalf("FetchCurrent: %v", err)
	}
	if cur.TempF == nil || *cur.TempF != 68.0 {
		t.Errorf("TempF = %v, want 68.0", cur.TempF)
	}
	if cur.WindDir == nil || *cur.WindDir != "WSW" {
		t.Errorf("WindDir = %v, want WSW", cur.WindDir)
	}
	if cur.Condition == nil || *cur.Condition != "Partly cloudy" {
		t.Errorf("Condition = %v, want Partly cloudy", cur.Condition)
	}
	want := time.Unix(1749556800, 0).UTC()
	if cur.ObservedAt == nil || !cur.ObservedAt.Equal(want) {
		t.Errorf("ObservedAt = %v, want %v", cur.ObservedAt, want)
	}
}

func TestWeatherAPIFetchAlerts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast.json", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("alerts"); got != "yes" {
			t.Errorf("alerts query param = %q, want yes", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"forecast": {"forecastday": []},
			"alerts": {"alert": [{
				"event": "Flood Warning",
				"headline": "Flood Warning issued for King County",
				"severity": "Severe",
				"desc": "River flooding expected.",
				"effective": "2025-06-10T08:00:00Z",
				"expires": "2025-06-11T08:00:00Z"
			}]}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "test-key")
	p.baseURL = srv.URL

	list, err := p.FetchAlerts(context.Background(), weather.Location{Lat: 47.6, Lon: -122.3})
	if err != nil {
		t.Fatalf("FetchAlerts: %v", err)
	}
	if len(list.Alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(list.Alerts))
	}
	a := list.Alerts[0]
	if a.Severity != "severe" {
		t.Errorf("Severity = %q, want severe", a.Severity)
	}
	if a.Source != "weatherapi" {
		t.Errorf("Source = %q, want weatherapi", a.Source)
	}
	if a.Onset == nil || a.Onset.UTC().Hour() != 8 {
		t.Errorf("Onset = %v, want 2025-06-10T08:00:00Z", a.Onset)
	}
}

func TestWeatherAPIFetchForecastDays(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/forecast.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"forecast": {"forecastday": [{
				"date": "2025-06-10",
				"day": {
					"maxtemp_f": 75.0, "maxtemp_c": 23.9,
					"mintemp_f": 55.0, "mintemp_c": 12.8,
					"maxwind_mph": 14.0, "daily_chance_of_rain": 30,
					"condition": {"text": "Sunny"}
				},
				"hour": []
			}]}
		}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "test-key")
	p.baseURL = srv.URL

	fc, err := p.FetchForecast(context.Background(), weather.Location{Name: "Seattle"})
	if err != nil {
		t.Fatalf("FetchForecast: %v", err)
	}
	if len(fc.Days) != 1 {
		t.Fatalf("got %d forecast days, want 1", len(fc.Days))
	}
	d := fc.Days[0]
	if d.HighF == nil || *d.HighF != 75.0 {
		t.Errorf("HighF = %v, want 75.0", d.HighF)
	}
	if d.PrecipChance == nil || *d.PrecipChance != 30 {
		t.Errorf("PrecipChance = %v, want 30", d.PrecipChance)
	}
	if !d.Date.Equal(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Date = %v, want 2025-06-10", d.Date)
	}
}
