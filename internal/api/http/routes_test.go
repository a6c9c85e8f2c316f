package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/wxfusion/wxfusion/internal/store"
	"github.com/wxfusion/wxfusion/internal/weather"
)

func newTestApp(snaps weather.SnapshotStore) *fiber.App {
	app := fiber.New()
	coord := weather.NewCoordinator(snaps, nil, nil, weather.CoordinatorOptions{}, nil, nil)
	RegisterRoutes(app, coord, snaps)
	return app
}

func doGet(t *testing.T, app *fiber.App, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("request %s: %v", target, err)
	}
	return resp
}

// TestLocationQueryValidation verifies that the weather endpoints enforce the
// name-or-coordinates contract on their query parameters.
func TestLocationQueryValidation(t *testing.T) {
	app := newTestApp(store.NewMemoryStore(10, time.Hour))

	cases := []struct {
		target string
		want   int
	}{
		{"/api/v1/weather", http.StatusBadRequest},                          // no identifier at all
		{"/api/v1/weather?lat=47.6", http.StatusBadRequest},                 // lat without lon
		{"/api/v1/weather?lat=abc&lon=1", http.StatusBadRequest},            // non-numeric lat
		{"/api/v1/weather?name=Seattle&country=U5", http.StatusBadRequest},  // non-alpha country
		{"/api/v1/weather/cached?lon=-122.3", http.StatusBadRequest},        // lon without lat or name
		{"/api/v1/weather/history?name=Seattle", http.StatusBadRequest},     // missing from/to
		{"/api/v1/weather/history?name=Seattle&from=bogus&to=2025-06-10T00:00:00Z", http.StatusBadRequest},
	}

	for _, tc := range cases {
		resp := doGet(t, app, tc.target)
		if resp.StatusCode != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.target, resp.StatusCode, tc.want)
		}
	}
}

// TestWeatherNoSources verifies that a round with no data and no cache maps
// to 502 rather than a generic server error.
func TestWeatherNoSources(t *testing.T) {
	app := newTestApp(store.NewMemoryStore(10, time.Hour))

	resp := doGet(t, app, "/api/v1/weather?name=Seattle")
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, resp.StatusCode)
	}
}

func TestCachedSnapshotLookup(t *testing.T) {
	memStore := store.NewMemoryStore(10, time.Hour)
	app := newTestApp(memStore)

	resp := doGet(t, app, "/api/v1/weather/cached?name=Seattle")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty cache: expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}

	loc := weather.Location{Name: "Seattle"}
	memStore.Put(context.Background(), loc.Key(), &weather.WeatherSnapshot{Location: loc})

	resp = doGet(t, app, "/api/v1/weather/cached?name=Seattle")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cached snapshot: expected status %d, got %d", http.StatusOK, resp.StatusCode)
	}
}

func TestHistoryRangeValidation(t *testing.T) {
	app := newTestApp(store.NewMemoryStore(10, time.Hour))

	// to earlier than from fails validation.
	resp := doGet(t, app, "/api/v1/weather/history?name=Seattle&from=2025-06-10T00:00:00Z&to=2025-06-09T00:00:00Z")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("inverted range: expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}

	// Valid range over an empty store is a 404, not a 400.
	resp = doGet(t, app, "/api/v1/weather/history?name=Seattle&from=2025-06-09T00:00:00Z&to=2025-06-10T00:00:00Z")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty history: expected status %d, got %d", http.StatusNotFound, resp.StatusCode)
	}
}
