package providers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wxfusion/wxfusion/internal/weather"
)

// nwsGrid caches the per-location gridpoint lookup the NWS API requires
// before any forecast call.
type nwsGrid struct {
	forecastURL string
	hourlyURL   string
	office      string
}

// NWSProvider fetches from the US National Weather Service API. No API key;
// it is the only source with a forecaster discussion feed.
type NWSProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker

	mu    sync.Mutex
	grids map[string]nwsGrid
}

func NewNWSProvider(client *http.Client) *NWSProvider {
	return &NWSProvider{
		name:    "nws",
		baseURL: "https://api.weather.gov",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("nws"),
		grids:   make(map[string]nwsGrid),
	}
}

func (p *NWSProvider) Name() string {
	return p.name
}

// grid resolves and memoizes the gridpoint endpoints for a location.
func (p *NWSProvider) grid(ctx context.Context, loc weather.Location) (nwsGrid, error) {
	key := loc.Key()

	p.mu.Lock()
	g, ok := p.grids[key]
	p.mu.Unlock()
	if ok {
		return g, nil
	}

	u := fmt.Sprintf("%s/points/%.4f,%.4f", p.baseURL, loc.Lat, loc.Lon)
	var payload struct {
		Properties struct {
			Forecast       string `json:"forecast"`
			ForecastHourly string `json:"forecastHourly"`
			GridID         string `json:"gridId"`
		} `json:"properties"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nwsGrid{}, fmt.Errorf("nws points lookup: %w", err)
	}

	g = nwsGrid{
		forecastURL: payload.Properties.Forecast,
		hourlyURL:   payload.Properties.ForecastHourly,
		office:      payload.Properties.GridID,
	}
	p.mu.Lock()
	p.grids[key] = g
	p.mu.Unlock()
	return g, nil
}

type nwsPeriod struct {
	StartTime        string  `json:"startTime"`
	IsDaytime        bool    `json:"isDaytime"`
	Temperature      float64 `json:"temperature"`
	TemperatureUnit  string  `json:"temperatureUnit"`
	WindSpeed        string  `json:"windSpeed"`
	WindDirection    string  `json:"windDirection"`
	ShortForecast    string  `json:"shortForecast"`
	RelativeHumidity struct {
		Value *float64 `json:"value"`
	} `json:"relativeHumidity"`
	ProbabilityOfPrecipitation struct {
		Value *float64 `json:"value"`
	} `json:"probabilityOfPrecipitation"`
}

type nwsForecastResponse struct {
	Properties struct {
		Periods []nwsPeriod `json:"periods"`
	} `json:"properties"`
}

func (p *NWSProvider) FetchCurrent(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	g, err := p.grid(ctx, loc)
	if err != nil {
		return nil, err
	}

	var payload nwsForecastResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, g.hourlyURL, nil, &payload); err != nil {
		return nil, err
	}
	if len(payload.Properties.Periods) == 0 {
		return nil, fmt.Errorf("nws hourly forecast returned no periods")
	}

	pd := payload.Properties.Periods[0]
	tempF := pd.Temperature
	if strings.EqualFold(pd.TemperatureUnit, "C") {
		tempF = weather.CToF(pd.Temperature)
	}

	cur := &weather.CurrentConditions{
		TempF:    fptr(tempF),
		TempC:    fptr(weather.FToC(tempF)),
		Humidity: pd.RelativeHumidity.Value,
	}
	if mph, ok := parseWindSpeed(pd.WindSpeed); ok {
		cur.WindMph = fptr(mph)
	}
	if pd.WindDirection != "" {
		cur.WindDir = sptr(pd.WindDirection)
	}
	if pd.ShortForecast != "" {
		cur.Condition = sptr(pd.ShortForecast)
	}
	if ts, err := time.Parse(time.RFC3339, pd.StartTime); err == nil {
		cur.ObservedAt = tptr(ts.UTC())
	}
	return cur, nil
}

func (p *NWSProvider) FetchForecast(ctx context.Context, loc weather.Location) (*weather.Forecast, error) {
	g, err := p.grid(ctx, loc)
	if err != nil {
		return nil, err
	}

	var payload nwsForecastResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, g.forecastURL, nil, &payload); err != nil {
		return nil, err
	}

	// NWS publishes day and night periods; pair them into days.
	byDate := make(map[string]*weather.ForecastDay)
	var order []string
	for _, pd := range payload.Properties.Periods {
		ts, err := time.Parse(time.RFC3339, pd.StartTime)
		if err != nil {
			continue
		}
		dateKey := ts.UTC().Format("2006-01-02")
		day, ok := byDate[dateKey]
		if !ok {
			date, _ := time.Parse("2006-01-02", dateKey)
			day = &weather.ForecastDay{Date: date.UTC()}
			byDate[dateKey] = day
			order = append(order, dateKey)
		}

		tempF := pd.Temperature
		if strings.EqualFold(pd.TemperatureUnit, "C") {
			tempF = weather.CToF(pd.Temperature)
		}
		if pd.IsDaytime {
			day.HighF = fptr(tempF)
			day.HighC = fptr(weather.FToC(tempF))
			if pd.ShortForecast != "" {
				day.Condition = sptr(pd.ShortForecast)
			}
			if pd.ProbabilityOfPrecipitation.Value != nil {
				day.PrecipChance = pd.ProbabilityOfPrecipitation.Value
			}
			if mph, ok := parseWindSpeed(pd.WindSpeed); ok {
				day.WindMph = fptr(mph)
			}
		} else {
			day.LowF = fptr(tempF)
			day.LowC = fptr(weather.FToC(tempF))
		}
	}

	fc := &weather.Forecast{}
	for _, k := range order {
		fc.Days = append(fc.Days, *byDate[k])
	}
	return fc, nil
}

func (p *NWSProvider) FetchHourly(ctx context.Context, loc weather.Location) (*weather.HourlyForecast, error) {
	g, err := p.grid(ctx, loc)
	if err != nil {
		return nil, err
	}

	var payload nwsForecastResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, g.hourlyURL, nil, &payload); err != nil {
		return nil, err
	}

	hf := &weather.HourlyForecast{}
	for _, pd := range payload.Properties.Periods {
		ts, err := time.Parse(time.RFC3339, pd.StartTime)
		if err != nil {
			continue
		}
		tempF := pd.Temperature
		if strings.EqualFold(pd.TemperatureUnit, "C") {
			tempF = weather.CToF(pd.Temperature)
		}
		pt := weather.HourlyPoint{
			Time:         ts.UTC(),
			TempF:        fptr(tempF),
			TempC:        fptr(weather.FToC(tempF)),
			Humidity:     pd.RelativeHumidity.Value,
			PrecipChance: pd.ProbabilityOfPrecipitation.Value,
		}
		if mph, ok := parseWindSpeed(pd.WindSpeed); ok {
			pt.WindMph = fptr(mph)
		}
		if pd.ShortForecast != "" {
			pt.Condition = sptr(pd.ShortForecast)
		}
		hf.Hours = append(hf.Hours, pt)
	}
	return hf, nil
}

func (p *NWSProvider) FetchAlerts(ctx context.Context, loc weather.Location) (*weather.AlertList, error) {
	u := fmt.Sprintf("%s/alerts/active?point=%.4f,%.4f", p.baseURL, loc.Lat, loc.Lon)

	var payload struct {
		Features []struct {
			Properties struct {
				Event       string `json:"event"`
				Headline    string `json:"headline"`
				Description string `json:"description"`
				Severity    string `json:"severity"`
				Onset       string `json:"onset"`
				Expires     string `json:"expires"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	list := &weather.AlertList{}
	for _, f := range payload.Features {
		alert := weather.Alert{
			Event:       f.Properties.Event,
			Headline:    f.Properties.Headline,
			Description: f.Properties.Description,
			Severity:    normalizeSeverity(f.Properties.Severity),
			Source:      p.name,
		}
		if ts, err := time.Parse(time.RFC3339, f.Properties.Onset); err == nil {
			alert.Onset = tptr(ts.UTC())
		}
		if ts, err := time.Parse(time.RFC3339, f.Properties.Expires); err == nil {
			alert.Expires = tptr(ts.UTC())
		}
		list.Alerts = append(list.Alerts, alert)
	}
	return list, nil
}

// FetchDiscussion returns the latest Area Forecast Discussion for the
// location's forecast office.
func (p *NWSProvider) FetchDiscussion(ctx context.Context, loc weather.Location) (string, error) {
	g, err := p.grid(ctx, loc)
	if err != nil {
		return "", err
	}
	if g.office == "" {
		return "", fmt.Errorf("nws points lookup returned no forecast office")
	}

	listURL := fmt.Sprintf("%s/products/types/AFD/locations/%s", p.baseURL, g.office)
	var listing struct {
		Graph []struct {
			ID string `json:"@id"`
		} `json:"@graph"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, listURL, nil, &listing); err != nil {
		return "", err
	}
	if len(listing.Graph) == 0 {
		return "", fmt.Errorf("no discussion products for office %s", g.office)
	}

	var product struct {
		ProductText string `json:"productText"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, listing.Graph[0].ID, nil, &product); err != nil {
		return "", err
	}
	return product.ProductText, nil
}

// parseWindSpeed extracts the leading number from NWS wind strings like
// "10 mph" or "10 to 15 mph".
func parseWindSpeed(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
