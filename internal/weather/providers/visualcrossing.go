package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wxfusion/wxfusion/internal/common"
	"github.com/wxfusion/wxfusion/internal/weather"
)

// VisualCrossingProvider fetches from the Visual Crossing timeline API.
// Requires an API key. unitGroup=us, so temperatures arrive in °F, wind in
// mph, pressure in mb.
type VisualCrossingProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewVisualCrossingProvider(client *http.Client, apiKey string) *VisualCrossingProvider {
	return &VisualCrossingProvider{
		name:    "visualcrossing",
		apiKey:  apiKey,
		baseURL: "https://weather.visualcrossing.com/VisualCrossingWebServices/rest/services/timeline",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("visualcrossing"),
	}
}

func (p *VisualCrossingProvider) Name() string {
	return p.name
}

func (p *VisualCrossingProvider) endpoint(loc weather.Location, include string) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("visualcrossing api key is not configured")
	}
	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("unitGroup", "us")
	values.Set("include", include)
	values.Set("contentType", "json")
	return fmt.Sprintf("%s/%f,%f?%s", p.baseURL, loc.Lat, loc.Lon, values.Encode()), nil
}

type vcConditions struct {
	DatetimeEpoch int64    `json:"datetimeEpoch"`
	Temp          *float64 `json:"temp"`
	FeelsLike     *float64 `json:"feelslike"`
	Humidity      *float64 `json:"humidity"`
	WindSpeed     *float64 `json:"windspeed"`
	WindGust      *float64 `json:"windgust"`
	WindDir       *float64 `json:"winddir"`
	Pressure      *float64 `json:"pressure"`
	Visibility    *float64 `json:"visibility"`
	Dew           *float64 `json:"dew"`
	UVIndex       *float64 `json:"uvindex"`
	PrecipProb    *float64 `json:"precipprob"`
	Conditions    string   `json:"conditions"`
	SunriseEpoch  int64    `json:"sunriseEpoch"`
	SunsetEpoch   int64    `json:"sunsetEpoch"`
}

type vcDay struct {
	Datetime   string         `json:"datetime"`
	TempMax    *float64       `json:"tempmax"`
	TempMin    *float64       `json:"tempmin"`
	PrecipProb *float64       `json:"precipprob"`
	WindSpeed  *float64       `json:"windspeed"`
	Conditions string         `json:"conditions"`
	Hours      []vcConditions `json:"hours"`
}

type vcTimelineResponse struct {
	CurrentConditions *vcConditions `json:"currentConditions"`
	Days              []vcDay       `json:"days"`
	Alerts            []struct {
		Event       string `json:"event"`
		Headline    string `json:"headline"`
		Description string `json:"description"`
		Onset       string `json:"onset"`
		Ends        string `json:"ends"`
	} `json:"alerts"`
}

func (p *VisualCrossingProvider) FetchCurrent(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	u, err := p.endpoint(loc, "current")
	if err != nil {
		return nil, err
	}

	var payload vcTimelineResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}
	if payload.CurrentConditions == nil {
		return nil, fmt.Errorf("visualcrossing returned no current conditions")
	}

	c := payload.CurrentConditions
	cur := &weather.CurrentConditions{
		Humidity:     c.Humidity,
		WindMph:      c.WindSpeed,
		WindGustMph:  c.WindGust,
		PressureMb:   c.Pressure,
		VisibilityMi: c.Visibility,
		DewpointF:    c.Dew,
		UVIndex:      c.UVIndex,
	}
	if c.Temp != nil {
		cur.TempF = c.Temp
		cur.TempC = fptr(weather.FToC(*c.Temp))
	}
	if c.FeelsLike != nil {
		cur.FeelsLikeF = c.FeelsLike
		cur.FeelsLikeC = fptr(weather.FToC(*c.FeelsLike))
	}
	if c.WindDir != nil {
		cur.WindDir = sptr(compassDir(*c.WindDir))
	}
	if c.Pressure != nil {
		cur.PressureInHg = fptr(weather.MbToInHg(*c.Pressure))
	}
	if c.Conditions != "" {
		cur.Condition = sptr(c.Conditions)
	}
	if c.DatetimeEpoch > 0 {
		cur.ObservedAt = tptr(time.Unix(c.DatetimeEpoch, 0).UTC())
	}
	if c.SunriseEpoch > 0 {
		cur.Sunrise = tptr(time.Unix(c.SunriseEpoch, 0).UTC())
	}
	if c.SunsetEpoch > 0 {
		cur.Sunset = tptr(time.Unix(c.SunsetEpoch, 0).UTC())
	}
	return cur, nil
}

func (p *VisualCrossingProvider) FetchForecast(ctx context.Context, loc weather.Location) (*weather.Forecast, error) {
	u, err := p.endpoint(loc, "days")
	if err != nil {
		return nil, err
	}

	var payload vcTimelineResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	fc := &weather.Forecast{}
	for _, d := range payload.Days {
		date, err := time.Parse("2006-01-02", d.Datetime)
		if err != nil {
			continue
		}
		day := weather.ForecastDay{
			Date:         date.UTC(),
			HighF:        d.TempMax,
			LowF:         d.TempMin,
			PrecipChance: d.PrecipProb,
			WindMph:      d.WindSpeed,
		}
		if d.TempMax != nil {
			day.HighC = fptr(weather.FToC(*d.TempMax))
		}
		if d.TempMin != nil {
			day.LowC = fptr(weather.FToC(*d.TempMin))
		}
		if d.Conditions != "" {
			day.Condition = sptr(d.Conditions)
		}
		fc.Days = append(fc.Days, day)
	}
	return fc, nil
}

func (p *VisualCrossingProvider) FetchHourly(ctx context.Context, loc weather.Location) (*weather.HourlyForecast, error) {
	u, err := p.endpoint(loc, "hours")
	if err != nil {
		return nil, err
	}

	var payload vcTimelineResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	hf := &weather.HourlyForecast{}
	for _, d := range payload.Days {
		for _, h := range d.Hours {
			pt := weather.HourlyPoint{
				Time:         time.Unix(h.DatetimeEpoch, 0).UTC(),
				TempF:        h.Temp,
				Humidity:     h.Humidity,
				PressureMb:   h.Pressure,
				WindMph:      h.WindSpeed,
				PrecipChance: h.PrecipProb,
			}
			if h.Temp != nil {
				pt.TempC = fptr(weather.FToC(*h.Temp))
			}
			if h.Conditions != "" {
				pt.Condition = sptr(h.Conditions)
			}
			hf.Hours = append(hf.Hours, pt)
		}
		// 48 hours is plenty for trend derivation.
		if len(hf.Hours) >= 48 {
			break
		}
	}
	return hf, nil
}

func (p *VisualCrossingProvider) FetchAlerts(ctx context.Context, loc weather.Location) (*weather.AlertList, error) {
	u, err := p.endpoint(loc, "alerts")
	if err != nil {
		return nil, err
	}

	var payload vcTimelineResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	list := &weather.AlertList{}
	for _, a := range payload.Alerts {
		alert := weather.Alert{
			Event:       a.Event,
			Headline:    a.Headline,
			Description: a.Description,
			Severity:    normalizeSeverity(a.Event + " " + a.Headline),
			Source:      p.name,
		}
		if ts, err := common.ParseTime(a.Onset); err == nil {
			alert.Onset = tptr(ts)
		}
		if ts, err := common.ParseTime(a.Ends); err == nil {
			alert.Expires = tptr(ts)
		}
		list.Alerts = append(list.Alerts, alert)
	}
	return list, nil
}
