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

// WeatherAPIProvider fetches from WeatherAPI.com. Requires an API key; its
// alert feed is the credentialed source used for supplementary alerts in
// automatic mode.
type WeatherAPIProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string) *WeatherAPIProvider {
	return &WeatherAPIProvider{
		name:    "weatherapi",
		apiKey:  apiKey,
		baseURL: "https://api.weatherapi.com/v1",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() string {
	return p.name
}

func (p *WeatherAPIProvider) endpoint(path string, loc weather.Location, extra url.Values) (string, error) {
	if p.apiKey == "" {
		return "", fmt.Errorf("weatherapi api key is not configured")
	}
	values := url.Values{}
	values.Set("key", p.apiKey)
	// WeatherAPI uses "q" for location; it accepts "lat,lon" or a name.
	if loc.Lat != 0 || loc.Lon != 0 {
		values.Set("q", fmt.Sprintf("%f,%f", loc.Lat, loc.Lon))
	} else {
		q := loc.Name
		if loc.Country != "" {
			q = fmt.Sprintf("%s,%s", loc.Name, loc.Country)
		}
		values.Set("q", q)
	}
	for k, vs := range extra {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	return fmt.Sprintf("%s%s?%s", p.baseURL, path, values.Encode()), nil
}

type weatherAPIDay struct {
	Date      string `json:"date"`
	DateEpoch int64  `json:"date_epoch"`
	Day       struct {
		MaxTempF          float64 `json:"maxtemp_f"`
		MaxTempC          float64 `json:"maxtemp_c"`
		MinTempF          float64 `json:"mintemp_f"`
		MinTempC          float64 `json:"mintemp_c"`
		MaxWindMph        float64 `json:"maxwind_mph"`
		DailyChanceOfRain float64 `json:"daily_chance_of_rain"`
		Condition         struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"day"`
	Hour []struct {
		TimeEpoch    int64   `json:"time_epoch"`
		TempF        float64 `json:"temp_f"`
		TempC        float64 `json:"temp_c"`
		WindMph      float64 `json:"wind_mph"`
		PressureMb   float64 `json:"pressure_mb"`
		Humidity     float64 `json:"humidity"`
		ChanceOfRain float64 `json:"chance_of_rain"`
		Condition    struct {
			Text string `json:"text"`
		} `json:"condition"`
	} `json:"hour"`
}

type weatherAPIForecastResponse struct {
	Forecast struct {
		ForecastDay []weatherAPIDay `json:"forecastday"`
	} `json:"forecast"`
	Alerts struct {
		Alert []struct {
			Event     string `json:"event"`
			Headline  string `json:"headline"`
			Severity  string `json:"severity"`
			Desc      string `json:"desc"`
			Effective string `json:"effective"`
			Expires   string `json:"expires"`
		} `json:"alert"`
	} `json:"alerts"`
}

func (p *WeatherAPIProvider) FetchCurrent(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	u, err := p.endpoint("/current.json", loc, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Current struct {
			LastUpdatedEpoch int64   `json:"last_updated_epoch"`
			TempC            float64 `json:"temp_c"`
			TempF            float64 `json:"temp_f"`
			FeelsLikeC       float64 `json:"feelslike_c"`
			FeelsLikeF       float64 `json:"feelslike_f"`
			Humidity         float64 `json:"humidity"`
			WindMph          float64 `json:"wind_mph"`
			WindDir          string  `json:"wind_dir"`
			GustMph          float64 `json:"gust_mph"`
			PressureMb       float64 `json:"pressure_mb"`
			PressureIn       float64 `json:"pressure_in"`
			VisMiles         float64 `json:"vis_miles"`
			DewpointF        float64 `json:"dewpoint_f"`
			UV               float64 `json:"uv"`
			Condition        struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	c := payload.Current
	cur := &weather.CurrentConditions{
		TempC:        fptr(c.TempC),
		TempF:        fptr(c.TempF),
		FeelsLikeC:   fptr(c.FeelsLikeC),
		FeelsLikeF:   fptr(c.FeelsLikeF),
		Humidity:     fptr(c.Humidity),
		WindMph:      fptr(c.WindMph),
		WindGustMph:  fptr(c.GustMph),
		PressureMb:   fptr(c.PressureMb),
		PressureInHg: fptr(c.PressureIn),
		VisibilityMi: fptr(c.VisMiles),
		DewpointF:    fptr(c.DewpointF),
		UVIndex:      fptr(c.UV),
	}
	if c.WindDir != "" {
		cur.WindDir = sptr(c.WindDir)
	}
	if c.Condition.Text != "" {
		cur.Condition = sptr(c.Condition.Text)
	}
	if c.LastUpdatedEpoch > 0 {
		cur.ObservedAt = tptr(time.Unix(c.LastUpdatedEpoch, 0).UTC())
	}
	return cur, nil
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, loc weather.Location) (*weather.Forecast, error) {
	extra := url.Values{}
	extra.Set("days", "7")
	u, err := p.endpoint("/forecast.json", loc, extra)
	if err != nil {
		return nil, err
	}

	var payload weatherAPIForecastResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	fc := &weather.Forecast{}
	for _, d := range payload.Forecast.ForecastDay {
		date, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			continue
		}
		day := weather.ForecastDay{
			Date:         date.UTC(),
			HighF:        fptr(d.Day.MaxTempF),
			HighC:        fptr(d.Day.MaxTempC),
			LowF:         fptr(d.Day.MinTempF),
			LowC:         fptr(d.Day.MinTempC),
			PrecipChance: fptr(d.Day.DailyChanceOfRain),
			WindMph:      fptr(d.Day.MaxWindMph),
		}
		if d.Day.Condition.Text != "" {
			day.Condition = sptr(d.Day.Condition.Text)
		}
		fc.Days = append(fc.Days, day)
	}
	return fc, nil
}

func (p *WeatherAPIProvider) FetchHourly(ctx context.Context, loc weather.Location) (*weather.HourlyForecast, error) {
	extra := url.Values{}
	extra.Set("days", "2")
	u, err := p.endpoint("/forecast.json", loc, extra)
	if err != nil {
		return nil, err
	}

	var payload weatherAPIForecastResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	hf := &weather.HourlyForecast{}
	for _, d := range payload.Forecast.ForecastDay {
		for _, h := range d.Hour {
			pt := weather.HourlyPoint{
				Time:         time.Unix(h.TimeEpoch, 0).UTC(),
				TempF:        fptr(h.TempF),
				TempC:        fptr(h.TempC),
				WindMph:      fptr(h.WindMph),
				PressureMb:   fptr(h.PressureMb),
				Humidity:     fptr(h.Humidity),
				PrecipChance: fptr(h.ChanceOfRain),
			}
			if h.Condition.Text != "" {
				pt.Condition = sptr(h.Condition.Text)
			}
			hf.Hours = append(hf.Hours, pt)
		}
	}
	return hf, nil
}

func (p *WeatherAPIProvider) FetchAlerts(ctx context.Context, loc weather.Location) (*weather.AlertList, error) {
	extra := url.Values{}
	extra.Set("days", "1")
	extra.Set("alerts", "yes")
	u, err := p.endpoint("/forecast.json", loc, extra)
	if err != nil {
		return nil, err
	}

	var payload weatherAPIForecastResponse
	if err := getJSON(ctx, p.httpCfg, p.circuit, u, nil, &payload); err != nil {
		return nil, err
	}

	list := &weather.AlertList{}
	for _, a := range payload.Alerts.Alert {
		alert := weather.Alert{
			Event:       a.Event,
			Headline:    a.Headline,
			Description: a.Desc,
			Severity:    normalizeSeverity(a.Severity),
			Source:      p.name,
		}
		if ts, err := common.ParseTime(a.Effective); err == nil {
			alert.Onset = tptr(ts)
		}
		if ts, err := common.ParseTime(a.Expires); err == nil {
			alert.Expires = tptr(ts)
		}
		list.Alerts = append(list.Alerts, alert)
	}
	return list, nil
}
