package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wxfusion/wxfusion/internal/weather"
)

const openMeteoTimeLayout = "2006-01-02T15:04"

// OpenMeteoProvider fetches from the Open-Meteo forecast API. No API key is
// required. Open-Meteo publishes no alert feed.
type OpenMeteoProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:    "openmeteo",
		baseURL: "https://api.open-meteo.com/v1/forecast",
		httpCfg: defaultHTTPConfig(client),
		circuit: newBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) endpoint(loc weather.Location, extra url.Values) string {
	values := url.Values{}
	values.Set("latitude", fmt.Sprintf("%f", loc.Lat))
	values.Set("longitude", fmt.Sprintf("%f", loc.Lon))
	values.Set("timezone", "UTC")
	values.Set("wind_speed_unit", "mph")
	for k, vs := range extra {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	return fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
}

func (p *OpenMeteoProvider) FetchCurrent(ctx context.Context, loc weather.Location) (*weather.CurrentConditions, error) {
	extra := url.Values{}
	extra.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,weather_code,surface_pressure,wind_speed_10m,wind_direction_10m,wind_gusts_10m")
	extra.Set("daily", "sunrise,sunset")
	extra.Set("forecast_days", "1")

	var payload struct {
		Current struct {
			Time                string  `json:"time"`
			Temperature2m       float64 `json:"temperature_2m"`
			RelativeHumidity2m  float64 `json:"relative_humidity_2m"`
			ApparentTemperature float64 `json:"apparent_temperature"`
			WeatherCode         int     `json:"weather_code"`
			SurfacePressure     float64 `json:"surface_pressure"`
			WindSpeed10m        float64 `json:"wind_speed_10m"`
			WindDirection10m    float64 `json:"wind_direction_10m"`
			WindGusts10m        float64 `json:"wind_gusts_10m"`
		} `json:"current"`
		Daily struct {
			Sunrise []string `json:"sunrise"`
			Sunset  []string `json:"sunset"`
		} `json:"daily"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint(loc, extra), nil, &payload); err != nil {
		return nil, err
	}

	cur := &weather.CurrentConditions{
		TempC:        fptr(payload.Current.Temperature2m),
		TempF:        fptr(weather.CToF(payload.Current.Temperature2m)),
		FeelsLikeC:   fptr(payload.Current.ApparentTemperature),
		FeelsLikeF:   fptr(weather.CToF(payload.Current.ApparentTemperature)),
		Humidity:     fptr(payload.Current.RelativeHumidity2m),
		WindMph:      fptr(payload.Current.WindSpeed10m),
		WindGustMph:  fptr(payload.Current.WindGusts10m),
		WindDir:      sptr(compassDir(payload.Current.WindDirection10m)),
		PressureMb:   fptr(payload.Current.SurfacePressure),
		PressureInHg: fptr(weather.MbToInHg(payload.Current.SurfacePressure)),
	}
	if c := describeWeatherCode(payload.Current.WeatherCode); c != "" {
		cur.Condition = sptr(c)
	}
	if ts, err := time.Parse(openMeteoTimeLayout, payload.Current.Time); err == nil {
		cur.ObservedAt = tptr(ts.UTC())
	}
	if len(payload.Daily.Sunrise) > 0 {
		if ts, err := time.Parse(openMeteoTimeLayout, payload.Daily.Sunrise[0]); err == nil {
			cur.Sunrise = tptr(ts.UTC())
		}
	}
	if len(payload.Daily.Sunset) > 0 {
		if ts, err := time.Parse(openMeteoTimeLayout, payload.Daily.Sunset[0]); err == nil {
			cur.Sunset = tptr(ts.UTC())
		}
	}
	return cur, nil
}

func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, loc weather.Location) (*weather.Forecast, error) {
	extra := url.Values{}
	extra.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code,precipitation_probability_max,wind_speed_10m_max")
	extra.Set("forecast_days", "7")

	var payload struct {
		Daily struct {
			Time                 []string  `json:"time"`
			Temperature2mMax     []float64 `json:"temperature_2m_max"`
			Temperature2mMin     []float64 `json:"temperature_2m_min"`
			WeatherCode          []int     `json:"weather_code"`
			PrecipProbabilityMax []float64 `json:"precipitation_probability_max"`
			WindSpeed10mMax      []float64 `json:"wind_speed_10m_max"`
		} `json:"daily"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint(loc, extra), nil, &payload); err != nil {
		return nil, err
	}

	fc := &weather.Forecast{}
	for i, d := range payload.Daily.Time {
		date, err := time.Parse("2006-01-02", d)
		if err != nil {
			continue
		}
		day := weather.ForecastDay{Date: date.UTC()}
		if i < len(payload.Daily.Temperature2mMax) {
			day.HighC = fptr(payload.Daily.Temperature2mMax[i])
			day.HighF = fptr(weather.CToF(payload.Daily.Temperature2mMax[i]))
		}
		if i < len(payload.Daily.Temperature2mMin) {
			day.LowC = fptr(payload.Daily.Temperature2mMin[i])
			day.LowF = fptr(weather.CToF(payload.Daily.Temperature2mMin[i]))
		}
		if i < len(payload.Daily.WeatherCode) {
			if c := describeWeatherCode(payload.Daily.WeatherCode[i]); c != "" {
				day.Condition = sptr(c)
			}
		}
		if i < len(payload.Daily.PrecipProbabilityMax) {
			day.PrecipChance = fptr(payload.Daily.PrecipProbabilityMax[i])
		}
		if i < len(payload.Daily.WindSpeed10mMax) {
			day.WindMph = fptr(payload.Daily.WindSpeed10mMax[i])
		}
		fc.Days = append(fc.Days, day)
	}
	return fc, nil
}

func (p *OpenMeteoProvider) FetchHourly(ctx context.Context, loc weather.Location) (*weather.HourlyForecast, error) {
	extra := url.Values{}
	extra.Set("hourly", "temperature_2m,surface_pressure,precipitation_probability,relative_humidity_2m,weather_code")
	extra.Set("forecast_days", "2")

	var payload struct {
		Hourly struct {
			Time               []string  `json:"time"`
			Temperature2m      []float64 `json:"temperature_2m"`
			SurfacePressure    []float64 `json:"surface_pressure"`
			PrecipProbability  []float64 `json:"precipitation_probability"`
			RelativeHumidity2m []float64 `json:"relative_humidity_2m"`
			WeatherCode        []int     `json:"weather_code"`
		} `json:"hourly"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.endpoint(loc, extra), nil, &payload); err != nil {
		return nil, err
	}

	hf := &weather.HourlyForecast{}
	for i, t := range payload.Hourly.Time {
		ts, err := time.Parse(openMeteoTimeLayout, t)
		if err != nil {
			continue
		}
		pt := weather.HourlyPoint{Time: ts.UTC()}
		if i < len(payload.Hourly.Temperature2m) {
			pt.TempC = fptr(payload.Hourly.Temperature2m[i])
			pt.TempF = fptr(weather.CToF(payload.Hourly.Temperature2m[i]))
		}
		if i < len(payload.Hourly.SurfacePressure) {
			pt.PressureMb = fptr(payload.Hourly.SurfacePressure[i])
		}
		if i < len(payload.Hourly.PrecipProbability) {
			pt.PrecipChance = fptr(payload.Hourly.PrecipProbability[i])
		}
		if i < len(payload.Hourly.RelativeHumidity2m) {
			pt.Humidity = fptr(payload.Hourly.RelativeHumidity2m[i])
		}
		if i < len(payload.Hourly.WeatherCode) {
			if c := describeWeatherCode(payload.Hourly.WeatherCode[i]); c != "" {
				pt.Condition = sptr(c)
			}
		}
		hf.Hours = append(hf.Hours, pt)
	}
	return hf, nil
}

// FetchAlerts is unsupported: Open-Meteo has no alert feed.
func (p *OpenMeteoProvider) FetchAlerts(_ context.Context, _ weather.Location) (*weather.AlertList, error) {
	return nil, weather.ErrKindUnsupported
}

// describeWeatherCode maps WMO weather codes (simplified) to condition text.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "Clear"
	case code >= 1 && code <= 3:
		return "Partly cloudy"
	case code == 45 || code == 48:
		return "Fog"
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return "Rain"
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return "Snow"
	case code >= 95:
		return "Thunderstorm"
	default:
		return ""
	}
}
