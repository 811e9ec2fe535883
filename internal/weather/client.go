package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrUnavailable indicates the weather upstream could not be used, either
// because the request failed or because no API key is configured.
var ErrUnavailable = errors.New("weather: upstream unavailable")

// Reading is one normalized weather snapshot used for solar estimates.
type Reading struct {
	Timestamp     time.Time `json:"timestamp"`
	Temp          float64   `json:"temp"`   // Celsius
	Clouds        int       `json:"clouds"` // percent
	Description   string    `json:"description"`
	SolarEstimate float64   `json:"solar_estimate"` // 0..1
	Humidity      int       `json:"humidity"`
	WindSpeed     float64   `json:"wind_speed"` // m/s
}

// ForecastPoint is one forecast step (upstream delivers 3h intervals).
type ForecastPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	Hour          string    `json:"hour"`
	Temp          float64   `json:"temp"`
	Clouds        int       `json:"clouds"`
	SolarEstimate float64   `json:"solar_estimate"`
}

// Client fetches data from the OpenWeatherMap API.
type Client struct {
	baseURL    string
	apiKey     string
	lat, lon   float64
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an OpenWeatherMap client for a fixed location.
func NewClient(baseURL, apiKey string, lat, lon float64, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		lat:     lat,
		lon:     lon,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type currentPayload struct {
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

type forecastPayload struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Clouds struct {
			All int `json:"all"`
		} `json:"clouds"`
	} `json:"list"`
}

// Current fetches the current weather for the configured location.
func (c *Client) Current(ctx context.Context) (*Reading, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}

	var payload currentPayload
	if err := c.getJSON(ctx, "/weather", &payload); err != nil {
		return nil, err
	}

	description := ""
	if len(payload.Weather) > 0 {
		description = payload.Weather[0].Description
	}

	return &Reading{
		Timestamp:     time.Now().UTC(),
		Temp:          payload.Main.Temp,
		Clouds:        payload.Clouds.All,
		Description:   description,
		SolarEstimate: SolarEstimate(payload.Clouds.All),
		Humidity:      payload.Main.Humidity,
		WindSpeed:     payload.Wind.Speed,
	}, nil
}

// Forecast fetches the weather forecast covering roughly the next `hours`
// hours. Upstream delivers 3-hour steps.
func (c *Client) Forecast(ctx context.Context, hours int) ([]ForecastPoint, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: no API key configured", ErrUnavailable)
	}
	if hours <= 0 {
		hours = 24
	}

	var payload forecastPayload
	if err := c.getJSON(ctx, "/forecast", &payload); err != nil {
		return nil, err
	}

	steps := hours / 3
	if steps < 1 {
		steps = 1
	}
	points := make([]ForecastPoint, 0, steps)
	for _, item := range payload.List {
		if len(points) >= steps {
			break
		}
		ts := time.Unix(item.Dt, 0).UTC()
		points = append(points, ForecastPoint{
			Timestamp:     ts,
			Hour:          ts.Format("15:04"),
			Temp:          item.Main.Temp,
			Clouds:        item.Clouds.All,
			SolarEstimate: SolarEstimate(item.Clouds.All),
		})
	}
	return points, nil
}

// SolarEstimate maps cloud coverage to an estimated solar production
// capacity in [0,1]. Full overcast still leaves ~10% diffuse light.
func SolarEstimate(cloudCoverage int) float64 {
	if cloudCoverage < 0 {
		cloudCoverage = 0
	}
	if cloudCoverage > 100 {
		cloudCoverage = 100
	}
	capacity := 1.0 - float64(cloudCoverage)/100*0.9
	return math.Round(capacity*100) / 100
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(c.lat, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(c.lon, 'f', 4, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}
