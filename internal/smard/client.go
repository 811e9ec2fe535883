package smard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"
)

// ErrUnavailable indicates the upstream could not be reached or answered
// with a non-200 status. Callers recover via the cache layer.
var ErrUnavailable = errors.New("smard: upstream unavailable")

// ErrMalformed indicates the upstream answered but the payload failed
// validation. The offending field is dropped, not propagated.
var ErrMalformed = errors.New("smard: malformed upstream data")

// SMARD chart filter IDs, see https://smard.api.bund.dev/
var filters = map[string]int{
	"price":         4169, // Marktpreis Deutschland/Luxemburg
	"solar":         4068,
	"wind_onshore":  4067,
	"wind_offshore": 1225,
	"coal":          4069,
	"gas":           4071,
	"biomass":       4066,
	"hydro":         1226,
}

// Generation sources that make up the reported energy mix.
var mixSources = []string{"solar", "wind_onshore", "wind_offshore", "coal", "gas", "biomass"}

// Emission factors in g CO2/kWh per generation source.
var emissionFactors = map[string]float64{
	"solar":   0,
	"wind":    0,
	"coal":    820,
	"gas":     490,
	"biomass": 230,
	"hydro":   0,
}

// GridReading is one normalized snapshot of the German grid.
type GridReading struct {
	Timestamp time.Time          `json:"timestamp"`
	Price     float64            `json:"price"` // EUR/kWh
	CO2       float64            `json:"co2"`   // g/kWh
	EnergyMix map[string]float64 `json:"energy_mix"`
}

// PricePoint is one hourly price observation.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
}

// Client fetches and normalizes data from the SMARD.de API.
type Client struct {
	baseURL    string
	region     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a SMARD client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		region:  "DE",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// CurrentPrice returns the latest market price converted to EUR/kWh.
func (c *Client) CurrentPrice(ctx context.Context) (float64, error) {
	series, err := c.fetchSeries(ctx, "price", 2*time.Hour)
	if err != nil {
		return 0, err
	}
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].value != nil {
			// Upstream reports EUR/MWh.
			return round4(*series[i].value / 1000), nil
		}
	}
	return 0, fmt.Errorf("%w: no price datapoint", ErrUnavailable)
}

// EnergyMix returns the current generation mix as percentage shares.
// Onshore and offshore wind are grouped. Negative production values are
// clipped to zero; a mix whose shares do not sum close to 100 is rejected.
func (c *Client) EnergyMix(ctx context.Context) (map[string]float64, error) {
	production := make(map[string]float64)
	var total float64

	for _, source := range mixSources {
		series, err := c.fetchSeries(ctx, source, time.Hour)
		if err != nil {
			return nil, err
		}
		var value float64
		for i := len(series) - 1; i >= 0; i-- {
			if series[i].value != nil {
				value = *series[i].value
				break
			}
		}
		if value < 0 {
			c.logger.Warn("clipping negative production value", "source", source, "value", value)
			value = 0
		}
		production[source] = value
		total += value
	}

	if total <= 0 {
		return nil, fmt.Errorf("%w: zero total production", ErrMalformed)
	}

	mix := make(map[string]float64, len(production))
	for source, value := range production {
		mix[source] = round1(value / total * 100)
	}
	mix["wind"] = round1(mix["wind_onshore"] + mix["wind_offshore"])
	delete(mix, "wind_onshore")
	delete(mix, "wind_offshore")

	if err := ValidateMix(mix); err != nil {
		return nil, err
	}
	return mix, nil
}

// ValidateMix rejects a mix with negative shares or shares summing far
// from 100 (beyond rounding tolerance).
func ValidateMix(mix map[string]float64) error {
	var sum float64
	for source, share := range mix {
		if share < 0 {
			return fmt.Errorf("%w: negative share for %s", ErrMalformed, source)
		}
		sum += share
	}
	if math.Abs(sum-100) > 5 {
		return fmt.Errorf("%w: mix shares sum to %.1f", ErrMalformed, sum)
	}
	return nil
}

// CO2FromMix computes the approximate CO2 intensity in g/kWh from a
// percentage mix using typical emission factors.
func CO2FromMix(mix map[string]float64) float64 {
	var total float64
	for source, share := range mix {
		total += share / 100 * emissionFactors[source]
	}
	return round1(total)
}

// PriceSeries returns hourly prices for the trailing window.
func (c *Client) PriceSeries(ctx context.Context, window time.Duration) ([]PricePoint, error) {
	series, err := c.fetchSeries(ctx, "price", window)
	if err != nil {
		return nil, err
	}
	points := make([]PricePoint, 0, len(series))
	for _, pt := range series {
		if pt.value == nil {
			continue
		}
		points = append(points, PricePoint{
			Timestamp: time.UnixMilli(pt.ts),
			Price:     round4(*pt.value / 1000),
		})
	}
	return points, nil
}

type seriesPoint struct {
	ts    int64
	value *float64
}

type indexPayload struct {
	Timestamps []int64 `json:"timestamps"`
}

type dataPayload struct {
	Series [][]*float64 `json:"series"`
}

// fetchSeries runs the two-step SMARD fetch: resolve the newest chunk
// timestamp from the index, then fetch that chunk and trim it to the
// requested trailing window.
func (c *Client) fetchSeries(ctx context.Context, filterName string, window time.Duration) ([]seriesPoint, error) {
	filterID, ok := filters[filterName]
	if !ok {
		return nil, fmt.Errorf("unknown filter: %s", filterName)
	}

	indexURL := fmt.Sprintf("%s/chart_data/%d/%s/index_hour.json", c.baseURL, filterID, c.region)
	var index indexPayload
	if err := c.getJSON(ctx, indexURL, &index); err != nil {
		return nil, err
	}
	if len(index.Timestamps) == 0 {
		return nil, fmt.Errorf("%w: no chunk timestamps for %s", ErrMalformed, filterName)
	}
	latest := index.Timestamps[len(index.Timestamps)-1]

	dataURL := fmt.Sprintf("%s/chart_data/%d/%s/%d_%s_hour_%d.json",
		c.baseURL, filterID, c.region, filterID, c.region, latest)
	var data dataPayload
	if err := c.getJSON(ctx, dataURL, &data); err != nil {
		return nil, err
	}

	nowMs := time.Now().UnixMilli()
	cutoffMs := nowMs - window.Milliseconds()

	points := make([]seriesPoint, 0, len(data.Series))
	for _, row := range data.Series {
		if len(row) != 2 || row[0] == nil {
			continue
		}
		ts := int64(*row[0])
		if ts < cutoffMs || ts > nowMs {
			continue
		}
		points = append(points, seriesPoint{ts: ts, value: row[1]})
	}
	return points, nil
}

func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "SmartEnergyMonitor/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d from %s", ErrUnavailable, resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
