package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/metrics"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/smard"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/weather"
)

// Kind identifies a cached data kind.
type Kind string

const (
	KindGrid    Kind = "grid"
	KindWeather Kind = "weather"
)

// Static fallback values served when no live data has ever been fetched.
// Documented averages for the German grid; see DESIGN.md for provenance.
var (
	FallbackPrice = 0.28  // EUR/kWh
	FallbackCO2   = 320.0 // g/kWh
	FallbackMix   = map[string]float64{
		"solar":   42.0,
		"wind":    28.0,
		"coal":    15.0,
		"gas":     10.0,
		"biomass": 5.0,
	}
)

// GridEntry wraps a grid reading with cache metadata.
type GridEntry struct {
	Reading    smard.GridReading
	FetchedAt  time.Time
	IsFallback bool
	Stale      bool
}

// WeatherEntry wraps a weather reading with cache metadata.
type WeatherEntry struct {
	Reading    weather.Reading
	FetchedAt  time.Time
	IsFallback bool
	Stale      bool
}

// GridFetcher is the upstream gateway for grid data. Price and mix are
// fetched independently so a single malformed field never poisons the
// other.
type GridFetcher interface {
	CurrentPrice(ctx context.Context) (float64, error)
	EnergyMix(ctx context.Context) (map[string]float64, error)
}

// WeatherFetcher is the upstream gateway for weather data.
type WeatherFetcher interface {
	Current(ctx context.Context) (*weather.Reading, error)
}

// Store is the cache and fallback layer. It is the only mutable shared
// state in the process: entries are replaced atomically under a write
// lock, reads take the read lock, and concurrent refreshes for the same
// kind collapse into one upstream call.
type Store struct {
	mu      sync.RWMutex
	grid    GridEntry
	weather WeatherEntry

	group   singleflight.Group
	gridSrc GridFetcher
	wxSrc   WeatherFetcher
	logger  *slog.Logger
}

// New creates a store with the static fallbacks installed, so Get never
// returns a zero value even before the first refresh.
func New(gridSrc GridFetcher, wxSrc WeatherFetcher, logger *slog.Logger) *Store {
	now := time.Now().UTC()
	return &Store{
		grid: GridEntry{
			Reading:    fallbackGridReading(now),
			FetchedAt:  now,
			IsFallback: true,
		},
		weather: WeatherEntry{
			Reading:    fallbackWeatherReading(now),
			FetchedAt:  now,
			IsFallback: true,
		},
		gridSrc: gridSrc,
		wxSrc:   wxSrc,
		logger:  logger,
	}
}

func fallbackGridReading(now time.Time) smard.GridReading {
	mix := make(map[string]float64, len(FallbackMix))
	for k, v := range FallbackMix {
		mix[k] = v
	}
	return smard.GridReading{
		Timestamp: now,
		Price:     FallbackPrice,
		CO2:       FallbackCO2,
		EnergyMix: mix,
	}
}

func fallbackWeatherReading(now time.Time) weather.Reading {
	return weather.Reading{
		Timestamp:     now,
		Temp:          15.0,
		Clouds:        20,
		Description:   "partly cloudy",
		SolarEstimate: 0.8,
		Humidity:      60,
		WindSpeed:     3.5,
	}
}

// Grid returns the current grid cache entry. It never fails and never
// blocks beyond lock acquisition.
func (s *Store) Grid() GridEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.grid.IsFallback {
		metrics.FallbackServes.WithLabelValues(string(KindGrid)).Inc()
	}
	return s.grid
}

// Weather returns the current weather cache entry.
func (s *Store) Weather() WeatherEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.weather.IsFallback {
		metrics.FallbackServes.WithLabelValues(string(KindWeather)).Inc()
	}
	return s.weather
}

// Refresh fetches fresh upstream data for the given kind and swaps the
// entry atomically. Concurrent refreshes for the same kind share a single
// upstream call. On failure the prior entry is retained and marked stale.
func (s *Store) Refresh(ctx context.Context, kind Kind) error {
	_, err, _ := s.group.Do(string(kind), func() (any, error) {
		switch kind {
		case KindGrid:
			return nil, s.refreshGrid(ctx)
		case KindWeather:
			return nil, s.refreshWeather(ctx)
		default:
			return nil, errors.New("store: unknown kind " + string(kind))
		}
	})
	return err
}

// refreshGrid fetches price and mix independently. A failed field keeps
// its previous value; only a fully failed fetch marks the entry stale.
func (s *Store) refreshGrid(ctx context.Context) error {
	prev := s.Grid()

	price, priceErr := s.gridSrc.CurrentPrice(ctx)
	mix, mixErr := s.gridSrc.EnergyMix(ctx)

	if priceErr != nil && mixErr != nil {
		metrics.UpstreamFetches.WithLabelValues(string(KindGrid), "error").Inc()
		s.logger.Warn("grid refresh failed, keeping prior entry",
			"price_error", priceErr, "mix_error", mixErr)
		s.markStale(KindGrid)
		return priceErr
	}

	reading := smard.GridReading{Timestamp: time.Now().UTC()}

	if priceErr != nil {
		s.logger.Warn("price unavailable, retaining previous value", "error", priceErr)
		reading.Price = prev.Reading.Price
	} else {
		reading.Price = price
	}

	if mixErr != nil {
		s.logger.Warn("mix unavailable or malformed, retaining previous value", "error", mixErr)
		reading.EnergyMix = prev.Reading.EnergyMix
		reading.CO2 = prev.Reading.CO2
	} else {
		reading.EnergyMix = mix
		reading.CO2 = smard.CO2FromMix(mix)
	}

	metrics.UpstreamFetches.WithLabelValues(string(KindGrid), "ok").Inc()

	s.mu.Lock()
	s.grid = GridEntry{Reading: reading, FetchedAt: time.Now().UTC()}
	s.mu.Unlock()
	return nil
}

func (s *Store) refreshWeather(ctx context.Context) error {
	reading, err := s.wxSrc.Current(ctx)
	if err != nil {
		metrics.UpstreamFetches.WithLabelValues(string(KindWeather), "error").Inc()
		s.logger.Warn("weather refresh failed, keeping prior entry", "error", err)
		s.markStale(KindWeather)
		return err
	}

	metrics.UpstreamFetches.WithLabelValues(string(KindWeather), "ok").Inc()

	s.mu.Lock()
	s.weather = WeatherEntry{Reading: *reading, FetchedAt: time.Now().UTC()}
	s.mu.Unlock()
	return nil
}

func (s *Store) markStale(kind Kind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case KindGrid:
		s.grid.Stale = true
	case KindWeather:
		s.weather.Stale = true
	}
}
