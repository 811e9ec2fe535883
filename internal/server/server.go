package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/assistant"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/config"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/devices"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/forecast"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/history"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/metrics"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/store"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/weather"
)

// WeatherForecaster is the live weather forecast source. Current weather
// comes from the cache; multi-hour forecasts are fetched on demand.
type WeatherForecaster interface {
	Forecast(ctx context.Context, hours int) ([]weather.ForecastPoint, error)
}

// Server represents the HTTP API server.
type Server struct {
	cfg        *config.Config
	store      *store.Store
	hist       *history.History
	forecaster *forecast.Generator
	weatherSrc WeatherForecaster
	catalog    *devices.Catalog // nil when the device db could not be opened
	assistant  *assistant.Assistant
	httpServer *http.Server
	startTime  time.Time
	logger     *slog.Logger
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// GridCurrentResponse represents the current grid reading.
type GridCurrentResponse struct {
	Timestamp  string             `json:"timestamp"`
	Price      float64            `json:"price"`
	CO2        float64            `json:"co2"`
	EnergyMix  map[string]float64 `json:"energy_mix"`
	Status     string             `json:"status"`
	IsFallback bool               `json:"is_fallback"`
}

// ForecastResponse represents a price forecast series.
type ForecastResponse struct {
	Forecast []forecast.Point `json:"forecast"`
	Hours    int              `json:"hours"`
	Location string           `json:"location"`
}

// StatsResponse represents aggregates over the retained history window.
type StatsResponse struct {
	Count        int     `json:"count"`
	AveragePrice float64 `json:"average_price"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	AverageCO2   float64 `json:"average_co2"`
	CurrentPrice float64 `json:"current_price"`
}

// WeatherForecastResponse represents a weather forecast series.
type WeatherForecastResponse struct {
	Forecast []weather.ForecastPoint `json:"forecast"`
	Hours    int                     `json:"hours"`
}

// AskRequest represents an assistant query.
type AskRequest struct {
	Query string `json:"query"`
}

// AskResponse represents an assistant answer.
type AskResponse struct {
	Answer           string `json:"answer"`
	Mode             string `json:"mode"`
	ProcessingTimeMs int64  `json:"processing_time_ms"`
}

// New creates the HTTP server and wires all routes.
func New(cfg *config.Config, st *store.Store, h *history.History, f *forecast.Generator, wx WeatherForecaster, cat *devices.Catalog, as *assistant.Assistant, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		store:      st,
		hist:       h,
		forecaster: f,
		weatherSrc: wx,
		catalog:    cat,
		assistant:  as,
		logger:     logger,
		startTime:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.instrument("/health", s.healthHandler))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/grid/current", s.instrument("/api/grid/current", s.gridCurrentHandler))
	mux.HandleFunc("/api/grid/forecast", s.instrument("/api/grid/forecast", s.gridForecastHandler))
	mux.HandleFunc("/api/grid/stats", s.instrument("/api/grid/stats", s.gridStatsHandler))
	mux.HandleFunc("/api/weather/current", s.instrument("/api/weather/current", s.weatherCurrentHandler))
	mux.HandleFunc("/api/weather/forecast", s.instrument("/api/weather/forecast", s.weatherForecastHandler))
	mux.HandleFunc("/api/devices", s.instrument("/api/devices", s.devicesHandler))
	mux.HandleFunc("/api/devices/", s.instrument("/api/devices/recommendation", s.deviceRecommendationHandler))
	mux.HandleFunc("/api/assistant/ask", s.instrument("/api/assistant/ask", s.askHandler))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routing mux for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.RequestCount.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// healthHandler handles health check requests.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   "1.0.0",
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// gridCurrentHandler serves the latest cached grid reading. It never
// fails: before the first successful upstream fetch the static fallback
// reading is returned.
func (s *Server) gridCurrentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entry := s.store.Grid()
	status := "normal"
	if entry.Reading.Price < 0.30 {
		status = "günstig"
	}

	writeJSON(w, http.StatusOK, GridCurrentResponse{
		Timestamp:  entry.Reading.Timestamp.UTC().Format(time.RFC3339),
		Price:      entry.Reading.Price,
		CO2:        entry.Reading.CO2,
		EnergyMix:  entry.Reading.EnergyMix,
		Status:     status,
		IsFallback: entry.IsFallback,
	})
}

// gridForecastHandler serves the derived price forecast.
func (s *Server) gridForecastHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hours := parseHours(r, forecast.DefaultHours)
	location := r.URL.Query().Get("location")
	if location == "" {
		location = "München"
	}

	points := s.forecaster.Series(hours)
	writeJSON(w, http.StatusOK, ForecastResponse{
		Forecast: points,
		Hours:    len(points),
		Location: location,
	})
}

// gridStatsHandler serves aggregates over the retained readings.
func (s *Server) gridStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.hist.Stats()
	writeJSON(w, http.StatusOK, StatsResponse{
		Count:        stats.Count,
		AveragePrice: stats.AveragePrice,
		MinPrice:     stats.MinPrice,
		MaxPrice:     stats.MaxPrice,
		AverageCO2:   stats.AverageCO2,
		CurrentPrice: s.store.Grid().Reading.Price,
	})
}

// weatherCurrentHandler serves the latest cached weather reading.
func (s *Server) weatherCurrentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entry := s.store.Weather()
	writeJSON(w, http.StatusOK, entry.Reading)
}

// weatherForecastHandler fetches a live weather forecast.
func (s *Server) weatherForecastHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	hours := parseHours(r, 24)
	points, err := s.weatherSrc.Forecast(r.Context(), hours)
	if err != nil {
		s.logger.Warn("weather forecast fetch failed", "error", err)
		http.Error(w, "Weather forecast unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, WeatherForecastResponse{
		Forecast: points,
		Hours:    hours,
	})
}

// devicesHandler lists the simulated smart home devices.
func (s *Server) devicesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		http.Error(w, "Device catalog unavailable", http.StatusServiceUnavailable)
		return
	}

	list, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Error("device list failed", "error", err)
		http.Error(w, "Failed to list devices", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// deviceRecommendationHandler serves /api/devices/{id}/recommendation.
func (s *Server) deviceRecommendationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.catalog == nil {
		http.Error(w, "Device catalog unavailable", http.StatusServiceUnavailable)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[1] != "recommendation" {
		http.NotFound(w, r)
		return
	}
	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		http.Error(w, "Invalid device id", http.StatusBadRequest)
		return
	}

	device, err := s.catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, devices.ErrNotFound) {
			http.Error(w, "Device not found", http.StatusNotFound)
			return
		}
		s.logger.Error("device lookup failed", "id", id, "error", err)
		http.Error(w, "Failed to load device", http.StatusInternalServerError)
		return
	}

	points := s.forecaster.Series(forecast.DefaultHours)
	rec := devices.Recommend(device, s.store.Grid().Reading.Price, points)
	writeJSON(w, http.StatusOK, rec)
}

// askHandler routes assistant queries.
func (s *Server) askHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		http.Error(w, "query required", http.StatusBadRequest)
		return
	}

	answer := s.assistant.Ask(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, AskResponse{
		Answer:           answer.Text,
		Mode:             answer.Mode,
		ProcessingTimeMs: answer.Elapsed.Milliseconds(),
	})
}

func parseHours(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("hours")
	if raw == "" {
		return fallback
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return hours
}
