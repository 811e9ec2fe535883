package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/assistant"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/config"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/devices"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/forecast"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/history"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/intent"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/logging"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/scheduler"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/server"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/smard"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/store"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/weather"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the YAML config file")
	flag.Parse()

	logger := logging.WithComponent("main")
	logger.Info("Starting Smart Energy Monitor", "version", version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	// Upstream gateways
	gridClient := smard.NewClient(cfg.Smard.BaseURL, cfg.Smard.GetTimeout(), logging.WithComponent("smard"))
	weatherClient := weather.NewClient(
		cfg.Weather.BaseURL, cfg.Weather.APIKey,
		cfg.Weather.Latitude, cfg.Weather.Longitude,
		cfg.Weather.GetTimeout(), logging.WithComponent("weather"),
	)

	// Cache, history and derived data
	st := store.New(gridClient, weatherClient, logging.WithComponent("store"))
	hist := history.New(
		cfg.History.RedisAddr, cfg.History.RedisPassword, cfg.History.RedisDB,
		cfg.History.GetCapacity(), logging.WithComponent("history"),
	)
	forecaster := forecast.NewGenerator(st)

	// Device catalog. The API stays up without it, devices endpoints
	// answer 503 instead.
	catalog, err := devices.Open(cfg.Devices.GetDBPath())
	if err != nil {
		logger.Warn("Device catalog unavailable", "path", cfg.Devices.GetDBPath(), "error", err)
		catalog = nil
	}

	// Assistant
	ollama := assistant.NewOllamaClient(cfg.Ollama.URL, cfg.Ollama.Model, cfg.Ollama.GetTimeout())
	as := assistant.New(
		intent.Default(), ollama, st, forecaster, hist,
		cfg.Assistant.GetConfidenceThreshold(), logging.WithComponent("assistant"),
	)

	if err := ollama.Health(context.Background()); err != nil {
		logger.Warn("Ollama unreachable, escalation will use fallback answers", "url", cfg.Ollama.URL, "error", err)
	}

	// Prime the cache so the first requests already see live data when
	// the upstreams are reachable.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := st.Refresh(ctx, store.KindGrid); err != nil {
			logger.Warn("Initial grid fetch failed, serving fallback", "error", err)
		}
		if err := st.Refresh(ctx, store.KindWeather); err != nil {
			logger.Warn("Initial weather fetch failed, serving fallback", "error", err)
		}
	}()

	sched, err := scheduler.New(
		st, hist,
		cfg.Smard.GetRefreshInterval(), cfg.Weather.GetRefreshInterval(),
		logging.WithComponent("scheduler"),
	)
	if err != nil {
		logger.Error("Failed to create scheduler", "error", err)
		os.Exit(1)
	}
	sched.Start()

	srv := server.New(cfg, st, hist, forecaster, weatherClient, catalog, as, logging.WithComponent("server"))
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sched.Stop()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if catalog != nil {
		if err := catalog.Close(); err != nil {
			logger.Error("Failed to close device catalog", "error", err)
		}
	}
	if err := hist.Close(); err != nil {
		logger.Error("Failed to close history", "error", err)
	}

	logger.Info("Shutdown complete")
}
