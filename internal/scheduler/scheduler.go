package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/history"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/store"
)

// Scheduler drives the periodic background refreshes, one job per data
// kind. Jobs run concurrently with request serving; the store's
// single-flight guarantees a job never duplicates an in-flight request
// refresh.
type Scheduler struct {
	cron   *cron.Cron
	store  *store.Store
	hist   *history.History
	logger *slog.Logger
}

// New creates a scheduler with refresh jobs for grid and weather data.
func New(s *store.Store, h *history.History, gridEvery, weatherEvery time.Duration, logger *slog.Logger) (*Scheduler, error) {
	sc := &Scheduler{
		cron:   cron.New(),
		store:  s,
		hist:   h,
		logger: logger,
	}

	if _, err := sc.cron.AddFunc(fmt.Sprintf("@every %s", gridEvery), sc.refreshGrid); err != nil {
		return nil, fmt.Errorf("schedule grid refresh: %w", err)
	}
	if _, err := sc.cron.AddFunc(fmt.Sprintf("@every %s", weatherEvery), sc.refreshWeather); err != nil {
		return nil, fmt.Errorf("schedule weather refresh: %w", err)
	}
	return sc, nil
}

// Start begins the background refresh loops.
func (s *Scheduler) Start() {
	s.logger.Info("background refresh scheduler starting")
	s.cron.Start()
}

// Stop halts the loops and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("background refresh scheduler stopped")
}

func (s *Scheduler) refreshGrid() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.Refresh(ctx, store.KindGrid); err != nil {
		s.logger.Warn("grid refresh cycle failed", "error", err)
		return
	}
	entry := s.store.Grid()
	if !entry.IsFallback && s.hist != nil {
		s.hist.Append(ctx, entry.Reading)
	}
}

func (s *Scheduler) refreshWeather() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.store.Refresh(ctx, store.KindWeather); err != nil {
		s.logger.Warn("weather refresh cycle failed", "error", err)
	}
}
