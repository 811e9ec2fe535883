package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/history"
	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/store"
)

type fakeGrid struct {
	price float64
	mix   map[string]float64
	err   error
}

func (f *fakeGrid) CurrentPrice(ctx context.Context) (float64, error) {
	return f.price, f.err
}

func (f *fakeGrid) EnergyMix(ctx context.Context) (map[string]float64, error) {
	return f.mix, f.err
}

func newTestScheduler(t *testing.T, grid store.GridFetcher) (*Scheduler, *store.Store, *history.History) {
	t.Helper()
	logger := slog.Default()
	st := store.New(grid, nil, logger)
	h := history.New("", "", 0, 8, logger)
	sc, err := New(st, h, 15*time.Second, 10*time.Minute, logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sc, st, h
}

func TestGridRefreshAppendsHistory(t *testing.T) {
	grid := &fakeGrid{price: 0.25, mix: map[string]float64{"solar": 60, "wind": 40}}
	sc, st, h := newTestScheduler(t, grid)

	sc.refreshGrid()

	if st.Grid().IsFallback {
		t.Fatal("Expected live entry after refresh")
	}
	if h.Len() != 1 {
		t.Fatalf("Expected 1 history record, got %d", h.Len())
	}
	stats := h.Stats()
	if stats.MinPrice != 0.25 {
		t.Errorf("Expected recorded price 0.25, got %v", stats.MinPrice)
	}
}

func TestFailedRefreshSkipsHistory(t *testing.T) {
	grid := &fakeGrid{err: errors.New("upstream down")}
	sc, _, h := newTestScheduler(t, grid)

	sc.refreshGrid()

	if h.Len() != 0 {
		t.Errorf("Expected no history record after failed refresh, got %d", h.Len())
	}
}

func TestFallbackEntryNeverRecorded(t *testing.T) {
	// The first refresh fails, the store keeps serving its fallback
	// entry; that entry must not leak into the history window.
	grid := &fakeGrid{err: errors.New("upstream down")}
	sc, st, h := newTestScheduler(t, grid)

	sc.refreshGrid()
	sc.refreshGrid()

	if !st.Grid().IsFallback {
		t.Fatal("Expected fallback entry to survive failed refreshes")
	}
	if h.Len() != 0 {
		t.Errorf("Expected empty history, got %d records", h.Len())
	}
}

func TestStartStop(t *testing.T) {
	grid := &fakeGrid{price: 0.25, mix: map[string]float64{"solar": 100}}
	sc, _, _ := newTestScheduler(t, grid)
	sc.Start()
	sc.Stop()
}
