package forecast

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/store"
)

func TestSeriesLengthAndSpacing(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 41, 13, 0, time.UTC)
	for hours := 1; hours <= 48; hours++ {
		points := seriesFrom(0.30, 320, now, hours)
		if len(points) != hours {
			t.Fatalf("hours=%d: got %d points", hours, len(points))
		}
		for i := 1; i < len(points); i++ {
			gap := points[i].Timestamp.Sub(points[i-1].Timestamp)
			if gap != time.Hour {
				t.Fatalf("hours=%d: gap %v between points %d and %d", hours, gap, i-1, i)
			}
		}
	}
}

func TestSeriesStartsAtNextFullHour(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 41, 13, 0, time.UTC)
	points := seriesFrom(0.30, 320, now, 3)
	want := time.Date(2026, 3, 12, 10, 0, 0, 0, time.UTC)
	if !points[0].Timestamp.Equal(want) {
		t.Errorf("Expected first point at %v, got %v", want, points[0].Timestamp)
	}
}

func TestSeriesDeterminism(t *testing.T) {
	now := time.Date(2026, 3, 12, 9, 41, 13, 0, time.UTC)
	a := seriesFrom(0.2855, 310, now, 24)
	b := seriesFrom(0.2855, 310, now.Add(20*time.Second), 24)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs between polls within the same hour: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSeriesClamping(t *testing.T) {
	now := time.Now().UTC()
	if got := len(seriesFrom(0.30, 320, now, 0)); got != DefaultHours {
		t.Errorf("Expected default %d points for hours=0, got %d", DefaultHours, got)
	}
	if got := len(seriesFrom(0.30, 320, now, 500)); got != MaxHours {
		t.Errorf("Expected clamp to %d points, got %d", MaxHours, got)
	}
}

func TestSeriesFromDegradedStore(t *testing.T) {
	// A store that never saw a successful fetch still yields a full
	// series from the static fallback reading.
	s := store.New(nil, nil, slog.Default())
	g := NewGenerator(s)
	points := g.Series(24)
	if len(points) != 24 {
		t.Fatalf("Expected 24 points from fallback data, got %d", len(points))
	}
	for _, p := range points {
		if p.Price <= 0 {
			t.Fatalf("non-positive price in degraded forecast: %+v", p)
		}
	}
}

func TestCheapestAndMostExpensive(t *testing.T) {
	now := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	points := seriesFrom(0.30, 320, now, 24)

	cheapest, ok := Cheapest(points)
	if !ok {
		t.Fatal("Expected a cheapest point")
	}
	expensive, _ := MostExpensive(points)
	if cheapest.Price >= expensive.Price {
		t.Errorf("cheapest %v not below most expensive %v", cheapest.Price, expensive.Price)
	}
	// The curve bottoms out at 03:00 and peaks at 19:00.
	if cheapest.Timestamp.Hour() != 3 {
		t.Errorf("Expected cheapest hour 3, got %d", cheapest.Timestamp.Hour())
	}
	if expensive.Timestamp.Hour() != 19 {
		t.Errorf("Expected most expensive hour 19, got %d", expensive.Timestamp.Hour())
	}
}

func TestGreenest(t *testing.T) {
	now := time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	points := seriesFrom(0.30, 320, now, 24)
	greenest, ok := Greenest(points)
	if !ok {
		t.Fatal("Expected a greenest point")
	}
	if greenest.Timestamp.Hour() != 13 {
		t.Errorf("Expected greenest hour 13, got %d", greenest.Timestamp.Hour())
	}
}

func TestEmptySeriesHelpers(t *testing.T) {
	if _, ok := Cheapest(nil); ok {
		t.Error("Expected no cheapest point for empty series")
	}
	if _, ok := Greenest(nil); ok {
		t.Error("Expected no greenest point for empty series")
	}
}
