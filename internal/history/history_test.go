package history

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/smard"
)

func reading(price, co2 float64) smard.GridReading {
	return smard.GridReading{Timestamp: time.Now().UTC(), Price: price, CO2: co2}
}

func TestStatsEmptyWindow(t *testing.T) {
	h := New("", "", 0, 10, slog.Default())
	s := h.Stats()
	assert.Equal(t, 0, s.Count)
	assert.Equal(t, 0.0, s.AveragePrice)
}

func TestAppendAndStats(t *testing.T) {
	h := New("", "", 0, 10, slog.Default())
	ctx := context.Background()

	h.Append(ctx, reading(0.20, 300))
	h.Append(ctx, reading(0.30, 400))
	h.Append(ctx, reading(0.40, 200))

	s := h.Stats()
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 0.3, s.AveragePrice)
	assert.Equal(t, 0.20, s.MinPrice)
	assert.Equal(t, 0.40, s.MaxPrice)
	assert.Equal(t, 300.0, s.AverageCO2)
}

func TestCapacityBound(t *testing.T) {
	h := New("", "", 0, 5, slog.Default())
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		h.Append(ctx, reading(float64(i), 100))
	}

	assert.Equal(t, 5, h.Len())
	s := h.Stats()
	// only the newest five (15..19) survive
	assert.Equal(t, 15.0, s.MinPrice)
	assert.Equal(t, 19.0, s.MaxPrice)
}

func TestZeroCapacityDefaults(t *testing.T) {
	h := New("", "", 0, 0, slog.Default())
	assert.Equal(t, 96, h.capacity)
}
