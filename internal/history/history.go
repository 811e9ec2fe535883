package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/smard"
)

const redisKey = "energy:grid:history"

// Record is one retained grid observation.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	CO2       float64   `json:"co2"`
}

// Stats are aggregates over the rolling history window.
type Stats struct {
	Count        int     `json:"count"`
	AveragePrice float64 `json:"average_price"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`
	AverageCO2   float64 `json:"average_co2"`
}

// History is a bounded rolling buffer of grid readings. It always keeps
// an in-memory ring; when Redis is configured the ring is mirrored there
// so the window survives restarts. Redis being down only costs the
// mirror, never an append.
type History struct {
	mu       sync.RWMutex
	ring     []Record
	capacity int

	rdb    *redis.Client // nil when not configured
	logger *slog.Logger
}

// New creates a history buffer. redisAddr may be empty for memory-only
// operation.
func New(redisAddr, redisPassword string, redisDB, capacity int, logger *slog.Logger) *History {
	h := &History{
		capacity: capacity,
		logger:   logger,
	}
	if capacity <= 0 {
		h.capacity = 96
	}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, history is memory-only", "addr", redisAddr, "error", err)
		} else {
			h.rdb = rdb
			h.restore(ctx)
		}
	}
	return h
}

// restore loads the mirrored window from Redis into the ring.
func (h *History) restore(ctx context.Context) {
	raw, err := h.rdb.LRange(ctx, redisKey, 0, int64(h.capacity)-1).Result()
	if err != nil {
		h.logger.Warn("history restore failed", "error", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			continue
		}
		h.ring = append(h.ring, rec)
	}
	h.logger.Info("history restored from redis", "records", len(h.ring))
}

// Append adds a reading to the window, evicting the oldest beyond
// capacity.
func (h *History) Append(ctx context.Context, reading smard.GridReading) {
	rec := Record{Timestamp: reading.Timestamp, Price: reading.Price, CO2: reading.CO2}

	h.mu.Lock()
	h.ring = append(h.ring, rec)
	if len(h.ring) > h.capacity {
		h.ring = h.ring[len(h.ring)-h.capacity:]
	}
	h.mu.Unlock()

	if h.rdb == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return
	}
	pipe := h.rdb.Pipeline()
	pipe.RPush(ctx, redisKey, payload)
	pipe.LTrim(ctx, redisKey, int64(-h.capacity), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		h.logger.Warn("history mirror write failed", "error", err)
	}
}

// Stats aggregates the current window. An empty window yields zero stats.
func (h *History) Stats() Stats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.ring) == 0 {
		return Stats{}
	}

	s := Stats{
		Count:    len(h.ring),
		MinPrice: h.ring[0].Price,
		MaxPrice: h.ring[0].Price,
	}
	var priceSum, co2Sum float64
	for _, rec := range h.ring {
		priceSum += rec.Price
		co2Sum += rec.CO2
		if rec.Price < s.MinPrice {
			s.MinPrice = rec.Price
		}
		if rec.Price > s.MaxPrice {
			s.MaxPrice = rec.Price
		}
	}
	s.AveragePrice = round4(priceSum / float64(len(h.ring)))
	s.AverageCO2 = round1(co2Sum / float64(len(h.ring)))
	return s
}

// Len returns the current window size.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.ring)
}

// Close releases the Redis connection if one is held.
func (h *History) Close() error {
	if h.rdb != nil {
		return h.rdb.Close()
	}
	return nil
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
