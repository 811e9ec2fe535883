package forecast

import (
	"math"
	"time"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/store"
)

const (
	// DefaultHours is the horizon used when the caller does not ask for
	// a specific one.
	DefaultHours = 24
	// MaxHours bounds the horizon; requests beyond it are clamped.
	MaxHours = 48
)

// Point is one forecast step.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Hour      string    `json:"hour"`
	Price     float64   `json:"price"`
	CO2       float64   `json:"co2"`
}

// priceCurve holds the typical German day-ahead price shape as a
// multiplier per hour of day: cheap night hours, a morning ramp, a midday
// solar dip and the evening peak.
var priceCurve = [24]float64{
	0.82, 0.78, 0.76, 0.75, 0.77, 0.84, // 00-05 night
	0.95, 1.10, 1.15, 1.08, 1.00, 0.92, // 06-11 morning ramp
	0.85, 0.80, 0.78, 0.82, 0.90, 1.05, // 12-17 solar dip
	1.20, 1.22, 1.15, 1.05, 0.95, 0.88, // 18-23 evening peak
}

// co2Curve mirrors the price shape loosely: midday solar pushes the
// intensity down, the evening peak pulls fossil generation in.
var co2Curve = [24]float64{
	1.05, 1.06, 1.07, 1.07, 1.06, 1.03,
	0.98, 0.95, 0.92, 0.88, 0.84, 0.80,
	0.76, 0.74, 0.75, 0.78, 0.85, 0.95,
	1.05, 1.10, 1.12, 1.10, 1.08, 1.06,
}

// Generator derives a short-horizon price series from the latest cached
// reading. It performs no I/O and no unseeded randomness: the same cached
// reading and the same clock hour always produce the same series.
type Generator struct {
	store *store.Store
}

// NewGenerator creates a forecast generator reading from the given store.
func NewGenerator(s *store.Store) *Generator {
	return &Generator{store: s}
}

// Series returns exactly `hours` points spaced one hour apart, starting at
// the next full hour. hours is clamped into [1, MaxHours]; zero or
// negative requests get the default horizon. Degraded upstream data never
// shortens the series since the cached reading always carries a price.
func (g *Generator) Series(hours int) []Point {
	entry := g.store.Grid()
	return seriesFrom(entry.Reading.Price, entry.Reading.CO2, time.Now().UTC(), hours)
}

func seriesFrom(basePrice, baseCO2 float64, now time.Time, hours int) []Point {
	if hours <= 0 {
		hours = DefaultHours
	}
	if hours > MaxHours {
		hours = MaxHours
	}

	start := now.Truncate(time.Hour).Add(time.Hour)

	points := make([]Point, hours)
	for i := range points {
		ts := start.Add(time.Duration(i) * time.Hour)
		hour := ts.Hour()
		points[i] = Point{
			Timestamp: ts,
			Hour:      ts.Format("15:04"),
			Price:     round4(basePrice * priceCurve[hour]),
			CO2:       round1(baseCO2 * co2Curve[hour]),
		}
	}
	return points
}

// Cheapest returns the point with the lowest price, or false for an empty
// series.
func Cheapest(points []Point) (Point, bool) {
	return minBy(points, func(p Point) float64 { return p.Price })
}

// MostExpensive returns the point with the highest price.
func MostExpensive(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	best := points[0]
	for _, p := range points[1:] {
		if p.Price > best.Price {
			best = p
		}
	}
	return best, true
}

// Greenest returns the point with the lowest CO2 estimate.
func Greenest(points []Point) (Point, bool) {
	return minBy(points, func(p Point) float64 { return p.CO2 })
}

func minBy(points []Point, key func(Point) float64) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	best := points[0]
	for _, p := range points[1:] {
		if key(p) < key(best) {
			best = p
		}
	}
	return best, true
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
