package devices

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite"

	"github.com/ATOMICMBAG/Smart-Energy-Monitor/internal/forecast"
)

// ErrNotFound indicates an unknown device id.
var ErrNotFound = errors.New("devices: not found")

// Device is one simulated smart-home consumer.
type Device struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	PowerKWh     float64 `json:"power_kwh"`
	UsagePerWeek int     `json:"usage_per_week"`
	Flexible     bool    `json:"flexible"`
	Room         string  `json:"room"`
}

// Recommendation advises when to run a device given the price forecast.
type Recommendation struct {
	Device           string  `json:"device"`
	Recommendation   string  `json:"recommendation"` // "now" | "wait"
	BestTime         string  `json:"best_time"`
	CostNow          float64 `json:"cost_now"`
	CostBest         float64 `json:"cost_best"`
	PotentialSavings float64 `json:"potential_savings"`
}

// Catalog is the sqlite-backed device store, seeded with demo devices on
// first open.
type Catalog struct {
	db *sql.DB
}

// Open opens (and if needed creates and seeds) the catalog at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening device db: %w", err)
	}
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := c.seed(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) migrate() error {
	_, err := c.db.Exec(`
		CREATE TABLE IF NOT EXISTS devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			power_kwh REAL NOT NULL,
			usage_per_week INTEGER NOT NULL DEFAULT 2,
			flexible INTEGER NOT NULL DEFAULT 1,
			room TEXT
		)`)
	if err != nil {
		return fmt.Errorf("creating devices table: %w", err)
	}
	return nil
}

func (c *Catalog) seed() error {
	var count int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM devices`).Scan(&count); err != nil {
		return fmt.Errorf("counting devices: %w", err)
	}
	if count > 0 {
		return nil
	}

	seeds := []Device{
		{Name: "Waschmaschine", Type: "appliance", PowerKWh: 2.0, UsagePerWeek: 3, Flexible: true, Room: "bathroom"},
		{Name: "Geschirrspüler", Type: "appliance", PowerKWh: 1.5, UsagePerWeek: 4, Flexible: true, Room: "kitchen"},
		{Name: "E-Auto", Type: "vehicle", PowerKWh: 40.0, UsagePerWeek: 7, Flexible: true, Room: "garage"},
		{Name: "Wärmepumpe", Type: "appliance", PowerKWh: 8.0, UsagePerWeek: 7, Flexible: false, Room: "basement"},
	}
	for _, d := range seeds {
		_, err := c.db.Exec(
			`INSERT INTO devices (name, type, power_kwh, usage_per_week, flexible, room) VALUES (?, ?, ?, ?, ?, ?)`,
			d.Name, d.Type, d.PowerKWh, d.UsagePerWeek, boolToInt(d.Flexible), d.Room,
		)
		if err != nil {
			return fmt.Errorf("seeding device %s: %w", d.Name, err)
		}
	}
	return nil
}

// List returns all devices.
func (c *Catalog) List(ctx context.Context) ([]Device, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, name, type, power_kwh, usage_per_week, flexible, room FROM devices ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		var flexible int
		if err := rows.Scan(&d.ID, &d.Name, &d.Type, &d.PowerKWh, &d.UsagePerWeek, &flexible, &d.Room); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		d.Flexible = flexible != 0
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// Get returns one device by id.
func (c *Catalog) Get(ctx context.Context, id int64) (*Device, error) {
	var d Device
	var flexible int
	err := c.db.QueryRowContext(ctx,
		`SELECT id, name, type, power_kwh, usage_per_week, flexible, room FROM devices WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.Type, &d.PowerKWh, &d.UsagePerWeek, &flexible, &d.Room)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading device %d: %w", id, err)
	}
	d.Flexible = flexible != 0
	return &d, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Recommend compares running the device now against the cheapest forecast
// hour. Savings under 5 cents are not worth waiting for.
func Recommend(d *Device, currentPrice float64, points []forecast.Point) Recommendation {
	costNow := round2(currentPrice * d.PowerKWh)

	cheapest, ok := forecast.Cheapest(points)
	if !ok {
		return Recommendation{Device: d.Name, Recommendation: "now", BestTime: "N/A", CostNow: costNow}
	}

	costBest := round2(cheapest.Price * d.PowerKWh)
	savings := round2(costNow - costBest)

	rec := "wait"
	if savings < 0.05 {
		rec = "now"
	}
	return Recommendation{
		Device:           d.Name,
		Recommendation:   rec,
		BestTime:         cheapest.Hour,
		CostNow:          costNow,
		CostBest:         costBest,
		PotentialSavings: savings,
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
