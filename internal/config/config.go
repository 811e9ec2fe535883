package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the energy monitor backend.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Smard     SmardConfig     `yaml:"smard"`
	Weather   WeatherConfig   `yaml:"weather"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Assistant AssistantConfig `yaml:"assistant"`
	History   HistoryConfig   `yaml:"history"`
	Devices   DevicesConfig   `yaml:"devices"`
}

// ServerConfig defines HTTP server settings.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// SmardConfig defines the SMARD.de upstream connection.
type SmardConfig struct {
	BaseURL         string `yaml:"base_url"`
	Timeout         string `yaml:"timeout"`
	RefreshInterval string `yaml:"refresh_interval"`
}

// GetTimeout returns the upstream request timeout.
func (c *SmardConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// GetRefreshInterval returns the grid data refresh cadence.
func (c *SmardConfig) GetRefreshInterval() time.Duration {
	return parseDuration(c.RefreshInterval, 15*time.Second)
}

// WeatherConfig defines the OpenWeatherMap upstream connection.
type WeatherConfig struct {
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	Latitude        float64 `yaml:"latitude"`
	Longitude       float64 `yaml:"longitude"`
	Timeout         string  `yaml:"timeout"`
	RefreshInterval string  `yaml:"refresh_interval"`
}

// GetTimeout returns the upstream request timeout.
func (c *WeatherConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

// GetRefreshInterval returns the weather refresh cadence.
func (c *WeatherConfig) GetRefreshInterval() time.Duration {
	return parseDuration(c.RefreshInterval, 10*time.Minute)
}

// OllamaConfig defines the generative backend connection.
type OllamaConfig struct {
	URL     string `yaml:"url"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// GetTimeout returns the escalation timeout. It must stay well under the
// HTTP server write timeout so a slow model never stalls the API.
func (o *OllamaConfig) GetTimeout() time.Duration {
	return parseDuration(o.Timeout, 10*time.Second)
}

// AssistantConfig tunes the rule-based answer path.
type AssistantConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// GetConfidenceThreshold returns the minimum classifier confidence for an
// instant answer.
func (a *AssistantConfig) GetConfidenceThreshold() float64 {
	if a.ConfidenceThreshold <= 0 || a.ConfidenceThreshold > 1 {
		return 0.6
	}
	return a.ConfidenceThreshold
}

// HistoryConfig defines the rolling reading history.
type HistoryConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	Capacity      int    `yaml:"capacity"`
}

// GetCapacity returns the bounded history length.
func (h *HistoryConfig) GetCapacity() int {
	if h.Capacity <= 0 {
		return 96
	}
	return h.Capacity
}

// DevicesConfig defines the device catalog storage.
type DevicesConfig struct {
	DBPath string `yaml:"db_path"`
}

// GetDBPath returns the sqlite file path for the device catalog.
func (d *DevicesConfig) GetDBPath() string {
	if d.DBPath == "" {
		return "energy-monitor.db"
	}
	return d.DBPath
}

// Load reads the YAML config from path and applies environment overrides.
// Secrets and endpoints can always be injected via environment so the file
// never has to contain credentials.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 8000, Host: "0.0.0.0"},
		Smard: SmardConfig{
			BaseURL: "https://www.smard.de/app",
		},
		Weather: WeatherConfig{
			BaseURL:   "https://api.openweathermap.org/data/2.5",
			Latitude:  48.1351,
			Longitude: 11.5820,
		},
		Ollama: OllamaConfig{
			URL:   "http://127.0.0.1:11434",
			Model: "falcon3:3b",
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENWEATHER_API_KEY"); v != "" {
		cfg.Weather.APIKey = v
	}
	if v := os.Getenv("SMARD_BASE_URL"); v != "" {
		cfg.Smard.BaseURL = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.Ollama.URL = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.Ollama.Model = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.History.RedisAddr = v
	}
}

// Validate checks the configuration for fatal errors. A config that fails
// validation must abort startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Smard.BaseURL == "" {
		return fmt.Errorf("smard base_url is required")
	}
	if c.Weather.BaseURL == "" {
		return fmt.Errorf("weather base_url is required")
	}
	if c.Ollama.URL == "" {
		return fmt.Errorf("ollama url is required")
	}
	if c.Assistant.ConfidenceThreshold < 0 || c.Assistant.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be within [0,1], got %v", c.Assistant.ConfidenceThreshold)
	}
	if c.Smard.GetRefreshInterval() < time.Second {
		return fmt.Errorf("smard refresh_interval below 1s")
	}
	return nil
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
