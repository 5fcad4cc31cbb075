package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tutorbook/internal/availability"
)

type Config struct {
	Server struct {
		Port   int    `yaml:"port"`
		APIKey string `yaml:"api_key"`
	} `yaml:"server"`

	Backend struct {
		BaseURL         string  `yaml:"base_url"`
		Token           string  `yaml:"token"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		RatePerSecond   float64 `yaml:"rate_per_second"`
		Burst           int     `yaml:"burst"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
	} `yaml:"backend"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		// Timezone the student's wall-clock times are read in. Empty means local.
		Timezone            string `yaml:"timezone"`
		ValidateManualOrder *bool  `yaml:"validate_manual_order"`
		DraftTimeoutMinutes int    `yaml:"draft_timeout_minutes"`
	} `yaml:"booking"`

	Availability struct {
		CatalogPath string `yaml:"catalog_path"`
		// SaveShape is "legacy_array" (default) or "object".
		SaveShape string `yaml:"save_shape"`
	} `yaml:"availability"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		Path          string `yaml:"path"`
		IntervalHours int    `yaml:"interval_hours"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	LogLevel string `yaml:"log_level"`
}

// Load reads the YAML config at path, expanding ${ENV_VAR} placeholders.
// Variables from a .env file in the working directory are loaded first.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	// .env is optional.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}

// Parse decodes YAML config data and applies defaults.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:5000/api"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/tutorbook.db"
	}
	if cfg.Backup.Path == "" {
		cfg.Backup.Path = "backups"
	}
	if cfg.Backup.IntervalHours <= 0 {
		cfg.Backup.IntervalHours = 24
	}
	if cfg.Backup.RetentionDays <= 0 {
		cfg.Backup.RetentionDays = 14
	}
	if cfg.Availability.CatalogPath == "" {
		cfg.Availability.CatalogPath = "configs/slots.yaml"
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// EnsureDirs creates the directory holding the database file.
func (c *Config) EnsureDirs() error {
	return os.MkdirAll(filepath.Dir(c.Database.Path), 0o755)
}

// Location returns the timezone booking times are interpreted in.
func (c *Config) Location() (*time.Location, error) {
	if c.Booking.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("booking.timezone: %w", err)
	}
	return loc, nil
}

// StrictManualOrder reports whether manually entered times must be ordered.
func (c *Config) StrictManualOrder() bool {
	if c.Booking.ValidateManualOrder == nil {
		return true
	}
	return *c.Booking.ValidateManualOrder
}

func (c *Config) DraftTimeout() time.Duration {
	if c.Booking.DraftTimeoutMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Booking.DraftTimeoutMinutes) * time.Minute
}

func (c *Config) BackendTimeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Backend.CacheTTLSeconds) * time.Second
}

func (c *Config) BackupInterval() time.Duration {
	return time.Duration(c.Backup.IntervalHours) * time.Hour
}

func (c *Config) BackupRetention() time.Duration {
	return time.Duration(c.Backup.RetentionDays) * 24 * time.Hour
}

// SaveShape returns the shape availability is written back in.
func (c *Config) SaveShape() availability.Shape {
	if c.Availability.SaveShape == "object" {
		return availability.ShapeObject
	}
	return availability.ShapeLegacyArray
}
