// Package config provides configuration management for IDRO.
// Configurations are loaded from TOML files with XDG-compliant paths.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds the complete application configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Sync      SyncConfig      `toml:"sync"`
	Responder ResponderConfig `toml:"responder"`
	Estimator EstimatorConfig `toml:"estimator"`
	ML        MLConfig        `toml:"ml"`
	Geocode   GeocodeConfig   `toml:"geocode"`
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Logging   LoggingConfig   `toml:"logging"`
}

// Duration is a time.Duration written as a string ("3s", "1m30s") in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// APIConfig points the console at the backend.
type APIConfig struct {
	BaseURL string   `toml:"base_url"`
	Timeout Duration `toml:"timeout"`
}

// SyncConfig controls the poll intervals of the sync poller.
type SyncConfig struct {
	AlertsInterval Duration `toml:"alerts_interval"`
	CampsInterval  Duration `toml:"camps_interval"`
}

// ResponderConfig identifies the responding unit.
type ResponderConfig struct {
	TeamName string `toml:"team_name"`
}

// EstimatorConfig holds the tunables of the resource demand estimator.
type EstimatorConfig struct {
	PeoplePerBed        int     `toml:"people_per_bed"`
	PeoplePerVolunteer  int     `toml:"people_per_volunteer"`
	InjuryWeight        float64 `toml:"injury_weight"`
	LowStockWeight      float64 `toml:"low_stock_weight"`
	CriticalStockWeight float64 `toml:"critical_stock_weight"`
	MaxConcurrency      int     `toml:"max_concurrency"`
}

// MLConfig points the estimator at the optional prediction service.
type MLConfig struct {
	Enabled bool     `toml:"enabled"`
	URL     string   `toml:"url"`
	Timeout Duration `toml:"timeout"`
}

// GeocodeConfig controls reverse geocoding of placeholder locations.
type GeocodeConfig struct {
	Enabled bool     `toml:"enabled"`
	APIKey  string   `toml:"api_key"`
	Timeout Duration `toml:"timeout"`
}

// ServerConfig controls the reference backend HTTP listener.
type ServerConfig struct {
	ListenAddr     string   `toml:"listen_addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// DatabaseConfig controls SQLite database settings.
type DatabaseConfig struct {
	Path                string `toml:"path"`
	BackupSchedule      string `toml:"backup_schedule"`
	BackupRetentionDays int    `toml:"backup_retention_days"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level LogLevel `toml:"level"`
	File  string   `toml:"file"`
}

// LogLevel defines logging verbosity.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	if err := c.API.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("api: %w", err))
	}

	if err := c.Sync.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("sync: %w", err))
	}

	if err := c.Responder.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("responder: %w", err))
	}

	if err := c.Estimator.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("estimator: %w", err))
	}

	if err := c.ML.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("ml: %w", err))
	}

	if err := c.Geocode.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("geocode: %w", err))
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the API configuration is valid.
func (a *APIConfig) Validate() error {
	var errs []error

	if a.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	} else if u, err := url.Parse(a.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid base_url: %s", a.BaseURL))
	}

	if a.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the sync configuration is valid.
func (s *SyncConfig) Validate() error {
	var errs []error

	if s.AlertsInterval.Duration <= 0 {
		errs = append(errs, errors.New("alerts_interval must be positive"))
	}

	if s.CampsInterval.Duration <= 0 {
		errs = append(errs, errors.New("camps_interval must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the responder configuration is valid.
func (r *ResponderConfig) Validate() error {
	if strings.TrimSpace(r.TeamName) == "" {
		return errors.New("team_name is required")
	}
	return nil
}

// Validate checks that the estimator configuration is valid.
func (e *EstimatorConfig) Validate() error {
	var errs []error

	if e.PeoplePerBed < 1 {
		errs = append(errs, errors.New("people_per_bed must be positive"))
	}

	if e.PeoplePerVolunteer < 1 {
		errs = append(errs, errors.New("people_per_volunteer must be positive"))
	}

	if e.InjuryWeight < 0 || e.LowStockWeight < 0 || e.CriticalStockWeight < 0 {
		errs = append(errs, errors.New("risk weights must be non-negative"))
	}

	if e.MaxConcurrency < 1 {
		errs = append(errs, errors.New("max_concurrency must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the ML configuration is valid.
func (m *MLConfig) Validate() error {
	if !m.Enabled {
		return nil
	}

	var errs []error

	if m.URL == "" {
		errs = append(errs, errors.New("url is required when enabled"))
	}

	if m.Timeout.Duration <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the geocode configuration is valid.
func (g *GeocodeConfig) Validate() error {
	if g.Enabled && g.Timeout.Duration <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// Validate checks that the server configuration is valid.
func (s *ServerConfig) Validate() error {
	if s.ListenAddr == "" {
		return errors.New("listen_addr is required")
	}
	return nil
}

// Validate checks that the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	var errs []error

	if d.Path == "" {
		errs = append(errs, errors.New("path is required"))
	}

	if d.BackupSchedule != "" {
		if _, err := cron.ParseStandard(d.BackupSchedule); err != nil {
			errs = append(errs, fmt.Errorf("invalid backup_schedule: %w", err))
		}
	}

	if d.BackupRetentionDays < 0 {
		errs = append(errs, errors.New("backup_retention_days must be non-negative"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Validate checks that the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	validLevels := map[LogLevel]bool{
		LogLevelDebug: true,
		LogLevelInfo:  true,
		LogLevelWarn:  true,
		LogLevelError: true,
	}

	if !validLevels[l.Level] && l.Level != "" {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://localhost:8085/api",
			Timeout: Duration{5 * time.Second},
		},
		Sync: SyncConfig{
			AlertsInterval: Duration{3 * time.Second},
			CampsInterval:  Duration{10 * time.Second},
		},
		Responder: ResponderConfig{
			TeamName: "NDRF-Alpha",
		},
		Estimator: EstimatorConfig{
			PeoplePerBed:        1,
			PeoplePerVolunteer:  50,
			InjuryWeight:        0.6,
			LowStockWeight:      0.15,
			CriticalStockWeight: 0.3,
			MaxConcurrency:      4,
		},
		ML: MLConfig{
			Enabled: false,
			URL:     "http://localhost:5000",
			Timeout: Duration{3 * time.Second},
		},
		Geocode: GeocodeConfig{
			Enabled: false,
			Timeout: Duration{3 * time.Second},
		},
		Server: ServerConfig{
			ListenAddr:     ":8085",
			AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Path:                "idro.db",
			BackupSchedule:      "0 3 * * *",
			BackupRetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level: LogLevelInfo,
			File:  "logs/idro.log",
		},
	}
}
