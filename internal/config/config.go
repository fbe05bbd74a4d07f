// Package config loads crosswalk configuration from a YAML file with
// environment-variable overrides. Every resolution tunable lives here;
// resolvers receive them explicitly at construction and never read
// configuration themselves.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sydlexius/crosswalk/internal/resolve"
)

// Config holds all application configuration.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Logging    LoggingConfig    `yaml:"logging"`
	Aliases    AliasConfig      `yaml:"aliases"`
	Resolution ResolutionConfig `yaml:"resolution"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path,omitempty"`
}

// AliasConfig points at the alias table file, if any.
type AliasConfig struct {
	Path string `yaml:"path,omitempty"`
}

// ResolutionConfig holds the decision-policy tunables. Durations are
// YAML strings in time.ParseDuration form ("3h", "24h").
type ResolutionConfig struct {
	AcceptThreshold    int    `yaml:"accept_threshold"`
	AmbiguityMargin    int    `yaml:"ambiguity_margin"`
	TopCandidates      int    `yaml:"top_candidates"`
	StartTimeTolerance string `yaml:"start_time_tolerance"`
	GameDateWindow     string `yaml:"game_date_window"`
	AbbrevEditDistance int    `yaml:"abbrev_edit_distance"`
}

// Default returns a Config matching resolve.DefaultThresholds.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "/data/crosswalk.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Resolution: ResolutionConfig{
			AcceptThreshold:    85,
			AmbiguityMargin:    10,
			TopCandidates:      3,
			StartTimeTolerance: "3h",
			GameDateWindow:     "24h",
			AbbrevEditDistance: 1,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Thresholds converts the resolution section into the structure the
// resolvers take. Call only after Load has validated the durations.
func (c *Config) Thresholds() resolve.Thresholds {
	tol, _ := time.ParseDuration(c.Resolution.StartTimeTolerance)
	window, _ := time.ParseDuration(c.Resolution.GameDateWindow)
	return resolve.Thresholds{
		AcceptThreshold:    c.Resolution.AcceptThreshold,
		AmbiguityMargin:    c.Resolution.AmbiguityMargin,
		TopCandidates:      c.Resolution.TopCandidates,
		StartTimeTolerance: tol,
		GameDateWindow:     window,
		AbbrevEditDistance: c.Resolution.AbbrevEditDistance,
	}
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("CW_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("CW_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("CW_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("CW_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
	if v := os.Getenv("CW_ALIASES_PATH"); v != "" {
		c.Aliases.Path = v
	}
	if v := os.Getenv("CW_ACCEPT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resolution.AcceptThreshold = n
		}
	}
	if v := os.Getenv("CW_AMBIGUITY_MARGIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Resolution.AmbiguityMargin = n
		}
	}
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Resolution.AcceptThreshold < 0 || c.Resolution.AcceptThreshold > 100 {
		return fmt.Errorf("accept_threshold must be in [0,100], got %d", c.Resolution.AcceptThreshold)
	}
	if c.Resolution.AmbiguityMargin < 0 || c.Resolution.AmbiguityMargin > 100 {
		return fmt.Errorf("ambiguity_margin must be in [0,100], got %d", c.Resolution.AmbiguityMargin)
	}
	if c.Resolution.AbbrevEditDistance < 0 {
		return fmt.Errorf("abbrev_edit_distance must be >= 0, got %d", c.Resolution.AbbrevEditDistance)
	}
	if _, err := time.ParseDuration(c.Resolution.StartTimeTolerance); err != nil {
		return fmt.Errorf("start_time_tolerance: %w", err)
	}
	if _, err := time.ParseDuration(c.Resolution.GameDateWindow); err != nil {
		return fmt.Errorf("game_date_window: %w", err)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}
