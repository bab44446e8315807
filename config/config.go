/*
Package config loads the exit engine configuration.

SOURCES (later wins):
  1. YAML file passed with -config
  2. Environment variables (DB_*, JWT_SECRET, EXTRACTION_*, LOG_*, ...)
  3. Defaults filled in by Validate for anything still empty

The defaults reproduce the hostel office rules: 300/day for 2-seater rooms,
200/day otherwise, one free day, medium risk from 7 days, high from 30,
Asia/Kolkata as the reference zone, 30s extraction timeout.

SEE ALSO:
  - cmd/server/main.go: consumes Config
  - rules/fee.go: FeeSchedule built from FeesConfig
*/
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Timezone   string           `yaml:"timezone"`
	Fees       FeesConfig       `yaml:"fees"`
	Risk       RiskConfig       `yaml:"risk"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "postgres"
	Path     string `yaml:"path"`   // sqlite only
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

// JWTConfig contains the bearer-token verification settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// ExtractionConfig configures the external structured-extraction service.
type ExtractionConfig struct {
	Provider       string  `yaml:"provider"` // static, openai, ollama, openrouter, custom
	Model          string  `yaml:"model"`
	Endpoint       string  `yaml:"endpoint"`
	APIKey         string  `yaml:"api_key"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	JSONMode       bool    `yaml:"json_mode"` // request response_format json_object
}

// FeesConfig holds per-day rates as decimal strings.
type FeesConfig struct {
	TwoSeaterPerDay string `yaml:"two_seater_per_day"`
	DefaultPerDay   string `yaml:"default_per_day"`
	FreeDays        int    `yaml:"free_days"`
}

// RiskConfig holds the duration thresholds in whole days.
type RiskConfig struct {
	MediumDays int `yaml:"medium_days"`
	HighDays   int `yaml:"high_days"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// Load reads configuration from a YAML file. An empty path skips the file
// and builds the config from the environment and defaults alone.
func Load(configPath string) (*Config, error) {
	var cfg Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables.
func (c *Config) overrideWithEnv() {
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}

	if val := os.Getenv("DB_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		c.Database.Path = val
	}
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Name = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	if val := os.Getenv("EXTRACTION_PROVIDER"); val != "" {
		c.Extraction.Provider = val
	}
	if val := os.Getenv("EXTRACTION_MODEL"); val != "" {
		c.Extraction.Model = val
	}
	if val := os.Getenv("EXTRACTION_ENDPOINT"); val != "" {
		c.Extraction.Endpoint = val
	}
	if val := os.Getenv("EXTRACTION_API_KEY"); val != "" {
		c.Extraction.APIKey = val
	}
	if val := os.Getenv("EXTRACTION_JSON_MODE"); val != "" {
		c.Extraction.JSONMode = val == "true" || val == "1"
	}

	if val := os.Getenv("APP_TIMEZONE"); val != "" {
		c.Timezone = val
	}

	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}
}

// Validate checks the configuration and fills defaults.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	c.Database.Driver = strings.ToLower(c.Database.Driver)
	switch c.Database.Driver {
	case "", "sqlite":
		c.Database.Driver = "sqlite"
		if c.Database.Path == "" {
			c.Database.Path = "exits.db"
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for postgres")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required for postgres")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database name is required for postgres")
		}
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	default:
		return fmt.Errorf("unknown database driver: %q (supported: sqlite, postgres)", c.Database.Driver)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	if c.Extraction.Provider == "" {
		c.Extraction.Provider = "static"
	}
	if c.Extraction.TimeoutSeconds <= 0 {
		c.Extraction.TimeoutSeconds = 30
	}
	if c.Extraction.MaxRetries < 0 {
		return fmt.Errorf("extraction max_retries must not be negative")
	}
	if c.Extraction.Temperature == 0 {
		c.Extraction.Temperature = 0.1
	}
	if c.Extraction.MaxTokens == 0 {
		c.Extraction.MaxTokens = 256
	}

	if c.Timezone == "" {
		c.Timezone = "Asia/Kolkata"
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	if c.Fees.TwoSeaterPerDay == "" {
		c.Fees.TwoSeaterPerDay = "300"
	}
	if c.Fees.DefaultPerDay == "" {
		c.Fees.DefaultPerDay = "200"
	}
	if c.Fees.FreeDays == 0 {
		c.Fees.FreeDays = 1
	}
	for name, v := range map[string]string{
		"two_seater_per_day": c.Fees.TwoSeaterPerDay,
		"default_per_day":    c.Fees.DefaultPerDay,
	} {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid fee %s %q: %w", name, v, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("fee %s must not be negative", name)
		}
	}
	if c.Fees.FreeDays < 0 {
		return fmt.Errorf("fee free_days must not be negative")
	}

	if c.Risk.MediumDays == 0 {
		c.Risk.MediumDays = 7
	}
	if c.Risk.HighDays == 0 {
		c.Risk.HighDays = 30
	}
	if c.Risk.MediumDays > c.Risk.HighDays {
		return fmt.Errorf("risk medium_days (%d) exceeds high_days (%d)", c.Risk.MediumDays, c.Risk.HighDays)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	return nil
}

// Location returns the reference timezone. Validate guarantees it loads.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ExtractionTimeout returns the per-submission bound on the extraction call.
func (c *Config) ExtractionTimeout() time.Duration {
	return time.Duration(c.Extraction.TimeoutSeconds) * time.Second
}

// GetDatabaseConnectionString returns a PostgreSQL connection string.
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP listen address.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
