package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	DBDriver             string        `mapstructure:"DB_DRIVER"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	BodyLimit            string        `mapstructure:"BODY_LIMIT"`
	Timezone             string        `mapstructure:"TIMEZONE"`
	BusinessHoursEnabled bool          `mapstructure:"BUSINESS_HOURS_ENABLED"`
	BusinessOpenHour     int           `mapstructure:"BUSINESS_OPEN_HOUR"`
	BusinessCloseHour    int           `mapstructure:"BUSINESS_CLOSE_HOUR"`
	ConflictWindow       time.Duration `mapstructure:"CONFLICT_WINDOW"`
	SlowQueryThreshold   time.Duration `mapstructure:"SLOW_QUERY_THRESHOLD"`
	MigrationsDir        string        `mapstructure:"MIGRATIONS_DIR"`
	ShutdownTimeout      time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "DB_DRIVER", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "BODY_LIMIT", "TIMEZONE",
	"BUSINESS_HOURS_ENABLED", "BUSINESS_OPEN_HOUR", "BUSINESS_CLOSE_HOUR",
	"CONFLICT_WINDOW", "SLOW_QUERY_THRESHOLD", "MIGRATIONS_DIR", "SHUTDOWN_TIMEOUT",
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory. Variables already set in the
// environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "3000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("TIMEZONE", "Europe/Paris")
	v.SetDefault("BUSINESS_HOURS_ENABLED", true)
	v.SetDefault("BUSINESS_OPEN_HOUR", 8)
	v.SetDefault("BUSINESS_CLOSE_HOUR", 18)
	v.SetDefault("CONFLICT_WINDOW", "30m")
	v.SetDefault("SLOW_QUERY_THRESHOLD", "200ms")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Location returns the configured time zone. Validate must have succeeded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverMySQL:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMySQL, c.DBDriver)
	}

	if c.DBMaxConns <= 0 {
		return fmt.Errorf("DB_MAX_CONNS must be positive, got %d", c.DBMaxConns)
	}
	if c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS must be between 0 and DB_MAX_CONNS (%d), got %d", c.DBMaxConns, c.DBMinConns)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}

	if c.BusinessHoursEnabled {
		if c.BusinessOpenHour < 0 || c.BusinessCloseHour > 24 || c.BusinessOpenHour >= c.BusinessCloseHour {
			return fmt.Errorf("business hours must satisfy 0 <= BUSINESS_OPEN_HOUR < BUSINESS_CLOSE_HOUR <= 24, got [%d, %d)",
				c.BusinessOpenHour, c.BusinessCloseHour)
		}
	}

	if c.ConflictWindow <= 0 {
		return fmt.Errorf("CONFLICT_WINDOW must be positive, got %s", c.ConflictWindow)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}

	return nil
}
