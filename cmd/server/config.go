package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is resolved in order: defaults, YAML file, environment, flags.
// A later source only overrides what it sets.
type Config struct {
	Port     int            `yaml:"port"`
	Database DatabaseConfig `yaml:"database"`
	Catalog  string         `yaml:"catalog"` // YAML catalog applied at startup

	DefaultHourlyRate string        `yaml:"default_hourly_rate"`
	SweepInterval     time.Duration `yaml:"sweep_interval"`      // background sweep, 0 disables
	RequestSweepEvery time.Duration `yaml:"request_sweep_every"` // min gap between request-time global sweeps
	ConfigTTL         time.Duration `yaml:"config_ttl"`

	Log            LogConfig `yaml:"log"`
	AllowedOrigins []string  `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite | postgres
	DSN    string `yaml:"dsn"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console | json
}

func defaultConfig() Config {
	return Config{
		Port:              8080,
		Database:          DatabaseConfig{Driver: "sqlite", DSN: "shifts.db"},
		DefaultHourlyRate: "2.50",
		SweepInterval:     time.Minute,
		RequestSweepEvery: 10 * time.Second,
		ConfigTTL:         time.Minute,
		Log:               LogConfig{Level: "info", Format: "console"},
	}
}

// Getenv returns the environment value for key, or fallback when unset.
func Getenv(key, fallback string) string {
	value := os.Getenv(key)
	if len(value) == 0 {
		return fallback
	}
	return value
}

// loadConfig parses args (without the program name).
func loadConfig(args []string) (Config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", Getenv("SHIFT_CONFIG", ""), "YAML config file")
	port := fs.Int("port", 0, "HTTP server port")
	driver := fs.String("db-driver", "", "database driver: sqlite or postgres")
	dsn := fs.String("db", "", "database DSN (SQLite path, \":memory:\" or postgres URL)")
	catalog := fs.String("catalog", "", "YAML catalog to apply at startup")
	logLevel := fs.String("log-level", "", "log level")
	logFormat := fs.String("log-format", "", "log format: console or json")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", *configPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["port"] {
		cfg.Port = *port
	}
	if set["db-driver"] {
		cfg.Database.Driver = *driver
	}
	if set["db"] {
		cfg.Database.DSN = *dsn
	}
	if set["catalog"] {
		cfg.Catalog = *catalog
	}
	if set["log-level"] {
		cfg.Log.Level = *logLevel
	}
	if set["log-format"] {
		cfg.Log.Format = *logFormat
	}
	return cfg, cfg.validate()
}

func (c *Config) applyEnv() error {
	if v := Getenv("PORT", ""); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PORT: %w", err)
		}
		c.Port = p
	}
	c.Database.Driver = Getenv("DB_DRIVER", c.Database.Driver)
	c.Database.DSN = Getenv("DATABASE_URL", c.Database.DSN)
	c.Catalog = Getenv("CATALOG_PATH", c.Catalog)
	c.DefaultHourlyRate = Getenv("DEFAULT_HOURLY_RATE", c.DefaultHourlyRate)
	c.Log.Level = Getenv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = Getenv("LOG_FORMAT", c.Log.Format)
	if v := Getenv("CORS_ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}

	for key, dst := range map[string]*time.Duration{
		"SWEEP_INTERVAL":      &c.SweepInterval,
		"REQUEST_SWEEP_EVERY": &c.RequestSweepEvery,
		"CONFIG_TTL":          &c.ConfigTTL,
	} {
		if v := Getenv(key, ""); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if _, err := c.defaultRate(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

func (c Config) defaultRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(c.DefaultHourlyRate)
	if err != nil || rate.IsNegative() {
		return decimal.Zero, fmt.Errorf("invalid default hourly rate %q", c.DefaultHourlyRate)
	}
	return rate, nil
}

// newLogger builds the process logger. Console output is for development.
func newLogger(c LogConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if c.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
