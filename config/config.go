// Package config loads the server configuration.
//
// Values are resolved in this order, later sources winning:
// built-in defaults, an optional YAML file (-config or CASHBACK_CONFIG),
// command-line flags that were explicitly set, then environment variables.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Port        int    `yaml:"port"`
	DBDriver    string `yaml:"db_driver"`
	DBPath      string `yaml:"db_path"`      // sqlite file, ":memory:" for a throwaway database
	DatabaseURL string `yaml:"database_url"` // postgres DSN
	Workers     int    `yaml:"workers"`      // 0 means GOMAXPROCS
	ProgramFile string `yaml:"program_file"`
	SeedDefault bool   `yaml:"seed_default_program"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // text or json
}

func Default() *Config {
	return &Config{
		Port:        8080,
		DBDriver:    DriverSQLite,
		DBPath:      "cashback.db",
		SeedDefault: true,
		LogLevel:    "info",
		LogFormat:   "text",
	}
}

// Load resolves the configuration from args (without the program name),
// the optional YAML file, and the environment.
func Load(args []string) (*Config, error) {
	cfg := Default()

	flags := *cfg
	fs := flag.NewFlagSet("cashback-server", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file")
	fs.IntVar(&flags.Port, "port", flags.Port, "HTTP server port")
	fs.StringVar(&flags.DBDriver, "db-driver", flags.DBDriver, "store driver: sqlite, postgres or memory")
	fs.StringVar(&flags.DBPath, "db", flags.DBPath, `SQLite database path (":memory:" for in-memory)`)
	fs.StringVar(&flags.DatabaseURL, "database-url", flags.DatabaseURL, "PostgreSQL connection string")
	fs.IntVar(&flags.Workers, "workers", flags.Workers, "simulation workers (0 = GOMAXPROCS)")
	fs.StringVar(&flags.ProgramFile, "program", flags.ProgramFile, "program file (JSON or YAML) saved on startup")
	fs.BoolVar(&flags.SeedDefault, "seed-default", flags.SeedDefault, "save the default program on startup")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "debug, info, warn or error")
	fs.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "text or json")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	path := *configFile
	if path == "" {
		path = getEnv("CASHBACK_CONFIG", "")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = flags.Port
		case "db-driver":
			cfg.DBDriver = flags.DBDriver
		case "db":
			cfg.DBPath = flags.DBPath
		case "database-url":
			cfg.DatabaseURL = flags.DatabaseURL
		case "workers":
			cfg.Workers = flags.Workers
		case "program":
			cfg.ProgramFile = flags.ProgramFile
		case "seed-default":
			cfg.SeedDefault = flags.SeedDefault
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		}
	})

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.DBDriver = getEnv("CASHBACK_DB_DRIVER", c.DBDriver)
	c.DBPath = getEnv("CASHBACK_DB_PATH", c.DBPath)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.ProgramFile = getEnv("CASHBACK_PROGRAM_FILE", c.ProgramFile)
	c.LogLevel = getEnv("CASHBACK_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("CASHBACK_LOG_FORMAT", c.LogFormat)

	var err error
	if c.Port, err = getEnvInt("CASHBACK_PORT", c.Port); err != nil {
		return err
	}
	if c.Workers, err = getEnvInt("CASHBACK_WORKERS", c.Workers); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("CASHBACK_SEED_DEFAULT"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("CASHBACK_SEED_DEFAULT: %w", err)
		}
		c.SeedDefault = b
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("sqlite driver needs a db path"))
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("postgres driver needs a database url"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown db driver %q", c.DBDriver))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if _, err := c.level(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func (c *Config) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}
	return level, nil
}

// Logger builds the process logger described by the configuration.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := c.level()
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
