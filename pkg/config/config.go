package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverNone     = "none"
)

// Config holds all application configuration
type Config struct {
	ETL           ETLConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Log           LogConfig
}

type ETLConfig struct {
	RulesFile       string
	PDFDir          string
	CSVDir          string
	XLSXDir         string
	Report          bool
	ContinueOnError bool
	FailOnDBError   bool
	Workers         int
	Schedule        string
}

type DatabaseConfig struct {
	Driver     string
	Host       string
	Port       int
	User       string
	Password   string
	Database   string
	SSLMode    string
	SQLitePath string
}

type ObservabilityConfig struct {
	MetricsEnabled  bool
	MetricsTextfile string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory when one exists
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		ETL: ETLConfig{
			RulesFile:       getEnv("ETL_RULES_FILE", "configs/rules/notas.yaml"),
			PDFDir:          getEnv("ETL_PDF_DIR", "files/pdf"),
			CSVDir:          getEnv("ETL_CSV_DIR", "files/csv"),
			XLSXDir:         getEnv("ETL_XLSX_DIR", ""),
			Report:          getEnvAsBool("ETL_REPORT", true),
			ContinueOnError: getEnvAsBool("ETL_CONTINUE_ON_ERROR", true),
			FailOnDBError:   getEnvAsBool("ETL_FAIL_ON_DB_ERROR", false),
			Workers:         getEnvAsInt("ETL_WORKERS", 1),
			Schedule:        getEnv("ETL_SCHEDULE", "@hourly"),
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(getEnv("DB_DRIVER", DriverPostgres)),
			Host:       getEnv("POSTGRES_HOST", "localhost"),
			Port:       getEnvAsInt("POSTGRES_PORT", 5469),
			User:       getEnv("POSTGRES_USER", "postgres"),
			Password:   getEnv("POSTGRES_PASSWORD", "postgres"),
			Database:   getEnv("POSTGRES_DB", "notas-dev"),
			SSLMode:    getEnv("POSTGRES_SSLMODE", "disable"),
			SQLitePath: getEnv("SQLITE_PATH", "files/notas.db"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled:  getEnvAsBool("METRICS_ENABLED", false),
			MetricsTextfile: getEnv("METRICS_TEXTFILE", "files/metrics/notas_etl.prom"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "text")),
		},
	}

	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite, DriverNone:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}

	if cfg.ETL.Workers < 1 {
		return nil, errors.New("ETL_WORKERS must be at least 1")
	}

	return cfg, nil
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info
func (c *LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
