package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Stats range fields accepted by STATS_RANGE_FIELD.
const (
	StatsRangeStation = "station"
	StatsRangeDate    = "date"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	HTTPShutdownTimeout time.Duration
	CORSAllowedOrigins  []string

	DBDriver          string
	DBDSN             string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBLogSQL          bool

	// ReferenceDate anchors the one-year window of the precipitation and tobs routes.
	// Empty means the latest measurement date in the dataset.
	ReferenceDate string
	// TobsStation selects the station served by /api/v1.0/tobs.
	// Empty means the station with the most measurements.
	TobsStation string
	// StatsRangeField is the column compared against the {start} path segment.
	StatsRangeField string
}

// LoadEnvFile loads variables from path (or ENV_FILE, or ".env") without
// overriding variables that are already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("ENV_FILE"))
	}
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %q: %w", path, err)
	}
	return nil
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	httpAddr := strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if httpAddr == "" {
		httpAddr = ":8080"
	}

	shutdownTimeout, err := durationEnv("HTTP_SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return Config{}, err
	}

	driver := strings.TrimSpace(os.Getenv("DB_DRIVER"))
	if driver == "" {
		driver = "sqlite3"
	}
	switch driver {
	case "sqlite3", "sqlite", "postgres", "mysql":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, sqlite, postgres, mysql)", driver)
	}
	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" && (driver == "postgres" || driver == "mysql") {
		return Config{}, fmt.Errorf("DB_DSN is required for DB_DRIVER %q", driver)
	}
	path := strings.TrimSpace(os.Getenv("SQLITE_PATH"))
	if path == "" {
		path = "Resources/hawaii.sqlite"
	}

	maxOpenConns, err := intEnv("DB_MAX_OPEN_CONNS", "4")
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := intEnv("DB_MAX_IDLE_CONNS", "4")
	if err != nil {
		return Config{}, err
	}
	connMaxLifetime, err := durationEnv("DB_CONN_MAX_LIFETIME", "0s")
	if err != nil {
		return Config{}, err
	}

	logSQL := false
	if s := strings.TrimSpace(os.Getenv("DB_LOG_SQL")); s != "" {
		logSQL, err = strconv.ParseBool(s)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DB_LOG_SQL %q: %w", s, err)
		}
	}

	referenceDate := strings.TrimSpace(os.Getenv("REFERENCE_DATE"))
	if referenceDate != "" {
		if _, err := time.Parse(time.DateOnly, referenceDate); err != nil {
			return Config{}, fmt.Errorf("invalid REFERENCE_DATE %q (expected YYYY-MM-DD): %w", referenceDate, err)
		}
	}

	statsField := strings.ToLower(strings.TrimSpace(os.Getenv("STATS_RANGE_FIELD")))
	if statsField == "" {
		statsField = StatsRangeStation
	}
	switch statsField {
	case StatsRangeStation, StatsRangeDate:
	default:
		return Config{}, fmt.Errorf("invalid STATS_RANGE_FIELD %q (allowed: station, date)", statsField)
	}

	return Config{
		AppEnv:              appEnv,
		LogLevel:            level,
		HTTPAddr:            httpAddr,
		HTTPShutdownTimeout: shutdownTimeout,
		CORSAllowedOrigins:  splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		DBDriver:            driver,
		DBDSN:               dsn,
		SQLitePath:          path,
		DBMaxOpenConns:      maxOpenConns,
		DBMaxIdleConns:      maxIdleConns,
		DBConnMaxLifetime:   connMaxLifetime,
		DBLogSQL:            logSQL,
		ReferenceDate:       referenceDate,
		TobsStation:         strings.TrimSpace(os.Getenv("TOBS_STATION")),
		StatsRangeField:     statsField,
	}, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func intEnv(key, def string) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func durationEnv(key, def string) (time.Duration, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		s = def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
