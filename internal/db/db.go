package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"climate-server/internal/config"

	mysql "github.com/go-sql-driver/mysql"
	pq "github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	sqlite "modernc.org/sqlite"
)

// Options describes how to open a dataset connection pool.
type Options struct {
	Driver string
	// DSN, when set, is passed to the driver verbatim.
	DSN string
	// Path is the sqlite database file, used when DSN is empty.
	Path     string
	ReadOnly bool

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// LogSQL wraps the driver so every statement is logged at debug level.
	LogSQL bool
	Logger *slog.Logger
}

// Open opens the read-only dataset described by cfg and verifies connectivity.
func Open(cfg config.Config) (*sql.DB, error) {
	return OpenWith(Options{
		Driver:          cfg.DBDriver,
		DSN:             cfg.DBDSN,
		Path:            cfg.SQLitePath,
		ReadOnly:        true,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		LogSQL:          cfg.DBLogSQL,
	})
}

func OpenWith(opts Options) (*sql.DB, error) {
	drv, err := driverFor(opts.Driver)
	if err != nil {
		return nil, err
	}

	dsn, err := buildDSN(opts)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	if opts.LogSQL {
		connector, err := NewLoggingConnector(drv, dsn, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		db = sql.OpenDB(connector)
	} else {
		db, err = sql.Open(opts.Driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
	}

	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	}

	// Validate connectivity early
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}

func Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}

func driverFor(name string) (driver.Driver, error) {
	switch name {
	case "sqlite3":
		return &sqlite3.SQLiteDriver{}, nil
	case "sqlite":
		return &sqlite.Driver{}, nil
	case "postgres":
		return &pq.Driver{}, nil
	case "mysql":
		return &mysql.MySQLDriver{}, nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", name)
	}
}

func isSQLite(name string) bool {
	return name == "sqlite3" || name == "sqlite"
}

func buildDSN(opts Options) (string, error) {
	if opts.DSN != "" {
		return opts.DSN, nil
	}
	if !isSQLite(opts.Driver) {
		return "", fmt.Errorf("db driver %q needs a DSN", opts.Driver)
	}

	path := opts.Path
	if path == "" {
		return "", fmt.Errorf("sqlite path is empty")
	}

	var params []string
	if opts.ReadOnly {
		// The dataset must already exist; sqlite would otherwise create an empty file.
		if !strings.HasPrefix(path, "file:") {
			if _, err := os.Stat(path); err != nil {
				return "", fmt.Errorf("dataset %s: %w", path, err)
			}
		}
		params = append(params, "mode=ro")
	} else if !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", fmt.Errorf("mkdir %s: %w", dir, err)
			}
		}
	}

	// mattn/go-sqlite3 and modernc.org/sqlite spell pragmas differently.
	// Writers keep rollback-journal mode so the file stays openable with mode=ro.
	if opts.Driver == "sqlite3" {
		params = append(params, "_busy_timeout=5000")
		if !opts.ReadOnly {
			params = append(params, "_journal_mode=DELETE")
		}
	} else {
		params = append(params, "_pragma=busy_timeout(5000)")
		if !opts.ReadOnly {
			params = append(params, "_pragma=journal_mode(DELETE)")
		}
	}

	// If caller provided something like "file:/data/app.db?x=y" as Path, don't double-wrap
	if strings.HasPrefix(path, "file:") {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + strings.Join(params, "&"), nil
	}

	return fmt.Sprintf("file:%s?%s", path, strings.Join(params, "&")), nil
}
