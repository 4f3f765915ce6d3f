package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"climate-server/internal/config"
	"climate-server/internal/db"
	"climate-server/internal/importer"
	"climate-server/internal/logging"
	"climate-server/internal/migrate"

	"github.com/docopt/docopt-go"
)

const appName = "climate-tools"

var version = "dev"

const usage = `Climate dataset tools.

Usage:
  tools migrate [--db=<path>] [--driver=<name>]
  tools import --stations=<csv> --measurements=<csv> [--db=<path>] [--driver=<name>]
  tools -h | --help
  tools --version

Options:
  -h --help                 Show this screen.
  --version                 Show version.
  --db=<path>               Dataset file. Defaults to SQLITE_PATH.
  --driver=<name>           sqlite3 (cgo) or sqlite (pure Go) [default: sqlite3].
  --stations=<csv>          hawaii_stations.csv export.
  --measurements=<csv>      hawaii_measurements.csv export.
`

type command struct {
	name             string
	dbPath           string
	driver           string
	stationsPath     string
	measurementsPath string
}

func main() {
	if err := config.LoadEnvFile(""); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logging.New(cfg, version, appName))

	opts, err := docopt.ParseArgs(usage, os.Args[1:], version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "usage error: %v\n", err)
		os.Exit(2)
	}
	cmd, err := parseCommand(opts, cfg.SQLitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "usage error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cmd); err != nil {
		slog.Error(cmd.name+" failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func parseCommand(opts docopt.Opts, defaultDB string) (command, error) {
	cmd := command{dbPath: defaultDB, driver: "sqlite3"}

	if ok, _ := opts.Bool("migrate"); ok {
		cmd.name = "migrate"
	} else if ok, _ := opts.Bool("import"); ok {
		cmd.name = "import"
		cmd.stationsPath, _ = opts.String("--stations")
		cmd.measurementsPath, _ = opts.String("--measurements")
	} else {
		return command{}, fmt.Errorf("no command given")
	}

	if s, err := opts.String("--db"); err == nil && s != "" {
		cmd.dbPath = s
	}
	if s, err := opts.String("--driver"); err == nil && s != "" {
		cmd.driver = s
	}
	if cmd.driver != "sqlite3" && cmd.driver != "sqlite" {
		return command{}, fmt.Errorf("invalid --driver %q (allowed: sqlite3, sqlite)", cmd.driver)
	}
	return cmd, nil
}

// run opens the dataset for writing, brings its schema up to date and, for
// import, replaces its rows with the CSV contents.
func run(ctx context.Context, cmd command) error {
	conn, err := db.OpenWith(db.Options{
		Driver:       cmd.driver,
		Path:         cmd.dbPath,
		MaxOpenConns: 1,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	n, err := migrate.Run(ctx, conn)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	slog.Info("migrations applied", "count", n, "db", cmd.dbPath)

	if cmd.name != "import" {
		return nil
	}
	res, err := importer.ImportFiles(ctx, conn, cmd.stationsPath, cmd.measurementsPath)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	slog.Info("import finished", "stations", res.Stations, "measurements", res.Measurements, "db", cmd.dbPath)
	return nil
}
