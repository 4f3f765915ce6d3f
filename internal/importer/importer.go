// Package importer loads the Hawaii station and measurement CSV exports into
// a sqlite dataset whose schema was created by package migrate.
package importer

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"climate-server/internal/modules/climate/types"

	"golang.org/x/sync/errgroup"
)

var (
	stationColumns     = []string{"station", "name", "latitude", "longitude", "elevation"}
	measurementColumns = []string{"station", "date", "prcp", "tobs"}
)

// Measurement is one CSV row of hawaii_measurements.csv. Prcp is nil when the cell is empty.
type Measurement struct {
	Station string
	Date    string
	Prcp    *float64
	Tobs    float64
}

type Result struct {
	Stations     int
	Measurements int
}

// ImportFiles parses both CSV files concurrently and replaces the dataset
// contents with them in a single transaction.
func ImportFiles(ctx context.Context, db *sql.DB, stationsPath, measurementsPath string) (Result, error) {
	var (
		stations     []types.Station
		measurements []Measurement
	)

	var g errgroup.Group
	g.Go(func() error {
		var err error
		stations, err = parseFile(stationsPath, ParseStations)
		return err
	})
	g.Go(func() error {
		var err error
		measurements, err = parseFile(measurementsPath, ParseMeasurements)
		return err
	})
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	return Import(ctx, db, stations, measurements)
}

func parseFile[T any](path string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	out, err := parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Import deletes every existing station and measurement row and inserts the given ones.
func Import(ctx context.Context, db *sql.DB, stations []types.Station, measurements []Measurement) (Result, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"measurement", "station"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return Result{}, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	stationStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO station (station, name, latitude, longitude, elevation) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return Result{}, fmt.Errorf("prepare station insert: %w", err)
	}
	defer func() { _ = stationStmt.Close() }()
	for _, s := range stations {
		if _, err := stationStmt.ExecContext(ctx, s.Station, s.Name, s.Latitude, s.Longitude, s.Elevation); err != nil {
			return Result{}, fmt.Errorf("insert station %s: %w", s.Station, err)
		}
	}

	measurementStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO measurement (station, date, prcp, tobs) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return Result{}, fmt.Errorf("prepare measurement insert: %w", err)
	}
	defer func() { _ = measurementStmt.Close() }()
	for _, m := range measurements {
		var prcp any
		if m.Prcp != nil {
			prcp = *m.Prcp
		}
		if _, err := measurementStmt.ExecContext(ctx, m.Station, m.Date, prcp, m.Tobs); err != nil {
			return Result{}, fmt.Errorf("insert measurement %s %s: %w", m.Station, m.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("commit import: %w", err)
	}
	slog.Info("dataset imported", "stations", len(stations), "measurements", len(measurements))
	return Result{Stations: len(stations), Measurements: len(measurements)}, nil
}

func ParseStations(r io.Reader) ([]types.Station, error) {
	out := make([]types.Station, 0)
	err := readRecords(r, stationColumns, func(line int, rec map[string]string) error {
		s := types.Station{Station: rec["station"], Name: rec["name"]}
		if s.Station == "" {
			return fmt.Errorf("line %d: empty station id", line)
		}
		var err error
		if s.Latitude, err = parseFloat(line, "latitude", rec["latitude"]); err != nil {
			return err
		}
		if s.Longitude, err = parseFloat(line, "longitude", rec["longitude"]); err != nil {
			return err
		}
		if s.Elevation, err = parseFloat(line, "elevation", rec["elevation"]); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ParseMeasurements(r io.Reader) ([]Measurement, error) {
	out := make([]Measurement, 0)
	err := readRecords(r, measurementColumns, func(line int, rec map[string]string) error {
		m := Measurement{Station: rec["station"], Date: rec["date"]}
		if m.Station == "" {
			return fmt.Errorf("line %d: empty station id", line)
		}
		if _, err := time.Parse(time.DateOnly, m.Date); err != nil {
			return fmt.Errorf("line %d: date %q: %w", line, m.Date, err)
		}
		if s := rec["prcp"]; s != "" {
			v, err := parseFloat(line, "prcp", s)
			if err != nil {
				return err
			}
			m.Prcp = &v
		}
		var err error
		if m.Tobs, err = parseFloat(line, "tobs", rec["tobs"]); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readRecords maps each data row to its header names, so column order in the file does not matter.
func readRecords(r io.Reader, required []string, fn func(line int, rec map[string]string) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return errors.New("missing header row")
	}
	if err != nil {
		return err
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("missing column %q", col)
		}
	}

	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		rec := make(map[string]string, len(required))
		for _, col := range required {
			rec[col] = strings.TrimSpace(row[index[col]])
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

func parseFloat(line int, col, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s %q: %w", line, col, s, err)
	}
	return v, nil
}
