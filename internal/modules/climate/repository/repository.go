package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"climate-server/internal/db"
	"climate-server/internal/modules/climate/types"
)

//go:embed sql/precipitation-since.sql
var precipitationSinceSQL string

//go:embed sql/all-stations.sql
var allStationsSQL string

//go:embed sql/temperature-observations.sql
var temperatureObservationsSQL string

//go:embed sql/temperature-stats.sql
var temperatureStatsSQL string

//go:embed sql/latest-date.sql
var latestDateSQL string

//go:embed sql/most-active-station.sql
var mostActiveStationSQL string

var (
	// ErrConnection means the dataset could not be reached or does not have the declared shape.
	ErrConnection = errors.New("dataset connection error")
	// ErrQuery means the engine rejected or failed a read.
	ErrQuery = errors.New("dataset query error")
)

// RangeField is the measurement column compared against the start of a stats range.
type RangeField string

const (
	RangeByStation RangeField = "station"
	RangeByDate    RangeField = "date"
)

func ParseRangeField(s string) (RangeField, error) {
	switch RangeField(s) {
	case RangeByStation, RangeByDate:
		return RangeField(s), nil
	default:
		return "", fmt.Errorf("unknown range field %q", s)
	}
}

type ClimateRepository interface {
	// PrecipitationSince returns (date, prcp) for every measurement on or after cutoff, by date.
	PrecipitationSince(ctx context.Context, cutoff time.Time) ([]types.PrecipitationRow, error)
	// AllStations returns every station in dataset order.
	AllStations(ctx context.Context) ([]types.Station, error)
	TemperatureObservations(ctx context.Context, stationID string, cutoff time.Time) ([]types.TemperatureObservation, error)
	// TemperatureStats aggregates tobs over rows with field >= start and, when end
	// is non-nil, date <= end. It always yields exactly one row.
	TemperatureStats(ctx context.Context, field RangeField, start string, end *string) (types.TemperatureStats, error)
	// LatestDate returns the most recent measurement date; ok is false on an empty dataset.
	LatestDate(ctx context.Context) (date string, ok bool, err error)
	// MostActiveStation returns the station with the most measurements, ties by lowest id.
	MostActiveStation(ctx context.Context) (station string, ok bool, err error)
}

type repositoryImpl struct {
	db      *sql.DB
	dialect db.Dialect
}

func NewRepository(conn *sql.DB, dialect db.Dialect) ClimateRepository {
	return &repositoryImpl{db: conn, dialect: dialect}
}

// withConn runs fn on a connection reserved for this call only.
func (r *repositoryImpl) withConn(ctx context.Context, op string, fn func(conn *sql.Conn) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %s: acquire connection: %w", ErrConnection, op, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			slog.Error("release dataset connection", "op", op, "error", err)
		}
	}()
	if err := fn(conn); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrQuery, op, err)
	}
	return nil
}

func (r *repositoryImpl) PrecipitationSince(ctx context.Context, cutoff time.Time) ([]types.PrecipitationRow, error) {
	out := make([]types.PrecipitationRow, 0)
	err := r.withConn(ctx, "precipitation since", func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, r.dialect.Rebind(precipitationSinceSQL), formatDate(cutoff))
		if err != nil {
			return err
		}
		defer closeRows(rows, "precipitation")
		for rows.Next() {
			var (
				rec  types.PrecipitationRow
				prcp sql.NullFloat64
			)
			if err := rows.Scan(&rec.Date, &prcp); err != nil {
				return err
			}
			rec.Prcp = floatPtr(prcp)
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repositoryImpl) AllStations(ctx context.Context) ([]types.Station, error) {
	out := make([]types.Station, 0)
	err := r.withConn(ctx, "all stations", func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, r.dialect.Rebind(allStationsSQL))
		if err != nil {
			return err
		}
		defer closeRows(rows, "stations")
		for rows.Next() {
			var s types.Station
			if err := rows.Scan(&s.Station, &s.Name, &s.Latitude, &s.Longitude, &s.Elevation); err != nil {
				return err
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repositoryImpl) TemperatureObservations(ctx context.Context, stationID string, cutoff time.Time) ([]types.TemperatureObservation, error) {
	out := make([]types.TemperatureObservation, 0)
	err := r.withConn(ctx, "temperature observations", func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, r.dialect.Rebind(temperatureObservationsSQL), stationID, formatDate(cutoff))
		if err != nil {
			return err
		}
		defer closeRows(rows, "temperature observations")
		for rows.Next() {
			var o types.TemperatureObservation
			if err := rows.Scan(&o.Date, &o.Tobs); err != nil {
				return err
			}
			out = append(out, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repositoryImpl) TemperatureStats(ctx context.Context, field RangeField, start string, end *string) (types.TemperatureStats, error) {
	query, args, err := buildStatsQuery(field, start, end)
	if err != nil {
		return types.TemperatureStats{}, fmt.Errorf("%w: temperature stats: %w", ErrQuery, err)
	}

	var stats types.TemperatureStats
	err = r.withConn(ctx, "temperature stats", func(conn *sql.Conn) error {
		var lo, avg, hi sql.NullFloat64
		if err := conn.QueryRowContext(ctx, r.dialect.Rebind(query), args...).Scan(&lo, &avg, &hi); err != nil {
			return err
		}
		stats = types.TemperatureStats{Min: floatPtr(lo), Avg: floatPtr(avg), Max: floatPtr(hi)}
		return nil
	})
	if err != nil {
		return types.TemperatureStats{}, err
	}
	return stats, nil
}

func buildStatsQuery(field RangeField, start string, end *string) (string, []any, error) {
	if _, err := ParseRangeField(string(field)); err != nil {
		return "", nil, err
	}
	// field is one of the two known column names, never caller input.
	query := temperatureStatsSQL + "WHERE " + string(field) + " >= ?"
	args := []any{start}
	if end != nil {
		query += "\n  AND date <= ?"
		args = append(args, *end)
	}
	return query, args, nil
}

func (r *repositoryImpl) LatestDate(ctx context.Context) (string, bool, error) {
	var latest sql.NullString
	err := r.withConn(ctx, "latest date", func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, r.dialect.Rebind(latestDateSQL)).Scan(&latest)
	})
	if err != nil {
		return "", false, err
	}
	return latest.String, latest.Valid, nil
}

func (r *repositoryImpl) MostActiveStation(ctx context.Context) (string, bool, error) {
	var station string
	err := r.withConn(ctx, "most active station", func(conn *sql.Conn) error {
		return conn.QueryRowContext(ctx, r.dialect.Rebind(mostActiveStationSQL)).Scan(&station)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return station, true, nil
}

func formatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close "+what+" rows", "error", err)
	}
}
