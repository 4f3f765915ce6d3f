package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
)

type tableSchema struct {
	name    string
	columns []string
}

// declaredSchema is the shape every read in this package relies on.
var declaredSchema = []tableSchema{
	{name: "measurement", columns: []string{"station", "date", "prcp", "tobs"}},
	{name: "station", columns: []string{"station", "name", "latitude", "longitude", "elevation"}},
}

// ValidateSchema checks once, at startup, that both tables expose the declared
// columns. A mismatch is reported as ErrConnection: the dataset is unusable.
func ValidateSchema(ctx context.Context, conn *sql.DB) error {
	for _, t := range declaredSchema {
		if err := validateTable(ctx, conn, t); err != nil {
			return fmt.Errorf("%w: schema: %w", ErrConnection, err)
		}
	}
	return nil
}

func validateTable(ctx context.Context, conn *sql.DB, t tableSchema) error {
	query := "SELECT " + strings.Join(t.columns, ", ") + " FROM " + t.name + " LIMIT 0"
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("table %s: %w", t.name, err)
	}
	defer closeRows(rows, "schema "+t.name)

	got, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("table %s: columns: %w", t.name, err)
	}
	for i := range got {
		got[i] = strings.ToLower(got[i])
	}
	if !slices.Equal(got, t.columns) {
		return fmt.Errorf("table %s: columns %v, want %v", t.name, got, t.columns)
	}
	return rows.Err()
}
