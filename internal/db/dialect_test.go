package db

import "testing"

func TestDialect_Rebind(t *testing.T) {
	q := `SELECT date, tobs FROM measurement WHERE station = ? AND date >= ?`

	tests := []struct {
		driver string
		want   string
	}{
		{driver: "sqlite3", want: q},
		{driver: "sqlite", want: q},
		{driver: "mysql", want: q},
		{driver: "postgres", want: `SELECT date, tobs FROM measurement WHERE station = $1 AND date >= $2`},
	}
	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			if got := DialectFor(tt.driver).Rebind(q); got != tt.want {
				t.Errorf("Rebind() = %q; want %q", got, tt.want)
			}
		})
	}
}
