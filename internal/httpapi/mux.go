package httpapi

import (
	"database/sql"
	"net/http"
)

// NewMux returns a mux carrying the health endpoint; features register their own routes on it.
func NewMux(db *sql.DB) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	return mux
}
