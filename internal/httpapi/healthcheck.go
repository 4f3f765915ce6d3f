package httpapi

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"climate-server/internal/utils"
)

const healthTimeout = 2 * time.Second

type healthReport struct {
	Status          string `json:"status"`
	OpenConnections int    `json:"openConnections"`
	InUse           int    `json:"inUse"`
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	db      *sql.DB
	timeout time.Duration
}

func NewHealthchecker(db *sql.DB) healthchecker {
	return &healthcheckerImpl{db: db, timeout: healthTimeout}
}

// handleHealthz pings the dataset with a bounded query and reports pool usage.
func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var ok int
	if err := h.db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		slog.Error("failed to check dataset connectivity",
			"error", err,
			"request_id", RequestID(r.Context()),
		)
		utils.WriteError(w, http.StatusServiceUnavailable, "dataset unavailable")
		return
	}

	stats := h.db.Stats()
	utils.WriteJSON(w, http.StatusOK, healthReport{
		Status:          "ok",
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
	})
}

func registerHealthcheck(mux *http.ServeMux, db *sql.DB) {
	healthchecker := NewHealthchecker(db)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
