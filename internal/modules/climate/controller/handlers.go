package controller

import (
	"bytes"
	"log/slog"
	"net/http"

	"climate-server/internal/modules/climate/types"
	"climate-server/internal/modules/climate/views"
	"climate-server/internal/utils"
)

func (c *climateControllerImpl) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := &views.IndexData{Title: "Climate Analysis for Hawaii API", Routes: indexRoutes}
	var buf bytes.Buffer
	if err := c.renderIndex(&buf, data); err != nil {
		slog.Error("index template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("index: write response failed", "error", err)
	}
}

func (c *climateControllerImpl) handlePrecipitation(w http.ResponseWriter, r *http.Request) {
	rows, err := c.service.Precipitation(r.Context())
	if err != nil {
		slog.Error("precipitation: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load precipitation")
		return
	}
	utils.WriteJSON(w, http.StatusOK, precipitationByDate(rows))
}

func (c *climateControllerImpl) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := c.service.Stations(r.Context())
	if err != nil {
		slog.Error("stations: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load stations")
		return
	}
	utils.WriteJSON(w, http.StatusOK, stations)
}

func (c *climateControllerImpl) handleTobs(w http.ResponseWriter, r *http.Request) {
	obs, err := c.service.TemperatureObservations(r.Context())
	if err != nil {
		slog.Error("tobs: query failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load temperature observations")
		return
	}
	utils.WriteJSON(w, http.StatusOK, obs)
}

func (c *climateControllerImpl) handleStatsFrom(w http.ResponseWriter, r *http.Request) {
	c.writeStats(w, r, r.PathValue("start"), nil)
}

func (c *climateControllerImpl) handleStatsBetween(w http.ResponseWriter, r *http.Request) {
	end := r.PathValue("end")
	c.writeStats(w, r, r.PathValue("start"), &end)
}

// writeStats passes start and end through unvalidated; a value that matches
// nothing yields the all-null aggregate.
func (c *climateControllerImpl) writeStats(w http.ResponseWriter, r *http.Request, start string, end *string) {
	stats, err := c.service.TemperatureStats(r.Context(), start, end)
	if err != nil {
		slog.Error("temperature stats: query failed", "start", start, "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load temperature stats")
		return
	}
	utils.WriteJSON(w, http.StatusOK, []types.TemperatureStats{stats})
}
