package controller

import (
	"io"
	"net/http"

	"climate-server/internal/modules/climate/service"
	"climate-server/internal/modules/climate/views"
)

const apiPrefix = "/api/v1.0"

// indexRoutes is the route listing shown on the welcome page.
var indexRoutes = []string{
	apiPrefix + "/precipitation",
	apiPrefix + "/stations",
	apiPrefix + "/tobs",
	apiPrefix + "/start",
	apiPrefix + "/start/end",
}

type ClimateController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type climateControllerImpl struct {
	service     service.ClimateService
	renderIndex func(w io.Writer, data *views.IndexData) error
}

func NewClimateController(svc service.ClimateService) ClimateController {
	return &climateControllerImpl{service: svc, renderIndex: views.RenderIndex}
}

// RegisterRoutes wires every climate route onto mux. The literal routes
// take precedence over the {start} wildcards.
func (c *climateControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", c.handleIndex)
	mux.HandleFunc("GET "+apiPrefix+"/precipitation", c.handlePrecipitation)
	mux.HandleFunc("GET "+apiPrefix+"/stations", c.handleStations)
	mux.HandleFunc("GET "+apiPrefix+"/tobs", c.handleTobs)
	mux.HandleFunc("GET "+apiPrefix+"/{start}", c.handleStatsFrom)
	mux.HandleFunc("GET "+apiPrefix+"/{start}/{end}", c.handleStatsBetween)
}
