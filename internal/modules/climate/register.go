package climate

import (
	"database/sql"
	"net/http"

	"climate-server/internal/db"
	"climate-server/internal/modules/climate/controller"
	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/service"
)

func RegisterFeature(mux *http.ServeMux, conn *sql.DB, dialect db.Dialect, opts service.Options) error {
	climateRepository := repository.NewRepository(conn, dialect)
	climateService, err := service.NewService(climateRepository, opts)
	if err != nil {
		return err
	}
	climateController := controller.NewClimateController(climateService)
	climateController.RegisterRoutes(mux)
	return nil
}
