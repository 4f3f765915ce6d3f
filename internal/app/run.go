package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"climate-server/internal/config"
	db "climate-server/internal/db"
	httpapi "climate-server/internal/httpapi"
	climate "climate-server/internal/modules/climate"
	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/service"
	climateviews "climate-server/internal/modules/climate/views"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbDriver", cfg.DBDriver,
		"dbDSN", cfg.DBDSN,
		"sqlitePath", cfg.SQLitePath,
		"dbMaxOpenConns", cfg.DBMaxOpenConns,
		"dbMaxIdleConns", cfg.DBMaxIdleConns,
		"dbConnMaxLifetime", cfg.DBConnMaxLifetime,
		"dbLogSQL", cfg.DBLogSQL,
		"referenceDate", cfg.ReferenceDate,
		"tobsStation", cfg.TobsStation,
		"statsRangeField", cfg.StatsRangeField,
		"corsAllowedOrigins", cfg.CORSAllowedOrigins,
	)

	dbConn, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("%w: %w", repository.ErrConnection, err)
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()
	slog.Info("dataset connection successful")

	mux, err := NewMux(ctx, cfg, dbConn)
	if err != nil {
		return err
	}

	srv := httpapi.NewServer(cfg, mux)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer cancel()

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

// NewMux validates the dataset schema, loads templates and returns a mux
// with every route registered. Any error means the server must not start.
func NewMux(ctx context.Context, cfg config.Config, dbConn *sql.DB) (*http.ServeMux, error) {
	if err := repository.ValidateSchema(ctx, dbConn); err != nil {
		return nil, err
	}
	if err := climateviews.LoadTemplates(); err != nil {
		return nil, err
	}

	mux := httpapi.NewMux(dbConn)
	err := climate.RegisterFeature(mux, dbConn, db.DialectFor(cfg.DBDriver), service.Options{
		ReferenceDate: cfg.ReferenceDate,
		TobsStation:   cfg.TobsStation,
		RangeField:    repository.RangeField(cfg.StatsRangeField),
	})
	if err != nil {
		return nil, err
	}
	return mux, nil
}
