package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"climate-server/internal/modules/climate/repository"
	"climate-server/internal/modules/climate/types"
)

// windowDays is the length of the "last 12 months" window ending at the reference date.
const windowDays = 365

type Options struct {
	// ReferenceDate (YYYY-MM-DD) pins the end of the one-year window.
	// Empty resolves to the latest measurement date on every request.
	ReferenceDate string
	// TobsStation pins the station served by TemperatureObservations.
	// Empty resolves to the most active station on every request.
	TobsStation string
	RangeField  repository.RangeField
}

type ClimateService interface {
	Precipitation(ctx context.Context) ([]types.PrecipitationRow, error)
	Stations(ctx context.Context) ([]types.Station, error)
	TemperatureObservations(ctx context.Context) ([]types.TemperatureObservation, error)
	TemperatureStats(ctx context.Context, start string, end *string) (types.TemperatureStats, error)
}

type Service struct {
	repository repository.ClimateRepository
	opts       Options
}

func NewService(repo repository.ClimateRepository, opts Options) (*Service, error) {
	if opts.RangeField == "" {
		opts.RangeField = repository.RangeByStation
	}
	if _, err := repository.ParseRangeField(string(opts.RangeField)); err != nil {
		return nil, err
	}
	if opts.ReferenceDate != "" {
		if _, err := time.Parse(time.DateOnly, opts.ReferenceDate); err != nil {
			return nil, fmt.Errorf("reference date %q: %w", opts.ReferenceDate, err)
		}
	}
	return &Service{repository: repo, opts: opts}, nil
}

func (s *Service) Precipitation(ctx context.Context) ([]types.PrecipitationRow, error) {
	cutoff, ok, err := s.windowStart(ctx)
	if err != nil || !ok {
		return []types.PrecipitationRow{}, err
	}
	return s.repository.PrecipitationSince(ctx, cutoff)
}

func (s *Service) Stations(ctx context.Context) ([]types.Station, error) {
	return s.repository.AllStations(ctx)
}

func (s *Service) TemperatureObservations(ctx context.Context) ([]types.TemperatureObservation, error) {
	station, ok, err := s.observationStation(ctx)
	if err != nil || !ok {
		return []types.TemperatureObservation{}, err
	}
	cutoff, ok, err := s.windowStart(ctx)
	if err != nil || !ok {
		return []types.TemperatureObservation{}, err
	}
	return s.repository.TemperatureObservations(ctx, station, cutoff)
}

func (s *Service) TemperatureStats(ctx context.Context, start string, end *string) (types.TemperatureStats, error) {
	return s.repository.TemperatureStats(ctx, s.opts.RangeField, start, end)
}

// windowStart returns the first day of the year ending at the reference date.
// ok is false when no reference date is configured and the dataset is empty.
func (s *Service) windowStart(ctx context.Context) (time.Time, bool, error) {
	ref := s.opts.ReferenceDate
	if ref == "" {
		latest, ok, err := s.repository.LatestDate(ctx)
		if err != nil || !ok {
			return time.Time{}, false, err
		}
		ref = latest
	}
	refDate, err := time.Parse(time.DateOnly, ref)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: reference date %q: %w", repository.ErrQuery, ref, err)
	}
	cutoff := refDate.AddDate(0, 0, -windowDays)
	slog.Debug("resolved one-year window", "reference", ref, "cutoff", cutoff.Format(time.DateOnly))
	return cutoff, true, nil
}

func (s *Service) observationStation(ctx context.Context) (string, bool, error) {
	if s.opts.TobsStation != "" {
		return s.opts.TobsStation, true, nil
	}
	return s.repository.MostActiveStation(ctx)
}
