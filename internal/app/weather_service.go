package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/persistency"
	"github.com/Sabuj-CSE11/NearbyWeather/internal/weather"
)

// WeatherService maintains the two weather reading lists. Readings are
// keyed by station ID within their list, so re-storing a station's reading
// replaces the previous one.
type WeatherService struct {
	worker *persistency.Worker
	log    *slog.Logger
}

func NewWeatherService(worker *persistency.Worker, logger *slog.Logger) *WeatherService {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherService{worker: worker, log: logger}
}

func (s *WeatherService) StoreBookmarked(ctx context.Context, readings []weather.Information) error {
	return s.Store(ctx, ListBookmarked, readings)
}

func (s *WeatherService) StoreNearby(ctx context.Context, readings []weather.Information) error {
	return s.Store(ctx, ListNearby, readings)
}

// Store upserts the batch of readings into the list in one transaction.
func (s *WeatherService) Store(ctx context.Context, kind ListKind, readings []weather.Information) error {
	collection, err := kind.collection()
	if err != nil {
		return err
	}

	records := make([]persistency.Record[weather.Information], 0, len(readings))
	for _, reading := range readings {
		if reading.StationID <= 0 {
			return fmt.Errorf("%w: station id must be positive, got %d", ErrValidation, reading.StationID)
		}
		identity := persistency.NewIdentity(collection, reading.RecordIdentifier())
		records = append(records, persistency.NewRecord(identity, reading))
	}

	if err := persistency.SaveResources(ctx, s.worker, records); err != nil {
		return fmt.Errorf("store %s weather: %w", kind, err)
	}
	s.log.Debug("stored weather readings", "list", kind, "count", len(records))
	return nil
}

func (s *WeatherService) Bookmarked(ctx context.Context) ([]weather.Information, error) {
	return s.List(ctx, ListBookmarked)
}

func (s *WeatherService) Nearby(ctx context.Context) ([]weather.Information, error) {
	return s.List(ctx, ListNearby)
}

func (s *WeatherService) List(ctx context.Context, kind ListKind) ([]weather.Information, error) {
	collection, err := kind.collection()
	if err != nil {
		return nil, err
	}
	records, err := persistency.ListResources[weather.Information](ctx, s.worker, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s weather: %w", kind, err)
	}
	readings := make([]weather.Information, len(records))
	for i, record := range records {
		readings[i] = record.Entity
	}
	return readings, nil
}

// Station reads one station's reading from the list.
func (s *WeatherService) Station(ctx context.Context, kind ListKind, stationID int64) (weather.Information, bool, error) {
	collection, err := kind.collection()
	if err != nil {
		return weather.Information{}, false, err
	}
	identity, err := stationIdentity(collection, stationID)
	if err != nil {
		return weather.Information{}, false, err
	}
	record, found, err := persistency.GetResource[weather.Information](ctx, s.worker, identity)
	if err != nil {
		return weather.Information{}, false, fmt.Errorf("get %s weather for station %d: %w", kind, stationID, err)
	}
	if !found {
		return weather.Information{}, false, nil
	}
	return record.Entity, true, nil
}

// Remove deletes one station's reading. Removing an absent station reports
// ErrNotFound so callers can distinguish it from a successful delete.
func (s *WeatherService) Remove(ctx context.Context, kind ListKind, stationID int64) error {
	collection, err := kind.collection()
	if err != nil {
		return err
	}
	identity, err := stationIdentity(collection, stationID)
	if err != nil {
		return err
	}

	_, found, err := persistency.GetResource[weather.Information](ctx, s.worker, identity)
	if err != nil {
		return fmt.Errorf("remove %s weather for station %d: %w", kind, stationID, err)
	}
	if !found {
		return fmt.Errorf("%w: station %d in %s weather", ErrNotFound, stationID, kind)
	}

	if err := s.worker.DeleteResource(ctx, identity); err != nil {
		return fmt.Errorf("remove %s weather for station %d: %w", kind, stationID, err)
	}
	return nil
}

// Clear drops the whole list, including rows that no longer decode.
func (s *WeatherService) Clear(ctx context.Context, kind ListKind) (int64, error) {
	collection, err := kind.collection()
	if err != nil {
		return 0, err
	}
	removed, err := s.worker.DeleteCollection(ctx, collection)
	if err != nil {
		return 0, fmt.Errorf("clear %s weather: %w", kind, err)
	}
	s.log.Debug("cleared weather list", "list", kind, "removed", removed)
	return removed, nil
}

func (s *WeatherService) ObserveList(ctx context.Context, kind ListKind) (*persistency.CollectionStream[weather.Information], error) {
	collection, err := kind.collection()
	if err != nil {
		return nil, err
	}
	stream, err := persistency.ObserveResources[weather.Information](ctx, s.worker, collection)
	if err != nil {
		return nil, fmt.Errorf("observe %s weather: %w", kind, err)
	}
	return stream, nil
}

func (s *WeatherService) ObserveStation(ctx context.Context, kind ListKind, stationID int64) (*persistency.ResourceStream[weather.Information], error) {
	collection, err := kind.collection()
	if err != nil {
		return nil, err
	}
	identity, err := stationIdentity(collection, stationID)
	if err != nil {
		return nil, err
	}
	stream, err := persistency.ObserveResource[weather.Information](ctx, s.worker, identity)
	if err != nil {
		return nil, fmt.Errorf("observe %s weather for station %d: %w", kind, stationID, err)
	}
	return stream, nil
}
