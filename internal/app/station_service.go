package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/persistency"
	"github.com/Sabuj-CSE11/NearbyWeather/internal/weather"
)

// StationService maintains the set of bookmarked weather stations.
type StationService struct {
	worker *persistency.Worker
	log    *slog.Logger
}

func NewStationService(worker *persistency.Worker, logger *slog.Logger) *StationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &StationService{worker: worker, log: logger}
}

func (s *StationService) Bookmark(ctx context.Context, station weather.Station) error {
	if station.Identifier <= 0 {
		return fmt.Errorf("%w: station identifier must be positive, got %d", ErrValidation, station.Identifier)
	}
	if strings.TrimSpace(station.Name) == "" {
		return fmt.Errorf("%w: station name is required", ErrValidation)
	}

	identity := persistency.NewIdentity(CollectionStationBookmarks, station.RecordIdentifier())
	if err := persistency.SaveResource(ctx, s.worker, persistency.NewRecord(identity, station)); err != nil {
		return fmt.Errorf("bookmark station %d: %w", station.Identifier, err)
	}
	s.log.Debug("bookmarked station", "station", station.Identifier, "name", station.Name)
	return nil
}

func (s *StationService) Unbookmark(ctx context.Context, stationID int64) error {
	identity, err := stationIdentity(CollectionStationBookmarks, stationID)
	if err != nil {
		return err
	}

	_, found, err := persistency.GetResource[weather.Station](ctx, s.worker, identity)
	if err != nil {
		return fmt.Errorf("unbookmark station %d: %w", stationID, err)
	}
	if !found {
		return fmt.Errorf("%w: station bookmark %d", ErrNotFound, stationID)
	}

	if err := s.worker.DeleteResource(ctx, identity); err != nil {
		return fmt.Errorf("unbookmark station %d: %w", stationID, err)
	}
	return nil
}

func (s *StationService) Bookmarks(ctx context.Context) ([]weather.Station, error) {
	records, err := persistency.ListResources[weather.Station](ctx, s.worker, CollectionStationBookmarks)
	if err != nil {
		return nil, fmt.Errorf("list station bookmarks: %w", err)
	}
	stations := make([]weather.Station, len(records))
	for i, record := range records {
		stations[i] = record.Entity
	}
	return stations, nil
}

func (s *StationService) Bookmarked(ctx context.Context, stationID int64) (weather.Station, bool, error) {
	identity, err := stationIdentity(CollectionStationBookmarks, stationID)
	if err != nil {
		return weather.Station{}, false, err
	}
	record, found, err := persistency.GetResource[weather.Station](ctx, s.worker, identity)
	if err != nil {
		return weather.Station{}, false, fmt.Errorf("get station bookmark %d: %w", stationID, err)
	}
	if !found {
		return weather.Station{}, false, nil
	}
	return record.Entity, true, nil
}

func (s *StationService) ObserveBookmarks(ctx context.Context) (*persistency.CollectionStream[weather.Station], error) {
	stream, err := persistency.ObserveResources[weather.Station](ctx, s.worker, CollectionStationBookmarks)
	if err != nil {
		return nil, fmt.Errorf("observe station bookmarks: %w", err)
	}
	return stream, nil
}
