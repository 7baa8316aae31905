package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/persistency"
	"github.com/Sabuj-CSE11/NearbyWeather/internal/weather"
)

// PreferencesService persists the singleton user preferences record.
// Reading preferences never fails on absence; the defaults apply until the
// first Set.
type PreferencesService struct {
	worker *persistency.Worker
	log    *slog.Logger
}

func NewPreferencesService(worker *persistency.Worker, logger *slog.Logger) *PreferencesService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferencesService{worker: worker, log: logger}
}

func (s *PreferencesService) identity() persistency.Identity {
	return persistency.NewIdentity(CollectionPreferences, preferencesIdentifier)
}

func (s *PreferencesService) Set(ctx context.Context, prefs weather.Preferences) error {
	if err := prefs.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := persistency.SaveResource(ctx, s.worker, persistency.NewRecord(s.identity(), prefs)); err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	s.log.Debug("stored preferences",
		"temperature_unit", prefs.TemperatureUnit,
		"distance_unit", prefs.DistanceUnit,
		"sorting", prefs.SortingOrientation,
		"nearby_results", prefs.AmountOfNearbyResults)
	return nil
}

func (s *PreferencesService) Get(ctx context.Context) (weather.Preferences, error) {
	record, found, err := persistency.GetResource[weather.Preferences](ctx, s.worker, s.identity())
	if err != nil {
		return weather.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	if !found {
		return weather.DefaultPreferences(), nil
	}
	return record.Entity, nil
}

// Reset removes the stored record so the defaults apply again.
func (s *PreferencesService) Reset(ctx context.Context) error {
	if err := s.worker.DeleteResource(ctx, s.identity()); err != nil {
		return fmt.Errorf("reset preferences: %w", err)
	}
	return nil
}

func (s *PreferencesService) Observe(ctx context.Context) (*persistency.ResourceStream[weather.Preferences], error) {
	stream, err := persistency.ObserveResource[weather.Preferences](ctx, s.worker, s.identity())
	if err != nil {
		return nil, fmt.Errorf("observe preferences: %w", err)
	}
	return stream, nil
}
