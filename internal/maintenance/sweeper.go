package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/app"
	"github.com/Sabuj-CSE11/NearbyWeather/internal/persistency"
)

const jobTimeout = 30 * time.Second

// Sweeper periodically prunes stale weather readings and checkpoints the
// write-ahead log. Bookmarked stations and preferences are never swept;
// only readings age out.
type Sweeper struct {
	scheduler *gocron.Scheduler
	worker    *persistency.Worker
	interval  time.Duration
	retention time.Duration
	log       *slog.Logger
}

func NewSweeper(worker *persistency.Worker, interval, retention time.Duration, logger *slog.Logger) (*Sweeper, error) {
	if interval < time.Minute {
		return nil, fmt.Errorf("sweep interval %s too small, want >= 1m", interval)
	}
	if retention < time.Hour {
		return nil, fmt.Errorf("retention %s too small, want >= 1h", retention)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		scheduler: gocron.NewScheduler(time.UTC),
		worker:    worker,
		interval:  interval,
		retention: retention,
		log:       logger,
	}, nil
}

// Start schedules the sweep and runs the scheduler in the background.
func (s *Sweeper) Start() error {
	if _, err := s.scheduler.Every(s.interval).Do(s.runSweep); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info("maintenance sweeper started", "interval", s.interval, "retention", s.retention)
	return nil
}

func (s *Sweeper) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// RunOnce performs one sweep synchronously.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.retention)

	var total int64
	for _, collection := range app.WeatherCollections() {
		pruned, err := s.worker.PruneStale(ctx, collection, cutoff)
		if err != nil {
			return fmt.Errorf("sweep %s: %w", collection, err)
		}
		if pruned > 0 {
			s.log.Info("pruned stale weather readings", "collection", collection, "pruned", pruned, "cutoff", cutoff)
		}
		total += pruned
	}

	if err := s.worker.Checkpoint(ctx); err != nil {
		return fmt.Errorf("sweep checkpoint: %w", err)
	}
	s.log.Debug("sweep complete", "pruned_total", total)
	return nil
}

func (s *Sweeper) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.RunOnce(ctx); err != nil {
		s.log.Error("maintenance sweep failed", "err", err)
	}
}
