package persistency

import (
	"context"
	"fmt"
	"time"
)

// Stats summarizes the backend for status reporting.
type Stats struct {
	Path          string
	SchemaVersion int
	TotalRecords  int64
	Collections   map[string]int64
}

func (w *Worker) Stats(ctx context.Context) (Stats, error) {
	if err := w.ensureOpen(); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	version, err := readSchemaVersion(w.db)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w: %w", ErrTransaction, err)
	}

	rows, err := w.db.QueryContext(ctx, `SELECT collection, COUNT(*) FROM resources GROUP BY collection ORDER BY collection`)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w: %w", ErrTransaction, err)
	}
	defer rows.Close()

	stats := Stats{
		Path:          w.path,
		SchemaVersion: version,
		Collections:   map[string]int64{},
	}
	for rows.Next() {
		var (
			collection string
			count      int64
		)
		if err := rows.Scan(&collection, &count); err != nil {
			return Stats{}, fmt.Errorf("stats: %w: %w", ErrTransaction, err)
		}
		stats.Collections[collection] = count
		stats.TotalRecords += count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("stats: %w: %w", ErrTransaction, err)
	}
	return stats, nil
}

// PruneStale deletes every record in the collection not updated since the
// cutoff and reports how many rows went away.
func (w *Worker) PruneStale(ctx context.Context, collection string, cutoff time.Time) (int64, error) {
	if collection == "" {
		return 0, fmt.Errorf("prune stale: %w: collection is empty", ErrInvalidIdentity)
	}
	if err := w.ensureOpen(); err != nil {
		return 0, fmt.Errorf("prune stale: %w", err)
	}

	result, err := w.db.ExecContext(ctx, `DELETE FROM resources WHERE collection = ? AND updated_at < ?`, collection, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune stale: %w: %w", ErrTransaction, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune stale: rows affected: %w: %w", ErrTransaction, err)
	}
	if count > 0 {
		w.hub.notify([]string{collection})
	}
	return count, nil
}

// DeleteCollection removes every row of the collection, including rows
// whose payload no longer decodes, and reports how many went away.
func (w *Worker) DeleteCollection(ctx context.Context, collection string) (int64, error) {
	if collection == "" {
		return 0, fmt.Errorf("delete collection: %w: collection is empty", ErrInvalidIdentity)
	}
	if err := w.ensureOpen(); err != nil {
		return 0, fmt.Errorf("delete collection: %w", err)
	}

	result, err := w.db.ExecContext(ctx, `DELETE FROM resources WHERE collection = ?`, collection)
	if err != nil {
		return 0, fmt.Errorf("delete collection: %w: %w", ErrTransaction, err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete collection: rows affected: %w: %w", ErrTransaction, err)
	}
	if count > 0 {
		w.hub.notify([]string{collection})
	}
	return count, nil
}

// Checkpoint folds the write-ahead log back into the main file. Useful
// before backups; otherwise the backend checkpoints on its own schedule.
func (w *Worker) Checkpoint(ctx context.Context) error {
	if err := w.ensureOpen(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	var busy, logFrames, checkpointed int
	if err := w.db.QueryRowContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`).Scan(&busy, &logFrames, &checkpointed); err != nil {
		return fmt.Errorf("checkpoint: %w: %w", ErrTransaction, err)
	}
	if busy != 0 {
		w.log.Debug("wal checkpoint left frames behind", "busy", busy, "log_frames", logFrames, "checkpointed", checkpointed)
	}
	return nil
}
