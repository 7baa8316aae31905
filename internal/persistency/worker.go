package persistency

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	defaultFileName    = "nearbyweather.db"
	defaultBusyTimeout = 5 * time.Second
)

// Config binds a worker to one backend file. The same configuration may be
// shared by several workers; coordination between them is left entirely to
// the backend's own locking.
type Config struct {
	Directory   string
	FileName    string
	BusyTimeout time.Duration
	Logger      *slog.Logger
}

// Worker translates typed records to and from the backend's untyped rows.
// Typed operations are package-level functions taking the worker, since
// methods cannot introduce type parameters.
type Worker struct {
	db      *sql.DB
	path    string
	log     *slog.Logger
	hub     *changeHub
	watcher *fileWatcher

	closeOnce sync.Once
	closed    chan struct{}
}

func NewWorker(cfg Config) (*Worker, error) {
	if cfg.Directory == "" {
		return nil, fmt.Errorf("%w: storage directory is empty", ErrConfiguration)
	}
	fileName := cfg.FileName
	if fileName == "" {
		fileName = defaultFileName
	}
	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(cfg.Directory, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create storage directory: %v", ErrConfiguration, err)
	}

	path := filepath.Join(cfg.Directory, fileName)
	db, err := sql.Open("sqlite", storeDSN(path, busyTimeout))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := RunMigrations(db, DefaultMigrations()); err != nil {
		_ = db.Close()
		if errors.Is(err, ErrSchemaTooNew) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	worker := &Worker{
		db:     db,
		path:   path,
		log:    logger,
		hub:    newChangeHub(),
		closed: make(chan struct{}),
	}

	// The watcher covers writers in other processes. Without it the worker
	// still observes every local commit, so setup failure is not fatal.
	watcher, err := newFileWatcher(path, worker.hub, worker.closed, logger)
	if err != nil {
		logger.Warn("database file watcher unavailable, external changes will not be observed", "path", path, "err", err)
	} else {
		worker.watcher = watcher
	}

	return worker, nil
}

// storeDSN configures the backend per connection so every pooled handle
// observes the same journal and locking behavior.
func storeDSN(path string, busyTimeout time.Duration) string {
	return path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(" + strconv.FormatInt(busyTimeout.Milliseconds(), 10) + ")" +
		"&_pragma=synchronous(NORMAL)"
}

func (w *Worker) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	var err error
	w.closeOnce.Do(func() {
		close(w.closed)
		if w.watcher != nil {
			_ = w.watcher.close()
		}
		err = w.db.Close()
	})
	return err
}

func (w *Worker) DB() *sql.DB {
	if w == nil {
		return nil
	}
	return w.db
}

func (w *Worker) Path() string {
	if w == nil {
		return ""
	}
	return w.path
}

func (w *Worker) ensureOpen() error {
	if w == nil || w.db == nil {
		return errors.New("worker is not configured")
	}
	select {
	case <-w.closed:
		return ErrWorkerClosed
	default:
		return nil
	}
}

// SaveResources upserts the batch within one transaction. Every record is
// encoded in memory before the transaction opens, so an encoding failure
// leaves the backend untouched. Rows whose bytes already match are skipped
// to avoid spurious change notifications.
func SaveResources[T any](ctx context.Context, w *Worker, records []Record[T]) error {
	rows, err := encodeRecords(records)
	if err != nil {
		return fmt.Errorf("save resources: %w", err)
	}
	return w.saveRows(ctx, "save resources", rows)
}

// SaveResource is the single-record variant; encoding failures are reported
// before any transaction is opened.
func SaveResource[T any](ctx context.Context, w *Worker, record Record[T]) error {
	rows, err := encodeRecords([]Record[T]{record})
	if err != nil {
		return fmt.Errorf("save resource: %w", err)
	}
	return w.saveRows(ctx, "save resource", rows)
}

// GetResource reads one record by exact identity. A missing row and a row
// that fails to decode both read as absent.
func GetResource[T any](ctx context.Context, w *Worker, identity Identity) (Record[T], bool, error) {
	var zero Record[T]
	if err := identity.Validate(); err != nil {
		return zero, false, fmt.Errorf("get resource: %w", err)
	}
	if err := w.ensureOpen(); err != nil {
		return zero, false, fmt.Errorf("get resource: %w", err)
	}
	row, found, err := w.identityRow(ctx, identity)
	if err != nil {
		return zero, false, fmt.Errorf("get resource: %w: %w", ErrTransaction, err)
	}
	if !found {
		return zero, false, nil
	}
	record, ok := DecodeRecord[T](identity, row.data)
	if !ok {
		return zero, false, nil
	}
	return record, true, nil
}

// ListResources reads the full collection ordered by identifier. Rows that
// fail to decode are dropped from the result.
func ListResources[T any](ctx context.Context, w *Worker, collection string) ([]Record[T], error) {
	if collection == "" {
		return nil, fmt.Errorf("list resources: %w: collection is empty", ErrInvalidIdentity)
	}
	if err := w.ensureOpen(); err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	rows, err := w.collectionRows(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w: %w", ErrTransaction, err)
	}
	return decodeRecords[T](rows), nil
}

// DeleteResources removes all rows matching each identity within one
// transaction. Missing identities are no-ops, not errors.
func (w *Worker) DeleteResources(ctx context.Context, identities []Identity) error {
	return w.deleteRows(ctx, "delete resources", identities)
}

func (w *Worker) DeleteResource(ctx context.Context, identity Identity) error {
	return w.deleteRows(ctx, "delete resource", []Identity{identity})
}

func (w *Worker) saveRows(ctx context.Context, op string, rows []storedRow) error {
	if err := w.ensureOpen(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w: %w", op, ErrTransaction, err)
	}

	now := toMillis(nowUTC())
	changed := map[string]struct{}{}
	for _, row := range rows {
		rowChanged, err := upsertRow(ctx, tx, row, now)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%s: %s: %w: %w", op, row.identity(), ErrTransaction, err)
		}
		if rowChanged {
			changed[row.collection] = struct{}{}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w: %w", op, ErrTransaction, err)
	}

	w.hub.notify(collectionSet(changed))
	return nil
}

func (w *Worker) deleteRows(ctx context.Context, op string, identities []Identity) error {
	if err := w.ensureOpen(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, identity := range identities {
		if err := identity.Validate(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if len(identities) == 0 {
		return nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w: %w", op, ErrTransaction, err)
	}

	changed := map[string]struct{}{}
	for _, identity := range identities {
		result, err := tx.ExecContext(ctx, `DELETE FROM resources WHERE collection = ? AND identifier = ?`, identity.Collection, identity.Identifier)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%s: %s: %w: %w", op, identity, ErrTransaction, err)
		}
		count, err := result.RowsAffected()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%s: %s: rows affected: %w: %w", op, identity, ErrTransaction, err)
		}
		if count > 0 {
			changed[identity.Collection] = struct{}{}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w: %w", op, ErrTransaction, err)
	}

	w.hub.notify(collectionSet(changed))
	return nil
}

func upsertRow(ctx context.Context, tx *sql.Tx, row storedRow, now int64) (bool, error) {
	var existing []byte
	err := tx.QueryRowContext(ctx, `SELECT data FROM resources WHERE collection = ? AND identifier = ?`, row.collection, row.identifier).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.ExecContext(ctx, `INSERT INTO resources(collection, identifier, data, updated_at) VALUES(?, ?, ?, ?)`, row.collection, row.identifier, row.data, now); err != nil {
			return false, err
		}
		return true, nil
	case err != nil:
		return false, err
	}

	if bytes.Equal(existing, row.data) {
		return false, nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE resources SET data = ?, updated_at = ? WHERE collection = ? AND identifier = ?`, row.data, now, row.collection, row.identifier); err != nil {
		return false, err
	}
	return true, nil
}

func (w *Worker) collectionRows(ctx context.Context, collection string) ([]storedRow, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT collection, identifier, data, updated_at
		FROM resources
		WHERE collection = ?
		ORDER BY identifier
	`, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedRow
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (w *Worker) identityRow(ctx context.Context, identity Identity) (storedRow, bool, error) {
	var (
		row       storedRow
		updatedAt int64
	)
	err := w.db.QueryRowContext(ctx, `
		SELECT collection, identifier, data, updated_at
		FROM resources
		WHERE collection = ? AND identifier = ?
	`, identity.Collection, identity.Identifier).Scan(&row.collection, &row.identifier, &row.data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storedRow{}, false, nil
	}
	if err != nil {
		return storedRow{}, false, err
	}
	row.updatedAt = fromMillis(updatedAt)
	return row, true, nil
}

func scanRow(rows *sql.Rows) (storedRow, error) {
	var (
		row       storedRow
		updatedAt int64
	)
	if err := rows.Scan(&row.collection, &row.identifier, &row.data, &updatedAt); err != nil {
		return storedRow{}, err
	}
	row.updatedAt = fromMillis(updatedAt)
	return row, nil
}

func collectionSet(changed map[string]struct{}) []string {
	if len(changed) == 0 {
		return nil
	}
	out := make([]string, 0, len(changed))
	for collection := range changed {
		out = append(out, collection)
	}
	return out
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
