package persistency

import (
	"errors"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

var (
	ErrConfiguration   = errors.New("persistency: backend cannot be opened")
	ErrDataEncoding    = errors.New("persistency: entity encoding failed")
	ErrTransaction     = errors.New("persistency: backend transaction failed")
	ErrInvalidIdentity = errors.New("persistency: invalid identity")
	ErrSchemaTooNew    = errors.New("persistency: schema version newer than code")
	ErrWorkerClosed    = errors.New("persistency: worker is closed")
)

// IsBusy reports whether err is the backend's lock-contention failure. The
// layer never retries on its own; callers that want to retry key off this.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}
