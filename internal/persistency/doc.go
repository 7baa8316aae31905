package persistency

// Package persistency provides a typed record store over an embedded SQLite
// database, addressing rows by (collection, identifier) pairs and exposing
// live observation streams that re-deliver query results on change.
