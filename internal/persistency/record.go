package persistency

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record pairs an Identity with a decoded domain value. Records are
// ephemeral views materialized per read; they hold no backend resources.
type Record[T any] struct {
	Identity Identity
	Entity   T
}

func NewRecord[T any](identity Identity, entity T) Record[T] {
	return Record[T]{Identity: identity, Entity: entity}
}

// DecodeRecord rebuilds a typed record from raw row bytes. A nil/empty blob
// or bytes that do not unmarshal into T yield ok=false, never an error: a
// missing or corrupt row reads as absent.
func DecodeRecord[T any](identity Identity, data []byte) (Record[T], bool) {
	var zero Record[T]
	if len(data) == 0 {
		return zero, false
	}
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return zero, false
	}
	return Record[T]{Identity: identity, Entity: entity}, true
}

func encodeEntity[T any](entity T) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataEncoding, err)
	}
	return data, nil
}

// storedRow is the single backend-level shape; type recovery happens
// entirely at the facade boundary.
type storedRow struct {
	collection string
	identifier string
	data       []byte
	updatedAt  time.Time
}

func (r storedRow) identity() Identity {
	return Identity{Collection: r.collection, Identifier: r.identifier}
}

func encodeRecords[T any](records []Record[T]) ([]storedRow, error) {
	rows := make([]storedRow, 0, len(records))
	for _, record := range records {
		if err := record.Identity.Validate(); err != nil {
			return nil, err
		}
		data, err := encodeEntity(record.Entity)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", record.Identity, err)
		}
		rows = append(rows, storedRow{
			collection: record.Identity.Collection,
			identifier: record.Identity.Identifier,
			data:       data,
		})
	}
	return rows, nil
}

func decodeRecords[T any](rows []storedRow) []Record[T] {
	records := make([]Record[T], 0, len(rows))
	for _, row := range rows {
		record, ok := DecodeRecord[T](row.identity(), row.data)
		if !ok {
			continue
		}
		records = append(records, record)
	}
	return records
}
