package cli

import (
	"context"
	"io"

	"github.com/Sabuj-CSE11/NearbyWeather/internal/persistency"
)

// watchCollection streams emissions as JSON lines, one array per line,
// until the context ends, the stream terminates or limit is reached.
func watchCollection[T any](ctx context.Context, out io.Writer, stream *persistency.CollectionStream[T], limit int) error {
	emitted := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case records, ok := <-stream.Updates():
			if !ok {
				return stream.Err()
			}
			entities := make([]T, len(records))
			for i, record := range records {
				entities[i] = record.Entity
			}
			if err := printJSONLine(out, entities); err != nil {
				return err
			}
			emitted++
			if limit > 0 && emitted >= limit {
				return nil
			}
		}
	}
}

// watchResource streams single-record emissions; an absent record prints
// as JSON null.
func watchResource[T any](ctx context.Context, out io.Writer, stream *persistency.ResourceStream[T], limit int) error {
	emitted := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case record, ok := <-stream.Updates():
			if !ok {
				return stream.Err()
			}
			var value any
			if record != nil {
				value = record.Entity
			}
			if err := printJSONLine(out, value); err != nil {
				return err
			}
			emitted++
			if limit > 0 && emitted >= limit {
				return nil
			}
		}
	}
}
