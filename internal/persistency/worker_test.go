package persistency

import (
	"context"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testCity struct {
	Name       string  `json:"name"`
	Population int     `json:"population"`
	Latitude   float64 `json:"latitude"`
}

func newTestWorker(t *testing.T) *Worker {
	t.Helper()
	worker, err := NewWorker(Config{
		Directory: t.TempDir(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = worker.Close() })
	return worker
}

func TestNewWorkerRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := NewWorker(Config{})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNewWorkerCreatesDirectory(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "data")
	worker, err := NewWorker(Config{Directory: dir})
	require.NoError(t, err)
	defer worker.Close()

	require.Equal(t, filepath.Join(dir, defaultFileName), worker.Path())
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	identity := NewIdentity("weatherInformation.bookmarked", "2643743")
	city := testCity{Name: "London", Population: 8900000, Latitude: 51.5072}

	require.NoError(t, SaveResource(ctx, worker, NewRecord(identity, city)))

	got, found, err := GetResource[testCity](ctx, worker, identity)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, identity, got.Identity)
	require.Equal(t, city, got.Entity)
}

func TestGetAbsentResource(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)

	_, found, err := GetResource[testCity](context.Background(), worker, NewIdentity("weatherInformation.bookmarked", "missing"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestSaveUpsertsByIdentity(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	identity := NewIdentity("weatherInformation.nearby", "2950159")
	require.NoError(t, SaveResource(ctx, worker, NewRecord(identity, testCity{Name: "Berlin", Population: 3600000})))
	require.NoError(t, SaveResource(ctx, worker, NewRecord(identity, testCity{Name: "Berlin", Population: 3700000})))

	records, err := ListResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 3700000, records[0].Entity.Population)
}

func TestIdentityComparedExactly(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	upper := NewIdentity("weatherStations.bookmarked", "London")
	lower := NewIdentity("weatherStations.bookmarked", "london")
	require.NoError(t, SaveResource(ctx, worker, NewRecord(upper, testCity{Name: "upper"})))
	require.NoError(t, SaveResource(ctx, worker, NewRecord(lower, testCity{Name: "lower"})))

	records, err := ListResources[testCity](ctx, worker, "weatherStations.bookmarked")
	require.NoError(t, err)
	require.Len(t, records, 2)

	got, found, err := GetResource[testCity](ctx, worker, upper)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "upper", got.Entity.Name)
}

func TestListOrdersByIdentifier(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	records := []Record[testCity]{
		NewRecord(NewIdentity("weatherInformation.nearby", "30"), testCity{Name: "c"}),
		NewRecord(NewIdentity("weatherInformation.nearby", "10"), testCity{Name: "a"}),
		NewRecord(NewIdentity("weatherInformation.nearby", "20"), testCity{Name: "b"}),
	}
	require.NoError(t, SaveResources(ctx, worker, records))

	listed, err := ListResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	require.Len(t, listed, 3)
	require.Equal(t, "10", listed[0].Identity.Identifier)
	require.Equal(t, "20", listed[1].Identity.Identifier)
	require.Equal(t, "30", listed[2].Identity.Identifier)
}

func TestListScopedToCollection(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	require.NoError(t, SaveResource(ctx, worker, NewRecord(NewIdentity("weatherInformation.bookmarked", "1"), testCity{Name: "a"})))
	require.NoError(t, SaveResource(ctx, worker, NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{Name: "b"})))

	records, err := ListResources[testCity](ctx, worker, "weatherInformation.bookmarked")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "a", records[0].Entity.Name)
}

func TestSaveBatchEncodingFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	records := []Record[testCity]{
		NewRecord(NewIdentity("weatherInformation.nearby", "ok"), testCity{Name: "fine"}),
		NewRecord(NewIdentity("weatherInformation.nearby", "bad"), testCity{Latitude: math.NaN()}),
	}
	err := SaveResources(ctx, worker, records)
	require.ErrorIs(t, err, ErrDataEncoding)

	listed, err := ListResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestSaveRejectsInvalidIdentity(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)

	err := SaveResource(context.Background(), worker, NewRecord(NewIdentity("", "x"), testCity{}))
	require.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestDeleteRemovesAllMatching(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	keep := NewIdentity("weatherInformation.nearby", "keep")
	drop := NewIdentity("weatherInformation.nearby", "drop")
	other := NewIdentity("weatherInformation.bookmarked", "drop")
	require.NoError(t, SaveResources(ctx, worker, []Record[testCity]{
		NewRecord(keep, testCity{Name: "keep"}),
		NewRecord(drop, testCity{Name: "drop"}),
		NewRecord(other, testCity{Name: "other"}),
	}))

	require.NoError(t, worker.DeleteResource(ctx, drop))

	_, found, err := GetResource[testCity](ctx, worker, drop)
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = GetResource[testCity](ctx, worker, keep)
	require.NoError(t, err)
	require.True(t, found)

	_, found, err = GetResource[testCity](ctx, worker, other)
	require.NoError(t, err)
	require.True(t, found)
}

func TestDeleteAbsentIsNoop(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	require.NoError(t, worker.DeleteResource(context.Background(), NewIdentity("weatherInformation.nearby", "missing")))
}

func TestCorruptRowReadsAsAbsent(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	identity := NewIdentity("weatherInformation.nearby", "corrupt")
	_, err := worker.DB().ExecContext(ctx, `INSERT INTO resources(collection, identifier, data, updated_at) VALUES(?, ?, ?, ?)`,
		identity.Collection, identity.Identifier, []byte("{not json"), toMillis(nowUTC()))
	require.NoError(t, err)

	_, found, err := GetResource[testCity](ctx, worker, identity)
	require.NoError(t, err)
	require.False(t, found)

	listed, err := ListResources[testCity](ctx, worker, identity.Collection)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ctx := context.Background()
	identity := NewIdentity("preferences", "default")

	worker, err := NewWorker(Config{Directory: dir})
	require.NoError(t, err)
	require.NoError(t, SaveResource(ctx, worker, NewRecord(identity, testCity{Name: "saved"})))
	require.NoError(t, worker.Close())

	reopened, err := NewWorker(Config{Directory: dir})
	require.NoError(t, err)
	defer reopened.Close()

	got, found, err := GetResource[testCity](ctx, reopened, identity)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "saved", got.Entity.Name)
}

func TestOperationsAfterClose(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	require.NoError(t, worker.Close())
	require.NoError(t, worker.Close())

	ctx := context.Background()
	identity := NewIdentity("weatherInformation.nearby", "1")

	err := SaveResource(ctx, worker, NewRecord(identity, testCity{}))
	require.ErrorIs(t, err, ErrWorkerClosed)

	_, _, err = GetResource[testCity](ctx, worker, identity)
	require.ErrorIs(t, err, ErrWorkerClosed)

	_, err = ListResources[testCity](ctx, worker, identity.Collection)
	require.ErrorIs(t, err, ErrWorkerClosed)

	err = worker.DeleteResource(ctx, identity)
	require.ErrorIs(t, err, ErrWorkerClosed)
}

func TestStatsCountsCollections(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	require.NoError(t, SaveResources(ctx, worker, []Record[testCity]{
		NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{}),
		NewRecord(NewIdentity("weatherInformation.nearby", "2"), testCity{}),
		NewRecord(NewIdentity("preferences", "default"), testCity{}),
	}))

	stats, err := worker.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, CurrentSchemaVersion(), stats.SchemaVersion)
	require.Equal(t, int64(3), stats.TotalRecords)
	require.Equal(t, int64(2), stats.Collections["weatherInformation.nearby"])
	require.Equal(t, int64(1), stats.Collections["preferences"])
}

func TestPruneStaleRemovesOldRecords(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	require.NoError(t, SaveResources(ctx, worker, []Record[testCity]{
		NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{}),
		NewRecord(NewIdentity("weatherInformation.nearby", "2"), testCity{}),
	}))

	pruned, err := worker.PruneStale(ctx, "weatherInformation.nearby", nowUTC().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(2), pruned)

	listed, err := ListResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	require.Empty(t, listed)
}

func TestPruneStaleKeepsFreshRecords(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	require.NoError(t, SaveResource(ctx, worker, NewRecord(NewIdentity("weatherInformation.nearby", "fresh"), testCity{})))

	pruned, err := worker.PruneStale(ctx, "weatherInformation.nearby", nowUTC().Add(-time.Hour))
	require.NoError(t, err)
	require.Zero(t, pruned)
}

func TestDeleteCollection(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	require.NoError(t, SaveResources(ctx, worker, []Record[testCity]{
		NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{}),
		NewRecord(NewIdentity("weatherInformation.nearby", "2"), testCity{}),
		NewRecord(NewIdentity("preferences", "default"), testCity{}),
	}))

	removed, err := worker.DeleteCollection(ctx, "weatherInformation.nearby")
	require.NoError(t, err)
	require.Equal(t, int64(2), removed)

	listed, err := ListResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	require.Empty(t, listed)

	_, found, err := GetResource[testCity](ctx, worker, NewIdentity("preferences", "default"))
	require.NoError(t, err)
	require.True(t, found)
}

func TestCheckpoint(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	require.NoError(t, SaveResource(ctx, worker, NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{Name: "x"})))
	require.NoError(t, worker.Checkpoint(ctx))
}
