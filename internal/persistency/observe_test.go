package persistency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	updateWait = 2 * time.Second
	quietWait  = 300 * time.Millisecond
)

func waitCollectionUpdate(t *testing.T, stream *CollectionStream[testCity]) []Record[testCity] {
	t.Helper()
	select {
	case records, ok := <-stream.Updates():
		require.True(t, ok, "stream ended early: %v", stream.Err())
		return records
	case <-time.After(updateWait):
		t.Fatal("timed out waiting for collection update")
		return nil
	}
}

func waitResourceUpdate(t *testing.T, stream *ResourceStream[testCity]) *Record[testCity] {
	t.Helper()
	select {
	case record, ok := <-stream.Updates():
		require.True(t, ok, "stream ended early: %v", stream.Err())
		return record
	case <-time.After(updateWait):
		t.Fatal("timed out waiting for resource update")
		return nil
	}
}

func requireQuiet(t *testing.T, stream *CollectionStream[testCity]) {
	t.Helper()
	select {
	case records, ok := <-stream.Updates():
		require.True(t, ok, "stream ended early: %v", stream.Err())
		t.Fatalf("unexpected update: %v", records)
	case <-time.After(quietWait):
	}
}

func waitStreamEnd[E any](t *testing.T, updates <-chan E) {
	t.Helper()
	deadline := time.After(updateWait)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not end")
		}
	}
}

func TestObserveCollectionDeliversInitialState(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	require.NoError(t, SaveResource(ctx, worker, NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{Name: "Berlin"})))

	stream, err := ObserveResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	defer stream.Close()

	records := waitCollectionUpdate(t, stream)
	require.Len(t, records, 1)
	require.Equal(t, "Berlin", records[0].Entity.Name)
}

func TestObserveCollectionEmptyInitialState(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)

	stream, err := ObserveResources[testCity](context.Background(), worker, "weatherInformation.nearby")
	require.NoError(t, err)
	defer stream.Close()

	records := waitCollectionUpdate(t, stream)
	require.Empty(t, records)
}

func TestObserveCollectionEmitsOnEachChange(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	stream, err := ObserveResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	defer stream.Close()

	require.Empty(t, waitCollectionUpdate(t, stream))

	for i, population := range []int{100, 200, 300} {
		require.NoError(t, SaveResource(ctx, worker, NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{Name: "Berlin", Population: population})))
		records := waitCollectionUpdate(t, stream)
		require.Len(t, records, 1, "update %d", i)
		require.Equal(t, population, records[0].Entity.Population)
	}
}

func TestObserveCollectionSkipsIdenticalSave(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	record := NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{Name: "Berlin"})
	require.NoError(t, SaveResource(ctx, worker, record))

	stream, err := ObserveResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	defer stream.Close()

	require.Len(t, waitCollectionUpdate(t, stream), 1)

	require.NoError(t, SaveResource(ctx, worker, record))
	requireQuiet(t, stream)
}

func TestObserveCollectionIgnoresOtherCollections(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	stream, err := ObserveResources[testCity](ctx, worker, "weatherInformation.bookmarked")
	require.NoError(t, err)
	defer stream.Close()

	require.Empty(t, waitCollectionUpdate(t, stream))

	require.NoError(t, SaveResource(ctx, worker, NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{Name: "Berlin"})))
	requireQuiet(t, stream)
}

func TestObserveCollectionSeesDeletes(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	identity := NewIdentity("weatherInformation.nearby", "1")
	require.NoError(t, SaveResource(ctx, worker, NewRecord(identity, testCity{Name: "Berlin"})))

	stream, err := ObserveResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	defer stream.Close()

	require.Len(t, waitCollectionUpdate(t, stream), 1)

	require.NoError(t, worker.DeleteResource(ctx, identity))
	require.Empty(t, waitCollectionUpdate(t, stream))
}

func TestObserveResourceAbsentPresentAbsent(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()
	identity := NewIdentity("preferences", "default")

	stream, err := ObserveResource[testCity](ctx, worker, identity)
	require.NoError(t, err)
	defer stream.Close()

	require.Nil(t, waitResourceUpdate(t, stream))

	require.NoError(t, SaveResource(ctx, worker, NewRecord(identity, testCity{Name: "prefs"})))
	record := waitResourceUpdate(t, stream)
	require.NotNil(t, record)
	require.Equal(t, "prefs", record.Entity.Name)

	require.NoError(t, worker.DeleteResource(ctx, identity))
	require.Nil(t, waitResourceUpdate(t, stream))
}

func TestObserveResourceIgnoresSiblingIdentifiers(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	stream, err := ObserveResource[testCity](ctx, worker, NewIdentity("weatherInformation.nearby", "watched"))
	require.NoError(t, err)
	defer stream.Close()

	require.Nil(t, waitResourceUpdate(t, stream))

	// A sibling write wakes the stream but the fingerprint is unchanged, so
	// nothing is delivered.
	require.NoError(t, SaveResource(ctx, worker, NewRecord(NewIdentity("weatherInformation.nearby", "other"), testCity{Name: "x"})))
	select {
	case record, ok := <-stream.Updates():
		require.True(t, ok, "stream ended early: %v", stream.Err())
		t.Fatalf("unexpected update: %v", record)
	case <-time.After(quietWait):
	}
}

func TestObserveStreamClose(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)

	stream, err := ObserveResources[testCity](context.Background(), worker, "weatherInformation.nearby")
	require.NoError(t, err)

	stream.Close()
	stream.Close()
	waitStreamEnd(t, stream.Updates())
	require.NoError(t, stream.Err())
}

func TestObserveContextCancellation(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := ObserveResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	defer stream.Close()

	cancel()
	waitStreamEnd(t, stream.Updates())
	require.NoError(t, stream.Err())
}

func TestWorkerCloseEndsStreams(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)

	collectionStream, err := ObserveResources[testCity](context.Background(), worker, "weatherInformation.nearby")
	require.NoError(t, err)
	resourceStream, err := ObserveResource[testCity](context.Background(), worker, NewIdentity("preferences", "default"))
	require.NoError(t, err)

	require.NoError(t, worker.Close())

	waitStreamEnd(t, collectionStream.Updates())
	require.ErrorIs(t, collectionStream.Err(), ErrWorkerClosed)

	waitStreamEnd(t, resourceStream.Updates())
	require.ErrorIs(t, resourceStream.Err(), ErrWorkerClosed)
}

func TestObserveOnClosedWorker(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	require.NoError(t, worker.Close())

	_, err := ObserveResources[testCity](context.Background(), worker, "weatherInformation.nearby")
	require.ErrorIs(t, err, ErrWorkerClosed)

	_, err = ObserveResource[testCity](context.Background(), worker, NewIdentity("preferences", "default"))
	require.ErrorIs(t, err, ErrWorkerClosed)
}

func TestObserveRequiresCollection(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)

	_, err := ObserveResources[testCity](context.Background(), worker, "")
	require.ErrorIs(t, err, ErrInvalidIdentity)

	_, err = ObserveResource[testCity](context.Background(), worker, NewIdentity("preferences", ""))
	require.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestObserveMultipleStreamsSameCollection(t *testing.T) {
	t.Parallel()

	worker := newTestWorker(t)
	ctx := context.Background()

	first, err := ObserveResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	defer first.Close()
	second, err := ObserveResources[testCity](ctx, worker, "weatherInformation.nearby")
	require.NoError(t, err)
	defer second.Close()

	require.Empty(t, waitCollectionUpdate(t, first))
	require.Empty(t, waitCollectionUpdate(t, second))

	require.NoError(t, SaveResource(ctx, worker, NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{Name: "Berlin"})))

	require.Len(t, waitCollectionUpdate(t, first), 1)
	require.Len(t, waitCollectionUpdate(t, second), 1)
}
