package persistency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// changeHub fans commit notifications out to observation streams. Each
// subscription owns a one-slot signal channel, so notifications coalesce
// while a stream is busy re-querying instead of queueing up behind it.
type changeHub struct {
	mu   sync.Mutex
	subs map[string]*hubSubscription
}

type hubSubscription struct {
	collection string
	signal     chan struct{}
}

func newChangeHub() *changeHub {
	return &changeHub{subs: map[string]*hubSubscription{}}
}

func (h *changeHub) subscribe(collection string) (string, <-chan struct{}) {
	token := uuid.NewString()
	sub := &hubSubscription{collection: collection, signal: make(chan struct{}, 1)}
	h.mu.Lock()
	h.subs[token] = sub
	h.mu.Unlock()
	return token, sub.signal
}

func (h *changeHub) unsubscribe(token string) {
	h.mu.Lock()
	delete(h.subs, token)
	h.mu.Unlock()
}

func (h *changeHub) notify(collections []string) {
	if len(collections) == 0 {
		return
	}
	match := make(map[string]struct{}, len(collections))
	for _, collection := range collections {
		match[collection] = struct{}{}
	}
	h.mu.Lock()
	for _, sub := range h.subs {
		if _, ok := match[sub.collection]; !ok {
			continue
		}
		select {
		case sub.signal <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *changeHub) notifyAll() {
	h.mu.Lock()
	for _, sub := range h.subs {
		select {
		case sub.signal <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

// CollectionStream delivers the decoded state of one collection: the current
// records immediately on subscription, then again after every change. The
// updates channel closes when the stream ends; Err reports why.
type CollectionStream[T any] struct {
	updates chan []Record[T]
	quit    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	err       error
}

func (s *CollectionStream[T]) Updates() <-chan []Record[T] {
	return s.updates
}

// Close ends the stream and releases its subscription. It is safe to call
// more than once and safe to call concurrently with channel receives.
func (s *CollectionStream[T]) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

// Err returns the terminal error once the updates channel has closed, or
// nil while the stream is still live or after a clean shutdown.
func (s *CollectionStream[T]) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// ResourceStream delivers the decoded state of one identity: a nil element
// means the record is currently absent.
type ResourceStream[T any] struct {
	updates chan *Record[T]
	quit    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	err       error
}

func (s *ResourceStream[T]) Updates() <-chan *Record[T] {
	return s.updates
}

func (s *ResourceStream[T]) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

func (s *ResourceStream[T]) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// ObserveResources opens a stream over every record in the collection. The
// first element arrives without waiting for a change; later elements follow
// commits that touched the collection. Elements are skipped when the stored
// bytes did not actually change, so writers re-saving identical data do not
// wake consumers.
func ObserveResources[T any](ctx context.Context, w *Worker, collection string) (*CollectionStream[T], error) {
	if collection == "" {
		return nil, fmt.Errorf("observe resources: %w: collection is empty", ErrInvalidIdentity)
	}
	if err := w.ensureOpen(); err != nil {
		return nil, fmt.Errorf("observe resources: %w", err)
	}

	token, signal := w.hub.subscribe(collection)
	stream := &CollectionStream[T]{
		updates: make(chan []Record[T], 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go runCollectionStream(ctx, w, collection, token, signal, stream)
	return stream, nil
}

// ObserveResource opens a stream over one identity. Absence is a valid
// state and is delivered as a nil element, including as the first one.
func ObserveResource[T any](ctx context.Context, w *Worker, identity Identity) (*ResourceStream[T], error) {
	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("observe resource: %w", err)
	}
	if err := w.ensureOpen(); err != nil {
		return nil, fmt.Errorf("observe resource: %w", err)
	}

	token, signal := w.hub.subscribe(identity.Collection)
	stream := &ResourceStream[T]{
		updates: make(chan *Record[T], 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go runResourceStream(ctx, w, identity, token, signal, stream)
	return stream, nil
}

func runCollectionStream[T any](ctx context.Context, w *Worker, collection, token string, signal <-chan struct{}, s *CollectionStream[T]) {
	// done closes before updates so Err is settled by the time a receiver
	// sees the channel close.
	defer close(s.updates)
	defer close(s.done)
	defer w.hub.unsubscribe(token)

	emit := func(records []Record[T]) bool {
		select {
		case s.updates <- records:
			return true
		case <-ctx.Done():
			return false
		case <-s.quit:
			return false
		case <-w.closed:
			s.err = ErrWorkerClosed
			return false
		}
	}

	rows, err := w.collectionRows(ctx, collection)
	if err != nil {
		s.err = streamQueryError(w, err)
		return
	}
	last := rowsFingerprint(rows)
	if !emit(decodeRecords[T](rows)) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-w.closed:
			s.err = ErrWorkerClosed
			return
		case <-signal:
			rows, err := w.collectionRows(ctx, collection)
			if err != nil {
				s.err = streamQueryError(w, err)
				return
			}
			next := rowsFingerprint(rows)
			if next == last {
				continue
			}
			if !emit(decodeRecords[T](rows)) {
				return
			}
			last = next
		}
	}
}

func runResourceStream[T any](ctx context.Context, w *Worker, identity Identity, token string, signal <-chan struct{}, s *ResourceStream[T]) {
	defer close(s.updates)
	defer close(s.done)
	defer w.hub.unsubscribe(token)

	emit := func(record *Record[T]) bool {
		select {
		case s.updates <- record:
			return true
		case <-ctx.Done():
			return false
		case <-s.quit:
			return false
		case <-w.closed:
			s.err = ErrWorkerClosed
			return false
		}
	}

	row, found, err := w.identityRow(ctx, identity)
	if err != nil {
		s.err = streamQueryError(w, err)
		return
	}
	last := rowFingerprint(row, found)
	if !emit(decodeResourceRow[T](identity, row, found)) {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.quit:
			return
		case <-w.closed:
			s.err = ErrWorkerClosed
			return
		case <-signal:
			row, found, err := w.identityRow(ctx, identity)
			if err != nil {
				s.err = streamQueryError(w, err)
				return
			}
			next := rowFingerprint(row, found)
			if next == last {
				continue
			}
			if !emit(decodeResourceRow[T](identity, row, found)) {
				return
			}
			last = next
		}
	}
}

func decodeResourceRow[T any](identity Identity, row storedRow, found bool) *Record[T] {
	if !found {
		return nil
	}
	record, ok := DecodeRecord[T](identity, row.data)
	if !ok {
		return nil
	}
	return &record
}

// streamQueryError classifies a failed re-query. Context cancellation is
// the consumer ending its subscription, not a fault.
func streamQueryError(w *Worker, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	select {
	case <-w.closed:
		return ErrWorkerClosed
	default:
	}
	return fmt.Errorf("%w: %w", ErrTransaction, err)
}

// rowsFingerprint summarizes a query result so a stream can tell whether the
// stored state actually changed between two wakeups.
func rowsFingerprint(rows []storedRow) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(row.identifier)
		b.WriteByte(0)
		b.WriteString(strconv.Itoa(len(row.data)))
		b.WriteByte(0)
		b.Write(row.data)
		b.WriteByte(1)
	}
	return b.String()
}

func rowFingerprint(row storedRow, found bool) string {
	if !found {
		return ""
	}
	return rowsFingerprint([]storedRow{row})
}
