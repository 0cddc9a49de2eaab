package docstore

import (
	"context"
	"log/slog"
	"sync"
)

// changeFeed fans collection change signals out to live queries.
type changeFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan struct{}
}

func newChangeFeed() *changeFeed {
	return &changeFeed{subs: make(map[string]map[int]chan struct{})}
}

func (f *changeFeed) subscribe(collection string) (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	ch := make(chan struct{}, 1)
	if f.subs[collection] == nil {
		f.subs[collection] = make(map[int]chan struct{})
	}
	f.subs[collection][id] = ch

	return ch, func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[collection], id)
	}
}

func (f *changeFeed) publish(collection string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[collection] {
		// Coalesce: a pending signal already forces a re-query.
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

type queryFunc func(ctx context.Context) ([]Document, error)

// runLiveQuery delivers query results on every change signal until ctx ends.
func runLiveQuery(ctx context.Context, feed *changeFeed, collection string, query queryFunc, fn func([]Document)) func() {
	ctx, cancel := context.WithCancel(ctx)
	changes, unsubscribe := feed.subscribe(collection)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer unsubscribe()

		deliver := func() {
			docs, err := query(ctx)
			if err != nil {
				if ctx.Err() == nil {
					slog.Warn("docstore live query failed", "collection", collection, "error", err)
				}
				return
			}
			if ctx.Err() != nil {
				return
			}
			fn(docs)
		}

		deliver()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				deliver()
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
