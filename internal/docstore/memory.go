package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store used in development mode and tests.
type Memory struct {
	mu    sync.RWMutex
	colls map[string]map[string]Document
	feed  *changeFeed
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		colls: make(map[string]map[string]Document),
		feed:  newChangeFeed(),
		now:   time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if err := validCollection(collection); err != nil {
		return Document{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.colls[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return cloneDocument(doc), nil
}

func (m *Memory) Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	out := make([]Document, 0, len(m.colls[collection]))
	for _, doc := range m.colls[collection] {
		if matchAll(doc.Data, filters) {
			out = append(out, cloneDocument(doc))
		}
	}
	m.mu.RUnlock()

	sortDocuments(out)
	return out, nil
}

func (m *Memory) Add(ctx context.Context, collection string, doc any) (string, error) {
	id := uuid.NewString()
	if err := m.write(ctx, collection, id, doc, false); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, doc any) error {
	return m.write(ctx, collection, id, doc, true)
}

func (m *Memory) write(ctx context.Context, collection, id string, doc any, upsert bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validCollection(collection); err != nil {
		return err
	}
	data, err := toData(doc)
	if err != nil {
		return err
	}

	m.mu.Lock()
	coll := m.colls[collection]
	if coll == nil {
		coll = make(map[string]Document)
		m.colls[collection] = coll
	}
	now := m.now()
	created := now
	if existing, ok := coll[id]; ok && upsert {
		created = existing.CreatedAt
	}
	coll[id] = Document{ID: id, Data: data, CreatedAt: created, UpdatedAt: now}
	m.mu.Unlock()

	m.feed.publish(collection)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch Patch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validCollection(collection); err != nil {
		return err
	}

	m.mu.Lock()
	doc, ok := m.colls[collection][id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	doc = cloneDocument(doc)
	if err := patch.apply(doc.Data); err != nil {
		m.mu.Unlock()
		return err
	}
	doc.UpdatedAt = m.now()
	m.colls[collection][id] = doc
	m.mu.Unlock()

	m.feed.publish(collection)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validCollection(collection); err != nil {
		return err
	}

	m.mu.Lock()
	if _, ok := m.colls[collection][id]; !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.colls[collection], id)
	m.mu.Unlock()

	m.feed.publish(collection)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string, filters []Filter, fn func([]Document)) (func(), error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	query := func(ctx context.Context) ([]Document, error) {
		return m.Query(ctx, collection, filters...)
	}
	return runLiveQuery(ctx, m.feed, collection, query, fn), nil
}

func cloneDocument(doc Document) Document {
	out := doc
	out.Data = cloneValue(doc.Data).(map[string]any)
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}

var _ Store = (*Memory)(nil)
