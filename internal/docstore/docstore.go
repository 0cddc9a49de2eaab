// Package docstore is the document database used by every part of the
// application: named collections of JSON documents addressed by id, with
// simple field filters and a change feed for live queries.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"
)

const (
	CollectionUsers      = "users"
	CollectionStores     = "stores"
	CollectionProducts   = "products"
	CollectionEvents     = "events"
	CollectionSales      = "sales"
	CollectionIdentities = "identities"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrInvalidCollection = errors.New("invalid collection")
	ErrInvalidPatch      = errors.New("invalid patch")
	// ErrConditionFailed means a guarded patch was rejected and nothing was
	// written.
	ErrConditionFailed = errors.New("patch condition failed")
)

// Store is implemented by the in-memory and Postgres backends.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, collection string, filters ...Filter) ([]Document, error)
	Add(ctx context.Context, collection string, doc any) (string, error)
	Set(ctx context.Context, collection, id string, doc any) error
	Update(ctx context.Context, collection, id string, patch Patch) error
	Delete(ctx context.Context, collection, id string) error
	// Subscribe delivers the current query result and then a fresh result
	// after every change to the collection, until ctx is done or the returned
	// cancel func is called. Deliveries never overlap.
	Subscribe(ctx context.Context, collection string, filters []Filter, fn func([]Document)) (func(), error)
}

type Document struct {
	ID        string
	Data      map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode copies the document data into dst via its JSON representation.
func (d Document) Decode(dst any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

// String returns a string field or "".
func (d Document) String(field string) string {
	s, _ := d.Data[field].(string)
	return s
}

type Op string

const (
	OpEq            Op = "=="
	OpArrayContains Op = "array-contains"
	OpIn            Op = "in"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEq, Value: value}
}

func ArrayContains(field string, value any) Filter {
	return Filter{Field: field, Op: OpArrayContains, Value: value}
}

func In[T any](field string, values ...T) Filter {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return Filter{Field: field, Op: OpIn, Value: out}
}

// Match reports whether data satisfies the filter.
func (f Filter) Match(data map[string]any) bool {
	got, ok := data[f.Field]
	if !ok {
		return false
	}
	want, err := normalizeValue(f.Value)
	if err != nil {
		return false
	}
	switch f.Op {
	case OpEq:
		return reflect.DeepEqual(got, want)
	case OpArrayContains:
		arr, ok := got.([]any)
		if !ok {
			return false
		}
		for _, v := range arr {
			if reflect.DeepEqual(v, want) {
				return true
			}
		}
		return false
	case OpIn:
		candidates, ok := want.([]any)
		if !ok {
			return false
		}
		for _, v := range candidates {
			if reflect.DeepEqual(got, v) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (f Filter) validate() error {
	if f.Field == "" {
		return fmt.Errorf("docstore: filter field is empty")
	}
	switch f.Op {
	case OpEq, OpArrayContains, OpIn:
		return nil
	default:
		return fmt.Errorf("docstore: unsupported filter op %q", f.Op)
	}
}

func matchAll(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !f.Match(data) {
			return false
		}
	}
	return true
}

// Patch sets top-level fields. A value produced by Increment adds to the
// current numeric value instead of replacing it. A patch is applied as one
// unit: if any field fails, the document is left unchanged.
type Patch map[string]any

type increment struct {
	by       float64
	floor    float64
	hasFloor bool
}

func Increment(by float64) any {
	return increment{by: by}
}

// IncrementAtLeast adds by to a numeric field unless the result would drop
// below floor, in which case the update fails with ErrConditionFailed. The
// check and the write happen together.
func IncrementAtLeast(by, floor float64) any {
	return increment{by: by, floor: floor, hasFloor: true}
}

func (p Patch) apply(data map[string]any) error {
	for field, value := range p {
		if field == "" {
			return ErrInvalidPatch
		}
		if inc, ok := value.(increment); ok {
			var current float64
			switch v := data[field].(type) {
			case nil:
			case float64:
				current = v
			default:
				return fmt.Errorf("%w: field %q is not numeric", ErrInvalidPatch, field)
			}
			next := current + inc.by
			if inc.hasFloor && next < inc.floor {
				return fmt.Errorf("%w: %q would be %v, below %v", ErrConditionFailed, field, next, inc.floor)
			}
			data[field] = next
			continue
		}
		normalized, err := normalizeValue(value)
		if err != nil {
			return err
		}
		data[field] = normalized
	}
	return nil
}

// toData converts an arbitrary document into its JSON object form.
func toData(doc any) (map[string]any, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("docstore: document must be a JSON object: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

func normalizeValue(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortDocuments(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}

func validCollection(name string) error {
	switch name {
	case CollectionUsers, CollectionStores, CollectionProducts, CollectionEvents, CollectionSales, CollectionIdentities:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCollection, name)
	}
}
