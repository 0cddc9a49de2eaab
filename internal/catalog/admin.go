package catalog

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/buyukinventory/marketplace/internal/docstore"
)

// Stored event statuses.
const (
	EventActive    = "active"
	EventCancelled = "cancelled"
	EventCompleted = "completed"
)

// Event states shown to admins, derived from the status and the dates.
const (
	EventStateUpcoming  = "upcoming"
	EventStatePast      = "past"
	EventStateCancelled = "cancelled"
)

type EventSchedule struct {
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

type Event struct {
	ID          string        `json:"-"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Date        time.Time     `json:"date"`
	EndDate     *time.Time    `json:"endDate,omitempty"`
	IsMultiDay  bool          `json:"isMultiDay"`
	Location    string        `json:"location"`
	Schedule    EventSchedule `json:"schedule"`
	Status      string        `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// LastDay is the final day of the event.
func (e Event) LastDay() time.Time {
	if e.EndDate != nil && e.EndDate.After(e.Date) {
		return *e.EndDate
	}
	return e.Date
}

// State reports whether the event is upcoming, past or cancelled as of now.
// An event is still upcoming on its last day.
func (e Event) State(now time.Time) string {
	switch {
	case e.Status == EventCancelled:
		return EventStateCancelled
	case e.Status == EventCompleted:
		return EventStatePast
	case dayOf(e.LastDay()).Before(dayOf(now)):
		return EventStatePast
	default:
		return EventStateUpcoming
	}
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Stores returns every store ordered by name.
func (c *Catalog) Stores(ctx context.Context) ([]Store, error) {
	docs, err := c.docs.Query(ctx, docstore.CollectionStores)
	if err != nil {
		return nil, err
	}
	stores, err := decodeAll[Store](docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(stores, func(i, j int) bool {
		return strings.ToLower(stores[i].Name) < strings.ToLower(stores[j].Name)
	})
	return stores, nil
}

// Products returns every product ordered by name, with StoreName filled in
// from stores. Products whose store is gone keep an empty StoreName.
func (c *Catalog) Products(ctx context.Context, stores []Store) ([]Product, error) {
	docs, err := c.docs.Query(ctx, docstore.CollectionProducts)
	if err != nil {
		return nil, err
	}
	products, err := decodeAll[Product](docs)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(stores))
	for _, s := range stores {
		names[s.ID] = s.Name
	}
	for i := range products {
		products[i].StoreName = names[products[i].StoreID]
	}
	sort.SliceStable(products, func(i, j int) bool {
		return strings.ToLower(products[i].Name) < strings.ToLower(products[j].Name)
	})
	return products, nil
}

// Events returns every event, latest date first.
func (c *Catalog) Events(ctx context.Context) ([]Event, error) {
	docs, err := c.docs.Query(ctx, docstore.CollectionEvents)
	if err != nil {
		return nil, err
	}
	events, err := decodeAll[Event](docs)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.After(events[j].Date)
	})
	return events, nil
}

// FilterEvents applies the admin search box and state selector. state is
// all or one of the EventState values.
func FilterEvents(events []Event, search, state string, now time.Time) []Event {
	search = strings.ToLower(strings.TrimSpace(search))
	state = strings.TrimSpace(state)

	out := make([]Event, 0, len(events))
	for _, e := range events {
		if search != "" && !containsFold(search, e.Name, e.Description, e.Location) {
			continue
		}
		if state != "" && state != FilterAll && e.State(now) != state {
			continue
		}
		out = append(out, e)
	}
	return out
}

// StoreNamesByVendor maps each vendor id to the names of its stores, in the
// order the stores are given.
func StoreNamesByVendor(stores []Store) map[string][]string {
	out := make(map[string][]string)
	for _, s := range stores {
		for _, id := range s.VendorIDs {
			out[id] = append(out[id], s.Name)
		}
	}
	return out
}
