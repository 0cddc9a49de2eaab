package authstate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/buyukinventory/marketplace/internal/identity"
	"github.com/buyukinventory/marketplace/internal/metrics"
	"github.com/buyukinventory/marketplace/internal/session"
)

const DefaultIdleTTL = 30 * time.Minute

type SessionProvider interface {
	Session(sessionID string) *identity.Session
	Forget(sessionID string)
}

// Entry is the per-browser-session pair of resolver and marker jar.
type Entry struct {
	Resolver *Resolver
	Jar      *session.Jar

	lastUsed time.Time
}

// Registry owns one Entry per browser session id.
type Registry struct {
	provider SessionProvider
	profiles ProfileSource
	opts     []Option
	idleTTL  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
}

func NewRegistry(provider SessionProvider, profiles ProfileSource, idleTTL time.Duration, opts ...Option) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		provider: provider,
		profiles: profiles,
		opts:     opts,
		idleTTL:  idleTTL,
		now:      time.Now,
		entries:  make(map[string]*Entry),
	}
}

// Get returns the session's entry, creating and subscribing it on first use.
func (r *Registry) Get(sessionID string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[sessionID]; ok {
		e.lastUsed = r.now()
		return e
	}
	jar := session.NewJar()
	e := &Entry{
		Resolver: New(r.provider.Session(sessionID), r.profiles, jar, r.opts...),
		Jar:      jar,
		lastUsed: r.now(),
	}
	r.entries[sessionID] = e
	metrics.AuthResolversActive.Set(float64(len(r.entries)))
	return e
}

// Lookup returns an existing entry without creating one.
func (r *Registry) Lookup(sessionID string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if ok {
		e.lastUsed = r.now()
	}
	return e, ok
}

// Remove closes and drops the session's entry.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	metrics.AuthResolversActive.Set(float64(len(r.entries)))
	r.mu.Unlock()

	if ok {
		e.Resolver.Close()
		r.provider.Forget(sessionID)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts entries idle for longer than the idle TTL and reports how many
// were removed. Evicted sessions are restored on their next request.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []string
	for id, e := range r.entries {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.Unlock()

	for _, id := range idle {
		r.Remove(id)
	}
	return len(idle)
}

// Run sweeps on an interval until ctx is done, then closes every entry.
func (r *Registry) Run(ctx context.Context) {
	interval := r.idleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.Close()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Debug("evicted idle auth resolvers", "count", n)
			}
		}
	}
}

func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Remove(id)
	}
}
