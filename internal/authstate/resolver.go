// Package authstate keeps a live view of who is signed in to a browser session
// and what role they hold, and mirrors it into the session markers.
package authstate

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/identity"
	"github.com/buyukinventory/marketplace/internal/metrics"
	"github.com/buyukinventory/marketplace/internal/profile"
	"github.com/buyukinventory/marketplace/internal/session"
)

const DefaultFetchTimeout = 5 * time.Second

var ErrClosed = errors.New("auth resolver closed")

// State is the resolver's published view. Identity is nil when signed out.
// A present Identity with RoleNone is signed in but roleless.
type State struct {
	Identity *auth.Identity
	Role     auth.Role
	Loading  bool
}

func (s State) SignedIn() bool {
	return s.Identity != nil
}

// Principal returns the signed-in principal, if any.
func (s State) Principal() (auth.Principal, bool) {
	if s.Identity == nil || s.Loading {
		return auth.Principal{}, false
	}
	return auth.Principal{Identity: *s.Identity, Role: s.Role, Method: auth.MethodPassword}, true
}

type SessionSource interface {
	Subscribe(fn func(identity.Event)) func()
	SignOut(ctx context.Context) error
}

type ProfileSource interface {
	Get(ctx context.Context, id string) (profile.Record, error)
}

// MarkerWriter is the only sink allowed to change a session's markers.
type MarkerWriter interface {
	WriteMarkers(session.Markers)
	ClearMarkers()
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

type Resolver struct {
	src          SessionSource
	profiles     ProfileSource
	markers      MarkerWriter
	logger       *slog.Logger
	fetchTimeout time.Duration

	mu          sync.Mutex
	state       State
	seq         uint64
	cancelFetch context.CancelFunc
	settled     chan struct{}
	watchers    map[int]func(State)
	nextWatcher int
	closed      bool
	unsubscribe func()
	fetches     sync.WaitGroup
}

// New subscribes to src immediately. The initial state is loading until the
// first session event has been resolved.
func New(src SessionSource, profiles ProfileSource, markers MarkerWriter, opts ...Option) *Resolver {
	r := &Resolver{
		src:          src,
		profiles:     profiles,
		markers:      markers,
		logger:       slog.Default(),
		fetchTimeout: DefaultFetchTimeout,
		state:        State{Loading: true},
		settled:      make(chan struct{}),
		watchers:     make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(r)
	}
	unsubscribe := src.Subscribe(r.handle)

	r.mu.Lock()
	closed := r.closed
	r.unsubscribe = unsubscribe
	r.mu.Unlock()
	if closed {
		unsubscribe()
	}
	return r
}

func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Watch calls fn with the current state and on every later change until the
// returned cancel func is called or the resolver closes. Like later
// deliveries, the first call runs under the resolver lock, so fn never sees
// an older state after a newer one.
func (r *Resolver) Watch(fn func(State)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.state)
	if r.closed {
		return func() {}
	}
	r.nextWatcher++
	id := r.nextWatcher
	r.watchers[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.watchers, id)
		r.mu.Unlock()
	}
}

// Wait blocks until the resolver is not loading.
func (r *Resolver) Wait(ctx context.Context) (State, error) {
	for {
		r.mu.Lock()
		st, settled, closed := r.state, r.settled, r.closed
		r.mu.Unlock()
		if !st.Loading {
			return st, nil
		}
		if closed {
			return st, ErrClosed
		}
		select {
		case <-ctx.Done():
			return r.State(), ctx.Err()
		case <-settled:
		}
	}
}

// SignOut asks the identity provider to sign the session out. The markers are
// cleared by the resulting session event.
func (r *Resolver) SignOut(ctx context.Context) error {
	return r.src.SignOut(ctx)
}

// Refresh re-runs resolution for the current identity.
func (r *Resolver) Refresh() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.applyLocked(r.state.Identity)
}

// Close unsubscribes, cancels any in-flight fetch and drops watchers. Closing
// twice is a no-op.
func (r *Resolver) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.seq++
	if r.cancelFetch != nil {
		r.cancelFetch()
		r.cancelFetch = nil
	}
	r.watchers = map[int]func(State){}
	unsubscribe := r.unsubscribe
	close(r.settled)
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.fetches.Wait()
}

func (r *Resolver) handle(ev identity.Event) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.applyLocked(ev.Identity)
}

// applyLocked starts a resolution cycle for ident and releases r.mu.
func (r *Resolver) applyLocked(current *auth.Identity) {
	r.seq++
	seq := r.seq
	if r.cancelFetch != nil {
		r.cancelFetch()
		r.cancelFetch = nil
	}

	if current == nil {
		r.markers.ClearMarkers()
		r.publishLocked(State{})
		r.mu.Unlock()
		metrics.AuthResolutionsTotal.WithLabelValues("signed_out").Inc()
		return
	}

	ident := *current
	ctx, cancel := context.WithTimeout(context.Background(), r.fetchTimeout)
	r.cancelFetch = cancel
	r.publishLocked(State{Identity: &ident, Loading: true})
	r.fetches.Add(1)
	r.mu.Unlock()

	go r.resolve(ctx, seq, ident)
}

func (r *Resolver) resolve(ctx context.Context, seq uint64, ident auth.Identity) {
	defer r.fetches.Done()

	start := time.Now()
	rec, err := r.profiles.Get(ctx, ident.ID)
	metrics.ProfileFetchDuration.Observe(time.Since(start).Seconds())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || seq != r.seq {
		return
	}
	if r.cancelFetch != nil {
		r.cancelFetch()
		r.cancelFetch = nil
	}

	next := State{Identity: &ident}
	result := "found"
	switch {
	case err == nil && rec.Role.Valid():
		next.Role = rec.Role
		r.markers.WriteMarkers(session.Markers{Authenticated: true, Role: rec.Role})
	case errors.Is(err, profile.ErrNotFound):
		result = "not_found"
		r.logger.Warn("no profile record for signed-in identity", "identity_id", ident.ID)
		r.markers.ClearMarkers()
	case err == nil, errors.Is(err, profile.ErrInvalidRole):
		result = "invalid_role"
		r.logger.Warn("profile record has no usable role", "identity_id", ident.ID, "error", err)
		r.markers.ClearMarkers()
	default:
		result = "error"
		r.logger.Warn("profile lookup failed", "identity_id", ident.ID, "error", err)
		r.markers.ClearMarkers()
	}
	r.publishLocked(next)
	metrics.AuthResolutionsTotal.WithLabelValues(result).Inc()
}

// publishLocked must be called with r.mu held. Watchers run under the lock so
// they observe states in order; they must not call back into the resolver.
func (r *Resolver) publishLocked(st State) {
	r.state = st
	if !st.Loading {
		close(r.settled)
		r.settled = make(chan struct{})
	}
	for _, fn := range r.watchers {
		fn(st)
	}
}
