// Package identity is the identity provider: credential sign-in, sign-out and
// a per-browser-session change stream. It knows nothing about roles.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/auth/providers"
	"github.com/buyukinventory/marketplace/internal/docstore"
)

const (
	defaultMaxFailedAttempts = 5
	defaultAttemptWindow     = 15 * time.Minute
	defaultMaxTrackedEmails  = 10000
)

var (
	ErrSessionRevoked = errors.New("identity for session no longer exists")
	ErrNoSession      = errors.New("session id is empty")
)

// Event is a session change. A nil Identity means signed out.
type Event struct {
	SessionID string
	Identity  *auth.Identity
}

type Provider struct {
	docs      docstore.Store
	passwords providers.Provider
	now       func() time.Time

	maxFailedAttempts int
	attemptWindow     time.Duration
	maxTrackedEmails  int

	mu       sync.Mutex
	sessions map[string]*sessionState
	attempts map[string][]time.Time
}

type Option func(*Provider)

// WithAttemptLimit sets the failed sign-in limit per email within window.
func WithAttemptLimit(max int, window time.Duration) Option {
	return func(p *Provider) {
		if max > 0 {
			p.maxFailedAttempts = max
		}
		if window > 0 {
			p.attemptWindow = window
		}
	}
}

func NewProvider(docs docstore.Store, opts ...Option) *Provider {
	p := &Provider{
		docs:              docs,
		passwords:         providers.NewPasswordProvider(docs),
		now:               time.Now,
		maxFailedAttempts: defaultMaxFailedAttempts,
		attemptWindow:     defaultAttemptWindow,
		maxTrackedEmails:  defaultMaxTrackedEmails,
		sessions:          make(map[string]*sessionState),
		attempts:          make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SignUp creates a new identity. It does not sign the caller in.
func (p *Provider) SignUp(ctx context.Context, email, password string) (auth.Identity, error) {
	return p.passwords.Register(ctx, email, password)
}

// Lookup returns the identity registered for email.
func (p *Provider) Lookup(ctx context.Context, email string) (auth.Identity, bool, error) {
	return p.passwords.Lookup(ctx, email)
}

// SignIn verifies the credential and binds the session to the identity.
func (p *Provider) SignIn(ctx context.Context, sessionID, email, password string) (auth.Identity, error) {
	if sessionID == "" {
		return auth.Identity{}, ErrNoSession
	}
	email = auth.NormalizeEmail(email)
	if p.tooManyAttempts(email) {
		return auth.Identity{}, auth.ErrTooManyAttempts
	}

	ident, err := p.passwords.Authenticate(ctx, email, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			p.recordFailure(email)
		}
		return auth.Identity{}, err
	}
	p.clearFailures(email)

	p.session(sessionID).set(sessionID, &ident)
	return ident, nil
}

// SignOut unbinds the session. It is idempotent and always emits a signed-out
// event so subscribers clear derived state.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.session(sessionID).set(sessionID, nil)
	p.dropIfIdle(sessionID)
	return nil
}

// Current returns the identity bound to the session.
func (p *Provider) Current(sessionID string) (auth.Identity, bool) {
	p.mu.Lock()
	s, ok := p.sessions[sessionID]
	p.mu.Unlock()
	if !ok {
		return auth.Identity{}, false
	}
	return s.current()
}

// Restore rebinds a session whose identity id was persisted elsewhere, for
// example after a process restart.
func (p *Provider) Restore(ctx context.Context, sessionID, identityID string) (auth.Identity, error) {
	if sessionID == "" {
		return auth.Identity{}, ErrNoSession
	}
	if cur, ok := p.Current(sessionID); ok && cur.ID == identityID {
		return cur, nil
	}
	doc, err := p.docs.Get(ctx, docstore.CollectionIdentities, identityID)
	if errors.Is(err, docstore.ErrNotFound) {
		return auth.Identity{}, ErrSessionRevoked
	}
	if err != nil {
		return auth.Identity{}, err
	}
	var rec providers.IdentityRecord
	if err := doc.Decode(&rec); err != nil {
		return auth.Identity{}, err
	}
	if rec.Disabled {
		return auth.Identity{}, ErrSessionRevoked
	}

	ident := auth.Identity{ID: doc.ID, Email: rec.Email}
	p.session(sessionID).set(sessionID, &ident)
	return ident, nil
}

// DeleteIdentity removes the identity and signs out every session bound to it.
func (p *Provider) DeleteIdentity(ctx context.Context, identityID string) error {
	if err := p.docs.Delete(ctx, docstore.CollectionIdentities, identityID); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return fmt.Errorf("identity %s: %w", identityID, err)
		}
		return err
	}

	p.mu.Lock()
	bound := make(map[string]*sessionState)
	for id, s := range p.sessions {
		if cur, ok := s.current(); ok && cur.ID == identityID {
			bound[id] = s
		}
	}
	p.mu.Unlock()

	for id, s := range bound {
		s.set(id, nil)
		p.dropIfIdle(id)
	}
	return nil
}

// Forget drops the in-memory binding without emitting an event. The session
// can be restored later.
func (p *Provider) Forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[sessionID]; ok && s.subscriberCount() == 0 {
		delete(p.sessions, sessionID)
	}
}

// Session returns the per-session handle used by the auth resolver.
func (p *Provider) Session(sessionID string) *Session {
	return &Session{p: p, id: sessionID}
}

func (p *Provider) session(sessionID string) *sessionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		s = newSessionState()
		p.sessions[sessionID] = s
	}
	return s
}

func (p *Provider) dropIfIdle(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return
	}
	if _, bound := s.current(); !bound && s.subscriberCount() == 0 {
		delete(p.sessions, sessionID)
	}
}

func (p *Provider) tooManyAttempts(email string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.recentAttemptsLocked(email)) >= p.maxFailedAttempts
}

func (p *Provider) recordFailure(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, tracked := p.attempts[email]; !tracked && len(p.attempts) >= p.maxTrackedEmails {
		p.pruneAttemptsLocked()
	}
	p.attempts[email] = append(p.recentAttemptsLocked(email), p.now())
}

// pruneAttemptsLocked drops emails with no failure inside the window. If the
// map is still full, the email whose latest failure is oldest goes.
func (p *Provider) pruneAttemptsLocked() {
	for email := range p.attempts {
		p.recentAttemptsLocked(email)
	}
	for len(p.attempts) >= p.maxTrackedEmails {
		var (
			oldest   string
			oldestAt time.Time
			found    bool
		)
		for email, at := range p.attempts {
			last := at[len(at)-1]
			if !found || last.Before(oldestAt) {
				oldest, oldestAt, found = email, last, true
			}
		}
		delete(p.attempts, oldest)
	}
}

func (p *Provider) clearFailures(email string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.attempts, email)
}

func (p *Provider) recentAttemptsLocked(email string) []time.Time {
	cutoff := p.now().Add(-p.attemptWindow)
	kept := p.attempts[email][:0]
	for _, at := range p.attempts[email] {
		if at.After(cutoff) {
			kept = append(kept, at)
		}
	}
	if len(kept) == 0 {
		delete(p.attempts, email)
		return nil
	}
	p.attempts[email] = kept
	return kept
}
