package identity

import (
	"context"
	"sync"

	"github.com/buyukinventory/marketplace/internal/auth"
)

// Session is the identity provider as seen from one browser session.
type Session struct {
	p  *Provider
	id string
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Current() (auth.Identity, bool) {
	return s.p.Current(s.id)
}

func (s *Session) SignOut(ctx context.Context) error {
	return s.p.SignOut(ctx, s.id)
}

// Subscribe registers fn for session changes. fn is called first with the
// current state, then once per change, in order and never concurrently.
// fn must not call back into SignIn, SignOut or Restore for the same session.
func (s *Session) Subscribe(fn func(Event)) func() {
	return s.p.session(s.id).subscribe(s.id, fn)
}

// sessionState serializes binding changes and their delivery so subscribers
// observe events in the order they were applied.
type sessionState struct {
	order sync.Mutex

	mu       sync.Mutex
	identity *auth.Identity
	nextSub  int
	subs     map[int]func(Event)
}

func newSessionState() *sessionState {
	return &sessionState{subs: make(map[int]func(Event))}
}

func (s *sessionState) current() (auth.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return auth.Identity{}, false
	}
	return *s.identity, true
}

func (s *sessionState) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *sessionState) set(sessionID string, ident *auth.Identity) {
	s.order.Lock()
	defer s.order.Unlock()

	s.mu.Lock()
	if ident != nil {
		cp := *ident
		ident = &cp
	}
	s.identity = ident
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(Event{SessionID: sessionID, Identity: copyIdentity(ident)})
	}
}

func (s *sessionState) subscribe(sessionID string, fn func(Event)) func() {
	s.order.Lock()
	defer s.order.Unlock()

	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	ident := copyIdentity(s.identity)
	s.mu.Unlock()

	fn(Event{SessionID: sessionID, Identity: ident})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func copyIdentity(ident *auth.Identity) *auth.Identity {
	if ident == nil {
		return nil
	}
	cp := *ident
	return &cp
}
