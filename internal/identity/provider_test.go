package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/docstore"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func newTestProvider(t *testing.T, opts ...Option) (*Provider, docstore.Store) {
	t.Helper()
	docs := docstore.NewMemory()
	return NewProvider(docs, opts...), docs
}

func TestSignUpRejectsDuplicateEmail(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "Vendor@Example.com", "password123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := p.SignUp(ctx, "vendor@example.com ", "password456"); !errors.Is(err, auth.ErrEmailTaken) {
		t.Fatalf("second SignUp() error = %v, want ErrEmailTaken", err)
	}
	if _, err := p.SignUp(ctx, "other@example.com", "short"); !errors.Is(err, auth.ErrPasswordTooShort) {
		t.Fatalf("short password SignUp() error = %v, want ErrPasswordTooShort", err)
	}
}

func TestSignInEmitsEventsInOrder(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()
	ident, err := p.SignUp(ctx, "a@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	rec := &recorder{}
	unsubscribe := p.Session("s1").Subscribe(rec.record)
	defer unsubscribe()

	if _, err := p.SignIn(ctx, "s1", "a@example.com", "password123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if err := p.SignOut(ctx, "s1"); err != nil {
		t.Fatalf("SignOut() error = %v", err)
	}
	if err := p.SignOut(ctx, "s1"); err != nil {
		t.Fatalf("second SignOut() error = %v", err)
	}

	events := rec.snapshot()
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %+v", len(events), events)
	}
	if events[0].Identity != nil {
		t.Fatalf("initial event = %+v, want signed out", events[0])
	}
	if events[1].Identity == nil || events[1].Identity.ID != ident.ID {
		t.Fatalf("sign-in event = %+v, want identity %s", events[1], ident.ID)
	}
	if events[2].Identity != nil || events[3].Identity != nil {
		t.Fatalf("sign-out events = %+v, want nil identities", events[2:])
	}
	for _, ev := range events {
		if ev.SessionID != "s1" {
			t.Fatalf("event session = %q, want s1", ev.SessionID)
		}
	}
}

func TestSignInIsolatesSessions(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "a@example.com", "password123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	other := &recorder{}
	unsubscribe := p.Session("s2").Subscribe(other.record)
	defer unsubscribe()

	if _, err := p.SignIn(ctx, "s1", "a@example.com", "password123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if _, ok := p.Current("s2"); ok {
		t.Fatal("s2 should not be signed in")
	}
	if got := len(other.snapshot()); got != 1 {
		t.Fatalf("s2 received %d events, want only the initial one", got)
	}
}

func TestSignInRateLimit(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t, WithAttemptLimit(2, time.Minute))
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "a@example.com", "password123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := p.SignIn(ctx, "s1", "a@example.com", "wrong-password"); !errors.Is(err, auth.ErrInvalidCredentials) {
			t.Fatalf("attempt %d error = %v, want ErrInvalidCredentials", i, err)
		}
	}
	if _, err := p.SignIn(ctx, "s1", "a@example.com", "password123"); !errors.Is(err, auth.ErrTooManyAttempts) {
		t.Fatalf("SignIn() error = %v, want ErrTooManyAttempts", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := p.SignIn(ctx, "s1", "a@example.com", "password123"); err != nil {
		t.Fatalf("SignIn() after window error = %v", err)
	}
}

func TestFailedAttemptTrackingIsBounded(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t, WithAttemptLimit(2, time.Minute))
	p.maxTrackedEmails = 8
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	ctx := context.Background()

	failAll := func(prefix string, n int) {
		for i := 0; i < n; i++ {
			email := fmt.Sprintf("%s-%d@example.com", prefix, i)
			if _, err := p.SignIn(ctx, "s1", email, "wrong-password"); !errors.Is(err, auth.ErrInvalidCredentials) {
				t.Fatalf("SignIn(%s) error = %v, want ErrInvalidCredentials", email, err)
			}
			now = now.Add(time.Second)
		}
	}
	trackedEmails := func() int {
		p.mu.Lock()
		defer p.mu.Unlock()
		return len(p.attempts)
	}

	failAll("spray", 50)
	if got := trackedEmails(); got > 8 {
		t.Fatalf("tracked emails = %d, want at most 8", got)
	}

	// A victim that is under attack right now stays locked out while old
	// sprayed entries are evicted around it.
	for i := 0; i < 2; i++ {
		if _, err := p.SignIn(ctx, "s1", "spray-49@example.com", "wrong-password"); !errors.Is(err, auth.ErrInvalidCredentials) && !errors.Is(err, auth.ErrTooManyAttempts) {
			t.Fatalf("SignIn() error = %v", err)
		}
	}
	failAll("late", 3)
	if _, err := p.SignIn(ctx, "s1", "spray-49@example.com", "wrong-password"); !errors.Is(err, auth.ErrTooManyAttempts) {
		t.Fatalf("SignIn() for recent victim error = %v, want ErrTooManyAttempts", err)
	}

	now = now.Add(2 * time.Minute)
	failAll("after-window", 1)
	if got := trackedEmails(); got != 1 {
		t.Fatalf("tracked emails after window = %d, want 1", got)
	}
}

func TestRestoreAndDeleteIdentity(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()
	ident, err := p.SignUp(ctx, "a@example.com", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	got, err := p.Restore(ctx, "s1", ident.ID)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got.Email != "a@example.com" {
		t.Fatalf("Restore() email = %q", got.Email)
	}

	rec := &recorder{}
	unsubscribe := p.Session("s1").Subscribe(rec.record)
	defer unsubscribe()

	if err := p.DeleteIdentity(ctx, ident.ID); err != nil {
		t.Fatalf("DeleteIdentity() error = %v", err)
	}
	events := rec.snapshot()
	if len(events) != 2 || events[1].Identity != nil {
		t.Fatalf("events = %+v, want signed-in then signed-out", events)
	}
	if _, err := p.Restore(ctx, "s1", ident.ID); !errors.Is(err, ErrSessionRevoked) {
		t.Fatalf("Restore() after delete error = %v, want ErrSessionRevoked", err)
	}
	if err := p.DeleteIdentity(ctx, ident.ID); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("second DeleteIdentity() error = %v, want ErrNotFound", err)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	p, _ := newTestProvider(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "a@example.com", "password123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	rec := &recorder{}
	unsubscribe := p.Session("s1").Subscribe(rec.record)
	unsubscribe()
	unsubscribe()

	if _, err := p.SignIn(ctx, "s1", "a@example.com", "password123"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if got := len(rec.snapshot()); got != 1 {
		t.Fatalf("got %d events after unsubscribe, want 1", got)
	}

	p.Forget("s1")
	if _, ok := p.Current("s1"); ok {
		t.Fatal("Forget() should drop the binding")
	}
}
