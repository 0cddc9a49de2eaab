package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/authstate"
	"github.com/buyukinventory/marketplace/internal/catalog"
	"github.com/buyukinventory/marketplace/internal/config"
	"github.com/buyukinventory/marketplace/internal/docstore"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/identity"
	"github.com/buyukinventory/marketplace/internal/profile"
	"github.com/labstack/echo/v5"
)

const testPassword = "password123"

type testEnv struct {
	docs     *docstore.Memory
	provider *identity.Provider
	profiles *profile.Store
	registry *authstate.Registry
	h        *Handlers
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	docs := docstore.NewMemory()
	provider := identity.NewProvider(docs)
	profiles := profile.NewStore(docs)
	registry := authstate.NewRegistry(provider, profiles, time.Minute)
	t.Cleanup(registry.Close)

	return testEnv{
		docs:     docs,
		provider: provider,
		profiles: profiles,
		registry: registry,
		h: &Handlers{
			Cfg:      config.Config{GuardResolveWait: 2 * time.Second},
			Sessions: scs.New(),
			Identity: provider,
			Profiles: profiles,
			Catalog:  catalog.New(docs),
		},
	}
}

// request builds an echo context whose request carries a loaded scs session
// and, when sessionID is set, the resolver binding for it.
func (env testEnv) request(t *testing.T, method, target string, form url.Values, sessionID string) (*echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	}

	ctx, err := env.h.Sessions.Load(req.Context(), "")
	if err != nil {
		t.Fatalf("Sessions.Load() error = %v", err)
	}
	if sessionID != "" {
		ctx = authn.WithBinding(ctx, authn.Binding{SessionID: sessionID, Entry: env.registry.Get(sessionID)})
	}

	e := echo.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := httptest.NewRecorder()
	c := e.NewContext(req.WithContext(ctx), rec)
	return c, rec
}

func (env testEnv) createUser(t *testing.T, email string, role auth.Role) auth.Identity {
	t.Helper()
	ctx := context.Background()
	ident, err := env.provider.SignUp(ctx, email, testPassword)
	if err != nil {
		t.Fatalf("SignUp(%s) error = %v", email, err)
	}
	if role != auth.RoleNone {
		if _, err := env.profiles.Create(ctx, profile.Record{ID: ident.ID, Email: email, Name: "User " + email, Role: role}); err != nil {
			t.Fatalf("Create(%s) error = %v", email, err)
		}
	}
	return ident
}

func TestRenderErrorDoesNotLeakError(t *testing.T) {
	e := echo.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	req := httptest.NewRequest(http.MethodGet, "http://example.com/test", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "req-123")

	h := &Handlers{}
	if err := h.RenderError(c, errors.New("db password=secret")); err != nil {
		t.Fatalf("RenderError: %v", err)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusInternalServerError)
	}

	body := rec.Body.String()
	if strings.Contains(body, "db password") || strings.Contains(body, "secret") {
		t.Fatalf("response leaked error details: %q", body)
	}
	if !strings.Contains(body, "Internal server error") {
		t.Fatalf("response missing generic message: %q", body)
	}
	if !strings.Contains(body, "Reference: req-123") {
		t.Fatalf("response missing request reference: %q", body)
	}
	if !strings.Contains(body, "Code: "+InternalErrorCode) {
		t.Fatalf("response missing error code: %q", body)
	}
}

func TestLayoutDataFromPrincipal(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "http://example.com/admin")
	authn.SetPrincipal(c, auth.Principal{Identity: auth.Identity{ID: "a1", Email: "admin@example.com"}, Role: auth.RoleAdmin})

	h := &Handlers{}
	got := h.LayoutData(c, "Admin")
	if got.UserEmail != "admin@example.com" || !got.IsAdmin || got.IsVendor || got.ActivePath != "/admin" {
		t.Fatalf("LayoutData() = %+v", got)
	}
}
