package httpapp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/authstate"
	"github.com/buyukinventory/marketplace/internal/catalog"
	"github.com/buyukinventory/marketplace/internal/config"
	"github.com/buyukinventory/marketplace/internal/docstore"
	"github.com/buyukinventory/marketplace/internal/identity"
	"github.com/buyukinventory/marketplace/internal/profile"
	"github.com/buyukinventory/marketplace/internal/session"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

const testMarkerSecret = "0123456789abcdef0123456789abcdef0123456789"

var csrfMeta = regexp.MustCompile(`name="csrf-token" content="([^"]+)"`)

type flowEnv struct {
	server   *httptest.Server
	client   *http.Client
	docs     *docstore.Memory
	provider *identity.Provider
	profiles *profile.Store
}

func newFlowEnv(t *testing.T) flowEnv {
	t.Helper()
	docs := docstore.NewMemory()
	provider := identity.NewProvider(docs)
	profiles := profile.NewStore(docs)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := authstate.NewRegistry(provider, profiles, time.Minute, authstate.WithLogger(logger))
	t.Cleanup(registry.Close)

	codec, err := session.NewCodec(testMarkerSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	es, err := NewEchoServer(Deps{
		Config:   config.Config{GuardResolveWait: 2 * time.Second},
		Logger:   logger,
		Sessions: scs.New(),
		Identity: provider,
		Profiles: profiles,
		Catalog:  catalog.New(docs),
		Registry: registry,
		Codec:    codec,
	})
	if err != nil {
		t.Fatalf("NewEchoServer() error = %v", err)
	}

	srv := httptest.NewServer(es.Handler())
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return flowEnv{server: srv, client: client, docs: docs, provider: provider, profiles: profiles}
}

func (env flowEnv) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	resp, err := env.client.Get(env.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (env flowEnv) csrfToken(t *testing.T) string {
	t.Helper()
	_, body := env.get(t, "/sign-in")
	m := csrfMeta.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("sign-in page has no csrf token")
	}
	return m[1]
}

func (env flowEnv) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := env.client.PostForm(env.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	resp.Body.Close()
	return resp
}

func (env flowEnv) createUser(t *testing.T, email string, role auth.Role) auth.Identity {
	t.Helper()
	ctx := context.Background()
	ident, err := env.provider.SignUp(ctx, email, "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := env.profiles.Create(ctx, profile.Record{ID: ident.ID, Email: email, Name: "Vendor", Role: role}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return ident
}

func cookieNames(resp *http.Response) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range resp.Cookies() {
		out[c.Name] = c
	}
	return out
}

func TestSignInFlowSetsMarkersAndOpensDashboard(t *testing.T) {
	env := newFlowEnv(t)
	vendor := env.createUser(t, "vendor@example.com", auth.RoleVendor)
	if _, err := env.docs.Add(context.Background(), docstore.CollectionStores, catalog.Store{Name: "Harbour Market", VendorIDs: []string{vendor.ID}}); err != nil {
		t.Fatalf("Add(store) error = %v", err)
	}

	resp, _ := env.get(t, "/dashboard")
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/sign-in" {
		t.Fatalf("signed-out dashboard: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	token := env.csrfToken(t)
	resp = env.postForm(t, "/sign-in", url.Values{"email": {"vendor@example.com"}, "password": {"password123"}, "csrf": {token}})
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/dashboard" {
		t.Fatalf("sign-in: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	cookies := cookieNames(resp)
	if cookies[session.CookieAuthStatus] == nil || cookies[session.CookieUserRole] == nil {
		t.Fatalf("sign-in did not set marker cookies: %v", resp.Cookies())
	}
	if !cookies[session.CookieAuthStatus].HttpOnly {
		t.Fatal("marker cookies must be HttpOnly")
	}

	resp, body := env.get(t, "/dashboard")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Harbour Market") {
		t.Fatalf("dashboard: %d", resp.StatusCode)
	}

	for _, path := range []string{"/admin", "/admin/stores", "/admin/vendors", "/admin/events", "/admin/products"} {
		resp, _ = env.get(t, path)
		if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/unauthorized" {
			t.Fatalf("vendor on %s: %d %q", path, resp.StatusCode, resp.Header.Get("Location"))
		}
	}
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	env := newFlowEnv(t)
	env.createUser(t, "vendor@example.com", auth.RoleVendor)
	env.csrfToken(t)

	resp := env.postForm(t, "/sign-in", url.Values{"email": {"vendor@example.com"}, "password": {"password123"}})
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want a CSRF rejection", resp.StatusCode)
	}
	if cookieNames(resp)[session.CookieAuthStatus] != nil {
		t.Fatal("rejected sign-in set marker cookies")
	}
}

func TestHealthzSkipsSessionBinding(t *testing.T) {
	env := newFlowEnv(t)

	resp, body := env.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK || body != "ok" {
		t.Fatalf("healthz: %d %q", resp.StatusCode, body)
	}
	if _, err := uuid.Parse(resp.Header.Get(echo.HeaderXRequestID)); err != nil {
		t.Fatalf("X-Request-ID = %q", resp.Header.Get(echo.HeaderXRequestID))
	}
	u, _ := url.Parse(env.server.URL)
	for _, c := range env.client.Jar.Cookies(u) {
		if c.Name == "session" {
			t.Fatal("healthz should not start a browser session")
		}
	}
}

func TestRequestIDReusesWellFormedInboundValue(t *testing.T) {
	env := newFlowEnv(t)
	inbound := uuid.NewString()

	tests := []struct {
		name   string
		header string
		reused bool
	}{
		{name: "valid", header: inbound, reused: true},
		{name: "garbage", header: "not-a-uuid", reused: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, env.server.URL+"/healthz", nil)
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}
			req.Header.Set(echo.HeaderXRequestID, tt.header)
			resp, err := env.client.Do(req)
			if err != nil {
				t.Fatalf("Do() error = %v", err)
			}
			resp.Body.Close()
			got := resp.Header.Get(echo.HeaderXRequestID)
			if (got == tt.header) != tt.reused {
				t.Fatalf("X-Request-ID = %q, inbound %q", got, tt.header)
			}
		})
	}
}
