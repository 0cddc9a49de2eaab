package gatekeeper

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/session"
	"github.com/labstack/echo/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDecide(t *testing.T) {
	t.Parallel()

	routes := DefaultRoutes()
	vendor := session.Markers{Authenticated: true, Role: auth.RoleVendor}
	admin := session.Markers{Authenticated: true, Role: auth.RoleAdmin}
	roleless := session.Markers{Authenticated: true}

	tests := []struct {
		name    string
		path    string
		markers session.Markers
		want    Action
	}{
		{name: "public_root", path: "/", markers: session.Markers{}, want: ActionAllow},
		{name: "sign_in_page", path: "/sign-in", markers: session.Markers{}, want: ActionAllow},
		{name: "admin_no_markers", path: "/admin", markers: session.Markers{}, want: ActionSignIn},
		{name: "admin_subpath_no_markers", path: "/admin/users", markers: session.Markers{}, want: ActionSignIn},
		{name: "dashboard_no_markers", path: "/dashboard", markers: session.Markers{}, want: ActionSignIn},
		{name: "admin_as_vendor", path: "/admin", markers: vendor, want: ActionUnauthorized},
		{name: "admin_subpath_as_vendor", path: "/admin/users/u1/role", markers: vendor, want: ActionUnauthorized},
		{name: "admin_roleless", path: "/admin", markers: roleless, want: ActionUnauthorized},
		{name: "admin_as_admin", path: "/admin", markers: admin, want: ActionAllow},
		{name: "dashboard_as_vendor", path: "/dashboard", markers: vendor, want: ActionAllow},
		{name: "dashboard_roleless", path: "/dashboard", markers: roleless, want: ActionAllow},
		{name: "role_without_auth_flag", path: "/admin", markers: session.Markers{Role: auth.RoleAdmin}, want: ActionSignIn},
		{name: "lookalike_prefix", path: "/administrator", markers: session.Markers{}, want: ActionAllow},
		{name: "dot_segments", path: "/public/../admin", markers: vendor, want: ActionUnauthorized},
		{name: "trailing_slash", path: "/dashboard/", markers: session.Markers{}, want: ActionSignIn},
		{name: "waiting_room_not_gated", path: "/waiting-room", markers: session.Markers{}, want: ActionAllow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := routes.Decide(tt.path, tt.markers); got.Action != tt.want {
				t.Fatalf("Decide(%q, %+v) = %q; want %q", tt.path, tt.markers, got.Action, tt.want)
			}
		})
	}
}

func TestDecideLocations(t *testing.T) {
	t.Parallel()

	routes := DefaultRoutes()
	if got := routes.Decide("/admin", session.Markers{}).Location; got != "/sign-in" {
		t.Fatalf("sign-in location = %q", got)
	}
	vendor := session.Markers{Authenticated: true, Role: auth.RoleVendor}
	if got := routes.Decide("/admin", vendor).Location; got != "/unauthorized" {
		t.Fatalf("unauthorized location = %q", got)
	}
}

func serve(t *testing.T, codec *session.Codec, req *http.Request) (*httptest.ResponseRecorder, bool, session.Markers) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	var seen session.Markers
	h := Middleware(DefaultRoutes(), codec)(func(c *echo.Context) error {
		called = true
		seen, _ = session.FromContext(c.Request().Context())
		return c.String(http.StatusOK, "page")
	})
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec, called, seen
}

func markerRequest(t *testing.T, codec *session.Codec, path string, m session.Markers) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	cookies, err := session.Cookies(codec, m, session.CookieOptions{Path: "/"})
	if err != nil {
		t.Fatalf("Cookies() error = %v", err)
	}
	for _, c := range cookies {
		if c.MaxAge < 0 {
			continue
		}
		req.AddCookie(c)
	}
	return req
}

func TestMiddlewareVendorMarkers(t *testing.T) {
	t.Parallel()

	codec, err := session.NewCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	vendor := session.Markers{Authenticated: true, Role: auth.RoleVendor}

	rec, called, _ := serve(t, codec, markerRequest(t, codec, "/admin", vendor))
	if called {
		t.Fatal("admin handler must not run for a vendor")
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/unauthorized" {
		t.Fatalf("got %d %q; want 303 /unauthorized", rec.Code, rec.Header().Get("Location"))
	}

	rec, called, seen := serve(t, codec, markerRequest(t, codec, "/dashboard", vendor))
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("dashboard should be allowed, got %d", rec.Code)
	}
	if seen != vendor {
		t.Fatalf("context markers = %+v, want %+v", seen, vendor)
	}
}

func TestMiddlewareNoMarkersRedirectsToSignIn(t *testing.T) {
	t.Parallel()

	codec, err := session.NewCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	rec, called, _ := serve(t, codec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if called {
		t.Fatal("handler must not run without markers")
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/sign-in" {
		t.Fatalf("got %d %q; want 303 /sign-in", rec.Code, rec.Header().Get("Location"))
	}
}

func TestMiddlewareIgnoresForgedMarkers(t *testing.T) {
	t.Parallel()

	codec, err := session.NewCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieAuthStatus, Value: "authenticated"})
	req.AddCookie(&http.Cookie{Name: session.CookieUserRole, Value: "admin"})

	rec, called, _ := serve(t, codec, req)
	if called || rec.Header().Get("Location") != "/sign-in" {
		t.Fatalf("forged markers were accepted: called=%v location=%q", called, rec.Header().Get("Location"))
	}
}

func TestMiddlewarePrefersContextMarkers(t *testing.T) {
	t.Parallel()

	codec, err := session.NewCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	admin := session.Markers{Authenticated: true, Role: auth.RoleAdmin}
	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req = req.WithContext(session.WithMarkers(req.Context(), admin))

	rec, called, _ := serve(t, codec, req)
	if !called || rec.Code != http.StatusOK {
		t.Fatalf("context markers should allow admin, got %d", rec.Code)
	}
}
