package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
	"github.com/labstack/echo/v5"
)

func TestHandleHome(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "vendor@example.com", auth.RoleVendor)

	c, rec := env.request(t, http.MethodGet, "/", nil, "s1")
	if err := env.h.HandleHome(c); err != nil {
		t.Fatalf("HandleHome() error = %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Become a vendor") {
		t.Fatalf("signed-out home: %d", rec.Code)
	}

	if _, err := env.provider.SignIn(context.Background(), "s1", "vendor@example.com", testPassword); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	c, rec = env.request(t, http.MethodGet, "/", nil, "s1")
	if err := env.h.HandleHome(c); err != nil {
		t.Fatalf("HandleHome() error = %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("signed-in home: %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestHandleUnauthorizedOffersRefreshWhenSignedIn(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "shopper@example.com", auth.RoleCustomer)
	if _, err := env.provider.SignIn(context.Background(), "s1", "shopper@example.com", testPassword); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	entry := env.registry.Get("s1")
	ctx, cancel := context.WithTimeout(context.Background(), env.h.Cfg.GuardResolveWait)
	defer cancel()
	if _, err := entry.Resolver.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	c, rec := env.request(t, http.MethodGet, "/unauthorized", nil, "s1")
	if err := env.h.HandleUnauthorized(c); err != nil {
		t.Fatalf("HandleUnauthorized() error = %v", err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `action="/session/refresh"`) {
		t.Fatal("signed-in visitor should be offered a session refresh")
	}

	c, rec = env.request(t, http.MethodGet, "/unauthorized", nil, "")
	if err := env.h.HandleUnauthorized(c); err != nil {
		t.Fatalf("HandleUnauthorized() error = %v", err)
	}
	if strings.Contains(rec.Body.String(), `action="/session/refresh"`) {
		t.Fatal("anonymous visitor should be sent to sign in")
	}
}

func TestRenderLoading(t *testing.T) {
	t.Parallel()

	h := &Handlers{}
	c, rec := newTestContext(http.MethodGet, "http://example.com/admin")
	if err := h.RenderLoading(c); err != nil {
		t.Fatalf("RenderLoading() error = %v", err)
	}
	if rec.Code != http.StatusOK || rec.Header().Get("Refresh") != "1" || rec.Header().Get("Location") != "" {
		t.Fatalf("loading page: %d refresh=%q", rec.Code, rec.Header().Get("Refresh"))
	}
	if !strings.Contains(rec.Body.String(), `role="status"`) {
		t.Fatal("loading page missing status region")
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/sales", nil)
	req.Header.Set(echo.HeaderAccept, echo.MIMEApplicationJSON)
	rec = httptest.NewRecorder()
	if err := h.RenderLoading(e.NewContext(req, rec)); err != nil {
		t.Fatalf("RenderLoading(api) error = %v", err)
	}
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("api loading status = %d, want 503", rec.Code)
	}
}

func TestFlashToastRoundTrip(t *testing.T) {
	t.Parallel()

	c, rec := newTestContext(http.MethodPost, "http://example.com/admin/users")
	flash(c, "SUCCESS", " User created ", "")
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != toastCookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookies[0])
	next := httptest.NewRecorder()
	toast := takeFlash(e.NewContext(req, next))
	if toast == nil || toast.Category != "success" || toast.Title != "User created" {
		t.Fatalf("takeFlash() = %+v", toast)
	}
	cleared := next.Result().Cookies()
	if len(cleared) != 1 || cleared[0].MaxAge >= 0 {
		t.Fatalf("toast cookie not cleared: %+v", cleared)
	}

	c, rec = newTestContext(http.MethodPost, "http://example.com/admin/users")
	flash(c, toastError, "  ", "")
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("empty toast should not set a cookie")
	}

	c, _ = newTestContext(http.MethodGet, "http://example.com/admin")
	c.Request().AddCookie(&http.Cookie{Name: toastCookieName, Value: "%%%"})
	if got := takeFlash(c); got != nil {
		t.Fatalf("takeFlash(garbage) = %+v, want nil", got)
	}
}

func TestCleanToastCategory(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"Success": toastSuccess,
		" error ": toastError,
		"warning": toastWarning,
		"":        toastInfo,
		"loud":    toastInfo,
	}
	for in, want := range tests {
		got, ok := cleanToast(viewmodels.ToastViewData{Category: in, Title: "t"})
		if !ok || got.Category != want {
			t.Fatalf("cleanToast(%q) = %q, %v; want %q", in, got.Category, ok, want)
		}
	}
}
