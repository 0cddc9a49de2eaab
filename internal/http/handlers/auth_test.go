package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/session"
)

func TestHandleSignInPostRedirectsToRoleHome(t *testing.T) {
	tests := []struct {
		name string
		role auth.Role
		next string
		want string
	}{
		{name: "vendor", role: auth.RoleVendor, want: "/dashboard"},
		{name: "admin", role: auth.RoleAdmin, want: "/admin"},
		{name: "customer", role: auth.RoleCustomer, want: "/waiting-room"},
		{name: "roleless", role: auth.RoleNone, want: "/unauthorized"},
		{name: "next", role: auth.RoleVendor, next: "/dashboard?filter=low-stock", want: "/dashboard?filter=low-stock"},
		{name: "unsafe_next", role: auth.RoleVendor, next: "//evil.example", want: "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ident := env.createUser(t, tt.name+"@example.com", tt.role)

			form := url.Values{"email": {tt.name + "@example.com"}, "password": {testPassword}, "next": {tt.next}}
			c, rec := env.request(t, http.MethodPost, "/sign-in", form, "s1")
			if err := env.h.HandleSignInPost(c); err != nil {
				t.Fatalf("HandleSignInPost() error = %v", err)
			}

			if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != tt.want {
				t.Fatalf("got %d %q; want 303 %q", rec.Code, rec.Header().Get("Location"), tt.want)
			}
			if got := env.h.Sessions.GetString(c.Request().Context(), authn.SessionKeyIdentityID); got != ident.ID {
				t.Fatalf("session identity = %q, want %q", got, ident.ID)
			}

			entry, _ := env.registry.Lookup("s1")
			want := session.Markers{Authenticated: true, Role: tt.role}
			if tt.role == auth.RoleNone {
				want = session.Markers{}
			}
			if got := entry.Jar.Current(); got != want {
				t.Fatalf("markers = %+v, want %+v", got, want)
			}
		})
	}
}

func TestHandleSignInPostInvalidCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "vendor@example.com", auth.RoleVendor)

	form := url.Values{"email": {"vendor@example.com"}, "password": {"wrong-password"}}
	c, rec := env.request(t, http.MethodPost, "/sign-in", form, "s1")
	if err := env.h.HandleSignInPost(c); err != nil {
		t.Fatalf("HandleSignInPost() error = %v", err)
	}

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), signInInvalidMessage) {
		t.Fatalf("body missing error message: %q", rec.Body.String())
	}
	if got := env.h.Sessions.GetString(c.Request().Context(), authn.SessionKeyIdentityID); got != "" {
		t.Fatalf("failed sign-in stored identity %q", got)
	}
}

func TestHandleSignInPostWithoutBinding(t *testing.T) {
	env := newTestEnv(t)
	c, _ := env.request(t, http.MethodPost, "/sign-in", url.Values{"email": {"a@example.com"}}, "")
	if err := env.h.HandleSignInPost(c); !errors.Is(err, errSessionNotBound) {
		t.Fatalf("HandleSignInPost() error = %v, want errSessionNotBound", err)
	}
}

func TestHandleSignUpPostCreatesVendor(t *testing.T) {
	env := newTestEnv(t)

	form := url.Values{"name": {"Ada Stall"}, "email": {"Ada@Example.com"}, "password": {testPassword}}
	c, rec := env.request(t, http.MethodPost, "/sign-up", form, "s1")
	if err := env.h.HandleSignUpPost(c); err != nil {
		t.Fatalf("HandleSignUpPost() error = %v", err)
	}
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("got %d %q; want 303 /dashboard", rec.Code, rec.Header().Get("Location"))
	}

	ident, ok := env.provider.Current("s1")
	if !ok {
		t.Fatal("session not signed in after sign-up")
	}
	rec2, err := env.profiles.Get(context.Background(), ident.ID)
	if err != nil {
		t.Fatalf("profiles.Get() error = %v", err)
	}
	if rec2.Role != auth.RoleVendor || rec2.Email != "ada@example.com" || rec2.Name != "Ada Stall" {
		t.Fatalf("profile = %+v", rec2)
	}
}

func TestHandleSignUpPostRejectsDuplicateAndShortPassword(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "taken@example.com", auth.RoleVendor)

	tests := []struct {
		name   string
		form   url.Values
		status int
	}{
		{name: "duplicate", form: url.Values{"name": {"X"}, "email": {"taken@example.com"}, "password": {testPassword}}, status: http.StatusConflict},
		{name: "short_password", form: url.Values{"name": {"X"}, "email": {"new@example.com"}, "password": {"short"}}, status: http.StatusUnprocessableEntity},
		{name: "missing_name", form: url.Values{"email": {"new@example.com"}, "password": {testPassword}}, status: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := env.request(t, http.MethodPost, "/sign-up", tt.form, "s-"+tt.name)
			if err := env.h.HandleSignUpPost(c); err != nil {
				t.Fatalf("HandleSignUpPost() error = %v", err)
			}
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}

	records, err := env.profiles.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("rejected sign-ups created profiles: %+v", records)
	}
}

func TestHandleSignOutClearsSessionAndMarkers(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "vendor@example.com", auth.RoleVendor)

	form := url.Values{"email": {"vendor@example.com"}, "password": {testPassword}}
	c, _ := env.request(t, http.MethodPost, "/sign-in", form, "s1")
	if err := env.h.HandleSignInPost(c); err != nil {
		t.Fatalf("HandleSignInPost() error = %v", err)
	}

	out, rec := env.request(t, http.MethodPost, "/sign-out", nil, "s1")
	if err := env.h.HandleSignOutPost(out); err != nil {
		t.Fatalf("HandleSignOutPost() error = %v", err)
	}
	if rec.Header().Get("Location") != authn.SignInPath {
		t.Fatalf("Location = %q", rec.Header().Get("Location"))
	}
	if _, ok := env.provider.Current("s1"); ok {
		t.Fatal("provider still signed in")
	}
	entry, _ := env.registry.Lookup("s1")
	if got := entry.Jar.Current(); !got.Cleared() {
		t.Fatalf("markers = %+v, want cleared", got)
	}
}

func TestHandleSessionRefreshPicksUpRoleChange(t *testing.T) {
	env := newTestEnv(t)
	ident := env.createUser(t, "shopper@example.com", auth.RoleCustomer)

	form := url.Values{"email": {"shopper@example.com"}, "password": {testPassword}}
	c, rec := env.request(t, http.MethodPost, "/sign-in", form, "s1")
	if err := env.h.HandleSignInPost(c); err != nil {
		t.Fatalf("HandleSignInPost() error = %v", err)
	}
	if rec.Header().Get("Location") != "/waiting-room" {
		t.Fatalf("Location = %q, want /waiting-room", rec.Header().Get("Location"))
	}

	if err := env.profiles.UpdateRole(context.Background(), ident.ID, auth.RoleVendor); err != nil {
		t.Fatalf("UpdateRole() error = %v", err)
	}
	entry, _ := env.registry.Lookup("s1")
	if got := entry.Resolver.State().Role; got != auth.RoleCustomer {
		t.Fatalf("role changed before refresh: %q", got)
	}

	rc, rrec := env.request(t, http.MethodPost, "/session/refresh", url.Values{}, "s1")
	if err := env.h.HandleSessionRefresh(rc); err != nil {
		t.Fatalf("HandleSessionRefresh() error = %v", err)
	}
	if rrec.Header().Get("Location") != "/dashboard" {
		t.Fatalf("Location = %q, want /dashboard", rrec.Header().Get("Location"))
	}
	if got := entry.Jar.Current(); got != (session.Markers{Authenticated: true, Role: auth.RoleVendor}) {
		t.Fatalf("markers = %+v", got)
	}
}

