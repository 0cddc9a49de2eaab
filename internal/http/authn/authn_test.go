package authn

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/labstack/echo/v5"
)

func TestSanitizeNext(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "whitespace", in: "   ", want: ""},
		{name: "root", in: "/", want: "/"},
		{name: "ok_path", in: "/dashboard", want: "/dashboard"},
		{name: "ok_path_query", in: "/dashboard?filter=low-stock", want: "/dashboard?filter=low-stock"},
		{name: "absolute_url", in: "https://evil.example/", want: ""},
		{name: "protocol_relative", in: "//evil.example/", want: ""},
		{name: "backslash", in: "/\\evil.example/", want: ""},
		{name: "sign_in_path", in: "/sign-in", want: ""},
		{name: "sign_in_subpath", in: "/sign-in/reset", want: ""},
		{name: "newline", in: "/\n/evil", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeNext(tt.in); got != tt.want {
				t.Fatalf("SanitizeNext(%q)=%q; want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSignInLocation(t *testing.T) {
	t.Parallel()

	e := echo.New()
	get := e.NewContext(httptest.NewRequest(http.MethodGet, "/dashboard?filter=all", nil), httptest.NewRecorder())
	if got := SignInLocation(get, ""); got != "/sign-in?next=%2Fdashboard%3Ffilter%3Dall" {
		t.Fatalf("SignInLocation(GET)=%q", got)
	}
	post := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/sales", nil), httptest.NewRecorder())
	if got := SignInLocation(post, "/sign-in"); got != "/sign-in" {
		t.Fatalf("SignInLocation(POST)=%q", got)
	}
}

func TestPrincipalRoundTrip(t *testing.T) {
	t.Parallel()

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if _, ok := PrincipalFromContext(c); ok {
		t.Fatal("empty context should have no principal")
	}
	want := auth.Principal{Identity: auth.Identity{ID: "u1", Email: "u1@example.com"}, Role: auth.RoleVendor}
	SetPrincipal(c, want)
	got, ok := PrincipalFromContext(c)
	if !ok || got != want {
		t.Fatalf("PrincipalFromContext()=%+v,%v; want %+v", got, ok, want)
	}
}
