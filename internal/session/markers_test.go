package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	codec, err := NewCodec(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func requestWithCookies(cookies []*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	for _, c := range cookies {
		if c.MaxAge < 0 {
			continue
		}
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

func TestNewCodecRejectsShortSecret(t *testing.T) {
	t.Parallel()
	if _, err := NewCodec("short", time.Hour); err != ErrSecretTooShort {
		t.Fatalf("err=%v; want ErrSecretTooShort", err)
	}
}

func TestCookiesRoundTrip(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	cookies, err := Cookies(codec, Markers{Authenticated: true, Role: auth.RoleVendor}, CookieOptions{})
	if err != nil {
		t.Fatalf("Cookies: %v", err)
	}
	if len(cookies) != 2 || cookies[0].Name != CookieAuthStatus || cookies[1].Name != CookieUserRole {
		t.Fatalf("cookies=%v", cookies)
	}
	for _, c := range cookies {
		if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode {
			t.Fatalf("cookie %s should be HttpOnly and SameSite=Lax: %+v", c.Name, c)
		}
	}

	got := ReadMarkers(requestWithCookies(cookies), codec)
	want := Markers{Authenticated: true, Role: auth.RoleVendor}
	if got != want {
		t.Fatalf("ReadMarkers=%+v; want %+v", got, want)
	}
}

func TestClearedMarkersDeleteCookies(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	cookies, err := Cookies(codec, Markers{}, CookieOptions{Secure: true})
	if err != nil {
		t.Fatalf("Cookies: %v", err)
	}
	for _, c := range cookies {
		if c.MaxAge != -1 || c.Value != "" || !c.Secure {
			t.Fatalf("cookie %s not a secure deletion: %+v", c.Name, c)
		}
	}
}

func TestReadMarkersRejectsForgedAndExpired(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	forged := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	forged.AddCookie(&http.Cookie{Name: CookieAuthStatus, Value: "true"})
	forged.AddCookie(&http.Cookie{Name: CookieUserRole, Value: "admin"})
	if got := ReadMarkers(forged, codec); !got.Cleared() {
		t.Fatalf("plain forged cookies accepted: %+v", got)
	}

	other, err := NewCodec(strings.Repeat("x", 32), time.Hour)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	cookies, _ := Cookies(other, Markers{Authenticated: true, Role: auth.RoleAdmin}, CookieOptions{})
	if got := ReadMarkers(requestWithCookies(cookies), codec); !got.Cleared() {
		t.Fatalf("cookies signed with another secret accepted: %+v", got)
	}

	expired := newTestCodec(t)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	cookies, _ = Cookies(expired, Markers{Authenticated: true, Role: auth.RoleAdmin}, CookieOptions{})
	if got := ReadMarkers(requestWithCookies(cookies), codec); !got.Cleared() {
		t.Fatalf("expired cookies accepted: %+v", got)
	}
}

func TestMarkerValueBoundToCookieName(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)

	token, err := codec.Encode(CookieUserRole, "true")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "http://example.com/", nil)
	req.AddCookie(&http.Cookie{Name: CookieAuthStatus, Value: token})
	if got := ReadMarkers(req, codec); got.Authenticated {
		t.Fatal("role token replayed as auth status was accepted")
	}
}

func TestJarFlushOnlyWhenPending(t *testing.T) {
	t.Parallel()
	codec := newTestCodec(t)
	jar := NewJar()

	rec := httptest.NewRecorder()
	if sent, err := jar.Flush(rec, codec, CookieOptions{}); err != nil || sent {
		t.Fatalf("Flush on empty jar sent=%v err=%v", sent, err)
	}

	jar.WriteMarkers(Markers{Authenticated: true, Role: auth.RoleAdmin})
	rec = httptest.NewRecorder()
	if sent, err := jar.Flush(rec, codec, CookieOptions{}); err != nil || !sent {
		t.Fatalf("Flush sent=%v err=%v", sent, err)
	}
	if n := len(rec.Result().Cookies()); n != 2 {
		t.Fatalf("cookies=%d; want 2", n)
	}

	rec = httptest.NewRecorder()
	if sent, _ := jar.Flush(rec, codec, CookieOptions{}); sent {
		t.Fatal("second Flush re-sent markers")
	}
}

func TestMarkersContext(t *testing.T) {
	t.Parallel()
	if _, ok := FromContext(context.Background()); ok {
		t.Fatal("empty context reported markers")
	}
	ctx := WithMarkers(context.Background(), Markers{Authenticated: true})
	m, ok := FromContext(ctx)
	if !ok || !m.Authenticated {
		t.Fatalf("FromContext=%+v,%v", m, ok)
	}
}
