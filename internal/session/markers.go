// Package session holds the two client-readable session markers shared between
// the auth resolver and the edge gatekeeper.
//
// The markers are advisory. They can be stale or forged, so nothing may treat
// them as the authorization boundary.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

const (
	CookieAuthStatus = "authStatus"
	CookieUserRole   = "userRole"

	DefaultTTL = 7 * 24 * time.Hour

	minSecretLength = 32
)

var ErrSecretTooShort = fmt.Errorf("marker secret must be at least %d bytes", minSecretLength)

// Markers is the derived (authenticated, role) pair. The zero value is the
// cleared state.
type Markers struct {
	Authenticated bool
	Role          auth.Role
}

func (m Markers) Cleared() bool {
	return !m.Authenticated && m.Role == auth.RoleNone
}

type markerClaims struct {
	Value string `json:"v"`
	jwt.RegisteredClaims
}

// Codec signs marker values as compact HS256 tokens with an expiry.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if len(secret) < minSecretLength {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode signs value for the marker cookie name.
func (c *Codec) Encode(name, value string) (string, error) {
	now := c.now()
	claims := markerClaims{
		Value: value,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   name,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies a marker token and returns its value.
func (c *Codec) Decode(name, token string) (string, error) {
	var claims markerClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(name),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", err
	}
	return claims.Value, nil
}

// ReadMarkers reads both markers from the request cookies. Missing, forged or
// expired values read as absent.
func ReadMarkers(r *http.Request, codec *Codec) Markers {
	var m Markers
	if r == nil || codec == nil {
		return m
	}
	if v, ok := readCookie(r, codec, CookieAuthStatus); ok && v == "true" {
		m.Authenticated = true
	}
	if v, ok := readCookie(r, codec, CookieUserRole); ok {
		if role, err := auth.ParseRole(v); err == nil {
			m.Role = role
		}
	}
	return m
}

func readCookie(r *http.Request, codec *Codec, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || strings.TrimSpace(cookie.Value) == "" {
		return "", false
	}
	v, err := codec.Decode(name, cookie.Value)
	if err != nil {
		return "", false
	}
	return v, true
}

type contextKey struct{}

// WithMarkers returns a context carrying the request's markers.
func WithMarkers(ctx context.Context, m Markers) context.Context {
	return context.WithValue(ctx, contextKey{}, m)
}

func FromContext(ctx context.Context) (Markers, bool) {
	m, ok := ctx.Value(contextKey{}).(Markers)
	return m, ok
}

// CookieOptions controls the attributes of emitted marker cookies.
type CookieOptions struct {
	Secure bool
	Path   string
}

// Cookies renders m as Set-Cookie values. A cleared marker becomes a deletion.
func Cookies(codec *Codec, m Markers, opts CookieOptions) ([]*http.Cookie, error) {
	if codec == nil {
		return nil, errors.New("session: marker codec is nil")
	}
	path := opts.Path
	if path == "" {
		path = "/"
	}

	build := func(name, value string, set bool) (*http.Cookie, error) {
		cookie := &http.Cookie{
			Name:     name,
			Path:     path,
			Secure:   opts.Secure,
			// Only the server-side gatekeeper reads markers; page scripts never do.
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		}
		if !set {
			cookie.MaxAge = -1
			cookie.Expires = time.Unix(0, 0)
			return cookie, nil
		}
		token, err := codec.Encode(name, value)
		if err != nil {
			return nil, err
		}
		cookie.Value = token
		cookie.MaxAge = int(codec.ttl.Seconds())
		cookie.Expires = codec.now().Add(codec.ttl)
		return cookie, nil
	}

	status, err := build(CookieAuthStatus, "true", m.Authenticated)
	if err != nil {
		return nil, err
	}
	role, err := build(CookieUserRole, m.Role.String(), m.Role != auth.RoleNone)
	if err != nil {
		return nil, err
	}
	return []*http.Cookie{status, role}, nil
}
