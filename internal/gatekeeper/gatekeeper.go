// Package gatekeeper is the request-time route check that runs before any
// protected page handler. It reads only the session markers, so it never calls
// the identity provider or the document store. Markers can be stale or forged;
// the page guard and data access checks stay authoritative.
package gatekeeper

import (
	"net/http"
	"path"
	"strings"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/metrics"
	"github.com/buyukinventory/marketplace/internal/session"
	"github.com/labstack/echo/v5"
)

type Action string

const (
	ActionAllow        Action = "allow"
	ActionSignIn       Action = "sign_in"
	ActionUnauthorized Action = "unauthorized"
)

type Routes struct {
	Protected        []string
	AdminOnly        []string
	SignInPath       string
	UnauthorizedPath string
}

// DefaultRoutes is the route table the application ships with.
func DefaultRoutes() Routes {
	return Routes{
		Protected:        []string{"/admin", "/dashboard"},
		AdminOnly:        []string{"/admin"},
		SignInPath:       "/sign-in",
		UnauthorizedPath: "/unauthorized",
	}
}

type Decision struct {
	Action   Action
	Location string
}

func (d Decision) Allowed() bool {
	return d.Action == ActionAllow
}

// Decide classifies a request path against the route table.
func (r Routes) Decide(requestPath string, m session.Markers) Decision {
	p := cleanPath(requestPath)
	if matchAny(r.Protected, p) && !m.Authenticated {
		return Decision{Action: ActionSignIn, Location: r.SignInPath}
	}
	if matchAny(r.AdminOnly, p) && m.Role != auth.RoleAdmin {
		return Decision{Action: ActionUnauthorized, Location: r.UnauthorizedPath}
	}
	return Decision{Action: ActionAllow}
}

// Middleware reads the marker cookies, stores them in the request context and
// redirects requests the route table rejects. Markers already present in the
// request context take precedence over cookies.
func Middleware(routes Routes, codec *session.Codec) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			req := c.Request()
			m, ok := session.FromContext(req.Context())
			if !ok {
				m = session.ReadMarkers(req, codec)
				c.SetRequest(req.WithContext(session.WithMarkers(req.Context(), m)))
			}

			d := routes.Decide(req.URL.Path, m)
			metrics.GatekeeperDecisionsTotal.WithLabelValues(string(d.Action)).Inc()
			if d.Allowed() {
				return next(c)
			}
			return c.Redirect(http.StatusSeeOther, d.Location)
		}
	}
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	return path.Clean(p)
}

func matchAny(prefixes []string, p string) bool {
	for _, prefix := range prefixes {
		if matchPrefix(prefix, p) {
			return true
		}
	}
	return false
}

// matchPrefix matches whole path segments: /admin matches /admin and
// /admin/users but not /administrator.
func matchPrefix(prefix, p string) bool {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		return true
	}
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	rest := p[len(prefix):]
	return rest == "" || rest[0] == '/'
}
