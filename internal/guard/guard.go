// Package guard reconciles a session's live auth state with a page's role
// requirement. Navigation is only issued once resolution has finished.
package guard

import (
	"context"
	"net/http"
	"time"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/authstate"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/metrics"
	"github.com/labstack/echo/v5"
)

const DefaultResolveWait = 2 * time.Second

const loadingHTML = `<!doctype html><html><head><meta http-equiv="refresh" content="1"><title>Loading</title></head><body><p role="status">Loading...</p></body></html>`

type Outcome string

const (
	Resolving                  Outcome = "resolving"
	RedirectingUnauthenticated Outcome = "redirecting_unauthenticated"
	RedirectingWrongRole       Outcome = "redirecting_wrong_role"
	Authorized                 Outcome = "authorized"
)

// Requirement describes who may see a page. An empty Role admits any
// signed-in identity.
type Requirement struct {
	Role       auth.Role
	SignInPath string
	Fallback   string
}

func RequireRole(role auth.Role, fallback string) Requirement {
	return Requirement{Role: role, SignInPath: authn.SignInPath, Fallback: fallback}
}

// Evaluate maps a resolver state to the page outcome.
func Evaluate(st authstate.State, req Requirement) Outcome {
	switch {
	case st.Loading:
		return Resolving
	case st.Identity == nil:
		return RedirectingUnauthenticated
	case req.Role != auth.RoleNone && st.Role != req.Role:
		return RedirectingWrongRole
	default:
		return Authorized
	}
}

// ResolverLookup returns the auth resolver bound to the request's session.
type ResolverLookup func(c *echo.Context) (*authstate.Resolver, bool)

// LoadingRenderer renders the page shown while the session is still resolving.
type LoadingRenderer func(c *echo.Context) error

type Options struct {
	Wait    time.Duration
	Loading LoadingRenderer
}

// Require is the per-route guard middleware. It waits up to opts.Wait for the
// resolver to settle; a still-resolving session gets the loading page and no
// redirect.
func Require(req Requirement, lookup ResolverLookup, opts Options) echo.MiddlewareFunc {
	if opts.Wait <= 0 {
		opts.Wait = DefaultResolveWait
	}
	if opts.Loading == nil {
		opts.Loading = RenderLoading
	}
	if req.SignInPath == "" {
		req.SignInPath = authn.SignInPath
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			st := authstate.State{}
			if r, ok := lookup(c); ok {
				ctx, cancel := context.WithTimeout(c.Request().Context(), opts.Wait)
				st, _ = r.Wait(ctx)
				cancel()
			}

			outcome := Evaluate(st, req)
			metrics.GuardOutcomesTotal.WithLabelValues(string(outcome)).Inc()

			switch outcome {
			case Resolving:
				return opts.Loading(c)
			case RedirectingUnauthenticated:
				if authn.IsAPIRequest(c) {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				}
				return c.Redirect(http.StatusSeeOther, authn.SignInLocation(c, req.SignInPath))
			case RedirectingWrongRole:
				if authn.IsAPIRequest(c) {
					return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
				}
				return c.Redirect(http.StatusSeeOther, req.Fallback)
			}

			principal, _ := st.Principal()
			authn.SetPrincipal(c, principal)
			return next(c)
		}
	}
}

// RenderLoading is the fallback loading page. It reloads itself so the guard
// runs again once the resolver settles.
func RenderLoading(c *echo.Context) error {
	c.Response().Header().Set("Refresh", "1")
	c.Response().Header().Set("Cache-Control", "no-store")
	if authn.IsAPIRequest(c) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "session resolving"})
	}
	return c.HTML(http.StatusOK, loadingHTML)
}
