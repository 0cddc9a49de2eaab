package authn

import (
	"context"
	"net/http"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/authstate"
	"github.com/labstack/echo/v5"
)

// Binding ties a request to its browser session and that session's resolver
// entry.
type Binding struct {
	SessionID string
	Entry     *authstate.Entry
}

type bindingKey struct{}

func WithBinding(ctx context.Context, b Binding) context.Context {
	return context.WithValue(ctx, bindingKey{}, b)
}

func BindingFromRequest(r *http.Request) (Binding, bool) {
	if r == nil {
		return Binding{}, false
	}
	b, ok := r.Context().Value(bindingKey{}).(Binding)
	return b, ok && b.Entry != nil
}

func BindingFromContext(c *echo.Context) (Binding, bool) {
	if c == nil {
		return Binding{}, false
	}
	return BindingFromRequest(c.Request())
}

// ResolverFromContext returns the resolver bound to the request's session.
func ResolverFromContext(c *echo.Context) (*authstate.Resolver, bool) {
	b, ok := BindingFromContext(c)
	if !ok {
		return nil, false
	}
	return b.Entry.Resolver, true
}

// HomeFor is the landing page for a resolved role.
func HomeFor(role auth.Role) string {
	switch role {
	case auth.RoleAdmin:
		return "/admin"
	case auth.RoleVendor:
		return "/dashboard"
	case auth.RoleCustomer:
		return "/waiting-room"
	default:
		return "/unauthorized"
	}
}
