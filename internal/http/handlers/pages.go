package handlers

import (
	"net/http"

	"github.com/buyukinventory/marketplace/internal/authstate"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
	"github.com/buyukinventory/marketplace/internal/http/views"
	"github.com/labstack/echo/v5"
)

// HandleHome is public. A settled, signed-in session is sent to its role's
// landing page; a session that is still resolving sees the loading state.
func (h *Handlers) HandleHome(c *echo.Context) error {
	st := authstate.State{}
	if b, ok := authn.BindingFromContext(c); ok {
		st = h.waitResolved(c.Request().Context(), b.Entry.Resolver)
	}
	if st.Loading {
		return h.RenderLoading(c)
	}
	if st.SignedIn() {
		return c.Redirect(http.StatusSeeOther, authn.HomeFor(st.Role))
	}
	return h.RenderComponent(c, views.HomePage(viewmodels.HomeViewData{
		Layout: h.LayoutData(c, ""),
	}))
}

func (h *Handlers) HandleUnauthorized(c *echo.Context) error {
	signedIn := false
	if b, ok := authn.BindingFromContext(c); ok {
		signedIn = b.Entry.Resolver.State().SignedIn()
	}
	return h.RenderComponentStatus(c, http.StatusForbidden, views.UnauthorizedPage(viewmodels.UnauthorizedViewData{
		Layout:   h.LayoutData(c, "Unauthorized"),
		SignedIn: signedIn,
	}))
}

func (h *Handlers) HandleWaitingRoom(c *echo.Context) error {
	principal, _ := authn.PrincipalFromContext(c)
	name := principal.Email
	if rec, err := h.Profiles.Get(c.Request().Context(), principal.ID); err == nil && rec.Name != "" {
		name = rec.Name
	}
	return h.RenderComponent(c, views.WaitingRoomPage(viewmodels.WaitingRoomViewData{
		Layout: h.LayoutData(c, "Waiting room"),
		Name:   name,
	}))
}

// RenderLoading is the guard's loading page. It refreshes itself until the
// session's role has resolved.
func (h *Handlers) RenderLoading(c *echo.Context) error {
	c.Response().Header().Set("Refresh", "1")
	c.Response().Header().Set("Cache-Control", "no-store")
	if authn.IsAPIRequest(c) {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "session resolving"})
	}
	return h.RenderComponent(c, views.LoadingPage(h.LayoutData(c, "Loading")))
}
