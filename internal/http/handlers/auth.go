package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/authstate"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
	"github.com/buyukinventory/marketplace/internal/http/views"
	"github.com/buyukinventory/marketplace/internal/profile"
	"github.com/labstack/echo/v5"
)

const (
	signInInvalidMessage  = "Invalid email or password."
	signInLockedMessage   = "Too many failed sign-in attempts. Try again in a few minutes."
	signInUnavailable     = "Sign-in is temporarily unavailable. Please try again."
	signUpEmailTakenError = "An account with this email already exists."
)

var errSessionNotBound = errors.New("request has no bound browser session")

func (h *Handlers) HandleSignInGet(c *echo.Context) error {
	if b, ok := authn.BindingFromContext(c); ok {
		if st := b.Entry.Resolver.State(); st.SignedIn() && !st.Loading {
			return c.Redirect(http.StatusSeeOther, authn.HomeFor(st.Role))
		}
	}

	data := viewmodels.SignInViewData{
		CSRFToken: csrfToken(c),
		Next:      authn.SanitizeNext(c.QueryParam("next")),
		Toast:     takeFlash(c),
	}
	return h.RenderComponent(c, views.SignInPage(data))
}

func (h *Handlers) HandleSignInPost(c *echo.Context) error {
	b, ok := authn.BindingFromContext(c)
	if !ok {
		return errSessionNotBound
	}
	ctx := c.Request().Context()

	email := auth.NormalizeEmail(c.FormValue("email"))
	password := c.FormValue("password")
	next := authn.SanitizeNext(c.FormValue("next"))
	data := viewmodels.SignInViewData{
		CSRFToken: csrfToken(c),
		Email:     email,
		Next:      next,
	}

	if email == "" || strings.TrimSpace(password) == "" {
		data.ErrorMessage = signInInvalidMessage
		return h.RenderComponentStatus(c, http.StatusUnprocessableEntity, views.SignInPage(data))
	}

	ident, err := h.Identity.SignIn(ctx, b.SessionID, email, password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		data.ErrorMessage = signInInvalidMessage
		return h.RenderComponentStatus(c, http.StatusUnauthorized, views.SignInPage(data))
	case errors.Is(err, auth.ErrTooManyAttempts):
		data.ErrorMessage = signInLockedMessage
		return h.RenderComponentStatus(c, http.StatusTooManyRequests, views.SignInPage(data))
	case err != nil:
		c.Logger().Warn("sign-in failed", "error", err)
		data.ErrorMessage = signInUnavailable
		return h.RenderComponentStatus(c, http.StatusServiceUnavailable, views.SignInPage(data))
	}

	return h.completeSignIn(c, b, ident, next)
}

// completeSignIn binds the identity to the scs session, waits briefly for the
// role to resolve and sends the browser to its landing page.
func (h *Handlers) completeSignIn(c *echo.Context, b authn.Binding, ident auth.Identity, next string) error {
	ctx := c.Request().Context()
	if err := h.Sessions.RenewToken(ctx); err != nil {
		return err
	}
	h.Sessions.Put(ctx, authn.SessionKeyIdentityID, ident.ID)

	st := h.waitResolved(ctx, b.Entry.Resolver)
	if next != "" {
		return c.Redirect(http.StatusSeeOther, next)
	}
	if st.Loading {
		// the guard on the landing page renders the loading state
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return c.Redirect(http.StatusSeeOther, authn.HomeFor(st.Role))
}

func (h *Handlers) waitResolved(ctx context.Context, r *authstate.Resolver) authstate.State {
	wait := h.Cfg.GuardResolveWait
	if wait <= 0 {
		wait = authstate.DefaultFetchTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	st, _ := r.Wait(waitCtx)
	return st
}

func (h *Handlers) HandleSignUpGet(c *echo.Context) error {
	return h.RenderComponent(c, views.SignUpPage(viewmodels.SignUpViewData{
		CSRFToken: csrfToken(c),
		Toast:     takeFlash(c),
	}))
}

// HandleSignUpPost registers a vendor account: an identity plus its profile
// record, then signs the new vendor in.
func (h *Handlers) HandleSignUpPost(c *echo.Context) error {
	b, ok := authn.BindingFromContext(c)
	if !ok {
		return errSessionNotBound
	}
	ctx := c.Request().Context()

	name := strings.TrimSpace(c.FormValue("name"))
	email := auth.NormalizeEmail(c.FormValue("email"))
	password := c.FormValue("password")
	data := viewmodels.SignUpViewData{CSRFToken: csrfToken(c), Name: name, Email: email}

	if name == "" || email == "" {
		data.ErrorMessage = "Name and email are required."
		return h.RenderComponentStatus(c, http.StatusUnprocessableEntity, views.SignUpPage(data))
	}

	ident, err := h.Identity.SignUp(ctx, email, password)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		data.ErrorMessage = signUpEmailTakenError
		return h.RenderComponentStatus(c, http.StatusConflict, views.SignUpPage(data))
	case errors.Is(err, auth.ErrPasswordTooShort):
		data.ErrorMessage = fmt.Sprintf("Password must be at least %d characters.", auth.MinPasswordLength)
		return h.RenderComponentStatus(c, http.StatusUnprocessableEntity, views.SignUpPage(data))
	case err != nil:
		return err
	}

	if _, err := h.Profiles.Create(ctx, profile.Record{
		ID:        ident.ID,
		Email:     email,
		Name:      name,
		Role:      auth.RoleVendor,
		CreatedBy: ident.ID,
	}); err != nil {
		if delErr := h.Identity.DeleteIdentity(ctx, ident.ID); delErr != nil {
			c.Logger().Error("roll back identity after profile failure", "identity_id", ident.ID, "error", delErr)
		}
		data.ErrorMessage = "Could not create your profile. Check the details and try again."
		c.Logger().Warn("create vendor profile", "identity_id", ident.ID, "error", err)
		return h.RenderComponentStatus(c, http.StatusUnprocessableEntity, views.SignUpPage(data))
	}

	if _, err := h.Identity.SignIn(ctx, b.SessionID, email, password); err != nil {
		return err
	}
	return h.completeSignIn(c, b, ident, "")
}

func (h *Handlers) HandleSignOutPost(c *echo.Context) error {
	ctx := c.Request().Context()
	if b, ok := authn.BindingFromContext(c); ok {
		if err := b.Entry.Resolver.SignOut(ctx); err != nil {
			return err
		}
	}
	if h.Sessions != nil {
		h.Sessions.Remove(ctx, authn.SessionKeyIdentityID)
		if err := h.Sessions.RenewToken(ctx); err != nil {
			return err
		}
	}
	flash(c, toastSuccess, "Signed out", "")
	return redirect(c, authn.SignInPath)
}

// HandleSessionRefresh re-reads the signed-in identity's profile record so a
// role change made elsewhere takes effect in this session.
func (h *Handlers) HandleSessionRefresh(c *echo.Context) error {
	b, ok := authn.BindingFromContext(c)
	if !ok {
		return errSessionNotBound
	}
	b.Entry.Resolver.Refresh()
	st := h.waitResolved(c.Request().Context(), b.Entry.Resolver)

	target := authn.SanitizeNext(c.FormValue("next"))
	if target == "" {
		target = authn.HomeFor(st.Role)
		if !st.SignedIn() {
			target = authn.SignInPath
		}
	}
	return redirect(c, target)
}
