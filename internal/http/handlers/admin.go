package handlers

import (
	"errors"
	"sort"
	"strings"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
	"github.com/buyukinventory/marketplace/internal/http/views"
	"github.com/buyukinventory/marketplace/internal/logging"
	"github.com/buyukinventory/marketplace/internal/profile"
	"github.com/labstack/echo/v5"
	"github.com/shopspring/decimal"
	"golang.org/x/net/publicsuffix"
)

const (
	adminPath      = "/admin"
	adminLoadError = "We could not load the marketplace overview right now."
)

func (h *Handlers) HandleAdmin(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx := c.Request().Context()
	query := strings.TrimSpace(c.QueryParam("q"))

	data := viewmodels.AdminViewData{
		Layout: h.LayoutData(c, "Admin"),
		Roles:  roleOptions(),
		Query:  query,
	}

	counts, err := h.Catalog.Counts(ctx)
	var records []profile.Record
	if err == nil {
		records, err = h.Profiles.List(ctx)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("load admin overview", "error", err)
		data.LoadError = adminLoadError
		return h.RenderComponent(c, views.AdminPage(data))
	}

	data.Counts = viewmodels.AdminCounts{
		Users:    counts.Users,
		Stores:   counts.Stores,
		Products: counts.Products,
		Events:   counts.Events,
		Sales:    counts.Sales,
	}
	data.Users = adminUsers(records, principal.ID, query)
	return h.RenderComponent(c, views.AdminPage(data))
}

func roleOptions() []string {
	roles := auth.Roles()
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, r.String())
	}
	return out
}

func adminUsers(records []profile.Record, selfID, query string) []viewmodels.AdminUserItem {
	query = strings.ToLower(query)
	out := make([]viewmodels.AdminUserItem, 0, len(records))
	for _, r := range records {
		domain := emailDomain(r.Email)
		if query != "" && !containsAnyFold(query, r.Email, r.Name, domain) {
			continue
		}
		created := ""
		if !r.CreatedAt.IsZero() {
			created = r.CreatedAt.UTC().Format("2006-01-02")
		}
		out = append(out, viewmodels.AdminUserItem{
			ID:        r.ID,
			Email:     r.Email,
			Domain:    domain,
			Name:      r.Name,
			Role:      r.Role.String(),
			Credits:   decimal.NewFromFloat(r.Credits).StringFixed(2),
			CreatedAt: created,
			IsSelf:    r.ID == selfID,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Email < out[j].Email
	})
	return out
}

// emailDomain is the registrable domain of an address, so
// "ops@eu.shop.example.co.uk" groups under "example.co.uk".
func emailDomain(email string) string {
	_, host, ok := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if !ok || host == "" {
		return ""
	}
	if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		return domain
	}
	return host
}

func containsAnyFold(lowerNeedle string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), lowerNeedle) {
			return true
		}
	}
	return false
}

// HandleAdminCreateUser registers an identity and its profile record with the
// chosen role. The acting admin's session is left untouched.
func (h *Handlers) HandleAdminCreateUser(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	ctx := c.Request().Context()

	email := auth.NormalizeEmail(c.FormValue("email"))
	name := strings.TrimSpace(c.FormValue("name"))
	password := c.FormValue("password")
	role, err := auth.ParseRole(c.FormValue("role"))
	if err != nil || role == auth.RoleNone {
		return h.adminToast(c, toastError, "Choose a valid role.")
	}
	if email == "" || name == "" {
		return h.adminToast(c, toastError, "Name and email are required.")
	}

	ident, err := h.Identity.SignUp(ctx, email, password)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		return h.adminToast(c, toastError, "An account with this email already exists.")
	case errors.Is(err, auth.ErrPasswordTooShort):
		return h.adminToast(c, toastError, "Password is too short.")
	case err != nil:
		return err
	}

	if _, err := h.Profiles.Create(ctx, profile.Record{
		ID:        ident.ID,
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedBy: principal.ID,
	}); err != nil {
		if delErr := h.Identity.DeleteIdentity(ctx, ident.ID); delErr != nil {
			c.Logger().Error("roll back identity after profile failure", "identity_id", ident.ID, "error", delErr)
		}
		c.Logger().Warn("admin create profile", "email", email, "error", err)
		return h.adminToast(c, toastError, "Could not create the user profile.")
	}

	flash(c, toastSuccess, "User created", email)
	return redirect(c, adminPath)
}

func (h *Handlers) HandleAdminUpdateRole(c *echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return RenderNotFound(c)
	}
	role, err := auth.ParseRole(c.FormValue("role"))
	if err != nil || role == auth.RoleNone {
		return h.adminToast(c, toastError, "Choose a valid role.")
	}

	err = h.Profiles.UpdateRole(c.Request().Context(), id, role)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return h.adminToast(c, toastError, "User not found.")
	case err != nil:
		return err
	}
	flash(c, toastSuccess, "Role updated", "The change applies the next time that user's session refreshes.")
	return redirect(c, adminPath)
}

// HandleAdminDeleteUser deletes the target's profile record only. The
// identity stays; it resolves to no role from then on.
func (h *Handlers) HandleAdminDeleteUser(c *echo.Context) error {
	principal, ok := authn.PrincipalFromContext(c)
	if !ok {
		return echo.ErrUnauthorized
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return RenderNotFound(c)
	}
	if id == principal.ID {
		return h.adminToast(c, toastError, "You cannot delete your own profile.")
	}

	err := h.Profiles.Delete(c.Request().Context(), id)
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return h.adminToast(c, toastError, "User not found.")
	case err != nil:
		return err
	}
	flash(c, toastSuccess, "User profile deleted", "")
	return redirect(c, adminPath)
}

func (h *Handlers) adminToast(c *echo.Context, category, title string) error {
	flash(c, category, title, "")
	return redirect(c, adminPath)
}

