package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
)

func AdminPage(data viewmodels.AdminViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="page-header"><h1>Marketplace admin</h1></section>`)
		adminNav(h, data.Layout.ActivePath)
		if data.LoadError != "" {
			retryPanel(h, data.LoadError, ListURL("/admin", data.Query, "", ""))
			return h.err
		}

		h.raw(`<section class="metrics" aria-label="Marketplace totals">`)
		metricCard(h, "Users", FormatInt(data.Counts.Users))
		metricCard(h, "Stores", FormatInt(data.Counts.Stores))
		metricCard(h, "Products", FormatInt(data.Counts.Products))
		metricCard(h, "Events", FormatInt(data.Counts.Events))
		metricCard(h, "Sales", FormatInt(data.Counts.Sales))
		h.raw(`</section>`)

		h.raw(`<section><h2>Register a user</h2><form class="stack" method="post" action="/admin/users">`)
		csrfField(h, data.Layout.CSRFToken)
		h.raw(`<input name="name" type="text" placeholder="Name" required><input name="email" type="email" placeholder="Email" required>`)
		h.raw(`<input name="password" type="password" placeholder="Temporary password" minlength="8" required>`)
		roleSelect(h, data.Roles, "customer")
		h.raw(`<button type="submit" class="btn">Create user</button></form></section>`)

		h.raw(`<section><h2>Users</h2><form method="get" action="/admin"><input type="search" name="q" placeholder="Search users"`)
		h.attr("value", data.Query)
		h.raw(`></form>`)
		if len(data.Users) == 0 {
			h.raw(`<p class="muted">No users found.</p></section>`)
			return h.err
		}
		h.raw(`<table class="table"><thead><tr><th>Name</th><th>Email</th><th>Domain</th><th>Role</th><th>Credits</th><th>Created</th><th><span class="sr-only">Actions</span></th></tr></thead><tbody>`)
		for _, u := range data.Users {
			h.raw(`<tr`)
			h.attr("data-user-id", u.ID)
			h.raw(`><td>`)
			h.text(u.Name)
			h.raw(`</td><td>`)
			h.text(u.Email)
			h.raw(`</td><td>`)
			h.text(u.Domain)
			h.raw(`</td><td><span`)
			h.attr("class", RoleBadgeClass(u.Role))
			h.raw(`>`)
			h.text(HumanizeRole(u.Role))
			h.raw(`</span></td><td>`)
			h.text(u.Credits)
			h.raw(`</td><td>`)
			h.text(u.CreatedAt)
			h.raw(`</td><td class="actions">`)
			h.raw(`<form method="post"`)
			h.url("action", "/admin/users/"+QueryEscape(u.ID)+"/role")
			h.raw(`>`)
			csrfField(h, data.Layout.CSRFToken)
			roleSelect(h, data.Roles, u.Role)
			h.raw(`<button type="submit" class="btn-ghost">Save</button></form>`)
			if !u.IsSelf {
				h.raw(`<form method="post"`)
				h.url("action", "/admin/users/"+QueryEscape(u.ID)+"/delete")
				h.raw(` hx-confirm="Delete this user's profile?">`)
				csrfField(h, data.Layout.CSRFToken)
				h.raw(`<button type="submit" class="btn-destructive">Delete</button></form>`)
			}
			h.raw(`</td></tr>`)
		}
		h.raw(`</tbody></table></section>`)
		return h.err
	})
	return page(Layout(data.Layout), body)
}

func roleSelect(h *htmlWriter, roles []string, selected string) {
	h.raw(`<select name="role" aria-label="Role">`)
	for _, r := range roles {
		h.raw(`<option`)
		h.attr("value", r)
		if r == selected {
			h.raw(` selected`)
		}
		h.raw(`>`)
		h.text(HumanizeRole(r))
		h.raw(`</option>`)
	}
	h.raw(`</select>`)
}
