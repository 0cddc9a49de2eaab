package views

import (
	"context"
	"encoding/json"
	"io"

	"github.com/a-h/templ"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
)

// Layout renders the document shell around the children in ctx.
func Layout(data viewmodels.LayoutData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		title := data.Title
		if title == "" {
			title = "Marketplace"
		} else {
			title += " · Marketplace"
		}

		headers, err := json.Marshal(map[string]string{"X-CSRF-Token": data.CSRFToken})
		if err != nil {
			return err
		}

		h.raw(`<!doctype html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(`</title>`)
		h.raw(`<meta name="csrf-token"`)
		h.attr("content", data.CSRFToken)
		h.raw(`><link rel="stylesheet" href="/static/app.css"><script src="https://unpkg.com/htmx.org@2.0.4" defer></script><script src="https://unpkg.com/htmx-ext-sse@2.2.2" defer></script></head>`)
		h.raw(`<body hx-boost="true" hx-headers="`, templ.EscapeString(string(headers)), `">`)

		h.raw(`<header class="topbar"><a class="brand" href="/">Marketplace</a><nav aria-label="Main">`)
		if data.IsVendor {
			navLink(h, data.ActivePath, "/dashboard", "Dashboard")
		}
		if data.IsAdmin {
			navLink(h, data.ActivePath, "/admin", "Admin")
		}
		h.raw(`</nav>`)
		if data.UserEmail != "" {
			h.raw(`<div class="account"><span class="account-email">`)
			h.text(data.UserEmail)
			h.raw(`</span>`)
			if data.UserRole != "" {
				h.raw(`<span`)
				h.attr("class", RoleBadgeClass(data.UserRole))
				h.raw(`>`)
				h.text(HumanizeRole(data.UserRole))
				h.raw(`</span>`)
			}
			h.raw(`<form method="post" action="/sign-out" hx-boost="false">`)
			csrfField(h, data.CSRFToken)
			h.raw(`<button type="submit" class="btn-ghost">Sign out</button></form></div>`)
		} else {
			h.raw(`<a class="btn" href="/sign-in">Sign in</a>`)
		}
		h.raw(`</header>`)

		if data.Toast != nil {
			h.component(Toast(*data.Toast))
		}

		h.raw(`<main id="main">`)
		h.component(templ.GetChildren(ctx))
		h.raw(`</main></body></html>`)
		return h.err
	})
}

// Toast renders a single flash notification.
func Toast(toast viewmodels.ToastViewData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		destructive := IsAlertDestructive(toast.Category)
		h.raw(`<div class="toast"`)
		h.attr("data-category", toast.Category)
		h.attr("role", AlertRole(destructive))
		h.attr("aria-live", AlertAriaLive(destructive))
		h.raw(`><strong>`)
		h.text(toast.Title)
		h.raw(`</strong>`)
		if toast.Description != "" {
			h.raw(`<p>`)
			h.text(toast.Description)
			h.raw(`</p>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

func navLink(h *htmlWriter, activePath, href, label string) {
	h.raw(`<a`)
	h.url("href", href)
	h.attr("aria-current", AriaCurrent(activePath, href))
	h.raw(`>`)
	h.text(label)
	h.raw(`</a>`)
}

func csrfField(h *htmlWriter, token string) {
	h.raw(`<input type="hidden" name="csrf"`)
	h.raw(` value="`, templ.EscapeString(token), `">`)
}

func errorAlert(h *htmlWriter, message string) {
	if message == "" {
		return
	}
	h.raw(`<div class="alert alert-error" role="alert" aria-live="assertive">`)
	h.text(message)
	h.raw(`</div>`)
}
