package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
)

func HomePage(data viewmodels.HomeViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="hero"><h1>Buyuk Marketplace</h1>`)
		h.raw(`<p>Run your market stalls, track stock and record sales in one place.</p>`)
		h.raw(`<p><a class="btn" href="/sign-in">Sign in</a> <a class="btn-ghost" href="/sign-up">Become a vendor</a></p></section>`)
		return h.err
	})
	return page(Layout(data.Layout), body)
}

func UnauthorizedPage(data viewmodels.UnauthorizedViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="empty-state"><h1>Access denied</h1>`)
		if data.SignedIn {
			h.raw(`<p>Your account does not have access to this page. If your role was changed recently, refresh your session.</p>`)
			h.raw(`<form method="post" action="/session/refresh" hx-boost="false">`)
			csrfField(h, data.Layout.CSRFToken)
			h.raw(`<button type="submit" class="btn">Refresh session</button></form>`)
		} else {
			h.raw(`<p>You need to sign in to continue.</p><p><a class="btn" href="/sign-in">Sign in</a></p>`)
		}
		h.raw(`</section>`)
		return h.err
	})
	return page(Layout(data.Layout), body)
}

func WaitingRoomPage(data viewmodels.WaitingRoomViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="empty-state"><h1>Welcome, `)
		h.text(data.Name)
		h.raw(`</h1><p>Your account is waiting for a marketplace administrator to assign you to a store.</p>`)
		h.raw(`<form method="post" action="/session/refresh" hx-boost="false">`)
		csrfField(h, data.Layout.CSRFToken)
		h.raw(`<button type="submit" class="btn-ghost">Check again</button></form></section>`)
		return h.err
	})
	return page(Layout(data.Layout), body)
}

// LoadingPage is shown while a session's role is still resolving.
func LoadingPage(layout viewmodels.LayoutData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="loading" role="status" aria-live="polite"><span class="spinner" aria-hidden="true"></span><p>Loading your account...</p></section>`)
		return h.err
	})
	return page(Layout(layout), body)
}

// retryPanel is the page-level error shown when a data fetch fails.
func retryPanel(h *htmlWriter, message, retryHref string) {
	h.raw(`<div class="alert alert-error" role="alert" aria-live="assertive"><p>`)
	h.text(message)
	h.raw(`</p><a class="btn-ghost"`)
	h.url("href", retryHref)
	h.raw(`>Try again</a></div>`)
}
