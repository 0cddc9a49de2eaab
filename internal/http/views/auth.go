package views

import (
	"context"
	"io"

	"github.com/a-h/templ"
	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
)

func SignInPage(data viewmodels.SignInViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="auth-card"><h1>Sign in</h1>`)
		errorAlert(h, data.ErrorMessage)
		h.raw(`<form method="post" action="/sign-in" hx-boost="false">`)
		csrfField(h, data.CSRFToken)
		if data.Next != "" {
			h.raw(`<input type="hidden" name="next"`)
			h.attr("value", data.Next)
			h.raw(`>`)
		}
		h.raw(`<label for="email">Email</label><input id="email" name="email" type="email" autocomplete="username" required`)
		h.attr("value", data.Email)
		h.raw(`><label for="password">Password</label><input id="password" name="password" type="password" autocomplete="current-password" required>`)
		h.raw(`<button type="submit" class="btn">Sign in</button></form>`)
		h.raw(`<p class="muted">New vendor? <a href="/sign-up">Create an account</a></p></section>`)
		return h.err
	})
	return page(Layout(viewmodels.LayoutData{Title: "Sign in", CSRFToken: data.CSRFToken, Toast: data.Toast}), body)
}

func SignUpPage(data viewmodels.SignUpViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := newHTMLWriter(ctx, w)
		h.raw(`<section class="auth-card"><h1>Create a vendor account</h1>`)
		errorAlert(h, data.ErrorMessage)
		h.raw(`<form method="post" action="/sign-up" hx-boost="false">`)
		csrfField(h, data.CSRFToken)
		h.raw(`<label for="name">Name</label><input id="name" name="name" type="text" autocomplete="name" required`)
		h.attr("value", data.Name)
		h.raw(`><label for="email">Email</label><input id="email" name="email" type="email" autocomplete="email" required`)
		h.attr("value", data.Email)
		h.raw(`><label for="password">Password</label><input id="password" name="password" type="password" autocomplete="new-password" minlength="8" required>`)
		h.raw(`<button type="submit" class="btn">Create account</button></form>`)
		h.raw(`<p class="muted">Already registered? <a href="/sign-in">Sign in</a></p></section>`)
		return h.err
	})
	return page(Layout(viewmodels.LayoutData{Title: "Sign up", CSRFToken: data.CSRFToken, Toast: data.Toast}), body)
}
