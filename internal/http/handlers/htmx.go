package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"
)

const (
	hxRequestHeader  = "HX-Request"
	hxBoostedHeader  = "HX-Boosted"
	hxTargetHeader   = "HX-Target"
	hxRedirectHeader = "HX-Redirect"
)

// hxRequest is what htmx told us about the request that triggered it.
type hxRequest struct {
	Active  bool
	Boosted bool
	Target  string
}

func hxFrom(c *echo.Context) hxRequest {
	if c == nil || c.Request() == nil {
		return hxRequest{}
	}
	h := c.Request().Header
	return hxRequest{
		Active:  headerTrue(h.Get(hxRequestHeader)),
		Boosted: headerTrue(h.Get(hxBoostedHeader)),
		Target:  strings.TrimSpace(h.Get(hxTargetHeader)),
	}
}

// swaps reports whether the request only wants the fragment with the given id.
// Boosted navigations swap the whole body and get the full page.
func (r hxRequest) swaps(target string) bool {
	return r.Active && !r.Boosted && strings.EqualFold(r.Target, strings.TrimSpace(target))
}

func headerTrue(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

// redirect sends a 303 to url. Plain htmx requests get an HX-Redirect instead
// so the browser performs a full navigation rather than swapping the target.
func redirect(c *echo.Context, url string) error {
	addVary(c, hxRequestHeader)
	if hx := hxFrom(c); hx.Active && !hx.Boosted {
		c.Response().Header().Set(hxRedirectHeader, url)
		return c.NoContent(http.StatusOK)
	}
	return c.Redirect(http.StatusSeeOther, url)
}

// addVary merges header names into Vary without duplicates. A wildcard Vary
// is left alone.
func addVary(c *echo.Context, names ...string) {
	if c == nil || len(names) == 0 {
		return
	}
	header := c.Response().Header()

	var tokens []string
	seen := make(map[string]struct{})
	for _, line := range append(header.Values(echo.HeaderVary), names...) {
		for _, token := range strings.Split(line, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			if token == "*" {
				header.Set(echo.HeaderVary, "*")
				return
			}
			canonical := http.CanonicalHeaderKey(token)
			if _, dup := seen[canonical]; dup {
				continue
			}
			seen[canonical] = struct{}{}
			tokens = append(tokens, canonical)
		}
	}
	if len(tokens) > 0 {
		header.Set(echo.HeaderVary, strings.Join(tokens, ", "))
	}
}
