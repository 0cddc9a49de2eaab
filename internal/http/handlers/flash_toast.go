package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/buyukinventory/marketplace/internal/http/viewmodels"
	"github.com/labstack/echo/v5"
)

const (
	toastCookieName = "mkt_toast"
	toastMaxAge     = 30 * time.Second
)

const (
	toastSuccess = "success"
	toastError   = "error"
	toastWarning = "warning"
	toastInfo    = "info"
)

// flash queues a toast for the next rendered page. Blank toasts are dropped.
func flash(c *echo.Context, category, title, description string) {
	toast, ok := cleanToast(viewmodels.ToastViewData{Category: category, Title: title, Description: description})
	if !ok {
		return
	}
	payload, err := json.Marshal(toast)
	if err != nil {
		return
	}
	c.SetCookie(toastCookie(c, base64.RawURLEncoding.EncodeToString(payload), int(toastMaxAge/time.Second)))
}

// takeFlash returns the queued toast, if any, and clears it.
func takeFlash(c *echo.Context) *viewmodels.ToastViewData {
	cookie, err := c.Cookie(toastCookieName)
	if err != nil || cookie == nil {
		return nil
	}
	c.SetCookie(toastCookie(c, "", -1))

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return nil
	}
	var toast viewmodels.ToastViewData
	if err := json.Unmarshal(raw, &toast); err != nil {
		return nil
	}
	toast, ok := cleanToast(toast)
	if !ok {
		return nil
	}
	return &toast
}

func toastCookie(c *echo.Context, value string, maxAge int) *http.Cookie {
	cookie := &http.Cookie{
		Name:     toastCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Request().TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge < 0 {
		cookie.Expires = time.Unix(0, 0)
	}
	return cookie
}

func cleanToast(t viewmodels.ToastViewData) (viewmodels.ToastViewData, bool) {
	switch category := strings.ToLower(strings.TrimSpace(t.Category)); category {
	case toastSuccess, toastError, toastWarning:
		t.Category = category
	default:
		t.Category = toastInfo
	}
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	return t, t.Title != "" || t.Description != ""
}
