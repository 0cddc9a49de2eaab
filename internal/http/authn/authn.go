package authn

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/labstack/echo/v5"
)

const (
	ContextKeyPrincipal = "auth_principal"

	SessionKeyIdentityID = "auth_identity_id"
	SessionKeySessionID  = "auth_session_id"

	SignInPath = "/sign-in"
)

func PrincipalFromContext(c *echo.Context) (auth.Principal, bool) {
	p, ok := c.Get(ContextKeyPrincipal).(auth.Principal)
	return p, ok
}

func SetPrincipal(c *echo.Context, p auth.Principal) {
	c.Set(ContextKeyPrincipal, p)
}

func IsAPIRequest(c *echo.Context) bool {
	return strings.HasPrefix(c.Path(), "/api/") || strings.HasPrefix(c.Request().URL.Path, "/api/")
}

// SignInLocation returns the sign-in URL, carrying the current GET request as
// next when it is a safe local path.
func SignInLocation(c *echo.Context, signInPath string) string {
	if signInPath == "" {
		signInPath = SignInPath
	}
	if c.Request().Method != http.MethodGet {
		return signInPath
	}
	if next := SanitizeNext(c.Request().URL.RequestURI()); next != "" {
		return signInPath + "?next=" + url.QueryEscape(next)
	}
	return signInPath
}

func SanitizeNext(next string) string {
	next = strings.TrimSpace(next)
	if next == "" || len(next) > 2048 {
		return ""
	}
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return ""
	}

	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" || u.Scheme != "" {
		return ""
	}
	if u.Path == SignInPath || strings.HasPrefix(u.Path, SignInPath+"/") {
		return ""
	}
	if strings.Contains(next, "\\") {
		return ""
	}
	return next
}
