package httpapp

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/buyukinventory/marketplace/internal/auth"
	"github.com/buyukinventory/marketplace/internal/authstate"
	"github.com/buyukinventory/marketplace/internal/catalog"
	"github.com/buyukinventory/marketplace/internal/config"
	"github.com/buyukinventory/marketplace/internal/gatekeeper"
	"github.com/buyukinventory/marketplace/internal/guard"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/http/handlers"
	"github.com/buyukinventory/marketplace/internal/http/views"
	"github.com/buyukinventory/marketplace/internal/identity"
	"github.com/buyukinventory/marketplace/internal/session"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

// Deps are the collaborators the web surface is built from.
type Deps struct {
	Config   config.Config
	Logger   *slog.Logger
	Sessions *scs.SessionManager
	Identity *identity.Provider
	Profiles handlers.ProfileStore
	Catalog  *catalog.Catalog
	Registry *authstate.Registry
	Codec    *session.Codec
}

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h      *handlers.Handlers
	e      *echo.Echo
	binder *sessionBinder
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(deps Deps) (*EchoServer, error) {
	if deps.Sessions == nil || deps.Identity == nil || deps.Registry == nil || deps.Codec == nil {
		return nil, errors.New("httpapp: sessions, identity, registry and codec are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers.Handlers{
		Cfg:      deps.Config,
		Sessions: deps.Sessions,
		Identity: deps.Identity,
		Profiles: deps.Profiles,
		Catalog:  deps.Catalog,
	}
	e := echo.New()
	e.Logger = logger

	es := &EchoServer{
		h: h,
		e: e,
		binder: &sessionBinder{
			sessions: deps.Sessions,
			provider: deps.Identity,
			registry: deps.Registry,
			codec:    deps.Codec,
			cookies:  session.CookieOptions{Secure: deps.Config.AuthCookieSecure, Path: "/"},
			logger:   logger,
		},
	}
	e.HTTPErrorHandler = es.httpErrorHandler
	es.registerRoutes(deps.Codec)
	return es, nil
}

func (es *EchoServer) registerRoutes(codec *session.Codec) {
	es.e.Use(requestID())
	es.e.Use(middleware.Recover())
	es.e.Use(gatekeeper.Middleware(gatekeeper.DefaultRoutes(), codec))
	es.e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "header:" + echo.HeaderXCSRFToken + ",form:csrf",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSecure:   es.h.Cfg.AuthCookieSecure,
		CookieSameSite: http.SameSiteLaxMode,
	}))

	es.e.GET("/healthz", es.h.HandleHealthz)
	es.e.GET("/", es.h.HandleHome)
	es.e.GET(authn.SignInPath, es.h.HandleSignInGet)
	es.e.POST(authn.SignInPath, es.h.HandleSignInPost)
	es.e.GET("/sign-up", es.h.HandleSignUpGet)
	es.e.POST("/sign-up", es.h.HandleSignUpPost)
	es.e.POST("/sign-out", es.h.HandleSignOutPost)
	es.e.POST("/session/refresh", es.h.HandleSessionRefresh)
	es.e.GET("/unauthorized", es.h.HandleUnauthorized)

	opts := guard.Options{Wait: es.h.Cfg.GuardResolveWait, Loading: es.h.RenderLoading}
	require := func(role auth.Role, fallback string) echo.MiddlewareFunc {
		return guard.Require(guard.RequireRole(role, fallback), authn.ResolverFromContext, opts)
	}
	requireVendor := require(auth.RoleVendor, "/unauthorized")
	requireAdmin := require(auth.RoleAdmin, "/unauthorized")
	requireCustomer := require(auth.RoleCustomer, authn.SignInPath)

	es.e.GET("/dashboard", es.h.HandleDashboard, requireVendor)
	es.e.GET(views.DashboardStoresStreamPath, es.h.HandleDashboardStoresStream, requireVendor)
	es.e.POST("/api/sales", es.h.HandleCreateSale, requireVendor)

	es.e.GET("/admin", es.h.HandleAdmin, requireAdmin)
	es.e.GET(views.AdminStoresPath, es.h.HandleAdminStores, requireAdmin)
	es.e.GET(views.AdminVendorsPath, es.h.HandleAdminVendors, requireAdmin)
	es.e.GET(views.AdminEventsPath, es.h.HandleAdminEvents, requireAdmin)
	es.e.GET(views.AdminProductsPath, es.h.HandleAdminProducts, requireAdmin)
	es.e.POST("/admin/users", es.h.HandleAdminCreateUser, requireAdmin)
	es.e.POST("/admin/users/:id/role", es.h.HandleAdminUpdateRole, requireAdmin)
	es.e.POST("/admin/users/:id/delete", es.h.HandleAdminDeleteUser, requireAdmin)

	es.e.GET("/waiting-room", es.h.HandleWaitingRoom, requireCustomer)

	es.e.Static("/static", "web/static")
}

// Handler is the full request pipeline: session load/save and resolver
// binding around the echo router.
func (es *EchoServer) Handler() http.Handler {
	return es.binder.sessions.LoadAndSave(es.binder.wrap(es.e))
}

func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	status := httpStatusFromError(err)
	requestID, _ := c.Get(handlers.ContextKeyRequestID).(string)

	switch {
	case status >= http.StatusInternalServerError:
		c.Logger().Error("http error",
			"request_id", requestID,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"error", err,
		)
		msg := "Internal server error."
		if requestID != "" {
			msg = fmt.Sprintf("%s Reference: %s.", msg, requestID)
		}
		msg = fmt.Sprintf("%s Code: %s.", msg, handlers.InternalErrorCode)
		_ = c.String(status, msg)
	case status == http.StatusNotFound:
		_ = handlers.RenderNotFound(c)
	default:
		_ = c.String(status, http.StatusText(status))
	}
}

type statusCoder interface {
	StatusCode() int
}

func httpStatusFromError(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code >= 400 && he.Code <= 599 {
		return he.Code
	}
	return http.StatusInternalServerError
}
