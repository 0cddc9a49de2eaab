package httpapp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/alexedwards/scs/v2"
	"github.com/buyukinventory/marketplace/internal/authstate"
	"github.com/buyukinventory/marketplace/internal/http/authn"
	"github.com/buyukinventory/marketplace/internal/http/handlers"
	"github.com/buyukinventory/marketplace/internal/identity"
	"github.com/buyukinventory/marketplace/internal/logging"
	"github.com/buyukinventory/marketplace/internal/session"
	"github.com/google/uuid"
	"github.com/labstack/echo/v5"
)

// sessionBinder attaches every browser session to its resolver entry. It runs
// inside scs LoadAndSave so the session data is available.
type sessionBinder struct {
	sessions *scs.SessionManager
	provider *identity.Provider
	registry *authstate.Registry
	codec    *session.Codec
	cookies  session.CookieOptions
	logger   *slog.Logger
}

func skipBinding(path string) bool {
	return path == "/healthz" || strings.HasPrefix(path, "/static/")
}

func (b *sessionBinder) wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skipBinding(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()

		sid := b.sessions.GetString(ctx, authn.SessionKeySessionID)
		if sid == "" {
			sid = uuid.NewString()
			b.sessions.Put(ctx, authn.SessionKeySessionID, sid)
		}

		// After a restart the provider has no binding yet; restore it from
		// the persisted identity id before the resolver subscribes.
		if identityID := b.sessions.GetString(ctx, authn.SessionKeyIdentityID); identityID != "" {
			if _, err := b.provider.Restore(ctx, sid, identityID); errors.Is(err, identity.ErrSessionRevoked) {
				b.sessions.Remove(ctx, authn.SessionKeyIdentityID)
			} else if err != nil {
				b.logger.Warn("restore session identity", "error", err)
			}
		}

		entry := b.registry.Get(sid)
		mw := &markerResponseWriter{ResponseWriter: w}
		mw.flush = func() {
			if _, err := entry.Jar.Flush(mw.ResponseWriter, b.codec, b.cookies); err != nil {
				b.logger.Error("flush session markers", "error", err)
			}
		}

		ctx = authn.WithBinding(ctx, authn.Binding{SessionID: sid, Entry: entry})
		next.ServeHTTP(mw, r.WithContext(ctx))
		mw.flushOnce()
	})
}

// markerResponseWriter writes pending marker cookies right before the
// response headers go out.
type markerResponseWriter struct {
	http.ResponseWriter
	flush func()
	once  sync.Once
}

func (w *markerResponseWriter) flushOnce() {
	w.once.Do(w.flush)
}

func (w *markerResponseWriter) WriteHeader(code int) {
	w.flushOnce()
	w.ResponseWriter.WriteHeader(code)
}

func (w *markerResponseWriter) Write(b []byte) (int, error) {
	w.flushOnce()
	return w.ResponseWriter.Write(b)
}

func (w *markerResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// requestID assigns X-Request-ID, reusing a well-formed inbound value, and
// attaches a request-scoped logger.
func requestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			req := c.Request()
			id := strings.TrimSpace(req.Header.Get(echo.HeaderXRequestID))
			if _, err := uuid.Parse(id); err != nil {
				id = uuid.NewString()
			}
			c.Set(handlers.ContextKeyRequestID, id)
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			logger := c.Logger().With("request_id", id)
			c.SetRequest(req.WithContext(logging.WithLogger(req.Context(), logger)))
			return next(c)
		}
	}
}
