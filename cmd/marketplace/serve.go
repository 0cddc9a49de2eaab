package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/pgxstore"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/buyukinventory/marketplace/internal/authstate"
	"github.com/buyukinventory/marketplace/internal/catalog"
	"github.com/buyukinventory/marketplace/internal/config"
	httpapp "github.com/buyukinventory/marketplace/internal/http"
	"github.com/buyukinventory/marketplace/internal/identity"
	"github.com/buyukinventory/marketplace/internal/metrics"
	"github.com/buyukinventory/marketplace/internal/profile"
	"github.com/buyukinventory/marketplace/internal/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	sessionCookieName = "mkt_session"
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "Run the HTTP server.",
	Args:        cobra.NoArgs,
	Annotations: structuredLogging(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.LoadOptionalDB()
	if err != nil {
		return err
	}
	logger := slog.Default()
	if cfg.InMemory() {
		logger.Warn("DATABASE_URL not set; using the in-memory document and session stores")
	}
	if cfg.MarkerSecretIsDev {
		logger.Warn("MARKER_SECRET not set; markers are signed with a random per-process secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	sessions := newSessionManager(cfg, b)
	codec, err := session.NewCodec(cfg.MarkerSecret, cfg.MarkerTTL)
	if err != nil {
		return err
	}
	provider := identity.NewProvider(b.docs, identity.WithAttemptLimit(cfg.SignInMaxAttempts, cfg.SignInAttemptWindow))
	profiles := profile.NewStore(b.docs)
	registry := authstate.NewRegistry(provider, profiles, cfg.ResolverIdleTTL,
		authstate.WithLogger(logger),
		authstate.WithFetchTimeout(cfg.ProfileFetchTimeout),
	)

	srv, err := httpapp.NewEchoServer(httpapp.Deps{
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
		Identity: provider,
		Profiles: profiles,
		Catalog:  catalog.New(b.docs),
		Registry: registry,
		Codec:    codec,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		// Request contexts end on shutdown so long-lived streams let go.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return metrics.Serve(gctx, cfg.MetricsAddr, logger)
	})
	g.Go(func() error {
		registry.Run(gctx)
		return nil
	})
	return g.Wait()
}

func newSessionManager(cfg config.Config, b *backend) *scs.SessionManager {
	sessions := scs.New()
	if b.pool != nil {
		sessions.Store = pgxstore.New(b.pool)
	} else {
		sessions.Store = memstore.New()
	}
	sessions.Lifetime = cfg.SessionLifetime
	sessions.Cookie.Name = sessionCookieName
	sessions.Cookie.HttpOnly = true
	sessions.Cookie.Secure = cfg.AuthCookieSecure
	sessions.Cookie.SameSite = http.SameSiteLaxMode
	sessions.Cookie.Path = "/"
	return sessions
}
