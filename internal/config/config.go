package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultHTTPAddr            = ":8080"
	defaultMetricsAddr         = ":9090"
	defaultMarkerTTL           = 7 * 24 * time.Hour
	defaultSessionLifetime     = 7 * 24 * time.Hour
	defaultGuardResolveWait    = 2 * time.Second
	defaultResolverIdleTTL     = 30 * time.Minute
	defaultProfileFetchTimeout = 5 * time.Second
	defaultSignInMaxAttempts   = 5
	defaultSignInAttemptWindow = 15 * time.Minute

	minMarkerSecretLength = 32
)

type Config struct {
	DatabaseURL         string
	HTTPAddr            string
	MetricsAddr         string
	AuthCookieSecure    bool
	MarkerSecret        string
	MarkerSecretIsDev   bool
	MarkerTTL           time.Duration
	SessionLifetime     time.Duration
	GuardResolveWait    time.Duration
	ResolverIdleTTL     time.Duration
	ProfileFetchTimeout time.Duration
	SignInMaxAttempts   int
	SignInAttemptWindow time.Duration
}

// InMemory reports whether the app runs without Postgres.
func (c Config) InMemory() bool {
	return strings.TrimSpace(c.DatabaseURL) == ""
}

type LoadOptions struct {
	RequireDatabaseURL bool
}

func Load() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: true})
}

func LoadOptionalDB() (Config, error) {
	return LoadWithOptions(LoadOptions{RequireDatabaseURL: false})
}

func LoadWithOptions(opts LoadOptions) (Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, err
		}
	}

	cfg := Config{
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HTTPAddr:            getenvDefault("HTTP_ADDR", defaultHTTPAddr),
		MetricsAddr:         getenvDefault("METRICS_ADDR", defaultMetricsAddr),
		AuthCookieSecure:    getenvBoolDefault("AUTH_COOKIE_SECURE", false),
		MarkerSecret:        os.Getenv("MARKER_SECRET"),
		MarkerTTL:           getenvDurationDefault("MARKER_TTL", defaultMarkerTTL),
		SessionLifetime:     getenvDurationDefault("SESSION_LIFETIME", defaultSessionLifetime),
		GuardResolveWait:    getenvDurationDefault("GUARD_RESOLVE_WAIT", defaultGuardResolveWait),
		ResolverIdleTTL:     getenvDurationDefault("RESOLVER_IDLE_TTL", defaultResolverIdleTTL),
		ProfileFetchTimeout: getenvDurationDefault("PROFILE_FETCH_TIMEOUT", defaultProfileFetchTimeout),
		SignInMaxAttempts:   getenvIntDefault("SIGN_IN_MAX_ATTEMPTS", defaultSignInMaxAttempts),
		SignInAttemptWindow: getenvDurationDefault("SIGN_IN_ATTEMPT_WINDOW", defaultSignInAttemptWindow),
	}

	if opts.RequireDatabaseURL && cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	switch {
	case cfg.MarkerSecret != "":
		if len(cfg.MarkerSecret) < minMarkerSecretLength {
			return cfg, fmt.Errorf("MARKER_SECRET must be at least %d bytes", minMarkerSecretLength)
		}
	case !cfg.InMemory():
		return cfg, errors.New("MARKER_SECRET is required when DATABASE_URL is set")
	default:
		secret, err := randomSecret()
		if err != nil {
			return cfg, err
		}
		cfg.MarkerSecret = secret
		cfg.MarkerSecretIsDev = true
	}

	return cfg, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, minMarkerSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate marker secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func getenvDurationDefault(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func getenvBoolDefault(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	switch v {
	case "1":
		return true
	case "0":
		return false
	default:
		return def
	}
}
