// Package server assembles the HTTP router and server.
package server

import (
	"context"
	"database/sql"
	"net/http"
	"net/netip"
	"time"

	"github.com/benzpackaging/benztraq-auth/internal/auth"
	"github.com/benzpackaging/benztraq-auth/internal/config"
	"github.com/benzpackaging/benztraq-auth/internal/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"
	"moul.io/chizap"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

var _ Pinger = (*sql.DB)(nil)

type Deps struct {
	Logger      *zap.Logger
	Resolver    auth.Resolver
	AuthHandler auth.AuthenticationHandler
	DB          Pinger
	CORS        *config.CORSConfig
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
}

// CredentialLimiter limits login and OTP attempts per client IP and endpoint.
// The IP is RemoteAddr, which only TrustedRealIP may rewrite.
func CredentialLimiter(cfg *config.RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteError(w, http.StatusTooManyRequests, httpx.ErrorResponse[any]{
				Code:    httpx.ErrTooManyRequests,
				Message: "Too many requests. Please try again later.",
			})
		}),
	)
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(TrustedRealIP(d.TrustedProxies))
	r.Use(chizap.New(d.Logger, &chizap.Opts{
		WithReferer:   false,
		WithUserAgent: true,
	}))
	r.Use(middleware.Recoverer)
	if d.CORS != nil && len(d.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(auth.WithUser(d.Resolver))
	r.Use(auth.PageGuard)

	r.Get("/healthz", healthz(d.DB))
	r.Mount("/api/auth", d.AuthHandler.Routes())

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// New builds the http.Server with the configured timeouts.
func New(cfg *config.AppConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
