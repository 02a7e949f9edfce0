package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benzpackaging/benztraq-auth/internal/auth"
	"github.com/benzpackaging/benztraq-auth/internal/config"
	"github.com/benzpackaging/benztraq-auth/internal/database"
	"github.com/benzpackaging/benztraq-auth/internal/mailer"
	"github.com/benzpackaging/benztraq-auth/internal/otp"
	"github.com/benzpackaging/benztraq-auth/internal/password"
	"github.com/benzpackaging/benztraq-auth/internal/profile"
	"github.com/benzpackaging/benztraq-auth/internal/server"
	"github.com/benzpackaging/benztraq-auth/internal/session"
	"github.com/benzpackaging/benztraq-auth/internal/token"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// init logger
	logger, err := newLogger(os.Getenv("APP_ENV"))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger); err != nil {
		logger.Fatal("application stopped", zap.Error(err))
	}
}

// newLogger matches config.LoadConfig: an unset APP_ENV means development.
func newLogger(env string) (*zap.Logger, error) {
	if strings.EqualFold(strings.TrimSpace(env), config.EnvProduction) {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func run(ctx context.Context, logger *zap.Logger) error {
	// load config
	cfg, err := config.LoadConfig(logger)
	if err != nil {
		return err
	}
	devMode := cfg.AppConfig.IsDevelopment()

	// load database
	db, err := database.Init(ctx, cfg.DbConfig)
	if err != nil {
		return err
	}
	defer db.Close()

	// run migrations
	if err := database.Migrate(ctx, db, logger); err != nil {
		return err
	}

	// wire dependencies
	profiles := profile.NewRepository(db, logger)
	otps := otp.NewRepository(db, logger)
	hasher := password.NewHasher(password.DefaultCost)

	codec, err := token.NewCodec(logger, token.Config{
		Secret:        cfg.JWTConfig.Secret,
		SessionTTL:    cfg.JWTConfig.SessionTTL,
		ResetTokenTTL: cfg.JWTConfig.ResetTokenTTL,
	})
	if err != nil {
		return err
	}

	store := session.NewStore(session.Config{
		Name:     cfg.CookieConfig.Name,
		Domain:   cfg.CookieConfig.Domain,
		Path:     cfg.CookieConfig.Path,
		Secure:   cfg.CookieConfig.Secure,
		SameSite: cfg.CookieConfig.SameSite,
		MaxAge:   cfg.CookieConfig.MaxAge,
	}, logger)

	sender, err := mailer.NewSender(mailer.Config{
		Provider:  cfg.MailConfig.Provider,
		APIKey:    cfg.MailConfig.APIKey,
		FromEmail: cfg.MailConfig.FromEmail,
		FromName:  cfg.MailConfig.FromName,
		Timeout:   cfg.MailConfig.Timeout,
		DevMode:   devMode,
	}, logger)
	if err != nil {
		return err
	}

	otpService := otp.NewService(otp.Config{
		TTL:               cfg.OTPConfig.TTL,
		ResetTokenTTL:     cfg.JWTConfig.ResetTokenTTL,
		RateLimitWindow:   cfg.OTPConfig.RateLimitWindow,
		RateLimitRequests: cfg.OTPConfig.RateLimitRequests,
		MaxVerifyAttempts: cfg.OTPConfig.MaxVerifyAttempts,
		DevMode:           devMode,
	}, otps, profiles, hasher, codec, sender, logger)

	authService := auth.NewAuthenticationService(profiles, hasher, codec, cfg.OTPConfig.FirstLoginPassword, logger)
	resolver := auth.NewResolver(store, codec, logger)
	authHandler := auth.NewAuthenticationHandler(authService, otpService, resolver, store, logger,
		auth.WithCredentialLimiter(server.CredentialLimiter(cfg.RateLimitConfig)),
		auth.WithDevMode(devMode),
	)

	router := server.NewRouter(server.Deps{
		Logger:      logger,
		Resolver:    resolver,
		AuthHandler: authHandler,
		DB:          db,
		CORS:        cfg.CORSConfig,

		TrustedProxies: cfg.AppConfig.TrustedProxies,
	})
	srv := server.New(cfg.AppConfig, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("application started", zap.String("addr", srv.Addr), zap.String("env", cfg.AppConfig.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
