package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minProductionSecretLen = 32
)

var (
	ErrMissingJWTSecret = errors.New("JWT_SECRET is not set")
	ErrWeakJWTSecret    = errors.New("JWT_SECRET is too short for production")
	ErrMissingDSN       = errors.New("POSTGRES_DSN is not set")
)

type AppConfig struct {
	Env          string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// TrustedProxies may set the client address through forwarding headers.
	TrustedProxies []netip.Prefix
}

func (a *AppConfig) IsProduction() bool  { return a.Env == EnvProduction }
func (a *AppConfig) IsDevelopment() bool { return a.Env == EnvDevelopment }

type DbConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

type JWTConfig struct {
	Secret        string
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
}

type CookieConfig struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

type OTPConfig struct {
	TTL               time.Duration
	RateLimitWindow   time.Duration
	RateLimitRequests int
	MaxVerifyAttempts int
	// FirstLoginPassword is accepted for profiles without a stored hash. Empty disables it.
	FirstLoginPassword string
}

type MailConfig struct {
	Provider  string
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type Config struct {
	AppConfig       *AppConfig
	DbConfig        *DbConfig
	JWTConfig       *JWTConfig
	CookieConfig    *CookieConfig
	OTPConfig       *OTPConfig
	MailConfig      *MailConfig
	RateLimitConfig *RateLimitConfig
	CORSConfig      *CORSConfig
}

// LoadConfig reads an optional .env file and then the process environment.
// Missing secrets are fatal; there is no built-in signing key.
func LoadConfig(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file loaded, using process environment", zap.Error(err))
	}

	/** app config */
	env := strings.ToLower(getEnv("APP_ENV", EnvDevelopment))
	readTimeout, err := getDuration("APP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getDuration("APP_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := getDuration("APP_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	trustedProxies, err := getPrefixes("TRUSTED_PROXIES")
	if err != nil {
		return nil, err
	}
	appConfig := &AppConfig{
		Env:            env,
		Port:           getEnv("APP_PORT", "8080"),
		ReadTimeout:    readTimeout,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    idleTimeout,
		TrustedProxies: trustedProxies,
	}

	/** db config */
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	maxOpenConns, err := getInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	maxIdleConns, err := getInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}
	maxConnLifetime, err := getDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return nil, err
	}
	dbConfig := &DbConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		MaxConnLifetime: maxConnLifetime,
	}

	/** jwt config */
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, ErrMissingJWTSecret
	}
	if appConfig.IsProduction() && len(secret) < minProductionSecretLen {
		return nil, ErrWeakJWTSecret
	}
	sessionTTL, err := getDuration("SESSION_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}
	resetTTL, err := getDuration("RESET_TOKEN_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	jwtConfig := &JWTConfig{
		Secret:        secret,
		SessionTTL:    sessionTTL,
		ResetTokenTTL: resetTTL,
	}

	/** cookie config */
	secure, err := getBool("COOKIE_SECURE", appConfig.IsProduction())
	if err != nil {
		return nil, err
	}
	sameSite, err := parseSameSite(getEnv("COOKIE_SAMESITE", "lax"))
	if err != nil {
		return nil, err
	}
	cookieConfig := &CookieConfig{
		Name:     getEnv("COOKIE_NAME", "benztraq_session"),
		Domain:   os.Getenv("COOKIE_DOMAIN"),
		Path:     "/",
		Secure:   secure,
		SameSite: sameSite,
		MaxAge:   sessionTTL,
	}

	/** otp config */
	otpTTL, err := getDuration("OTP_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	otpWindow, err := getDuration("OTP_RATE_LIMIT_WINDOW", time.Hour)
	if err != nil {
		return nil, err
	}
	otpRequests, err := getInt("OTP_RATE_LIMIT_REQUESTS", 3)
	if err != nil {
		return nil, err
	}
	otpAttempts, err := getInt("OTP_MAX_VERIFY_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	otpConfig := &OTPConfig{
		TTL:                otpTTL,
		RateLimitWindow:    otpWindow,
		RateLimitRequests:  otpRequests,
		MaxVerifyAttempts:  otpAttempts,
		FirstLoginPassword: os.Getenv("FIRST_LOGIN_PASSWORD"),
	}

	/** mail config */
	mailTimeout, err := getDuration("EMAIL_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	mailConfig := &MailConfig{
		Provider:  strings.ToLower(getEnv("EMAIL_PROVIDER", "resend")),
		APIKey:    os.Getenv("EMAIL_API_KEY"),
		FromEmail: getEnv("EMAIL_FROM", "noreply@benztraq.com"),
		FromName:  getEnv("EMAIL_FROM_NAME", "BenzTraq"),
		Timeout:   mailTimeout,
	}

	/** http rate limit config */
	rlRequests, err := getInt("AUTH_RATE_LIMIT_REQUESTS", 20)
	if err != nil {
		return nil, err
	}
	rlWindow, err := getDuration("AUTH_RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	rateLimitConfig := &RateLimitConfig{
		Requests: rlRequests,
		Window:   rlWindow,
	}

	/** cors config */
	corsConfig := &CORSConfig{
		AllowedOrigins: getList("CORS_ALLOWED_ORIGINS"),
	}

	return &Config{
		AppConfig:       appConfig,
		DbConfig:        dbConfig,
		JWTConfig:       jwtConfig,
		CookieConfig:    cookieConfig,
		OTPConfig:       otpConfig,
		MailConfig:      mailConfig,
		RateLimitConfig: rateLimitConfig,
		CORSConfig:      corsConfig,
	}, nil
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// getList splits a comma-separated variable, dropping empty entries.
func getList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getPrefixes parses a comma-separated list of CIDRs or bare addresses.
func getPrefixes(key string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range getList(key) {
		if !strings.Contains(v, "/") {
			addr, err := netip.ParseAddr(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			out = append(out, netip.PrefixFrom(addr.Unmap(), addr.Unmap().BitLen()))
			continue
		}
		p, err := netip.ParsePrefix(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out = append(out, p.Masked())
	}
	return out, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func parseSameSite(v string) (http.SameSite, error) {
	switch strings.ToLower(v) {
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("COOKIE_SAMESITE: unsupported value %q", v)
	}
}
