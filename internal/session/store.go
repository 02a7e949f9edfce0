// Package session keeps the signed session token in an HTTP cookie.
package session

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const DefaultCookieName = "benztraq_session"

type Config struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// Store persists the session token on the client. Load reports a missing
// cookie as ok=false and Clear is best-effort; neither returns an error.
type Store interface {
	Save(w http.ResponseWriter, token string) error
	Load(r *http.Request) (string, bool)
	Clear(w http.ResponseWriter)
}

type cookieStore struct {
	cfg    Config
	logger *zap.Logger
}

func NewStore(cfg Config, logger *zap.Logger) Store {
	if cfg.Name == "" {
		cfg.Name = DefaultCookieName
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	return &cookieStore{cfg: cfg, logger: logger}
}

// Save writes the cookie only after it validates, so a response never
// carries a half-built session cookie.
func (s *cookieStore) Save(w http.ResponseWriter, token string) error {
	c := s.cookie(token, int(s.cfg.MaxAge.Seconds()))
	if err := c.Valid(); err != nil {
		s.logger.Error("refusing to write invalid session cookie", zap.Error(err))
		return fmt.Errorf("session cookie: %w", err)
	}
	http.SetCookie(w, c)
	return nil
}

func (s *cookieStore) Load(r *http.Request) (string, bool) {
	c, err := r.Cookie(s.cfg.Name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// Clear expires the cookie. If the configured cookie cannot be built, a
// minimal deletion for the same name and path is written instead.
func (s *cookieStore) Clear(w http.ResponseWriter) {
	c := s.cookie("", -1)
	if err := c.Valid(); err != nil {
		s.logger.Warn("session cookie delete failed, writing fallback", zap.Error(err))
		w.Header().Add("Set-Cookie", fmt.Sprintf("%s=; Path=%s; Max-Age=0", s.cfg.Name, s.cfg.Path))
		return
	}
	http.SetCookie(w, c)
}

func (s *cookieStore) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     s.cfg.Name,
		Value:    value,
		Path:     s.cfg.Path,
		Domain:   s.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   s.cfg.Secure,
		HttpOnly: true,
		SameSite: s.cfg.SameSite,
	}
}
