package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrMissingSecret     = errors.New("token signing secret is not configured")
	ErrInvalidToken      = errors.New("invalid token")
	ErrResetTokenExpired = errors.New("reset token expired")
)

type Config struct {
	Secret        string
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
}

type Codec interface {
	Issue(claims Claims) (string, error)
	Verify(tokenString string) (*Claims, error)
	IssueReset(recordID uuid.UUID, email string) (string, error)
	VerifyReset(tokenString string) (uuid.UUID, string, error)
}

type codec struct {
	logger     *zap.Logger
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	signingAlg jwt.SigningMethod
	now        func() time.Time
}

type Option func(*codec)

// WithClock overrides time.Now for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(c *codec) { c.now = now }
}

func NewCodec(logger *zap.Logger, cfg Config, opts ...Option) (Codec, error) {
	if cfg.Secret == "" {
		return nil, ErrMissingSecret
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 7 * 24 * time.Hour
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = 5 * time.Minute
	}
	c := &codec{
		logger:     logger,
		secret:     []byte(cfg.Secret),
		sessionTTL: cfg.SessionTTL,
		resetTTL:   cfg.ResetTokenTTL,
		signingAlg: jwt.SigningMethodHS256,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue signs claims with a fresh iat and exp. Any timestamps already set on
// claims are overwritten.
func (c *codec) Issue(claims Claims) (string, error) {
	issuedAt := c.now().UTC()
	claims.IssuedAt = jwt.NewNumericDate(issuedAt)
	claims.ExpiresAt = jwt.NewNumericDate(issuedAt.Add(c.sessionTTL))
	if claims.ID == "" {
		claims.ID = generateJTI()
	}

	signed, err := jwt.NewWithClaims(c.signingAlg, &claims).SignedString(c.secret)
	if err != nil {
		c.logger.Error("failed to sign session token", zap.Error(err))
		return "", err
	}
	return signed, nil
}

// Verify never panics; every failure collapses to ErrInvalidToken so callers
// cannot tell an expired token from a tampered one.
func (c *codec) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	var claims Claims
	if _, err := c.parse(tokenString, &claims); err != nil {
		c.logger.Debug("session token rejected", zap.Error(err))
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func (c *codec) IssueReset(recordID uuid.UUID, email string) (string, error) {
	issuedAt := c.now().UTC()
	claims := &ResetClaims{
		Email:   email,
		Purpose: resetPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   recordID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.resetTTL)),
			ID:        generateJTI(),
		},
	}

	signed, err := jwt.NewWithClaims(c.signingAlg, claims).SignedString(c.secret)
	if err != nil {
		c.logger.Error("failed to sign reset token", zap.Error(err))
		return "", err
	}
	return signed, nil
}

// VerifyReset returns the OTP record id and email the reset token was issued for.
func (c *codec) VerifyReset(tokenString string) (uuid.UUID, string, error) {
	if tokenString == "" {
		return uuid.Nil, "", ErrInvalidToken
	}

	var claims ResetClaims
	if _, err := c.parse(tokenString, &claims); err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, "", ErrResetTokenExpired
		}
		c.logger.Debug("reset token rejected", zap.Error(err))
		return uuid.Nil, "", ErrInvalidToken
	}
	if claims.Purpose != resetPurpose {
		return uuid.Nil, "", ErrInvalidToken
	}

	recordID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, "", ErrInvalidToken
	}
	return recordID, claims.Email, nil
}

func (c *codec) parse(tokenString string, claims jwt.Claims) (*jwt.Token, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.signingAlg.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	tkn, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !tkn.Valid {
		return nil, fmt.Errorf("%w: token not valid", ErrInvalidToken)
	}
	return tkn, nil
}

func generateJTI() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
