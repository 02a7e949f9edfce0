// Package otp implements the email one-time-code password reset flow:
// request a code, verify it for a short-lived reset token, then redeem the
// token for a new password.
package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/benzpackaging/benztraq-auth/internal/httpx"
	"github.com/benzpackaging/benztraq-auth/internal/mailer"
	"github.com/benzpackaging/benztraq-auth/internal/password"
	"github.com/benzpackaging/benztraq-auth/internal/profile"
	"github.com/benzpackaging/benztraq-auth/internal/token"
	"go.uber.org/zap"
)

const (
	codeMin = 100000
	codeMax = 999999

	MessageRequestAccepted = "If this email is registered, you will receive an OTP shortly."
	MessageOTPSent         = "OTP sent to your email. Please check your inbox."

	defaultMaxVerifyAttempts = 5
)

var codeFormat = regexp.MustCompile(`^\d{6}$`)

type Config struct {
	TTL               time.Duration
	ResetTokenTTL     time.Duration
	RateLimitWindow   time.Duration
	RateLimitRequests int
	// MaxVerifyAttempts wrong guesses burn the pending code.
	MaxVerifyAttempts int
	DevMode           bool
}

type Service interface {
	Request(ctx context.Context, email string, meta httpx.RequestMeta) (*RequestResult, error)
	Verify(ctx context.Context, email, code string) (*VerifyResult, error)
	ResetPassword(ctx context.Context, email, resetToken, newPassword string) error
}

type service struct {
	cfg      Config
	repo     Repository
	profiles profile.Repository
	hasher   password.Hasher
	codec    token.Codec
	sender   mailer.Sender
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*service)

func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(
	cfg Config,
	repo Repository,
	profiles profile.Repository,
	hasher password.Hasher,
	codec token.Codec,
	sender mailer.Sender,
	logger *zap.Logger,
	opts ...Option,
) Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = 5 * time.Minute
	}
	if cfg.MaxVerifyAttempts <= 0 {
		cfg.MaxVerifyAttempts = defaultMaxVerifyAttempts
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Hour
	}
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 3
	}
	s := &service{
		cfg:      cfg,
		repo:     repo,
		profiles: profiles,
		hasher:   hasher,
		codec:    codec,
		sender:   sender,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Request(ctx context.Context, email string, meta httpx.RequestMeta) (*RequestResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, ErrMissingFields
	}

	p, err := s.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			s.logger.Info("otp requested for unknown email")
			return &RequestResult{Message: MessageRequestAccepted}, nil
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrUserNotActive
	}

	now := s.now().UTC()
	recent, err := s.repo.CountSince(ctx, email, now.Add(-s.cfg.RateLimitWindow))
	if err != nil {
		return nil, err
	}
	if recent >= s.cfg.RateLimitRequests {
		return nil, ErrTooManyRequests
	}

	if err := s.repo.InvalidateUnused(ctx, email); err != nil {
		return nil, err
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	expiresAt := now.Add(s.cfg.TTL)
	if _, err := s.repo.Create(ctx, RecordDTO{
		UserID:    p.UserID,
		Email:     email,
		Code:      code,
		ExpiresAt: expiresAt,
		IPAddress: meta.IP,
		UserAgent: meta.UserAgent,
	}); err != nil {
		if errors.Is(err, ErrUnknownUser) {
			s.logger.Info("profile removed before otp was stored", zap.String("email", email))
			return &RequestResult{Message: MessageRequestAccepted}, nil
		}
		return nil, err
	}

	expiresIn := FormatExpiry(s.cfg.TTL)
	sent, err := s.sender.SendOTP(ctx, mailer.OTPMessage{
		To:        email,
		Code:      code,
		Name:      p.FullName,
		ExpiresIn: expiresIn,
	})
	if err != nil {
		if !s.cfg.DevMode {
			s.logger.Error("failed to send otp email", zap.String("email", email), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
		s.logger.Warn("otp email failed in development", zap.String("email", email), zap.Error(err))
	}

	s.logger.Info("otp generated", zap.String("email", email), zap.Time("expires_at", expiresAt))

	res := &RequestResult{Message: MessageOTPSent, Sent: true, ExpiresIn: expiresIn}
	if s.cfg.DevMode {
		res.DevOTP = sent.DevOTP
	}
	return res, nil
}

// Verify checks a code and hands back a reset token. The record is marked
// verified but stays unused, so verifying the same code again succeeds
// until it expires or a reset consumes it.
func (s *service) Verify(ctx context.Context, email, code string) (*VerifyResult, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return nil, ErrMissingFields
	}
	if !codeFormat.MatchString(code) {
		return nil, ErrInvalidFormat
	}

	rec, err := s.repo.FindLatestUnused(ctx, email, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, s.failedAttempt(ctx, email)
		}
		return nil, err
	}
	if rec.Expired(s.now()) {
		return nil, ErrExpired
	}

	if err := s.repo.MarkVerified(ctx, rec.ID); err != nil {
		return nil, err
	}

	resetToken, err := s.codec.IssueReset(rec.ID, email)
	if err != nil {
		s.logger.Error("failed to issue reset token", zap.Error(err))
		return nil, err
	}

	s.logger.Info("otp verified", zap.String("email", email))
	return &VerifyResult{ResetToken: resetToken, ExpiresIn: FormatExpiry(s.cfg.ResetTokenTTL)}, nil
}

// failedAttempt counts a wrong guess against the pending code and burns it
// once the limit is reached.
func (s *service) failedAttempt(ctx context.Context, email string) error {
	attempts, err := s.repo.RecordFailedAttempt(ctx, email)
	if err != nil {
		return err
	}
	s.logger.Info("invalid otp attempt", zap.String("email", email), zap.Int("attempts", attempts))
	if attempts < s.cfg.MaxVerifyAttempts {
		return ErrInvalidCode
	}

	if err := s.repo.InvalidateUnused(ctx, email); err != nil {
		return err
	}
	s.logger.Warn("otp invalidated after repeated failures", zap.String("email", email))
	return ErrTooManyAttempts
}

func (s *service) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	email = normalizeEmail(email)
	if email == "" || resetToken == "" || newPassword == "" {
		return ErrMissingFields
	}

	if strength := s.hasher.ValidateStrength(newPassword); !strength.Valid {
		return &WeakPasswordError{Details: strength.Errors}
	}

	recordID, tokenEmail, err := s.codec.VerifyReset(resetToken)
	if err != nil {
		if errors.Is(err, token.ErrResetTokenExpired) {
			return ErrResetTokenExpired
		}
		return ErrResetTokenInvalid
	}
	if tokenEmail != email {
		return ErrResetTokenInvalid
	}

	rec, err := s.repo.FindVerified(ctx, recordID, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Info("reset attempted without verified otp", zap.String("email", email))
			return ErrResetSessionGone
		}
		return err
	}
	if rec.Expired(s.now()) {
		return ErrResetSessionStale
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.profiles.UpdatePasswordHash(ctx, rec.UserID, hash); err != nil {
		s.logger.Error("failed to update password", zap.String("email", email), zap.Error(err))
		return err
	}

	if err := s.repo.MarkUsed(ctx, rec.ID); err != nil {
		return err
	}
	if err := s.repo.InvalidateUnused(ctx, email); err != nil {
		s.logger.Warn("failed to invalidate remaining otps", zap.String("email", email), zap.Error(err))
	}

	s.logger.Info("password reset", zap.String("email", email))
	return nil
}

// FormatExpiry renders d the way users see it, e.g. "10 minutes".
func FormatExpiry(d time.Duration) string {
	unit, n := "minute", int64(d/time.Minute)
	switch {
	case d < time.Minute:
		unit, n = "second", int64(d/time.Second)
	case d%time.Hour == 0:
		unit, n = "hour", int64(d/time.Hour)
	}
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}
