package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benzpackaging/benztraq-auth/internal/httpx"
	"github.com/benzpackaging/benztraq-auth/internal/password"
	"github.com/benzpackaging/benztraq-auth/internal/profile"
	"github.com/benzpackaging/benztraq-auth/internal/token"
	"go.uber.org/zap"
)

// LoginResult carries the signed session token and the profile it was issued
// for.
type LoginResult struct {
	Token               string
	Profile             *profile.Profile
	Permissions         map[string]token.Permission
	NeedsPasswordChange bool
}

type AuthService interface {
	Login(ctx context.Context, email, pass string, meta httpx.RequestMeta) (*LoginResult, error)
}

type authService struct {
	profiles           profile.Repository
	hasher             password.Hasher
	codec              token.Codec
	firstLoginPassword string
	logger             *zap.Logger
	now                func() time.Time
}

// NewAuthenticationService builds the login service. firstLoginPassword is
// accepted for profiles that have never set a password; an empty value
// disables that path.
func NewAuthenticationService(
	profiles profile.Repository,
	hasher password.Hasher,
	codec token.Codec,
	firstLoginPassword string,
	logger *zap.Logger,
) AuthService {
	return &authService{
		profiles:           profiles,
		hasher:             hasher,
		codec:              codec,
		firstLoginPassword: firstLoginPassword,
		logger:             logger,
		now:                time.Now,
	}
}

func (a *authService) Login(ctx context.Context, email, pass string, meta httpx.RequestMeta) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || pass == "" {
		return nil, ErrMissingCredentials
	}

	p, err := a.profiles.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrUserNotActive
	}

	needsPasswordChange := !p.HasPassword()
	if !a.checkPassword(ctx, p, pass) {
		return nil, ErrInvalidCredentials
	}

	perms, err := a.profiles.ListPermissions(ctx, p.RoleID)
	if err != nil {
		a.logger.Error("failed to load permissions", zap.String("role_id", p.RoleID), zap.Error(err))
		return nil, err
	}

	now := a.now().UTC()
	if err := a.profiles.RecordLogin(ctx, p.UserID, now); err != nil {
		a.logger.Warn("failed to record login", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}
	if err := a.profiles.LogActivity(ctx, profile.Activity{
		UserID:       p.UserID,
		Action:       "login",
		ResourceType: "auth",
		Details:      map[string]any{"email": p.Email, "ip": meta.IP, "user_agent": meta.UserAgent},
		At:           now,
	}); err != nil {
		a.logger.Warn("failed to log login activity", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}

	claims := token.Claims{
		Email:        p.Email,
		FullName:     p.FullName,
		Role:         p.RoleName,
		RoleID:       p.RoleID,
		RoleLevel:    p.RoleLevel,
		Organization: p.Organization,
		Permissions:  perms,
	}
	claims.Subject = p.UserID.String()

	signed, err := a.codec.Issue(claims)
	if err != nil {
		return nil, err
	}

	a.logger.Info("user logged in", zap.String("user_id", p.UserID.String()), zap.String("role", p.RoleName))
	return &LoginResult{
		Token:               signed,
		Profile:             p,
		Permissions:         perms,
		NeedsPasswordChange: needsPasswordChange,
	}, nil
}

// checkPassword verifies against the stored hash. A profile without one
// accepts the first-login password and has its hash stored.
func (a *authService) checkPassword(ctx context.Context, p *profile.Profile, pass string) bool {
	if p.HasPassword() {
		return a.hasher.Verify(pass, p.PasswordHash)
	}
	if a.firstLoginPassword == "" || pass != a.firstLoginPassword {
		return false
	}

	hash, err := a.hasher.Hash(pass)
	if err != nil {
		a.logger.Error("failed to hash first-login password", zap.Error(err))
		return true
	}
	if err := a.profiles.UpdatePasswordHash(ctx, p.UserID, hash); err != nil {
		a.logger.Warn("failed to store first-login password hash", zap.String("user_id", p.UserID.String()), zap.Error(err))
	}
	return true
}
