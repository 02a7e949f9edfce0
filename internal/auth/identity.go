package auth

import (
	"context"
	"net/http"

	"github.com/benzpackaging/benztraq-auth/internal/rbac"
	"github.com/benzpackaging/benztraq-auth/internal/session"
	"github.com/benzpackaging/benztraq-auth/internal/token"
	"go.uber.org/zap"
)

// UserIdentity is the caller as seen by route handlers. It is a projection of
// the session token claims and is never read from the database.
type UserIdentity struct {
	ID           string                      `json:"id"`
	Email        string                      `json:"email"`
	FullName     string                      `json:"fullName"`
	Role         rbac.Role                   `json:"role"`
	RoleID       string                      `json:"roleId"`
	Permissions  map[string]token.Permission `json:"permissions"`
	Organization string                      `json:"-"`
}

func identityFromClaims(c *token.Claims) *UserIdentity {
	perms := c.Permissions
	if perms == nil {
		perms = map[string]token.Permission{}
	}
	return &UserIdentity{
		ID:           c.Subject,
		Email:        c.Email,
		FullName:     c.FullName,
		Role:         rbac.Normalize(c.Role),
		RoleID:       c.RoleID,
		Permissions:  perms,
		Organization: c.Organization,
	}
}

type Resolver interface {
	// Resolve reports the caller behind the session cookie. A missing,
	// malformed, tampered or expired token all resolve to (nil, false).
	Resolve(r *http.Request) (*UserIdentity, bool)
}

type resolver struct {
	store  session.Store
	codec  token.Codec
	logger *zap.Logger
}

func NewResolver(store session.Store, codec token.Codec, logger *zap.Logger) Resolver {
	return &resolver{
		store:  store,
		codec:  codec,
		logger: logger,
	}
}

func (res *resolver) Resolve(r *http.Request) (*UserIdentity, bool) {
	raw, ok := res.store.Load(r)
	if !ok {
		return nil, false
	}
	claims, err := res.codec.Verify(raw)
	if err != nil {
		return nil, false
	}
	if claims.Subject == "" {
		res.logger.Debug("session token without subject")
		return nil, false
	}
	return identityFromClaims(claims), true
}

type ctxKey struct{}

// ContextWithUser returns a copy of ctx carrying u.
func ContextWithUser(ctx context.Context, u *UserIdentity) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the identity stored by WithUser, if any.
func UserFromContext(ctx context.Context) (*UserIdentity, bool) {
	u, ok := ctx.Value(ctxKey{}).(*UserIdentity)
	return u, ok && u != nil
}

// Authorize applies a role predicate to a caller. An anonymous caller is
// never authorized.
func Authorize(u *UserIdentity, check rbac.Check) bool {
	if u == nil || check == nil {
		return false
	}
	return check(u.Role)
}
