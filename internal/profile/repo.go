package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benzpackaging/benztraq-auth/internal/token"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Repository interface {
	GetByEmail(ctx context.Context, email string) (*Profile, error)
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	ListPermissions(ctx context.Context, roleID string) (map[string]token.Permission, error)
	LogActivity(ctx context.Context, a Activity) error
}

type repository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRepository(db *sql.DB, logger *zap.Logger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

const (
	selectProfileByEmailQuery = `
						SELECT p.user_id, p.email, p.full_name, COALESCE(p.password_hash, ''), p.is_active,
						       COALESCE(p.role_id::text, ''), COALESCE(r.name, ''), COALESCE(r.display_name, ''),
						       COALESCE(r.level, 0), COALESCE(p.designation, ''), COALESCE(p.organization, ''),
						       p.login_count
						FROM profiles p
						LEFT JOIN roles r ON r.id = p.role_id
						WHERE lower(p.email) = $1
						LIMIT 1
						`
	updatePasswordHashQuery = `
						UPDATE profiles SET password_hash = $2, updated_at = now()
						WHERE user_id = $1
						`
	recordLoginQuery = `
						UPDATE profiles SET last_login = $2, login_count = login_count + 1
						WHERE user_id = $1
						`
	selectPermissionsQuery = `
						SELECT resource, can_read, can_write, can_create, can_delete, COALESCE(scope, '')
						FROM permissions
						WHERE role_id = $1
						`
	insertActivityQuery = `
						INSERT INTO activity_log (user_id, action, resource_type, details, created_at)
						VALUES ($1, $2, $3, $4::jsonb, $5)
						`
)

func (r *repository) GetByEmail(ctx context.Context, email string) (*Profile, error) {
	var p Profile
	err := r.db.QueryRowContext(ctx, selectProfileByEmailQuery, strings.ToLower(strings.TrimSpace(email))).Scan(
		&p.UserID,
		&p.Email,
		&p.FullName,
		&p.PasswordHash,
		&p.IsActive,
		&p.RoleID,
		&p.RoleName,
		&p.RoleDisplay,
		&p.RoleLevel,
		&p.Designation,
		&p.Organization,
		&p.LoginCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to load profile by email", zap.Error(err))
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

func (r *repository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	res, err := r.db.ExecContext(ctx, updatePasswordHashQuery, userID, hash)
	if err != nil {
		r.logger.Error("failed to update password hash", zap.String("user_id", userID.String()), zap.Error(err))
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, recordLoginQuery, userID, at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// ListPermissions returns the role's permission table keyed by resource. A
// profile without a role has no permissions.
func (r *repository) ListPermissions(ctx context.Context, roleID string) (map[string]token.Permission, error) {
	out := map[string]token.Permission{}
	if roleID == "" {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, selectPermissionsQuery, roleID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			resource string
			p        token.Permission
		)
		if err := rows.Scan(&resource, &p.Read, &p.Write, &p.Create, &p.Delete, &p.Scope); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out[resource] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *repository) LogActivity(ctx context.Context, a Activity) error {
	details := a.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return err
	}
	at := a.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	if _, err := r.db.ExecContext(ctx, insertActivityQuery, a.UserID, a.Action, a.ResourceType, string(raw), at); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
