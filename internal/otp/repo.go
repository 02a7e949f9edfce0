package otp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, dto RecordDTO) (uuid.UUID, error)
	FindLatestUnused(ctx context.Context, email, code string) (*Record, error)
	CountSince(ctx context.Context, email string, since time.Time) (int, error)
	InvalidateUnused(ctx context.Context, email string) error
	MarkVerified(ctx context.Context, id uuid.UUID) error
	FindVerified(ctx context.Context, id uuid.UUID, email string) (*Record, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	// RecordFailedAttempt bumps the failure counter on the newest unused
	// code for email and returns the new count, or 0 when none is pending.
	RecordFailedAttempt(ctx context.Context, email string) (int, error)
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
	recordColumns = `id, user_id, email, otp_code, expires_at, used, verified,
						       COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at`

	insertOTPQuery = `
						INSERT INTO password_reset_otps (user_id, email, otp_code, expires_at, ip_address, user_agent)
						VALUES ($1, $2, $3, $4, $5, $6)
						RETURNING id
						`
	selectLatestUnusedQuery = `
						SELECT ` + recordColumns + `
						FROM password_reset_otps
						WHERE email = $1 AND otp_code = $2 AND used = false
						ORDER BY created_at DESC
						LIMIT 1
						`
	countSinceQuery = `
						SELECT count(*)
						FROM password_reset_otps
						WHERE email = $1 AND created_at >= $2
						`
	invalidateUnusedQuery = `
						UPDATE password_reset_otps SET used = true
						WHERE email = $1 AND used = false
						`
	markVerifiedQuery = `
						UPDATE password_reset_otps SET verified = true
						WHERE id = $1
						`
	selectVerifiedQuery = `
						SELECT ` + recordColumns + `
						FROM password_reset_otps
						WHERE id = $1 AND email = $2 AND verified = true AND used = false
						LIMIT 1
						`
	markUsedQuery = `
						UPDATE password_reset_otps SET used = true
						WHERE id = $1
						`
	recordFailedAttemptQuery = `
						UPDATE password_reset_otps SET failed_attempts = failed_attempts + 1
						WHERE id = (
							SELECT id FROM password_reset_otps
							WHERE email = $1 AND used = false
							ORDER BY created_at DESC
							LIMIT 1
						)
						RETURNING failed_attempts
						`
)

func (r *repository) Create(ctx context.Context, dto RecordDTO) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRowContext(ctx, insertOTPQuery,
		dto.UserID,
		dto.Email,
		dto.Code,
		dto.ExpiresAt,
		dto.IPAddress,
		dto.UserAgent,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			r.logger.Warn("create otp canceled/timed out", zap.Error(err))
			return uuid.Nil, err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return uuid.Nil, ErrUnknownUser
		}

		r.logger.Error("failed to insert otp", zap.Error(err))
		return uuid.Nil, fmt.Errorf("db error: %w", err)
	}
	return id, nil
}

func (r *repository) FindLatestUnused(ctx context.Context, email, code string) (*Record, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectLatestUnusedQuery, email, code))
}

func (r *repository) CountSince(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, countSinceQuery, email, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *repository) InvalidateUnused(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, invalidateUnusedQuery, email); err != nil {
		r.logger.Error("failed to invalidate unused otps", zap.Error(err))
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *repository) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return r.execByID(ctx, markVerifiedQuery, id)
}

func (r *repository) FindVerified(ctx context.Context, id uuid.UUID, email string) (*Record, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectVerifiedQuery, id, email))
}

func (r *repository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	return r.execByID(ctx, markUsedQuery, id)
}

func (r *repository) RecordFailedAttempt(ctx context.Context, email string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, recordFailedAttemptQuery, email).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		r.logger.Error("failed to record otp attempt", zap.Error(err))
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *repository) execByID(ctx context.Context, query string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		r.logger.Error("failed to update otp", zap.String("id", id.String()), zap.Error(err))
		return fmt.Errorf("db error: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) scanOne(row *sql.Row) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID,
		&rec.UserID,
		&rec.Email,
		&rec.Code,
		&rec.ExpiresAt,
		&rec.Used,
		&rec.Verified,
		&rec.IPAddress,
		&rec.UserAgent,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to load otp", zap.Error(err))
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}
