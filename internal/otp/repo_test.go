package otp

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRepoWithMock(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRepository(db, zap.NewNop()), mock
}

var recordRowColumns = []string{
	"id", "user_id", "email", "otp_code", "expires_at", "used", "verified", "ip_address", "user_agent", "created_at",
}

func TestCreate_ReturnsID(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id, userID := uuid.New(), uuid.New()
	expires := time.Date(2026, 3, 10, 9, 10, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+password_reset_otps.*RETURNING\s+id`).
		WithArgs(userID, "a@b.com", "123456", expires, "10.0.0.1", "curl").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	got, err := repo.Create(context.Background(), RecordDTO{
		UserID: userID, Email: "a@b.com", Code: "123456", ExpiresAt: expires, IPAddress: "10.0.0.1", UserAgent: "curl",
	})
	require.NoError(t, err)
	assert.Equal(t, id, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate_ForeignKeyViolation(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+password_reset_otps`).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "password_reset_otps_user_id_fkey"})

	_, err := repo.Create(context.Background(), RecordDTO{UserID: uuid.New(), Email: "a@b.com", Code: "123456"})
	assert.ErrorIs(t, err, ErrUnknownUser)
}

func TestFindLatestUnused(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id, userID := uuid.New(), uuid.New()
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)FROM\s+password_reset_otps\s+WHERE\s+email\s*=\s*\$1\s+AND\s+otp_code\s*=\s*\$2\s+AND\s+used\s*=\s*false\s+ORDER\s+BY\s+created_at\s+DESC`).
		WithArgs("a@b.com", "123456").
		WillReturnRows(sqlmock.NewRows(recordRowColumns).AddRow(
			id.String(), userID.String(), "a@b.com", "123456", created.Add(10*time.Minute), false, false, "10.0.0.1", "curl", created,
		))

	rec, err := repo.FindLatestUnused(context.Background(), "a@b.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, userID, rec.UserID)
	assert.False(t, rec.Verified)
	assert.True(t, rec.ExpiresAt.Equal(created.Add(10*time.Minute)))
}

func TestFindLatestUnused_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+password_reset_otps`).
		WithArgs("a@b.com", "000000").
		WillReturnRows(sqlmock.NewRows(recordRowColumns))

	_, err := repo.FindLatestUnused(context.Background(), "a@b.com", "000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCountSince(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	since := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT\s+count\(\*\)\s+FROM\s+password_reset_otps\s+WHERE\s+email\s*=\s*\$1\s+AND\s+created_at\s*>=\s*\$2`).
		WithArgs("a@b.com", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := repo.CountSince(context.Background(), "a@b.com", since)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestInvalidateUnused(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+password_reset_otps\s+SET\s+used\s*=\s*true\s+WHERE\s+email\s*=\s*\$1\s+AND\s+used\s*=\s*false`).
		WithArgs("a@b.com").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.InvalidateUnused(context.Background(), "a@b.com"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkVerifiedAndUsed(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id := uuid.New()

	mock.ExpectExec(`(?s)UPDATE\s+password_reset_otps\s+SET\s+verified\s*=\s*true`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE\s+password_reset_otps\s+SET\s+used\s*=\s*true\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkVerified(context.Background(), id))
	assert.ErrorIs(t, repo.MarkUsed(context.Background(), id), ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindVerified(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	id, userID := uuid.New(), uuid.New()
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)WHERE\s+id\s*=\s*\$1\s+AND\s+email\s*=\s*\$2\s+AND\s+verified\s*=\s*true\s+AND\s+used\s*=\s*false`).
		WithArgs(id, "a@b.com").
		WillReturnRows(sqlmock.NewRows(recordRowColumns).AddRow(
			id.String(), userID.String(), "a@b.com", "123456", created.Add(10*time.Minute), false, true, "", "", created,
		))

	rec, err := repo.FindVerified(context.Background(), id, "a@b.com")
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	assert.Equal(t, userID, rec.UserID)
}

func TestRecordFailedAttempt(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SET\s+failed_attempts\s*=\s*failed_attempts\s*\+\s*1.*RETURNING\s+failed_attempts`).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts"}).AddRow(4))

	n, err := repo.RecordFailedAttempt(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordFailedAttempt_NoPendingCode(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`(?s)SET\s+failed_attempts`).
		WithArgs("ghost@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts"}))

	n, err := repo.RecordFailedAttempt(context.Background(), "ghost@b.com")
	require.NoError(t, err)
	assert.Zero(t, n)
}
