package otp

import (
	"time"

	"github.com/google/uuid"
)

type Record struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Email     string    `db:"email"`
	Code      string    `db:"otp_code"`
	ExpiresAt time.Time `db:"expires_at"`
	Used      bool      `db:"used"`
	Verified  bool      `db:"verified"`
	IPAddress string    `db:"ip_address"`
	UserAgent string    `db:"user_agent"`
	CreatedAt time.Time `db:"created_at"`
}

// Expired reports whether the code can no longer be redeemed at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// RecordDTO carries the fields needed to persist a freshly issued code.
type RecordDTO struct {
	UserID    uuid.UUID
	Email     string
	Code      string
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
}

// VerifyResult is returned after a successful code check.
type VerifyResult struct {
	ResetToken string
	ExpiresIn  string
}

// RequestResult is returned after a code request. Sent is false when the
// email is unknown. DevOTP is only set in development when no mail provider
// is configured.
type RequestResult struct {
	Message   string
	Sent      bool
	ExpiresIn string
	DevOTP    string
}
