package profile

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	FullName     string    `json:"full_name" db:"full_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	RoleID       string    `json:"role_id" db:"role_id"`
	RoleName     string    `json:"role" db:"role_name"`
	RoleDisplay  string    `json:"role_display" db:"role_display"`
	RoleLevel    int       `json:"role_level" db:"role_level"`
	Designation  string    `json:"designation" db:"designation"`
	Organization string    `json:"organization" db:"organization"`
	LoginCount   int       `json:"login_count" db:"login_count"`
}

// HasPassword is false for accounts that have never set a password.
func (p *Profile) HasPassword() bool {
	return p.PasswordHash != ""
}

type Activity struct {
	UserID       uuid.UUID
	Action       string
	ResourceType string
	Details      map[string]any
	At           time.Time
}
