package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// Permission is one resource entry of a role's permission table.
type Permission struct {
	Read   bool   `json:"read"`
	Write  bool   `json:"write"`
	Create bool   `json:"create"`
	Delete bool   `json:"delete"`
	Scope  string `json:"scope,omitempty"`
}

// Claims is the identity bundle carried by the session token. The subject
// (user id) lives in RegisteredClaims.Subject.
type Claims struct {
	Email        string                `json:"email"`
	FullName     string                `json:"full_name,omitempty"`
	Role         string                `json:"role,omitempty"`
	RoleID       string                `json:"role_id,omitempty"`
	RoleLevel    int                   `json:"role_level,omitempty"`
	Organization string                `json:"organization,omitempty"`
	Permissions  map[string]Permission `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

const resetPurpose = "password_reset"

// ResetClaims authorizes a single password change for an OTP record.
type ResetClaims struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}
