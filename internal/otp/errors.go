package otp

import (
	"errors"
	"strings"
)

var (
	ErrMissingFields     = errors.New("email and otp are required")
	ErrInvalidFormat     = errors.New("invalid otp format")
	ErrInvalidCode       = errors.New("invalid or expired otp")
	ErrExpired           = errors.New("otp has expired")
	ErrTooManyAttempts   = errors.New("too many failed otp attempts")
	ErrUnknownUser       = errors.New("user not found")
	ErrUserNotActive     = errors.New("user not active")
	ErrTooManyRequests   = errors.New("too many otp requests")
	ErrDeliveryFailed    = errors.New("failed to deliver otp")
	ErrResetTokenInvalid = errors.New("invalid reset token")
	ErrResetTokenExpired = errors.New("reset token expired")
	ErrResetSessionGone  = errors.New("reset session not found")
	ErrResetSessionStale = errors.New("reset session expired")
	ErrNotFound          = errors.New("otp record not found")
)

// WeakPasswordError lists every strength rule the new password failed.
type WeakPasswordError struct {
	Details []string
}

func (e *WeakPasswordError) Error() string {
	return "password does not meet requirements: " + strings.Join(e.Details, "; ")
}
