package password

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCost = 12
	MinLength   = 8

	// bcrypt silently ignores input past this length, so it is rejected instead.
	maxLength = 72

	specialChars  = "!@#$%^&*"
	generateChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789" + specialChars
)

var (
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	ErrEmptyPassword   = errors.New("password is empty")
)

type StrengthResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	ValidateStrength(password string) StrengthResult
}

type bcryptHasher struct {
	cost int
}

func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if len(password) > maxLength {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports false for malformed hashes as well as mismatches.
func (h *bcryptHasher) Verify(password, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateStrength collects every violated rule, not just the first.
func (h *bcryptHasher) ValidateStrength(password string) StrengthResult {
	return ValidateStrength(password)
}

func ValidateStrength(password string) StrengthResult {
	errs := make([]string, 0, 5)

	if len(password) < MinLength {
		errs = append(errs, "Password must be at least 8 characters")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		errs = append(errs, "Password must contain at least one uppercase letter")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'a' && r <= 'z' }) {
		errs = append(errs, "Password must contain at least one lowercase letter")
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		errs = append(errs, "Password must contain at least one number")
	}
	if !strings.ContainsAny(password, specialChars) {
		errs = append(errs, "Password must contain at least one special character (!@#$%^&*)")
	}

	return StrengthResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

// Generate returns a random password drawn from letters, digits and specialChars.
func Generate(length int) (string, error) {
	if length <= 0 {
		length = 12
	}
	limit := big.NewInt(int64(len(generateChars)))
	var sb strings.Builder
	sb.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(generateChars[n.Int64()])
	}
	return sb.String(), nil
}
