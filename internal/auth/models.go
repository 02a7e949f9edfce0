package auth

import "github.com/benzpackaging/benztraq-auth/internal/token"

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

type requestOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

// The code format is checked by the otp service so that a malformed code
// gets its own message.
type verifyOTPRequest struct {
	Email string `json:"email" validate:"required"`
	OTP   string `json:"otp"   validate:"required"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"       validate:"required"`
	ResetToken  string `json:"resetToken"  validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

type sessionResponse struct {
	Authenticated bool          `json:"authenticated"`
	User          *UserIdentity `json:"user,omitempty"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type loginUser struct {
	ID                  string                      `json:"id"`
	Email               string                      `json:"email"`
	FullName            string                      `json:"fullName"`
	Role                string                      `json:"role"`
	RoleDisplay         string                      `json:"roleDisplay"`
	RoleLevel           int                         `json:"roleLevel"`
	Designation         string                      `json:"designation"`
	Permissions         map[string]token.Permission `json:"permissions"`
	NeedsPasswordChange bool                        `json:"needsPasswordChange"`
}

type loginResponse struct {
	Success bool      `json:"success"`
	User    loginUser `json:"user"`
}

type requestOTPResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresIn string `json:"expiresIn,omitempty"`
	DevOTP    string `json:"devOtp,omitempty"`
	DevNote   string `json:"devNote,omitempty"`
}

type verifyOTPResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ResetToken string `json:"resetToken"`
	ExpiresIn  string `json:"expiresIn"`
}
