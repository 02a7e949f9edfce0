package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/benzpackaging/benztraq-auth/internal/httpx"
	"github.com/benzpackaging/benztraq-auth/internal/otp"
	"github.com/benzpackaging/benztraq-auth/internal/rbac"
	"github.com/benzpackaging/benztraq-auth/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	handlerTimeout = 10 * time.Second

	msgInternal = "An error occurred. Please try again."
)

type AuthenticationHandler interface {
	Session(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
	Login(w http.ResponseWriter, r *http.Request)
	RequestOTP(w http.ResponseWriter, r *http.Request)
	VerifyOTP(w http.ResponseWriter, r *http.Request)
	ResetPassword(w http.ResponseWriter, r *http.Request)
	Access(w http.ResponseWriter, r *http.Request)
	Salespeople(w http.ResponseWriter, r *http.Request)
	Routes() chi.Router
}

type authenticationHandler struct {
	logger      *zap.Logger
	authService AuthService
	otpService  otp.Service
	resolver    Resolver
	store       session.Store
	validator   *validator.Validate
	devMode     bool

	// credentialLimiter wraps the endpoints that accept secrets.
	credentialLimiter func(http.Handler) http.Handler
}

type HandlerOption func(*authenticationHandler)

// WithCredentialLimiter installs a rate limiter in front of login and the
// OTP endpoints.
func WithCredentialLimiter(mw func(http.Handler) http.Handler) HandlerOption {
	return func(a *authenticationHandler) { a.credentialLimiter = mw }
}

// WithDevMode lets request-otp echo the code when no mail provider is set.
func WithDevMode(dev bool) HandlerOption {
	return func(a *authenticationHandler) { a.devMode = dev }
}

func NewAuthenticationHandler(
	authService AuthService,
	otpService otp.Service,
	resolver Resolver,
	store session.Store,
	l *zap.Logger,
	opts ...HandlerOption,
) AuthenticationHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	a := &authenticationHandler{
		logger:      l,
		authService: authService,
		otpService:  otpService,
		resolver:    resolver,
		store:       store,
		validator:   v,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *authenticationHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/session", a.Session)
	r.Post("/logout", a.Logout)
	r.Group(func(r chi.Router) {
		if a.credentialLimiter != nil {
			r.Use(a.credentialLimiter)
		}
		r.Post("/login", a.Login)
		r.Post("/request-otp", a.RequestOTP)
		r.Post("/verify-otp", a.VerifyOTP)
		r.Post("/reset-password", a.ResetPassword)
	})
	r.Route("/access", func(r chi.Router) {
		r.With(RequireUser).Get("/", a.Access)
		r.With(RequireRole(rbac.IsManager)).Get("/salespeople", a.Salespeople)
	})
	return r
}

// Session always answers 200 so anonymous page loads do not log errors in
// the browser console.
func (a *authenticationHandler) Session(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFromContext(r.Context())
	if !ok {
		u, ok = a.resolver.Resolve(r)
	}
	if !ok {
		httpx.WriteJSON(w, http.StatusOK, sessionResponse{Authenticated: false})
		return
	}
	httpx.WriteJSON(w, http.StatusOK, sessionResponse{Authenticated: true, User: u})
}

// Logout reports success even if clearing the cookie fails.
func (a *authenticationHandler) Logout(w http.ResponseWriter, r *http.Request) {
	a.store.Clear(w)
	httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

func (a *authenticationHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	var req loginRequest
	if !a.decodeAndValidate(w, r, &req, "Email and password are required") {
		return
	}

	res, err := a.authService.Login(ctx, req.Email, req.Password, httpx.ClientMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingCredentials):
			writeBadRequest(w, "Email and password are required")
		case errors.Is(err, ErrInvalidCredentials):
			a.logger.Debug("invalid login attempt")
			httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrorResponse[any]{
				Code:    httpx.ErrUnauthorized,
				Message: "Invalid email or password",
			})
		case errors.Is(err, ErrUserNotActive):
			writeForbidden(w, "Account is inactive. Please contact administrator.")
		default:
			a.logger.Error("login failed", zap.Error(err))
			writeInternal(w, "An error occurred during login")
		}
		return
	}

	if err := a.store.Save(w, res.Token); err != nil {
		a.logger.Error("failed to set session cookie", zap.Error(err))
		writeInternal(w, "An error occurred during login")
		return
	}

	p := res.Profile
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		Success: true,
		User: loginUser{
			ID:                  p.UserID.String(),
			Email:               p.Email,
			FullName:            p.FullName,
			Role:                p.RoleName,
			RoleDisplay:         p.RoleDisplay,
			RoleLevel:           p.RoleLevel,
			Designation:         p.Designation,
			Permissions:         res.Permissions,
			NeedsPasswordChange: res.NeedsPasswordChange,
		},
	})
}

func (a *authenticationHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	var req requestOTPRequest
	if !a.decodeAndValidate(w, r, &req, "Email is required") {
		return
	}

	res, err := a.otpService.Request(ctx, req.Email, httpx.ClientMeta(r))
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrMissingFields):
			writeBadRequest(w, "Email is required")
		case errors.Is(err, otp.ErrUserNotActive):
			writeForbidden(w, "Account is inactive. Please contact administrator.")
		case errors.Is(err, otp.ErrTooManyRequests):
			httpx.WriteError(w, http.StatusTooManyRequests, httpx.ErrorResponse[any]{
				Code:    httpx.ErrTooManyRequests,
				Message: "Too many OTP requests. Please try again later.",
			})
		case errors.Is(err, otp.ErrDeliveryFailed):
			writeInternal(w, "Failed to send OTP email. Please try again.")
		default:
			a.logger.Error("request otp failed", zap.Error(err))
			writeInternal(w, msgInternal)
		}
		return
	}

	out := requestOTPResponse{Success: true, Message: res.Message}
	if res.Sent {
		out.ExpiresIn = res.ExpiresIn
	}
	if a.devMode && res.DevOTP != "" {
		out.DevOTP = res.DevOTP
		out.DevNote = "OTP included for development testing only"
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (a *authenticationHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	var req verifyOTPRequest
	if !a.decodeAndValidate(w, r, &req, "Email and OTP are required") {
		return
	}

	res, err := a.otpService.Verify(ctx, req.Email, req.OTP)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrMissingFields):
			writeBadRequest(w, "Email and OTP are required")
		case errors.Is(err, otp.ErrInvalidFormat):
			writeBadRequest(w, "Invalid OTP format. Please enter a 6-digit code.")
		case errors.Is(err, otp.ErrInvalidCode):
			writeUnauthorizedMsg(w, httpx.ErrUnauthorized, "Invalid or expired OTP. Please try again.")
		case errors.Is(err, otp.ErrExpired):
			writeUnauthorizedMsg(w, httpx.ErrExpired, "OTP has expired. Please request a new one.")
		case errors.Is(err, otp.ErrTooManyAttempts):
			httpx.WriteError(w, http.StatusTooManyRequests, httpx.ErrorResponse[any]{
				Code:    httpx.ErrTooManyRequests,
				Message: "Too many failed attempts. Please request a new OTP.",
			})
		default:
			a.logger.Error("verify otp failed", zap.Error(err))
			writeInternal(w, msgInternal)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, verifyOTPResponse{
		Success:    true,
		Message:    "OTP verified successfully. You can now reset your password.",
		ResetToken: res.ResetToken,
		ExpiresIn:  res.ExpiresIn,
	})
}

func (a *authenticationHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), handlerTimeout)
	defer cancel()

	const missing = "Email, reset token, and new password are required"
	var req resetPasswordRequest
	if !a.decodeAndValidate(w, r, &req, missing) {
		return
	}

	err := a.otpService.ResetPassword(ctx, req.Email, req.ResetToken, req.NewPassword)
	if err != nil {
		var weak *otp.WeakPasswordError
		switch {
		case errors.As(err, &weak):
			httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorResponse[[]string]{
				Code:    httpx.ErrValidationFailed,
				Message: "Password does not meet requirements",
				Details: weak.Details,
			})
		case errors.Is(err, otp.ErrMissingFields):
			writeBadRequest(w, missing)
		case errors.Is(err, otp.ErrResetTokenExpired):
			writeUnauthorizedMsg(w, httpx.ErrExpired, "Reset token has expired. Please verify OTP again.")
		case errors.Is(err, otp.ErrResetTokenInvalid):
			writeUnauthorizedMsg(w, httpx.ErrUnauthorized, "Invalid reset token.")
		case errors.Is(err, otp.ErrResetSessionGone):
			writeUnauthorizedMsg(w, httpx.ErrUnauthorized, "Invalid or expired reset token. Please start over.")
		case errors.Is(err, otp.ErrResetSessionStale):
			writeUnauthorizedMsg(w, httpx.ErrExpired, "Session expired. Please request a new OTP.")
		default:
			a.logger.Error("reset password failed", zap.Error(err))
			writeInternal(w, msgInternal)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, successResponse{
		Success: true,
		Message: "Password changed successfully. You can now login with your new password.",
	})
}

// decodeAndValidate writes the 4xx response itself and reports whether the
// handler should continue.
func (a *authenticationHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any, missingMsg string) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		a.logger.Warn("failed to decode request body", zap.String("path", r.URL.Path), zap.Error(err))
		httpx.WriteDecodeError(w, err)
		return false
	}
	if err := a.validator.Struct(dst); err != nil {
		a.logger.Debug("request validation failed", zap.String("path", r.URL.Path), zap.Error(err))
		httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorResponse[[]httpx.FieldError]{
			Code:    httpx.ErrValidationFailed,
			Message: missingMsg,
			Details: httpx.ValidationDetails(err),
		})
		return false
	}
	return true
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, httpx.ErrorResponse[any]{
		Code:    httpx.ErrValidationFailed,
		Message: msg,
	})
}

func writeUnauthorizedMsg(w http.ResponseWriter, code httpx.ErrorCode, msg string) {
	httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrorResponse[any]{
		Code:    code,
		Message: msg,
	})
}

func writeForbidden(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusForbidden, httpx.ErrorResponse[any]{
		Code:    httpx.ErrForbidden,
		Message: msg,
	})
}

func writeInternal(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusInternalServerError, httpx.ErrorResponse[any]{
		Code:    httpx.ErrInternal,
		Message: msg,
	})
}
