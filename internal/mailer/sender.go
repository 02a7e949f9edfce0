// Package mailer delivers password-reset codes by email.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	ProviderResend   = "resend"
	ProviderSendGrid = "sendgrid"

	resendURL   = "https://api.resend.com/emails"
	sendGridURL = "https://api.sendgrid.com/v3/mail/send"

	otpSubject = "Your Password Reset Code - BenzTraq"
)

var (
	ErrNotConfigured   = errors.New("email service not configured")
	ErrUnknownProvider = errors.New("unknown email provider")
	ErrSendFailed      = errors.New("failed to send email")
)

type Config struct {
	Provider  string
	APIKey    string
	FromEmail string
	FromName  string
	Timeout   time.Duration
	// DevMode echoes the code back instead of failing when no API key is set.
	DevMode bool
}

type Result struct {
	MessageID string
	DevOTP    string
}

// OTPMessage is one reset-code email. ExpiresIn is shown verbatim, e.g.
// "10 minutes".
type OTPMessage struct {
	To        string
	Code      string
	Name      string
	ExpiresIn string
}

type Sender interface {
	SendOTP(ctx context.Context, msg OTPMessage) (Result, error)
}

// NewSender picks an HTTP provider when an API key is configured and a
// log-only sender otherwise.
func NewSender(cfg Config, logger *zap.Logger) (Sender, error) {
	if cfg.APIKey == "" {
		return &logSender{devMode: cfg.DevMode, logger: logger}, nil
	}
	switch cfg.Provider {
	case ProviderResend, ProviderSendGrid:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &httpSender{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
	s.endpoint = resendURL
	if cfg.Provider == ProviderSendGrid {
		s.endpoint = sendGridURL
	}
	return s, nil
}

type logSender struct {
	devMode bool
	logger  *zap.Logger
}

func (s *logSender) SendOTP(_ context.Context, msg OTPMessage) (Result, error) {
	if !s.devMode {
		s.logger.Warn("email service not configured, OTP not delivered", zap.String("to", msg.To))
		return Result{}, ErrNotConfigured
	}
	s.logger.Info("email service not configured, returning OTP for development",
		zap.String("to", msg.To),
		zap.String("otp", msg.Code),
	)
	return Result{MessageID: "dev-mode", DevOTP: msg.Code}, nil
}

type httpSender struct {
	cfg      Config
	client   *http.Client
	endpoint string
	logger   *zap.Logger
}

func (s *httpSender) SendOTP(ctx context.Context, msg OTPMessage) (Result, error) {
	html, err := renderOTPEmail(msg)
	if err != nil {
		return Result{}, err
	}
	to := msg.To

	var payload any
	if s.cfg.Provider == ProviderSendGrid {
		payload = sendGridPayload(s.cfg, to, html)
	} else {
		payload = map[string]any{
			"from":    fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromEmail),
			"to":      []string{to},
			"subject": otpSubject,
			"html":    html,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("email provider request failed", zap.String("provider", s.cfg.Provider), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("email provider rejected message",
			zap.String("provider", s.cfg.Provider),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return Result{}, fmt.Errorf("%w: status %d", ErrSendFailed, resp.StatusCode)
	}

	res := Result{MessageID: "sendgrid-sent"}
	if s.cfg.Provider == ProviderResend {
		var parsed struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(respBody, &parsed); err == nil {
			res.MessageID = parsed.ID
		}
	}
	return res, nil
}

func sendGridPayload(cfg Config, to, html string) map[string]any {
	return map[string]any{
		"personalizations": []map[string]any{{"to": []map[string]string{{"email": to}}}},
		"from":             map[string]string{"email": cfg.FromEmail, "name": cfg.FromName},
		"subject":          otpSubject,
		"content":          []map[string]string{{"type": "text/html", "value": html}},
	}
}

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; background-color: #f5f5f5; padding: 40px 20px;">
  <h1 style="margin: 0; font-size: 24px;">BenzTraq</h1>
  <p>Hi {{.Name}},</p>
  <p>You requested to reset your password. Use the verification code below to complete the process:</p>
  <p style="font-size: 36px; font-weight: 700; letter-spacing: 8px; font-family: 'Courier New', monospace;">{{.Code}}</p>
  <p>This code expires in <strong>{{.ExpiresIn}}</strong>.</p>
  <p>If you didn't request this, please ignore this email.</p>
  <p style="color: #999999; font-size: 12px;">&copy; {{.Year}} Benz Packaging Solutions. All rights reserved.</p>
</body>
</html>`))

func renderOTPEmail(msg OTPMessage) (string, error) {
	name := msg.Name
	if strings.TrimSpace(name) == "" {
		name = "User"
	}
	expiresIn := msg.ExpiresIn
	if expiresIn == "" {
		expiresIn = "10 minutes"
	}
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		Name      string
		Code      string
		ExpiresIn string
		Year      int
	}{Name: name, Code: msg.Code, ExpiresIn: expiresIn, Year: time.Now().Year()})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
