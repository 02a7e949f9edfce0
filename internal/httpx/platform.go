package httpx

import (
	"net"
	"net/http"
)

const unknownMeta = "unknown"

// RequestMeta is recorded with OTP requests and login activity.
type RequestMeta struct {
	IP        string `validate:"omitempty,max=64"`
	UserAgent string `validate:"omitempty,max=256"`
}

// ClientMeta reads the peer address. Forwarding headers are resolved by the
// router before this runs, and only for trusted proxies.
func ClientMeta(r *http.Request) RequestMeta {
	return RequestMeta{
		IP:        clientIP(r),
		UserAgent: truncate(orUnknown(r.UserAgent()), 256),
	}
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return truncate(orUnknown(r.RemoteAddr), 64)
}

func orUnknown(s string) string {
	if s == "" {
		return unknownMeta
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
