package auth

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/benzpackaging/benztraq-auth/internal/httpx"
	"github.com/benzpackaging/benztraq-auth/internal/rbac"
)

const (
	organizationErgopack = "ergopack_india"
	accessDeniedURL      = "/dashboard?access=denied"
)

var (
	protectedPages  = []string{"/dashboard", "/documents", "/comparison", "/targets", "/admin", "/ergopack"}
	asmDeniedPages  = []string{"/comparison", "/admin"}
	passThroughPref = []string{"/api", "/_next", "/login"}
)

// WithUser resolves the caller once per request and stores the identity in
// the request context. Anonymous requests pass through untouched.
func WithUser(res Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if u, ok := res.Resolve(r); ok {
				r = r.WithContext(ContextWithUser(r.Context(), u))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			writeUnauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole answers 401 for anonymous callers and 403 for callers whose
// role fails check.
func RequireRole(check rbac.Check) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := UserFromContext(r.Context())
			if !ok {
				writeUnauthorized(w)
				return
			}
			if !Authorize(u, check) {
				httpx.WriteError(w, http.StatusForbidden, httpx.ErrorResponse[any]{
					Code:    httpx.ErrForbidden,
					Message: "Insufficient permissions",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusUnauthorized, httpx.ErrorResponse[any]{
		Code:    httpx.ErrUnauthorized,
		Message: "Unauthorized",
	})
}

// PageGuard redirects browser navigation on protected pages. It expects
// WithUser to have run first.
func PageGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if skipGuard(path) || !hasPrefix(path, protectedPages) {
			next.ServeHTTP(w, r)
			return
		}

		u, ok := UserFromContext(r.Context())
		if !ok {
			http.Redirect(w, r, "/login?redirectTo="+url.QueryEscape(path), http.StatusTemporaryRedirect)
			return
		}

		if !pageAllowed(u, path) {
			http.Redirect(w, r, accessDeniedURL, http.StatusTemporaryRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func pageAllowed(u *UserIdentity, path string) bool {
	role := u.Role
	if role == "" {
		role = rbac.RoleASM
	}

	if rbac.IsASM(role) && hasPrefix(path, asmDeniedPages) {
		return false
	}
	if strings.HasPrefix(path, "/ergopack") {
		if u.Organization != organizationErgopack && !rbac.IsDeveloper(role) && !rbac.IsDirector(role) {
			return false
		}
	}
	if strings.HasPrefix(path, "/admin") && !rbac.IsDeveloper(role) && !rbac.IsDirector(role) {
		return false
	}
	return true
}

func skipGuard(path string) bool {
	return path == "/" || strings.Contains(path, ".") || hasPrefix(path, passThroughPref)
}

func hasPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
