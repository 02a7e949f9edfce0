package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benzpackaging/benztraq-auth/internal/rbac"
	"github.com/benzpackaging/benztraq-auth/internal/session"
	"github.com/benzpackaging/benztraq-auth/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var testNow = time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

type resolverFixture struct {
	codec    token.Codec
	store    session.Store
	resolver Resolver
	now      *time.Time
}

func newResolverFixture(t *testing.T) *resolverFixture {
	t.Helper()
	now := testNow
	codec, err := token.NewCodec(zap.NewNop(), token.Config{Secret: testSecret}, token.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	store := session.NewStore(session.Config{}, zap.NewNop())
	return &resolverFixture{
		codec:    codec,
		store:    store,
		resolver: NewResolver(store, codec, zap.NewNop()),
		now:      &now,
	}
}

func (f *resolverFixture) requestWithToken(t *testing.T, claims token.Claims) *http.Request {
	t.Helper()
	signed, err := f.codec.Issue(claims)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	r.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: signed})
	return r
}

func claimsFor(sub, role string) token.Claims {
	c := token.Claims{Email: sub + "@benz-packaging.com", FullName: "Test User", Role: role, RoleID: "4"}
	c.Subject = sub
	return c
}

func TestResolve_NoCookie(t *testing.T) {
	f := newResolverFixture(t)
	u, ok := f.resolver.Resolve(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
	assert.Nil(t, u)
}

func TestResolve_Garbage(t *testing.T) {
	f := newResolverFixture(t)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: session.DefaultCookieName, Value: "not.a.jwt"})

	_, ok := f.resolver.Resolve(r)
	assert.False(t, ok)
}

func TestResolve_Expired(t *testing.T) {
	f := newResolverFixture(t)
	r := f.requestWithToken(t, claimsFor("u1", "manager"))

	*f.now = testNow.Add(7*24*time.Hour + time.Second)
	_, ok := f.resolver.Resolve(r)
	assert.False(t, ok)
}

func TestResolve_DefaultsPermissions(t *testing.T) {
	f := newResolverFixture(t)
	r := f.requestWithToken(t, claimsFor("u1", "manager"))

	u, ok := f.resolver.Resolve(r)
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, rbac.RoleManager, u.Role)
	assert.NotNil(t, u.Permissions)
	assert.Empty(t, u.Permissions)

	again, ok := f.resolver.Resolve(r)
	require.True(t, ok)
	assert.Equal(t, u, again)
}

func TestResolve_NormalizesLegacyRole(t *testing.T) {
	f := newResolverFixture(t)
	u, ok := f.resolver.Resolve(f.requestWithToken(t, claimsFor("u2", "Head of Sales")))
	require.True(t, ok)
	assert.Equal(t, rbac.RoleHeadOfSales, u.Role)
	assert.True(t, Authorize(u, rbac.IsManager))
}

func TestAuthorize_Anonymous(t *testing.T) {
	assert.False(t, Authorize(nil, rbac.IsManager))
	assert.False(t, Authorize(&UserIdentity{Role: rbac.RoleASM}, rbac.IsManager))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRole(t *testing.T) {
	f := newResolverFixture(t)
	h := WithUser(f.resolver)(RequireRole(rbac.IsManager)(okHandler()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/targets", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Unauthorized"`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, f.requestWithToken(t, claimsFor("u3", "asm")))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Insufficient permissions")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, f.requestWithToken(t, claimsFor("u4", "VP")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireUser(t *testing.T) {
	f := newResolverFixture(t)
	h := WithUser(f.resolver)(RequireUser(okHandler()))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, f.requestWithToken(t, claimsFor("u5", "asm")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPageGuard(t *testing.T) {
	f := newResolverFixture(t)
	h := WithUser(f.resolver)(PageGuard(okHandler()))

	withPath := func(r *http.Request, path string) *http.Request {
		r.URL.Path = path
		return r
	}
	ergo := claimsFor("u6", "asm")
	ergo.Organization = "ergopack_india"

	tests := []struct {
		name     string
		req      *http.Request
		status   int
		location string
	}{
		{"anonymous public page", httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, ""},
		{"anonymous static asset", httptest.NewRequest(http.MethodGet, "/dashboard/logo.png", nil), http.StatusOK, ""},
		{"anonymous api", httptest.NewRequest(http.MethodGet, "/api/documents", nil), http.StatusOK, ""},
		{"anonymous protected page", httptest.NewRequest(http.MethodGet, "/documents/42", nil), http.StatusTemporaryRedirect, "/login?redirectTo=%2Fdocuments%2F42"},
		{"asm on comparison", withPath(f.requestWithToken(t, claimsFor("u7", "asm")), "/comparison"), http.StatusTemporaryRedirect, accessDeniedURL},
		{"asm on dashboard", withPath(f.requestWithToken(t, claimsFor("u7", "asm")), "/dashboard"), http.StatusOK, ""},
		{"vp on admin", withPath(f.requestWithToken(t, claimsFor("u8", "vp")), "/admin/users"), http.StatusTemporaryRedirect, accessDeniedURL},
		{"director on admin", withPath(f.requestWithToken(t, claimsFor("u9", "director")), "/admin/users"), http.StatusOK, ""},
		{"benz manager on ergopack", withPath(f.requestWithToken(t, claimsFor("u10", "manager")), "/ergopack"), http.StatusTemporaryRedirect, accessDeniedURL},
		{"ergopack member", withPath(f.requestWithToken(t, ergo), "/ergopack/contacts"), http.StatusOK, ""},
		{"developer on ergopack", withPath(f.requestWithToken(t, claimsFor("u11", "developer")), "/ergopack"), http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
		})
	}
}
