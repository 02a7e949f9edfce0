package auth

import (
	"context"
	"testing"
	"time"

	"github.com/benzpackaging/benztraq-auth/internal/httpx"
	"github.com/benzpackaging/benztraq-auth/internal/password"
	"github.com/benzpackaging/benztraq-auth/internal/profile"
	"github.com/benzpackaging/benztraq-auth/internal/token"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type MockProfiles struct {
	mock.Mock
}

func (m *MockProfiles) GetByEmail(ctx context.Context, email string) (*profile.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*profile.Profile), args.Error(1)
}

func (m *MockProfiles) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	return m.Called(ctx, userID, hash).Error(0)
}

func (m *MockProfiles) RecordLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

func (m *MockProfiles) ListPermissions(ctx context.Context, roleID string) (map[string]token.Permission, error) {
	args := m.Called(ctx, roleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]token.Permission), args.Error(1)
}

func (m *MockProfiles) LogActivity(ctx context.Context, a profile.Activity) error {
	return m.Called(ctx, a).Error(0)
}

type loginFixture struct {
	svc      AuthService
	profiles *MockProfiles
	hasher   password.Hasher
	codec    token.Codec
}

func newLoginFixture(t *testing.T, firstLogin string) *loginFixture {
	t.Helper()
	codec, err := token.NewCodec(zap.NewNop(), token.Config{Secret: testSecret})
	require.NoError(t, err)
	f := &loginFixture{
		profiles: new(MockProfiles),
		hasher:   password.NewHasher(bcrypt.MinCost),
		codec:    codec,
	}
	f.svc = NewAuthenticationService(f.profiles, f.hasher, codec, firstLogin, zap.NewNop())
	return f
}

func (f *loginFixture) profileWithPassword(t *testing.T, pass string) *profile.Profile {
	t.Helper()
	p := &profile.Profile{
		UserID:       uuid.New(),
		Email:        "pulak@benz-packaging.com",
		FullName:     "Pulak Biswas",
		IsActive:     true,
		RoleID:       "2",
		RoleName:     "head_of_sales",
		RoleDisplay:  "Head of Sales",
		RoleLevel:    2,
		Organization: "benz_packaging",
	}
	if pass != "" {
		hash, err := f.hasher.Hash(pass)
		require.NoError(t, err)
		p.PasswordHash = hash
	}
	return p
}

func TestLogin_Success(t *testing.T) {
	f := newLoginFixture(t, "")
	p := f.profileWithPassword(t, "Str0ng!Pass")
	perms := map[string]token.Permission{"documents": {Read: true, Scope: "all"}}

	f.profiles.On("GetByEmail", mock.Anything, "pulak@benz-packaging.com").Return(p, nil)
	f.profiles.On("ListPermissions", mock.Anything, "2").Return(perms, nil)
	f.profiles.On("RecordLogin", mock.Anything, p.UserID, mock.AnythingOfType("time.Time")).Return(nil)
	f.profiles.On("LogActivity", mock.Anything, mock.MatchedBy(func(a profile.Activity) bool {
		return a.UserID == p.UserID && a.Action == "login" && a.ResourceType == "auth"
	})).Return(nil)

	res, err := f.svc.Login(context.Background(), " Pulak@Benz-Packaging.com", "Str0ng!Pass", httpx.RequestMeta{IP: "1.2.3.4"})
	require.NoError(t, err)
	assert.False(t, res.NeedsPasswordChange)
	assert.Equal(t, perms, res.Permissions)

	claims, err := f.codec.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, p.UserID.String(), claims.Subject)
	assert.Equal(t, "head_of_sales", claims.Role)
	assert.Equal(t, 2, claims.RoleLevel)
	assert.Equal(t, "benz_packaging", claims.Organization)
	assert.Equal(t, perms, claims.Permissions)
	f.profiles.AssertExpectations(t)
}

func TestLogin_UnknownEmailAndWrongPasswordLookTheSame(t *testing.T) {
	f := newLoginFixture(t, "")
	p := f.profileWithPassword(t, "Str0ng!Pass")
	f.profiles.On("GetByEmail", mock.Anything, "ghost@benz-packaging.com").Return(nil, profile.ErrNotFound)
	f.profiles.On("GetByEmail", mock.Anything, "pulak@benz-packaging.com").Return(p, nil)

	_, err := f.svc.Login(context.Background(), "ghost@benz-packaging.com", "whatever", httpx.RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.Login(context.Background(), "pulak@benz-packaging.com", "wrong", httpx.RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	f.profiles.AssertNotCalled(t, "RecordLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogin_Inactive(t *testing.T) {
	f := newLoginFixture(t, "")
	p := f.profileWithPassword(t, "Str0ng!Pass")
	p.IsActive = false
	f.profiles.On("GetByEmail", mock.Anything, "pulak@benz-packaging.com").Return(p, nil)

	_, err := f.svc.Login(context.Background(), "pulak@benz-packaging.com", "Str0ng!Pass", httpx.RequestMeta{})
	assert.ErrorIs(t, err, ErrUserNotActive)
}

func TestLogin_MissingFields(t *testing.T) {
	f := newLoginFixture(t, "")
	_, err := f.svc.Login(context.Background(), "  ", "x", httpx.RequestMeta{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLogin_FirstLoginPassword(t *testing.T) {
	f := newLoginFixture(t, "Welcome@2026")
	p := f.profileWithPassword(t, "")

	f.profiles.On("GetByEmail", mock.Anything, "pulak@benz-packaging.com").Return(p, nil)
	f.profiles.On("UpdatePasswordHash", mock.Anything, p.UserID, mock.AnythingOfType("string")).Return(nil).Once()
	f.profiles.On("ListPermissions", mock.Anything, "2").Return(map[string]token.Permission{}, nil)
	f.profiles.On("RecordLogin", mock.Anything, p.UserID, mock.Anything).Return(nil)
	f.profiles.On("LogActivity", mock.Anything, mock.Anything).Return(assert.AnError)

	res, err := f.svc.Login(context.Background(), "pulak@benz-packaging.com", "Welcome@2026", httpx.RequestMeta{})
	require.NoError(t, err)
	assert.True(t, res.NeedsPasswordChange)
	f.profiles.AssertExpectations(t)
}

func TestLogin_FirstLoginDisabled(t *testing.T) {
	f := newLoginFixture(t, "")
	p := f.profileWithPassword(t, "")
	f.profiles.On("GetByEmail", mock.Anything, "pulak@benz-packaging.com").Return(p, nil)

	_, err := f.svc.Login(context.Background(), "pulak@benz-packaging.com", "", httpx.RequestMeta{})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = f.svc.Login(context.Background(), "pulak@benz-packaging.com", "Welcome@2026", httpx.RequestMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	f.profiles.AssertNotCalled(t, "UpdatePasswordHash", mock.Anything, mock.Anything, mock.Anything)
}
