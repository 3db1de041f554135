package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/finwise/auth-service/internal/config"
	"github.com/finwise/auth-service/internal/model"
	"github.com/finwise/auth-service/internal/repository"
	"github.com/finwise/auth-service/internal/service"
	"github.com/finwise/auth-service/internal/transport"
	"github.com/finwise/auth-service/internal/utils"
)

// mockUsers satisfies both the handler's UserStore and the code
// workflow's UserCodeStore, so tests run the real SecurityCodes
// service over it.
type mockUsers struct {
	mock.Mock
}

func (m *mockUsers) Create(ctx context.Context, p repository.CreateParams, cost int) (uint64, error) {
	args := m.Called(ctx, p, cost)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockUsers) GetByEmail(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUsers) GetByID(ctx context.Context, id uint64) (model.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUsers) GetByEmailWithSecrets(ctx context.Context, email string) (model.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(model.User), args.Error(1)
}

func (m *mockUsers) RecordLogin(ctx context.Context, id uint64, ip, userAgent string) error {
	return m.Called(ctx, id, ip, userAgent).Error(0)
}

func (m *mockUsers) SetActive(ctx context.Context, id uint64, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *mockUsers) SetVerifyCode(ctx context.Context, id uint64, hash string, expiresAt, issuedAt time.Time) error {
	return m.Called(ctx, id, hash, expiresAt, issuedAt).Error(0)
}

func (m *mockUsers) MarkEmailVerified(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockUsers) SetResetToken(ctx context.Context, id uint64, hash string, expiresAt, issuedAt time.Time) error {
	return m.Called(ctx, id, hash, expiresAt, issuedAt).Error(0)
}

func (m *mockUsers) UpdatePassword(ctx context.Context, id uint64, newPassword string, cost int) error {
	return m.Called(ctx, id, newPassword, cost).Error(0)
}

type mockSessions struct {
	mock.Mock
}

func (m *mockSessions) Create(ctx context.Context, userID uint64, tokenHash, userAgent, ip string, expiresAt time.Time) error {
	return m.Called(ctx, userID, tokenHash, userAgent, ip, expiresAt).Error(0)
}

func (m *mockSessions) InvalidateAllForUser(ctx context.Context, userID uint64) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockSessions) InvalidateByTokenHash(ctx context.Context, tokenHash string) error {
	return m.Called(ctx, tokenHash).Error(0)
}

func (m *mockSessions) IsUsable(ctx context.Context, tokenHash string) (uint64, bool, error) {
	args := m.Called(ctx, tokenHash)
	return args.Get(0).(uint64), args.Bool(1), args.Error(2)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendVerificationEmail(ctx context.Context, to, name, code string) error {
	return m.Called(ctx, to, name, code).Error(0)
}

func (m *mockMailer) SendPasswordResetEmail(ctx context.Context, to, name, token string) error {
	return m.Called(ctx, to, name, token).Error(0)
}

func (m *mockMailer) SendWelcomeEmail(ctx context.Context, to, name string) error {
	return m.Called(ctx, to, name).Error(0)
}

type fixture struct {
	h        *AuthHandler
	users    *mockUsers
	sessions *mockSessions
	mailer   *mockMailer
	codec    *utils.TokenCodec
	e        *echo.Echo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Config{
		Env:            "dev",
		AccessSecret:   "access-secret",
		RefreshSecret:  "refresh-secret",
		AccessTTLMin:   15,
		RefreshTTLDays: 7,
		BcryptCost:     4, // min cost keeps tests fast
	}
	users := &mockUsers{}
	sessions := &mockSessions{}
	mailer := &mockMailer{}
	codec := utils.NewTokenCodec(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	codes := service.NewSecurityCodes(users, sessions, cfg.BcryptCost)
	h := NewAuthHandler(cfg, users, sessions, codec, codes, mailer, &transport.CookieCarrier{})
	return &fixture{h: h, users: users, sessions: sessions, mailer: mailer, codec: codec, e: echo.New()}
}

func (f *fixture) request(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return f.e.NewContext(req, rec), rec
}

func cookieValue(rec *httptest.ResponseRecorder, name string) (string, bool) {
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			return ck.Value, true
		}
	}
	return "", false
}

func hashedPassword(t *testing.T, plain string) string {
	t.Helper()
	h, err := utils.HashPassword(plain, 4)
	require.NoError(t, err)
	return h
}

func activeUser(t *testing.T) model.User {
	return model.User{
		ID:           7,
		Email:        "alice@example.com",
		PasswordHash: hashedPassword(t, "password-1"),
		FirstName:    "Alice",
		LastName:     "Smith",
		Role:         model.RoleUser,
		IsActive:     true,
	}
}

// --- Login ---

// Unknown email and wrong password must be indistinguishable: same
// status, same body.
func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByEmailWithSecrets", mock.Anything, "nobody@example.com").
		Return(model.User{}, repository.ErrUserNotFound)
	f.users.On("GetByEmailWithSecrets", mock.Anything, "alice@example.com").
		Return(activeUser(t), nil)

	c, rec1 := f.request(http.MethodPost, "/v1/auth/login",
		`{"email":"nobody@example.com","password":"password-1"}`)
	require.NoError(t, f.h.Login(c))

	c, rec2 := f.request(http.MethodPost, "/v1/auth/login",
		`{"email":"alice@example.com","password":"wrong-password"}`)
	require.NoError(t, f.h.Login(c))

	assert.Equal(t, http.StatusUnauthorized, rec1.Code)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
	assert.Equal(t, rec1.Body.String(), rec2.Body.String())
}

func TestLoginSuccessEstablishesSingleSession(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)

	var order []string
	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)
	f.sessions.On("InvalidateAllForUser", mock.Anything, u.ID).
		Run(func(mock.Arguments) { order = append(order, "invalidate") }).Return(nil)
	f.sessions.On("Create", mock.Anything, u.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { order = append(order, "create") }).Return(nil)
	f.users.On("RecordLogin", mock.Anything, u.ID, mock.Anything, mock.Anything).Return(nil)

	c, rec := f.request(http.MethodPost, "/v1/auth/login",
		`{"email":"Alice@Example.com","password":"password-1"}`)
	require.NoError(t, f.h.Login(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	// Old sessions die before the new one is born, so at no point can
	// two sessions be valid for the same identity.
	assert.Equal(t, []string{"invalidate", "create"}, order)

	access, ok := cookieValue(rec, transport.AccessTokenName)
	require.True(t, ok)
	refresh, ok := cookieValue(rec, transport.RefreshTokenName)
	require.True(t, ok)

	claims, err := f.codec.VerifyAccess(access)
	require.NoError(t, err)
	assert.Equal(t, u.Email, claims.Email)

	// The session row stores the digest of the refresh token, not the
	// token itself.
	f.sessions.AssertCalled(t, "Create", mock.Anything, u.ID,
		utils.HashToken(refresh), mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginDeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	u.IsActive = false
	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)

	c, rec := f.request(http.MethodPost, "/v1/auth/login",
		`{"email":"alice@example.com","password":"password-1"}`)
	require.NoError(t, f.h.Login(c))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.sessions.AssertNotCalled(t, "Create",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- Register ---

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.users.On("Create", mock.Anything, mock.Anything, 4).
		Return(uint64(0), repository.ErrEmailExists)

	c, rec := f.request(http.MethodPost, "/v1/auth/register",
		`{"email":"alice@example.com","password":"password-1","first_name":"Alice","last_name":"Smith"}`)
	require.NoError(t, f.h.Register(c))

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodPost, "/v1/auth/register",
		`{"email":"alice@example.com","password":"short","first_name":"Alice","last_name":"Smith"}`)
	require.NoError(t, f.h.Register(c))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterSignsInAndMailsCode(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)

	var mailedCode string
	f.users.On("Create", mock.Anything, mock.MatchedBy(func(p repository.CreateParams) bool {
		return p.Email == "alice@example.com" && p.Role == model.RoleUser
	}), 4).Return(u.ID, nil)
	f.users.On("SetVerifyCode", mock.Anything, u.ID, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	f.mailer.On("SendVerificationEmail", mock.Anything, u.Email, "Alice Smith", mock.Anything).
		Run(func(args mock.Arguments) { mailedCode = args.String(3) }).Return(nil)
	f.sessions.On("InvalidateAllForUser", mock.Anything, u.ID).Return(nil)
	f.sessions.On("Create", mock.Anything, u.ID, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.users.On("RecordLogin", mock.Anything, u.ID, mock.Anything, mock.Anything).Return(nil)

	c, rec := f.request(http.MethodPost, "/v1/auth/register",
		`{"email":"Alice@Example.com","password":"password-1","first_name":"Alice","last_name":"Smith"}`)
	require.NoError(t, f.h.Register(c))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Len(t, mailedCode, 6)
	_, ok := cookieValue(rec, transport.RefreshTokenName)
	assert.True(t, ok, "registration should sign the new user in")
}

// --- Logout ---

func TestLogoutClearsCookiesEvenWhenInvalidationFails(t *testing.T) {
	f := newFixture(t)
	f.sessions.On("InvalidateByTokenHash", mock.Anything, utils.HashToken("some-refresh")).
		Return(errors.New("db down"))

	c, rec := f.request(http.MethodPost, "/v1/auth/logout", "")
	c.Request().AddCookie(&http.Cookie{Name: transport.RefreshTokenName, Value: "some-refresh"})
	require.NoError(t, f.h.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	for _, name := range []string{transport.AccessTokenName, transport.RefreshTokenName} {
		v, ok := cookieValue(rec, name)
		require.True(t, ok, "expected %s cookie", name)
		assert.Empty(t, v)
	}
}

func TestLogoutWithoutSession(t *testing.T) {
	f := newFixture(t)

	c, rec := f.request(http.MethodPost, "/v1/auth/logout", "")
	require.NoError(t, f.h.Logout(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	f.sessions.AssertNotCalled(t, "InvalidateByTokenHash", mock.Anything, mock.Anything)
}

// --- Refresh ---

func TestRefreshMintsAccessOnly(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)

	refresh, err := f.codec.IssueRefresh(u.ID)
	require.NoError(t, err)

	f.sessions.On("IsUsable", mock.Anything, utils.HashToken(refresh.Value)).
		Return(u.ID, true, nil)
	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)

	c, rec := f.request(http.MethodPost, "/v1/auth/refresh", "")
	c.Request().AddCookie(&http.Cookie{Name: transport.RefreshTokenName, Value: refresh.Value})
	require.NoError(t, f.h.Refresh(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	_, ok := cookieValue(rec, transport.AccessTokenName)
	assert.True(t, ok)
	_, ok = cookieValue(rec, transport.RefreshTokenName)
	assert.False(t, ok, "refresh must not rotate the refresh token")
}

func TestRefreshRejectsRevokedSession(t *testing.T) {
	f := newFixture(t)

	refresh, err := f.codec.IssueRefresh(7)
	require.NoError(t, err)
	f.sessions.On("IsUsable", mock.Anything, utils.HashToken(refresh.Value)).
		Return(uint64(0), false, nil)

	c, rec := f.request(http.MethodPost, "/v1/auth/refresh", "")
	c.Request().AddCookie(&http.Cookie{Name: transport.RefreshTokenName, Value: refresh.Value})
	require.NoError(t, f.h.Refresh(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRejectsAccessTokenInRefreshSlot(t *testing.T) {
	f := newFixture(t)

	access, err := f.codec.IssueAccess(7, "alice@example.com", model.RoleUser)
	require.NoError(t, err)

	c, rec := f.request(http.MethodPost, "/v1/auth/refresh", "")
	c.Request().AddCookie(&http.Cookie{Name: transport.RefreshTokenName, Value: access.Value})
	require.NoError(t, f.h.Refresh(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.sessions.AssertNotCalled(t, "IsUsable", mock.Anything, mock.Anything)
}

// --- Verify email ---

func TestVerifyEmail(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	exp := time.Now().UTC().Add(time.Hour)
	u.VerifyCodeHash = utils.HashToken("123456")
	u.VerifyCodeExpiresAt = &exp

	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)

	t.Run("wrong code", func(t *testing.T) {
		c, rec := f.request(http.MethodPost, "/v1/auth/verify-email",
			`{"email":"alice@example.com","code":"654321"}`)
		require.NoError(t, f.h.VerifyEmail(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("right code", func(t *testing.T) {
		f.users.On("MarkEmailVerified", mock.Anything, u.ID).Return(nil).Once()
		f.mailer.On("SendWelcomeEmail", mock.Anything, u.Email, "Alice Smith").Return(nil).Once()

		c, rec := f.request(http.MethodPost, "/v1/auth/verify-email",
			`{"email":"alice@example.com","code":"123456"}`)
		require.NoError(t, f.h.VerifyEmail(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		f.users.AssertExpectations(t)
	})
}

// Unknown account and wrong code answer identically so the endpoint
// cannot be used to probe registration.
func TestVerifyEmailUnknownAccountMatchesWrongCode(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	exp := time.Now().UTC().Add(time.Hour)
	u.VerifyCodeHash = utils.HashToken("123456")
	u.VerifyCodeExpiresAt = &exp

	f.users.On("GetByEmailWithSecrets", mock.Anything, "nobody@example.com").
		Return(model.User{}, repository.ErrUserNotFound)
	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)

	c, rec1 := f.request(http.MethodPost, "/v1/auth/verify-email",
		`{"email":"nobody@example.com","code":"123456"}`)
	require.NoError(t, f.h.VerifyEmail(c))

	c, rec2 := f.request(http.MethodPost, "/v1/auth/verify-email",
		`{"email":"alice@example.com","code":"000000"}`)
	require.NoError(t, f.h.VerifyEmail(c))

	assert.Equal(t, rec1.Code, rec2.Code)
	assert.Equal(t, rec1.Body.String(), rec2.Body.String())
}

// --- Resend verification ---

func TestResendVerificationThrottled(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	issued := time.Now().UTC().Add(-10 * time.Second)
	u.VerifyCodeIssuedAt = &issued

	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)

	c, rec := f.request(http.MethodPost, "/v1/auth/resend-verification",
		`{"email":"alice@example.com"}`)
	require.NoError(t, f.h.ResendVerification(c))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "retry_after")
	f.users.AssertNotCalled(t, "SetVerifyCode",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResendVerificationMailFailure(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)

	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)
	f.users.On("SetVerifyCode", mock.Anything, u.ID, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("SendVerificationEmail", mock.Anything, u.Email, mock.Anything, mock.Anything).
		Return(errors.New("broker unreachable"))

	c, rec := f.request(http.MethodPost, "/v1/auth/resend-verification",
		`{"email":"alice@example.com"}`)
	require.NoError(t, f.h.ResendVerification(c))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestResendVerificationAlreadyVerified(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	u.IsEmailVerified = true
	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)

	c, rec := f.request(http.MethodPost, "/v1/auth/resend-verification",
		`{"email":"alice@example.com"}`)
	require.NoError(t, f.h.ResendVerification(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	f.users.AssertNotCalled(t, "SetVerifyCode",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- Forgot password ---

// The response must be byte-identical for a registered account, an
// unregistered one, and a throttled reissue.
func TestForgotPasswordNeverRevealsExistence(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	recent := time.Now().UTC().Add(-time.Minute)
	throttled := activeUser(t)
	throttled.Email = "bob@example.com"
	throttled.ID = 8
	throttled.ResetTokenIssuedAt = &recent

	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)
	f.users.On("GetByEmailWithSecrets", mock.Anything, "nobody@example.com").
		Return(model.User{}, repository.ErrUserNotFound)
	f.users.On("GetByEmailWithSecrets", mock.Anything, throttled.Email).Return(throttled, nil)
	f.users.On("SetResetToken", mock.Anything, u.ID, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.mailer.On("SendPasswordResetEmail", mock.Anything, u.Email, mock.Anything, mock.Anything).Return(nil)

	bodies := make([]string, 0, 3)
	for _, email := range []string{u.Email, "nobody@example.com", throttled.Email} {
		c, rec := f.request(http.MethodPost, "/v1/auth/forgot-password",
			`{"email":"`+email+`"}`)
		require.NoError(t, f.h.ForgotPassword(c))
		assert.Equal(t, http.StatusOK, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, bodies[1], bodies[2])

	// Only the registered, unthrottled account actually got a token.
	f.users.AssertNumberOfCalls(t, "SetResetToken", 1)
}

// --- Reset password ---

func TestResetPasswordConsumesTokenAndRevokesSessions(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	exp := time.Now().UTC().Add(30 * time.Minute)
	u.ResetTokenHash = utils.HashToken("deadbeef")
	u.ResetTokenExpiresAt = &exp

	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)
	f.users.On("UpdatePassword", mock.Anything, u.ID, "new-password-1", 4).Return(nil).Once()
	f.sessions.On("InvalidateAllForUser", mock.Anything, u.ID).Return(nil).Once()

	c, rec := f.request(http.MethodPost, "/v1/auth/reset-password",
		`{"email":"alice@example.com","token":"deadbeef","password":"new-password-1"}`)
	require.NoError(t, f.h.ResetPassword(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	f.users.AssertExpectations(t)
	f.sessions.AssertExpectations(t)
}

func TestResetPasswordBadToken(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	exp := time.Now().UTC().Add(30 * time.Minute)
	u.ResetTokenHash = utils.HashToken("deadbeef")
	u.ResetTokenExpiresAt = &exp

	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)

	c, rec := f.request(http.MethodPost, "/v1/auth/reset-password",
		`{"email":"alice@example.com","token":"wrong","password":"new-password-1"}`)
	require.NoError(t, f.h.ResetPassword(c))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.users.AssertNotCalled(t, "UpdatePassword",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestValidateResetToken(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	exp := time.Now().UTC().Add(30 * time.Minute)
	u.ResetTokenHash = utils.HashToken("deadbeef")
	u.ResetTokenExpiresAt = &exp

	f.users.On("GetByEmailWithSecrets", mock.Anything, u.Email).Return(u, nil)

	c, rec := f.request(http.MethodPost, "/v1/auth/validate-reset-token",
		`{"email":"alice@example.com","token":"deadbeef"}`)
	require.NoError(t, f.h.ValidateResetToken(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Validation does not consume the token.
	f.users.AssertNotCalled(t, "UpdatePassword",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- Admin activation toggle ---

func TestSetUserActiveDeactivationCutsSessions(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)

	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	f.users.On("SetActive", mock.Anything, u.ID, false).Return(nil).Once()
	f.sessions.On("InvalidateAllForUser", mock.Anything, u.ID).Return(nil).Once()

	c, rec := f.request(http.MethodPatch, "/v1/admin/users/7/active", `{"active":false}`)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, f.h.SetUserActive(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	f.sessions.AssertExpectations(t)
}

func TestSetUserActiveReactivationKeepsSessionsRevoked(t *testing.T) {
	f := newFixture(t)
	u := activeUser(t)
	u.IsActive = false

	f.users.On("GetByID", mock.Anything, u.ID).Return(u, nil)
	f.users.On("SetActive", mock.Anything, u.ID, true).Return(nil).Once()

	c, rec := f.request(http.MethodPatch, "/v1/admin/users/7/active", `{"active":true}`)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, f.h.SetUserActive(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	f.sessions.AssertNotCalled(t, "InvalidateAllForUser", mock.Anything, mock.Anything)
}

func TestSetUserActiveUnknownUser(t *testing.T) {
	f := newFixture(t)
	f.users.On("GetByID", mock.Anything, uint64(99)).
		Return(model.User{}, repository.ErrUserNotFound)

	c, rec := f.request(http.MethodPatch, "/v1/admin/users/99/active", `{"active":false}`)
	c.SetParamNames("id")
	c.SetParamValues("99")
	require.NoError(t, f.h.SetUserActive(c))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
