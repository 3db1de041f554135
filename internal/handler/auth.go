package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/finwise/auth-service/internal/config"
	"github.com/finwise/auth-service/internal/middleware"
	"github.com/finwise/auth-service/internal/model"
	"github.com/finwise/auth-service/internal/repository"
	"github.com/finwise/auth-service/internal/service"
	"github.com/finwise/auth-service/internal/transport"
	"github.com/finwise/auth-service/internal/utils"
)

// dbTimeout bounds every database round trip made from a handler.
const dbTimeout = 5 * time.Second

// UserStore is the credential-store surface the handlers use.
type UserStore interface {
	Create(ctx context.Context, p repository.CreateParams, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmailWithSecrets(ctx context.Context, email string) (model.User, error)
	RecordLogin(ctx context.Context, id uint64, ip, userAgent string) error
	SetActive(ctx context.Context, id uint64, active bool) error
}

// SessionStore is the session-registry surface the handlers use.
type SessionStore interface {
	Create(ctx context.Context, userID uint64, tokenHash, userAgent, ip string, expiresAt time.Time) error
	InvalidateAllForUser(ctx context.Context, userID uint64) error
	InvalidateByTokenHash(ctx context.Context, tokenHash string) error
	IsUsable(ctx context.Context, tokenHash string) (uint64, bool, error)
}

// Notifier is the outbound mail collaborator. Delivery is out of
// scope for this core; it only decides when and with what payload to
// request a send.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, name, code string) error
	SendPasswordResetEmail(ctx context.Context, to, name, token string) error
	SendWelcomeEmail(ctx context.Context, to, name string) error
}

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Users    UserStore
	Sessions SessionStore
	Codec    *utils.TokenCodec
	Codes    *service.SecurityCodes
	Mailer   Notifier
	Creds    transport.CredentialCarrier
}

func NewAuthHandler(cfg config.Config, users UserStore, sessions SessionStore,
	codec *utils.TokenCodec, codes *service.SecurityCodes,
	mailer Notifier, creds transport.CredentialCarrier) *AuthHandler {
	return &AuthHandler{
		Cfg: cfg, Users: users, Sessions: sessions,
		Codec: codec, Codes: codes, Mailer: mailer, Creds: creds,
	}
}

// ----- DTOs -----

type registerReq struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	OrgName   string `json:"org_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type emailReq struct {
	Email string `json:"email"`
}
type verifyEmailReq struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}
type resetPasswordReq struct {
	Email    string `json:"email"`
	Token    string `json:"token"`
	Password string `json:"password"`
}
type validateResetReq struct {
	Email string `json:"email"`
	Token string `json:"token"`
}
type setActiveReq struct {
	Active *bool `json:"active"`
}

type userPart struct {
	ID              uint64 `json:"id"`
	Email           string `json:"email"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	OrgName         string `json:"org_name,omitempty"`
	Role            string `json:"role"`
	IsEmailVerified bool   `json:"is_email_verified"`
}

func toUserPart(u model.User) userPart {
	return userPart{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		OrgName:         u.OrgName,
		Role:            u.Role.String(),
		IsEmailVerified: u.IsEmailVerified,
	}
}

// forgotPasswordResp is the body returned by forgot-password for every
// outcome short of an internal error. One shared value guarantees the
// response cannot differ between a registered and an unregistered
// email.
var forgotPasswordResp = echo.Map{
	"message": "if an account exists for that email, a reset link has been sent",
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Register creates the identity, queues the verification email and
// signs the new user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = normalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "valid email required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}
	if req.FirstName == "" || req.LastName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "first_name and last_name required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	uid, err := h.Users.Create(ctx, repository.CreateParams{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		OrgName:   strings.TrimSpace(req.OrgName),
		Role:      model.RoleUser,
	}, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		log.Printf("register: create user failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	code, err := h.Codes.IssueVerification(ctx, uid)
	if err != nil {
		log.Printf("register: issue verification code failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		log.Printf("register: load user failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	// Delivery failure here is logged and swallowed; the user can ask
	// for a resend, which is the path that surfaces mail errors.
	if err := h.Mailer.SendVerificationEmail(ctx, u.Email, u.FullName(), code); err != nil {
		log.Printf("register: send verification email failed: %v", err)
	}

	if err := h.establishSession(ctx, c, u); err != nil {
		log.Printf("register: establish session failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusCreated, echo.Map{"user": toUserPart(u)})
}

// Login verifies credentials and establishes a fresh session. Unknown
// email and wrong password collapse into one generic 401.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmailWithSecrets(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		log.Printf("login: query failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account deactivated"})
	}

	if err := h.establishSession(ctx, c, u); err != nil {
		log.Printf("login: establish session failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}

// Logout invalidates the presented session and always clears both
// cookies; it never fails the response, even when invalidation errors.
func (h *AuthHandler) Logout(c echo.Context) error {
	if raw, ok := h.Creds.Extract(c.Request(), transport.RefreshTokenName); ok {
		ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
		defer cancel()
		if err := h.Sessions.InvalidateByTokenHash(ctx, utils.HashToken(raw)); err != nil {
			log.Printf("logout: invalidate session failed: %v", err)
		}
	}
	h.Creds.Clear(c.Response(), transport.AccessTokenName)
	h.Creds.Clear(c.Response(), transport.RefreshTokenName)
	return c.JSON(http.StatusOK, echo.Map{"message": "signed out"})
}

// Refresh exchanges a usable refresh token for a fresh access token.
// The refresh token itself is not rotated; the session row is the
// revocation mechanism and sign-in always supersedes it.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw, ok := h.Creds.Extract(c.Request(), transport.RefreshTokenName)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	claims, err := h.Codec.VerifyRefresh(raw)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	subject, err := claims.SubjectID()
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	userID, usable, err := h.Sessions.IsUsable(ctx, utils.HashToken(raw))
	if err != nil {
		log.Printf("refresh: session lookup failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !usable || userID != subject {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	u, err := h.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}
		log.Printf("refresh: load user failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !u.IsActive {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account deactivated"})
	}

	access, err := h.Codec.IssueAccess(u.ID, u.Email, u.Role)
	if err != nil {
		log.Printf("refresh: issue access failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	h.Creds.Attach(c.Response(), transport.AccessTokenName, access.Value, h.Cfg.AccessTTL())

	return c.JSON(http.StatusOK, echo.Map{
		"message":        "token refreshed",
		"access_expires": access.ExpiresAt,
	})
}

// VerifyEmail consumes a verification code and flips the verified
// flag. Re-verifying an already verified account succeeds without
// doing anything.
func (h *AuthHandler) VerifyEmail(c echo.Context) error {
	var req verifyEmailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = normalizeEmail(req.Email)
	req.Code = strings.TrimSpace(req.Code)
	if req.Email == "" || req.Code == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and code required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmailWithSecrets(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			// Same response as a wrong code for an existing account.
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired verification code"})
		}
		log.Printf("verify-email: query failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	alreadyVerified := u.IsEmailVerified
	if err := h.Codes.ConsumeVerification(ctx, u, req.Code); err != nil {
		if errors.Is(err, service.ErrInvalidOrExpiredCode) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired verification code"})
		}
		log.Printf("verify-email: consume failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	if !alreadyVerified {
		if err := h.Mailer.SendWelcomeEmail(ctx, u.Email, u.FullName()); err != nil {
			log.Printf("verify-email: send welcome email failed: %v", err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "email verified"})
}

// ResendVerification issues a fresh code subject to the resend
// throttle. Unlike sign-up, a delivery failure here is surfaced: this
// endpoint is the user's only recourse when the first mail was lost.
func (h *AuthHandler) ResendVerification(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	resp := echo.Map{"message": "if an account exists for that email, a verification code has been sent"}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmailWithSecrets(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusOK, resp)
		}
		log.Printf("resend-verification: query failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if u.IsEmailVerified {
		return c.JSON(http.StatusOK, resp)
	}

	if err := h.Codes.CanReissueVerification(u); err != nil {
		var rl *service.RateLimitedError
		if errors.As(err, &rl) {
			c.Response().Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter))
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"error":       "too many requests",
				"retry_after": rl.RetryAfter,
			})
		}
		log.Printf("resend-verification: throttle check failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	code, err := h.Codes.IssueVerification(ctx, u.ID)
	if err != nil {
		log.Printf("resend-verification: issue failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.Mailer.SendVerificationEmail(ctx, u.Email, u.FullName(), code); err != nil {
		log.Printf("resend-verification: send failed: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "failed to send verification email"})
	}
	return c.JSON(http.StatusOK, resp)
}

// ForgotPassword issues a reset token and queues the reset email. The
// response is byte-identical whether or not the account exists, and
// also while the resend throttle is open; a distinguishable answer on
// any of those paths would confirm account existence.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmailWithSecrets(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repository.ErrUserNotFound) {
			log.Printf("forgot-password: query failed: %v", err)
		}
		return c.JSON(http.StatusOK, forgotPasswordResp)
	}

	if err := h.Codes.CanReissueReset(u); err != nil {
		log.Printf("forgot-password: reissue refused for user %d: %v", u.ID, err)
		return c.JSON(http.StatusOK, forgotPasswordResp)
	}

	token, err := h.Codes.IssueReset(ctx, u.ID)
	if err != nil {
		log.Printf("forgot-password: issue failed: %v", err)
		return c.JSON(http.StatusOK, forgotPasswordResp)
	}
	if err := h.Mailer.SendPasswordResetEmail(ctx, u.Email, u.FullName(), token); err != nil {
		// Logged and swallowed: the user can retry after the throttle.
		log.Printf("forgot-password: send failed: %v", err)
	}
	return c.JSON(http.StatusOK, forgotPasswordResp)
}

// ResetPassword consumes a reset token and stores the new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = normalizeEmail(req.Email)
	req.Token = strings.TrimSpace(req.Token)
	if req.Email == "" || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and token required"})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password must be at least 8 characters"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmailWithSecrets(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
		}
		log.Printf("reset-password: query failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}

	if err := h.Codes.ConsumeReset(ctx, u, req.Token, req.Password); err != nil {
		if errors.Is(err, service.ErrInvalidOrExpiredCode) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
		}
		log.Printf("reset-password: consume failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// ValidateResetToken checks a reset token without consuming it, so the
// reset form can fail fast on a dead link.
func (h *AuthHandler) ValidateResetToken(c echo.Context) error {
	var req validateResetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = normalizeEmail(req.Email)
	req.Token = strings.TrimSpace(req.Token)
	if req.Email == "" || req.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetByEmailWithSecrets(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
		}
		log.Printf("validate-reset-token: query failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.Codes.ValidateReset(u, req.Token); err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired reset token"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "reset token is valid"})
}

// Me returns the authenticated identity the gateway resolved.
func (h *AuthHandler) Me(c echo.Context) error {
	ident, ok := c.Get(middleware.IdentityKey).(model.Identity)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": ident})
}

// SetUserActive is the administrative activation toggle. The record is
// flagged, never deleted; a deactivated user keeps their history and
// their sessions are cut off immediately.
func (h *AuthHandler) SetUserActive(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req setActiveReq
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "active required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	if _, err := h.Users.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		log.Printf("set-active: load user failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.Users.SetActive(ctx, id, *req.Active); err != nil {
		log.Printf("set-active: update failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !*req.Active {
		if err := h.Sessions.InvalidateAllForUser(ctx, id); err != nil {
			log.Printf("set-active: invalidate sessions failed: %v", err)
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "user updated"})
}

// establishSession implements the sign-in session policy: invalidate
// every prior session, then create the new one, in that order within
// this request, so the final observable state has a single valid
// session per identity.
func (h *AuthHandler) establishSession(ctx context.Context, c echo.Context, u model.User) error {
	access, err := h.Codec.IssueAccess(u.ID, u.Email, u.Role)
	if err != nil {
		return err
	}
	refresh, err := h.Codec.IssueRefresh(u.ID)
	if err != nil {
		return err
	}

	ua := c.Request().UserAgent()
	ip := c.RealIP()

	if err := h.Sessions.InvalidateAllForUser(ctx, u.ID); err != nil {
		return err
	}
	if err := h.Sessions.Create(ctx, u.ID, utils.HashToken(refresh.Value), ua, ip, refresh.ExpiresAt); err != nil {
		return err
	}
	if err := h.Users.RecordLogin(ctx, u.ID, ip, ua); err != nil {
		log.Printf("sign-in: record login metadata failed: %v", err)
	}

	h.Creds.Attach(c.Response(), transport.AccessTokenName, access.Value, h.Cfg.AccessTTL())
	h.Creds.Attach(c.Response(), transport.RefreshTokenName, refresh.Value, h.Cfg.RefreshTTL())
	return nil
}
