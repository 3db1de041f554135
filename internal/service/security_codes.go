// Package service holds the workflows that sit between the HTTP
// handlers and the repositories: the single-use security-code
// lifecycle and the outbound mail publisher.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/finwise/auth-service/internal/model"
	"github.com/finwise/auth-service/internal/utils"
)

// ErrInvalidOrExpiredCode is returned whenever a supplied code fails
// validation: wrong value, already consumed, overwritten by a newer
// issue, or past its expiry. One error for all cases; handlers map it
// to a generic response.
var ErrInvalidOrExpiredCode = errors.New("invalid or expired code")

// RateLimitedError reports that a code was reissued too soon. It
// carries the seconds the caller must wait, surfaced as a Retry-After
// style field in 429 responses.
type RateLimitedError struct {
	RetryAfter int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %ds", e.RetryAfter)
}

// CodePolicy parameterizes one instance of the single-use code
// pattern: how the plaintext looks, how long it stays valid and how
// often it may be reissued.
type CodePolicy struct {
	TTL         time.Duration
	ResendEvery time.Duration
	Generate    func() (string, error)
}

// VerificationPolicy covers email verification: a 6-digit code a
// person can type, valid for a day, resendable at most once a minute.
var VerificationPolicy = CodePolicy{
	TTL:         24 * time.Hour,
	ResendEvery: time.Minute,
	Generate:    func() (string, error) { return utils.NumericCode(6) },
}

// ResetPolicy covers password reset: a 32-byte token delivered inside
// a link, valid for an hour, resendable every five minutes.
var ResetPolicy = CodePolicy{
	TTL:         time.Hour,
	ResendEvery: 5 * time.Minute,
	Generate:    func() (string, error) { return utils.RandomHex(32) },
}

// UserCodeStore is the slice of the credential store this workflow
// writes through. Each method is a single UPDATE so a code and the
// state it authorizes always move together.
type UserCodeStore interface {
	SetVerifyCode(ctx context.Context, id uint64, hash string, expiresAt, issuedAt time.Time) error
	MarkEmailVerified(ctx context.Context, id uint64) error
	SetResetToken(ctx context.Context, id uint64, hash string, expiresAt, issuedAt time.Time) error
	UpdatePassword(ctx context.Context, id uint64, newPassword string, cost int) error
}

// SessionRevoker lets a completed password reset cut off every live
// session of the identity.
type SessionRevoker interface {
	InvalidateAllForUser(ctx context.Context, userID uint64) error
}

// SecurityCodes implements the issue / throttle-check / consume
// lifecycle for both code kinds. Now is swappable so tests can pin the
// clock.
type SecurityCodes struct {
	Users      UserCodeStore
	Sessions   SessionRevoker
	BcryptCost int
	Now        func() time.Time
}

func NewSecurityCodes(users UserCodeStore, sessions SessionRevoker, bcryptCost int) *SecurityCodes {
	return &SecurityCodes{Users: users, Sessions: sessions, BcryptCost: bcryptCost, Now: time.Now}
}

// IssueVerification mints a fresh verification code for the user,
// stores its digest with expiry and issued-at, and returns the
// plaintext for out-of-band delivery. Any previously pending code is
// overwritten and becomes unverifiable immediately.
func (s *SecurityCodes) IssueVerification(ctx context.Context, userID uint64) (string, error) {
	return s.issue(ctx, userID, VerificationPolicy, s.Users.SetVerifyCode)
}

// IssueReset is the reset-token counterpart of IssueVerification.
func (s *SecurityCodes) IssueReset(ctx context.Context, userID uint64) (string, error) {
	return s.issue(ctx, userID, ResetPolicy, s.Users.SetResetToken)
}

func (s *SecurityCodes) issue(ctx context.Context, userID uint64, p CodePolicy,
	store func(context.Context, uint64, string, time.Time, time.Time) error) (string, error) {
	plain, err := p.Generate()
	if err != nil {
		return "", err
	}
	now := s.Now().UTC()
	if err := store(ctx, userID, utils.HashToken(plain), now.Add(p.TTL), now); err != nil {
		return "", err
	}
	return plain, nil
}

// CanReissueVerification refuses a reissue while the previous code's
// issued-at is still inside the resend window. The issued-at column is
// stored explicitly rather than derived from the expiry, so the check
// survives window-constant changes and clock skew between writes.
func (s *SecurityCodes) CanReissueVerification(u model.User) error {
	return s.canReissue(u.VerifyCodeIssuedAt, VerificationPolicy)
}

// CanReissueReset is the reset-token counterpart.
func (s *SecurityCodes) CanReissueReset(u model.User) error {
	return s.canReissue(u.ResetTokenIssuedAt, ResetPolicy)
}

func (s *SecurityCodes) canReissue(issuedAt *time.Time, p CodePolicy) error {
	if issuedAt == nil {
		return nil
	}
	elapsed := s.Now().UTC().Sub(issuedAt.UTC())
	if elapsed >= p.ResendEvery {
		return nil
	}
	wait := int(math.Ceil((p.ResendEvery - elapsed).Seconds()))
	if wait < 1 {
		wait = 1
	}
	return &RateLimitedError{RetryAfter: wait}
}

// ConsumeVerification validates the supplied code against the pending
// digest and, on success, marks the email verified and clears the code
// in one repository statement. Verifying an already verified account
// is a no-op success so duplicate clicks stay idempotent.
func (s *SecurityCodes) ConsumeVerification(ctx context.Context, u model.User, code string) error {
	if u.IsEmailVerified {
		return nil
	}
	if err := s.check(u.VerifyCodeHash, u.VerifyCodeExpiresAt, code); err != nil {
		return err
	}
	return s.Users.MarkEmailVerified(ctx, u.ID)
}

// ValidateReset checks a reset token without consuming it, for the
// pre-flight endpoint the reset form calls before showing itself.
func (s *SecurityCodes) ValidateReset(u model.User, token string) error {
	return s.check(u.ResetTokenHash, u.ResetTokenExpiresAt, token)
}

// ConsumeReset validates the reset token, stores the new password
// (which clears the token in the same statement) and revokes every
// live session of the identity.
func (s *SecurityCodes) ConsumeReset(ctx context.Context, u model.User, token, newPassword string) error {
	if err := s.check(u.ResetTokenHash, u.ResetTokenExpiresAt, token); err != nil {
		return err
	}
	if err := s.Users.UpdatePassword(ctx, u.ID, newPassword, s.BcryptCost); err != nil {
		return err
	}
	return s.Sessions.InvalidateAllForUser(ctx, u.ID)
}

// check is the shared validity rule: a pending digest must exist, the
// supplied plaintext must hash to it, and the stored expiry must be in
// the future at the time of the check.
func (s *SecurityCodes) check(storedHash string, expiresAt *time.Time, plain string) error {
	if storedHash == "" || expiresAt == nil {
		return ErrInvalidOrExpiredCode
	}
	supplied := utils.HashToken(plain)
	if subtle.ConstantTimeCompare([]byte(supplied), []byte(storedHash)) != 1 {
		return ErrInvalidOrExpiredCode
	}
	if s.Now().UTC().After(expiresAt.UTC()) {
		return ErrInvalidOrExpiredCode
	}
	return nil
}
