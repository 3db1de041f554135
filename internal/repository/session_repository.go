package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SessionRepo is the session registry: one row per sign-in, keyed by
// the SHA-256 hash of the refresh token issued for that sign-in.
// Invalidation is a soft `revoked_at` stamp, never a row update back to
// valid, so both terminal states of a session are absorbing.
type SessionRepo struct{ DB *sql.DB }

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{DB: db} }

// Create inserts a session row. It does not invalidate prior sessions;
// callers that enforce single-active-session run InvalidateAllForUser
// immediately before, in that order, within their own request.
func (r *SessionRepo) Create(ctx context.Context, userID uint64, tokenHash, userAgent, ip string, expiresAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token_hash, user_agent, ip, expires_at) VALUES (?,?,?,?,?)",
		userID, tokenHash, userAgent, ip, expiresAt)
	return err
}

// InvalidateAllForUser revokes every currently valid session of one
// identity. Idempotent: already revoked rows are untouched.
func (r *SessionRepo) InvalidateAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}

// InvalidateByTokenHash revokes the single session matching the hash.
// A missing or already revoked session is a no-op, not an error, so
// sign-out can never fail on a stale cookie.
func (r *SessionRepo) InvalidateByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE sessions SET revoked_at=UTC_TIMESTAMP() WHERE token_hash=? AND revoked_at IS NULL",
		tokenHash)
	return err
}

// IsUsable reports whether a session with the hash exists, is not
// revoked and has not expired, returning its owner when usable. The
// expiry is re-checked here against the clock on every read; a stale
// but unswept row is never treated as implicitly valid.
func (r *SessionRepo) IsUsable(ctx context.Context, tokenHash string) (uint64, bool, error) {
	var (
		userID    uint64
		expiresAt time.Time
		revokedAt sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT user_id, expires_at, revoked_at FROM sessions WHERE token_hash=? LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if revokedAt.Valid {
		return 0, false, nil
	}
	if time.Now().UTC().After(expiresAt) {
		return 0, false, nil
	}
	return userID, true, nil
}

// DeleteExpired reclaims rows past their hard expiry. MySQL has no TTL
// index, so cmd/server runs this on a ticker; correctness never depends
// on it because IsUsable re-checks expiry itself.
func (r *SessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
