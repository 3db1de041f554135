package model

import "time"

// Session models an entry in the `sessions` table. One row is created
// per successful sign-in and pairs 1:1 with the refresh token issued by
// that sign-in. The plain token is not stored; only its SHA-256 hash.
//
// A session moves created → valid → {invalidated | expired} and both
// terminal states are absorbing: nothing ever re-activates a row.
// Validity is `RevokedAt == nil`, and usability additionally requires
// ExpiresAt to be in the future at read time.
//
// Fields:
//
//	ID        – primary key identifier.
//	UserID    – owner of the session.
//	TokenHash – SHA-256 hex digest of the refresh token, unique.
//	UserAgent – client user agent captured at sign-in.
//	IP        – client IP captured at sign-in.
//	ExpiresAt – hard expiry of the session.
//	RevokedAt – when the session was invalidated (null while valid).
//	CreatedAt – timestamp of creation.
type Session struct {
	ID        uint64     // sessions.id
	UserID    uint64     // sessions.user_id
	TokenHash string     // sessions.token_hash
	UserAgent string     // sessions.user_agent
	IP        string     // sessions.ip
	ExpiresAt time.Time  // sessions.expires_at
	RevokedAt *time.Time // sessions.revoked_at (nullable)
	CreatedAt time.Time  // sessions.created_at
}
