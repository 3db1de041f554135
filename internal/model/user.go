package model

import "time"

// User represents an identity record as stored in the `users` table.
// Each field corresponds to a column in the database. The json tags are
// omitted here because these structs are used internally by the
// repository layer; handlers define separate response types with
// appropriate JSON tags.
//
// The three verification-code columns (hash, expiry, issued-at) are set
// and cleared together, never independently, and the same holds for the
// reset-token columns. Repositories enforce this by touching all three
// in a single UPDATE. The plaintext of either code is never stored;
// only its SHA-256 hex digest.
//
// Fields:
//
//	ID                  – primary key identifier of the user.
//	Email               – unique email address, stored lowercase.
//	PasswordHash        – bcrypt hashed password. Empty unless the record
//	                      was loaded through a WithSecrets fetch.
//	FirstName           – given name supplied at registration.
//	LastName            – family name supplied at registration.
//	OrgName             – optional organization name (nullable).
//	Role                – closed role set, see role.go.
//	IsActive            – whether the account is active. Deactivation is
//	                      a flag, never a row deletion.
//	IsEmailVerified     – whether the email has been confirmed.
//	VerifyCodeHash      – SHA-256 digest of the pending verification code.
//	VerifyCodeExpiresAt – when the pending verification code lapses.
//	VerifyCodeIssuedAt  – when the pending verification code was minted;
//	                      drives the resend throttle.
//	ResetTokenHash      – SHA-256 digest of the pending reset token.
//	ResetTokenExpiresAt – when the pending reset token lapses.
//	ResetTokenIssuedAt  – when the pending reset token was minted.
//	LastPasswordChange  – timestamp of the most recent password write.
//	LastLogin           – timestamp of the most recent sign-in (nullable).
//	LastIP              – IP captured at the most recent sign-in.
//	LastUserAgent       – user agent captured at the most recent sign-in.
//	CreatedAt           – timestamp of creation.
//	UpdatedAt           – timestamp of last update.
type User struct {
	ID                  uint64     // users.id
	Email               string     // users.email
	PasswordHash        string     // users.password_hash (secret)
	FirstName           string     // users.first_name
	LastName            string     // users.last_name
	OrgName             string     // users.org_name (nullable)
	Role                Role       // users.role
	IsActive            bool       // users.is_active
	IsEmailVerified     bool       // users.is_email_verified
	VerifyCodeHash      string     // users.verify_code_hash (secret, nullable)
	VerifyCodeExpiresAt *time.Time // users.verify_code_expires_at (nullable)
	VerifyCodeIssuedAt  *time.Time // users.verify_code_issued_at (nullable)
	ResetTokenHash      string     // users.reset_token_hash (secret, nullable)
	ResetTokenExpiresAt *time.Time // users.reset_token_expires_at (nullable)
	ResetTokenIssuedAt  *time.Time // users.reset_token_issued_at (nullable)
	LastPasswordChange  time.Time  // users.last_password_change
	LastLogin           *time.Time // users.last_login (nullable)
	LastIP              string     // users.last_ip
	LastUserAgent       string     // users.last_user_agent
	CreatedAt           time.Time  // users.created_at
	UpdatedAt           time.Time  // users.updated_at
}

// FullName joins first and last name for notification payloads.
func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Identity is the minimal authenticated-identity view the gateway hands
// to downstream handlers. It never carries the password hash or any
// stored token material.
type Identity struct {
	ID    uint64 `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
