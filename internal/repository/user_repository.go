package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/finwise/auth-service/internal/model"
	"github.com/finwise/auth-service/internal/utils"
)

// UserRepo is the credential store: it owns the `users` table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// CreateParams are the registration inputs. Password is the raw
// password; it is hashed here and never persisted as supplied.
type CreateParams struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	OrgName   string
	Role      model.Role
}

const userColumns = "id,email,first_name,last_name,org_name,role,is_active,is_email_verified," +
	"last_password_change,last_login,last_ip,last_user_agent,created_at,updated_at"

const userSecretColumns = userColumns + ",password_hash," +
	"verify_code_hash,verify_code_expires_at,verify_code_issued_at," +
	"reset_token_hash,reset_token_expires_at,reset_token_issued_at"

// Create inserts a new identity and returns its ID. New rows start
// active and unverified. A duplicate email maps to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, p CreateParams, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))
	hash, err := utils.HashPassword(p.Password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, first_name, last_name, org_name, role, is_active, is_email_verified, last_password_change) "+
			"VALUES (?,?,?,?,?,?,1,0,UTC_TIMESTAMP())",
		email, hash, p.FirstName, p.LastName, nullString(p.OrgName), p.Role.String())
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == 1062 {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email. The password hash and
// one-time-code columns are not part of the projection; workflows that
// compare against them must use GetByEmailWithSecrets.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	return r.scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		strings.ToLower(strings.TrimSpace(email))))
}

// GetByID fetches a user by id without secret columns.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return r.scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// GetByEmailWithSecrets fetches a user including the password hash and
// pending one-time-code columns.
func (r *UserRepo) GetByEmailWithSecrets(ctx context.Context, email string) (model.User, error) {
	return r.scanUserWithSecrets(r.DB.QueryRowContext(ctx,
		"SELECT "+userSecretColumns+" FROM users WHERE email=? LIMIT 1",
		strings.ToLower(strings.TrimSpace(email))))
}

// GetByIDWithSecrets fetches a user by id including secret columns.
func (r *UserRepo) GetByIDWithSecrets(ctx context.Context, id uint64) (model.User, error) {
	return r.scanUserWithSecrets(r.DB.QueryRowContext(ctx,
		"SELECT "+userSecretColumns+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdatePassword rehashes and stores a new password, stamps the change
// and clears any pending reset token, all in one statement so a
// consumed token can never survive the password it authorized.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, newPassword string, cost int) error {
	hash, err := utils.HashPassword(newPassword, cost)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		"UPDATE users SET password_hash=?, last_password_change=UTC_TIMESTAMP(), "+
			"reset_token_hash=NULL, reset_token_expires_at=NULL, reset_token_issued_at=NULL WHERE id=?",
		hash, id)
	return err
}

// SetActive flips the activation flag. The record and its history are
// kept; deactivation is never a deletion.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_active=? WHERE id=?", active, id)
	return err
}

// SetVerifyCode stores a fresh verification-code digest with its expiry
// and issued-at. Any previous pending code is overwritten and thereby
// becomes unverifiable.
func (r *UserRepo) SetVerifyCode(ctx context.Context, id uint64, hash string, expiresAt, issuedAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET verify_code_hash=?, verify_code_expires_at=?, verify_code_issued_at=? WHERE id=?",
		hash, expiresAt, issuedAt, id)
	return err
}

// MarkEmailVerified flips the verified flag and clears the pending code
// in the same statement; a consumed code and the state it authorized
// always move together.
func (r *UserRepo) MarkEmailVerified(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET is_email_verified=1, "+
			"verify_code_hash=NULL, verify_code_expires_at=NULL, verify_code_issued_at=NULL WHERE id=?",
		id)
	return err
}

// SetResetToken stores a fresh reset-token digest with its expiry and
// issued-at, overwriting any previous pending token.
func (r *UserRepo) SetResetToken(ctx context.Context, id uint64, hash string, expiresAt, issuedAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET reset_token_hash=?, reset_token_expires_at=?, reset_token_issued_at=? WHERE id=?",
		hash, expiresAt, issuedAt, id)
	return err
}

// RecordLogin captures sign-in metadata on the identity.
func (r *UserRepo) RecordLogin(ctx context.Context, id uint64, ip, userAgent string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login=UTC_TIMESTAMP(), last_ip=?, last_user_agent=? WHERE id=?",
		ip, userAgent, id)
	return err
}

type rowScanner interface{ Scan(dest ...any) error }

func (r *UserRepo) scanUser(row rowScanner) (model.User, error) {
	var (
		u         model.User
		org       sql.NullString
		roleStr   string
		lastLogin sql.NullTime
		lastIP    sql.NullString
		lastUA    sql.NullString
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &org, &roleStr,
		&u.IsActive, &u.IsEmailVerified, &u.LastPasswordChange, &lastLogin,
		&lastIP, &lastUA, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	role, err := model.ParseRole(roleStr)
	if err != nil {
		return model.User{}, err
	}
	u.Role = role
	u.OrgName = org.String
	u.LastIP = lastIP.String
	u.LastUserAgent = lastUA.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return u, nil
}

func (r *UserRepo) scanUserWithSecrets(row rowScanner) (model.User, error) {
	var (
		u          model.User
		org        sql.NullString
		roleStr    string
		lastLogin  sql.NullTime
		lastIP     sql.NullString
		lastUA     sql.NullString
		vHash      sql.NullString
		vExpires   sql.NullTime
		vIssued    sql.NullTime
		rstHash    sql.NullString
		rstExpires sql.NullTime
		rstIssued  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &org, &roleStr,
		&u.IsActive, &u.IsEmailVerified, &u.LastPasswordChange, &lastLogin,
		&lastIP, &lastUA, &u.CreatedAt, &u.UpdatedAt,
		&u.PasswordHash,
		&vHash, &vExpires, &vIssued,
		&rstHash, &rstExpires, &rstIssued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	role, err := model.ParseRole(roleStr)
	if err != nil {
		return model.User{}, err
	}
	u.Role = role
	u.OrgName = org.String
	u.LastIP = lastIP.String
	u.LastUserAgent = lastUA.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	u.VerifyCodeHash = vHash.String
	u.VerifyCodeExpiresAt = nullTimePtr(vExpires)
	u.VerifyCodeIssuedAt = nullTimePtr(vIssued)
	u.ResetTokenHash = rstHash.String
	u.ResetTokenExpiresAt = nullTimePtr(rstExpires)
	u.ResetTokenIssuedAt = nullTimePtr(rstIssued)
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
