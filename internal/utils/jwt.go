package utils // package utils provides token minting, verification and hashing helpers

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and parsing signed tokens

	"github.com/finwise/auth-service/internal/model"
)

// Token classes. Every issued JWT carries its class in the `cls` claim
// and each class is signed with its own secret, so a refresh token can
// never verify as an access token even if the claim were forged.
const (
	ClassAccess  = "access"
	ClassRefresh = "refresh"
)

// ErrInvalidToken is the single error returned for every verification
// failure: bad signature, expired, wrong class, wrong algorithm or
// malformed input. Callers must not distinguish these cases in
// user-facing responses, otherwise the service becomes a verification
// oracle for attackers probing stolen tokens.
var ErrInvalidToken = errors.New("invalid token")

// AccessClaims are the claims asserted by a short-lived access token:
// subject id, email, role and the class marker.
type AccessClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Class string `json:"cls"`
	jwt.RegisteredClaims
}

// RefreshClaims are the claims asserted by a long-lived refresh token.
// Only the subject id and class marker; the session row in the registry
// carries everything else.
type RefreshClaims struct {
	Class string `json:"cls"`
	jwt.RegisteredClaims
}

// IssuedToken bundles a signed token string with its expiry so callers
// can derive cookie max-age and session expiry from one source.
type IssuedToken struct {
	Value     string    // the serialized JWT string
	ExpiresAt time.Time // UTC expiration time
}

// TokenCodec mints and verifies the two token classes. It is pure and
// stateless: no I/O, no clock beyond time.Now at issue/verify.
type TokenCodec struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

// NewTokenCodec builds a codec from the two class secrets and TTLs.
// The secrets must differ; sharing one secret across classes would make
// the class marker the only line of defense against token confusion.
func NewTokenCodec(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssueAccess signs an HS256 access token asserting subject id, email
// and role. The expiry is the codec's access TTL from now.
func (c *TokenCodec) IssueAccess(userID uint64, email string, role model.Role) (IssuedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(c.accessTTL)
	claims := &AccessClaims{
		Email: email,
		Role:  role.String(),
		Class: ClassAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.accessSecret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Value: signed, ExpiresAt: exp}, nil
}

// IssueRefresh signs an HS256 refresh token asserting only the subject
// id. The expiry is the codec's refresh TTL from now.
func (c *TokenCodec) IssueRefresh(userID uint64) (IssuedToken, error) {
	now := time.Now().UTC()
	exp := now.Add(c.refreshTTL)
	claims := &RefreshClaims{
		Class: ClassRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.refreshSecret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Value: signed, ExpiresAt: exp}, nil
}

// VerifyAccess returns the decoded claims if the token was signed with
// the access secret, has not expired and carries the access class
// marker. Any failure collapses to ErrInvalidToken.
func (c *TokenCodec) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.accessSecret, nil
	})
	if err != nil || !tok.Valid || claims.Class != ClassAccess {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh is the refresh-class counterpart of VerifyAccess.
func (c *TokenCodec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.refreshSecret, nil
	})
	if err != nil || !tok.Valid || claims.Class != ClassRefresh {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SubjectID parses the numeric subject of access claims.
func (a *AccessClaims) SubjectID() (uint64, error) {
	return strconv.ParseUint(a.Subject, 10, 64)
}

// SubjectID parses the numeric subject of refresh claims.
func (r *RefreshClaims) SubjectID() (uint64, error) {
	return strconv.ParseUint(r.Subject, 10, 64)
}
