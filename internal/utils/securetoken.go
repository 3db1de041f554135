package utils

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 hashing for stored token digests
	"encoding/hex"  // hex encoding of random bytes and digests
	"fmt"
	"math/big"
)

// NumericCode returns a zero-padded numeric code with the given number
// of digits, e.g. "042913" for digits=6. Used for email verification
// codes that a person types by hand.
func NumericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}

// RandomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data. Used for password reset tokens
// delivered inside a link, where length does not matter.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hex digest of a plaintext token. Only
// the digest is ever persisted, so a leaked database row cannot be
// replayed as a refresh token, verification code or reset token. A fast
// digest is fine here: unlike passwords these values are high entropy
// or resend-throttled.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
