package model

import (
	"fmt"
	"strings"
)

// Role is the closed set of privilege levels an identity can hold.
// Tokens carrying any other value are rejected at the gateway rather
// than passed through as an open string.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// ParseRole maps an arbitrary string onto the closed role set. The
// comparison is case-insensitive because roles arrive both from JWT
// claims and from database columns.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// String returns the column/claim representation of the role.
func (r Role) String() string { return string(r) }
