// Package repository implements data access for identities and
// sessions over database/sql. Sentinel errors defined here let
// handlers map storage outcomes onto the HTTP taxonomy without
// inspecting driver errors: ErrEmailExists becomes a 409, while
// ErrUserNotFound is translated to a generic 401 on authentication
// paths so account existence is never leaked.
package repository

import "errors"

// ErrEmailExists is returned when registration collides with an
// already registered email (case-insensitive).
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound is returned when no identity matches the lookup.
// Auth-path handlers must collapse it into the same response as a bad
// password.
var ErrUserNotFound = errors.New("user not found")
