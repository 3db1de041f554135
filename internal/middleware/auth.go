package middleware // middleware contains reusable HTTP middleware for the auth service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/finwise/auth-service/internal/model"
	"github.com/finwise/auth-service/internal/repository"
	"github.com/finwise/auth-service/internal/transport"
	"github.com/finwise/auth-service/internal/utils"
)

// IdentityKey is the context key under which Authenticate stores the
// resolved model.Identity for downstream handlers.
const IdentityKey = "identity"

// UserStore is the slice of the credential store the gateway needs: a
// secret-free lookup by id.
type UserStore interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Authenticate is the request-time authentication gateway. It extracts
// the access token from the credential carrier, verifies it with the
// codec, confirms the subject still exists and is active, and stores a
// minimal identity in the request context. It is a pure read-time
// gate: it never refreshes or rotates tokens.
//
// Every verification failure, including an unknown subject or a role
// claim outside the closed role set, answers 401 with the same generic
// body; a deactivated account answers 403. A 404 is never returned
// here so the gateway cannot be used to probe which accounts exist.
func Authenticate(codec *utils.TokenCodec, users UserStore, creds transport.CredentialCarrier) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := creds.Extract(c.Request(), transport.AccessTokenName)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			claims, err := codec.VerifyAccess(raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			// The role claim must be one of the known roles; an open
			// string would let a forged or future claim pass through.
			role, err := model.ParseRole(claims.Role)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			id, err := claims.SubjectID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			u, err := users.GetByID(ctx, id)
			if err != nil {
				if errors.Is(err, repository.ErrUserNotFound) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
				}
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
			}
			if !u.IsActive {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "account deactivated"})
			}

			c.Set(IdentityKey, model.Identity{ID: u.ID, Email: u.Email, Role: u.Role})
			c.Set("role", role.String())
			return next(c)
		}
	}
}
