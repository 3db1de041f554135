package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/finwise/auth-service/internal/handler"
	"github.com/finwise/auth-service/internal/middleware"
	"github.com/finwise/auth-service/internal/model"
)

// Register wires every route of the service onto the Echo instance.
//
// The unauthenticated auth operations live under /v1/auth. The guess
// middleware (Redis token bucket) wraps the three endpoints an
// attacker can iterate on: password guessing on login and account
// probing or mail-bombing on the two email-driven flows. Protected
// endpoints go through authn, the authentication gateway.
func Register(e *echo.Echo, a *handler.AuthHandler, authn, guess echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, guess)
	g.POST("/logout", a.Logout)
	g.POST("/refresh", a.Refresh)
	g.POST("/verify-email", a.VerifyEmail)
	g.POST("/resend-verification", a.ResendVerification, guess)
	g.POST("/forgot-password", a.ForgotPassword, guess)
	g.POST("/reset-password", a.ResetPassword)
	g.POST("/validate-reset-token", a.ValidateResetToken)

	e.GET("/v1/me", a.Me, authn)

	admin := e.Group("/v1/admin", authn, middleware.RequireRole(model.RoleAdmin.String()))
	admin.PATCH("/users/:id/active", a.SetUserActive)
}
