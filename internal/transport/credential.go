// Package transport abstracts how token credentials travel between
// client and server, so the auth core is not coupled to any one
// framework's request/response types. The default carrier is cookies;
// a header-based carrier can satisfy the same interface.
package transport

import (
	"net/http"
	"time"
)

// Credential names used by the cookie carrier and the handlers.
const (
	AccessTokenName  = "access_token"
	RefreshTokenName = "refresh_token"
)

// CredentialCarrier extracts a named credential from an inbound
// request and attaches or clears one on an outbound response.
type CredentialCarrier interface {
	Extract(r *http.Request, name string) (string, bool)
	Attach(w http.ResponseWriter, name, value string, ttl time.Duration)
	Clear(w http.ResponseWriter, name string)
}

// CookieCarrier moves credentials in httpOnly cookies scoped to the
// whole site with SameSite=Lax. Secure is on outside dev so tokens
// never travel over plain HTTP in production.
type CookieCarrier struct {
	Secure bool
}

func (c *CookieCarrier) Extract(r *http.Request, name string) (string, bool) {
	ck, err := r.Cookie(name)
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}

func (c *CookieCarrier) Attach(w http.ResponseWriter, name, value string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (c *CookieCarrier) Clear(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
