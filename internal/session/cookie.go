// Package session carries the per-browser conversation identity as an
// opaque cookie token. The cookie is the only identity mechanism; no
// authentication sits on top of it.
package session

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/parleylabs/parley/internal/config"
)

// CookieName is the session cookie attached to browser responses.
const CookieName = "session"

// FromRequest returns the session token carried by the request, if any.
func FromRequest(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// NewToken mints a fresh opaque session identifier.
func NewToken() string {
	return uuid.NewString()
}

// Cookie builds the session cookie for the given token.
func Cookie(token string, cfg config.SessionConfig) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   cfg.CookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   cfg.CookieSecure,
	}
}

// Set attaches the session cookie to the response.
func Set(w http.ResponseWriter, token string, cfg config.SessionConfig) {
	http.SetCookie(w, Cookie(token, cfg))
}
