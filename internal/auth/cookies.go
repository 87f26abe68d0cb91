package auth

import (
	"net/http"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "sess"

// CookieConfig holds cookie transport settings
type CookieConfig struct {
	Domain string // Empty string = current host only
	Secure bool   // HTTPS only; disabled in development
	MaxAge int    // Seconds; should match the session TTL
}

// SetSessionCookie delivers a session token as an httpOnly cookie.
func SetSessionCookie(w http.ResponseWriter, token string, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   config.MaxAge,
		HttpOnly: true, // Prevents JavaScript access (XSS protection)
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie instructs the caller to discard its session
// cookie. The token itself remains valid until expiry; there is no
// server-side revocation.
func ClearSessionCookie(w http.ResponseWriter, config CookieConfig) {
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.Domain,
		MaxAge:   -1, // Negative MaxAge deletes the cookie
		HttpOnly: true,
		Secure:   config.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
}

// GetSessionCookie retrieves the session token from cookies.
func GetSessionCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
