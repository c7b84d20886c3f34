// Package csrf provides CSRF protection using the double-submit cookie
// pattern.
//
// The session cookie authenticates requests implicitly, so a hostile
// page could fire state-changing requests with the user's cookie
// attached. The double-submit pattern defeats that: a random token is
// set in a cookie readable by the frontend, which must echo it back in
// a request header. Cross-origin pages can make the browser send the
// cookie but cannot read it, so they can never produce the header.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
)

const (
	// CookieName is the name of the CSRF token cookie. Not HttpOnly:
	// the frontend reads it to populate the header.
	CookieName = "homeworkai_csrf"

	// HeaderName is the request header the frontend echoes the token in.
	HeaderName = "X-CSRF-Token"

	// TokenLength is the number of random bytes per token.
	TokenLength = 32

	// CookieMaxAge is the lifetime of the CSRF cookie. Shorter than the
	// session cookie; tokens are reissued on login.
	CookieMaxAge = 24 * 3600
)

// GenerateToken creates a new random CSRF token.
func GenerateToken() (string, error) {
	bytes := make([]byte, TokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// SetTokenCookie issues a fresh CSRF token cookie. Called at login and
// registration.
func SetTokenCookie(w http.ResponseWriter, isSecure bool) error {
	token, err := GenerateToken()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		HttpOnly: false, // frontend must read it
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearTokenCookie removes the CSRF cookie. Called at logout.
func ClearTokenCookie(w http.ResponseWriter, isSecure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Validate compares the cookie token against the header token in
// constant time.
func Validate(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	header := r.Header.Get(HeaderName)
	if header == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) == 1
}

// Protect is middleware enforcing the double-submit check on unsafe
// methods. Safe methods (GET, HEAD, OPTIONS) pass through.
func Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if !Validate(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"CSRF token missing or invalid"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
