package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfTokenBytes = 32
	csrfTTL        = 12 * time.Hour
)

// CSRFMiddleware implements the double-submit cookie pattern: state-changing
// requests must echo the csrf_token cookie in the X-CSRF-Token header.
// Requests authenticated only by a bearer token carry no ambient
// credentials and are exempt.
type CSRFMiddleware struct {
	secure bool
	now    func() time.Time
}

func NewCSRFMiddleware(secure bool) *CSRFMiddleware {
	return &CSRFMiddleware{secure: secure, now: time.Now}
}

func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isSafeMethod(r.Method) {
			if _, err := m.ensureToken(w, r); err != nil {
				log.WithError(err).Warn("Failed to issue CSRF token")
			}
			next.ServeHTTP(w, r)
			return
		}

		if bearerOnly(r) {
			next.ServeHTTP(w, r)
			return
		}

		if msg := checkCSRF(r); msg != "" {
			writeError(w, http.StatusForbidden, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkCSRF returns the rejection message, or "" when the header matches
// the cookie.
func checkCSRF(r *http.Request) string {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return "CSRF token missing"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "CSRF token header missing"
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return "CSRF token mismatch"
	}
	return ""
}

func bearerOnly(r *http.Request) bool {
	if _, err := r.Cookie(sessionCookieName); err == nil {
		return false
	}
	return strings.HasPrefix(r.Header.Get("Authorization"), bearerPrefix)
}

// GetToken returns the caller's CSRF token, issuing one if needed.
func (m *CSRFMiddleware) GetToken(w http.ResponseWriter, r *http.Request) {
	token, err := m.ensureToken(w, r)
	if err != nil {
		log.WithError(err).Error("Failed to generate CSRF token")
		writeError(w, http.StatusInternalServerError, "Failed to generate CSRF token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ensureToken reuses the request's token or sets a fresh cookie, and
// exposes the token in the response header either way.
func (m *CSRFMiddleware) ensureToken(w http.ResponseWriter, r *http.Request) (string, error) {
	token := ""
	if cookie, err := r.Cookie(csrfCookieName); err == nil {
		token = cookie.Value
	}
	if token == "" {
		var err error
		if token, err = newCSRFToken(); err != nil {
			return "", err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			MaxAge:   int(csrfTTL / time.Second),
			Expires:  m.now().Add(csrfTTL),
			HttpOnly: false, // read by the browser client to echo in the header
			Secure:   m.secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
	w.Header().Set(csrfHeaderName, token)
	return token, nil
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func newCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
