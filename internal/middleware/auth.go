package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/HammerMeetNail/matchpoint/internal/handlers"
	"github.com/HammerMeetNail/matchpoint/internal/logging"
	"github.com/HammerMeetNail/matchpoint/internal/services"
)

const (
	sessionCookieName = "session_token"
	bearerPrefix      = "Bearer "
)

var log = logging.Default.Named("middleware")

type AuthMiddleware struct {
	authService services.AuthServiceInterface
}

func NewAuthMiddleware(authService services.AuthServiceInterface) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate resolves the session token to a user and stores it in the
// request context. Unauthenticated requests pass through untouched.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" || m.authService == nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.authService.ValidateSession(r.Context(), token)
		switch {
		case errors.Is(err, services.ErrNotFound):
			// stale or logged-out token
		case err != nil:
			log.WithError(err).Warn("Session validation failed")
		default:
			r = r.WithContext(handlers.SetUserInContext(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// sessionToken reads the session cookie, falling back to a bearer token
// for non-browser clients.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, bearerPrefix) {
		return strings.TrimSpace(auth[len(bearerPrefix):])
	}
	return ""
}

// RequireAuth rejects unauthenticated requests with 401.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
