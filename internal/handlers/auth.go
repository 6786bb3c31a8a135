package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/HammerMeetNail/matchpoint/internal/models"
	"github.com/HammerMeetNail/matchpoint/internal/services"
)

const (
	sessionCookieName = "session_token"
	sessionMaxAge     = int(30 * 24 * time.Hour / time.Second)

	minPasswordLen   = 8
	maxPasswordBytes = 72 // bcrypt ignores anything past this
)

var (
	errPasswordShort   = errors.New("password must be at least 8 characters")
	errPasswordLong    = errors.New("password must be at most 72 bytes")
	errPasswordClasses = errors.New("password must contain at least one uppercase letter, one lowercase letter, and one digit")
)

type AuthHandler struct {
	userService services.UserServiceInterface
	authService services.AuthServiceInterface
	secure      bool
}

func NewAuthHandler(userService services.UserServiceInterface, authService services.AuthServiceInterface, secure bool) *AuthHandler {
	return &AuthHandler{userService: userService, authService: authService, secure: secure}
}

type RegisterRequest struct {
	Username    string             `json:"username" validate:"required,min=3,max=30,alphanum"`
	Password    string             `json:"password" validate:"required"`
	Profile     ProfileRequest     `json:"profile"`
	Preferences PreferencesRequest `json:"preferences"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	User    *models.User `json:"user,omitempty"`
	Message string       `json:"message,omitempty"`
}

// Register creates the account with its profile, preferences and zero
// skill score, then logs the new user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := validatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		internalError(w, err, "hashing password")
		return
	}

	user, err := h.userService.Create(r.Context(), models.CreateUserParams{
		Username:     strings.TrimSpace(req.Username),
		PasswordHash: hash,
		Profile:      req.Profile.toModel(),
		Preferences:  req.Preferences.toModel(),
	})
	if err != nil {
		writeServiceError(w, err, "creating user")
		return
	}

	h.startSession(w, r, user, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.userService.GetByUsername(r.Context(), req.Username)
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	case err != nil:
		internalError(w, err, "getting user")
		return
	}

	if !h.authService.VerifyPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}

	h.startSession(w, r, user, http.StatusOK)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		_ = h.authService.DeleteSession(r.Context(), cookie.Value)
	}

	http.SetCookie(w, sessionCookie("", -1, h.secure))
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: user})
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, user *models.User, status int) {
	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		internalError(w, err, "creating session")
		return
	}
	h.setSessionCookie(w, token)
	writeJSON(w, status, AuthResponse{User: user})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, sessionCookie(token, sessionMaxAge, h.secure))
}

// sessionCookie builds the session cookie; a negative maxAge clears it.
func sessionCookie(value string, maxAge int, secure bool) *http.Cookie {
	c := &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	}
	if maxAge < 0 {
		c.Expires = time.Unix(0, 0)
	}
	return c
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return errPasswordShort
	}
	if len(password) > maxPasswordBytes {
		return errPasswordLong
	}

	var upper, lower, digit bool
	for _, c := range password {
		upper = upper || unicode.IsUpper(c)
		lower = lower || unicode.IsLower(c)
		digit = digit || unicode.IsDigit(c)
	}
	if !upper || !lower || !digit {
		return errPasswordClasses
	}
	return nil
}
