package handlers

import (
	"net/http"
	"strconv"

	"github.com/HammerMeetNail/matchpoint/internal/models"
	"github.com/HammerMeetNail/matchpoint/internal/services"
)

type UserHandler struct {
	userService services.UserServiceInterface
	authService services.AuthServiceInterface
	secure      bool
}

func NewUserHandler(userService services.UserServiceInterface, authService services.AuthServiceInterface, secure bool) *UserHandler {
	return &UserHandler{
		userService: userService,
		authService: authService,
		secure:      secure,
	}
}

type UserListResponse struct {
	Users []models.UserSummary `json:"users"`
}

type UserResponse struct {
	User *models.User `json:"user"`
}

type MatchesResponse struct {
	Matches []*models.User `json:"matches"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	users, err := h.userService.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err, "listing users")
		return
	}
	if users == nil {
		users = []models.UserSummary{}
	}

	writeJSON(w, http.StatusOK, UserListResponse{Users: users})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeServiceError(w, err, "getting user")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: user})
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, req.toModel())
	if err != nil {
		writeServiceError(w, err, "updating profile")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: updated})
}

func (h *UserHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req PreferencesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := h.userService.UpdatePreferences(r.Context(), user.ID, req.toModel())
	if err != nil {
		writeServiceError(w, err, "updating preferences")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: updated})
}

// Delete removes the caller's account. Sessions are dropped first so the
// cached copies in redis cannot outlive the user.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	if err := h.authService.DeleteAllUserSessions(r.Context(), user.ID); err != nil {
		log.WithError(err).Warn("Failed to delete sessions before account deletion", map[string]interface{}{
			"user_id": user.ID.String(),
		})
	}

	if err := h.userService.Delete(r.Context(), user.ID); err != nil {
		writeServiceError(w, err, "deleting user")
		return
	}

	http.SetCookie(w, sessionCookie("", -1, h.secure))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account deleted"})
}

func (h *UserHandler) Matches(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	matches, err := h.userService.Matches(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "finding matches")
		return
	}
	if matches == nil {
		matches = []*models.User{}
	}

	writeJSON(w, http.StatusOK, MatchesResponse{Matches: matches})
}

// queryInt parses an integer query parameter, falling back to def when it
// is missing or malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
