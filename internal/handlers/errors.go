package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HammerMeetNail/matchpoint/internal/logging"
	"github.com/HammerMeetNail/matchpoint/internal/services"
)

var log = logging.Default.Named("handlers")

type ErrorResponse struct {
	Error string `json:"error"`
}

type errorMapping struct {
	target  error
	status  int
	message string
}

// Specific errors are checked before their kinds so clients get a precise message.
var serviceErrorMappings = []errorMapping{
	{services.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{services.ErrUsernameTaken, http.StatusConflict, "Username already taken"},
	{services.ErrInvalidPreferences, http.StatusBadRequest, "Minimum skill must not exceed maximum skill"},

	{services.ErrCannotFriendSelf, http.StatusBadRequest, "Cannot send friend request to yourself"},
	{services.ErrFriendRequestExists, http.StatusConflict, "Friend request already exists"},
	{services.ErrAlreadyFriends, http.StatusBadRequest, "Already friends"},
	{services.ErrFriendRequestNotFound, http.StatusNotFound, "Friend request not found"},
	{services.ErrFriendshipNotFound, http.StatusNotFound, "Friendship not found"},
	{services.ErrFriendshipConflict, http.StatusConflict, "Friendship changed, please retry"},

	{services.ErrPostNotFound, http.StatusNotFound, "Post not found"},
	{services.ErrNotPostAuthor, http.StatusForbidden, "Only the author can change this post"},
	{services.ErrEmptyPost, http.StatusBadRequest, "Post content is required"},
	{services.ErrInvalidVisibility, http.StatusBadRequest, "Visibility must be public or friends"},

	{services.ErrStatNotFound, http.StatusNotFound, "Stat not found"},
	{services.ErrInvalidStat, http.StatusBadRequest, "A match needs two different players"},
	{services.ErrNotStatOwner, http.StatusForbidden, "Only the reporting user can do that"},
	{services.ErrScoreNotFound, http.StatusNotFound, "Skill score not found"},

	{services.ErrNotFound, http.StatusNotFound, "Not found"},
	{services.ErrInvalidRequest, http.StatusBadRequest, "Invalid request"},
	{services.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{services.ErrConflict, http.StatusConflict, "Conflict"},
}

// writeServiceError maps a service error onto a status code. Anything
// unrecognised is logged and reported as a 500.
func writeServiceError(w http.ResponseWriter, err error, action string) {
	for _, m := range serviceErrorMappings {
		if errors.Is(err, m.target) {
			writeError(w, m.status, m.message)
			return
		}
	}

	internalError(w, err, action)
}

// internalError logs err and hides it behind a generic 500.
func internalError(w http.ResponseWriter, err error, action string) {
	log.WithError(err).Error("Error " + action)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
