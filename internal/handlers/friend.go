package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/matchpoint/internal/models"
	"github.com/HammerMeetNail/matchpoint/internal/services"
)

type FriendHandler struct {
	friendService services.FriendServiceInterface
	userService   services.UserServiceInterface
}

func NewFriendHandler(friendService services.FriendServiceInterface, userService services.UserServiceInterface) *FriendHandler {
	return &FriendHandler{
		friendService: friendService,
		userService:   userService,
	}
}

type FriendsResponse struct {
	Friends []models.FriendWithUser `json:"friends"`
}

type FriendRequestsResponse struct {
	Requests []models.FriendRequestWithUser `json:"requests"`
	Sent     []models.FriendRequestWithUser `json:"sent"`
}

type FriendRequestResponse struct {
	Request *models.FriendRequest `json:"request"`
}

type FriendshipResponse struct {
	Friendship *models.Friendship `json:"friendship"`
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "listing friends")
		return
	}
	if friends == nil {
		friends = []models.FriendWithUser{}
	}

	writeJSON(w, http.StatusOK, FriendsResponse{Friends: friends})
}

func (h *FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	received, err := h.friendService.ListRequests(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "listing friend requests")
		return
	}
	sent, err := h.friendService.ListSentRequests(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, err, "listing sent friend requests")
		return
	}
	if received == nil {
		received = []models.FriendRequestWithUser{}
	}
	if sent == nil {
		sent = []models.FriendRequestWithUser{}
	}

	writeJSON(w, http.StatusOK, FriendRequestsResponse{Requests: received, Sent: sent})
}

// SendRequest sends a request from the caller to {username}.
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	user, other, ok := h.resolvePair(w, r)
	if !ok {
		return
	}

	req, err := h.friendService.SendRequest(r.Context(), user.ID, other.ID)
	if err != nil {
		writeServiceError(w, err, "sending friend request")
		return
	}

	writeJSON(w, http.StatusCreated, FriendRequestResponse{Request: req})
}

// RemoveRequest withdraws the caller's request to {username}.
func (h *FriendHandler) RemoveRequest(w http.ResponseWriter, r *http.Request) {
	user, other, ok := h.resolvePair(w, r)
	if !ok {
		return
	}

	if err := h.friendService.RemoveRequest(r.Context(), user.ID, other.ID); err != nil {
		writeServiceError(w, err, "removing friend request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Friend request removed"})
}

// AcceptRequest accepts the request {username} sent to the caller.
func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	user, other, ok := h.resolvePair(w, r)
	if !ok {
		return
	}

	friendship, err := h.friendService.AcceptRequest(r.Context(), other.ID, user.ID)
	if err != nil {
		writeServiceError(w, err, "accepting friend request")
		return
	}

	writeJSON(w, http.StatusOK, FriendshipResponse{Friendship: friendship})
}

// RejectRequest declines the request {username} sent to the caller.
func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	user, other, ok := h.resolvePair(w, r)
	if !ok {
		return
	}

	if err := h.friendService.RejectRequest(r.Context(), other.ID, user.ID); err != nil {
		writeServiceError(w, err, "rejecting friend request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Friend request rejected"})
}

func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	user, other, ok := h.resolvePair(w, r)
	if !ok {
		return
	}

	if err := h.friendService.RemoveFriend(r.Context(), user.ID, other.ID); err != nil {
		writeServiceError(w, err, "removing friend")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Friend removed"})
}

// resolvePair returns the caller and the user named by the {username} path
// segment, writing an error response when either is missing.
func (h *FriendHandler) resolvePair(w http.ResponseWriter, r *http.Request) (*models.User, *models.User, bool) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return nil, nil, false
	}

	other, err := h.userService.GetByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		writeServiceError(w, err, "resolving username")
		return nil, nil, false
	}
	return user, other, true
}
