package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// FriendRequest is pending for as long as the row exists.
type FriendRequest struct {
	FromID    uuid.UUID `json:"from_id"`
	ToID      uuid.UUID `json:"to_id"`
	CreatedAt time.Time `json:"created_at"`
}

type FriendRequestWithUser struct {
	FriendRequest
	FromUsername string `json:"from_username"`
	ToUsername   string `json:"to_username"`
}

// Friendship is an undirected edge. UserLow always sorts before UserHigh.
type Friendship struct {
	UserLow   uuid.UUID `json:"user_low"`
	UserHigh  uuid.UUID `json:"user_high"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderedPair returns a and b sorted by their byte representation.
func OrderedPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) > 0 {
		return b, a
	}
	return a, b
}

// Other returns the member of the edge that is not userID.
func (f Friendship) Other(userID uuid.UUID) uuid.UUID {
	if f.UserLow == userID {
		return f.UserHigh
	}
	return f.UserLow
}

type FriendWithUser struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}
