package services

import (
	"github.com/google/uuid"

	"github.com/HammerMeetNail/matchpoint/internal/models"
)

// FilterVisible returns the posts of author that viewer may see, in their
// original order. An author sees everything, a friend sees public and
// friends-only posts and anyone else sees public posts.
func FilterVisible(viewer, author uuid.UUID, friends bool, posts []models.Post) []models.Post {
	visible := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if canView(viewer, author, friends, p.Visibility) {
			visible = append(visible, p)
		}
	}
	return visible
}

func canView(viewer, author uuid.UUID, friends bool, v models.Visibility) bool {
	switch {
	case viewer == author:
		return true
	case v == models.VisibilityPublic:
		return true
	case v == models.VisibilityFriends:
		return friends
	default:
		return false
	}
}
