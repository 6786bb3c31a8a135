package models

import (
	"time"

	"github.com/google/uuid"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityFriends Visibility = "friends"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPublic || v == VisibilityFriends
}

type Post struct {
	ID             uuid.UUID  `json:"id"`
	AuthorID       uuid.UUID  `json:"author_id"`
	Content        string     `json:"content"`
	ImageURL       *string    `json:"image_url,omitempty"`
	Visibility     Visibility `json:"visibility"`
	CollaboratorID *uuid.UUID `json:"collaborator_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	// Stat is set on create and update responses when the post reports a match.
	Stat *Stat `json:"stat,omitempty"`
}

type CreatePostParams struct {
	AuthorID       uuid.UUID
	Content        string
	ImageURL       *string
	Visibility     Visibility
	CollaboratorID *uuid.UUID
}

// UpdatePostParams holds the mutable fields of a post. Nil means unchanged.
// The collaborator is fixed when the post is created.
type UpdatePostParams struct {
	Content    *string
	ImageURL   *string
	Visibility *Visibility
}
