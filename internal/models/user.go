package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID   `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	Profile      Profile     `json:"profile"`
	Preferences  Preferences `json:"preferences"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// Profile describes the player a user is.
type Profile struct {
	Gender   string   `json:"gender"`
	Sports   []string `json:"sports"`
	Skill    int      `json:"skill"`
	Location string   `json:"location"`
}

// Preferences describes the players a user wants to be matched with.
type Preferences struct {
	GenderPref    string   `json:"gender_pref"`
	SportsPref    []string `json:"sports_pref"`
	SkillMin      int      `json:"skill_min"`
	SkillMax      int      `json:"skill_max"`
	LocationRange int      `json:"location_range"`
}

// GenderAny in a preference matches every gender.
const GenderAny = "any"

type CreateUserParams struct {
	Username     string
	PasswordHash string
	Profile      Profile
	Preferences  Preferences
}

type UserSummary struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}
