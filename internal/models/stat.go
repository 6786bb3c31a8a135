package models

import (
	"time"

	"github.com/google/uuid"
)

// StatLifetime is how long a stat stays current after it is recorded.
const StatLifetime = 365 * 24 * time.Hour

// OutcomeToken is the post content that reports a win for the author.
const OutcomeToken = "win"

// Outcome is the match result a post reports, from the author's side.
type Outcome int

const (
	OutcomeOther Outcome = iota
	OutcomeWin
)

// ParseOutcome decides the outcome of a post's content. Anything other than
// the exact win token counts as a loss for the author.
func ParseOutcome(content string) Outcome {
	if content == OutcomeToken {
		return OutcomeWin
	}
	return OutcomeOther
}

func (o Outcome) Won() bool {
	return o == OutcomeWin
}

func (o Outcome) String() string {
	if o == OutcomeWin {
		return "win"
	}
	return "other"
}

// Delta is the score change the outcome applies to the reporting user.
// The opponent always receives the negation.
func (o Outcome) Delta(magnitude int64) int64 {
	if o == OutcomeWin {
		return magnitude
	}
	return -magnitude
}

// StatState tracks a stat through created -> edited* -> expired.
type StatState string

const (
	StatStateCreated StatState = "created"
	StatStateEdited  StatState = "edited"
	StatStateExpired StatState = "expired"
)

type Stat struct {
	ID           uuid.UUID  `json:"id"`
	PostID       *uuid.UUID `json:"post_id,omitempty"`
	User1ID      uuid.UUID  `json:"user1_id"`
	User2ID      uuid.UUID  `json:"user2_id"`
	Token        string     `json:"stat"`
	Won          bool       `json:"won"`
	AppliedDelta int64      `json:"applied_delta"`
	Revisions    int        `json:"revisions"`
	CreatedAt    time.Time  `json:"created_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

func (s *Stat) Outcome() Outcome {
	if s.Won {
		return OutcomeWin
	}
	return OutcomeOther
}

// State reports where the stat is in its lifecycle. Expired stats are
// removed, so a loaded stat is either created or edited.
func (s *Stat) State() StatState {
	if s.Revisions > 0 {
		return StatStateEdited
	}
	return StatStateCreated
}

// Due reports whether the stat has outlived StatLifetime.
func (s *Stat) Due(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type SkillScore struct {
	UserID    uuid.UUID `json:"user_id"`
	Score     int64     `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LeaderboardEntry struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username,omitempty"`
	Score    int64     `json:"score"`
	Rank     int64     `json:"rank"`
}
