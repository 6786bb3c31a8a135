package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/matchpoint/internal/models"
)

// UserServiceInterface defines the contract for the identity directory.
type UserServiceInterface interface {
	Create(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context, limit, offset int) ([]models.UserSummary, error)
	UsernamesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, profile models.Profile) (*models.User, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs models.Preferences) (*models.User, error)
	Delete(ctx context.Context, userID uuid.UUID) error
	Matches(ctx context.Context, userID uuid.UUID) ([]*models.User, error)
}

// AuthServiceInterface defines the contract for authentication operations.
type AuthServiceInterface interface {
	HashPassword(password string) (string, error)
	VerifyPassword(hash, password string) bool
	GenerateSessionToken() (token string, hash string, err error)
	CreateSession(ctx context.Context, userID uuid.UUID) (token string, err error)
	ValidateSession(ctx context.Context, token string) (*models.User, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error
}

// FriendServiceInterface defines the contract for friendship operations.
type FriendServiceInterface interface {
	IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	IsNotFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	SendRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.FriendRequest, error)
	RemoveRequest(ctx context.Context, fromID, toID uuid.UUID) error
	AcceptRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.Friendship, error)
	RejectRequest(ctx context.Context, fromID, toID uuid.UUID) error
	RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error)
	ListRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	ListSentRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
}

// FriendChecker is the lightweight friendship lookup the post store needs.
type FriendChecker interface {
	IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
}

// PostServiceInterface defines the contract for the post store.
type PostServiceInterface interface {
	Create(ctx context.Context, params models.CreatePostParams) (*models.Post, error)
	GetByID(ctx context.Context, viewerID, postID uuid.UUID) (*models.Post, error)
	ListByAuthor(ctx context.Context, viewerID, authorID uuid.UUID) ([]models.Post, error)
	ListPublic(ctx context.Context, limit int) ([]models.Post, error)
	Update(ctx context.Context, callerID, postID uuid.UUID, params models.UpdatePostParams) (*models.Post, error)
	Delete(ctx context.Context, callerID, postID uuid.UUID) error
}

// ReputationServiceInterface defines the contract for the skill score ledger.
type ReputationServiceInterface interface {
	GetStat(ctx context.Context, id uuid.UUID) (*models.Stat, error)
	ExpireStat(ctx context.Context, caller, id uuid.UUID) error
	GetScore(ctx context.Context, userID uuid.UUID) (*models.SkillScore, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}
