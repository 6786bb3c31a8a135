package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/matchpoint/internal/models"
)

type mockUserService struct {
	CreateFunc            func(ctx context.Context, params models.CreateUserParams) (*models.User, error)
	GetByIDFunc           func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsernameFunc     func(ctx context.Context, username string) (*models.User, error)
	ListFunc              func(ctx context.Context, limit, offset int) ([]models.UserSummary, error)
	UsernamesByIDsFunc    func(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	UpdateProfileFunc     func(ctx context.Context, userID uuid.UUID, profile models.Profile) (*models.User, error)
	UpdatePreferencesFunc func(ctx context.Context, userID uuid.UUID, prefs models.Preferences) (*models.User, error)
	DeleteFunc            func(ctx context.Context, userID uuid.UUID) error
	MatchesFunc           func(ctx context.Context, userID uuid.UUID) ([]*models.User, error)
}

func (m *mockUserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return nil, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockUserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, nil
}

func (m *mockUserService) List(ctx context.Context, limit, offset int) ([]models.UserSummary, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return nil, nil
}

func (m *mockUserService) UsernamesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	if m.UsernamesByIDsFunc != nil {
		return m.UsernamesByIDsFunc(ctx, ids)
	}
	return map[uuid.UUID]string{}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID uuid.UUID, profile models.Profile) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, profile)
	}
	return nil, nil
}

func (m *mockUserService) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs models.Preferences) (*models.User, error) {
	if m.UpdatePreferencesFunc != nil {
		return m.UpdatePreferencesFunc(ctx, userID, prefs)
	}
	return nil, nil
}

func (m *mockUserService) Delete(ctx context.Context, userID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, userID)
	}
	return nil
}

func (m *mockUserService) Matches(ctx context.Context, userID uuid.UUID) ([]*models.User, error) {
	if m.MatchesFunc != nil {
		return m.MatchesFunc(ctx, userID)
	}
	return nil, nil
}

type mockAuthService struct {
	HashPasswordFunc          func(password string) (string, error)
	VerifyPasswordFunc        func(hash, password string) bool
	GenerateSessionTokenFunc  func() (string, string, error)
	CreateSessionFunc         func(ctx context.Context, userID uuid.UUID) (string, error)
	ValidateSessionFunc       func(ctx context.Context, token string) (*models.User, error)
	DeleteSessionFunc         func(ctx context.Context, token string) error
	DeleteAllUserSessionsFunc func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockAuthService) HashPassword(password string) (string, error) {
	if m.HashPasswordFunc != nil {
		return m.HashPasswordFunc(password)
	}
	return "hashed_" + password, nil
}

func (m *mockAuthService) VerifyPassword(hash, password string) bool {
	if m.VerifyPasswordFunc != nil {
		return m.VerifyPasswordFunc(hash, password)
	}
	return hash == "hashed_"+password
}

func (m *mockAuthService) GenerateSessionToken() (string, string, error) {
	if m.GenerateSessionTokenFunc != nil {
		return m.GenerateSessionTokenFunc()
	}
	return "token", "hash", nil
}

func (m *mockAuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, userID)
	}
	return "session-token", nil
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, token)
	}
	return nil, nil
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

func (m *mockAuthService) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	if m.DeleteAllUserSessionsFunc != nil {
		return m.DeleteAllUserSessionsFunc(ctx, userID)
	}
	return nil
}

type mockFriendService struct {
	IsFriendFunc         func(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	IsNotFriendFunc      func(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	SendRequestFunc      func(ctx context.Context, fromID, toID uuid.UUID) (*models.FriendRequest, error)
	RemoveRequestFunc    func(ctx context.Context, fromID, toID uuid.UUID) error
	AcceptRequestFunc    func(ctx context.Context, fromID, toID uuid.UUID) (*models.Friendship, error)
	RejectRequestFunc    func(ctx context.Context, fromID, toID uuid.UUID) error
	RemoveFriendFunc     func(ctx context.Context, userID, friendID uuid.UUID) error
	ListFriendsFunc      func(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error)
	ListRequestsFunc     func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	ListSentRequestsFunc func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
}

func (m *mockFriendService) IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	if m.IsFriendFunc != nil {
		return m.IsFriendFunc(ctx, userID, otherUserID)
	}
	return false, nil
}

func (m *mockFriendService) IsNotFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	if m.IsNotFriendFunc != nil {
		return m.IsNotFriendFunc(ctx, userID, otherUserID)
	}
	return true, nil
}

func (m *mockFriendService) SendRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.FriendRequest, error) {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, fromID, toID)
	}
	return &models.FriendRequest{FromID: fromID, ToID: toID}, nil
}

func (m *mockFriendService) RemoveRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	if m.RemoveRequestFunc != nil {
		return m.RemoveRequestFunc(ctx, fromID, toID)
	}
	return nil
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.Friendship, error) {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, fromID, toID)
	}
	low, high := models.OrderedPair(fromID, toID)
	return &models.Friendship{UserLow: low, UserHigh: high}, nil
}

func (m *mockFriendService) RejectRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	if m.RejectRequestFunc != nil {
		return m.RejectRequestFunc(ctx, fromID, toID)
	}
	return nil
}

func (m *mockFriendService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	if m.RemoveFriendFunc != nil {
		return m.RemoveFriendFunc(ctx, userID, friendID)
	}
	return nil
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockFriendService) ListRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	if m.ListRequestsFunc != nil {
		return m.ListRequestsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockFriendService) ListSentRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	if m.ListSentRequestsFunc != nil {
		return m.ListSentRequestsFunc(ctx, userID)
	}
	return nil, nil
}

type mockPostService struct {
	CreateFunc       func(ctx context.Context, params models.CreatePostParams) (*models.Post, error)
	GetByIDFunc      func(ctx context.Context, viewerID, postID uuid.UUID) (*models.Post, error)
	ListByAuthorFunc func(ctx context.Context, viewerID, authorID uuid.UUID) ([]models.Post, error)
	ListPublicFunc   func(ctx context.Context, limit int) ([]models.Post, error)
	UpdateFunc       func(ctx context.Context, callerID, postID uuid.UUID, params models.UpdatePostParams) (*models.Post, error)
	DeleteFunc       func(ctx context.Context, callerID, postID uuid.UUID) error
}

func (m *mockPostService) Create(ctx context.Context, params models.CreatePostParams) (*models.Post, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, params)
	}
	return &models.Post{ID: uuid.New(), AuthorID: params.AuthorID, Content: params.Content}, nil
}

func (m *mockPostService) GetByID(ctx context.Context, viewerID, postID uuid.UUID) (*models.Post, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, viewerID, postID)
	}
	return nil, nil
}

func (m *mockPostService) ListByAuthor(ctx context.Context, viewerID, authorID uuid.UUID) ([]models.Post, error) {
	if m.ListByAuthorFunc != nil {
		return m.ListByAuthorFunc(ctx, viewerID, authorID)
	}
	return nil, nil
}

func (m *mockPostService) ListPublic(ctx context.Context, limit int) ([]models.Post, error) {
	if m.ListPublicFunc != nil {
		return m.ListPublicFunc(ctx, limit)
	}
	return nil, nil
}

func (m *mockPostService) Update(ctx context.Context, callerID, postID uuid.UUID, params models.UpdatePostParams) (*models.Post, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, callerID, postID, params)
	}
	return &models.Post{ID: postID, AuthorID: callerID}, nil
}

func (m *mockPostService) Delete(ctx context.Context, callerID, postID uuid.UUID) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, callerID, postID)
	}
	return nil
}

type mockReputationService struct {
	GetStatFunc     func(ctx context.Context, id uuid.UUID) (*models.Stat, error)
	ExpireStatFunc  func(ctx context.Context, caller, id uuid.UUID) error
	GetScoreFunc    func(ctx context.Context, userID uuid.UUID) (*models.SkillScore, error)
	LeaderboardFunc func(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

func (m *mockReputationService) GetStat(ctx context.Context, id uuid.UUID) (*models.Stat, error) {
	if m.GetStatFunc != nil {
		return m.GetStatFunc(ctx, id)
	}
	return &models.Stat{ID: id}, nil
}

func (m *mockReputationService) ExpireStat(ctx context.Context, caller, id uuid.UUID) error {
	if m.ExpireStatFunc != nil {
		return m.ExpireStatFunc(ctx, caller, id)
	}
	return nil
}

func (m *mockReputationService) GetScore(ctx context.Context, userID uuid.UUID) (*models.SkillScore, error) {
	if m.GetScoreFunc != nil {
		return m.GetScoreFunc(ctx, userID)
	}
	return &models.SkillScore{UserID: userID}, nil
}

func (m *mockReputationService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if m.LeaderboardFunc != nil {
		return m.LeaderboardFunc(ctx, limit)
	}
	return nil, nil
}

// usersByName resolves usernames against a fixed set of users.
func usersByName(users ...*models.User) func(ctx context.Context, username string) (*models.User, error) {
	return func(ctx context.Context, username string) (*models.User, error) {
		for _, u := range users {
			if u.Username == username {
				return u, nil
			}
		}
		return nil, errUserNotFound
	}
}
