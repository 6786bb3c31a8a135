package services

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/HammerMeetNail/matchpoint/internal/models"
)

var (
	ErrCannotFriendSelf      = kindError(ErrInvalidRequest, "cannot send friend request to yourself")
	ErrFriendRequestExists   = kindError(ErrInvalidRequest, "friend request already exists")
	ErrAlreadyFriends        = kindError(ErrInvalidRequest, "already friends")
	ErrFriendRequestNotFound = kindError(ErrNotFound, "friend request not found")
	ErrFriendshipNotFound    = kindError(ErrNotFound, "friendship not found")
	ErrFriendshipConflict    = kindError(ErrConflict, "friendship changed concurrently")
)

// FriendService is the friendship graph: directed pending requests and
// undirected friendship edges. Every mutation of a pair runs under a
// transaction-scoped advisory lock on that pair.
type FriendService struct {
	db DBConn
}

func NewFriendService(db DBConn) *FriendService {
	return &FriendService{db: db}
}

// pairKey is the advisory lock key for an unordered pair of users.
func pairKey(a, b uuid.UUID) int64 {
	low, high := models.OrderedPair(a, b)
	var buf [32]byte
	copy(buf[:16], low[:])
	copy(buf[16:], high[:])
	return int64(xxhash.Sum64(buf[:]))
}

func (s *FriendService) withPairLock(ctx context.Context, a, b uuid.UUID, fn func(tx Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", pairKey(a, b)); err != nil {
		return fmt.Errorf("locking friendship pair: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing friendship change: %w", err)
	}
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

func areFriends(ctx context.Context, q rowQuerier, a, b uuid.UUID) (bool, error) {
	if a == b {
		return false, nil
	}
	low, high := models.OrderedPair(a, b)
	var exists bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM friendships WHERE user_low = $1 AND user_high = $2)",
		low, high,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return exists, nil
}

func (s *FriendService) IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	return areFriends(ctx, s.db, userID, otherUserID)
}

func (s *FriendService) IsNotFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	friends, err := s.IsFriend(ctx, userID, otherUserID)
	if err != nil {
		return false, err
	}
	return !friends, nil
}

// SendRequest creates a pending request from one user to another. It fails
// if a request already exists in either direction or the users are friends.
func (s *FriendService) SendRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.FriendRequest, error) {
	if fromID == toID {
		return nil, ErrCannotFriendSelf
	}

	request := &models.FriendRequest{}
	err := s.withPairLock(ctx, fromID, toID, func(tx Tx) error {
		var pending bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS(
				SELECT 1 FROM friend_requests
				WHERE (from_id = $1 AND to_id = $2)
				   OR (from_id = $2 AND to_id = $1)
			)`,
			fromID, toID,
		).Scan(&pending)
		if err != nil {
			return fmt.Errorf("checking friend request existence: %w", err)
		}
		if pending {
			return ErrFriendRequestExists
		}

		friends, err := areFriends(ctx, tx, fromID, toID)
		if err != nil {
			return err
		}
		if friends {
			return ErrAlreadyFriends
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO friend_requests (from_id, to_id)
			 VALUES ($1, $2)
			 RETURNING from_id, to_id, created_at`,
			fromID, toID,
		).Scan(&request.FromID, &request.ToID, &request.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrFriendshipConflict
			}
			if isForeignKeyViolation(err) {
				return ErrUserNotFound
			}
			return fmt.Errorf("creating friend request: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// RemoveRequest withdraws a request the sender made.
func (s *FriendService) RemoveRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	return s.withPairLock(ctx, fromID, toID, func(tx Tx) error {
		return deleteRequest(ctx, tx, fromID, toID, "removing")
	})
}

// RejectRequest declines a request addressed to toID.
func (s *FriendService) RejectRequest(ctx context.Context, fromID, toID uuid.UUID) error {
	return s.withPairLock(ctx, fromID, toID, func(tx Tx) error {
		return deleteRequest(ctx, tx, fromID, toID, "rejecting")
	})
}

func deleteRequest(ctx context.Context, tx Tx, fromID, toID uuid.UUID, verb string) error {
	result, err := tx.Exec(ctx,
		"DELETE FROM friend_requests WHERE from_id = $1 AND to_id = $2",
		fromID, toID,
	)
	if err != nil {
		return fmt.Errorf("%s friend request: %w", verb, err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendRequestNotFound
	}
	return nil
}

// AcceptRequest turns the request from fromID to toID into a friendship.
func (s *FriendService) AcceptRequest(ctx context.Context, fromID, toID uuid.UUID) (*models.Friendship, error) {
	friendship := &models.Friendship{}
	err := s.withPairLock(ctx, fromID, toID, func(tx Tx) error {
		if err := deleteRequest(ctx, tx, fromID, toID, "accepting"); err != nil {
			return err
		}

		low, high := models.OrderedPair(fromID, toID)
		err := tx.QueryRow(ctx,
			`INSERT INTO friendships (user_low, user_high)
			 VALUES ($1, $2)
			 RETURNING user_low, user_high, created_at`,
			low, high,
		).Scan(&friendship.UserLow, &friendship.UserHigh, &friendship.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrFriendshipConflict
			}
			return fmt.Errorf("creating friendship: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return friendship, nil
}

// RemoveFriend deletes the edge between two users. Either side may call it.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	return s.withPairLock(ctx, userID, friendID, func(tx Tx) error {
		low, high := models.OrderedPair(userID, friendID)
		result, err := tx.Exec(ctx,
			"DELETE FROM friendships WHERE user_low = $1 AND user_high = $2",
			low, high,
		)
		if err != nil {
			return fmt.Errorf("removing friendship: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrFriendshipNotFound
		}
		return nil
	})
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.FriendWithUser, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, f.created_at
		 FROM friendships f
		 JOIN users u ON u.id = CASE WHEN f.user_low = $1 THEN f.user_high ELSE f.user_low END
		 WHERE f.user_low = $1 OR f.user_high = $1
		 ORDER BY LOWER(u.username)`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	friends := []models.FriendWithUser{}
	for rows.Next() {
		var f models.FriendWithUser
		if err := rows.Scan(&f.ID, &f.Username, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friends: %w", err)
	}
	return friends, nil
}

// ListRequests returns the pending requests addressed to userID, newest first.
func (s *FriendService) ListRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listRequests(ctx,
		`SELECT r.from_id, r.to_id, r.created_at, uf.username, ut.username
		 FROM friend_requests r
		 JOIN users uf ON uf.id = r.from_id
		 JOIN users ut ON ut.id = r.to_id
		 WHERE r.to_id = $1
		 ORDER BY r.created_at DESC`,
		userID,
	)
}

// ListSentRequests returns the pending requests userID made, newest first.
func (s *FriendService) ListSentRequests(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listRequests(ctx,
		`SELECT r.from_id, r.to_id, r.created_at, uf.username, ut.username
		 FROM friend_requests r
		 JOIN users uf ON uf.id = r.from_id
		 JOIN users ut ON ut.id = r.to_id
		 WHERE r.from_id = $1
		 ORDER BY r.created_at DESC`,
		userID,
	)
}

func (s *FriendService) listRequests(ctx context.Context, sql string, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	rows, err := s.db.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("listing friend requests: %w", err)
	}
	defer rows.Close()

	requests := []models.FriendRequestWithUser{}
	for rows.Next() {
		var r models.FriendRequestWithUser
		if err := rows.Scan(&r.FromID, &r.ToID, &r.CreatedAt, &r.FromUsername, &r.ToUsername); err != nil {
			return nil, fmt.Errorf("scanning friend request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friend requests: %w", err)
	}
	return requests, nil
}
