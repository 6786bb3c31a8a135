package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/matchpoint/internal/logging"
	"github.com/HammerMeetNail/matchpoint/internal/models"
)

var (
	ErrStatNotFound  = kindError(ErrNotFound, "stat not found")
	ErrInvalidStat   = kindError(ErrInvalidRequest, "a stat needs two different users")
	ErrNotStatOwner  = kindError(ErrForbidden, "only the reporting user can do that")
	ErrScoreNotFound = kindError(ErrNotFound, "skill score not found")
)

const (
	DefaultLeaderboardKey   = "leaderboard:skill"
	DefaultLeaderboardLimit = 50
	maxLeaderboardLimit     = 500
)

const statColumns = `id, post_id, user1_id, user2_id, token, won, applied_delta, revisions, created_at, expires_at`

// ReputationService keeps the zero-sum skill score ledger. Every stat moves
// score between its two users; the applied delta is stored on the stat so a
// revision can reverse it exactly.
type ReputationService struct {
	db        DBConn
	board     ScoreBoard
	boardKey  string
	magnitude int64
	now       func() time.Time
}

// NewReputationService creates the ledger. board may be nil, in which case
// the leaderboard is always read from Postgres.
func NewReputationService(db DBConn, board ScoreBoard, magnitude int64, boardKey string) *ReputationService {
	if boardKey == "" {
		boardKey = DefaultLeaderboardKey
	}
	return &ReputationService{
		db:        db,
		board:     board,
		boardKey:  boardKey,
		magnitude: magnitude,
		now:       time.Now,
	}
}

// scoreChange accumulates per-user score deltas inside one transaction.
type scoreChange map[uuid.UUID]int64

func (c scoreChange) add(userID uuid.UUID, delta int64) {
	if delta == 0 {
		return
	}
	c[userID] += delta
}

// scoreSnapshot holds the absolute scores a transaction left behind, keyed
// by user. The mirror copies these values rather than replaying deltas.
type scoreSnapshot map[uuid.UUID]int64

// CreateStat records a match reported by reporter against opponent. The stat
// starts with no applied delta; UpdateScore moves the scores.
func (s *ReputationService) CreateStat(ctx context.Context, reporter uuid.UUID, token string, opponent uuid.UUID, postID *uuid.UUID) (*models.Stat, error) {
	if reporter == opponent {
		return nil, ErrInvalidStat
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stat, err := s.createStat(ctx, tx, reporter, token, opponent, postID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing stat: %w", err)
	}
	return stat, nil
}

func (s *ReputationService) createStat(ctx context.Context, tx Tx, reporter uuid.UUID, token string, opponent uuid.UUID, postID *uuid.UUID) (*models.Stat, error) {
	if reporter == opponent {
		return nil, ErrInvalidStat
	}

	outcome := models.ParseOutcome(token)
	createdAt := s.now().UTC()
	expiresAt := createdAt.Add(models.StatLifetime)

	stat, err := scanStat(tx.QueryRow(ctx,
		`INSERT INTO stats (post_id, user1_id, user2_id, token, won, applied_delta, revisions, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7)
		 RETURNING `+statColumns,
		postID, reporter, opponent, token, outcome.Won(), createdAt, expiresAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("creating stat: %w", err)
	}

	logging.Info("Stat created", map[string]interface{}{
		"stat_id":  stat.ID.String(),
		"reporter": reporter.String(),
		"opponent": opponent.String(),
		"outcome":  outcome.String(),
	})
	return stat, nil
}

// UpdateScore applies outcome to the stat's users. The delta already applied
// is reversed first, so calling it again with the same outcome is a no-op and
// flipping the outcome moves exactly twice the magnitude. The recorded token
// is kept while it still parses to outcome and is otherwise replaced by the
// outcome's canonical token.
func (s *ReputationService) UpdateScore(ctx context.Context, statID uuid.UUID, outcome models.Outcome) (*models.Stat, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stat, scores, err := s.applyOutcome(ctx, tx, statID, outcome, "")
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing score update: %w", err)
	}
	s.mirror(ctx, scores)
	return stat, nil
}

// applyOutcome locks the stat, moves the scores by the difference between the
// new and the applied delta, and stores the new delta. A non-empty token
// replaces the recorded one.
func (s *ReputationService) applyOutcome(ctx context.Context, tx Tx, statID uuid.UUID, outcome models.Outcome, token string) (*models.Stat, scoreSnapshot, error) {
	stat, err := scanStat(tx.QueryRow(ctx,
		`SELECT `+statColumns+` FROM stats WHERE id = $1 FOR UPDATE`,
		statID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrStatNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("locking stat: %w", err)
	}

	newDelta := outcome.Delta(s.magnitude)
	diff := newDelta - stat.AppliedDelta

	change := scoreChange{}
	change.add(stat.User1ID, diff)
	change.add(stat.User2ID, -diff)
	scores, err := s.applyChange(ctx, tx, change)
	if err != nil {
		return nil, nil, err
	}

	revisions := stat.Revisions
	if stat.AppliedDelta != 0 && diff != 0 {
		revisions++
	}
	if token == "" {
		token = stat.Token
		if models.ParseOutcome(token) != outcome {
			token = outcome.String()
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE stats SET token = $2, won = $3, applied_delta = $4, revisions = $5 WHERE id = $1`,
		stat.ID, token, outcome.Won(), newDelta, revisions,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("updating stat: %w", err)
	}

	stat.Token = token
	stat.Won = outcome.Won()
	stat.AppliedDelta = newDelta
	stat.Revisions = revisions

	if diff != 0 {
		logging.Debug("Score updated", map[string]interface{}{
			"stat_id": stat.ID.String(),
			"delta":   diff,
			"state":   string(stat.State()),
		})
	}
	return stat, scores, nil
}

// applyChange writes the deltas in ascending user id order so concurrent
// transactions touching the same two rows always lock them in the same order.
// It returns the resulting absolute scores.
func (s *ReputationService) applyChange(ctx context.Context, tx Tx, change scoreChange) (scoreSnapshot, error) {
	ids := make([]uuid.UUID, 0, len(change))
	for id, delta := range change {
		if delta != 0 {
			ids = append(ids, id)
		}
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })

	scores := make(scoreSnapshot, len(ids))
	for _, id := range ids {
		var score int64
		err := tx.QueryRow(ctx,
			`UPDATE skill_scores SET score = score + $1, updated_at = NOW() WHERE user_id = $2 RETURNING score`,
			change[id], id,
		).Scan(&score)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScoreNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("updating skill score: %w", err)
		}
		scores[id] = score
	}
	return scores, nil
}

// mirror writes committed scores into the leaderboard. Values are absolute,
// so a write that fails here is repaired by the user's next successful one.
// Failures are logged and not returned.
func (s *ReputationService) mirror(ctx context.Context, scores scoreSnapshot) {
	if s.board == nil || len(scores) == 0 {
		return
	}
	members := make([]redis.Z, 0, len(scores))
	for id, score := range scores {
		members = append(members, redis.Z{Score: float64(score), Member: id.String()})
	}
	if err := s.board.ZAdd(ctx, s.boardKey, members...); err != nil {
		logging.Warn("Failed to mirror skill scores", map[string]interface{}{
			"error": err.Error(),
			"users": len(members),
		})
	}
}

func (s *ReputationService) GetStat(ctx context.Context, id uuid.UUID) (*models.Stat, error) {
	stat, err := scanStat(s.db.QueryRow(ctx,
		`SELECT `+statColumns+` FROM stats WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting stat: %w", err)
	}
	return stat, nil
}

// statForPost locks the live stat attached to a post.
func (s *ReputationService) statForPost(ctx context.Context, tx Tx, postID uuid.UUID) (*models.Stat, error) {
	stat, err := scanStat(tx.QueryRow(ctx,
		`SELECT `+statColumns+` FROM stats WHERE post_id = $1 FOR UPDATE`,
		postID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrStatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting stat for post: %w", err)
	}
	return stat, nil
}

// IsUser is the ownership guard for stat mutations.
func (s *ReputationService) IsUser(user, owner uuid.UUID) error {
	if user != owner {
		return ErrNotStatOwner
	}
	return nil
}

// ExpireStat removes a stat on behalf of its reporter. Scores keep whatever
// the stat contributed.
func (s *ReputationService) ExpireStat(ctx context.Context, caller, id uuid.UUID) error {
	stat, err := s.GetStat(ctx, id)
	if err != nil {
		return err
	}
	if err := s.IsUser(caller, stat.User1ID); err != nil {
		return err
	}

	result, err := s.db.Exec(ctx, `DELETE FROM stats WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("expiring stat: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrStatNotFound
	}

	logging.Info("Stat expired", map[string]interface{}{
		"stat_id": id.String(),
		"due":     stat.Due(s.now()),
	})
	return nil
}

func (s *ReputationService) GetScore(ctx context.Context, userID uuid.UUID) (*models.SkillScore, error) {
	score := &models.SkillScore{}
	err := s.db.QueryRow(ctx,
		`SELECT user_id, score, updated_at FROM skill_scores WHERE user_id = $1`,
		userID,
	).Scan(&score.UserID, &score.Score, &score.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScoreNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting skill score: %w", err)
	}
	return score, nil
}

// Leaderboard returns the highest scores. It reads the redis mirror and falls
// back to Postgres when the mirror is unavailable or empty.
func (s *ReputationService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	if s.board != nil {
		entries, err := s.leaderboardFromMirror(ctx, limit)
		if err == nil && len(entries) > 0 {
			return entries, nil
		}
		if err != nil {
			logging.Warn("Leaderboard mirror unavailable", map[string]interface{}{"error": err.Error()})
		}
	}

	return s.leaderboardFromDB(ctx, limit)
}

func (s *ReputationService) leaderboardFromMirror(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	members, err := s.board.ZRevRangeWithScores(ctx, s.boardKey, 0, int64(limit-1))
	if err != nil {
		return nil, fmt.Errorf("reading leaderboard: %w", err)
	}

	entries := make([]models.LeaderboardEntry, 0, len(members))
	ids := make([]uuid.UUID, 0, len(members))
	for i, m := range members {
		member, ok := m.Member.(string)
		if !ok {
			continue
		}
		id, err := uuid.Parse(member)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		entries = append(entries, models.LeaderboardEntry{
			UserID: id,
			Score:  int64(m.Score),
			Rank:   int64(i + 1),
		})
	}

	names, err := usernamesByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Username = names[entries[i].UserID]
	}
	return entries, nil
}

func (s *ReputationService) leaderboardFromDB(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT s.user_id, u.username, s.score
		 FROM skill_scores s
		 JOIN users u ON u.id = s.user_id
		 ORDER BY s.score DESC, u.username
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var entry models.LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.Score); err != nil {
			return nil, fmt.Errorf("scanning leaderboard entry: %w", err)
		}
		entry.Rank = int64(len(entries) + 1)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leaderboard: %w", err)
	}
	return entries, nil
}

// SyncLeaderboard rebuilds the redis mirror from Postgres.
func (s *ReputationService) SyncLeaderboard(ctx context.Context) error {
	if s.board == nil {
		return nil
	}

	rows, err := s.db.Query(ctx, `SELECT user_id, score FROM skill_scores`)
	if err != nil {
		return fmt.Errorf("loading skill scores: %w", err)
	}
	defer rows.Close()

	var members []redis.Z
	for rows.Next() {
		var id uuid.UUID
		var score int64
		if err := rows.Scan(&id, &score); err != nil {
			return fmt.Errorf("scanning skill score: %w", err)
		}
		members = append(members, redis.Z{Score: float64(score), Member: id.String()})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating skill scores: %w", err)
	}

	if err := s.board.Replace(ctx, s.boardKey, members); err != nil {
		return fmt.Errorf("rebuilding leaderboard: %w", err)
	}

	logging.Info("Leaderboard synced", map[string]interface{}{"members": len(members)})
	return nil
}

// releaseUser reverses every live stat of userID on the other participant so
// the remaining scores only carry stats that survive the user's deletion.
func (s *ReputationService) releaseUser(ctx context.Context, tx Tx, userID uuid.UUID) (scoreSnapshot, error) {
	rows, err := tx.Query(ctx,
		`SELECT user1_id, user2_id, applied_delta FROM stats
		 WHERE user1_id = $1 OR user2_id = $1
		 FOR UPDATE`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading stats for user: %w", err)
	}

	change := scoreChange{}
	for rows.Next() {
		var user1, user2 uuid.UUID
		var applied int64
		if err := rows.Scan(&user1, &user2, &applied); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning stat: %w", err)
		}
		if user1 == userID {
			change.add(user2, applied)
		} else {
			change.add(user1, -applied)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stats: %w", err)
	}

	return s.applyChange(ctx, tx, change)
}

// enroll adds a new user to the mirror with a zero score.
func (s *ReputationService) enroll(ctx context.Context, userID uuid.UUID) {
	if s.board == nil {
		return
	}
	if err := s.board.ZAdd(ctx, s.boardKey, redis.Z{Member: userID.String()}); err != nil {
		logging.Warn("Failed to add user to leaderboard", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID.String(),
		})
	}
}

// forget drops a deleted user from the mirror.
func (s *ReputationService) forget(ctx context.Context, userID uuid.UUID) {
	if s.board == nil {
		return
	}
	if err := s.board.ZRem(ctx, s.boardKey, userID.String()); err != nil {
		logging.Warn("Failed to remove user from leaderboard", map[string]interface{}{
			"error":   err.Error(),
			"user_id": userID.String(),
		})
	}
}

func scanStat(row Row) (*models.Stat, error) {
	stat := &models.Stat{}
	err := row.Scan(
		&stat.ID, &stat.PostID, &stat.User1ID, &stat.User2ID, &stat.Token,
		&stat.Won, &stat.AppliedDelta, &stat.Revisions, &stat.CreatedAt, &stat.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return stat, nil
}
