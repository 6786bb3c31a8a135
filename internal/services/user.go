package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/matchpoint/internal/logging"
	"github.com/HammerMeetNail/matchpoint/internal/models"
)

var (
	ErrUserNotFound       = kindError(ErrNotFound, "user not found")
	ErrUsernameTaken      = kindError(ErrConflict, "username already taken")
	ErrInvalidPreferences = kindError(ErrInvalidRequest, "minimum skill must not exceed maximum skill")
)

const (
	defaultUserListLimit = 50
	maxUserListLimit     = 200
	maxMatches           = 50
)

const userColumns = `id, username, password_hash, gender, sports, skill, location,
	gender_pref, sports_pref, skill_min, skill_max, location_range, created_at, updated_at`

// UserService is the identity directory: accounts, profiles and matching
// preferences.
type UserService struct {
	db     DBConn
	ledger *ReputationService
}

func NewUserService(db DBConn, ledger *ReputationService) *UserService {
	return &UserService{db: db, ledger: ledger}
}

// Create registers a user together with a zero skill score.
func (s *UserService) Create(ctx context.Context, params models.CreateUserParams) (*models.User, error) {
	prefs := normalizePreferences(params.Preferences)
	if prefs.SkillMin > prefs.SkillMax {
		return nil, ErrInvalidPreferences
	}
	profile := normalizeProfile(params.Profile)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	err = tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(username) = LOWER($1))",
		params.Username,
	).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking username existence: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	user, err := scanUser(tx.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, gender, sports, skill, location,
		                    gender_pref, sports_pref, skill_min, skill_max, location_range)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+userColumns,
		params.Username, params.PasswordHash,
		profile.Gender, profile.Sports, profile.Skill, profile.Location,
		prefs.GenderPref, prefs.SportsPref, prefs.SkillMin, prefs.SkillMax, prefs.LocationRange,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	_, err = tx.Exec(ctx, `INSERT INTO skill_scores (user_id, score) VALUES ($1, 0)`, user.ID)
	if err != nil {
		return nil, fmt.Errorf("creating skill score: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing user: %w", err)
	}

	if s.ledger != nil {
		s.ledger.enroll(ctx, user.ID)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return user, nil
}

// GetByUsername resolves a username case-insensitively.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`,
		strings.TrimSpace(username),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by username: %w", err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, limit, offset int) ([]models.UserSummary, error) {
	if limit <= 0 {
		limit = defaultUserListLimit
	}
	if limit > maxUserListLimit {
		limit = maxUserListLimit
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, username FROM users ORDER BY LOWER(username) LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []models.UserSummary{}
	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// UsernamesByIDs maps ids to usernames. Unknown ids are absent from the map.
func (s *UserService) UsernamesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	return usernamesByIDs(ctx, s.db, ids)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

func usernamesByIDs(ctx context.Context, db querier, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	rows, err := db.Query(ctx, `SELECT id, username FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving usernames: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scanning username: %w", err)
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usernames: %w", err)
	}
	return names, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, profile models.Profile) (*models.User, error) {
	profile = normalizeProfile(profile)
	user, err := scanUser(s.db.QueryRow(ctx,
		`UPDATE users SET gender = $2, sports = $3, skill = $4, location = $5, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		userID, profile.Gender, profile.Sports, profile.Skill, profile.Location,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}
	return user, nil
}

func (s *UserService) UpdatePreferences(ctx context.Context, userID uuid.UUID, prefs models.Preferences) (*models.User, error) {
	prefs = normalizePreferences(prefs)
	if prefs.SkillMin > prefs.SkillMax {
		return nil, ErrInvalidPreferences
	}

	user, err := scanUser(s.db.QueryRow(ctx,
		`UPDATE users SET gender_pref = $2, sports_pref = $3, skill_min = $4, skill_max = $5,
		                  location_range = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		userID, prefs.GenderPref, prefs.SportsPref, prefs.SkillMin, prefs.SkillMax, prefs.LocationRange,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating preferences: %w", err)
	}
	return user, nil
}

// Delete removes an account. Live stats are reversed on the other
// participant first; the schema cascades everything else.
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var scores scoreSnapshot
	if s.ledger != nil {
		scores, err = s.ledger.releaseUser(ctx, tx, userID)
		if err != nil {
			return err
		}
	}

	result, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing user deletion: %w", err)
	}

	if s.ledger != nil {
		s.ledger.mirror(ctx, scores)
		s.ledger.forget(ctx, userID)
	}
	logging.Info("User deleted", map[string]interface{}{"user_id": userID.String()})
	return nil
}

// Matches lists users who fit the caller's preferences: gender (or any),
// skill inside the preferred range and at least one shared sport when the
// caller prefers any sports. Location range is stored but not applied.
func (s *UserService) Matches(ctx context.Context, userID uuid.UUID) ([]*models.User, error) {
	me, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs := normalizePreferences(me.Preferences)

	rows, err := s.db.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE id <> $1
		   AND ($2 = 'any' OR LOWER(gender) = LOWER($2))
		   AND skill BETWEEN $3 AND $4
		   AND (cardinality($5::text[]) = 0 OR sports && $5::text[])
		 ORDER BY LOWER(username)
		 LIMIT $6`,
		userID, prefs.GenderPref, prefs.SkillMin, prefs.SkillMax, prefs.SportsPref, maxMatches,
	)
	if err != nil {
		return nil, fmt.Errorf("matching users: %w", err)
	}
	defer rows.Close()

	matches := []*models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}
	return matches, nil
}

func normalizeProfile(p models.Profile) models.Profile {
	p.Gender = strings.TrimSpace(p.Gender)
	p.Location = strings.TrimSpace(p.Location)
	p.Sports = normalizeSports(p.Sports)
	return p
}

func normalizePreferences(p models.Preferences) models.Preferences {
	p.GenderPref = strings.TrimSpace(p.GenderPref)
	if p.GenderPref == "" {
		p.GenderPref = models.GenderAny
	}
	p.SportsPref = normalizeSports(p.SportsPref)
	return p
}

func normalizeSports(sports []string) []string {
	out := make([]string, 0, len(sports))
	seen := make(map[string]bool, len(sports))
	for _, sport := range sports {
		sport = strings.ToLower(strings.TrimSpace(sport))
		if sport == "" || seen[sport] {
			continue
		}
		seen[sport] = true
		out = append(out, sport)
	}
	return out
}

func scanUser(row Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.Username, &user.PasswordHash,
		&user.Profile.Gender, &user.Profile.Sports, &user.Profile.Skill, &user.Profile.Location,
		&user.Preferences.GenderPref, &user.Preferences.SportsPref,
		&user.Preferences.SkillMin, &user.Preferences.SkillMax, &user.Preferences.LocationRange,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}
