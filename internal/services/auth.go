package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/HammerMeetNail/matchpoint/internal/logging"
	"github.com/HammerMeetNail/matchpoint/internal/models"
)

const (
	bcryptCost       = 12
	sessionTTL       = 30 * 24 * time.Hour
	sessionKeyPrefix = "session:"
	sessionTokenSize = 32
)

var (
	ErrSessionNotFound = kindError(ErrNotFound, "session not found")
	ErrSessionExpired  = kindError(ErrNotFound, "session expired")
)

// AuthService owns passwords and sessions. Postgres is the source of truth
// for sessions; redis caches token hash to user id.
type AuthService struct {
	db    DBConn
	redis RedisClient
	ttl   time.Duration
	now   func() time.Time
}

func NewAuthService(db DBConn, redis RedisClient) *AuthService {
	return &AuthService{
		db:    db,
		redis: redis,
		ttl:   sessionTTL,
		now:   time.Now,
	}
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateSessionToken returns a random token for the client and the digest
// stored server side.
func (s *AuthService) GenerateSessionToken() (token string, hash string, err error) {
	raw := make([]byte, sessionTokenSize)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generating random bytes: %w", err)
	}
	token = hex.EncodeToString(raw)
	return token, digestToken(token), nil
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func sessionKey(tokenHash string) string {
	return sessionKeyPrefix + tokenHash
}

func (s *AuthService) CreateSession(ctx context.Context, userID uuid.UUID) (string, error) {
	token, tokenHash, err := s.GenerateSessionToken()
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO sessions (user_id, token_hash, expires_at) VALUES ($1, $2, $3)`,
		userID, tokenHash, s.now().Add(s.ttl),
	)
	if err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}

	s.cache(ctx, tokenHash, userID, s.ttl)
	return token, nil
}

// ValidateSession resolves a token to its user. A redis miss falls back to
// Postgres and re-warms the cache for the session's remaining lifetime.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	tokenHash := digestToken(token)

	if userID, ok := s.cached(ctx, tokenHash); ok {
		return s.sessionUser(ctx, userID)
	}

	var (
		sessionID uuid.UUID
		userID    uuid.UUID
		expiresAt time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, expires_at FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&sessionID, &userID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	remaining := expiresAt.Sub(s.now())
	if remaining <= 0 {
		if _, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE id = $1", sessionID); err != nil {
			logging.Warn("Failed to delete expired session", map[string]interface{}{"error": err.Error()})
		}
		return nil, ErrSessionExpired
	}

	s.cache(ctx, tokenHash, userID, remaining)
	return s.sessionUser(ctx, userID)
}

func (s *AuthService) DeleteSession(ctx context.Context, token string) error {
	tokenHash := digestToken(token)
	s.evict(ctx, tokenHash)

	if _, err := s.db.Exec(ctx, "DELETE FROM sessions WHERE token_hash = $1", tokenHash); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// DeleteAllUserSessions signs a user out everywhere.
func (s *AuthService) DeleteAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	rows, err := s.db.Query(ctx, "DELETE FROM sessions WHERE user_id = $1 RETURNING token_hash", userID)
	if err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return fmt.Errorf("scanning token hash: %w", err)
		}
		hashes = append(hashes, hash)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating user sessions: %w", err)
	}

	s.evict(ctx, hashes...)
	return nil
}

func (s *AuthService) cache(ctx context.Context, tokenHash string, userID uuid.UUID, ttl time.Duration) {
	if err := s.redis.Set(ctx, sessionKey(tokenHash), userID.String(), ttl); err != nil {
		logging.Warn("Failed to cache session", map[string]interface{}{"error": err.Error()})
	}
}

// cached reports the user id behind a cached token. A corrupt entry is
// dropped so the Postgres row decides.
func (s *AuthService) cached(ctx context.Context, tokenHash string) (uuid.UUID, bool) {
	value, err := s.redis.Get(ctx, sessionKey(tokenHash))
	if err != nil {
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(value)
	if err != nil {
		s.evict(ctx, tokenHash)
		return uuid.Nil, false
	}
	return userID, true
}

func (s *AuthService) evict(ctx context.Context, tokenHashes ...string) {
	if len(tokenHashes) == 0 {
		return
	}
	keys := make([]string, len(tokenHashes))
	for i, hash := range tokenHashes {
		keys[i] = sessionKey(hash)
	}
	if err := s.redis.Del(ctx, keys...); err != nil {
		logging.Warn("Failed to evict cached sessions", map[string]interface{}{
			"error": err.Error(),
			"count": len(keys),
		})
	}
}

func (s *AuthService) sessionUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		// Account deleted while the cached session lived on.
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session user: %w", err)
	}
	return user, nil
}
