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
	ErrPostNotFound      = kindError(ErrNotFound, "post not found")
	ErrNotPostAuthor     = kindError(ErrForbidden, "only the author can change this post")
	ErrEmptyPost         = kindError(ErrInvalidRequest, "post content is required")
	ErrInvalidVisibility = kindError(ErrInvalidRequest, "visibility must be public or friends")
)

const (
	maxPostContentLength = 5000
	defaultFeedLimit     = 50
	maxFeedLimit         = 200
)

const postColumns = `id, author_id, content, image_url, visibility, collaborator_id, created_at, updated_at`

// PostService is the post store. Posts that name a collaborator report a
// match and drive the reputation ledger.
type PostService struct {
	db      DBConn
	friends FriendChecker
	ledger  *ReputationService
}

func NewPostService(db DBConn, friends FriendChecker, ledger *ReputationService) *PostService {
	return &PostService{db: db, friends: friends, ledger: ledger}
}

// Create stores a post. When a collaborator is named, a stat is recorded and
// applied in the same transaction.
func (s *PostService) Create(ctx context.Context, params models.CreatePostParams) (*models.Post, error) {
	content := strings.TrimSpace(params.Content)
	if content == "" || len(content) > maxPostContentLength {
		return nil, ErrEmptyPost
	}
	if params.Visibility == "" {
		params.Visibility = models.VisibilityPublic
	}
	if !params.Visibility.Valid() {
		return nil, ErrInvalidVisibility
	}
	if params.CollaboratorID != nil && *params.CollaboratorID == params.AuthorID {
		return nil, ErrInvalidStat
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	post, err := scanPost(tx.QueryRow(ctx,
		`INSERT INTO posts (author_id, content, image_url, visibility, collaborator_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+postColumns,
		params.AuthorID, content, params.ImageURL, string(params.Visibility), params.CollaboratorID,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("creating post: %w", err)
	}

	var scores scoreSnapshot
	if post.CollaboratorID != nil {
		stat, err := s.ledger.createStat(ctx, tx, post.AuthorID, content, *post.CollaboratorID, &post.ID)
		if err != nil {
			return nil, err
		}
		stat, scores, err = s.ledger.applyOutcome(ctx, tx, stat.ID, models.ParseOutcome(content), "")
		if err != nil {
			return nil, err
		}
		post.Stat = stat
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing post: %w", err)
	}
	s.ledger.mirror(ctx, scores)
	return post, nil
}

// GetByID returns a post if viewer may see it. Posts hidden from the viewer
// are reported as not found.
func (s *PostService) GetByID(ctx context.Context, viewerID, postID uuid.UUID) (*models.Post, error) {
	post, err := scanPost(s.db.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`,
		postID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting post: %w", err)
	}

	friends, err := s.relation(ctx, viewerID, post.AuthorID)
	if err != nil {
		return nil, err
	}
	if !canView(viewerID, post.AuthorID, friends, post.Visibility) {
		return nil, ErrPostNotFound
	}
	return post, nil
}

// ListByAuthor returns the author's posts visible to viewer, newest first.
func (s *PostService) ListByAuthor(ctx context.Context, viewerID, authorID uuid.UUID) ([]models.Post, error) {
	posts, err := s.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE author_id = $1
		 ORDER BY created_at DESC, id DESC`,
		authorID,
	)
	if err != nil {
		return nil, err
	}

	friends, err := s.relation(ctx, viewerID, authorID)
	if err != nil {
		return nil, err
	}
	return FilterVisible(viewerID, authorID, friends, posts), nil
}

// ListPublic is the public feed, newest first.
func (s *PostService) ListPublic(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	return s.queryPosts(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE visibility = 'public'
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`,
		limit,
	)
}

func (s *PostService) relation(ctx context.Context, viewerID, authorID uuid.UUID) (bool, error) {
	if viewerID == authorID || s.friends == nil {
		return false, nil
	}
	friends, err := s.friends.IsFriend(ctx, viewerID, authorID)
	if err != nil {
		return false, fmt.Errorf("resolving visibility: %w", err)
	}
	return friends, nil
}

// Update edits a post on behalf of its author. If the post reports a match
// and its stat is still live, the stat is revised to the new content.
func (s *PostService) Update(ctx context.Context, callerID, postID uuid.UUID, params models.UpdatePostParams) (*models.Post, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := scanPost(tx.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1 FOR UPDATE`,
		postID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting post: %w", err)
	}
	if current.AuthorID != callerID {
		return nil, ErrNotPostAuthor
	}

	content := current.Content
	if params.Content != nil {
		content = strings.TrimSpace(*params.Content)
		if content == "" || len(content) > maxPostContentLength {
			return nil, ErrEmptyPost
		}
	}
	imageURL := current.ImageURL
	if params.ImageURL != nil {
		imageURL = params.ImageURL
		if *imageURL == "" {
			imageURL = nil
		}
	}
	visibility := current.Visibility
	if params.Visibility != nil {
		if !params.Visibility.Valid() {
			return nil, ErrInvalidVisibility
		}
		visibility = *params.Visibility
	}

	post, err := scanPost(tx.QueryRow(ctx,
		`UPDATE posts SET content = $2, image_url = $3, visibility = $4, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+postColumns,
		postID, content, imageURL, string(visibility),
	))
	if err != nil {
		return nil, fmt.Errorf("updating post: %w", err)
	}

	var scores scoreSnapshot
	if post.CollaboratorID != nil && content != current.Content {
		stat, err := s.ledger.statForPost(ctx, tx, post.ID)
		switch {
		case errors.Is(err, ErrStatNotFound):
			logging.Debug("Post edited after its stat expired", map[string]interface{}{"post_id": post.ID.String()})
		case err != nil:
			return nil, err
		default:
			stat, scores, err = s.ledger.applyOutcome(ctx, tx, stat.ID, models.ParseOutcome(content), content)
			if err != nil {
				return nil, err
			}
			post.Stat = stat
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing post update: %w", err)
	}
	s.ledger.mirror(ctx, scores)
	return post, nil
}

// Delete removes a post. Its stat, if any, stays live until it is expired.
func (s *PostService) Delete(ctx context.Context, callerID, postID uuid.UUID) error {
	var authorID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT author_id FROM posts WHERE id = $1`, postID).Scan(&authorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrPostNotFound
	}
	if err != nil {
		return fmt.Errorf("getting post: %w", err)
	}
	if authorID != callerID {
		return ErrNotPostAuthor
	}

	result, err := s.db.Exec(ctx, `DELETE FROM posts WHERE id = $1 AND author_id = $2`, postID, callerID)
	if err != nil {
		return fmt.Errorf("deleting post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrPostNotFound
	}
	return nil
}

func (s *PostService) queryPosts(ctx context.Context, sql string, args ...any) ([]models.Post, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing posts: %w", err)
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning post: %w", err)
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating posts: %w", err)
	}
	return posts, nil
}

func scanPost(row Row) (*models.Post, error) {
	post := &models.Post{}
	var visibility string
	err := row.Scan(
		&post.ID, &post.AuthorID, &post.Content, &post.ImageURL,
		&visibility, &post.CollaboratorID, &post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	post.Visibility = models.Visibility(visibility)
	return post, nil
}
