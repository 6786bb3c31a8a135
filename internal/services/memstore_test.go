package services

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/HammerMeetNail/matchpoint/internal/models"
)

// memStore is an in-memory stand-in for the Postgres schema. It understands
// the statements the friendship, post and reputation services issue and
// emulates advisory and row locks so concurrent tests serialize the way they
// would against Postgres. Statements apply immediately; rollback does not
// undo them.
type memStore struct {
	mu sync.Mutex

	users    map[uuid.UUID]string
	scores   map[uuid.UUID]int64
	requests map[[2]uuid.UUID]time.Time
	edges    map[[2]uuid.UUID]time.Time
	posts    map[uuid.UUID]*models.Post
	stats    map[uuid.UUID]*models.Stat

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	clock   time.Time
	commits int
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[uuid.UUID]string{},
		scores:   map[uuid.UUID]int64{},
		requests: map[[2]uuid.UUID]time.Time{},
		edges:    map[[2]uuid.UUID]time.Time{},
		posts:    map[uuid.UUID]*models.Post{},
		stats:    map[uuid.UUID]*models.Stat{},
		locks:    map[string]*sync.Mutex{},
		clock:    time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addUser(name string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.users[id] = name
	m.scores[id] = 0
	return id
}

func (m *memStore) score(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scores[id]
}

func (m *memStore) totalScore() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, s := range m.scores {
		total += s
	}
	return total
}

// tick returns a strictly increasing timestamp so ordering by created_at is
// deterministic.
func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return (&memTx{store: m}).exec(sql, args...)
}

func (m *memStore) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return m.query(sql, args...)
}

func (m *memStore) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return m.queryRow(sql, args...)
}

func (m *memStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{store: m}, nil
}

type memTx struct {
	store *memStore
	held  []*sync.Mutex
	done  bool
}

func (t *memTx) lock(key string) {
	t.store.lockMu.Lock()
	l, ok := t.store.locks[key]
	if !ok {
		l = &sync.Mutex{}
		t.store.locks[key] = l
	}
	t.store.lockMu.Unlock()

	for _, h := range t.held {
		if h == l {
			return
		}
	}
	l.Lock()
	t.held = append(t.held, l)
}

func (t *memTx) release() {
	if t.done {
		return
	}
	t.done = true
	for _, l := range t.held {
		l.Unlock()
	}
	t.held = nil
}

func (t *memTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if strings.Contains(sql, "pg_advisory_xact_lock") {
		t.lock(fmt.Sprintf("pair:%d", args[0].(int64)))
		return fakeCommandTag{}, nil
	}
	return t.exec(sql, args...)
}

func (t *memTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if strings.Contains(sql, "FOR UPDATE") && strings.Contains(sql, "user1_id = $1 OR user2_id = $1") {
		for _, id := range t.store.statIDsForUser(args[0].(uuid.UUID)) {
			t.lock("stat:" + id.String())
		}
	}
	return t.store.query(sql, args...)
}

func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if strings.Contains(sql, "FOR UPDATE") {
		switch {
		case strings.Contains(sql, "FROM stats WHERE id = $1"):
			t.lock("stat:" + args[0].(uuid.UUID).String())
		case strings.Contains(sql, "FROM stats WHERE post_id = $1"):
			if id, ok := t.store.statIDForPost(args[0].(uuid.UUID)); ok {
				t.lock("stat:" + id.String())
			}
		case strings.Contains(sql, "FROM posts WHERE id = $1"):
			t.lock("post:" + args[0].(uuid.UUID).String())
		}
	}
	return t.store.queryRow(sql, args...)
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	t.store.commits++
	t.store.mu.Unlock()
	t.release()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.release()
	return nil
}

func (m *memStore) statIDsForUser(userID uuid.UUID) []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, s := range m.stats {
		if s.User1ID == userID || s.User2ID == userID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

func (m *memStore) statIDForPost(postID uuid.UUID) (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.stats {
		if s.PostID != nil && *s.PostID == postID {
			return id, true
		}
	}
	return uuid.Nil, false
}

func pairOf(a, b any) [2]uuid.UUID {
	return [2]uuid.UUID{a.(uuid.UUID), b.(uuid.UUID)}
}

func (t *memTx) exec(sql string, args ...any) (CommandTag, error) {
	m := t.store
	m.mu.Lock()
	defer m.mu.Unlock()

	affected := func(ok bool) (CommandTag, error) {
		if ok {
			return fakeCommandTag{rowsAffected: 1}, nil
		}
		return fakeCommandTag{}, nil
	}

	switch {
	case strings.Contains(sql, "DELETE FROM friend_requests"):
		key := pairOf(args[0], args[1])
		_, ok := m.requests[key]
		delete(m.requests, key)
		return affected(ok)

	case strings.Contains(sql, "DELETE FROM friendships"):
		key := pairOf(args[0], args[1])
		_, ok := m.edges[key]
		delete(m.edges, key)
		return affected(ok)

	case strings.Contains(sql, "UPDATE stats SET token"):
		s, ok := m.stats[args[0].(uuid.UUID)]
		if ok {
			s.Token = args[1].(string)
			s.Won = args[2].(bool)
			s.AppliedDelta = args[3].(int64)
			s.Revisions = args[4].(int)
		}
		return affected(ok)

	case strings.Contains(sql, "DELETE FROM stats WHERE id"):
		id := args[0].(uuid.UUID)
		_, ok := m.stats[id]
		delete(m.stats, id)
		return affected(ok)

	case strings.Contains(sql, "DELETE FROM posts"):
		id := args[0].(uuid.UUID)
		p, ok := m.posts[id]
		if !ok || p.AuthorID != args[1].(uuid.UUID) {
			return affected(false)
		}
		delete(m.posts, id)
		for _, s := range m.stats {
			if s.PostID != nil && *s.PostID == id {
				s.PostID = nil
			}
		}
		return affected(true)

	case strings.Contains(sql, "INSERT INTO skill_scores"):
		m.scores[args[0].(uuid.UUID)] = 0
		return affected(true)

	case strings.Contains(sql, "DELETE FROM users"):
		id := args[0].(uuid.UUID)
		if _, ok := m.users[id]; !ok {
			return affected(false)
		}
		m.cascadeUser(id)
		return affected(true)
	}
	return nil, fmt.Errorf("memStore: unsupported exec %q", sql)
}

func (m *memStore) cascadeUser(id uuid.UUID) {
	delete(m.users, id)
	delete(m.scores, id)
	for k := range m.requests {
		if k[0] == id || k[1] == id {
			delete(m.requests, k)
		}
	}
	for k := range m.edges {
		if k[0] == id || k[1] == id {
			delete(m.edges, k)
		}
	}
	for pid, p := range m.posts {
		if p.AuthorID == id {
			delete(m.posts, pid)
			for _, s := range m.stats {
				if s.PostID != nil && *s.PostID == pid {
					s.PostID = nil
				}
			}
		} else if p.CollaboratorID != nil && *p.CollaboratorID == id {
			p.CollaboratorID = nil
		}
	}
	for sid, s := range m.stats {
		if s.User1ID == id || s.User2ID == id {
			delete(m.stats, sid)
		}
	}
}

func statValues(s *models.Stat) []any {
	return []any{s.ID, s.PostID, s.User1ID, s.User2ID, s.Token, s.Won, s.AppliedDelta, s.Revisions, s.CreatedAt, s.ExpiresAt}
}

func postValues(p *models.Post) []any {
	return []any{p.ID, p.AuthorID, p.Content, p.ImageURL, string(p.Visibility), p.CollaboratorID, p.CreatedAt, p.UpdatedAt}
}

func (m *memStore) queryRow(sql string, args ...any) Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case strings.Contains(sql, "SELECT 1 FROM friend_requests"):
		a, b := args[0].(uuid.UUID), args[1].(uuid.UUID)
		_, ab := m.requests[[2]uuid.UUID{a, b}]
		_, ba := m.requests[[2]uuid.UUID{b, a}]
		return rowFromValues(ab || ba)

	case strings.Contains(sql, "SELECT 1 FROM friendships"):
		_, ok := m.edges[pairOf(args[0], args[1])]
		return rowFromValues(ok)

	case strings.Contains(sql, "INSERT INTO friend_requests"):
		key := pairOf(args[0], args[1])
		if _, ok := m.requests[key]; ok {
			return errRow(&pgconn.PgError{Code: uniqueViolation})
		}
		if _, ok := m.users[key[0]]; !ok {
			return errRow(&pgconn.PgError{Code: foreignKeyViolation})
		}
		if _, ok := m.users[key[1]]; !ok {
			return errRow(&pgconn.PgError{Code: foreignKeyViolation})
		}
		at := m.tick()
		m.requests[key] = at
		return rowFromValues(key[0], key[1], at)

	case strings.Contains(sql, "INSERT INTO friendships"):
		key := pairOf(args[0], args[1])
		if bytes.Compare(key[0][:], key[1][:]) >= 0 {
			return errRow(fmt.Errorf("friendships_ordered check violated"))
		}
		if _, ok := m.edges[key]; ok {
			return errRow(&pgconn.PgError{Code: uniqueViolation})
		}
		at := m.tick()
		m.edges[key] = at
		return rowFromValues(key[0], key[1], at)

	case strings.Contains(sql, "INSERT INTO posts"):
		author := args[0].(uuid.UUID)
		if _, ok := m.users[author]; !ok {
			return errRow(&pgconn.PgError{Code: foreignKeyViolation})
		}
		collab := args[4].(*uuid.UUID)
		if collab != nil {
			if _, ok := m.users[*collab]; !ok {
				return errRow(&pgconn.PgError{Code: foreignKeyViolation})
			}
		}
		at := m.tick()
		p := &models.Post{
			ID:             uuid.New(),
			AuthorID:       author,
			Content:        args[1].(string),
			ImageURL:       args[2].(*string),
			Visibility:     models.Visibility(args[3].(string)),
			CollaboratorID: collab,
			CreatedAt:      at,
			UpdatedAt:      at,
		}
		m.posts[p.ID] = p
		return rowFromValues(postValues(p)...)

	case strings.Contains(sql, "UPDATE posts SET content"):
		p, ok := m.posts[args[0].(uuid.UUID)]
		if !ok {
			return errRow(pgx.ErrNoRows)
		}
		p.Content = args[1].(string)
		p.ImageURL = args[2].(*string)
		p.Visibility = models.Visibility(args[3].(string))
		p.UpdatedAt = m.tick()
		return rowFromValues(postValues(p)...)

	case strings.Contains(sql, "SELECT author_id FROM posts WHERE id"):
		p, ok := m.posts[args[0].(uuid.UUID)]
		if !ok {
			return errRow(pgx.ErrNoRows)
		}
		return rowFromValues(p.AuthorID)

	case strings.Contains(sql, "FROM posts WHERE id = $1"):
		p, ok := m.posts[args[0].(uuid.UUID)]
		if !ok {
			return errRow(pgx.ErrNoRows)
		}
		return rowFromValues(postValues(p)...)

	case strings.Contains(sql, "INSERT INTO stats"):
		user1, user2 := args[1].(uuid.UUID), args[2].(uuid.UUID)
		if _, ok := m.users[user1]; !ok {
			return errRow(&pgconn.PgError{Code: foreignKeyViolation})
		}
		if _, ok := m.users[user2]; !ok {
			return errRow(&pgconn.PgError{Code: foreignKeyViolation})
		}
		s := &models.Stat{
			ID:        uuid.New(),
			PostID:    args[0].(*uuid.UUID),
			User1ID:   user1,
			User2ID:   user2,
			Token:     args[3].(string),
			Won:       args[4].(bool),
			CreatedAt: args[5].(time.Time),
			ExpiresAt: args[6].(time.Time),
		}
		m.stats[s.ID] = s
		return rowFromValues(statValues(s)...)

	case strings.Contains(sql, "FROM stats WHERE id = $1"):
		s, ok := m.stats[args[0].(uuid.UUID)]
		if !ok {
			return errRow(pgx.ErrNoRows)
		}
		cp := *s
		return rowFromValues(statValues(&cp)...)

	case strings.Contains(sql, "FROM stats WHERE post_id = $1"):
		for _, s := range m.stats {
			if s.PostID != nil && *s.PostID == args[0].(uuid.UUID) {
				cp := *s
				return rowFromValues(statValues(&cp)...)
			}
		}
		return errRow(pgx.ErrNoRows)

	case strings.Contains(sql, "UPDATE skill_scores SET score = score + $1"):
		id := args[1].(uuid.UUID)
		if _, ok := m.scores[id]; !ok {
			return errRow(pgx.ErrNoRows)
		}
		m.scores[id] += args[0].(int64)
		return rowFromValues(m.scores[id])

	case strings.Contains(sql, "FROM skill_scores WHERE user_id = $1"):
		id := args[0].(uuid.UUID)
		score, ok := m.scores[id]
		if !ok {
			return errRow(pgx.ErrNoRows)
		}
		return rowFromValues(id, score, m.clock)
	}
	return errRow(fmt.Errorf("memStore: unsupported query row %q", sql))
}

func (m *memStore) query(sql string, args ...any) (Rows, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case strings.Contains(sql, "SELECT user1_id, user2_id, applied_delta FROM stats"):
		id := args[0].(uuid.UUID)
		rows := &fakeRows{}
		for _, s := range m.stats {
			if s.User1ID == id || s.User2ID == id {
				rows.rows = append(rows.rows, []any{s.User1ID, s.User2ID, s.AppliedDelta})
			}
		}
		return rows, nil

	case strings.Contains(sql, "FROM posts") && strings.Contains(sql, "WHERE author_id = $1"):
		author := args[0].(uuid.UUID)
		var posts []*models.Post
		for _, p := range m.posts {
			if p.AuthorID == author {
				posts = append(posts, p)
			}
		}
		sortNewestFirst(posts)
		rows := &fakeRows{}
		for _, p := range posts {
			rows.rows = append(rows.rows, postValues(p))
		}
		return rows, nil

	case strings.Contains(sql, "FROM posts") && strings.Contains(sql, "WHERE visibility = 'public'"):
		var posts []*models.Post
		for _, p := range m.posts {
			if p.Visibility == models.VisibilityPublic {
				posts = append(posts, p)
			}
		}
		sortNewestFirst(posts)
		limit := args[0].(int)
		if len(posts) > limit {
			posts = posts[:limit]
		}
		rows := &fakeRows{}
		for _, p := range posts {
			rows.rows = append(rows.rows, postValues(p))
		}
		return rows, nil

	case strings.Contains(sql, "SELECT id, username FROM users WHERE id = ANY($1)"):
		rows := &fakeRows{}
		for _, id := range args[0].([]uuid.UUID) {
			if name, ok := m.users[id]; ok {
				rows.rows = append(rows.rows, []any{id, name})
			}
		}
		return rows, nil

	case strings.Contains(sql, "FROM skill_scores s"):
		type entry struct {
			id    uuid.UUID
			name  string
			score int64
		}
		var entries []entry
		for id, score := range m.scores {
			entries = append(entries, entry{id, m.users[id], score})
		}
		sort.Slice(entries, func(i, j int) bool {
			if entries[i].score == entries[j].score {
				return entries[i].name < entries[j].name
			}
			return entries[i].score > entries[j].score
		})
		limit := args[0].(int)
		if len(entries) > limit {
			entries = entries[:limit]
		}
		rows := &fakeRows{}
		for _, e := range entries {
			rows.rows = append(rows.rows, []any{e.id, e.name, e.score})
		}
		return rows, nil

	case strings.Contains(sql, "SELECT user_id, score FROM skill_scores"):
		rows := &fakeRows{}
		for id, score := range m.scores {
			rows.rows = append(rows.rows, []any{id, score})
		}
		return rows, nil
	}
	return nil, fmt.Errorf("memStore: unsupported query %q", sql)
}

func sortNewestFirst(posts []*models.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return bytes.Compare(posts[i].ID[:], posts[j].ID[:]) > 0
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
}
