package services

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeDB struct {
	ExecFunc     func(ctx context.Context, sql string, args ...any) (CommandTag, error)
	QueryFunc    func(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRowFunc func(ctx context.Context, sql string, args ...any) Row
	BeginFunc    func(ctx context.Context) (Tx, error)

	lastTx *fakeTx
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	if f.ExecFunc != nil {
		return f.ExecFunc(ctx, sql, args...)
	}
	return fakeCommandTag{}, nil
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if f.QueryFunc != nil {
		return f.QueryFunc(ctx, sql, args...)
	}
	return &fakeRows{}, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) Row {
	if f.QueryRowFunc != nil {
		return f.QueryRowFunc(ctx, sql, args...)
	}
	return fakeRow{scanFunc: func(dest ...any) error { return errors.New("unexpected QueryRow") }}
}

func (f *fakeDB) Begin(ctx context.Context) (Tx, error) {
	if f.BeginFunc != nil {
		return f.BeginFunc(ctx)
	}
	f.lastTx = &fakeTx{db: f}
	return f.lastTx, nil
}

// fakeTx delegates statements to its fakeDB unless overridden.
type fakeTx struct {
	db *fakeDB

	CommitFunc func(ctx context.Context) error

	committed  bool
	rolledBack bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(ctx context.Context) error {
	if t.CommitFunc != nil {
		if err := t.CommitFunc(ctx); err != nil {
			return err
		}
	}
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeRow struct {
	scanFunc func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error {
	return r.scanFunc(dest...)
}

func rowFromValues(values ...any) Row {
	return fakeRow{scanFunc: func(dest ...any) error {
		return assignValues(dest, values)
	}}
}

func errRow(err error) Row {
	return fakeRow{scanFunc: func(dest ...any) error { return err }}
}

type fakeRows struct {
	rows [][]any
	idx  int
	err  error

	closed bool
}

func (r *fakeRows) Close() {
	r.closed = true
}

func (r *fakeRows) Err() error {
	return r.err
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return assignValues(dest, r.rows[r.idx-1])
}

type fakeCommandTag struct {
	rowsAffected int64
}

func (c fakeCommandTag) RowsAffected() int64 {
	return c.rowsAffected
}

func assignValues(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i := range dest {
		if err := assign(dest[i], values[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

func assign(dest, value any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination %T is not a pointer", dest)
	}
	target := dv.Elem()
	if value == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(target.Type()):
		target.Set(v)
	case target.Kind() == reflect.Pointer && v.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(v)
		target.Set(p)
	case v.Kind() == target.Kind() && v.Type().ConvertibleTo(target.Type()):
		target.Set(v.Convert(target.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", value, target.Type())
	}
	return nil
}

// fakeRedis is a map-backed session cache. Errors are injected per command.
type fakeRedis struct {
	values  map[string]string
	ttls    map[string]time.Duration
	deleted []string

	setErr error
	getErr error
	delErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = fmt.Sprint(value)
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.deleted = append(f.deleted, keys...)
	for _, key := range keys {
		delete(f.values, key)
		delete(f.ttls, key)
	}
	return f.delErr
}

// fakeBoard is an in-memory sorted set.
type fakeBoard struct {
	mu     sync.Mutex
	scores map[string]float64

	addErr   error
	rangeErr error
}

func newFakeBoard() *fakeBoard {
	return &fakeBoard{scores: map[string]float64{}}
}

func (b *fakeBoard) ZAdd(ctx context.Context, key string, members ...redis.Z) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.addErr != nil {
		return b.addErr
	}
	for _, m := range members {
		b.scores[m.Member.(string)] = m.Score
	}
	return nil
}

func (b *fakeBoard) setAddErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addErr = err
}

func (b *fakeBoard) ZRem(ctx context.Context, key string, members ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, m := range members {
		delete(b.scores, m)
	}
	return nil
}

func (b *fakeBoard) ZRevRangeWithScores(ctx context.Context, key string, start, stop int64) ([]redis.Z, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rangeErr != nil {
		return nil, b.rangeErr
	}
	out := make([]redis.Z, 0, len(b.scores))
	for m, s := range b.scores {
		out = append(out, redis.Z{Member: m, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].Member.(string) > out[j].Member.(string)
		}
		return out[i].Score > out[j].Score
	})
	if stop >= int64(len(out)) {
		stop = int64(len(out)) - 1
	}
	if start > stop {
		return []redis.Z{}, nil
	}
	return out[start : stop+1], nil
}

func (b *fakeBoard) Replace(ctx context.Context, key string, members []redis.Z) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.scores = map[string]float64{}
	for _, m := range members {
		b.scores[m.Member.(string)] = m.Score
	}
	return nil
}

func (b *fakeBoard) score(member string) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scores[member]
}
