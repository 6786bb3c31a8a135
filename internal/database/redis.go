package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDB backs sessions, rate-limit counters and the leaderboard mirror.
type RedisDB struct {
	Client *redis.Client
}

// RedisOptions describes how to reach redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

const (
	defaultRedisPoolSize = 10
	redisDialTimeout     = 5 * time.Second
	redisIOTimeout       = 3 * time.Second
)

var (
	newRedisClient = redis.NewClient
	redisPing      = func(ctx context.Context, client *redis.Client) error { return client.Ping(ctx).Err() }
)

func (o RedisOptions) clientOptions() *redis.Options {
	poolSize := o.PoolSize
	if poolSize <= 0 {
		poolSize = defaultRedisPoolSize
	}
	return &redis.Options{
		Addr:         o.Addr,
		Password:     o.Password,
		DB:           o.DB,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
		PoolSize:     poolSize,
		MinIdleConns: (poolSize + 2) / 3,
	}
}

func NewRedisDB(opts RedisOptions) (*RedisDB, error) {
	client := newRedisClient(opts.clientOptions())

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()

	if err := redisPing(ctx, client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", opts.Addr, err)
	}

	return &RedisDB{Client: client}, nil
}

func (r *RedisDB) Close() error {
	if r.Client != nil {
		return r.Client.Close()
	}
	return nil
}

func (r *RedisDB) Health(ctx context.Context) error {
	if r.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}
	return redisPing(ctx, r.Client)
}
