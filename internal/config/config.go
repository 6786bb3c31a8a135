package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Reputation ReputationConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // Use HTTPS-only cookies
	Environment string // "development", "production", "test"
	Debug       bool
	LogLevel    string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
	MaxConns       int
	MinConns       int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// ReputationConfig controls the skill score ledger.
type ReputationConfig struct {
	// SkillScoreDelta is how far a single reported match moves each player.
	SkillScoreDelta int64
	LeaderboardKey  string
}

type RateLimitConfig struct {
	// FriendRequests is the number of friend requests a user may send per hour.
	FriendRequests int64
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// loadDotEnv is swapped out in tests.
var loadDotEnv = func() error {
	return godotenv.Load()
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := loadDotEnv(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			Secure:      getEnvBool("SERVER_SECURE", false),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvBool("DEBUG", false),
			LogLevel:    getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "matchpoint"),
			Password:       getEnv("DB_PASSWORD", "matchpoint"),
			DBName:         getEnv("DB_NAME", "matchpoint"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
			MaxConns:       getEnvInt("DB_MAX_CONNS", 25),
			MinConns:       getEnvInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
		},
		Reputation: ReputationConfig{
			SkillScoreDelta: getEnvInt64("SKILL_SCORE_DELTA", 10),
			LeaderboardKey:  getEnv("LEADERBOARD_KEY", "leaderboard:skill"),
		},
		RateLimit: RateLimitConfig{
			FriendRequests: getEnvInt64("FRIEND_REQUEST_RATE_LIMIT", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Database.MaxConns <= 0 || c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("invalid database pool bounds min=%d max=%d", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.Redis.PoolSize <= 0 {
		return fmt.Errorf("REDIS_POOL_SIZE must be positive, got %d", c.Redis.PoolSize)
	}
	if c.Reputation.SkillScoreDelta <= 0 {
		return fmt.Errorf("SKILL_SCORE_DELTA must be positive, got %d", c.Reputation.SkillScoreDelta)
	}
	if c.Reputation.LeaderboardKey == "" {
		return errors.New("LEADERBOARD_KEY must not be empty")
	}
	if c.RateLimit.FriendRequests <= 0 {
		return fmt.Errorf("FRIEND_REQUEST_RATE_LIMIT must be positive, got %d", c.RateLimit.FriendRequests)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
