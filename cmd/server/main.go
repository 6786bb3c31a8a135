package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/HammerMeetNail/matchpoint/internal/config"
	"github.com/HammerMeetNail/matchpoint/internal/database"
	"github.com/HammerMeetNail/matchpoint/internal/handlers"
	"github.com/HammerMeetNail/matchpoint/internal/logging"
	"github.com/HammerMeetNail/matchpoint/internal/middleware"
	"github.com/HammerMeetNail/matchpoint/internal/services"
)

func main() {
	if err := run(); err != nil {
		logging.Error("Application error", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level := logging.ParseLevel(cfg.Server.LogLevel)
	if cfg.Server.Debug {
		level = logging.LevelDebug
	}
	logging.SetDefaultLevel(level)
	logger := logging.New().SetLevel(level)

	logger.Info("Starting matchpoint server...", map[string]interface{}{
		"env":   cfg.Server.Environment,
		"level": level.String(),
	})

	// Connect to PostgreSQL
	logger.Info("Connecting to PostgreSQL", map[string]interface{}{
		"host": cfg.Database.Host,
		"port": cfg.Database.Port,
	})
	db, err := database.NewPostgresDB(cfg.Database.DSN(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer db.Close()

	migrator, err := database.NewMigrator(cfg.Database.DSN(), cfg.Database.MigrationsPath)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := migrator.Apply(logger.Named("migrate")); err != nil {
		_ = migrator.Close()
		return err
	}
	_ = migrator.Close()

	// Connect to Redis
	logger.Info("Connecting to Redis", map[string]interface{}{
		"addr": cfg.Redis.Addr(),
	})
	redisDB, err := database.NewRedisDB(database.RedisOptions{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() { _ = redisDB.Close() }()

	// Initialize services
	dbAdapter := services.NewPoolAdapter(db.Pool)
	redisAdapter := services.NewRedisAdapter(redisDB.Client)

	reputationService := services.NewReputationService(dbAdapter, redisAdapter, cfg.Reputation.SkillScoreDelta, cfg.Reputation.LeaderboardKey)
	userService := services.NewUserService(dbAdapter, reputationService)
	friendService := services.NewFriendService(dbAdapter)
	postService := services.NewPostService(dbAdapter, friendService, reputationService)
	authService := services.NewAuthService(dbAdapter, redisAdapter)

	syncCtx, cancelSync := context.WithTimeout(context.Background(), 30*time.Second)
	if err := reputationService.SyncLeaderboard(syncCtx); err != nil {
		// Reads fall back to Postgres until the next successful sync.
		logger.Warn("Leaderboard sync failed", map[string]interface{}{"error": err.Error()})
	}
	cancelSync()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redisDB)
	authHandler := handlers.NewAuthHandler(userService, authService, cfg.Server.Secure)
	userHandler := handlers.NewUserHandler(userService, authService, cfg.Server.Secure)
	friendHandler := handlers.NewFriendHandler(friendService, userService)
	postHandler := handlers.NewPostHandler(postService, userService)
	reputationHandler := handlers.NewReputationHandler(reputationService, userService)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)
	csrfMiddleware := middleware.NewCSRFMiddleware(cfg.Server.Secure)
	securityHeaders := middleware.NewSecurityHeaders(cfg.Server.Secure)
	requestLogger := middleware.NewRequestLogger(logger)

	counter := middleware.NewRedisCounter(redisDB.Client)
	authLimiter := middleware.NewAuthRateLimiter(counter)
	friendRequestLimiter := middleware.NewFriendRequestRateLimiter(counter, cfg.RateLimit.FriendRequests)

	app := &application{
		health:        healthHandler,
		auth:          authHandler,
		users:         userHandler,
		friends:       friendHandler,
		posts:         postHandler,
		reputation:    reputationHandler,
		authMW:        authMiddleware,
		csrf:          csrfMiddleware,
		authLimiter:   authLimiter,
		friendLimiter: friendRequestLimiter,
	}
	mux := app.routes()

	// Build middleware chain (order matters: outermost last)
	var handler http.Handler = mux
	handler = authMiddleware.Authenticate(handler)
	handler = csrfMiddleware.Protect(handler)
	handler = securityHeaders.Apply(handler)
	handler = requestLogger.Apply(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logger.Info("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		server.SetKeepAlivesEnabled(false)
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("Could not gracefully shutdown the server", map[string]interface{}{
				"error": err.Error(),
			})
		}
		close(done)
	}()

	logger.Info("Server listening", map[string]interface{}{"addr": addr})
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("Server stopped")
	return nil
}
