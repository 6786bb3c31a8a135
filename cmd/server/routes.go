package main

import (
	"net/http"

	"github.com/HammerMeetNail/matchpoint/internal/handlers"
	"github.com/HammerMeetNail/matchpoint/internal/middleware"
)

type application struct {
	health     *handlers.HealthHandler
	auth       *handlers.AuthHandler
	users      *handlers.UserHandler
	friends    *handlers.FriendHandler
	posts      *handlers.PostHandler
	reputation *handlers.ReputationHandler

	authMW        *middleware.AuthMiddleware
	csrf          *middleware.CSRFMiddleware
	authLimiter   *middleware.RateLimiter
	friendLimiter *middleware.RateLimiter
}

func (a *application) routes() *http.ServeMux {
	requireAuth := func(h http.HandlerFunc) http.Handler { return a.authMW.RequireAuth(h) }
	limitAuth := func(h http.HandlerFunc) http.Handler { return a.authLimiter.Middleware(h) }

	mux := http.NewServeMux()

	// Health endpoints (no auth, no rate limit)
	mux.HandleFunc("GET /health", a.health.Health)
	mux.HandleFunc("GET /ready", a.health.Ready)
	mux.HandleFunc("GET /live", a.health.Live)

	mux.HandleFunc("GET /api/csrf", a.csrf.GetToken)

	// Auth endpoints
	mux.Handle("POST /api/auth/register", limitAuth(a.auth.Register))
	mux.Handle("POST /api/auth/login", limitAuth(a.auth.Login))
	mux.HandleFunc("POST /api/auth/logout", a.auth.Logout)
	mux.HandleFunc("GET /api/auth/me", a.auth.Me)

	// User endpoints
	mux.HandleFunc("GET /api/users", a.users.List)
	mux.HandleFunc("GET /api/users/{username}", a.users.Get)
	mux.Handle("PUT /api/users/me/profile", requireAuth(a.users.UpdateProfile))
	mux.Handle("PUT /api/users/me/preferences", requireAuth(a.users.UpdatePreferences))
	mux.Handle("DELETE /api/users/me", requireAuth(a.users.Delete))
	mux.Handle("GET /api/users/me/matches", requireAuth(a.users.Matches))

	// Friend endpoints
	mux.Handle("GET /api/friends", requireAuth(a.friends.List))
	mux.Handle("DELETE /api/friends/{username}", requireAuth(a.friends.Remove))
	mux.Handle("GET /api/friends/requests", requireAuth(a.friends.Requests))
	mux.Handle("POST /api/friends/requests/{username}", a.authMW.RequireAuth(a.friendLimiter.Middleware(http.HandlerFunc(a.friends.SendRequest))))
	mux.Handle("DELETE /api/friends/requests/{username}", requireAuth(a.friends.RemoveRequest))
	mux.Handle("PUT /api/friends/requests/{username}/accept", requireAuth(a.friends.AcceptRequest))
	mux.Handle("PUT /api/friends/requests/{username}/reject", requireAuth(a.friends.RejectRequest))

	// Post endpoints
	mux.HandleFunc("GET /api/posts", a.posts.List)
	mux.HandleFunc("GET /api/posts/{id}", a.posts.Get)
	mux.Handle("POST /api/posts", requireAuth(a.posts.Create))
	mux.Handle("PATCH /api/posts/{id}", requireAuth(a.posts.Update))
	mux.Handle("DELETE /api/posts/{id}", requireAuth(a.posts.Delete))

	// Reputation endpoints
	mux.HandleFunc("GET /api/stats/{id}", a.reputation.GetStat)
	mux.Handle("DELETE /api/stats/{id}", requireAuth(a.reputation.ExpireStat))
	mux.HandleFunc("GET /api/scores/{username}", a.reputation.GetScore)
	mux.HandleFunc("GET /api/leaderboard", a.reputation.Leaderboard)

	return mux
}
