package router // package router registers every HTTP route of the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/seatswap/internal/config"
	"github.com/iliyamo/seatswap/internal/handler"
	"github.com/iliyamo/seatswap/internal/middleware"
	"github.com/iliyamo/seatswap/internal/model"
)

// Deps carries the handlers and shared infrastructure the routes need.
// Redis may be nil; caching and rate limiting then pass through.
type Deps struct {
	JWTSecret     string
	Redis         *redis.Client
	Cache         config.CacheConfig
	RateLimit     config.RateLimitConfig
	Health        *handler.Health
	Auth          *handler.AuthHandler
	Listings      *handler.ListingHandler
	Conversations *handler.ConversationHandler
	Notifications *handler.NotificationHandler
	Credits       *handler.CreditHandler
	Admin         *handler.AdminHandler
}

// RegisterRoutes wires public, authenticated and admin routes onto e.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", d.Health.Check)

	registerAuth(e, d)
	registerPublic(e, d)
	registerMember(e, d)
	registerAdmin(e, d)
}

// registerAuth: session endpoints live under /v1/auth and need no access
// token.  /v1/logout is kept as an alias.
func registerAuth(e *echo.Echo, d Deps) {
	g := e.Group("/v1/auth")
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/refresh-access", d.Auth.RefreshAccess)
	g.POST("/logout", d.Auth.Logout)

	e.POST("/v1/logout", d.Auth.Logout)
}

// registerPublic exposes browsing to guests.  Responses are cached in
// Redis when caching is enabled.
func registerPublic(e *echo.Echo, d Deps) {
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	e.GET("/v1/listings", d.Listings.Search, cache)
	e.GET("/v1/listings/:id", d.Listings.Get, cache)
	e.GET("/v1/listings/:id/related", d.Listings.Related, cache)
}

func registerMember(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleUser, model.RoleAdmin),
		middleware.NewTokenBucket(d.RateLimit, d.Redis),
	)

	g.GET("/me", d.Auth.Me)
	g.PATCH("/me/preferences", d.Auth.UpdatePreferences)

	// ---- Listings ----
	g.POST("/listings", d.Listings.Create)
	g.PATCH("/listings/:id/status", d.Listings.UpdateStatus)
	g.POST("/listings/:id/boost", d.Listings.Boost)
	g.DELETE("/listings/:id", d.Listings.Delete)

	// ---- Conversations ----
	g.POST("/conversations", d.Conversations.Start)
	g.GET("/conversations", d.Conversations.List)
	g.GET("/conversations/:id", d.Conversations.Get)
	g.POST("/conversations/:id/archive", d.Conversations.Archive)
	g.POST("/conversations/:id/complete", d.Conversations.Complete)
	g.POST("/conversations/:id/messages", d.Conversations.SendMessage)
	g.GET("/conversations/:id/messages", d.Conversations.ListMessages)

	// ---- Notifications ----
	g.GET("/notifications", d.Notifications.List)
	g.GET("/notifications/unread-count", d.Notifications.UnreadCount)
	g.POST("/notifications/:id/read", d.Notifications.MarkRead)
	g.POST("/notifications/read-all", d.Notifications.MarkAllRead)

	// ---- Credits ----
	g.GET("/credits", d.Credits.Get)
	g.POST("/credits/purchase", d.Credits.Purchase)
}

func registerAdmin(e *echo.Echo, d Deps) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/listings/expire", d.Admin.ExpireListings)
	g.GET("/users/:id/credits/verify", d.Admin.VerifyCredits)
}
