package handlers

import (
	"context"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sportsocial/backend/internal/cache"
	"github.com/sportsocial/backend/internal/middleware"
	"github.com/sportsocial/backend/internal/websocket"
)

// SocketPath is where the realtime channel is served.
const SocketPath = "/socket"

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Handlers       *Handlers
	RequireAuth    gin.HandlerFunc
	Socket         *websocket.Handler
	Redis          *cache.RedisClient
	AllowedOrigins []string
	ServiceName    string
	// RateLimits overrides the default limits; nil keeps them.
	RateLimits *RateLimits
}

// RateLimits holds the per-IP limits for the public auth routes and the
// authenticated API.
type RateLimits struct {
	Auth middleware.RateLimitConfig
	API  middleware.RateLimitConfig
}

// NewRouter builds the gin engine with the middleware stack and every
// route. ctx bounds the in-memory rate limiters' sweepers.
func NewRouter(ctx context.Context, cfg RouterConfig) *gin.Engine {
	h := cfg.Handlers
	limits := RateLimits{
		Auth: middleware.AuthRateLimitConfig(),
		API:  middleware.DefaultRateLimitConfig(),
	}
	if cfg.RateLimits != nil {
		limits = *cfg.RateLimits
	}
	authLimiter := middleware.NewLimiter(ctx, cfg.Redis, limits.Auth)
	apiLimiter := middleware.NewLimiter(ctx, cfg.Redis, limits.API)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	if cfg.ServiceName != "" {
		r.Use(middleware.Tracing(cfg.ServiceName))
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowCredentials = !corsConfig.AllowAllOrigins
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader, "Retry-After"}
	r.Use(cors.New(corsConfig))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{SocketPath, "/metrics"})))

	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if cfg.Socket != nil {
		r.GET(SocketPath, cfg.Socket.HandleWebSocket)
	}

	api := r.Group("/api")
	api.GET("/health", h.Health)

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimit("auth", authLimiter, limits.Auth))
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/send-otp", h.SendOTP)
		authGroup.POST("/verify-otp", h.VerifyOTP)
		authGroup.POST("/resend-otp", h.ResendOTP)
		authGroup.POST("/forgot-password", h.ForgotPassword)
		authGroup.POST("/verify-reset-otp", h.VerifyResetOTP)
		authGroup.POST("/reset-password", h.ResetPassword)
		authGroup.POST("/logout", cfg.RequireAuth, h.Logout)
		authGroup.GET("/me", cfg.RequireAuth, h.Me)
	}

	protected := api.Group("")
	protected.Use(cfg.RequireAuth, middleware.RateLimit("api", apiLimiter, limits.API))

	users := protected.Group("/users")
	{
		users.GET("/search", h.SearchUsers)
		users.GET("/:id", h.GetUserProfile)
		users.GET("/:id/followers", h.GetUserFollowers)
		users.GET("/:id/following", h.GetUserFollowing)
		users.POST("/:id/follow", h.FollowUser)
		users.POST("/:id/unfollow", h.UnfollowUser)
		users.GET("/:id/posts", h.GetUserPosts)
	}

	posts := protected.Group("/posts")
	{
		posts.GET("", h.ListPosts)
		posts.GET("/nearby", h.NearbyPosts)
		posts.POST("", h.CreatePost)
		posts.GET("/:id", h.GetPost)
		posts.PUT("/:id", h.UpdatePost)
		posts.DELETE("/:id", h.DeletePost)
		posts.POST("/:id/interest", h.ExpressInterest)
		posts.DELETE("/:id/interest", h.RemoveInterest)
		posts.GET("/:id/interested", h.GetInterestedUsers)
		posts.GET("/:id/registrations", h.GetPostRegistrations)
	}

	messages := protected.Group("/messages")
	{
		messages.GET("/groups", h.ListGroupChats)
		messages.GET("/groups/:id", h.GetGroupChat)
		messages.GET("/groups/:id/messages", h.GetGroupMessages)
		messages.POST("/groups/:id/messages", h.SendGroupMessage)
		messages.POST("/groups/:id/read", h.MarkGroupRead)
		messages.POST("/groups/:id/members", h.AddGroupMember)
		messages.DELETE("/groups/:id/members/:userId", h.RemoveGroupMember)
		messages.GET("/unread-count", h.GetUnreadCount)
		messages.DELETE("/:id", h.DeleteMessage)
	}

	direct := protected.Group("/direct-messages")
	{
		direct.GET("/conversations", h.ListConversations)
		direct.POST("/conversations", h.StartConversation)
		direct.GET("/conversations/:id/messages", h.GetConversationMessages)
		direct.POST("/conversations/:id/read", h.MarkConversationRead)
		direct.POST("/send", h.SendDirectMessage)
	}

	notifications := protected.Group("/notifications")
	{
		notifications.GET("", h.GetNotifications)
		notifications.GET("/unread-count", h.GetNotificationUnreadCount)
		notifications.POST("/read", h.MarkNotificationsRead)
		notifications.POST("/:id/read", h.MarkNotificationRead)
		notifications.DELETE("/:id", h.DeleteNotification)
	}

	reviews := protected.Group("/reviews")
	{
		reviews.GET("", h.ListReviews)
		reviews.POST("", h.CreateReview)
		reviews.GET("/:id", h.GetReview)
		reviews.PUT("/:id", h.UpdateReview)
		reviews.DELETE("/:id", h.DeleteReview)
		reviews.POST("/:id/vote", h.VoteReview)
	}

	settings := protected.Group("/settings")
	{
		settings.GET("", h.GetSettings)
		settings.PUT("", h.UpdateSettings)
		settings.GET("/preferences", h.GetPreferences)
		settings.PUT("/preferences", h.UpdatePreferences)
		settings.PUT("/profile", h.UpdateProfile)
		settings.PUT("/password", h.ChangePassword)
		settings.POST("/avatar", h.UploadAvatar)
	}

	registrations := protected.Group("/event-registrations")
	{
		registrations.POST("", h.RegisterForEvent)
		registrations.GET("", h.GetMyRegistrations)
		registrations.DELETE("/:id", h.CancelRegistration)
	}

	if cfg.Socket != nil {
		admin := protected.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		admin.GET("/realtime", cfg.Socket.StatusHandler)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found", "code": "NOT_FOUND"})
	})

	return r
}
