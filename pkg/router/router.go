package router

import (
	"net/http"
	"slices"

	"mindcare/backend/internal/api"
	"mindcare/backend/pkg/di"
	"mindcare/backend/pkg/errors"
	"mindcare/backend/pkg/jwt"
	"mindcare/backend/pkg/logger"
	"mindcare/backend/pkg/middleware"
	"mindcare/backend/pkg/validator"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Router is the main router for the application
type Router struct {
	Engine      *gin.Engine
	Container   *di.Container
	Logger      *logger.Logger
	RateLimiter *middleware.RateLimiter

	schema *validator.OpenAPIValidator
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	cfg := container.Config

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Security.TrustedProxies); err != nil {
		container.Logger.Warn("Invalid trusted proxies, trusting none", "error", err.Error())
		_ = engine.SetTrustedProxies(nil)
	}

	rateLimiter := middleware.NewRateLimiter(container.Logger, middleware.RateLimiterOptions{
		Limit: rate.Limit(cfg.Security.RateLimit),
		Burst: cfg.Security.RateLimitBurst,
	})

	engine.Use(middleware.RequestIDMiddleware())
	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())
	engine.Use(container.Metrics.GinMiddleware())
	engine.Use(rateLimiter.Middleware())
	engine.Use(corsMiddleware(cfg.Security.AllowedOrigins))
	engine.Use(bodyLimit(cfg.Security.MaxBodySize))

	return &Router{
		Engine:      engine,
		Container:   container,
		Logger:      container.Logger,
		RateLimiter: rateLimiter,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	c := r.Container

	if path := c.Config.Server.OpenAPISchemaPath; path != "" {
		r.AddOpenAPIValidation(path)
	}

	jwtAuth := middleware.JWTAuthMiddleware(c.JWTService)

	authHandler := api.NewAuthHandler(c.UserService)
	chatHandler := api.NewChatHandler(c.ChatService, c.Hub)
	contentHandler := api.NewContentHandler(c.ContentService)
	adminHandler := api.NewAdminHandler(c.ContentService, c.PromptService, c.AnalyticsService, c.Config.Analytics)

	r.setupHealthRoutes()

	v1 := r.Engine.Group("/api/v1")

	// Public routes
	{
		auth := v1.Group("/auth")
		auth.POST("/signup", authHandler.Signup)
		auth.POST("/login", authHandler.Login)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.GET("/me", jwtAuth, authHandler.Me)

		v1.GET("/events", contentHandler.ListEvents)
		v1.GET("/events/:id", contentHandler.GetEvent)
		v1.GET("/resources", contentHandler.ListResources)
		v1.GET("/banners", contentHandler.ListBanners)
	}

	protected := v1.Group("/")
	protected.Use(jwtAuth)
	{
		protected.PUT("/profile", authHandler.UpdateProfile)
		protected.PUT("/profile/password", authHandler.ChangePassword)
		protected.GET("/recommendations", contentHandler.ListRecommendations)

		chat := protected.Group("/chat")
		chat.GET("/sessions", chatHandler.ListSessions)
		chat.POST("/sessions", chatHandler.CreateSession)
		chat.GET("/sessions/:id", chatHandler.GetSession)
		chat.PATCH("/sessions/:id", chatHandler.RenameSession)
		chat.DELETE("/sessions/:id", chatHandler.DeleteSession)
		chat.POST("/sessions/:id/messages", chatHandler.SendMessage)
		chat.GET("/ws", chatHandler.Connect)
	}

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(jwt.RoleAdmin))
	{
		admin.PUT("/users/:id/role", authHandler.UpdateUserRole)

		events := admin.Group("/events")
		events.GET("", adminHandler.ListEvents)
		events.POST("", adminHandler.CreateEvent)
		events.GET("/:id", adminHandler.GetEvent)
		events.PUT("/:id", adminHandler.UpdateEvent)
		events.DELETE("/:id", adminHandler.DeleteEvent)

		resources := admin.Group("/resources")
		resources.GET("", adminHandler.ListResources)
		resources.POST("", adminHandler.CreateResource)
		resources.GET("/:id", adminHandler.GetResource)
		resources.PUT("/:id", adminHandler.UpdateResource)
		resources.DELETE("/:id", adminHandler.DeleteResource)

		banners := admin.Group("/banners")
		banners.GET("", adminHandler.ListBanners)
		banners.POST("", adminHandler.CreateBanner)
		banners.PUT("/order", adminHandler.ReorderBanners)
		banners.GET("/:id", adminHandler.GetBanner)
		banners.PUT("/:id", adminHandler.UpdateBanner)
		banners.DELETE("/:id", adminHandler.DeleteBanner)

		recommendations := admin.Group("/recommendations")
		recommendations.GET("", adminHandler.ListRecommendations)
		recommendations.POST("", adminHandler.CreateRecommendation)
		recommendations.GET("/:id", adminHandler.GetRecommendation)
		recommendations.PUT("/:id", adminHandler.UpdateRecommendation)
		recommendations.DELETE("/:id", adminHandler.DeleteRecommendation)

		prompts := admin.Group("/prompts")
		prompts.GET("", adminHandler.ListPrompts)
		prompts.POST("", adminHandler.CreatePrompt)
		prompts.GET("/:id", adminHandler.GetPrompt)
		prompts.PUT("/:id", adminHandler.UpdatePrompt)
		prompts.DELETE("/:id", adminHandler.DeletePrompt)
		prompts.POST("/:id/activate", adminHandler.ActivatePrompt)

		stats := admin.Group("/analytics")
		stats.GET("/keywords", adminHandler.KeywordPopularity)
		stats.GET("/overview", adminHandler.ChatOverview)
	}
}

// corsMiddleware allows the configured origins; "*" allows any. WebSocket
// upgrade headers are allowed explicitly.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	allowAll := slices.Contains(allowed, "*")

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case origin != "" && (allowAll || slices.Contains(allowed, origin)):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		case origin == "" && allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, Authorization, Origin, Upgrade, Connection, Cache-Control, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Retry-After")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func bodyLimit(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if n > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
