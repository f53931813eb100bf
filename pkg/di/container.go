package di

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"mindcare/backend/internal/api"
	"mindcare/backend/internal/notify"
	"mindcare/backend/internal/repository"
	"mindcare/backend/internal/service"
	"mindcare/backend/internal/ws"
	"mindcare/backend/pkg/cache"
	"mindcare/backend/pkg/config"
	"mindcare/backend/pkg/health"
	"mindcare/backend/pkg/jwt"
	"mindcare/backend/pkg/logger"
	"mindcare/backend/pkg/resilience"
	"mindcare/backend/shared/observability"
)

// Container holds all the dependencies for the application
type Container struct {
	Config     *config.Config
	DB         *gorm.DB
	Logger     *logger.Logger
	JWTService *jwt.Service
	Metrics    *observability.Metrics
	Health     *health.Checker
	Breaker    *resilience.CircuitBreaker
	Cache      cache.Store
	Hub        *ws.Hub

	UserService      *service.UserService
	PromptService    *service.PromptService
	ChatService      *service.ChatService
	ContentService   *service.ContentService
	AnalyticsService *service.AnalyticsService
}

// Deps are the outside collaborators chosen by the caller. Nil fields fall
// back to in-process implementations, except Generator which is required.
type Deps struct {
	Generator service.ReplyGenerator
	Notifier  notify.Notifier
	Cache     cache.Store
	Metrics   *observability.Metrics
	Logger    *logger.Logger
}

// New creates a new dependency injection container
func New(cfg *config.Config, db *gorm.DB, deps Deps) (*Container, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("di: a reply generator is required")
	}

	log := deps.Logger
	if log == nil {
		log = logger.GetGlobal()
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.NewDirectNotifier(notify.Instrumented(notify.NewLogMailer(log), metrics.EmailsSent))
	}

	store := deps.Cache
	if store == nil && cfg.Cache.Enabled {
		store = cache.NewCache(cfg.Cache.TTL, cfg.Cache.PurgeWindow, cfg.Cache.MaxSize)
	}

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	breakerCfg := resilience.DefaultCircuitBreakerConfig("ai")
	if cfg.AI.Timeout > 0 {
		breakerCfg.Timeout = cfg.AI.Timeout
	}
	breakerCfg.OnStateChange = func(name string, _, to resilience.State) {
		metrics.SetBreakerState(name, string(to))
	}
	breaker := resilience.NewCircuitBreaker(breakerCfg, log)
	metrics.SetBreakerState(breaker.Name(), string(resilience.StateClosed))

	chats := repository.NewGormChatRepository(db)

	users := service.NewUserService(
		repository.NewGormUserRepository(db),
		repository.NewGormTokenRepository(db),
		jwtService,
		notifier,
		cfg.Server.FrontendURL,
		log,
	)
	prompts := service.NewPromptService(repository.NewGormPromptRepository(db), cfg.AI.DefaultSystemPrompt, log)
	chat := service.NewChatService(chats, prompts, deps.Generator, breaker, service.ChatOptions{
		MaxAttempts:  cfg.AI.MaxAttempts,
		RetryBackoff: cfg.AI.RetryBackoff,
		Replies:      metrics.ReplyGenerations,
	}, log)
	content := service.NewContentService(service.ContentRepositories{
		Events:          repository.NewGormEventRepository(db),
		Resources:       repository.NewGormResourceRepository(db),
		Banners:         repository.NewGormBannerRepository(db),
		Recommendations: repository.NewGormRecommendationRepository(db),
	}, store, cfg.Cache.TTL, log)
	analytics := service.NewAnalyticsService(chats, metrics.AnalyticsDuration, log)

	checker := health.NewChecker(log, 30*time.Second)
	checker.RegisterDatabaseCheck(func(ctx context.Context) error {
		return config.TestConnection(ctx, db)
	})
	if p, ok := store.(health.Pinger); ok {
		checker.RegisterRedisCheck(p)
	}
	checker.RegisterBreakerCheck(breaker)

	return &Container{
		Config:           cfg,
		DB:               db,
		Logger:           log,
		JWTService:       jwtService,
		Metrics:          metrics,
		Health:           checker,
		Breaker:          breaker,
		Cache:            store,
		Hub:              ws.NewHub(chat, api.ToAppError, log),
		UserService:      users,
		PromptService:    prompts,
		ChatService:      chat,
		ContentService:   content,
		AnalyticsService: analytics,
	}, nil
}

// Close releases in-process resources owned by the container
func (c *Container) Close() {
	c.Hub.Close()
	if closer, ok := c.Cache.(interface{ Close() }); ok {
		closer.Close()
	}
}
