package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"google.golang.org/grpc"

	"mindcare/backend/internal/ai"
	"mindcare/backend/internal/notify"
	"mindcare/backend/pkg/cache"
	"mindcare/backend/pkg/config"
	"mindcare/backend/pkg/database"
	"mindcare/backend/pkg/di"
	"mindcare/backend/pkg/health"
	"mindcare/backend/pkg/logger"
	"mindcare/backend/pkg/router"
	"mindcare/backend/pkg/secrets"
	"mindcare/backend/shared/observability"
	"mindcare/backend/shared/redis"
)

func main() {
	cfg := config.New()

	logConfig := logger.DefaultConfig()
	if cfg.Logging.Level != "" {
		logConfig.Level = cfg.Logging.Level
	}
	logConfig.JSON = cfg.Logging.Format != "text"

	log := logger.New(logConfig)
	logger.SetGlobal(log)

	log.Info("Starting application", "version", os.Getenv("APP_VERSION"), "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	vault, err := secrets.NewVaultManager(secrets.VaultConfigFromEnv(), log)
	if err != nil {
		log.LogError(err, "Failed to initialize secrets manager")
		os.Exit(1)
	}
	defer vault.Close()
	secrets.ApplyTo(ctx, vault, cfg, log)

	shutdownTracing := func(context.Context) error { return nil }
	if cfg.Observability.TracingEnabled {
		shutdownTracing, err = observability.SetupTracing(cfg.Observability.ServiceName, os.Stdout)
		if err != nil {
			log.LogError(err, "Failed to set up tracing")
			os.Exit(1)
		}
	}

	metrics := observability.NewMetrics()
	meterProvider, err := observability.SetupMeterProvider(metrics.Registry)
	if err != nil {
		log.LogError(err, "Failed to set up meter provider")
		os.Exit(1)
	}

	db, err := config.NewDB(cfg, log)
	if err != nil {
		log.LogError(err, "Failed to initialize database")
		os.Exit(1)
	}
	if err := database.Migrate(db); err != nil {
		log.LogError(err, "Failed to migrate database")
		os.Exit(1)
	}

	var store cache.Store
	var redisClient *redis.RedisClient
	if cfg.Redis.URL != "" && cfg.Cache.Enabled {
		redisClient, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			log.LogError(err, "Failed to connect to redis, using in-memory cache", "url", cfg.Redis.URL)
		} else {
			store = redisClient
		}
	}

	var mailer notify.Mailer = notify.NewLogMailer(log)
	if cfg.Mail.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(cfg.Mail)
	}
	mailer = notify.Instrumented(mailer, metrics.EmailsSent)

	var (
		notifier notify.Notifier = notify.NewDirectNotifier(mailer)
		amqpConn *amqp.Connection
		worker   *notify.Worker
	)
	if cfg.RabbitMQ.URL != "" {
		amqpConn, err = notify.Connect(ctx, cfg.RabbitMQ.URL)
		if err != nil {
			log.LogError(err, "Failed to connect to rabbitmq, sending email inline")
		} else {
			notifier = notify.NewPublisher(amqpConn, cfg.RabbitMQ.EmailQueue)
			worker = notify.NewWorker(amqpConn, mailer, cfg.RabbitMQ.EmailQueue, log)
			if err := worker.Start(ctx); err != nil {
				log.LogError(err, "Failed to start email worker")
				os.Exit(1)
			}
		}
	}

	generator := ai.NewGenerator(ai.NewOpenAIClient(cfg.AI), cfg.AI.Model, log)

	container, err := di.New(cfg, db, di.Deps{
		Generator: generator,
		Notifier:  notifier,
		Cache:     store,
		Metrics:   metrics,
		Logger:    log,
	})
	if err != nil {
		log.LogError(err, "Failed to initialize dependency container")
		os.Exit(1)
	}

	r := router.New(container)
	r.SetupRoutes()

	go container.Health.Start(ctx)
	go r.RateLimiter.Run(ctx)
	go reloadSchemaOnHangup(ctx, r, log)

	var grpcServer *grpc.Server
	if cfg.Server.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
		if err != nil {
			log.LogError(err, "Failed to listen for gRPC", "port", cfg.Server.GRPCPort)
			os.Exit(1)
		}
		grpcServer = health.NewGRPCServer(container.Health)
		go func() {
			log.Info("gRPC health server starting", "port", cfg.Server.GRPCPort)
			if err := grpcServer.Serve(lis); err != nil {
				log.LogError(err, "gRPC server stopped")
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r.Engine,
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
		IdleTimeout:       2 * cfg.Server.Timeout,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.LogError(err, "Server failed to start")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Server forced to shutdown")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if worker != nil {
		worker.Close()
	}
	container.Close()
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.LogError(err, "Failed to close redis client")
		}
	}
	if amqpConn != nil {
		if err := amqpConn.Close(); err != nil {
			log.LogError(err, "Failed to close rabbitmq connection")
		}
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.LogError(err, "Failed to shut down meter provider")
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.LogError(err, "Failed to shut down tracing")
	}

	log.Info("Server exited gracefully")
}

func reloadSchemaOnHangup(ctx context.Context, r *router.Router, log *logger.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := r.ReloadSchema(); err != nil {
				log.LogError(err, "Failed to reload OpenAPI schema")
				continue
			}
			log.Info("OpenAPI schema reloaded")
		}
	}
}
