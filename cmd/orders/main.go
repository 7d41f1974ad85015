package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sakashimaa/ecommerce-orders/internal/repository"
	"github.com/sakashimaa/ecommerce-orders/internal/service"
	"github.com/sakashimaa/ecommerce-orders/internal/transport/http"
	"github.com/sakashimaa/ecommerce-orders/internal/transport/http/handler"
	"github.com/sakashimaa/ecommerce-orders/internal/transport/kafka"
	"github.com/sakashimaa/ecommerce-orders/pkg/config"
	"github.com/sakashimaa/ecommerce-orders/pkg/db"
	kafka2 "github.com/sakashimaa/ecommerce-orders/pkg/kafka"
	"github.com/sakashimaa/ecommerce-orders/pkg/metrics"
	"github.com/sakashimaa/ecommerce-orders/pkg/mylogger"
	outboxRepository "github.com/sakashimaa/ecommerce-orders/pkg/outbox/repository"
	"github.com/sakashimaa/ecommerce-orders/pkg/outbox/worker"
	"github.com/sakashimaa/ecommerce-orders/pkg/utils"
	"go.uber.org/zap"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply database migrations before starting")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf(".env not found: %v\n", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.LoggerConfig())
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	tp, err := utils.InitTracer(ctx, utils.TracerConfig{
		ServiceName: cfg.Tracing.ServiceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Env:         cfg.Env,
	})
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}

	if *migrate {
		if err := db.Migrate(cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	pool, err := db.NewPostgresDB(ctx, cfg.Postgres.URL)
	if err != nil {
		logger.Fatal("failed to create pool", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})

	orderRepo := repository.NewOrderRepository(logger)
	productRepo := repository.NewProductRepository(logger)
	userRepo := repository.NewUserRepository(logger)
	outboxRepo := outboxRepository.NewOutboxRepository(logger)

	directory := service.NewCachedDirectory(
		service.NewDirectory(pool, userRepo, productRepo, logger),
		redisClient,
		cfg.Redis.CacheTTL,
		logger,
	)

	orderService := service.NewOrderService(pool, logger, orderRepo, productRepo, outboxRepo, directory, cfg.Kafka.OrderTopic)
	syncService := service.NewSyncService(pool, logger, userRepo, productRepo, directory)

	kafkaProducer, err := kafka2.NewProducer(cfg.Kafka.Brokers, logger)
	if err != nil {
		logger.Fatal("error creating kafka producer", zap.Error(err))
	}

	outboxProcessor := worker.NewOutboxProcessor(
		pool,
		outboxRepo,
		kafkaProducer,
		logger,
		worker.WithBatchSize(cfg.Outbox.BatchSize),
		worker.WithInterval(cfg.Outbox.Interval),
	)
	go outboxProcessor.Start(ctx)

	consumer := kafka.NewConsumer(syncService, logger)
	go func() {
		topics := []string{cfg.Kafka.UserTopic, cfg.Kafka.ProductTopic}
		if err := consumer.Start(ctx, cfg.Kafka.Brokers, cfg.Kafka.GroupID, topics); err != nil {
			mylogger.Error(ctx, logger, "Consumer stopped", zap.Error(err))
		}
	}()

	serverMetrics := metrics.NewServerMetrics("orders")

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTP.Timeout,
		WriteTimeout: cfg.HTTP.Timeout,
	})

	app.Use(otelfiber.Middleware())
	app.Use(requestid.New(requestid.Config{
		Generator: uuid.NewString,
	}))
	app.Use(serverMetrics.Middleware())

	app.Use(limiter.New(limiter.Config{
		Max:        cfg.Limiter.Max,
		Expiration: cfg.Limiter.Expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))

	handlers := &http.Handlers{
		Order: handler.NewOrderHandler(orderService, directory, logger, cfg.HTTP.Timeout),
	}

	http.RegisterRoutes(app, handlers, serverMetrics, cfg.Auth.AccessSecret)

	go func() {
		mylogger.Info(ctx, logger, "HTTP service listening", zap.String("port", cfg.HTTP.Port))
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logger.Fatal("error listening on HTTP port", zap.String("port", cfg.HTTP.Port), zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	mylogger.Info(shutdownCtx, logger, "Shutting down order service")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error shutting down HTTP app", zap.Error(err))
	}

	if err := kafkaProducer.Close(); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Error closing kafka producer", zap.Error(err))
	}

	if err := redisClient.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		mylogger.Warn(shutdownCtx, logger, "Error closing redis client", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		mylogger.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	pool.Close()
}
