package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"linkreach/config"
	"linkreach/middleware"
	"linkreach/pipeline"
	"linkreach/providers"
	"linkreach/routes"
	"linkreach/utils"
	"linkreach/worker"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if cfg.Environment == "development" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	}

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); err != nil {
			log.WithError(err).Warn("sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	db, err := config.ConnectDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	enc, err := utils.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		log.WithError(err).Fatal("invalid encryption key")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, continuing without cache")
			redisClient = nil
		}
	}

	dispatcher := providers.NewDispatcher(cfg, enc)
	deps := pipeline.Deps{
		SEO:     providers.NewSEOClient(cfg.SEO, cfg.HTTPTimeout),
		Finder:  providers.NewFinderClient(cfg.EmailFinder, cfg.HTTPTimeout),
		Sender:  dispatcher,
		Cache:   redisClient,
		Decrypt: enc.Decrypt,
	}
	if cfg.LLM.APIKey != "" {
		deps.LLM = providers.NewLLMClient(cfg.LLM, cfg.LLMModel, cfg.HTTPTimeout)
	}
	orch := pipeline.NewOrchestrator(db, cfg, log, deps)

	app := fiber.New(fiber.Config{
		AppName:      "linkreach",
		ErrorHandler: errorHandler(log),
	})
	app.Use(recover.New())
	app.Use(middleware.CORS())

	routes.Setup(app, routes.Deps{
		DB:        db,
		Cfg:       cfg,
		Log:       log,
		Enc:       enc,
		Redis:     redisClient,
		Orch:      orch,
		RateLimit: cfg.RateLimitPerMinute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Pipeline.WorkerEnabled {
		pipelineWorker := worker.NewPipelineWorker(orch, log, cfg.Pipeline.WorkerInterval)
		go pipelineWorker.Start(ctx)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Info("shutdown signal received")
		cancel()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.WithField("port", cfg.ServerPort).Info("server starting")
	if err := app.Listen(":" + cfg.ServerPort); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}

func errorHandler(log *logrus.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}
		if code >= 500 {
			log.WithFields(logrus.Fields{
				"path":   c.Path(),
				"method": c.Method(),
			}).WithError(err).Error("request failed")
			sentry.CaptureException(err)
		}
		return c.Status(code).JSON(fiber.Map{
			"success": false,
			"error":   err.Error(),
		})
	}
}
