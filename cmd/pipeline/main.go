// Command pipeline runs the outreach pipeline from cron. The full cycle
// and each individual step are exposed as subcommands; a run that finds
// the lock held exits zero so overlapping cron entries stay quiet.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"linkreach/config"
	"linkreach/pipeline"
	"linkreach/providers"
	"linkreach/utils"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cmd := &cli.Command{
		Name:  "pipeline",
		Usage: "run the outreach pipeline or one of its steps",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "execute one full pipeline cycle",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return withOrchestrator(log, func(orch *pipeline.Orchestrator) error {
						return orch.RunCycle(ctx)
					})
				},
			},
			{
				Name:      "step",
				Usage:     "execute a single pipeline step",
				ArgsUsage: "<step-name>",
				Action: func(ctx context.Context, c *cli.Command) error {
					name := c.Args().First()
					if name == "" {
						return fmt.Errorf("step name required, one of: %v", stepNames(log))
					}
					return withOrchestrator(log, func(orch *pipeline.Orchestrator) error {
						return orch.RunStep(ctx, name)
					})
				},
			},
			{
				Name:  "steps",
				Usage: "list the runnable steps in execution order",
				Action: func(ctx context.Context, _ *cli.Command) error {
					for _, name := range stepNames(log) {
						fmt.Println(name)
					}
					return nil
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, pipeline.ErrLocked) {
			log.Info("another pipeline run holds the lock, exiting")
			return
		}
		log.WithError(err).Error("pipeline command failed")
		os.Exit(1)
	}
}

// withOrchestrator wires the full dependency set and hands the
// orchestrator to fn. Setup failures are fatal to the command.
func withOrchestrator(log *logrus.Logger, fn func(*pipeline.Orchestrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cfg.SentryDSN != "" {
		if serr := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Environment,
		}); serr != nil {
			log.WithError(serr).Warn("sentry initialization failed")
		}
		defer sentry.Flush(2 * time.Second)
	}

	db, err := config.ConnectDB(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	enc, err := utils.NewEncryptor(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("invalid encryption key: %w", err)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if perr := redisClient.Ping(context.Background()).Err(); perr != nil {
			log.WithError(perr).Warn("redis unreachable, continuing without cache")
			redisClient = nil
		}
	}

	deps := pipeline.Deps{
		SEO:     providers.NewSEOClient(cfg.SEO, cfg.HTTPTimeout),
		Finder:  providers.NewFinderClient(cfg.EmailFinder, cfg.HTTPTimeout),
		Sender:  providers.NewDispatcher(cfg, enc),
		Cache:   redisClient,
		Decrypt: enc.Decrypt,
	}
	if cfg.LLM.APIKey != "" {
		deps.LLM = providers.NewLLMClient(cfg.LLM, cfg.LLMModel, cfg.HTTPTimeout)
	}

	return fn(pipeline.NewOrchestrator(db, cfg, log, deps))
}

// stepNames lists the step names without a database connection; the
// orchestrator's step table is static.
func stepNames(log *logrus.Logger) []string {
	orch := pipeline.NewOrchestrator(nil, &config.Config{}, log, pipeline.Deps{})
	return orch.StepNames()
}
