// Package app initializes and holds the long-lived services of the
// scraper, acting as the dependency injection point for the daemon.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/regjobs/scraper/internal/api"
	archivegcs "github.com/regjobs/scraper/internal/archive/gcs"
	"github.com/regjobs/scraper/internal/clock/system"
	"github.com/regjobs/scraper/internal/config"
	"github.com/regjobs/scraper/internal/dedupe"
	"github.com/regjobs/scraper/internal/fetcher"
	collyfetcher "github.com/regjobs/scraper/internal/fetcher/colly"
	"github.com/regjobs/scraper/internal/id/uuid"
	"github.com/regjobs/scraper/internal/jobs"
	"github.com/regjobs/scraper/internal/normalize"
	"github.com/regjobs/scraper/internal/orchestrator"
	publog "github.com/regjobs/scraper/internal/publisher/log"
	pubqueue "github.com/regjobs/scraper/internal/publisher/pubsub"
	"github.com/regjobs/scraper/internal/scheduler"
	"github.com/regjobs/scraper/internal/sources"
	"github.com/regjobs/scraper/internal/store/memory"
	"github.com/regjobs/scraper/internal/store/postgres"
	"github.com/regjobs/scraper/internal/writer"
)

// App holds the wired services for one daemon process.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Orchestrator *orchestrator.Orchestrator
	Server       *api.Server
	Scheduler    *scheduler.Scheduler

	closers []func()
}

// New wires every service from configuration. It fails fast when any
// provider cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	store, err := a.buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	publisher, err := a.buildPublisher(ctx, cfg)
	if err != nil {
		return nil, err
	}
	archiver, err := a.buildArchiver(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clock := system.Clock{}
	retrying := fetcher.New(
		collyfetcher.New(collyfetcher.Config{Timeout: cfg.HTTPTimeout()}),
		fetcher.NewLimits(cfg.Run.GlobalConcurrency, cfg.Run.PerSourceConcurrency),
		archiver,
		fetcher.Config{
			MaxRetries:  cfg.HTTP.MaxRetries,
			BackoffBase: cfg.BackoffInitial(),
			BackoffMax:  cfg.BackoffMax(),
			MinDelay:    cfg.MinDelay(),
			// The archiver applies the configured object prefix itself.
			ContentType: "text/html",
		},
		logger.Named("fetcher"),
	)

	enabled, err := sources.Enabled(cfg.Sources.Enabled, sources.Deps{
		Fetcher: retrying,
		Logger:  logger.Named("sources"),
		Adzuna: sources.AdzunaCredentials{
			AppID:    cfg.Sources.Adzuna.AppID,
			AppKey:   cfg.Sources.Adzuna.AppKey,
			Country:  cfg.Sources.Adzuna.Country,
			MaxPages: cfg.Sources.Adzuna.MaxPages,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("configure sources: %w", err)
	}

	a.Orchestrator = orchestrator.New(
		enabled,
		normalize.New(clock),
		dedupe.New(store, clock),
		writer.New(store, logger.Named("writer")),
		publisher,
		clock,
		uuid.Generator{},
		orchestrator.Config{
			Budget:        cfg.RunBudget(),
			SourceTimeout: cfg.SourceTimeout(),
			DrainGrace:    cfg.DrainGrace(),
			SummaryTopic:  cfg.Summary.TopicID,
		},
		logger.Named("orchestrator"),
	)

	a.Server = api.NewServer(a.Orchestrator, logger.Named("api"))

	if cfg.Schedule.Enabled {
		sched, err := scheduler.New(cfg.Schedule.Spec, func() {
			if _, err := a.Orchestrator.Run(context.Background(), nil); err != nil {
				logger.Warn("scheduled run skipped", zap.Error(err))
			}
		}, logger.Named("scheduler"))
		if err != nil {
			return nil, err
		}
		a.Scheduler = sched
	}

	return a, nil
}

// Close releases every provider in reverse initialization order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *App) buildStore(ctx context.Context, cfg config.Config) (jobs.Store, error) {
	switch cfg.Store.Provider {
	case "postgres":
		a.Logger.Info("using postgres store", zap.String("table", cfg.Store.Table))
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Store.DSN,
			Table:    cfg.Store.Table,
			MaxConns: cfg.Store.MaxConns,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	case "memory":
		a.Logger.Info("using in-memory store, records will not survive restarts")
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown store provider %q", cfg.Store.Provider)
	}
}

func (a *App) buildPublisher(ctx context.Context, cfg config.Config) (jobs.Publisher, error) {
	switch cfg.Summary.Provider {
	case "pubsub":
		a.Logger.Info("publishing summaries to pubsub", zap.String("topic", cfg.Summary.TopicID))
		pub, err := pubqueue.New(ctx, cfg.Summary.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("initialize publisher: %w", err)
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		return pub, nil
	case "log":
		return publog.New(a.Logger.Named("summary")), nil
	default:
		return nil, fmt.Errorf("unknown summary provider %q", cfg.Summary.Provider)
	}
}

func (a *App) buildArchiver(ctx context.Context, cfg config.Config) (jobs.Archiver, error) {
	switch cfg.Archive.Provider {
	case "gcs":
		a.Logger.Info("archiving raw pages", zap.String("bucket", cfg.Archive.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs client: %w", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return archivegcs.New(client, archivegcs.Config{
			Bucket: cfg.Archive.Bucket,
			Prefix: cfg.Archive.Prefix,
		})
	case "noop":
		// A nil archiver disables archival in the fetcher.
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown archive provider %q", cfg.Archive.Provider)
	}
}
