// Package app builds and holds the long-lived application services,
// acting as the dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/brandlens/footprint/internal/analysis"
	"github.com/brandlens/footprint/internal/api"
	"github.com/brandlens/footprint/internal/cache"
	"github.com/brandlens/footprint/internal/clock/system"
	"github.com/brandlens/footprint/internal/competitors"
	"github.com/brandlens/footprint/internal/config"
	"github.com/brandlens/footprint/internal/crawler"
	"github.com/brandlens/footprint/internal/dispatcher"
	"github.com/brandlens/footprint/internal/export"
	"github.com/brandlens/footprint/internal/extractor"
	collyfetcher "github.com/brandlens/footprint/internal/fetcher/colly"
	"github.com/brandlens/footprint/internal/fetcher/headless"
	safefetcher "github.com/brandlens/footprint/internal/fetcher/safe"
	"github.com/brandlens/footprint/internal/gaps"
	"github.com/brandlens/footprint/internal/hash/sha256"
	"github.com/brandlens/footprint/internal/id/uuid"
	"github.com/brandlens/footprint/internal/importer"
	"github.com/brandlens/footprint/internal/logging"
	"github.com/brandlens/footprint/internal/metrics"
	"github.com/brandlens/footprint/internal/orchestrator"
	memorypublisher "github.com/brandlens/footprint/internal/publisher/memory"
	gcppublisher "github.com/brandlens/footprint/internal/publisher/pubsub"
	queuememory "github.com/brandlens/footprint/internal/queue/memory"
	"github.com/brandlens/footprint/internal/serp"
	gcsstorage "github.com/brandlens/footprint/internal/storage/gcs"
	localstorage "github.com/brandlens/footprint/internal/storage/local"
	memorystorage "github.com/brandlens/footprint/internal/storage/memory"
	pgstore "github.com/brandlens/footprint/internal/storage/postgres"
	"github.com/brandlens/footprint/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	apiServer       *api.Server
	dispatch        *dispatcher.Dispatcher
	queue           *queuememory.Queue
	jobStore        analysis.JobStore
	headlessFetcher *headless.Fetcher
	pubsubClient    *pubsub.Client
	pubsubPublisher *pubsub.Publisher
	gcsClient       *storage.Client
	pgJobStore      *pgstore.JobStore
}

// Build creates the application's dependencies from configuration.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)

	app := &App{cfg: cfg, logger: logger}
	logger.Info("building application dependencies",
		zap.String("store", cfg.Storage.StoreProvider),
		zap.String("blob", cfg.Storage.BlobProvider),
		zap.String("fetcher", cfg.Fetcher.Provider),
		zap.String("search", cfg.Search.Provider),
	)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	clock := system.New()
	idGen := uuid.New()
	hasher := sha256.New()

	jobStore, targetStore, batchStore, err := app.setupStores(ctx, clock)
	if err != nil {
		return nil, err
	}
	app.jobStore = jobStore

	blobStore, err := app.setupBlobStore(ctx)
	if err != nil {
		return nil, err
	}

	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}

	fetcher, err := app.setupFetcher()
	if err != nil {
		return nil, err
	}
	provider := app.setupSearchProvider()

	retry := analysis.DefaultRetryPolicy()
	crawl := crawler.New(fetcher, retry, clock, crawler.Config{
		PageLimit:      cfg.Crawler.PageLimit,
		Concurrency:    cfg.Crawler.Concurrency,
		PerPageTimeout: time.Duration(cfg.Crawler.PerPageTimeoutSec) * time.Second,
		OverallTimeout: time.Duration(cfg.Crawler.OverallTimeoutSec) * time.Second,
		PerHostRPS:     cfg.Crawler.PerHostRPS,
	}, logger.Named("crawler"))

	extract := extractor.New(extractor.Config{
		TopK:            cfg.Extractor.TopK,
		HeadingBoost:    cfg.Extractor.HeadingBoost,
		UserFloor:       cfg.Extractor.UserFloor,
		MinCorpusTokens: cfg.Extractor.MinCorpusTokens,
	}, logger.Named("extractor"))

	identify := competitors.New(provider, retry, competitors.Config{
		QueryKeywords:      cfg.Competitors.QueryKeywords,
		ResultsPerQuery:    cfg.Competitors.ResultsPerQuery,
		TopM:               cfg.Competitors.TopM,
		PrimaryThreshold:   cfg.Competitors.PrimaryThreshold,
		SecondaryThreshold: cfg.Competitors.SecondaryThreshold,
		EmergingThreshold:  cfg.Competitors.EmergingThreshold,
	}, logger.Named("competitors"))

	generate := gaps.New(gaps.Config{
		TopK:              cfg.Gaps.TopK,
		DefaultDifficulty: cfg.Gaps.DefaultDifficulty,
		TrafficWeight:     cfg.Gaps.TrafficWeight,
		DifficultyWeight:  cfg.Gaps.DifficultyWeight,
		HighThreshold:     cfg.Gaps.HighThreshold,
		MediumThreshold:   cfg.Gaps.MediumThreshold,
	})

	orch := orchestrator.New(
		jobStore, crawl, extract, identify, generate,
		blobStore, publisher, hasher, clock, idGen, m,
		orchestrator.Config{
			JobTimeout:   cfg.JobTimeout(),
			ArchivePages: cfg.Crawler.ArchivePages,
			EventTopic:   cfg.Jobs.EventTopic,
		},
		logger.Named("orchestrator"),
	)

	app.queue = queuememory.NewQueue(cfg.Jobs.QueueDepth)
	var workers []*worker.Worker
	for i := 0; i < cfg.Jobs.Workers; i++ {
		workers = append(workers, worker.New(
			app.queue, orch,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	app.dispatch = dispatcher.New(app.queue, workers)

	engine := importer.New(jobStore, targetStore, batchStore, clock, idGen, publisher, cfg.Jobs.EventTopic, m, logger.Named("importer"))
	exporter := export.New(jobStore, blobStore)

	app.apiServer = api.NewServer(
		jobStore, app.dispatch, engine, exporter, batchStore,
		idGen, clock, registry, *cfg, logger.Named("api"),
	)
	return app, nil
}

func (a *App) setupStores(ctx context.Context, clock analysis.Clock) (analysis.JobStore, analysis.TargetStore, analysis.BatchStore, error) {
	if a.cfg.Storage.StoreProvider != "postgres" {
		a.logger.Info("using in-memory stores")
		return memorystorage.NewJobStore(clock), memorystorage.NewTargetStore(clock), memorystorage.NewBatchStore(), nil
	}
	if a.cfg.DB.Migrate {
		if err := pgstore.Migrate(a.cfg.DB.DSN); err != nil {
			return nil, nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}
	pool, err := pgstore.NewPool(ctx, pgstore.PoolConfig{
		DSN:      a.cfg.DB.DSN,
		MaxConns: a.cfg.DB.MaxConns,
		MinConns: a.cfg.DB.MinConns,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	jobStore, err := pgstore.NewJobStore(pool, clock)
	if err != nil {
		return nil, nil, nil, err
	}
	a.pgJobStore = jobStore
	targetStore, err := pgstore.NewTargetStore(pool, clock)
	if err != nil {
		return nil, nil, nil, err
	}
	batchStore, err := pgstore.NewBatchStore(pool)
	if err != nil {
		return nil, nil, nil, err
	}
	a.logger.Info("postgres stores initialized")
	return jobStore, targetStore, batchStore, nil
}

func (a *App) setupBlobStore(ctx context.Context) (analysis.BlobStore, error) {
	switch a.cfg.Storage.BlobProvider {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcsClient = client
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("using GCS blob store", zap.String("bucket", a.cfg.Storage.GCSBucket))
		return store, nil
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.LocalBaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		a.logger.Info("using local blob store", zap.String("base_dir", a.cfg.Storage.LocalBaseDir))
		return store, nil
	default:
		a.logger.Info("using in-memory blob store")
		return memorystorage.NewBlobStore(), nil
	}
}

func (a *App) setupPublisher(ctx context.Context) (analysis.Publisher, error) {
	if !a.cfg.PubSub.Enabled {
		a.logger.Info("pubsub disabled, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.pubsubPublisher = client.Publisher(a.cfg.PubSub.TopicName)
	a.logger.Info("pubsub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return gcppublisher.New(a.pubsubPublisher), nil
}

func (a *App) setupFetcher() (analysis.PageFetcher, error) {
	switch a.cfg.Fetcher.Provider {
	case "headless":
		f, err := headless.New(headless.Config{
			MaxParallel:       a.cfg.Headless.MaxParallel,
			UserAgent:         a.cfg.Crawler.UserAgent,
			NavigationTimeout: time.Duration(a.cfg.Headless.NavTimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("headless fetcher init failed: %w", err)
		}
		a.headlessFetcher = f
		a.logger.Info("using headless fetcher", zap.Int("max_parallel", a.cfg.Headless.MaxParallel))
		return f, nil
	case "safe":
		a.logger.Info("using SSRF-guarded fetcher")
		return safefetcher.New(safefetcher.Config{
			UserAgent:    a.cfg.Crawler.UserAgent,
			Timeout:      time.Duration(a.cfg.Fetcher.TimeoutSeconds) * time.Second,
			MaxBodyBytes: a.cfg.Fetcher.MaxBodyBytes,
		}), nil
	default:
		a.logger.Info("using colly fetcher", zap.String("user_agent", a.cfg.Crawler.UserAgent))
		return collyfetcher.New(collyfetcher.Config{
			UserAgent:    a.cfg.Crawler.UserAgent,
			Timeout:      time.Duration(a.cfg.Fetcher.TimeoutSeconds) * time.Second,
			MaxBodyBytes: int(a.cfg.Fetcher.MaxBodyBytes),
		}), nil
	}
}

// setupSearchProvider wires the SERP provider behind a read-through TTL
// cache. "none" leaves the provider nil; the pipeline then degrades to
// known competitors only.
func (a *App) setupSearchProvider() analysis.SearchProvider {
	var inner analysis.SearchProvider
	switch a.cfg.Search.Provider {
	case "http":
		provider, err := serp.NewHTTPProvider(serp.HTTPConfig{
			Endpoint: a.cfg.Search.BaseURL,
			APIKey:   a.cfg.Search.APIKey,
			Timeout:  time.Duration(a.cfg.Search.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			a.logger.Warn("http search provider init failed, continuing without search", zap.Error(err))
			return nil
		}
		inner = provider
		a.logger.Info("using http search provider", zap.String("base_url", a.cfg.Search.BaseURL))
	case "static":
		inner = serp.NewStaticProvider(nil)
		a.logger.Info("using static search provider")
	default:
		a.logger.Info("search provider disabled")
		return nil
	}
	ttl := time.Duration(a.cfg.Search.CacheTTLSec) * time.Second
	return serp.NewCachedProvider(inner, cache.New(), ttl, a.logger.Named("serp_cache"))
}

// Run starts the application and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		a.logger.Info("dispatcher started")
		a.dispatch.Run(ctx)
	}()

	if err := a.requeueUnfinished(ctx); err != nil {
		a.logger.Warn("requeue of unfinished jobs failed", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	return a.Close()
}

// requeueUnfinished puts jobs interrupted by a previous shutdown back on
// the queue. The orchestrator skips any that already reached a terminal
// state.
func (a *App) requeueUnfinished(ctx context.Context) error {
	jobs, err := a.jobStore.ListUnfinishedJobs(ctx)
	if err != nil {
		return fmt.Errorf("list unfinished jobs: %w", err)
	}
	for _, job := range jobs {
		item := analysis.QueueItem{JobID: job.ID, Attempt: 1, Submitted: job.Created.Unix()}
		if err := a.queue.Enqueue(ctx, item); err != nil {
			return fmt.Errorf("requeue job %s: %w", job.ID, err)
		}
		a.logger.Info("requeued unfinished job", zap.String("job_id", job.ID))
	}
	return nil
}

// Close gracefully shuts down the application services.
func (a *App) Close() error {
	a.queue.Close()
	if a.headlessFetcher != nil {
		a.headlessFetcher.Close()
	}
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgJobStore != nil {
		a.pgJobStore.Close()
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}
