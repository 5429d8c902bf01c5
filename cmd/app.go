package cmd

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/analyzer"
	"github.com/sitedesc/llmstxt/internal/assembler"
	"github.com/sitedesc/llmstxt/internal/categorizer"
	"github.com/sitedesc/llmstxt/internal/clock/system"
	"github.com/sitedesc/llmstxt/internal/database"
	"github.com/sitedesc/llmstxt/internal/descriptor"
	"github.com/sitedesc/llmstxt/internal/enrich"
	collyfetcher "github.com/sitedesc/llmstxt/internal/fetcher/colly"
	"github.com/sitedesc/llmstxt/internal/fetcher/detector"
	headlessfetcher "github.com/sitedesc/llmstxt/internal/fetcher/headless"
	"github.com/sitedesc/llmstxt/internal/fetchpool"
	"github.com/sitedesc/llmstxt/internal/id/uuid"
	"github.com/sitedesc/llmstxt/internal/logging"
	"github.com/sitedesc/llmstxt/internal/metrics"
	"github.com/sitedesc/llmstxt/internal/openrouter"
	"github.com/sitedesc/llmstxt/internal/pipeline"
	nooppublisher "github.com/sitedesc/llmstxt/internal/publisher/noop"
	pubsubpublisher "github.com/sitedesc/llmstxt/internal/publisher/pubsub"
	"github.com/sitedesc/llmstxt/internal/robots"
	"github.com/sitedesc/llmstxt/internal/sitemap"
	gcsstorage "github.com/sitedesc/llmstxt/internal/storage/gcs"
	localstorage "github.com/sitedesc/llmstxt/internal/storage/local"
	noopstorage "github.com/sitedesc/llmstxt/internal/storage/noop"
	"github.com/sitedesc/llmstxt/pkg/config"
)

// services holds the wired application graph for one command invocation.
type services struct {
	cfg      config.Config
	logger   *zap.Logger
	pipeline *pipeline.Pipeline
	checker  *robots.Checker

	headless     *headlessfetcher.Fetcher
	gcsClient    *gcpstorage.Client
	pubsubClient *pubsub.Client
	history      database.Provider
}

// buildServices constructs the full pipeline from configuration. Optional
// subsystems (headless, OpenRouter, GCS, Postgres, Pub/Sub) stay nil or
// no-op when unconfigured.
func buildServices(ctx context.Context, cfgPath string) (*services, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	s := &services{cfg: cfg, logger: logger}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Fetch.UserAgent,
		RespectRobots: cfg.Fetch.RespectRobots,
		Timeout:       cfg.Fetch.Timeout,
		MaxBodyBytes:  cfg.Fetch.MaxBodyBytes,
	})

	var renderer descriptor.Fetcher
	var renderDetector descriptor.RenderDetector
	if cfg.Headless.Enabled {
		headless, err := headlessfetcher.NewChromedp(headlessfetcher.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Fetch.UserAgent,
			NavigationTimeout: cfg.Headless.NavTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init headless fetcher: %w", err)
		}
		s.headless = headless
		renderer = headless
		renderDetector = detector.NewHeuristic(cfg.Headless.BodyThreshold)
	}

	pool := fetchpool.New(
		fetcher,
		renderer,
		renderDetector,
		fetchpool.NewRetryPolicy(cfg.Fetch.MaxRetries, cfg.Fetch.BackoffInitial, cfg.Fetch.BackoffMax),
		fetchpool.Config{
			Concurrency:  cfg.Fetch.Concurrency,
			FetchTimeout: cfg.Fetch.Timeout,
		},
		logger,
	)

	var prober *analyzer.MarkdownProber
	if cfg.Analyzer.ProbeMarkdown {
		prober = analyzer.NewMarkdownProber(nil, cfg.Fetch.UserAgent, cfg.Analyzer.ProbeTimeout, logger)
	}

	enricher, err := buildEnricher(cfg, logger)
	if err != nil {
		return nil, err
	}

	blobs, err := s.buildBlobStore(ctx)
	if err != nil {
		return nil, err
	}

	s.history = database.NoOp{}
	if cfg.DB.DSN != "" {
		pg, err := database.NewPostgres(ctx, database.PostgresConfig{
			DSN:             cfg.DB.DSN,
			RunsTable:       cfg.DB.RunsTable,
			PagesTable:      cfg.DB.PagesTable,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.DB.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("init run history store: %w", err)
		}
		s.history = pg
	}

	var publisher descriptor.Publisher = nooppublisher.New()
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		s.pubsubClient = client
		publisher, err = pubsubpublisher.New(client)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
	}

	clk := system.New()
	p, err := pipeline.New(pipeline.Deps{
		Resolver: sitemap.New(fetcher, logger),
		Pool:     pool,
		Analyzer: analyzer.New(analyzer.Config{
			MaxDescriptionLen: cfg.Analyzer.MaxDescriptionLen,
			MaxSnippetLen:     cfg.Analyzer.MaxSnippetLen,
		}, logger),
		Prober:   prober,
		Category: categorizer.New(categoryRules(cfg)),
		Enricher: enricher,
		Assembler: assembler.New(assembler.Config{
			IncludeFailed: cfg.Output.IncludeFailed,
			GeneratorName: cfg.Output.GeneratorName,
		}, clk),
		Blobs:     blobs,
		History:   s.history,
		Publisher: publisher,
		Clock:     clk,
		IDs:       uuid.New(),
	}, pipeline.Config{
		SiteTitle:     cfg.Output.SiteTitle,
		SiteSummary:   cfg.Output.SiteSummary,
		IncludeFailed: cfg.Output.IncludeFailed,
		EventTopic:    cfg.PubSub.TopicName,
	}, logger)
	if err != nil {
		return nil, err
	}
	s.pipeline = p
	s.checker = robots.NewChecker(nil, cfg.Fetch.Timeout, logger)
	return s, nil
}

// categoryRules converts configured section rules, keeping the stock rule
// set when none are configured.
func categoryRules(cfg config.Config) []categorizer.Rule {
	if len(cfg.Categorize.Rules) == 0 {
		return categorizer.DefaultRules()
	}
	rules := make([]categorizer.Rule, 0, len(cfg.Categorize.Rules))
	for _, r := range cfg.Categorize.Rules {
		rules = append(rules, categorizer.Rule{Section: r.Section, Keywords: r.Keywords})
	}
	return rules
}

func buildEnricher(cfg config.Config, logger *zap.Logger) (*enrich.Enricher, error) {
	if !cfg.Enrich.Enabled || cfg.OpenRouter.APIKey == "" {
		logger.Info("description generation disabled, heuristic descriptions only")
		return nil, nil
	}
	client, err := openrouter.New(openrouter.Config{
		BaseURL: cfg.OpenRouter.BaseURL,
		APIKey:  cfg.OpenRouter.APIKey,
		Model:   cfg.OpenRouter.Model,
		Referer: cfg.OpenRouter.Referer,
		Title:   cfg.OpenRouter.Title,
		Timeout: cfg.OpenRouter.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init openrouter client: %w", err)
	}
	return enrich.New(client, enrich.Config{
		Concurrency:       cfg.Enrich.Concurrency,
		RequestsPerSecond: cfg.Enrich.RequestsPerSecond,
		MaxAttempts:       cfg.Enrich.MaxAttempts,
		BaseDelay:         cfg.Enrich.BackoffInitial,
		MaxDelay:          cfg.Enrich.BackoffMax,
		MaxDescriptionLen: cfg.Analyzer.MaxDescriptionLen,
	}, logger), nil
}

func (s *services) buildBlobStore(ctx context.Context) (descriptor.BlobStore, error) {
	switch s.cfg.Storage.Provider {
	case "local":
		store, err := localstorage.New(localstorage.Config{BaseDir: s.cfg.Storage.LocalDir})
		if err != nil {
			return nil, fmt.Errorf("init local blob store: %w", err)
		}
		return store, nil
	case "gcs":
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		s.gcsClient = client
		store, err := gcsstorage.New(client, gcsstorage.Config{Bucket: s.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("init gcs blob store: %w", err)
		}
		return store, nil
	default:
		return noopstorage.New(), nil
	}
}

// Close releases browser, database, and cloud client resources.
func (s *services) Close() {
	if s.headless != nil {
		s.headless.Close()
	}
	if s.history != nil {
		s.history.Close()
	}
	if s.gcsClient != nil {
		if err := s.gcsClient.Close(); err != nil {
			s.logger.Warn("close gcs client failed", zap.Error(err))
		}
	}
	if s.pubsubClient != nil {
		if err := s.pubsubClient.Close(); err != nil {
			s.logger.Warn("close pubsub client failed", zap.Error(err))
		}
	}
	if err := s.logger.Sync(); err != nil {
		// Sync on stderr commonly fails on Linux; nothing to do.
		_ = err
	}
}
