package main

import (
	"context"
	"net/http"
	"time"

	"bellhop/internal/chat"
	bellhopconfig "bellhop/internal/config"
	"bellhop/internal/crawl"
	"bellhop/internal/guidance"
	"bellhop/internal/profile"
	"bellhop/pkg/config"
	"bellhop/pkg/database"
	"bellhop/pkg/llm"
	"bellhop/pkg/logging"
	"bellhop/pkg/monitoring"
	"bellhop/pkg/server"
	"bellhop/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("bellhop")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Bellhop (Business Onboarding Assistant)")

	cfg := bellhopconfig.LoadConfig()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("bellhop", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("bellhop", version.Version, version.GitCommit)

	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"LLM_PROVIDER": cfg.LLMProvider,
		"LLM_MODEL":    cfg.LLMModel,
	}))

	// Conversation state lives in Postgres when configured, in memory otherwise.
	var sessions chat.SessionStore
	if cfg.DatabaseURL != "" {
		dbConfig := database.DefaultConfig()
		dbConfig.URL = cfg.DatabaseURL
		db := database.MustConnect(dbConfig, logger)
		defer func() { _ = db.Close() }()

		store := chat.NewPostgresSessionStore(db)
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := store.Migrate(migrateCtx); err != nil {
			cancel()
			logger.WithError(err).Fatal("Failed to migrate session store")
		}
		cancel()

		healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
		sessions = store
	} else {
		logger.Warn("DATABASE_URL not set - conversation state will not survive restarts")
		sessions = chat.NewMemorySessionStore()
	}

	provider, err := llm.NewProvider(llm.Config{
		Provider:  cfg.LLMProvider,
		Model:     cfg.LLMModel,
		APIKey:    cfg.LLMAPIKey,
		APIURL:    cfg.LLMAPIURL,
		MaxTokens: cfg.LLMMaxTokens,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create LLM provider")
	}

	rules, err := guidance.LoadRules(cfg.GuidanceFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load guidance rules")
	}
	scheduler := guidance.NewScheduler(rules)

	crawlerOpts := []crawl.CrawlerOption{
		crawl.WithLogger(logger),
		crawl.WithMinCrawlDelay(cfg.MinCrawlDelay),
		crawl.WithPageTimeout(cfg.PageTimeout),
		crawl.WithMaxContentRunes(cfg.MaxContentChars),
	}
	if cfg.EnableRendering {
		renderer, err := crawl.NewRodRenderer()
		if err != nil {
			logger.WithError(err).Warn("Failed to start headless browser - JS-heavy sites will degrade")
		} else {
			crawlerOpts = append(crawlerOpts, crawl.WithRenderer(renderer))
		}
	}
	crawler := crawl.NewCrawler(&http.Client{
		Timeout:   cfg.PageTimeout,
		Transport: crawl.NewSSRFSafeTransport(),
	}, crawlerOpts...)
	defer crawler.Close()

	extractor := profile.NewExtractor(provider, logger)
	engine := chat.NewEngine(extractor, scheduler, provider, logger,
		chat.WithCrawler(crawler),
		chat.WithMaxCrawlPages(cfg.MaxCrawlPages),
		chat.WithMaxCorpusRunes(cfg.MaxContentChars),
		chat.WithMaxHistory(cfg.MaxHistory),
	)
	handler := chat.NewHandler(engine, sessions, crawler, logger)

	router := server.SetupServiceRouter(logger, "bellhop", healthChecker, metricsCollector)
	chat.RegisterRoutes(router.Group("/v1"), handler)

	serverConfig := server.DefaultConfig("bellhop", cfg.Port)
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
