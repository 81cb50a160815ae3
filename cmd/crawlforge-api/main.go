package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"crawlforge/internal/artifact"
	"crawlforge/internal/browser"
	"crawlforge/internal/config"
	"crawlforge/internal/crawl"
	"crawlforge/internal/dispatch"
	"crawlforge/internal/httpapi"
	"crawlforge/internal/jobs"
	"crawlforge/internal/llmprovider"
	"crawlforge/internal/metrics"
	"crawlforge/internal/migrate"
	"crawlforge/internal/session"
	"crawlforge/internal/storage"
	"crawlforge/internal/tools"
	"crawlforge/internal/toolbag"
	"crawlforge/internal/workflow"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	cfg := config.Load(*configPath)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
	m := metrics.NewRegistry(prometheus.DefaultRegisterer)

	var jobRegistry jobs.Registry
	if cfg.Database.DSN != "" {
		if err := migrate.Run(cfg.Database.DSN); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
		db, err := sql.Open("pgx", cfg.Database.DSN)
		if err != nil {
			log.Fatalf("open db failed: %v", err)
		}
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		jobRegistry = jobs.NewPGRegistry(db)
	} else {
		logger.Warn("database.dsn not set, using in-memory job registry (jobs do not survive a restart)")
		jobRegistry = jobs.NewInMemoryRegistry()
	}

	blob, err := storage.NewFSStore(cfg.Storage.Root)
	if err != nil {
		log.Fatalf("open artifact storage failed: %v", err)
	}
	artifacts := artifact.New(blob)

	driverFactory := func() browser.Driver { return browser.NewRodDriver() }
	sessionPool := session.New(driverFactory, session.Options{
		IdleTTL:       time.Duration(cfg.Session.IdleTTLMinutes) * time.Minute,
		SweepInterval: time.Duration(cfg.Session.SweepIntervalSeconds) * time.Second,
	}, logger)
	defer sessionPool.CloseAll()

	providers := llmprovider.NewRegistry(
		llmprovider.NewAnthropicProvider(cfg.LLM.Anthropic.Model),
		llmprovider.NewOpenAIProvider(cfg.LLM.OpenAI.Model),
	)
	summarizer := llmprovider.NewSummarizer(providers)

	orchestrator := crawl.New(sessionPool, driverFactory, artifacts, summarizer, m, logger)

	toolRegistry := tools.NewRegistry()
	if err := tools.RegisterCrawlTools(toolRegistry, orchestrator); err != nil {
		log.Fatalf("register crawl tools: %v", err)
	}
	if err := tools.RegisterSessionTools(toolRegistry, sessionPool); err != nil {
		log.Fatalf("register session tools: %v", err)
	}
	if err := tools.RegisterLLMTools(toolRegistry, summarizer); err != nil {
		log.Fatalf("register llm tools: %v", err)
	}

	tb := toolbag.New(toolRegistry, providers, logger)
	tb.Metrics = m
	if cfg.Toolbag.MaxIterations > 0 {
		tb.MaxIterations = cfg.Toolbag.MaxIterations
	}
	for name, limit := range cfg.Toolbag.ToolLimits {
		tb.SetToolLimit(name, limit)
	}
	wf := workflow.New(tb)

	d := dispatch.New(orchestrator, jobRegistry)
	d.Metrics = m
	if cfg.Dispatch.ThresholdSeconds > 0 {
		d.Threshold = time.Duration(cfg.Dispatch.ThresholdSeconds * float64(time.Second))
	}

	rootCtx := context.Background()
	startBackgroundWorkers(rootCtx, cfg, jobRegistry, orchestrator, m, logger)

	srv := httpapi.New(httpapi.Deps{
		Dispatch: d,
		Jobs:     jobRegistry,
		Toolbag:  tb,
		Workflow: wf,
		Metrics:  m,
		Logger:   logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := srv.Listen(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func startBackgroundWorkers(ctx context.Context, cfg *config.Config, registry jobs.Registry, orchestrator *crawl.Orchestrator, m *metrics.Metrics, logger *slog.Logger) {
	executor := jobs.NewCrawlExecutor(orchestrator.Execute, orchestrator.Artifacts)

	var notify <-chan struct{}
	if cfg.Redis.URL != "" {
		if opt, err := redis.ParseURL(cfg.Redis.URL); err == nil {
			rdb := redis.NewClient(opt)
			notifier := jobs.NewNotifier(rdb)
			ch, cancel := notifier.Subscribe(ctx)
			notify = ch
			go func() {
				<-ctx.Done()
				cancel()
			}()
		} else {
			logger.Warn("invalid redis.url, worker will fall back to polling", "error", err)
		}
	}

	worker := jobs.NewWorker(registry, executor, jobs.WorkerOptions{
		PollInterval:      time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond,
		MaxConcurrentJobs: cfg.Worker.MaxConcurrentJobs,
		Notify:            notify,
	}, logger)
	go worker.Run(ctx)

	if cfg.Retention.Enabled {
		go runRetentionLoop(ctx, registry, cfg, m, logger)
	}
}

func runRetentionLoop(ctx context.Context, registry jobs.Registry, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) {
	interval := time.Duration(cfg.Retention.CleanupIntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	maxAge := time.Duration(cfg.Retention.Jobs.DefaultDays) * 24 * time.Hour
	if maxAge <= 0 {
		maxAge = jobs.DefaultRetentionOptions().MaxAge
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := jobs.CleanupExpiredJobs(ctx, registry, jobs.RetentionOptions{MaxAge: maxAge}, m); err != nil {
				logger.Warn("retention cleanup failed", "error", err)
			}
		}
	}
}
