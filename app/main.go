package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"newsd/app/ai"
	"newsd/app/cfg"
	"newsd/app/database"
	"newsd/app/events"
	"newsd/app/feed"
	"newsd/app/ipc"
	"newsd/app/pipeline"
	"newsd/app/prefs"
	"newsd/app/scheduler"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting newsd", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	articleRepo := database.NewArticleRepository(db)
	behaviorRepo := database.NewBehaviorRepository(db)
	preferenceRepo := database.NewPreferenceRepository(db)
	styleRepo := database.NewStyleRepository(db)

	var provider ai.Provider
	if appCfg.AIEnabled {
		provider, err = ai.Select(appCfg.AIProvider, ai.Options{
			OllamaHost:   appCfg.OllamaHost,
			OllamaModel:  appCfg.OllamaModel,
			CohereAPIKey: appCfg.CohereAPIKey,
			CohereModel:  appCfg.CohereModel,
		})
		if err != nil {
			slog.Error("Failed to configure AI provider", "error", err)
			os.Exit(1)
		}
		slog.Info("AI pipeline enabled", "provider", provider.Name())
	} else {
		slog.Info("AI pipeline disabled")
	}

	analyzer := prefs.NewAnalyzer(behaviorRepo, articleRepo, preferenceRepo)

	var (
		summarizer *pipeline.Summarizer
		filter     *pipeline.Filter
		classifier *pipeline.Classifier
		backlog    feed.BacklogFilter
		minLength  = appCfg.MinContentLength
	)
	if provider != nil {
		summarizer = pipeline.NewSummarizer(articleRepo, provider, appCfg.MinContentLength)
		filter = pipeline.NewFilter(articleRepo, analyzer, provider,
			appCfg.RelevanceThreshold, appCfg.MinContentLength)
		classifier = pipeline.NewClassifier(articleRepo, styleRepo, provider)
		backlog = filter
		if minLength <= 0 {
			minLength = provider.MinContentLength()
		}
	}

	fetcher := feed.NewFetcher(appCfg.UserAgent, 30*time.Second)
	extractor := feed.NewExtractor(30 * time.Second)
	refresher := feed.NewRefresher(feedRepo, articleRepo, fetcher, extractor, backlog,
		feed.RefresherOptions{
			Staleness:        time.Duration(appCfg.Staleness) * time.Second,
			FetchDelay:       time.Duration(appCfg.FetchDelayMs) * time.Millisecond,
			MinContentLength: minLength,
		})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if appCfg.FeedsFile != "" {
		seeds, err := feed.LoadSeeds(appCfg.FeedsFile)
		if err != nil {
			slog.Error("Failed to load feeds file", "path", appCfg.FeedsFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Importing feed subscriptions", "path", appCfg.FeedsFile, "count", len(seeds))
		if err := feed.ImportSeeds(ctx, feedRepo, refresher, seeds); err != nil {
			slog.Error("Failed to import feed subscriptions", "error", err)
			os.Exit(1)
		}
	}

	bus := events.NewBus()
	svc := scheduler.NewService(scheduler.Config{
		RefreshInterval:   time.Duration(appCfg.RefreshInterval) * time.Second,
		CleanupInterval:   time.Duration(appCfg.CleanupInterval) * time.Second,
		SummarizeInterval: time.Duration(appCfg.SummarizeInterval) * time.Second,
		FilterInterval:    time.Duration(appCfg.FilterInterval) * time.Second,
		RetentionDays:     appCfg.RetentionDays,
		AIEnabled:         provider != nil,
	}, refresher, articleRepo, summarizer, analyzer, filter, classifier, bus)

	handlers := ipc.NewHandlers(feedRepo, articleRepo, behaviorRepo, refresher, svc, appCfg.Version)
	server := ipc.NewServer(appCfg.SocketPath, handlers, appCfg.MaxConcurrentIPC)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		svc.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		ch := bus.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-ch:
				if e.Err != nil {
					slog.Debug("Stage finished with error", "type", string(e.Type), "error", e.Err)
				}
			}
		}
	}()

	serverErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverErr <- server.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down")
	case err := <-serverErr:
		if err != nil {
			slog.Error("IPC server failed", "error", err)
		}
		stop()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		slog.Warn("Shutdown timed out")
	}
	slog.Info("Shutdown complete")
}
