package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"overlaybackend/internal/config"
	"overlaybackend/internal/llm"
	"overlaybackend/internal/logging"
	"overlaybackend/internal/monologue"
	"overlaybackend/internal/news"
	"overlaybackend/internal/settings"
	"overlaybackend/internal/stream"
	transporthttp "overlaybackend/internal/transport/http"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("overlay api stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	cache, closeCache, err := openCache(cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	gateway, err := news.NewGateway(newProvider(cfg), news.GatewayOptions{
		Timeout:       cfg.ProviderTimeout,
		RatePerSecond: cfg.ProviderRPS,
		Burst:         cfg.ProviderBurst,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	if cfg.NewsProvider == config.ProviderNewsAPI && cfg.NewsAPIKey == "" {
		logger.Warn("NEWS_API_KEY is not set; provider-backed modes will fail until it is configured")
	}

	defaults, err := settings.LoadDefaults(cfg.PresetsFile)
	if err != nil {
		return err
	}
	manager, err := settings.NewManager(defaults)
	if err != nil {
		return err
	}

	engine, err := stream.NewEngine(store, gateway, cache, manager, logger)
	if err != nil {
		return err
	}

	var writer monologue.Writer = monologue.TemplateWriter{}
	if cfg.LLMAPIKey != "" {
		client, err := llm.New(llm.Config{APIKey: cfg.LLMAPIKey, BaseURL: cfg.LLMBaseURL, Model: cfg.LLMModel})
		if err != nil {
			return fmt.Errorf("configure monologue model: %w", err)
		}
		writer = monologue.LLMWriter{
			Client:   client,
			Fallback: monologue.TemplateWriter{},
			Logger:   logger,
		}
		logger.Info("LLM monologue enabled", "model", client.Model())
	}

	server := transporthttp.NewServer(engine, writer, logger)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      transporthttp.WithLogging(logger, transporthttp.WithCORS(server.Routes())),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("overlay api listening", "addr", cfg.ListenAddr, "provider", cfg.NewsProvider)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("signal received, shutting down", "signal", sig.String())
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func newProvider(cfg config.Config) news.Provider {
	if cfg.NewsProvider == config.ProviderRSS {
		return news.NewRSSProvider(nil)
	}
	return news.NewNewsAPIProvider(cfg.NewsAPIKey,
		news.WithNewsAPIBaseURL(cfg.NewsAPIBaseURL),
		news.WithNewsAPICountry(cfg.NewsAPICountry),
	)
}

func openStore(cfg config.Config, logger *slog.Logger) (news.HeadlineStore, func(), error) {
	if cfg.HeadlinesDB == "" {
		return news.NewMemoryStore(), func() {}, nil
	}
	store, err := news.OpenSQLiteStore(cfg.HeadlinesDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("custom headlines persisted to sqlite", "path", cfg.HeadlinesDB)
	return store, func() {
		if err := store.Close(); err != nil {
			logger.Warn("close headline store", "error", err)
		}
	}, nil
}

func openCache(cfg config.Config, logger *slog.Logger) (news.Cache, func(), error) {
	if cfg.RedisURL == "" {
		return news.NewMemoryCache(cfg.CacheSize, cfg.CacheTTL), func() {}, nil
	}
	cache, err := news.NewRedisCacheWithURL(cfg.RedisURL, cfg.CacheTTL, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("stream cache backed by redis")
	return cache, func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis cache", "error", err)
		}
	}, nil
}
