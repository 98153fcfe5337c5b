package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/video-explorer/internal/breaker"
	"github.com/kitbuilder587/video-explorer/internal/cache"
	"github.com/kitbuilder587/video-explorer/internal/config"
	"github.com/kitbuilder587/video-explorer/internal/metrics"
	"github.com/kitbuilder587/video-explorer/internal/provider"
	"github.com/kitbuilder587/video-explorer/internal/provider/meta"
	"github.com/kitbuilder587/video-explorer/internal/provider/mock"
	"github.com/kitbuilder587/video-explorer/internal/ratelimit"
	"github.com/kitbuilder587/video-explorer/internal/service"
	"github.com/kitbuilder587/video-explorer/internal/telegram"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	metricsSrv := &http.Server{
		Addr:    cfg.Metrics.ListenAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logger.Info("metrics listener started", zap.String("addr", cfg.Metrics.ListenAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()

	store, err := cache.New(cache.Config{
		MaxEntries:     cfg.Cache.MaxEntries,
		HashtagTTL:     cfg.Cache.HashtagTTL,
		UserContentTTL: cfg.Cache.UserContentTTL,
		TrendingTTL:    cfg.Cache.TrendingTTL,
		HealthTTL:      cfg.Cache.HealthTTL,
		TokenTTL:       cfg.Cache.TokenTTL,
		StaleWindow:    cfg.Cache.StaleWindow,
	})
	if err != nil {
		logger.Fatal("create cache", zap.Error(err))
	}

	fallback := mock.New()

	providers := map[string]provider.Provider{}
	defaultProvider := mock.Name
	if cfg.ProductionMode {
		metaClient := meta.New(meta.Config{
			AppID:             cfg.Meta.AppID,
			AppSecret:         cfg.Meta.AppSecret,
			GraphBaseURL:      cfg.Meta.GraphBaseURL,
			InstagramBaseURL:  cfg.Meta.InstagramBaseURL,
			BusinessAccountID: cfg.Meta.BusinessAccountID,
			Timeout:           cfg.Meta.Timeout,
			TokenCache:        store,
		}, logger)
		providers[meta.Name] = metaClient
		defaultProvider = meta.Name
	} else {
		logger.Warn("production mode off, serving synthetic data only")
		providers[mock.Name] = fallback
	}

	explorer := service.New(service.Deps{
		Providers: providers,
		Fallback:  fallback,
		Limiter: ratelimit.New(ratelimit.Config{
			RequestsPerHour: cfg.RateLimit.RequestsPerHour,
			Burst:           cfg.RateLimit.Burst,
			Enabled:         cfg.RateLimit.Enabled,
		}),
		Breakers: breaker.NewManager(breaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			Window:           cfg.Breaker.Window,
			Cooldown:         cfg.Breaker.Cooldown,
			MinCalls:         cfg.Breaker.MinCalls,
		}, logger),
		Cache:   store,
		Logger:  logger,
		Metrics: m,
		Config: service.Config{
			CallTimeout:     cfg.CallTimeout,
			DefaultProvider: defaultProvider,
			Retry: service.RetryConfig{
				Attempts:    cfg.Retry.Attempts,
				BaseBackoff: cfg.Retry.BaseBackoff,
				MaxBackoff:  cfg.Retry.MaxBackoff,
			},
			ProductionMode: cfg.ProductionMode,
		},
	})

	bot, err := telegram.New(telegram.BotConfig{Token: cfg.Telegram.Token}, explorer, logger, m)
	if err != nil {
		logger.Fatal("create telegram bot", zap.Error(err))
	}

	logger.Info("video explorer started",
		zap.Bool("production_mode", cfg.ProductionMode),
		zap.String("default_provider", defaultProvider),
	)

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("bot stopped with error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics listener shutdown", zap.Error(err))
	}

	logger.Info("video explorer stopped")
}
