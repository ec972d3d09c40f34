package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yuilabs/minami/internal"
	"github.com/yuilabs/minami/internal/ai"
	"github.com/yuilabs/minami/internal/ai/anthropic"
	"github.com/yuilabs/minami/internal/ai/mock"
	"github.com/yuilabs/minami/internal/ai/openai"
	"github.com/yuilabs/minami/internal/billing"
	"github.com/yuilabs/minami/internal/handler"
	"github.com/yuilabs/minami/internal/jobs"
	"github.com/yuilabs/minami/internal/line"
	"github.com/yuilabs/minami/internal/metrics"
	"github.com/yuilabs/minami/internal/middleware"
	"github.com/yuilabs/minami/internal/service"
	"github.com/yuilabs/minami/internal/storage"
	"github.com/yuilabs/minami/internal/store"
	"github.com/yuilabs/minami/internal/throttle"
	"github.com/yuilabs/minami/internal/voice"
	"github.com/yuilabs/minami/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseRequestTimeout)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	st := store.New(db, cfg.Quota)

	// ==========================================================================
	// External providers
	// ==========================================================================

	aiProvider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}
	logger.Info("AI provider ready", "provider", cfg.AIProvider)

	lineClient, err := line.NewClient(line.ClientConfig{
		ChannelAccessToken: cfg.LineChannelAccessToken,
		Timeout:            cfg.LineRequestTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("line client initialization failed: %w", err)
	}

	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.Config{
			Ticket:     cfg.Ticket,
			SuccessURL: cfg.BaseURL + "/success",
			CancelURL:  cfg.BaseURL + "/cancel",
			Timeout:    cfg.StripeTimeout,
		})
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, checkout links are disabled")
	}

	var throttler service.Throttler
	if cfg.RedisURL != "" {
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		redisClient := goredis.NewClient(opts)
		defer redisClient.Close()
		throttler = throttle.NewLimiter(throttle.NewRedisStore(redisClient), cfg.UserMessagesPerMinute, cfg.UserMessagesPer10Sec)
		logger.Info("Per-user throttle enabled",
			"per_minute", cfg.UserMessagesPerMinute,
			"per_10s", cfg.UserMessagesPer10Sec,
		)
	}

	// ==========================================================================
	// Services
	// ==========================================================================

	var checkout service.CheckoutProvider
	if billingService != nil {
		checkout = billingService
	}
	links := service.NewLinkIssuer(checkout, st, cfg.BaseURL, logger)
	gate := service.NewQuotaGate(st, links, cfg.Quota, logger)
	payments := service.NewPaymentService(st, cfg.Ticket, cfg.Quota, logger)

	chatDeps := service.ChatDeps{
		Profiles:     st,
		History:      st,
		Targets:      st,
		Gate:         gate,
		AI:           aiProvider,
		Throttle:     throttler,
		Persona:      cfg.Persona,
		HistoryLimit: cfg.HistoryLimit,
		StoreTimeout: cfg.DatabaseRequestTimeout,
		Logger:       logger,
	}

	// ==========================================================================
	// Background worker (voice replies)
	// ==========================================================================

	var fileStore storage.Storage
	var bgWorker *worker.Worker
	if cfg.WorkerEnabled {
		bgWorker, err = worker.New(db, st.Queries(),
			worker.DefaultConfig().WithOverrides(cfg.WorkerConcurrency, cfg.WorkerPollInterval, cfg.WorkerJobTimeout),
			logger,
		)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}

		if cfg.VoiceEnabled {
			fileStore, err = storage.New(storage.Config{
				Provider: cfg.StorageProvider,
				Local: storage.LocalConfig{
					BasePath: cfg.LocalStoragePath,
					BaseURL:  cfg.LocalStorageURL,
				},
				R2: storage.R2Config{
					AccountID:       cfg.R2AccountID,
					AccessKeyID:     cfg.R2AccessKeyID,
					SecretAccessKey: cfg.R2SecretAccessKey,
					BucketName:      cfg.R2BucketName,
					PublicURL:       cfg.R2PublicURL,
				},
			}, logger)
			if err != nil {
				return fmt.Errorf("storage initialization failed: %w", err)
			}

			synth, err := voice.New(voice.Config{
				APIKey:  cfg.NijiVoiceAPIKey,
				Voice:   cfg.Persona,
				Timeout: cfg.VoiceRequestTimeout,
			}, logger)
			if err != nil {
				return fmt.Errorf("voice client initialization failed: %w", err)
			}

			bgWorker.Register(jobs.NewSynthesizeVoiceHandler(synth, fileStore, lineClient, logger))
			chatDeps.Voice = worker.NewQueue(st.Queries(), worker.QueueConfig{
				MaxAttempts: int32(cfg.VoiceMaxAttempts),
				Delay:       cfg.VoiceDelay,
			})
			logger.Info("Voice replies enabled", "storage", cfg.StorageProvider)
		}
	}

	chat := service.NewChatService(chatDeps)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	var verifier handler.SignatureVerifier
	if billingService != nil {
		verifier = billingService
	}

	handler.NewLineWebhookHandler(handler.LineWebhookConfig{
		ChannelSecret: cfg.LineChannelSecret,
	}, chat, lineClient, logger).RegisterRoutes(mux)
	handler.NewStripeWebhookHandler(verifier, payments, cfg.DatabaseRequestTimeout, logger).RegisterRoutes(mux)
	handler.NewPagesHandler(cfg.Persona.Name, st, logger).RegisterRoutes(mux)

	redirectLimiter := middleware.NewRateLimiter(cfg.RedirectRatePerMinute, time.Minute)
	defer redirectLimiter.Stop()
	handler.NewRedirectHandler(links, cfg.DatabaseRequestTimeout, logger).RegisterRoutes(mux,
		middleware.NewRateLimitMiddleware(redirectLimiter, logger).Limit,
	)

	if local, ok := fileStore.(*storage.LocalStorage); ok {
		mux.Handle("GET /files/{key...}", local.Handler())
	}

	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	stack := middleware.Stack(
		middleware.NewRecoverMiddleware(logger).Handler,
		middleware.NewRequestLoggingMiddleware(logger).Handler,
		metrics.Middleware,
		middleware.NewSecurityHeadersMiddleware(cfg.Env != "development").Handler,
	)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           stack(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	workerCtx, stopWorker := context.WithCancel(ctx)
	defer stopWorker()
	if bgWorker != nil {
		bgWorker.Start(workerCtx)
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	case err := <-serverErr:
		logger.Error("Server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	if bgWorker != nil {
		bgWorker.Stop()
	}
	stopWorker()

	logger.Info("Graceful shutdown complete")
	return nil
}

// newAIProvider builds the configured LLM provider.
func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	providerCfg := ai.ProviderConfig{
		MaxRetries:     cfg.AIMaxRetries,
		RetryBaseDelay: cfg.AIRetryBaseDelay,
		RequestTimeout: cfg.AIRequestTimeout,
	}

	switch cfg.AIProvider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			Model:          cfg.OpenAIModel,
			ProviderConfig: providerCfg,
		}, logger)
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AnthropicModel,
			ProviderConfig: providerCfg,
		}, logger)
	default:
		return mock.New(logger), nil
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
