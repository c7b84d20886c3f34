package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mlecomte/homeworkai/internal"
	"github.com/mlecomte/homeworkai/internal/ai"
	"github.com/mlecomte/homeworkai/internal/ai/gemini"
	"github.com/mlecomte/homeworkai/internal/ai/mock"
	"github.com/mlecomte/homeworkai/internal/billing"
	"github.com/mlecomte/homeworkai/internal/csrf"
	"github.com/mlecomte/homeworkai/internal/handler"
	"github.com/mlecomte/homeworkai/internal/metrics"
	"github.com/mlecomte/homeworkai/internal/middleware"
	"github.com/mlecomte/homeworkai/internal/repository"
	"github.com/mlecomte/homeworkai/internal/service"
	"github.com/mlecomte/homeworkai/internal/storage"
	"github.com/mlecomte/homeworkai/internal/worker"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Database
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	repo := repository.New(db)

	// Completion provider
	var provider ai.Provider
	switch cfg.AIProvider {
	case "gemini":
		geminiProvider, err := gemini.New(ctx, gemini.Config{
			APIKey:         cfg.GeminiAPIKey,
			Model:          cfg.GeminiModel,
			RequestTimeout: cfg.AIRequestTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("gemini provider initialization failed: %w", err)
		}
		defer geminiProvider.Close()
		provider = geminiProvider
	default:
		logger.Warn("using mock AI provider; set AI_PROVIDER=gemini for real completions")
		provider = mock.New(logger)
	}

	// Upload archive
	var archive storage.Archive
	switch cfg.StorageProvider {
	case "r2":
		archive, err = storage.NewR2Archive(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		}, logger)
	default:
		archive, err = storage.NewLocalArchive(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}

	// Billing
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookSecret, billing.PriceConfig{
			ProductName:        billing.DefaultPremiumPrice.ProductName,
			ProductDescription: billing.DefaultPremiumPrice.ProductDescription,
			UnitAmountCents:    cfg.PremiumPriceCents,
			Currency:           cfg.PremiumCurrency,
		})
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled; STRIPE_SECRET_KEY is not set")
	}

	// Services
	userService := service.NewUserService(repo, logger)
	profileStore := service.NewProfileStore(repo)
	usageService := service.NewUsageService(profileStore, logger, cfg.DailyCredits, cfg.IsAdminEmail)
	chatService := service.NewChatService(provider, usageService, service.NewImagingNormalizer(), archive, logger)

	// Middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	authLimiter := middleware.NewAuthRateLimiter(logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Handlers
	authHandler := handler.NewAuthHandler(userService, authLimiter, logger, isSecure)
	chatHandler := handler.NewChatHandler(chatService, logger)
	usageHandler := handler.NewUsageHandler(usageService, logger)
	billingHandler := handler.NewBillingHandler(billingService, cfg.BaseURL, logger)
	webhookHandler := handler.NewWebhookHandler(billingService, profileStore, logger)

	// ==========================================================================
	// Router
	// ==========================================================================

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser, csrf.Protect)

	authHandler.RegisterRoutes(mux, authMw.WithUser)
	chatHandler.RegisterRoutes(mux, middleware.Stack(authMw.WithUser, csrf.Protect))
	usageHandler.RegisterRoutes(mux, requireUser)
	billingHandler.RegisterRoutes(mux, requireUser)
	webhookHandler.RegisterRoutes(mux)

	// Outer stack applied to everything
	root := middleware.Stack(
		securityMw.Handler,
		metrics.Middleware,
		loggingMw.Handler,
	)(mux)

	// ==========================================================================
	// Server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Background maintenance
	maintenance := worker.New(logger)
	maintenance.Register(worker.NewSessionCleanupTask(userService))
	maintenance.Start(ctx)

	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")
	maintenance.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		return err
	}

	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
